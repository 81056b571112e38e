package oracle

import (
	"bytes"
	"testing"
)

func TestSumDigestLengths(t *testing.T) {
	o := NewDefault()
	data := []byte("ochrance")

	cases := []struct {
		alg    Algorithm
		length int
	}{
		{SHA256, 32},
		{SHA384, 48},
		{SHA512, 64},
		{BLAKE3, 32},
	}

	for _, c := range cases {
		d, err := o.Sum(c.alg, data)
		if err != nil {
			t.Fatalf("Sum(%s): %v", c.alg, err)
		}
		if len(d.Bytes) != c.length {
			t.Fatalf("Sum(%s) length = %d, want %d", c.alg, len(d.Bytes), c.length)
		}
		if DigestLength(c.alg) != c.length {
			t.Fatalf("DigestLength(%s) = %d, want %d", c.alg, DigestLength(c.alg), c.length)
		}
	}
}

func TestSumDeterministic(t *testing.T) {
	o := NewDefault()
	a, _ := o.Sum(SHA256, []byte("x"))
	b, _ := o.Sum(SHA256, []byte("x"))
	if !bytes.Equal(a.Bytes, b.Bytes) {
		t.Fatal("Sum is not deterministic")
	}
}

func TestSumUnknownAlgorithm(t *testing.T) {
	o := NewDefault()
	if _, err := o.Sum("md5", []byte("x")); err == nil {
		t.Fatal("expected error for unknown algorithm")
	}
}

func TestConstantEqual(t *testing.T) {
	o := NewDefault()
	a, _ := o.Sum(SHA256, []byte("x"))
	b, _ := o.Sum(SHA256, []byte("x"))
	c, _ := o.Sum(SHA256, []byte("y"))

	if !a.ConstantEqual(b) {
		t.Fatal("equal digests should compare equal")
	}
	if a.ConstantEqual(c) {
		t.Fatal("different digests should not compare equal")
	}
}

func TestParseHashLiteral(t *testing.T) {
	o := NewDefault()
	d, _ := o.Sum(SHA256, []byte("x"))

	parsed, err := ParseHashLiteral(SHA256, d.Hex())
	if err != nil {
		t.Fatalf("ParseHashLiteral: %v", err)
	}
	if !parsed.Equal(d) {
		t.Fatal("round-tripped digest does not match")
	}

	if _, err := ParseHashLiteral(SHA256, "zz"); err == nil {
		t.Fatal("expected error for non-hex literal")
	}
	if _, err := ParseHashLiteral(SHA256, "ab"); err == nil {
		t.Fatal("expected error for wrong-length literal")
	}
}

func TestZeroDigest(t *testing.T) {
	z := ZeroDigest(SHA256)
	for _, b := range z.Bytes {
		if b != 0 {
			t.Fatal("zero digest must be all zero bytes")
		}
	}
	if len(z.Bytes) != 32 {
		t.Fatalf("zero digest length = %d, want 32", len(z.Bytes))
	}
}
