package merkle

import (
	"testing"

	"github.com/hyperpolymath/ochrance/pkg/oracle"
)

func digests(t *testing.T, o oracle.Oracle, algorithm oracle.Algorithm, n int) []oracle.Digest {
	t.Helper()
	out := make([]oracle.Digest, n)
	for i := 0; i < n; i++ {
		d, err := LeafDigest(o, algorithm, []byte{byte(i)})
		if err != nil {
			t.Fatalf("LeafDigest: %v", err)
		}
		out[i] = d
	}
	return out
}

func TestBuildEmptyTreeYieldsZeroRoot(t *testing.T) {
	o := oracle.NewDefault()
	tree, err := Build(o, oracle.SHA256, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	zero := oracle.ZeroDigest(oracle.SHA256)
	if !tree.Root().Equal(zero) {
		t.Fatal("empty tree root must be the zero sentinel")
	}
}

func TestBuildSingletonTree(t *testing.T) {
	o := oracle.NewDefault()
	leaves := digests(t, o, oracle.SHA256, 1)
	tree, err := Build(o, oracle.SHA256, leaves)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !tree.Root().Equal(leaves[0]) {
		t.Fatal("singleton tree root must equal the sole leaf")
	}
}

func TestBuildDeterministic(t *testing.T) {
	o := oracle.NewDefault()
	leaves := digests(t, o, oracle.SHA256, 7)
	t1, _ := Build(o, oracle.SHA256, leaves)
	t2, _ := Build(o, oracle.SHA256, leaves)
	if !t1.Root().Equal(t2.Root()) {
		t.Fatal("identical leaf sequences must produce identical roots")
	}
}

func TestInclusionSoundness(t *testing.T) {
	o := oracle.NewDefault()
	for _, n := range []int{1, 2, 3, 4, 5, 8, 9, 16, 17} {
		leaves := digests(t, o, oracle.SHA256, n)
		tree, err := Build(o, oracle.SHA256, leaves)
		if err != nil {
			t.Fatalf("n=%d Build: %v", n, err)
		}
		for i := 0; i < n; i++ {
			proof, err := tree.Proof(i)
			if err != nil {
				t.Fatalf("n=%d Proof(%d): %v", n, i, err)
			}
			if !VerifyProof(o, proof, tree.Root()) {
				t.Fatalf("n=%d leaf %d: proof did not verify", n, i)
			}

			// Altering the claimed leaf must break verification.
			tampered := *proof
			tampered.Leaf = oracle.ZeroDigest(oracle.SHA256)
			if VerifyProof(o, &tampered, tree.Root()) {
				t.Fatalf("n=%d leaf %d: tampered leaf unexpectedly verified", n, i)
			}

			// Altering a sibling byte must break verification, when a path exists.
			if len(proof.Path) > 0 {
				tamperedPath := *proof
				pathCopy := append([]ProofStep(nil), proof.Path...)
				corrupted := pathCopy[0].Sibling
				corruptedBytes := append([]byte(nil), corrupted.Bytes...)
				corruptedBytes[0] ^= 0xFF
				pathCopy[0] = ProofStep{Side: pathCopy[0].Side, Sibling: oracle.Digest{Algorithm: corrupted.Algorithm, Bytes: corruptedBytes}}
				tamperedPath.Path = pathCopy
				if VerifyProof(o, &tamperedPath, tree.Root()) {
					t.Fatalf("n=%d leaf %d: tampered proof path unexpectedly verified", n, i)
				}
			}
		}
	}
}

func TestWireProofRoundTrip(t *testing.T) {
	o := oracle.NewDefault()
	leaves := digests(t, o, oracle.SHA256, 5)
	tree, _ := Build(o, oracle.SHA256, leaves)
	proof, _ := tree.Proof(2)

	data, err := proof.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}

	var round Proof
	if err := round.UnmarshalJSON(data); err != nil {
		t.Fatalf("UnmarshalJSON: %v", err)
	}

	if !VerifyProof(o, &round, tree.Root()) {
		t.Fatal("round-tripped proof did not verify")
	}
}

func TestProofForLeafNotFound(t *testing.T) {
	o := oracle.NewDefault()
	leaves := digests(t, o, oracle.SHA256, 3)
	tree, _ := Build(o, oracle.SHA256, leaves)
	_, err := tree.ProofForLeaf(oracle.ZeroDigest(oracle.SHA256))
	if err != ErrLeafNotFound {
		t.Fatalf("expected ErrLeafNotFound, got %v", err)
	}
}
