// Copyright 2025 Ochránce Project
//
// The A2ML @refs section deliberately carries only merkle_root, algorithm,
// block_count and tree_depth (spec.md section 4.1) — not the full per-block
// digest vector, which would make every audit document as large as the
// filesystem it describes. Verification instead needs that vector from a
// separate, internal index file. EncodeIndex/DecodeIndex implement that
// index's on-disk form: one "algorithm:hexdigest" line per block, in order,
// preceded by a header line carrying the format version.
package manifest

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/hyperpolymath/ochrance/pkg/oracle"
)

// EncodeIndex writes m's format version and per-block digest vector to w.
func EncodeIndex(w io.Writer, m *FSManifest) error {
	if _, err := fmt.Fprintf(w, "ochrance-index/1 %s\n", m.FormatVersion()); err != nil {
		return err
	}
	for _, d := range m.BlockDigests() {
		if _, err := fmt.Fprintln(w, d.String()); err != nil {
			return err
		}
	}
	return nil
}

// DecodeIndex reads an index previously written by EncodeIndex and
// reconstructs the per-block digest vector and format version. The caller
// passes o and algorithm to recompute the manifest's Merkle root via New;
// digests found at a different algorithm than the one passed are an error.
func DecodeIndex(r io.Reader, o oracle.Oracle, algorithm oracle.Algorithm) (*FSManifest, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	if !scanner.Scan() {
		return nil, fmt.Errorf("manifest: empty index")
	}
	header := scanner.Text()
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "ochrance-index/1" {
		return nil, fmt.Errorf("manifest: malformed index header %q", header)
	}
	formatVersion := parts[1]

	var digests []oracle.Digest
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.SplitN(line, ":", 2)
		if len(fields) != 2 {
			return nil, fmt.Errorf("manifest: malformed digest line %q", line)
		}
		lineAlgorithm, err := oracle.ParseAlgorithm(fields[0])
		if err != nil {
			return nil, err
		}
		if lineAlgorithm != algorithm {
			return nil, fmt.Errorf("manifest: index digest algorithm %s does not match expected %s", lineAlgorithm, algorithm)
		}
		d, err := oracle.ParseHashLiteral(lineAlgorithm, fields[1])
		if err != nil {
			return nil, err
		}
		digests = append(digests, d)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return New(o, algorithm, digests, formatVersion)
}
