// Copyright 2025 Ochránce Project
//
// Command verify checks a file's current block content against a
// previously produced index and A2ML attestation document at a chosen
// verification mode, exiting with the diagnostic's mapped exit code on
// failure (spec.md section 6).
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/hyperpolymath/ochrance/pkg/a2ml"
	"github.com/hyperpolymath/ochrance/pkg/diagnostic"
	"github.com/hyperpolymath/ochrance/pkg/fsload"
	"github.com/hyperpolymath/ochrance/pkg/logging"
	"github.com/hyperpolymath/ochrance/pkg/manifest"
	"github.com/hyperpolymath/ochrance/pkg/oracle"
	"github.com/hyperpolymath/ochrance/pkg/subsystem"
	"github.com/hyperpolymath/ochrance/pkg/verifymode"
)

func main() {
	var (
		input         = flag.String("input", "", "path to the file to verify")
		indexIn       = flag.String("index", "", "path to the per-block digest index")
		docIn         = flag.String("doc", "", "path to the A2ML attestation document")
		algorithmFlag = flag.String("algorithm", string(oracle.SHA256), "hash algorithm: sha256, sha384, sha512, blake3")
		modeFlag      = flag.String("mode", "checked", "verification mode: lax, checked, attested")
	)
	flag.Parse()

	if *input == "" || *indexIn == "" || *docIn == "" {
		fmt.Fprintln(os.Stderr, "usage: verify -input <file> -index <index> -doc <doc> [-mode lax|checked|attested]")
		os.Exit(64)
	}

	logger, err := logging.New(logging.DefaultConfig())
	if err != nil {
		fmt.Fprintln(os.Stderr, "verify: logger:", err)
		os.Exit(70)
	}

	mode, err := verifymode.Parse(*modeFlag)
	if err != nil {
		fmt.Fprintln(os.Stderr, "verify:", err)
		os.Exit(64)
	}
	algorithm, err := oracle.ParseAlgorithm(*algorithmFlag)
	if err != nil {
		fmt.Fprintln(os.Stderr, "verify:", err)
		os.Exit(64)
	}

	docBytes, err := os.ReadFile(*docIn)
	if err != nil {
		logger.Error("failed to read attestation document", logging.Field{Key: "error", Value: err.Error()})
		os.Exit(70)
	}
	doc, err := a2ml.ParseDocument(string(docBytes))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(parseErrExitCode(err))
	}
	if diags := a2ml.Validate(doc); len(diags) > 0 {
		for _, d := range diags {
			fmt.Fprintln(os.Stderr, d.String())
		}
		os.Exit(diagnosticExitCode(diags))
	}

	o := oracle.NewDefault()
	state, err := fsload.Load(o, algorithm, *input)
	if err != nil {
		logger.Error("failed to load input file", logging.Field{Key: "error", Value: err.Error()})
		os.Exit(70)
	}

	indexFile, err := os.Open(*indexIn)
	if err != nil {
		logger.Error("failed to open index file", logging.Field{Key: "error", Value: err.Error()})
		os.Exit(70)
	}
	defer indexFile.Close()
	fsManifest, err := manifest.DecodeIndex(indexFile, o, algorithm)
	if err != nil {
		logger.Error("failed to decode index", logging.Field{Key: "error", Value: err.Error()})
		os.Exit(70)
	}

	if mismatch := crossCheckRefs(doc, fsManifest); mismatch != "" {
		fmt.Fprintln(os.Stderr, mismatch)
		os.Exit(3)
	}

	sys := subsystem.New(subsystem.Config{Oracle: o, Algorithm: algorithm, Logger: logger})
	result := sys.Verify(mode, state, fsManifest)

	outcome := string(result.State)
	if manifestSec, ok := doc.Section(a2ml.SectionManifest); ok {
		if subsystemTag, ok := manifestSec.Get("subsystem"); ok {
			if err := a2ml.AppendAuditEntry(doc, o, algorithm, a2ml.AuditEntryFields{
				Timestamp:    time.Now(),
				SubsystemTag: subsystemTag.Str,
				CycleID:      uuid.NewString(),
				Outcome:      outcome,
			}); err != nil {
				logger.Error("failed to append audit entry", logging.Field{Key: "error", Value: err.Error()})
			} else if err := os.WriteFile(*docIn, []byte(a2ml.SerializeDocument(doc)+"\n"), 0644); err != nil {
				logger.Error("failed to persist audit trail", logging.Field{Key: "error", Value: err.Error()})
			}
		}
	}

	switch result.State {
	case subsystem.CycleAttestedOK:
		fmt.Printf("ok: %s tier witness, mode=%s\n", result.Witness.Tier(), mode)
		os.Exit(0)
	default:
		fmt.Fprintln(os.Stderr, result.Diagnostic.String())
		os.Exit(result.Diagnostic.ExitCode())
	}
}

func crossCheckRefs(doc *a2ml.Manifest, m *manifest.FSManifest) string {
	refs, err := a2ml.ExtractRefs(doc)
	if err != nil {
		return err.Error()
	}
	if refs.MerkleRootHex != m.Root().Hex() {
		return fmt.Sprintf("refs mismatch: document declares merkle_root %s, index recomputes %s", refs.MerkleRootHex, m.Root().Hex())
	}
	if refs.Algorithm != string(m.Algorithm()) {
		return fmt.Sprintf("refs mismatch: document declares algorithm %s, index uses %s", refs.Algorithm, m.Algorithm())
	}
	if int(refs.BlockCount) != m.N() {
		return fmt.Sprintf("refs mismatch: document declares block_count %d, index has %d", refs.BlockCount, m.N())
	}
	return ""
}

// diagnosticExitCode adapts diagnostic.List's HighestPriority into an exit
// code by looking up the worst-priority diagnostic in the list.
func diagnosticExitCode(diags diagnostic.List) int {
	for _, d := range diags {
		if d.Priority == diags.HighestPriority() {
			return d.ExitCode()
		}
	}
	return 70
}

// parseErrExitCode extracts the mapped exit code from whichever error type
// a2ml.ParseDocument returned: a bare *diagnostic.Diagnostic (document-size
// failure), a *a2ml.LexError, or a *a2ml.ParseError (which also covers
// missing or invalid header failures).
func parseErrExitCode(err error) int {
	switch e := err.(type) {
	case *diagnostic.Diagnostic:
		return e.ExitCode()
	case *a2ml.LexError:
		return e.Diagnostic.ExitCode()
	case *a2ml.ParseError:
		return e.Diagnostic.ExitCode()
	default:
		return 64
	}
}
