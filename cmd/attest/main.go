// Copyright 2025 Ochránce Project
//
// Command attest computes a fresh FSManifest for a file's current block
// content and writes both the internal per-block digest index and the
// human-auditable A2ML attestation document (spec.md section 6).
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/hyperpolymath/ochrance/pkg/a2ml"
	"github.com/hyperpolymath/ochrance/pkg/fsload"
	"github.com/hyperpolymath/ochrance/pkg/logging"
	"github.com/hyperpolymath/ochrance/pkg/manifest"
	"github.com/hyperpolymath/ochrance/pkg/oracle"
	"github.com/hyperpolymath/ochrance/pkg/subsystem"
)

func main() {
	var (
		input         = flag.String("input", "", "path to the file to attest")
		indexOut      = flag.String("index", "", "path to write the per-block digest index to")
		docOut        = flag.String("doc", "", "path to write the A2ML attestation document to")
		algorithmFlag = flag.String("algorithm", string(oracle.SHA256), "hash algorithm: sha256, sha384, sha512, blake3")
		subsystemTag  = flag.String("subsystem", "default", "subsystem tag recorded in @manifest")
		producer      = flag.String("producer", "ochranced-attest", "producer string recorded in @manifest")
		formatVersion = flag.String("format-version", "1", "filesystem format version recorded in the manifest")
	)
	flag.Parse()

	if *input == "" || *indexOut == "" || *docOut == "" {
		fmt.Fprintln(os.Stderr, "usage: attest -input <file> -index <index-out> -doc <doc-out>")
		os.Exit(64)
	}

	logger, err := logging.New(logging.DefaultConfig())
	if err != nil {
		fmt.Fprintln(os.Stderr, "attest: logger:", err)
		os.Exit(70)
	}

	algorithm, err := oracle.ParseAlgorithm(*algorithmFlag)
	if err != nil {
		fmt.Fprintln(os.Stderr, "attest:", err)
		os.Exit(64)
	}

	o := oracle.NewDefault()
	state, err := fsload.Load(o, algorithm, *input)
	if err != nil {
		logger.Error("failed to load input file", logging.Field{Key: "path", Value: *input}, logging.Field{Key: "error", Value: err.Error()})
		os.Exit(70)
	}

	sys := subsystem.New(subsystem.Config{Oracle: o, Algorithm: algorithm, Logger: logger})
	fsManifest, err := sys.Attest(state, *formatVersion)
	if err != nil {
		logger.Error("attestation failed", logging.Field{Key: "error", Value: err.Error()})
		os.Exit(70)
	}

	indexFile, err := os.Create(*indexOut)
	if err != nil {
		logger.Error("failed to create index file", logging.Field{Key: "error", Value: err.Error()})
		os.Exit(70)
	}
	defer indexFile.Close()
	if err := manifest.EncodeIndex(indexFile, fsManifest); err != nil {
		logger.Error("failed to write index", logging.Field{Key: "error", Value: err.Error()})
		os.Exit(70)
	}

	doc := a2ml.FromFSManifest(uuid.NewString(), *producer, *subsystemTag, fsManifest, time.Now())
	docText := a2ml.SerializeDocument(doc)

	if err := os.WriteFile(*docOut, []byte(docText+"\n"), 0644); err != nil {
		logger.Error("failed to write attestation document", logging.Field{Key: "error", Value: err.Error()})
		os.Exit(70)
	}

	logger.Info("attestation complete",
		logging.Field{Key: "subsystem", Value: *subsystemTag},
		logging.Field{Key: "block_count", Value: fsManifest.N()},
		logging.Field{Key: "merkle_root", Value: fsManifest.Root().String()},
	)
}
