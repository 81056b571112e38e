// Copyright 2025 Ochránce Project
//
// Command ochranced is the optional HTTP façade over the VerifiedSubsystem:
// POST /verify, POST /repair, POST /attest, GET /health, GET /metrics
// (spec.md section 6).
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hyperpolymath/ochrance/pkg/audit"
	"github.com/hyperpolymath/ochrance/pkg/config"
	"github.com/hyperpolymath/ochrance/pkg/httpapi"
	"github.com/hyperpolymath/ochrance/pkg/logging"
	"github.com/hyperpolymath/ochrance/pkg/metrics"
	"github.com/hyperpolymath/ochrance/pkg/oracle"
	"github.com/hyperpolymath/ochrance/pkg/subsystem"
)

func main() {
	overlayPath := flag.String("config", "", "optional YAML configuration overlay file")
	flag.Parse()

	cfg, err := config.LoadWithOverlay(*overlayPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "ochranced: loading configuration:", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "ochranced: invalid configuration:", err)
		os.Exit(1)
	}

	level := slog.LevelInfo
	if cfg.LogLevel == "debug" {
		level = slog.LevelDebug
	}
	logger, err := logging.New(&logging.Config{Level: level, Format: cfg.LogFormat, Output: "stdout", TimeFormat: time.RFC3339})
	if err != nil {
		fmt.Fprintln(os.Stderr, "ochranced: logger:", err)
		os.Exit(1)
	}

	algorithm, err := oracle.ParseAlgorithm(cfg.DefaultAlgorithm)
	if err != nil {
		logger.Error("invalid default algorithm", logging.Field{Key: "error", Value: err.Error()})
		os.Exit(1)
	}
	o := oracle.NewDefault()

	ctx := context.Background()
	mirror, err := audit.New(ctx, &audit.Config{
		ProjectID:       cfg.FirebaseProjectID,
		CredentialsFile: cfg.FirebaseCredentials,
		Enabled:         cfg.AuditMirrorEnabled,
		Logger:          logger,
	})
	if err != nil {
		logger.Error("audit mirror initialization failed", logging.Field{Key: "error", Value: err.Error()})
		os.Exit(1)
	}
	defer mirror.Close()

	reg := metrics.New()
	reg.MustRegister(prometheus.DefaultRegisterer)

	sys := subsystem.New(subsystem.Config{Oracle: o, Algorithm: algorithm, Logger: logger})
	handlers := &httpapi.Handlers{
		System:       sys,
		Oracle:       o,
		Algorithm:    algorithm,
		Metrics:      reg,
		Logger:       logger,
		SubsystemTag: cfg.SubsystemTag,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/verify", handlers.HandleVerify)
	mux.HandleFunc("/repair", handlers.HandleRepair)
	mux.HandleFunc("/attest", handlers.HandleAttest)
	mux.HandleFunc("/health", handlers.HandleHealth)

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: cfg.ListenAddr, Handler: mux}
	metricsSrv := &http.Server{Addr: cfg.MetricsAddr, Handler: metricsMux}

	go func() {
		logger.Info("verification API listening", logging.Field{Key: "addr", Value: cfg.ListenAddr})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("verification API server failed", logging.Field{Key: "error", Value: err.Error()})
		}
	}()
	go func() {
		logger.Info("metrics listening", logging.Field{Key: "addr", Value: cfg.MetricsAddr})
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server failed", logging.Field{Key: "error", Value: err.Error()})
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
	metricsSrv.Shutdown(shutdownCtx)
	logger.Info("ochranced stopped")
}
