// Copyright 2025 Ochránce Project
//
// Package logging provides structured logging for the Ochránce verification
// and repair engine. It wraps slog.Logger with the field conventions used
// across verify/repair/attest cycles.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/hyperpolymath/ochrance/pkg/diagnostic"
)

// Logger wraps slog.Logger with Ochránce-specific field helpers.
type Logger struct {
	*slog.Logger
	config *Config
}

// Config represents logging configuration.
type Config struct {
	Level      slog.Level `json:"level"`
	Format     string     `json:"format"` // "json" or "text"
	Output     string     `json:"output"` // "stdout", "stderr", or file path
	AddSource  bool       `json:"add_source"`
	TimeFormat string     `json:"time_format"`
}

// Field is a single structured log field.
type Field struct {
	Key   string
	Value interface{}
}

// DefaultConfig returns a default logging configuration.
func DefaultConfig() *Config {
	return &Config{
		Level:      slog.LevelInfo,
		Format:     "text",
		Output:     "stdout",
		AddSource:  false,
		TimeFormat: time.RFC3339,
	}
}

// New creates a new Logger with the given configuration.
func New(config *Config) (*Logger, error) {
	if config == nil {
		config = DefaultConfig()
	}

	var output io.Writer
	switch config.Output {
	case "stdout", "":
		output = os.Stdout
	case "stderr":
		output = os.Stderr
	default:
		file, err := os.OpenFile(config.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		output = file
	}

	handlerOpts := &slog.HandlerOptions{
		Level:     config.Level,
		AddSource: config.AddSource,
	}

	var handler slog.Handler
	if config.Format == "json" {
		handler = slog.NewJSONHandler(output, handlerOpts)
	} else {
		handler = slog.NewTextHandler(output, handlerOpts)
	}

	return &Logger{Logger: slog.New(handler), config: config}, nil
}

// WithFields returns a derived logger carrying the given fields.
func (l *Logger) WithFields(fields ...Field) *Logger {
	if len(fields) == 0 {
		return l
	}
	args := make([]any, len(fields)*2)
	for i, f := range fields {
		args[i*2] = f.Key
		args[i*2+1] = f.Value
	}
	return &Logger{Logger: l.Logger.With(args...), config: l.config}
}

// WithDiagnostic returns a derived logger carrying a q/p/z diagnostic's fields.
func (l *Logger) WithDiagnostic(d *diagnostic.Diagnostic) *Logger {
	if d == nil {
		return l
	}
	return l.WithFields(
		Field{Key: "diag_query", Value: string(d.Query)},
		Field{Key: "diag_priority", Value: string(d.Priority)},
		Field{Key: "diag_zone", Value: d.Zone.String()},
	)
}

// WithSubsystem returns a derived logger tagged with a subsystem name.
func (l *Logger) WithSubsystem(name string) *Logger {
	return l.WithFields(Field{Key: "subsystem", Value: name})
}

// WithCycle returns a derived logger tagged with a verification/repair cycle ID.
func (l *Logger) WithCycle(cycleID string) *Logger {
	return l.WithFields(Field{Key: "cycle_id", Value: cycleID})
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, fields ...Field) { l.log(slog.LevelDebug, msg, fields...) }

// Info logs an info message.
func (l *Logger) Info(msg string, fields ...Field) { l.log(slog.LevelInfo, msg, fields...) }

// Warn logs a warning message.
func (l *Logger) Warn(msg string, fields ...Field) { l.log(slog.LevelWarn, msg, fields...) }

// Error logs an error message.
func (l *Logger) Error(msg string, fields ...Field) { l.log(slog.LevelError, msg, fields...) }

func (l *Logger) log(level slog.Level, msg string, fields ...Field) {
	if !l.Logger.Enabled(context.Background(), level) {
		return
	}
	attrs := make([]slog.Attr, len(fields))
	for i, f := range fields {
		attrs[i] = slog.Any(f.Key, f.Value)
	}
	if l.config != nil && l.config.AddSource {
		_, file, line, ok := runtime.Caller(2)
		if ok {
			attrs = append(attrs, slog.Group("source", slog.String("file", file), slog.Int("line", line)))
		}
	}
	l.Logger.LogAttrs(context.Background(), level, msg, attrs...)
}
