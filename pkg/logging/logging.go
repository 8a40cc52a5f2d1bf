/*
Copyright © 2025 NVIDIA Corporation
SPDX-License-Identifier: Apache-2.0
*/
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
)

// DefaultLogPath is the append-only run log. Every invocation appends to the
// same file so failed runs can be reviewed after the fact.
const DefaultLogPath = "/tmp/dcgm-provision.log"

// envLogLevel overrides the default level when no explicit level is given.
const envLogLevel = "LOG_LEVEL"

// ParseLevel converts a textual log level (case-insensitive) to a slog.Level.
// Unknown or empty values fall back to Info.
func ParseLevel(level string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewStructuredLogger creates a JSON logger writing to w with module and
// version context attached to every record. Debug level enables source
// location tracking.
func NewStructuredLogger(module, version, level string, w io.Writer) *slog.Logger {
	if level == "" {
		level = os.Getenv(envLogLevel)
	}
	lvl := ParseLevel(level)

	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:     lvl,
		AddSource: lvl == slog.LevelDebug,
	})

	return slog.New(handler).With(
		"module", module,
		"version", version,
	)
}

// SetDefaultStructuredLoggerWithLevel sets the process-wide default logger
// writing to stderr with the given explicit level.
func SetDefaultStructuredLoggerWithLevel(module, version, level string) {
	slog.SetDefault(NewStructuredLogger(module, version, level, os.Stderr))
}

// SetDefaultStructuredLogger sets the process-wide default logger with the
// level taken from the LOG_LEVEL environment variable.
func SetDefaultStructuredLogger(module, version string) {
	SetDefaultStructuredLoggerWithLevel(module, version, "")
}

// Setup opens path for append and installs a default logger that writes every
// record both to stderr and to the run log. A unique run ID is attached so
// interleaved runs in the shared log file can be told apart. The returned
// closer releases the log file handle.
func Setup(module, version, level, path string) (io.Closer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", path, err)
	}

	logger := NewStructuredLogger(module, version, level, io.MultiWriter(os.Stderr, f)).
		With("run", uuid.NewString())
	slog.SetDefault(logger)

	return f, nil
}
