// Package logging provides structured logging utilities for the provisioning
// run.
//
// It wraps the standard library slog package with JSON output, environment
// based log level configuration (LOG_LEVEL), and module/version context
// injection. Setup additionally tees every record into the append-only run
// log file so a failed run leaves a reviewable trail, including the stdout
// and stderr of every external command the run issued.
//
// Setting the default logger:
//
//	closer, err := logging.Setup("dcgm-provision", version, "info", logging.DefaultLogPath)
//	if err != nil { ... }
//	defer closer.Close()
//
//	slog.Info("starting", "config", path)
//
// Supported log levels (case-insensitive): DEBUG, INFO (default), WARN,
// WARNING, ERROR.
package logging
