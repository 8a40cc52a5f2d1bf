/*
Copyright © 2025 NVIDIA Corporation
SPDX-License-Identifier: Apache-2.0
*/
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
)

// Result holds the outcome of an external command.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Success reports whether the command exited zero.
func (r Result) Success() bool {
	return r.ExitCode == 0
}

// Runner abstracts external command execution so reconciliation logic can be
// tested against fakes. A non-zero exit status is reported through
// Result.ExitCode, not through the error return; the error return is reserved
// for failures to execute at all (binary missing, context canceled).
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (Result, error)
	LookPath(file string) (string, error)
}

// OS is the Runner backed by os/exec. Every command, its exit status, and its
// full stdout/stderr are logged so the run log carries a complete trace of
// all subprocess activity.
type OS struct{}

// Run executes name with args and captures its output.
func (OS) Run(ctx context.Context, name string, args ...string) (Result, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			slog.Error("failed to execute command",
				"cmd", name,
				"args", strings.Join(args, " "),
				"error", err)
			return res, fmt.Errorf("failed to execute %s: %w", name, err)
		}
		res.ExitCode = exitErr.ExitCode()
	}

	slog.Info("command completed",
		"cmd", name,
		"args", strings.Join(args, " "),
		"exit", res.ExitCode,
		"stdout", res.Stdout,
		"stderr", res.Stderr)

	return res, nil
}

// LookPath resolves file in PATH.
func (OS) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}
