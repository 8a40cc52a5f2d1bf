/*
Copyright © 2025 NVIDIA Corporation
SPDX-License-Identifier: Apache-2.0
*/
package docker

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	apperrors "github.com/NVIDIA/dcgm-provision/pkg/errors"
	"github.com/NVIDIA/dcgm-provision/pkg/runner"
)

const (
	// ContainerName is the fixed exporter container name.
	ContainerName = "dcgm-exporter"

	// MetricsFileName is the DCGM metrics definition file expected in the
	// working directory.
	MetricsFileName = "dcgm_metrics.csv"

	// ExpectedMetricsPath is the only path the metrics file may resolve to.
	// The container run command mounts it by this fixed path, so a file
	// anywhere else would silently not be the one the exporter reads.
	ExpectedMetricsPath = "/home/ubuntu/aws-dcgm-exporter/dcgm_metrics.csv"

	// countersMountPath is where the exporter reads its counter definitions.
	countersMountPath = "/etc/dcgm-exporter/default-counters.csv"

	sudoPath   = "/usr/bin/sudo"
	dockerPath = "/usr/bin/docker"
)

// Container states as reported by docker inspect.
const (
	StateRunning = "running"
	StateExited  = "exited"

	// StateAbsent is the synthetic state for a container docker cannot
	// inspect (typically: never created).
	StateAbsent = "not_running"
)

// RunSpec describes the exporter container to create.
type RunSpec struct {
	// Image is the validated exporter image reference.
	Image string
	// Port is published host:container, both sides equal.
	Port int
	// IntervalMillis is the exporter's collection interval.
	IntervalMillis int64
	// MetricsFile is the path of the metrics definition file to mount.
	MetricsFile string
}

// Exporter orchestrates the DCGM exporter container through the docker CLI.
type Exporter struct {
	run  runner.Runner
	name string

	// expectedMetricsPath is overridable in tests.
	expectedMetricsPath string
}

// NewExporter creates an Exporter for the fixed container name.
func NewExporter(run runner.Runner) *Exporter {
	return &Exporter{
		run:                 run,
		name:                ContainerName,
		expectedMetricsPath: ExpectedMetricsPath,
	}
}

// Ensure brings the exporter container to a running state: no-op when
// already running, a single start attempt when exited, a fresh create
// otherwise. Create failures are fatal for the run.
func (e *Exporter) Ensure(ctx context.Context, spec RunSpec) error {
	slog.Info("checking exporter container", "name", e.name)

	running, err := e.runningByName(ctx)
	if err != nil {
		return err
	}
	if running {
		slog.Info("exporter container is already running")
		return nil
	}

	state, err := e.state(ctx)
	if err != nil {
		return err
	}
	switch state {
	case StateRunning:
		slog.Info("exporter container is already running")
		return nil
	case StateExited:
		slog.Info("exporter container exited, trying to start it")
		if _, err := e.run.Run(ctx, sudoPath, dockerPath, "start", e.name); err != nil {
			return apperrors.Wrap(apperrors.ErrCodeConfigurationFailure,
				"failed to start exporter container", err)
		}

		// one re-probe; if the start did not take, fall through to create
		state, err = e.state(ctx)
		if err != nil {
			return err
		}
		if state == StateRunning {
			slog.Info("successfully started exporter container")
			return nil
		}
	}

	return e.create(ctx, spec)
}

// runningByName checks the running container list for an exact name match.
func (e *Exporter) runningByName(ctx context.Context) (bool, error) {
	res, err := e.run.Run(ctx, dockerPath, "ps", "--format", "{{.Names}}")
	if err != nil {
		return false, apperrors.Wrap(apperrors.ErrCodeConfigurationFailure,
			"failed to list running containers", err)
	}
	for _, name := range strings.Fields(res.Stdout) {
		if name == e.name {
			return true, nil
		}
	}
	return false, nil
}

// state inspects the container. A failed inspect means the container does
// not exist and maps to StateAbsent.
func (e *Exporter) state(ctx context.Context) (string, error) {
	res, err := e.run.Run(ctx, dockerPath, "container", "inspect", "--format", "{{.State.Status}}", e.name)
	if err != nil {
		return "", apperrors.Wrap(apperrors.ErrCodeConfigurationFailure,
			"failed to inspect exporter container", err)
	}
	if !res.Success() {
		slog.Info("no exporter container found")
		return StateAbsent, nil
	}

	state := strings.TrimSpace(res.Stdout)
	slog.Info("exporter container state", "state", state)
	return state, nil
}

// create runs a new exporter container. The metrics definition file must
// resolve to the expected fixed path before the mount is attempted.
func (e *Exporter) create(ctx context.Context, spec RunSpec) error {
	resolved, err := resolveMetricsFile(spec.MetricsFile)
	if err != nil {
		return err
	}
	if resolved != e.expectedMetricsPath {
		return apperrors.NewWithContext(apperrors.ErrCodePreconditionMismatch,
			"metrics file is not at its expected path",
			map[string]any{"resolved": resolved, "expected": e.expectedMetricsPath})
	}

	slog.Info("setting up exporter container", "image", spec.Image)
	args := []string{
		dockerPath, "run",
		"--pid=host",
		"--privileged",
		"-e", fmt.Sprintf("DCGM_EXPORTER_INTERVAL=%d", spec.IntervalMillis),
		"--gpus", "all",
		"--restart=always",
		"-d",
		"-v", "/proc:/proc",
		"-v", resolved + ":" + countersMountPath,
		"-p", fmt.Sprintf("%d:%d", spec.Port, spec.Port),
		"--name", e.name,
		spec.Image,
	}

	res, err := e.run.Run(ctx, sudoPath, args...)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrCodeConfigurationFailure,
			"failed to run exporter container setup", err)
	}
	if !res.Success() {
		return apperrors.NewWithContext(apperrors.ErrCodeConfigurationFailure,
			"exporter container setup exited non-zero",
			map[string]any{"exit": res.ExitCode, "stderr": res.Stderr})
	}

	slog.Info("successfully set up exporter container")
	return nil
}

// resolveMetricsFile resolves the metrics file to an absolute, symlink-free
// path. A missing file is a precondition mismatch.
func resolveMetricsFile(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", apperrors.Wrap(apperrors.ErrCodePreconditionMismatch,
			"failed to resolve metrics file path", err)
	}
	if _, err := os.Stat(abs); err != nil {
		return "", apperrors.Wrap(apperrors.ErrCodePreconditionMismatch,
			fmt.Sprintf("metrics file %s does not exist", abs), err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", apperrors.Wrap(apperrors.ErrCodePreconditionMismatch,
			"failed to resolve metrics file symlinks", err)
	}
	return resolved, nil
}
