/*
Copyright © 2025 NVIDIA Corporation
SPDX-License-Identifier: Apache-2.0
*/
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	apperrors "github.com/NVIDIA/dcgm-provision/pkg/errors"
	"github.com/NVIDIA/dcgm-provision/pkg/runner"
)

// Agent install layout.
const (
	// InstallBase is the CloudWatch agent installation directory. A missing
	// bin/ underneath it means the package was never installed.
	InstallBase = "/opt/aws/amazon-cloudwatch-agent"

	ctlRelPath      = "bin/amazon-cloudwatch-agent-ctl"
	fragmentRelPath = "etc/amazon-cloudwatch-agent.d"

	sudoPath = "/usr/bin/sudo"
)

// configuredValue is the ctl's configstatus value for a configured agent.
const configuredValue = "configured"

// stageMarker ties a configuration tier to the distinctive substring its
// fragment leaves in the agent config directory.
type stageMarker struct {
	marker string
	status ConfigStatus
}

// markers in strict detection precedence: the highest tier present wins,
// regardless of the order fragments were appended in.
var markers = []stageMarker{
	{"DCGM_FI_PROF_DRAM_ACTIVE", ConfiguredDCGM},
	{"utilization_gpu", ConfiguredSMI},
	{"mem_available", ConfiguredBase},
}

// Controller drives the CloudWatch agent through its control tool. All
// operations shell out through the injected Runner so the reconciliation
// logic can be exercised against fakes.
type Controller struct {
	run  runner.Runner
	base string
}

// NewController creates a Controller against the standard install base.
func NewController(run runner.Runner) *Controller {
	return NewControllerAt(run, InstallBase)
}

// NewControllerAt creates a Controller against a specific install base. Used
// by tests to probe a synthetic agent tree.
func NewControllerAt(run runner.Runner, base string) *Controller {
	return &Controller{run: run, base: base}
}

func (c *Controller) ctl() string {
	return filepath.Join(c.base, ctlRelPath)
}

// FragmentDir returns the agent's configuration fragment directory.
func (c *Controller) FragmentDir() string {
	return filepath.Join(c.base, fragmentRelPath)
}

// Probe derives the agent's configuration and runtime status. The result is
// computed fresh on every call from the ctl status payload and the fragment
// directory contents; nothing is cached.
func (c *Controller) Probe(ctx context.Context) (ConfigStatus, RuntimeStatus) {
	if _, err := os.Stat(filepath.Join(c.base, "bin")); err != nil {
		slog.Info("agent package not installed", "base", c.base)
		return NotInstalled, RuntimeUnknown
	}

	res, err := c.run.Run(ctx, sudoPath, c.ctl(), "-m", "ec2", "-a", "status")
	if err != nil || !res.Success() {
		slog.Error("agent status query failed", "exit", res.ExitCode, "error", err)
		return ConfigError, RuntimeUnknown
	}

	payload, err := parseStatusPayload(res.Stdout)
	if err != nil {
		slog.Error("agent status output unparsable", "error", err, "output", res.Stdout)
		return ConfigError, RuntimeUnknown
	}

	rs := RuntimeUnknown
	switch payload.Status {
	case "running":
		rs = Running
	case "stopped":
		rs = Stopped
	}

	if payload.ConfigStatus != configuredValue {
		return NotConfigured, rs
	}

	return c.classifyFragments(), rs
}

// classifyFragments reports the highest configuration tier whose marker is
// present in the fragment directory. No marker while the agent reports
// configured falls back to NotConfigured.
func (c *Controller) classifyFragments() ConfigStatus {
	dir := c.FragmentDir()
	slog.Info("checking agent config fragments", "dir", dir)

	content := readFragments(dir)
	for _, m := range markers {
		if strings.Contains(content, m.marker) {
			return m.status
		}
	}
	return NotConfigured
}

// readFragments concatenates every regular file in dir. Unreadable entries
// are skipped; an unreadable directory yields no content, which classifies as
// NotConfigured, same as an empty one.
func readFragments(dir string) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		slog.Warn("failed to list agent config dir", "dir", dir, "error", err)
		return ""
	}

	var sb strings.Builder
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			slog.Warn("failed to read agent config fragment", "file", e.Name(), "error", err)
			continue
		}
		sb.Write(data)
		sb.WriteByte('\n')
	}
	return sb.String()
}

// statusPayload is the subset of the ctl status output the prober needs.
type statusPayload struct {
	Status       string `json:"status"`
	ConfigStatus string `json:"configstatus"`
}

// parseStatusPayload decodes the ctl status output. Older ctl versions print
// a Python-style dict with single quotes; for this flat payload swapping the
// quotes yields valid JSON, so that is tried as a fallback.
func parseStatusPayload(out string) (*statusPayload, error) {
	out = strings.TrimSpace(out)

	var p statusPayload
	if err := json.Unmarshal([]byte(out), &p); err == nil {
		return &p, nil
	}

	normalized := strings.ReplaceAll(out, "'", `"`)
	if err := json.Unmarshal([]byte(normalized), &p); err != nil {
		return nil, fmt.Errorf("status output is not a recognizable dict: %w", err)
	}
	return &p, nil
}

// AppendConfig appends the named configuration fragment to the agent. The
// fragment file must exist; the agent is assumed to be stopped.
func (c *Controller) AppendConfig(ctx context.Context, file string) error {
	if _, err := os.Stat(file); err != nil {
		return apperrors.Wrap(apperrors.ErrCodePreconditionMismatch,
			fmt.Sprintf("agent config fragment %s does not exist", file), err)
	}

	slog.Info("appending agent config", "file", file)
	res, err := c.run.Run(ctx, sudoPath, c.ctl(), "-a", "append-config", "-m", "ec2", "-c", "file:"+file)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrCodeConfigurationFailure,
			fmt.Sprintf("failed to append agent config %s", file), err)
	}
	if !res.Success() {
		return apperrors.NewWithContext(apperrors.ErrCodeConfigurationFailure,
			fmt.Sprintf("agent append-config %s exited non-zero", file),
			map[string]any{"exit": res.ExitCode, "stderr": res.Stderr})
	}
	return nil
}

// Start starts the agent daemon. A non-zero exit is logged but not fatal;
// the final status probe reports the actual end state.
func (c *Controller) Start(ctx context.Context) error {
	return c.control(ctx, "start")
}

// Stop stops the agent daemon ahead of configuration changes.
func (c *Controller) Stop(ctx context.Context) error {
	return c.control(ctx, "stop")
}

func (c *Controller) control(ctx context.Context, op string) error {
	slog.Info("agent control", "operation", op)
	res, err := c.run.Run(ctx, sudoPath, c.ctl(), "-a", op)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrCodeConfigurationFailure,
			fmt.Sprintf("failed to %s agent", op), err)
	}
	if !res.Success() {
		slog.Warn("agent control exited non-zero", "operation", op,
			"exit", res.ExitCode, "stderr", res.Stderr)
	}
	return nil
}
