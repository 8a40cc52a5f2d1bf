/*
Copyright © 2025 NVIDIA Corporation
SPDX-License-Identifier: Apache-2.0
*/
package preflight

import (
	"context"
	"log/slog"
	"os/user"
	"strings"

	"github.com/NVIDIA/dcgm-provision/pkg/config"
	apperrors "github.com/NVIDIA/dcgm-provision/pkg/errors"
	"github.com/NVIDIA/dcgm-provision/pkg/runner"
)

// InstanceResolver resolves the local instance identity.
type InstanceResolver interface {
	InstanceID(ctx context.Context) (string, error)
}

// Checker validates host preliminaries before any mutation. Checks run in a
// fixed order and the first failure aborts the run; none are retried.
type Checker struct {
	run      runner.Runner
	instance InstanceResolver
	settings *config.Settings

	// currentUser is overridable in tests.
	currentUser func() (*user.User, error)
}

// New creates a Checker.
func New(run runner.Runner, instance InstanceResolver, settings *config.Settings) *Checker {
	return &Checker{
		run:         run,
		instance:    instance,
		settings:    settings,
		currentUser: user.Current,
	}
}

// Check runs all preflight validations in order.
func (c *Checker) Check(ctx context.Context) error {
	slog.Info("performing initial checks")

	if _, err := c.instance.InstanceID(ctx); err != nil {
		return apperrors.Wrap(apperrors.ErrCodePreflightFailure,
			"unable to locate local instance-id", err)
	}

	if c.settings.InstanceName != "" {
		slog.Info("using instance name from config file", "name", c.settings.InstanceName)
	}

	if err := c.checkGPU(ctx); err != nil {
		return err
	}
	if err := c.checkTool(ctx, "nvidia-smi",
		"no 'nvidia-smi' (NVIDIA System Mgmt. Interface) found on this host"); err != nil {
		return err
	}
	if err := c.checkTool(ctx, "dcgmi",
		"no 'dcgmi' (DCGM Interface) found on this host", "discovery", "-l"); err != nil {
		return err
	}

	if c.settings.RunUser == "" {
		return apperrors.New(apperrors.ErrCodePreflightFailure,
			"user to run the agent as is not specified in config file")
	}

	u, err := c.currentUser()
	if err != nil {
		return apperrors.Wrap(apperrors.ErrCodePreflightFailure,
			"unable to determine invoking user", err)
	}
	if u.Uid == "0" || u.Username == "root" {
		return apperrors.New(apperrors.ErrCodePreflightFailure,
			"please run as a non-root user, e.g. 'ubuntu'")
	}

	if _, err := c.run.LookPath("docker"); err != nil {
		return apperrors.Wrap(apperrors.ErrCodePreflightFailure,
			"docker not found, required for exporter setup", err)
	}

	slog.Info("initial checks completed")
	return nil
}

// checkGPU verifies an NVIDIA device is on the PCI bus.
func (c *Checker) checkGPU(ctx context.Context) error {
	path, err := c.run.LookPath("lspci")
	if err != nil {
		return apperrors.Wrap(apperrors.ErrCodePreflightFailure,
			"lspci not found, cannot verify GPU presence", err)
	}

	res, err := c.run.Run(ctx, path)
	if err != nil || !res.Success() {
		return apperrors.WrapWithContext(apperrors.ErrCodePreflightFailure,
			"GPU bus listing failed", err,
			map[string]any{"exit": res.ExitCode, "stderr": res.Stderr})
	}
	if !strings.Contains(strings.ToLower(res.Stdout), "nvidia") {
		return apperrors.New(apperrors.ErrCodePreflightFailure,
			"no NVIDIA GPU found on this host, cannot continue with setup")
	}
	return nil
}

// checkTool verifies a vendor tool is present and exits zero.
func (c *Checker) checkTool(ctx context.Context, name, failMsg string, args ...string) error {
	path, err := c.run.LookPath(name)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrCodePreflightFailure, failMsg, err)
	}

	res, err := c.run.Run(ctx, path, args...)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrCodePreflightFailure, failMsg, err)
	}
	if !res.Success() {
		return apperrors.NewWithContext(apperrors.ErrCodePreflightFailure, failMsg,
			map[string]any{"exit": res.ExitCode, "stderr": res.Stderr})
	}
	return nil
}
