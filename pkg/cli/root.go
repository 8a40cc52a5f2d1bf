/*
Copyright © 2025 NVIDIA Corporation
SPDX-License-Identifier: Apache-2.0
*/
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/NVIDIA/dcgm-provision/pkg/agent"
	"github.com/NVIDIA/dcgm-provision/pkg/config"
	"github.com/NVIDIA/dcgm-provision/pkg/docker"
	"github.com/NVIDIA/dcgm-provision/pkg/imds"
	"github.com/NVIDIA/dcgm-provision/pkg/logging"
	"github.com/NVIDIA/dcgm-provision/pkg/preflight"
	"github.com/NVIDIA/dcgm-provision/pkg/reconciler"
	"github.com/NVIDIA/dcgm-provision/pkg/runner"
	"github.com/NVIDIA/dcgm-provision/pkg/scrape"
)

const (
	name           = "dcgm-provision"
	versionDefault = "dev"
)

var (
	// overridden during build with ldflags
	version = versionDefault
	commit  = "unknown"
	date    = "unknown"
)

func rootCmd() *cli.Command {
	return &cli.Command{
		Name:                  name,
		Version:               fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		EnableShellCompletion: true,
		Usage:                 "Configure CloudWatch GPU telemetry with the DCGM exporter",
		Description: `Configures an EC2 GPU host to publish NVIDIA GPU metrics to CloudWatch:
  - Appends base, nvidia-smi, and DCGM metric sections to the CloudWatch agent
  - Runs the DCGM exporter container
  - Installs the Prometheus scrape configuration for the agent

The run is idempotent: already-applied configuration tiers are detected and
skipped, and a fully configured running agent results in no changes at all.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "provisioning config file",
				Value: config.DefaultFile,
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "log level (debug, info, warn, error)",
				Sources: cli.EnvVars("LOG_LEVEL"),
				Value:   "info",
			},
			&cli.BoolFlag{
				Name:    "yes",
				Aliases: []string{"y"},
				Usage:   "skip the confirmation prompt",
			},
		},
		Action: run,
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	cfgFile := cmd.String("config")

	// fail before any logging setup so a missing config leaves no log file
	if !config.Exists(cfgFile) {
		return fmt.Errorf("could not find config file: %s", cfgFile)
	}

	settings, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	closer, err := logging.Setup(name, version, cmd.String("log-level"), logging.DefaultLogPath)
	if err != nil {
		return err
	}
	defer closer.Close()

	slog.Info("starting provisioning run",
		"config", cfgFile,
		"instance_name", settings.InstanceName,
		"package_version", settings.PackageVersion)

	exec := runner.OS{}
	instance := imds.New()

	rec := &reconciler.Reconciler{
		Settings:  settings,
		Agent:     agent.NewController(exec),
		Exporter:  docker.NewExporter(exec),
		Scrape:    scrape.NewInstaller(exec),
		Preflight: preflight.New(exec, instance, settings),
		Instance:  instance,
		Confirm:   confirmFunc(os.Stdin, os.Stdout, settings, cfgFile, cmd.Bool("yes")),
		Sampler:   scrape.Sample,
		UnitState: agent.UnitState,
	}

	state, err := rec.Run(ctx)
	if err != nil {
		slog.Error("provisioning failed", "state", state.String(), "error", err)
		return err
	}

	slog.Info("provisioning completed", "state", state.String())
	return nil
}

// Execute runs the root command with signal-driven cancellation.
// This is called by main.main().
func Execute() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle SIGINT/SIGTERM for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nReceived interrupt signal, shutting down gracefully...")
		cancel()
	}()

	if err := rootCmd().Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
