/*
Copyright © 2025 NVIDIA Corporation
SPDX-License-Identifier: Apache-2.0
*/
package scrape

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	apperrors "github.com/NVIDIA/dcgm-provision/pkg/errors"
	"github.com/NVIDIA/dcgm-provision/pkg/runner"
)

// ConfigPath is the live scrape configuration path owned by the CloudWatch
// agent. Root-owned, hence the copy goes through sudo.
const ConfigPath = "/opt/aws/amazon-cloudwatch-agent/var/prometheus.yaml"

const jobName = "dcgm_exporter"

const sudoPath = "/usr/bin/sudo"

// Values are the substitutions for a rendered scrape configuration.
type Values struct {
	// PollingIntervalSecs is used for scrape, evaluation, and timeout
	// intervals alike.
	PollingIntervalSecs int
	// Port is the exporter's local metrics port.
	Port int
	// InstanceName is the operator-assigned display name; may be empty.
	InstanceName string
	// InstanceID is the instance identifier from the metadata service.
	InstanceID string
}

// Config mirrors the prometheus scrape configuration the agent consumes.
type Config struct {
	Global        Global      `yaml:"global"`
	ScrapeConfigs []JobConfig `yaml:"scrape_configs"`
}

// Global holds the prometheus global settings.
type Global struct {
	ScrapeInterval     string `yaml:"scrape_interval"`
	EvaluationInterval string `yaml:"evaluation_interval"`
	ScrapeTimeout      string `yaml:"scrape_timeout"`
}

// JobConfig is a single scrape job.
type JobConfig struct {
	JobName       string         `yaml:"job_name"`
	StaticConfigs []StaticConfig `yaml:"static_configs"`
}

// StaticConfig is a static target list with instance labels.
type StaticConfig struct {
	Targets []string `yaml:"targets"`
	Labels  Labels   `yaml:"labels"`
}

// Labels are the instance identity labels attached to scraped samples.
type Labels struct {
	InstanceName string `yaml:"InstanceName"`
	InstanceID   string `yaml:"InstanceId"`
}

// Render produces the scrape configuration YAML for v.
func Render(v Values) ([]byte, error) {
	interval := fmt.Sprintf("%ds", v.PollingIntervalSecs)

	cfg := Config{
		Global: Global{
			ScrapeInterval:     interval,
			EvaluationInterval: interval,
			ScrapeTimeout:      interval,
		},
		ScrapeConfigs: []JobConfig{
			{
				JobName: jobName,
				StaticConfigs: []StaticConfig{
					{
						Targets: []string{fmt.Sprintf("localhost:%d", v.Port)},
						Labels: Labels{
							InstanceName: v.InstanceName,
							InstanceID:   v.InstanceID,
						},
					},
				},
			},
		},
	}

	out, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to render scrape config: %w", err)
	}
	return out, nil
}

// Installer renders the scrape configuration and moves it into the agent's
// live configuration path via a privileged copy.
type Installer struct {
	run runner.Runner

	// dest and tmpDir are overridable in tests.
	dest   string
	tmpDir string
}

// NewInstaller creates an Installer targeting the live configuration path.
func NewInstaller(run runner.Runner) *Installer {
	return &Installer{run: run, dest: ConfigPath, tmpDir: os.TempDir()}
}

// Install writes the rendered configuration to a temporary path and copies
// it into place. The temporary file is removed regardless of the copy
// outcome; a failed copy is fatal for the run.
func (i *Installer) Install(ctx context.Context, v Values) error {
	slog.Info("writing scrape config",
		"dest", i.dest,
		"instanceId", v.InstanceID,
		"instanceName", v.InstanceName)

	rendered, err := Render(v)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrCodeConfigurationFailure,
			"failed to render scrape config", err)
	}

	tmp, err := os.CreateTemp(i.tmpDir, "prometheus-*.yaml")
	if err != nil {
		return apperrors.Wrap(apperrors.ErrCodeConfigurationFailure,
			"failed to create temp scrape config", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(rendered); err != nil {
		tmp.Close()
		return apperrors.Wrap(apperrors.ErrCodeConfigurationFailure,
			"failed to write temp scrape config", err)
	}
	if err := tmp.Close(); err != nil {
		return apperrors.Wrap(apperrors.ErrCodeConfigurationFailure,
			"failed to close temp scrape config", err)
	}

	res, err := i.run.Run(ctx, sudoPath, "cp", tmp.Name(), i.dest)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrCodeConfigurationFailure,
			"failed to copy scrape config into place", err)
	}
	if !res.Success() {
		return apperrors.NewWithContext(apperrors.ErrCodeConfigurationFailure,
			"scrape config copy exited non-zero",
			map[string]any{"exit": res.ExitCode, "stderr": res.Stderr})
	}

	slog.Info("successfully created scrape config")
	return nil
}
