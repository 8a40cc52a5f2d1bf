/*
Copyright © 2025 NVIDIA Corporation
SPDX-License-Identifier: Apache-2.0
*/
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/ini.v1"
)

// DefaultFile is the fixed-name settings file read from the working
// directory.
const DefaultFile = "aws_dcgm_exporter.cfg"

// section and key names are case-sensitive.
const (
	sectionGeneral  = "general"
	sectionExporter = "dcgm-exporter"

	keyPollingInterval = "polling.interval.secs"
	keyInstanceName    = "instance.name"
	keyRunUser         = "run.user"
	keyPrometheusPort  = "prometheus.port"
	keyPackageVersion  = "package.version"
)

// Settings holds the operator-provided configuration for a provisioning run.
// The value is immutable after Load and passed explicitly through the
// reconciler's operations.
type Settings struct {
	// PollingIntervalSecs is the metrics polling interval in seconds. Used
	// for the scrape intervals and, converted to milliseconds, the exporter
	// container's collection interval.
	PollingIntervalSecs int
	// InstanceName is the operator-assigned display name for the instance.
	// May be empty; an empty name is warned about at confirmation time.
	InstanceName string
	// RunUser is the user the agent runs as. Must be non-empty; enforced as
	// a preflight check.
	RunUser string
	// PrometheusPort is the exporter's published metrics port.
	PrometheusPort int
	// PackageVersion is the exporter image name and tag under the NVIDIA
	// registry namespace (e.g. "dcgm-exporter:4.1.1-4.2.3-ubuntu22.04").
	PackageVersion string
}

// PollingInterval returns the polling interval as a duration.
func (s *Settings) PollingInterval() time.Duration {
	return time.Duration(s.PollingIntervalSecs) * time.Second
}

// PollingIntervalMillis returns the polling interval in milliseconds, the
// unit the exporter container expects.
func (s *Settings) PollingIntervalMillis() int64 {
	return int64(s.PollingIntervalSecs) * 1000
}

// Exists reports whether the settings file is present. Checked before any
// logging or probing so a missing file exits immediately.
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Load reads and validates the settings file at path.
func Load(path string) (*Settings, error) {
	f, err := ini.LoadSources(ini.LoadOptions{}, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	general := f.Section(sectionGeneral)
	exporter := f.Section(sectionExporter)

	interval, err := general.Key(keyPollingInterval).Int()
	if err != nil {
		return nil, fmt.Errorf("invalid %s.%s: %w", sectionGeneral, keyPollingInterval, err)
	}

	port, err := exporter.Key(keyPrometheusPort).Int()
	if err != nil {
		return nil, fmt.Errorf("invalid %s.%s: %w", sectionExporter, keyPrometheusPort, err)
	}

	s := &Settings{
		PollingIntervalSecs: interval,
		InstanceName:        general.Key(keyInstanceName).String(),
		RunUser:             general.Key(keyRunUser).String(),
		PrometheusPort:      port,
		PackageVersion:      exporter.Key(keyPackageVersion).String(),
	}

	if err := s.validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Settings) validate() error {
	if s.PollingIntervalSecs <= 0 {
		return fmt.Errorf("%s.%s must be positive, got %d",
			sectionGeneral, keyPollingInterval, s.PollingIntervalSecs)
	}
	if s.PrometheusPort < 1 || s.PrometheusPort > 65535 {
		return fmt.Errorf("%s.%s must be a valid port, got %d",
			sectionExporter, keyPrometheusPort, s.PrometheusPort)
	}
	if s.PackageVersion == "" {
		return fmt.Errorf("%s.%s is not specified", sectionExporter, keyPackageVersion)
	}
	return nil
}
