/*
Copyright © 2025 NVIDIA Corporation
SPDX-License-Identifier: Apache-2.0
*/
package agent

// ConfigStatus is the cumulative configuration level of the CloudWatch agent.
// It is derived fresh on every probe by inspecting the agent's on-disk
// configuration fragments, never stored.
//
// The configured tiers are strictly ordered: NotConfigured < ConfiguredBase <
// ConfiguredSMI < ConfiguredDCGM. NotInstalled, ConfigError and
// ConfigUnknown sit outside the ordering and always abort the run.
type ConfigStatus uint8

const (
	// NotInstalled means the agent package was never installed.
	NotInstalled ConfigStatus = iota

	// NotConfigured means the package is installed but not configured yet.
	NotConfigured

	// ConfiguredBase means base host metrics (mem_available) are configured.
	ConfiguredBase

	// ConfiguredSMI means nvidia-smi GPU metrics are configured.
	ConfiguredSMI

	// ConfiguredDCGM means DCGM GPU profiling metrics are configured.
	ConfiguredDCGM

	// ConfigError means the status query failed; needs manual intervention.
	ConfigError

	// ConfigUnknown is any other unexpected status; needs manual intervention.
	ConfigUnknown
)

// String returns the status name.
func (s ConfigStatus) String() string {
	switch s {
	case NotInstalled:
		return "not-installed"
	case NotConfigured:
		return "not-configured"
	case ConfiguredBase:
		return "configured-base"
	case ConfiguredSMI:
		return "configured-nvidia-smi"
	case ConfiguredDCGM:
		return "configured-nvidia-dcgm"
	case ConfigError:
		return "error"
	default:
		return "unknown"
	}
}

// ordered reports whether s participates in the configuration ordering.
func (s ConfigStatus) ordered() bool {
	switch s {
	case NotConfigured, ConfiguredBase, ConfiguredSMI, ConfiguredDCGM:
		return true
	default:
		return false
	}
}

// Below reports whether s is strictly below t in the configuration ordering.
// Statuses outside the ordering are never below anything; a configuration
// stage targeting t must still be applied exactly when the current status is
// Below(t).
func (s ConfigStatus) Below(t ConfigStatus) bool {
	if !s.ordered() || !t.ordered() {
		return false
	}
	return s < t
}

// RuntimeStatus is the agent daemon's runtime state as reported by the agent
// control tool.
type RuntimeStatus uint8

const (
	// Stopped means the agent is not currently running.
	Stopped RuntimeStatus = iota

	// Running means the agent is up and running.
	Running

	// RuntimeUnknown is any other unexpected runtime state.
	RuntimeUnknown
)

// String returns the status name.
func (s RuntimeStatus) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Running:
		return "running"
	default:
		return "unknown"
	}
}
