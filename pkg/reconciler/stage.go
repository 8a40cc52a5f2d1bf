/*
Copyright © 2025 NVIDIA Corporation
SPDX-License-Identifier: Apache-2.0
*/
package reconciler

import (
	"github.com/NVIDIA/dcgm-provision/pkg/agent"
)

// Stage is one cumulative configuration tier.
type Stage struct {
	// Name identifies the stage in logs.
	Name string
	// Target is the configuration level the stage establishes.
	Target agent.ConfigStatus
	// Fragment is the agent configuration fragment the stage appends,
	// shipped alongside the binary in the working directory.
	Fragment string
}

// stages in fixed dependency order: base metrics before nvidia-smi metrics
// before DCGM metrics.
var stages = []Stage{
	{Name: "base", Target: agent.ConfiguredBase, Fragment: "cloudwatch_config_base.json"},
	{Name: "nvidia-smi", Target: agent.ConfiguredSMI, Fragment: "cloudwatch_config_nvidia_smi.json"},
	{Name: "nvidia-dcgm", Target: agent.ConfiguredDCGM, Fragment: "cloudwatch_config_nvidia_dcgm.json"},
}

// setupRequired reports whether the stage establishing target must still be
// applied given the current status. Stages are cumulative and append-only:
// a stage is required exactly when the current status sits strictly below its
// target in the configuration ordering, so applying a higher stage never
// re-applies a lower one already present.
func setupRequired(target, current agent.ConfigStatus) bool {
	switch target {
	case agent.ConfiguredBase:
		return current == agent.NotConfigured
	case agent.ConfiguredSMI:
		return current == agent.NotConfigured ||
			current == agent.ConfiguredBase
	case agent.ConfiguredDCGM:
		return current == agent.NotConfigured ||
			current == agent.ConfiguredBase ||
			current == agent.ConfiguredSMI
	default:
		return false
	}
}

// requiredStages returns the stages still to apply for current, in order.
func requiredStages(current agent.ConfigStatus) []Stage {
	var out []Stage
	for _, st := range stages {
		if setupRequired(st.Target, current) {
			out = append(out, st)
		}
	}
	return out
}
