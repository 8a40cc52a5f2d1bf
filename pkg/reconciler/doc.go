// Package reconciler implements the provisioning control flow as a small
// finite-state machine.
//
// A run moves Init → Preflighted → StatusKnown → Confirmed → Reconciling →
// Verified → Done, aborting from any state on fatal error. Status is derived
// fresh at the start and again at the end; a host already at the target state
// short-circuits from StatusKnown straight to Done without issuing a single
// mutating command, which is what makes re-running the tool safe.
//
// Configuration stages are cumulative and applied in fixed dependency order
// (base, nvidia-smi, nvidia-dcgm); a stage is applied exactly when the
// current status sits strictly below its target.
package reconciler
