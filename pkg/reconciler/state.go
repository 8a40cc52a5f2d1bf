/*
Copyright © 2025 NVIDIA Corporation
SPDX-License-Identifier: Apache-2.0
*/
package reconciler

// State is the reconciliation run's position in its control flow. Every run
// advances Init through Done in order; Aborted is terminal and reachable from
// any state on fatal error.
type State uint8

const (
	// StateInit is the starting state.
	StateInit State = iota

	// StatePreflighted means host preliminaries passed.
	StatePreflighted

	// StateStatusKnown means the initial status probe succeeded.
	StateStatusKnown

	// StateConfirmed means the operator approved mutation.
	StateConfirmed

	// StateReconciling means configuration stages are being applied.
	StateReconciling

	// StateVerified means the end state was re-probed and logged.
	StateVerified

	// StateDone is the successful terminal state, including no-op runs.
	StateDone

	// StateAborted is the failure terminal state.
	StateAborted
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StatePreflighted:
		return "preflighted"
	case StateStatusKnown:
		return "status-known"
	case StateConfirmed:
		return "confirmed"
	case StateReconciling:
		return "reconciling"
	case StateVerified:
		return "verified"
	case StateDone:
		return "done"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}
