// Package agent drives the Amazon CloudWatch agent through its control tool
// and derives its configuration and runtime status.
//
// Configuration status is never stored: every probe recomputes it from the
// ctl status payload and the marker substrings found in the agent's
// configuration fragment directory. Fragments are append-only and cumulative,
// so the status is "highest marker present", checked in strict precedence
// (DCGM before nvidia-smi before base).
package agent
