/*
Copyright © 2025 NVIDIA Corporation
SPDX-License-Identifier: Apache-2.0
*/
package agent

import (
	"context"
	"fmt"

	"github.com/coreos/go-systemd/v22/dbus"
)

// UnitName is the agent's systemd unit.
const UnitName = "amazon-cloudwatch-agent.service"

// UnitState returns the systemd ActiveState of the agent unit over dbus.
// Used as a diagnostic when the ctl reports an unknown runtime status; it
// never gates reconciliation.
func UnitState(ctx context.Context) (string, error) {
	conn, err := dbus.NewSystemdConnectionContext(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to connect to systemd: %w", err)
	}
	defer conn.Close()

	prop, err := conn.GetUnitPropertyContext(ctx, UnitName, "ActiveState")
	if err != nil {
		return "", fmt.Errorf("failed to get unit property: %w", err)
	}

	state, ok := prop.Value.Value().(string)
	if !ok {
		return "", fmt.Errorf("unexpected ActiveState type %T", prop.Value.Value())
	}
	return state, nil
}
