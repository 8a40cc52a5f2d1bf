package reconciler

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NVIDIA/dcgm-provision/pkg/agent"
	"github.com/NVIDIA/dcgm-provision/pkg/config"
	"github.com/NVIDIA/dcgm-provision/pkg/docker"
	apperrors "github.com/NVIDIA/dcgm-provision/pkg/errors"
	"github.com/NVIDIA/dcgm-provision/pkg/scrape"
)

// harness wires a Reconciler against stubs that record every collaborator
// interaction into a single ordered event log.
type harness struct {
	events []string

	probes      []probe
	appendErr   map[string]error
	ensureErr   error
	installErr  error
	preErr      error
	confirmed   bool
	confirmErr  error
	instanceErr error
	unitCalls   int
}

type probe struct {
	cs agent.ConfigStatus
	rs agent.RuntimeStatus
}

func (h *harness) record(format string, args ...any) {
	h.events = append(h.events, fmt.Sprintf(format, args...))
}

func (h *harness) Probe(context.Context) (agent.ConfigStatus, agent.RuntimeStatus) {
	h.record("probe")
	p := h.probes[0]
	if len(h.probes) > 1 {
		h.probes = h.probes[1:]
	}
	return p.cs, p.rs
}

func (h *harness) AppendConfig(_ context.Context, file string) error {
	h.record("append %s", file)
	return h.appendErr[file]
}

func (h *harness) Start(context.Context) error {
	h.record("start")
	return nil
}

func (h *harness) Stop(context.Context) error {
	h.record("stop")
	return nil
}

func (h *harness) Ensure(_ context.Context, spec docker.RunSpec) error {
	h.record("ensure %s port=%d interval=%d", spec.Image, spec.Port, spec.IntervalMillis)
	return h.ensureErr
}

func (h *harness) Install(_ context.Context, v scrape.Values) error {
	h.record("install id=%s name=%s", v.InstanceID, v.InstanceName)
	return h.installErr
}

func (h *harness) Check(context.Context) error {
	h.record("preflight")
	return h.preErr
}

func (h *harness) InstanceID(context.Context) (string, error) {
	return "i-0abc123", h.instanceErr
}

func (h *harness) reconciler() *Reconciler {
	return &Reconciler{
		Settings: &config.Settings{
			PollingIntervalSecs: 5,
			InstanceName:        "gpu-node-1",
			RunUser:             "ubuntu",
			PrometheusPort:      9400,
			PackageVersion:      "dcgm-exporter:4.1.1-4.2.3-ubuntu22.04",
		},
		Agent:     h,
		Exporter:  h,
		Scrape:    h,
		Preflight: h,
		Instance:  h,
		Confirm: func(context.Context) (bool, error) {
			h.record("confirm")
			return h.confirmed, h.confirmErr
		},
		Sampler: func(_ context.Context, url string) (int, int, error) {
			h.record("sample %s", url)
			return 2, 10, nil
		},
		UnitState: func(context.Context) (string, error) {
			h.unitCalls++
			return "inactive", nil
		},
	}
}

func TestRunNoOpWhenAlreadyConfigured(t *testing.T) {
	h := &harness{
		probes:    []probe{{agent.ConfiguredDCGM, agent.Running}},
		confirmed: true,
	}
	r := h.reconciler()

	state, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateDone, state)

	// short-circuit: no confirmation, zero mutating commands
	assert.Equal(t, []string{"preflight", "probe"}, h.events)
}

func TestRunIdempotence(t *testing.T) {
	// first run configures everything from scratch
	h := &harness{
		probes: []probe{
			{agent.NotConfigured, agent.Running},
			{agent.ConfiguredDCGM, agent.Running},
		},
		confirmed: true,
	}
	state, err := h.reconciler().Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateDone, state)

	// second run with no intervening external change takes the no-op path
	h2 := &harness{
		probes:    []probe{{agent.ConfiguredDCGM, agent.Running}},
		confirmed: true,
	}
	state, err = h2.reconciler().Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateDone, state)
	assert.Equal(t, []string{"preflight", "probe"}, h2.events)
}

func TestRunFullReconciliation(t *testing.T) {
	h := &harness{
		probes: []probe{
			{agent.NotConfigured, agent.Stopped},
			{agent.ConfiguredDCGM, agent.Running},
		},
		confirmed: true,
	}
	r := h.reconciler()

	state, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateDone, state)

	assert.Equal(t, []string{
		"preflight",
		"probe",
		"confirm",
		"stop",
		"append cloudwatch_config_base.json",
		"append cloudwatch_config_nvidia_smi.json",
		"ensure nvcr.io/nvidia/k8s/dcgm-exporter:4.1.1-4.2.3-ubuntu22.04 port=9400 interval=5000",
		"install id=i-0abc123 name=gpu-node-1",
		"append cloudwatch_config_nvidia_dcgm.json",
		"sample http://localhost:9400/metrics",
		"start",
		"probe",
	}, h.events)
}

func TestRunPartialReconciliation(t *testing.T) {
	h := &harness{
		probes: []probe{
			{agent.ConfiguredSMI, agent.Running},
			{agent.ConfiguredDCGM, agent.Running},
		},
		confirmed: true,
	}

	state, err := h.reconciler().Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateDone, state)

	// lower tiers already present are not re-applied
	assert.NotContains(t, h.events, "append cloudwatch_config_base.json")
	assert.NotContains(t, h.events, "append cloudwatch_config_nvidia_smi.json")
	assert.Contains(t, h.events, "append cloudwatch_config_nvidia_dcgm.json")
}

func TestRunPreflightFailure(t *testing.T) {
	h := &harness{
		probes: []probe{{agent.NotConfigured, agent.Running}},
		preErr: apperrors.New(apperrors.ErrCodePreflightFailure, "no NVIDIA GPU found"),
	}

	state, err := h.reconciler().Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, StateAborted, state)
	assert.Equal(t, apperrors.ErrCodePreflightFailure, apperrors.CodeOf(err))

	// no status probe, no stage application
	assert.Equal(t, []string{"preflight"}, h.events)
}

func TestRunUnsupportedStatusAborts(t *testing.T) {
	tests := []struct {
		name string
		p    probe
	}{
		{"not installed", probe{agent.NotInstalled, agent.RuntimeUnknown}},
		{"probe error", probe{agent.ConfigError, agent.RuntimeUnknown}},
		{"unknown config", probe{agent.ConfigUnknown, agent.Running}},
		{"unknown runtime", probe{agent.NotConfigured, agent.RuntimeUnknown}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &harness{probes: []probe{tt.p}, confirmed: true}

			state, err := h.reconciler().Run(context.Background())
			require.Error(t, err)
			assert.Equal(t, StateAborted, state)
			assert.Equal(t, apperrors.ErrCodeStatusQueryFailure, apperrors.CodeOf(err))
			assert.Equal(t, []string{"preflight", "probe"}, h.events)
		})
	}
}

func TestRunUnknownRuntimeLogsUnitState(t *testing.T) {
	h := &harness{probes: []probe{{agent.NotConfigured, agent.RuntimeUnknown}}}

	_, err := h.reconciler().Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, h.unitCalls)
}

func TestRunDeclinedConfirmation(t *testing.T) {
	h := &harness{
		probes:    []probe{{agent.NotConfigured, agent.Running}},
		confirmed: false,
	}

	state, err := h.reconciler().Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateDone, state)
	assert.Equal(t, []string{"preflight", "probe", "confirm"}, h.events)
}

func TestRunStageFailureAborts(t *testing.T) {
	h := &harness{
		probes: []probe{{agent.NotConfigured, agent.Running}},
		appendErr: map[string]error{
			"cloudwatch_config_nvidia_smi.json": apperrors.New(
				apperrors.ErrCodeConfigurationFailure, "append-config exited non-zero"),
		},
		confirmed: true,
	}

	state, err := h.reconciler().Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, StateAborted, state)
	assert.Equal(t, apperrors.ErrCodeConfigurationFailure, apperrors.CodeOf(err))

	// the agent was stopped and never restarted: manual recovery territory
	assert.Contains(t, h.events, "stop")
	assert.NotContains(t, h.events, "start")
	assert.NotContains(t, h.events, "append cloudwatch_config_nvidia_dcgm.json")
}

func TestRunExporterFailureAborts(t *testing.T) {
	h := &harness{
		probes:    []probe{{agent.ConfiguredSMI, agent.Running}},
		ensureErr: errors.New("docker run failed"),
		confirmed: true,
	}

	state, err := h.reconciler().Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, StateAborted, state)

	// the fragment is never appended when the exporter setup failed
	assert.NotContains(t, h.events, "append cloudwatch_config_nvidia_dcgm.json")
}

func TestRunInvalidPackageVersionAborts(t *testing.T) {
	h := &harness{
		probes:    []probe{{agent.ConfiguredSMI, agent.Running}},
		confirmed: true,
	}
	r := h.reconciler()
	r.Settings.PackageVersion = "dcgm-exporter" // untagged

	state, err := r.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, StateAborted, state)
	assert.Equal(t, apperrors.ErrCodePreconditionMismatch, apperrors.CodeOf(err))
}

func TestStateString(t *testing.T) {
	for s, want := range map[State]string{
		StateInit:        "init",
		StatePreflighted: "preflighted",
		StateStatusKnown: "status-known",
		StateConfirmed:   "confirmed",
		StateReconciling: "reconciling",
		StateVerified:    "verified",
		StateDone:        "done",
		StateAborted:     "aborted",
		State(99):        "unknown",
	} {
		assert.Equal(t, want, s.String())
	}
}
