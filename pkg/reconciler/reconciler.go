/*
Copyright © 2025 NVIDIA Corporation
SPDX-License-Identifier: Apache-2.0
*/
package reconciler

import (
	"context"
	"log/slog"

	"github.com/NVIDIA/dcgm-provision/pkg/agent"
	"github.com/NVIDIA/dcgm-provision/pkg/config"
	"github.com/NVIDIA/dcgm-provision/pkg/docker"
	apperrors "github.com/NVIDIA/dcgm-provision/pkg/errors"
	"github.com/NVIDIA/dcgm-provision/pkg/scrape"
)

// AgentController drives the monitoring agent.
type AgentController interface {
	Probe(ctx context.Context) (agent.ConfigStatus, agent.RuntimeStatus)
	AppendConfig(ctx context.Context, file string) error
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// ExporterEnsurer brings the exporter container to a running state.
type ExporterEnsurer interface {
	Ensure(ctx context.Context, spec docker.RunSpec) error
}

// ScrapeInstaller installs the rendered scrape configuration.
type ScrapeInstaller interface {
	Install(ctx context.Context, v scrape.Values) error
}

// Prechecker validates host preliminaries.
type Prechecker interface {
	Check(ctx context.Context) error
}

// InstanceResolver resolves the local instance identity.
type InstanceResolver interface {
	InstanceID(ctx context.Context) (string, error)
}

// Reconciler owns the entire provisioning control flow: probe status,
// validate preliminaries, compute still-required stages, apply them in fixed
// order, and re-probe to confirm. Execution is strictly sequential; once
// reconciliation begins there is no rollback path.
type Reconciler struct {
	Settings  *config.Settings
	Agent     AgentController
	Exporter  ExporterEnsurer
	Scrape    ScrapeInstaller
	Preflight Prechecker
	Instance  InstanceResolver

	// Confirm is the operator yes/no gate invoked before any mutation.
	Confirm func(ctx context.Context) (bool, error)

	// Sampler reads the exporter metrics endpoint after the DCGM stage for
	// an initial reading in the run log. Optional; failures are advisory.
	Sampler func(ctx context.Context, url string) (families, samples int, err error)

	// UnitState reports the agent's systemd unit state, logged as a
	// diagnostic when the runtime status probe comes back unknown. Optional.
	UnitState func(ctx context.Context) (string, error)

	state State
}

// Run executes one reconciliation pass and returns the terminal state.
func (r *Reconciler) Run(ctx context.Context) (State, error) {
	r.setState(StateInit)

	if err := r.Preflight.Check(ctx); err != nil {
		return r.abort(err)
	}
	r.setState(StatePreflighted)

	slog.Info("getting current agent status")
	cs, rs := r.Agent.Probe(ctx)
	slog.Info("agent status", "config", cs.String(), "runtime", rs.String())

	if rs == agent.RuntimeUnknown {
		r.logUnitState(ctx)
	}
	if cs == agent.NotInstalled || cs == agent.ConfigError || cs == agent.ConfigUnknown ||
		rs == agent.RuntimeUnknown {
		return r.abort(apperrors.Newf(apperrors.ErrCodeStatusQueryFailure,
			"unsupported agent status (%s, %s), cannot proceed with configuration", cs, rs))
	}
	r.setState(StateStatusKnown)

	if cs == agent.ConfiguredDCGM && rs == agent.Running {
		slog.Info("agent is set up and running already, no changes required")
		r.setState(StateDone)
		return r.state, nil
	}

	ok, err := r.Confirm(ctx)
	if err != nil {
		return r.abort(err)
	}
	if !ok {
		slog.Info("not confirmed, exiting without changes")
		r.setState(StateDone)
		return r.state, nil
	}
	r.setState(StateConfirmed)

	r.setState(StateReconciling)

	// stop ahead of configuration; a mid-reconcile failure can leave the
	// agent stopped, requiring manual recovery
	if err := r.Agent.Stop(ctx); err != nil {
		return r.abort(err)
	}

	for _, st := range requiredStages(cs) {
		slog.Info("applying configuration stage", "stage", st.Name)
		if err := r.applyStage(ctx, st); err != nil {
			return r.abort(err)
		}
	}

	if err := r.Agent.Start(ctx); err != nil {
		return r.abort(err)
	}

	slog.Info("getting final agent status")
	finalConfig, finalRuntime := r.Agent.Probe(ctx)
	slog.Info("agent status", "config", finalConfig.String(), "runtime", finalRuntime.String())
	r.setState(StateVerified)

	r.setState(StateDone)
	return r.state, nil
}

// applyStage applies one configuration stage. The DCGM stage additionally
// orchestrates the exporter container and installs the scrape configuration
// before appending the agent fragment.
func (r *Reconciler) applyStage(ctx context.Context, st Stage) error {
	if st.Target == agent.ConfiguredDCGM {
		if err := r.setupDCGM(ctx); err != nil {
			return err
		}
	}

	if err := r.Agent.AppendConfig(ctx, st.Fragment); err != nil {
		return err
	}

	if st.Target == agent.ConfiguredDCGM {
		r.sampleMetrics(ctx)
	}
	return nil
}

// setupDCGM ensures the exporter container is running and the scrape
// configuration is in place.
func (r *Reconciler) setupDCGM(ctx context.Context) error {
	image, err := docker.ImageRef(r.Settings.PackageVersion)
	if err != nil {
		return err
	}

	if err := r.Exporter.Ensure(ctx, docker.RunSpec{
		Image:          image,
		Port:           r.Settings.PrometheusPort,
		IntervalMillis: r.Settings.PollingIntervalMillis(),
		MetricsFile:    docker.MetricsFileName,
	}); err != nil {
		return err
	}

	instanceID, err := r.Instance.InstanceID(ctx)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrCodeConfigurationFailure,
			"unable to resolve instance-id for scrape config", err)
	}

	return r.Scrape.Install(ctx, scrape.Values{
		PollingIntervalSecs: r.Settings.PollingIntervalSecs,
		Port:                r.Settings.PrometheusPort,
		InstanceName:        r.Settings.InstanceName,
		InstanceID:          instanceID,
	})
}

// sampleMetrics logs an initial reading from the exporter endpoint. The
// exporter may not be serving yet; failure never fails the run.
func (r *Reconciler) sampleMetrics(ctx context.Context) {
	if r.Sampler == nil {
		return
	}

	url := scrape.EndpointURL(r.Settings.PrometheusPort)
	families, samples, err := r.Sampler(ctx, url)
	if err != nil {
		slog.Warn("initial metrics not available yet", "url", url, "error", err)
		return
	}
	slog.Info("initial exporter metrics", "url", url,
		"families", families, "samples", samples)
}

// logUnitState records the agent's systemd state for diagnosis.
func (r *Reconciler) logUnitState(ctx context.Context) {
	if r.UnitState == nil {
		return
	}
	state, err := r.UnitState(ctx)
	if err != nil {
		slog.Warn("unable to read agent systemd unit state", "error", err)
		return
	}
	slog.Info("agent systemd unit state", "unit", agent.UnitName, "state", state)
}

func (r *Reconciler) setState(s State) {
	slog.Debug("state transition", "from", r.state.String(), "to", s.String())
	r.state = s
}

func (r *Reconciler) abort(err error) (State, error) {
	r.setState(StateAborted)
	return r.state, err
}
