package docker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/NVIDIA/dcgm-provision/pkg/errors"
	"github.com/NVIDIA/dcgm-provision/pkg/runner"
)

const (
	psCmd      = "/usr/bin/docker ps --format {{.Names}}"
	inspectCmd = "/usr/bin/docker container inspect --format {{.State.Status}} dcgm-exporter"
	startCmd   = "/usr/bin/sudo /usr/bin/docker start dcgm-exporter"
)

// testExporter returns an Exporter whose metrics-file expectation points at
// a real temp file, plus the matching RunSpec.
func testExporter(t *testing.T, fake *runner.Fake) (*Exporter, RunSpec) {
	t.Helper()

	metricsFile := filepath.Join(t.TempDir(), MetricsFileName)
	require.NoError(t, os.WriteFile(metricsFile, []byte("DCGM_FI_DEV_GPU_UTIL, gauge\n"), 0644))
	resolved, err := filepath.EvalSymlinks(metricsFile)
	require.NoError(t, err)

	e := NewExporter(fake)
	e.expectedMetricsPath = resolved

	return e, RunSpec{
		Image:          "nvcr.io/nvidia/k8s/dcgm-exporter:4.1.1-4.2.3-ubuntu22.04",
		Port:           9400,
		IntervalMillis: 5000,
		MetricsFile:    metricsFile,
	}
}

func runCmd(spec RunSpec, resolvedMetrics string) string {
	return fmt.Sprintf("/usr/bin/sudo /usr/bin/docker run --pid=host --privileged "+
		"-e DCGM_EXPORTER_INTERVAL=%d --gpus all --restart=always -d "+
		"-v /proc:/proc -v %s:/etc/dcgm-exporter/default-counters.csv "+
		"-p %d:%d --name dcgm-exporter %s",
		spec.IntervalMillis, resolvedMetrics, spec.Port, spec.Port, spec.Image)
}

func TestEnsureAlreadyRunningByName(t *testing.T) {
	fake := &runner.Fake{
		Responses: map[string][]runner.Result{
			psCmd: {{Stdout: "some-container\ndcgm-exporter\n"}},
		},
	}
	e, spec := testExporter(t, fake)

	require.NoError(t, e.Ensure(context.Background(), spec))

	assert.Equal(t, []string{psCmd}, fake.Calls, "no further commands after the name match")
}

func TestEnsureInspectReportsRunning(t *testing.T) {
	fake := &runner.Fake{
		Responses: map[string][]runner.Result{
			psCmd:      {{Stdout: "other\n"}},
			inspectCmd: {{Stdout: "running\n"}},
		},
	}
	e, spec := testExporter(t, fake)

	require.NoError(t, e.Ensure(context.Background(), spec))

	assert.Equal(t, []string{psCmd, inspectCmd}, fake.Calls)
}

func TestEnsureExitedStartSucceeds(t *testing.T) {
	fake := &runner.Fake{
		Responses: map[string][]runner.Result{
			psCmd: {{Stdout: ""}},
			inspectCmd: {
				{Stdout: "exited\n"},
				{Stdout: "running\n"},
			},
		},
	}
	e, spec := testExporter(t, fake)

	require.NoError(t, e.Ensure(context.Background(), spec))

	// exactly one start and exactly one re-probe, no create
	assert.Equal(t, []string{psCmd, inspectCmd, startCmd, inspectCmd}, fake.Calls)
}

func TestEnsureExitedStartDoesNotTake(t *testing.T) {
	fake := &runner.Fake{
		Responses: map[string][]runner.Result{
			psCmd: {{Stdout: ""}},
			inspectCmd: {
				{Stdout: "exited\n"},
				{Stdout: "exited\n"},
			},
		},
	}
	e, spec := testExporter(t, fake)

	require.NoError(t, e.Ensure(context.Background(), spec))

	resolved, _ := filepath.EvalSymlinks(spec.MetricsFile)
	assert.Equal(t, []string{
		psCmd,
		inspectCmd,
		startCmd,
		inspectCmd,
		runCmd(spec, resolved),
	}, fake.Calls, "creation proceeds after the single failed restart")
}

func TestEnsureAbsentCreates(t *testing.T) {
	fake := &runner.Fake{
		Responses: map[string][]runner.Result{
			psCmd:      {{Stdout: ""}},
			inspectCmd: {{ExitCode: 1, Stderr: "no such container"}},
		},
	}
	e, spec := testExporter(t, fake)

	require.NoError(t, e.Ensure(context.Background(), spec))

	resolved, _ := filepath.EvalSymlinks(spec.MetricsFile)
	assert.Equal(t, []string{psCmd, inspectCmd, runCmd(spec, resolved)}, fake.Calls)
}

func TestEnsureCreateFails(t *testing.T) {
	fake := &runner.Fake{
		Responses: map[string][]runner.Result{
			psCmd:      {{Stdout: ""}},
			inspectCmd: {{ExitCode: 1}},
		},
	}
	e, spec := testExporter(t, fake)
	resolved, _ := filepath.EvalSymlinks(spec.MetricsFile)
	fake.Responses[runCmd(spec, resolved)] = []runner.Result{
		{ExitCode: 125, Stderr: "could not select device driver"},
	}

	err := e.Ensure(context.Background(), spec)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeConfigurationFailure, apperrors.CodeOf(err))
}

func TestEnsureMetricsFileMissing(t *testing.T) {
	fake := &runner.Fake{
		Responses: map[string][]runner.Result{
			psCmd:      {{Stdout: ""}},
			inspectCmd: {{ExitCode: 1}},
		},
	}
	e, spec := testExporter(t, fake)
	spec.MetricsFile = filepath.Join(t.TempDir(), MetricsFileName) // never written

	err := e.Ensure(context.Background(), spec)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodePreconditionMismatch, apperrors.CodeOf(err))
	assert.Zero(t, fake.CallCount("/usr/bin/sudo /usr/bin/docker run"))
}

func TestEnsureMetricsFileWrongPath(t *testing.T) {
	fake := &runner.Fake{
		Responses: map[string][]runner.Result{
			psCmd:      {{Stdout: ""}},
			inspectCmd: {{ExitCode: 1}},
		},
	}
	e, spec := testExporter(t, fake)
	e.expectedMetricsPath = ExpectedMetricsPath // the real fixed path, not our temp file

	err := e.Ensure(context.Background(), spec)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodePreconditionMismatch, apperrors.CodeOf(err))
}

func TestImageRef(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		ref, err := ImageRef("dcgm-exporter:4.1.1-4.2.3-ubuntu22.04")
		require.NoError(t, err)
		assert.Equal(t, "nvcr.io/nvidia/k8s/dcgm-exporter:4.1.1-4.2.3-ubuntu22.04", ref)
	})

	t.Run("untagged", func(t *testing.T) {
		_, err := ImageRef("dcgm-exporter")
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodePreconditionMismatch, apperrors.CodeOf(err))
	})

	t.Run("invalid", func(t *testing.T) {
		_, err := ImageRef("DCGM EXPORTER::bad")
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodePreconditionMismatch, apperrors.CodeOf(err))
	})
}
