package runner

import (
	"context"
	"errors"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOSRun(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	var r OS
	ctx := context.Background()

	t.Run("captures stdout", func(t *testing.T) {
		res, err := r.Run(ctx, "sh", "-c", "echo hello")
		require.NoError(t, err)
		assert.Equal(t, 0, res.ExitCode)
		assert.True(t, res.Success())
		assert.Equal(t, "hello\n", res.Stdout)
	})

	t.Run("non-zero exit is not an error", func(t *testing.T) {
		res, err := r.Run(ctx, "sh", "-c", "echo oops >&2; exit 3")
		require.NoError(t, err)
		assert.Equal(t, 3, res.ExitCode)
		assert.False(t, res.Success())
		assert.Equal(t, "oops\n", res.Stderr)
	})

	t.Run("missing binary is an error", func(t *testing.T) {
		_, err := r.Run(ctx, "definitely-not-a-real-binary-xyz")
		assert.Error(t, err)
	})
}

func TestFakeRun(t *testing.T) {
	f := &Fake{
		Responses: map[string][]Result{
			"docker container inspect x": {
				{Stdout: "exited", ExitCode: 0},
				{Stdout: "running", ExitCode: 0},
			},
		},
		Errs: map[string]error{
			"broken": errors.New("no such binary"),
		},
	}
	ctx := context.Background()

	res, err := f.Run(ctx, "docker", "container", "inspect", "x")
	require.NoError(t, err)
	assert.Equal(t, "exited", res.Stdout)

	res, err = f.Run(ctx, "docker", "container", "inspect", "x")
	require.NoError(t, err)
	assert.Equal(t, "running", res.Stdout)

	// exhausted scripts fall back to empty success
	res, err = f.Run(ctx, "docker", "container", "inspect", "x")
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)

	_, err = f.Run(ctx, "broken")
	assert.Error(t, err)

	assert.Equal(t, 3, f.CallCount("docker container inspect"))
	assert.True(t, f.Called("broken"))
	assert.False(t, f.Called("docker start"))
}

func TestFakeLookPath(t *testing.T) {
	f := &Fake{Missing: []string{"dcgmi"}}

	path, err := f.LookPath("docker")
	require.NoError(t, err)
	assert.Equal(t, "/usr/bin/docker", path)

	_, err = f.LookPath("dcgmi")
	assert.Error(t, err)
}
