package cli

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/DRSN-tech/clip-backend/internal/cfg"
	"github.com/DRSN-tech/clip-backend/pkg/e"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clipctl.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
backend: Remote
ml_addr: clip:50051
threads: 8
timeout: 5s
`)

	c, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, cfg.BackendRemote, c.Backend)
	assert.Equal(t, "clip:50051", c.MLAddr)
	assert.Equal(t, 8, c.Threads)
	assert.Equal(t, 5*time.Second, c.Timeout)
	assert.Equal(t, Default().ModelPath, c.ModelPath)
}

func TestLoad_DefaultPathMissing(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	c, err := Load("")

	require.NoError(t, err)
	assert.Equal(t, Default(), c)
}

func TestLoad_ExplicitPathMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))

	assert.Error(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string]string{
		"backend":   "backend: onnx",
		"threads":   "threads: 0",
		"no model":  "backend: clipcpp\nmodel_path: \"\"",
		"no addr":   "backend: remote\nml_addr: \"\"",
		"malformed": "threads: [",
	}

	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestValidate_WrapsSentinel(t *testing.T) {
	c := Default()
	c.Backend = "tf"

	assert.ErrorIs(t, c.Validate(), e.ErrIncorrectEnvVariable)
}
