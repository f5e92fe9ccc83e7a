package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultValues(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "runsc", cfg.RuntimeClass)
	assert.Equal(t, 4.0, cfg.CPUCores)
	assert.Equal(t, int64(8<<30), cfg.MemoryBytes)
	assert.Equal(t, 100, cfg.SampleIntervalMS)
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().ResultsDir, cfg.ResultsDir)
}

func TestLoadOverridesFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cpu_cores: 2\nresults_dir: /tmp/x\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2.0, cfg.CPUCores)
	assert.Equal(t, "/tmp/x", cfg.ResultsDir)
}

func TestEnvOverridesTakePrecedence(t *testing.T) {
	t.Setenv("SAMPLE_INTERVAL_MS", "250")
	t.Setenv("QUEUE_NAME", "custom.queue")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 250, cfg.SampleIntervalMS)
	assert.Equal(t, "custom.queue", cfg.QueueName)
}
