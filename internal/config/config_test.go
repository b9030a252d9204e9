package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 13111, cfg.Server.Port)
	assert.Equal(t, "models/best_hf.ckpt", cfg.Model.Path)
	assert.Equal(t, "auto", cfg.Model.Device)
	assert.Equal(t, 2, cfg.Model.PoolSize)
	assert.Equal(t, 640, cfg.Model.InputSize)
	assert.Equal(t, "assets/output", cfg.Output.Dir)
	assert.Equal(t, 30*time.Second, cfg.Probe.Interval)
	assert.Equal(t, 30*time.Second, cfg.Probe.Timeout)
	assert.Equal(t, 5*time.Second, cfg.Probe.StartPeriod)
	assert.Equal(t, 3, cfg.Probe.Retries)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("MODEL_DEVICE", "cpu")
	t.Setenv("PROBE_INTERVAL", "2s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "cpu", cfg.Model.Device)
	assert.Equal(t, 2*time.Second, cfg.Probe.Interval)
}

func TestLoadBadDurationFallsBack(t *testing.T) {
	t.Setenv("PROBE_TIMEOUT", "not-a-duration")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.Probe.Timeout)
}
