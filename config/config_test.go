package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "credvault.hcl")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadConfig_Full(t *testing.T) {
	path := writeConfig(t, `
master_secret      = "0123456789abcdef"
clear_on_startup   = false
allow_global_reset = true
log_level          = "debug"
log_format         = "json"
probe_timeout      = "5s"

storage "file" {
  path = "/var/lib/credvault/tokens.json"
}

rate_limit {
  max_attempts = 3
  window       = "10m"
}
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "0123456789abcdef", cfg.MasterSecret)
	assert.True(t, cfg.AllowGlobalReset)
	assert.Equal(t, "debug", cfg.LogLevel)

	require.NotNil(t, cfg.Storage)
	assert.Equal(t, "file", cfg.Storage.Type)
	assert.Equal(t, map[string]string{
		"type": "file",
		"path": "/var/lib/credvault/tokens.json",
	}, cfg.Storage.Config())

	require.NotNil(t, cfg.RateLimit)
	assert.Equal(t, 3, cfg.RateLimit.MaxAttempts)

	window, err := cfg.RateLimit.WindowDuration()
	require.NoError(t, err)
	assert.Equal(t, 10*time.Minute, window)

	timeout, err := cfg.ProbeTimeoutDuration()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, timeout)
}

func TestLoadConfig_Defaults(t *testing.T) {
	path := writeConfig(t, `master_secret = "abc"`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	require.NotNil(t, cfg.Storage)
	assert.Equal(t, "inmem", cfg.Storage.Type)

	require.NotNil(t, cfg.RateLimit)
	assert.Equal(t, 5, cfg.RateLimit.MaxAttempts)

	window, err := cfg.RateLimit.WindowDuration()
	require.NoError(t, err)
	assert.Equal(t, 15*time.Minute, window)

	timeout, err := cfg.ProbeTimeoutDuration()
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, timeout)
}

func TestLoadConfig_BareSecondsWindow(t *testing.T) {
	path := writeConfig(t, `
rate_limit {
  window = "900"
}
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	window, err := cfg.RateLimit.WindowDuration()
	require.NoError(t, err)
	assert.Equal(t, 900*time.Second, window)
}

func TestLoadConfig_InvalidWindow(t *testing.T) {
	path := writeConfig(t, `
rate_limit {
  window = "soon"
}
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	_, err = cfg.RateLimit.WindowDuration()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid rate_limit window")
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.hcl"))
	require.Error(t, err)
}

func TestLoadConfig_MalformedHCL(t *testing.T) {
	path := writeConfig(t, `storage "file" {`)

	_, err := LoadConfig(path)
	require.Error(t, err)
}
