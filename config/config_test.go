package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.ListenAddr)
	assert.Equal(t, "http://localhost:8000", cfg.Agent.BaseURL)
	assert.Equal(t, 8*time.Second, cfg.Agent.Timeout)
	assert.Empty(t, cfg.Database.URL)
	assert.Equal(t, 30*time.Minute, cfg.Sweep.IdleTimeout)
	assert.Equal(t, 5*time.Minute, cfg.Sweep.Interval)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SOUSCHEF_AGENT_BASE_URL", "http://agent.internal:9000")
	t.Setenv("SOUSCHEF_SWEEP_IDLE_TIMEOUT", "1h")
	t.Setenv("SOUSCHEF_LOG_LEVEL", "debug")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "http://agent.internal:9000", cfg.Agent.BaseURL)
	assert.Equal(t, time.Hour, cfg.Sweep.IdleTimeout)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "souschef.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  listen_addr: ":9090"
agent:
  base_url: "http://agent:8000"
  timeout: 3s
database:
  url: "postgres://sc:sc@localhost:5432/souschef"
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.ListenAddr)
	assert.Equal(t, "http://agent:8000", cfg.Agent.BaseURL)
	assert.Equal(t, 3*time.Second, cfg.Agent.Timeout)
	assert.Equal(t, "postgres://sc:sc@localhost:5432/souschef", cfg.Database.URL)
	// Untouched keys keep their defaults.
	assert.Equal(t, 30*time.Minute, cfg.Sweep.IdleTimeout)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Agent: AgentConfig{BaseURL: "http://agent:8000", Timeout: time.Second},
			Sweep: SweepConfig{IdleTimeout: time.Minute, Interval: time.Minute},
		}
	}

	assert.NoError(t, base().Validate())

	noAgent := base()
	noAgent.Agent.BaseURL = ""
	assert.Error(t, noAgent.Validate())

	badTimeout := base()
	badTimeout.Agent.Timeout = 0
	assert.Error(t, badTimeout.Validate())

	badSweep := base()
	badSweep.Sweep.Interval = -time.Second
	assert.Error(t, badSweep.Validate())
}
