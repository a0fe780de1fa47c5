package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/mini-market/internal/agents"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "marketsim.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "{}\n"))
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.Simulation.Agents)
	assert.Equal(t, 10, cfg.Simulation.Width)
	assert.Equal(t, 10, cfg.Simulation.Height)
	assert.Equal(t, "Asset Trading", cfg.Simulation.Strategy)
	assert.Equal(t, 10.0, cfg.Simulation.InitialWealth)
	assert.Equal(t, int64(0), cfg.Simulation.Seed)
	assert.Equal(t, uint64(100), cfg.Simulation.Ticks)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.False(t, cfg.API.Enabled)
	assert.Empty(t, cfg.Persistence.Path)
}

func TestLoadConfig_FileValues(t *testing.T) {
	path := writeConfig(t, `
simulation:
  agents: 40
  width: 8
  height: 6
  strategy: momentum
  initial_wealth: 25
  seed: 7
  ticks: 500
  interval: 50ms
persistence:
  path: run.db
api:
  enabled: true
  addr: ":9090"
  allowed_origins: ["https://dash.example"]
logging:
  level: debug
  format: json
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 40, cfg.Simulation.Agents)
	assert.Equal(t, "momentum", cfg.Simulation.Strategy)
	assert.Equal(t, 50*time.Millisecond, cfg.Simulation.Interval)
	assert.Equal(t, "run.db", cfg.Persistence.Path)
	assert.True(t, cfg.API.Enabled)
	assert.Equal(t, []string{"https://dash.example"}, cfg.API.AllowedOrigins)

	p, err := cfg.Params()
	require.NoError(t, err)
	assert.Equal(t, agents.StrategyMomentum, p.Strategy)
	assert.Equal(t, int64(7), p.Seed)
	assert.Equal(t, 8, p.Width)
	assert.Equal(t, 6, p.Height)
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "simulation:\n  agents: 40\n")
	t.Setenv("MARKET_SIMULATION_AGENTS", "12")
	t.Setenv("MARKET_SIMULATION_STRATEGY", "wealth_trading")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 12, cfg.Simulation.Agents)
	assert.Equal(t, "wealth_trading", cfg.Simulation.Strategy)
}

func TestLoadConfig_RejectsUnknownStrategy(t *testing.T) {
	path := writeConfig(t, "simulation:\n  strategy: arbitrage\n")

	_, err := LoadConfig(path)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "strategy")
}

func TestLoadConfig_RejectsBadLogLevel(t *testing.T) {
	path := writeConfig(t, "logging:\n  level: loud\n")

	_, err := LoadConfig(path)

	assert.Error(t, err)
}

func TestLoadConfig_KeepsExplicitZeroAndNegativeWealth(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "simulation:\n  initial_wealth: 0\n"))
	require.NoError(t, err)
	assert.Equal(t, 0.0, cfg.Simulation.InitialWealth)

	cfg, err = LoadConfig(writeConfig(t, "simulation:\n  initial_wealth: -2.5\n"))
	require.NoError(t, err)
	assert.Equal(t, -2.5, cfg.Simulation.InitialWealth)

	p, err := cfg.Params()
	require.NoError(t, err)
	assert.Equal(t, -2.5, p.InitialWealth)
}

func TestLoadConfig_ExplicitZeroAgentsIsRejected(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "simulation:\n  agents: 0\n"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "Agents")
}

func TestDefaultConfig(t *testing.T) {
	cfg, err := DefaultConfig()
	require.NoError(t, err)

	assert.Equal(t, DefaultAgents, cfg.Simulation.Agents)
	assert.Equal(t, 10.0, cfg.Simulation.InitialWealth)
	assert.Equal(t, agents.DefaultHistoryCapacity, cfg.Simulation.HistoryCapacity)
	assert.Equal(t, DefaultAPIAddr, cfg.API.Addr)
	assert.NoError(t, ValidateConfig(cfg))
}

func TestValidateConfig_NegativeSizes(t *testing.T) {
	cfg, err := DefaultConfig()
	require.NoError(t, err)
	cfg.Simulation.Width = -2

	err = ValidateConfig(cfg)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "Width")
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggingConfig{Level: "warn", Format: "json"}, &buf)

	logger.Info("hidden")
	logger.Warn("shown", "tick", 3)

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
	assert.Contains(t, buf.String(), `"tick":3`)
}
