package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/talgya/mini-market/internal/agents"
)

// Defaults for a run with no configuration.
const (
	DefaultAgents        = 10
	DefaultWidth         = 10
	DefaultHeight        = 10
	DefaultInitialWealth = 10
	DefaultTicks         = 100
	DefaultReportEvery   = 10
	DefaultAPIAddr       = ":8080"
)

// setDefaults registers the value of every key absent from the file and the
// environment. A key that is present keeps its value, zero included.
func setDefaults(v *viper.Viper) {
	v.SetDefault("simulation.agents", DefaultAgents)
	v.SetDefault("simulation.width", DefaultWidth)
	v.SetDefault("simulation.height", DefaultHeight)
	v.SetDefault("simulation.strategy", agents.StrategyAssetTrading.String())
	v.SetDefault("simulation.initial_wealth", DefaultInitialWealth)
	v.SetDefault("simulation.seed", 0)
	v.SetDefault("simulation.ticks", DefaultTicks)
	v.SetDefault("simulation.interval", "0s")
	v.SetDefault("simulation.report_every", DefaultReportEvery)
	v.SetDefault("simulation.history_capacity", agents.DefaultHistoryCapacity)

	v.SetDefault("persistence.path", "")

	v.SetDefault("api.enabled", false)
	v.SetDefault("api.addr", DefaultAPIAddr)
	v.SetDefault("api.stream_rate", 0)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// DefaultConfig returns the configuration of a run with no file and no
// environment overrides.
func DefaultConfig() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal defaults: %w", err)
	}
	return &cfg, nil
}
