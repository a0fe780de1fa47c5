// Package config loads run configuration from defaults, an optional YAML file,
// a .env file and MARKET_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/talgya/mini-market/internal/agents"
	"github.com/talgya/mini-market/internal/engine"
)

// Config is the main configuration struct combining all sub-configs
type Config struct {
	Simulation  SimulationConfig  `mapstructure:"simulation"`
	Persistence PersistenceConfig `mapstructure:"persistence"`
	API         APIConfig         `mapstructure:"api"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// SimulationConfig sets up the model and the tick loop.
type SimulationConfig struct {
	Agents          int           `mapstructure:"agents" validate:"min=1"`
	Width           int           `mapstructure:"width" validate:"min=1"`
	Height          int           `mapstructure:"height" validate:"min=1"`
	Strategy        string        `mapstructure:"strategy" validate:"required,strategy"`
	InitialWealth   float64       `mapstructure:"initial_wealth"`
	Seed            int64         `mapstructure:"seed"`
	Ticks           uint64        `mapstructure:"ticks"`
	Interval        time.Duration `mapstructure:"interval" validate:"gte=0"`
	ReportEvery     uint64        `mapstructure:"report_every"`
	HistoryCapacity int           `mapstructure:"history_capacity" validate:"gte=0"`
}

// PersistenceConfig points at the SQLite export file. An empty path disables
// export.
type PersistenceConfig struct {
	Path string `mapstructure:"path"`
}

// APIConfig controls the observation server.
type APIConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	Addr           string   `mapstructure:"addr" validate:"required_if=Enabled true"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	StreamRate     int      `mapstructure:"stream_rate" validate:"gte=0"`
}

// LoadConfig loads configuration from multiple sources with priority:
// 1. Environment variables (highest priority)
// 2. Config file (config.yaml)
// 3. Defaults (lowest priority)
func LoadConfig(configPath string) (*Config, error) {
	// Load .env file if it exists (doesn't error if missing)
	_ = godotenv.Load()

	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("marketsim")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}

	v.SetEnvPrefix("MARKET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnv(v)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := ValidateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// bindEnv registers every key so AutomaticEnv can fill keys absent from the
// config file.
func bindEnv(v *viper.Viper) {
	keys := []string{
		"simulation.agents", "simulation.width", "simulation.height",
		"simulation.strategy", "simulation.initial_wealth", "simulation.seed",
		"simulation.ticks", "simulation.interval", "simulation.report_every",
		"simulation.history_capacity",
		"persistence.path",
		"api.enabled", "api.addr", "api.allowed_origins", "api.stream_rate",
		"logging.level", "logging.format",
	}
	for _, k := range keys {
		_ = v.BindEnv(k)
	}
}

// Params converts the simulation section into engine parameters.
func (c *Config) Params() (engine.Params, error) {
	strategy, err := agents.ParseStrategy(c.Simulation.Strategy)
	if err != nil {
		return engine.Params{}, err
	}
	return engine.Params{
		Agents:          c.Simulation.Agents,
		Width:           c.Simulation.Width,
		Height:          c.Simulation.Height,
		Strategy:        strategy,
		InitialWealth:   c.Simulation.InitialWealth,
		Seed:            c.Simulation.Seed,
		HistoryCapacity: c.Simulation.HistoryCapacity,
	}, nil
}
