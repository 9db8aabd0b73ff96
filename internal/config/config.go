// Package config defines the tuning knobs for the fenrir-engine demo
// harness. Config is loaded from a YAML file with FENRIR_* environment
// variables overriding individual fields. Grounded on
// 0xtitan6-polymarket-mm's internal/config/config.go, which uses the
// same viper.New/SetEnvPrefix/AutomaticEnv/Unmarshal shape; trimmed to
// the handful of knobs this engine actually has, since the matching
// core itself stays config-free (constructor parameters only).
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is the top-level configuration for cmd/fenrir-engine.
type Config struct {
	Dispatcher DispatcherConfig `mapstructure:"dispatcher"`
	Demo       DemoConfig       `mapstructure:"demo"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// DispatcherConfig tunes the single-writer command loop.
type DispatcherConfig struct {
	QueueCapacity int `mapstructure:"queue_capacity"`
}

// DemoConfig tunes the scripted producers in cmd/fenrir-engine's demo
// harness (spec.md S7's scripted scenarios, not a real transport).
type DemoConfig struct {
	ProducerCount    int   `mapstructure:"producer_count"`
	StartingUSDMinor int64 `mapstructure:"starting_usd_minor"`
	StartingBTCMinor int64 `mapstructure:"starting_btc_minor"`
}

// LoggingConfig controls the zerolog global logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// Default returns the configuration used when no file is supplied --
// enough to run the demo harness standalone.
func Default() Config {
	return Config{
		Dispatcher: DispatcherConfig{QueueCapacity: 256},
		Demo: DemoConfig{
			ProducerCount:    4,
			StartingUSDMinor: 100_000 * 1_000_000,
			StartingBTCMinor: 10 * 100_000_000,
		},
		Logging: LoggingConfig{Level: "info", Pretty: true},
	}
}

// Load reads config from a YAML file, falling back to Default for any
// field the file or environment does not set. path may be empty, in
// which case only environment overrides and defaults apply.
func Load(path string) (Config, error) {
	v := viper.New()
	def := Default()
	v.SetDefault("dispatcher.queue_capacity", def.Dispatcher.QueueCapacity)
	v.SetDefault("demo.producer_count", def.Demo.ProducerCount)
	v.SetDefault("demo.starting_usd_minor", def.Demo.StartingUSDMinor)
	v.SetDefault("demo.starting_btc_minor", def.Demo.StartingBTCMinor)
	v.SetDefault("logging.level", def.Logging.Level)
	v.SetDefault("logging.pretty", def.Logging.Pretty)

	v.SetEnvPrefix("FENRIR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

// Validate checks that the loaded configuration is usable.
func (c Config) Validate() error {
	if c.Dispatcher.QueueCapacity <= 0 {
		return fmt.Errorf("dispatcher.queue_capacity must be > 0")
	}
	if c.Demo.ProducerCount <= 0 {
		return fmt.Errorf("demo.producer_count must be > 0")
	}
	if c.Demo.StartingUSDMinor < 0 || c.Demo.StartingBTCMinor < 0 {
		return fmt.Errorf("demo starting balances must be non-negative")
	}
	return nil
}
