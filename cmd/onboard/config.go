package main

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config is the CLI configuration.
type Config struct {
	DataDir    string        `mapstructure:"data_dir" yaml:"data_dir"`
	InMemory   bool          `mapstructure:"in_memory" yaml:"in_memory"`
	LogLevel   string        `mapstructure:"log_level" yaml:"log_level"`
	SessionTTL time.Duration `mapstructure:"session_ttl" yaml:"session_ttl"`
}

// envBindings maps config keys to the environment variables that set them.
var envBindings = map[string]string{
	"data_dir":    "ONBOARD_DATA_DIR",
	"in_memory":   "ONBOARD_IN_MEMORY",
	"log_level":   "ONBOARD_LOG_LEVEL",
	"session_ttl": "ONBOARD_SESSION_TTL",
}

// LoadConfig reads the config file at path, if any, and applies environment
// overrides on top of the defaults. A path that cannot be read is an error.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetDefault("data_dir", "./onboard-data")
	v.SetDefault("in_memory", false)
	v.SetDefault("log_level", "info")
	v.SetDefault("session_ttl", "30m")

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if cfg.SessionTTL <= 0 {
		return nil, fmt.Errorf("session_ttl must be positive, got %s", cfg.SessionTTL)
	}
	return cfg, nil
}

// NewLogger builds a production zap logger at the configured level.
func (c *Config) NewLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log_level: %w", err)
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.Encoding = "console"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return zc.Build()
}
