package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvOverrides are environment variables that override file values after
// loading. Prefixed GATEKEEPER_, e.g. GATEKEEPER_REDIS_ADDR.
type EnvOverrides struct {
	RedisAddr     string `envconfig:"REDIS_ADDR"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	WarehousePath string `envconfig:"WAREHOUSE_PATH"`
	LedgerPath    string `envconfig:"LEDGER_PATH"`
	HashStorePath string `envconfig:"HASH_STORE_PATH"`
	SignalURL     string `envconfig:"SIGNAL_URL"`
	AlertURL      string `envconfig:"ALERT_URL"`
}

// Load reads a YAML config file, expands environment variables, unmarshals
// into a Config struct, and applies GATEKEEPER_* environment overrides.
//
// A .env file in the working directory is loaded first when present, so
// local development can keep secrets out of the YAML.
func Load(path string) (*Config, error) {
	// Missing .env is the normal case outside development.
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, fmt.Errorf("cannot read config file %q: %w", path, err)
	}

	expanded := ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("invalid YAML in %s: %w", path, err)
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv overlays GATEKEEPER_* environment variables onto cfg.
func applyEnv(cfg *Config) error {
	var env EnvOverrides
	if err := envconfig.Process("gatekeeper", &env); err != nil {
		return fmt.Errorf("environment overrides: %w", err)
	}
	if env.RedisAddr != "" {
		cfg.Redis.Addr = env.RedisAddr
	}
	if env.RedisPassword != "" {
		cfg.Redis.Password = env.RedisPassword
	}
	if env.WarehousePath != "" {
		cfg.Warehouse.Path = env.WarehousePath
	}
	if env.LedgerPath != "" {
		cfg.Ledger.Path = env.LedgerPath
	}
	if env.HashStorePath != "" {
		cfg.HashStore.Path = env.HashStorePath
	}
	if env.SignalURL != "" {
		cfg.Signal.URL = env.SignalURL
	}
	if env.AlertURL != "" {
		cfg.Alerts.URL = env.AlertURL
	}
	return nil
}
