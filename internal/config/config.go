package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/neogan74/walletdb/internal/persister"
)

// Config represents the application configuration
type Config struct {
	Persistence PersistenceConfig
	Wallet      WalletConfig
	Log         LogConfig
	Metrics     MetricsConfig
}

// PersistenceConfig selects and locates the storage backend
type PersistenceConfig struct {
	// Backend defaults to persister.DefaultBackend when unset.
	Backend string `env:"WALLETDB_BACKEND"`
	// Path is a file for sqlite and bolt, a directory for badger.
	Path        string        `env:"WALLETDB_PATH" envDefault:"./wallet.db"`
	SyncWrites  bool          `env:"WALLETDB_SYNC_WRITES" envDefault:"true"`
	OpenTimeout time.Duration `env:"WALLETDB_OPEN_TIMEOUT" envDefault:"1s"`
}

// WalletConfig contains wallet level settings
type WalletConfig struct {
	Network string `env:"WALLETDB_NETWORK" envDefault:"bitcoin"`
}

// LogConfig contains logging configuration
type LogConfig struct {
	Level  string `env:"WALLETDB_LOG_LEVEL" envDefault:"info"`
	Format string `env:"WALLETDB_LOG_FORMAT" envDefault:"text"`
}

// MetricsConfig contains metrics export settings
type MetricsConfig struct {
	// File receives the metrics in the Prometheus text format when a command
	// finishes. Empty disables the export.
	File string `env:"WALLETDB_METRICS_FILE"`
}

var validNetworks = map[string]bool{
	"bitcoin": true,
	"testnet": true,
	"signet":  true,
	"regtest": true,
}

// Load loads configuration from environment variables with defaults.
// Overrides run after parsing and before validation.
func Load(overrides ...func(*Config)) (*Config, error) {
	return load(env.Options{}, overrides)
}

// LoadFrom loads configuration from the given variables instead of the
// process environment.
func LoadFrom(vars map[string]string, overrides ...func(*Config)) (*Config, error) {
	return load(env.Options{Environment: vars}, overrides)
}

func load(opts env.Options, overrides []func(*Config)) (*Config, error) {
	config := &Config{}
	if err := env.ParseWithOptions(config, opts); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	if strings.TrimSpace(config.Persistence.Backend) == "" {
		config.Persistence.Backend = persister.DefaultBackend().String()
	}
	for _, override := range overrides {
		override(config)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	backend, err := persister.ParseBackend(c.Persistence.Backend)
	if err != nil {
		return err
	}
	c.Persistence.Backend = backend.String()

	if backend != persister.BackendMemory && strings.TrimSpace(c.Persistence.Path) == "" {
		return fmt.Errorf("path must be specified for the %s backend", backend)
	}

	if c.Persistence.OpenTimeout <= 0 {
		return fmt.Errorf("invalid open timeout: %v (must be positive)", c.Persistence.OpenTimeout)
	}

	if !validNetworks[c.Wallet.Network] {
		return fmt.Errorf("invalid network: %s (must be bitcoin, testnet, signet, or regtest)", c.Wallet.Network)
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.Log.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Log.Level)
	}

	validLogFormats := map[string]bool{
		"text": true,
		"json": true,
	}
	if !validLogFormats[c.Log.Format] {
		return fmt.Errorf("invalid log format: %s (must be text or json)", c.Log.Format)
	}

	return nil
}
