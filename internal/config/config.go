// Package config provides configuration management for the tracker.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"
)

const (
	// defaultSyncInterval is used when sync.interval is unset.
	defaultSyncInterval = "15m"
	// defaultScanInterval is used when scan.interval is unset.
	defaultScanInterval = "24h"
	// defaultTradeWorkers bounds concurrent trade synchronization.
	defaultTradeWorkers = 5
	// defaultProviderTimeoutSeconds bounds each quote provider call.
	defaultProviderTimeoutSeconds = 15
)

// Config represents the complete application configuration.
type Config struct {
	Environment EnvironmentConfig `yaml:"environment"`
	Provider    ProviderConfig    `yaml:"provider"`
	Scan        ScanConfig        `yaml:"scan"`
	Sync        SyncConfig        `yaml:"sync"`
	Account     AccountConfig     `yaml:"account"`
	Storage     StorageConfig     `yaml:"storage"`
	Dashboard   DashboardConfig   `yaml:"dashboard"`
}

// EnvironmentConfig defines the environment settings.
type EnvironmentConfig struct {
	Mode     string `yaml:"mode"`      // sandbox | live
	LogLevel string `yaml:"log_level"` // debug | info | warn | error
	LogFile  string `yaml:"log_file"`  // empty disables file logging
}

// ProviderConfig defines quote provider API settings.
type ProviderConfig struct {
	APIKey         string `yaml:"api_key"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// ScanConfig defines the scan provider settings. An empty token disables
// the scan cycle entirely.
type ScanConfig struct {
	Token    string `yaml:"token"`
	BaseURL  string `yaml:"base_url"`
	Interval string `yaml:"interval"`
}

// SyncConfig defines price synchronization settings.
type SyncConfig struct {
	Interval     string `yaml:"interval"`
	TradeWorkers int    `yaml:"trade_workers"`
}

// AccountConfig defines portfolio-level settings used by the analytics.
type AccountConfig struct {
	Size float64 `yaml:"size"`
}

// StorageConfig defines storage settings for trade data.
type StorageConfig struct {
	Path string `yaml:"path"`
}

// DashboardConfig defines the HTTP report endpoint.
type DashboardConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// Load reads and parses the configuration file from the specified path.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config.yaml"
	}

	data, err := os.ReadFile(configPath) // #nosec G304 -- configPath is a user-provided config file path
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables so secrets stay out of the file.
	expanded := os.ExpandEnv(string(data))

	var config Config
	dec := yaml.NewDecoder(strings.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(&config); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &config, nil
}

// Validate checks that all configuration values are valid and consistent,
// filling defaults for unset optional fields.
func (c *Config) Validate() error {
	c.normalize()

	if c.Environment.Mode != "sandbox" && c.Environment.Mode != "live" {
		return fmt.Errorf("environment.mode must be 'sandbox' or 'live'")
	}
	if c.Provider.APIKey == "" {
		return fmt.Errorf("provider.api_key is required")
	}
	if c.Provider.TimeoutSeconds <= 0 {
		return fmt.Errorf("provider.timeout_seconds must be > 0")
	}
	if c.Storage.Path == "" {
		return fmt.Errorf("storage.path is required")
	}
	if c.Account.Size < 0 {
		return fmt.Errorf("account.size must be >= 0")
	}
	if c.Sync.TradeWorkers <= 0 {
		return fmt.Errorf("sync.trade_workers must be > 0")
	}
	if _, err := time.ParseDuration(c.Sync.Interval); err != nil {
		return fmt.Errorf("sync.interval invalid: %w", err)
	}
	if _, err := time.ParseDuration(c.Scan.Interval); err != nil {
		return fmt.Errorf("scan.interval invalid: %w", err)
	}
	if c.ScanEnabled() && c.Scan.BaseURL == "" {
		return fmt.Errorf("scan.base_url is required when scan.token is set")
	}
	if c.Dashboard.Enabled && c.Dashboard.Addr == "" {
		return fmt.Errorf("dashboard.addr is required when dashboard.enabled")
	}
	return nil
}

func (c *Config) normalize() {
	if c.Sync.Interval == "" {
		c.Sync.Interval = defaultSyncInterval
	}
	if c.Sync.TradeWorkers == 0 {
		c.Sync.TradeWorkers = defaultTradeWorkers
	}
	if c.Scan.Interval == "" {
		c.Scan.Interval = defaultScanInterval
	}
	if c.Provider.TimeoutSeconds == 0 {
		c.Provider.TimeoutSeconds = defaultProviderTimeoutSeconds
	}
}

// IsSandbox returns true when the quote provider should use its paper
// endpoint.
func (c *Config) IsSandbox() bool {
	return c.Environment.Mode == "sandbox"
}

// ScanEnabled reports whether the scan ingestion cycle is configured.
func (c *Config) ScanEnabled() bool {
	return c.Scan.Token != ""
}

// SyncInterval returns the configured sync cycle interval.
func (c *Config) SyncInterval() time.Duration {
	d, err := time.ParseDuration(c.Sync.Interval)
	if err != nil {
		return 15 * time.Minute // default
	}
	return d
}

// ScanInterval returns the configured scan cycle interval.
func (c *Config) ScanInterval() time.Duration {
	d, err := time.ParseDuration(c.Scan.Interval)
	if err != nil {
		return 24 * time.Hour // default
	}
	return d
}

// ProviderTimeout returns the per-call quote provider timeout.
func (c *Config) ProviderTimeout() time.Duration {
	return time.Duration(c.Provider.TimeoutSeconds) * time.Second
}
