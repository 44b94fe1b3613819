package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		Environment: EnvironmentConfig{
			Mode:     "sandbox",
			LogLevel: "info",
		},
		Provider: ProviderConfig{
			APIKey:         "test-key",
			TimeoutSeconds: 15,
		},
		Scan: ScanConfig{
			Token:    "scan-token",
			BaseURL:  "https://api.optionsamurai.com/v1",
			Interval: "24h",
		},
		Sync: SyncConfig{
			Interval:     "15m",
			TradeWorkers: 5,
		},
		Account: AccountConfig{Size: 100000},
		Storage: StorageConfig{Path: "data/trades.db"},
		Dashboard: DashboardConfig{
			Enabled: true,
			Addr:    ":9870",
		},
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config fixture: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
environment:
  mode: sandbox
  log_level: debug
provider:
  api_key: test-key
  timeout_seconds: 20
sync:
  interval: 5m
  trade_workers: 3
account:
  size: 50000
storage:
  path: data/trades.db
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Expected config to load successfully, got error: %v", err)
	}
	if cfg.SyncInterval() != 5*time.Minute {
		t.Errorf("sync interval = %v", cfg.SyncInterval())
	}
	if cfg.ProviderTimeout() != 20*time.Second {
		t.Errorf("provider timeout = %v", cfg.ProviderTimeout())
	}
	if cfg.ScanEnabled() {
		t.Error("scan should be disabled without a token")
	}
	if !cfg.IsSandbox() {
		t.Error("expected sandbox mode")
	}
}

func TestLoad_InvalidPath(t *testing.T) {
	_, err := Load("nonexistent.yaml")
	if err == nil {
		t.Error("Expected error when loading nonexistent config file, got nil")
	}
}

func TestLoad_UnknownField(t *testing.T) {
	path := writeConfig(t, `
environment:
  mode: sandbox
provider:
  api_key: test-key
storage:
  path: data/trades.db
surprise: true
`)
	if _, err := Load(path); err == nil {
		t.Error("Expected unknown fields to be rejected")
	}
}

func TestLoad_ExpandsEnvironment(t *testing.T) {
	t.Setenv("TRACKER_TEST_API_KEY", "from-env")
	path := writeConfig(t, `
environment:
  mode: sandbox
provider:
  api_key: ${TRACKER_TEST_API_KEY}
storage:
  path: data/trades.db
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Provider.APIKey != "from-env" {
		t.Errorf("api key = %q, want env expansion", cfg.Provider.APIKey)
	}
}

func TestValidate_Defaults(t *testing.T) {
	cfg := validConfig()
	cfg.Sync.Interval = ""
	cfg.Sync.TradeWorkers = 0
	cfg.Scan.Interval = ""
	cfg.Provider.TimeoutSeconds = 0

	if err := cfg.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
	if cfg.Sync.Interval != "15m" {
		t.Errorf("sync interval default = %q", cfg.Sync.Interval)
	}
	if cfg.Sync.TradeWorkers != 5 {
		t.Errorf("trade workers default = %d", cfg.Sync.TradeWorkers)
	}
	if cfg.Provider.TimeoutSeconds != 15 {
		t.Errorf("timeout default = %d", cfg.Provider.TimeoutSeconds)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad mode", func(c *Config) { c.Environment.Mode = "production" }},
		{"missing api key", func(c *Config) { c.Provider.APIKey = "" }},
		{"missing storage path", func(c *Config) { c.Storage.Path = "" }},
		{"negative account size", func(c *Config) { c.Account.Size = -1 }},
		{"bad sync interval", func(c *Config) { c.Sync.Interval = "soon" }},
		{"negative workers", func(c *Config) { c.Sync.TradeWorkers = -2 }},
		{"scan token without base url", func(c *Config) { c.Scan.BaseURL = "" }},
		{"dashboard without addr", func(c *Config) { c.Dashboard.Addr = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("expected validation error for %s", tt.name)
			}
		})
	}
}
