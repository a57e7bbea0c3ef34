// Package config provides configuration loading and validation for the reflex
// engine daemon.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"
)

const (
	defaultConfirmMaxSpread     = 50.0
	defaultConfirmMinZoneTicks  = 2
	defaultConfirmProbeLookback = 15
	defaultConfirmRSIOverbought = 70.0
	defaultConfirmRSIOversold   = 30.0

	defaultRiskMaxTradesPerDay          = 10
	defaultRiskMaxConsecutiveFailures   = 3
	defaultRiskCooldownSecsAfterFailure = 300

	defaultBridgeTimeout       = 5 * time.Second
	defaultBridgeRetryAttempts = 3

	defaultServerPort        = 8080
	defaultServerStatsPeriod = 1 * time.Second
)

// Config is the complete reflex-engine daemon configuration.
type Config struct {
	Environment EnvironmentConfig `yaml:"environment"`
	Symbol      string            `yaml:"symbol"`
	Confirm     ConfirmConfig     `yaml:"confirm"`
	Risk        RiskConfig        `yaml:"risk"`
	Bridge      BridgeConfig      `yaml:"bridge"`
	Storage     StorageConfig     `yaml:"storage"`
	Server      ServerConfig      `yaml:"server"`
}

// EnvironmentConfig defines the environment settings.
type EnvironmentConfig struct {
	Mode     string `yaml:"mode"` // paper | live
	LogLevel string `yaml:"log_level"`
}

// ConfirmConfig mirrors filter.Config; cmd/reflexd translates it when building the engine.
type ConfirmConfig struct {
	MaxSpread        float64 `yaml:"max_spread"`
	RequireZoneProbe bool    `yaml:"require_zone_probe"`
	MinZoneTicks     int     `yaml:"min_zone_ticks"`
	ProbeLookback    int     `yaml:"probe_lookback"`
	RSIOverbought    float64 `yaml:"rsi_overbought"`
	RSIOversold      float64 `yaml:"rsi_oversold"`
}

// RiskConfig mirrors risk.Config.
type RiskConfig struct {
	MaxTradesPerDay          int `yaml:"max_trades_per_day"`
	MaxConsecutiveFailures   int `yaml:"max_consecutive_failures"`
	CooldownSecsAfterFailure int `yaml:"cooldown_secs_after_failure"`
}

// BridgeConfig configures the broker bridge HTTP client and its circuit breaker.
type BridgeConfig struct {
	BaseURL          string        `yaml:"base_url"`
	APIKey           string        `yaml:"api_key"`
	Timeout          time.Duration `yaml:"timeout"`
	RetryAttempts    int           `yaml:"retry_attempts"`
	CircuitBreaker   bool          `yaml:"circuit_breaker"`
}

// StorageConfig selects and configures a persistence driver.
type StorageConfig struct {
	Driver     string `yaml:"driver"` // json | postgres
	Path       string `yaml:"path"`
	ConnString string `yaml:"conn_string"`
}

// ServerConfig configures the HTTP/WS server and metrics endpoint.
type ServerConfig struct {
	Port        int           `yaml:"port"`
	AuthToken   string        `yaml:"auth_token"`
	StatsPeriod time.Duration `yaml:"stats_period"`
	MetricsPort int           `yaml:"metrics_port"`
}

// Load reads, expands, parses, normalizes, and validates the config at path.
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.yaml"
	}

	data, err := os.ReadFile(path) // #nosec G304 -- path is an operator-supplied config file path
	if err != nil {
		return nil, fmt.Errorf("reading config file %q: %w", path, err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	dec := yaml.NewDecoder(strings.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config %q: %w", path, err)
	}

	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Normalize fills in defaults for anything left unset.
func (c *Config) Normalize() {
	if strings.TrimSpace(c.Environment.Mode) == "" {
		c.Environment.Mode = "paper"
	}
	if strings.TrimSpace(c.Environment.LogLevel) == "" {
		c.Environment.LogLevel = "info"
	}
	if c.Confirm.MaxSpread == 0 {
		c.Confirm.MaxSpread = defaultConfirmMaxSpread
	}
	if c.Confirm.MinZoneTicks == 0 {
		c.Confirm.MinZoneTicks = defaultConfirmMinZoneTicks
	}
	if c.Confirm.ProbeLookback == 0 {
		c.Confirm.ProbeLookback = defaultConfirmProbeLookback
	}
	if c.Confirm.RSIOverbought == 0 {
		c.Confirm.RSIOverbought = defaultConfirmRSIOverbought
	}
	if c.Confirm.RSIOversold == 0 {
		c.Confirm.RSIOversold = defaultConfirmRSIOversold
	}
	if c.Risk.MaxTradesPerDay == 0 {
		c.Risk.MaxTradesPerDay = defaultRiskMaxTradesPerDay
	}
	if c.Risk.MaxConsecutiveFailures == 0 {
		c.Risk.MaxConsecutiveFailures = defaultRiskMaxConsecutiveFailures
	}
	if c.Risk.CooldownSecsAfterFailure == 0 {
		c.Risk.CooldownSecsAfterFailure = defaultRiskCooldownSecsAfterFailure
	}
	if c.Bridge.Timeout == 0 {
		c.Bridge.Timeout = defaultBridgeTimeout
	}
	if c.Bridge.RetryAttempts == 0 {
		c.Bridge.RetryAttempts = defaultBridgeRetryAttempts
	}
	if strings.TrimSpace(c.Storage.Driver) == "" {
		c.Storage.Driver = "json"
	}
	if c.Server.Port == 0 {
		c.Server.Port = defaultServerPort
	}
	if c.Server.StatsPeriod == 0 {
		c.Server.StatsPeriod = defaultServerStatsPeriod
	}
}

// Validate checks configuration values for consistency.
func (c *Config) Validate() error {
	if c.Environment.Mode != "paper" && c.Environment.Mode != "live" {
		return fmt.Errorf("environment.mode must be 'paper' or 'live'")
	}
	switch strings.ToLower(c.Environment.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("environment.log_level must be one of: debug, info, warn, error")
	}
	if strings.TrimSpace(c.Symbol) == "" {
		return fmt.Errorf("symbol is required")
	}

	if c.Confirm.MaxSpread <= 0 {
		return fmt.Errorf("confirm.max_spread must be > 0")
	}
	if c.Confirm.MinZoneTicks < 1 {
		return fmt.Errorf("confirm.min_zone_ticks must be >= 1")
	}
	if c.Confirm.ProbeLookback < 1 {
		return fmt.Errorf("confirm.probe_lookback must be >= 1")
	}
	if c.Confirm.RSIOverbought <= c.Confirm.RSIOversold {
		return fmt.Errorf("confirm.rsi_overbought must be > confirm.rsi_oversold")
	}

	if c.Risk.MaxTradesPerDay <= 0 {
		return fmt.Errorf("risk.max_trades_per_day must be > 0")
	}
	if c.Risk.MaxConsecutiveFailures <= 0 {
		return fmt.Errorf("risk.max_consecutive_failures must be > 0")
	}
	if c.Risk.CooldownSecsAfterFailure <= 0 {
		return fmt.Errorf("risk.cooldown_secs_after_failure must be > 0")
	}

	if strings.TrimSpace(c.Bridge.BaseURL) == "" {
		return fmt.Errorf("bridge.base_url is required")
	}
	if c.Bridge.Timeout <= 0 {
		return fmt.Errorf("bridge.timeout must be > 0")
	}
	if c.Bridge.RetryAttempts < 0 {
		return fmt.Errorf("bridge.retry_attempts must be >= 0")
	}

	switch strings.ToLower(c.Storage.Driver) {
	case "json":
		if strings.TrimSpace(c.Storage.Path) == "" {
			return fmt.Errorf("storage.path is required when storage.driver is 'json'")
		}
	case "postgres":
		if strings.TrimSpace(c.Storage.ConnString) == "" {
			return fmt.Errorf("storage.conn_string is required when storage.driver is 'postgres'")
		}
	default:
		return fmt.Errorf("storage.driver must be 'json' or 'postgres'")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Server.StatsPeriod <= 0 {
		return fmt.Errorf("server.stats_period must be > 0")
	}

	return nil
}

// IsPaperTrading reports whether the daemon is configured for paper trading.
func (c *Config) IsPaperTrading() bool {
	return c.Environment.Mode == "paper"
}
