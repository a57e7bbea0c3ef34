package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const validYAML = `
environment:
  mode: paper
  log_level: info
symbol: BTCUSD
bridge:
  base_url: http://localhost:9001
storage:
  driver: json
  path: ./data/reflex.json
server:
  port: 8080
`

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeTempConfig(t, validYAML)
	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, 50.0, cfg.Confirm.MaxSpread)
	require.Equal(t, 15, cfg.Confirm.ProbeLookback)
	require.Equal(t, 10, cfg.Risk.MaxTradesPerDay)
	require.Equal(t, 300, cfg.Risk.CooldownSecsAfterFailure)
	require.True(t, cfg.IsPaperTrading())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestLoadExpandsEnvVars(t *testing.T) {
	t.Setenv("BRIDGE_KEY", "super-secret")
	path := writeTempConfig(t, `
environment:
  mode: paper
  log_level: info
symbol: BTCUSD
bridge:
  base_url: http://localhost:9001
  api_key: ${BRIDGE_KEY}
storage:
  driver: json
  path: ./data/reflex.json
server:
  port: 8080
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "super-secret", cfg.Bridge.APIKey)
}

func TestValidateRejectsUnknownMode(t *testing.T) {
	cfg := &Config{Environment: EnvironmentConfig{Mode: "yolo", LogLevel: "info"}}
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsBadRSIBand(t *testing.T) {
	cfg := baseValidConfig()
	cfg.Confirm.RSIOverbought = 20
	cfg.Confirm.RSIOversold = 30
	require.ErrorContains(t, cfg.Validate(), "rsi_overbought")
}

func TestValidatePostgresRequiresConnString(t *testing.T) {
	cfg := baseValidConfig()
	cfg.Storage.Driver = "postgres"
	cfg.Storage.ConnString = ""
	require.ErrorContains(t, cfg.Validate(), "conn_string")
}

func baseValidConfig() *Config {
	cfg := &Config{
		Environment: EnvironmentConfig{Mode: "paper", LogLevel: "info"},
		Symbol:      "BTCUSD",
		Bridge:      BridgeConfig{BaseURL: "http://localhost:9001"},
		Storage:     StorageConfig{Driver: "json", Path: "./data.json"},
	}
	cfg.Normalize()
	return cfg
}
