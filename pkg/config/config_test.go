package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/avionyx/flightd/internal/bytesize"
)

func TestLoad_NoConfigFileUsesDefaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected default log level INFO, got %q", cfg.Logging.Level)
	}
	if cfg.Store.URI != "mongodb://localhost:27017" {
		t.Errorf("Expected default store URI, got %q", cfg.Store.URI)
	}
	if cfg.Ingest.FlushInterval != 500*time.Millisecond {
		t.Errorf("Expected default flush interval 500ms, got %v", cfg.Ingest.FlushInterval)
	}
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
logging:
  level: debug
  format: json
store:
  uri: mongodb://db:27017
  database: telemetry
auth:
  issuer: test-issuer
api:
  port: 9999
  max_body_size: 64MB
mqtt:
  url: tcp://broker:1883
ingest:
  flush_interval: 250ms
shutdown_timeout: 45s
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("writing config file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("Expected normalized level DEBUG, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Expected format json, got %q", cfg.Logging.Format)
	}
	if cfg.Store.Database != "telemetry" {
		t.Errorf("Expected database telemetry, got %q", cfg.Store.Database)
	}
	if cfg.Auth.Issuer != "test-issuer" {
		t.Errorf("Expected issuer test-issuer, got %q", cfg.Auth.Issuer)
	}
	if cfg.API.Port != 9999 {
		t.Errorf("Expected API port 9999, got %d", cfg.API.Port)
	}
	if cfg.API.MaxBodySize != 64*bytesize.MB {
		t.Errorf("Expected max body size 64MB, got %v", cfg.API.MaxBodySize)
	}
	if cfg.MQTT.URL != "tcp://broker:1883" {
		t.Errorf("Expected broker URL, got %q", cfg.MQTT.URL)
	}
	if cfg.Ingest.FlushInterval != 250*time.Millisecond {
		t.Errorf("Expected flush interval 250ms, got %v", cfg.Ingest.FlushInterval)
	}
	if cfg.ShutdownTimeout != 45*time.Second {
		t.Errorf("Expected shutdown timeout 45s, got %v", cfg.ShutdownTimeout)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
logging:
  level: info
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("writing config file: %v", err)
	}

	t.Setenv("FLIGHTD_LOGGING_LEVEL", "error")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Logging.Level != "ERROR" {
		t.Errorf("Expected env override ERROR, got %q", cfg.Logging.Level)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("logging: ["), 0600); err != nil {
		t.Fatalf("writing config file: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("Expected error for malformed YAML")
	}
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.yaml")

	cfg := GetDefaultConfig()
	cfg.Store.Database = "roundtrip"
	cfg.API.Port = 8123

	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat saved config: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("Expected 0600 permissions, got %v", info.Mode().Perm())
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load of saved config failed: %v", err)
	}
	if loaded.Store.Database != "roundtrip" {
		t.Errorf("Expected database roundtrip, got %q", loaded.Store.Database)
	}
	if loaded.API.Port != 8123 {
		t.Errorf("Expected port 8123, got %d", loaded.API.Port)
	}
}

func TestMustLoad_MissingExplicitFile(t *testing.T) {
	_, err := MustLoad(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("Expected error for missing config file")
	}
	if !strings.Contains(err.Error(), "flightd init") {
		t.Errorf("Expected init instructions in error, got: %v", err)
	}
}

func TestMustLoad_MissingDefaultFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	_, err := MustLoad("")
	if err == nil {
		t.Fatal("Expected error when no default config exists")
	}
	if !strings.Contains(err.Error(), GetDefaultConfigPath()) {
		t.Errorf("Expected default path in error, got: %v", err)
	}
}

func TestGetConfigDir_UsesXDG(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg-test")

	dir := GetConfigDir()
	if dir != filepath.Join("/tmp/xdg-test", "flightd") {
		t.Errorf("Expected XDG-based dir, got %q", dir)
	}
}
