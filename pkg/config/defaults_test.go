package config

import (
	"strings"
	"testing"
	"time"
)

func TestGetDefaultConfig(t *testing.T) {
	cfg := GetDefaultConfig()

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected INFO, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Expected text, got %q", cfg.Logging.Format)
	}
	if cfg.ShutdownTimeout != 30*time.Second {
		t.Errorf("Expected 30s shutdown timeout, got %v", cfg.ShutdownTimeout)
	}
	if cfg.Store.Database != "flightd" {
		t.Errorf("Expected flightd database, got %q", cfg.Store.Database)
	}
	if cfg.Auth.Issuer != "flightd" {
		t.Errorf("Expected flightd issuer, got %q", cfg.Auth.Issuer)
	}
	if !strings.HasSuffix(cfg.Auth.PrivateKeyPath, "private.pem") {
		t.Errorf("Expected private key path default, got %q", cfg.Auth.PrivateKeyPath)
	}
	if cfg.MQTT.URL != "" {
		t.Errorf("Expected no default broker URL, got %q", cfg.MQTT.URL)
	}
	if cfg.MQTT.ClientID != "flightd" {
		t.Errorf("Expected flightd client id, got %q", cfg.MQTT.ClientID)
	}
	if cfg.Metrics.Enabled {
		t.Error("Expected metrics disabled by default")
	}
	if cfg.Metrics.Port != 9090 {
		t.Errorf("Expected metrics port 9090, got %d", cfg.Metrics.Port)
	}
	if cfg.Telemetry.SampleRate != 1.0 {
		t.Errorf("Expected sample rate 1.0, got %v", cfg.Telemetry.SampleRate)
	}
}

func TestApplyDefaults_PreservesExplicitValues(t *testing.T) {
	cfg := &Config{}
	cfg.Logging.Level = "warn"
	cfg.Store.URI = "mongodb://custom:27017"
	cfg.Ingest.FlushInterval = time.Second

	ApplyDefaults(cfg)

	if cfg.Logging.Level != "WARN" {
		t.Errorf("Expected WARN (normalized), got %q", cfg.Logging.Level)
	}
	if cfg.Store.URI != "mongodb://custom:27017" {
		t.Errorf("Expected custom URI preserved, got %q", cfg.Store.URI)
	}
	if cfg.Ingest.FlushInterval != time.Second {
		t.Errorf("Expected explicit flush interval preserved, got %v", cfg.Ingest.FlushInterval)
	}
}
