package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/avionyx/flightd/pkg/auth"
	"github.com/avionyx/flightd/pkg/ingest"
	"github.com/avionyx/flightd/pkg/mqtt"
	"github.com/avionyx/flightd/pkg/store"
)

// ApplyDefaults sets default values for any unspecified configuration
// fields.
//
// This function is called after loading configuration from file and
// environment variables to fill in any missing values with sensible
// defaults.
//
// Default Strategy:
//   - Zero values (0, "", false, nil) are replaced with defaults
//   - Explicit values are preserved
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyShutdownTimeoutDefaults(cfg)
	applyStoreDefaults(&cfg.Store)
	applyAuthDefaults(&cfg.Auth)
	cfg.API.ApplyDefaults()
	applyMQTTDefaults(&cfg.MQTT)
	applyIngestDefaults(&cfg.Ingest)
	applyMetricsDefaults(&cfg.Metrics)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	// Normalize log level to uppercase for consistent internal representation
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}
	if cfg.Profiling.Endpoint == "" {
		cfg.Profiling.Endpoint = "http://localhost:4040"
	}
	if len(cfg.Profiling.ProfileTypes) == 0 {
		cfg.Profiling.ProfileTypes = []string{
			"cpu", "alloc_objects", "alloc_space",
			"inuse_objects", "inuse_space", "goroutines",
		}
	}
}

func applyShutdownTimeoutDefaults(cfg *Config) {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
}

func applyStoreDefaults(cfg *store.Config) {
	if cfg.URI == "" {
		cfg.URI = "mongodb://localhost:27017"
	}
	if cfg.Database == "" {
		cfg.Database = "flightd"
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
}

// applyAuthDefaults places the signing keys next to the config file,
// where 'flightd keygen' writes them.
func applyAuthDefaults(cfg *auth.Config) {
	if cfg.PrivateKeyPath == "" {
		cfg.PrivateKeyPath = filepath.Join(getConfigDir(), "private.pem")
	}
	if cfg.PublicKeyPath == "" {
		cfg.PublicKeyPath = filepath.Join(getConfigDir(), "public.pem")
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "flightd"
	}
	if cfg.TokenDuration == 0 {
		cfg.TokenDuration = auth.DefaultTokenDuration
	}
}

func applyMQTTDefaults(cfg *mqtt.Config) {
	// URL stays empty by default; running without a broker is valid.
	if cfg.ClientID == "" {
		cfg.ClientID = "flightd"
	}
	if cfg.ReconnectInterval == 0 {
		cfg.ReconnectInterval = mqtt.DefaultReconnectInterval
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
}

func applyIngestDefaults(cfg *IngestConfig) {
	if cfg.FlushInterval == 0 {
		cfg.FlushInterval = ingest.DefaultFlushInterval
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Port == 0 {
		cfg.Port = 9090
	}
}

// GetDefaultConfig returns a Config struct with all default values
// applied.
//
// This is useful for:
//   - Generating sample configuration files
//   - Testing
//   - Documentation
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
