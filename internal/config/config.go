package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "GPSRELAY_"

type Config struct {
	Primary       Primary              `koanf:"primary" validate:"required"`
	Server        ServerConfig         `koanf:"server" validate:"required"`
	Relay         RelayConfig          `koanf:"relay" validate:"required"`
	Records       RecordsConfig        `koanf:"records" validate:"required"`
	Database      DatabaseConfig       `koanf:"database"`
	Observability *ObservabilityConfig `koanf:"observability"`
}

type Primary struct {
	Env string `koanf:"env" validate:"required"`
}

type ServerConfig struct {
	Port         string        `koanf:"port" validate:"required"`
	Path         string        `koanf:"path" validate:"required,startswith=/"`
	TrustProxy   bool          `koanf:"trust_proxy"`
	ReadTimeout  time.Duration `koanf:"read_timeout" validate:"gt=0"`
	WriteTimeout time.Duration `koanf:"write_timeout" validate:"gt=0"`
	IdleTimeout  time.Duration `koanf:"idle_timeout" validate:"gt=0"`
}

// RelayConfig controls forwarding to the downstream webhook.
type RelayConfig struct {
	Enabled           bool          `koanf:"enabled"`
	IncludeEnrichment bool          `koanf:"include_enrichment"`
	URL               string        `koanf:"url" validate:"required,url"`
	Timeout           time.Duration `koanf:"timeout" validate:"gt=0"`
	UserAgent         string        `koanf:"user_agent" validate:"required"`
}

type RecordsConfig struct {
	CSVPath string `koanf:"csv_path" validate:"required"`
}

// DatabaseConfig is optional; an empty URL disables the Postgres mirror.
// Timeout bounds each mirror write so a slow database never holds up delivery.
type DatabaseConfig struct {
	URL     string        `koanf:"url"`
	Timeout time.Duration `koanf:"timeout" validate:"gt=0"`
}

// Default returns the configuration used for any key the environment leaves unset.
func Default() *Config {
	return &Config{
		Primary: Primary{Env: "local"},
		Server: ServerConfig{
			Port:         "8080",
			Path:         "/gpslogger",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Relay: RelayConfig{
			Enabled:           true,
			IncludeEnrichment: true,
			URL:               "http://homeassistant.local:8123/api/webhook/gpslogger",
			Timeout:           5 * time.Second,
			UserAgent:         "gpsrelay/1.0",
		},
		Records:       RecordsConfig{CSVPath: "gpslogger.csv"},
		Database:      DatabaseConfig{Timeout: 2 * time.Second},
		Observability: DefaultObservabilityConfig(),
	}
}

// LoadConfig loads the configuration from an optional .env file and
// GPSRELAY_-prefixed environment variables. A double underscore separates
// nesting levels, e.g. GPSRELAY_RELAY__TIMEOUT=3s.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "__", ".")
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	// Delivery runs inside the request, after the ack, so it has to finish
	// before the connection's write deadline.
	if cfg.Relay.Timeout >= cfg.Server.WriteTimeout {
		return nil, fmt.Errorf("validate config: relay.timeout (%s) must be less than server.write_timeout (%s)",
			cfg.Relay.Timeout, cfg.Server.WriteTimeout)
	}

	if cfg.Observability == nil {
		cfg.Observability = DefaultObservabilityConfig()
	}
	cfg.Observability.ServiceName = "gpsrelay"
	cfg.Observability.Environment = cfg.Primary.Env
	if err := cfg.Observability.Validate(); err != nil {
		return nil, fmt.Errorf("invalid observability config: %w", err)
	}

	return cfg, nil
}
