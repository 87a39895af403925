package config

import (
	"fmt"

	"github.com/rs/zerolog"
)

type ObservabilityConfig struct {
	ServiceName  string         `koanf:"service_name"`
	Environment  string         `koanf:"environment"`
	Debug        bool           `koanf:"debug"`
	LogLevel     string         `koanf:"log_level"`
	DebugLogPath string         `koanf:"debug_log_path"`
	NewRelic     NewRelicConfig `koanf:"new_relic"`
}

// NewRelicConfig enables APM when LicenseKey is set.
type NewRelicConfig struct {
	LicenseKey string `koanf:"license_key"`
	AppName    string `koanf:"app_name"`
}

func DefaultObservabilityConfig() *ObservabilityConfig {
	return &ObservabilityConfig{
		ServiceName: "gpsrelay",
		Environment: "local",
		LogLevel:    "info",
		NewRelic:    NewRelicConfig{AppName: "gpsrelay"},
	}
}

// Level returns the effective log level. Debug overrides LogLevel.
func (c *ObservabilityConfig) Level() zerolog.Level {
	if c.Debug {
		return zerolog.DebugLevel
	}
	lvl, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

func (c *ObservabilityConfig) Validate() error {
	if c.ServiceName == "" {
		return fmt.Errorf("service_name is required")
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log_level %q: %w", c.LogLevel, err)
	}
	if c.NewRelic.LicenseKey != "" && c.NewRelic.AppName == "" {
		return fmt.Errorf("new_relic.app_name is required when a license key is set")
	}
	return nil
}
