// Package config loads the service configuration from a YAML or JSON file
// with environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/utilcast/core/metrics"
	"github.com/kilianp07/utilcast/infra/logger"
	"github.com/kilianp07/utilcast/infra/modelfile"
	"github.com/kilianp07/utilcast/infra/monitoring"
	"github.com/kilianp07/utilcast/infra/mqtt"
	"github.com/kilianp07/utilcast/infra/storage"
)

// EnvPrefix prefixes environment overrides. Nested keys are separated by a
// double underscore, e.g. UC_STORAGE__DSN.
const EnvPrefix = "UC_"

type Config struct {
	Server   ServerConfig            `json:"server"`
	Storage  storage.Config          `json:"storage"`
	Models   modelfile.Config        `json:"models"`
	Forecast ForecastConfig          `json:"forecast"`
	Lock     LockConfig              `json:"lock"`
	Metrics  metrics.Config          `json:"metrics"`
	MQTT     mqtt.Config             `json:"mqtt"`
	Logging  logger.Config           `json:"logging"`
	Sentry   monitoring.SentryConfig `json:"sentry"`
}

// Load reads path and applies environment overrides. An empty path loads
// defaults and the environment only.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if path != "" {
		ext := strings.ToLower(filepath.Ext(path))
		var parser koanf.Parser
		switch ext {
		case ".yaml", ".yml":
			parser = yaml.Parser()
		case ".json":
			parser = json.Parser()
		default:
			return nil, fmt.Errorf("unsupported config format: %s", ext)
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, err
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func envKey(s string) string {
	s = strings.TrimPrefix(s, EnvPrefix)
	return strings.ReplaceAll(strings.ToLower(s), "__", ".")
}

// SetDefaults applies the defaults of every section.
func (c *Config) SetDefaults() {
	c.Server.SetDefaults()
	c.Storage.SetDefaults()
	c.Models.SetDefaults()
	c.Forecast.SetDefaults()
	c.Lock.SetDefaults()
	if c.MQTT.Enabled() {
		c.MQTT.SetDefaults()
	}
	c.Logging.SetDefaults()
	if c.Sentry.Environment == "" {
		c.Sentry.Environment = os.Getenv("APP_ENV")
	}
}

// Validate checks every section.
func (c Config) Validate() error {
	checks := []struct {
		name string
		fn   func() error
	}{
		{"server", c.Server.Validate},
		{"storage", c.Storage.Validate},
		{"forecast", c.Forecast.Validate},
		{"lock", c.Lock.Validate},
		{"mqtt", c.MQTT.Validate},
		{"logging", c.Logging.Validate},
		{"sentry", c.Sentry.Validate},
	}
	for _, chk := range checks {
		if err := chk.fn(); err != nil {
			return fmt.Errorf("%s: %w", chk.name, err)
		}
	}
	return nil
}
