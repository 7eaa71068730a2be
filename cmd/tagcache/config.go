package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jonwraymond/tagcache/cache"
	"github.com/jonwraymond/tagcache/health"
	"github.com/jonwraymond/tagcache/invalidation"
	"github.com/jonwraymond/tagcache/observe"
)

// Config is the host configuration file.
type Config struct {
	Addr    string         `yaml:"addr"`
	Cache   cache.Config   `yaml:"cache"`
	Observe observe.Config `yaml:"observe"`
	Health  HealthConfig   `yaml:"health"`
	Origin  OriginConfig   `yaml:"origin"`
	Rules   []RuleConfig   `yaml:"rules"`
}

// HealthConfig groups the health checker settings.
type HealthConfig struct {
	Aggregator health.AggregatorConfig    `yaml:"aggregator"`
	Cache      health.CacheCheckerConfig  `yaml:"cache"`
	Memory     health.MemoryCheckerConfig `yaml:"memory"`
}

// RuleConfig declares an invalidation rule. Keys are TemplateKeys templates.
type RuleConfig struct {
	ID        string   `yaml:"id"`
	EventType string   `yaml:"event_type"`
	Tags      []string `yaml:"tags"`
	Keys      []string `yaml:"keys"`
	Priority  int      `yaml:"priority"`
	Enabled   *bool    `yaml:"enabled"` // default true
}

func defaultConfig() Config {
	return Config{
		Addr:  ":9090",
		Cache: cache.DefaultConfig(),
		Observe: observe.Config{
			ServiceName: "tagcache",
			Version:     version,
			Tracing:     observe.TracingConfig{Enabled: false, Exporter: "none", SamplePct: 1},
			Metrics:     observe.MetricsConfig{Enabled: true, Exporter: "prometheus"},
			Logging:     observe.LoggingConfig{Enabled: true, Level: "info"},
		},
	}
}

// loadConfig reads path over the defaults. An empty path yields the defaults.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	expanded, err := expandEnv(string(data))
	if err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	if err := decodeConfig([]byte(expanded), &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// expandEnv substitutes $VAR and ${VAR} from the environment. Every
// referenced variable must be set; $$ yields a literal $.
func expandEnv(s string) (string, error) {
	var missing []string
	out := os.Expand(s, func(name string) string {
		if name == "$" {
			return "$"
		}
		v, ok := os.LookupEnv(name)
		if !ok && !slices.Contains(missing, name) {
			missing = append(missing, name)
		}
		return v
	})
	if len(missing) > 0 {
		slices.Sort(missing)
		return "", fmt.Errorf("missing environment variables: %s", strings.Join(missing, ", "))
	}
	return out, nil
}

func decodeConfig(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return cfg.validate()
}

func (c *Config) validate() error {
	if err := c.Cache.Validate(); err != nil {
		return err
	}
	if err := c.Observe.Validate(); err != nil {
		return err
	}
	if err := c.Origin.validate(); err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(c.Rules))
	for _, r := range c.Rules {
		if _, dup := seen[r.ID]; dup {
			return fmt.Errorf("%w: %q", invalidation.ErrDuplicateRule, r.ID)
		}
		seen[r.ID] = struct{}{}
		if err := r.rule().Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (r RuleConfig) rule() invalidation.Rule {
	rule := invalidation.Rule{
		ID:        r.ID,
		EventType: r.EventType,
		Tags:      r.Tags,
		Enabled:   r.Enabled == nil || *r.Enabled,
		Priority:  r.Priority,
	}
	if len(r.Keys) > 0 {
		rule.KeyGenerator = invalidation.TemplateKeys(r.Keys...)
	}
	return rule
}
