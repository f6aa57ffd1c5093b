// Package config loads gateway configuration from an optional YAML
// file with environment variable overrides on top. Everything has a
// usable default; a gateway started with no file and no environment
// runs with stderr audit logging only.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/nixgate/nixgate/internal/cache"
	"github.com/nixgate/nixgate/internal/registry"
)

// Config is the complete gateway configuration.
type Config struct {
	// LogLevel sets the zap level for operational logging (debug, info,
	// warn, error).
	LogLevel string `yaml:"log_level"`
	// ClickHouseDSN enables the async ClickHouse audit sink when set.
	ClickHouseDSN string `yaml:"clickhouse_dsn"`
	// PostgresDSN enables loading tool overrides from Postgres when set.
	PostgresDSN string `yaml:"postgres_dsn"`
	// AuditPath routes the JSON audit stream to a file instead of
	// stderr.
	AuditPath string `yaml:"audit_path"`
	// Tools disables tools or moves them between timeout classes.
	Tools registry.Overrides `yaml:"tools"`
	// CacheTTLs overrides per-family cache lifetimes, e.g.
	// "search: 5m". Unknown families are rejected at startup.
	CacheTTLs map[string]string `yaml:"cache_ttls"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{LogLevel: "info"}
}

// Load reads the YAML file at path (skipped when path is empty) and
// applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("Load: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("Load %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.LogLevel = envOrDefault("NIXGATE_LOG_LEVEL", c.LogLevel)
	c.ClickHouseDSN = envOrDefault("NIXGATE_CLICKHOUSE_DSN", c.ClickHouseDSN)
	c.PostgresDSN = envOrDefault("NIXGATE_POSTGRES_DSN", c.PostgresDSN)
	c.AuditPath = envOrDefault("NIXGATE_AUDIT_PATH", c.AuditPath)
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// FamilyTTLs parses the cache TTL overrides into the shape cache.NewSet
// accepts. Typos in family names or durations fail startup.
func (c *Config) FamilyTTLs() (map[cache.Family]time.Duration, error) {
	if len(c.CacheTTLs) == 0 {
		return nil, nil
	}
	out := make(map[cache.Family]time.Duration, len(c.CacheTTLs))
	for name, raw := range c.CacheTTLs {
		f := cache.Family(name)
		if !f.Known() {
			return nil, fmt.Errorf("FamilyTTLs: unknown cache family %q", name)
		}
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("FamilyTTLs: family %q: %w", name, err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("FamilyTTLs: family %q: ttl must be positive", name)
		}
		out[f] = d
	}
	return out, nil
}
