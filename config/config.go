// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/inkwellhq/quotad/domain/plan"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Quota    QuotaConfig    `yaml:"quota"`
	Plans    []PlanConfig   `yaml:"plans"`
	Auth     AuthConfig     `yaml:"auth"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig configures the HTTP facade.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// DatabaseConfig configures the usage store backend.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // "sqlite" or "memory"
	Path   string `yaml:"path"`   // sqlite file path
}

// QuotaConfig configures accounting behavior.
type QuotaConfig struct {
	// Timezone is the canonical IANA zone for day boundaries.
	// Resets happen at midnight in this zone for every user.
	Timezone     string        `yaml:"timezone"`
	StoreTimeout time.Duration `yaml:"store_timeout"`
	Cache        CacheConfig   `yaml:"cache"`
}

// CacheConfig configures the in-process usage cache.
type CacheConfig struct {
	TTL        time.Duration `yaml:"ttl"`
	MaxEntries int           `yaml:"max_entries"`
}

// PlanConfig defines one subscription tier.
type PlanConfig struct {
	ID             string `yaml:"id"`
	Name           string `yaml:"name"`
	DailyQuestions int64  `yaml:"daily_questions"`
	Unlimited      bool   `yaml:"unlimited"`
	Default        bool   `yaml:"default"`
}

// AuthConfig configures facade authentication.
type AuthConfig struct {
	// TokenHash is the bcrypt hash of the service bearer token.
	// Empty disables authentication (trusted-network deployments).
	TokenHash string `yaml:"token_hash"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json or console
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Load reads configuration from a YAML file, applies environment
// overrides, defaults, and validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromEnv builds a configuration from environment variables only, for
// deployments without a config file.
func FromEnv() (*Config, error) {
	var cfg Config
	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// HasEnvConfig reports whether any QUOTAD_* override is set.
func HasEnvConfig() bool {
	for _, key := range []string{
		"QUOTAD_DATABASE_DRIVER", "QUOTAD_DATABASE_PATH",
		"QUOTAD_SERVER_PORT", "QUOTAD_QUOTA_TIMEZONE", "QUOTAD_LOG_LEVEL",
	} {
		if os.Getenv(key) != "" {
			return true
		}
	}
	return false
}

func (c *Config) applyEnv() {
	if v := os.Getenv("QUOTAD_SERVER_HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("QUOTAD_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("QUOTAD_DATABASE_DRIVER"); v != "" {
		c.Database.Driver = v
	}
	if v := os.Getenv("QUOTAD_DATABASE_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("QUOTAD_QUOTA_TIMEZONE"); v != "" {
		c.Quota.Timezone = v
	}
	if v := os.Getenv("QUOTAD_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("QUOTAD_AUTH_TOKEN_HASH"); v != "" {
		c.Auth.TokenHash = v
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 10 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 10 * time.Second
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Path == "" {
		c.Database.Path = "quotad.db"
	}
	if c.Quota.Timezone == "" {
		c.Quota.Timezone = "UTC"
	}
	if c.Quota.StoreTimeout == 0 {
		c.Quota.StoreTimeout = 3 * time.Second
	}
	if c.Quota.Cache.TTL == 0 {
		c.Quota.Cache.TTL = 30 * time.Second
	}
	if c.Quota.Cache.MaxEntries == 0 {
		c.Quota.Cache.MaxEntries = 10000
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Database.Driver != "sqlite" && c.Database.Driver != "memory" {
		return fmt.Errorf("unknown database driver: %q", c.Database.Driver)
	}
	if _, err := time.LoadLocation(c.Quota.Timezone); err != nil {
		return fmt.Errorf("invalid quota timezone %q: %w", c.Quota.Timezone, err)
	}

	seen := make(map[string]bool)
	defaults := 0
	for _, p := range c.Plans {
		if p.ID == "" {
			return fmt.Errorf("plan with empty id")
		}
		if seen[p.ID] {
			return fmt.Errorf("duplicate plan id: %q", p.ID)
		}
		seen[p.ID] = true
		if !p.Unlimited && p.DailyQuestions < 0 {
			return fmt.Errorf("plan %q: negative daily_questions (use unlimited: true)", p.ID)
		}
		if p.Default {
			defaults++
		}
	}
	if defaults > 1 {
		return fmt.Errorf("multiple default plans defined")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %q", c.Logging.Level)
	}

	return nil
}

// Location returns the canonical time zone. Validate guarantees it loads.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Quota.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// BuildPlans converts the configured plan table to domain plans, falling
// back to the built-in table when none is configured.
func (c *Config) BuildPlans() []plan.Plan {
	if len(c.Plans) == 0 {
		return plan.Defaults()
	}

	plans := make([]plan.Plan, 0, len(c.Plans))
	for _, p := range c.Plans {
		limit := plan.Limit(p.DailyQuestions)
		if p.Unlimited {
			limit = plan.Unlimited
		}
		plans = append(plans, plan.Plan{
			ID:             p.ID,
			Name:           p.Name,
			DailyQuestions: limit,
			IsDefault:      p.Default,
		})
	}
	return plans
}
