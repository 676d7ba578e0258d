// Package config loads the lingoroute process configuration from YAML,
// .env files and LINGOROUTE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/lingoroute/lingoroute/pkg/configstore"
	"github.com/lingoroute/lingoroute/pkg/ledger"
	"github.com/lingoroute/lingoroute/pkg/models"
)

// EnvPrefix is the prefix of environment overrides, e.g. LINGOROUTE_LISTEN.
const EnvPrefix = "LINGOROUTE"

// Config holds all lingoroute configuration.
type Config struct {
	Listen     string             `yaml:"listen" envconfig:"LISTEN"`
	DBPath     string             `yaml:"db_path" envconfig:"DB_PATH"`
	AdminToken string             `yaml:"admin_token" envconfig:"ADMIN_TOKEN"`
	Watch      bool               `yaml:"watch" envconfig:"WATCH"`
	Log        LogConfig          `yaml:"log" envconfig:"LOG"`
	Dispatcher DispatcherConfig   `yaml:"dispatcher" envconfig:"DISPATCHER"`
	Ledger     LedgerConfig       `yaml:"ledger" envconfig:"LEDGER"`
	Cache      CacheConfig        `yaml:"cache" envconfig:"CACHE"`
	Audit      models.AuditConfig `yaml:"audit" envconfig:"AUDIT"`

	// Providers seed the config store. They are not overridable from the
	// environment; use ${VAR} expansion for credentials instead.
	Providers []models.ProviderConfig `yaml:"providers" ignored:"true"`
}

// LogConfig selects the zap logger level and encoding.
type LogConfig struct {
	Level  string `yaml:"level" envconfig:"LEVEL"`
	Format string `yaml:"format" envconfig:"FORMAT"`
}

// DispatcherConfig controls request dispatch.
type DispatcherConfig struct {
	Workers        int           `yaml:"workers" envconfig:"WORKERS"`
	DefaultTimeout time.Duration `yaml:"default_timeout" envconfig:"DEFAULT_TIMEOUT"`
	ChargeRejected bool          `yaml:"charge_rejected" envconfig:"CHARGE_REJECTED"`
	StrictBudget   bool          `yaml:"strict_budget" envconfig:"STRICT_BUDGET"`
	MaxBatch       int           `yaml:"max_batch" envconfig:"MAX_BATCH"`
}

// LedgerConfig controls budget period boundaries.
type LedgerConfig struct {
	Timezone     string `yaml:"timezone" envconfig:"TIMEZONE"`
	DailyReset   string `yaml:"daily_reset" envconfig:"DAILY_RESET"`
	MonthlyReset string `yaml:"monthly_reset" envconfig:"MONTHLY_RESET"`
}

// CacheConfig controls the translation cache.
type CacheConfig struct {
	Enabled bool          `yaml:"enabled" envconfig:"ENABLED"`
	TTL     time.Duration `yaml:"ttl" envconfig:"TTL"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Listen: ":8080",
		DBPath: "lingoroute.db",
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Dispatcher: DispatcherConfig{
			Workers:        8,
			DefaultTimeout: 30 * time.Second,
			MaxBatch:       100,
		},
		Ledger: LedgerConfig{
			Timezone:     "UTC",
			DailyReset:   ledger.DefaultDailySchedule,
			MonthlyReset: ledger.DefaultMonthlySchedule,
		},
		Cache: CacheConfig{
			Enabled: true,
			TTL:     24 * time.Hour,
		},
		Audit: models.AuditConfig{
			Enabled:       false,
			DBPath:        "lingoroute-audit.db",
			RetentionDays: 30,
		},
	}
}

// Load reads a YAML config file, expands environment variables and applies
// LINGOROUTE_* overrides. A .env file next to the config file, or in the
// working directory, is loaded first without overriding the environment.
// An empty path yields the defaults plus overrides.
func Load(path string) (*Config, error) {
	if err := loadDotEnv(path); err != nil {
		return nil, err
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("env overrides: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadDotEnv(path string) error {
	candidates := []string{".env"}
	if path != "" {
		if p := filepath.Join(filepath.Dir(path), ".env"); p != ".env" {
			candidates = append([]string{p}, candidates...)
		}
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Location returns the ledger time zone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Ledger.Timezone)
	if err != nil {
		return nil, fmt.Errorf("ledger timezone: %w", err)
	}
	return loc, nil
}

// Validate checks the process settings and every provider entry.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return errors.New("listen address is required")
	}
	if c.DBPath == "" {
		return errors.New("db_path is required")
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("log format %q: must be json or console", c.Log.Format)
	}
	if c.Dispatcher.Workers < 1 {
		return fmt.Errorf("dispatcher workers must be at least 1, got %d", c.Dispatcher.Workers)
	}
	if c.Dispatcher.DefaultTimeout < 0 {
		return errors.New("dispatcher default_timeout must not be negative")
	}
	if c.Dispatcher.MaxBatch < 1 {
		return fmt.Errorf("dispatcher max_batch must be at least 1, got %d", c.Dispatcher.MaxBatch)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	for _, spec := range []string{c.Ledger.DailyReset, c.Ledger.MonthlyReset} {
		if _, err := cron.ParseStandard(spec); err != nil {
			return fmt.Errorf("ledger schedule %q: %w", spec, err)
		}
	}
	if c.Cache.Enabled && c.Cache.TTL <= 0 {
		return errors.New("cache ttl must be positive when the cache is enabled")
	}
	if c.Audit.RetentionDays < 0 {
		return errors.New("audit retention_days must not be negative")
	}
	return ValidateProviders(c.Providers)
}

// ValidateProviders checks provider entries as the config store would and
// rejects duplicate names.
func ValidateProviders(cfgs []models.ProviderConfig) error {
	seen := make(map[string]bool, len(cfgs))
	for _, p := range cfgs {
		if seen[p.Name] {
			return &configstore.ValidationError{Provider: p.Name, Fields: map[string]string{"name": "name is duplicated"}}
		}
		seen[p.Name] = true
		if err := configstore.Validate(p); err != nil {
			return err
		}
	}
	return nil
}
