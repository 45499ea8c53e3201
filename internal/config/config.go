// Package config builds the single configuration object of a run. The
// environment is read here and nowhere else; every component receives the
// values it needs explicitly.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	pricesync_errors "pricesync/internal"
	"pricesync/internal/domain"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

const runIDTimeLayout = "2006-01-02_15-04-05Z"

type Config struct {
	ForceRefresh bool
	StartDate    *time.Time
	EndDate      *time.Time

	TwelveDataAPIKey string
	TwelveDataMaxRPM int `validate:"gte=0"`

	DatabaseURL string
	RunID       string

	AssetsPath       string        `validate:"required"`
	CacheDir         string        `validate:"required"`
	OutDir           string        `validate:"required"`
	CacheTTL         time.Duration `validate:"gt=0"`
	LookbackDays     int           `validate:"gt=0"`
	RetryMaxAttempts int           `validate:"gte=1,lte=10"`
	LogLevel         string        `validate:"oneof=trace debug info warn warning error"`
}

func Default() Config {
	return Config{
		TwelveDataMaxRPM: 8,
		AssetsPath:       "assets.json",
		CacheDir:         "cache",
		OutDir:           "out",
		CacheTTL:         24 * time.Hour,
		LookbackDays:     30,
		RetryMaxAttempts: 4,
		LogLevel:         "info",
	}
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load() // .env is optional
	return LoadFrom(os.LookupEnv)
}

// LoadFrom builds and validates a Config from lookup.
func LoadFrom(lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()
	get := func(key string) string {
		v, ok := lookup(key)
		if !ok {
			return ""
		}
		return strings.TrimSpace(v)
	}

	var err error
	if v := get("FORCE_REFRESH"); v != "" {
		cfg.ForceRefresh, err = parseBool(v)
		if err != nil {
			return nil, pricesync_errors.ConfigError("invalid FORCE_REFRESH %q: %v", v, err)
		}
	}
	if v := get("START_DATE"); v != "" {
		d, err := time.Parse(domain.DateLayout, v)
		if err != nil {
			return nil, pricesync_errors.ConfigError("invalid START_DATE %q (expected YYYY-MM-DD)", v)
		}
		cfg.StartDate = &d
	}
	if v := get("END_DATE"); v != "" {
		d, err := time.Parse(domain.DateLayout, v)
		if err != nil {
			return nil, pricesync_errors.ConfigError("invalid END_DATE %q (expected YYYY-MM-DD)", v)
		}
		cfg.EndDate = &d
	}

	cfg.TwelveDataAPIKey = get("TWELVEDATA_API_KEY")
	cfg.DatabaseURL = get("DATABASE_URL")
	cfg.RunID = get("RUN_ID")

	if v := get("ASSETS_PATH"); v != "" {
		cfg.AssetsPath = v
	}
	if v := get("CACHE_DIR"); v != "" {
		cfg.CacheDir = v
	}
	if v := get("OUT_DIR"); v != "" {
		cfg.OutDir = v
	}
	if v := get("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	if v := get("CACHE_TTL"); v != "" {
		cfg.CacheTTL, err = time.ParseDuration(v)
		if err != nil {
			return nil, pricesync_errors.ConfigError("invalid CACHE_TTL %q: %v", v, err)
		}
	}
	for key, dst := range map[string]*int{
		"TWELVEDATA_MAX_RPM": &cfg.TwelveDataMaxRPM,
		"LOOKBACK_DAYS":      &cfg.LookbackDays,
		"RETRY_MAX_ATTEMPTS": &cfg.RetryMaxAttempts,
	} {
		if v := get(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return nil, pricesync_errors.ConfigError("invalid %s %q: expected an integer", key, v)
			}
			*dst = n
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return pricesync_errors.ConfigError("%v", err)
	}
	if (c.StartDate == nil) != (c.EndDate == nil) {
		return pricesync_errors.ConfigError("START_DATE and END_DATE must be set together")
	}
	if c.StartDate != nil && c.StartDate.After(*c.EndDate) {
		return pricesync_errors.ConfigError("START_DATE must not be after END_DATE")
	}
	return nil
}

// Window is the fetch window implied by the date override, or the default
// lookback when no override is set.
func (c Config) Window() domain.Window {
	if c.StartDate != nil && c.EndDate != nil {
		return domain.RangeWindow(*c.StartDate, *c.EndDate)
	}
	return domain.LookbackWindow(c.LookbackDays)
}

// RequireTwelveData checks the credentials the Twelve Data fetcher needs.
func (c Config) RequireTwelveData() error {
	if c.TwelveDataAPIKey == "" {
		return pricesync_errors.ConfigError("missing required environment variable: TWELVEDATA_API_KEY")
	}
	return nil
}

// RequireSync checks what the sync stage needs before touching the store.
func (c Config) RequireSync() error {
	if c.DatabaseURL == "" {
		return pricesync_errors.ConfigError("missing required environment variable: DATABASE_URL")
	}
	return nil
}

// NewRunID returns the configured run id, or a UTC timestamp suffixed with
// the date override when one is set.
func (c Config) NewRunID(now time.Time) string {
	if c.RunID != "" {
		return c.RunID
	}
	id := now.UTC().Format(runIDTimeLayout)
	if c.StartDate != nil && c.EndDate != nil {
		id = fmt.Sprintf("%s__start-%s_end-%s", id, c.StartDate.Format(domain.DateLayout), c.EndDate.Format(domain.DateLayout))
	}
	return id
}

// LogPublic logs every non-secret setting once.
func (c Config) LogPublic(logger logrus.FieldLogger) {
	fields := logrus.Fields{
		"force_refresh":      c.ForceRefresh,
		"window":             c.Window().String(),
		"assets_path":        c.AssetsPath,
		"cache_dir":          c.CacheDir,
		"out_dir":            c.OutDir,
		"cache_ttl":          c.CacheTTL.String(),
		"retry_max_attempts": c.RetryMaxAttempts,
		"twelvedata_max_rpm": c.TwelveDataMaxRPM,
		"twelvedata_api_key": c.TwelveDataAPIKey != "",
		"database_url":       c.DatabaseURL != "",
	}
	logger.WithFields(fields).Info("loaded configuration")
}

func parseBool(v string) (bool, error) {
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	}
	return false, fmt.Errorf("not a boolean")
}
