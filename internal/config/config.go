// Package config loads service settings from a YAML file with environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	DefaultPath = "config.yaml"
	PathEnv     = "TRIPNAV_CONFIG"
)

type Config struct {
	HTTP      HTTP      `yaml:"http"`
	Log       Log       `yaml:"log"`
	Catalog   Catalog   `yaml:"catalog"`
	Cache     Cache     `yaml:"cache"`
	Optimizer Optimizer `yaml:"optimizer"`
	Auth      Auth      `yaml:"auth"`
	RateLimit RateLimit `yaml:"ratelimit"`
}

type HTTP struct {
	Addr         string        `yaml:"addr" env:"HTTP_ADDR" env-default:":8080"`
	ReadTimeout  time.Duration `yaml:"read_timeout" env:"HTTP_READ_TIMEOUT" env-default:"10s"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"HTTP_WRITE_TIMEOUT" env-default:"6m"`
}

type Log struct {
	Level  string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"`
}

type Catalog struct {
	Driver      string  `yaml:"driver" env:"CATALOG_DRIVER" env-default:"memory"`
	DSN         string  `yaml:"dsn" env:"DATABASE_URL"`
	Seed        string  `yaml:"seed" env:"CATALOG_SEED"`
	Migrate     bool    `yaml:"migrate" env:"DB_MIGRATE" env-default:"true"`
	Concurrency int     `yaml:"concurrency" env:"CATALOG_CONCURRENCY" env-default:"8"`
	RPS         float64 `yaml:"rps" env:"CATALOG_RPS" env-default:"0"`
	Burst       int     `yaml:"burst" env:"CATALOG_BURST" env-default:"16"`
}

type Cache struct {
	Backend  string        `yaml:"backend" env:"CACHE_BACKEND" env-default:"memory"`
	RedisURL string        `yaml:"redis_url" env:"REDIS_URL"`
	Prefix   string        `yaml:"prefix" env:"CACHE_PREFIX" env-default:"itinerary_optimization:"`
	TTL      time.Duration `yaml:"ttl" env:"CACHE_TTL" env-default:"1h"`
}

type Optimizer struct {
	Timeout              time.Duration `yaml:"timeout" env:"OPTIMIZER_TIMEOUT" env-default:"30s"`
	AllowPartial         bool          `yaml:"allow_partial" env:"OPTIMIZER_ALLOW_PARTIAL" env-default:"false"`
	Currency             string        `yaml:"currency" env:"OPTIMIZER_CURRENCY" env-default:"USD"`
	TopK                 int           `yaml:"top_k" env:"OPTIMIZER_TOP_K" env-default:"3"`
	CandidateConcurrency int           `yaml:"candidate_concurrency" env:"OPTIMIZER_CANDIDATE_CONCURRENCY" env-default:"4"`
}

type Auth struct {
	Mode       string `yaml:"mode" env:"AUTH_MODE" env-default:"dev"`
	HMACSecret string `yaml:"hmac_secret" env:"AUTH_HMAC_SECRET"`
	JWKSURL    string `yaml:"jwks_url" env:"AUTH_JWKS_URL"`
	TierClaim  string `yaml:"tier_claim" env:"AUTH_TIER_CLAIM" env-default:"tier"`
}

type RateLimit struct {
	RPS   float64 `yaml:"rps" env:"RATE_RPS" env-default:"5"`
	Burst int     `yaml:"burst" env:"RATE_BURST" env-default:"10"`
}

// Load reads the file named by TRIPNAV_CONFIG (or config.yaml). Environment
// variables override file values; without a file only the environment and
// defaults apply.
func Load() (*Config, error) {
	path := os.Getenv(PathEnv)
	if path == "" {
		path = DefaultPath
	}
	return LoadFile(path)
}

func LoadFile(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
	} else if errors.Is(err, fs.ErrNotExist) {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("config from env: %w", err)
		}
	} else {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	switch c.Catalog.Driver {
	case "memory":
	case "postgres", "sqlite":
		if c.Catalog.DSN == "" {
			errs = append(errs, fmt.Errorf("catalog.dsn is required for driver %q", c.Catalog.Driver))
		}
	default:
		errs = append(errs, fmt.Errorf("catalog.driver %q is not one of memory, postgres, sqlite", c.Catalog.Driver))
	}
	switch c.Cache.Backend {
	case "memory", "none":
	case "redis":
		if c.Cache.RedisURL == "" {
			errs = append(errs, errors.New("cache.redis_url is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("cache.backend %q is not one of memory, redis, none", c.Cache.Backend))
	}
	switch c.Auth.Mode {
	case "dev":
	case "hmac":
		if c.Auth.HMACSecret == "" {
			errs = append(errs, errors.New("auth.hmac_secret is required in hmac mode"))
		}
	case "jwks":
		if c.Auth.JWKSURL == "" {
			errs = append(errs, errors.New("auth.jwks_url is required in jwks mode"))
		}
	default:
		errs = append(errs, fmt.Errorf("auth.mode %q is not one of dev, hmac, jwks", c.Auth.Mode))
	}
	if c.Optimizer.Timeout <= 0 {
		errs = append(errs, errors.New("optimizer.timeout must be positive"))
	}
	if c.Optimizer.TopK < 1 || c.Optimizer.TopK > 10 {
		errs = append(errs, errors.New("optimizer.top_k must be between 1 and 10"))
	}
	if len(c.Optimizer.Currency) != 3 {
		errs = append(errs, errors.New("optimizer.currency must be a 3-letter code"))
	}
	if c.Cache.TTL <= 0 {
		errs = append(errs, errors.New("cache.ttl must be positive"))
	}
	return errors.Join(errs...)
}

// LogLevel maps the configured level name, defaulting to info.
func (c *Config) LogLevel() slog.Level {
	switch strings.ToLower(c.Log.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// NewLogger builds the process logger for the configured level and format.
func (c *Config) NewLogger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.LogLevel()}
	if strings.EqualFold(c.Log.Format, "text") {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
