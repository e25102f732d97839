// Package config loads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Prefix is prepended to every variable name, e.g. HEDGE_LOG_LEVEL.
const Prefix = "HEDGE"

// Config holds settings shared by the binaries. Per-run analysis
// parameters are never read from here.
type Config struct {
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"console"` // console or json

	// Optional store connections; empty means unused.
	PostgresDSN   string `envconfig:"POSTGRES_DSN"`
	ClickhouseDSN string `envconfig:"CLICKHOUSE_DSN"`

	Workers   int    `envconfig:"WORKERS" default:"0"` // 0 means GOMAXPROCS
	PageSize  int    `envconfig:"PAGE_SIZE" default:"10"`
	Timezone  string `envconfig:"TIMEZONE" default:"UTC"`
	Rules     string `envconfig:"RULES" default:"default"` // default or extended
	RulesFile string `envconfig:"RULES_FILE"`              // YAML rules; wins over RULES

	HTTPAddr     string        `envconfig:"HTTP_ADDR" default:":8080"`
	MetricsAddr  string        `envconfig:"METRICS_ADDR"` // empty serves /metrics on HTTP_ADDR
	MaxUploadMB  int64         `envconfig:"MAX_UPLOAD_MB" default:"32"`
	RunRetention int           `envconfig:"RUN_RETENTION" default:"20"`
	ReadTimeout  time.Duration `envconfig:"READ_TIMEOUT" default:"30s"`
	WriteTimeout time.Duration `envconfig:"WRITE_TIMEOUT" default:"5m"`
	IdleTimeout  time.Duration `envconfig:"IDLE_TIMEOUT" default:"120s"`
}

// Load reads env files, then the environment. Without arguments an
// optional .env in the working directory is used; named files must exist.
// Variables already set in the environment win over files.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load .env: %w", err)
		}
	} else if err := godotenv.Load(envFiles...); err != nil {
		return nil, fmt.Errorf("load env files: %w", err)
	}
	return FromEnv()
}

// FromEnv reads the environment only.
func FromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	switch c.LogFormat {
	case "console", "json":
	default:
		return fmt.Errorf("log format must be console or json, got %q", c.LogFormat)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative")
	}
	switch c.Rules {
	case "default", "extended":
	default:
		return fmt.Errorf("rules must be default or extended, got %q", c.Rules)
	}
	if c.PageSize < 1 {
		return fmt.Errorf("page size must be at least 1")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("timezone: %w", err)
	}
	if c.MaxUploadMB < 1 {
		return fmt.Errorf("max upload must be at least 1 MB")
	}
	if c.RunRetention < 1 {
		return fmt.Errorf("run retention must be at least 1")
	}
	return nil
}

// Location returns the configured hour-of-day zone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// MaxUploadBytes is the request body limit for CSV uploads.
func (c *Config) MaxUploadBytes() int64 {
	return c.MaxUploadMB << 20
}
