// Package config loads the service configuration from a TOML file with one
// table per environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/ayusman/formcoach/internal/exercise"
)

// Environment variables that override file values.
const (
	EnvDBPath = "FORMCOACH_DB_PATH"
	EnvPort   = "FORMCOACH_PORT"
)

type Config struct {
	Host      string `toml:"host"`
	Port      int    `toml:"port"`
	DBPath    string `toml:"db_path"`
	StaticDir string `toml:"static_dir"`
	// logging
	LogLevel      string `toml:"log_level"`
	LogsPath      string `toml:"logs_path"`
	LogToStdout   bool   `toml:"log_to_stdout"`
	LogFormatJSON bool   `toml:"log_format_json"`
	// metrics
	MetricsEnabled bool `toml:"metrics_enabled"`
	// sessions
	MaxSessions          int `toml:"max_sessions"`
	SessionIdleSeconds   int `toml:"session_idle_seconds"`
	SweepIntervalSeconds int `toml:"sweep_interval_seconds"`

	Exercise exercise.Config `toml:"exercise"`
}

type Toml struct {
	Development *Config
	Production  *Config
}

func (t *Toml) Get(env string) (*Config, error) {
	switch strings.ToLower(env) {
	case "dev", "development":
		return t.Development, nil
	case "prod", "production":
		return t.Production, nil
	default:
		return nil, fmt.Errorf("unknown env: %s", env)
	}
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Host:                 "127.0.0.1",
		Port:                 8090,
		DBPath:               "formcoach.db",
		LogLevel:             "info",
		LogToStdout:          true,
		MetricsEnabled:       true,
		MaxSessions:          64,
		SessionIdleSeconds:   600,
		SweepIntervalSeconds: 60,
		Exercise:             exercise.DefaultConfig(),
	}
}

// Load reads the table for env from the TOML file at path. Keys missing from
// the file keep their defaults, and a missing file yields the defaults.
func Load(env, path string) (*Config, error) {
	t := &Toml{
		Development: Default(),
		Production:  Default(),
	}

	if path != "" {
		if _, err := toml.DecodeFile(path, t); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
	}

	cfg, err := t.Get(env)
	if err != nil {
		return nil, err
	}

	if dbPath := os.Getenv(EnvDBPath); dbPath != "" {
		cfg.DBPath = dbPath
	}
	if port := os.Getenv(EnvPort); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", EnvPort, err)
		}
		cfg.Port = p
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for unusable values.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.DBPath == "" {
		return errors.New("db_path must be set")
	}
	if c.MaxSessions < 0 {
		return fmt.Errorf("invalid max_sessions: %d", c.MaxSessions)
	}
	if err := c.Exercise.Validate(); err != nil {
		return fmt.Errorf("exercise: %w", err)
	}
	return nil
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// SessionIdle returns how long a session may go without frames before it is
// swept. Zero disables sweeping.
func (c *Config) SessionIdle() time.Duration {
	return time.Duration(c.SessionIdleSeconds) * time.Second
}

// SweepInterval returns how often idle sessions are swept.
func (c *Config) SweepInterval() time.Duration {
	if c.SweepIntervalSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(c.SweepIntervalSeconds) * time.Second
}
