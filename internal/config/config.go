// Package config loads solver and service settings from a YAML file,
// an optional .env file and the environment, in increasing precedence.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"vrptw/internal/logging"
	"vrptw/internal/opt"
	"vrptw/internal/snapshot"
)

type Config struct {
	// Strategy is the search run by cmd/solver and the default for API runs.
	Strategy string        `yaml:"strategy" validate:"required,oneof=greedy grasp tabu sa lns random"`
	Timeout  time.Duration `yaml:"timeout" validate:"gte=0"`

	Solver   opt.Options    `yaml:"solver"`
	Log      logging.Config `yaml:"log"`
	Server   Server         `yaml:"server"`
	Snapshot Snapshot       `yaml:"snapshot"`
	Webhooks Webhooks       `yaml:"webhooks"`
}

type Server struct {
	Port        string `yaml:"port" validate:"required,numeric"`
	DatabaseURL string `yaml:"database_url"`
	RedisURL    string `yaml:"redis_url"`
	// MaxRunTime caps the timeout a client may request for one run.
	MaxRunTime time.Duration `yaml:"max_run_time" validate:"gt=0"`
	// PersistEvery throttles how often a run stores improving solutions.
	PersistEvery time.Duration `yaml:"persist_every" validate:"gte=0"`
}

type Snapshot struct {
	Base        string                `yaml:"base"`
	MinInterval time.Duration         `yaml:"min_interval" validate:"gte=0"`
	Checkpoints []snapshot.Checkpoint `yaml:"checkpoints" validate:"dive"`
}

type Webhooks struct {
	MaxAttempts int `yaml:"max_attempts" validate:"gte=1"`
}

func Default() Config {
	return Config{
		Strategy: "tabu",
		Timeout:  5 * time.Minute,
		Solver:   opt.DefaultOptions(),
		Log:      logging.Config{Level: "info", MaxSizeMB: 100, MaxBackups: 3, MaxAgeDays: 7},
		Server: Server{
			Port:         "8080",
			MaxRunTime:   30 * time.Minute,
			PersistEvery: time.Second,
		},
		Snapshot: Snapshot{
			MinInterval: time.Second,
			Checkpoints: []snapshot.Checkpoint{
				{Label: "1m", After: time.Minute},
				{Label: "5m", After: 5 * time.Minute},
			},
		},
		Webhooks: Webhooks{MaxAttempts: 8},
	}
}

// Load reads path (skipped when empty) over Default, then .env and the
// process environment, and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: %w", err)
		}
		if err := decode(bytes.NewReader(b), &cfg); err != nil {
			return cfg, fmt.Errorf("config: %s: %w", path, err)
		}
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("config: .env: %w", err)
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func decode(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// ApplyEnv overrides cfg from the variables lookup reports.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("VRPTW_STRATEGY", &c.Strategy)
	str("DATABASE_URL", &c.Server.DatabaseURL)
	str("REDIS_URL", &c.Server.RedisURL)
	str("PORT", &c.Server.Port)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FILE", &c.Log.File)

	if v, ok := lookup("VRPTW_SEED"); ok && v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("config: VRPTW_SEED: %w", err)
		}
		c.Solver.Seed = n
	}
	if v, ok := lookup("VRPTW_TIMEOUT"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: VRPTW_TIMEOUT: %w", err)
		}
		c.Timeout = d
	}
	if v, ok := lookup("WEBHOOK_MAX_ATTEMPTS"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: WEBHOOK_MAX_ATTEMPTS: %w", err)
		}
		c.Webhooks.MaxAttempts = n
	}
	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}
