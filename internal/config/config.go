// Package config loads planner and service settings from a YAML file with
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"

	"cvrpplan/internal/opt"
)

type Config struct {
	// Capacity is the per-vehicle capacity applied to every scenario.
	Capacity  int    `yaml:"capacity"`
	InputDir  string `yaml:"inputDir"`
	OutputDir string `yaml:"outputDir"`
	// Archive is a SQLite file path; empty disables archiving in the batch driver.
	Archive string  `yaml:"archive"`
	Planner Planner `yaml:"planner"`
	Service Service `yaml:"service"`
}

// Planner mirrors opt.Options in file form.
type Planner struct {
	Restarts                int           `yaml:"restarts"`
	StepTimeLimit           time.Duration `yaml:"stepTimeLimit"`
	MaxTime                 time.Duration `yaml:"maxTime"`
	NoImproveLimit          int           `yaml:"noImproveLimit"`
	MinImprovement          float64       `yaml:"minImprovement"`
	ApplyThresholdAtRestart bool          `yaml:"applyThresholdAtRestart"`
	NoiseSigma              float64       `yaml:"noiseSigma"`
	Strategies              []string      `yaml:"strategies"`
	Workers                 int           `yaml:"workers"`
	Seed                    int64         `yaml:"seed"`
	ExtraVehicles           int           `yaml:"extraVehicles"`
}

type Service struct {
	Port        string `yaml:"port"`
	DatabaseURL string `yaml:"databaseUrl"`
	DBMigrate   bool   `yaml:"dbMigrate"`
	RedisURL    string `yaml:"redisUrl"`
	// RateRPS throttles POST /v1/optimize; zero disables the limiter.
	RateRPS   float64 `yaml:"rateRps"`
	RateBurst int     `yaml:"rateBurst"`
	// MaxPoints caps the size of a submitted instance.
	MaxPoints          int    `yaml:"maxPoints"`
	AuthMode           string `yaml:"authMode"`
	AuthHMACSecret     string `yaml:"authHmacSecret"`
	WebhookURL         string `yaml:"webhookUrl"`
	WebhookSecret      string `yaml:"webhookSecret"`
	WebhookMaxAttempts int    `yaml:"webhookMaxAttempts"`
}

func Default() Config {
	o := opt.DefaultOptions()
	strategies := make([]string, len(o.Strategies))
	for i, s := range o.Strategies {
		strategies[i] = s.String()
	}
	return Config{
		Capacity:  200,
		InputDir:  "data",
		OutputDir: "results",
		Planner: Planner{
			Restarts:       o.Restarts,
			StepTimeLimit:  o.StepTimeLimit,
			MaxTime:        o.MaxTime,
			NoImproveLimit: o.NoImproveLimit,
			MinImprovement: o.MinImprovement,
			NoiseSigma:     o.NoiseSigma,
			Strategies:     strategies,
			Workers:        o.Workers,
		},
		Service: Service{
			Port:               "8080",
			DBMigrate:          true,
			RateRPS:            2,
			RateBurst:          4,
			MaxPoints:          5000,
			AuthMode:           "dev",
			WebhookMaxAttempts: 5,
		},
	}
}

// Load reads path (if non-empty) over the defaults, then applies environment
// overrides and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// ApplyEnv overlays variables found by lookup onto c.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	float := func(key string, dst *float64) {
		if v, ok := lookup(key); ok && v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = f
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	num("CVRP_CAPACITY", &c.Capacity)
	str("CVRP_INPUT_DIR", &c.InputDir)
	str("CVRP_OUTPUT_DIR", &c.OutputDir)
	str("CVRP_ARCHIVE", &c.Archive)
	num("CVRP_RESTARTS", &c.Planner.Restarts)
	dur("CVRP_STEP_TIME_LIMIT", &c.Planner.StepTimeLimit)
	dur("CVRP_MAX_TIME", &c.Planner.MaxTime)
	num("CVRP_NO_IMPROVE_LIMIT", &c.Planner.NoImproveLimit)
	float("CVRP_MIN_IMPROVEMENT", &c.Planner.MinImprovement)
	num("CVRP_WORKERS", &c.Planner.Workers)
	num("CVRP_EXTRA_VEHICLES", &c.Planner.ExtraVehicles)
	if v, ok := lookup("CVRP_SEED"); ok && v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("CVRP_SEED: %w", err))
		} else {
			c.Planner.Seed = n
		}
	}
	if v, ok := lookup("CVRP_STRATEGIES"); ok && v != "" {
		c.Planner.Strategies = strings.Split(v, ",")
	}

	str("PORT", &c.Service.Port)
	str("DATABASE_URL", &c.Service.DatabaseURL)
	if v, ok := lookup("DB_MIGRATE"); ok && v != "" {
		c.Service.DBMigrate = v != "false"
	}
	str("REDIS_URL", &c.Service.RedisURL)
	float("RATE_RPS", &c.Service.RateRPS)
	num("RATE_BURST", &c.Service.RateBurst)
	num("MAX_POINTS", &c.Service.MaxPoints)
	str("AUTH_MODE", &c.Service.AuthMode)
	str("AUTH_HMAC_SECRET", &c.Service.AuthHMACSecret)
	str("WEBHOOK_URL", &c.Service.WebhookURL)
	str("WEBHOOK_SECRET", &c.Service.WebhookSecret)
	num("WEBHOOK_MAX_ATTEMPTS", &c.Service.WebhookMaxAttempts)
	return errors.Join(errs...)
}

func (c Config) Validate() error {
	if c.Capacity <= 0 {
		return fmt.Errorf("config: capacity must be > 0, got %d", c.Capacity)
	}
	if _, err := c.Planner.Options(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	switch strings.ToLower(c.Service.AuthMode) {
	case "dev", "none":
	case "hmac":
		if c.Service.AuthHMACSecret == "" {
			return errors.New("config: authHmacSecret is required in hmac mode")
		}
	default:
		return fmt.Errorf("config: unknown auth mode %q", c.Service.AuthMode)
	}
	if c.Service.RateRPS < 0 || c.Service.RateBurst < 0 {
		return errors.New("config: rate limits must be >= 0")
	}
	if c.Service.MaxPoints < 0 {
		return errors.New("config: maxPoints must be >= 0")
	}
	return nil
}

// Options converts p into validated planner options.
func (p Planner) Options() (opt.Options, error) {
	o := opt.Options{
		Restarts:                p.Restarts,
		StepTimeLimit:           p.StepTimeLimit,
		MaxTime:                 p.MaxTime,
		NoImproveLimit:          p.NoImproveLimit,
		MinImprovement:          p.MinImprovement,
		ApplyThresholdAtRestart: p.ApplyThresholdAtRestart,
		NoiseSigma:              p.NoiseSigma,
		Workers:                 p.Workers,
		Seed:                    p.Seed,
		ExtraVehicles:           p.ExtraVehicles,
	}
	for _, name := range p.Strategies {
		s, err := opt.ParseStrategy(name)
		if err != nil {
			return o, err
		}
		o.Strategies = append(o.Strategies, s)
	}
	return o, o.Validate()
}
