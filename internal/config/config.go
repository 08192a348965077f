package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"hustle/internal/engine"
)

type Config struct {
	Server struct {
		Port           string   `yaml:"port"`
		RequestTimeout string   `yaml:"request_timeout"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Leaderboard struct {
		TTL string `yaml:"ttl"`
	} `yaml:"leaderboard"`
	Auth struct {
		JWTSecret         string `yaml:"jwt_secret"`
		TokenTTL          string `yaml:"token_ttl"`
		AdminUsername     string `yaml:"admin_username"`
		AdminPasswordHash string `yaml:"admin_password_hash"`
	} `yaml:"auth"`
	Scoring Scoring `yaml:"scoring"`
	Catalog struct {
		Path string `yaml:"path"`
	} `yaml:"catalog"`
	Progress struct {
		MaxRetries *int `yaml:"max_retries"`
	} `yaml:"progress"`
}

// Scoring overrides the default point values. Unset fields keep the default.
type Scoring struct {
	AptitudeFirstTry    *float64 `yaml:"aptitude_first_try"`
	AptitudeSecondTry   *float64 `yaml:"aptitude_second_try"`
	AptitudeConsolation *float64 `yaml:"aptitude_consolation"`
	CodingSuccess       *float64 `yaml:"coding_success"`
	CodingFailure       *float64 `yaml:"coding_failure"`
	MaxAptitudeAttempts *int     `yaml:"max_aptitude_attempts"`
	CodingTimeCap       string   `yaml:"coding_time_cap"`
}

// Load reads YAML config from path and applies environment overrides.
// A missing file yields defaults plus environment.
func Load(path string) (Config, error) {
	cfg, err := read(path)
	if err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// LoadForMigrate reads the same sources as Load but only requires a
// Postgres URL; migrations never issue tokens or score answers.
func LoadForMigrate(path string) (Config, error) {
	cfg, err := read(path)
	if err != nil {
		return cfg, err
	}
	if cfg.Postgres.URL == "" {
		return cfg, errors.New("postgres.url (or POSTGRES_URL) is required to migrate")
	}
	return cfg, nil
}

func read(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return cfg, err
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("JWT_SECRET"); v != "" {
		c.Auth.JWTSecret = v
	}
	if v := os.Getenv("POSTGRES_URL"); v != "" {
		c.Postgres.URL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("ADMIN_USERNAME"); v != "" {
		c.Auth.AdminUsername = v
	}
	if v := os.Getenv("ADMIN_PASSWORD_HASH"); v != "" {
		c.Auth.AdminPasswordHash = v
	}
}

// Validate rejects settings the service cannot run with.
func (c Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret (or JWT_SECRET) is required")
	}
	for name, raw := range map[string]string{
		"server.request_timeout":  c.Server.RequestTimeout,
		"leaderboard.ttl":         c.Leaderboard.TTL,
		"auth.token_ttl":          c.Auth.TokenTTL,
		"scoring.coding_time_cap": c.Scoring.CodingTimeCap,
	} {
		if raw == "" {
			continue
		}
		if _, err := time.ParseDuration(raw); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	if r := c.Progress.MaxRetries; r != nil && *r < 0 {
		return errors.New("progress.max_retries must not be negative")
	}
	if n := c.Scoring.MaxAptitudeAttempts; n != nil && *n < 1 {
		return errors.New("scoring.max_aptitude_attempts must be at least 1")
	}
	p := c.Policy()
	for name, v := range map[string]float64{
		"scoring.aptitude_first_try":   p.AptitudeFirstTry,
		"scoring.aptitude_second_try":  p.AptitudeSecondTry,
		"scoring.aptitude_consolation": p.AptitudeConsolation,
		"scoring.coding_success":       p.CodingSuccess,
		"scoring.coding_failure":       p.CodingFailure,
	} {
		if v < 0 {
			return fmt.Errorf("%s must not be negative", name)
		}
	}
	if p.AptitudeSecondTry > p.AptitudeFirstTry {
		return errors.New("scoring.aptitude_second_try must not exceed aptitude_first_try")
	}
	if p.AptitudeConsolation > p.AptitudeSecondTry {
		return errors.New("scoring.aptitude_consolation must not exceed aptitude_second_try")
	}
	if p.CodingTimeCap <= 0 {
		return errors.New("scoring.coding_time_cap must be positive")
	}
	return nil
}

// Policy merges the scoring overrides onto the default policy.
func (c Config) Policy() engine.Policy {
	p := engine.DefaultPolicy()
	s := c.Scoring
	setFloat := func(dst *float64, v *float64) {
		if v != nil {
			*dst = *v
		}
	}
	setFloat(&p.AptitudeFirstTry, s.AptitudeFirstTry)
	setFloat(&p.AptitudeSecondTry, s.AptitudeSecondTry)
	setFloat(&p.AptitudeConsolation, s.AptitudeConsolation)
	setFloat(&p.CodingSuccess, s.CodingSuccess)
	setFloat(&p.CodingFailure, s.CodingFailure)
	if s.MaxAptitudeAttempts != nil {
		p.MaxAptitudeAttempts = *s.MaxAptitudeAttempts
	}
	p.CodingTimeCap = TTLDuration(s.CodingTimeCap, p.CodingTimeCap)
	return p
}

// MaxRetries returns progress.max_retries or the default of 3.
func (c Config) MaxRetries() int {
	if c.Progress.MaxRetries == nil {
		return 3
	}
	return *c.Progress.MaxRetries
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
