// Package config provides application configuration.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store backends.
const (
	StoreSQLite = "sqlite"
	StoreMemory = "memory"
)

// Profile sinks.
const (
	SinkNone   = "none"
	SinkSQLite = "sqlite"
	SinkSheets = "sheets"
)

// Config holds all application configuration.
type Config struct {
	Port                 string
	FrontendURL          string
	Store                string
	DBPath               string
	SessionTTL           time.Duration
	SessionSweepInterval time.Duration
	CatalogPath          string
	LogLevel             slog.Level
	Features             FeatureConfig
	Profile              ProfileConfig
}

// FeatureConfig switches optional parts of the flow on or off.
type FeatureConfig struct {
	Grounding         bool
	TakeBreak         bool
	RequireOnboarding bool
}

// ProfileConfig controls where onboarding profiles are written.
type ProfileConfig struct {
	Sink            string
	SpreadsheetID   string
	Range           string
	CredentialsFile string
	SaveTimeout     time.Duration
	RatePerMinute   int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:                 getEnv("PORT", "8080"),
		FrontendURL:          getEnv("FRONTEND_URL", ""),
		Store:                strings.ToLower(getEnv("STORE", StoreSQLite)),
		DBPath:               getEnv("DB_PATH", "./data/cognify.db"),
		SessionTTL:           getEnvDuration("SESSION_TTL", 24*time.Hour),
		SessionSweepInterval: getEnvDuration("SESSION_SWEEP_INTERVAL", 5*time.Minute),
		CatalogPath:          getEnv("CATALOG_PATH", ""),
		LogLevel:             getEnvLevel("LOG_LEVEL", slog.LevelInfo),
		Features: FeatureConfig{
			Grounding:         getEnvBool("GROUNDING_ENABLED", true),
			TakeBreak:         getEnvBool("TAKE_BREAK_ENABLED", false),
			RequireOnboarding: getEnvBool("REQUIRE_ONBOARDING", false),
		},
		Profile: ProfileConfig{
			Sink:            strings.ToLower(getEnv("PROFILE_SINK", SinkNone)),
			SpreadsheetID:   getEnv("SHEETS_SPREADSHEET_ID", ""),
			Range:           getEnv("SHEETS_RANGE", "Sheet1!A1:F"),
			CredentialsFile: getEnv("GOOGLE_CREDENTIALS_FILE", ""),
			SaveTimeout:     getEnvDuration("PROFILE_SAVE_TIMEOUT", 10*time.Second),
			RatePerMinute:   getEnvInt("PROFILE_RATE_PER_MINUTE", 60),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT cannot be empty")
	}
	switch c.Store {
	case StoreSQLite:
		if c.DBPath == "" {
			return errors.New("DB_PATH cannot be empty")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("STORE must be %q or %q, got %q", StoreSQLite, StoreMemory, c.Store)
	}
	if c.SessionTTL <= 0 {
		return errors.New("SESSION_TTL must be > 0")
	}
	if c.SessionSweepInterval <= 0 {
		return errors.New("SESSION_SWEEP_INTERVAL must be > 0")
	}
	return c.Profile.validate(c.Store)
}

func (p ProfileConfig) validate(store string) error {
	switch p.Sink {
	case SinkNone:
	case SinkSQLite:
		if store != StoreSQLite {
			return errors.New("PROFILE_SINK=sqlite requires STORE=sqlite")
		}
	case SinkSheets:
		if p.SpreadsheetID == "" {
			return errors.New("SHEETS_SPREADSHEET_ID is required for PROFILE_SINK=sheets")
		}
		if p.Range == "" {
			return errors.New("SHEETS_RANGE cannot be empty")
		}
	default:
		return fmt.Errorf("PROFILE_SINK must be one of none, sqlite, sheets, got %q", p.Sink)
	}
	if p.SaveTimeout <= 0 {
		return errors.New("PROFILE_SAVE_TIMEOUT must be > 0")
	}
	if p.RatePerMinute < 0 {
		return errors.New("PROFILE_RATE_PER_MINUTE must be >= 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}

func getEnvLevel(key string, fallback slog.Level) slog.Level {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(value))); err != nil {
		return fallback
	}
	return level
}
