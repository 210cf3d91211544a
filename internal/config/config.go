// Package config loads runtime configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Defaults for the reminder window, kept from the original bot settings.
const (
	DefaultNotificationStartHour = 4
	DefaultNotificationEndHour   = 18
	DefaultReminderInterval      = 60
	DefaultModelKey              = "ema_v1"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	Database Database
	LogMode  string
	ModelKey string
	Tiers    Tiers

	NotificationStartHour int
	NotificationEndHour   int
	// ReminderIntervalMinutes is how often due reviews are checked.
	ReminderIntervalMinutes int
	TelegramBotToken        string

	// ImportFile, when set, is a concept catalog (xlsx or csv) loaded at startup.
	ImportFile       string
	ImportLanguageID int64
}

type Database struct {
	Type      string // "sqlite", "postgres" or "turso"
	URL       string // sqlite path or postgres connection string
	TursoURL  string
	TursoAuth string
}

// Tiers are the product-tuned tier thresholds.
type Tiers struct {
	MasteryMin       float64
	FluencyMin       float64
	FluencyRtNormMax float64
	AutoMin          float64
	AutoRtNormMax    float64
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	// a missing .env is normal outside local development
	_ = godotenv.Load()

	cfg := &Config{
		Database: Database{
			Type:      strings.ToLower(envString("DB_TYPE", "sqlite")),
			URL:       envString("DATABASE_URL", "data/retention.db"),
			TursoURL:  os.Getenv("TURSO_DATABASE_URL"),
			TursoAuth: os.Getenv("TURSO_AUTH_TOKEN"),
		},
		LogMode:  envString("LOG_MODE", "dev"),
		ModelKey: envString("MODEL_KEY", DefaultModelKey),
		Tiers: Tiers{
			MasteryMin:       envFloat("TIER_MASTERY_MIN", 0.80),
			FluencyMin:       envFloat("TIER_FLUENCY_MIN", 0.85),
			FluencyRtNormMax: envFloat("TIER_FLUENCY_RT_NORM_MAX", 1.00),
			AutoMin:          envFloat("TIER_AUTO_MIN", 0.90),
			AutoRtNormMax:    envFloat("TIER_AUTO_RT_NORM_MAX", 0.80),
		},
		NotificationStartHour:   envHour("NOTIFICATION_START_HOUR", DefaultNotificationStartHour),
		NotificationEndHour:     envHour("NOTIFICATION_END_HOUR", DefaultNotificationEndHour),
		ReminderIntervalMinutes: envInt("REMINDER_INTERVAL_MINUTES", DefaultReminderInterval),
		TelegramBotToken:        os.Getenv("TELEGRAM_BOT_TOKEN"),
		ImportFile:              os.Getenv("IMPORT_FILE"),
		ImportLanguageID:        int64(envInt("IMPORT_LANGUAGE_ID", 1)),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Database.Type {
	case "sqlite", "postgres":
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL environment variable is required for DB_TYPE=%s", c.Database.Type)
		}
	case "turso":
		if c.Database.TursoURL == "" || c.Database.TursoAuth == "" {
			return fmt.Errorf("TURSO_DATABASE_URL and TURSO_AUTH_TOKEN are required for DB_TYPE=turso")
		}
	default:
		return fmt.Errorf("DB_TYPE must be 'sqlite', 'postgres' or 'turso', got: %s", c.Database.Type)
	}
	if c.ReminderIntervalMinutes <= 0 {
		return fmt.Errorf("REMINDER_INTERVAL_MINUTES must be positive, got: %d", c.ReminderIntervalMinutes)
	}
	t := c.Tiers
	if !(t.MasteryMin <= t.FluencyMin && t.FluencyMin <= t.AutoMin) {
		return fmt.Errorf("tier thresholds must satisfy mastery <= fluency <= auto, got %.2f/%.2f/%.2f",
			t.MasteryMin, t.FluencyMin, t.AutoMin)
	}
	return nil
}

func envString(name, def string) string {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	return v
}

func envInt(name string, def int) int {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func envFloat(name string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func envHour(name string, def int) int {
	h := envInt(name, def)
	if h < 0 || h > 23 {
		return def
	}
	return h
}
