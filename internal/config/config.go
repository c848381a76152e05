// Package config loads the process configuration from the environment and
// optional .env files.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"kinokod-bot/internal/logger"
	"kinokod-bot/internal/storage"
)

type Config struct {
	BotToken      string  `env:"BOT_TOKEN" validate:"required"`
	AdminIDs      []int64 `env:"ADMIN_IDS" envSeparator:","`
	Port          string  `env:"PORT" envDefault:"8080" validate:"required,numeric"`
	WebhookSecret string  `env:"WEBHOOK_SECRET"`
	PublicURL     string  `env:"PUBLIC_URL" validate:"omitempty,url"`

	DatabaseType  string `env:"DATABASE_TYPE" envDefault:"mongo" validate:"oneof=mongo postgres sqlite"`
	MongoURI      string `env:"MONGODB_URI" validate:"required_if=DatabaseType mongo,required_if=KVBackend mongo"`
	MongoDatabase string `env:"MONGODB_DATABASE" envDefault:"kinokod"`
	PostgresDSN   string `env:"POSTGRES_DSN" validate:"required_if=DatabaseType postgres"`
	SQLitePath    string `env:"SQLITE_PATH" envDefault:"./data/kinokod.db"`

	KVBackend  string `env:"KV_BACKEND" envDefault:"badger" validate:"oneof=badger mongo"`
	BadgerPath string `env:"BADGER_PATH" envDefault:"./data/kv"`

	ViewDedupWindow  time.Duration `env:"VIEW_DEDUP_WINDOW" envDefault:"24h" validate:"gt=0"`
	TopCacheTTL      time.Duration `env:"TOP_CACHE_TTL" envDefault:"5m"`
	WizardSessionTTL time.Duration `env:"WIZARD_SESSION_TTL" envDefault:"24h" validate:"gt=0"`
	TelegramRPS      float64       `env:"TELEGRAM_RPS" envDefault:"25" validate:"gt=0"`
	PollWorkers      int           `env:"POLL_WORKERS" envDefault:"4" validate:"min=1,max=64"`
	Language         string        `env:"USER_LANGUAGE" envDefault:"uz" validate:"oneof=uz ru"`

	Log logger.Config
}

// Load reads the given .env files (missing ones are skipped, variables
// already set win), parses the environment and validates the result.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// IsAdmin reports whether id is listed in ADMIN_IDS.
func (c *Config) IsAdmin(id int64) bool {
	for _, a := range c.AdminIDs {
		if a == id {
			return true
		}
	}
	return false
}

// Storage returns the catalog backend options.
func (c *Config) Storage() storage.Options {
	return storage.Options{
		Type:          c.DatabaseType,
		MongoURI:      c.MongoURI,
		MongoDatabase: c.MongoDatabase,
		PostgresDSN:   c.PostgresDSN,
		SQLitePath:    c.SQLitePath,
	}
}
