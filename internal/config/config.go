// internal/config/config.go
//
// Process configuration, read from the environment.
// A `.env` file in the working directory is loaded first when present;
// real environment variables always win over it.

package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds every setting the binary reads.
type Config struct {
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Server mode.
	Port           string `env:"PORT" envDefault:"5175"`
	DBPath         string `env:"DB_PATH" envDefault:"./data/app.db"`
	ClientOrigin   string `env:"CLIENT_ORIGIN" envDefault:"http://localhost:5173"`
	Environment    string `env:"NODE_ENV" envDefault:"development"`
	JWTSecret      string `env:"JWT_SECRET" envDefault:"dev_secret_change_me"`
	JWTExpiresDays int    `env:"JWT_EXPIRES_DAYS" envDefault:"14"`
	CookieName     string `env:"COOKIE_NAME" envDefault:"guess_token"`
	DailySalt      string `env:"DAILY_SALT" envDefault:"local_dev_salt"`
}

// Production reports whether cookies should be issued Secure/SameSite=None.
func (c Config) Production() bool { return c.Environment == "production" }

// Load reads `.env` (if any) and parses the environment into a Config.
func Load() (Config, error) {
	_ = godotenv.Load()
	return Parse()
}

// Parse reads the current environment only.
func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.JWTExpiresDays <= 0 {
		return Config{}, fmt.Errorf("JWT_EXPIRES_DAYS must be positive, got %d", cfg.JWTExpiresDays)
	}
	return cfg, nil
}
