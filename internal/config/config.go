// Package config loads runtime settings for the chat backend from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds the settings shared by the server and the admin CLI.
type Config struct {
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`

	// DatabaseDriver selects the gorm dialector: "postgres" or "sqlite".
	DatabaseDriver string `env:"DATABASE_DRIVER" envDefault:"postgres"`
	DatabaseDSN    string `env:"DATABASE_DSN" envDefault:"host=localhost user=user password=password dbname=crmchat port=5432 sslmode=disable"`

	// RedisAddr enables the online-status mirror when non-empty.
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	UploadDir string `env:"UPLOAD_DIR" envDefault:"tmp/uploads"`

	JWTSecret string        `env:"JWT_SECRET,required,notEmpty"`
	TokenTTL  time.Duration `env:"TOKEN_TTL" envDefault:"72h"`

	// Locale selects the notification text catalog. LocaleDir, when set,
	// replaces the built-in catalogs.
	Locale    string `env:"LOCALE" envDefault:"en"`
	LocaleDir string `env:"LOCALE_DIR"`

	LogLevel       string `env:"LOG_LEVEL" envDefault:"info"`
	LogDevelopment bool   `env:"LOG_DEVELOPMENT" envDefault:"false"`

	// MaxMessageSize bounds a single websocket frame, so it also bounds one file chunk.
	MaxMessageSize  int64         `env:"WS_MAX_MESSAGE_SIZE" envDefault:"1048576"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Load reads an optional .env file and parses the environment into a Config.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return Parse()
}

// Parse builds a Config from the current environment only.
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects combinations env tags cannot express.
func (c *Config) Validate() error {
	switch c.DatabaseDriver {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("unsupported DATABASE_DRIVER %q", c.DatabaseDriver)
	}
	if c.MaxMessageSize <= 0 {
		return errors.New("WS_MAX_MESSAGE_SIZE must be positive")
	}
	return nil
}
