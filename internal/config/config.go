package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig
	Server   ServerConfig
	App      AppConfig
	Referral ReferralConfig
	Log      LogConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Driver     string `env:"DB_DRIVER" envDefault:"postgres"`
	Host       string `env:"DB_HOST" envDefault:"localhost"`
	Port       string `env:"DB_PORT" envDefault:"5432"`
	User       string `env:"DB_USER" envDefault:"postgres"`
	Password   string `env:"DB_PASSWORD"`
	DBName     string `env:"DB_NAME" envDefault:"referral_shop"`
	SQLitePath string `env:"DB_SQLITE_PATH" envDefault:"referral_shop.db"`
}

// RedisConfig holds the token denylist store settings. An empty Addr disables it.
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

// ServerConfig holds server settings
type ServerConfig struct {
	Port         string        `env:"SERVER_PORT" envDefault:"8080"`
	CORSOrigins  []string      `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`
	ReadTimeout  time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"15s"`
}

// AppConfig holds application-specific settings
type AppConfig struct {
	JWTSecret   string        `env:"JWT_SECRET"`
	JWTExpire   time.Duration `env:"JWT_EXPIRE" envDefault:"168h"`
	FrontendURL string        `env:"FRONTEND_URL" envDefault:"http://localhost:3000"`
}

// ReferralConfig holds the credit amounts paid out when a referred user
// completes their first purchase.
type ReferralConfig struct {
	ReferrerCredit int `env:"REFERRAL_CREDIT_AMOUNT" envDefault:"2"`
	ReferredCredit int `env:"REFERRED_CREDIT_AMOUNT" envDefault:"2"`
}

// LogConfig holds logger settings
type LogConfig struct {
	Level      string `env:"LOG_LEVEL" envDefault:"INFO"`
	Filename   string `env:"LOG_FILENAME" envDefault:"logs/app.log"`
	MaxSize    int    `env:"LOG_MAX_SIZE" envDefault:"100"`
	MaxBackups int    `env:"LOG_MAX_BACKUPS" envDefault:"3"`
	MaxAge     int    `env:"LOG_MAX_AGE" envDefault:"28"`
	Compress   bool   `env:"LOG_COMPRESS" envDefault:"true"`
}

// DefaultReferralConfig returns the credit amounts used when nothing is configured.
func DefaultReferralConfig() ReferralConfig {
	return ReferralConfig{ReferrerCredit: 2, ReferredCredit: 2}
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	config := &Config{}
	if err := env.Parse(config); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks required fields and value ranges
func (c *Config) Validate() error {
	if c.App.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.App.JWTExpire <= 0 {
		return fmt.Errorf("JWT_EXPIRE must be positive")
	}
	if c.Referral.ReferrerCredit < 0 || c.Referral.ReferredCredit < 0 {
		return fmt.Errorf("referral credit amounts cannot be negative")
	}
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver)
	}
	return nil
}

// GetDSN returns the PostgreSQL connection string
func (c *Config) GetDSN() string {
	return c.Database.DSN()
}

// DSN returns the connection string for the configured driver
func (d DatabaseConfig) DSN() string {
	if d.Driver == "sqlite" {
		return d.SQLitePath
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		d.Host,
		d.Port,
		d.User,
		d.Password,
		d.DBName,
	)
}
