// Package config loads process settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	StorageMemory   = "memory"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"

	CartStoreMemory = "memory"
	CartStoreRedis  = "redis"
)

type Config struct {
	ServiceName string `envconfig:"SERVICE_NAME" default:"minishop-commerce"`
	Env         string `envconfig:"ENV" default:"dev"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	LogFile     string `envconfig:"LOG_FILE"`

	HTTPAddr         string        `envconfig:"HTTP_ADDR" default:":8080"`
	HTTPReadTimeout  time.Duration `envconfig:"HTTP_READ_TIMEOUT" default:"10s"`
	HTTPWriteTimeout time.Duration `envconfig:"HTTP_WRITE_TIMEOUT" default:"10s"`
	ShutdownTimeout  time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"5s"`

	JWTSecret string `envconfig:"JWT_SECRET"`

	StorageDriver string `envconfig:"STORAGE_DRIVER" default:"memory"`
	DatabaseDSN   string `envconfig:"DATABASE_DSN"`

	CartStore     string        `envconfig:"CART_STORE" default:"memory"`
	RedisAddr     string        `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD"`
	RedisDB       int           `envconfig:"REDIS_DB" default:"0"`
	CartTTL       time.Duration `envconfig:"CART_TTL" default:"168h"`

	OrderTrustClientPrice bool    `envconfig:"ORDER_TRUST_CLIENT_PRICE" default:"false"`
	OrderRateLimitRPS     float64 `envconfig:"ORDER_RATE_LIMIT_RPS" default:"5"`
	OrderRateLimitBurst   int     `envconfig:"ORDER_RATE_LIMIT_BURST" default:"10"`

	CORSAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
	CatalogSeedFile    string   `envconfig:"CATALOG_SEED_FILE"`
}

// Load reads the environment. files are optional .env files; a missing file
// is ignored and variables already set in the environment win.
func Load(files ...string) (*Config, error) {
	if err := loadDotEnv(files...); err != nil {
		return nil, err
	}
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	switch c.StorageDriver {
	case StorageMemory:
	case StorageSQLite, StoragePostgres:
		if c.DatabaseDSN == "" {
			errs = append(errs, fmt.Errorf("DATABASE_DSN is required for STORAGE_DRIVER=%s", c.StorageDriver))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver))
	}
	switch c.CartStore {
	case CartStoreMemory:
	case CartStoreRedis:
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("REDIS_ADDR is required for CART_STORE=redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown CART_STORE %q", c.CartStore))
	}
	if c.JWTSecret == "" && c.Env != "dev" && c.Env != "test" {
		errs = append(errs, errors.New("JWT_SECRET is required outside dev"))
	}
	if c.OrderRateLimitRPS <= 0 || c.OrderRateLimitBurst <= 0 {
		errs = append(errs, errors.New("ORDER_RATE_LIMIT_RPS and ORDER_RATE_LIMIT_BURST must be positive"))
	}
	if c.CartTTL < 0 {
		errs = append(errs, errors.New("CART_TTL must not be negative"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

func loadDotEnv(files ...string) error {
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("config: load %s: %w", f, err)
		}
	}
	return nil
}
