package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Auth     AuthConfig
	Log      LogConfig
	Catalog  CatalogConfig
}

type ServerConfig struct {
	Port         string        `env:"PORT" envDefault:":8080"`
	ReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"15s"`
	IdleTimeout  time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"60s"`
	CORSOrigins  []string      `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`
}

type DatabaseConfig struct {
	Driver         string        `env:"DB_DRIVER" envDefault:"postgres"`
	PostgresDSN    string        `env:"POSTGRES_DSN"`
	SQLiteDSN      string        `env:"SQLITE_DSN" envDefault:"file:ms-events.db?cache=shared"`
	MaxOpenConns   int           `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdleConns   int           `env:"DB_MAX_IDLE_CONNS" envDefault:"25"`
	MaxLifetime    time.Duration `env:"DB_MAX_LIFETIME" envDefault:"5m"`
	ConnectRetries int           `env:"DB_CONNECT_RETRIES" envDefault:"5"`
	RetryInterval  time.Duration `env:"DB_RETRY_INTERVAL" envDefault:"2s"`
	MigrateOnStart bool          `env:"MIGRATE_ON_START" envDefault:"true"`
	SeedData       bool          `env:"SEED_DATA" envDefault:"false"`
}

// RedisConfig enables the venue map cache when Addr is set.
type RedisConfig struct {
	Addr     string        `env:"REDIS_ADDR"`
	VenueTTL time.Duration `env:"VENUE_CACHE_TTL" envDefault:"5m"`
}

type KafkaConfig struct {
	Enabled     bool     `env:"KAFKA_ENABLED" envDefault:"false"`
	Brokers     []string `env:"KAFKA_BROKERS" envSeparator:"," envDefault:"localhost:9092"`
	TopicPrefix string   `env:"KAFKA_TOPIC_PREFIX" envDefault:"sports.events"`
	GroupID     string   `env:"KAFKA_GROUP_ID" envDefault:"ms-events-watch"`
}

type AuthConfig struct {
	Mode   string `env:"AUTH_MODE" envDefault:"oidc"`
	Issuer string `env:"OIDC_ISSUER"`
}

type LogConfig struct {
	Service string `env:"SERVICE_NAME" envDefault:"ms-events"`
	Dir     string `env:"LOG_DIR"`
	Level   string `env:"LOG_LEVEL" envDefault:"info"`
}

type CatalogConfig struct {
	Path string `env:"SPORT_CATALOG_PATH"`
}

// LoadDotEnv reads .env into the process environment if the file exists.
// It reports whether a file was loaded.
func LoadDotEnv(files ...string) bool {
	return godotenv.Load(files...) == nil
}

// Load parses the environment and validates the result.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	switch c.Database.Driver {
	case "postgres":
		if c.Database.PostgresDSN == "" {
			errs = append(errs, errors.New("POSTGRES_DSN is required when DB_DRIVER=postgres"))
		}
	case "sqlite":
		if c.Database.SQLiteDSN == "" {
			errs = append(errs, errors.New("SQLITE_DSN is required when DB_DRIVER=sqlite"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver))
	}
	if c.Database.ConnectRetries < 1 {
		errs = append(errs, errors.New("DB_CONNECT_RETRIES must be at least 1"))
	}

	switch c.Auth.Mode {
	case "oidc":
		if c.Auth.Issuer == "" {
			errs = append(errs, errors.New("OIDC_ISSUER is required when AUTH_MODE=oidc"))
		}
	case "insecure", "disabled":
	default:
		errs = append(errs, fmt.Errorf("unsupported AUTH_MODE %q", c.Auth.Mode))
	}

	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		errs = append(errs, errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED=true"))
	}

	return errors.Join(errs...)
}
