package config

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"
)

const (
	sslModeDisable = "disable"
	sslModeRequire = "require"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type (
	Config struct {
		Host            string        `mapstructure:"HOST"`
		Port            string        `mapstructure:"PORT"`
		GRPCPort        string        `mapstructure:"GRPC_PORT"`
		DBDriver        string        `mapstructure:"DB_DRIVER"`
		DBHost          string        `mapstructure:"DB_HOST"`
		DBPort          string        `mapstructure:"DB_PORT"`
		DBUser          string        `mapstructure:"DB_USER"`
		DBPassword      string        `mapstructure:"DB_PASSWORD"`
		DBName          string        `mapstructure:"DB_NAME"`
		DBSSLMode       string        `mapstructure:"DB_SSL_MODE"`
		DBPath          string        `mapstructure:"DB_PATH"`
		RedisURL        string        `mapstructure:"REDIS_URL"`
		SessionCacheTTL time.Duration `mapstructure:"SESSION_CACHE_TTL"`
		BcryptCost      int           `mapstructure:"BCRYPT_COST"`
		CORSOrigins     string        `mapstructure:"CORS_ORIGINS"`
		BodyLimit       int           `mapstructure:"BODY_LIMIT"`
		StaticDir       string        `mapstructure:"STATIC_DIR"`
		LogLevel        string        `mapstructure:"LOG_LEVEL"`
		LogDev          bool          `mapstructure:"LOG_DEV"`
	}
)

var envs = []string{
	"HOST", "PORT", "GRPC_PORT",
	"DB_DRIVER", "DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD", "DB_NAME", "DB_SSL_MODE", "DB_PATH",
	"REDIS_URL", "SESSION_CACHE_TTL", "BCRYPT_COST",
	"CORS_ORIGINS", "BODY_LIMIT", "STATIC_DIR",
	"LOG_LEVEL", "LOG_DEV",
}

func NewConfig() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("NOTELY")
	v.AllowEmptyEnv(true)

	v.SetDefault("HOST", "0.0.0.0")
	v.SetDefault("PORT", "3000")
	v.SetDefault("GRPC_PORT", "9000")
	v.SetDefault("DB_DRIVER", DriverPostgres)
	v.SetDefault("DB_HOST", "0.0.0.0")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "user")
	v.SetDefault("DB_PASSWORD", "password")
	v.SetDefault("DB_NAME", "notely_db")
	v.SetDefault("DB_SSL_MODE", sslModeDisable)
	v.SetDefault("DB_PATH", "notely.db")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("SESSION_CACHE_TTL", "10m")
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("CORS_ORIGINS", "*")
	v.SetDefault("BODY_LIMIT", 1<<20)
	v.SetDefault("STATIC_DIR", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_DEV", false)

	for _, key := range envs {
		if err := v.BindEnv(key); err != nil {
			return nil, err
		}
	}

	cfg := Config{}
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}

	if err := validate(&cfg); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// HTTPAddr is the fiber listen address.
func (c *Config) HTTPAddr() string {
	return c.Host + ":" + c.Port
}

// GRPCAddr is empty when the gRPC listener is disabled.
func (c *Config) GRPCAddr() string {
	if c.GRPCPort == "" {
		return ""
	}
	return c.Host + ":" + c.GRPCPort
}

func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort, c.DBSSLMode)
}

func validate(cfg *Config) error {
	switch cfg.DBDriver {
	case DriverPostgres, DriverSQLite:
	default:
		return errors.New(fmt.Sprintf("DB driver is invalid: %s", cfg.DBDriver))
	}

	validSSL := false
	for _, validValue := range []string{sslModeDisable, sslModeRequire} {
		if cfg.DBSSLMode == validValue {
			validSSL = true
			break
		}
	}
	if !validSSL {
		return errors.New(fmt.Sprintf("DB SSL mode is invalid: %s", cfg.DBSSLMode))
	}

	if cfg.BcryptCost < bcrypt.MinCost || cfg.BcryptCost > bcrypt.MaxCost {
		return errors.New(fmt.Sprintf("bcrypt cost is out of range: %d", cfg.BcryptCost))
	}
	if cfg.BodyLimit <= 0 {
		return errors.New(fmt.Sprintf("body limit must be positive: %d", cfg.BodyLimit))
	}
	if cfg.SessionCacheTTL <= 0 {
		return errors.New(fmt.Sprintf("session cache ttl must be positive: %s", cfg.SessionCacheTTL))
	}
	return nil
}
