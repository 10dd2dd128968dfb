// Package config loads server settings from the environment.
//
// A .env file in the working directory is read first when present; real
// environment variables always win over it.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	DriverSQLite = "sqlite"
	DriverMongo  = "mongo"
)

type Config struct {
	Port          int           `mapstructure:"PORT"`
	AppEnv        string        `mapstructure:"APP_ENV"`
	LogLevel      string        `mapstructure:"LOG_LEVEL"`
	TokenSecret   string        `mapstructure:"ACCESS_TOKEN_SECRET"`
	StoreDriver   string        `mapstructure:"STORE_DRIVER"`
	DBPath        string        `mapstructure:"DB_PATH"`
	MongoURI      string        `mapstructure:"MONGO_URI"`
	MongoDB       string        `mapstructure:"MONGO_DB"`
	RedisAddr     string        `mapstructure:"REDIS_ADDR"`
	StatsCacheTTL time.Duration `mapstructure:"STATS_CACHE_TTL"`
	CORSOrigins   string        `mapstructure:"CORS_ORIGINS"`
}

var defaults = map[string]any{
	"PORT":                8080,
	"APP_ENV":             "development",
	"LOG_LEVEL":           "info",
	"ACCESS_TOKEN_SECRET": "",
	"STORE_DRIVER":        DriverSQLite,
	"DB_PATH":             "data/learnloop.db",
	"MONGO_URI":           "",
	"MONGO_DB":            "learnloopDB",
	"REDIS_ADDR":          "",
	"STATS_CACHE_TTL":     "30s",
	"CORS_ORIGINS":        "https://learn-loop-edcf7.web.app",
}

// Load reads .env (if any) and the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("config: reading .env: %w", err)
	}
	return fromViper(viper.New())
}

func fromViper(v *viper.Viper) (Config, error) {
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: decoding: %w", err)
	}
	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))
	return cfg, nil
}

// Validate reports settings the server cannot start with.
func (c Config) Validate() error {
	var errs []error
	if c.TokenSecret == "" {
		errs = append(errs, errors.New("ACCESS_TOKEN_SECRET is required"))
	}
	switch c.StoreDriver {
	case DriverSQLite:
		if c.DBPath == "" {
			errs = append(errs, errors.New("DB_PATH is required for the sqlite driver"))
		}
	case DriverMongo:
		if c.MongoURI == "" {
			errs = append(errs, errors.New("MONGO_URI is required for the mongo driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid PORT %d", c.Port))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

func (c Config) Production() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

// Origins splits CORS_ORIGINS on commas, dropping blanks.
func (c Config) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// Level maps LOG_LEVEL to a slog level; unknown values fall back to info.
func (c Config) Level() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// NewLogger builds the process logger: text for development, JSON in production.
func (c Config) NewLogger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.Level()}
	if c.Production() {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
