// Package config loads the pipehub runtime configuration from a .env file
// and the environment, environment winning.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config stores all configuration for the application.
type Config struct {
	ServerPort string `mapstructure:"SERVER_PORT"`
	LogLevel   string `mapstructure:"LOG_LEVEL"`

	DatabaseDriver string `mapstructure:"DATABASE_DRIVER"`
	DatabaseURL    string `mapstructure:"DATABASE_URL"`

	// A non-empty RedisAddr switches source locking from the in-process
	// locker to the Redis-backed one.
	RedisAddr      string `mapstructure:"REDIS_ADDR"`
	RedisPassword  string `mapstructure:"REDIS_PASSWORD"`
	RedisDB        int    `mapstructure:"REDIS_DB"`
	LockTTLSeconds int    `mapstructure:"LOCK_TTL_SECONDS"`

	UserAgent             string `mapstructure:"USER_AGENT"`
	ScrapeTimeoutSeconds  int    `mapstructure:"SCRAPE_TIMEOUT_SECONDS"`
	BrowserEnabled        bool   `mapstructure:"BROWSER_ENABLED"`
	BrowserTimeoutSeconds int    `mapstructure:"BROWSER_TIMEOUT_SECONDS"`
}

// Load reads configuration from an optional .env file and the environment.
func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.SetConfigType("env")
	viper.AutomaticEnv()

	// A missing .env file is fine: production configures purely through
	// environment variables.
	_ = viper.ReadInConfig()

	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("DATABASE_DRIVER", "sqlite")
	viper.SetDefault("DATABASE_URL", "file:pipehub.db?_pragma=foreign_keys(1)")
	viper.SetDefault("LOCK_TTL_SECONDS", 120)
	viper.SetDefault("USER_AGENT", "pipehub/1.0")
	viper.SetDefault("SCRAPE_TIMEOUT_SECONDS", 30)
	viper.SetDefault("BROWSER_TIMEOUT_SECONDS", 60)

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) ScrapeTimeout() time.Duration {
	return time.Duration(c.ScrapeTimeoutSeconds) * time.Second
}

func (c *Config) BrowserTimeout() time.Duration {
	return time.Duration(c.BrowserTimeoutSeconds) * time.Second
}

func (c *Config) LockTTL() time.Duration {
	return time.Duration(c.LockTTLSeconds) * time.Second
}
