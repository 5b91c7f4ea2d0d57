// Package config loads process settings from the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Store drivers
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds all application configuration
type Config struct {
	HTTPAddr string
	LogLevel string

	Store     StoreConfig
	Redis     RedisConfig
	RabbitMQ  RabbitMQConfig
	Outbox    OutboxConfig
	Websocket WebsocketConfig
}

// StoreConfig selects and tunes the bid store
type StoreConfig struct {
	Driver         string
	DBURL          string
	MaxConns       int32
	LockTimeout    time.Duration
	MigrateOnStart bool
}

// RedisConfig enables the cross-instance bid broadcast when URL is set
type RedisConfig struct {
	URL           string
	ChannelPrefix string
}

// RabbitMQConfig holds broker settings for the outbox relay
type RabbitMQConfig struct {
	URL      string
	Exchange string
}

// OutboxConfig tunes the outbox relay
type OutboxConfig struct {
	BatchSize int
	Interval  time.Duration
}

// WebsocketConfig tunes observer connections
type WebsocketConfig struct {
	ObserverBuffer int
	WriteTimeout   time.Duration
	AllowedOrigins []string
}

// Load reads .env.local and .env if present, then environment variables
// prefixed with GAVEL_. Values already in the environment win over both files.
func Load() (*Config, error) {
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("GAVEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("http_addr", ":8080")
	v.SetDefault("log_level", "info")

	v.SetDefault("store_driver", DriverPostgres)
	v.SetDefault("db_url", "")
	v.SetDefault("db_max_conns", 10)
	v.SetDefault("lock_timeout", "3s")
	v.SetDefault("migrate_on_start", false)

	v.SetDefault("redis_url", "")
	v.SetDefault("redis_channel_prefix", "lot:")

	v.SetDefault("rabbitmq_url", "")
	v.SetDefault("exchange", "auction.events")

	v.SetDefault("outbox_batch_size", 10)
	v.SetDefault("outbox_interval", "1s")

	v.SetDefault("observer_buffer", 64)
	v.SetDefault("ws_write_timeout", "5s")
	v.SetDefault("ws_allowed_origins", "")

	cfg := &Config{
		HTTPAddr: v.GetString("http_addr"),
		LogLevel: v.GetString("log_level"),
		Store: StoreConfig{
			Driver:         strings.ToLower(v.GetString("store_driver")),
			DBURL:          v.GetString("db_url"),
			MaxConns:       v.GetInt32("db_max_conns"),
			LockTimeout:    v.GetDuration("lock_timeout"),
			MigrateOnStart: v.GetBool("migrate_on_start"),
		},
		Redis: RedisConfig{
			URL:           v.GetString("redis_url"),
			ChannelPrefix: v.GetString("redis_channel_prefix"),
		},
		RabbitMQ: RabbitMQConfig{
			URL:      v.GetString("rabbitmq_url"),
			Exchange: v.GetString("exchange"),
		},
		Outbox: OutboxConfig{
			BatchSize: v.GetInt("outbox_batch_size"),
			Interval:  v.GetDuration("outbox_interval"),
		},
		Websocket: WebsocketConfig{
			ObserverBuffer: v.GetInt("observer_buffer"),
			WriteTimeout:   v.GetDuration("ws_write_timeout"),
			AllowedOrigins: splitList(v.GetString("ws_allowed_origins")),
		},
	}

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate checks the settings the api process needs
func (c *Config) Validate() error {
	var errs []error

	switch c.Store.Driver {
	case DriverPostgres:
		if c.Store.DBURL == "" {
			errs = append(errs, errors.New("GAVEL_DB_URL is required for the postgres store"))
		}
		if c.Store.MaxConns <= 0 {
			errs = append(errs, fmt.Errorf("GAVEL_DB_MAX_CONNS must be positive, got %d", c.Store.MaxConns))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown GAVEL_STORE_DRIVER %q", c.Store.Driver))
	}

	if c.Store.LockTimeout <= 0 {
		errs = append(errs, errors.New("GAVEL_LOCK_TIMEOUT must be positive"))
	}
	if c.Websocket.ObserverBuffer <= 0 {
		errs = append(errs, errors.New("GAVEL_OBSERVER_BUFFER must be positive"))
	}
	if c.Websocket.WriteTimeout <= 0 {
		errs = append(errs, errors.New("GAVEL_WS_WRITE_TIMEOUT must be positive"))
	}

	return errors.Join(errs...)
}

// ValidateWorker checks the settings the outbox relay needs
func (c *Config) ValidateWorker() error {
	var errs []error
	if c.Store.DBURL == "" {
		errs = append(errs, errors.New("GAVEL_DB_URL is required"))
	}
	if c.RabbitMQ.URL == "" {
		errs = append(errs, errors.New("GAVEL_RABBITMQ_URL is required"))
	}
	if c.Outbox.BatchSize <= 0 {
		errs = append(errs, errors.New("GAVEL_OUTBOX_BATCH_SIZE must be positive"))
	}
	if c.Outbox.Interval <= 0 {
		errs = append(errs, errors.New("GAVEL_OUTBOX_INTERVAL must be positive"))
	}
	return errors.Join(errs...)
}
