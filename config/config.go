// Package config loads runtime configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Server Server
	Store  Store
	Poller Poller
	Stream Stream
}

type Server struct {
	ListenAddr string `envconfig:"LISTEN_ADDR" default:":8000"`
	LogLevel   string `envconfig:"LOG_LEVEL" default:"info"`
	Env        string `envconfig:"APP_ENV" default:"development"`

	// APIToken guards the mutating endpoints when set. Empty means open,
	// which is fine for local use.
	APIToken string `envconfig:"API_TOKEN"`

	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"15s"`
}

type Store struct {
	DBPath    string        `envconfig:"DB_PATH" default:"faststock.db"`
	Retention time.Duration `envconfig:"SNAPSHOT_RETENTION" default:"168h"`
}

type Poller struct {
	FetchInterval     time.Duration `envconfig:"FETCH_INTERVAL" default:"60s"`
	SubscriptionsPath string        `envconfig:"SUBSCRIPTIONS_PATH" default:"subscriptions.json"`
}

type Stream struct {
	Enabled bool     `envconfig:"STREAM_ENABLED" default:"true"`
	URL     string   `envconfig:"STREAM_URL" default:"wss://stream.binance.com:9443"`
	Symbols []string `envconfig:"STREAM_SYMBOLS" default:"BTCUSDT,ETHUSDT"`
}

// Load reads configuration from the environment. A missing .env file is not
// an error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process env config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Server.ListenAddr == "" {
		return fmt.Errorf("LISTEN_ADDR must not be empty")
	}
	switch strings.ToLower(c.Server.LogLevel) {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown LOG_LEVEL %q", c.Server.LogLevel)
	}
	if c.Poller.FetchInterval < time.Second {
		return fmt.Errorf("FETCH_INTERVAL must be at least 1s, got %s", c.Poller.FetchInterval)
	}
	if c.Store.DBPath == "" {
		return fmt.Errorf("DB_PATH must not be empty")
	}
	if c.Stream.Enabled {
		if c.Stream.URL == "" {
			return fmt.Errorf("STREAM_URL must not be empty when streaming is enabled")
		}
		if len(c.Stream.Symbols) == 0 {
			return fmt.Errorf("STREAM_SYMBOLS must not be empty when streaming is enabled")
		}
	}
	return nil
}
