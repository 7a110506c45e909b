package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds service configuration.
type Config struct {
	ServerAddr  string `env:"SERVER_ADDR" envDefault:"0.0.0.0:5001"`
	TLSCertFile string `env:"TLS_CERT_FILE"`
	TLSKeyFile  string `env:"TLS_KEY_FILE"`
	APIKey      string `env:"CONTROL_API_KEY"`

	StoreDriver string `env:"STORE_DRIVER" envDefault:"sqlite"`
	SQLitePath  string `env:"SQLITE_PATH" envDefault:"./data/dmstore.db"`
	DatabaseURL string `env:"DATABASE_URL"`

	StorefrontPath string `env:"STOREFRONT_PATH" envDefault:"./storefront.toml"`

	MailboxAddr        string        `env:"MAILBOX_ADDR" envDefault:"imap.gmail.com:993"`
	MailboxScanWindow  int           `env:"MAILBOX_SCAN_WINDOW" envDefault:"10"`
	MailboxDialTimeout time.Duration `env:"MAILBOX_DIAL_TIMEOUT" envDefault:"30s"`

	BroadcastMinInterval time.Duration `env:"BROADCAST_MIN_INTERVAL" envDefault:"1s"`
	ShutdownTimeout      time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty bool   `env:"LOG_PRETTY" envDefault:"false"`
}

// Load reads configuration from environment.
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

// TLS reports whether the control plane is served over TLS.
func (c *Config) TLS() bool {
	return c.TLSCertFile != "" && c.TLSKeyFile != ""
}

func (c *Config) Validate() error {
	var errs []error
	if c.ServerAddr == "" {
		errs = append(errs, errors.New("SERVER_ADDR is required"))
	}
	if (c.TLSCertFile == "") != (c.TLSKeyFile == "") {
		errs = append(errs, errors.New("TLS_CERT_FILE and TLS_KEY_FILE must be set together"))
	}
	switch c.StoreDriver {
	case DriverSQLite:
		if c.SQLitePath == "" {
			errs = append(errs, errors.New("SQLITE_PATH is required for the sqlite driver"))
		}
	case DriverPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER %q is not one of %s, %s", c.StoreDriver, DriverSQLite, DriverPostgres))
	}
	if c.StorefrontPath == "" {
		errs = append(errs, errors.New("STOREFRONT_PATH is required"))
	}
	if c.MailboxAddr == "" {
		errs = append(errs, errors.New("MAILBOX_ADDR is required"))
	}
	if c.MailboxScanWindow <= 0 {
		errs = append(errs, errors.New("MAILBOX_SCAN_WINDOW must be positive"))
	}
	if c.MailboxDialTimeout <= 0 {
		errs = append(errs, errors.New("MAILBOX_DIAL_TIMEOUT must be positive"))
	}
	if c.BroadcastMinInterval < 0 {
		errs = append(errs, errors.New("BROADCAST_MIN_INTERVAL must not be negative"))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("SHUTDOWN_TIMEOUT must be positive"))
	}
	return errors.Join(errs...)
}
