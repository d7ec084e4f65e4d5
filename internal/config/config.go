// Package config defines service configuration and its layered loading.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Store drivers accepted by store_driver.
var storeDrivers = []string{"file", "sqlite", "postgres", "memory"}

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// StoreDriver picks where the pet is persisted.
	StoreDriver string `koanf:"store_driver"`

	// DataFile is the JSON document used by the file driver.
	DataFile string `koanf:"data_file"`

	// SQLitePath is the database file used by the sqlite driver.
	SQLitePath string `koanf:"sqlite_path"`

	// PostgresDSN is required by the postgres driver.
	PostgresDSN string `koanf:"postgres_dsn"`

	// QueueSize bounds the mutation queue.
	QueueSize int `koanf:"queue_size"`

	// IdempotencySize caps the remembered Idempotency-Key values.
	IdempotencySize int `koanf:"idempotency_size"`

	// HistoryLimit caps the pet's action history.
	HistoryLimit int `koanf:"history_limit"`

	// LegacyTimezone is the IANA zone of stored timestamps that carry no
	// offset. "Local" means the host zone.
	LegacyTimezone string `koanf:"legacy_timezone"`
}

// New creates a Config holding the defaults.
func New() *Config {
	return &Config{
		LogLevel:        "info",
		LogFormat:       "text",
		Addr:            ":8080",
		StoreDriver:     "file",
		DataFile:        "pet_data.json",
		SQLitePath:      "pet_data.db",
		QueueSize:       64,
		IdempotencySize: 1024,
		HistoryLimit:    100,
		LegacyTimezone:  "Local",
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case !known(c.StoreDriver, storeDrivers):
		return fmt.Errorf("%w: unknown store_driver %q", ErrInvalidConfig, c.StoreDriver)
	case c.StoreDriver == "postgres" && c.PostgresDSN == "":
		return fmt.Errorf("%w: postgres_dsn is required for the postgres driver", ErrInvalidConfig)
	case c.StoreDriver == "file" && c.DataFile == "":
		return fmt.Errorf("%w: data_file must not be empty", ErrInvalidConfig)
	case c.StoreDriver == "sqlite" && c.SQLitePath == "":
		return fmt.Errorf("%w: sqlite_path must not be empty", ErrInvalidConfig)
	case c.QueueSize <= 0:
		return fmt.Errorf("%w: queue_size must be positive, got %d", ErrInvalidConfig, c.QueueSize)
	case c.HistoryLimit <= 0:
		return fmt.Errorf("%w: history_limit must be positive, got %d", ErrInvalidConfig, c.HistoryLimit)
	case c.IdempotencySize < 0:
		return fmt.Errorf("%w: idempotency_size must not be negative", ErrInvalidConfig)
	case !known(c.LogFormat, []string{"text", "json"}):
		return fmt.Errorf("%w: unknown log_format %q", ErrInvalidConfig, c.LogFormat)
	}
	if _, err := c.LegacyLocation(); err != nil {
		return fmt.Errorf("%w: legacy_timezone: %w", ErrInvalidConfig, err)
	}
	return nil
}

// LegacyLocation resolves LegacyTimezone. Empty means the host zone.
func (c *Config) LegacyLocation() (*time.Location, error) {
	if strings.TrimSpace(c.LegacyTimezone) == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.LegacyTimezone)
}

func known(v string, set []string) bool {
	for _, s := range set {
		if v == s {
			return true
		}
	}
	return false
}
