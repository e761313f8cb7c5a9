// Copyright (c) 2026 AetherCore contributors.

/*
Package config handles application-wide settings and environment parsing.

It leverages 'caarlos0/env' to map OS environment variables into a strongly-typed
Go struct, providing early validation and default values.

Usage:

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}

Architecture:

  - Immutability: Once loaded, configuration is read-only.
  - DI-Friendly: cmd/engine reads the values it needs and passes them to components via constructors (event bus history capacity, raid retry budget).
  - Zero Hidden State: No global variables are used to store config.

This ensures the application is Twelve-Factor compliant by storing config in the env.
*/
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// StorageBackend selects which Repository implementation the engine boots.
type StorageBackend string

const (
	// StorageBolt is the required single-file reference backend.
	StorageBolt StorageBackend = "bolt"
	// StoragePostgres is the optional SQL-backed backend.
	StoragePostgres StorageBackend = "postgres"
)

// Config holds all runtime configuration for the AetherCore engine process.
type Config struct {

	// Server settings (admin diagnostics surface)
	AdminPort   string `env:"ADMIN_PORT"   envDefault:"8090"`
	Environment string `env:"ENVIRONMENT"  envDefault:"development"`
	Debug       bool   `env:"DEBUG"        envDefault:"false"`

	// Storage backend selection
	StorageBackend StorageBackend `env:"STORAGE_BACKEND" envDefault:"bolt"`

	// Embedded single-file store (used when StorageBackend == bolt)
	BoltPath string `env:"BOLT_PATH" envDefault:"./data/aethercore.db"`

	// Relational Database (used when StorageBackend == postgres)
	DatabaseURL   string `env:"DATABASE_URL"`
	MigrationPath string `env:"MIGRATION_PATH" envDefault:"./data/migrations"`

	// Key-Value Cache (optional read-through decorator in front of any Repository)
	RedisURL     string `env:"REDIS_URL"`
	RedisEnabled bool   `env:"REDIS_ENABLED" envDefault:"false"`

	// Content pack loaded by the reference DataLoader
	ContentPackPath string `env:"CONTENT_PACK_PATH" envDefault:"./data/content"`

	// Cryptographic keys for the admin surface's bearer tokens
	JWTPrivKeyPath string `env:"JWT_PRIVATE_KEY_PATH"`
	JWTPubKeyPath  string `env:"JWT_PUBLIC_KEY_PATH"`

	// Engine tuning
	LockTimeout          time.Duration `env:"LOCK_TIMEOUT"            envDefault:"5s"`
	EventHistoryCapacity int           `env:"EVENT_HISTORY_CAPACITY"  envDefault:"100"`
	RaidMaxRetries       int           `env:"RAID_MAX_RETRIES"        envDefault:"5"`
	RaidRetryBackoff     time.Duration `env:"RAID_RETRY_BACKOFF"      envDefault:"50ms"`
	SchedulerTick        time.Duration `env:"SCHEDULER_TICK"          envDefault:"100ms"`

	// Cross-Origin Resource Sharing (admin surface)
	ExtraOrigins string `env:"EXTRA_ORIGINS"`
}

// Load parses environment variables into a [Config] struct.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}

	if cfg.StorageBackend == StoragePostgres && cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("config: DATABASE_URL is required when STORAGE_BACKEND=postgres")
	}

	return cfg, nil
}

// IsDevelopment reports whether the server is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction reports whether the server is running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
