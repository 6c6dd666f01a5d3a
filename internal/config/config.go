// Package config provides configuration management for the sync daemon.
//
// Configuration sources (priority order, high to low):
//  1. Environment variables (REI_* prefix)
//  2. YAML config file (default: ~/.rei/syncd.yaml)
//  3. Built-in defaults
package config

import "context"

// Config contains all configuration fields.
type Config struct {
	// Local status API.
	Server struct {
		// Port the localhost-only API listens on.
		Port int
	}

	// Cloud record store.
	Cloud struct {
		BaseURL string
		// TimeoutSeconds bounds a single HTTP request.
		TimeoutSeconds int
		// SessionTokenPath is where the app shell writes the login JWT.
		SessionTokenPath string
	}

	// Bounded cache engine.
	Cache struct {
		QuotaMB        int
		DefaultTTLDays int
		// CleanupIntervalHours gates the opportunistic startup sweep.
		CleanupIntervalHours int
	}

	// Sync orchestration.
	Sync struct {
		// AutoIntervalSeconds between background cycles; 0 disables auto-sync.
		AutoIntervalSeconds int
		// TimeoutSeconds bounds one full push-pull-merge cycle.
		TimeoutSeconds int
	}

	// Persistence medium.
	Storage struct {
		SQLitePath string
	}

	Logging struct {
		Level  string // debug | info | warn | error
		Format string // json | text
		// FilePath enables rotating file output when non-empty.
		FilePath   string
		MaxSizeMB  int
		MaxBackups int
		MaxAgeDays int
	}
}

// Manager defines the interface for configuration access.
type Manager interface {
	// Load loads configuration from all sources.
	Load(ctx context.Context) error

	// Get returns the current configuration.
	Get(ctx context.Context) *Config

	// Validate validates configuration is correct and complete.
	Validate(ctx context.Context) error

	// Watch watches for configuration file changes and reloads.
	Watch(ctx context.Context) <-chan Config
}

// NewManager creates a configuration manager over the given file path.
func NewManager(configPath string) Manager {
	return &viperManager{
		configPath: configPath,
		config:     DefaultConfig(),
		watchChan:  make(chan Config, 1),
	}
}
