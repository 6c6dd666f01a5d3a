package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// viperManager implements Manager using Viper.
type viperManager struct {
	configPath string
	viper      *viper.Viper
	watchChan  chan Config

	mu     sync.RWMutex
	config *Config
}

// Load loads configuration from all sources.
func (m *viperManager) Load(ctx context.Context) error {
	m.viper = viper.New()
	m.viper.SetConfigFile(m.configPath)
	m.viper.SetConfigType("yaml")

	m.viper.SetEnvPrefix("REI")
	m.viper.AutomaticEnv()
	m.viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	m.setDefaults()

	// The config file is optional; defaults plus env vars are a complete
	// configuration.
	if err := m.viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	m.install(m.buildConfig())
	return nil
}

// Get returns the current configuration.
func (m *viperManager) Get(ctx context.Context) *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cfg := *m.config
	return &cfg
}

// Validate validates configuration is correct and complete.
func (m *viperManager) Validate(ctx context.Context) error {
	errs := m.Get(ctx).Validate()
	if len(errs) > 0 {
		var msgs []string
		for _, err := range errs {
			msgs = append(msgs, err.Error())
		}
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
	}
	return nil
}

// Watch watches for configuration file changes and reloads. Invalid reloads
// are dropped before they are installed; the previous config stays in effect
// and stays visible through Get.
func (m *viperManager) Watch(ctx context.Context) <-chan Config {
	m.viper.WatchConfig()
	m.viper.OnConfigChange(func(e fsnotify.Event) {
		cfg, ok := m.reloadIfValid()
		if !ok {
			return
		}
		select {
		case m.watchChan <- cfg:
		default:
			// Channel full, skip this update.
		}
	})
	return m.watchChan
}

// reloadIfValid builds a candidate config from the current viper state and
// installs it only when it validates.
func (m *viperManager) reloadIfValid() (Config, bool) {
	cand := m.buildConfig()
	if len(cand.Validate()) > 0 {
		return Config{}, false
	}
	m.install(cand)
	return *cand, true
}

func (m *viperManager) setDefaults() {
	defaults := DefaultConfig()

	m.viper.SetDefault("server.port", defaults.Server.Port)

	m.viper.SetDefault("cloud.base_url", defaults.Cloud.BaseURL)
	m.viper.SetDefault("cloud.timeout_seconds", defaults.Cloud.TimeoutSeconds)
	m.viper.SetDefault("cloud.session_token_path", defaults.Cloud.SessionTokenPath)

	m.viper.SetDefault("cache.quota_mb", defaults.Cache.QuotaMB)
	m.viper.SetDefault("cache.default_ttl_days", defaults.Cache.DefaultTTLDays)
	m.viper.SetDefault("cache.cleanup_interval_hours", defaults.Cache.CleanupIntervalHours)

	m.viper.SetDefault("sync.auto_interval_seconds", defaults.Sync.AutoIntervalSeconds)
	m.viper.SetDefault("sync.timeout_seconds", defaults.Sync.TimeoutSeconds)

	m.viper.SetDefault("storage.sqlite_path", defaults.Storage.SQLitePath)

	m.viper.SetDefault("logging.level", defaults.Logging.Level)
	m.viper.SetDefault("logging.format", defaults.Logging.Format)
	m.viper.SetDefault("logging.file_path", defaults.Logging.FilePath)
	m.viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	m.viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)
	m.viper.SetDefault("logging.max_age_days", defaults.Logging.MaxAgeDays)
}

// expandHome resolves a leading ~ against the current user's home directory.
func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
		}
	}
	return path
}

// buildConfig reads the current viper state into a candidate struct without
// installing it.
func (m *viperManager) buildConfig() *Config {
	cfg := &Config{}

	cfg.Server.Port = m.viper.GetInt("server.port")

	cfg.Cloud.BaseURL = m.viper.GetString("cloud.base_url")
	cfg.Cloud.TimeoutSeconds = m.viper.GetInt("cloud.timeout_seconds")
	cfg.Cloud.SessionTokenPath = expandHome(m.viper.GetString("cloud.session_token_path"))

	cfg.Cache.QuotaMB = m.viper.GetInt("cache.quota_mb")
	cfg.Cache.DefaultTTLDays = m.viper.GetInt("cache.default_ttl_days")
	cfg.Cache.CleanupIntervalHours = m.viper.GetInt("cache.cleanup_interval_hours")

	cfg.Sync.AutoIntervalSeconds = m.viper.GetInt("sync.auto_interval_seconds")
	cfg.Sync.TimeoutSeconds = m.viper.GetInt("sync.timeout_seconds")

	cfg.Storage.SQLitePath = expandHome(m.viper.GetString("storage.sqlite_path"))

	cfg.Logging.Level = m.viper.GetString("logging.level")
	cfg.Logging.Format = m.viper.GetString("logging.format")
	cfg.Logging.FilePath = expandHome(m.viper.GetString("logging.file_path"))
	cfg.Logging.MaxSizeMB = m.viper.GetInt("logging.max_size_mb")
	cfg.Logging.MaxBackups = m.viper.GetInt("logging.max_backups")
	cfg.Logging.MaxAgeDays = m.viper.GetInt("logging.max_age_days")

	return cfg
}

func (m *viperManager) install(cfg *Config) {
	m.mu.Lock()
	m.config = cfg
	m.mu.Unlock()
}
