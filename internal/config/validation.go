package config

import (
	"fmt"
	"net/url"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed for %s: %s", e.Field, e.Message)
}

var validLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// Validate validates the configuration and returns validation errors.
func (c *Config) Validate() []error {
	var errs []error

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, &ValidationError{
			Field:   "server.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", c.Server.Port),
		})
	}

	if c.Cloud.BaseURL == "" {
		errs = append(errs, &ValidationError{
			Field:   "cloud.base_url",
			Message: "cloud base URL is required",
		})
	} else if u, err := url.Parse(c.Cloud.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, &ValidationError{
			Field:   "cloud.base_url",
			Message: fmt.Sprintf("invalid URL: %s", c.Cloud.BaseURL),
		})
	}
	if c.Cloud.TimeoutSeconds < 1 {
		errs = append(errs, &ValidationError{
			Field:   "cloud.timeout_seconds",
			Message: fmt.Sprintf("timeout must be at least 1 second, got %d", c.Cloud.TimeoutSeconds),
		})
	}
	if c.Cloud.SessionTokenPath == "" {
		errs = append(errs, &ValidationError{
			Field:   "cloud.session_token_path",
			Message: "session token path is required",
		})
	}

	if c.Cache.QuotaMB < 1 {
		errs = append(errs, &ValidationError{
			Field:   "cache.quota_mb",
			Message: fmt.Sprintf("quota must be at least 1 MB, got %d", c.Cache.QuotaMB),
		})
	}
	if c.Cache.DefaultTTLDays < 1 {
		errs = append(errs, &ValidationError{
			Field:   "cache.default_ttl_days",
			Message: fmt.Sprintf("default TTL must be at least 1 day, got %d", c.Cache.DefaultTTLDays),
		})
	}

	if c.Sync.AutoIntervalSeconds < 0 {
		errs = append(errs, &ValidationError{
			Field:   "sync.auto_interval_seconds",
			Message: "auto-sync interval cannot be negative (use 0 to disable)",
		})
	}
	if c.Sync.TimeoutSeconds < 1 {
		errs = append(errs, &ValidationError{
			Field:   "sync.timeout_seconds",
			Message: fmt.Sprintf("sync timeout must be at least 1 second, got %d", c.Sync.TimeoutSeconds),
		})
	}

	if c.Storage.SQLitePath == "" {
		errs = append(errs, &ValidationError{
			Field:   "storage.sqlite_path",
			Message: "sqlite path is required",
		})
	}

	if !validLevels[c.Logging.Level] {
		errs = append(errs, &ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("level must be debug, info, warn or error, got %q", c.Logging.Level),
		})
	}
	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		errs = append(errs, &ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("format must be json or text, got %q", c.Logging.Format),
		})
	}

	return errs
}
