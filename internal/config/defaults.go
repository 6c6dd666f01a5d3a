package config

// DefaultConfig returns a configuration with all default values.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Server.Port = 7381

	cfg.Cloud.BaseURL = "https://api.rei-app.example.com"
	cfg.Cloud.TimeoutSeconds = 15
	cfg.Cloud.SessionTokenPath = "~/.rei/session.jwt"

	cfg.Cache.QuotaMB = 50
	cfg.Cache.DefaultTTLDays = 7
	cfg.Cache.CleanupIntervalHours = 24

	cfg.Sync.AutoIntervalSeconds = 300
	cfg.Sync.TimeoutSeconds = 30

	cfg.Storage.SQLitePath = "~/.rei/syncd.db"

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"
	cfg.Logging.FilePath = ""
	cfg.Logging.MaxSizeMB = 20
	cfg.Logging.MaxBackups = 3
	cfg.Logging.MaxAgeDays = 14

	return cfg
}
