package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	m := NewManager(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, m.Load(context.Background()))

	cfg := m.Get(context.Background())
	assert.Equal(t, 7381, cfg.Server.Port)
	assert.Equal(t, 50, cfg.Cache.QuotaMB)
	assert.Equal(t, 7, cfg.Cache.DefaultTTLDays)
	assert.Equal(t, 30, cfg.Sync.TimeoutSeconds)
	assert.Equal(t, "info", cfg.Logging.Level)
	require.NoError(t, m.Validate(context.Background()))
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "syncd.yaml")
	yaml := `
server:
  port: 9000
cloud:
  base_url: https://staging.rei-app.example.com
  timeout_seconds: 5
cache:
  quota_mb: 10
sync:
  auto_interval_seconds: 60
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	m := NewManager(path)
	require.NoError(t, m.Load(context.Background()))

	cfg := m.Get(context.Background())
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "https://staging.rei-app.example.com", cfg.Cloud.BaseURL)
	assert.Equal(t, 5, cfg.Cloud.TimeoutSeconds)
	assert.Equal(t, 10, cfg.Cache.QuotaMB)
	assert.Equal(t, 60, cfg.Sync.AutoIntervalSeconds)
	assert.Equal(t, "debug", cfg.Logging.Level)

	// Unset fields keep their defaults.
	assert.Equal(t, 7, cfg.Cache.DefaultTTLDays)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("REI_SERVER_PORT", "8123")
	t.Setenv("REI_LOGGING_LEVEL", "warn")

	m := NewManager(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, m.Load(context.Background()))

	cfg := m.Get(context.Background())
	assert.Equal(t, 8123, cfg.Server.Port)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.Port = 0
	cfg.Cloud.BaseURL = "not a url"
	cfg.Cache.QuotaMB = 0
	cfg.Sync.TimeoutSeconds = 0
	cfg.Logging.Level = "loud"

	errs := cfg.Validate()
	require.NotEmpty(t, errs)

	fields := map[string]bool{}
	for _, err := range errs {
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		fields[verr.Field] = true
	}
	assert.True(t, fields["server.port"])
	assert.True(t, fields["cloud.base_url"])
	assert.True(t, fields["cache.quota_mb"])
	assert.True(t, fields["sync.timeout_seconds"])
	assert.True(t, fields["logging.level"])
}

func TestReloadInstallsValidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "syncd.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9000\n"), 0o600))

	mgr := NewManager(path)
	require.NoError(t, mgr.Load(context.Background()))
	m := mgr.(*viperManager)

	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9100\n"), 0o600))
	require.NoError(t, m.viper.ReadInConfig())

	cfg, ok := m.reloadIfValid()
	require.True(t, ok)
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, 9100, m.Get(context.Background()).Server.Port)
}

func TestReloadDropsInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "syncd.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9000\n"), 0o600))

	mgr := NewManager(path)
	require.NoError(t, mgr.Load(context.Background()))
	m := mgr.(*viperManager)

	// A bad edit must not become visible through Get.
	bad := "server:\n  port: 9000\nlogging:\n  level: loud\n"
	require.NoError(t, os.WriteFile(path, []byte(bad), 0o600))
	require.NoError(t, m.viper.ReadInConfig())

	_, ok := m.reloadIfValid()
	assert.False(t, ok)
	assert.Equal(t, "info", m.Get(context.Background()).Logging.Level)
	assert.Equal(t, 9000, m.Get(context.Background()).Server.Port)
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, ".rei", "syncd.db"), expandHome("~/.rei/syncd.db"))
	assert.Equal(t, "/var/lib/rei.db", expandHome("/var/lib/rei.db"))
	assert.Equal(t, home, expandHome("~"))
}
