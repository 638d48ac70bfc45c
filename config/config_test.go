package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "server:\n  port: 9090\n"))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "http://localhost:8000", cfg.Backend.BaseURL)
	assert.Equal(t, 15*time.Second, cfg.Backend.Timeout)
	assert.Equal(t, 3*time.Second, cfg.Banner.Success)
	assert.Equal(t, 5*time.Second, cfg.Banner.Info)
	assert.Equal(t, 8*time.Second, cfg.Banner.Error)
	assert.Equal(t, 300*time.Millisecond, cfg.Reward.Reveal)
	assert.Equal(t, 4500*time.Millisecond, cfg.Reward.Done)
	assert.Equal(t, 90, cfg.Views.CalendarDaysAhead)
	assert.Equal(t, 30, cfg.Views.SyncDaysAhead)
	assert.Equal(t, 200*time.Millisecond, cfg.Quiz.AdvanceDelay)
}

func TestLoad_FileOverrides(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
backend:
  base_url: http://takeoff-api:8000
  timeout: 3s
database:
  mode: mysql
  mysql_dsn: user:pass@tcp(db:3306)/takeoff
security:
  jwt_secret: s3cret
  admin_whitelist: ["10.0.0.0/8"]
`))
	require.NoError(t, err)
	assert.Equal(t, "http://takeoff-api:8000", cfg.Backend.BaseURL)
	assert.Equal(t, 3*time.Second, cfg.Backend.Timeout)
	assert.Equal(t, "mysql", cfg.Database.Mode)
	assert.Equal(t, "s3cret", cfg.Security.JWTSecret)
	assert.Equal(t, []string{"10.0.0.0/8"}, cfg.Security.AdminWhitelist)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("TAKEOFF_BACKEND_BASE_URL", "http://from-env:8000")
	cfg, err := Load(writeConfig(t, "server:\n  port: 8080\n"))
	require.NoError(t, err)
	assert.Equal(t, "http://from-env:8000", cfg.Backend.BaseURL)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Mode)
	assert.Equal(t, 72*time.Hour, cfg.Session.TTL)
}
