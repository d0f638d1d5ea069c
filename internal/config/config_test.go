package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultValues(t *testing.T) {
	os.Clearenv()

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, "postgres", cfg.Store)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "mcreview", cfg.Database.Database)
	assert.Equal(t, "disable", cfg.Database.SSLMode)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 90*24*time.Hour, cfg.Auth.APIKeyTTL)
	assert.False(t, cfg.Auth.LocalLogin)
	assert.False(t, cfg.Email.Enabled)
	assert.Empty(t, cfg.Email.ReviewTeamEmails)
	assert.Equal(t, byte(1), cfg.MQTT.QoS)
	assert.Equal(t, time.Hour, cfg.Storage.URLExpiry)
	assert.Empty(t, cfg.FeatureFlags.Defaults)
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	os.Clearenv()
	t.Setenv("HTTP_ADDR", ":9999")
	t.Setenv("STORE", "memory")
	t.Setenv("DB_PORT", "not-a-number")
	t.Setenv("EMAIL_REVIEW_TEAM", "a@cms.gov, b@cms.gov ,")
	t.Setenv("FEATURE_FLAGS_ON", "rate-edit-unlock")
	t.Setenv("API_KEY_TTL", "24h")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.HTTP.Addr)
	assert.Equal(t, "memory", cfg.Store)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, []string{"a@cms.gov", "b@cms.gov"}, cfg.Email.ReviewTeamEmails)
	assert.True(t, cfg.FeatureFlags.Defaults["rate-edit-unlock"])
	assert.Equal(t, 24*time.Hour, cfg.Auth.APIKeyTTL)
}

func TestLoad_YAMLOverlay(t *testing.T) {
	os.Clearenv()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
store: memory
database:
  host: db.internal
feature_flags:
  defaults:
    rate-edit-unlock: true
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))
	t.Setenv("CONFIG_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Store)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.True(t, cfg.FeatureFlags.Defaults["rate-edit-unlock"])
}

func TestLoad_MissingOverlayFile(t *testing.T) {
	os.Clearenv()
	t.Setenv("CONFIG_FILE", "/does/not/exist.yaml")

	_, err := Load()
	assert.Error(t, err)
}

func TestDatabaseConfig_GetDSN(t *testing.T) {
	c := DatabaseConfig{Host: "h", Port: 1, User: "u", Password: "p", Database: "d", SSLMode: "disable"}
	assert.Equal(t, "host=h port=1 user=u password=p dbname=d sslmode=disable", c.GetDSN())
}
