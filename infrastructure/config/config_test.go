package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"wedding-backend/domain/keys"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "wedding-rsvp", cfg.TableName)
	assert.Equal(t, 10, cfg.MaxPartySize)
	assert.Equal(t, "StatusIndex", cfg.IndexNames()[keys.StatusIndex.Name])
}

func TestLoadConfig_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
tableName: from-file
maxPartySize: 6
storageTimeout: 5s
allowedOrigins:
  - https://jane-and-sam.example
`), 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("MAX_PARTY_SIZE", "4")
	t.Setenv("JWT_AUDIENCE", "wedding-api, dashboard")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.TableName)
	assert.Equal(t, 4, cfg.MaxPartySize, "environment wins over the file")
	assert.Equal(t, 5*time.Second, cfg.StorageTimeout)
	assert.Equal(t, []string{"https://jane-and-sam.example"}, cfg.AllowedOrigins)
	assert.Equal(t, []string{"wedding-api", "dashboard"}, cfg.JWTAudience)

	rules := cfg.DomainRules()
	assert.Equal(t, 4, rules.MaxPartySize)
	assert.Equal(t, 2, rules.DefaultGuestAllowed)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "absent.yaml"))
	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Environment = "production"
	assert.ErrorContains(t, cfg.Validate(), "JWT_SECRET")

	cfg.JWTSecret = "s3cret"
	assert.NoError(t, cfg.Validate())

	cfg.UseMemoryStore = true
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.MaxPartySize = 0
	assert.Error(t, cfg.Validate())
	assert.True(t, Default().IsDevelopment())
}
