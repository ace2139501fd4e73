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
	t.Setenv("CHANNELSCOPE_CONFIG_DIR", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.OAuthPort)
	assert.Equal(t, 1000, cfg.MaxPages)
	assert.Equal(t, 50, cfg.DetailBatchSize)
	assert.Equal(t, 10.0, cfg.DetailRPS)
	assert.Equal(t, 5*time.Minute, cfg.AuthTimeout)
	assert.Equal(t, 60*time.Second, cfg.RequestTimeout)
	assert.Equal(t, ":8081", cfg.ServeAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
}

func TestLoad_ReportsMissingDotEnv(t *testing.T) {
	t.Setenv("CHANNELSCOPE_CONFIG_DIR", t.TempDir())
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.DotEnvMissing)
}

func TestLoad_ReadsDotEnv(t *testing.T) {
	t.Setenv("CHANNELSCOPE_CONFIG_DIR", t.TempDir())
	t.Setenv("LOG_LEVEL", "warn")
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("LOG_LEVEL=debug\n"), 0o600))
	t.Chdir(dir)

	cfg, err := Load()
	require.NoError(t, err)

	assert.False(t, cfg.DotEnvMissing)
	assert.Equal(t, "warn", cfg.LogLevel, "the environment wins over .env")
}

func TestLoad_CustomValues(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CHANNELSCOPE_CONFIG_DIR", dir)
	t.Setenv("YOUTUBE_API_KEY", "key-123")
	t.Setenv("OAUTH_PORT", "9090")
	t.Setenv("AUTH_TIMEOUT", "30s")
	t.Setenv("DETAIL_BATCH_SIZE", "1")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "key-123", cfg.APIKey)
	assert.Equal(t, 9090, cfg.OAuthPort)
	assert.Equal(t, 30*time.Second, cfg.AuthTimeout)
	assert.Equal(t, 1, cfg.DetailBatchSize)
	assert.Equal(t, filepath.Join(dir, "youtube_analytics_token.json"), cfg.TokenPath())
	assert.Equal(t, filepath.Join(dir, "history.db"), cfg.HistoryPath())
}

func TestLoad_DefaultConfigDir(t *testing.T) {
	t.Setenv("CHANNELSCOPE_CONFIG_DIR", "")
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "channelscope", filepath.Base(cfg.ConfigDir))
}

func TestLoad_RejectsInvalidEncryptionKey(t *testing.T) {
	tests := []struct {
		name string
		key  string
	}{
		{"not hex", "zz"},
		{"too short", "abcd"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("CHANNELSCOPE_CONFIG_DIR", t.TempDir())
			t.Setenv("TOKEN_ENCRYPTION_KEY", tt.key)

			_, err := Load()
			assert.ErrorIs(t, err, ErrInvalidEncryptionKey)
		})
	}
}

func TestValidate_RequiresAPIKey(t *testing.T) {
	cfg := &Config{}
	assert.ErrorIs(t, cfg.Validate(), ErrMissingAPIKey)

	cfg.APIKey = "key"
	assert.NoError(t, cfg.Validate())
}

func TestValidateOAuth(t *testing.T) {
	cfg := &Config{APIKey: "key"}
	assert.ErrorIs(t, cfg.ValidateOAuth(), ErrMissingClientSecrets)

	cfg.ClientSecretsFile = filepath.Join(t.TempDir(), "missing.json")
	assert.ErrorIs(t, cfg.ValidateOAuth(), ErrMissingClientSecrets, "a path that does not exist is not usable")

	require.NoError(t, os.WriteFile(cfg.ClientSecretsFile, []byte(`{}`), 0600))
	assert.NoError(t, cfg.ValidateOAuth())
}

func TestOrigins(t *testing.T) {
	cfg := &Config{AllowedOrigins: "http://localhost:3000, https://dash.example.com,,"}

	assert.Equal(t, []string{"http://localhost:3000", "https://dash.example.com"}, cfg.Origins())
}
