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
	cfg, err := Load(writeConfig(t, "log_level: debug\n"))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "postgres", cfg.Storage.Driver)
	assert.Equal(t, 25*time.Second, cfg.Notifier.Timeout)
	assert.Equal(t, 3, cfg.Sources.SerpAPI.Retry.MaxAttempts)
	assert.Equal(t, time.Second, cfg.Sources.NewsAPI.Retry.InitialBackoff)
	assert.Equal(t, time.Second, cfg.Sources.DataForSEO.PollInterval)
	assert.Equal(t, 15, cfg.Sources.DataForSEO.MaxPollAttempts)
	assert.Equal(t, "dataforseo", cfg.Sources.BusinessReviewVendor)
	assert.Equal(t, "https://www.reddit.com/api/v1/access_token", cfg.Sources.Reddit.AuthURL)
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("TEST_DB_PASSWORD", "s3cret")

	cfg, err := Load(writeConfig(t, `
database:
  host: db
  port: 5432
  password: ${TEST_DB_PASSWORD}
storage:
  driver: memory
sources:
  dataforseo:
    poll_interval: 250ms
    max_poll_attempts: 20
`))
	require.NoError(t, err)

	assert.Equal(t, "s3cret", cfg.Database.Password)
	assert.Contains(t, cfg.Database.DSN(), "host=db port=5432")
	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.Equal(t, 250*time.Millisecond, cfg.Sources.DataForSEO.PollInterval)
	assert.Equal(t, 20, cfg.Sources.DataForSEO.MaxPollAttempts)
}

func TestLoad_RejectsUnknownDriver(t *testing.T) {
	_, err := Load(writeConfig(t, "storage:\n  driver: dynamo\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown storage driver")
}

func TestLoad_FileSecretsNeedPath(t *testing.T) {
	_, err := Load(writeConfig(t, "secrets:\n  provider: file\n"))
	require.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config file")
}
