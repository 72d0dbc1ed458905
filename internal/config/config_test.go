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
	path := writeConfig(t, `
youtube:
  api_key: secret
ingest:
  channels: [fourpawstv, catgametv]
  categories:
    - title: Birds
      query: birds for cats to watch
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5000, cfg.Quota.DailyLimit)
	assert.Equal(t, 100, cfg.Quota.SearchCost)
	assert.Equal(t, 1, cfg.Quota.DetailCost)
	assert.InDelta(t, 0.9, cfg.Quota.NearExhaustion, 1e-9)
	assert.Equal(t, 100*time.Millisecond, cfg.RateLimit.MinInterval)
	assert.Equal(t, 15*time.Minute, cfg.Ingest.MinVideoLength)
	assert.Equal(t, 1, cfg.YouTube.Retry.MaxAttempts)
	assert.Equal(t, "@every 6h", cfg.Schedule.Channels)
	assert.Equal(t, "0 0 * * *", cfg.Schedule.Categories)
	assert.Equal(t, []string{"fourpawstv", "catgametv"}, cfg.Ingest.Channels)
	require.Len(t, cfg.Ingest.Categories, 1)
	assert.Equal(t, 50, cfg.Ingest.Categories[0].MaxResults)
	assert.False(t, cfg.RabbitMQ.Enabled)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("TEST_YT_KEY", "from-env")
	t.Setenv("TEST_ADMIN_KEY", "admin-env")
	path := writeConfig(t, `
youtube:
  api_key: ${TEST_YT_KEY}
admin:
  api_key: ${TEST_ADMIN_KEY}
quota:
  daily_limit: 10000
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.YouTube.APIKey)
	assert.Equal(t, "admin-env", cfg.Admin.APIKey)
	assert.Equal(t, 10000, cfg.Quota.DailyLimit)
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "missing api key", body: "log_level: debug\n"},
		{name: "threshold out of range", body: "youtube:\n  api_key: k\nquota:\n  near_exhaustion: 1.5\n"},
		{name: "category without query", body: "youtube:\n  api_key: k\ningest:\n  categories:\n    - title: Fish\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorContains(t, err, "read config file")
}

func TestDatabaseConfig_DSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", DBName: "catalog", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=catalog sslmode=disable", d.DSN())
}
