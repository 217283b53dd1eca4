package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const baseYAML = `
app:
  name: roommate-match-workers
  environment: production
database:
  postgres:
    host: localhost
    database: roommates
    user: matcher
  redis:
    address: localhost:6379
http:
  jwt_secret: s3cret
workers:
  match-suggestion-respond:
    enabled: true
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

// ==========================
// Defaults
// ==========================

func TestLoadFromFile_AppliesDefaults(t *testing.T) {
	cfg, err := LoadFromFile(writeConfig(t, baseYAML))
	require.NoError(t, err)

	assert.Equal(t, 5432, cfg.Database.Postgres.Port)
	assert.Equal(t, "disable", cfg.Database.Postgres.SSLMode)
	assert.Equal(t, ":8080", cfg.HTTP.Address)
	assert.Equal(t, 5, cfg.Matching.RateLimit)
	assert.Equal(t, time.Hour, GetDuration(cfg.Matching.RateLimitWindow))
	assert.Equal(t, 5, cfg.Matching.CASRetries)
	assert.Equal(t, "v1", cfg.Compatibility.LayoutVersion)
	assert.Equal(t, 50, cfg.Compatibility.EmbeddingSize)
	assert.Equal(t, "match-events", cfg.Analytics.Index)

	worker := cfg.Workers["match-suggestion-respond"]
	assert.True(t, worker.Enabled)
	assert.Equal(t, 5, worker.MaxJobsActive)
	assert.Equal(t, 30000, worker.Timeout)
	assert.Equal(t, 3, worker.MaxRetries)
	assert.False(t, cfg.App.IsDevelopment())
}

func TestLoadFromFile_ExpandsEnvPlaceholders(t *testing.T) {
	t.Setenv("TEST_PG_PASSWORD", "from-env")
	t.Setenv("APP_ENVIRONMENT", "")

	withPlaceholder := `
app:
  name: roommate-match-workers
database:
  postgres:
    host: localhost
    database: roommates
    user: matcher
    password: ${TEST_PG_PASSWORD}
  redis:
    address: localhost:6379
http:
  jwt_secret: s3cret
`
	cfg, err := LoadFromFile(writeConfig(t, withPlaceholder))
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Database.Postgres.Password)
	assert.True(t, cfg.App.IsDevelopment())
}

// ==========================
// Validation
// ==========================

func TestLoadFromFile_Validation(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("DB_USER", "")

	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{
			name: "missing jwt secret",
			body: `
database:
  postgres: {host: localhost, database: roommates, user: matcher}
  redis: {address: "localhost:6379"}
`,
			wantErr: "http.jwt_secret is required",
		},
		{
			name: "missing redis",
			body: `
database:
  postgres: {host: localhost, database: roommates, user: matcher}
http: {jwt_secret: s3cret}
`,
			wantErr: "database.redis.address is required",
		},
		{
			name: "camunda enabled without broker",
			body: `
camunda: {enabled: true}
database:
  postgres: {host: localhost, database: roommates, user: matcher}
  redis: {address: "localhost:6379"}
http: {jwt_secret: s3cret}
`,
			wantErr: "camunda.broker_address is required",
		},
		{
			name: "push without topic",
			body: `
database:
  postgres: {host: localhost, database: roommates, user: matcher}
  redis: {address: "localhost:6379"}
http: {jwt_secret: s3cret}
notifications:
  push: {enabled: true}
`,
			wantErr: "notifications.push.topic_arn is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromFile(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestGetWorkerConfig_FallsBackToDefaults(t *testing.T) {
	cfg := &Config{Workers: map[string]WorkerConfig{}}

	wc := GetWorkerConfig(cfg, "unknown")
	assert.True(t, wc.Enabled)
	assert.Equal(t, 5, wc.MaxJobsActive)
	assert.True(t, IsWorkerEnabled(cfg, "unknown"))

	cfg.Workers["off"] = WorkerConfig{Enabled: false}
	assert.False(t, IsWorkerEnabled(cfg, "off"))
}

func TestElasticsearchConfig_GetAddresses(t *testing.T) {
	assert.Equal(t, []string{"http://a:9200"}, ElasticsearchConfig{URL: "http://a:9200"}.GetAddresses())
	assert.Equal(t, []string{"http://b:9200"}, ElasticsearchConfig{Addresses: []string{"http://b:9200"}, URL: "http://a:9200"}.GetAddresses())
	assert.Nil(t, ElasticsearchConfig{}.GetAddresses())
}
