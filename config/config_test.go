package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("MONGODB_URI", "mongodb://localhost:27017")
	t.Setenv("JWT_SECRET", "secret")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "community_help", cfg.MongoDatabase)
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL)
	assert.Equal(t, time.Minute, cfg.MarkerCacheTTL)
	assert.Equal(t, 72*time.Hour, cfg.StalePendingAfter)
	assert.Equal(t, "*/30 * * * *", cfg.CronSpecBacklog)
	assert.Equal(t, 5, cfg.RateLimitBurst)
	assert.False(t, cfg.SMTPEnabled())
	assert.Error(t, cfg.RequireServe())
}

func TestLoadMissingRequired(t *testing.T) {
	t.Setenv("MONGODB_URI", "")
	t.Setenv("JWT_SECRET", "secret")
	_, err := Load()
	assert.ErrorContains(t, err, "MONGODB_URI")

	t.Setenv("MONGODB_URI", "mongodb://localhost")
	t.Setenv("JWT_SECRET", "")
	_, err = Load()
	assert.ErrorContains(t, err, "JWT_SECRET")
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("CORS_ORIGINS", " https://a.example , ,https://b.example")
	t.Setenv("MARKER_CACHE_TTL", "30s")
	t.Setenv("GCS_BUCKET", "reports-bucket")
	t.Setenv("SMTP_HOST", "smtp.example.com")
	t.Setenv("SMTP_FROM", "noreply@example.com")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.Equal(t, 30*time.Second, cfg.MarkerCacheTTL)
	assert.NoError(t, cfg.RequireServe())
	assert.True(t, cfg.SMTPEnabled())
}

func TestLoadInvalidValues(t *testing.T) {
	setRequired(t)
	t.Setenv("STALE_PENDING_AFTER", "three days")
	_, err := Load()
	assert.ErrorContains(t, err, "STALE_PENDING_AFTER")

	t.Setenv("STALE_PENDING_AFTER", "")
	t.Setenv("RATE_LIMIT_BURST", "0")
	_, err = Load()
	assert.ErrorContains(t, err, "RATE_LIMIT_BURST")
}
