package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds everything the server and the CLI read from the environment.
type AppConfig struct {
	Port          string
	Environment   string
	LogLevel      string
	CORSOrigins   []string
	MongoURI      string
	MongoDatabase string
	JWTSecret     string
	TokenTTL      time.Duration

	GCSBucket         string
	GCPCredentials    string
	RedisURL          string
	MarkerCacheTTL    time.Duration
	NATSURL           string
	SMTPHost          string
	SMTPPort          string
	SMTPUser          string
	SMTPPass          string
	SMTPFrom          string
	RateLimitRPS      float64
	RateLimitBurst    int
	CronSpecBacklog   string
	CronSpecWarmMaps  string
	StalePendingAfter time.Duration
}

// Load reads the .env file (if any) and the process environment.
// godotenv never overrides variables that are already set.
func Load() (*AppConfig, error) {
	_ = godotenv.Load()

	cfg := &AppConfig{
		Port:             getenv("PORT", "8080"),
		Environment:      strings.ToLower(getenv("ENVIRONMENT", "development")),
		LogLevel:         strings.ToLower(getenv("LOG_LEVEL", "info")),
		MongoURI:         os.Getenv("MONGODB_URI"),
		MongoDatabase:    getenv("MONGODB_DATABASE", "community_help"),
		JWTSecret:        os.Getenv("JWT_SECRET"),
		GCSBucket:        os.Getenv("GCS_BUCKET"),
		GCPCredentials:   os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"),
		RedisURL:         os.Getenv("REDIS_URL"),
		NATSURL:          os.Getenv("NATS_URL"),
		SMTPHost:         os.Getenv("SMTP_HOST"),
		SMTPPort:         getenv("SMTP_PORT", "587"),
		SMTPUser:         os.Getenv("SMTP_USER"),
		SMTPPass:         os.Getenv("SMTP_PASS"),
		SMTPFrom:         os.Getenv("SMTP_FROM"),
		CronSpecBacklog:  getenv("CRON_SPEC_BACKLOG", "*/30 * * * *"),
		CronSpecWarmMaps: getenv("CRON_SPEC_WARM_MARKERS", "*/5 * * * *"),
	}

	if cfg.MongoURI == "" {
		return nil, fmt.Errorf("MONGODB_URI is not set")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is not set")
	}

	origins := getenv("CORS_ORIGINS", "http://localhost:8081,http://localhost:19006")
	for _, o := range strings.Split(origins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.CORSOrigins = append(cfg.CORSOrigins, o)
		}
	}

	var err error
	if cfg.TokenTTL, err = durationEnv("TOKEN_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.MarkerCacheTTL, err = durationEnv("MARKER_CACHE_TTL", time.Minute); err != nil {
		return nil, err
	}
	if cfg.StalePendingAfter, err = durationEnv("STALE_PENDING_AFTER", 72*time.Hour); err != nil {
		return nil, err
	}

	cfg.RateLimitRPS, err = strconv.ParseFloat(getenv("RATE_LIMIT_RPS", "1"), 64)
	if err != nil || cfg.RateLimitRPS <= 0 {
		return nil, fmt.Errorf("invalid RATE_LIMIT_RPS: %q", os.Getenv("RATE_LIMIT_RPS"))
	}
	cfg.RateLimitBurst, err = strconv.Atoi(getenv("RATE_LIMIT_BURST", "5"))
	if err != nil || cfg.RateLimitBurst <= 0 {
		return nil, fmt.Errorf("invalid RATE_LIMIT_BURST: %q", os.Getenv("RATE_LIMIT_BURST"))
	}

	return cfg, nil
}

// RequireServe checks the settings only the HTTP server needs.
func (c *AppConfig) RequireServe() error {
	if c.GCSBucket == "" {
		return fmt.Errorf("GCS_BUCKET is not set")
	}
	return nil
}

// SMTPEnabled reports whether reporter e-mails can be sent.
func (c *AppConfig) SMTPEnabled() bool {
	return c.SMTPHost != "" && c.SMTPFrom != ""
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
