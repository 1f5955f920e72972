// Package config reads the site's settings from the environment. A .env file
// in the working directory is loaded first when present.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload"
)

// Unlock storage backends.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

type Config struct {
	Env  string
	Port string

	CMSBaseURL      string
	ContentDir      string
	ContentCacheTTL time.Duration

	SessionHashKey     []byte
	SessionBlockKey    []byte
	SessionIdleTimeout time.Duration

	UnlockBackend string
	DatabasePath  string
	RedisAddr     string

	AdminUsername string
	AdminPassword string

	CORSOrigins    []string
	SkipLinkMargin float64

	SMTPHost string
	SMTPPort string
	SMTPUser string
	SMTPPass string
}

// Production reports whether the site runs with production settings.
func (c Config) Production() bool {
	switch strings.ToLower(c.Env) {
	case "prod", "production":
		return true
	}
	return false
}

// Load builds a Config from the environment, filling development defaults.
// Secrets that have no safe default are reported in warnings.
func Load() (Config, []string, error) {
	var warnings []string
	cfg := Config{
		Env:        getenv("APP_ENV", "development"),
		Port:       getenv("PORT", "8080"),
		CMSBaseURL: strings.TrimSpace(os.Getenv("CMS_BASE_URL")),
		ContentDir: getenv("CONTENT_DIR", "content"),

		UnlockBackend: strings.ToLower(getenv("UNLOCK_BACKEND", BackendSQLite)),
		DatabasePath:  getenv("DATABASE_PATH", "data/portfolio.db"),
		RedisAddr:     strings.TrimSpace(os.Getenv("REDIS_ADDR")),

		AdminUsername: os.Getenv("ADMIN_USERNAME"),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),

		SMTPHost: getenv("SMTP_HOST", "smtp.gmail.com"),
		SMTPPort: getenv("SMTP_PORT", "587"),
		SMTPUser: os.Getenv("SMTP_USER"),
		SMTPPass: os.Getenv("SMTP_PASS"),
	}

	var err error
	if cfg.ContentCacheTTL, err = durationEnv("CONTENT_CACHE_TTL", 5*time.Minute); err != nil {
		return Config{}, warnings, err
	}
	if cfg.SessionIdleTimeout, err = durationEnv("SESSION_IDLE_TIMEOUT", 12*time.Hour); err != nil {
		return Config{}, warnings, err
	}
	if cfg.SkipLinkMargin, err = floatEnv("SKIP_LINK_MARGIN", 100); err != nil {
		return Config{}, warnings, err
	}

	switch cfg.UnlockBackend {
	case BackendMemory, BackendSQLite:
	case BackendRedis:
		if cfg.RedisAddr == "" {
			return Config{}, warnings, fmt.Errorf("config: UNLOCK_BACKEND=redis requires REDIS_ADDR")
		}
	default:
		return Config{}, warnings, fmt.Errorf("config: unknown UNLOCK_BACKEND %q", cfg.UnlockBackend)
	}

	if key := os.Getenv("SESSION_HASH_KEY"); key != "" {
		cfg.SessionHashKey = []byte(key)
	} else {
		if cfg.Production() {
			return Config{}, warnings, fmt.Errorf("config: SESSION_HASH_KEY is required in production")
		}
		cfg.SessionHashKey = []byte("insecure-dev-session-key-set-SESSION_HASH_KEY")
		warnings = append(warnings, "using development session key; set SESSION_HASH_KEY")
	}
	if key := os.Getenv("SESSION_BLOCK_KEY"); key != "" {
		cfg.SessionBlockKey = []byte(key)
	}

	if cfg.AdminUsername == "" {
		cfg.AdminUsername = "admin"
		warnings = append(warnings, "using default admin username; set ADMIN_USERNAME")
	}
	if cfg.AdminPassword == "" {
		if cfg.Production() {
			return Config{}, warnings, fmt.Errorf("config: ADMIN_PASSWORD is required in production")
		}
		cfg.AdminPassword = "admin123"
		warnings = append(warnings, "using default admin password; set ADMIN_PASSWORD")
	}

	for _, origin := range strings.Split(getenv("CORS_ORIGINS", "http://localhost:3000,http://localhost:5173"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.CORSOrigins = append(cfg.CORSOrigins, origin)
		}
	}
	return cfg, warnings, nil
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("config: %s: invalid duration %q", key, raw)
	}
	return d, nil
}

func floatEnv(key string, fallback float64) (float64, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f < 0 {
		return 0, fmt.Errorf("config: %s: invalid number %q", key, raw)
	}
	return f, nil
}
