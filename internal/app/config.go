package app

import (
	"strings"
	"time"

	"github.com/gigfolio/gigfolio-backend/internal/db"
	"github.com/gigfolio/gigfolio-backend/internal/platform/envutil"
	"github.com/gigfolio/gigfolio-backend/internal/platform/gcs"
	"github.com/gigfolio/gigfolio-backend/internal/platform/logger"
	"github.com/gigfolio/gigfolio-backend/internal/platform/sendgrid"
	"github.com/gigfolio/gigfolio-backend/internal/render"
)

// Config is read from the environment exactly once, here. Everything
// downstream receives explicit values.
type Config struct {
	Port         string
	AllowOrigins []string

	// PublicBaseURL is where this app is reachable from the internet.
	// The published signing page POSTs back to it, and it hosts the
	// fallback signing route.
	PublicBaseURL string

	DB       db.Config
	SendGrid sendgrid.Config
	GCS      gcs.Config
	Render   render.Config

	JWTSecret  string
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	// SigningURLMaxAge is how old a published signing page may get
	// before the maintenance sweep republishes it.
	SigningURLMaxAge    time.Duration
	MaintenanceInterval time.Duration
	ReminderInterval    time.Duration

	RedisAddr       string
	RedisPassword   string
	RateLimitPerMin int
}

func LoadConfig(log *logger.Logger) Config {
	cfg := Config{
		Port:          envutil.Get("PORT", "8080"),
		PublicBaseURL: envutil.Get("PUBLIC_BASE_URL", "http://localhost:8080"),

		DB: db.Config{
			Host:     envutil.Get("DB_HOST", "localhost"),
			Port:     envutil.Get("DB_PORT", "5432"),
			User:     envutil.Get("DB_USER", "postgres"),
			Password: envutil.Get("DB_PASSWORD", ""),
			Name:     envutil.Get("DB_NAME", "gigfolio"),
			SSLMode:  envutil.Get("DB_SSLMODE", "disable"),
		},

		SendGrid: sendgrid.Config{
			APIKey:           envutil.Get("SENDGRID_API_KEY", ""),
			BaseURL:          envutil.Get("SENDGRID_BASE_URL", ""),
			DefaultFromEmail: envutil.Get("SENDGRID_FROM_EMAIL", ""),
			DefaultFromName:  envutil.Get("SENDGRID_FROM_NAME", ""),
			Timeout:          envutil.Duration("SENDGRID_TIMEOUT", 30*time.Second),
			MaxRetries:       envutil.Int("SENDGRID_MAX_RETRIES", 4),
		},

		GCS: gcs.Config{
			Bucket:        envutil.Get("GCS_BUCKET", ""),
			CDNDomain:     envutil.Get("GCS_CDN_DOMAIN", ""),
			PublicBaseURL: envutil.Get("GCS_PUBLIC_BASE_URL", ""),
			EmulatorHost:  envutil.Get("GCS_EMULATOR_HOST", ""),
		},

		Render: render.Config{
			SignatureFontPath: envutil.Get("SIGNATURE_FONT_PATH", ""),
		},

		JWTSecret:  envutil.Get("JWT_SECRET_KEY", ""),
		AccessTTL:  envutil.Duration("JWT_ACCESS_TTL", 15*time.Minute),
		RefreshTTL: envutil.Duration("JWT_REFRESH_TTL", 30*24*time.Hour),

		SigningURLMaxAge:    time.Duration(envutil.Int("SIGNING_URL_MAX_AGE_DAYS", 6)) * 24 * time.Hour,
		MaintenanceInterval: envutil.Duration("MAINTENANCE_INTERVAL", time.Hour),
		ReminderInterval:    envutil.Duration("REMINDER_INTERVAL", time.Hour),

		RedisAddr:       envutil.Get("REDIS_ADDR", ""),
		RedisPassword:   envutil.Get("REDIS_PASSWORD", ""),
		RateLimitPerMin: envutil.Int("SIGN_RATE_LIMIT_PER_MIN", 10),
	}

	if origins := envutil.Get("ALLOW_ORIGINS", ""); origins != "" {
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.AllowOrigins = append(cfg.AllowOrigins, o)
			}
		}
	}

	if cfg.JWTSecret == "" {
		log.Warn("JWT_SECRET_KEY not set; tokens will not survive restarts safely")
	}
	return cfg
}
