package app

import (
	"context"
	"fmt"
	"time"

	"github.com/gigfolio/gigfolio-backend/internal/clients/redisx"
	"github.com/gigfolio/gigfolio-backend/internal/platform/gcs"
	"github.com/gigfolio/gigfolio-backend/internal/platform/logger"
	"github.com/gigfolio/gigfolio-backend/internal/platform/sendgrid"
)

type Clients struct {
	Store       gcs.Store
	Mailer      sendgrid.Client
	RateLimiter redisx.RateLimiter
}

func wireClients(ctx context.Context, log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")

	store, err := gcs.New(ctx, log, cfg.GCS)
	if err != nil {
		return Clients{}, fmt.Errorf("init object store: %w", err)
	}

	mailer, err := sendgrid.New(log, cfg.SendGrid)
	if err != nil {
		return Clients{}, fmt.Errorf("init sendgrid: %w", err)
	}

	var limiter redisx.RateLimiter
	if cfg.RedisAddr != "" {
		limiter, err = redisx.NewRateLimiter(log, redisx.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			Limit:    cfg.RateLimitPerMin,
			Window:   time.Minute,
		})
		if err != nil {
			return Clients{}, fmt.Errorf("init rate limiter: %w", err)
		}
	} else {
		log.Warn("REDIS_ADDR not set; public signing endpoints are unthrottled")
	}

	return Clients{Store: store, Mailer: mailer, RateLimiter: limiter}, nil
}
