package app

import (
	"github.com/gigfolio/gigfolio-backend/internal/middleware"
	"github.com/gigfolio/gigfolio-backend/internal/platform/logger"
)

type Middleware struct {
	Auth      *middleware.AuthMiddleware
	RateLimit *middleware.RateLimitMiddleware
}

func wireMiddleware(log *logger.Logger, serviceset Services, clients Clients) Middleware {
	log.Info("Wiring middleware...")
	return Middleware{
		Auth:      middleware.NewAuthMiddleware(log, serviceset.Auth),
		RateLimit: middleware.NewRateLimitMiddleware(log, clients.RateLimiter),
	}
}
