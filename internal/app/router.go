package app

import (
	"github.com/gin-gonic/gin"

	"github.com/gigfolio/gigfolio-backend/internal/server"
)

func wireRouter(cfg Config, handlerset Handlers, middlewareset Middleware) *gin.Engine {
	return server.NewRouter(server.RouterConfig{
		AllowOrigins:        cfg.AllowOrigins,
		AuthHandler:         handlerset.Auth,
		ContractHandler:     handlerset.Contract,
		SettingsHandler:     handlerset.Settings,
		SignHandler:         handlerset.Sign,
		AuthMiddleware:      middlewareset.Auth,
		RateLimitMiddleware: middlewareset.RateLimit,
	})
}
