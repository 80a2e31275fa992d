package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/gigfolio/gigfolio-backend/internal/handlers"
	"github.com/gigfolio/gigfolio-backend/internal/middleware"
)

type RouterConfig struct {
	AllowOrigins []string

	AuthHandler     *handlers.AuthHandler
	ContractHandler *handlers.ContractHandler
	SettingsHandler *handlers.SettingsHandler
	SignHandler     *handlers.SignHandler

	AuthMiddleware      *middleware.AuthMiddleware
	RateLimitMiddleware *middleware.RateLimitMiddleware
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	origins := cfg.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	// The frontend app gets an origin allowlist with credentials. The
	// signing routes get their own open CORS below, so the allowlist is
	// scoped per group instead of mounted globally.
	appCORS := cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	})

	// ===============
	// || Public    ||
	// ===============
	router.GET("/healthcheck", handlers.HealthCheck)

	auth := router.Group("")
	auth.Use(appCORS)
	auth.POST("/register", cfg.AuthHandler.Register)
	auth.POST("/login", cfg.AuthHandler.Login)
	auth.POST("/refresh", cfg.AuthHandler.Refresh)

	// Signing routes are reached from the cloud-hosted page, any origin,
	// no credentials. Rate limited per client address.
	sign := router.Group("/contracts/sign")
	sign.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:    []string{"Content-Type"},
	}))
	sign.Use(cfg.RateLimitMiddleware.LimitByIP())
	sign.GET("/:id", cfg.SignHandler.Page)
	sign.POST("/:id", cfg.SignHandler.Submit)

	// ===============
	// || Protected ||
	// ===============
	api := router.Group("/api")
	api.Use(appCORS)
	api.Use(cfg.AuthMiddleware.RequireAuth())
	// Auth
	api.POST("/logout", cfg.AuthHandler.Logout)
	// Contracts
	api.POST("/contracts", cfg.ContractHandler.Create)
	api.GET("/contracts", cfg.ContractHandler.List)
	api.GET("/contracts/:id", cfg.ContractHandler.Get)
	api.PUT("/contracts/:id", cfg.ContractHandler.Update)
	api.POST("/contracts/:id/send", cfg.ContractHandler.Send)
	api.GET("/contracts/:id/download", cfg.ContractHandler.Download)
	// Settings
	api.GET("/settings", cfg.SettingsHandler.Get)
	api.PUT("/settings", cfg.SettingsHandler.Update)

	return router
}
