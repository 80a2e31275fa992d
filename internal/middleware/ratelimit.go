package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gigfolio/gigfolio-backend/internal/clients/redisx"
	"github.com/gigfolio/gigfolio-backend/internal/platform/logger"
)

type RateLimitMiddleware struct {
	log     *logger.Logger
	limiter redisx.RateLimiter
}

func NewRateLimitMiddleware(baseLog *logger.Logger, limiter redisx.RateLimiter) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		log:     baseLog.With("middleware", "RateLimitMiddleware"),
		limiter: limiter,
	}
}

// LimitByIP throttles unauthenticated endpoints per client address. A
// nil limiter disables throttling (local development).
func (rm *RateLimitMiddleware) LimitByIP() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rm.limiter == nil {
			c.Next()
			return
		}
		allowed, err := rm.limiter.Allow(c.Request.Context(), c.ClientIP())
		if err != nil {
			// Fail open: the signing flow must survive a redis outage.
			c.Next()
			return
		}
		if !allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": gin.H{"message": "too many requests", "code": "RATE_LIMITED"}})
			return
		}
		c.Next()
	}
}
