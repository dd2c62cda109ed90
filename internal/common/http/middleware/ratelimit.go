package middleware

import (
	"context"
	"fmt"
	"time"

	"codejudge/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

// RateLimiter counts hits per key.
type RateLimiter interface {
	Allow(ctx context.Context, key string, max int, window time.Duration) error
}

// RateLimitPolicy limits one route per client IP and in total.
type RateLimitPolicy struct {
	Window   time.Duration `yaml:"window"`
	IPMax    int           `yaml:"ipMax"`
	RouteMax int           `yaml:"routeMax"`
}

// RateLimitMiddleware enforces policy on routeKey. A nil limiter disables it.
func RateLimitMiddleware(limiter RateLimiter, routeKey string, policy RateLimitPolicy) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}
		if policy.IPMax > 0 {
			key := fmt.Sprintf("judge:rate:ip:%s:%s", c.ClientIP(), routeKey)
			if err := limiter.Allow(c.Request.Context(), key, policy.IPMax, policy.Window); err != nil {
				response.AbortWithError(c, err)
				return
			}
		}
		if policy.RouteMax > 0 {
			key := fmt.Sprintf("judge:rate:route:%s", routeKey)
			if err := limiter.Allow(c.Request.Context(), key, policy.RouteMax, policy.Window); err != nil {
				response.AbortWithError(c, err)
				return
			}
		}
		c.Next()
	}
}

// Enabled reports whether the policy limits anything.
func (p RateLimitPolicy) Enabled() bool {
	return p.IPMax > 0 || p.RouteMax > 0
}
