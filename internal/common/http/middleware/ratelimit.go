package middleware

import (
	"context"
	"time"

	"offlinejudge/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

// RateLimiter counts hits per key within a window.
type RateLimiter interface {
	Allow(ctx context.Context, key string, max int, window time.Duration) error
}

// RateLimitPolicy limits one route group. Zero maxima disable that check.
type RateLimitPolicy struct {
	Window   time.Duration `yaml:"window"`
	IPMax    int           `yaml:"ipMax"`
	RouteMax int           `yaml:"routeMax"`
}

// RateLimitMiddleware rejects requests over policy with the run error shape.
// A nil limiter lets every request through.
func RateLimitMiddleware(limiter RateLimiter, routeKey string, policy RateLimitPolicy) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}
		ctx := c.Request.Context()
		if policy.IPMax > 0 {
			if err := limiter.Allow(ctx, "ip:"+c.ClientIP()+":"+routeKey, policy.IPMax, policy.Window); err != nil {
				response.Run(c, err)
				c.Abort()
				return
			}
		}
		if policy.RouteMax > 0 {
			if err := limiter.Allow(ctx, "route:"+routeKey, policy.RouteMax, policy.Window); err != nil {
				response.Run(c, err)
				c.Abort()
				return
			}
		}
		c.Next()
	}
}
