package app

import (
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SubmitThrottle limits submissions per client IP. Redis trouble lets the
// request through rather than blocking bookings.
func (a *App) SubmitThrottle() gin.HandlerFunc {
	return func(c *gin.Context) {
		if a.Limiter == nil {
			c.Next()
			return
		}
		d, err := a.Limiter.Allow(c.Request.Context(), "submit", c.ClientIP())
		if err != nil {
			a.Log.Warn("rate limiter unavailable", zap.Error(err))
			c.Next()
			return
		}
		c.Header("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		if !d.Allowed {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(d.RetryAfter.Seconds()))))
			Fail(c, http.StatusTooManyRequests, "rate_limited", "too many requests, slow down")
			return
		}
		c.Next()
	}
}
