package middleware

import (
	"github.com/labstack/echo/v4"

	"cakemarket/internal/infrastructure/ratelimit"
	"cakemarket/pkg/errors"
	"cakemarket/pkg/logger"
	"cakemarket/pkg/response"
)

// RateLimit throttles requests per authenticated user, falling back to the
// client IP before authentication has run.
func RateLimit(limiter *ratelimit.RateLimiter, action string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key, _ := c.Get(ContextUserID).(string)
			if key == "" {
				key = "ip:" + c.RealIP()
			}

			if !limiter.Allow(key, action) {
				logger.Warn("RATE LIMIT: %s blocked on %s", key, action)
				return response.Error(c, errors.TooManyRequests("Rate limit exceeded"))
			}
			return next(c)
		}
	}
}
