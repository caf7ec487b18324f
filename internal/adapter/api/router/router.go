package router

import (
	"cakemarket/internal/adapter/api/middleware"
	"cakemarket/internal/infrastructure/ratelimit"

	"github.com/labstack/echo/v4"
)

func Setup(e *echo.Echo, authMiddleware *middleware.AuthMiddleware, limiter *ratelimit.RateLimiter) {
	SetupHealthRouter(e)
	SetupChatRouter(e, authMiddleware, limiter)
	SetupWebSocketRouter(e)
}
