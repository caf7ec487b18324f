package router

import (
	"github.com/labstack/echo/v4"

	"cakemarket/internal/adapter/api/handler"
	"cakemarket/internal/adapter/api/middleware"
	"cakemarket/internal/infrastructure/ratelimit"
)

// SetupChatRouter sets up the REST side of chat. Live delivery goes through /ws.
func SetupChatRouter(e *echo.Echo, authMiddleware *middleware.AuthMiddleware, limiter *ratelimit.RateLimiter) {
	chatHandler := handler.GetChatHandler()

	chatGroup := e.Group("/v1/chat")
	chatGroup.Use(authMiddleware.Authenticate)

	chatGroup.POST("/rooms", chatHandler.OpenRoom, middleware.RateLimit(limiter, "open-room"))
	chatGroup.GET("/rooms", chatHandler.ListRooms)
	chatGroup.GET("/rooms/:id", chatHandler.GetRoom)
	chatGroup.PUT("/rooms/:id/read", chatHandler.MarkAsRead)

	chatGroup.GET("/rooms/:id/messages", chatHandler.ListMessages)
	chatGroup.POST("/rooms/:id/messages", chatHandler.SendMessage)
}
