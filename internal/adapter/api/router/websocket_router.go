package router

import (
	"github.com/labstack/echo/v4"

	"cakemarket/internal/adapter/api/handler"
)

// SetupWebSocketRouter registers /ws without the auth middleware; the gateway
// authenticates the handshake itself.
func SetupWebSocketRouter(e *echo.Echo) {
	e.GET("/ws", handler.GetWebSocketHandler().HandleWebSocket)
}
