package handler

import (
	"time"

	"cakemarket/internal/infrastructure/websocket"
	"cakemarket/internal/usecase"
)

var (
	chatHandler      *ChatHandler
	webSocketHandler *WebSocketHandler
	healthHandler    *HealthHandler
)

func Setup(
	chatUseCase *usecase.ChatUseCase,
	gateway *websocket.Gateway,
	allowedOrigins []string,
	handshakeTimeout time.Duration,
	checks map[string]HealthCheck,
) {
	chatHandler = NewChatHandler(chatUseCase)
	webSocketHandler = NewWebSocketHandler(gateway, allowedOrigins, handshakeTimeout)
	healthHandler = NewHealthHandler(checks)
}

func GetChatHandler() *ChatHandler {
	return chatHandler
}

func GetWebSocketHandler() *WebSocketHandler {
	return webSocketHandler
}

func GetHealthHandler() *HealthHandler {
	return healthHandler
}
