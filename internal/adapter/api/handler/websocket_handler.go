package handler

import (
	"net/http"
	"net/url"
	"time"

	gorillaws "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	ws "cakemarket/internal/infrastructure/websocket"
	"cakemarket/pkg/logger"
)

// tokenSubprotocol lets browsers, which cannot set headers on a socket,
// present the token as Sec-WebSocket-Protocol: access_token, <token>.
const tokenSubprotocol = "access_token"

type WebSocketHandler struct {
	gateway  *ws.Gateway
	upgrader gorillaws.Upgrader
}

func NewWebSocketHandler(gateway *ws.Gateway, allowedOrigins []string, handshakeTimeout time.Duration) *WebSocketHandler {
	return &WebSocketHandler{
		gateway: gateway,
		upgrader: gorillaws.Upgrader{
			ReadBufferSize:   1024,
			WriteBufferSize:  1024,
			HandshakeTimeout: handshakeTimeout,
			Subprotocols:     []string{tokenSubprotocol},
			CheckOrigin:      originChecker(allowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, origin := range allowed {
		if origin == "*" {
			return func(r *http.Request) bool { return true }
		}
		set[origin] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if u, err := url.Parse(origin); err == nil && set[u.Scheme+"://"+u.Host] {
			return true
		}
		return set[origin]
	}
}

// HandleWebSocket upgrades the request and hands it to the gateway, which
// authenticates it from the handshake before any event is accepted.
func (h *WebSocketHandler) HandleWebSocket(c echo.Context) error {
	req := c.Request()
	hs := ws.Handshake{
		Auth:   handshakeAuth(req),
		Query:  req.URL.Query(),
		Header: req.Header,
	}

	conn, err := h.upgrader.Upgrade(c.Response(), req, nil)
	if err != nil {
		// The upgrader has already written the HTTP error.
		logger.Warn("WebSocket: upgrade failed from %s: %v", c.RealIP(), err)
		return nil
	}

	h.gateway.Serve(req.Context(), conn, hs)
	return nil
}

func handshakeAuth(r *http.Request) map[string]interface{} {
	protocols := gorillaws.Subprotocols(r)
	for i := 0; i+1 < len(protocols); i++ {
		if protocols[i] == tokenSubprotocol {
			return map[string]interface{}{"token": protocols[i+1]}
		}
	}
	return nil
}
