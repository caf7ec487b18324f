package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"cakemarket/internal/domain/entity"
	"cakemarket/internal/infrastructure/metrics"
	"cakemarket/internal/usecase"
	"cakemarket/pkg/errors"
	"cakemarket/pkg/logger"
)

// CloseAuthenticationFailed is sent in the close frame after a rejected
// handshake.
const CloseAuthenticationFailed = 4401

type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*usecase.Identity, error)
}

type MessageSender interface {
	SendMessage(ctx context.Context, input usecase.SendMessageInput) (*entity.Message, error)
}

// Handshake carries the credentials a client may present when connecting.
type Handshake struct {
	Auth   map[string]interface{}
	Query  url.Values
	Header http.Header
}

// Token picks the bearer token by precedence: auth payload field, then the
// "token" query parameter, then the Authorization header.
func (h Handshake) Token() string {
	if token, ok := h.Auth["token"].(string); ok && token != "" {
		return token
	}
	if values := h.Query["token"]; len(values) > 0 && values[0] != "" {
		return values[0]
	}
	if header := h.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return ""
}

// Gateway runs the connection lifecycle: handshake, room subscriptions and
// inbound events. It owns the Hub it delivers through.
type Gateway struct {
	hub     *Hub
	auth    Authenticator
	sender  MessageSender
	timeout time.Duration
}

func NewGateway(hub *Hub, auth Authenticator, sender MessageSender, handshakeTimeout time.Duration) *Gateway {
	if handshakeTimeout <= 0 {
		handshakeTimeout = 10 * time.Second
	}
	return &Gateway{
		hub:     hub,
		auth:    auth,
		sender:  sender,
		timeout: handshakeTimeout,
	}
}

func (g *Gateway) Hub() *Hub {
	return g.hub
}

// HandleConnection authenticates a new connection. On failure the client is
// sent an error event and closed without ever being registered.
func (g *Gateway) HandleConnection(ctx context.Context, c *Client, hs Handshake) error {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	identity, err := g.auth.Authenticate(ctx, hs.Token())
	if err != nil {
		g.reject(c, err)
		return err
	}

	c.UserID = identity.UserID
	c.Role = identity.Role
	c.setState(StateAuthenticated)
	g.hub.registry.Add(c)
	metrics.ActiveConnections.Inc()

	logger.Info("WebSocket: connection %s authenticated as %s (%s)", c.ID, c.UserID, c.Role)
	return nil
}

func (g *Gateway) reject(c *Client, err error) {
	code := errors.CodeOf(err)
	if code == errors.CodeInternal {
		code = errors.CodeTokenInvalid
	}
	metrics.HandshakeFailures.WithLabelValues(code).Inc()
	logger.Warn("WebSocket: handshake rejected for connection %s: %v", c.ID, err)

	c.emit(EventError, "", "", ErrorData{Message: errors.PublicMessage(err), Code: code})
	c.Close(CloseAuthenticationFailed, code)
}

// HandleDisconnect removes c from the registry and from every room it joined.
func (g *Gateway) HandleDisconnect(c *Client) {
	c.setState(StateDisconnected)
	if g.hub.registry.Remove(c) {
		metrics.ActiveConnections.Dec()
		logger.Info("WebSocket: connection %s of user %s disconnected", c.ID, c.UserID)
	}
}

// Close disconnects every registered connection with a going-away close
// frame and empties the registry. It returns how many were closed.
func (g *Gateway) Close() int {
	clients := g.hub.registry.All()
	for _, c := range clients {
		g.HandleDisconnect(c)
		c.Close(websocket.CloseGoingAway, "server shutting down")
	}
	logger.Info("WebSocket: closed %d connection(s) for shutdown", len(clients))
	return len(clients)
}

// JoinRoom subscribes c to roomID. Subscribing does not check room access;
// sending and listing do.
func (g *Gateway) JoinRoom(c *Client, roomID string) Ack {
	if ack, ok := g.precheck(c, roomID); !ok {
		return ack
	}
	if g.hub.registry.Join(roomID, c) {
		logger.Debug("WebSocket: connection %s joined room %s", c.ID, roomID)
	}
	return Ack{Success: true, RoomID: roomID}
}

// LeaveRoom unsubscribes c from roomID. Leaving a room c is not in succeeds.
func (g *Gateway) LeaveRoom(c *Client, roomID string) Ack {
	if ack, ok := g.precheck(c, roomID); !ok {
		return ack
	}
	if g.hub.registry.Leave(roomID, c) {
		logger.Debug("WebSocket: connection %s left room %s", c.ID, roomID)
	}
	return Ack{Success: true, RoomID: roomID}
}

// SendMessage runs the message pipeline for c. The side c speaks for is taken
// from its place in the room. The committed message is broadcast by the
// pipeline and also returned in the ack.
func (g *Gateway) SendMessage(ctx context.Context, c *Client, data SendMessageData) Ack {
	if ack, ok := g.precheck(c, data.RoomID); !ok {
		return ack
	}

	message, err := g.sender.SendMessage(ctx, usecase.SendMessageInput{
		RoomID:     data.RoomID,
		Text:       data.Text,
		SenderID:   c.UserID,
		SenderType: entity.SenderAny,
	})
	if err != nil {
		return errorAck(err)
	}
	return Ack{Success: true, RoomID: message.RoomID, Message: message}
}

func (g *Gateway) precheck(c *Client, roomID string) (Ack, bool) {
	if c.State() != StateAuthenticated {
		return Ack{Error: "Not authenticated", Code: errors.CodeUnauthorized}, false
	}
	if strings.TrimSpace(roomID) == "" {
		return Ack{Error: "roomId is required", Code: errors.CodeInvalidArgument}, false
	}
	return Ack{}, true
}

func errorAck(err error) Ack {
	return Ack{Error: errors.PublicMessage(err), Code: errors.CodeOf(err)}
}

// HandleFrame decodes one inbound frame and answers it on c.
func (g *Gateway) HandleFrame(c *Client, raw []byte) {
	var frame Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		logger.Warn("WebSocket: invalid frame from connection %s: %v", c.ID, err)
		c.emit(EventAck, "", "", Ack{Error: "Invalid message format", Code: errors.CodeBadRequest})
		return
	}

	switch frame.Type {
	case EventPing:
		c.emit(EventPong, frame.ID, "", map[string]string{"status": "alive"})

	case EventJoinRoom, EventLeaveRoom:
		var data RoomData
		if !decodeData(c, frame, &data) {
			return
		}
		ack := g.JoinRoom
		if frame.Type == EventLeaveRoom {
			ack = g.LeaveRoom
		}
		c.emit(EventAck, frame.ID, frame.Type, ack(c, data.RoomID))

	case EventSendMessage:
		var data SendMessageData
		if !decodeData(c, frame, &data) {
			return
		}
		c.emit(EventAck, frame.ID, frame.Type, g.SendMessage(context.Background(), c, data))

	default:
		logger.Warn("WebSocket: unknown event %q from connection %s", frame.Type, c.ID)
		c.emit(EventAck, frame.ID, frame.Type, Ack{Error: "Unknown event type", Code: errors.CodeBadRequest})
	}
}

func decodeData(c *Client, frame Frame, out interface{}) bool {
	if len(frame.Data) == 0 {
		return true
	}
	if err := json.Unmarshal(frame.Data, out); err != nil {
		c.emit(EventAck, frame.ID, frame.Type, Ack{Error: "Invalid " + frame.Type + " payload", Code: errors.CodeBadRequest})
		return false
	}
	return true
}

// Serve drives an upgraded connection: handshake, then the read and write
// pumps. It returns once the handshake is decided.
func (g *Gateway) Serve(ctx context.Context, conn *websocket.Conn, hs Handshake) {
	c := NewClient(conn)
	go c.WritePump()

	if err := g.HandleConnection(ctx, c, hs); err != nil {
		return
	}
	go c.ReadPump(g)
}
