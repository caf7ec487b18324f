package websocket

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"cakemarket/internal/infrastructure/metrics"
	"cakemarket/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8 * 1024
	sendBufferSize = 256
)

type ConnState int32

const (
	StateConnecting ConnState = iota
	StateAuthenticated
	StateDisconnected
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "disconnected"
	}
}

// Client is one transport connection. UserID and Role are set once the
// handshake succeeds and never change afterwards.
type Client struct {
	ID     string
	UserID string
	Role   string

	conn  *websocket.Conn
	send  chan []byte
	state atomic.Int32

	closed    chan struct{}
	closeOnce sync.Once
	closeCode int
	closeText string
}

// NewClient wraps conn. conn may be nil for connections driven in memory.
func NewClient(conn *websocket.Conn) *Client {
	return &Client{
		ID:     uuid.New().String(),
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		closed: make(chan struct{}),
	}
}

func (c *Client) State() ConnState {
	return ConnState(c.state.Load())
}

func (c *Client) setState(s ConnState) {
	c.state.Store(int32(s))
}

// Done is closed once the connection has been closed.
func (c *Client) Done() <-chan struct{} {
	return c.closed
}

// Outbound exposes queued frames. WritePump is the only reader on a real
// connection.
func (c *Client) Outbound() <-chan []byte {
	return c.send
}

// enqueue queues a frame without blocking. A full buffer drops the frame.
func (c *Client) enqueue(frame []byte) bool {
	select {
	case <-c.closed:
		return false
	default:
	}

	select {
	case c.send <- frame:
		return true
	default:
		metrics.DroppedFrames.Inc()
		logger.Warn("WebSocket: send buffer full for connection %s (user %s), dropping frame", c.ID, c.UserID)
		return false
	}
}

func (c *Client) emit(frameType, id, event string, data interface{}) bool {
	frame, err := encodeFrame(frameType, id, event, data)
	if err != nil {
		logger.Error("WebSocket: failed to encode %s frame: %v", frameType, err)
		return false
	}
	return c.enqueue(frame)
}

// Close stops the connection. Frames already queued are still flushed by
// WritePump before the close frame is written.
func (c *Client) Close(code int, text string) {
	c.closeOnce.Do(func() {
		c.closeCode = code
		c.closeText = text
		c.setState(StateDisconnected)
		close(c.closed)
	})
}

// ReadPump reads frames until the connection fails, then hands the client to
// gateway for disconnect handling.
func (c *Client) ReadPump(gateway *Gateway) {
	defer func() {
		gateway.HandleDisconnect(c)
		c.Close(websocket.CloseNormalClosure, "")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("WebSocket: read error on connection %s: %v", c.ID, err)
			}
			return
		}
		gateway.HandleFrame(c, message)
	}
}

// WritePump writes queued frames and keepalive pings to the connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			if err := c.write(websocket.TextMessage, message); err != nil {
				logger.Warn("WebSocket: write error on connection %s: %v", c.ID, err)
				c.Close(websocket.CloseGoingAway, "")
				return
			}

		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				c.Close(websocket.CloseGoingAway, "")
				return
			}

		case <-c.closed:
			c.flush()
			c.write(websocket.CloseMessage, websocket.FormatCloseMessage(c.closeCode, c.closeText))
			return
		}
	}
}

func (c *Client) flush() {
	for {
		select {
		case message := <-c.send:
			if err := c.write(websocket.TextMessage, message); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *Client) write(messageType int, data []byte) error {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(messageType, data)
}
