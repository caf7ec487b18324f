package websocket

import (
	"encoding/json"
	"time"
)

// Client and server event names.
const (
	EventJoinRoom    = "join-room"
	EventLeaveRoom   = "leave-room"
	EventSendMessage = "send-message"
	EventNewMessage  = "new-message"
	EventError       = "error"
	EventAck         = "ack"
	EventPing        = "ping"
	EventPong        = "pong"
)

// Frame is the JSON envelope exchanged over a connection. ID is chosen by
// the client and echoed back on the matching ack.
type Frame struct {
	Type      string          `json:"type"`
	ID        string          `json:"id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp string          `json:"timestamp,omitempty"`
}

type outboundFrame struct {
	Type      string      `json:"type"`
	ID        string      `json:"id,omitempty"`
	Event     string      `json:"event,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp string      `json:"timestamp"`
}

func encodeFrame(frameType, id, event string, data interface{}) ([]byte, error) {
	return json.Marshal(outboundFrame{
		Type:      frameType,
		ID:        id,
		Event:     event,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	})
}

type RoomData struct {
	RoomID string `json:"roomId"`
}

type SendMessageData struct {
	RoomID string `json:"roomId"`
	Text   string `json:"text"`
}

// ErrorData is the payload of the terminal handshake error event.
type ErrorData struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Ack answers a join-room, leave-room or send-message request. Exactly one of
// Success or Error is meaningful.
type Ack struct {
	Success bool        `json:"success"`
	RoomID  string      `json:"roomId,omitempty"`
	Message interface{} `json:"message,omitempty"`
	Error   string      `json:"error,omitempty"`
	Code    string      `json:"code,omitempty"`
}
