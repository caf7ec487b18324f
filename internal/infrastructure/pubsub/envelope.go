package pubsub

import (
	"encoding/json"
	"fmt"

	"cakemarket/internal/domain/entity"
)

// Deliverer hands a message to the connections of this process.
type Deliverer interface {
	Deliver(roomID string, message *entity.Message) int
}

type envelope struct {
	RoomID  string          `json:"roomId"`
	Message *entity.Message `json:"message"`
}

func encode(roomID string, message *entity.Message) ([]byte, error) {
	return json.Marshal(envelope{RoomID: roomID, Message: message})
}

func decode(data []byte) (*envelope, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode broadcast: %w", err)
	}
	if env.RoomID == "" || env.Message == nil {
		return nil, fmt.Errorf("decode broadcast: missing room or message")
	}
	return &env, nil
}
