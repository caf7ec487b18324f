package websocket

import (
	"context"

	"cakemarket/internal/domain/entity"
	"cakemarket/internal/infrastructure/metrics"
	"cakemarket/pkg/logger"
)

// Hub delivers events to connections held by this process. It is the
// default Broadcaster and the UserNotifier of the chat use case.
type Hub struct {
	registry *Registry
}

func NewHub(registry *Registry) *Hub {
	return &Hub{registry: registry}
}

func (h *Hub) Registry() *Registry {
	return h.registry
}

// Publish sends new-message to every subscriber of roomID, including other
// connections of the sender.
func (h *Hub) Publish(ctx context.Context, roomID string, message *entity.Message) error {
	h.Deliver(roomID, message)
	return nil
}

// Deliver fans message out to local subscribers and returns how many
// connections it was queued for. Broker subscriptions call it directly.
func (h *Hub) Deliver(roomID string, message *entity.Message) int {
	frame, err := encodeFrame(EventNewMessage, "", "", message)
	if err != nil {
		logger.Error("Hub: failed to encode message %s: %v", message.ID, err)
		return 0
	}

	delivered := 0
	for _, c := range h.registry.Subscribers(roomID) {
		if c.enqueue(frame) {
			delivered++
		}
	}
	metrics.BroadcastDeliveries.Add(float64(delivered))
	logger.Debug("Hub: message %s delivered to %d subscriber(s) of room %s", message.ID, delivered, roomID)
	return delivered
}

// SendToUser sends event to every live connection of userID.
func (h *Hub) SendToUser(userID, event string, payload interface{}) int {
	frame, err := encodeFrame(event, "", "", payload)
	if err != nil {
		logger.Error("Hub: failed to encode %s for user %s: %v", event, userID, err)
		return 0
	}

	sent := 0
	for _, c := range h.registry.Connections(userID) {
		if c.enqueue(frame) {
			sent++
		}
	}
	return sent
}
