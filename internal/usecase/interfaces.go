package usecase

import (
	"context"

	"cakemarket/internal/domain/entity"
)

// Broadcaster fans a committed message out to every connection subscribed to
// its room. Delivery is best effort.
type Broadcaster interface {
	Publish(ctx context.Context, roomID string, message *entity.Message) error
}

// UserNotifier delivers an out-of-band event to every live connection of a
// user, regardless of room membership. It returns the number of connections
// the event was queued for.
type UserNotifier interface {
	SendToUser(userID, event string, payload interface{}) int
}
