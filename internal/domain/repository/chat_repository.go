package repository

import (
	"context"

	"cakemarket/internal/domain/entity"
)

type ChatRoomRepository interface {
	GetByID(ctx context.Context, id string) (*entity.ChatRoom, error)
	// UpsertByParticipants returns the room for (userID, storeID), creating it
	// when absent. created reports whether this call inserted it.
	UpsertByParticipants(ctx context.Context, userID, storeID string) (room *entity.ChatRoom, created bool, err error)
	UpdateMetadata(ctx context.Context, id string, patch entity.RoomMetadataPatch) error
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*entity.ChatRoom, error)
	ListByStore(ctx context.Context, storeID string, limit, offset int) ([]*entity.ChatRoom, error)
}

// MessageRepository list methods return rows newest first, ordered by
// (createdAt desc, id desc).
type MessageRepository interface {
	// Create assigns ID and CreatedAt.
	Create(ctx context.Context, message *entity.Message) error
	CountByRoom(ctx context.Context, roomID string) (int64, error)
	ListPage(ctx context.Context, roomID string, limit, offset int) ([]*entity.Message, error)
	// ListByCursor returns up to limit rows strictly older than the message
	// whose id is cursor. An empty cursor starts from the newest row.
	ListByCursor(ctx context.Context, roomID string, limit int, cursor string) ([]*entity.Message, error)
}

// Transactor runs fn atomically. Repositories passed to fn are bound to the
// transaction; nothing fn wrote is visible if it returns an error.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context, rooms ChatRoomRepository, messages MessageRepository) error) error
}
