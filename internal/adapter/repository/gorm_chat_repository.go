package repository

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"cakemarket/internal/domain/entity"
	"cakemarket/internal/domain/repository"
	"cakemarket/pkg/errors"
)

type gormChatRoomRepository struct {
	db *gorm.DB
}

func NewGormChatRoomRepository(db *gorm.DB) repository.ChatRoomRepository {
	return &gormChatRoomRepository{db: db}
}

func (r *gormChatRoomRepository) GetByID(ctx context.Context, id string) (*entity.ChatRoom, error) {
	var model chatRoomModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NotFound("Chat room", err)
		}
		return nil, errors.Internal("Failed to get chat room", err)
	}
	return model.toEntity(), nil
}

// UpsertByParticipants relies on the unique (user_id, store_id) index: the
// insert is skipped on conflict and the surviving row is read back.
func (r *gormChatRoomRepository) UpsertByParticipants(ctx context.Context, userID, storeID string) (*entity.ChatRoom, bool, error) {
	now := time.Now().UTC()
	candidate := chatRoomModel{
		ID:        uuid.New().String(),
		UserID:    userID,
		StoreID:   storeID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "store_id"}},
			DoNothing: true,
		}).
		Create(&candidate)
	if result.Error != nil {
		return nil, false, errors.Internal("Failed to open chat room", result.Error)
	}

	var model chatRoomModel
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND store_id = ?", userID, storeID).
		First(&model).Error
	if err != nil {
		return nil, false, errors.Internal("Failed to load chat room", err)
	}

	return model.toEntity(), result.RowsAffected == 1 && model.ID == candidate.ID, nil
}

func (r *gormChatRoomRepository) UpdateMetadata(ctx context.Context, id string, patch entity.RoomMetadataPatch) error {
	updates := map[string]interface{}{
		"updated_at": time.Now().UTC(),
	}
	if patch.LastMessage != nil {
		updates["last_message"] = *patch.LastMessage
	}
	if patch.LastMessageAt != nil {
		updates["last_message_at"] = *patch.LastMessageAt
	}
	if patch.IncrementUnread.Valid() {
		column := unreadColumn(patch.IncrementUnread)
		updates[column] = gorm.Expr(column+" + ?", 1)
	}
	if patch.ResetUnread.Valid() {
		updates[unreadColumn(patch.ResetUnread)] = 0
	}

	result := r.db.WithContext(ctx).Model(&chatRoomModel{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return errors.Internal("Failed to update chat room", result.Error)
	}
	if result.RowsAffected == 0 {
		return errors.NotFound("Chat room", nil)
	}
	return nil
}

func (r *gormChatRoomRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*entity.ChatRoom, error) {
	return r.list(ctx, "user_id = ?", userID, limit, offset)
}

func (r *gormChatRoomRepository) ListByStore(ctx context.Context, storeID string, limit, offset int) ([]*entity.ChatRoom, error) {
	return r.list(ctx, "store_id = ?", storeID, limit, offset)
}

func (r *gormChatRoomRepository) list(ctx context.Context, where string, arg string, limit, offset int) ([]*entity.ChatRoom, error) {
	query := r.db.WithContext(ctx).Where(where, arg).Order("updated_at DESC, id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var models []chatRoomModel
	if err := query.Find(&models).Error; err != nil {
		return nil, errors.Internal("Failed to list chat rooms", err)
	}

	rooms := make([]*entity.ChatRoom, 0, len(models))
	for i := range models {
		rooms = append(rooms, models[i].toEntity())
	}
	return rooms, nil
}

func unreadColumn(side entity.SenderType) string {
	if side == entity.SenderStore {
		return "store_unread"
	}
	return "user_unread"
}

type gormMessageRepository struct {
	db *gorm.DB
}

func NewGormMessageRepository(db *gorm.DB) repository.MessageRepository {
	return &gormMessageRepository{db: db}
}

func (r *gormMessageRepository) Create(ctx context.Context, message *entity.Message) error {
	if message.ID == "" {
		message.ID = uuid.New().String()
	}
	// postgres keeps microseconds; truncating keeps the returned value equal
	// to the stored one.
	message.CreatedAt = time.Now().UTC().Truncate(time.Microsecond)

	model := messageModel{
		ID:         message.ID,
		RoomID:     message.RoomID,
		CreatedAt:  message.CreatedAt,
		Text:       message.Text,
		SenderID:   message.SenderID,
		SenderType: string(message.SenderType),
	}
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return errors.Internal("Failed to create message", err)
	}
	return nil
}

func (r *gormMessageRepository) CountByRoom(ctx context.Context, roomID string) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&messageModel{}).Where("room_id = ?", roomID).Count(&total).Error
	if err != nil {
		return 0, errors.Internal("Failed to count messages", err)
	}
	return total, nil
}

func (r *gormMessageRepository) ordered(ctx context.Context, roomID string) *gorm.DB {
	return r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("created_at DESC, id DESC")
}

func (r *gormMessageRepository) ListPage(ctx context.Context, roomID string, limit, offset int) ([]*entity.Message, error) {
	query := r.ordered(ctx, roomID).Limit(limit)
	if offset > 0 {
		query = query.Offset(offset)
	}
	return r.collect(query)
}

func (r *gormMessageRepository) ListByCursor(ctx context.Context, roomID string, limit int, cursor string) ([]*entity.Message, error) {
	query := r.ordered(ctx, roomID).Limit(limit)

	if cursor != "" {
		var anchor messageModel
		err := r.db.WithContext(ctx).Where("room_id = ? AND id = ?", roomID, cursor).First(&anchor).Error
		if err != nil {
			if stderrors.Is(err, gorm.ErrRecordNotFound) {
				return nil, errors.InvalidArgument("Unknown cursor")
			}
			return nil, errors.Internal("Failed to resolve cursor", err)
		}
		query = query.Where("(created_at < ? OR (created_at = ? AND id < ?))", anchor.CreatedAt, anchor.CreatedAt, anchor.ID)
	}

	return r.collect(query)
}

func (r *gormMessageRepository) collect(query *gorm.DB) ([]*entity.Message, error) {
	var models []messageModel
	if err := query.Find(&models).Error; err != nil {
		return nil, errors.Internal("Failed to list messages", err)
	}

	messages := make([]*entity.Message, 0, len(models))
	for i := range models {
		messages = append(messages, models[i].toEntity())
	}
	return messages, nil
}

type gormTransactor struct {
	db *gorm.DB
}

func NewGormTransactor(db *gorm.DB) repository.Transactor {
	return &gormTransactor{db: db}
}

func (t *gormTransactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context, rooms repository.ChatRoomRepository, messages repository.MessageRepository) error) error {
	return t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, &gormChatRoomRepository{db: tx}, &gormMessageRepository{db: tx})
	})
}
