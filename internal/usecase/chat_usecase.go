package usecase

import (
	"context"
	"sort"
	"strings"

	"cakemarket/internal/domain/entity"
	"cakemarket/internal/domain/repository"
	"cakemarket/internal/infrastructure/ratelimit"
	"cakemarket/pkg/errors"
	"cakemarket/pkg/logger"
)

// Out-of-band notices sent with UserNotifier.
const (
	EventRoomCreated = "room-created"
	EventRoomUpdated = "room-updated"
)

type ChatUseCase struct {
	roomRepo    repository.ChatRoomRepository
	messageRepo repository.MessageRepository
	storeRepo   repository.StoreRepository
	tx          repository.Transactor
	permissions *PermissionVerifier
	broadcaster Broadcaster
	notifier    UserNotifier
	rateLimiter *ratelimit.RateLimiter
}

// NewChatUseCase wires the chat pipeline. notifier and rateLimiter may be nil.
func NewChatUseCase(
	roomRepo repository.ChatRoomRepository,
	messageRepo repository.MessageRepository,
	storeRepo repository.StoreRepository,
	tx repository.Transactor,
	broadcaster Broadcaster,
	notifier UserNotifier,
	rateLimiter *ratelimit.RateLimiter,
) *ChatUseCase {
	return &ChatUseCase{
		roomRepo:    roomRepo,
		messageRepo: messageRepo,
		storeRepo:   storeRepo,
		tx:          tx,
		permissions: NewPermissionVerifier(storeRepo),
		broadcaster: broadcaster,
		notifier:    notifier,
		rateLimiter: rateLimiter,
	}
}

// OpenRoom returns the buyer's room with storeID, creating it on first contact.
func (uc *ChatUseCase) OpenRoom(ctx context.Context, buyerID, storeID string) (*entity.ChatRoom, error) {
	storeID = strings.TrimSpace(storeID)
	if storeID == "" {
		return nil, errors.InvalidArgument("storeId is required")
	}

	store, err := uc.storeRepo.GetByID(ctx, storeID)
	if err != nil {
		return nil, err
	}
	if store.OwnerID == buyerID {
		return nil, errors.BadRequest("You cannot open a chat with your own store", nil)
	}

	room, created, err := uc.roomRepo.UpsertByParticipants(ctx, buyerID, storeID)
	if err != nil {
		logger.Error("OpenRoom: failed to upsert room for user %s and store %s: %v", buyerID, storeID, err)
		return nil, err
	}

	if created {
		logger.Info("OpenRoom: created room %s for user %s and store %s", room.ID, buyerID, storeID)
		uc.notify(store.OwnerID, EventRoomCreated, room)
	}

	return room, nil
}

// GetRoom loads a room the caller participates in as side. With
// entity.SenderAny the side is whatever the caller is in that room.
func (uc *ChatUseCase) GetRoom(ctx context.Context, roomID, callerID string, side entity.SenderType) (*entity.ChatRoom, error) {
	room, _, err := uc.participantRoom(ctx, roomID, callerID, side)
	return room, err
}

func (uc *ChatUseCase) participantRoom(ctx context.Context, roomID, callerID string, side entity.SenderType) (*entity.ChatRoom, entity.SenderType, error) {
	room, err := uc.loadRoom(ctx, roomID)
	if err != nil {
		return nil, "", err
	}
	side, err = uc.permissions.Authorize(ctx, room, callerID, side)
	if err != nil {
		return nil, "", err
	}
	return room, side, nil
}

// ListRooms lists the caller's rooms. Buyers get their own rooms. Store
// owners get the rooms of storeID, or, when storeID is empty, the rooms of
// every store they own together with the rooms they opened as a buyer.
func (uc *ChatUseCase) ListRooms(ctx context.Context, callerID string, side entity.SenderType, storeID string, limit, offset int) ([]*entity.ChatRoom, error) {
	if side != entity.SenderStore {
		return uc.roomRepo.ListByUser(ctx, callerID, limit, offset)
	}

	if storeID != "" {
		store, err := uc.storeRepo.GetByID(ctx, storeID)
		if err != nil {
			return nil, err
		}
		if store.OwnerID != callerID {
			return nil, errors.Forbidden("You do not own this store", nil)
		}
		return uc.roomRepo.ListByStore(ctx, storeID, limit, offset)
	}

	stores, err := uc.storeRepo.ListByOwner(ctx, callerID)
	if err != nil {
		return nil, err
	}

	rooms, err := uc.roomRepo.ListByUser(ctx, callerID, limit+offset, 0)
	if err != nil {
		return nil, err
	}
	for _, store := range stores {
		storeRooms, err := uc.roomRepo.ListByStore(ctx, store.ID, limit+offset, 0)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, storeRooms...)
	}

	sort.SliceStable(rooms, func(i, j int) bool {
		return rooms[i].UpdatedAt.After(rooms[j].UpdatedAt)
	})

	if offset >= len(rooms) {
		return []*entity.ChatRoom{}, nil
	}
	end := offset + limit
	if end > len(rooms) {
		end = len(rooms)
	}
	return rooms[offset:end], nil
}

// MarkAsRead resets the caller's own unread counter. The counterparty's
// counter is never touched.
func (uc *ChatUseCase) MarkAsRead(ctx context.Context, roomID, callerID string, side entity.SenderType) (*entity.ChatRoom, error) {
	room, side, err := uc.participantRoom(ctx, roomID, callerID, side)
	if err != nil {
		return nil, err
	}

	if room.UnreadFor(side) == 0 {
		return room, nil
	}

	if err := uc.roomRepo.UpdateMetadata(ctx, room.ID, entity.RoomMetadataPatch{ResetUnread: side}); err != nil {
		logger.Error("MarkAsRead: failed to reset %s unread on room %s: %v", side, room.ID, err)
		return nil, err
	}

	return uc.roomRepo.GetByID(ctx, room.ID)
}

func (uc *ChatUseCase) loadRoom(ctx context.Context, roomID string) (*entity.ChatRoom, error) {
	if strings.TrimSpace(roomID) == "" {
		return nil, errors.InvalidArgument("roomId is required")
	}
	return uc.roomRepo.GetByID(ctx, roomID)
}

func (uc *ChatUseCase) notify(userID, event string, payload interface{}) {
	if uc.notifier == nil || userID == "" {
		return
	}
	n := uc.notifier.SendToUser(userID, event, payload)
	logger.Debug("notify: %s sent to %d connection(s) of user %s", event, n, userID)
}
