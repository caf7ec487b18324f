package usecase

import (
	"context"

	"cakemarket/internal/domain/entity"
	"cakemarket/internal/domain/repository"
	"cakemarket/pkg/errors"
)

// PermissionVerifier decides whether a caller may act on a room as the given
// side. Buyers must be the room's user; the store side must own the room's
// store. It never mutates anything.
//
// An account can sit on either side depending on the room: a seller buying
// from another store is that room's user. Resolve works the side out from
// the room itself.
type PermissionVerifier struct {
	stores repository.StoreRepository
}

func NewPermissionVerifier(stores repository.StoreRepository) *PermissionVerifier {
	return &PermissionVerifier{stores: stores}
}

func (p *PermissionVerifier) Verify(ctx context.Context, room *entity.ChatRoom, callerID string, side entity.SenderType) error {
	if callerID == "" {
		return errors.Forbidden("You are not a participant of this chat room", nil)
	}

	switch side {
	case entity.SenderUser:
		if room.UserID != callerID {
			return errors.Forbidden("You are not a participant of this chat room", nil)
		}
		return nil

	case entity.SenderStore:
		store, err := p.stores.GetByID(ctx, room.StoreID)
		if err != nil {
			if errors.Is(err, errors.CodeNotFound) {
				return errors.Forbidden("You do not own the store of this chat room", err)
			}
			return err
		}
		if store.OwnerID != callerID {
			return errors.Forbidden("You do not own the store of this chat room", nil)
		}
		return nil

	default:
		return errors.InvalidArgument("senderType must be one of: user store")
	}
}

// Resolve returns the side callerID holds in room: user when it is the room's
// buyer, store when it owns the room's store.
func (p *PermissionVerifier) Resolve(ctx context.Context, room *entity.ChatRoom, callerID string) (entity.SenderType, error) {
	if callerID == "" {
		return "", errors.Forbidden("You are not a participant of this chat room", nil)
	}
	if room.UserID == callerID {
		return entity.SenderUser, nil
	}

	if err := p.Verify(ctx, room, callerID, entity.SenderStore); err != nil {
		if errors.Is(err, errors.CodeForbidden) {
			return "", errors.Forbidden("You are not a participant of this chat room", err)
		}
		return "", err
	}
	return entity.SenderStore, nil
}

// Authorize checks callerID against room. SenderAny resolves the side from
// the room; any other side must match what the caller actually is.
func (p *PermissionVerifier) Authorize(ctx context.Context, room *entity.ChatRoom, callerID string, side entity.SenderType) (entity.SenderType, error) {
	if side == entity.SenderAny {
		return p.Resolve(ctx, room, callerID)
	}
	if err := p.Verify(ctx, room, callerID, side); err != nil {
		return "", err
	}
	return side, nil
}
