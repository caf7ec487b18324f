package repository

import (
	"context"

	"cakemarket/internal/domain/entity"
)

type UserRepository interface {
	GetByID(ctx context.Context, id string) (*entity.User, error)
}

type StoreRepository interface {
	GetByID(ctx context.Context, id string) (*entity.Store, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*entity.Store, error)
}
