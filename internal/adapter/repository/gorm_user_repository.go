package repository

import (
	"context"
	stderrors "errors"

	"gorm.io/gorm"

	"cakemarket/internal/domain/entity"
	"cakemarket/internal/domain/repository"
	"cakemarket/pkg/errors"
)

type gormUserRepository struct {
	db *gorm.DB
}

func NewGormUserRepository(db *gorm.DB) repository.UserRepository {
	return &gormUserRepository{db: db}
}

func (r *gormUserRepository) GetByID(ctx context.Context, id string) (*entity.User, error) {
	var model userModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NotFound("User", err)
		}
		return nil, errors.Internal("Failed to get user", err)
	}

	return &entity.User{
		ID:        model.ID,
		Email:     model.Email,
		Username:  model.Username,
		Role:      model.Role,
		Status:    model.Status,
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
	}, nil
}

type gormStoreRepository struct {
	db *gorm.DB
}

func NewGormStoreRepository(db *gorm.DB) repository.StoreRepository {
	return &gormStoreRepository{db: db}
}

func (r *gormStoreRepository) GetByID(ctx context.Context, id string) (*entity.Store, error) {
	var model storeModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NotFound("Store", err)
		}
		return nil, errors.Internal("Failed to get store", err)
	}
	return toStore(&model), nil
}

func (r *gormStoreRepository) ListByOwner(ctx context.Context, ownerID string) ([]*entity.Store, error) {
	var models []storeModel
	if err := r.db.WithContext(ctx).Where("owner_id = ?", ownerID).Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, errors.Internal("Failed to list stores", err)
	}

	stores := make([]*entity.Store, 0, len(models))
	for i := range models {
		stores = append(stores, toStore(&models[i]))
	}
	return stores, nil
}

func toStore(m *storeModel) *entity.Store {
	return &entity.Store{
		ID:        m.ID,
		OwnerID:   m.OwnerID,
		Name:      m.Name,
		CreatedAt: m.CreatedAt,
	}
}

// SeedDirectory inserts or replaces accounts and stores. Local development
// uses it to provision the participants chat rooms refer to.
func SeedDirectory(ctx context.Context, db *gorm.DB, users []entity.User, stores []entity.Store) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, u := range users {
			model := userModel{ID: u.ID, Email: u.Email, Username: u.Username, Role: u.Role, Status: u.Status}
			if err := tx.Save(&model).Error; err != nil {
				return err
			}
		}
		for _, s := range stores {
			model := storeModel{ID: s.ID, OwnerID: s.OwnerID, Name: s.Name, CreatedAt: s.CreatedAt}
			if err := tx.Save(&model).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
