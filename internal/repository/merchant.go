package repository

import (
	"context"
	"errors"

	"affiliate-attribution/internal/model"

	"gorm.io/gorm"
)

type MerchantRepository interface {
	// FindByExternalStoreID resolves the owning merchant for a platform store,
	// or nil when the store is unknown.
	FindByExternalStoreID(ctx context.Context, platform, storeID string) (*model.Merchant, error)
	Create(ctx context.Context, merchant *model.Merchant) error
}

type merchantRepoImpl struct {
	db *gorm.DB
}

func NewMerchantRepository(db *gorm.DB) MerchantRepository {
	return &merchantRepoImpl{db: db}
}

func (r *merchantRepoImpl) FindByExternalStoreID(ctx context.Context, platform, storeID string) (*model.Merchant, error) {
	var merchant model.Merchant
	err := r.db.WithContext(ctx).
		Where("platform = ? AND external_store_id = ?", platform, storeID).
		First(&merchant).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &merchant, nil
}

func (r *merchantRepoImpl) Create(ctx context.Context, merchant *model.Merchant) error {
	return r.db.WithContext(ctx).Create(merchant).Error
}
