package repository

import (
	"context"
	"errors"
	"time"

	"affiliate-attribution/internal/model"

	"gorm.io/gorm"
)

type CommissionRepository interface {
	// FindByMerchantOrder returns the commission for the (merchant, order)
	// pair, or nil when the order has not been attributed.
	FindByMerchantOrder(ctx context.Context, tx *gorm.DB, merchantID, orderID string) (*model.Commission, error)
	// Create surfaces gorm.ErrDuplicatedKey unchanged so the caller can lose
	// the insert race and fall back to read-then-merge.
	Create(ctx context.Context, tx *gorm.DB, commission *model.Commission) error
	// UpdateFromStatus applies updates only while the stored status still
	// equals prev, so exactly one transaction owns each status transition.
	// owned=false means a concurrent delivery moved the row first.
	UpdateFromStatus(ctx context.Context, tx *gorm.DB, id string, prev model.CommissionStatus, updates map[string]interface{}) (owned bool, err error)
	// CountRecentByClick counts commissions attributed to the click since the
	// given time. Bounded aggregate; runs synchronously in the request path.
	CountRecentByClick(ctx context.Context, tx *gorm.DB, clickTrackingID string, since time.Time) (int64, error)
}

type commissionRepoImpl struct {
	db *gorm.DB
}

func NewCommissionRepository(db *gorm.DB) CommissionRepository {
	return &commissionRepoImpl{db: db}
}

func (r *commissionRepoImpl) FindByMerchantOrder(ctx context.Context, tx *gorm.DB, merchantID, orderID string) (*model.Commission, error) {
	var commission model.Commission
	err := tx.WithContext(ctx).
		Where("merchant_id = ? AND order_id = ?", merchantID, orderID).
		First(&commission).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &commission, nil
}

func (r *commissionRepoImpl) Create(ctx context.Context, tx *gorm.DB, commission *model.Commission) error {
	return tx.WithContext(ctx).Create(commission).Error
}

func (r *commissionRepoImpl) UpdateFromStatus(ctx context.Context, tx *gorm.DB, id string, prev model.CommissionStatus, updates map[string]interface{}) (bool, error) {
	result := tx.WithContext(ctx).Model(&model.Commission{}).
		Where("id = ? AND status = ?", id, prev).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *commissionRepoImpl) CountRecentByClick(ctx context.Context, tx *gorm.DB, clickTrackingID string, since time.Time) (int64, error) {
	var count int64
	err := tx.WithContext(ctx).Model(&model.Commission{}).
		Where("click_tracking_id = ? AND created_at >= ?", clickTrackingID, since).
		Count(&count).Error
	return count, err
}
