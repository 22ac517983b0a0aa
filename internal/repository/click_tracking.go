package repository

import (
	"context"
	"errors"
	"time"

	"affiliate-attribution/internal/model"

	"gorm.io/gorm"
)

type ClickTrackingRepository interface {
	Create(ctx context.Context, click *model.ClickTracking) error
	FindByID(ctx context.Context, tx *gorm.DB, id string) (*model.ClickTracking, error)
	// FindActive returns the unexpired click for (trackingID, merchantID),
	// or nil when none matches.
	FindActive(ctx context.Context, tx *gorm.DB, trackingID, merchantID string, now time.Time) (*model.ClickTracking, error)
	// UpdateAggregates writes the precomputed conversion aggregate columns.
	UpdateAggregates(ctx context.Context, tx *gorm.DB, id string, updates map[string]interface{}) error
}

type clickTrackingRepoImpl struct {
	db *gorm.DB
}

func NewClickTrackingRepository(db *gorm.DB) ClickTrackingRepository {
	return &clickTrackingRepoImpl{db: db}
}

func (r *clickTrackingRepoImpl) Create(ctx context.Context, click *model.ClickTracking) error {
	return r.db.WithContext(ctx).Create(click).Error
}

func (r *clickTrackingRepoImpl) FindByID(ctx context.Context, tx *gorm.DB, id string) (*model.ClickTracking, error) {
	var click model.ClickTracking
	err := tx.WithContext(ctx).Where("id = ?", id).First(&click).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &click, nil
}

func (r *clickTrackingRepoImpl) FindActive(ctx context.Context, tx *gorm.DB, trackingID, merchantID string, now time.Time) (*model.ClickTracking, error) {
	var click model.ClickTracking
	err := tx.WithContext(ctx).
		Where("tracking_id = ? AND merchant_id = ? AND expires_at > ?", trackingID, merchantID, now).
		Order("created_at DESC").
		First(&click).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &click, nil
}

func (r *clickTrackingRepoImpl) UpdateAggregates(ctx context.Context, tx *gorm.DB, id string, updates map[string]interface{}) error {
	result := tx.WithContext(ctx).Model(&model.ClickTracking{}).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
