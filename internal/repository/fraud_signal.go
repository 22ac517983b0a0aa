package repository

import (
	"context"

	"affiliate-attribution/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type FraudSignalRepository interface {
	// CreateIfAbsent inserts the signal unless one already exists for the
	// same (commission, signal type); re-evaluation never duplicates rows.
	CreateIfAbsent(ctx context.Context, tx *gorm.DB, signal *model.FraudSignal) (created bool, err error)
	ListByCommission(ctx context.Context, tx *gorm.DB, commissionID string) ([]model.FraudSignal, error)
}

type fraudSignalRepoImpl struct {
	db *gorm.DB
}

func NewFraudSignalRepository(db *gorm.DB) FraudSignalRepository {
	return &fraudSignalRepoImpl{db: db}
}

func (r *fraudSignalRepoImpl) CreateIfAbsent(ctx context.Context, tx *gorm.DB, signal *model.FraudSignal) (bool, error) {
	result := tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "commission_id"}, {Name: "signal_type"}},
		DoNothing: true,
	}).Create(signal)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *fraudSignalRepoImpl) ListByCommission(ctx context.Context, tx *gorm.DB, commissionID string) ([]model.FraudSignal, error) {
	var signals []model.FraudSignal
	err := tx.WithContext(ctx).
		Where("commission_id = ?", commissionID).
		Order("created_at ASC").
		Find(&signals).Error
	return signals, err
}
