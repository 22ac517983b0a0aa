package repository

import (
	"context"
	"errors"

	"affiliate-attribution/internal/model"

	"gorm.io/gorm"
)

type WebhookEventRepository interface {
	// Register inserts the ledger row. A unique-key violation on the
	// idempotency key means the delivery was already accepted; it is reported
	// as accepted=false, not as an error.
	Register(ctx context.Context, event *model.WebhookEvent) (accepted bool, err error)
	MarkProcessed(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, message string) error
}

type webhookEventRepoImpl struct {
	db *gorm.DB
}

func NewWebhookEventRepository(db *gorm.DB) WebhookEventRepository {
	return &webhookEventRepoImpl{db: db}
}

func (r *webhookEventRepoImpl) Register(ctx context.Context, event *model.WebhookEvent) (bool, error) {
	event.Status = model.WebhookReceived
	err := r.db.WithContext(ctx).Create(event).Error
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		return false, err
	}

	// A delivery that previously failed mid-processing may be retried by the
	// platform; only successfully handled keys are treated as duplicates.
	var existing model.WebhookEvent
	if err := r.db.WithContext(ctx).
		Where("idempotency_key = ?", event.IdempotencyKey).
		First(&existing).Error; err != nil {
		return false, err
	}
	if existing.Status != model.WebhookFailed {
		return false, nil
	}

	event.ID = existing.ID
	return true, r.db.WithContext(ctx).Model(&model.WebhookEvent{}).
		Where("id = ?", existing.ID).
		Updates(map[string]interface{}{
			"status": model.WebhookReceived,
			"error":  "",
		}).Error
}

func (r *webhookEventRepoImpl) MarkProcessed(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&model.WebhookEvent{}).
		Where("id = ?", id).
		Update("status", model.WebhookProcessed).Error
}

func (r *webhookEventRepoImpl) MarkFailed(ctx context.Context, id string, message string) error {
	if len(message) > 512 {
		message = message[:512]
	}
	return r.db.WithContext(ctx).Model(&model.WebhookEvent{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status": model.WebhookFailed,
			"error":  message,
		}).Error
}
