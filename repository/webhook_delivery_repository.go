package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/phishguard/phishsim/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// WebhookDeliveryRepositoryImpl implements WebhookDeliveryRepository using GORM
type WebhookDeliveryRepositoryImpl struct {
	*BaseRepository[models.WebhookDelivery]
}

// NewWebhookDeliveryRepository creates a new webhook delivery repository instance
func NewWebhookDeliveryRepository(db *gorm.DB) WebhookDeliveryRepository {
	return &WebhookDeliveryRepositoryImpl{
		BaseRepository: NewBaseRepository[models.WebhookDelivery](db),
	}
}

// SaveIdempotent inserts a delivery unless one already exists for the same
// (webhook_id, source_event_id). Returns true when a new row was created, so
// re-processing a domain event after a crash-restart is a no-op.
func (r *WebhookDeliveryRepositoryImpl) SaveIdempotent(ctx context.Context, delivery *models.WebhookDelivery) (bool, error) {
	db := r.getDB(ctx)

	res := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "webhook_id"}, {Name: "source_event_id"}},
		DoNothing: true,
	}).Create(delivery)
	if res.Error != nil {
		return false, fmt.Errorf("failed to save webhook delivery: %w", res.Error)
	}

	return res.RowsAffected == 1, nil
}

// Due returns pending deliveries whose retry time has arrived, oldest first
func (r *WebhookDeliveryRepositoryImpl) Due(ctx context.Context, now time.Time, limit int) ([]*models.WebhookDelivery, error) {
	db := r.getDB(ctx).
		Where("status = ? AND next_retry_at IS NOT NULL AND next_retry_at <= ?",
			models.WebhookDeliveryStatusPending, now).
		Order("next_retry_at ASC")
	if limit > 0 {
		db = db.Limit(limit)
	}

	var deliveries []*models.WebhookDelivery
	if err := db.Find(&deliveries).Error; err != nil {
		return nil, fmt.Errorf("failed to list due webhook deliveries: %w", err)
	}

	return deliveries, nil
}

// ByWebhook lists the delivery log of a webhook, newest first
func (r *WebhookDeliveryRepositoryImpl) ByWebhook(ctx context.Context, webhookID uint, limit, offset int) ([]*models.WebhookDelivery, error) {
	db := r.getDB(ctx).
		Where("webhook_id = ?", webhookID).
		Order("created_at DESC")
	if limit > 0 {
		db = db.Limit(limit)
	}
	if offset > 0 {
		db = db.Offset(offset)
	}

	var deliveries []*models.WebhookDelivery
	if err := db.Find(&deliveries).Error; err != nil {
		return nil, fmt.Errorf("failed to list deliveries for webhook %d: %w", webhookID, err)
	}

	return deliveries, nil
}
