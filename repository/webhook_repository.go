package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/phishguard/phishsim/models"
	"gorm.io/gorm"
)

// WebhookRepositoryImpl implements WebhookRepository using GORM
type WebhookRepositoryImpl struct {
	*BaseRepository[models.Webhook]
}

// NewWebhookRepository creates a new webhook repository instance
func NewWebhookRepository(db *gorm.DB) WebhookRepository {
	return &WebhookRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Webhook](db),
	}
}

// ByUUID retrieves a webhook by its UUID
func (r *WebhookRepositoryImpl) ByUUID(ctx context.Context, uuid string) (*models.Webhook, error) {
	db := r.getDB(ctx)

	var webhook models.Webhook
	err := db.Where("uuid = ?", uuid).Last(&webhook).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find webhook by UUID %s: %w", uuid, err)
	}

	return &webhook, nil
}

// ActiveByTenantAndEvent returns the tenant's active webhooks subscribed to
// the given event type
func (r *WebhookRepositoryImpl) ActiveByTenantAndEvent(ctx context.Context, tenantID uint, eventType string) ([]*models.Webhook, error) {
	db := r.getDB(ctx)

	var webhooks []*models.Webhook
	err := db.Where("tenant_id = ? AND is_active = ? AND ? = ANY(subscribed_events)",
		tenantID, true, eventType).
		Find(&webhooks).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list webhooks for tenant %d event %s: %w", tenantID, eventType, err)
	}

	return webhooks, nil
}

// ByTenant returns all webhooks owned by a tenant
func (r *WebhookRepositoryImpl) ByTenant(ctx context.Context, tenantID uint) ([]*models.Webhook, error) {
	db := r.getDB(ctx)

	var webhooks []*models.Webhook
	err := db.Where("tenant_id = ?", tenantID).Order("created_at DESC").Find(&webhooks).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list webhooks for tenant %d: %w", tenantID, err)
	}

	return webhooks, nil
}
