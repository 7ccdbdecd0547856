package repository

import (
	"context"
	"time"

	"github.com/phishguard/phishsim/models"
)

// CampaignRepository provides campaign persistence
type CampaignRepository interface {
	ByID(ctx context.Context, id uint) (*models.Campaign, error)
	ByUUID(ctx context.Context, uuid string) (*models.Campaign, error)
	Save(ctx context.Context, campaign *models.Campaign) error
	Update(ctx context.Context, campaign *models.Campaign) error
	UpdateStatus(ctx context.Context, id uint, from, to models.CampaignStatus) (bool, error)
	ByFilter(ctx context.Context, filter models.CampaignFilter, orderBy string, limit, offset int) ([]*models.Campaign, error)
	Count(ctx context.Context, filter models.CampaignFilter) (int64, error)
	ScheduledDue(ctx context.Context, now time.Time) ([]*models.Campaign, error)
	Running(ctx context.Context) ([]*models.Campaign, error)
}

// RecipientRepository provides recipient persistence
type RecipientRepository interface {
	ByID(ctx context.Context, id uint) (*models.Recipient, error)
	ByToken(ctx context.Context, token string) (*models.Recipient, error)
	SaveBatch(ctx context.Context, recipients []*models.Recipient) error
	NextPending(ctx context.Context, campaignID uint) (*models.Recipient, error)
	MarkSent(ctx context.Context, id uint, sentAt time.Time) (bool, error)
	MarkFailed(ctx context.Context, id uint) (bool, error)
	CountByStatus(ctx context.Context, campaignID uint) (map[models.SendStatus]int64, error)
	PendingCount(ctx context.Context, campaignID uint) (int64, error)
	ByCampaign(ctx context.Context, campaignID uint) ([]*models.Recipient, error)
}

// TrackingEventRepository provides append-only access to the event log
type TrackingEventRepository interface {
	Save(ctx context.Context, event *models.TrackingEvent) error
	DistinctRecipientCounts(ctx context.Context, campaignID uint) (map[models.TrackingEventType]int64, error)
	CountsByType(ctx context.Context, campaignID uint) (map[models.TrackingEventType]int64, error)
	ByCampaign(ctx context.Context, campaignID uint, limit, offset int) ([]*models.TrackingEvent, error)
}

// WebhookRepository provides webhook persistence
type WebhookRepository interface {
	ByID(ctx context.Context, id uint) (*models.Webhook, error)
	ByUUID(ctx context.Context, uuid string) (*models.Webhook, error)
	Save(ctx context.Context, webhook *models.Webhook) error
	Update(ctx context.Context, webhook *models.Webhook) error
	ActiveByTenantAndEvent(ctx context.Context, tenantID uint, eventType string) ([]*models.Webhook, error)
	ByTenant(ctx context.Context, tenantID uint) ([]*models.Webhook, error)
}

// WebhookDeliveryRepository provides delivery log persistence
type WebhookDeliveryRepository interface {
	ByID(ctx context.Context, id uint) (*models.WebhookDelivery, error)
	SaveIdempotent(ctx context.Context, delivery *models.WebhookDelivery) (bool, error)
	Update(ctx context.Context, delivery *models.WebhookDelivery) error
	Due(ctx context.Context, now time.Time, limit int) ([]*models.WebhookDelivery, error)
	ByWebhook(ctx context.Context, webhookID uint, limit, offset int) ([]*models.WebhookDelivery, error)
}

// DirectoryRepository provides read access to the tenant user directory
type DirectoryRepository interface {
	TenantByID(ctx context.Context, id uint) (*models.Tenant, error)
	UsersByDepartment(ctx context.Context, tenantID uint, department string) ([]*models.DirectoryUser, error)
	UsersByRole(ctx context.Context, tenantID uint, role string) ([]*models.DirectoryUser, error)
	UsersByIDs(ctx context.Context, tenantID uint, ids []uint) ([]*models.DirectoryUser, error)
	DepartmentExists(ctx context.Context, tenantID uint, department string) (bool, error)
	RoleExists(ctx context.Context, tenantID uint, role string) (bool, error)
}

// AuditLogRepository provides audit log persistence
type AuditLogRepository interface {
	Save(ctx context.Context, entry *models.AuditLog) error
	ByTenant(ctx context.Context, tenantID uint, limit, offset int) ([]*models.AuditLog, error)
}
