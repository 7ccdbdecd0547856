package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Domain event types delivered to tenant webhooks
const (
	EventCampaignStarted   = "campaign.started"
	EventCampaignCompleted = "campaign.completed"
	EventCampaignCancelled = "campaign.cancelled"

	EventPhishingDelivered           = "phishing.delivered"
	EventPhishingOpened              = "phishing.opened"
	EventPhishingClicked             = "phishing.clicked"
	EventPhishingCredentialSubmitted = "phishing.credential_submitted"
	EventPhishingReported            = "phishing.reported"
)

// KnownEventTypes lists every domain event a webhook may subscribe to
var KnownEventTypes = []string{
	EventCampaignStarted,
	EventCampaignCompleted,
	EventCampaignCancelled,
	EventPhishingDelivered,
	EventPhishingOpened,
	EventPhishingClicked,
	EventPhishingCredentialSubmitted,
	EventPhishingReported,
}

// IsKnownEventType checks a subscription entry against the known event types
func IsKnownEventType(eventType string) bool {
	for _, t := range KnownEventTypes {
		if t == eventType {
			return true
		}
	}
	return false
}

// Webhook is a tenant-registered HTTP endpoint subscribed to domain events
type Webhook struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	UUID             uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:uk_webhooks_uuid" json:"uuid"`
	TenantID         uint           `gorm:"not null;index:idx_webhooks_tenant_id" json:"tenant_id"`
	URL              string         `gorm:"type:varchar(2048);not null" json:"url"`
	Secret           string         `gorm:"type:varchar(128);not null" json:"-"`
	SubscribedEvents pq.StringArray `gorm:"type:text[];not null" json:"subscribed_events"`
	IsActive         *bool          `gorm:"not null;default:true" json:"is_active"`
	CreatedAt        time.Time      `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt        *time.Time     `json:"updated_at,omitempty"`

	// Relations
	Tenant *Tenant `gorm:"foreignKey:TenantID;references:ID" json:"tenant,omitempty"`
}

// TableName returns the table name for the model
func (Webhook) TableName() string {
	return "webhooks"
}

// BeforeCreate is called before creating a new record
func (w *Webhook) BeforeCreate() error {
	if w.UUID == uuid.Nil {
		w.UUID = uuid.New()
	}
	if w.CreatedAt.IsZero() {
		w.CreatedAt = time.Now().UTC()
	}
	return nil
}

// BeforeUpdate is called before updating a record
func (w *Webhook) BeforeUpdate() error {
	now := time.Now().UTC()
	w.UpdatedAt = &now
	return nil
}

// SubscribesTo checks whether the webhook wants the given event type
func (w *Webhook) SubscribesTo(eventType string) bool {
	for _, t := range w.SubscribedEvents {
		if t == eventType {
			return true
		}
	}
	return false
}
