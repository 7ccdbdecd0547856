package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// WebhookDeliveryStatus represents the state of one webhook delivery
type WebhookDeliveryStatus string

const (
	WebhookDeliveryStatusPending   WebhookDeliveryStatus = "pending"
	WebhookDeliveryStatusDelivered WebhookDeliveryStatus = "delivered"
	WebhookDeliveryStatusAbandoned WebhookDeliveryStatus = "abandoned"
)

// String returns the string representation of the status
func (s WebhookDeliveryStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s WebhookDeliveryStatus) Valid() bool {
	switch s {
	case WebhookDeliveryStatusPending, WebhookDeliveryStatusDelivered, WebhookDeliveryStatusAbandoned:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the delivery will never be retried again
func (s WebhookDeliveryStatus) IsTerminal() bool {
	return s == WebhookDeliveryStatusDelivered || s == WebhookDeliveryStatusAbandoned
}

// Scan implements the sql.Scanner interface for WebhookDeliveryStatus
func (s *WebhookDeliveryStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = WebhookDeliveryStatus(v)
	case []byte:
		*s = WebhookDeliveryStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into WebhookDeliveryStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for WebhookDeliveryStatus
func (s WebhookDeliveryStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid WebhookDeliveryStatus: %s", s)
	}
	return string(s), nil
}

// WebhookDelivery is one attempted (and possibly retried) notification of a
// domain event to a webhook. The (webhook_id, source_event_id) pair is unique
// so re-processing the same domain event never creates a second delivery.
type WebhookDelivery struct {
	ID             uint                  `gorm:"primaryKey" json:"id"`
	UUID           uuid.UUID             `gorm:"type:uuid;not null;uniqueIndex:uk_webhook_deliveries_uuid" json:"uuid"`
	WebhookID      uint                  `gorm:"not null;uniqueIndex:uk_webhook_deliveries_event;index:idx_webhook_deliveries_webhook_id" json:"webhook_id"`
	SourceEventID  string                `gorm:"type:varchar(64);not null;uniqueIndex:uk_webhook_deliveries_event" json:"source_event_id"`
	EventType      string                `gorm:"type:varchar(50);not null" json:"event_type"`
	Payload        []byte                `gorm:"type:jsonb;not null" json:"payload"`
	Status         WebhookDeliveryStatus `gorm:"type:varchar(10);not null;default:'pending';index:idx_webhook_deliveries_status" json:"status"`
	AttemptCount   int                   `gorm:"not null;default:0" json:"attempt_count"`
	LastStatusCode *int                  `json:"last_status_code,omitempty"`
	LastError      *string               `gorm:"type:text" json:"last_error,omitempty"`
	NextRetryAt    *time.Time            `gorm:"index:idx_webhook_deliveries_next_retry_at" json:"next_retry_at,omitempty"`
	CreatedAt      time.Time             `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt      *time.Time            `json:"updated_at,omitempty"`

	// Relations
	Webhook *Webhook `gorm:"foreignKey:WebhookID;references:ID" json:"webhook,omitempty"`
}

// TableName returns the table name for the model
func (WebhookDelivery) TableName() string {
	return "webhook_deliveries"
}

// BeforeCreate is called before creating a new record
func (d *WebhookDelivery) BeforeCreate() error {
	if d.UUID == uuid.Nil {
		d.UUID = uuid.New()
	}
	if d.Status == "" {
		d.Status = WebhookDeliveryStatusPending
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	return nil
}

// BeforeUpdate is called before updating a record
func (d *WebhookDelivery) BeforeUpdate() error {
	now := time.Now().UTC()
	d.UpdatedAt = &now
	return nil
}
