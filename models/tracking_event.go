package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TrackingEventType enumerates recipient interaction events
type TrackingEventType string

const (
	TrackingEventDelivered           TrackingEventType = "delivered"
	TrackingEventOpened              TrackingEventType = "opened"
	TrackingEventClicked             TrackingEventType = "clicked"
	TrackingEventCredentialSubmitted TrackingEventType = "credential_submitted"
	TrackingEventReported            TrackingEventType = "reported"
)

// String returns the string representation of the event type
func (t TrackingEventType) String() string {
	return string(t)
}

// Valid checks if the event type is valid
func (t TrackingEventType) Valid() bool {
	switch t {
	case TrackingEventDelivered, TrackingEventOpened, TrackingEventClicked,
		TrackingEventCredentialSubmitted, TrackingEventReported:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for TrackingEventType
func (t *TrackingEventType) Scan(value any) error {
	if value == nil {
		*t = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*t = TrackingEventType(v)
	case []byte:
		*t = TrackingEventType(string(v))
	default:
		return fmt.Errorf("cannot scan %T into TrackingEventType", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for TrackingEventType
func (t TrackingEventType) Value() (driver.Value, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid TrackingEventType: %s", t)
	}
	return string(t), nil
}

// TrackingEvent is one recorded recipient interaction. The log is append-only:
// rows are never updated or deleted, and the same (recipient, event_type) pair
// may legitimately appear multiple times (e.g. repeated opens).
type TrackingEvent struct {
	ID         uint              `gorm:"primaryKey" json:"id"`
	UUID       uuid.UUID         `gorm:"type:uuid;not null;uniqueIndex:uk_tracking_events_uuid" json:"uuid"`
	CampaignID uint              `gorm:"not null;index:idx_tracking_events_campaign_id" json:"campaign_id"`
	RecipientID uint             `gorm:"not null;index:idx_tracking_events_recipient_id" json:"recipient_id"`
	EventType  TrackingEventType `gorm:"type:varchar(25);not null;index:idx_tracking_events_event_type" json:"event_type"`
	IPAddress  *string           `gorm:"type:varchar(45)" json:"ip_address,omitempty"`
	UserAgent  *string           `gorm:"type:text" json:"user_agent,omitempty"`
	CreatedAt  time.Time         `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_tracking_events_created_at" json:"created_at"`

	// Relations
	Recipient *Recipient `gorm:"foreignKey:RecipientID;references:ID" json:"recipient,omitempty"`
}

// TableName returns the table name for the model
func (TrackingEvent) TableName() string {
	return "tracking_events"
}

// BeforeCreate is called before creating a new record
func (e *TrackingEvent) BeforeCreate() error {
	if e.UUID == uuid.Nil {
		e.UUID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	return nil
}
