package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SendStatus represents the send state of a single campaign recipient
type SendStatus string

const (
	SendStatusPending SendStatus = "pending"
	SendStatusSent    SendStatus = "sent"
	SendStatusFailed  SendStatus = "failed"
)

// String returns the string representation of the status
func (s SendStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s SendStatus) Valid() bool {
	switch s {
	case SendStatusPending, SendStatusSent, SendStatusFailed:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the recipient has seen its single send attempt
func (s SendStatus) IsTerminal() bool {
	return s == SendStatusSent || s == SendStatusFailed
}

// Scan implements the sql.Scanner interface for SendStatus
func (s *SendStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = SendStatus(v)
	case []byte:
		*s = SendStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into SendStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for SendStatus
func (s SendStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid SendStatus: %s", s)
	}
	return string(s), nil
}

// Recipient is one (campaign, user) pair materialized at launch time.
// Rows are created exactly once when the campaign transitions to running and
// are never re-created, so every recipient carries a single send attempt record.
type Recipient struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	UUID       uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:uk_recipients_uuid" json:"uuid"`
	CampaignID uint       `gorm:"not null;uniqueIndex:uk_recipients_campaign_user;index:idx_recipients_campaign_id" json:"campaign_id"`
	UserID     uint       `gorm:"not null;uniqueIndex:uk_recipients_campaign_user" json:"user_id"`
	Email      string     `gorm:"type:varchar(255);not null" json:"email"`
	Token      string     `gorm:"type:varchar(64);not null;uniqueIndex:uk_recipients_token" json:"-"`
	SendStatus SendStatus `gorm:"type:varchar(10);not null;default:'pending';index:idx_recipients_send_status" json:"send_status"`
	SentAt     *time.Time `json:"sent_at,omitempty"`
	CreatedAt  time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`

	// Relations
	Campaign *Campaign `gorm:"foreignKey:CampaignID;references:ID" json:"campaign,omitempty"`
}

// TableName returns the table name for the model
func (Recipient) TableName() string {
	return "recipients"
}

// BeforeCreate is called before creating a new record
func (r *Recipient) BeforeCreate() error {
	if r.UUID == uuid.Nil {
		r.UUID = uuid.New()
	}
	if r.SendStatus == "" {
		r.SendStatus = SendStatusPending
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	return nil
}

// RecipientFilter represents filter criteria for recipients
type RecipientFilter struct {
	CampaignID *uint       `json:"campaign_id,omitempty"`
	UserID     *uint       `json:"user_id,omitempty"`
	SendStatus *SendStatus `json:"send_status,omitempty"`
}
