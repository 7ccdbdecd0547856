package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// CampaignStatus represents the lifecycle state of a phishing simulation campaign
type CampaignStatus string

const (
	CampaignStatusDraft     CampaignStatus = "draft"
	CampaignStatusScheduled CampaignStatus = "scheduled"
	CampaignStatusRunning   CampaignStatus = "running"
	CampaignStatusPaused    CampaignStatus = "paused"
	CampaignStatusCompleted CampaignStatus = "completed"
	CampaignStatusCancelled CampaignStatus = "cancelled"
)

// String returns the string representation of the status
func (s CampaignStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s CampaignStatus) Valid() bool {
	switch s {
	case CampaignStatusDraft, CampaignStatusScheduled, CampaignStatusRunning,
		CampaignStatusPaused, CampaignStatusCompleted, CampaignStatusCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further transitions are allowed from the status
func (s CampaignStatus) IsTerminal() bool {
	return s == CampaignStatusCompleted || s == CampaignStatusCancelled
}

// Scan implements the sql.Scanner interface for CampaignStatus
func (s *CampaignStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = CampaignStatus(v)
	case []byte:
		*s = CampaignStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into CampaignStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for CampaignStatus
func (s CampaignStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid CampaignStatus: %s", s)
	}
	return string(s), nil
}

// TargetGroupSpecType enumerates how a target group references recipients
type TargetGroupSpecType string

const (
	TargetGroupSpecDepartment TargetGroupSpecType = "department"
	TargetGroupSpecRole       TargetGroupSpecType = "role"
	TargetGroupSpecUserList   TargetGroupSpecType = "user_list"
)

// Valid checks if the spec type is valid
func (t TargetGroupSpecType) Valid() bool {
	switch t {
	case TargetGroupSpecDepartment, TargetGroupSpecRole, TargetGroupSpecUserList:
		return true
	default:
		return false
	}
}

// TargetGroupSpec is a declarative reference to a set of directory users.
// Specs attached to a launched campaign are a snapshot, not a live query.
type TargetGroupSpec struct {
	Type   TargetGroupSpecType `json:"type"`
	Values []string            `json:"values"`
}

// TargetGroupSpecs is the jsonb collection of specs attached to a campaign
type TargetGroupSpecs []TargetGroupSpec

// Value implements the driver.Valuer interface for TargetGroupSpecs
func (s TargetGroupSpecs) Value() (driver.Value, error) {
	return json.Marshal(s)
}

// Scan implements the sql.Scanner interface for TargetGroupSpecs
func (s *TargetGroupSpecs) Scan(value any) error {
	if value == nil {
		*s = nil
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into TargetGroupSpecs", value)
	}

	return json.Unmarshal(bytes, s)
}

// CampaignSettings holds the validated per-campaign configuration.
// Settings are snapshotted when the campaign transitions into running.
type CampaignSettings struct {
	TrackOpens          bool   `json:"track_opens"`
	TrackClicks         bool   `json:"track_clicks"`
	CaptureCredentials  bool   `json:"capture_credentials"`
	SendRatePerHour     uint   `json:"send_rate_per_hour"`
	RandomizeSendTimes  bool   `json:"randomize_send_times"`
	TrainingRedirectURL string `json:"training_redirect_url"`
}

// Value implements the driver.Valuer interface for CampaignSettings
func (s CampaignSettings) Value() (driver.Value, error) {
	return json.Marshal(s)
}

// Scan implements the sql.Scanner interface for CampaignSettings
func (s *CampaignSettings) Scan(value any) error {
	if value == nil {
		*s = CampaignSettings{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into CampaignSettings", value)
	}

	return json.Unmarshal(bytes, s)
}

// Campaign represents a phishing simulation campaign in the database
type Campaign struct {
	ID          uint             `gorm:"primaryKey" json:"id"`
	UUID        uuid.UUID        `gorm:"type:uuid;not null;uniqueIndex:uk_campaigns_uuid" json:"uuid"`
	TenantID    uint             `gorm:"not null;index:idx_campaigns_tenant_id" json:"tenant_id"`
	Name        string           `gorm:"type:varchar(255);not null" json:"name"`
	TemplateRef string           `gorm:"type:varchar(255);not null" json:"template_ref"`
	Status      CampaignStatus   `gorm:"type:varchar(20);not null;default:'draft';index:idx_campaigns_status" json:"status"`
	Specs       TargetGroupSpecs `gorm:"type:jsonb;not null" json:"specs"`
	ExcludedUserIDs pq.Int64Array `gorm:"type:bigint[]" json:"excluded_user_ids,omitempty"`
	Settings    CampaignSettings `gorm:"type:jsonb;not null" json:"settings"`
	ScheduledAt *time.Time       `gorm:"index:idx_campaigns_scheduled_at" json:"scheduled_at,omitempty"`
	StartedAt   *time.Time       `json:"started_at,omitempty"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
	CreatedAt   time.Time        `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt   *time.Time       `json:"updated_at,omitempty"`

	// Relations
	Tenant *Tenant `gorm:"foreignKey:TenantID;references:ID" json:"tenant,omitempty"`
}

// TableName returns the table name for the model
func (Campaign) TableName() string {
	return "campaigns"
}

// BeforeCreate is called before creating a new record
func (c *Campaign) BeforeCreate() error {
	if c.UUID == uuid.Nil {
		c.UUID = uuid.New()
	}
	if c.Status == "" {
		c.Status = CampaignStatusDraft
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	return nil
}

// BeforeUpdate is called before updating a record
func (c *Campaign) BeforeUpdate() error {
	now := time.Now().UTC()
	c.UpdatedAt = &now
	return nil
}

// IsEditable checks if settings and target specs may still be changed.
// Once a campaign runs, its recipient set and settings are frozen.
func (c *Campaign) IsEditable() bool {
	return c.Status == CampaignStatusDraft || c.Status == CampaignStatusScheduled
}

// CanTransitionTo checks if the campaign can move to the given status.
// The lifecycle only moves forward; completed and cancelled are terminal.
func (c *Campaign) CanTransitionTo(newStatus CampaignStatus) bool {
	switch c.Status {
	case CampaignStatusDraft:
		return newStatus == CampaignStatusScheduled ||
			newStatus == CampaignStatusRunning ||
			newStatus == CampaignStatusCancelled
	case CampaignStatusScheduled:
		return newStatus == CampaignStatusRunning ||
			newStatus == CampaignStatusCancelled
	case CampaignStatusRunning:
		return newStatus == CampaignStatusPaused ||
			newStatus == CampaignStatusCompleted ||
			newStatus == CampaignStatusCancelled
	case CampaignStatusPaused:
		return newStatus == CampaignStatusRunning ||
			newStatus == CampaignStatusCompleted ||
			newStatus == CampaignStatusCancelled
	default:
		return false
	}
}

// CampaignFilter represents filter criteria for campaigns
type CampaignFilter struct {
	ID              *uint           `json:"id,omitempty"`
	UUID            *uuid.UUID      `json:"uuid,omitempty"`
	TenantID        *uint           `json:"tenant_id,omitempty"`
	Status          *CampaignStatus `json:"status,omitempty"`
	Name            *string         `json:"name,omitempty"`
	CreatedAfter    *time.Time      `json:"created_after,omitempty"`
	CreatedBefore   *time.Time      `json:"created_before,omitempty"`
	ScheduledAfter  *time.Time      `json:"scheduled_after,omitempty"`
	ScheduledBefore *time.Time      `json:"scheduled_before,omitempty"`
}
