package models

import (
	"time"
)

// Audit actions recorded for campaign and webhook management
const (
	AuditActionCampaignCreated   = "campaign_created"
	AuditActionCampaignUpdated   = "campaign_updated"
	AuditActionCampaignScheduled = "campaign_scheduled"
	AuditActionCampaignStarted   = "campaign_started"
	AuditActionCampaignPaused    = "campaign_paused"
	AuditActionCampaignResumed   = "campaign_resumed"
	AuditActionCampaignCancelled = "campaign_cancelled"
	AuditActionCampaignCompleted = "campaign_completed"

	AuditActionWebhookRegistered  = "webhook_registered"
	AuditActionWebhookUpdated     = "webhook_updated"
	AuditActionWebhookDeactivated = "webhook_deactivated"

	AuditActionUnknownTrackingToken = "unknown_tracking_token"
)

// AuditLog records a management action or a security-relevant observation
type AuditLog struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	TenantID     *uint     `gorm:"index:idx_audit_logs_tenant_id" json:"tenant_id,omitempty"`
	Action       string    `gorm:"type:varchar(50);not null;index:idx_audit_logs_action" json:"action"`
	Description  string    `gorm:"type:text" json:"description"`
	Success      *bool     `json:"success,omitempty"`
	ErrorMessage *string   `gorm:"type:text" json:"error_message,omitempty"`
	IPAddress    *string   `gorm:"type:varchar(45)" json:"ip_address,omitempty"`
	UserAgent    *string   `gorm:"type:text" json:"user_agent,omitempty"`
	CreatedAt    time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_audit_logs_created_at" json:"created_at"`
}

// TableName returns the table name for the model
func (AuditLog) TableName() string {
	return "audit_logs"
}

// BeforeCreate is called before creating a new record
func (a *AuditLog) BeforeCreate() error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	return nil
}
