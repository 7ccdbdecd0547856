package dto

import (
	"time"
)

// TargetGroupSpecDTO is one declarative recipient group reference
type TargetGroupSpecDTO struct {
	Type   string   `json:"type" validate:"required,oneof=department role user_list"`
	Values []string `json:"values" validate:"required,min=1,dive,required"`
}

// CampaignSettingsDTO carries campaign configuration; absent fields keep defaults
type CampaignSettingsDTO struct {
	TrackOpens          *bool   `json:"track_opens,omitempty"`
	TrackClicks         *bool   `json:"track_clicks,omitempty"`
	CaptureCredentials  *bool   `json:"capture_credentials,omitempty"`
	SendRatePerHour     *uint   `json:"send_rate_per_hour,omitempty" validate:"omitempty,min=1,max=10000"`
	RandomizeSendTimes  *bool   `json:"randomize_send_times,omitempty"`
	TrainingRedirectURL *string `json:"training_redirect_url,omitempty" validate:"omitempty,url"`
}

// CreateCampaignRequest creates a new campaign in draft (or scheduled) state
type CreateCampaignRequest struct {
	TenantID        uint                 `json:"-"`
	Name            string               `json:"name" validate:"required,min=3,max=255"`
	TemplateRef     string               `json:"template_ref" validate:"required,max=255"`
	Specs           []TargetGroupSpecDTO `json:"specs" validate:"required,min=1,dive"`
	Settings        *CampaignSettingsDTO `json:"settings,omitempty"`
	ExcludedUserIDs []uint               `json:"excluded_user_ids,omitempty"`
	ScheduledAt     *time.Time           `json:"scheduled_at,omitempty"`
}

// CreateCampaignResponse is returned after campaign creation
type CreateCampaignResponse struct {
	Message   string `json:"message"`
	UUID      string `json:"uuid"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

// UpdateCampaignRequest edits a draft or scheduled campaign
type UpdateCampaignRequest struct {
	UUID            string               `json:"-"`
	TenantID        uint                 `json:"-"`
	Name            *string              `json:"name,omitempty" validate:"omitempty,min=3,max=255"`
	TemplateRef     *string              `json:"template_ref,omitempty" validate:"omitempty,max=255"`
	Specs           []TargetGroupSpecDTO `json:"specs,omitempty" validate:"omitempty,min=1,dive"`
	Settings        *CampaignSettingsDTO `json:"settings,omitempty"`
	ExcludedUserIDs *[]uint              `json:"excluded_user_ids,omitempty"`
	ScheduledAt     *time.Time           `json:"scheduled_at,omitempty"`
}

// UpdateCampaignResponse is returned after a campaign edit
type UpdateCampaignResponse struct {
	Message string `json:"message"`
}

// ListCampaignsRequest filters the tenant's campaigns
type ListCampaignsRequest struct {
	TenantID uint    `json:"-"`
	Status   *string `json:"status,omitempty" validate:"omitempty,oneof=draft scheduled running paused completed cancelled"`
	Name     *string `json:"name,omitempty"`
	Page     int     `json:"page" validate:"omitempty,min=1"`
	PageSize int     `json:"page_size" validate:"omitempty,min=1,max=100"`
}

// CampaignResponse is the external representation of a campaign
type CampaignResponse struct {
	UUID            string               `json:"uuid"`
	Name            string               `json:"name"`
	TemplateRef     string               `json:"template_ref"`
	Status          string               `json:"status"`
	Specs           []TargetGroupSpecDTO `json:"specs"`
	Settings        CampaignSettingsDTO  `json:"settings"`
	ExcludedUserIDs []uint               `json:"excluded_user_ids,omitempty"`
	ScheduledAt     *time.Time           `json:"scheduled_at,omitempty"`
	StartedAt       *time.Time           `json:"started_at,omitempty"`
	CompletedAt     *time.Time           `json:"completed_at,omitempty"`
	CreatedAt       time.Time            `json:"created_at"`
	UpdatedAt       *time.Time           `json:"updated_at,omitempty"`
}

// ListCampaignsResponse is a paginated campaign list
type ListCampaignsResponse struct {
	Items    []CampaignResponse `json:"items"`
	Total    int64              `json:"total"`
	Page     int                `json:"page"`
	PageSize int                `json:"page_size"`
}

// CampaignReportRow is one recipient line in the exported campaign report
type CampaignReportRow struct {
	Email      string     `json:"email"`
	SendStatus string     `json:"send_status"`
	SentAt     *time.Time `json:"sent_at,omitempty"`
}

// TransitionCampaignResponse is returned after a lifecycle transition
type TransitionCampaignResponse struct {
	Message string `json:"message"`
	UUID    string `json:"uuid"`
	Status  string `json:"status"`
}

// CampaignStatsResponse is a point-in-time summary of campaign outcomes.
// Interaction counts are distinct recipients, not raw event volumes.
type CampaignStatsResponse struct {
	UUID                string  `json:"uuid"`
	Status              string  `json:"status"`
	TotalRecipients     int64   `json:"total_recipients"`
	Sent                int64   `json:"sent"`
	Failed              int64   `json:"failed"`
	Pending             int64   `json:"pending"`
	Delivered           int64   `json:"delivered"`
	Opened              int64   `json:"opened"`
	Clicked             int64   `json:"clicked"`
	CredentialSubmitted int64   `json:"credential_submitted"`
	Reported            int64   `json:"reported"`
	DeliveryRate        float64 `json:"delivery_rate"`
	OpenRate            float64 `json:"open_rate"`
	ClickRate           float64 `json:"click_rate"`
	CredentialRate      float64 `json:"credential_rate"`
	ReportRate          float64 `json:"report_rate"`
}
