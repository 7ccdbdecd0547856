package dto

import (
	"time"
)

// RegisterWebhookRequest registers a tenant endpoint for domain events
type RegisterWebhookRequest struct {
	TenantID         uint     `json:"-"`
	URL              string   `json:"url" validate:"required,url,max=2048"`
	SubscribedEvents []string `json:"subscribed_events" validate:"required,min=1,dive,required"`
}

// RegisterWebhookResponse is returned after registration. The signing secret
// is disclosed exactly once, here.
type RegisterWebhookResponse struct {
	Message          string   `json:"message"`
	UUID             string   `json:"uuid"`
	URL              string   `json:"url"`
	Secret           string   `json:"secret"`
	SubscribedEvents []string `json:"subscribed_events"`
}

// UpdateWebhookRequest edits a webhook registration
type UpdateWebhookRequest struct {
	UUID             string    `json:"-"`
	TenantID         uint      `json:"-"`
	URL              *string   `json:"url,omitempty" validate:"omitempty,url,max=2048"`
	SubscribedEvents *[]string `json:"subscribed_events,omitempty" validate:"omitempty,min=1,dive,required"`
	IsActive         *bool     `json:"is_active,omitempty"`
}

// UpdateWebhookResponse is returned after a webhook edit
type UpdateWebhookResponse struct {
	Message string `json:"message"`
}

// WebhookResponse is the external representation of a webhook registration
type WebhookResponse struct {
	UUID             string     `json:"uuid"`
	URL              string     `json:"url"`
	SubscribedEvents []string   `json:"subscribed_events"`
	IsActive         bool       `json:"is_active"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        *time.Time `json:"updated_at,omitempty"`
}

// ListWebhooksResponse lists the tenant's webhooks
type ListWebhooksResponse struct {
	Items []WebhookResponse `json:"items"`
}

// WebhookDeliveryResponse is one entry of the operator-visible delivery log
type WebhookDeliveryResponse struct {
	UUID           string     `json:"uuid"`
	EventType      string     `json:"event_type"`
	Status         string     `json:"status"`
	AttemptCount   int        `json:"attempt_count"`
	LastStatusCode *int       `json:"last_status_code,omitempty"`
	LastError      *string    `json:"last_error,omitempty"`
	NextRetryAt    *time.Time `json:"next_retry_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// ListWebhookDeliveriesResponse is a paginated delivery log
type ListWebhookDeliveriesResponse struct {
	Items    []WebhookDeliveryResponse `json:"items"`
	Page     int                       `json:"page"`
	PageSize int                       `json:"page_size"`
}
