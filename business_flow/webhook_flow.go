package businessflow

import (
	"context"
	"fmt"

	"github.com/phishguard/phishsim/app/dto"
	"github.com/phishguard/phishsim/models"
	"github.com/phishguard/phishsim/repository"
	"github.com/phishguard/phishsim/utils"
)

// WebhookFlow manages tenant webhook registrations and the delivery log
type WebhookFlow interface {
	RegisterWebhook(ctx context.Context, req *dto.RegisterWebhookRequest, metadata *ClientMetadata) (*dto.RegisterWebhookResponse, error)
	UpdateWebhook(ctx context.Context, req *dto.UpdateWebhookRequest, metadata *ClientMetadata) (*dto.UpdateWebhookResponse, error)
	ListWebhooks(ctx context.Context, tenantID uint) (*dto.ListWebhooksResponse, error)
	DeactivateWebhook(ctx context.Context, webhookUUID string, tenantID uint, metadata *ClientMetadata) (*dto.UpdateWebhookResponse, error)
	ListDeliveries(ctx context.Context, webhookUUID string, tenantID uint, page, pageSize int) (*dto.ListWebhookDeliveriesResponse, error)
}

// WebhookFlowImpl implements the webhook management flow
type WebhookFlowImpl struct {
	webhookRepo  repository.WebhookRepository
	deliveryRepo repository.WebhookDeliveryRepository
	auditRepo    repository.AuditLogRepository
}

// NewWebhookFlow creates a webhook flow instance
func NewWebhookFlow(
	webhookRepo repository.WebhookRepository,
	deliveryRepo repository.WebhookDeliveryRepository,
	auditRepo repository.AuditLogRepository,
) WebhookFlow {
	return &WebhookFlowImpl{
		webhookRepo:  webhookRepo,
		deliveryRepo: deliveryRepo,
		auditRepo:    auditRepo,
	}
}

// RegisterWebhook creates a webhook registration with a server-generated
// signing secret. The secret appears in this response and nowhere else.
func (f *WebhookFlowImpl) RegisterWebhook(ctx context.Context, req *dto.RegisterWebhookRequest, metadata *ClientMetadata) (*dto.RegisterWebhookResponse, error) {
	if err := validateEventTypes(req.SubscribedEvents); err != nil {
		return nil, err
	}

	secret, err := utils.GenerateWebhookSecret()
	if err != nil {
		return nil, NewBusinessError("WEBHOOK_REGISTRATION_FAILED", "Failed to generate webhook secret", err)
	}

	webhook := &models.Webhook{
		TenantID:         req.TenantID,
		URL:              req.URL,
		Secret:           secret,
		SubscribedEvents: req.SubscribedEvents,
		IsActive:         utils.ToPtr(true),
	}
	if err := webhook.BeforeCreate(); err != nil {
		return nil, NewBusinessError("WEBHOOK_REGISTRATION_FAILED", "Webhook registration failed", err)
	}
	if err := f.webhookRepo.Save(ctx, webhook); err != nil {
		errMsg := fmt.Sprintf("Webhook registration failed: %s", err.Error())
		_ = createAuditLog(ctx, f.auditRepo, req.TenantID, models.AuditActionWebhookRegistered, errMsg, false, &errMsg, metadata)
		return nil, NewBusinessError("WEBHOOK_REGISTRATION_FAILED", "Webhook registration failed", err)
	}

	msg := fmt.Sprintf("Webhook registered: %s for %s", webhook.UUID, webhook.URL)
	_ = createAuditLog(ctx, f.auditRepo, req.TenantID, models.AuditActionWebhookRegistered, msg, true, nil, metadata)

	return &dto.RegisterWebhookResponse{
		Message:          "Webhook registered successfully",
		UUID:             webhook.UUID.String(),
		URL:              webhook.URL,
		Secret:           secret,
		SubscribedEvents: webhook.SubscribedEvents,
	}, nil
}

// UpdateWebhook edits the URL, subscriptions or active flag. The secret is
// immutable; rotating it means registering a new webhook.
func (f *WebhookFlowImpl) UpdateWebhook(ctx context.Context, req *dto.UpdateWebhookRequest, metadata *ClientMetadata) (*dto.UpdateWebhookResponse, error) {
	webhook, err := f.ownedWebhook(ctx, req.UUID, req.TenantID)
	if err != nil {
		return nil, err
	}

	if req.URL != nil {
		webhook.URL = *req.URL
	}
	if req.SubscribedEvents != nil {
		if err := validateEventTypes(*req.SubscribedEvents); err != nil {
			return nil, err
		}
		webhook.SubscribedEvents = *req.SubscribedEvents
	}
	if req.IsActive != nil {
		webhook.IsActive = req.IsActive
	}

	if err := webhook.BeforeUpdate(); err != nil {
		return nil, NewBusinessError("WEBHOOK_UPDATE_FAILED", "Webhook update failed", err)
	}
	if err := f.webhookRepo.Update(ctx, webhook); err != nil {
		return nil, NewBusinessError("WEBHOOK_UPDATE_FAILED", "Webhook update failed", err)
	}

	msg := fmt.Sprintf("Webhook updated: %s", webhook.UUID)
	_ = createAuditLog(ctx, f.auditRepo, req.TenantID, models.AuditActionWebhookUpdated, msg, true, nil, metadata)

	return &dto.UpdateWebhookResponse{Message: "Webhook updated successfully"}, nil
}

// ListWebhooks returns the tenant's registrations without secrets
func (f *WebhookFlowImpl) ListWebhooks(ctx context.Context, tenantID uint) (*dto.ListWebhooksResponse, error) {
	webhooks, err := f.webhookRepo.ByTenant(ctx, tenantID)
	if err != nil {
		return nil, NewBusinessError("WEBHOOK_LIST_FAILED", "Failed to list webhooks", err)
	}

	items := make([]dto.WebhookResponse, 0, len(webhooks))
	for _, w := range webhooks {
		items = append(items, dto.WebhookResponse{
			UUID:             w.UUID.String(),
			URL:              w.URL,
			SubscribedEvents: w.SubscribedEvents,
			IsActive:         utils.IsTrue(w.IsActive),
			CreatedAt:        w.CreatedAt,
			UpdatedAt:        w.UpdatedAt,
		})
	}

	return &dto.ListWebhooksResponse{Items: items}, nil
}

// DeactivateWebhook stops future deliveries to the endpoint. Pending
// deliveries created before deactivation still run their retry schedule.
func (f *WebhookFlowImpl) DeactivateWebhook(ctx context.Context, webhookUUID string, tenantID uint, metadata *ClientMetadata) (*dto.UpdateWebhookResponse, error) {
	webhook, err := f.ownedWebhook(ctx, webhookUUID, tenantID)
	if err != nil {
		return nil, err
	}

	webhook.IsActive = utils.ToPtr(false)
	if err := webhook.BeforeUpdate(); err != nil {
		return nil, NewBusinessError("WEBHOOK_UPDATE_FAILED", "Webhook deactivation failed", err)
	}
	if err := f.webhookRepo.Update(ctx, webhook); err != nil {
		return nil, NewBusinessError("WEBHOOK_UPDATE_FAILED", "Webhook deactivation failed", err)
	}

	msg := fmt.Sprintf("Webhook deactivated: %s", webhook.UUID)
	_ = createAuditLog(ctx, f.auditRepo, tenantID, models.AuditActionWebhookDeactivated, msg, true, nil, metadata)

	return &dto.UpdateWebhookResponse{Message: "Webhook deactivated successfully"}, nil
}

// ListDeliveries returns the operator-visible delivery log for one webhook
func (f *WebhookFlowImpl) ListDeliveries(ctx context.Context, webhookUUID string, tenantID uint, page, pageSize int) (*dto.ListWebhookDeliveriesResponse, error) {
	webhook, err := f.ownedWebhook(ctx, webhookUUID, tenantID)
	if err != nil {
		return nil, err
	}

	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	deliveries, err := f.deliveryRepo.ByWebhook(ctx, webhook.ID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, NewBusinessError("DELIVERY_LIST_FAILED", "Failed to list deliveries", err)
	}

	items := make([]dto.WebhookDeliveryResponse, 0, len(deliveries))
	for _, d := range deliveries {
		items = append(items, dto.WebhookDeliveryResponse{
			UUID:           d.UUID.String(),
			EventType:      d.EventType,
			Status:         string(d.Status),
			AttemptCount:   d.AttemptCount,
			LastStatusCode: d.LastStatusCode,
			LastError:      d.LastError,
			NextRetryAt:    d.NextRetryAt,
			CreatedAt:      d.CreatedAt,
		})
	}

	return &dto.ListWebhookDeliveriesResponse{
		Items:    items,
		Page:     page,
		PageSize: pageSize,
	}, nil
}

func (f *WebhookFlowImpl) ownedWebhook(ctx context.Context, webhookUUID string, tenantID uint) (*models.Webhook, error) {
	webhook, err := f.webhookRepo.ByUUID(ctx, webhookUUID)
	if err != nil {
		return nil, NewBusinessError("WEBHOOK_LOOKUP_FAILED", "Failed to lookup webhook", err)
	}
	if webhook == nil {
		return nil, NewBusinessError("WEBHOOK_NOT_FOUND", "Webhook not found", ErrWebhookNotFound)
	}
	if webhook.TenantID != tenantID {
		return nil, NewBusinessError("WEBHOOK_ACCESS_DENIED", "Access denied: webhook belongs to another tenant", ErrWebhookAccessDenied)
	}
	return webhook, nil
}

func validateEventTypes(eventTypes []string) error {
	for _, t := range eventTypes {
		if !models.IsKnownEventType(t) {
			return NewBusinessError("UNKNOWN_WEBHOOK_EVENT", "Unknown event type: "+t, ErrUnknownWebhookEvent)
		}
	}
	return nil
}
