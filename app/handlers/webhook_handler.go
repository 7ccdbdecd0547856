// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"log"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/phishguard/phishsim/app/dto"
	businessflow "github.com/phishguard/phishsim/business_flow"
)

// WebhookHandlerInterface defines the contract for webhook management handlers
type WebhookHandlerInterface interface {
	RegisterWebhook(c fiber.Ctx) error
	UpdateWebhook(c fiber.Ctx) error
	ListWebhooks(c fiber.Ctx) error
	DeactivateWebhook(c fiber.Ctx) error
	ListWebhookDeliveries(c fiber.Ctx) error
}

// WebhookHandler handles webhook-related HTTP requests
type WebhookHandler struct {
	webhookFlow businessflow.WebhookFlow
	validator   *validator.Validate
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(webhookFlow businessflow.WebhookFlow) *WebhookHandler {
	return &WebhookHandler{
		webhookFlow: webhookFlow,
		validator:   validator.New(),
	}
}

// RegisterWebhook registers a tenant webhook endpoint
func (h *WebhookHandler) RegisterWebhook(c fiber.Ctx) error {
	var req dto.RegisterWebhookRequest
	if err := c.Bind().JSON(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrorMessages(err))
	}

	tenantID, ok := tenantFromLocals(c)
	if !ok {
		return errorResponse(c, fiber.StatusUnauthorized, "Tenant ID not found in context", "MISSING_TENANT_ID", nil)
	}
	req.TenantID = tenantID

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	result, err := h.webhookFlow.RegisterWebhook(createRequestContext(c, "/api/v1/webhooks"), &req, metadata)
	if err != nil {
		return h.webhookError(c, err, "Webhook registration failed", "WEBHOOK_REGISTRATION_FAILED")
	}

	return successResponse(c, fiber.StatusCreated, "Webhook registered successfully", result)
}

// UpdateWebhook edits a webhook registration
func (h *WebhookHandler) UpdateWebhook(c fiber.Ctx) error {
	webhookUUID := c.Params("uuid")
	if webhookUUID == "" {
		return errorResponse(c, fiber.StatusBadRequest, "Webhook UUID is required", "MISSING_WEBHOOK_UUID", nil)
	}

	var req dto.UpdateWebhookRequest
	if err := c.Bind().JSON(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	req.UUID = webhookUUID

	tenantID, ok := tenantFromLocals(c)
	if !ok {
		return errorResponse(c, fiber.StatusUnauthorized, "Tenant ID not found in context", "MISSING_TENANT_ID", nil)
	}
	req.TenantID = tenantID

	if err := h.validator.Struct(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrorMessages(err))
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	result, err := h.webhookFlow.UpdateWebhook(createRequestContext(c, "/api/v1/webhooks/"+webhookUUID), &req, metadata)
	if err != nil {
		return h.webhookError(c, err, "Webhook update failed", "WEBHOOK_UPDATE_FAILED")
	}

	return successResponse(c, fiber.StatusOK, "Webhook updated successfully", result)
}

// ListWebhooks returns the tenant's webhook registrations
func (h *WebhookHandler) ListWebhooks(c fiber.Ctx) error {
	tenantID, ok := tenantFromLocals(c)
	if !ok {
		return errorResponse(c, fiber.StatusUnauthorized, "Tenant ID not found in context", "MISSING_TENANT_ID", nil)
	}

	result, err := h.webhookFlow.ListWebhooks(createRequestContext(c, "/api/v1/webhooks"), tenantID)
	if err != nil {
		return h.webhookError(c, err, "Failed to list webhooks", "WEBHOOK_LIST_FAILED")
	}

	return successResponse(c, fiber.StatusOK, "Webhooks retrieved successfully", result)
}

// DeactivateWebhook stops future deliveries to the endpoint
func (h *WebhookHandler) DeactivateWebhook(c fiber.Ctx) error {
	webhookUUID := c.Params("uuid")
	if webhookUUID == "" {
		return errorResponse(c, fiber.StatusBadRequest, "Webhook UUID is required", "MISSING_WEBHOOK_UUID", nil)
	}

	tenantID, ok := tenantFromLocals(c)
	if !ok {
		return errorResponse(c, fiber.StatusUnauthorized, "Tenant ID not found in context", "MISSING_TENANT_ID", nil)
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	result, err := h.webhookFlow.DeactivateWebhook(createRequestContext(c, "/api/v1/webhooks/"+webhookUUID), webhookUUID, tenantID, metadata)
	if err != nil {
		return h.webhookError(c, err, "Webhook deactivation failed", "WEBHOOK_UPDATE_FAILED")
	}

	return successResponse(c, fiber.StatusOK, "Webhook deactivated successfully", result)
}

// ListWebhookDeliveries returns the delivery log for one webhook
func (h *WebhookHandler) ListWebhookDeliveries(c fiber.Ctx) error {
	webhookUUID := c.Params("uuid")
	if webhookUUID == "" {
		return errorResponse(c, fiber.StatusBadRequest, "Webhook UUID is required", "MISSING_WEBHOOK_UUID", nil)
	}

	tenantID, ok := tenantFromLocals(c)
	if !ok {
		return errorResponse(c, fiber.StatusUnauthorized, "Tenant ID not found in context", "MISSING_TENANT_ID", nil)
	}

	page, err := strconv.Atoi(c.Query("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	pageSize, err := strconv.Atoi(c.Query("page_size", "20"))
	if err != nil || pageSize < 1 {
		pageSize = 20
	}

	result, err := h.webhookFlow.ListDeliveries(createRequestContext(c, "/api/v1/webhooks/"+webhookUUID+"/deliveries"), webhookUUID, tenantID, page, pageSize)
	if err != nil {
		return h.webhookError(c, err, "Failed to list deliveries", "DELIVERY_LIST_FAILED")
	}

	return successResponse(c, fiber.StatusOK, "Deliveries retrieved successfully", result)
}

// webhookError maps business errors onto HTTP responses
func (h *WebhookHandler) webhookError(c fiber.Ctx, err error, fallbackMessage, fallbackCode string) error {
	if businessflow.IsWebhookNotFound(err) {
		return errorResponse(c, fiber.StatusNotFound, "Webhook not found", "WEBHOOK_NOT_FOUND", nil)
	}
	if businessflow.IsWebhookAccessDenied(err) {
		return errorResponse(c, fiber.StatusForbidden, "Access denied: webhook belongs to another tenant", "WEBHOOK_ACCESS_DENIED", nil)
	}
	if businessflow.IsUnknownWebhookEvent(err) {
		return errorResponse(c, fiber.StatusBadRequest, "Subscription references an unknown event type", "UNKNOWN_WEBHOOK_EVENT", nil)
	}

	log.Println(fallbackMessage, err)
	return errorResponse(c, fiber.StatusInternalServerError, fallbackMessage, fallbackCode, nil)
}
