// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/phishguard/phishsim/app/dto"
	businessflow "github.com/phishguard/phishsim/business_flow"
	"github.com/xuri/excelize/v2"
)

// CampaignHandlerInterface defines the contract for campaign handlers
type CampaignHandlerInterface interface {
	CreateCampaign(c fiber.Ctx) error
	UpdateCampaign(c fiber.Ctx) error
	ListCampaigns(c fiber.Ctx) error
	GetCampaign(c fiber.Ctx) error
	ScheduleCampaign(c fiber.Ctx) error
	StartCampaign(c fiber.Ctx) error
	PauseCampaign(c fiber.Ctx) error
	ResumeCampaign(c fiber.Ctx) error
	CancelCampaign(c fiber.Ctx) error
	GetCampaignStats(c fiber.Ctx) error
	ExportCampaignReport(c fiber.Ctx) error
}

// CampaignHandler handles campaign-related HTTP requests
type CampaignHandler struct {
	campaignFlow businessflow.CampaignFlow
	statsFlow    businessflow.StatsFlow
	validator    *validator.Validate
}

// NewCampaignHandler creates a new campaign handler
func NewCampaignHandler(campaignFlow businessflow.CampaignFlow, statsFlow businessflow.StatsFlow) *CampaignHandler {
	return &CampaignHandler{
		campaignFlow: campaignFlow,
		statsFlow:    statsFlow,
		validator:    validator.New(),
	}
}

// CreateCampaign handles campaign creation
func (h *CampaignHandler) CreateCampaign(c fiber.Ctx) error {
	var req dto.CreateCampaignRequest
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

	result, err := h.campaignFlow.CreateCampaign(createRequestContext(c, "/api/v1/campaigns"), &req, metadata)
	if err != nil {
		return h.campaignError(c, err, "Campaign creation failed", "CAMPAIGN_CREATION_FAILED")
	}

	return successResponse(c, fiber.StatusCreated, "Campaign created successfully", result)
}

// UpdateCampaign handles edits to a draft or scheduled campaign
func (h *CampaignHandler) UpdateCampaign(c fiber.Ctx) error {
	campaignUUID := c.Params("uuid")
	if campaignUUID == "" {
		return errorResponse(c, fiber.StatusBadRequest, "Campaign UUID is required", "MISSING_CAMPAIGN_UUID", nil)
	}

	var req dto.UpdateCampaignRequest
	if err := c.Bind().JSON(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	req.UUID = campaignUUID

	tenantID, ok := tenantFromLocals(c)
	if !ok {
		return errorResponse(c, fiber.StatusUnauthorized, "Tenant ID not found in context", "MISSING_TENANT_ID", nil)
	}
	req.TenantID = tenantID

	if err := h.validator.Struct(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrorMessages(err))
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	result, err := h.campaignFlow.UpdateCampaign(createRequestContext(c, "/api/v1/campaigns/"+campaignUUID), &req, metadata)
	if err != nil {
		return h.campaignError(c, err, "Campaign update failed", "CAMPAIGN_UPDATE_FAILED")
	}

	return successResponse(c, fiber.StatusOK, "Campaign updated successfully", result)
}

// ListCampaigns returns the tenant's campaigns
func (h *CampaignHandler) ListCampaigns(c fiber.Ctx) error {
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

	req := dto.ListCampaignsRequest{
		TenantID: tenantID,
		Page:     page,
		PageSize: pageSize,
	}
	if status := c.Query("status"); status != "" {
		req.Status = &status
	}
	if name := c.Query("name"); name != "" {
		req.Name = &name
	}

	if err := h.validator.Struct(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrorMessages(err))
	}

	result, err := h.campaignFlow.ListCampaigns(createRequestContext(c, "/api/v1/campaigns"), &req)
	if err != nil {
		return h.campaignError(c, err, "Failed to list campaigns", "CAMPAIGN_LIST_FAILED")
	}

	return successResponse(c, fiber.StatusOK, "Campaigns retrieved successfully", result)
}

// GetCampaign returns one campaign
func (h *CampaignHandler) GetCampaign(c fiber.Ctx) error {
	campaignUUID := c.Params("uuid")
	if campaignUUID == "" {
		return errorResponse(c, fiber.StatusBadRequest, "Campaign UUID is required", "MISSING_CAMPAIGN_UUID", nil)
	}

	tenantID, ok := tenantFromLocals(c)
	if !ok {
		return errorResponse(c, fiber.StatusUnauthorized, "Tenant ID not found in context", "MISSING_TENANT_ID", nil)
	}

	result, err := h.campaignFlow.GetCampaign(createRequestContext(c, "/api/v1/campaigns/"+campaignUUID), campaignUUID, tenantID)
	if err != nil {
		return h.campaignError(c, err, "Failed to get campaign", "CAMPAIGN_GET_FAILED")
	}

	return successResponse(c, fiber.StatusOK, "Campaign retrieved successfully", result)
}

// scheduleRequest is the body of the schedule transition
type scheduleRequest struct {
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
}

// ScheduleCampaign moves a draft campaign to scheduled
func (h *CampaignHandler) ScheduleCampaign(c fiber.Ctx) error {
	campaignUUID := c.Params("uuid")
	if campaignUUID == "" {
		return errorResponse(c, fiber.StatusBadRequest, "Campaign UUID is required", "MISSING_CAMPAIGN_UUID", nil)
	}

	tenantID, ok := tenantFromLocals(c)
	if !ok {
		return errorResponse(c, fiber.StatusUnauthorized, "Tenant ID not found in context", "MISSING_TENANT_ID", nil)
	}

	var req scheduleRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return errorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
		}
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	result, err := h.campaignFlow.ScheduleCampaign(createRequestContext(c, "/api/v1/campaigns/"+campaignUUID+"/schedule"), campaignUUID, tenantID, req.ScheduledAt, metadata)
	if err != nil {
		return h.campaignError(c, err, "Campaign scheduling failed", "CAMPAIGN_SCHEDULE_FAILED")
	}

	return successResponse(c, fiber.StatusOK, "Campaign scheduled successfully", result)
}

// StartCampaign launches a campaign immediately
func (h *CampaignHandler) StartCampaign(c fiber.Ctx) error {
	return h.transition(c, "start", h.campaignFlow.StartCampaign)
}

// PauseCampaign pauses a running campaign
func (h *CampaignHandler) PauseCampaign(c fiber.Ctx) error {
	return h.transition(c, "pause", h.campaignFlow.PauseCampaign)
}

// ResumeCampaign resumes a paused campaign
func (h *CampaignHandler) ResumeCampaign(c fiber.Ctx) error {
	return h.transition(c, "resume", h.campaignFlow.ResumeCampaign)
}

// CancelCampaign terminally cancels a campaign
func (h *CampaignHandler) CancelCampaign(c fiber.Ctx) error {
	return h.transition(c, "cancel", h.campaignFlow.CancelCampaign)
}

// GetCampaignStats returns the aggregated outcome summary
func (h *CampaignHandler) GetCampaignStats(c fiber.Ctx) error {
	campaignUUID := c.Params("uuid")
	if campaignUUID == "" {
		return errorResponse(c, fiber.StatusBadRequest, "Campaign UUID is required", "MISSING_CAMPAIGN_UUID", nil)
	}

	tenantID, ok := tenantFromLocals(c)
	if !ok {
		return errorResponse(c, fiber.StatusUnauthorized, "Tenant ID not found in context", "MISSING_TENANT_ID", nil)
	}

	result, err := h.statsFlow.CampaignStats(createRequestContext(c, "/api/v1/campaigns/"+campaignUUID+"/stats"), campaignUUID, tenantID)
	if err != nil {
		return h.campaignError(c, err, "Failed to aggregate campaign stats", "STATS_AGGREGATION_FAILED")
	}

	return successResponse(c, fiber.StatusOK, "Campaign stats retrieved successfully", result)
}

// ExportCampaignReport streams the campaign outcome report as an xlsx workbook
func (h *CampaignHandler) ExportCampaignReport(c fiber.Ctx) error {
	campaignUUID := c.Params("uuid")
	if campaignUUID == "" {
		return errorResponse(c, fiber.StatusBadRequest, "Campaign UUID is required", "MISSING_CAMPAIGN_UUID", nil)
	}

	tenantID, ok := tenantFromLocals(c)
	if !ok {
		return errorResponse(c, fiber.StatusUnauthorized, "Tenant ID not found in context", "MISSING_TENANT_ID", nil)
	}

	stats, rows, err := h.statsFlow.CampaignReport(createRequestContext(c, "/api/v1/campaigns/"+campaignUUID+"/report"), campaignUUID, tenantID)
	if err != nil {
		return h.campaignError(c, err, "Failed to build campaign report", "REPORT_EXPORT_FAILED")
	}

	file, err := buildReportWorkbook(stats, rows)
	if err != nil {
		log.Println("Campaign report workbook build failed", err)
		return errorResponse(c, fiber.StatusInternalServerError, "Failed to build campaign report", "REPORT_EXPORT_FAILED", nil)
	}

	buf, err := file.WriteToBuffer()
	if err != nil {
		log.Println("Campaign report serialization failed", err)
		return errorResponse(c, fiber.StatusInternalServerError, "Failed to build campaign report", "REPORT_EXPORT_FAILED", nil)
	}

	c.Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set("Content-Disposition", fmt.Sprintf("attachment; filename=campaign_%s_report.xlsx", campaignUUID))
	return c.Send(buf.Bytes())
}

// buildReportWorkbook lays out a summary sheet and a per-recipient sheet
func buildReportWorkbook(stats *dto.CampaignStatsResponse, rows []dto.CampaignReportRow) (*excelize.File, error) {
	file := excelize.NewFile()

	summary := "Summary"
	if err := file.SetSheetName("Sheet1", summary); err != nil {
		return nil, err
	}

	summaryRows := [][]any{
		{"Campaign", stats.UUID},
		{"Status", stats.Status},
		{"Total recipients", stats.TotalRecipients},
		{"Sent", stats.Sent},
		{"Failed", stats.Failed},
		{"Pending", stats.Pending},
		{"Delivered", stats.Delivered},
		{"Opened", stats.Opened},
		{"Clicked", stats.Clicked},
		{"Credentials submitted", stats.CredentialSubmitted},
		{"Reported", stats.Reported},
		{"Open rate", stats.OpenRate},
		{"Click rate", stats.ClickRate},
		{"Report rate", stats.ReportRate},
	}
	for i, row := range summaryRows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return nil, err
		}
		if err := file.SetSheetRow(summary, cell, &row); err != nil {
			return nil, err
		}
	}

	recipients := "Recipients"
	if _, err := file.NewSheet(recipients); err != nil {
		return nil, err
	}
	header := []any{"Email", "Send status", "Sent at"}
	if err := file.SetSheetRow(recipients, "A1", &header); err != nil {
		return nil, err
	}
	for i, row := range rows {
		sentAt := ""
		if row.SentAt != nil {
			sentAt = row.SentAt.Format(time.RFC3339)
		}
		values := []any{row.Email, row.SendStatus, sentAt}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := file.SetSheetRow(recipients, cell, &values); err != nil {
			return nil, err
		}
	}

	return file, nil
}

// transition runs one lifecycle action shared by start/pause/resume/cancel
func (h *CampaignHandler) transition(c fiber.Ctx, action string, fn func(ctx context.Context, campaignUUID string, tenantID uint, metadata *businessflow.ClientMetadata) (*dto.TransitionCampaignResponse, error)) error {
	campaignUUID := c.Params("uuid")
	if campaignUUID == "" {
		return errorResponse(c, fiber.StatusBadRequest, "Campaign UUID is required", "MISSING_CAMPAIGN_UUID", nil)
	}

	tenantID, ok := tenantFromLocals(c)
	if !ok {
		return errorResponse(c, fiber.StatusUnauthorized, "Tenant ID not found in context", "MISSING_TENANT_ID", nil)
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	result, err := fn(createRequestContext(c, "/api/v1/campaigns/"+campaignUUID+"/"+action), campaignUUID, tenantID, metadata)
	if err != nil {
		return h.campaignError(c, err, "Campaign transition failed", "CAMPAIGN_TRANSITION_FAILED")
	}

	return successResponse(c, fiber.StatusOK, result.Message, result)
}

// campaignError maps business errors onto HTTP responses
func (h *CampaignHandler) campaignError(c fiber.Ctx, err error, fallbackMessage, fallbackCode string) error {
	if businessflow.IsTenantNotFound(err) {
		return errorResponse(c, fiber.StatusUnauthorized, "Tenant not found", "TENANT_NOT_FOUND", nil)
	}
	if businessflow.IsTenantInactive(err) {
		return errorResponse(c, fiber.StatusUnauthorized, "Tenant is inactive", "TENANT_INACTIVE", nil)
	}
	if businessflow.IsCampaignNotFound(err) {
		return errorResponse(c, fiber.StatusNotFound, "Campaign not found", "CAMPAIGN_NOT_FOUND", nil)
	}
	if businessflow.IsCampaignAccessDenied(err) {
		return errorResponse(c, fiber.StatusForbidden, "Access denied: campaign belongs to another tenant", "CAMPAIGN_ACCESS_DENIED", nil)
	}
	if businessflow.IsConcurrentModification(err) {
		return errorResponse(c, fiber.StatusConflict, "Campaign cannot be edited in its current state", "CAMPAIGN_NOT_EDITABLE", nil)
	}
	if businessflow.IsInvalidTransition(err) {
		return errorResponse(c, fiber.StatusConflict, "Illegal campaign state transition", "INVALID_TRANSITION", nil)
	}
	if businessflow.IsInvalidSpec(err) {
		return errorResponse(c, fiber.StatusBadRequest, "Target specs are invalid", "INVALID_TARGET_SPECS", nil)
	}
	if businessflow.IsScheduleTimeNotPresent(err) {
		return errorResponse(c, fiber.StatusBadRequest, "Schedule time is not present", "SCHEDULE_TIME_NOT_PRESENT", nil)
	}
	if businessflow.IsScheduleTimeTooSoon(err) {
		return errorResponse(c, fiber.StatusBadRequest, "Schedule time is too soon", "SCHEDULE_TIME_TOO_SOON", nil)
	}

	log.Println(fallbackMessage, err)
	return errorResponse(c, fiber.StatusInternalServerError, fallbackMessage, fallbackCode, nil)
}
