// Package businessflow contains the core business logic and use cases for campaign workflows
package businessflow

import (
	"context"
	"fmt"
	"time"

	"github.com/phishguard/phishsim/app/dto"
	"github.com/phishguard/phishsim/app/services"
	"github.com/phishguard/phishsim/models"
	"github.com/phishguard/phishsim/repository"
	"github.com/phishguard/phishsim/utils"
	"gorm.io/gorm"
)

// CampaignFlow handles the campaign lifecycle business logic
type CampaignFlow interface {
	CreateCampaign(ctx context.Context, req *dto.CreateCampaignRequest, metadata *ClientMetadata) (*dto.CreateCampaignResponse, error)
	UpdateCampaign(ctx context.Context, req *dto.UpdateCampaignRequest, metadata *ClientMetadata) (*dto.UpdateCampaignResponse, error)
	ListCampaigns(ctx context.Context, req *dto.ListCampaignsRequest) (*dto.ListCampaignsResponse, error)
	GetCampaign(ctx context.Context, campaignUUID string, tenantID uint) (*dto.CampaignResponse, error)
	ScheduleCampaign(ctx context.Context, campaignUUID string, tenantID uint, scheduledAt *time.Time, metadata *ClientMetadata) (*dto.TransitionCampaignResponse, error)
	StartCampaign(ctx context.Context, campaignUUID string, tenantID uint, metadata *ClientMetadata) (*dto.TransitionCampaignResponse, error)
	PauseCampaign(ctx context.Context, campaignUUID string, tenantID uint, metadata *ClientMetadata) (*dto.TransitionCampaignResponse, error)
	ResumeCampaign(ctx context.Context, campaignUUID string, tenantID uint, metadata *ClientMetadata) (*dto.TransitionCampaignResponse, error)
	CancelCampaign(ctx context.Context, campaignUUID string, tenantID uint, metadata *ClientMetadata) (*dto.TransitionCampaignResponse, error)

	// StartScheduledCampaign launches a due scheduled campaign on behalf of
	// the scheduler poller rather than an authenticated tenant user.
	StartScheduledCampaign(ctx context.Context, campaignID uint) error
}

// CampaignFlowImpl implements the campaign business flow
type CampaignFlowImpl struct {
	campaignRepo  repository.CampaignRepository
	recipientRepo repository.RecipientRepository
	directoryRepo repository.DirectoryRepository
	auditRepo     repository.AuditLogRepository
	resolver      TargetResolver
	emitter       services.EventEmitter
	dispatcher    Dispatcher
	db            *gorm.DB
}

// NewCampaignFlow creates a new campaign flow instance
func NewCampaignFlow(
	campaignRepo repository.CampaignRepository,
	recipientRepo repository.RecipientRepository,
	directoryRepo repository.DirectoryRepository,
	auditRepo repository.AuditLogRepository,
	resolver TargetResolver,
	emitter services.EventEmitter,
	dispatcher Dispatcher,
	db *gorm.DB,
) CampaignFlow {
	return &CampaignFlowImpl{
		campaignRepo:  campaignRepo,
		recipientRepo: recipientRepo,
		directoryRepo: directoryRepo,
		auditRepo:     auditRepo,
		resolver:      resolver,
		emitter:       emitter,
		dispatcher:    dispatcher,
		db:            db,
	}
}

// CreateCampaign creates a campaign in draft state, or scheduled when a
// schedule time is supplied. Settings are validated eagerly so a bad
// configuration fails here and not in the middle of dispatch.
func (f *CampaignFlowImpl) CreateCampaign(ctx context.Context, req *dto.CreateCampaignRequest, metadata *ClientMetadata) (*dto.CreateCampaignResponse, error) {
	tenant, err := f.activeTenant(ctx, req.TenantID)
	if err != nil {
		return nil, err
	}

	specs, err := specsFromDTO(req.Specs)
	if err != nil {
		return nil, err
	}

	settings := settingsFromDTO(req.Settings)
	if settings.SendRatePerHour == 0 || settings.SendRatePerHour > utils.MaxSendRatePerHour {
		return nil, NewBusinessError("SEND_RATE_OUT_OF_RANGE", "Send rate per hour is out of range", ErrSendRateOutOfRange)
	}

	status := models.CampaignStatusDraft
	if req.ScheduledAt != nil {
		if err := f.validateScheduleTime(*req.ScheduledAt); err != nil {
			return nil, err
		}
		// A campaign born scheduled must already resolve to at least one recipient.
		if _, err := f.resolver.Resolve(ctx, tenant.ID, specs, req.ExcludedUserIDs); err != nil {
			return nil, err
		}
		status = models.CampaignStatusScheduled
	}

	campaign := &models.Campaign{
		TenantID:        tenant.ID,
		Name:            req.Name,
		TemplateRef:     req.TemplateRef,
		Status:          status,
		Specs:           specs,
		Settings:        settings,
		ExcludedUserIDs: toInt64Array(req.ExcludedUserIDs),
		ScheduledAt:     req.ScheduledAt,
	}
	if err := campaign.BeforeCreate(); err != nil {
		return nil, NewBusinessError("CAMPAIGN_CREATION_FAILED", "Campaign creation failed", err)
	}

	if err := f.campaignRepo.Save(ctx, campaign); err != nil {
		errMsg := fmt.Sprintf("Campaign creation failed: %s", err.Error())
		_ = createAuditLog(ctx, f.auditRepo, tenant.ID, models.AuditActionCampaignCreated, errMsg, false, &errMsg, metadata)
		return nil, NewBusinessError("CAMPAIGN_CREATION_FAILED", "Campaign creation failed", err)
	}

	msg := fmt.Sprintf("Campaign created: %s", campaign.UUID.String())
	_ = createAuditLog(ctx, f.auditRepo, tenant.ID, models.AuditActionCampaignCreated, msg, true, nil, metadata)

	return &dto.CreateCampaignResponse{
		Message:   "Campaign created successfully",
		UUID:      campaign.UUID.String(),
		Status:    string(campaign.Status),
		CreatedAt: campaign.CreatedAt.Format(time.RFC3339),
	}, nil
}

// UpdateCampaign edits settings and target specs. Only draft and scheduled
// campaigns are editable; the recipient snapshot of a launched campaign is
// immutable.
func (f *CampaignFlowImpl) UpdateCampaign(ctx context.Context, req *dto.UpdateCampaignRequest, metadata *ClientMetadata) (*dto.UpdateCampaignResponse, error) {
	campaign, err := f.ownedCampaign(ctx, req.UUID, req.TenantID)
	if err != nil {
		return nil, err
	}

	if !campaign.IsEditable() {
		return nil, NewBusinessError("CAMPAIGN_NOT_EDITABLE", "Campaign cannot be edited in its current state", ErrConcurrentModification)
	}

	if req.Name != nil {
		campaign.Name = *req.Name
	}
	if req.TemplateRef != nil {
		campaign.TemplateRef = *req.TemplateRef
	}
	if req.Specs != nil {
		specs, err := specsFromDTO(req.Specs)
		if err != nil {
			return nil, err
		}
		campaign.Specs = specs
	}
	if req.Settings != nil {
		settings := campaign.Settings
		applySettingsDTO(&settings, req.Settings)
		if settings.SendRatePerHour == 0 || settings.SendRatePerHour > utils.MaxSendRatePerHour {
			return nil, NewBusinessError("SEND_RATE_OUT_OF_RANGE", "Send rate per hour is out of range", ErrSendRateOutOfRange)
		}
		campaign.Settings = settings
	}
	if req.ExcludedUserIDs != nil {
		campaign.ExcludedUserIDs = toInt64Array(*req.ExcludedUserIDs)
	}
	if req.ScheduledAt != nil {
		if err := f.validateScheduleTime(*req.ScheduledAt); err != nil {
			return nil, err
		}
		campaign.ScheduledAt = req.ScheduledAt
	}

	if err := campaign.BeforeUpdate(); err != nil {
		return nil, NewBusinessError("CAMPAIGN_UPDATE_FAILED", "Campaign update failed", err)
	}
	if err := f.campaignRepo.Update(ctx, campaign); err != nil {
		errMsg := fmt.Sprintf("Campaign update failed: %s", err.Error())
		_ = createAuditLog(ctx, f.auditRepo, req.TenantID, models.AuditActionCampaignUpdated, errMsg, false, &errMsg, metadata)
		return nil, NewBusinessError("CAMPAIGN_UPDATE_FAILED", "Campaign update failed", err)
	}

	msg := fmt.Sprintf("Campaign updated: %s", campaign.UUID.String())
	_ = createAuditLog(ctx, f.auditRepo, req.TenantID, models.AuditActionCampaignUpdated, msg, true, nil, metadata)

	return &dto.UpdateCampaignResponse{Message: "Campaign updated successfully"}, nil
}

// ListCampaigns returns the tenant's campaigns with pagination
func (f *CampaignFlowImpl) ListCampaigns(ctx context.Context, req *dto.ListCampaignsRequest) (*dto.ListCampaignsResponse, error) {
	page := req.Page
	if page < 1 {
		page = 1
	}
	pageSize := req.PageSize
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	filter := models.CampaignFilter{TenantID: &req.TenantID}
	if req.Status != nil {
		status := models.CampaignStatus(*req.Status)
		filter.Status = &status
	}
	filter.Name = req.Name

	total, err := f.campaignRepo.Count(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_LIST_FAILED", "Failed to list campaigns", err)
	}

	campaigns, err := f.campaignRepo.ByFilter(ctx, filter, "created_at DESC", pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_LIST_FAILED", "Failed to list campaigns", err)
	}

	items := make([]dto.CampaignResponse, 0, len(campaigns))
	for _, c := range campaigns {
		items = append(items, toCampaignResponse(c))
	}

	return &dto.ListCampaignsResponse{
		Items:    items,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}, nil
}

// GetCampaign returns a single campaign owned by the tenant
func (f *CampaignFlowImpl) GetCampaign(ctx context.Context, campaignUUID string, tenantID uint) (*dto.CampaignResponse, error) {
	campaign, err := f.ownedCampaign(ctx, campaignUUID, tenantID)
	if err != nil {
		return nil, err
	}

	resp := toCampaignResponse(campaign)
	return &resp, nil
}

// ScheduleCampaign moves a draft campaign to scheduled. The target set is
// validated eagerly here, not deferred to launch time.
func (f *CampaignFlowImpl) ScheduleCampaign(ctx context.Context, campaignUUID string, tenantID uint, scheduledAt *time.Time, metadata *ClientMetadata) (*dto.TransitionCampaignResponse, error) {
	campaign, err := f.ownedCampaign(ctx, campaignUUID, tenantID)
	if err != nil {
		return nil, err
	}

	if scheduledAt == nil {
		scheduledAt = campaign.ScheduledAt
	}
	if scheduledAt == nil {
		return nil, NewBusinessError("SCHEDULE_TIME_NOT_PRESENT", "Schedule time is not present", ErrScheduleTimeNotPresent)
	}
	if err := f.validateScheduleTime(*scheduledAt); err != nil {
		return nil, err
	}

	if !campaign.CanTransitionTo(models.CampaignStatusScheduled) {
		return nil, NewBusinessError("INVALID_TRANSITION", "Campaign cannot be scheduled in its current state", ErrInvalidTransition)
	}

	if _, err := f.resolver.Resolve(ctx, tenantID, campaign.Specs, fromInt64Array(campaign.ExcludedUserIDs)); err != nil {
		return nil, err
	}

	campaign.ScheduledAt = scheduledAt
	if err := campaign.BeforeUpdate(); err != nil {
		return nil, NewBusinessError("CAMPAIGN_SCHEDULE_FAILED", "Campaign scheduling failed", err)
	}
	if err := f.campaignRepo.Update(ctx, campaign); err != nil {
		return nil, NewBusinessError("CAMPAIGN_SCHEDULE_FAILED", "Campaign scheduling failed", err)
	}

	moved, err := f.campaignRepo.UpdateStatus(ctx, campaign.ID, campaign.Status, models.CampaignStatusScheduled)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_SCHEDULE_FAILED", "Campaign scheduling failed", err)
	}
	if !moved {
		return nil, NewBusinessError("INVALID_TRANSITION", "Campaign state changed concurrently", ErrInvalidTransition)
	}

	msg := fmt.Sprintf("Campaign scheduled: %s at %s", campaign.UUID, scheduledAt.Format(time.RFC3339))
	_ = createAuditLog(ctx, f.auditRepo, tenantID, models.AuditActionCampaignScheduled, msg, true, nil, metadata)

	return &dto.TransitionCampaignResponse{
		Message: "Campaign scheduled successfully",
		UUID:    campaign.UUID.String(),
		Status:  string(models.CampaignStatusScheduled),
	}, nil
}

// StartCampaign launches a draft or scheduled campaign: the target set is
// resolved, recipients are materialized as an immutable snapshot, and the
// dispatch scheduler is started.
func (f *CampaignFlowImpl) StartCampaign(ctx context.Context, campaignUUID string, tenantID uint, metadata *ClientMetadata) (*dto.TransitionCampaignResponse, error) {
	campaign, err := f.ownedCampaign(ctx, campaignUUID, tenantID)
	if err != nil {
		return nil, err
	}

	if err := f.launch(ctx, campaign, metadata); err != nil {
		return nil, err
	}

	return &dto.TransitionCampaignResponse{
		Message: "Campaign started successfully",
		UUID:    campaign.UUID.String(),
		Status:  string(models.CampaignStatusRunning),
	}, nil
}

// StartScheduledCampaign launches a due campaign on behalf of the scheduler
func (f *CampaignFlowImpl) StartScheduledCampaign(ctx context.Context, campaignID uint) error {
	campaign, err := f.campaignRepo.ByID(ctx, campaignID)
	if err != nil {
		return NewBusinessError("CAMPAIGN_LOOKUP_FAILED", "Failed to lookup campaign", err)
	}
	if campaign == nil {
		return NewBusinessError("CAMPAIGN_NOT_FOUND", "Campaign not found", ErrCampaignNotFound)
	}

	return f.launch(ctx, campaign, nil)
}

// PauseCampaign stops the scheduler from claiming new recipients.
// Already-dispatched sends are unaffected and the campaign is resumable.
func (f *CampaignFlowImpl) PauseCampaign(ctx context.Context, campaignUUID string, tenantID uint, metadata *ClientMetadata) (*dto.TransitionCampaignResponse, error) {
	campaign, err := f.ownedCampaign(ctx, campaignUUID, tenantID)
	if err != nil {
		return nil, err
	}

	if err := f.transition(ctx, campaign, models.CampaignStatusPaused); err != nil {
		return nil, err
	}

	msg := fmt.Sprintf("Campaign paused: %s", campaign.UUID)
	_ = createAuditLog(ctx, f.auditRepo, tenantID, models.AuditActionCampaignPaused, msg, true, nil, metadata)

	return &dto.TransitionCampaignResponse{
		Message: "Campaign paused successfully",
		UUID:    campaign.UUID.String(),
		Status:  string(models.CampaignStatusPaused),
	}, nil
}

// ResumeCampaign restarts dispatch for a paused campaign
func (f *CampaignFlowImpl) ResumeCampaign(ctx context.Context, campaignUUID string, tenantID uint, metadata *ClientMetadata) (*dto.TransitionCampaignResponse, error) {
	campaign, err := f.ownedCampaign(ctx, campaignUUID, tenantID)
	if err != nil {
		return nil, err
	}

	if campaign.Status != models.CampaignStatusPaused {
		return nil, NewBusinessError("INVALID_TRANSITION", "Only paused campaigns can be resumed", ErrInvalidTransition)
	}

	if err := f.transition(ctx, campaign, models.CampaignStatusRunning); err != nil {
		return nil, err
	}

	f.dispatcher.Launch(campaign.ID)

	msg := fmt.Sprintf("Campaign resumed: %s", campaign.UUID)
	_ = createAuditLog(ctx, f.auditRepo, tenantID, models.AuditActionCampaignResumed, msg, true, nil, metadata)

	return &dto.TransitionCampaignResponse{
		Message: "Campaign resumed successfully",
		UUID:    campaign.UUID.String(),
		Status:  string(models.CampaignStatusRunning),
	}, nil
}

// CancelCampaign terminally cancels a campaign from any non-terminal state.
// The scheduler stops at its next checkpoint; in-flight sends finish and
// pending recipients stay pending forever.
func (f *CampaignFlowImpl) CancelCampaign(ctx context.Context, campaignUUID string, tenantID uint, metadata *ClientMetadata) (*dto.TransitionCampaignResponse, error) {
	campaign, err := f.ownedCampaign(ctx, campaignUUID, tenantID)
	if err != nil {
		return nil, err
	}

	if err := f.transition(ctx, campaign, models.CampaignStatusCancelled); err != nil {
		return nil, err
	}

	f.emitter.Emit(services.NewDomainEvent(tenantID, models.EventCampaignCancelled, map[string]any{
		"campaign_uuid": campaign.UUID.String(),
		"name":          campaign.Name,
	}))

	msg := fmt.Sprintf("Campaign cancelled: %s", campaign.UUID)
	_ = createAuditLog(ctx, f.auditRepo, tenantID, models.AuditActionCampaignCancelled, msg, true, nil, metadata)

	return &dto.TransitionCampaignResponse{
		Message: "Campaign cancelled successfully",
		UUID:    campaign.UUID.String(),
		Status:  string(models.CampaignStatusCancelled),
	}, nil
}

// launch performs the shared draft/scheduled -> running transition:
// resolve targets, materialize the recipient snapshot inside one transaction,
// then hand the campaign to the dispatch scheduler.
func (f *CampaignFlowImpl) launch(ctx context.Context, campaign *models.Campaign, metadata *ClientMetadata) error {
	if !campaign.CanTransitionTo(models.CampaignStatusRunning) || campaign.Status == models.CampaignStatusPaused {
		return NewBusinessError("INVALID_TRANSITION", "Campaign cannot be started in its current state", ErrInvalidTransition)
	}

	users, err := f.resolver.Resolve(ctx, campaign.TenantID, campaign.Specs, fromInt64Array(campaign.ExcludedUserIDs))
	if err != nil {
		return err
	}

	recipients := make([]*models.Recipient, 0, len(users))
	for _, user := range users {
		token, err := utils.GenerateTrackingToken()
		if err != nil {
			return NewBusinessError("CAMPAIGN_START_FAILED", "Failed to generate recipient token", err)
		}
		recipient := &models.Recipient{
			CampaignID: campaign.ID,
			UserID:     user.ID,
			Email:      user.Email,
			Token:      token,
			SendStatus: models.SendStatusPending,
		}
		if err := recipient.BeforeCreate(); err != nil {
			return NewBusinessError("CAMPAIGN_START_FAILED", "Failed to prepare recipient", err)
		}
		recipients = append(recipients, recipient)
	}

	err = repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		moved, err := f.campaignRepo.UpdateStatus(txCtx, campaign.ID, campaign.Status, models.CampaignStatusRunning)
		if err != nil {
			return err
		}
		if !moved {
			return ErrInvalidTransition
		}
		return f.recipientRepo.SaveBatch(txCtx, recipients)
	})
	if err != nil {
		if IsInvalidTransition(err) {
			return NewBusinessError("INVALID_TRANSITION", "Campaign state changed concurrently", ErrInvalidTransition)
		}
		errMsg := fmt.Sprintf("Campaign start failed: %s", err.Error())
		_ = createAuditLog(ctx, f.auditRepo, campaign.TenantID, models.AuditActionCampaignStarted, errMsg, false, &errMsg, metadata)
		return NewBusinessError("CAMPAIGN_START_FAILED", "Campaign start failed", err)
	}

	f.emitter.Emit(services.NewDomainEvent(campaign.TenantID, models.EventCampaignStarted, map[string]any{
		"campaign_uuid":    campaign.UUID.String(),
		"name":             campaign.Name,
		"total_recipients": len(recipients),
	}))

	f.dispatcher.Launch(campaign.ID)

	msg := fmt.Sprintf("Campaign started: %s with %d recipients", campaign.UUID, len(recipients))
	_ = createAuditLog(ctx, f.auditRepo, campaign.TenantID, models.AuditActionCampaignStarted, msg, true, nil, metadata)

	return nil
}

// transition applies a guarded status move and maps a lost race to
// ErrInvalidTransition
func (f *CampaignFlowImpl) transition(ctx context.Context, campaign *models.Campaign, to models.CampaignStatus) error {
	if !campaign.CanTransitionTo(to) {
		return NewBusinessError("INVALID_TRANSITION",
			fmt.Sprintf("Campaign cannot move from %s to %s", campaign.Status, to), ErrInvalidTransition)
	}

	moved, err := f.campaignRepo.UpdateStatus(ctx, campaign.ID, campaign.Status, to)
	if err != nil {
		return NewBusinessError("CAMPAIGN_TRANSITION_FAILED", "Campaign transition failed", err)
	}
	if !moved {
		return NewBusinessError("INVALID_TRANSITION", "Campaign state changed concurrently", ErrInvalidTransition)
	}

	return nil
}

func (f *CampaignFlowImpl) ownedCampaign(ctx context.Context, campaignUUID string, tenantID uint) (*models.Campaign, error) {
	campaign, err := f.campaignRepo.ByUUID(ctx, campaignUUID)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_LOOKUP_FAILED", "Failed to lookup campaign", err)
	}
	if campaign == nil {
		return nil, NewBusinessError("CAMPAIGN_NOT_FOUND", "Campaign not found", ErrCampaignNotFound)
	}
	if campaign.TenantID != tenantID {
		return nil, NewBusinessError("CAMPAIGN_ACCESS_DENIED", "Access denied: campaign belongs to another tenant", ErrCampaignAccessDenied)
	}
	return campaign, nil
}

func (f *CampaignFlowImpl) activeTenant(ctx context.Context, tenantID uint) (*models.Tenant, error) {
	tenant, err := f.directoryRepo.TenantByID(ctx, tenantID)
	if err != nil {
		return nil, NewBusinessError("TENANT_LOOKUP_FAILED", "Failed to lookup tenant", err)
	}
	if tenant == nil {
		return nil, NewBusinessError("TENANT_NOT_FOUND", "Tenant not found", ErrTenantNotFound)
	}
	if !utils.IsTrue(tenant.IsActive) {
		return nil, NewBusinessError("TENANT_INACTIVE", "Tenant is inactive", ErrTenantInactive)
	}
	return tenant, nil
}

func (f *CampaignFlowImpl) validateScheduleTime(t time.Time) error {
	if t.Before(utils.UTCNowAdd(utils.MinScheduleLead)) {
		return NewBusinessError("SCHEDULE_TIME_TOO_SOON", "Schedule time is too soon", ErrScheduleTimeTooSoon)
	}
	return nil
}
