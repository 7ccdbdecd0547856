package businessflow

import (
	"context"

	"github.com/phishguard/phishsim/app/dto"
	"github.com/phishguard/phishsim/models"
	"github.com/phishguard/phishsim/repository"
)

// StatsFlow computes point-in-time campaign outcome summaries
type StatsFlow interface {
	CampaignStats(ctx context.Context, campaignUUID string, tenantID uint) (*dto.CampaignStatsResponse, error)
	CampaignReport(ctx context.Context, campaignUUID string, tenantID uint) (*dto.CampaignStatsResponse, []dto.CampaignReportRow, error)
}

// StatsFlowImpl implements the stats aggregator on top of the recipient table
// and the append-only event log
type StatsFlowImpl struct {
	campaignRepo  repository.CampaignRepository
	recipientRepo repository.RecipientRepository
	eventRepo     repository.TrackingEventRepository
}

// NewStatsFlow creates a stats flow instance
func NewStatsFlow(
	campaignRepo repository.CampaignRepository,
	recipientRepo repository.RecipientRepository,
	eventRepo repository.TrackingEventRepository,
) StatsFlow {
	return &StatsFlowImpl{
		campaignRepo:  campaignRepo,
		recipientRepo: recipientRepo,
		eventRepo:     eventRepo,
	}
}

// CampaignStats aggregates send outcomes and distinct-recipient interaction
// counts. Interaction counts dedupe by recipient so five opens by one person
// count once, and all rates share total recipients as the denominator.
func (f *StatsFlowImpl) CampaignStats(ctx context.Context, campaignUUID string, tenantID uint) (*dto.CampaignStatsResponse, error) {
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

	sendCounts, err := f.recipientRepo.CountByStatus(ctx, campaign.ID)
	if err != nil {
		return nil, NewBusinessError("STATS_AGGREGATION_FAILED", "Failed to aggregate send counts", err)
	}

	interactions, err := f.eventRepo.DistinctRecipientCounts(ctx, campaign.ID)
	if err != nil {
		return nil, NewBusinessError("STATS_AGGREGATION_FAILED", "Failed to aggregate interaction counts", err)
	}

	stats := &dto.CampaignStatsResponse{
		UUID:                campaign.UUID.String(),
		Status:              string(campaign.Status),
		Sent:                sendCounts[models.SendStatusSent],
		Failed:              sendCounts[models.SendStatusFailed],
		Pending:             sendCounts[models.SendStatusPending],
		Delivered:           interactions[models.TrackingEventDelivered],
		Opened:              interactions[models.TrackingEventOpened],
		Clicked:             interactions[models.TrackingEventClicked],
		CredentialSubmitted: interactions[models.TrackingEventCredentialSubmitted],
		Reported:            interactions[models.TrackingEventReported],
	}
	stats.TotalRecipients = stats.Sent + stats.Failed + stats.Pending

	if stats.TotalRecipients > 0 {
		total := float64(stats.TotalRecipients)
		stats.DeliveryRate = float64(stats.Delivered) / total
		stats.OpenRate = float64(stats.Opened) / total
		stats.ClickRate = float64(stats.Clicked) / total
		stats.CredentialRate = float64(stats.CredentialSubmitted) / total
		stats.ReportRate = float64(stats.Reported) / total
	}

	return stats, nil
}

// CampaignReport returns the stats summary plus one row per recipient for
// the exported report
func (f *StatsFlowImpl) CampaignReport(ctx context.Context, campaignUUID string, tenantID uint) (*dto.CampaignStatsResponse, []dto.CampaignReportRow, error) {
	stats, err := f.CampaignStats(ctx, campaignUUID, tenantID)
	if err != nil {
		return nil, nil, err
	}

	campaign, err := f.campaignRepo.ByUUID(ctx, campaignUUID)
	if err != nil || campaign == nil {
		return nil, nil, NewBusinessError("CAMPAIGN_LOOKUP_FAILED", "Failed to lookup campaign", err)
	}

	recipients, err := f.recipientRepo.ByCampaign(ctx, campaign.ID)
	if err != nil {
		return nil, nil, NewBusinessError("STATS_AGGREGATION_FAILED", "Failed to list recipients", err)
	}

	rows := make([]dto.CampaignReportRow, 0, len(recipients))
	for _, r := range recipients {
		rows = append(rows, dto.CampaignReportRow{
			Email:      r.Email,
			SendStatus: string(r.SendStatus),
			SentAt:     r.SentAt,
		})
	}

	return stats, rows, nil
}
