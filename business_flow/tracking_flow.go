package businessflow

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/phishguard/phishsim/app/services"
	"github.com/phishguard/phishsim/models"
	"github.com/phishguard/phishsim/repository"
	"github.com/redis/go-redis/v9"
)

const (
	trackingTokenCachePrefix = "phishsim:token:"
	trackingTokenCacheTTL    = 24 * time.Hour
)

// TrackingOutcome tells the handler what to serve after recording (or
// silently discarding) an interaction. RedirectURL is set for click events
// when the campaign configures a training landing page.
type TrackingOutcome struct {
	Recorded    bool
	RedirectURL string
}

// TrackingFlow ingests recipient interaction events arriving on the public
// tracking endpoints. Unknown tokens and disabled event kinds are swallowed
// without observable difference so the endpoint cannot be used to probe for
// valid tokens.
type TrackingFlow interface {
	RecordEvent(ctx context.Context, token string, eventType models.TrackingEventType, metadata *ClientMetadata) (*TrackingOutcome, error)
}

// TrackingFlowImpl implements the tracking pipeline
type TrackingFlowImpl struct {
	recipientRepo repository.RecipientRepository
	campaignRepo  repository.CampaignRepository
	eventRepo     repository.TrackingEventRepository
	auditRepo     repository.AuditLogRepository
	emitter       services.EventEmitter
	redisClient   *redis.Client
	logger        *log.Logger
}

// NewTrackingFlow creates a tracking flow instance. The redis client is
// optional; without it every token lookup hits the database.
func NewTrackingFlow(
	recipientRepo repository.RecipientRepository,
	campaignRepo repository.CampaignRepository,
	eventRepo repository.TrackingEventRepository,
	auditRepo repository.AuditLogRepository,
	emitter services.EventEmitter,
	redisClient *redis.Client,
	logger *log.Logger,
) TrackingFlow {
	if logger == nil {
		logger = log.Default()
	}
	return &TrackingFlowImpl{
		recipientRepo: recipientRepo,
		campaignRepo:  campaignRepo,
		eventRepo:     eventRepo,
		auditRepo:     auditRepo,
		emitter:       emitter,
		redisClient:   redisClient,
		logger:        logger,
	}
}

// cachedRecipient is the redis representation of a resolved token
type cachedRecipient struct {
	RecipientID uint `json:"recipient_id"`
	CampaignID  uint `json:"campaign_id"`
	UserID      uint `json:"user_id"`
}

// RecordEvent resolves the token, appends the event to the log and emits the
// matching domain event. The event log is append-only: a recipient opening the
// same email five times produces five rows.
func (f *TrackingFlowImpl) RecordEvent(ctx context.Context, token string, eventType models.TrackingEventType, metadata *ClientMetadata) (*TrackingOutcome, error) {
	if !eventType.Valid() {
		return nil, NewBusinessError("UNKNOWN_EVENT_TYPE", "Unknown tracking event type", ErrUnknownEventType)
	}

	recipient, err := f.resolveToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if recipient == nil {
		msg := fmt.Sprintf("Tracking request with unknown token for event %s", eventType)
		_ = createAuditLog(ctx, f.auditRepo, 0, models.AuditActionUnknownTrackingToken, msg, false, nil, metadata)
		return nil, NewBusinessError("UNKNOWN_TOKEN", "Unknown tracking token", ErrUnknownToken)
	}

	campaign, err := f.campaignRepo.ByID(ctx, recipient.CampaignID)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_LOOKUP_FAILED", "Failed to lookup campaign", err)
	}
	if campaign == nil {
		return nil, NewBusinessError("CAMPAIGN_NOT_FOUND", "Campaign not found", ErrCampaignNotFound)
	}

	outcome := &TrackingOutcome{}
	if eventType == models.TrackingEventClicked {
		outcome.RedirectURL = campaign.Settings.TrainingRedirectURL
	}

	if !trackingEnabled(campaign.Settings, eventType) {
		return outcome, nil
	}

	event := &models.TrackingEvent{
		CampaignID:  campaign.ID,
		RecipientID: recipient.ID,
		EventType:   eventType,
	}
	if metadata != nil {
		event.IPAddress = metadata.IPAddress
		event.UserAgent = metadata.UserAgent
	}
	if err := event.BeforeCreate(); err != nil {
		return nil, NewBusinessError("EVENT_RECORD_FAILED", "Failed to record tracking event", err)
	}
	if err := f.eventRepo.Save(ctx, event); err != nil {
		return nil, NewBusinessError("EVENT_RECORD_FAILED", "Failed to record tracking event", err)
	}

	f.emitter.Emit(services.NewDomainEvent(campaign.TenantID, domainEventFor(eventType), map[string]any{
		"campaign_uuid": campaign.UUID.String(),
		"recipient_id":  recipient.ID,
		"user_id":       recipient.UserID,
		"event_type":    string(eventType),
		"occurred_at":   event.CreatedAt.Format(time.RFC3339),
	}))

	outcome.Recorded = true
	return outcome, nil
}

// resolveToken checks redis first, then the database. A nil recipient with a
// nil error means the token is unknown.
func (f *TrackingFlowImpl) resolveToken(ctx context.Context, token string) (*models.Recipient, error) {
	if token == "" {
		return nil, nil
	}

	if cached := f.cacheGet(ctx, token); cached != nil {
		return &models.Recipient{
			ID:         cached.RecipientID,
			CampaignID: cached.CampaignID,
			UserID:     cached.UserID,
			Token:      token,
		}, nil
	}

	recipient, err := f.recipientRepo.ByToken(ctx, token)
	if err != nil {
		return nil, NewBusinessError("RECIPIENT_LOOKUP_FAILED", "Failed to lookup recipient", err)
	}
	if recipient == nil {
		return nil, nil
	}

	f.cacheSet(ctx, token, recipient)
	return recipient, nil
}

func (f *TrackingFlowImpl) cacheGet(ctx context.Context, token string) *cachedRecipient {
	if f.redisClient == nil {
		return nil
	}
	raw, err := f.redisClient.Get(ctx, trackingTokenCachePrefix+token).Bytes()
	if err != nil {
		if err != redis.Nil {
			f.logger.Printf("tracking: token cache read failed: %v", err)
		}
		return nil
	}
	var cached cachedRecipient
	if err := json.Unmarshal(raw, &cached); err != nil {
		return nil
	}
	return &cached
}

func (f *TrackingFlowImpl) cacheSet(ctx context.Context, token string, recipient *models.Recipient) {
	if f.redisClient == nil {
		return
	}
	raw, err := json.Marshal(cachedRecipient{
		RecipientID: recipient.ID,
		CampaignID:  recipient.CampaignID,
		UserID:      recipient.UserID,
	})
	if err != nil {
		return
	}
	if err := f.redisClient.Set(ctx, trackingTokenCachePrefix+token, raw, trackingTokenCacheTTL).Err(); err != nil {
		f.logger.Printf("tracking: token cache write failed: %v", err)
	}
}

// trackingEnabled gates event kinds on the campaign's settings snapshot
func trackingEnabled(settings models.CampaignSettings, eventType models.TrackingEventType) bool {
	switch eventType {
	case models.TrackingEventOpened:
		return settings.TrackOpens
	case models.TrackingEventClicked:
		return settings.TrackClicks
	case models.TrackingEventCredentialSubmitted:
		return settings.CaptureCredentials
	default:
		return true
	}
}

// domainEventFor maps a tracking event type to its webhook-facing event name
func domainEventFor(eventType models.TrackingEventType) string {
	switch eventType {
	case models.TrackingEventDelivered:
		return models.EventPhishingDelivered
	case models.TrackingEventOpened:
		return models.EventPhishingOpened
	case models.TrackingEventClicked:
		return models.EventPhishingClicked
	case models.TrackingEventCredentialSubmitted:
		return models.EventPhishingCredentialSubmitted
	case models.TrackingEventReported:
		return models.EventPhishingReported
	default:
		return string(eventType)
	}
}
