package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/phishguard/phishsim/app/services"
	"github.com/phishguard/phishsim/models"
)

// memCampaignRepo is a minimal in-memory campaign store for engine tests
type memCampaignRepo struct {
	mu        sync.Mutex
	campaigns map[uint]*models.Campaign
}

func newMemCampaignRepo() *memCampaignRepo {
	return &memCampaignRepo{campaigns: make(map[uint]*models.Campaign)}
}

func (r *memCampaignRepo) put(c *models.Campaign) {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *c
	r.campaigns[c.ID] = &clone
}

func (r *memCampaignRepo) ByID(_ context.Context, id uint) (*models.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.campaigns[id]; ok {
		clone := *c
		return &clone, nil
	}
	return nil, nil
}

func (r *memCampaignRepo) ByUUID(_ context.Context, uuidStr string) (*models.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.campaigns {
		if c.UUID.String() == uuidStr {
			clone := *c
			return &clone, nil
		}
	}
	return nil, nil
}

func (r *memCampaignRepo) Save(_ context.Context, c *models.Campaign) error {
	r.put(c)
	return nil
}

func (r *memCampaignRepo) Update(_ context.Context, c *models.Campaign) error {
	r.put(c)
	return nil
}

func (r *memCampaignRepo) UpdateStatus(_ context.Context, id uint, from, to models.CampaignStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[id]
	if !ok || c.Status != from {
		return false, nil
	}
	c.Status = to
	return true, nil
}

func (r *memCampaignRepo) ByFilter(_ context.Context, _ models.CampaignFilter, _ string, _, _ int) ([]*models.Campaign, error) {
	return nil, nil
}

func (r *memCampaignRepo) Count(_ context.Context, _ models.CampaignFilter) (int64, error) {
	return 0, nil
}

func (r *memCampaignRepo) ScheduledDue(_ context.Context, now time.Time) ([]*models.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Campaign
	for _, c := range r.campaigns {
		if c.Status == models.CampaignStatusScheduled && c.ScheduledAt != nil && !c.ScheduledAt.After(now) {
			clone := *c
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *memCampaignRepo) Running(_ context.Context) ([]*models.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Campaign
	for _, c := range r.campaigns {
		if c.Status == models.CampaignStatusRunning {
			clone := *c
			out = append(out, &clone)
		}
	}
	return out, nil
}

// memRecipientRepo is a minimal in-memory recipient store for engine tests
type memRecipientRepo struct {
	mu         sync.Mutex
	recipients map[uint]*models.Recipient
}

func newMemRecipientRepo() *memRecipientRepo {
	return &memRecipientRepo{recipients: make(map[uint]*models.Recipient)}
}

func (r *memRecipientRepo) put(rec *models.Recipient) {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *rec
	r.recipients[rec.ID] = &clone
}

func (r *memRecipientRepo) ByID(_ context.Context, id uint) (*models.Recipient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.recipients[id]; ok {
		clone := *rec
		return &clone, nil
	}
	return nil, nil
}

func (r *memRecipientRepo) ByToken(_ context.Context, token string) (*models.Recipient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.recipients {
		if rec.Token == token {
			clone := *rec
			return &clone, nil
		}
	}
	return nil, nil
}

func (r *memRecipientRepo) SaveBatch(_ context.Context, recipients []*models.Recipient) error {
	for _, rec := range recipients {
		r.put(rec)
	}
	return nil
}

func (r *memRecipientRepo) NextPending(_ context.Context, campaignID uint) (*models.Recipient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var next *models.Recipient
	for _, rec := range r.recipients {
		if rec.CampaignID == campaignID && rec.SendStatus == models.SendStatusPending {
			if next == nil || rec.ID < next.ID {
				next = rec
			}
		}
	}
	if next == nil {
		return nil, nil
	}
	clone := *next
	return &clone, nil
}

func (r *memRecipientRepo) MarkSent(_ context.Context, id uint, sentAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.recipients[id]
	if !ok || rec.SendStatus != models.SendStatusPending {
		return false, nil
	}
	rec.SendStatus = models.SendStatusSent
	rec.SentAt = &sentAt
	return true, nil
}

func (r *memRecipientRepo) MarkFailed(_ context.Context, id uint) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.recipients[id]
	if !ok || rec.SendStatus != models.SendStatusPending {
		return false, nil
	}
	rec.SendStatus = models.SendStatusFailed
	return true, nil
}

func (r *memRecipientRepo) CountByStatus(_ context.Context, campaignID uint) (map[models.SendStatus]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[models.SendStatus]int64)
	for _, rec := range r.recipients {
		if rec.CampaignID == campaignID {
			counts[rec.SendStatus]++
		}
	}
	return counts, nil
}

func (r *memRecipientRepo) PendingCount(_ context.Context, campaignID uint) (int64, error) {
	counts, _ := r.CountByStatus(context.Background(), campaignID)
	return counts[models.SendStatusPending], nil
}

func (r *memRecipientRepo) ByCampaign(_ context.Context, campaignID uint) ([]*models.Recipient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Recipient
	for _, rec := range r.recipients {
		if rec.CampaignID == campaignID {
			clone := *rec
			out = append(out, &clone)
		}
	}
	return out, nil
}

// memEventRepo records tracking events in memory
type memEventRepo struct {
	mu     sync.Mutex
	events []*models.TrackingEvent
}

func (r *memEventRepo) Save(_ context.Context, event *models.TrackingEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *event
	r.events = append(r.events, &clone)
	return nil
}

func (r *memEventRepo) DistinctRecipientCounts(_ context.Context, _ uint) (map[models.TrackingEventType]int64, error) {
	return nil, nil
}

func (r *memEventRepo) CountsByType(_ context.Context, campaignID uint) (map[models.TrackingEventType]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[models.TrackingEventType]int64)
	for _, e := range r.events {
		if e.CampaignID == campaignID {
			counts[e.EventType]++
		}
	}
	return counts, nil
}

func (r *memEventRepo) ByCampaign(_ context.Context, _ uint, _, _ int) ([]*models.TrackingEvent, error) {
	return nil, nil
}

// memWebhookRepo holds webhook rows for worker tests
type memWebhookRepo struct {
	mu       sync.Mutex
	webhooks map[uint]*models.Webhook
}

func newMemWebhookRepo() *memWebhookRepo {
	return &memWebhookRepo{webhooks: make(map[uint]*models.Webhook)}
}

func (r *memWebhookRepo) put(w *models.Webhook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *w
	r.webhooks[w.ID] = &clone
}

func (r *memWebhookRepo) ByID(_ context.Context, id uint) (*models.Webhook, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if w, ok := r.webhooks[id]; ok {
		clone := *w
		return &clone, nil
	}
	return nil, nil
}

func (r *memWebhookRepo) ByUUID(_ context.Context, _ string) (*models.Webhook, error) {
	return nil, nil
}

func (r *memWebhookRepo) Save(_ context.Context, w *models.Webhook) error {
	r.put(w)
	return nil
}

func (r *memWebhookRepo) Update(_ context.Context, w *models.Webhook) error {
	r.put(w)
	return nil
}

func (r *memWebhookRepo) ActiveByTenantAndEvent(_ context.Context, tenantID uint, eventType string) ([]*models.Webhook, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Webhook
	for _, w := range r.webhooks {
		if w.TenantID == tenantID && w.IsActive != nil && *w.IsActive && w.SubscribesTo(eventType) {
			clone := *w
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *memWebhookRepo) ByTenant(_ context.Context, _ uint) ([]*models.Webhook, error) {
	return nil, nil
}

// memDeliveryRepo holds delivery rows with the idempotency constraint
type memDeliveryRepo struct {
	mu         sync.Mutex
	nextID     uint
	deliveries map[uint]*models.WebhookDelivery
}

func newMemDeliveryRepo() *memDeliveryRepo {
	return &memDeliveryRepo{nextID: 1, deliveries: make(map[uint]*models.WebhookDelivery)}
}

func (r *memDeliveryRepo) ByID(_ context.Context, id uint) (*models.WebhookDelivery, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.deliveries[id]; ok {
		clone := *d
		return &clone, nil
	}
	return nil, nil
}

func (r *memDeliveryRepo) SaveIdempotent(_ context.Context, delivery *models.WebhookDelivery) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.deliveries {
		if d.WebhookID == delivery.WebhookID && d.SourceEventID == delivery.SourceEventID {
			return false, nil
		}
	}
	delivery.ID = r.nextID
	r.nextID++
	clone := *delivery
	r.deliveries[delivery.ID] = &clone
	return true, nil
}

func (r *memDeliveryRepo) Update(_ context.Context, delivery *models.WebhookDelivery) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.deliveries[delivery.ID]; !ok {
		return errors.New("delivery not found")
	}
	clone := *delivery
	r.deliveries[delivery.ID] = &clone
	return nil
}

func (r *memDeliveryRepo) Due(_ context.Context, now time.Time, limit int) ([]*models.WebhookDelivery, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.WebhookDelivery
	for _, d := range r.deliveries {
		if d.Status == models.WebhookDeliveryStatusPending && d.NextRetryAt != nil && !d.NextRetryAt.After(now) {
			clone := *d
			out = append(out, &clone)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (r *memDeliveryRepo) ByWebhook(_ context.Context, webhookID uint, _, _ int) ([]*models.WebhookDelivery, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.WebhookDelivery
	for _, d := range r.deliveries {
		if d.WebhookID == webhookID {
			clone := *d
			out = append(out, &clone)
		}
	}
	return out, nil
}

// recordingEmitter captures emitted domain events
type recordingEmitter struct {
	mu     sync.Mutex
	events []services.DomainEvent
}

func (e *recordingEmitter) Emit(event services.DomainEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event)
}

func (e *recordingEmitter) types() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.events))
	for _, ev := range e.events {
		out = append(out, ev.Type)
	}
	return out
}

// failingTransport always errors
type failingTransport struct{}

func (failingTransport) Send(_ context.Context, _ *services.OutboundEmail) error {
	return errors.New("smtp connection refused")
}
