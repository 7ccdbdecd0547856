package businessflow

import (
	"context"
	"sync"
	"time"

	"github.com/phishguard/phishsim/app/services"
	"github.com/phishguard/phishsim/models"
)

// fakeDirectoryRepo is an in-memory directory snapshot
type fakeDirectoryRepo struct {
	tenants map[uint]*models.Tenant
	users   []*models.DirectoryUser
}

func newFakeDirectoryRepo() *fakeDirectoryRepo {
	return &fakeDirectoryRepo{tenants: make(map[uint]*models.Tenant)}
}

func (r *fakeDirectoryRepo) TenantByID(_ context.Context, id uint) (*models.Tenant, error) {
	return r.tenants[id], nil
}

func (r *fakeDirectoryRepo) UsersByDepartment(_ context.Context, tenantID uint, department string) ([]*models.DirectoryUser, error) {
	var out []*models.DirectoryUser
	for _, u := range r.users {
		if u.TenantID == tenantID && u.Department == department {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r *fakeDirectoryRepo) UsersByRole(_ context.Context, tenantID uint, role string) ([]*models.DirectoryUser, error) {
	var out []*models.DirectoryUser
	for _, u := range r.users {
		if u.TenantID == tenantID && u.Role == role {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r *fakeDirectoryRepo) UsersByIDs(_ context.Context, tenantID uint, ids []uint) ([]*models.DirectoryUser, error) {
	var out []*models.DirectoryUser
	for _, id := range ids {
		for _, u := range r.users {
			if u.TenantID == tenantID && u.ID == id {
				out = append(out, u)
				break
			}
		}
	}
	return out, nil
}

func (r *fakeDirectoryRepo) DepartmentExists(_ context.Context, tenantID uint, department string) (bool, error) {
	for _, u := range r.users {
		if u.TenantID == tenantID && u.Department == department {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeDirectoryRepo) RoleExists(_ context.Context, tenantID uint, role string) (bool, error) {
	for _, u := range r.users {
		if u.TenantID == tenantID && u.Role == role {
			return true, nil
		}
	}
	return false, nil
}

// fakeCampaignRepo is an in-memory campaign store
type fakeCampaignRepo struct {
	mu        sync.Mutex
	nextID    uint
	campaigns map[uint]*models.Campaign
}

func newFakeCampaignRepo() *fakeCampaignRepo {
	return &fakeCampaignRepo{nextID: 1, campaigns: make(map[uint]*models.Campaign)}
}

func (r *fakeCampaignRepo) ByID(_ context.Context, id uint) (*models.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.campaigns[id]; ok {
		clone := *c
		return &clone, nil
	}
	return nil, nil
}

func (r *fakeCampaignRepo) ByUUID(_ context.Context, uuidStr string) (*models.Campaign, error) {
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

func (r *fakeCampaignRepo) Save(_ context.Context, campaign *models.Campaign) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	campaign.ID = r.nextID
	r.nextID++
	clone := *campaign
	r.campaigns[campaign.ID] = &clone
	return nil
}

func (r *fakeCampaignRepo) Update(_ context.Context, campaign *models.Campaign) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *campaign
	r.campaigns[campaign.ID] = &clone
	return nil
}

func (r *fakeCampaignRepo) UpdateStatus(_ context.Context, id uint, from, to models.CampaignStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[id]
	if !ok || c.Status != from {
		return false, nil
	}
	c.Status = to
	now := time.Now().UTC()
	switch to {
	case models.CampaignStatusRunning:
		if c.StartedAt == nil {
			c.StartedAt = &now
		}
	case models.CampaignStatusCompleted, models.CampaignStatusCancelled:
		c.CompletedAt = &now
	}
	return true, nil
}

func (r *fakeCampaignRepo) ByFilter(_ context.Context, filter models.CampaignFilter, _ string, limit, offset int) ([]*models.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Campaign
	for _, c := range r.campaigns {
		if matchesFilter(c, filter) {
			clone := *c
			out = append(out, &clone)
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeCampaignRepo) Count(_ context.Context, filter models.CampaignFilter) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, c := range r.campaigns {
		if matchesFilter(c, filter) {
			n++
		}
	}
	return n, nil
}

func (r *fakeCampaignRepo) ScheduledDue(_ context.Context, now time.Time) ([]*models.Campaign, error) {
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

func (r *fakeCampaignRepo) Running(_ context.Context) ([]*models.Campaign, error) {
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

func matchesFilter(c *models.Campaign, filter models.CampaignFilter) bool {
	if filter.TenantID != nil && c.TenantID != *filter.TenantID {
		return false
	}
	if filter.Status != nil && c.Status != *filter.Status {
		return false
	}
	return true
}

// fakeRecipientRepo is an in-memory recipient store
type fakeRecipientRepo struct {
	mu         sync.Mutex
	nextID     uint
	recipients map[uint]*models.Recipient
}

func newFakeRecipientRepo() *fakeRecipientRepo {
	return &fakeRecipientRepo{nextID: 1, recipients: make(map[uint]*models.Recipient)}
}

func (r *fakeRecipientRepo) ByID(_ context.Context, id uint) (*models.Recipient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.recipients[id]; ok {
		clone := *rec
		return &clone, nil
	}
	return nil, nil
}

func (r *fakeRecipientRepo) ByToken(_ context.Context, token string) (*models.Recipient, error) {
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

func (r *fakeRecipientRepo) SaveBatch(_ context.Context, recipients []*models.Recipient) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range recipients {
		rec.ID = r.nextID
		r.nextID++
		clone := *rec
		r.recipients[rec.ID] = &clone
	}
	return nil
}

func (r *fakeRecipientRepo) NextPending(_ context.Context, campaignID uint) (*models.Recipient, error) {
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

func (r *fakeRecipientRepo) MarkSent(_ context.Context, id uint, sentAt time.Time) (bool, error) {
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

func (r *fakeRecipientRepo) MarkFailed(_ context.Context, id uint) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.recipients[id]
	if !ok || rec.SendStatus != models.SendStatusPending {
		return false, nil
	}
	rec.SendStatus = models.SendStatusFailed
	return true, nil
}

func (r *fakeRecipientRepo) CountByStatus(_ context.Context, campaignID uint) (map[models.SendStatus]int64, error) {
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

func (r *fakeRecipientRepo) PendingCount(_ context.Context, campaignID uint) (int64, error) {
	counts, _ := r.CountByStatus(context.Background(), campaignID)
	return counts[models.SendStatusPending], nil
}

func (r *fakeRecipientRepo) ByCampaign(_ context.Context, campaignID uint) ([]*models.Recipient, error) {
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

// fakeEventRepo is an in-memory append-only event log
type fakeEventRepo struct {
	mu     sync.Mutex
	events []*models.TrackingEvent
}

func newFakeEventRepo() *fakeEventRepo {
	return &fakeEventRepo{}
}

func (r *fakeEventRepo) Save(_ context.Context, event *models.TrackingEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *event
	clone.ID = uint(len(r.events) + 1)
	r.events = append(r.events, &clone)
	return nil
}

func (r *fakeEventRepo) DistinctRecipientCounts(_ context.Context, campaignID uint) (map[models.TrackingEventType]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := make(map[models.TrackingEventType]map[uint]struct{})
	for _, e := range r.events {
		if e.CampaignID != campaignID {
			continue
		}
		if seen[e.EventType] == nil {
			seen[e.EventType] = make(map[uint]struct{})
		}
		seen[e.EventType][e.RecipientID] = struct{}{}
	}
	counts := make(map[models.TrackingEventType]int64)
	for t, recipients := range seen {
		counts[t] = int64(len(recipients))
	}
	return counts, nil
}

func (r *fakeEventRepo) CountsByType(_ context.Context, campaignID uint) (map[models.TrackingEventType]int64, error) {
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

func (r *fakeEventRepo) ByCampaign(_ context.Context, campaignID uint, limit, offset int) ([]*models.TrackingEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.TrackingEvent
	for _, e := range r.events {
		if e.CampaignID == campaignID {
			clone := *e
			out = append(out, &clone)
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

// fakeAuditRepo records audit entries in memory
type fakeAuditRepo struct {
	mu      sync.Mutex
	entries []*models.AuditLog
}

func newFakeAuditRepo() *fakeAuditRepo {
	return &fakeAuditRepo{}
}

func (r *fakeAuditRepo) Save(_ context.Context, entry *models.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *entry
	r.entries = append(r.entries, &clone)
	return nil
}

func (r *fakeAuditRepo) ByTenant(_ context.Context, tenantID uint, limit, offset int) ([]*models.AuditLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.AuditLog
	for _, e := range r.entries {
		if e.TenantID != nil && *e.TenantID == tenantID {
			clone := *e
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *fakeAuditRepo) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.Action)
	}
	return out
}

// fakeWebhookRepo is an in-memory webhook store
type fakeWebhookRepo struct {
	mu       sync.Mutex
	nextID   uint
	webhooks map[uint]*models.Webhook
}

func newFakeWebhookRepo() *fakeWebhookRepo {
	return &fakeWebhookRepo{nextID: 1, webhooks: make(map[uint]*models.Webhook)}
}

func (r *fakeWebhookRepo) ByID(_ context.Context, id uint) (*models.Webhook, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if w, ok := r.webhooks[id]; ok {
		clone := *w
		return &clone, nil
	}
	return nil, nil
}

func (r *fakeWebhookRepo) ByUUID(_ context.Context, uuidStr string) (*models.Webhook, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, w := range r.webhooks {
		if w.UUID.String() == uuidStr {
			clone := *w
			return &clone, nil
		}
	}
	return nil, nil
}

func (r *fakeWebhookRepo) Save(_ context.Context, webhook *models.Webhook) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	webhook.ID = r.nextID
	r.nextID++
	clone := *webhook
	r.webhooks[webhook.ID] = &clone
	return nil
}

func (r *fakeWebhookRepo) Update(_ context.Context, webhook *models.Webhook) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *webhook
	r.webhooks[webhook.ID] = &clone
	return nil
}

func (r *fakeWebhookRepo) ActiveByTenantAndEvent(_ context.Context, tenantID uint, eventType string) ([]*models.Webhook, error) {
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

func (r *fakeWebhookRepo) ByTenant(_ context.Context, tenantID uint) ([]*models.Webhook, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Webhook
	for _, w := range r.webhooks {
		if w.TenantID == tenantID {
			clone := *w
			out = append(out, &clone)
		}
	}
	return out, nil
}

// fakeDeliveryRepo is an in-memory delivery log with the idempotency constraint
type fakeDeliveryRepo struct {
	mu         sync.Mutex
	nextID     uint
	deliveries map[uint]*models.WebhookDelivery
}

func newFakeDeliveryRepo() *fakeDeliveryRepo {
	return &fakeDeliveryRepo{nextID: 1, deliveries: make(map[uint]*models.WebhookDelivery)}
}

func (r *fakeDeliveryRepo) ByID(_ context.Context, id uint) (*models.WebhookDelivery, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.deliveries[id]; ok {
		clone := *d
		return &clone, nil
	}
	return nil, nil
}

func (r *fakeDeliveryRepo) SaveIdempotent(_ context.Context, delivery *models.WebhookDelivery) (bool, error) {
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

func (r *fakeDeliveryRepo) Update(_ context.Context, delivery *models.WebhookDelivery) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *delivery
	r.deliveries[delivery.ID] = &clone
	return nil
}

func (r *fakeDeliveryRepo) Due(_ context.Context, now time.Time, limit int) ([]*models.WebhookDelivery, error) {
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

func (r *fakeDeliveryRepo) ByWebhook(_ context.Context, webhookID uint, limit, offset int) ([]*models.WebhookDelivery, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.WebhookDelivery
	for _, d := range r.deliveries {
		if d.WebhookID == webhookID {
			clone := *d
			out = append(out, &clone)
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

// captureEmitter records emitted domain events
type captureEmitter struct {
	mu     sync.Mutex
	events []services.DomainEvent
}

func (e *captureEmitter) Emit(event services.DomainEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event)
}

func (e *captureEmitter) types() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.events))
	for _, ev := range e.events {
		out = append(out, ev.Type)
	}
	return out
}

// fakeDispatcher records launched campaign ids
type fakeDispatcher struct {
	mu       sync.Mutex
	launched []uint
}

func (d *fakeDispatcher) Launch(campaignID uint) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.launched = append(d.launched, campaignID)
}

func (d *fakeDispatcher) launchedIDs() []uint {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]uint(nil), d.launched...)
}
