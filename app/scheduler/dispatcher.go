package scheduler

import (
	"context"
	"io"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/phishguard/phishsim/app/services"
	"github.com/phishguard/phishsim/models"
	"github.com/phishguard/phishsim/repository"
	"github.com/phishguard/phishsim/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	sendsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "phishsim_dispatch_sends_total",
		Help: "Outcome of per-recipient dispatch attempts",
	}, []string{"outcome"})

	campaignsCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "phishsim_campaigns_completed_total",
		Help: "Campaigns whose recipient queue drained to completion",
	})
)

// StartScheduledFunc launches a due scheduled campaign. Injected by the
// composition root so the scheduler does not depend on the business flow
// package.
type StartScheduledFunc func(ctx context.Context, campaignID uint) error

// Engine drives per-campaign send loops. One goroutine per running campaign
// claims pending recipients in order, paced by the campaign's token bucket,
// and observes the campaign status between claims so pause and cancel take
// effect at the next checkpoint.
type Engine struct {
	campaignRepo  repository.CampaignRepository
	recipientRepo repository.RecipientRepository
	eventRepo     repository.TrackingEventRepository
	transport     services.EmailTransport
	links         *services.TrackingLinkBuilder
	emitter       services.EventEmitter
	startFn       StartScheduledFunc
	logger        *log.Logger
	pollInterval  time.Duration

	mu      sync.Mutex
	ctx     context.Context
	active  map[uint]struct{}
	logFile io.Closer
}

// NewEngine creates a dispatch engine
func NewEngine(
	campaignRepo repository.CampaignRepository,
	recipientRepo repository.RecipientRepository,
	eventRepo repository.TrackingEventRepository,
	transport services.EmailTransport,
	links *services.TrackingLinkBuilder,
	emitter services.EventEmitter,
	pollInterval time.Duration,
) *Engine {
	if pollInterval <= 0 {
		pollInterval = time.Minute
	}

	e := &Engine{
		campaignRepo:  campaignRepo,
		recipientRepo: recipientRepo,
		eventRepo:     eventRepo,
		transport:     transport,
		links:         links,
		emitter:       emitter,
		pollInterval:  pollInterval,
		active:        make(map[uint]struct{}),
	}
	e.initLogger()
	return e
}

// SetStartScheduledFunc wires the launch path for due scheduled campaigns.
// Must be called before Start.
func (e *Engine) SetStartScheduledFunc(fn StartScheduledFunc) {
	e.startFn = fn
}

// initLogger configures a logger writing to stdout and a rotated file under data/
func (e *Engine) initLogger() {
	rotated := &lumberjack.Logger{
		Filename:   filepath.Join("data", "dispatcher.log"),
		MaxSize:    50,
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	}
	e.logFile = rotated
	mw := io.MultiWriter(os.Stdout, rotated)
	e.logger = log.New(mw, "dispatcher ", log.LstdFlags|log.Lmicroseconds|log.LUTC)
}

// Start resumes send loops for campaigns already running, begins polling for
// due scheduled campaigns, and returns a stop function
func (e *Engine) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)

	e.mu.Lock()
	e.ctx = ctx
	e.mu.Unlock()

	if err := e.resumeRunning(ctx); err != nil {
		e.logger.Printf("dispatcher: resume failed: %v", err)
	}

	go func() {
		ticker := time.NewTicker(e.pollInterval)
		defer ticker.Stop()

		e.startDue(ctx)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				e.startDue(ctx)
			}
		}
	}()

	return func() {
		cancel()
		if e.logFile != nil {
			_ = e.logFile.Close()
		}
	}
}

// Launch begins (or resumes) the send loop for a running campaign.
// Launching a campaign that already has an active loop is a no-op.
func (e *Engine) Launch(campaignID uint) {
	e.mu.Lock()
	ctx := e.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := e.active[campaignID]; ok {
		e.mu.Unlock()
		return
	}
	e.active[campaignID] = struct{}{}
	e.mu.Unlock()

	go func() {
		defer func() {
			e.mu.Lock()
			delete(e.active, campaignID)
			e.mu.Unlock()
		}()
		e.run(ctx, campaignID)
	}()
}

// resumeRunning restarts send loops after a process restart
func (e *Engine) resumeRunning(ctx context.Context) error {
	campaigns, err := e.campaignRepo.Running(ctx)
	if err != nil {
		return err
	}
	for _, c := range campaigns {
		e.logger.Printf("dispatcher: resuming campaign %d (%s)", c.ID, c.UUID)
		e.Launch(c.ID)
	}
	return nil
}

// startDue launches scheduled campaigns whose schedule time has passed
func (e *Engine) startDue(ctx context.Context) {
	if e.startFn == nil {
		return
	}

	due, err := e.campaignRepo.ScheduledDue(ctx, utils.UTCNow())
	if err != nil {
		e.logger.Printf("dispatcher: listing due campaigns failed: %v", err)
		return
	}

	for _, c := range due {
		e.logger.Printf("dispatcher: starting due campaign %d (%s)", c.ID, c.UUID)
		if err := e.startFn(ctx, c.ID); err != nil {
			e.logger.Printf("dispatcher: starting campaign %d failed: %v", c.ID, err)
		}
	}
}

// run is one campaign's send loop. The loop re-reads the campaign status
// before every claim: pause and cancel are detected here, never mid-send.
func (e *Engine) run(ctx context.Context, campaignID uint) {
	campaign, err := e.campaignRepo.ByID(ctx, campaignID)
	if err != nil || campaign == nil {
		e.logger.Printf("dispatcher: campaign %d lookup failed: %v", campaignID, err)
		return
	}

	rate := campaign.Settings.SendRatePerHour
	if rate == 0 {
		rate = utils.DefaultSendRatePerHour
	}
	bucket := NewTokenBucket(rate)
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(campaignID)))

	e.logger.Printf("dispatcher: campaign %d loop started, rate=%d/h", campaignID, rate)

	for {
		if ctx.Err() != nil {
			return
		}

		campaign, err = e.campaignRepo.ByID(ctx, campaignID)
		if err != nil {
			e.logger.Printf("dispatcher: campaign %d status check failed: %v", campaignID, err)
			return
		}
		if campaign == nil || campaign.Status != models.CampaignStatusRunning {
			e.logger.Printf("dispatcher: campaign %d no longer running, loop exits", campaignID)
			return
		}

		recipient, err := e.recipientRepo.NextPending(ctx, campaignID)
		if err != nil {
			e.logger.Printf("dispatcher: campaign %d claim failed: %v", campaignID, err)
			return
		}
		if recipient == nil {
			e.complete(ctx, campaign)
			return
		}

		if err := bucket.Wait(ctx); err != nil {
			return
		}
		if campaign.Settings.RandomizeSendTimes {
			if !sleepCtx(ctx, sendJitter(rate, rng)) {
				return
			}
		}

		e.dispatch(ctx, campaign, recipient)
	}
}

// dispatch sends one email with bounded transport retries and records the
// outcome. A recipient is marked exactly once; retry exhaustion marks failed
// and the loop moves on.
func (e *Engine) dispatch(ctx context.Context, campaign *models.Campaign, recipient *models.Recipient) {
	email := &services.OutboundEmail{
		To:           recipient.Email,
		Subject:      campaign.Name,
		TemplateRef:  campaign.TemplateRef,
		TrackingURL:  e.links.ClickURL(recipient.Token),
		OpenPixelURL: e.links.OpenPixelURL(recipient.Token),
		ReportURL:    e.links.ReportURL(recipient.Token),
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), utils.SendRetryAttempts-1), ctx)
	err := backoff.Retry(func() error {
		return e.transport.Send(ctx, email)
	}, policy)

	if err != nil {
		sendsTotal.WithLabelValues("failed").Inc()
		e.logger.Printf("dispatcher: campaign %d recipient %d send failed: %v", campaign.ID, recipient.ID, err)
		if _, err := e.recipientRepo.MarkFailed(ctx, recipient.ID); err != nil {
			e.logger.Printf("dispatcher: campaign %d recipient %d mark failed error: %v", campaign.ID, recipient.ID, err)
		}
		return
	}

	sentAt := utils.UTCNow()
	marked, err := e.recipientRepo.MarkSent(ctx, recipient.ID, sentAt)
	if err != nil {
		e.logger.Printf("dispatcher: campaign %d recipient %d mark sent error: %v", campaign.ID, recipient.ID, err)
		return
	}
	if !marked {
		// Someone else already finalized this recipient
		return
	}
	sendsTotal.WithLabelValues("sent").Inc()

	event := &models.TrackingEvent{
		CampaignID:  campaign.ID,
		RecipientID: recipient.ID,
		EventType:   models.TrackingEventDelivered,
	}
	if err := event.BeforeCreate(); err == nil {
		if err := e.eventRepo.Save(ctx, event); err != nil {
			e.logger.Printf("dispatcher: campaign %d recipient %d delivered event error: %v", campaign.ID, recipient.ID, err)
		}
	}

	e.emitter.Emit(services.NewDomainEvent(campaign.TenantID, models.EventPhishingDelivered, map[string]any{
		"campaign_uuid": campaign.UUID.String(),
		"recipient_id":  recipient.ID,
		"user_id":       recipient.UserID,
		"sent_at":       sentAt.Format(time.RFC3339),
	}))
}

// complete moves a drained campaign to completed. The guarded update loses
// gracefully to a concurrent cancel.
func (e *Engine) complete(ctx context.Context, campaign *models.Campaign) {
	moved, err := e.campaignRepo.UpdateStatus(ctx, campaign.ID, models.CampaignStatusRunning, models.CampaignStatusCompleted)
	if err != nil {
		e.logger.Printf("dispatcher: campaign %d completion failed: %v", campaign.ID, err)
		return
	}
	if !moved {
		return
	}
	campaignsCompletedTotal.Inc()
	e.logger.Printf("dispatcher: campaign %d completed", campaign.ID)

	e.emitter.Emit(services.NewDomainEvent(campaign.TenantID, models.EventCampaignCompleted, map[string]any{
		"campaign_uuid": campaign.UUID.String(),
		"name":          campaign.Name,
	}))
}

// sleepCtx sleeps for d unless the context ends first
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
