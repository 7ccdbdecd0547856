package scheduler

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/phishguard/phishsim/app/services"
	"github.com/phishguard/phishsim/models"
	"github.com/phishguard/phishsim/repository"
	"github.com/phishguard/phishsim/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	// SignatureHeader carries the hex HMAC-SHA256 of the request body
	SignatureHeader = "X-PhishSim-Signature"

	// EventTypeHeader carries the domain event type
	EventTypeHeader = "X-PhishSim-Event"

	dueBatchSize = 100
)

var (
	webhookAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "phishsim_webhook_attempts_total",
		Help: "Outcome of webhook delivery attempts",
	}, []string{"outcome"})

	webhookAbandonedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "phishsim_webhook_deliveries_abandoned_total",
		Help: "Deliveries abandoned after exhausting all attempts",
	})
)

// deliveryPayload is the JSON body posted to tenant endpoints
type deliveryPayload struct {
	Event     string         `json:"event"`
	Data      map[string]any `json:"data"`
	Timestamp string         `json:"timestamp"`
	WebhookID string         `json:"webhook_id"`
}

// WebhookWorker turns domain events into webhook deliveries and drives the
// retry schedule. Event fan-out and delivery attempts are decoupled: fan-out
// persists one pending delivery per subscribed webhook, and the due poller
// picks deliveries up when their retry time arrives.
type WebhookWorker struct {
	webhookRepo  repository.WebhookRepository
	deliveryRepo repository.WebhookDeliveryRepository
	emitter      *services.ChannelEmitter
	client       *http.Client
	logger       *log.Logger
	pollInterval time.Duration

	mu       sync.Mutex
	inFlight map[uint]struct{}
	logFile  io.Closer
}

// NewWebhookWorker creates a webhook worker
func NewWebhookWorker(
	webhookRepo repository.WebhookRepository,
	deliveryRepo repository.WebhookDeliveryRepository,
	emitter *services.ChannelEmitter,
	pollInterval time.Duration,
) *WebhookWorker {
	if pollInterval <= 0 {
		pollInterval = 15 * time.Second
	}

	w := &WebhookWorker{
		webhookRepo:  webhookRepo,
		deliveryRepo: deliveryRepo,
		emitter:      emitter,
		client:       &http.Client{Timeout: utils.WebhookAttemptTimeout},
		pollInterval: pollInterval,
		inFlight:     make(map[uint]struct{}),
	}
	w.initLogger()
	return w
}

func (w *WebhookWorker) initLogger() {
	rotated := &lumberjack.Logger{
		Filename:   filepath.Join("data", "webhook_worker.log"),
		MaxSize:    50,
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	}
	w.logFile = rotated
	mw := io.MultiWriter(os.Stdout, rotated)
	w.logger = log.New(mw, "webhook ", log.LstdFlags|log.Lmicroseconds|log.LUTC)
}

// Start launches the fan-out consumer and the due poller, returning a stop function
func (w *WebhookWorker) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)

	go w.consume(ctx)

	go func() {
		ticker := time.NewTicker(w.pollInterval)
		defer ticker.Stop()

		w.runDue(ctx)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				w.runDue(ctx)
			}
		}
	}()

	return func() {
		cancel()
		if w.logFile != nil {
			_ = w.logFile.Close()
		}
	}
}

// consume fans each domain event out to the tenant's subscribed webhooks
func (w *WebhookWorker) consume(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.emitter.Events():
			if !ok {
				return
			}
			w.fanOut(ctx, event)
		}
	}
}

// fanOut persists one pending delivery per subscribed webhook. The unique
// (webhook_id, source_event_id) constraint makes re-processing the same event
// a no-op.
func (w *WebhookWorker) fanOut(ctx context.Context, event services.DomainEvent) {
	webhooks, err := w.webhookRepo.ActiveByTenantAndEvent(ctx, event.TenantID, event.Type)
	if err != nil {
		w.logger.Printf("webhook: subscriber lookup failed for event %s: %v", event.ID, err)
		return
	}

	for _, hook := range webhooks {
		payload, err := json.Marshal(deliveryPayload{
			Event:     event.Type,
			Data:      event.Payload,
			Timestamp: event.OccurredAt.Format(time.RFC3339),
			WebhookID: hook.UUID.String(),
		})
		if err != nil {
			w.logger.Printf("webhook: payload marshal failed for event %s: %v", event.ID, err)
			continue
		}

		delivery := &models.WebhookDelivery{
			WebhookID:     hook.ID,
			SourceEventID: event.ID,
			EventType:     event.Type,
			Payload:       payload,
			Status:        models.WebhookDeliveryStatusPending,
			NextRetryAt:   utils.ToPtr(utils.UTCNow()),
		}
		if err := delivery.BeforeCreate(); err != nil {
			continue
		}

		created, err := w.deliveryRepo.SaveIdempotent(ctx, delivery)
		if err != nil {
			w.logger.Printf("webhook: delivery persist failed for event %s: %v", event.ID, err)
			continue
		}
		if created {
			w.logger.Printf("webhook: queued delivery %s (%s) for webhook %d", delivery.UUID, event.Type, hook.ID)
		}
	}
}

// runDue attempts every delivery whose retry time has arrived. Attempts per
// delivery are serialized through the in-flight set so the poller never races
// itself on a slow endpoint.
func (w *WebhookWorker) runDue(ctx context.Context) {
	due, err := w.deliveryRepo.Due(ctx, utils.UTCNow(), dueBatchSize)
	if err != nil {
		w.logger.Printf("webhook: due query failed: %v", err)
		return
	}

	for _, delivery := range due {
		if ctx.Err() != nil {
			return
		}
		if !w.claim(delivery.ID) {
			continue
		}
		w.attempt(ctx, delivery)
		w.release(delivery.ID)
	}
}

func (w *WebhookWorker) claim(id uint) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.inFlight[id]; ok {
		return false
	}
	w.inFlight[id] = struct{}{}
	return true
}

func (w *WebhookWorker) release(id uint) {
	w.mu.Lock()
	delete(w.inFlight, id)
	w.mu.Unlock()
}

// attempt runs one delivery attempt and updates the retry schedule
func (w *WebhookWorker) attempt(ctx context.Context, delivery *models.WebhookDelivery) {
	hook, err := w.webhookRepo.ByID(ctx, delivery.WebhookID)
	if err != nil || hook == nil {
		w.logger.Printf("webhook: delivery %d webhook lookup failed: %v", delivery.ID, err)
		return
	}

	statusCode, attemptErr := w.post(ctx, hook, delivery.Payload, delivery.EventType)

	delivery.AttemptCount++
	delivery.LastStatusCode = nil
	if statusCode != 0 {
		delivery.LastStatusCode = &statusCode
	}
	delivery.LastError = nil
	if attemptErr != nil {
		msg := attemptErr.Error()
		delivery.LastError = &msg
	}

	switch {
	case attemptErr == nil:
		webhookAttemptsTotal.WithLabelValues("delivered").Inc()
		delivery.Status = models.WebhookDeliveryStatusDelivered
		delivery.NextRetryAt = nil
		w.logger.Printf("webhook: delivery %d delivered after %d attempt(s)", delivery.ID, delivery.AttemptCount)

	case delivery.AttemptCount >= utils.WebhookMaxAttempts:
		webhookAttemptsTotal.WithLabelValues("failed").Inc()
		webhookAbandonedTotal.Inc()
		delivery.Status = models.WebhookDeliveryStatusAbandoned
		delivery.NextRetryAt = nil
		w.logger.Printf("webhook: delivery %d abandoned after %d attempts: %v", delivery.ID, delivery.AttemptCount, attemptErr)

	default:
		webhookAttemptsTotal.WithLabelValues("failed").Inc()
		next := utils.UTCNowAdd(retryDelay(delivery.AttemptCount))
		delivery.NextRetryAt = &next
		w.logger.Printf("webhook: delivery %d attempt %d failed, retry at %s: %v",
			delivery.ID, delivery.AttemptCount, next.Format(time.RFC3339), attemptErr)
	}

	if err := delivery.BeforeUpdate(); err != nil {
		return
	}
	if err := w.deliveryRepo.Update(ctx, delivery); err != nil {
		w.logger.Printf("webhook: delivery %d update failed: %v", delivery.ID, err)
	}
}

// post performs the signed HTTP request. Any 2xx counts as delivered; every
// other outcome is a failed attempt.
func (w *WebhookWorker) post(ctx context.Context, hook *models.Webhook, payload []byte, eventType string) (int, error) {
	reqCtx, cancel := context.WithTimeout(ctx, utils.WebhookAttemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, hook.URL, bytes.NewReader(payload))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(EventTypeHeader, eventType)
	req.Header.Set(SignatureHeader, Sign(hook.Secret, payload))

	resp, err := w.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, fmt.Errorf("endpoint returned status %d", resp.StatusCode)
	}
	return resp.StatusCode, nil
}

// Sign computes the hex HMAC-SHA256 signature of a payload
func Sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// retryDelay doubles from the base per completed attempt and is capped
func retryDelay(attempts int) time.Duration {
	delay := utils.WebhookBackoffBase
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay >= utils.WebhookBackoffCap {
			return utils.WebhookBackoffCap
		}
	}
	if delay > utils.WebhookBackoffCap {
		delay = utils.WebhookBackoffCap
	}
	return delay
}
