package scheduler

import (
	"context"
	"crypto/hmac"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/phishguard/phishsim/app/services"
	"github.com/phishguard/phishsim/models"
	"github.com/phishguard/phishsim/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type workerFixture struct {
	worker       *WebhookWorker
	webhookRepo  *memWebhookRepo
	deliveryRepo *memDeliveryRepo
	emitter      *services.ChannelEmitter
}

func newWorkerFixture() *workerFixture {
	fx := &workerFixture{
		webhookRepo:  newMemWebhookRepo(),
		deliveryRepo: newMemDeliveryRepo(),
		emitter:      services.NewChannelEmitter(16, nil),
	}
	fx.worker = NewWebhookWorker(fx.webhookRepo, fx.deliveryRepo, fx.emitter, time.Second)
	return fx
}

func (fx *workerFixture) seedWebhook(t *testing.T, url string, events ...string) *models.Webhook {
	t.Helper()
	hook := &models.Webhook{
		ID:               1,
		TenantID:         1,
		URL:              url,
		Secret:           "0011223344556677889900112233445566778899001122334455667788990011",
		SubscribedEvents: events,
		IsActive:         utils.ToPtr(true),
	}
	require.NoError(t, hook.BeforeCreate())
	fx.webhookRepo.put(hook)
	return hook
}

func (fx *workerFixture) seedDelivery(t *testing.T, hook *models.Webhook, attempts int) *models.WebhookDelivery {
	t.Helper()
	delivery := &models.WebhookDelivery{
		WebhookID:     hook.ID,
		SourceEventID: "evt-1",
		EventType:     models.EventPhishingClicked,
		Payload:       []byte(`{"event":"phishing.clicked","data":{}}`),
		Status:        models.WebhookDeliveryStatusPending,
		AttemptCount:  attempts,
		NextRetryAt:   utils.ToPtr(utils.UTCNow()),
	}
	require.NoError(t, delivery.BeforeCreate())
	created, err := fx.deliveryRepo.SaveIdempotent(context.Background(), delivery)
	require.NoError(t, err)
	require.True(t, created)
	return delivery
}

func TestSign(t *testing.T) {
	payload := []byte(`{"event":"phishing.clicked"}`)

	first := Sign("secret", payload)
	second := Sign("secret", payload)
	assert.Equal(t, first, second)
	assert.Len(t, first, 64)

	assert.NotEqual(t, first, Sign("other-secret", payload))
	assert.NotEqual(t, first, Sign("secret", []byte(`{"event":"phishing.opened"}`)))
}

func TestRetryDelay(t *testing.T) {
	tests := []struct {
		attempts int
		want     time.Duration
	}{
		{1, 30 * time.Second},
		{2, time.Minute},
		{3, 2 * time.Minute},
		{4, 4 * time.Minute},
		{5, 8 * time.Minute},
		{8, time.Hour},
		{100, time.Hour},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, retryDelay(tt.attempts), "attempts=%d", tt.attempts)
	}
}

func TestWebhookAttempt(t *testing.T) {
	ctx := context.Background()

	t.Run("SuccessMarksDelivered", func(t *testing.T) {
		fx := newWorkerFixture()

		var gotSignature, gotEventType string
		var gotBody []byte
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotSignature = r.Header.Get(SignatureHeader)
			gotEventType = r.Header.Get(EventTypeHeader)
			gotBody, _ = io.ReadAll(r.Body)
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		hook := fx.seedWebhook(t, server.URL, models.EventPhishingClicked)
		delivery := fx.seedDelivery(t, hook, 0)

		fx.worker.attempt(ctx, delivery)

		stored, err := fx.deliveryRepo.ByID(ctx, delivery.ID)
		require.NoError(t, err)
		assert.Equal(t, models.WebhookDeliveryStatusDelivered, stored.Status)
		assert.Equal(t, 1, stored.AttemptCount)
		assert.Nil(t, stored.NextRetryAt)
		require.NotNil(t, stored.LastStatusCode)
		assert.Equal(t, http.StatusOK, *stored.LastStatusCode)

		assert.Equal(t, models.EventPhishingClicked, gotEventType)
		assert.True(t, hmac.Equal([]byte(Sign(hook.Secret, gotBody)), []byte(gotSignature)))
	})

	t.Run("FailureSchedulesRetry", func(t *testing.T) {
		fx := newWorkerFixture()
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		hook := fx.seedWebhook(t, server.URL, models.EventPhishingClicked)
		delivery := fx.seedDelivery(t, hook, 0)

		before := utils.UTCNow()
		fx.worker.attempt(ctx, delivery)

		stored, err := fx.deliveryRepo.ByID(ctx, delivery.ID)
		require.NoError(t, err)
		assert.Equal(t, models.WebhookDeliveryStatusPending, stored.Status)
		assert.Equal(t, 1, stored.AttemptCount)
		require.NotNil(t, stored.NextRetryAt)
		assert.True(t, stored.NextRetryAt.After(before.Add(29*time.Second)))
		require.NotNil(t, stored.LastError)
		assert.Contains(t, *stored.LastError, "503")
	})

	t.Run("AbandonedAfterMaxAttempts", func(t *testing.T) {
		fx := newWorkerFixture()
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		hook := fx.seedWebhook(t, server.URL, models.EventPhishingClicked)
		delivery := fx.seedDelivery(t, hook, utils.WebhookMaxAttempts-1)

		fx.worker.attempt(ctx, delivery)

		stored, err := fx.deliveryRepo.ByID(ctx, delivery.ID)
		require.NoError(t, err)
		assert.Equal(t, models.WebhookDeliveryStatusAbandoned, stored.Status)
		assert.Equal(t, utils.WebhookMaxAttempts, stored.AttemptCount)
		assert.Nil(t, stored.NextRetryAt)
	})

	t.Run("UnreachableEndpointSchedulesRetry", func(t *testing.T) {
		fx := newWorkerFixture()
		hook := fx.seedWebhook(t, "http://127.0.0.1:1", models.EventPhishingClicked)
		delivery := fx.seedDelivery(t, hook, 0)

		fx.worker.attempt(ctx, delivery)

		stored, err := fx.deliveryRepo.ByID(ctx, delivery.ID)
		require.NoError(t, err)
		assert.Equal(t, models.WebhookDeliveryStatusPending, stored.Status)
		assert.Nil(t, stored.LastStatusCode)
		require.NotNil(t, stored.LastError)
	})
}

func TestWebhookFanOut(t *testing.T) {
	ctx := context.Background()

	t.Run("QueuesOneDeliveryPerSubscriber", func(t *testing.T) {
		fx := newWorkerFixture()
		hook := fx.seedWebhook(t, "https://hooks.acme.test/a", models.EventPhishingClicked)

		other := &models.Webhook{
			ID:               2,
			TenantID:         1,
			URL:              "https://hooks.acme.test/b",
			Secret:           "deadbeef",
			SubscribedEvents: []string{models.EventCampaignStarted},
			IsActive:         utils.ToPtr(true),
		}
		require.NoError(t, other.BeforeCreate())
		fx.webhookRepo.put(other)

		event := services.NewDomainEvent(1, models.EventPhishingClicked, map[string]any{"recipient_id": 3})
		fx.worker.fanOut(ctx, event)

		deliveries, err := fx.deliveryRepo.ByWebhook(ctx, hook.ID, 0, 0)
		require.NoError(t, err)
		require.Len(t, deliveries, 1)
		assert.Equal(t, event.ID, deliveries[0].SourceEventID)
		assert.Equal(t, models.WebhookDeliveryStatusPending, deliveries[0].Status)
		require.NotNil(t, deliveries[0].NextRetryAt)

		var payload deliveryPayload
		require.NoError(t, json.Unmarshal(deliveries[0].Payload, &payload))
		assert.Equal(t, models.EventPhishingClicked, payload.Event)
		assert.Equal(t, hook.UUID.String(), payload.WebhookID)

		// The non-subscribed webhook gets nothing.
		none, err := fx.deliveryRepo.ByWebhook(ctx, other.ID, 0, 0)
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("ReprocessingSameEventIsIdempotent", func(t *testing.T) {
		fx := newWorkerFixture()
		hook := fx.seedWebhook(t, "https://hooks.acme.test/a", models.EventPhishingClicked)

		event := services.NewDomainEvent(1, models.EventPhishingClicked, nil)
		fx.worker.fanOut(ctx, event)
		fx.worker.fanOut(ctx, event)

		deliveries, err := fx.deliveryRepo.ByWebhook(ctx, hook.ID, 0, 0)
		require.NoError(t, err)
		assert.Len(t, deliveries, 1)
	})

	t.Run("InactiveWebhookSkipped", func(t *testing.T) {
		fx := newWorkerFixture()
		hook := fx.seedWebhook(t, "https://hooks.acme.test/a", models.EventPhishingClicked)
		hook.IsActive = utils.ToPtr(false)
		fx.webhookRepo.put(hook)

		fx.worker.fanOut(ctx, services.NewDomainEvent(1, models.EventPhishingClicked, nil))

		deliveries, err := fx.deliveryRepo.ByWebhook(ctx, hook.ID, 0, 0)
		require.NoError(t, err)
		assert.Empty(t, deliveries)
	})
}
