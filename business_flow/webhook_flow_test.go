package businessflow

import (
	"context"
	"testing"

	"github.com/phishguard/phishsim/app/dto"
	"github.com/phishguard/phishsim/models"
	"github.com/phishguard/phishsim/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type webhookFlowFixture struct {
	flow         WebhookFlow
	webhookRepo  *fakeWebhookRepo
	deliveryRepo *fakeDeliveryRepo
	auditRepo    *fakeAuditRepo
}

func newWebhookFlowFixture() *webhookFlowFixture {
	fx := &webhookFlowFixture{
		webhookRepo:  newFakeWebhookRepo(),
		deliveryRepo: newFakeDeliveryRepo(),
		auditRepo:    newFakeAuditRepo(),
	}
	fx.flow = NewWebhookFlow(fx.webhookRepo, fx.deliveryRepo, fx.auditRepo)
	return fx
}

func TestRegisterWebhook(t *testing.T) {
	ctx := context.Background()

	t.Run("GeneratesSecret", func(t *testing.T) {
		fx := newWebhookFlowFixture()

		resp, err := fx.flow.RegisterWebhook(ctx, &dto.RegisterWebhookRequest{
			TenantID:         1,
			URL:              "https://hooks.acme.test/phishsim",
			SubscribedEvents: []string{models.EventCampaignStarted, models.EventPhishingClicked},
		}, nil)
		require.NoError(t, err)
		assert.NotEmpty(t, resp.UUID)
		assert.Len(t, resp.Secret, 64)
		assert.Contains(t, fx.auditRepo.actions(), models.AuditActionWebhookRegistered)
	})

	t.Run("SecretNotListed", func(t *testing.T) {
		fx := newWebhookFlowFixture()

		_, err := fx.flow.RegisterWebhook(ctx, &dto.RegisterWebhookRequest{
			TenantID:         1,
			URL:              "https://hooks.acme.test/phishsim",
			SubscribedEvents: []string{models.EventCampaignStarted},
		}, nil)
		require.NoError(t, err)

		list, err := fx.flow.ListWebhooks(ctx, 1)
		require.NoError(t, err)
		require.Len(t, list.Items, 1)
		assert.True(t, list.Items[0].IsActive)
	})

	t.Run("RejectsUnknownEventType", func(t *testing.T) {
		fx := newWebhookFlowFixture()

		_, err := fx.flow.RegisterWebhook(ctx, &dto.RegisterWebhookRequest{
			TenantID:         1,
			URL:              "https://hooks.acme.test/phishsim",
			SubscribedEvents: []string{"campaign.exploded"},
		}, nil)
		require.Error(t, err)
		assert.True(t, IsUnknownWebhookEvent(err))
	})
}

func TestUpdateWebhook(t *testing.T) {
	ctx := context.Background()

	register := func(t *testing.T, fx *webhookFlowFixture) string {
		t.Helper()
		resp, err := fx.flow.RegisterWebhook(ctx, &dto.RegisterWebhookRequest{
			TenantID:         1,
			URL:              "https://hooks.acme.test/phishsim",
			SubscribedEvents: []string{models.EventCampaignStarted},
		}, nil)
		require.NoError(t, err)
		return resp.UUID
	}

	t.Run("UpdatesSubscriptions", func(t *testing.T) {
		fx := newWebhookFlowFixture()
		webhookUUID := register(t, fx)
		events := []string{models.EventPhishingReported}

		_, err := fx.flow.UpdateWebhook(ctx, &dto.UpdateWebhookRequest{
			UUID:             webhookUUID,
			TenantID:         1,
			SubscribedEvents: &events,
		}, nil)
		require.NoError(t, err)

		stored, err := fx.webhookRepo.ByUUID(ctx, webhookUUID)
		require.NoError(t, err)
		assert.Equal(t, []string{models.EventPhishingReported}, []string(stored.SubscribedEvents))
	})

	t.Run("SecretImmutable", func(t *testing.T) {
		fx := newWebhookFlowFixture()
		webhookUUID := register(t, fx)

		before, err := fx.webhookRepo.ByUUID(ctx, webhookUUID)
		require.NoError(t, err)

		url := "https://hooks.acme.test/other"
		_, err = fx.flow.UpdateWebhook(ctx, &dto.UpdateWebhookRequest{
			UUID:     webhookUUID,
			TenantID: 1,
			URL:      &url,
		}, nil)
		require.NoError(t, err)

		after, err := fx.webhookRepo.ByUUID(ctx, webhookUUID)
		require.NoError(t, err)
		assert.Equal(t, before.Secret, after.Secret)
		assert.Equal(t, url, after.URL)
	})

	t.Run("RejectsUnknownEventType", func(t *testing.T) {
		fx := newWebhookFlowFixture()
		webhookUUID := register(t, fx)
		events := []string{"phishing.levitated"}

		_, err := fx.flow.UpdateWebhook(ctx, &dto.UpdateWebhookRequest{
			UUID:             webhookUUID,
			TenantID:         1,
			SubscribedEvents: &events,
		}, nil)
		require.Error(t, err)
		assert.True(t, IsUnknownWebhookEvent(err))
	})

	t.Run("CrossTenantDenied", func(t *testing.T) {
		fx := newWebhookFlowFixture()
		webhookUUID := register(t, fx)
		url := "https://evil.test/steal"

		_, err := fx.flow.UpdateWebhook(ctx, &dto.UpdateWebhookRequest{
			UUID:     webhookUUID,
			TenantID: 2,
			URL:      &url,
		}, nil)
		require.Error(t, err)
		assert.True(t, IsWebhookAccessDenied(err))
	})
}

func TestDeactivateWebhook(t *testing.T) {
	ctx := context.Background()

	t.Run("Deactivates", func(t *testing.T) {
		fx := newWebhookFlowFixture()
		resp, err := fx.flow.RegisterWebhook(ctx, &dto.RegisterWebhookRequest{
			TenantID:         1,
			URL:              "https://hooks.acme.test/phishsim",
			SubscribedEvents: []string{models.EventCampaignStarted},
		}, nil)
		require.NoError(t, err)

		_, err = fx.flow.DeactivateWebhook(ctx, resp.UUID, 1, nil)
		require.NoError(t, err)

		stored, err := fx.webhookRepo.ByUUID(ctx, resp.UUID)
		require.NoError(t, err)
		assert.False(t, utils.IsTrue(stored.IsActive))

		// Deactivated webhooks no longer receive fan-out.
		active, err := fx.webhookRepo.ActiveByTenantAndEvent(ctx, 1, models.EventCampaignStarted)
		require.NoError(t, err)
		assert.Empty(t, active)
	})

	t.Run("UnknownWebhook", func(t *testing.T) {
		fx := newWebhookFlowFixture()

		_, err := fx.flow.DeactivateWebhook(ctx, "7c9e6679-7425-40de-944b-e07fc1f90ae7", 1, nil)
		require.Error(t, err)
		assert.True(t, IsWebhookNotFound(err))
	})
}

func TestListDeliveries(t *testing.T) {
	ctx := context.Background()

	t.Run("ReturnsDeliveryLog", func(t *testing.T) {
		fx := newWebhookFlowFixture()
		resp, err := fx.flow.RegisterWebhook(ctx, &dto.RegisterWebhookRequest{
			TenantID:         1,
			URL:              "https://hooks.acme.test/phishsim",
			SubscribedEvents: []string{models.EventCampaignStarted},
		}, nil)
		require.NoError(t, err)

		stored, err := fx.webhookRepo.ByUUID(ctx, resp.UUID)
		require.NoError(t, err)

		delivery := &models.WebhookDelivery{
			WebhookID:     stored.ID,
			SourceEventID: "evt-1",
			EventType:     models.EventCampaignStarted,
			Payload:       []byte(`{}`),
			Status:        models.WebhookDeliveryStatusPending,
		}
		require.NoError(t, delivery.BeforeCreate())
		created, err := fx.deliveryRepo.SaveIdempotent(ctx, delivery)
		require.NoError(t, err)
		require.True(t, created)

		list, err := fx.flow.ListDeliveries(ctx, resp.UUID, 1, 0, 0)
		require.NoError(t, err)
		require.Len(t, list.Items, 1)
		assert.Equal(t, models.EventCampaignStarted, list.Items[0].EventType)
		assert.Equal(t, 1, list.Page)
		assert.Equal(t, 20, list.PageSize)
	})
}
