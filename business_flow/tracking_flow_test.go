package businessflow

import (
	"context"
	"testing"

	"github.com/phishguard/phishsim/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type trackingFlowFixture struct {
	flow          TrackingFlow
	campaignRepo  *fakeCampaignRepo
	recipientRepo *fakeRecipientRepo
	eventRepo     *fakeEventRepo
	auditRepo     *fakeAuditRepo
	emitter       *captureEmitter
}

func newTrackingFlowFixture() *trackingFlowFixture {
	fx := &trackingFlowFixture{
		campaignRepo:  newFakeCampaignRepo(),
		recipientRepo: newFakeRecipientRepo(),
		eventRepo:     newFakeEventRepo(),
		auditRepo:     newFakeAuditRepo(),
		emitter:       &captureEmitter{},
	}
	fx.flow = NewTrackingFlow(fx.recipientRepo, fx.campaignRepo, fx.eventRepo, fx.auditRepo, fx.emitter, nil, nil)
	return fx
}

func (fx *trackingFlowFixture) seed(t *testing.T, settings models.CampaignSettings) *models.Recipient {
	t.Helper()
	campaign := &models.Campaign{
		TenantID:    1,
		Name:        "Tracked Campaign",
		TemplateRef: "tmpl",
		Status:      models.CampaignStatusRunning,
		Specs: models.TargetGroupSpecs{
			{Type: models.TargetGroupSpecDepartment, Values: []string{"finance"}},
		},
		Settings: settings,
	}
	require.NoError(t, campaign.BeforeCreate())
	campaign.Status = models.CampaignStatusRunning
	require.NoError(t, fx.campaignRepo.Save(context.Background(), campaign))

	recipient := &models.Recipient{
		CampaignID: campaign.ID,
		UserID:     7,
		Email:      "alice@acme.test",
		Token:      "tok-alice",
		SendStatus: models.SendStatusSent,
	}
	require.NoError(t, recipient.BeforeCreate())
	require.NoError(t, fx.recipientRepo.SaveBatch(context.Background(), []*models.Recipient{recipient}))
	return recipient
}

func allTracking() models.CampaignSettings {
	return models.CampaignSettings{
		TrackOpens:          true,
		TrackClicks:         true,
		CaptureCredentials:  true,
		SendRatePerHour:     100,
		TrainingRedirectURL: "https://training.acme.test/awareness",
	}
}

func TestRecordEvent(t *testing.T) {
	ctx := context.Background()

	t.Run("RecordsOpen", func(t *testing.T) {
		fx := newTrackingFlowFixture()
		recipient := fx.seed(t, allTracking())

		outcome, err := fx.flow.RecordEvent(ctx, recipient.Token, models.TrackingEventOpened, NewClientMetadata("192.0.2.1", "Mozilla/5.0"))
		require.NoError(t, err)
		assert.True(t, outcome.Recorded)

		counts, err := fx.eventRepo.CountsByType(ctx, recipient.CampaignID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), counts[models.TrackingEventOpened])
		assert.Contains(t, fx.emitter.types(), models.EventPhishingOpened)
	})

	t.Run("RepeatedOpensAppend", func(t *testing.T) {
		fx := newTrackingFlowFixture()
		recipient := fx.seed(t, allTracking())

		for i := 0; i < 3; i++ {
			_, err := fx.flow.RecordEvent(ctx, recipient.Token, models.TrackingEventOpened, nil)
			require.NoError(t, err)
		}

		counts, err := fx.eventRepo.CountsByType(ctx, recipient.CampaignID)
		require.NoError(t, err)
		assert.Equal(t, int64(3), counts[models.TrackingEventOpened])

		distinct, err := fx.eventRepo.DistinctRecipientCounts(ctx, recipient.CampaignID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), distinct[models.TrackingEventOpened])
	})

	t.Run("ClickReturnsRedirect", func(t *testing.T) {
		fx := newTrackingFlowFixture()
		recipient := fx.seed(t, allTracking())

		outcome, err := fx.flow.RecordEvent(ctx, recipient.Token, models.TrackingEventClicked, nil)
		require.NoError(t, err)
		assert.True(t, outcome.Recorded)
		assert.Equal(t, "https://training.acme.test/awareness", outcome.RedirectURL)
	})

	t.Run("UnknownTokenIsAudited", func(t *testing.T) {
		fx := newTrackingFlowFixture()
		fx.seed(t, allTracking())

		_, err := fx.flow.RecordEvent(ctx, "no-such-token", models.TrackingEventOpened, nil)
		require.Error(t, err)
		assert.True(t, IsUnknownToken(err))
		assert.Contains(t, fx.auditRepo.actions(), models.AuditActionUnknownTrackingToken)
		assert.Empty(t, fx.emitter.types())
	})

	t.Run("OpenTrackingDisabled", func(t *testing.T) {
		fx := newTrackingFlowFixture()
		settings := allTracking()
		settings.TrackOpens = false
		recipient := fx.seed(t, settings)

		outcome, err := fx.flow.RecordEvent(ctx, recipient.Token, models.TrackingEventOpened, nil)
		require.NoError(t, err)
		assert.False(t, outcome.Recorded)

		counts, err := fx.eventRepo.CountsByType(ctx, recipient.CampaignID)
		require.NoError(t, err)
		assert.Zero(t, counts[models.TrackingEventOpened])
		assert.Empty(t, fx.emitter.types())
	})

	t.Run("ClickRedirectSurvivesDisabledTracking", func(t *testing.T) {
		fx := newTrackingFlowFixture()
		settings := allTracking()
		settings.TrackClicks = false
		recipient := fx.seed(t, settings)

		outcome, err := fx.flow.RecordEvent(ctx, recipient.Token, models.TrackingEventClicked, nil)
		require.NoError(t, err)
		assert.False(t, outcome.Recorded)
		assert.Equal(t, "https://training.acme.test/awareness", outcome.RedirectURL)
	})

	t.Run("CredentialCaptureDisabledByDefault", func(t *testing.T) {
		fx := newTrackingFlowFixture()
		settings := allTracking()
		settings.CaptureCredentials = false
		recipient := fx.seed(t, settings)

		outcome, err := fx.flow.RecordEvent(ctx, recipient.Token, models.TrackingEventCredentialSubmitted, nil)
		require.NoError(t, err)
		assert.False(t, outcome.Recorded)
	})

	t.Run("ReportAlwaysRecorded", func(t *testing.T) {
		fx := newTrackingFlowFixture()
		settings := models.CampaignSettings{SendRatePerHour: 100}
		recipient := fx.seed(t, settings)

		outcome, err := fx.flow.RecordEvent(ctx, recipient.Token, models.TrackingEventReported, nil)
		require.NoError(t, err)
		assert.True(t, outcome.Recorded)
		assert.Contains(t, fx.emitter.types(), models.EventPhishingReported)
	})

	t.Run("InvalidEventType", func(t *testing.T) {
		fx := newTrackingFlowFixture()
		recipient := fx.seed(t, allTracking())

		_, err := fx.flow.RecordEvent(ctx, recipient.Token, "forwarded", nil)
		require.Error(t, err)
		assert.True(t, IsUnknownEventType(err))
	})

	t.Run("EmptyTokenIsUnknown", func(t *testing.T) {
		fx := newTrackingFlowFixture()
		fx.seed(t, allTracking())

		_, err := fx.flow.RecordEvent(ctx, "", models.TrackingEventOpened, nil)
		require.Error(t, err)
		assert.True(t, IsUnknownToken(err))
	})

	t.Run("ClientMetadataStored", func(t *testing.T) {
		fx := newTrackingFlowFixture()
		recipient := fx.seed(t, allTracking())

		_, err := fx.flow.RecordEvent(ctx, recipient.Token, models.TrackingEventClicked, NewClientMetadata("198.51.100.7", "curl/8.0"))
		require.NoError(t, err)

		events, err := fx.eventRepo.ByCampaign(ctx, recipient.CampaignID, 10, 0)
		require.NoError(t, err)
		require.Len(t, events, 1)
		require.NotNil(t, events[0].IPAddress)
		assert.Equal(t, "198.51.100.7", *events[0].IPAddress)
		require.NotNil(t, events[0].UserAgent)
		assert.Equal(t, "curl/8.0", *events[0].UserAgent)
	})
}
