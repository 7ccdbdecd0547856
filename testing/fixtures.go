package testing

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/phishguard/phishsim/models"
	"github.com/phishguard/phishsim/utils"
	"github.com/lib/pq"
)

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

// CreateTestTenant creates an active test tenant
func (tf *TestFixtures) CreateTestTenant(name string) (*models.Tenant, error) {
	tenant := &models.Tenant{
		Name:     name,
		IsActive: utils.ToPtr(true),
	}
	if err := tenant.BeforeCreate(); err != nil {
		return nil, err
	}

	if err := tf.DB.DB.Create(tenant).Error; err != nil {
		return nil, fmt.Errorf("failed to create test tenant: %w", err)
	}

	return tenant, nil
}

// CreateTestDirectoryUser creates a directory user in the given department and role
func (tf *TestFixtures) CreateTestDirectoryUser(tenantID uint, department, role string) (*models.DirectoryUser, error) {
	suffix := fmt.Sprintf("%d%04d", time.Now().UnixNano()%1000000, rand.Intn(10000))

	user := &models.DirectoryUser{
		TenantID:   tenantID,
		Email:      fmt.Sprintf("user.%s@example.com", suffix),
		FirstName:  "Test",
		LastName:   fmt.Sprintf("User%s", suffix),
		Department: department,
		Role:       role,
		IsActive:   utils.ToPtr(true),
		OptedOut:   utils.ToPtr(false),
	}

	if err := tf.DB.DB.Create(user).Error; err != nil {
		return nil, fmt.Errorf("failed to create test directory user: %w", err)
	}

	return user, nil
}

// CreateTestCampaign creates a campaign in the given status targeting a department
func (tf *TestFixtures) CreateTestCampaign(tenantID uint, status models.CampaignStatus, department string) (*models.Campaign, error) {
	campaign := &models.Campaign{
		TenantID:    tenantID,
		Name:        fmt.Sprintf("Q3 Awareness %d", rand.Intn(10000)),
		TemplateRef: "invoice-reminder-v2",
		Status:      status,
		Specs: models.TargetGroupSpecs{
			{Type: models.TargetGroupSpecDepartment, Values: []string{department}},
		},
		Settings: models.CampaignSettings{
			TrackOpens:         true,
			TrackClicks:        true,
			SendRatePerHour:    utils.DefaultSendRatePerHour,
			RandomizeSendTimes: true,
		},
	}
	if err := campaign.BeforeCreate(); err != nil {
		return nil, err
	}
	campaign.Status = status

	if err := tf.DB.DB.Create(campaign).Error; err != nil {
		return nil, fmt.Errorf("failed to create test campaign: %w", err)
	}

	return campaign, nil
}

// CreateTestRecipient creates a recipient row with a fresh tracking token
func (tf *TestFixtures) CreateTestRecipient(campaignID, userID uint, status models.SendStatus) (*models.Recipient, error) {
	token, err := utils.GenerateTrackingToken()
	if err != nil {
		return nil, err
	}

	recipient := &models.Recipient{
		CampaignID: campaignID,
		UserID:     userID,
		Email:      fmt.Sprintf("recipient.%d.%d@example.com", campaignID, userID),
		Token:      token,
		SendStatus: status,
	}
	if err := recipient.BeforeCreate(); err != nil {
		return nil, err
	}
	if status == models.SendStatusSent {
		now := time.Now().UTC()
		recipient.SentAt = &now
	}

	if err := tf.DB.DB.Create(recipient).Error; err != nil {
		return nil, fmt.Errorf("failed to create test recipient: %w", err)
	}

	return recipient, nil
}

// CreateTestWebhook creates an active webhook subscribed to the given events
func (tf *TestFixtures) CreateTestWebhook(tenantID uint, events ...string) (*models.Webhook, error) {
	secret, err := utils.GenerateWebhookSecret()
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		events = models.KnownEventTypes
	}

	webhook := &models.Webhook{
		TenantID:         tenantID,
		URL:              "https://hooks.example.com/phishsim",
		Secret:           secret,
		SubscribedEvents: pq.StringArray(events),
		IsActive:         utils.ToPtr(true),
	}
	if err := webhook.BeforeCreate(); err != nil {
		return nil, err
	}

	if err := tf.DB.DB.Create(webhook).Error; err != nil {
		return nil, fmt.Errorf("failed to create test webhook: %w", err)
	}

	return webhook, nil
}

// CreateTestTrackingEvent appends an event for a recipient
func (tf *TestFixtures) CreateTestTrackingEvent(campaignID, recipientID uint, eventType models.TrackingEventType) (*models.TrackingEvent, error) {
	event := &models.TrackingEvent{
		CampaignID:  campaignID,
		RecipientID: recipientID,
		EventType:   eventType,
	}
	if err := event.BeforeCreate(); err != nil {
		return nil, err
	}

	if err := tf.DB.DB.Create(event).Error; err != nil {
		return nil, fmt.Errorf("failed to create test tracking event: %w", err)
	}

	return event, nil
}
