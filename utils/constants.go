package utils

import (
	"time"
)

// Campaign dispatch constants
const (
	// DefaultSendRatePerHour is used when a campaign does not override the rate
	DefaultSendRatePerHour = 100

	// MaxSendRatePerHour caps tenant-configured send rates
	MaxSendRatePerHour = 10000

	// SendRetryAttempts is the per-recipient transport retry bound
	SendRetryAttempts = 3

	// MinScheduleLead is the minimum delay between scheduling and launch
	MinScheduleLead = 5 * time.Minute
)

// Webhook delivery constants
const (
	// WebhookMaxAttempts bounds delivery attempts before a delivery is abandoned
	WebhookMaxAttempts = 5

	// WebhookBackoffBase is the delay before the first retry; it doubles per attempt
	WebhookBackoffBase = 30 * time.Second

	// WebhookBackoffCap is the upper bound on the retry delay
	WebhookBackoffCap = time.Hour

	// WebhookAttemptTimeout bounds a single delivery HTTP request
	WebhookAttemptTimeout = 10 * time.Second
)

// CORS and security constants
const (
	// CORSMaxAge is the maximum age for CORS preflight requests (24 hours)
	CORSMaxAge = 86400
)
