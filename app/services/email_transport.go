package services

import (
	"context"
	"fmt"
	"log"
	"net/url"
)

// OutboundEmail is one simulated-attack email handed to the transport.
// Body construction down to MIME level is the transport's concern.
type OutboundEmail struct {
	To           string
	Subject      string
	TemplateRef  string
	TrackingURL  string
	OpenPixelURL string
	ReportURL    string
}

// EmailTransport hands a simulated-attack email to the actual mail
// infrastructure. Implementations live outside the engine; the scheduler only
// needs Send to be context-aware and to report success or failure.
type EmailTransport interface {
	Send(ctx context.Context, email *OutboundEmail) error
}

// MockEmailTransport logs sends instead of delivering them
type MockEmailTransport struct {
	logger *log.Logger
}

// NewMockEmailTransport creates a transport that only logs
func NewMockEmailTransport(logger *log.Logger) EmailTransport {
	if logger == nil {
		logger = log.Default()
	}
	return &MockEmailTransport{logger: logger}
}

// Send logs the outbound email and reports success
func (t *MockEmailTransport) Send(ctx context.Context, email *OutboundEmail) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.logger.Printf("mock transport: send to=%s template=%s", email.To, email.TemplateRef)
	return nil
}

// TrackingLinkBuilder builds the token-bearing URLs embedded in outbound emails
type TrackingLinkBuilder struct {
	baseURL string
}

// NewTrackingLinkBuilder creates a builder rooted at the public tracking base URL
func NewTrackingLinkBuilder(baseURL string) *TrackingLinkBuilder {
	return &TrackingLinkBuilder{baseURL: baseURL}
}

// ClickURL returns the landing-page link for a recipient token
func (b *TrackingLinkBuilder) ClickURL(token string) string {
	return fmt.Sprintf("%s/track/%s/clicked", b.baseURL, url.PathEscape(token))
}

// OpenPixelURL returns the tracking-pixel link for a recipient token
func (b *TrackingLinkBuilder) OpenPixelURL(token string) string {
	return fmt.Sprintf("%s/track/%s/opened", b.baseURL, url.PathEscape(token))
}

// ReportURL returns the report-phishing link for a recipient token
func (b *TrackingLinkBuilder) ReportURL(token string) string {
	return fmt.Sprintf("%s/track/%s/reported", b.baseURL, url.PathEscape(token))
}
