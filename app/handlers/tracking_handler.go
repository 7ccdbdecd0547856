// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"log"

	"github.com/gofiber/fiber/v3"
	businessflow "github.com/phishguard/phishsim/business_flow"
	"github.com/phishguard/phishsim/models"
)

// openPixel is a 1x1 transparent GIF served on open-tracking requests
var openPixel = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00, 0x80, 0x00,
	0x00, 0x00, 0x00, 0x00, 0xff, 0xff, 0xff, 0x21, 0xf9, 0x04, 0x01, 0x00,
	0x00, 0x00, 0x00, 0x2c, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00,
	0x00, 0x02, 0x02, 0x44, 0x01, 0x00, 0x3b,
}

// TrackingHandlerInterface defines the contract for the public tracking endpoints
type TrackingHandlerInterface interface {
	TrackOpen(c fiber.Ctx) error
	TrackClick(c fiber.Ctx) error
	TrackCredentialSubmit(c fiber.Ctx) error
	TrackReport(c fiber.Ctx) error
}

// TrackingHandler handles unauthenticated recipient interaction requests.
// Every endpoint answers identically for valid and invalid tokens so the
// token space cannot be probed.
type TrackingHandler struct {
	trackingFlow       businessflow.TrackingFlow
	defaultRedirectURL string
}

// NewTrackingHandler creates a tracking handler. defaultRedirectURL is served
// on clicks when the campaign has no training page (or the token is unknown).
func NewTrackingHandler(trackingFlow businessflow.TrackingFlow, defaultRedirectURL string) *TrackingHandler {
	return &TrackingHandler{
		trackingFlow:       trackingFlow,
		defaultRedirectURL: defaultRedirectURL,
	}
}

// TrackOpen records an email open and serves the tracking pixel
func (h *TrackingHandler) TrackOpen(c fiber.Ctx) error {
	h.record(c, models.TrackingEventOpened)
	c.Set("Content-Type", "image/gif")
	c.Set("Cache-Control", "no-store, no-cache, must-revalidate")
	return c.Status(fiber.StatusOK).Send(openPixel)
}

// TrackClick records a link click and redirects to the training page
func (h *TrackingHandler) TrackClick(c fiber.Ctx) error {
	outcome := h.record(c, models.TrackingEventClicked)

	redirectURL := h.defaultRedirectURL
	if outcome != nil && outcome.RedirectURL != "" {
		redirectURL = outcome.RedirectURL
	}
	if redirectURL != "" {
		return c.Redirect().Status(fiber.StatusFound).To(redirectURL)
	}
	return c.SendStatus(fiber.StatusOK)
}

// TrackCredentialSubmit records a credential submission on the simulated
// landing page. Submitted values are never read, parsed or stored.
func (h *TrackingHandler) TrackCredentialSubmit(c fiber.Ctx) error {
	h.record(c, models.TrackingEventCredentialSubmitted)
	return c.SendStatus(fiber.StatusOK)
}

// TrackReport records a report-phishing action
func (h *TrackingHandler) TrackReport(c fiber.Ctx) error {
	h.record(c, models.TrackingEventReported)
	return c.SendStatus(fiber.StatusOK)
}

// record runs the tracking flow and swallows every error: the response must
// not reveal whether anything was recorded
func (h *TrackingHandler) record(c fiber.Ctx, eventType models.TrackingEventType) *businessflow.TrackingOutcome {
	token := c.Params("token")
	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	outcome, err := h.trackingFlow.RecordEvent(createRequestContext(c, "/track"), token, eventType, metadata)
	if err != nil {
		if !businessflow.IsUnknownToken(err) {
			log.Println("Tracking event recording failed", err)
		}
		return nil
	}
	return outcome
}
