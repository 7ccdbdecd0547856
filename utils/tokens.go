// Package utils provides utility functions for the application.
package utils

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// TrackingTokenBytes is the entropy of a recipient tracking token (128 bits).
const TrackingTokenBytes = 16

// GenerateTrackingToken returns an unguessable, URL-safe recipient token.
func GenerateTrackingToken() (string, error) {
	buf := make([]byte, TrackingTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate tracking token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// GenerateWebhookSecret returns a hex-encoded 256-bit webhook signing secret.
func GenerateWebhookSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate webhook secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
