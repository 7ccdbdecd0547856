// Package services provides external service integrations and technical concerns like transports and tokens
package services

import (
	"log"
	"time"

	"github.com/google/uuid"
)

// DomainEvent is an internally emitted fact (campaign.started, phishing.clicked, ...)
// consumed by the webhook dispatcher. The ID doubles as the delivery idempotency
// key, so an event re-emitted with the same ID never produces duplicate deliveries.
type DomainEvent struct {
	ID         string         `json:"id"`
	TenantID   uint           `json:"tenant_id"`
	Type       string         `json:"type"`
	Payload    map[string]any `json:"payload"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// NewDomainEvent creates a domain event with a fresh ID and timestamp
func NewDomainEvent(tenantID uint, eventType string, payload map[string]any) DomainEvent {
	return DomainEvent{
		ID:         uuid.NewString(),
		TenantID:   tenantID,
		Type:       eventType,
		Payload:    payload,
		OccurredAt: time.Now().UTC(),
	}
}

// EventEmitter decouples domain actions from webhook delivery mechanics.
// Emit never blocks the caller and never returns an error: webhook delivery
// is fire-and-forget relative to the domain action that caused it.
type EventEmitter interface {
	Emit(event DomainEvent)
}

// ChannelEmitter is an in-process EventEmitter backed by a buffered channel
type ChannelEmitter struct {
	events chan DomainEvent
	logger *log.Logger
}

// NewChannelEmitter creates an emitter with the given buffer size
func NewChannelEmitter(buffer int, logger *log.Logger) *ChannelEmitter {
	if buffer <= 0 {
		buffer = 1024
	}
	if logger == nil {
		logger = log.Default()
	}
	return &ChannelEmitter{
		events: make(chan DomainEvent, buffer),
		logger: logger,
	}
}

// Emit enqueues an event for the webhook dispatcher. When the buffer is full
// the event is dropped and logged rather than blocking the domain action.
func (e *ChannelEmitter) Emit(event DomainEvent) {
	select {
	case e.events <- event:
	default:
		e.logger.Printf("event emitter: buffer full, dropping event %s (%s)", event.ID, event.Type)
	}
}

// Events exposes the consumer side of the queue
func (e *ChannelEmitter) Events() <-chan DomainEvent {
	return e.events
}

// Close stops the queue; no Emit may be called afterwards
func (e *ChannelEmitter) Close() {
	close(e.events)
}
