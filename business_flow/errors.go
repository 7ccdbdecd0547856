// Package businessflow contains the core business logic and use cases for the campaign engine
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// Tenant-related errors
	ErrTenantNotFound = errors.New("tenant not found")
	ErrTenantInactive = errors.New("tenant is inactive")

	// Target resolution errors
	ErrUnknownDepartment = errors.New("target spec references an unknown department")
	ErrUnknownRole       = errors.New("target spec references an unknown role")
	ErrUnknownUser       = errors.New("target spec references an unknown user")
	ErrInvalidSpecType   = errors.New("target spec type is invalid")
	ErrEmptyTargetSet    = errors.New("target specs resolve to zero recipients")

	// Campaign-related errors
	ErrCampaignNotFound       = errors.New("campaign not found")
	ErrCampaignAccessDenied   = errors.New("campaign access denied")
	ErrInvalidTransition      = errors.New("illegal campaign state transition")
	ErrConcurrentModification = errors.New("campaign is not editable in its current state")
	ErrScheduleTimeNotPresent = errors.New("schedule time is not present")
	ErrScheduleTimeTooSoon    = errors.New("schedule time is too soon")
	ErrSendRateOutOfRange     = errors.New("send rate per hour is out of range")

	// Tracking errors
	ErrUnknownToken     = errors.New("tracking token does not resolve to a recipient")
	ErrUnknownEventType = errors.New("tracking event type is unknown")

	// Webhook errors
	ErrWebhookNotFound       = errors.New("webhook not found")
	ErrWebhookAccessDenied   = errors.New("webhook access denied")
	ErrUnknownWebhookEvent   = errors.New("webhook subscription references an unknown event type")

	// Filter errors
	ErrInvalidPage     = errors.New("page must be at least 1")
	ErrInvalidPageSize = errors.New("page size must be between 1 and 100")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func IsTenantNotFound(err error) bool {
	return errors.Is(err, ErrTenantNotFound)
}

func IsTenantInactive(err error) bool {
	return errors.Is(err, ErrTenantInactive)
}

// IsInvalidSpec covers every way a target spec can fail to resolve
func IsInvalidSpec(err error) bool {
	return errors.Is(err, ErrUnknownDepartment) ||
		errors.Is(err, ErrUnknownRole) ||
		errors.Is(err, ErrUnknownUser) ||
		errors.Is(err, ErrInvalidSpecType) ||
		errors.Is(err, ErrEmptyTargetSet)
}

func IsCampaignNotFound(err error) bool {
	return errors.Is(err, ErrCampaignNotFound)
}

func IsCampaignAccessDenied(err error) bool {
	return errors.Is(err, ErrCampaignAccessDenied)
}

func IsInvalidTransition(err error) bool {
	return errors.Is(err, ErrInvalidTransition)
}

func IsConcurrentModification(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}

func IsScheduleTimeNotPresent(err error) bool {
	return errors.Is(err, ErrScheduleTimeNotPresent)
}

func IsScheduleTimeTooSoon(err error) bool {
	return errors.Is(err, ErrScheduleTimeTooSoon)
}

func IsUnknownToken(err error) bool {
	return errors.Is(err, ErrUnknownToken)
}

func IsUnknownEventType(err error) bool {
	return errors.Is(err, ErrUnknownEventType)
}

func IsWebhookNotFound(err error) bool {
	return errors.Is(err, ErrWebhookNotFound)
}

func IsWebhookAccessDenied(err error) bool {
	return errors.Is(err, ErrWebhookAccessDenied)
}

func IsUnknownWebhookEvent(err error) bool {
	return errors.Is(err, ErrUnknownWebhookEvent)
}
