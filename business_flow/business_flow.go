// Package businessflow contains the core business logic and use cases for the campaign engine
package businessflow

import (
	"context"

	"github.com/phishguard/phishsim/models"
	"github.com/phishguard/phishsim/repository"
	"github.com/phishguard/phishsim/utils"
)

// ClientMetadata carries request-scoped client information (IP, user agent)
// explicitly through the call chain instead of via ambient state.
type ClientMetadata struct {
	IPAddress *string
	UserAgent *string
}

// NewClientMetadata creates client metadata from raw request values
func NewClientMetadata(ipAddress, userAgent string) *ClientMetadata {
	m := &ClientMetadata{}
	if ipAddress != "" {
		m.IPAddress = &ipAddress
	}
	if userAgent != "" {
		m.UserAgent = &userAgent
	}
	return m
}

// Dispatcher is the scheduler's surface as seen by the campaign flow: launch a
// send loop for a campaign that just transitioned into running. Pausing and
// cancelling are communicated through the campaign status itself, which the
// scheduler observes at the top of its claim loop.
type Dispatcher interface {
	Launch(campaignID uint)
}

// createAuditLog records a management action; audit failures never fail the
// action that triggered them.
func createAuditLog(ctx context.Context, auditRepo repository.AuditLogRepository, tenantID uint, action, description string, success bool, errorMessage *string, metadata *ClientMetadata) error {
	entry := &models.AuditLog{
		Action:       action,
		Description:  description,
		Success:      utils.ToPtr(success),
		ErrorMessage: errorMessage,
	}
	if tenantID != 0 {
		entry.TenantID = &tenantID
	}
	if metadata != nil {
		entry.IPAddress = metadata.IPAddress
		entry.UserAgent = metadata.UserAgent
	}
	return auditRepo.Save(ctx, entry)
}
