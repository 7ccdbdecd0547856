package repository

import (
	"context"
	"fmt"

	"github.com/phishguard/phishsim/models"
	"gorm.io/gorm"
)

// AuditLogRepositoryImpl implements AuditLogRepository using GORM
type AuditLogRepositoryImpl struct {
	*BaseRepository[models.AuditLog]
}

// NewAuditLogRepository creates a new audit log repository instance
func NewAuditLogRepository(db *gorm.DB) AuditLogRepository {
	return &AuditLogRepositoryImpl{
		BaseRepository: NewBaseRepository[models.AuditLog](db),
	}
}

// ByTenant lists audit entries of a tenant, newest first
func (r *AuditLogRepositoryImpl) ByTenant(ctx context.Context, tenantID uint, limit, offset int) ([]*models.AuditLog, error) {
	db := r.getDB(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at DESC")
	if limit > 0 {
		db = db.Limit(limit)
	}
	if offset > 0 {
		db = db.Offset(offset)
	}

	var entries []*models.AuditLog
	if err := db.Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to list audit logs for tenant %d: %w", tenantID, err)
	}

	return entries, nil
}
