package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/phishguard/phishsim/models"
	"gorm.io/gorm"
)

// DirectoryRepositoryImpl implements DirectoryRepository using GORM.
// The directory is owned by the account-management service; this engine
// only ever reads from it.
type DirectoryRepositoryImpl struct {
	*BaseRepository[models.DirectoryUser]
}

// NewDirectoryRepository creates a new directory repository instance
func NewDirectoryRepository(db *gorm.DB) DirectoryRepository {
	return &DirectoryRepositoryImpl{
		BaseRepository: NewBaseRepository[models.DirectoryUser](db),
	}
}

// TenantByID retrieves a tenant by its ID
func (r *DirectoryRepositoryImpl) TenantByID(ctx context.Context, id uint) (*models.Tenant, error) {
	db := r.getDB(ctx)

	var tenant models.Tenant
	err := db.Last(&tenant, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find tenant by ID %d: %w", id, err)
	}

	return &tenant, nil
}

// UsersByDepartment returns the active members of a department
func (r *DirectoryRepositoryImpl) UsersByDepartment(ctx context.Context, tenantID uint, department string) ([]*models.DirectoryUser, error) {
	db := r.getDB(ctx)

	var users []*models.DirectoryUser
	err := db.Where("tenant_id = ? AND department = ? AND is_active = ?", tenantID, department, true).
		Order("id ASC").
		Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list users in department %s: %w", department, err)
	}

	return users, nil
}

// UsersByRole returns the active members holding a role
func (r *DirectoryRepositoryImpl) UsersByRole(ctx context.Context, tenantID uint, role string) ([]*models.DirectoryUser, error) {
	db := r.getDB(ctx)

	var users []*models.DirectoryUser
	err := db.Where("tenant_id = ? AND role = ? AND is_active = ?", tenantID, role, true).
		Order("id ASC").
		Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list users with role %s: %w", role, err)
	}

	return users, nil
}

// UsersByIDs returns the active users among the given ids, scoped to the tenant
func (r *DirectoryRepositoryImpl) UsersByIDs(ctx context.Context, tenantID uint, ids []uint) ([]*models.DirectoryUser, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	db := r.getDB(ctx)

	var users []*models.DirectoryUser
	err := db.Where("tenant_id = ? AND id IN ? AND is_active = ?", tenantID, ids, true).
		Order("id ASC").
		Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list users by ids: %w", err)
	}

	return users, nil
}

// DepartmentExists checks whether any directory user carries the department
func (r *DirectoryRepositoryImpl) DepartmentExists(ctx context.Context, tenantID uint, department string) (bool, error) {
	db := r.getDB(ctx)

	var count int64
	err := db.Model(&models.DirectoryUser{}).
		Where("tenant_id = ? AND department = ?", tenantID, department).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check department %s: %w", department, err)
	}

	return count > 0, nil
}

// RoleExists checks whether any directory user carries the role
func (r *DirectoryRepositoryImpl) RoleExists(ctx context.Context, tenantID uint, role string) (bool, error) {
	db := r.getDB(ctx)

	var count int64
	err := db.Model(&models.DirectoryUser{}).
		Where("tenant_id = ? AND role = ?", tenantID, role).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check role %s: %w", role, err)
	}

	return count > 0, nil
}
