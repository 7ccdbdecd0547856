package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/phishguard/phishsim/models"
	"github.com/phishguard/phishsim/utils"
	"gorm.io/gorm"
)

// CampaignRepositoryImpl implements CampaignRepository using GORM
type CampaignRepositoryImpl struct {
	*BaseRepository[models.Campaign]
}

// NewCampaignRepository creates a new campaign repository instance
func NewCampaignRepository(db *gorm.DB) CampaignRepository {
	return &CampaignRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Campaign](db),
	}
}

// ByUUID retrieves a campaign by its UUID
func (r *CampaignRepositoryImpl) ByUUID(ctx context.Context, uuid string) (*models.Campaign, error) {
	db := r.getDB(ctx)

	var campaign models.Campaign
	err := db.Where("uuid = ?", uuid).Last(&campaign).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find campaign by UUID %s: %w", uuid, err)
	}

	return &campaign, nil
}

// UpdateStatus atomically moves a campaign from one status to another.
// Returns false when the campaign was not in the expected source status,
// which is how concurrent transition attempts lose the race.
func (r *CampaignRepositoryImpl) UpdateStatus(ctx context.Context, id uint, from, to models.CampaignStatus) (bool, error) {
	db := r.getDB(ctx)

	updates := map[string]any{
		"status":     to,
		"updated_at": utils.UTCNow(),
	}
	switch to {
	case models.CampaignStatusRunning:
		updates["started_at"] = gorm.Expr("COALESCE(started_at, ?)", utils.UTCNow())
	case models.CampaignStatusCompleted, models.CampaignStatusCancelled:
		updates["completed_at"] = utils.UTCNow()
	}

	res := db.Model(&models.Campaign{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, fmt.Errorf("failed to update campaign %d status %s -> %s: %w", id, from, to, res.Error)
	}

	return res.RowsAffected == 1, nil
}

// ByFilter retrieves campaigns matching the filter with pagination
func (r *CampaignRepositoryImpl) ByFilter(ctx context.Context, filter models.CampaignFilter, orderBy string, limit, offset int) ([]*models.Campaign, error) {
	db := r.applyFilter(r.getDB(ctx), filter)

	if orderBy == "" {
		orderBy = "created_at DESC"
	}
	db = db.Order(orderBy)
	if limit > 0 {
		db = db.Limit(limit)
	}
	if offset > 0 {
		db = db.Offset(offset)
	}

	var campaigns []*models.Campaign
	if err := db.Find(&campaigns).Error; err != nil {
		return nil, fmt.Errorf("failed to list campaigns: %w", err)
	}

	return campaigns, nil
}

// Count returns the number of campaigns matching the filter
func (r *CampaignRepositoryImpl) Count(ctx context.Context, filter models.CampaignFilter) (int64, error) {
	db := r.applyFilter(r.getDB(ctx).Model(&models.Campaign{}), filter)

	var count int64
	if err := db.Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count campaigns: %w", err)
	}

	return count, nil
}

// ScheduledDue returns scheduled campaigns whose launch time has arrived
func (r *CampaignRepositoryImpl) ScheduledDue(ctx context.Context, now time.Time) ([]*models.Campaign, error) {
	db := r.getDB(ctx)

	var campaigns []*models.Campaign
	err := db.Where("status = ? AND scheduled_at IS NOT NULL AND scheduled_at <= ?",
		models.CampaignStatusScheduled, now).
		Order("scheduled_at ASC").
		Find(&campaigns).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list due campaigns: %w", err)
	}

	return campaigns, nil
}

// Running returns all campaigns currently in the running status
func (r *CampaignRepositoryImpl) Running(ctx context.Context) ([]*models.Campaign, error) {
	db := r.getDB(ctx)

	var campaigns []*models.Campaign
	err := db.Where("status = ?", models.CampaignStatusRunning).Find(&campaigns).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list running campaigns: %w", err)
	}

	return campaigns, nil
}

func (r *CampaignRepositoryImpl) applyFilter(db *gorm.DB, filter models.CampaignFilter) *gorm.DB {
	if filter.ID != nil {
		db = db.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		db = db.Where("uuid = ?", *filter.UUID)
	}
	if filter.TenantID != nil {
		db = db.Where("tenant_id = ?", *filter.TenantID)
	}
	if filter.Status != nil {
		db = db.Where("status = ?", *filter.Status)
	}
	if filter.Name != nil {
		db = db.Where("name ILIKE ?", "%"+*filter.Name+"%")
	}
	if filter.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		db = db.Where("created_at <= ?", *filter.CreatedBefore)
	}
	if filter.ScheduledAfter != nil {
		db = db.Where("scheduled_at >= ?", *filter.ScheduledAfter)
	}
	if filter.ScheduledBefore != nil {
		db = db.Where("scheduled_at <= ?", *filter.ScheduledBefore)
	}
	return db
}
