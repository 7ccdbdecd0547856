package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/phishguard/phishsim/models"
	"gorm.io/gorm"
)

// RecipientRepositoryImpl implements RecipientRepository using GORM
type RecipientRepositoryImpl struct {
	*BaseRepository[models.Recipient]
}

// NewRecipientRepository creates a new recipient repository instance
func NewRecipientRepository(db *gorm.DB) RecipientRepository {
	return &RecipientRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Recipient](db),
	}
}

// ByToken resolves a tracking token to its recipient
func (r *RecipientRepositoryImpl) ByToken(ctx context.Context, token string) (*models.Recipient, error) {
	db := r.getDB(ctx)

	var recipient models.Recipient
	err := db.Where("token = ?", token).Last(&recipient).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find recipient by token: %w", err)
	}

	return &recipient, nil
}

// NextPending returns the oldest pending recipient of a campaign, claiming
// in insertion order. Returns nil when no pending recipients remain.
func (r *RecipientRepositoryImpl) NextPending(ctx context.Context, campaignID uint) (*models.Recipient, error) {
	db := r.getDB(ctx)

	var recipient models.Recipient
	err := db.Where("campaign_id = ? AND send_status = ?", campaignID, models.SendStatusPending).
		Order("id ASC").
		First(&recipient).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to claim next pending recipient for campaign %d: %w", campaignID, err)
	}

	return &recipient, nil
}

// MarkSent transitions a pending recipient to sent. The status guard makes the
// pending -> sent transition single-shot even under a duplicate scheduler.
func (r *RecipientRepositoryImpl) MarkSent(ctx context.Context, id uint, sentAt time.Time) (bool, error) {
	db := r.getDB(ctx)

	res := db.Model(&models.Recipient{}).
		Where("id = ? AND send_status = ?", id, models.SendStatusPending).
		Updates(map[string]any{
			"send_status": models.SendStatusSent,
			"sent_at":     sentAt,
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to mark recipient %d sent: %w", id, res.Error)
	}

	return res.RowsAffected == 1, nil
}

// MarkFailed transitions a pending recipient to failed
func (r *RecipientRepositoryImpl) MarkFailed(ctx context.Context, id uint) (bool, error) {
	db := r.getDB(ctx)

	res := db.Model(&models.Recipient{}).
		Where("id = ? AND send_status = ?", id, models.SendStatusPending).
		Update("send_status", models.SendStatusFailed)
	if res.Error != nil {
		return false, fmt.Errorf("failed to mark recipient %d failed: %w", id, res.Error)
	}

	return res.RowsAffected == 1, nil
}

// CountByStatus returns recipient counts per send status for a campaign
func (r *RecipientRepositoryImpl) CountByStatus(ctx context.Context, campaignID uint) (map[models.SendStatus]int64, error) {
	db := r.getDB(ctx)

	type row struct {
		SendStatus models.SendStatus
		Count      int64
	}
	var rows []row
	err := db.Model(&models.Recipient{}).
		Select("send_status, COUNT(*) AS count").
		Where("campaign_id = ?", campaignID).
		Group("send_status").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count recipients for campaign %d: %w", campaignID, err)
	}

	counts := make(map[models.SendStatus]int64, len(rows))
	for _, r := range rows {
		counts[r.SendStatus] = r.Count
	}
	return counts, nil
}

// PendingCount returns the number of recipients still awaiting a send
func (r *RecipientRepositoryImpl) PendingCount(ctx context.Context, campaignID uint) (int64, error) {
	db := r.getDB(ctx)

	var count int64
	err := db.Model(&models.Recipient{}).
		Where("campaign_id = ? AND send_status = ?", campaignID, models.SendStatusPending).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count pending recipients for campaign %d: %w", campaignID, err)
	}

	return count, nil
}

// ByCampaign returns all recipients of a campaign in insertion order
func (r *RecipientRepositoryImpl) ByCampaign(ctx context.Context, campaignID uint) ([]*models.Recipient, error) {
	db := r.getDB(ctx)

	var recipients []*models.Recipient
	err := db.Where("campaign_id = ?", campaignID).Order("id ASC").Find(&recipients).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list recipients for campaign %d: %w", campaignID, err)
	}

	return recipients, nil
}
