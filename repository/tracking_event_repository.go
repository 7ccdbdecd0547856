package repository

import (
	"context"
	"fmt"

	"github.com/phishguard/phishsim/models"
	"gorm.io/gorm"
)

// TrackingEventRepositoryImpl implements TrackingEventRepository using GORM.
// The event log is append-only: there are deliberately no update or delete
// methods on this repository.
type TrackingEventRepositoryImpl struct {
	*BaseRepository[models.TrackingEvent]
}

// NewTrackingEventRepository creates a new tracking event repository instance
func NewTrackingEventRepository(db *gorm.DB) TrackingEventRepository {
	return &TrackingEventRepositoryImpl{
		BaseRepository: NewBaseRepository[models.TrackingEvent](db),
	}
}

// DistinctRecipientCounts returns, per event type, the number of distinct
// recipients that ever produced that event. Rate metrics are computed from
// these counts so replayed events cannot inflate them.
func (r *TrackingEventRepositoryImpl) DistinctRecipientCounts(ctx context.Context, campaignID uint) (map[models.TrackingEventType]int64, error) {
	db := r.getDB(ctx)

	type row struct {
		EventType models.TrackingEventType
		Count     int64
	}
	var rows []row
	err := db.Model(&models.TrackingEvent{}).
		Select("event_type, COUNT(DISTINCT recipient_id) AS count").
		Where("campaign_id = ?", campaignID).
		Group("event_type").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count distinct recipients for campaign %d: %w", campaignID, err)
	}

	counts := make(map[models.TrackingEventType]int64, len(rows))
	for _, r := range rows {
		counts[r.EventType] = r.Count
	}
	return counts, nil
}

// CountsByType returns raw event volumes per event type
func (r *TrackingEventRepositoryImpl) CountsByType(ctx context.Context, campaignID uint) (map[models.TrackingEventType]int64, error) {
	db := r.getDB(ctx)

	type row struct {
		EventType models.TrackingEventType
		Count     int64
	}
	var rows []row
	err := db.Model(&models.TrackingEvent{}).
		Select("event_type, COUNT(*) AS count").
		Where("campaign_id = ?", campaignID).
		Group("event_type").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count events for campaign %d: %w", campaignID, err)
	}

	counts := make(map[models.TrackingEventType]int64, len(rows))
	for _, r := range rows {
		counts[r.EventType] = r.Count
	}
	return counts, nil
}

// ByCampaign lists events of a campaign, newest first
func (r *TrackingEventRepositoryImpl) ByCampaign(ctx context.Context, campaignID uint, limit, offset int) ([]*models.TrackingEvent, error) {
	db := r.getDB(ctx).
		Where("campaign_id = ?", campaignID).
		Order("created_at DESC")
	if limit > 0 {
		db = db.Limit(limit)
	}
	if offset > 0 {
		db = db.Offset(offset)
	}

	var events []*models.TrackingEvent
	if err := db.Find(&events).Error; err != nil {
		return nil, fmt.Errorf("failed to list events for campaign %d: %w", campaignID, err)
	}

	return events, nil
}
