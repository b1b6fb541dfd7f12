package database

import (
	"time"

	"github.com/termsaver/indicatord/internal/models"

	"github.com/pkg/errors"

	"gorm.io/gorm"
)

// Repository handles all database operations for the activation history
type Repository struct {
	db *DB
}

// NewRepository creates a new repository instance
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new activation event into the database
func (r *Repository) Create(event *models.ActivationEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	result := r.db.Create(event)
	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to insert activation event")
	}
	return nil
}

// GetRecent returns the newest events first, at most limit of them
func (r *Repository) GetRecent(limit int) ([]*models.ActivationEvent, error) {
	var events []*models.ActivationEvent
	result := r.db.Order("timestamp DESC").Order("id DESC").Limit(limit).Find(&events)
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, "failed to query recent events")
	}
	return events, nil
}

// GetEventsSince retrieves all events since a given time, oldest first
func (r *Repository) GetEventsSince(since time.Time) ([]*models.ActivationEvent, error) {
	var events []*models.ActivationEvent
	result := r.db.Where("timestamp >= ?", since).Order("timestamp ASC").Find(&events)

	if result.Error != nil {
		return nil, errors.Wrap(result.Error, "failed to query activation events")
	}

	return events, nil
}

// GetKindSummarySince counts events per kind since a given time
func (r *Repository) GetKindSummarySince(since time.Time) ([]models.KindSummary, error) {
	var summaries []models.KindSummary

	result := r.db.Model(&models.ActivationEvent{}).
		Select("kind, COUNT(*) as event_count").
		Where("timestamp >= ?", since).
		Group("kind").
		Order("event_count DESC").
		Scan(&summaries)

	if result.Error != nil {
		return nil, errors.Wrap(result.Error, "failed to query kind summary")
	}

	return summaries, nil
}

// GetLatest retrieves the most recent event of one of kinds, or of any kind
// when none are given. No match is (nil, nil).
func (r *Repository) GetLatest(kinds ...string) (*models.ActivationEvent, error) {
	var event models.ActivationEvent
	query := r.db.Order("timestamp DESC").Order("id DESC")
	if len(kinds) > 0 {
		query = query.Where("kind IN ?", kinds)
	}
	result := query.First(&event)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(result.Error, "failed to get latest event")
	}
	return &event, nil
}

// DeleteOldEvents deletes events older than a specified date (soft delete)
func (r *Repository) DeleteOldEvents(before time.Time) (int64, error) {
	result := r.db.Where("timestamp < ?", before).Delete(&models.ActivationEvent{})
	if result.Error != nil {
		return 0, errors.Wrap(result.Error, "failed to delete old events")
	}
	return result.RowsAffected, nil
}

// CreateErrorLog inserts a new error log into the database
func (r *Repository) CreateErrorLog(errorLog *models.ErrorLog) error {
	result := r.db.Create(errorLog)
	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to insert error log")
	}
	return nil
}

// GetRecentErrors returns the newest error logs first
func (r *Repository) GetRecentErrors(limit int) ([]*models.ErrorLog, error) {
	var logs []*models.ErrorLog
	result := r.db.Order("timestamp DESC").Order("id DESC").Limit(limit).Find(&logs)
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, "failed to query error logs")
	}
	return logs, nil
}

// Clear removes all events and error logs from the database
func (r *Repository) Clear() error {
	if result := r.db.Exec("DELETE FROM activation_events"); result.Error != nil {
		return errors.Wrap(result.Error, "failed to clear activation events")
	}
	if result := r.db.Exec("DELETE FROM error_logs"); result.Error != nil {
		return errors.Wrap(result.Error, "failed to clear error logs")
	}
	return nil
}
