package repository

import (
	"context"

	"dispatch/internal/models"

	"gorm.io/gorm"
)

// StatusLogRepository defines the interface for timeline reads. Entries are
// appended only inside lifecycle transactions and are never mutated.
type StatusLogRepository interface {
	ListByRequest(ctx context.Context, requestID uint) ([]models.StatusLog, error)
}

// statusLogRepository implements StatusLogRepository
type statusLogRepository struct {
	db *gorm.DB
}

// NewStatusLogRepository creates a new status log repository
func NewStatusLogRepository(db *gorm.DB) StatusLogRepository {
	return &statusLogRepository{db: db}
}

// ListByRequest returns the timeline of a request in commit order.
func (r *statusLogRepository) ListByRequest(ctx context.Context, requestID uint) ([]models.StatusLog, error) {
	var entries []models.StatusLog
	if err := r.db.WithContext(ctx).
		Where("request_id = ?", requestID).
		Order("id").
		Find(&entries).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return entries, nil
}
