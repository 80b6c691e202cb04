package repository

import (
	"context"

	"dispatch/internal/models"

	"gorm.io/gorm"
)

// AssignmentRepository defines the interface for assignment-history reads.
// Creation and partner-response updates happen inside the lifecycle
// machine's transactions.
type AssignmentRepository interface {
	ListByRequest(ctx context.Context, requestID uint) ([]models.Assignment, error)
	GetPendingByRequest(ctx context.Context, requestID uint) (*models.Assignment, error)
}

// assignmentRepository implements AssignmentRepository
type assignmentRepository struct {
	db *gorm.DB
}

// NewAssignmentRepository creates a new assignment repository
func NewAssignmentRepository(db *gorm.DB) AssignmentRepository {
	return &assignmentRepository{db: db}
}

func (r *assignmentRepository) ListByRequest(ctx context.Context, requestID uint) ([]models.Assignment, error) {
	var assignments []models.Assignment
	if err := r.db.WithContext(ctx).
		Where("request_id = ?", requestID).
		Order("assigned_at").
		Preload("Partner").
		Preload("Branch").
		Find(&assignments).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return assignments, nil
}

func (r *assignmentRepository) GetPendingByRequest(ctx context.Context, requestID uint) (*models.Assignment, error) {
	var assignment models.Assignment
	err := r.db.WithContext(ctx).
		Where("request_id = ? AND response = ?", requestID, models.AssignmentResponsePending).
		Order("assigned_at DESC").
		First(&assignment).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil // no open attempt
		}
		return nil, models.NewInternalError(err)
	}
	return &assignment, nil
}
