package repository

import (
	"context"
	"errors"
	"time"

	"dispatch/internal/models"

	"gorm.io/gorm"
)

// RequestListFilter narrows request listings.
type RequestListFilter struct {
	Status     *models.RequestStatus
	CustomerID *uint
	BranchID   *uint
	PartnerID  *uint
	Limit      int
	Offset     int
}

// RequestRepository defines the interface for request data operations.
// Transactional lifecycle mutations (create/assign/transition/rate) are
// owned by the lifecycle machine; this repository covers reads and listings.
type RequestRepository interface {
	GetByID(ctx context.Context, id uint) (*models.Request, error)
	GetByNumber(ctx context.Context, number string) (*models.Request, error)
	List(ctx context.Context, filter RequestListFilter) ([]models.Request, error)
	ListExpiredAssigned(ctx context.Context, now time.Time) ([]models.Request, error)
}

// requestRepository implements RequestRepository
type requestRepository struct {
	db *gorm.DB
}

// NewRequestRepository creates a new request repository
func NewRequestRepository(db *gorm.DB) RequestRepository {
	return &requestRepository{db: db}
}

func (r *requestRepository) GetByID(ctx context.Context, id uint) (*models.Request, error) {
	var request models.Request
	if err := r.db.WithContext(ctx).
		Preload("Category").
		Preload("Partner").
		Preload("Branch").
		First(&request, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Request", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &request, nil
}

func (r *requestRepository) GetByNumber(ctx context.Context, number string) (*models.Request, error) {
	var request models.Request
	if err := r.db.WithContext(ctx).
		Preload("Category").
		Preload("Partner").
		Preload("Branch").
		Where("number = ?", number).
		First(&request).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Request", number)
		}
		return nil, models.NewInternalError(err)
	}
	return &request, nil
}

func (r *requestRepository) List(ctx context.Context, filter RequestListFilter) ([]models.Request, error) {
	var requests []models.Request

	q := r.db.WithContext(ctx).Model(&models.Request{})
	if filter.Status != nil {
		q = q.Where("status = ?", *filter.Status)
	}
	if filter.CustomerID != nil {
		q = q.Where("customer_id = ?", *filter.CustomerID)
	}
	if filter.BranchID != nil {
		q = q.Where("branch_id = ?", *filter.BranchID)
	}
	if filter.PartnerID != nil {
		q = q.Where("partner_id = ?", *filter.PartnerID)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}

	if err := q.Order("id DESC").Preload("Category").Find(&requests).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return requests, nil
}

// ListExpiredAssigned returns requests whose SLA deadline has passed while
// they still await a partner response. Consumed by the periodic SLA sweep.
func (r *requestRepository) ListExpiredAssigned(ctx context.Context, now time.Time) ([]models.Request, error) {
	var requests []models.Request
	if err := r.db.WithContext(ctx).
		Where("status = ? AND sla_deadline IS NOT NULL AND sla_deadline < ?", models.RequestStatusAssigned, now).
		Find(&requests).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return requests, nil
}
