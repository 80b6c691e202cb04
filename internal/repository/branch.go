package repository

import (
	"context"
	"errors"

	"dispatch/internal/models"

	"gorm.io/gorm"
)

// BranchFilter narrows the candidate set for nearest-branch matching.
type BranchFilter struct {
	CategoryID *uint
	PartnerID  *uint
}

// BranchRepository defines the interface for branch data operations
type BranchRepository interface {
	Create(ctx context.Context, branch *models.Branch) error
	GetByID(ctx context.Context, id uint) (*models.Branch, error)
	Update(ctx context.Context, branch *models.Branch) error
	ListActive(ctx context.Context, filter BranchFilter) ([]models.Branch, error)
	ListByPartner(ctx context.Context, partnerID uint) ([]models.Branch, error)
}

// branchRepository implements BranchRepository
type branchRepository struct {
	db *gorm.DB
}

// NewBranchRepository creates a new branch repository
func NewBranchRepository(db *gorm.DB) BranchRepository {
	return &branchRepository{db: db}
}

func (r *branchRepository) Create(ctx context.Context, branch *models.Branch) error {
	if err := r.db.WithContext(ctx).Create(branch).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *branchRepository) GetByID(ctx context.Context, id uint) (*models.Branch, error) {
	var branch models.Branch
	if err := r.db.WithContext(ctx).Preload("Partner").First(&branch, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Branch", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &branch, nil
}

func (r *branchRepository) Update(ctx context.Context, branch *models.Branch) error {
	if err := r.db.WithContext(ctx).Save(branch).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// ListActive returns matcher candidates: active, non-deleted branches of
// active partners, optionally narrowed to one partner or to partners that
// offer a given category.
func (r *branchRepository) ListActive(ctx context.Context, filter BranchFilter) ([]models.Branch, error) {
	var branches []models.Branch

	q := r.db.WithContext(ctx).
		Joins("JOIN partners p ON p.id = branches.partner_id AND p.active = ? AND p.deleted_at IS NULL", true).
		Where("branches.active = ?", true)

	if filter.PartnerID != nil {
		q = q.Where("branches.partner_id = ?", *filter.PartnerID)
	}
	if filter.CategoryID != nil {
		q = q.Joins("JOIN partner_categories pc ON pc.partner_id = p.id").
			Where("pc.category_id = ?", *filter.CategoryID)
	}

	if err := q.Preload("Partner").Find(&branches).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return branches, nil
}

func (r *branchRepository) ListByPartner(ctx context.Context, partnerID uint) ([]models.Branch, error) {
	var branches []models.Branch
	if err := r.db.WithContext(ctx).
		Where("partner_id = ?", partnerID).
		Find(&branches).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return branches, nil
}
