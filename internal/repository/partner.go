package repository

import (
	"context"
	"errors"

	"dispatch/internal/models"

	"gorm.io/gorm"
)

// PartnerRepository defines the interface for partner data operations
type PartnerRepository interface {
	Create(ctx context.Context, partner *models.Partner) error
	GetByID(ctx context.Context, id uint) (*models.Partner, error)
	List(ctx context.Context, limit, offset int) ([]models.Partner, error)
	SetCategories(ctx context.Context, partnerID uint, categoryIDs []uint) error
}

// partnerRepository implements PartnerRepository
type partnerRepository struct {
	db *gorm.DB
}

// NewPartnerRepository creates a new partner repository
func NewPartnerRepository(db *gorm.DB) PartnerRepository {
	return &partnerRepository{db: db}
}

func (r *partnerRepository) Create(ctx context.Context, partner *models.Partner) error {
	if err := r.db.WithContext(ctx).Create(partner).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *partnerRepository) GetByID(ctx context.Context, id uint) (*models.Partner, error) {
	var partner models.Partner
	if err := r.db.WithContext(ctx).
		Preload("Categories").
		Preload("Branches").
		First(&partner, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Partner", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &partner, nil
}

func (r *partnerRepository) List(ctx context.Context, limit, offset int) ([]models.Partner, error) {
	var partners []models.Partner
	if err := r.db.WithContext(ctx).
		Preload("Categories").
		Limit(limit).
		Offset(offset).
		Order("id").
		Find(&partners).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return partners, nil
}

func (r *partnerRepository) SetCategories(ctx context.Context, partnerID uint, categoryIDs []uint) error {
	var categories []models.Category
	if len(categoryIDs) > 0 {
		if err := r.db.WithContext(ctx).Find(&categories, categoryIDs).Error; err != nil {
			return models.NewInternalError(err)
		}
	}
	partner := models.Partner{ID: partnerID}
	if err := r.db.WithContext(ctx).Model(&partner).Association("Categories").Replace(categories); err != nil {
		return models.NewInternalError(err)
	}
	return nil
}
