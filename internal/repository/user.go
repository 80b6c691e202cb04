// Package repository provides data access layer implementations for the application.
package repository

import (
	"context"
	"errors"

	"dispatch/internal/models"

	"gorm.io/gorm"
)

// UserRepository defines the interface for user data operations
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	ListAdmins(ctx context.Context) ([]models.User, error)
	ListBranchUsers(ctx context.Context, branchID uint) ([]models.User, error)
	AddBranchMembership(ctx context.Context, userID, branchID uint) error
}

// userRepository implements UserRepository
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("User", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil // no account with this email
		}
		return nil, models.NewInternalError(err)
	}
	return &user, nil
}

func (r *userRepository) Update(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Save(user).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *userRepository) ListAdmins(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := r.db.WithContext(ctx).
		Where("user_type = ? AND active = ?", models.UserTypeAdmin, true).
		Find(&users).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return users, nil
}

func (r *userRepository) ListBranchUsers(ctx context.Context, branchID uint) ([]models.User, error) {
	var users []models.User

	// Resolve branch staff through the membership relation; soft-deleted
	// users are excluded by GORM's default scope on the users table.
	if err := r.db.WithContext(ctx).
		Table("users").
		Joins("JOIN branch_memberships bm ON bm.user_id = users.id").
		Where("bm.branch_id = ? AND users.active = ? AND users.deleted_at IS NULL", branchID, true).
		Find(&users).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return users, nil
}

func (r *userRepository) AddBranchMembership(ctx context.Context, userID, branchID uint) error {
	membership := models.BranchMembership{UserID: userID, BranchID: branchID}
	if err := r.db.WithContext(ctx).Create(&membership).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}
