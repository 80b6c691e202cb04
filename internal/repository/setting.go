package repository

import (
	"context"
	"errors"

	"dispatch/internal/models"

	"gorm.io/gorm"
)

// SettingRepository is the narrow configuration accessor consumed by the
// core: Get returns the stored value or "" when the key is not set.
type SettingRepository interface {
	Get(ctx context.Context, scope, key string) (string, error)
	Set(ctx context.Context, scope, key, value string) error
}

// settingRepository implements SettingRepository
type settingRepository struct {
	db *gorm.DB
}

// NewSettingRepository creates a new setting repository
func NewSettingRepository(db *gorm.DB) SettingRepository {
	return &settingRepository{db: db}
}

func (r *settingRepository) Get(ctx context.Context, scope, key string) (string, error) {
	var setting models.Setting
	if err := r.db.WithContext(ctx).
		Where("scope = ? AND key = ?", scope, key).
		First(&setting).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil // not configured
		}
		return "", models.NewInternalError(err)
	}
	return setting.Value, nil
}

func (r *settingRepository) Set(ctx context.Context, scope, key, value string) error {
	setting := models.Setting{Scope: scope, Key: key, Value: value}
	err := r.db.WithContext(ctx).
		Where("scope = ? AND key = ?", scope, key).
		Assign(map[string]interface{}{"value": value}).
		FirstOrCreate(&setting).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}
