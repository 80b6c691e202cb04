package database

import "dispatch/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.BranchMembership{},
		&models.Partner{},
		&models.Category{},
		&models.Service{},
		&models.Branch{},
		&models.Request{},
		&models.RequestCounter{},
		&models.Assignment{},
		&models.StatusLog{},
		&models.Notification{},
		&models.Setting{},
	}
}
