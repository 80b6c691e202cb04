// Package bootstrap wires shared runtime dependencies for the binaries.
package bootstrap

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"dispatch/internal/cache"
	"dispatch/internal/config"
	"dispatch/internal/database"
	"dispatch/internal/models"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// EnsureDevAdmin creates a development admin account when none exists.
	EnsureDevAdmin bool
}

// InitRuntime connects to DB and Redis and optionally bootstraps a
// development admin account.
func InitRuntime(cfg *config.Config, opts Options) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	// Init Redis (may result in nil client if unreachable)
	cache.InitRedis(cfg.RedisURL)
	r := cache.GetClient()

	if opts.EnsureDevAdmin {
		if err := ensureDevAdmin(cfg, db); err != nil {
			return nil, nil, fmt.Errorf("failed to bootstrap development admin: %w", err)
		}
	}

	return db, r, nil
}

// ensureDevAdmin creates a well-known admin account in development so a
// fresh database is immediately usable. Production is never touched.
func ensureDevAdmin(cfg *config.Config, db *gorm.DB) error {
	if cfg == nil || db == nil {
		return nil
	}
	if !strings.EqualFold(cfg.Env, "development") {
		return nil
	}

	var existing models.User
	findErr := db.Where("user_type = ?", models.UserTypeAdmin).First(&existing).Error
	switch {
	case findErr == nil:
		return nil
	case !errors.Is(findErr, gorm.ErrRecordNotFound):
		return findErr
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte("Password123!"), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	admin := models.User{
		Name:     "Dispatch Admin",
		Email:    "admin@dispatch.local",
		Phone:    "+10000000000",
		Password: string(hashedPassword),
		UserType: models.UserTypeAdmin,
		Active:   true,
	}
	if err := db.Create(&admin).Error; err != nil {
		return fmt.Errorf("create admin: %w", err)
	}
	log.Println("created development admin admin@dispatch.local")
	return nil
}
