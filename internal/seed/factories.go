// Package seed provides helpers to create test and demo data for the
// application database. These helpers are intended for development and
// testing only.
package seed

import (
	"fmt"
	"math/rand"
	"time"

	"dispatch/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Factory builds domain entities and persists them to the database.
// It is a thin helper used by seed presets and tests.
type Factory struct {
	db   *gorm.DB
	rand *rand.Rand
}

// NewFactory creates a new Factory bound to the provided Gorm DB.
func NewFactory(db *gorm.DB) *Factory {
	gofakeit.Seed(time.Now().UnixNano())
	return &Factory{
		db:   db,
		rand: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// seedPassword is shared by all generated accounts so developers can log in
// as any of them.
const seedPassword = "Password123!"

// CreateUser persists a user of the given type. Partner users must carry a
// partner id via overrides.
func (f *Factory) CreateUser(userType models.UserType, overrides ...func(*models.User)) (*models.User, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(seedPassword), bcrypt.MinCost)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Name:     gofakeit.Name(),
		Email:    gofakeit.Email(),
		Phone:    gofakeit.Phone(),
		Password: string(hashed),
		UserType: userType,
		Active:   true,
	}
	for _, override := range overrides {
		override(user)
	}

	if err := f.db.Create(user).Error; err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// CreateCategory persists a category with the given name, reusing an
// existing row on name collision.
func (f *Factory) CreateCategory(name string) (*models.Category, error) {
	category := &models.Category{Name: name}
	if err := f.db.Where(models.Category{Name: name}).FirstOrCreate(category).Error; err != nil {
		return nil, fmt.Errorf("create category: %w", err)
	}
	return category, nil
}

// CreateService persists a service offering under a category.
func (f *Factory) CreateService(categoryID uint, name string) (*models.Service, error) {
	svc := &models.Service{CategoryID: categoryID, Name: name}
	if err := f.db.Create(svc).Error; err != nil {
		return nil, fmt.Errorf("create service: %w", err)
	}
	return svc, nil
}

// CreatePartner persists a partner linked to the given categories.
func (f *Factory) CreatePartner(name string, categoryIDs []uint) (*models.Partner, error) {
	partner := &models.Partner{
		Name:   name,
		Email:  gofakeit.Email(),
		Phone:  gofakeit.Phone(),
		Active: true,
	}
	if err := f.db.Create(partner).Error; err != nil {
		return nil, fmt.Errorf("create partner: %w", err)
	}
	if len(categoryIDs) > 0 {
		categories := make([]models.Category, 0, len(categoryIDs))
		if err := f.db.Find(&categories, categoryIDs).Error; err != nil {
			return nil, err
		}
		if err := f.db.Model(partner).Association("Categories").Replace(categories); err != nil {
			return nil, fmt.Errorf("link partner categories: %w", err)
		}
	}
	return partner, nil
}

// CreateBranch persists a branch at a point jittered around the given
// center, so seeded branches cluster like a real city footprint.
func (f *Factory) CreateBranch(partnerID uint, centerLat, centerLng float64, overrides ...func(*models.Branch)) (*models.Branch, error) {
	branch := &models.Branch{
		PartnerID:       partnerID,
		Name:            gofakeit.Company() + " " + gofakeit.City(),
		Address:         gofakeit.Street() + ", " + gofakeit.City(),
		Lat:             f.jitter(centerLat, 0.08),
		Lng:             f.jitter(centerLng, 0.08),
		ServiceRadiusKm: float64(5 + f.rand.Intn(16)),
		Active:          true,
	}
	for _, override := range overrides {
		override(branch)
	}

	if err := f.db.Create(branch).Error; err != nil {
		return nil, fmt.Errorf("create branch: %w", err)
	}
	return branch, nil
}

// AddBranchMember links a partner user to a branch.
func (f *Factory) AddBranchMember(userID, branchID uint) error {
	membership := &models.BranchMembership{UserID: userID, BranchID: branchID}
	if err := f.db.Create(membership).Error; err != nil {
		return fmt.Errorf("create branch membership: %w", err)
	}
	return nil
}

// jitter returns base shifted by up to +/- spread degrees.
func (f *Factory) jitter(base, spread float64) float64 {
	return base + (f.rand.Float64()*2-1)*spread
}

// pick returns a random element of the slice.
func pick[T any](r *rand.Rand, items []T) T {
	return items[r.Intn(len(items))]
}
