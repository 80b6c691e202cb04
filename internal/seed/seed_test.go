package seed

import (
	"testing"

	"dispatch/internal/database"
	"dispatch/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

func TestFactory(t *testing.T) {
	db := openTestDB(t)
	f := NewFactory(db)

	category, err := f.CreateCategory("Appliance Repair")
	require.NoError(t, err)

	// FirstOrCreate keeps category names unique
	again, err := f.CreateCategory("Appliance Repair")
	require.NoError(t, err)
	assert.Equal(t, category.ID, again.ID)

	partner, err := f.CreatePartner("FixIt GmbH", []uint{category.ID})
	require.NoError(t, err)
	var linked int64
	require.NoError(t, db.Table("partner_categories").
		Where("partner_id = ?", partner.ID).Count(&linked).Error)
	assert.Equal(t, int64(1), linked)

	branch, err := f.CreateBranch(partner.ID, 52.52, 13.405)
	require.NoError(t, err)
	assert.InDelta(t, 52.52, branch.Lat, 0.081)
	assert.InDelta(t, 13.405, branch.Lng, 0.081)
	assert.GreaterOrEqual(t, branch.ServiceRadiusKm, 5.0)
	assert.LessOrEqual(t, branch.ServiceRadiusKm, 20.0)

	staff, err := f.CreateUser(models.UserTypePartner, func(u *models.User) {
		u.PartnerID = &partner.ID
	})
	require.NoError(t, err)
	require.NoError(t, f.AddBranchMember(staff.ID, branch.ID))
}

func TestRun(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, Run(db, Options{
		NumPartners:  2,
		NumCustomers: 3,
		NumRequests:  5,
	}))

	var partners, customers, requests, logs int64
	require.NoError(t, db.Model(&models.Partner{}).Count(&partners).Error)
	require.NoError(t, db.Model(&models.User{}).
		Where("user_type = ?", models.UserTypeCustomer).Count(&customers).Error)
	require.NoError(t, db.Model(&models.Request{}).Count(&requests).Error)
	require.NoError(t, db.Model(&models.StatusLog{}).Count(&logs).Error)

	assert.Equal(t, int64(2), partners)
	assert.Equal(t, int64(3), customers)
	assert.Equal(t, int64(5), requests)
	// Every request at least logs its submission
	assert.GreaterOrEqual(t, logs, requests)

	// The stable dev admin exists
	var admin models.User
	require.NoError(t, db.Where("email = ?", "admin@dispatch.local").First(&admin).Error)
	assert.Equal(t, models.UserTypeAdmin, admin.UserType)

	// Request numbers follow the day-scoped format
	var first models.Request
	require.NoError(t, db.Order("id").First(&first).Error)
	assert.Regexp(t, `^REQ-\d{8}-\d{4}$`, first.Number)
}

func TestRunClean(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, Run(db, Options{NumPartners: 1, NumCustomers: 1, NumRequests: 2}))
	require.NoError(t, Run(db, Options{NumPartners: 1, NumCustomers: 1, NumRequests: 2, ShouldClean: true}))

	var requests int64
	require.NoError(t, db.Model(&models.Request{}).Count(&requests).Error)
	assert.Equal(t, int64(2), requests)
}
