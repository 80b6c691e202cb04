package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"dispatch/internal/database"
	"dispatch/internal/lifecycle"
	"dispatch/internal/models"
	"dispatch/internal/notify"
	"dispatch/internal/repository"
	"dispatch/internal/sla"

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

// recordingSink captures fan-out events without a dispatcher.
type recordingSink struct {
	events []notify.Event
}

func (r *recordingSink) Enqueue(evt notify.Event) {
	r.events = append(r.events, evt)
}

func (r *recordingSink) types() []notify.EventType {
	out := make([]notify.EventType, 0, len(r.events))
	for _, evt := range r.events {
		out = append(out, evt.Type)
	}
	return out
}

type fixture struct {
	db       *gorm.DB
	svc      *RequestService
	sink     *recordingSink
	settings repository.SettingRepository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := openTestDB(t)

	settingRepo := repository.NewSettingRepository(db)
	sink := &recordingSink{}
	svc := NewRequestService(
		repository.NewRequestRepository(db),
		repository.NewBranchRepository(db),
		repository.NewAssignmentRepository(db),
		repository.NewStatusLogRepository(db),
		lifecycle.NewMachine(db),
		sla.NewPolicy(settingRepo, nil),
		sink,
	)
	return &fixture{db: db, svc: svc, sink: sink, settings: settingRepo}
}

var userSeq uint64

func (f *fixture) createUser(t *testing.T, userType models.UserType, partnerID *uint) *models.User {
	t.Helper()
	userSeq++
	user := &models.User{
		Name:      "Test " + string(userType),
		Email:     fmt.Sprintf("%s-%d@example.com", userType, userSeq),
		Password:  "x",
		UserType:  userType,
		PartnerID: partnerID,
		Active:    true,
	}
	require.NoError(t, f.db.Create(user).Error)
	return user
}

func (f *fixture) createBranch(t *testing.T, partnerID uint, active bool) *models.Branch {
	t.Helper()
	branch := &models.Branch{
		PartnerID:       partnerID,
		Name:            "Branch",
		Lat:             52.52,
		Lng:             13.405,
		ServiceRadiusKm: 10,
		Active:          active,
	}
	require.NoError(t, f.db.Create(branch).Error)
	return branch
}

func (f *fixture) createPartner(t *testing.T) *models.Partner {
	t.Helper()
	partner := &models.Partner{Name: "Partner", Active: true}
	require.NoError(t, f.db.Create(partner).Error)
	return partner
}

func validCreateInput(customerID uint) CreateRequestInput {
	return CreateRequestInput{
		CustomerID:    customerID,
		CustomerName:  "Jordan Reyes",
		CustomerPhone: "+4915112345678",
		Lat:           52.52,
		Lng:           13.405,
		CategoryID:    1,
		Description:   "The oven no longer heats up.",
	}
}

func TestCreateRequest(t *testing.T) {
	f := newFixture(t)
	customer := f.createUser(t, models.UserTypeCustomer, nil)
	ctx := context.Background()

	request, err := f.svc.CreateRequest(ctx, validCreateInput(customer.ID))
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusSubmitted, request.Status)
	assert.NotEmpty(t, request.Number)
	assert.Equal(t, []notify.EventType{notify.EventSubmitted}, f.sink.types())

	t.Run("rejects bad coordinates", func(t *testing.T) {
		in := validCreateInput(customer.ID)
		in.Lat, in.Lng = 0, 0
		_, err := f.svc.CreateRequest(ctx, in)
		require.Error(t, err)
	})

	t.Run("rejects missing category", func(t *testing.T) {
		in := validCreateInput(customer.ID)
		in.CategoryID = 0
		_, err := f.svc.CreateRequest(ctx, in)
		require.Error(t, err)
	})

	t.Run("rejects unknown pickup option", func(t *testing.T) {
		in := validCreateInput(customer.ID)
		in.PickupOption = "teleport"
		_, err := f.svc.CreateRequest(ctx, in)
		require.Error(t, err)
	})
}

func TestAssignRequest_UsesSLAPolicy(t *testing.T) {
	f := newFixture(t)
	customer := f.createUser(t, models.UserTypeCustomer, nil)
	admin := f.createUser(t, models.UserTypeAdmin, nil)
	partner := f.createPartner(t)
	branch := f.createBranch(t, partner.ID, true)
	ctx := context.Background()

	require.NoError(t, f.settings.Set(ctx, models.PartnerScope(partner.ID), models.SettingKeySLATimeoutMinutes, "30"))

	request, err := f.svc.CreateRequest(ctx, validCreateInput(customer.ID))
	require.NoError(t, err)

	before := time.Now().UTC()
	assigned, err := f.svc.AssignRequest(ctx, AssignRequestInput{
		RequestID: request.ID,
		PartnerID: partner.ID,
		BranchID:  branch.ID,
		ActorID:   &admin.ID,
	})
	require.NoError(t, err)

	assert.Equal(t, models.RequestStatusAssigned, assigned.Status)
	require.NotNil(t, assigned.SLADeadline)
	assert.WithinDuration(t, before.Add(30*time.Minute), *assigned.SLADeadline, 5*time.Second)
	assert.Contains(t, f.sink.types(), notify.EventAssigned)
}

func TestAssignRequest_RejectsMismatchedBranch(t *testing.T) {
	f := newFixture(t)
	customer := f.createUser(t, models.UserTypeCustomer, nil)
	partner := f.createPartner(t)
	otherPartner := f.createPartner(t)
	branch := f.createBranch(t, otherPartner.ID, true)
	inactive := f.createBranch(t, partner.ID, false)
	ctx := context.Background()

	request, err := f.svc.CreateRequest(ctx, validCreateInput(customer.ID))
	require.NoError(t, err)

	// Branch belongs to a different partner
	_, err = f.svc.AssignRequest(ctx, AssignRequestInput{
		RequestID: request.ID, PartnerID: partner.ID, BranchID: branch.ID,
	})
	require.Error(t, err)

	// Branch exists but is inactive
	_, err = f.svc.AssignRequest(ctx, AssignRequestInput{
		RequestID: request.ID, PartnerID: partner.ID, BranchID: inactive.ID,
	})
	require.Error(t, err)
}

func TestRequestLifecycle_EndToEnd(t *testing.T) {
	f := newFixture(t)
	customer := f.createUser(t, models.UserTypeCustomer, nil)
	admin := f.createUser(t, models.UserTypeAdmin, nil)
	partner := f.createPartner(t)
	branch := f.createBranch(t, partner.ID, true)
	partnerUser := f.createUser(t, models.UserTypePartner, &partner.ID)
	ctx := context.Background()

	request, err := f.svc.CreateRequest(ctx, validCreateInput(customer.ID))
	require.NoError(t, err)

	assign := func() {
		_, err := f.svc.AssignRequest(ctx, AssignRequestInput{
			RequestID: request.ID, PartnerID: partner.ID, BranchID: branch.ID, ActorID: &admin.ID,
		})
		require.NoError(t, err)
	}

	// First assignment is rejected by the partner and returns to the pool
	assign()
	rejected, err := f.svc.UpdateStatus(ctx, request.ID, UpdateStatusInput{
		Target:          models.RequestStatusRejected,
		ActorID:         &partnerUser.ID,
		RejectionReason: "Fully booked",
	})
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusUnassigned, rejected.Status)

	// Second assignment runs to completion
	assign()
	for _, target := range []models.RequestStatus{
		models.RequestStatusConfirmed,
		models.RequestStatusInProgress,
		models.RequestStatusCompleted,
	} {
		_, err := f.svc.UpdateStatus(ctx, request.ID, UpdateStatusInput{
			Target: target, ActorID: &partnerUser.ID,
		})
		require.NoError(t, err, "transition to %s", target)
	}

	rated, err := f.svc.RateRequest(ctx, request.ID, 5, "Fast and tidy.", customer.ID)
	require.NoError(t, err)
	require.NotNil(t, rated.Rating)

	closed, err := f.svc.CloseRequest(ctx, request.ID, &admin.ID, "")
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusClosed, closed.Status)

	assert.Equal(t, []notify.EventType{
		notify.EventSubmitted,
		notify.EventAssigned,
		notify.EventRejected,
		notify.EventAssigned,
		notify.EventConfirmed,
		notify.EventInProgress,
		notify.EventCompleted,
		notify.EventRated,
		notify.EventClosed,
	}, f.sink.types())

	// The timeline shows both assignment attempts and every status change
	timeline, err := f.svc.GetTimeline(ctx, request.ID, admin)
	require.NoError(t, err)
	assert.Len(t, timeline.Assignments, 2)
	// submitted, assigned, rejected, assigned, confirmed, in_progress,
	// completed, rated, closed
	assert.Len(t, timeline.StatusLog, 9)
}

func TestRateRequest_WrongStatusSurfacesConflict(t *testing.T) {
	f := newFixture(t)
	customer := f.createUser(t, models.UserTypeCustomer, nil)
	ctx := context.Background()

	request, err := f.svc.CreateRequest(ctx, validCreateInput(customer.ID))
	require.NoError(t, err)

	_, err = f.svc.RateRequest(ctx, request.ID, 5, "", customer.ID)
	require.Error(t, err)
	appErr, ok := err.(*models.AppError)
	require.True(t, ok)
	assert.Equal(t, models.CodeInvalidTransition, appErr.Code)

	_, err = f.svc.RateRequest(ctx, request.ID, 9, "", customer.ID)
	require.Error(t, err)
	appErr, ok = err.(*models.AppError)
	require.True(t, ok)
	assert.Equal(t, models.CodeValidation, appErr.Code)
}

func TestSuggestBranch(t *testing.T) {
	f := newFixture(t)
	partner := f.createPartner(t)
	category := &models.Category{Name: "Plumbing"}
	require.NoError(t, f.db.Create(category).Error)
	require.NoError(t, f.db.Model(partner).Association("Categories").Append(category))

	branch := f.createBranch(t, partner.ID, true)
	ctx := context.Background()

	match, err := f.svc.SuggestBranch(ctx, category.ID, 52.52, 13.405)
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, branch.ID, match.Branch.ID)

	t.Run("no coverage returns nil match", func(t *testing.T) {
		match, err := f.svc.SuggestBranch(ctx, category.ID, 48.137, 11.575)
		require.NoError(t, err)
		assert.Nil(t, match)
	})

	t.Run("unknown category has no candidates", func(t *testing.T) {
		match, err := f.svc.SuggestBranch(ctx, category.ID+100, 52.52, 13.405)
		require.NoError(t, err)
		assert.Nil(t, match)
	})
}

func TestGetRequest_AccessControl(t *testing.T) {
	f := newFixture(t)
	owner := f.createUser(t, models.UserTypeCustomer, nil)
	stranger := f.createUser(t, models.UserTypeCustomer, nil)
	admin := f.createUser(t, models.UserTypeAdmin, nil)
	ctx := context.Background()

	request, err := f.svc.CreateRequest(ctx, validCreateInput(owner.ID))
	require.NoError(t, err)

	_, err = f.svc.GetRequest(ctx, request.ID, owner)
	assert.NoError(t, err)

	_, err = f.svc.GetRequest(ctx, request.ID, admin)
	assert.NoError(t, err)

	_, err = f.svc.GetRequest(ctx, request.ID, stranger)
	require.Error(t, err)
	appErr, ok := err.(*models.AppError)
	require.True(t, ok)
	assert.Equal(t, models.CodeUnauthorized, appErr.Code)
}

func TestListRequests_ScopesNonAdmins(t *testing.T) {
	f := newFixture(t)
	customerA := f.createUser(t, models.UserTypeCustomer, nil)
	customerB := f.createUser(t, models.UserTypeCustomer, nil)
	admin := f.createUser(t, models.UserTypeAdmin, nil)
	ctx := context.Background()

	_, err := f.svc.CreateRequest(ctx, validCreateInput(customerA.ID))
	require.NoError(t, err)
	_, err = f.svc.CreateRequest(ctx, validCreateInput(customerB.ID))
	require.NoError(t, err)

	// A customer asking for someone else's requests still gets only their own
	list, err := f.svc.ListRequests(ctx, repository.RequestListFilter{CustomerID: &customerB.ID}, customerA)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, customerA.ID, list[0].CustomerID)

	// Admins see everything
	list, err = f.svc.ListRequests(ctx, repository.RequestListFilter{}, admin)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	// Partner user without a partner link is refused
	orphan := f.createUser(t, models.UserTypePartner, nil)
	_, err = f.svc.ListRequests(ctx, repository.RequestListFilter{}, orphan)
	require.Error(t, err)
}
