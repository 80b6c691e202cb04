package seed

import (
	"context"
	"fmt"
	"log"
	"time"

	"dispatch/internal/lifecycle"
	"dispatch/internal/models"
	"dispatch/internal/sla"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/gorm"
)

// Options configuration for the seeder
type Options struct {
	NumPartners  int
	NumCustomers int
	NumRequests  int
	ShouldClean  bool
	// CenterLat/CenterLng anchor the generated branch cluster. Defaults to
	// central Berlin.
	CenterLat float64
	CenterLng float64
}

var defaultCategories = map[string][]string{
	"Appliance Repair": {"Washing machine repair", "Refrigerator repair", "Oven repair"},
	"Electronics":      {"Phone screen replacement", "Laptop diagnostics", "TV repair"},
	"Plumbing":         {"Leak repair", "Pipe replacement", "Fixture installation"},
	"Cleaning":         {"Deep cleaning", "Window cleaning", "Move-out cleaning"},
	"Locksmith":        {"Lock replacement", "Emergency opening"},
}

var requestDescriptions = []string{
	"The machine stops mid-cycle and shows an error code.",
	"There is a slow leak under the kitchen sink.",
	"Screen is cracked but the device still works.",
	"Needs a full deep clean before the new tenant moves in.",
	"The lock jams and the key no longer turns smoothly.",
	"Stopped working after a power outage yesterday.",
}

// Run populates the database with demo data for development.
func Run(db *gorm.DB, opts Options) error {
	if opts.NumPartners <= 0 {
		opts.NumPartners = 4
	}
	if opts.NumCustomers <= 0 {
		opts.NumCustomers = 10
	}
	if opts.NumRequests <= 0 {
		opts.NumRequests = 20
	}
	if opts.CenterLat == 0 && opts.CenterLng == 0 {
		opts.CenterLat = 52.52
		opts.CenterLng = 13.405
	}

	if opts.ShouldClean {
		if err := Clean(db); err != nil {
			return err
		}
	}

	ctx := context.Background()
	factory := NewFactory(db)
	machine := lifecycle.NewMachine(db)

	// Categories and services
	var categories []models.Category
	for name, services := range defaultCategories {
		category, err := factory.CreateCategory(name)
		if err != nil {
			return err
		}
		for _, svcName := range services {
			if _, err := factory.CreateService(category.ID, svcName); err != nil {
				return err
			}
		}
		categories = append(categories, *category)
	}
	log.Printf("seeded %d categories", len(categories))

	// Admin account with a stable email for local logins
	if _, err := factory.CreateUser(models.UserTypeAdmin, func(u *models.User) {
		u.Name = "Dispatch Admin"
		u.Email = "admin@dispatch.local"
	}); err != nil {
		return err
	}

	// Partners, their branches, and branch staff
	var branches []models.Branch
	for i := 0; i < opts.NumPartners; i++ {
		categoryIDs := []uint{pick(factory.rand, categories).ID, pick(factory.rand, categories).ID}
		partner, err := factory.CreatePartner(gofakeit.Company(), categoryIDs)
		if err != nil {
			return err
		}

		numBranches := 1 + factory.rand.Intn(3)
		for j := 0; j < numBranches; j++ {
			branch, err := factory.CreateBranch(partner.ID, opts.CenterLat, opts.CenterLng)
			if err != nil {
				return err
			}
			branches = append(branches, *branch)

			staff, err := factory.CreateUser(models.UserTypePartner, func(u *models.User) {
				u.PartnerID = &partner.ID
			})
			if err != nil {
				return err
			}
			if err := factory.AddBranchMember(staff.ID, branch.ID); err != nil {
				return err
			}
		}
	}
	log.Printf("seeded %d partners with %d branches", opts.NumPartners, len(branches))

	// Customers
	var customers []models.User
	for i := 0; i < opts.NumCustomers; i++ {
		customer, err := factory.CreateUser(models.UserTypeCustomer)
		if err != nil {
			return err
		}
		customers = append(customers, *customer)
	}

	// Requests in a spread of lifecycle states
	for i := 0; i < opts.NumRequests; i++ {
		customer := pick(factory.rand, customers)
		category := pick(factory.rand, categories)

		request, err := machine.Create(ctx, lifecycle.CreateInput{
			CustomerID:      customer.ID,
			CustomerName:    customer.Name,
			CustomerPhone:   customer.Phone,
			CustomerAddress: gofakeit.Street() + ", " + gofakeit.City(),
			Lat:             factory.jitter(opts.CenterLat, 0.1),
			Lng:             factory.jitter(opts.CenterLng, 0.1),
			CategoryID:      category.ID,
			PickupOption:    models.PickupOptionOnSite,
			Description:     pick(factory.rand, requestDescriptions),
		})
		if err != nil {
			return fmt.Errorf("seed request: %w", err)
		}

		if err := advanceRequest(ctx, machine, factory, request, branches); err != nil {
			return err
		}
	}
	log.Printf("seeded %d requests", opts.NumRequests)

	return nil
}

// advanceRequest randomly walks a freshly submitted request part-way through
// its lifecycle so lists and timelines look lived-in.
func advanceRequest(ctx context.Context, machine *lifecycle.Machine, factory *Factory, request *models.Request, branches []models.Branch) error {
	// roughly a third stay in the submitted pool
	if factory.rand.Intn(3) == 0 || len(branches) == 0 {
		return nil
	}

	branch := pick(factory.rand, branches)
	deadline := sla.Deadline(time.Now().UTC(), 15)
	if _, err := machine.Assign(ctx, lifecycle.AssignInput{
		RequestID: request.ID,
		PartnerID: branch.PartnerID,
		BranchID:  branch.ID,
		Deadline:  deadline,
	}); err != nil {
		return fmt.Errorf("seed assign: %w", err)
	}

	steps := []models.RequestStatus{
		models.RequestStatusConfirmed,
		models.RequestStatusInProgress,
		models.RequestStatusCompleted,
		models.RequestStatusClosed,
	}
	depth := factory.rand.Intn(len(steps) + 1)
	for _, target := range steps[:depth] {
		if _, err := machine.Transition(ctx, request.ID, lifecycle.TransitionInput{Target: target}); err != nil {
			return fmt.Errorf("seed transition to %s: %w", target, err)
		}
	}

	// Completed requests sometimes pick up a rating before closure.
	if depth == 3 && factory.rand.Intn(2) == 0 {
		rating := 3 + factory.rand.Intn(3)
		if _, err := machine.Rate(ctx, request.ID, rating, "Quick and friendly service.", request.CustomerID); err != nil {
			return fmt.Errorf("seed rating: %w", err)
		}
	}
	return nil
}

// Clean removes all seeded data. Order respects foreign keys.
func Clean(db *gorm.DB) error {
	tables := []string{
		"notifications",
		"status_logs",
		"assignments",
		"requests",
		"request_counters",
		"branch_memberships",
		"partner_categories",
		"branches",
		"services",
		"categories",
		"partners",
		"settings",
		"users",
	}
	for _, table := range tables {
		if err := db.Exec("DELETE FROM " + table).Error; err != nil {
			return fmt.Errorf("clean %s: %w", table, err)
		}
	}
	log.Println("cleaned existing data")
	return nil
}
