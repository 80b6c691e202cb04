package service

import (
	"context"
	"strconv"
	"strings"

	"dispatch/internal/cache"
	"dispatch/internal/models"
	"dispatch/internal/repository"
	"dispatch/internal/validation"
)

// PartnerService covers the admin-side management of partners, branches and
// runtime settings.
type PartnerService struct {
	partners repository.PartnerRepository
	branches repository.BranchRepository
	users    repository.UserRepository
	settings repository.SettingRepository
}

func NewPartnerService(
	partners repository.PartnerRepository,
	branches repository.BranchRepository,
	users repository.UserRepository,
	settings repository.SettingRepository,
) *PartnerService {
	return &PartnerService{
		partners: partners,
		branches: branches,
		users:    users,
		settings: settings,
	}
}

type CreatePartnerInput struct {
	Name        string
	Email       string
	Phone       string
	CategoryIDs []uint
}

func (s *PartnerService) CreatePartner(ctx context.Context, in CreatePartnerInput) (*models.Partner, error) {
	if err := validation.ValidateName(in.Name); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	if in.Email != "" {
		if err := validation.ValidateEmail(in.Email); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
	}
	if err := validation.ValidatePhone(in.Phone); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	partner := models.Partner{
		Name:   strings.TrimSpace(in.Name),
		Email:  in.Email,
		Phone:  in.Phone,
		Active: true,
	}
	if err := s.partners.Create(ctx, &partner); err != nil {
		return nil, err
	}
	if len(in.CategoryIDs) > 0 {
		if err := s.partners.SetCategories(ctx, partner.ID, in.CategoryIDs); err != nil {
			return nil, err
		}
		for _, categoryID := range in.CategoryIDs {
			cache.InvalidateBranchList(ctx, categoryID)
		}
	}
	return s.partners.GetByID(ctx, partner.ID)
}

func (s *PartnerService) GetPartner(ctx context.Context, id uint) (*models.Partner, error) {
	return s.partners.GetByID(ctx, id)
}

func (s *PartnerService) ListPartners(ctx context.Context, limit, offset int) ([]models.Partner, error) {
	return s.partners.List(ctx, limit, offset)
}

// SetCategories replaces the partner's category links.
func (s *PartnerService) SetCategories(ctx context.Context, partnerID uint, categoryIDs []uint) error {
	if _, err := s.partners.GetByID(ctx, partnerID); err != nil {
		return err
	}
	if err := s.partners.SetCategories(ctx, partnerID, categoryIDs); err != nil {
		return err
	}
	for _, categoryID := range categoryIDs {
		cache.InvalidateBranchList(ctx, categoryID)
	}
	return nil
}

type CreateBranchInput struct {
	PartnerID       uint
	Name            string
	Address         string
	Lat             float64
	Lng             float64
	ServiceRadiusKm float64
}

func (s *PartnerService) CreateBranch(ctx context.Context, in CreateBranchInput) (*models.Branch, error) {
	if err := validation.ValidateName(in.Name); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidateCoordinates(in.Lat, in.Lng); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if in.ServiceRadiusKm < 0 {
		return nil, models.NewValidationError("Service radius cannot be negative")
	}
	if _, err := s.partners.GetByID(ctx, in.PartnerID); err != nil {
		return nil, err
	}

	branch := models.Branch{
		PartnerID:       in.PartnerID,
		Name:            strings.TrimSpace(in.Name),
		Address:         in.Address,
		Lat:             in.Lat,
		Lng:             in.Lng,
		ServiceRadiusKm: in.ServiceRadiusKm,
		Active:          true,
	}
	if branch.ServiceRadiusKm == 0 {
		branch.ServiceRadiusKm = models.DefaultServiceRadiusKm
	}
	if err := s.branches.Create(ctx, &branch); err != nil {
		return nil, err
	}
	return &branch, nil
}

func (s *PartnerService) ListBranches(ctx context.Context, partnerID uint) ([]models.Branch, error) {
	return s.branches.ListByPartner(ctx, partnerID)
}

// SetBranchActive toggles a branch in or out of the matcher's candidate
// pool.
func (s *PartnerService) SetBranchActive(ctx context.Context, branchID uint, active bool) (*models.Branch, error) {
	branch, err := s.branches.GetByID(ctx, branchID)
	if err != nil {
		return nil, err
	}
	branch.Active = active
	if err := s.branches.Update(ctx, branch); err != nil {
		return nil, err
	}
	return branch, nil
}

// AddBranchMember links a partner user to a branch so they receive that
// branch's notifications.
func (s *PartnerService) AddBranchMember(ctx context.Context, userID, branchID uint) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.UserType != models.UserTypePartner {
		return models.NewValidationError("Only partner users can join branches")
	}
	branch, err := s.branches.GetByID(ctx, branchID)
	if err != nil {
		return err
	}
	if user.PartnerID == nil || *user.PartnerID != branch.PartnerID {
		return models.NewValidationError("User does not belong to the branch's partner")
	}
	return s.users.AddBranchMembership(ctx, userID, branchID)
}

// SetSLATimeout writes the global or a partner-scoped response budget.
// partnerID nil targets the global scope.
func (s *PartnerService) SetSLATimeout(ctx context.Context, partnerID *uint, minutes int) error {
	if minutes < 1 {
		return models.NewValidationError("SLA timeout must be at least one minute")
	}
	scope := models.SettingScopeGlobal
	if partnerID != nil {
		if _, err := s.partners.GetByID(ctx, *partnerID); err != nil {
			return err
		}
		scope = models.PartnerScope(*partnerID)
	}
	return s.settings.Set(ctx, scope, models.SettingKeySLATimeoutMinutes, strconv.Itoa(minutes))
}

// SetOpsEmails stores the comma-separated operations mailing list.
func (s *PartnerService) SetOpsEmails(ctx context.Context, emails []string) error {
	cleaned := make([]string, 0, len(emails))
	for _, addr := range emails {
		addr = strings.TrimSpace(addr)
		if addr == "" {
			continue
		}
		if err := validation.ValidateEmail(addr); err != nil {
			return models.NewValidationError(err.Error())
		}
		cleaned = append(cleaned, addr)
	}
	return s.settings.Set(ctx, models.SettingScopeNotifications, models.SettingKeyOpsEmails, strings.Join(cleaned, ","))
}
