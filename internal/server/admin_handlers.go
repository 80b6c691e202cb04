package server

import (
	"dispatch/internal/models"
	"dispatch/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CreatePartner handles POST /api/admin/partners
func (s *Server) CreatePartner(c *fiber.Ctx) error {
	var req struct {
		Name        string `json:"name"`
		Email       string `json:"email"`
		Phone       string `json:"phone"`
		CategoryIDs []uint `json:"category_ids"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	partner, err := s.partnerService.CreatePartner(c.Context(), service.CreatePartnerInput{
		Name:        req.Name,
		Email:       req.Email,
		Phone:       req.Phone,
		CategoryIDs: req.CategoryIDs,
	})
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(partner)
}

// ListPartners handles GET /api/admin/partners
func (s *Server) ListPartners(c *fiber.Ctx) error {
	p := parsePagination(c, 50)

	partners, err := s.partnerService.ListPartners(c.Context(), p.Limit, p.Offset)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"partners": partners,
		"limit":    p.Limit,
		"offset":   p.Offset,
	})
}

// GetPartner handles GET /api/admin/partners/:id
func (s *Server) GetPartner(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	partner, err := s.partnerService.GetPartner(c.Context(), id)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(partner)
}

// SetPartnerCategories handles PUT /api/admin/partners/:id/categories
func (s *Server) SetPartnerCategories(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		CategoryIDs []uint `json:"category_ids"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	if err := s.partnerService.SetCategories(c.Context(), id, req.CategoryIDs); err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(fiber.Map{"message": "Categories updated"})
}

// CreateBranch handles POST /api/admin/partners/:id/branches
func (s *Server) CreateBranch(c *fiber.Ctx) error {
	partnerID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		Name            string  `json:"name"`
		Address         string  `json:"address"`
		Lat             float64 `json:"lat"`
		Lng             float64 `json:"lng"`
		ServiceRadiusKm float64 `json:"service_radius_km"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	branch, err := s.partnerService.CreateBranch(c.Context(), service.CreateBranchInput{
		PartnerID:       partnerID,
		Name:            req.Name,
		Address:         req.Address,
		Lat:             req.Lat,
		Lng:             req.Lng,
		ServiceRadiusKm: req.ServiceRadiusKm,
	})
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(branch)
}

// ListBranches handles GET /api/admin/partners/:id/branches
func (s *Server) ListBranches(c *fiber.Ctx) error {
	partnerID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	branches, err := s.partnerService.ListBranches(c.Context(), partnerID)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(fiber.Map{"branches": branches})
}

// SetBranchActive handles PUT /api/admin/branches/:id/active
func (s *Server) SetBranchActive(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		Active bool `json:"active"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	branch, err := s.partnerService.SetBranchActive(c.Context(), id, req.Active)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(branch)
}

// AddBranchMember handles POST /api/admin/branches/:id/members
func (s *Server) AddBranchMember(c *fiber.Ctx) error {
	branchID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		UserID uint `json:"user_id"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	if req.UserID == 0 {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("User ID is required"))
	}

	if err := s.partnerService.AddBranchMember(c.Context(), req.UserID, branchID); err != nil {
		return respondServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "Member added"})
}

// SetSLATimeout handles PUT /api/admin/settings/sla-timeout. Omitting
// partner_id sets the global default.
func (s *Server) SetSLATimeout(c *fiber.Ctx) error {
	var req struct {
		PartnerID *uint `json:"partner_id"`
		Minutes   int   `json:"minutes"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	if err := s.partnerService.SetSLATimeout(c.Context(), req.PartnerID, req.Minutes); err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(fiber.Map{"message": "SLA timeout updated"})
}

// SetOpsEmails handles PUT /api/admin/settings/ops-emails
func (s *Server) SetOpsEmails(c *fiber.Ctx) error {
	var req struct {
		Emails []string `json:"emails"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	if err := s.partnerService.SetOpsEmails(c.Context(), req.Emails); err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(fiber.Map{"message": "Ops mailing list updated"})
}
