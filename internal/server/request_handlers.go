package server

import (
	"dispatch/internal/models"
	"dispatch/internal/repository"
	"dispatch/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CreateRequest handles POST /api/requests. The customer snapshot fields
// travel in the body; the owning customer is always the caller.
func (s *Server) CreateRequest(c *fiber.Ctx) error {
	var req struct {
		CustomerName    string  `json:"customer_name"`
		CustomerPhone   string  `json:"customer_phone"`
		CustomerAddress string  `json:"customer_address"`
		Lat             float64 `json:"lat"`
		Lng             float64 `json:"lng"`
		CategoryID      uint    `json:"category_id"`
		ServiceID       *uint   `json:"service_id"`
		PickupOption    string  `json:"pickup_option"`
		Description     string  `json:"description"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	request, err := s.requestService.CreateRequest(c.Context(), service.CreateRequestInput{
		CustomerID:      currentUserID(c),
		CustomerName:    req.CustomerName,
		CustomerPhone:   req.CustomerPhone,
		CustomerAddress: req.CustomerAddress,
		Lat:             req.Lat,
		Lng:             req.Lng,
		CategoryID:      req.CategoryID,
		ServiceID:       req.ServiceID,
		PickupOption:    models.PickupOption(req.PickupOption),
		Description:     req.Description,
	})
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(request)
}

// SuggestBranch handles GET /api/branches/suggest. It is public so the
// submission form can preview coverage before an account exists. A null
// match means no branch covers the location.
func (s *Server) SuggestBranch(c *fiber.Ctx) error {
	categoryID := c.QueryInt("category_id")
	if categoryID <= 0 {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("A service category is required"))
	}
	lat := c.QueryFloat("lat")
	lng := c.QueryFloat("lng")

	match, err := s.requestService.SuggestBranch(c.Context(), uint(categoryID), lat, lng)
	if err != nil {
		return respondServiceError(c, err)
	}
	if match == nil {
		return c.JSON(fiber.Map{"match": nil})
	}
	return c.JSON(fiber.Map{"match": fiber.Map{
		"branch":      match.Branch,
		"distance_km": match.DistanceKm,
	}})
}

// AssignRequest handles POST /api/requests/:id/assign (admin only).
func (s *Server) AssignRequest(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		PartnerID uint   `json:"partner_id"`
		BranchID  uint   `json:"branch_id"`
		Notes     string `json:"notes"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	if req.PartnerID == 0 || req.BranchID == 0 {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Partner and branch are required"))
	}

	actorID := currentUserID(c)
	request, err := s.requestService.AssignRequest(c.Context(), service.AssignRequestInput{
		RequestID: id,
		PartnerID: req.PartnerID,
		BranchID:  req.BranchID,
		ActorID:   &actorID,
		Notes:     req.Notes,
	})
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(request)
}

// UpdateRequestStatus handles POST /api/requests/:id/status. Partner users
// may only act on requests routed to their own partner; customers cannot
// drive transitions at all.
func (s *Server) UpdateRequestStatus(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		Status          string `json:"status"`
		Notes           string `json:"notes"`
		RejectionReason string `json:"rejection_reason"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	if req.Status == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Status is required"))
	}

	actor, err := s.currentUser(c)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}
	if err := s.canTransition(c, actor, id); err != nil {
		return respondServiceError(c, err)
	}

	request, err := s.requestService.UpdateStatus(c.Context(), id, service.UpdateStatusInput{
		Target:          models.RequestStatus(req.Status),
		ActorID:         &actor.ID,
		Notes:           req.Notes,
		RejectionReason: req.RejectionReason,
	})
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(request)
}

// canTransition gates status updates: admins always, partner users only on
// requests routed to their partner.
func (s *Server) canTransition(c *fiber.Ctx, actor *models.User, requestID uint) error {
	if actor.IsAdmin() {
		return nil
	}
	if actor.UserType != models.UserTypePartner || actor.PartnerID == nil {
		return models.NewUnauthorizedError("Only partner or admin users can change request status")
	}
	request, err := s.requestRepo.GetByID(c.Context(), requestID)
	if err != nil {
		return err
	}
	if request.PartnerID == nil || *request.PartnerID != *actor.PartnerID {
		return models.NewUnauthorizedError("You do not have access to this request")
	}
	return nil
}

// CloseRequest handles POST /api/requests/:id/close (admin only).
func (s *Server) CloseRequest(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		Notes string `json:"notes"`
	}
	// Body is optional for close.
	_ = c.BodyParser(&req)

	actorID := currentUserID(c)
	request, err := s.requestService.CloseRequest(c.Context(), id, &actorID, req.Notes)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(request)
}

// RateRequest handles POST /api/requests/:id/rate.
func (s *Server) RateRequest(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		Rating   int    `json:"rating"`
		Feedback string `json:"feedback"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	request, err := s.requestService.RateRequest(c.Context(), id, req.Rating, req.Feedback, currentUserID(c))
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(request)
}

// GetRequest handles GET /api/requests/:id
func (s *Server) GetRequest(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	viewer, err := s.currentUser(c)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}

	request, err := s.requestService.GetRequest(c.Context(), id, viewer)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(request)
}

// GetRequestByNumber handles GET /api/requests/number/:number
func (s *Server) GetRequestByNumber(c *fiber.Ctx) error {
	number := c.Params("number")
	if number == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Request number is required"))
	}

	viewer, err := s.currentUser(c)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}

	request, err := s.requestService.GetRequestByNumber(c.Context(), number, viewer)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(request)
}

// GetRequestTimeline handles GET /api/requests/:id/timeline
func (s *Server) GetRequestTimeline(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	viewer, err := s.currentUser(c)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}

	timeline, err := s.requestService.GetTimeline(c.Context(), id, viewer)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(timeline)
}

// ListRequests handles GET /api/requests. Admins can filter freely; other
// callers are scoped to their own requests by the service layer.
func (s *Server) ListRequests(c *fiber.Ctx) error {
	viewer, err := s.currentUser(c)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}

	p := parsePagination(c, 20)
	filter := repository.RequestListFilter{
		Limit:  p.Limit,
		Offset: p.Offset,
	}
	if status := c.Query("status"); status != "" {
		st := models.RequestStatus(status)
		filter.Status = &st
	}
	if customerID := c.QueryInt("customer_id"); customerID > 0 {
		id := uint(customerID)
		filter.CustomerID = &id
	}
	if branchID := c.QueryInt("branch_id"); branchID > 0 {
		id := uint(branchID)
		filter.BranchID = &id
	}
	if partnerID := c.QueryInt("partner_id"); partnerID > 0 {
		id := uint(partnerID)
		filter.PartnerID = &id
	}

	requests, err := s.requestService.ListRequests(c.Context(), filter, viewer)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"requests": requests,
		"limit":    p.Limit,
		"offset":   p.Offset,
	})
}
