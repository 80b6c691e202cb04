package service

import (
	"context"
	"strings"
	"time"

	"dispatch/internal/cache"
	"dispatch/internal/geo"
	"dispatch/internal/lifecycle"
	"dispatch/internal/models"
	"dispatch/internal/notify"
	"dispatch/internal/observability"
	"dispatch/internal/repository"
	"dispatch/internal/sla"
	"dispatch/internal/validation"
)

// RequestService drives the request lifecycle: submission, branch matching,
// assignment with an SLA deadline, partner responses and closure. State
// changes go through the lifecycle machine; this layer adds input
// validation, access checks, metrics and event fan-out.
type RequestService struct {
	requests    repository.RequestRepository
	branches    repository.BranchRepository
	assignments repository.AssignmentRepository
	statusLogs  repository.StatusLogRepository
	machine     *lifecycle.Machine
	sla         *sla.Policy
	events      notify.EventSink

	now func() time.Time
}

// NewRequestService wires a RequestService. events may be nil.
func NewRequestService(
	requests repository.RequestRepository,
	branches repository.BranchRepository,
	assignments repository.AssignmentRepository,
	statusLogs repository.StatusLogRepository,
	machine *lifecycle.Machine,
	slaPolicy *sla.Policy,
	events notify.EventSink,
) *RequestService {
	return &RequestService{
		requests:    requests,
		branches:    branches,
		assignments: assignments,
		statusLogs:  statusLogs,
		machine:     machine,
		sla:         slaPolicy,
		events:      events,
		now:         time.Now,
	}
}

type CreateRequestInput struct {
	CustomerID      uint
	CustomerName    string
	CustomerPhone   string
	CustomerAddress string
	Lat             float64
	Lng             float64
	CategoryID      uint
	ServiceID       *uint
	PickupOption    models.PickupOption
	Description     string
}

// CreateRequest validates and submits a new request.
func (s *RequestService) CreateRequest(ctx context.Context, in CreateRequestInput) (*models.Request, error) {
	if err := validation.ValidateName(in.CustomerName); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidatePhone(in.CustomerPhone); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidateCoordinates(in.Lat, in.Lng); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidateDescription(in.Description); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if in.CategoryID == 0 {
		return nil, models.NewValidationError("A service category is required")
	}
	switch in.PickupOption {
	case "", models.PickupOptionOnSite, models.PickupOptionDropOff, models.PickupOptionPickup:
	default:
		return nil, models.NewValidationError("Unknown pickup option")
	}

	request, err := s.machine.Create(ctx, lifecycle.CreateInput{
		CustomerID:      in.CustomerID,
		CustomerName:    strings.TrimSpace(in.CustomerName),
		CustomerPhone:   strings.TrimSpace(in.CustomerPhone),
		CustomerAddress: strings.TrimSpace(in.CustomerAddress),
		Lat:             in.Lat,
		Lng:             in.Lng,
		CategoryID:      in.CategoryID,
		ServiceID:       in.ServiceID,
		PickupOption:    in.PickupOption,
		Description:     in.Description,
	})
	if err != nil {
		return nil, err
	}

	observability.RequestsCreated.Inc()
	s.emit(notify.EventSubmitted, request.ID)
	return request, nil
}

// SuggestBranch finds the closest active branch serving the category and
// checks the customer point against that branch's own service radius. A nil
// match with a nil error means no branch covers the location; a farther
// branch whose radius would cover the point is never substituted.
func (s *RequestService) SuggestBranch(ctx context.Context, categoryID uint, lat, lng float64) (*geo.Match, error) {
	if err := validation.ValidateCoordinates(lat, lng); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if categoryID == 0 {
		return nil, models.NewValidationError("A service category is required")
	}

	var branches []models.Branch
	if !cache.GetJSON(ctx, cache.BranchListKey(categoryID), &branches) {
		loaded, err := s.branches.ListActive(ctx, repository.BranchFilter{CategoryID: &categoryID})
		if err != nil {
			return nil, err
		}
		branches = loaded
		cache.SetJSON(ctx, cache.BranchListKey(categoryID), branches, cache.BranchListTTL)
	}
	return geo.Nearest(branches, lat, lng), nil
}

type AssignRequestInput struct {
	RequestID uint
	PartnerID uint
	BranchID  uint
	ActorID   *uint
	Notes     string
}

// AssignRequest routes a pooled request to a partner branch and starts the
// SLA response window.
func (s *RequestService) AssignRequest(ctx context.Context, in AssignRequestInput) (*models.Request, error) {
	branch, err := s.branches.GetByID(ctx, in.BranchID)
	if err != nil {
		return nil, err
	}
	if !branch.Active || branch.PartnerID != in.PartnerID {
		return nil, models.NewNotFoundError("Branch", in.BranchID)
	}

	assignedAt := s.now().UTC()
	minutes := s.sla.TimeoutMinutes(ctx, &in.PartnerID)
	deadline := sla.Deadline(assignedAt, minutes)

	request, err := s.machine.Assign(ctx, lifecycle.AssignInput{
		RequestID: in.RequestID,
		PartnerID: in.PartnerID,
		BranchID:  in.BranchID,
		ActorID:   in.ActorID,
		Deadline:  deadline,
		Notes:     in.Notes,
	})
	if err != nil {
		return nil, err
	}

	observability.StatusTransitions.WithLabelValues(string(models.RequestStatusAssigned)).Inc()
	cache.InvalidateRequest(ctx, request.Number)
	s.emit(notify.EventAssigned, request.ID)
	return request, nil
}

type UpdateStatusInput struct {
	Target          models.RequestStatus
	ActorID         *uint
	Notes           string
	RejectionReason string
}

// UpdateStatus performs one lifecycle transition (anything except assign,
// which carries routing data and goes through AssignRequest).
func (s *RequestService) UpdateStatus(ctx context.Context, requestID uint, in UpdateStatusInput) (*models.Request, error) {
	request, err := s.machine.Transition(ctx, requestID, lifecycle.TransitionInput{
		Target:          in.Target,
		ActorID:         in.ActorID,
		Notes:           in.Notes,
		RejectionReason: in.RejectionReason,
	})
	if err != nil {
		return nil, err
	}

	observability.StatusTransitions.WithLabelValues(string(in.Target)).Inc()
	cache.InvalidateRequest(ctx, request.Number)
	if evt, ok := transitionEvent(in.Target); ok {
		s.emit(evt, request.ID)
	}
	return request, nil
}

// CloseRequest is the terminal transition, recorded with the closing actor.
func (s *RequestService) CloseRequest(ctx context.Context, requestID uint, actorID *uint, notes string) (*models.Request, error) {
	return s.UpdateStatus(ctx, requestID, UpdateStatusInput{
		Target:  models.RequestStatusClosed,
		ActorID: actorID,
		Notes:   notes,
	})
}

// RateRequest records the customer's one-time rating of a completed request.
func (s *RequestService) RateRequest(ctx context.Context, requestID uint, rating int, feedback string, customerID uint) (*models.Request, error) {
	if err := validation.ValidateRating(rating); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	request, err := s.machine.Rate(ctx, requestID, rating, feedback, customerID)
	if err != nil {
		return nil, err
	}
	cache.InvalidateRequest(ctx, request.Number)
	s.emit(notify.EventRated, request.ID)
	return request, nil
}

// GetRequest loads one request by id with an access check.
func (s *RequestService) GetRequest(ctx context.Context, id uint, viewer *models.User) (*models.Request, error) {
	request, err := s.requests.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := canView(viewer, request); err != nil {
		return nil, err
	}
	return request, nil
}

// GetRequestByNumber loads one request by its public number with an access
// check. Lookups by number back the public tracking page, so the hot path is
// served from cache between status changes.
func (s *RequestService) GetRequestByNumber(ctx context.Context, number string, viewer *models.User) (*models.Request, error) {
	var request models.Request
	if !cache.GetJSON(ctx, cache.RequestKey(number), &request) {
		loaded, err := s.requests.GetByNumber(ctx, number)
		if err != nil {
			return nil, err
		}
		request = *loaded
		cache.SetJSON(ctx, cache.RequestKey(number), request, cache.RequestTTL)
	}
	if err := canView(viewer, &request); err != nil {
		return nil, err
	}
	return &request, nil
}

// ListRequests returns requests matching the filter. Non-admin viewers are
// constrained to their own slice regardless of what the filter asks for.
func (s *RequestService) ListRequests(ctx context.Context, filter repository.RequestListFilter, viewer *models.User) ([]models.Request, error) {
	if viewer != nil && !viewer.IsAdmin() {
		switch viewer.UserType {
		case models.UserTypeCustomer:
			filter.CustomerID = &viewer.ID
			filter.PartnerID = nil
		case models.UserTypePartner:
			if viewer.PartnerID == nil {
				return nil, models.NewUnauthorizedError("Partner account is not linked to a partner")
			}
			filter.PartnerID = viewer.PartnerID
			filter.CustomerID = nil
		}
	}
	return s.requests.List(ctx, filter)
}

// Timeline is the full audit view of one request.
type Timeline struct {
	Request     *models.Request     `json:"request"`
	StatusLog   []models.StatusLog  `json:"status_log"`
	Assignments []models.Assignment `json:"assignments"`
}

// GetTimeline returns the request together with its append-only status log
// and assignment attempt history.
func (s *RequestService) GetTimeline(ctx context.Context, requestID uint, viewer *models.User) (*Timeline, error) {
	request, err := s.GetRequest(ctx, requestID, viewer)
	if err != nil {
		return nil, err
	}
	entries, err := s.statusLogs.ListByRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	attempts, err := s.assignments.ListByRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	return &Timeline{Request: request, StatusLog: entries, Assignments: attempts}, nil
}

func (s *RequestService) emit(eventType notify.EventType, requestID uint) {
	if s.events == nil {
		return
	}
	s.events.Enqueue(notify.Event{Type: eventType, RequestID: requestID})
}

// canView implements the read access rule: admins see everything, customers
// their own requests, partner users their partner's requests.
func canView(viewer *models.User, request *models.Request) error {
	if viewer == nil || viewer.IsAdmin() {
		return nil
	}
	switch viewer.UserType {
	case models.UserTypeCustomer:
		if request.CustomerID == viewer.ID {
			return nil
		}
	case models.UserTypePartner:
		if viewer.PartnerID != nil && request.PartnerID != nil && *viewer.PartnerID == *request.PartnerID {
			return nil
		}
	}
	return models.NewUnauthorizedError("You do not have access to this request")
}

// transitionEvent maps a transition target to its fan-out event.
func transitionEvent(target models.RequestStatus) (notify.EventType, bool) {
	switch target {
	case models.RequestStatusConfirmed:
		return notify.EventConfirmed, true
	case models.RequestStatusRejected:
		return notify.EventRejected, true
	case models.RequestStatusInProgress:
		return notify.EventInProgress, true
	case models.RequestStatusCompleted:
		return notify.EventCompleted, true
	case models.RequestStatusClosed:
		return notify.EventClosed, true
	default:
		return "", false
	}
}
