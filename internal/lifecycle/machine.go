// Package lifecycle is the authoritative state machine for service
// requests. All lifecycle mutations (create, assign, transition, rate) run
// through it so that the status check, the row update, the assignment
// bookkeeping and the audit-log append commit atomically per request.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"dispatch/internal/models"

	"gorm.io/gorm"
)

// AllowedNext returns the legal successor statuses for a given status.
// closed is terminal and has none.
func AllowedNext(s models.RequestStatus) []models.RequestStatus {
	switch s {
	case models.RequestStatusSubmitted, models.RequestStatusUnassigned, models.RequestStatusRejected:
		return []models.RequestStatus{models.RequestStatusAssigned}
	case models.RequestStatusAssigned:
		return []models.RequestStatus{models.RequestStatusConfirmed, models.RequestStatusRejected}
	case models.RequestStatusConfirmed:
		return []models.RequestStatus{models.RequestStatusInProgress}
	case models.RequestStatusInProgress:
		return []models.RequestStatus{models.RequestStatusCompleted}
	case models.RequestStatusCompleted:
		return []models.RequestStatus{models.RequestStatusClosed}
	default:
		return nil
	}
}

// CanTransition reports whether from may move to to.
func CanTransition(from, to models.RequestStatus) bool {
	for _, next := range AllowedNext(from) {
		if next == to {
			return true
		}
	}
	return false
}

// Machine performs request lifecycle mutations transactionally.
type Machine struct {
	db  *gorm.DB
	now func() time.Time
}

// NewMachine returns a Machine bound to the given database.
func NewMachine(db *gorm.DB) *Machine {
	return &Machine{db: db, now: time.Now}
}

// CreateInput carries the customer snapshot for a new request.
type CreateInput struct {
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

// Create inserts a new request at status submitted, with a day-scoped
// sequence number and its first audit entry, in one transaction. The
// per-day counter increment and the insert commit or roll back together,
// so numbers stay gapless under concurrent submissions.
func (m *Machine) Create(ctx context.Context, in CreateInput) (*models.Request, error) {
	now := m.now()
	day := now.Format("20060102")

	pickup := in.PickupOption
	if pickup == "" {
		pickup = models.PickupOptionOnSite
	}

	var created models.Request
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var seq int64
		if err := tx.Raw(
			`INSERT INTO request_counters (day, count) VALUES (?, 1)
			 ON CONFLICT (day) DO UPDATE SET count = request_counters.count + 1
			 RETURNING count`, day).Scan(&seq).Error; err != nil {
			return models.NewInternalError(err)
		}

		request := models.Request{
			Number:          fmt.Sprintf("REQ-%s-%04d", day, seq),
			CustomerID:      in.CustomerID,
			CustomerName:    in.CustomerName,
			CustomerPhone:   in.CustomerPhone,
			CustomerAddress: in.CustomerAddress,
			Lat:             in.Lat,
			Lng:             in.Lng,
			CategoryID:      in.CategoryID,
			ServiceID:       in.ServiceID,
			PickupOption:    pickup,
			Description:     in.Description,
			Status:          models.RequestStatusSubmitted,
			SubmittedAt:     now,
		}
		if err := tx.Create(&request).Error; err != nil {
			return models.NewInternalError(err)
		}

		actorID := in.CustomerID
		entry := models.StatusLog{
			RequestID: request.ID,
			Status:    string(models.RequestStatusSubmitted),
			ActorID:   &actorID,
			Notes:     "Request submitted",
			CreatedAt: now,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return models.NewInternalError(err)
		}

		created = request
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// AssignInput routes a request to a partner branch.
type AssignInput struct {
	RequestID uint
	PartnerID uint
	BranchID  uint
	ActorID   *uint
	Deadline  time.Time
	Notes     string
}

// Assign moves a pooled request (submitted or unassigned) to assigned,
// records a pending Assignment attempt and appends the audit entry. Any
// other current status is rejected without mutation.
func (m *Machine) Assign(ctx context.Context, in AssignInput) (*models.Request, error) {
	now := m.now()

	var out models.Request
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		request, err := loadRequest(tx, in.RequestID)
		if err != nil {
			return err
		}
		if request.Status == models.RequestStatusClosed {
			return models.NewRequestClosedError(request.Number)
		}
		if request.Status != models.RequestStatusSubmitted && request.Status != models.RequestStatusUnassigned {
			return models.NewInvalidTransitionError(request.Status, models.RequestStatusAssigned)
		}

		updates := map[string]interface{}{
			"status":              models.RequestStatusAssigned,
			"partner_id":          in.PartnerID,
			"branch_id":           in.BranchID,
			"assigned_by_user_id": in.ActorID,
			"assigned_at":         now,
			"sla_deadline":        in.Deadline,
			"rejection_reason":    nil,
			"updated_at":          now,
		}
		if err := guardedUpdate(tx, request.ID, request.Status, updates); err != nil {
			return err
		}

		attempt := models.Assignment{
			RequestID:        request.ID,
			PartnerID:        in.PartnerID,
			BranchID:         in.BranchID,
			AssignedByUserID: in.ActorID,
			AssignedAt:       now,
			Response:         models.AssignmentResponsePending,
		}
		if err := tx.Create(&attempt).Error; err != nil {
			return models.NewInternalError(err)
		}

		notes := in.Notes
		if notes == "" {
			notes = fmt.Sprintf("Assigned to partner %d, branch %d", in.PartnerID, in.BranchID)
		}
		entry := models.StatusLog{
			RequestID: request.ID,
			Status:    string(models.RequestStatusAssigned),
			ActorID:   in.ActorID,
			Notes:     notes,
			CreatedAt: now,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return models.NewInternalError(err)
		}

		return tx.First(&out, request.ID).Error
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// TransitionInput drives one step of the state machine.
type TransitionInput struct {
	Target  models.RequestStatus
	ActorID *uint
	Notes   string
	// RejectionReason is required when Target is rejected.
	RejectionReason string
}

// Transition validates and performs one status change. A rejection bounces
// the persisted status back to unassigned and clears the partner/branch
// pair, while the audit log records "rejected"; the open Assignment attempt
// is updated with the partner's response on confirm and reject. Exactly one
// StatusLog entry is appended per successful call, and a failed call leaves
// the request untouched.
func (m *Machine) Transition(ctx context.Context, requestID uint, in TransitionInput) (*models.Request, error) {
	if in.Target == models.RequestStatusAssigned {
		return nil, models.NewValidationError("Assignment requires a partner and branch; use assign")
	}

	now := m.now()

	var out models.Request
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		request, err := loadRequest(tx, requestID)
		if err != nil {
			return err
		}
		if request.Status == models.RequestStatusClosed {
			return models.NewRequestClosedError(request.Number)
		}
		if !CanTransition(request.Status, in.Target) {
			return models.NewInvalidTransitionError(request.Status, in.Target)
		}
		if in.Target == models.RequestStatusRejected && strings.TrimSpace(in.RejectionReason) == "" {
			return models.NewValidationError("A rejection reason is required")
		}

		updates := map[string]interface{}{"updated_at": now}
		switch in.Target {
		case models.RequestStatusConfirmed:
			updates["status"] = models.RequestStatusConfirmed
			updates["confirmed_at"] = now
		case models.RequestStatusRejected:
			// Rejection is a bounce back to the pool, not a resting state.
			updates["status"] = models.RequestStatusUnassigned
			updates["rejected_at"] = now
			updates["rejection_reason"] = in.RejectionReason
			updates["partner_id"] = nil
			updates["branch_id"] = nil
			updates["sla_deadline"] = nil
		case models.RequestStatusInProgress:
			updates["status"] = models.RequestStatusInProgress
			updates["in_progress_at"] = now
		case models.RequestStatusCompleted:
			updates["status"] = models.RequestStatusCompleted
			updates["completed_at"] = now
		case models.RequestStatusClosed:
			updates["status"] = models.RequestStatusClosed
			updates["closed_at"] = now
			updates["closed_by_user_id"] = in.ActorID
		default:
			return models.NewInvalidTransitionError(request.Status, in.Target)
		}

		if err := guardedUpdate(tx, request.ID, request.Status, updates); err != nil {
			return err
		}

		if in.Target == models.RequestStatusConfirmed || in.Target == models.RequestStatusRejected {
			if err := m.respondToPendingAssignment(tx, request.ID, in, now); err != nil {
				return err
			}
		}

		notes := in.Notes
		if in.Target == models.RequestStatusRejected && in.RejectionReason != "" {
			if notes != "" {
				notes += ": "
			}
			notes += in.RejectionReason
		}
		entry := models.StatusLog{
			RequestID: request.ID,
			Status:    string(in.Target),
			ActorID:   in.ActorID,
			Notes:     notes,
			CreatedAt: now,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return models.NewInternalError(err)
		}

		return tx.First(&out, request.ID).Error
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Rate stores the customer's rating on a completed request, exactly once,
// without changing the status, and appends a "rated" audit entry.
func (m *Machine) Rate(ctx context.Context, requestID uint, rating int, feedback string, customerID uint) (*models.Request, error) {
	if rating < 1 || rating > 5 {
		return nil, models.NewValidationError("Rating must be between 1 and 5")
	}

	now := m.now()

	var out models.Request
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		request, err := loadRequest(tx, requestID)
		if err != nil {
			return err
		}
		if request.CustomerID != customerID {
			return models.NewUnauthorizedError("You can only rate your own requests")
		}
		if request.Status != models.RequestStatusCompleted {
			return &models.AppError{
				Code:    models.CodeInvalidTransition,
				Message: "Only completed requests can be rated",
			}
		}
		if request.Rating != nil {
			return models.NewValidationError("Request has already been rated")
		}

		res := tx.Model(&models.Request{}).
			Where("id = ? AND status = ? AND rating IS NULL", request.ID, models.RequestStatusCompleted).
			Updates(map[string]interface{}{
				"rating":     rating,
				"feedback":   feedback,
				"rated_at":   now,
				"updated_at": now,
			})
		if res.Error != nil {
			return models.NewInternalError(res.Error)
		}
		if res.RowsAffected == 0 {
			return models.NewValidationError("Request has already been rated")
		}

		entry := models.StatusLog{
			RequestID: request.ID,
			Status:    models.StatusLogRated,
			ActorID:   &customerID,
			Notes:     fmt.Sprintf("Rated %d/5", rating),
			CreatedAt: now,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return models.NewInternalError(err)
		}

		return tx.First(&out, request.ID).Error
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// respondToPendingAssignment closes out the open Assignment attempt with
// the partner's verdict. A missing pending row is tolerated: the request
// may have been assigned before assignment history existed.
func (m *Machine) respondToPendingAssignment(tx *gorm.DB, requestID uint, in TransitionInput, now time.Time) error {
	var attempt models.Assignment
	err := tx.Where("request_id = ? AND response = ?", requestID, models.AssignmentResponsePending).
		Order("assigned_at DESC").
		First(&attempt).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return models.NewInternalError(err)
	}

	updates := map[string]interface{}{
		"responded_at": now,
		"updated_at":   now,
	}
	if in.Target == models.RequestStatusConfirmed {
		updates["response"] = models.AssignmentResponseConfirmed
	} else {
		updates["response"] = models.AssignmentResponseRejected
		updates["rejection_reason"] = in.RejectionReason
	}
	if err := tx.Model(&attempt).Updates(updates).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func loadRequest(tx *gorm.DB, id uint) (*models.Request, error) {
	var request models.Request
	if err := tx.First(&request, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Request", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &request, nil
}

// guardedUpdate applies updates only if the row still holds the status the
// transition was validated against. Zero affected rows means a concurrent
// transition won the race; the caller's transaction rolls back untouched.
func guardedUpdate(tx *gorm.DB, id uint, from models.RequestStatus, updates map[string]interface{}) error {
	res := tx.Model(&models.Request{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		status, _ := updates["status"].(models.RequestStatus)
		return models.NewInvalidTransitionError(from, status)
	}
	return nil
}
