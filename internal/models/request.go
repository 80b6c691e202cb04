package models

import (
	"time"

	"gorm.io/gorm"
)

// RequestStatus is the lifecycle state of a service request.
type RequestStatus string

const (
	// RequestStatusSubmitted is the initial state after creation.
	RequestStatusSubmitted RequestStatus = "submitted"
	// RequestStatusUnassigned means the request is back in the pool after a
	// rejection or an SLA breach.
	RequestStatusUnassigned RequestStatus = "unassigned"
	// RequestStatusAssigned means a partner branch was picked and the SLA
	// response window is running.
	RequestStatusAssigned RequestStatus = "assigned"
	// RequestStatusConfirmed means the partner accepted the assignment.
	RequestStatusConfirmed RequestStatus = "confirmed"
	// RequestStatusRejected is never persisted as a resting state: a rejected
	// request immediately returns to the pool as unassigned. It exists as a
	// transition target and as the audit-log status of that transition.
	RequestStatusRejected RequestStatus = "rejected"
	// RequestStatusInProgress means work has started.
	RequestStatusInProgress RequestStatus = "in_progress"
	// RequestStatusCompleted means work is done and awaiting closure/rating.
	RequestStatusCompleted RequestStatus = "completed"
	// RequestStatusClosed is terminal.
	RequestStatusClosed RequestStatus = "closed"
)

// PickupOption describes how the serviced item changes hands.
type PickupOption string

const (
	// PickupOptionOnSite means the branch performs the work at the customer location.
	PickupOptionOnSite PickupOption = "on_site"
	// PickupOptionDropOff means the customer brings the item to the branch.
	PickupOptionDropOff PickupOption = "drop_off"
	// PickupOptionPickup means the branch collects the item from the customer.
	PickupOptionPickup PickupOption = "pickup"
)

// Request is the central entity of the dispatch flow. Customer contact
// fields are a snapshot taken at submission time and are not re-derived
// from the customer profile later.
type Request struct {
	ID     uint   `gorm:"primaryKey" json:"id"`
	Number string `gorm:"size:20;uniqueIndex;not null" json:"number"`

	CustomerID      uint   `gorm:"not null;index" json:"customer_id"`
	Customer        *User  `gorm:"foreignKey:CustomerID" json:"customer,omitempty"`
	CustomerName    string `gorm:"size:120;not null" json:"customer_name"`
	CustomerPhone   string `gorm:"size:32" json:"customer_phone"`
	CustomerAddress string `gorm:"size:255" json:"customer_address"`

	Lat float64 `gorm:"not null" json:"lat"`
	Lng float64 `gorm:"not null" json:"lng"`

	CategoryID   uint         `gorm:"not null;index" json:"category_id"`
	Category     *Category    `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
	ServiceID    *uint        `json:"service_id,omitempty"`
	Service      *Service     `gorm:"foreignKey:ServiceID" json:"service,omitempty"`
	PickupOption PickupOption `gorm:"type:varchar(20);not null;default:'on_site'" json:"pickup_option"`
	Description  string       `gorm:"type:text" json:"description"`

	Status RequestStatus `gorm:"type:varchar(20);not null;default:'submitted';index" json:"status"`

	// PartnerID and BranchID are set together on assignment and cleared
	// together on rejection; both are null while the request sits in the pool.
	PartnerID        *uint    `gorm:"index" json:"partner_id,omitempty"`
	Partner          *Partner `gorm:"foreignKey:PartnerID" json:"partner,omitempty"`
	BranchID         *uint    `gorm:"index" json:"branch_id,omitempty"`
	Branch           *Branch  `gorm:"foreignKey:BranchID" json:"branch,omitempty"`
	AssignedByUserID *uint    `json:"assigned_by_user_id,omitempty"`

	SLADeadline *time.Time `gorm:"index" json:"sla_deadline,omitempty"`

	Rating          *int    `json:"rating,omitempty"`
	Feedback        string  `gorm:"type:text" json:"feedback"`
	RejectionReason *string `gorm:"type:text" json:"rejection_reason,omitempty"`

	SubmittedAt  time.Time  `gorm:"not null" json:"submitted_at"`
	AssignedAt   *time.Time `json:"assigned_at,omitempty"`
	ConfirmedAt  *time.Time `json:"confirmed_at,omitempty"`
	RejectedAt   *time.Time `json:"rejected_at,omitempty"`
	InProgressAt *time.Time `json:"in_progress_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	ClosedAt     *time.Time `json:"closed_at,omitempty"`
	RatedAt      *time.Time `json:"rated_at,omitempty"`

	ClosedByUserID *uint `json:"closed_by_user_id,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for GORM
func (Request) TableName() string {
	return "requests"
}

// RequestCounter backs day-scoped sequence numbers (REQ-YYYYMMDD-NNNN).
// The row for a day is incremented atomically in the same transaction that
// inserts the request, so concurrent submissions cannot collide and a failed
// insert does not burn a number.
type RequestCounter struct {
	Day   string `gorm:"primaryKey;size:8"`
	Count int64  `gorm:"not null"`
}

// TableName specifies the table name for GORM
func (RequestCounter) TableName() string {
	return "request_counters"
}
