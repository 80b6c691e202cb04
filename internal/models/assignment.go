package models

import "time"

// AssignmentResponse is the partner's answer to one assignment attempt.
type AssignmentResponse string

const (
	// AssignmentResponsePending means the partner has not answered yet.
	AssignmentResponsePending AssignmentResponse = "pending"
	// AssignmentResponseConfirmed means the partner accepted.
	AssignmentResponseConfirmed AssignmentResponse = "confirmed"
	// AssignmentResponseRejected means the partner declined (or the SLA
	// sweep rejected on their behalf).
	AssignmentResponseRejected AssignmentResponse = "rejected"
)

// Assignment records one attempt to route a request to a partner branch.
// A request that is rejected and reassigned accumulates one row per attempt;
// the history of all attempts is preserved.
type Assignment struct {
	ID               uint               `gorm:"primaryKey" json:"id"`
	RequestID        uint               `gorm:"not null;index" json:"request_id"`
	Request          *Request           `gorm:"foreignKey:RequestID" json:"request,omitempty"`
	PartnerID        uint               `gorm:"not null;index" json:"partner_id"`
	Partner          *Partner           `gorm:"foreignKey:PartnerID" json:"partner,omitempty"`
	BranchID         uint               `gorm:"not null;index" json:"branch_id"`
	Branch           *Branch            `gorm:"foreignKey:BranchID" json:"branch,omitempty"`
	AssignedByUserID *uint              `json:"assigned_by_user_id,omitempty"`
	AssignedAt       time.Time          `gorm:"not null" json:"assigned_at"`
	Response         AssignmentResponse `gorm:"type:varchar(20);not null;default:'pending';index" json:"response"`
	RejectionReason  *string            `gorm:"type:text" json:"rejection_reason,omitempty"`
	RespondedAt      *time.Time         `json:"responded_at,omitempty"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (Assignment) TableName() string {
	return "assignments"
}
