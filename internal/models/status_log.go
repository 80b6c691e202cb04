package models

import "time"

// StatusLogRated is logged when a customer rates a completed request.
// Rating does not change the request status, so the value is not part of
// the RequestStatus enum.
const StatusLogRated = "rated"

// StatusLog is one append-only audit entry for a request. Entries are never
// mutated or deleted; ordered by creation time they are the canonical
// timeline of the request. Note that the logged status of a rejection is
// "rejected" even though the persisted request status bounces back to
// "unassigned".
type StatusLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	RequestID uint      `gorm:"not null;index" json:"request_id"`
	Status    string    `gorm:"type:varchar(20);not null" json:"status"`
	ActorID   *uint     `json:"actor_id,omitempty"`
	Actor     *User     `gorm:"foreignKey:ActorID" json:"actor,omitempty"`
	Notes     string    `gorm:"type:text" json:"notes"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// TableName specifies the table name for GORM
func (StatusLog) TableName() string {
	return "status_logs"
}
