package models

import "time"

// Notification is one in-app message for one recipient, produced by the
// fan-out of a request transition.
type Notification struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	UserID    uint       `gorm:"not null;index" json:"user_id"`
	Type      string     `gorm:"size:40;not null;index" json:"type"`
	Title     string     `gorm:"size:200;not null" json:"title"`
	Body      string     `gorm:"type:text" json:"body"`
	RequestID *uint      `gorm:"index" json:"request_id,omitempty"`
	Read      bool       `gorm:"not null;default:false;index" json:"read"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// TableName specifies the table name for GORM
func (Notification) TableName() string {
	return "notifications"
}
