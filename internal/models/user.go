// Package models contains data structures for the application's domain models.
package models

import (
	"time"

	"gorm.io/gorm"
)

// UserType distinguishes the three human actors of the dispatch flow.
type UserType string

const (
	// UserTypeCustomer submits and rates service requests.
	UserTypeCustomer UserType = "customer"
	// UserTypeAdmin is operations staff: assigns requests and manages settings.
	UserTypeAdmin UserType = "admin"
	// UserTypePartner is branch staff of a service partner.
	UserTypePartner UserType = "partner"
)

// User represents an account in the dispatch application.
type User struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Name      string         `gorm:"size:120;not null" json:"name"`
	Email     string         `gorm:"unique;not null" json:"email"`
	Password  string         `gorm:"not null" json:"-"`
	Phone     string         `gorm:"size:32" json:"phone"`
	UserType  UserType       `gorm:"type:varchar(20);not null;default:'customer';index" json:"user_type"`
	PartnerID *uint          `gorm:"index" json:"partner_id,omitempty"`
	Partner   *Partner       `gorm:"foreignKey:PartnerID" json:"partner,omitempty"`
	Active    bool           `gorm:"not null;default:true" json:"active"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// IsAdmin reports whether the user is operations staff.
func (u *User) IsAdmin() bool {
	return u.UserType == UserTypeAdmin
}

// BranchMembership assigns a partner user to a branch. A user may staff
// several branches; notification fan-out resolves branch audiences through
// this relation.
type BranchMembership struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_branch_membership" json:"user_id"`
	BranchID  uint      `gorm:"not null;uniqueIndex:idx_branch_membership" json:"branch_id"`
	User      *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Branch    *Branch   `gorm:"foreignKey:BranchID" json:"branch,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for GORM
func (BranchMembership) TableName() string {
	return "branch_memberships"
}
