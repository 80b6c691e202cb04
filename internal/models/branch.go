package models

import (
	"time"

	"gorm.io/gorm"
)

// DefaultServiceRadiusKm is the coverage radius applied when a branch is
// created without one.
const DefaultServiceRadiusKm = 10.0

// Branch is a physical service location belonging to exactly one partner.
// A branch is eligible for nearest-branch matching only while it is active,
// non-deleted and the query point lies within its own service radius.
type Branch struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	PartnerID       uint           `gorm:"not null;index" json:"partner_id"`
	Partner         *Partner       `gorm:"foreignKey:PartnerID" json:"partner,omitempty"`
	Name            string         `gorm:"size:160;not null" json:"name"`
	Address         string         `gorm:"size:255" json:"address"`
	Lat             float64        `gorm:"not null" json:"lat"`
	Lng             float64        `gorm:"not null" json:"lng"`
	ServiceRadiusKm float64        `gorm:"not null;default:10" json:"service_radius_km"`
	Active          bool           `gorm:"not null;default:true;index" json:"active"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for GORM
func (Branch) TableName() string {
	return "branches"
}
