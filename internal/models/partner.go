package models

import (
	"time"

	"gorm.io/gorm"
)

// Partner is a service company that operates one or more branches.
type Partner struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	Name       string         `gorm:"size:160;not null" json:"name"`
	Email      string         `gorm:"size:160" json:"email"`
	Phone      string         `gorm:"size:32" json:"phone"`
	Active     bool           `gorm:"not null;default:true;index" json:"active"`
	Categories []Category     `gorm:"many2many:partner_categories" json:"categories,omitempty"`
	Branches   []Branch       `gorm:"foreignKey:PartnerID" json:"branches,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`
}

// Category is a service category a partner can offer (e.g. repair, cleaning).
type Category struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:120;unique;not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Service is a concrete offering within a category. Optional on a request.
type Service struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	CategoryID uint      `gorm:"not null;index" json:"category_id"`
	Category   *Category `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
	Name       string    `gorm:"size:160;not null" json:"name"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
