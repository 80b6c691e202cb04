package models

import (
	"fmt"
	"time"
)

// PartnerScope returns the settings scope for partner-specific overrides.
func PartnerScope(partnerID uint) string {
	return fmt.Sprintf("partner:%d", partnerID)
}

// Setting scopes. Partner-scoped settings use PartnerScope(id).
const (
	SettingScopeGlobal        = "global"
	SettingScopeNotifications = "notifications"
)

// Setting keys.
const (
	SettingKeySLATimeoutMinutes = "sla_timeout_minutes"
	SettingKeyOpsEmails         = "ops_emails"
)

// Setting is a scoped key/value runtime tunable (SLA timeouts, ops
// recipient lists). The core reads settings through a narrow accessor and
// treats any lookup failure as "not set".
type Setting struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Scope     string    `gorm:"size:64;not null;uniqueIndex:idx_settings_scope_key" json:"scope"`
	Key       string    `gorm:"size:64;not null;uniqueIndex:idx_settings_scope_key" json:"key"`
	Value     string    `gorm:"size:255;not null" json:"value"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (Setting) TableName() string {
	return "settings"
}
