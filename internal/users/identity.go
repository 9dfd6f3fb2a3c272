package users

import (
	"strings"
	"time"
)

// Identity captures one persisted editor account. The staff flag stored here
// is authoritative for staff-only content visibility; token roles only seed
// it when the identity is first created.
type Identity struct {
	UserID      string    `gorm:"column:user_id;primaryKey;size:190;not null"`
	Email       string    `gorm:"column:user_email;size:320"`
	DisplayName string    `gorm:"column:user_display_name;size:320"`
	IsStaff     bool      `gorm:"column:is_staff;not null;default:false"`
	LastSeenAt  time.Time `gorm:"column:last_seen_at;autoUpdateTime"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName exposes the table backing editor identities.
func (Identity) TableName() string {
	return "editor_identities"
}

// normalize value helper used across service implementation.
func normalize(value string) string {
	return strings.TrimSpace(value)
}
