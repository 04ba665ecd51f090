package models

import (
	"time"

	"github.com/google/uuid"
)

// User identifies who did what: cashiers at the till and managers in the
// admin surface.
type User struct {
	ID           uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	Login        string     `gorm:"column:login;not null;uniqueIndex"`
	DisplayName  string     `gorm:"column:display_name;not null"`
	PasswordHash string     `gorm:"column:password_hash;not null"`
	Role         string     `gorm:"column:role;not null;default:'cashier'"`
	LocationID   *uuid.UUID `gorm:"column:location_id;type:uuid"`
	Active       bool       `gorm:"column:active;not null;default:true"`
	CreatedAt    time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
