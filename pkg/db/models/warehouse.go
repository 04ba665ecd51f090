package models

import (
	"time"

	"github.com/google/uuid"
)

// Warehouse is an inventory container bound to exactly one location.
type Warehouse struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	LocationID uuid.UUID `gorm:"column:location_id;type:uuid;not null;index"`
	Code       string    `gorm:"column:code;not null;uniqueIndex"`
	Name       string    `gorm:"column:name;not null"`
	Active     bool      `gorm:"column:active;not null;default:true"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
