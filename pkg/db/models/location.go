package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/retailpos/retailpos-backend/pkg/enums"
)

// Location is a physical site of the chain. It owns its warehouses, and
// all of them share one sale-price surface.
type Location struct {
	ID         uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	Code       string             `gorm:"column:code;not null;uniqueIndex"`
	Name       string             `gorm:"column:name;not null"`
	Type       enums.LocationType `gorm:"column:type;not null;default:'store'"`
	Active     bool               `gorm:"column:active;not null;default:true"`
	Warehouses []Warehouse        `gorm:"foreignKey:LocationID"`
	CreatedAt  time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
