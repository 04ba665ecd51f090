package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/retailpos/retailpos-backend/pkg/enums"
)

// MarginReport is one advisory row written during margin analysis.
// Corrections touch only the product default price; everything else is
// recorded here for a human to review.
type MarginReport struct {
	ID          uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	ProductID   uuid.UUID               `gorm:"column:product_id;type:uuid;not null;index"`
	WarehouseID *uuid.UUID              `gorm:"column:warehouse_id;type:uuid;index"`
	Kind        enums.MarginWarningKind `gorm:"column:kind;not null;index"`
	OldPrice    decimal.Decimal         `gorm:"column:old_price;type:numeric(12,2);not null"`
	NewPrice    *decimal.Decimal        `gorm:"column:new_price;type:numeric(12,2)"`
	PurchaseNet decimal.Decimal         `gorm:"column:purchase_net;type:numeric(12,2);not null"`
	MarginPct   decimal.Decimal         `gorm:"column:margin_pct;type:numeric(6,2);not null"`
	Corrected   bool                    `gorm:"column:corrected;not null;default:false"`
	Detail      string                  `gorm:"column:detail"`
	CreatedAt   time.Time               `gorm:"column:created_at;autoCreateTime"`
}
