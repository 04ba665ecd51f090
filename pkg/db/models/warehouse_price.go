package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// WarehousePrice is the effective sale price at a warehouse from a given
// date. Rows are never hard-deleted; replacement deactivates the
// predecessor and sets its valid_until to the day before the successor
// starts. Margin automation never writes these rows.
type WarehousePrice struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	WarehouseID uuid.UUID       `gorm:"column:warehouse_id;type:uuid;not null;uniqueIndex:uq_warehouse_prices_window,priority:1;index:idx_warehouse_prices_lookup,priority:1"`
	ProductID   uuid.UUID       `gorm:"column:product_id;type:uuid;not null;uniqueIndex:uq_warehouse_prices_window,priority:2;index:idx_warehouse_prices_lookup,priority:2"`
	SaleNet     decimal.Decimal `gorm:"column:sale_net;type:numeric(12,2);not null"`
	SaleGross   decimal.Decimal `gorm:"column:sale_gross;type:numeric(12,2);not null"`
	ValidFrom   time.Time       `gorm:"column:valid_from;not null;uniqueIndex:uq_warehouse_prices_window,priority:3"`
	ValidUntil  *time.Time      `gorm:"column:valid_until"`
	Active      bool            `gorm:"column:active;not null;default:true"`
	Label       string          `gorm:"column:label"`
	CreatedBy   string          `gorm:"column:created_by;not null"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
