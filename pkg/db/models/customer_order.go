package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/retailpos/retailpos-backend/pkg/enums"
)

// CustomerOrder is a reservation that may later be converted into a POS
// transaction. Prices are captured at order time and the conversion must
// reuse them, not re-resolve today's surface.
type CustomerOrder struct {
	ID         uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	Number     string              `gorm:"column:number;not null;uniqueIndex"`
	CustomerID *uuid.UUID          `gorm:"column:customer_id;type:uuid"`
	LocationID uuid.UUID           `gorm:"column:location_id;type:uuid;not null;index"`
	Status     enums.OrderStatus   `gorm:"column:status;not null;default:'pending'"`
	Notes      string              `gorm:"column:notes"`
	TotalGross decimal.Decimal     `gorm:"column:total_gross;type:numeric(12,2);not null;default:0"`
	Lines      []CustomerOrderLine `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt  time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// CustomerOrderLine mirrors the transaction line shape with captured prices.
type CustomerOrderLine struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	OrderID     uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	LineNumber  int             `gorm:"column:line_number;not null"`
	ProductID   uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	ProductName string          `gorm:"column:product_name;not null"`
	UnitPrice   decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
	Quantity    decimal.Decimal `gorm:"column:quantity;type:numeric(12,3);not null"`
	TaxRate     decimal.Decimal `gorm:"column:tax_rate;type:numeric(5,2);not null"`
	GrossValue  decimal.Decimal `gorm:"column:gross_value;type:numeric(12,2);not null"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
}
