package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PurchaseInvoice records a supplier delivery. Posting one updates the
// purchase price on each delivered product, which is what triggers the
// margin re-check.
type PurchaseInvoice struct {
	ID          uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	Number      string                `gorm:"column:number;not null;uniqueIndex"`
	SupplierTIN string                `gorm:"column:supplier_tin;not null"`
	WarehouseID uuid.UUID             `gorm:"column:warehouse_id;type:uuid;not null;index"`
	IssuedAt    time.Time             `gorm:"column:issued_at;not null"`
	PostedAt    *time.Time            `gorm:"column:posted_at"`
	NetTotal    decimal.Decimal       `gorm:"column:net_total;type:numeric(12,2);not null;default:0"`
	GrossTotal  decimal.Decimal       `gorm:"column:gross_total;type:numeric(12,2);not null;default:0"`
	Lines       []PurchaseInvoiceLine `gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

// PurchaseInvoiceLine is one delivered product with its unit cost.
type PurchaseInvoiceLine struct {
	ID           uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	InvoiceID    uuid.UUID       `gorm:"column:invoice_id;type:uuid;not null;index"`
	ProductID    uuid.UUID       `gorm:"column:product_id;type:uuid;not null;index"`
	Quantity     decimal.Decimal `gorm:"column:quantity;type:numeric(12,3);not null"`
	UnitNetCost  decimal.Decimal `gorm:"column:unit_net_cost;type:numeric(12,2);not null"`
	VATRate      decimal.Decimal `gorm:"column:vat_rate;type:numeric(5,2);not null"`
	LineNetTotal decimal.Decimal `gorm:"column:line_net_total;type:numeric(12,2);not null"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime"`
}
