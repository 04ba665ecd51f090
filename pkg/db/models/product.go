package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product carries the chain-wide defaults. The default sale prices apply
// wherever no warehouse price is in force, and they are the only prices
// margin automation is allowed to rewrite.
//
// Net and gross are stored side by side and must agree through the tax
// rate within a grosz.
type Product struct {
	ID                  uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	Code                string           `gorm:"column:code;not null;uniqueIndex"`
	EAN                 *string          `gorm:"column:ean;uniqueIndex"`
	Name                string           `gorm:"column:name;not null"`
	TaxRate             decimal.Decimal  `gorm:"column:tax_rate;type:numeric(5,2);not null;default:23"`
	PurchaseNet         decimal.Decimal  `gorm:"column:purchase_net;type:numeric(12,2);not null;default:0"`
	PurchaseGross       decimal.Decimal  `gorm:"column:purchase_gross;type:numeric(12,2);not null;default:0"`
	SaleNet             decimal.Decimal  `gorm:"column:sale_net;type:numeric(12,2);not null;default:0"`
	SaleGross           decimal.Decimal  `gorm:"column:sale_gross;type:numeric(12,2);not null;default:0"`
	DefaultMargin       decimal.Decimal  `gorm:"column:default_margin;type:numeric(6,2);not null;default:0"`
	Unit                string           `gorm:"column:unit;not null;default:'szt'"`
	ExtractedWeight     *decimal.Decimal `gorm:"column:extracted_weight;type:numeric(12,3)"`
	ExtractedWeightUnit *string          `gorm:"column:extracted_weight_unit"`
	Active              bool             `gorm:"column:active;not null;default:true"`
	CreatedAt           time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
