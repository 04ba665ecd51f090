package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/retailpos/retailpos-backend/pkg/enums"
)

// POSTransaction is a completed sale at a till. The number is unique
// chain-wide in the form POS-YYYYMMDD-NNNN. A completed transaction is
// immutable except for the fiscal number being set at most once.
type POSTransaction struct {
	ID             uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	Number         string                  `gorm:"column:number;not null;uniqueIndex:uq_pos_transactions_number"`
	SoldAt         time.Time               `gorm:"column:sold_at;not null;index"`
	CashierID      string                  `gorm:"column:cashier_id;not null;index"`
	LocationID     uuid.UUID               `gorm:"column:location_id;type:uuid;not null;index"`
	ShiftID        *uuid.UUID              `gorm:"column:shift_id;type:uuid;index"`
	CustomerID     *uuid.UUID              `gorm:"column:customer_id;type:uuid"`
	Tender         enums.Tender            `gorm:"column:tender;not null"`
	AmountTendered decimal.Decimal         `gorm:"column:amount_tendered;type:numeric(12,2);not null"`
	ChangeDue      decimal.Decimal         `gorm:"column:change_due;type:numeric(12,2);not null;default:0"`
	TotalNet       decimal.Decimal         `gorm:"column:total_net;type:numeric(12,2);not null"`
	TotalGross     decimal.Decimal         `gorm:"column:total_gross;type:numeric(12,2);not null"`
	TotalVAT       decimal.Decimal         `gorm:"column:total_vat;type:numeric(12,2);not null"`
	Status         enums.TransactionStatus `gorm:"column:status;not null;default:'pending'"`
	FiscalNumber   *string                 `gorm:"column:fiscal_number"`
	SourceOrderID  *uuid.UUID              `gorm:"column:source_order_id;type:uuid;uniqueIndex:uq_pos_transactions_source_order"`
	Lines          []POSTransactionLine    `gorm:"foreignKey:TransactionID;constraint:OnDelete:CASCADE"`
	CreatedAt      time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}

// POSTransactionLine snapshots the product name and price at sale time so
// history stays correct when the catalog changes.
type POSTransactionLine struct {
	ID                     uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	TransactionID          uuid.UUID         `gorm:"column:transaction_id;type:uuid;not null;index"`
	LineNumber             int               `gorm:"column:line_number;not null"`
	ProductID              uuid.UUID         `gorm:"column:product_id;type:uuid;not null"`
	ProductName            string            `gorm:"column:product_name;not null"`
	UnitPrice              decimal.Decimal   `gorm:"column:unit_price;type:numeric(12,2);not null"`
	Quantity               decimal.Decimal   `gorm:"column:quantity;type:numeric(12,3);not null"`
	UnitPriceAfterDiscount decimal.Decimal   `gorm:"column:unit_price_after_discount;type:numeric(12,2);not null"`
	NetValue               decimal.Decimal   `gorm:"column:net_value;type:numeric(12,2);not null"`
	GrossValue             decimal.Decimal   `gorm:"column:gross_value;type:numeric(12,2);not null"`
	TaxRate                decimal.Decimal   `gorm:"column:tax_rate;type:numeric(5,2);not null"`
	VATAmount              decimal.Decimal   `gorm:"column:vat_amount;type:numeric(12,2);not null"`
	PriceSource            enums.PriceSource `gorm:"column:price_source;not null;default:'product-default'"`
	CreatedAt              time.Time         `gorm:"column:created_at;autoCreateTime"`
}
