package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/retailpos/retailpos-backend/pkg/enums"
)

// Shift is a cashier's work interval at a location. OpenKey implements
// the one-open-shift rule: it holds the cashier id while the shift is
// open and is cleared on close, so a unique index on it cannot collide
// for closed rows.
type Shift struct {
	ID                       uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	CashierID                string            `gorm:"column:cashier_id;not null;index"`
	LocationID               uuid.UUID         `gorm:"column:location_id;type:uuid;not null;index"`
	WorkDate                 time.Time         `gorm:"column:work_date;not null;index"`
	StartTime                time.Time         `gorm:"column:start_time;not null"`
	EndTime                  *time.Time        `gorm:"column:end_time"`
	StartingCash             decimal.Decimal   `gorm:"column:starting_cash;type:numeric(12,2);not null"`
	VerifiedAtStart          bool              `gorm:"column:verified_at_start;not null;default:false"`
	StartDiscrepancyAmount   decimal.Decimal   `gorm:"column:start_discrepancy_amount;type:numeric(12,2);not null;default:0"`
	EndingCashSystem         decimal.Decimal   `gorm:"column:ending_cash_system;type:numeric(12,2);not null;default:0"`
	EndingCashPhysical       decimal.Decimal   `gorm:"column:ending_cash_physical;type:numeric(12,2);not null;default:0"`
	EndingTerminalSystem     decimal.Decimal   `gorm:"column:ending_terminal_system;type:numeric(12,2);not null;default:0"`
	EndingTerminalActual     decimal.Decimal   `gorm:"column:ending_terminal_actual;type:numeric(12,2);not null;default:0"`
	FiscalPrinterDailyTotal  decimal.Decimal   `gorm:"column:fiscal_printer_daily_total;type:numeric(12,2);not null;default:0"`
	CashDifference           decimal.Decimal   `gorm:"column:cash_difference;type:numeric(12,2);not null;default:0"`
	CashPhysicalDifference   decimal.Decimal   `gorm:"column:cash_physical_difference;type:numeric(12,2);not null;default:0"`
	TerminalDifference       decimal.Decimal   `gorm:"column:terminal_difference;type:numeric(12,2);not null;default:0"`
	TransactionsCount        int               `gorm:"column:transactions_count;not null;default:0"`
	SalesCash                decimal.Decimal   `gorm:"column:sales_cash;type:numeric(12,2);not null;default:0"`
	SalesCard                decimal.Decimal   `gorm:"column:sales_card;type:numeric(12,2);not null;default:0"`
	SalesOther               decimal.Decimal   `gorm:"column:sales_other;type:numeric(12,2);not null;default:0"`
	Status                   enums.ShiftStatus `gorm:"column:status;not null;default:'open'"`
	OpenKey                  *string           `gorm:"column:open_key;uniqueIndex:uq_shifts_open_cashier"`
	Notes                    string            `gorm:"column:notes"`
	ReportID                 *uuid.UUID        `gorm:"column:report_id;type:uuid"`
	CreatedAt                time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt                time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
