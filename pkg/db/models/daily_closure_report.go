package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DailyClosureReport is the immutable snapshot written when a shift
// closes. It is never updated after insert.
type DailyClosureReport struct {
	ID                      uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	ShiftID                 uuid.UUID       `gorm:"column:shift_id;type:uuid;not null;uniqueIndex"`
	CashierID               string          `gorm:"column:cashier_id;not null;index"`
	LocationID              uuid.UUID       `gorm:"column:location_id;type:uuid;not null;index"`
	WorkDate                time.Time       `gorm:"column:work_date;not null;index"`
	StartingCash            decimal.Decimal `gorm:"column:starting_cash;type:numeric(12,2);not null"`
	SalesCash               decimal.Decimal `gorm:"column:sales_cash;type:numeric(12,2);not null"`
	SalesCard               decimal.Decimal `gorm:"column:sales_card;type:numeric(12,2);not null"`
	SalesOther              decimal.Decimal `gorm:"column:sales_other;type:numeric(12,2);not null"`
	TransactionsCount       int             `gorm:"column:transactions_count;not null"`
	ExpectedCashSystem      decimal.Decimal `gorm:"column:expected_cash_system;type:numeric(12,2);not null"`
	ExpectedDrawer          decimal.Decimal `gorm:"column:expected_drawer;type:numeric(12,2);not null"`
	EndingCashSystem        decimal.Decimal `gorm:"column:ending_cash_system;type:numeric(12,2);not null"`
	EndingCashPhysical      decimal.Decimal `gorm:"column:ending_cash_physical;type:numeric(12,2);not null"`
	EndingTerminalSystem    decimal.Decimal `gorm:"column:ending_terminal_system;type:numeric(12,2);not null"`
	EndingTerminalActual    decimal.Decimal `gorm:"column:ending_terminal_actual;type:numeric(12,2);not null"`
	FiscalPrinterDailyTotal decimal.Decimal `gorm:"column:fiscal_printer_daily_total;type:numeric(12,2);not null"`
	CashDifference          decimal.Decimal `gorm:"column:cash_difference;type:numeric(12,2);not null"`
	CashPhysicalDifference  decimal.Decimal `gorm:"column:cash_physical_difference;type:numeric(12,2);not null"`
	TerminalDifference      decimal.Decimal `gorm:"column:terminal_difference;type:numeric(12,2);not null"`
	SafeBagToday            decimal.Decimal `gorm:"column:safebag_today;type:numeric(12,2);not null"`
	SafeBagBalance          decimal.Decimal `gorm:"column:safebag_balance;type:numeric(12,2);not null"`
	SocialMediaNotes        string          `gorm:"column:social_media_notes"`
	AchievementNotes        string          `gorm:"column:achievement_notes"`
	CreatedAt               time.Time       `gorm:"column:created_at;autoCreateTime"`
}
