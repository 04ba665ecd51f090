package fiscal

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/retailpos/retailpos-backend/pkg/enums"
)

// State of the receipt machine. Transitions:
//
//	IDLE -openReceipt-> RECEIPT_OPEN -closeReceipt/cancelReceipt-> IDLE
//	any  -hardFailure-> ERROR (explicit Reset required)
type State int

const (
	StateIdle State = iota
	StateReceiptOpen
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateReceiptOpen:
		return "receipt_open"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// DiscountKind distinguishes a price reduction from a surcharge.
type DiscountKind string

const (
	DiscountKindDiscount  DiscountKind = "discount"
	DiscountKindSurcharge DiscountKind = "surcharge"
)

// DiscountScope says what the discount applies to.
type DiscountScope string

const (
	DiscountScopeLineLast DiscountScope = "lineLast"
	DiscountScopeSubtotal DiscountScope = "subtotal"
)

// ReceiptItem is one line sent to the printer. The name is truncated to
// the device display width by the driver.
type ReceiptItem struct {
	Name      string
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
	TaxLetter string
}

// DiscountSpec describes a discount or surcharge on the open receipt.
type DiscountSpec struct {
	Value decimal.Decimal
	Label string
	Kind  DiscountKind
	Scope DiscountScope
}

// PaymentSpec is one tender applied to the open receipt.
type PaymentSpec struct {
	Kind   enums.Tender
	Amount decimal.Decimal
}

// ReceiptResult is returned by a successful close.
type ReceiptResult struct {
	FiscalNumber  string
	ReceiptNumber string
}

// Device is the high-level fiscal surface the transaction engine uses.
// Both the serial driver and the offline simulator implement it.
type Device interface {
	Connect(ctx context.Context) error
	Status(ctx context.Context) (Status, error)
	LastErrorCode(ctx context.Context) (int, error)
	OpenReceipt(ctx context.Context) error
	AddItem(ctx context.Context, item ReceiptItem) error
	AddDiscount(ctx context.Context, spec DiscountSpec) error
	AddPayment(ctx context.Context, payment PaymentSpec) error
	CloseReceipt(ctx context.Context, totalExpected decimal.Decimal, cashierLabel string) (ReceiptResult, error)
	CancelReceipt(ctx context.Context) error
	XReport(ctx context.Context) error
	ZReport(ctx context.Context) error
	DailyReport(ctx context.Context, from, to time.Time) error
	SetDateTime(ctx context.Context, t time.Time) error
	SetCashier(ctx context.Context, name, code string) error
	SetHeaderLine(ctx context.Context, line int, text string) error
	OpenDrawer(ctx context.Context) error
	PrintNonFiscalText(ctx context.Context, text string) error
	PrintCopy(ctx context.Context, number int) error
	Close() error
}
