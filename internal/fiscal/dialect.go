package fiscal

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/retailpos/retailpos-backend/pkg/enums"
)

// Dialect builds device frames for high-level operations and decodes the
// device's textual responses. Callers never branch on the dialect; the
// driver owns the state machine and picks the dialect from configuration.
type Dialect interface {
	Name() enums.FiscalDialect

	OpenReceipt() ([]byte, error)
	AddItem(item ReceiptItem) ([]byte, error)
	AddDiscount(spec DiscountSpec) ([]byte, error)
	AddPayment(payment PaymentSpec) ([]byte, error)
	CloseReceipt(totalExpected decimal.Decimal, cashierLabel string) ([]byte, error)
	CancelReceipt() ([]byte, error)

	XReport() ([]byte, error)
	ZReport() ([]byte, error)
	DailyReport(from, to time.Time) ([]byte, error)
	SetDateTime(t time.Time) ([]byte, error)
	SetCashier(name, code string) ([]byte, error)
	SetHeaderLine(line int, text string) ([]byte, error)
	OpenDrawer() ([]byte, error)
	NonFiscalText(text string) ([]byte, error)
	PrintCopy(number int) ([]byte, error)
	ErrorQuery() ([]byte, error)

	// ResponseTerminator is the byte sequence ending every textual
	// response in this dialect.
	ResponseTerminator() []byte
	// ParseCloseResponse extracts the fiscal and receipt numbers from
	// the close-receipt response.
	ParseCloseResponse(raw []byte) (ReceiptResult, error)
	// ParseErrorResponse extracts the numeric error register from the
	// "#n" query response (0 means no error).
	ParseErrorResponse(raw []byte) (int, error)
}

// paymentWireCode maps tenders to the device payment register.
func paymentWireCode(kind enums.Tender) int {
	switch kind {
	case enums.TenderCash:
		return 0
	case enums.TenderCard:
		return 1
	case enums.TenderVoucher:
		return 2
	case enums.TenderTransfer:
		return 3
	default:
		return 4
	}
}
