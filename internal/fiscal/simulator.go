package fiscal

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	apperrors "github.com/retailpos/retailpos-backend/pkg/errors"
)

// Simulator implements the receipt state machine in memory for tills
// without a device attached. Fiscal numbers come back as
// SIM-<unix-seconds> so higher layers stay testable offline.
type Simulator struct {
	mu       sync.Mutex
	state    State
	items    []ReceiptItem
	payments []PaymentSpec
	receipts int

	// Failure injection for tests. When set, the named operation fails
	// with the given error exactly once.
	FailOn   string
	FailWith error

	now func() time.Time
}

// NewSimulator returns a simulator in IDLE.
func NewSimulator() *Simulator {
	return &Simulator{state: StateIdle, now: time.Now}
}

func (s *Simulator) failIf(op string) error {
	if s.FailOn == op && s.FailWith != nil {
		err := s.FailWith
		s.FailOn = ""
		s.FailWith = nil
		s.state = StateError
		return err
	}
	return nil
}

// CurrentState exposes the machine state for diagnostics.
func (s *Simulator) CurrentState() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Simulator) Connect(ctx context.Context) error {
	return nil
}

func (s *Simulator) Status(ctx context.Context) (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		Fiscal:        true,
		LastCommandOK: s.state != StateError,
		ReceiptOpen:   s.state == StateReceiptOpen,
	}, nil
}

func (s *Simulator) LastErrorCode(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateError {
		return errCodeParam, nil
	}
	return errCodeNone, nil
}

func (s *Simulator) OpenReceipt(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failIf("open_receipt"); err != nil {
		return err
	}
	if s.state == StateError {
		return apperrors.New(apperrors.CodeFiscalFatal, "device in error state, reset required")
	}
	if s.state == StateReceiptOpen {
		return apperrors.New(apperrors.CodeStateConflict, "receipt already open")
	}
	s.state = StateReceiptOpen
	s.items = nil
	s.payments = nil
	return nil
}

func (s *Simulator) AddItem(ctx context.Context, item ReceiptItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failIf("add_item"); err != nil {
		return err
	}
	if s.state != StateReceiptOpen {
		return apperrors.New(apperrors.CodeStateConflict, "no receipt open")
	}
	if item.Quantity.LessThan(decimal.New(1, 0)) {
		return apperrors.New(apperrors.CodeValidation, "quantity must be at least 1")
	}
	s.items = append(s.items, item)
	return nil
}

func (s *Simulator) AddDiscount(ctx context.Context, spec DiscountSpec) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failIf("add_discount"); err != nil {
		return err
	}
	if s.state != StateReceiptOpen {
		return apperrors.New(apperrors.CodeStateConflict, "no receipt open")
	}
	return nil
}

func (s *Simulator) AddPayment(ctx context.Context, payment PaymentSpec) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failIf("add_payment"); err != nil {
		return err
	}
	if s.state != StateReceiptOpen {
		return apperrors.New(apperrors.CodeStateConflict, "no receipt open")
	}
	s.payments = append(s.payments, payment)
	return nil
}

func (s *Simulator) CloseReceipt(ctx context.Context, totalExpected decimal.Decimal, cashierLabel string) (ReceiptResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failIf("close_receipt"); err != nil {
		return ReceiptResult{}, err
	}
	if s.state != StateReceiptOpen {
		return ReceiptResult{}, apperrors.New(apperrors.CodeStateConflict, "no receipt open")
	}
	if len(s.items) == 0 {
		return ReceiptResult{}, apperrors.New(apperrors.CodeValidation, "receipt has no items")
	}
	s.receipts++
	s.state = StateIdle
	return ReceiptResult{
		FiscalNumber:  fmt.Sprintf("SIM-%d", s.now().Unix()),
		ReceiptNumber: fmt.Sprintf("%04d", s.receipts),
	}, nil
}

func (s *Simulator) CancelReceipt(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateIdle
	s.items = nil
	s.payments = nil
	return nil
}

func (s *Simulator) XReport(ctx context.Context) error {
	return s.reportCommand("x_report")
}

func (s *Simulator) ZReport(ctx context.Context) error {
	return s.reportCommand("z_report")
}

func (s *Simulator) DailyReport(ctx context.Context, from, to time.Time) error {
	return s.reportCommand("daily_report")
}

func (s *Simulator) reportCommand(op string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failIf(op); err != nil {
		return err
	}
	if s.state == StateReceiptOpen {
		return apperrors.New(apperrors.CodeStateConflict, "receipt in progress")
	}
	return nil
}

func (s *Simulator) SetDateTime(ctx context.Context, t time.Time) error {
	return s.reportCommand("set_datetime")
}

func (s *Simulator) SetCashier(ctx context.Context, name, code string) error {
	return s.reportCommand("set_cashier")
}

func (s *Simulator) SetHeaderLine(ctx context.Context, line int, text string) error {
	return s.reportCommand("set_header")
}

func (s *Simulator) OpenDrawer(ctx context.Context) error {
	return s.reportCommand("open_drawer")
}

func (s *Simulator) PrintNonFiscalText(ctx context.Context, text string) error {
	return s.reportCommand("nonfiscal_text")
}

func (s *Simulator) PrintCopy(ctx context.Context, number int) error {
	return s.reportCommand("print_copy")
}

// Reset clears the error state, mirroring the driver contract.
func (s *Simulator) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateIdle
	s.items = nil
	s.payments = nil
	return nil
}

func (s *Simulator) Close() error {
	return nil
}
