package fiscal

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/retailpos/retailpos-backend/internal/serial"
	"github.com/retailpos/retailpos-backend/pkg/config"
	apperrors "github.com/retailpos/retailpos-backend/pkg/errors"
	"github.com/retailpos/retailpos-backend/pkg/logger"
	"github.com/retailpos/retailpos-backend/pkg/metrics"
)

// Driver owns one fiscal device over one serial link. All operations are
// serialized; a receipt always reaches a terminal state (closed or
// cancelled) before the driver releases, so an HTTP cancellation never
// leaves a legally open paragon on the device. Context deadlines are
// therefore checked between operations, not inside serial I/O.
type Driver struct {
	mu      sync.Mutex
	link    serial.Link
	dialect Dialect
	cfg     config.FiscalConfig
	log     *logger.Logger
	metrics *metrics.POSMetrics

	state           State
	receiptDeadline time.Time
}

// NewDriver wires a driver over an open link.
func NewDriver(link serial.Link, dialect Dialect, cfg config.FiscalConfig, log *logger.Logger, m *metrics.POSMetrics) (*Driver, error) {
	if link == nil {
		return nil, fmt.Errorf("serial link is required")
	}
	if dialect == nil {
		return nil, fmt.Errorf("dialect is required")
	}
	return &Driver{
		link:    link,
		dialect: dialect,
		cfg:     cfg,
		log:     log,
		metrics: m,
		state:   StateIdle,
	}, nil
}

// DialectFromConfig picks the configured wire protocol.
func DialectFromConfig(cfg config.FiscalConfig) (Dialect, error) {
	switch cfg.Dialect {
	case "escp":
		return NewESCPDialect(), nil
	case "xml", "":
		return NewXMLDialect(), nil
	default:
		return nil, fmt.Errorf("unknown fiscal dialect %q", cfg.Dialect)
	}
}

// CurrentState exposes the machine state for diagnostics.
func (d *Driver) CurrentState() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Connect polls the device until it answers ENQ or the connect window
// closes.
func (d *Driver) Connect(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	deadline := time.Now().Add(d.cfg.ReadTimeout)
	var lastErr error
	for time.Now().Before(deadline) {
		b, err := d.link.Status(500 * time.Millisecond)
		if err == nil {
			status := ParseStatusByte(b)
			if d.log != nil {
				d.log.Info(ctx, fmt.Sprintf("fiscal device connected, fiscal mode=%t", status.Fiscal))
			}
			return nil
		}
		lastErr = err
	}
	return AsAppError(newDeviceError("connect", FailureTransientIo, errCodeNone, nil, lastErr))
}

// Status sends ENQ and parses the answer.
func (d *Driver) Status(ctx context.Context) (Status, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.statusLocked()
}

func (d *Driver) statusLocked() (Status, error) {
	b, err := d.link.Status(d.cfg.ReadTimeout)
	if err != nil {
		return Status{}, AsAppError(newDeviceError("status", classifyLinkError(err), errCodeNone, nil, err))
	}
	return ParseStatusByte(b), nil
}

// LastErrorCode queries the device "#n" register.
func (d *Driver) LastErrorCode(ctx context.Context) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastErrorCodeLocked()
}

func (d *Driver) lastErrorCodeLocked() (int, error) {
	frame, err := d.dialect.ErrorQuery()
	if err != nil {
		return 0, err
	}
	if err := d.link.WriteFrame(frame); err != nil {
		return 0, AsAppError(newDeviceError("error_query", classifyLinkError(err), errCodeNone, nil, err))
	}
	raw, err := d.link.ReadUntil(d.dialect.ResponseTerminator(), d.cfg.ReadTimeout)
	if err != nil {
		return 0, AsAppError(newDeviceError("error_query", classifyLinkError(err), errCodeNone, nil, err))
	}
	return d.dialect.ParseErrorResponse(raw)
}

func classifyLinkError(err error) FailureKind {
	switch {
	case errors.Is(err, serial.ErrPortClosed):
		return FailureProtocolFatal
	case errors.Is(err, serial.ErrTimeout), errors.Is(err, serial.ErrShortRead):
		return FailureTransientIo
	default:
		return FailureTransientIo
	}
}

// send writes the frame and verifies it through the CMD status bit.
// TransientIo and ChecksumRejected are retried exactly once.
func (d *Driver) send(op string, frame []byte) error {
	started := time.Now()
	var devErr *DeviceError
	for attempt := 0; attempt < 2; attempt++ {
		devErr = d.sendOnce(op, frame)
		if devErr == nil {
			d.metrics.IncFiscalCommand(op, "ok")
			d.metrics.ObserveFiscalDuration(op, time.Since(started))
			return nil
		}
		if !devErr.Kind.retryable() {
			break
		}
	}
	d.metrics.IncFiscalCommand(op, devErr.Kind.String())
	d.metrics.ObserveFiscalDuration(op, time.Since(started))
	if devErr.Kind == FailurePaperOut || devErr.Kind == FailureMechanismError || devErr.Kind == FailureProtocolFatal {
		d.state = StateError
	}
	return AsAppError(devErr)
}

func (d *Driver) sendOnce(op string, frame []byte) *DeviceError {
	if err := d.link.WriteFrame(frame); err != nil {
		return newDeviceError(op, classifyLinkError(err), errCodeNone, nil, err)
	}

	b, err := d.link.Status(d.cfg.ReadTimeout)
	if err != nil {
		return newDeviceError(op, classifyLinkError(err), errCodeNone, nil, err)
	}
	status := ParseStatusByte(b)
	if status.PaperOut {
		return newDeviceError(op, FailurePaperOut, errCodePaper, &status, nil)
	}
	if status.MechanismError {
		return newDeviceError(op, FailureMechanismError, errCodeMech, &status, nil)
	}
	if !status.LastCommandOK {
		code, qerr := d.lastErrorCodeLocked()
		if qerr != nil {
			return newDeviceError(op, FailureTransientIo, errCodeNone, &status, qerr)
		}
		if code == errCodeNone {
			// CMD clear but register empty: treat as a transient glitch.
			return newDeviceError(op, FailureTransientIo, code, &status, nil)
		}
		return newDeviceError(op, classifyErrorCode(code), code, &status, nil)
	}
	return nil
}

// sendWithResponse writes the frame and reads a textual response.
func (d *Driver) sendWithResponse(op string, frame []byte) ([]byte, error) {
	started := time.Now()
	var devErr *DeviceError
	for attempt := 0; attempt < 2; attempt++ {
		if err := d.link.WriteFrame(frame); err != nil {
			devErr = newDeviceError(op, classifyLinkError(err), errCodeNone, nil, err)
			if devErr.Kind.retryable() {
				continue
			}
			break
		}
		raw, err := d.link.ReadUntil(d.dialect.ResponseTerminator(), d.cfg.ReadTimeout)
		if err != nil {
			devErr = newDeviceError(op, classifyLinkError(err), errCodeNone, nil, err)
			if devErr.Kind.retryable() {
				continue
			}
			break
		}
		d.metrics.IncFiscalCommand(op, "ok")
		d.metrics.ObserveFiscalDuration(op, time.Since(started))
		return raw, nil
	}
	d.metrics.IncFiscalCommand(op, devErr.Kind.String())
	d.metrics.ObserveFiscalDuration(op, time.Since(started))
	if devErr.Kind == FailureProtocolFatal {
		d.state = StateError
	}
	return nil, AsAppError(devErr)
}

// deadlineExpired cancels the receipt and reports FiscalTimeout when the
// per-receipt deadline has passed.
func (d *Driver) deadlineExpired(op string) error {
	if d.state != StateReceiptOpen || d.receiptDeadline.IsZero() || time.Now().Before(d.receiptDeadline) {
		return nil
	}
	d.cancelLocked()
	return AsAppError(newDeviceError(op, FailureTimeout, errCodeNone, nil, nil))
}

// OpenReceipt starts a paragon. When the device reports a stuck open
// receipt with a pending error, one cancel-and-retry is attempted before
// giving up with DeviceBusy.
func (d *Driver) OpenReceipt(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state == StateError {
		return AsAppError(newDeviceError("open_receipt", FailureProtocolFatal, errCodeNone, nil, errors.New("driver in error state, reset required")))
	}
	if d.state == StateReceiptOpen {
		return apperrors.New(apperrors.CodeStateConflict, "receipt already open")
	}

	status, err := d.statusLocked()
	if err != nil {
		return err
	}
	if status.ReceiptOpen {
		code, qerr := d.lastErrorCodeLocked()
		if qerr == nil && code != errCodeNone {
			d.cancelLocked()
			status, err = d.statusLocked()
			if err != nil {
				return err
			}
		}
		if status.ReceiptOpen {
			return AsAppError(newDeviceError("open_receipt", FailureDeviceBusy, errCodeNone, &status, nil))
		}
	}

	frame, err := d.dialect.OpenReceipt()
	if err != nil {
		return err
	}
	if err := d.send("open_receipt", frame); err != nil {
		return err
	}
	d.state = StateReceiptOpen
	d.receiptDeadline = time.Now().Add(d.cfg.ReceiptDeadline)
	return nil
}

// AddItem prints one line. Valid only while a receipt is open.
func (d *Driver) AddItem(ctx context.Context, item ReceiptItem) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != StateReceiptOpen {
		return apperrors.New(apperrors.CodeStateConflict, "no receipt open")
	}
	if err := d.deadlineExpired("add_item"); err != nil {
		return err
	}
	if item.Quantity.LessThan(decimal.New(1, 0)) {
		return apperrors.New(apperrors.CodeValidation, "quantity must be at least 1")
	}
	if item.UnitPrice.IsNegative() {
		return apperrors.New(apperrors.CodeValidation, "unit price must not be negative")
	}

	item.Name = truncateName(item.Name, d.cfg.DisplayWidth)
	item.UnitPrice = item.UnitPrice.Round(2)
	frame, err := d.dialect.AddItem(item)
	if err != nil {
		return err
	}
	return d.send("add_item", frame)
}

// AddDiscount applies a discount or surcharge to the open receipt.
func (d *Driver) AddDiscount(ctx context.Context, spec DiscountSpec) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != StateReceiptOpen {
		return apperrors.New(apperrors.CodeStateConflict, "no receipt open")
	}
	if err := d.deadlineExpired("add_discount"); err != nil {
		return err
	}
	frame, err := d.dialect.AddDiscount(spec)
	if err != nil {
		return err
	}
	return d.send("add_discount", frame)
}

// AddPayment registers one tender on the open receipt.
func (d *Driver) AddPayment(ctx context.Context, payment PaymentSpec) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != StateReceiptOpen {
		return apperrors.New(apperrors.CodeStateConflict, "no receipt open")
	}
	if err := d.deadlineExpired("add_payment"); err != nil {
		return err
	}
	if payment.Amount.IsNegative() {
		return apperrors.New(apperrors.CodeValidation, "payment amount must not be negative")
	}
	frame, err := d.dialect.AddPayment(payment)
	if err != nil {
		return err
	}
	return d.send("add_payment", frame)
}

// CloseReceipt totals and prints the paragon, returning the fiscal and
// receipt numbers.
func (d *Driver) CloseReceipt(ctx context.Context, totalExpected decimal.Decimal, cashierLabel string) (ReceiptResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != StateReceiptOpen {
		return ReceiptResult{}, apperrors.New(apperrors.CodeStateConflict, "no receipt open")
	}
	if err := d.deadlineExpired("close_receipt"); err != nil {
		return ReceiptResult{}, err
	}

	frame, err := d.dialect.CloseReceipt(totalExpected.Round(2), cashierLabel)
	if err != nil {
		return ReceiptResult{}, err
	}
	raw, err := d.sendWithResponse("close_receipt", frame)
	if err != nil {
		return ReceiptResult{}, err
	}
	result, err := d.dialect.ParseCloseResponse(raw)
	if err != nil {
		d.state = StateError
		return ReceiptResult{}, AsAppError(newDeviceError("close_receipt", FailureProtocolFatal, errCodeNone, nil, err))
	}
	d.state = StateIdle
	d.receiptDeadline = time.Time{}
	return result, nil
}

// CancelReceipt aborts the open paragon. Idempotent: cancelling from
// IDLE is a no-op, cancelling from ERROR clears the error state.
func (d *Driver) CancelReceipt(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state == StateIdle {
		return nil
	}
	d.cancelLocked()
	return nil
}

func (d *Driver) cancelLocked() {
	frame, err := d.dialect.CancelReceipt()
	if err == nil {
		// best effort: the device drops the paragon on its own after a
		// power cycle even if this frame is lost
		_ = d.sendOnce("cancel_receipt", frame)
	}
	d.state = StateIdle
	d.receiptDeadline = time.Time{}
}

// Reset clears the ERROR state after operator intervention.
func (d *Driver) Reset(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancelLocked()
	status, err := d.statusLocked()
	if err != nil {
		return err
	}
	if status.MechanismError || status.PaperOut {
		d.state = StateError
		return AsAppError(newDeviceError("reset", FailureMechanismError, errCodeMech, &status, nil))
	}
	d.state = StateIdle
	return nil
}

func (d *Driver) simpleCommand(op string, build func() ([]byte, error)) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state == StateReceiptOpen {
		return apperrors.New(apperrors.CodeStateConflict, "receipt in progress")
	}
	frame, err := build()
	if err != nil {
		return err
	}
	return d.send(op, frame)
}

// XReport prints the read-only daily snapshot.
func (d *Driver) XReport(ctx context.Context) error {
	return d.simpleCommand("x_report", d.dialect.XReport)
}

// ZReport prints the daily totals and zeroes the registers.
func (d *Driver) ZReport(ctx context.Context) error {
	return d.simpleCommand("z_report", d.dialect.ZReport)
}

// DailyReport prints the periodic report for the date range.
func (d *Driver) DailyReport(ctx context.Context, from, to time.Time) error {
	return d.simpleCommand("daily_report", func() ([]byte, error) {
		return d.dialect.DailyReport(from, to)
	})
}

// SetDateTime programs the device clock.
func (d *Driver) SetDateTime(ctx context.Context, t time.Time) error {
	return d.simpleCommand("set_datetime", func() ([]byte, error) {
		return d.dialect.SetDateTime(t)
	})
}

// SetCashier programs the cashier line printed on receipts.
func (d *Driver) SetCashier(ctx context.Context, name, code string) error {
	return d.simpleCommand("set_cashier", func() ([]byte, error) {
		return d.dialect.SetCashier(name, code)
	})
}

// SetHeaderLine programs one line of the receipt header.
func (d *Driver) SetHeaderLine(ctx context.Context, line int, text string) error {
	return d.simpleCommand("set_header", func() ([]byte, error) {
		return d.dialect.SetHeaderLine(line, text)
	})
}

// OpenDrawer kicks the cash drawer.
func (d *Driver) OpenDrawer(ctx context.Context) error {
	return d.simpleCommand("open_drawer", d.dialect.OpenDrawer)
}

// PrintNonFiscalText prints free text outside a paragon.
func (d *Driver) PrintNonFiscalText(ctx context.Context, text string) error {
	return d.simpleCommand("nonfiscal_text", func() ([]byte, error) {
		return d.dialect.NonFiscalText(text)
	})
}

// PrintCopy reprints a stored receipt.
func (d *Driver) PrintCopy(ctx context.Context, number int) error {
	return d.simpleCommand("print_copy", func() ([]byte, error) {
		return d.dialect.PrintCopy(number)
	})
}

// Close releases the serial port.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state == StateReceiptOpen {
		d.cancelLocked()
	}
	return d.link.Close()
}
