package controllers

import (
	"net/http"

	"github.com/shopspring/decimal"
	"go.uber.org/multierr"

	"github.com/retailpos/retailpos-backend/api/middleware"
	"github.com/retailpos/retailpos-backend/api/responses"
	"github.com/retailpos/retailpos-backend/api/validators"
	"github.com/retailpos/retailpos-backend/internal/fiscal"
	"github.com/retailpos/retailpos-backend/pkg/enums"
	pkgerrors "github.com/retailpos/retailpos-backend/pkg/errors"
	"github.com/retailpos/retailpos-backend/pkg/logger"
)

func requireDevice(w http.ResponseWriter, r *http.Request, logg *logger.Logger, device fiscal.Device) bool {
	if device == nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeStoreUnavailable, "no fiscal device configured"))
		return false
	}
	return true
}

// FiscalOpen handles POST /fiscal/open and opens a receipt on the
// device without going through the sales pipeline.
func FiscalOpen(device fiscal.Device, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireDevice(w, r, logg, device) {
			return
		}
		if err := device.OpenReceipt(r.Context()); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessMessage(w, "receipt opened", nil)
	}
}

// FiscalStatus handles POST /fiscal/status. The parsed status bits are
// returned together with the device's last error code.
func FiscalStatus(device fiscal.Device, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireDevice(w, r, logg, device) {
			return
		}

		status, err := device.Status(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		lastError, err := device.LastErrorCode(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{
			"status":          status,
			"last_error_code": lastError,
		})
	}
}

type fiscalReceiptLine struct {
	Name      string          `json:"name" validate:"required"`
	Quantity  decimal.Decimal `json:"quantity" validate:"required"`
	UnitPrice decimal.Decimal `json:"unit_price" validate:"required"`
	TaxLetter string          `json:"tax_letter" validate:"required"`
}

type fiscalReceiptRequest struct {
	Lines  []fiscalReceiptLine `json:"lines" validate:"required,min=1,dive"`
	Tender enums.Tender        `json:"tender" validate:"required"`
	Total  decimal.Decimal     `json:"total" validate:"required"`
}

// FiscalReceipt handles POST /fiscal/receipt and prints a manual
// receipt end to end. Any failure after the open cancels the receipt so
// the device returns to idle.
func FiscalReceipt(device fiscal.Device, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireDevice(w, r, logg, device) {
			return
		}

		var payload fiscalReceiptRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := r.Context()
		if err := device.OpenReceipt(ctx); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		result, err := func() (fiscal.ReceiptResult, error) {
			for _, line := range payload.Lines {
				if err := device.AddItem(ctx, fiscal.ReceiptItem{
					Name:      line.Name,
					Quantity:  line.Quantity,
					UnitPrice: line.UnitPrice,
					TaxLetter: line.TaxLetter,
				}); err != nil {
					return fiscal.ReceiptResult{}, err
				}
			}
			if err := device.AddPayment(ctx, fiscal.PaymentSpec{Kind: payload.Tender, Amount: payload.Total}); err != nil {
				return fiscal.ReceiptResult{}, err
			}
			return device.CloseReceipt(ctx, payload.Total, middleware.LoginFromContext(ctx))
		}()
		if err != nil {
			responses.WriteError(ctx, logg, w, multierr.Append(err, device.CancelReceipt(ctx)))
			return
		}

		responses.WriteSuccess(w, map[string]string{
			"fiscal_number":  result.FiscalNumber,
			"receipt_number": result.ReceiptNumber,
		})
	}
}

// FiscalCancel handles POST /fiscal/cancel.
func FiscalCancel(device fiscal.Device, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireDevice(w, r, logg, device) {
			return
		}
		if err := device.CancelReceipt(r.Context()); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessMessage(w, "receipt cancelled", nil)
	}
}

// FiscalXReport handles POST /fiscal/report/x.
func FiscalXReport(device fiscal.Device, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireDevice(w, r, logg, device) {
			return
		}
		if err := device.XReport(r.Context()); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessMessage(w, "X report printed", nil)
	}
}

// FiscalZReport handles POST /fiscal/report/z. The Z report zeroes the
// daily counters on the device.
func FiscalZReport(device fiscal.Device, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireDevice(w, r, logg, device) {
			return
		}
		if err := device.ZReport(r.Context()); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessMessage(w, "Z report printed", nil)
	}
}
