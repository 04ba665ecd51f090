package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/retailpos/retailpos-backend/api/middleware"
	"github.com/retailpos/retailpos-backend/api/responses"
	"github.com/retailpos/retailpos-backend/api/validators"
	"github.com/retailpos/retailpos-backend/internal/shifts"
	pkgerrors "github.com/retailpos/retailpos-backend/pkg/errors"
	"github.com/retailpos/retailpos-backend/pkg/logger"
)

func cashierFrom(r *http.Request) string {
	if raw := strings.TrimSpace(r.URL.Query().Get("cashier")); raw != "" {
		return raw
	}
	return middleware.CashierIDFromContext(r.Context())
}

// CurrentShift handles GET /shifts/current?cashier=. Without the query
// parameter the token's cashier is used.
func CurrentShift(svc shifts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "shift service unavailable"))
			return
		}

		cashier := cashierFrom(r)
		if cashier == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "cashier is required"))
			return
		}

		shift, err := svc.Current(r.Context(), cashier)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, shift)
	}
}

type openShiftRequest struct {
	LocationID             uuid.UUID       `json:"location_id" validate:"required"`
	StartingCash           decimal.Decimal `json:"starting_cash"`
	VerifiedAtStart        bool            `json:"verified_at_start"`
	StartDiscrepancyAmount decimal.Decimal `json:"start_discrepancy_amount"`
	Notes                  string          `json:"notes,omitempty"`
	CashierID              string          `json:"cashier_id,omitempty"`
}

// OpenShift handles POST /shifts/open-enhanced.
func OpenShift(svc shifts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "shift service unavailable"))
			return
		}

		var payload openShiftRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if payload.CashierID == "" {
			payload.CashierID = middleware.CashierIDFromContext(r.Context())
		}
		if payload.CashierID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "cashier is required"))
			return
		}

		shift, err := svc.OpenShift(r.Context(), shifts.OpenShiftInput{
			CashierID:              payload.CashierID,
			LocationID:             payload.LocationID,
			StartingCash:           payload.StartingCash,
			VerifiedAtStart:        payload.VerifiedAtStart,
			StartDiscrepancyAmount: payload.StartDiscrepancyAmount,
			Notes:                  payload.Notes,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, shift)
	}
}

type closeShiftRequest struct {
	LocationID         uuid.UUID       `json:"location_id" validate:"required"`
	EndingCashSystem   decimal.Decimal `json:"ending_cash_system"`
	EndingCashPhysical decimal.Decimal `json:"ending_cash_physical"`
	TerminalSystem     decimal.Decimal `json:"terminal_system"`
	TerminalActual     decimal.Decimal `json:"terminal_actual"`
	FiscalDailyTotal   decimal.Decimal `json:"fiscal_daily_total"`
	SocialMediaNotes   string          `json:"social_media_notes,omitempty"`
	AchievementNotes   string          `json:"achievement_notes,omitempty"`
	CashierID          string          `json:"cashier_id,omitempty"`
}

// CloseShift handles POST /shifts/close-enhanced. Closing reconciles
// the drawer and writes the daily closure report in one transaction.
func CloseShift(svc shifts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "shift service unavailable"))
			return
		}

		var payload closeShiftRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if payload.CashierID == "" {
			payload.CashierID = middleware.CashierIDFromContext(r.Context())
		}
		if payload.CashierID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "cashier is required"))
			return
		}

		result, err := svc.CloseShift(r.Context(), shifts.CloseShiftInput{
			CashierID:          payload.CashierID,
			LocationID:         payload.LocationID,
			EndingCashSystem:   payload.EndingCashSystem,
			EndingCashPhysical: payload.EndingCashPhysical,
			TerminalSystem:     payload.TerminalSystem,
			TerminalActual:     payload.TerminalActual,
			FiscalDailyTotal:   payload.FiscalDailyTotal,
			SocialMediaNotes:   payload.SocialMediaNotes,
			AchievementNotes:   payload.AchievementNotes,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessMessage(w, "shift closed", result)
	}
}

type safeBagRequest struct {
	LocationID uuid.UUID       `json:"location_id" validate:"required"`
	Amount     decimal.Decimal `json:"amount" validate:"required"`
	BagNumber  string          `json:"bag_number,omitempty"`
	ByCashier  string          `json:"by_cashier,omitempty"`
}

// RecordSafeBag handles POST /shifts/safebag.
func RecordSafeBag(svc shifts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "shift service unavailable"))
			return
		}

		var payload safeBagRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if payload.ByCashier == "" {
			payload.ByCashier = middleware.CashierIDFromContext(r.Context())
		}
		if payload.ByCashier == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "cashier is required"))
			return
		}

		deposit, err := svc.RecordDeposit(r.Context(), shifts.DepositInput{
			LocationID: payload.LocationID,
			Amount:     payload.Amount,
			ByCashier:  payload.ByCashier,
			BagNumber:  payload.BagNumber,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, deposit)
	}
}

// ClosureReports handles GET /admin/daily-closure-reports with
// date_from, date_to and cashier filters.
func ClosureReports(svc shifts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "shift service unavailable"))
			return
		}

		dateFrom, err := validators.ParseQueryDate(r, "date_from")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		dateTo, err := validators.ParseQueryDate(r, "date_to")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := svc.ClosureReports(r.Context(), shifts.ReportFilter{
			DateFrom:  dateFrom,
			DateTo:    dateTo,
			CashierID: strings.TrimSpace(r.URL.Query().Get("cashier")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rows)
	}
}
