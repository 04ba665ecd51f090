package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/retailpos/retailpos-backend/api/middleware"
	"github.com/retailpos/retailpos-backend/api/responses"
	"github.com/retailpos/retailpos-backend/api/validators"
	"github.com/retailpos/retailpos-backend/internal/sales"
	"github.com/retailpos/retailpos-backend/pkg/enums"
	pkgerrors "github.com/retailpos/retailpos-backend/pkg/errors"
	"github.com/retailpos/retailpos-backend/pkg/logger"
)

type saleRequest struct {
	LocationID     uuid.UUID        `json:"location_id,omitempty"`
	CashierID      string           `json:"cashier_id,omitempty"`
	CustomerID     *uuid.UUID       `json:"customer_id,omitempty"`
	Lines          []sales.SaleLine `json:"lines" validate:"required,min=1,dive"`
	Tender         enums.Tender     `json:"tender" validate:"required"`
	AmountTendered decimal.Decimal  `json:"amount_tendered"`
}

// CompleteSale handles POST /pos/sale. Cashier and location fall back
// to the access token when the body omits them.
func CompleteSale(svc sales.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "sales service unavailable"))
			return
		}

		var payload saleRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := sales.SaleInput{
			LocationID:     payload.LocationID,
			CashierID:      payload.CashierID,
			CustomerID:     payload.CustomerID,
			Lines:          payload.Lines,
			Tender:         payload.Tender,
			AmountTendered: payload.AmountTendered,
		}
		if input.CashierID == "" {
			input.CashierID = middleware.CashierIDFromContext(r.Context())
		}
		if input.LocationID == uuid.Nil {
			if raw := middleware.LocationIDFromContext(r.Context()); raw != "" {
				if id, err := uuid.Parse(raw); err == nil {
					input.LocationID = id
				}
			}
		}
		if input.CashierID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "cashier is required"))
			return
		}
		if input.LocationID == uuid.Nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "location is required"))
			return
		}

		txn, err := svc.CompleteSale(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, txn)
	}
}

// GetTransaction handles GET /pos/transactions/{transactionID}.
func GetTransaction(svc sales.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "sales service unavailable"))
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "transactionID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid transaction id"))
			return
		}

		txn, err := svc.Transaction(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, txn)
	}
}

// GetTransactionByNumber handles GET /pos/transactions/number/{number}.
func GetTransactionByNumber(svc sales.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "sales service unavailable"))
			return
		}

		number := chi.URLParam(r, "number")
		if number == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "transaction number is required"))
			return
		}

		txn, err := svc.TransactionByNumber(r.Context(), number)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, txn)
	}
}
