package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/retailpos/retailpos-backend/api/middleware"
	"github.com/retailpos/retailpos-backend/api/responses"
	"github.com/retailpos/retailpos-backend/api/validators"
	"github.com/retailpos/retailpos-backend/internal/margins"
	pkgerrors "github.com/retailpos/retailpos-backend/pkg/errors"
	"github.com/retailpos/retailpos-backend/pkg/logger"
)

// MarginAnalysis handles GET /margin/product/{productID}/analysis.
func MarginAnalysis(svc margins.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "margin service unavailable"))
			return
		}

		productID, err := uuid.Parse(chi.URLParam(r, "productID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid product id"))
			return
		}

		analysis, err := svc.Analyze(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, analysis)
	}
}

// LowMargins handles GET /margin/products/low-margins?threshold=.
func LowMargins(svc margins.Service, logg *logger.Logger, defaultThreshold decimal.Decimal) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "margin service unavailable"))
			return
		}

		threshold, err := validators.ParseQueryDecimal(r, "threshold", defaultThreshold)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := svc.LowMargins(r.Context(), threshold)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rows)
	}
}

type correctMarginRequest struct {
	TargetMargin   decimal.Decimal `json:"target_margin" validate:"required"`
	CorrectDefault bool            `json:"correct_default"`
	LocationIDs    []uuid.UUID     `json:"location_ids"`
}

// CorrectMargin handles POST /margin/product/{productID}/correct.
func CorrectMargin(svc margins.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "margin service unavailable"))
			return
		}

		productID, err := uuid.Parse(chi.URLParam(r, "productID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid product id"))
			return
		}

		var payload correctMarginRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		// corrections write the product default only; location prices
		// are managed through the pricing endpoints
		if len(payload.LocationIDs) > 0 {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation,
				"location_ids is not supported here, set location prices via the pricing endpoints"))
			return
		}

		result, err := svc.Correct(r.Context(), margins.CorrectInput{
			ProductID:       productID,
			TargetMarginPct: payload.TargetMargin,
			CorrectDefault:  payload.CorrectDefault,
			Actor:           middleware.LoginFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessMessage(w, "margin corrected", result)
	}
}

type purchaseInvoiceLineRequest struct {
	ProductID     uuid.UUID       `json:"product_id" validate:"required"`
	Quantity      decimal.Decimal `json:"quantity" validate:"required"`
	UnitNetCost   decimal.Decimal `json:"unit_net_cost" validate:"required"`
	UnitGrossCost decimal.Decimal `json:"unit_gross_cost" validate:"required"`
	VATRate       decimal.Decimal `json:"vat_rate"`
}

type purchaseInvoiceRequest struct {
	Number      string                       `json:"number" validate:"required"`
	SupplierTIN string                       `json:"supplier_tin,omitempty"`
	WarehouseID uuid.UUID                    `json:"warehouse_id" validate:"required"`
	IssuedAt    *time.Time                   `json:"issued_at,omitempty"`
	Lines       []purchaseInvoiceLineRequest `json:"lines" validate:"required,min=1,dive"`
}

// PostPurchaseInvoice handles POST /purchase-invoices. Each delivered
// line updates the product cost and triggers a margin pass.
func PostPurchaseInvoice(svc margins.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "margin service unavailable"))
			return
		}

		var payload purchaseInvoiceRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := margins.PostInvoiceInput{
			Number:      payload.Number,
			SupplierTIN: payload.SupplierTIN,
			WarehouseID: payload.WarehouseID,
			Actor:       middleware.LoginFromContext(r.Context()),
		}
		if payload.IssuedAt != nil {
			input.IssuedAt = *payload.IssuedAt
		}
		for _, line := range payload.Lines {
			input.Lines = append(input.Lines, margins.PostInvoiceLine{
				ProductID:     line.ProductID,
				Quantity:      line.Quantity,
				UnitNetCost:   line.UnitNetCost,
				UnitGrossCost: line.UnitGrossCost,
				VATRate:       line.VATRate,
			})
		}

		result, err := svc.PostPurchaseInvoice(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// MarginReports handles GET /margin/product/{productID}/reports.
func MarginReports(svc margins.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "margin service unavailable"))
			return
		}

		productID, err := uuid.Parse(chi.URLParam(r, "productID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid product id"))
			return
		}

		rows, err := svc.Reports(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rows)
	}
}
