package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/retailpos/retailpos-backend/api/middleware"
	"github.com/retailpos/retailpos-backend/api/responses"
	"github.com/retailpos/retailpos-backend/api/validators"
	"github.com/retailpos/retailpos-backend/internal/pricing"
	"github.com/retailpos/retailpos-backend/pkg/db/models"
	pkgerrors "github.com/retailpos/retailpos-backend/pkg/errors"
	"github.com/retailpos/retailpos-backend/pkg/logger"
)

// warehouseResolver maps a warehouse onto its location surface.
type warehouseResolver interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Warehouse, error)
}

type setPriceRequest struct {
	Net       decimal.Decimal `json:"net" validate:"required"`
	Gross     decimal.Decimal `json:"gross" validate:"required"`
	ValidFrom *time.Time      `json:"valid_from,omitempty"`
	Label     string          `json:"label,omitempty"`
}

// SetWarehousePrice handles PUT /warehouses/{warehouseID}/products/{productID}/price.
func SetWarehousePrice(svc pricing.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "pricing service unavailable"))
			return
		}

		warehouseID, err := uuid.Parse(chi.URLParam(r, "warehouseID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid warehouse id"))
			return
		}
		productID, err := uuid.Parse(chi.URLParam(r, "productID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid product id"))
			return
		}

		var payload setPriceRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := pricing.SetPriceInput{
			WarehouseID: warehouseID,
			ProductID:   productID,
			Net:         payload.Net,
			Gross:       payload.Gross,
			Label:       payload.Label,
			CreatedBy:   middleware.LoginFromContext(r.Context()),
		}
		if payload.ValidFrom != nil {
			input.ValidFrom = *payload.ValidFrom
		}

		rows, err := svc.SetWarehousePrice(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessMessage(w, "price applied to the location surface", rows)
	}
}

// GetWarehousePrice handles GET /warehouses/{warehouseID}/products/{productID}/price.
// With ?date= it resolves the price effective on that day; without it,
// today's.
func GetWarehousePrice(svc pricing.Service, logg *logger.Logger, warehouses warehouseResolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "pricing service unavailable"))
			return
		}

		warehouseID, err := uuid.Parse(chi.URLParam(r, "warehouseID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid warehouse id"))
			return
		}
		productID, err := uuid.Parse(chi.URLParam(r, "productID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid product id"))
			return
		}
		date, err := validators.ParseQueryDate(r, "date")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		warehouse, err := warehouses.FindByID(r.Context(), warehouseID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "warehouse not found"))
			return
		}

		at := time.Now()
		if date != nil {
			at = *date
		}
		price, err := svc.GetEffectivePrice(r.Context(), productID, warehouse.LocationID, at)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, price)
	}
}

type copyPricesRequest struct {
	Overwrite bool `json:"overwrite"`
}

// CopyPrices handles POST /warehouses/{sourceID}/copy-prices-to/{targetID}.
func CopyPrices(svc pricing.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "pricing service unavailable"))
			return
		}

		sourceID, err := uuid.Parse(chi.URLParam(r, "sourceID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid source warehouse id"))
			return
		}
		targetID, err := uuid.Parse(chi.URLParam(r, "targetID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid target warehouse id"))
			return
		}

		var payload copyPricesRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		actor := middleware.LoginFromContext(r.Context())
		result, err := svc.CopyPrices(r.Context(), sourceID, targetID, payload.Overwrite, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// ProductPriceHistory handles GET /products/{productID}/prices and lists
// the price rows across every warehouse, newest window first.
func ProductPriceHistory(svc pricing.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "pricing service unavailable"))
			return
		}

		productID, err := uuid.Parse(chi.URLParam(r, "productID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid product id"))
			return
		}

		rows, err := svc.HistoryByProduct(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rows)
	}
}
