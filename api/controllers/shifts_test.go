package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/retailpos/retailpos-backend/api/middleware"
	"github.com/retailpos/retailpos-backend/internal/shifts"
	"github.com/retailpos/retailpos-backend/pkg/db/models"
	"github.com/retailpos/retailpos-backend/pkg/enums"
)

type stubShiftService struct {
	shift          *models.Shift
	err            error
	currentCashier string
	reportFilter   shifts.ReportFilter
}

func (s *stubShiftService) OpenShift(_ context.Context, input shifts.OpenShiftInput) (*models.Shift, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &models.Shift{CashierID: input.CashierID, LocationID: input.LocationID}, nil
}

func (s *stubShiftService) Current(_ context.Context, cashierID string) (*models.Shift, error) {
	s.currentCashier = cashierID
	if s.err != nil {
		return nil, s.err
	}
	return s.shift, nil
}

func (s *stubShiftService) RecordTransaction(context.Context, uuid.UUID, decimal.Decimal, enums.Tender) error {
	return s.err
}

func (s *stubShiftService) CloseShift(context.Context, shifts.CloseShiftInput) (*shifts.CloseResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &shifts.CloseResult{Shift: s.shift}, nil
}

func (s *stubShiftService) RecordDeposit(context.Context, shifts.DepositInput) (*models.SafeBagDeposit, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &models.SafeBagDeposit{}, nil
}

func (s *stubShiftService) ClosureReports(_ context.Context, filter shifts.ReportFilter) ([]models.DailyClosureReport, error) {
	s.reportFilter = filter
	return nil, s.err
}

func TestCurrentShiftUsesQueryCashierOverToken(t *testing.T) {
	stub := &stubShiftService{shift: &models.Shift{CashierID: "anna"}}
	handler := CurrentShift(stub, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/shifts/current?cashier=anna", nil)
	req = req.WithContext(middleware.WithCashier(req.Context(), "kasia", "kasia"))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	if stub.currentCashier != "anna" {
		t.Fatalf("expected query cashier, got %q", stub.currentCashier)
	}
}

func TestCurrentShiftWithoutCashierRejected(t *testing.T) {
	handler := CurrentShift(&stubShiftService{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/shifts/current", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestOpenShiftFillsCashierFromToken(t *testing.T) {
	handler := OpenShift(&stubShiftService{}, nil)

	payload := `{"location_id": "` + uuid.NewString() + `", "starting_cash": "500.00", "verified_at_start": true}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/shifts/open-enhanced", strings.NewReader(payload))
	req = req.WithContext(middleware.WithCashier(req.Context(), "kasia", "kasia"))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestClosureReportsParsesDateFilters(t *testing.T) {
	stub := &stubShiftService{}
	handler := ClosureReports(stub, nil)

	req := httptest.NewRequest(http.MethodGet,
		"/api/v1/admin/daily-closure-reports?date_from=2026-08-01&date_to=2026-08-31&cashier=kasia", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	if stub.reportFilter.DateFrom == nil || stub.reportFilter.DateTo == nil {
		t.Fatal("expected both date filters parsed")
	}
	if stub.reportFilter.CashierID != "kasia" {
		t.Fatalf("expected cashier filter, got %q", stub.reportFilter.CashierID)
	}
	if got := stub.reportFilter.DateFrom.Format("2006-01-02"); got != "2026-08-01" {
		t.Fatalf("unexpected date_from %s", got)
	}
}

func TestClosureReportsRejectsBadDate(t *testing.T) {
	handler := ClosureReports(&stubShiftService{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/daily-closure-reports?date_from=31-08-2026", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}
