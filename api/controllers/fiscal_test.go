package controllers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/retailpos/retailpos-backend/internal/fiscal"
	pkgerrors "github.com/retailpos/retailpos-backend/pkg/errors"
)

func TestFiscalReceiptEndToEnd(t *testing.T) {
	sim := fiscal.NewSimulator()
	handler := FiscalReceipt(sim, nil)

	payload := `{
		"lines": [{"name": "Chleb", "quantity": "2", "unit_price": "4.50", "tax_letter": "B"}],
		"tender": "cash",
		"total": "9.00"
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/fiscal/receipt", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	var envelope struct {
		Data struct {
			FiscalNumber string `json:"fiscal_number"`
		} `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !strings.HasPrefix(envelope.Data.FiscalNumber, "SIM-") {
		t.Fatalf("expected simulator fiscal number, got %q", envelope.Data.FiscalNumber)
	}
	if sim.CurrentState() != fiscal.StateIdle {
		t.Fatalf("device should be idle after close, state %s", sim.CurrentState())
	}
}

func TestFiscalReceiptFailureCancelsReceipt(t *testing.T) {
	sim := fiscal.NewSimulator()
	sim.FailOn = "close_receipt"
	sim.FailWith = pkgerrors.New(pkgerrors.CodeFiscalTransient, "printer jam")
	handler := FiscalReceipt(sim, nil)

	payload := `{
		"lines": [{"name": "Chleb", "quantity": "1", "unit_price": "4.50", "tax_letter": "B"}],
		"tender": "cash",
		"total": "4.50"
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/fiscal/receipt", strings.NewReader(payload))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code == http.StatusOK {
		t.Fatal("expected failure response")
	}
	if sim.CurrentState() != fiscal.StateIdle {
		t.Fatalf("receipt should be cancelled after failure, state %s", sim.CurrentState())
	}
}

func TestFiscalStatusReportsParsedBits(t *testing.T) {
	sim := fiscal.NewSimulator()
	handler := FiscalStatus(sim, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/fiscal/status", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	var envelope struct {
		Data struct {
			Status struct {
				Fiscal        bool `json:"fiscal"`
				LastCommandOK bool `json:"last_command_ok"`
				ReceiptOpen   bool `json:"receipt_open"`
			} `json:"status"`
			LastErrorCode int `json:"last_error_code"`
		} `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.Status.ReceiptOpen {
		t.Fatal("no receipt should be open")
	}
	if envelope.Data.LastErrorCode != 0 {
		t.Fatalf("expected error code 0, got %d", envelope.Data.LastErrorCode)
	}
}

func TestFiscalEndpointsWithoutDevice(t *testing.T) {
	handler := FiscalOpen(nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/fiscal/open", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", rec.Code)
	}
}
