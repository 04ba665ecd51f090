package margins

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/retailpos/retailpos-backend/internal/catalog"
	"github.com/retailpos/retailpos-backend/internal/pricing"
	"github.com/retailpos/retailpos-backend/pkg/config"
	"github.com/retailpos/retailpos-backend/pkg/db"
	"github.com/retailpos/retailpos-backend/pkg/db/models"
	"github.com/retailpos/retailpos-backend/pkg/enums"
	pkgerrors "github.com/retailpos/retailpos-backend/pkg/errors"
)

type testEnv struct {
	conn *gorm.DB
	svc  Service
}

func testMarginConfig() config.MarginConfig {
	return config.MarginConfig{
		MinMarginPct:       20,
		TargetMarginPct:    30,
		PromotionMarginPct: 10,
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	if err := conn.AutoMigrate(
		&models.Location{},
		&models.Warehouse{},
		&models.Product{},
		&models.WarehousePrice{},
		&models.MarginReport{},
		&models.PurchaseInvoice{},
		&models.PurchaseInvoiceLine{},
	); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	svc, err := NewService(
		db.NewFromConn(conn),
		testMarginConfig(),
		catalog.NewProductRepository(conn),
		pricing.NewRepository(conn),
		catalog.NewWarehouseRepository(conn),
		NewReportRepository(conn),
		NewInvoiceRepository(conn),
		nil,
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return &testEnv{conn: conn, svc: svc}
}

func (e *testEnv) seedProduct(t *testing.T, code, purchaseGross, saleGross string) *models.Product {
	t.Helper()
	gross := decimal.RequireFromString(saleGross)
	product := &models.Product{
		ID:            uuid.New(),
		Code:          code,
		Name:          "Produkt " + code,
		TaxRate:       decimal.New(23, 0),
		PurchaseGross: decimal.RequireFromString(purchaseGross),
		PurchaseNet:   decimal.RequireFromString(purchaseGross).Div(decimal.RequireFromString("1.23")).Round(2),
		SaleGross:     gross,
		SaleNet:       gross.Div(decimal.RequireFromString("1.23")).Round(2),
		Unit:          "szt",
		Active:        true,
	}
	if err := e.conn.Create(product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return product
}

func (e *testEnv) seedSurface(t *testing.T, productID uuid.UUID, gross, label string) *models.WarehousePrice {
	t.Helper()
	location := &models.Location{ID: uuid.New(), Code: "L-" + uuid.NewString()[:8], Name: "Sklep", Type: enums.LocationTypeStore, Active: true}
	if err := e.conn.Create(location).Error; err != nil {
		t.Fatalf("seed location: %v", err)
	}
	warehouse := &models.Warehouse{ID: uuid.New(), LocationID: location.ID, Code: "W-" + uuid.NewString()[:8], Name: "Magazyn", Active: true}
	if err := e.conn.Create(warehouse).Error; err != nil {
		t.Fatalf("seed warehouse: %v", err)
	}
	g := decimal.RequireFromString(gross)
	row := &models.WarehousePrice{
		ID:          uuid.New(),
		WarehouseID: warehouse.ID,
		ProductID:   productID,
		SaleNet:     g.Div(decimal.RequireFromString("1.23")).Round(2),
		SaleGross:   g,
		ValidFrom:   time.Now().AddDate(0, 0, -7),
		Active:      true,
		Label:       label,
		CreatedBy:   "K1",
	}
	if err := e.conn.Create(row).Error; err != nil {
		t.Fatalf("seed price row: %v", err)
	}
	return row
}

func hasWarning(warnings []Warning, kind enums.MarginWarningKind) bool {
	for _, w := range warnings {
		if w.Kind == kind {
			return true
		}
	}
	return false
}

func TestOnCostChangeCorrectsOnlyDefault(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	product := env.seedProduct(t, "P1", "10.00", "15.00")
	promo := env.seedSurface(t, product.ID, "12.00", "promocja letnia")

	result, err := env.svc.OnCostChange(ctx, product.ID,
		decimal.RequireFromString("10.57"), decimal.RequireFromString("13.00"), "K1")
	if err != nil {
		t.Fatalf("on cost change: %v", err)
	}

	// default margin (15-13)/13 = 15.38% is below the 20% floor: corrected
	// to cost x 1.30
	if result.CorrectedGross == nil || !result.CorrectedGross.Equal(decimal.RequireFromString("16.90")) {
		t.Fatalf("expected corrected gross 16.90, got %v", result.CorrectedGross)
	}
	if !hasWarning(result.Warnings, enums.MarginWarningLowDefault) {
		t.Fatalf("expected low default margin warning, got %+v", result.Warnings)
	}
	if !hasWarning(result.Warnings, enums.MarginWarningPromotionDetected) {
		t.Fatalf("expected promotion warning, got %+v", result.Warnings)
	}

	var reloaded models.Product
	if err := env.conn.First(&reloaded, "id = ?", product.ID).Error; err != nil {
		t.Fatalf("reload product: %v", err)
	}
	if !reloaded.SaleGross.Equal(decimal.RequireFromString("16.90")) {
		t.Fatalf("expected persisted gross 16.90, got %s", reloaded.SaleGross)
	}
	if !reloaded.PurchaseGross.Equal(decimal.RequireFromString("13.00")) {
		t.Fatalf("expected persisted cost 13.00, got %s", reloaded.PurchaseGross)
	}

	// the promotional warehouse row is never touched
	var promoRow models.WarehousePrice
	if err := env.conn.First(&promoRow, "id = ?", promo.ID).Error; err != nil {
		t.Fatalf("reload promo row: %v", err)
	}
	if !promoRow.SaleGross.Equal(decimal.RequireFromString("12.00")) || !promoRow.Active {
		t.Fatalf("promotion row must stay intact, got %s active=%t", promoRow.SaleGross, promoRow.Active)
	}
}

func TestOnCostChangeFlagsLowLocationWithoutPromotionMarker(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	product := env.seedProduct(t, "P1", "10.00", "15.00")
	row := env.seedSurface(t, product.ID, "12.00", "cena testowa")

	result, err := env.svc.OnCostChange(ctx, product.ID,
		decimal.RequireFromString("10.57"), decimal.RequireFromString("13.00"), "K1")
	if err != nil {
		t.Fatalf("on cost change: %v", err)
	}
	if !hasWarning(result.Warnings, enums.MarginWarningLowLocation) {
		t.Fatalf("expected low location warning, got %+v", result.Warnings)
	}
	if hasWarning(result.Warnings, enums.MarginWarningPromotionDetected) {
		t.Fatalf("label without marker must not count as promotion, got %+v", result.Warnings)
	}

	var reloaded models.WarehousePrice
	if err := env.conn.First(&reloaded, "id = ?", row.ID).Error; err != nil {
		t.Fatalf("reload row: %v", err)
	}
	if !reloaded.SaleGross.Equal(decimal.RequireFromString("12.00")) {
		t.Fatalf("location row must stay intact, got %s", reloaded.SaleGross)
	}
}

func TestOnCostChangeHealthyMarginLeavesDefaultAlone(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	product := env.seedProduct(t, "P1", "10.00", "20.00")

	result, err := env.svc.OnCostChange(ctx, product.ID,
		decimal.RequireFromString("8.94"), decimal.RequireFromString("11.00"), "K1")
	if err != nil {
		t.Fatalf("on cost change: %v", err)
	}
	// (20-11)/11 = 81.8%, far above the floor
	if result.CorrectedGross != nil {
		t.Fatalf("expected no correction, got %v", result.CorrectedGross)
	}
	if len(result.Warnings) != 0 {
		t.Fatalf("expected no warnings, got %+v", result.Warnings)
	}
}

func TestMarginPctEdgeCases(t *testing.T) {
	if got := marginPct(decimal.RequireFromString("15.00"), decimal.Zero); !got.IsZero() {
		t.Fatalf("zero cost must report 0, got %s", got)
	}
	if got := marginPct(decimal.Zero, decimal.RequireFromString("10.00")); !got.Equal(decimal.New(-100, 0)) {
		t.Fatalf("zero sale must report -100, got %s", got)
	}
	if got := marginPct(decimal.RequireFromString("13.00"), decimal.RequireFromString("10.00")); !got.Equal(decimal.New(30, 0)) {
		t.Fatalf("expected 30, got %s", got)
	}
}

func TestLowMarginsFiltersByThreshold(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.seedProduct(t, "P1", "10.00", "11.00") // 10%
	env.seedProduct(t, "P2", "10.00", "16.00") // 60%

	low, err := env.svc.LowMargins(ctx, decimal.New(15, 0))
	if err != nil {
		t.Fatalf("low margins: %v", err)
	}
	if len(low) != 1 || low[0].ProductCode != "P1" {
		t.Fatalf("expected only P1, got %+v", low)
	}
}

func TestCorrectAppliesManualTarget(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	product := env.seedProduct(t, "P1", "10.00", "11.00")

	result, err := env.svc.Correct(ctx, CorrectInput{
		ProductID:       product.ID,
		TargetMarginPct: decimal.New(50, 0),
		CorrectDefault:  true,
		Actor:           "M1",
	})
	if err != nil {
		t.Fatalf("correct: %v", err)
	}
	if result.CorrectedGross == nil || !result.CorrectedGross.Equal(decimal.RequireFromString("15.00")) {
		t.Fatalf("expected corrected gross 15.00, got %v", result.CorrectedGross)
	}

	reports, err := env.svc.Reports(ctx, product.ID)
	if err != nil {
		t.Fatalf("reports: %v", err)
	}
	if len(reports) != 1 || !reports[0].Corrected {
		t.Fatalf("expected one corrected report, got %+v", reports)
	}
}

func TestPostPurchaseInvoiceTriggersCostChange(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	product := env.seedProduct(t, "P1", "10.00", "15.00")
	warehouseID := uuid.New()

	input := PostInvoiceInput{
		Number:      "FV/2025/08/001",
		SupplierTIN: "5251234567",
		WarehouseID: warehouseID,
		IssuedAt:    time.Now(),
		Actor:       "M1",
		Lines: []PostInvoiceLine{{
			ProductID:   product.ID,
			Quantity:    decimal.New(10, 0),
			UnitNetCost: decimal.RequireFromString("10.57"),
			VATRate:     decimal.New(23, 0),
		}},
	}
	result, err := env.svc.PostPurchaseInvoice(ctx, input)
	if err != nil {
		t.Fatalf("post invoice: %v", err)
	}
	if len(result.Results) != 1 {
		t.Fatalf("expected one cost-change result, got %d", len(result.Results))
	}
	if result.Results[0].CorrectedGross == nil {
		t.Fatal("expected the delivered cost to trigger a default correction")
	}

	var reloaded models.Product
	if err := env.conn.First(&reloaded, "id = ?", product.ID).Error; err != nil {
		t.Fatalf("reload product: %v", err)
	}
	if !reloaded.PurchaseNet.Equal(decimal.RequireFromString("10.57")) {
		t.Fatalf("expected cost net 10.57, got %s", reloaded.PurchaseNet)
	}

	if _, err := env.svc.PostPurchaseInvoice(ctx, input); !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict on duplicate invoice number, got %v", err)
	}
}
