package orders

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/retailpos/retailpos-backend/internal/catalog"
	"github.com/retailpos/retailpos-backend/internal/fiscal"
	"github.com/retailpos/retailpos-backend/internal/pricing"
	"github.com/retailpos/retailpos-backend/internal/sales"
	"github.com/retailpos/retailpos-backend/internal/shifts"
	"github.com/retailpos/retailpos-backend/pkg/db"
	"github.com/retailpos/retailpos-backend/pkg/db/models"
	"github.com/retailpos/retailpos-backend/pkg/enums"
	pkgerrors "github.com/retailpos/retailpos-backend/pkg/errors"
)

type testEnv struct {
	conn    *gorm.DB
	svc     Service
	pricing pricing.Service
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
		&models.Shift{},
		&models.SafeBagDeposit{},
		&models.DailyClosureReport{},
		&models.POSTransaction{},
		&models.POSTransactionLine{},
		&models.CustomerOrder{},
		&models.CustomerOrderLine{},
	); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	dbc := db.NewFromConn(conn)
	products := catalog.NewProductRepository(conn)
	warehouses := catalog.NewWarehouseRepository(conn)
	priceSvc, err := pricing.NewService(dbc, pricing.NewRepository(conn), warehouses, products, nil, nil)
	if err != nil {
		t.Fatalf("new pricing service: %v", err)
	}
	shiftSvc, err := shifts.NewService(
		dbc,
		shifts.NewRepository(conn),
		shifts.NewSafeBagRepository(conn),
		shifts.NewReportRepository(conn),
		nil,
		nil,
	)
	if err != nil {
		t.Fatalf("new shifts service: %v", err)
	}
	saleSvc, err := sales.NewService(dbc, sales.NewRepository(conn), products, priceSvc, shiftSvc, fiscal.NewSimulator(), nil, nil)
	if err != nil {
		t.Fatalf("new sales service: %v", err)
	}
	svc, err := NewService(dbc, NewRepository(conn), products, priceSvc, saleSvc, nil)
	if err != nil {
		t.Fatalf("new orders service: %v", err)
	}
	return &testEnv{conn: conn, svc: svc, pricing: priceSvc}
}

func (e *testEnv) seedStore(t *testing.T) (*models.Location, *models.Warehouse) {
	t.Helper()
	location := &models.Location{
		ID:     uuid.New(),
		Code:   "L1",
		Name:   "Sklep L1",
		Type:   enums.LocationTypeStore,
		Active: true,
	}
	if err := e.conn.Create(location).Error; err != nil {
		t.Fatalf("seed location: %v", err)
	}
	warehouse := &models.Warehouse{
		ID:         uuid.New(),
		LocationID: location.ID,
		Code:       "W1",
		Name:       "Magazyn W1",
		Active:     true,
	}
	if err := e.conn.Create(warehouse).Error; err != nil {
		t.Fatalf("seed warehouse: %v", err)
	}
	return location, warehouse
}

func (e *testEnv) seedProduct(t *testing.T, code, gross string) *models.Product {
	t.Helper()
	grossDec := decimal.RequireFromString(gross)
	product := &models.Product{
		ID:        uuid.New(),
		Code:      code,
		Name:      "Produkt " + code,
		TaxRate:   decimal.New(23, 0),
		SaleNet:   grossDec.Div(decimal.RequireFromString("1.23")).Round(2),
		SaleGross: grossDec,
		Unit:      "szt",
		Active:    true,
	}
	if err := e.conn.Create(product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return product
}

func TestCreateOrderCapturesCurrentPrices(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	location, warehouse := env.seedStore(t)
	product := env.seedProduct(t, "P1", "10.00")

	if _, err := env.pricing.SetWarehousePrice(ctx, pricing.SetPriceInput{
		WarehouseID: warehouse.ID,
		ProductID:   product.ID,
		Net:         decimal.RequireFromString("10.00"),
		Gross:       decimal.RequireFromString("12.30"),
		CreatedBy:   "K1",
	}); err != nil {
		t.Fatalf("set price: %v", err)
	}

	order, err := env.svc.CreateOrder(ctx, CreateOrderInput{
		LocationID: location.ID,
		Lines: []OrderLineInput{
			{ProductID: product.ID, Quantity: decimal.New(3, 0)},
		},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	wantNumber := "ZAM-" + time.Now().Format("20060102") + "-0001"
	if order.Number != wantNumber {
		t.Fatalf("expected number %s, got %s", wantNumber, order.Number)
	}
	if !order.Lines[0].UnitPrice.Equal(decimal.RequireFromString("12.30")) {
		t.Fatalf("expected captured unit price 12.30, got %s", order.Lines[0].UnitPrice)
	}
	if !order.TotalGross.Equal(decimal.RequireFromString("36.90")) {
		t.Fatalf("expected total 36.90, got %s", order.TotalGross)
	}
	if order.Status != enums.OrderStatusPending {
		t.Fatalf("expected pending, got %s", order.Status)
	}
}

func TestOrderNumbersSurviveFourDigitRollover(t *testing.T) {
	env := newTestEnv(t)

	location, _ := env.seedStore(t)
	at := time.Now()
	prefix := "ZAM-" + at.Format("20060102") + "-"

	// once past 9999 the suffix grows a digit and plain string order
	// would put 9999 back on top
	for _, number := range []string{prefix + "9999", prefix + "10000"} {
		order := &models.CustomerOrder{
			ID:         uuid.New(),
			Number:     number,
			LocationID: location.ID,
		}
		if err := env.conn.Create(order).Error; err != nil {
			t.Fatalf("seed order %s: %v", number, err)
		}
	}

	repo := NewRepository(env.conn)
	if err := env.conn.Transaction(func(tx *gorm.DB) error {
		next, err := repo.NextNumberWithTx(tx, at)
		if err != nil {
			return err
		}
		if next != prefix+"10001" {
			t.Fatalf("expected %s10001, got %s", prefix, next)
		}
		return nil
	}); err != nil {
		t.Fatalf("next number: %v", err)
	}
}

func TestConvertSellsAtCapturedPricesNotTodays(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	location, warehouse := env.seedStore(t)
	product := env.seedProduct(t, "P1", "10.00")

	order, err := env.svc.CreateOrder(ctx, CreateOrderInput{
		LocationID: location.ID,
		Lines: []OrderLineInput{
			{ProductID: product.ID, Quantity: decimal.New(2, 0)},
		},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	// the surface price changes after the order was placed
	if _, err := env.pricing.SetWarehousePrice(ctx, pricing.SetPriceInput{
		WarehouseID: warehouse.ID,
		ProductID:   product.ID,
		Net:         decimal.RequireFromString("12.20"),
		Gross:       decimal.RequireFromString("15.00"),
		CreatedBy:   "K1",
	}); err != nil {
		t.Fatalf("set price: %v", err)
	}

	txn, err := env.svc.ConvertToTransaction(ctx, ConvertInput{
		OrderID:   order.ID,
		CashierID: "K1",
	})
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if !txn.TotalGross.Equal(decimal.RequireFromString("20.00")) {
		t.Fatalf("conversion must sell at the captured 10.00, got total %s", txn.TotalGross)
	}
	if txn.SourceOrderID == nil || *txn.SourceOrderID != order.ID {
		t.Fatal("transaction must reference its source order")
	}
	if txn.FiscalNumber == nil || !strings.HasPrefix(*txn.FiscalNumber, "SIM-") {
		t.Fatalf("conversion must fiscalize, got %v", txn.FiscalNumber)
	}

	reloaded, err := env.svc.Order(ctx, order.ID)
	if err != nil {
		t.Fatalf("reload order: %v", err)
	}
	if reloaded.Status != enums.OrderStatusCompleted {
		t.Fatalf("expected completed order, got %s", reloaded.Status)
	}
	if !strings.Contains(reloaded.Notes, txn.Number) {
		t.Fatalf("order note must name the transaction, got %q", reloaded.Notes)
	}
}

func TestConvertTwiceConflicts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	location, _ := env.seedStore(t)
	product := env.seedProduct(t, "P1", "10.00")

	order, err := env.svc.CreateOrder(ctx, CreateOrderInput{
		LocationID: location.ID,
		Lines: []OrderLineInput{
			{ProductID: product.ID, Quantity: decimal.New(1, 0)},
		},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if _, err := env.svc.ConvertToTransaction(ctx, ConvertInput{OrderID: order.ID, CashierID: "K1"}); err != nil {
		t.Fatalf("first convert: %v", err)
	}

	_, err = env.svc.ConvertToTransaction(ctx, ConvertInput{OrderID: order.ID, CashierID: "K1"})
	if !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict on second convert, got %v", err)
	}

	// even with the status check raced past, the source-order binding holds
	if err := env.conn.Model(&models.CustomerOrder{}).
		Where("id = ?", order.ID).
		Update("status", enums.OrderStatusPending).Error; err != nil {
		t.Fatalf("force status: %v", err)
	}
	_, err = env.svc.ConvertToTransaction(ctx, ConvertInput{OrderID: order.ID, CashierID: "K1"})
	if !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict from source-order binding, got %v", err)
	}
}

func TestConvertRejectsCancelledOrder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	location, _ := env.seedStore(t)
	product := env.seedProduct(t, "P1", "10.00")

	order, err := env.svc.CreateOrder(ctx, CreateOrderInput{
		LocationID: location.ID,
		Lines: []OrderLineInput{
			{ProductID: product.ID, Quantity: decimal.New(1, 0)},
		},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if _, err := env.svc.CancelOrder(ctx, order.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	_, err = env.svc.ConvertToTransaction(ctx, ConvertInput{OrderID: order.ID, CashierID: "K1"})
	if !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}

	if _, err := env.svc.CancelOrder(ctx, order.ID); !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict on double cancel, got %v", err)
	}
}
