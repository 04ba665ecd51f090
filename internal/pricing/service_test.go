package pricing

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/retailpos/retailpos-backend/internal/catalog"
	"github.com/retailpos/retailpos-backend/pkg/db"
	"github.com/retailpos/retailpos-backend/pkg/db/models"
	"github.com/retailpos/retailpos-backend/pkg/enums"
	pkgerrors "github.com/retailpos/retailpos-backend/pkg/errors"
	"github.com/retailpos/retailpos-backend/pkg/redis"
)

type testEnv struct {
	conn       *gorm.DB
	dbc        *db.Client
	svc        Service
	prices     *Repository
	warehouses *catalog.WarehouseRepository
	products   *catalog.ProductRepository
}

func newTestEnv(t *testing.T, locker redis.Locker) *testEnv {
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
	); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	dbc := db.NewFromConn(conn)
	prices := NewRepository(conn)
	warehouses := catalog.NewWarehouseRepository(conn)
	products := catalog.NewProductRepository(conn)
	svc, err := NewService(dbc, prices, warehouses, products, locker, nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return &testEnv{
		conn:       conn,
		dbc:        dbc,
		svc:        svc,
		prices:     prices,
		warehouses: warehouses,
		products:   products,
	}
}

func (e *testEnv) seedLocation(t *testing.T, code string) *models.Location {
	t.Helper()
	location := &models.Location{
		ID:     uuid.New(),
		Code:   code,
		Name:   "Sklep " + code,
		Type:   enums.LocationTypeStore,
		Active: true,
	}
	if err := e.conn.Create(location).Error; err != nil {
		t.Fatalf("seed location: %v", err)
	}
	return location
}

func (e *testEnv) seedWarehouse(t *testing.T, locationID uuid.UUID, code string) *models.Warehouse {
	t.Helper()
	warehouse := &models.Warehouse{
		ID:         uuid.New(),
		LocationID: locationID,
		Code:       code,
		Name:       "Magazyn " + code,
		Active:     true,
	}
	if err := e.conn.Create(warehouse).Error; err != nil {
		t.Fatalf("seed warehouse: %v", err)
	}
	return warehouse
}

func (e *testEnv) seedProduct(t *testing.T, code string) *models.Product {
	t.Helper()
	product := &models.Product{
		ID:        uuid.New(),
		Code:      code,
		Name:      "Produkt " + code,
		TaxRate:   decimal.New(23, 0),
		SaleNet:   decimal.RequireFromString("8.13"),
		SaleGross: decimal.RequireFromString("10.00"),
		Unit:      "szt",
		Active:    true,
	}
	if err := e.conn.Create(product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return product
}

func day(value string) time.Time {
	d, err := time.ParseInLocation("2006-01-02", value, time.Local)
	if err != nil {
		panic(err)
	}
	return d
}

func TestSetWarehousePriceSyncsLocationSurface(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	location := env.seedLocation(t, "L1")
	w1 := env.seedWarehouse(t, location.ID, "W1")
	w2 := env.seedWarehouse(t, location.ID, "W2")
	product := env.seedProduct(t, "P1")

	rows, err := env.svc.SetWarehousePrice(ctx, SetPriceInput{
		WarehouseID: w1.ID,
		ProductID:   product.ID,
		Net:         decimal.RequireFromString("10.00"),
		Gross:       decimal.RequireFromString("12.30"),
		ValidFrom:   day("2025-01-10"),
		CreatedBy:   "K1",
	})
	if err != nil {
		t.Fatalf("set price: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected rows for both warehouses, got %d", len(rows))
	}

	for _, wid := range []uuid.UUID{w1.ID, w2.ID} {
		row, err := env.prices.ActiveAt(wid, product.ID, day("2025-01-10"))
		if err != nil {
			t.Fatalf("active row for %s: %v", wid, err)
		}
		if !row.SaleGross.Equal(decimal.RequireFromString("12.30")) {
			t.Fatalf("expected gross 12.30 at %s, got %s", wid, row.SaleGross)
		}
		if row.ValidUntil != nil {
			t.Fatalf("fresh row must be open-ended, got %v", row.ValidUntil)
		}
	}
}

func TestEffectivePriceFallsBackToProductDefault(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	location := env.seedLocation(t, "L1")
	w1 := env.seedWarehouse(t, location.ID, "W1")
	product := env.seedProduct(t, "P1")

	price, err := env.svc.GetEffectivePrice(ctx, product.ID, location.ID, time.Now())
	if err != nil {
		t.Fatalf("effective price: %v", err)
	}
	if price.Source != enums.PriceSourceProductDefault {
		t.Fatalf("expected product default, got %s", price.Source)
	}
	if !price.Gross.Equal(decimal.RequireFromString("10.00")) {
		t.Fatalf("expected default gross 10.00, got %s", price.Gross)
	}

	if _, err := env.svc.SetWarehousePrice(ctx, SetPriceInput{
		WarehouseID: w1.ID,
		ProductID:   product.ID,
		Net:         decimal.RequireFromString("10.00"),
		Gross:       decimal.RequireFromString("12.30"),
		CreatedBy:   "K1",
	}); err != nil {
		t.Fatalf("set price: %v", err)
	}

	price, err = env.svc.GetEffectivePrice(ctx, product.ID, location.ID, time.Now())
	if err != nil {
		t.Fatalf("effective price after set: %v", err)
	}
	if price.Source != enums.PriceSourceLocationSpecial {
		t.Fatalf("expected location special, got %s", price.Source)
	}
	if !price.Gross.Equal(decimal.RequireFromString("12.30")) {
		t.Fatalf("expected gross 12.30, got %s", price.Gross)
	}
}

func TestReplacementClosesPredecessorWithoutOverlap(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	location := env.seedLocation(t, "L1")
	w1 := env.seedWarehouse(t, location.ID, "W1")
	product := env.seedProduct(t, "P1")

	for i, gross := range []string{"12.30", "13.53", "14.76"} {
		if _, err := env.svc.SetWarehousePrice(ctx, SetPriceInput{
			WarehouseID: w1.ID,
			ProductID:   product.ID,
			Net:         decimal.RequireFromString("10.00"),
			Gross:       decimal.RequireFromString(gross),
			ValidFrom:   day("2025-01-10").AddDate(0, 0, i*10),
			CreatedBy:   "K1",
		}); err != nil {
			t.Fatalf("set price %d: %v", i, err)
		}
	}

	history, err := env.svc.History(ctx, w1.ID, product.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(history))
	}
	if !history[0].ValidFrom.After(history[1].ValidFrom) {
		t.Fatal("history must be newest first")
	}

	// timeline is disjoint: each closed row ends one day before its successor
	for i := 0; i < len(history)-1; i++ {
		older := history[i+1]
		newer := history[i]
		if older.ValidUntil == nil {
			t.Fatalf("replaced row %d must be closed", i+1)
		}
		if older.Active {
			t.Fatalf("replaced row %d must be inactive", i+1)
		}
		wantUntil := newer.ValidFrom.AddDate(0, 0, -1)
		if !older.ValidUntil.Equal(wantUntil) {
			t.Fatalf("expected valid_until %s, got %s", wantUntil, older.ValidUntil)
		}
	}
	if history[0].ValidUntil != nil || !history[0].Active {
		t.Fatal("newest row must stay open and active")
	}
}

func TestSameValidFromUpdatesInPlace(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	location := env.seedLocation(t, "L1")
	w1 := env.seedWarehouse(t, location.ID, "W1")
	product := env.seedProduct(t, "P1")

	for _, gross := range []string{"12.30", "11.07"} {
		if _, err := env.svc.SetWarehousePrice(ctx, SetPriceInput{
			WarehouseID: w1.ID,
			ProductID:   product.ID,
			Net:         decimal.RequireFromString("9.00"),
			Gross:       decimal.RequireFromString(gross),
			ValidFrom:   day("2025-01-10"),
			CreatedBy:   "K1",
		}); err != nil {
			t.Fatalf("set price: %v", err)
		}
	}

	history, err := env.svc.History(ctx, w1.ID, product.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected a single row, got %d", len(history))
	}
	if !history[0].SaleGross.Equal(decimal.RequireFromString("11.07")) {
		t.Fatalf("expected updated gross 11.07, got %s", history[0].SaleGross)
	}
}

func TestBackdatedValidFromIsRejected(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	location := env.seedLocation(t, "L1")
	w1 := env.seedWarehouse(t, location.ID, "W1")
	product := env.seedProduct(t, "P1")

	if _, err := env.svc.SetWarehousePrice(ctx, SetPriceInput{
		WarehouseID: w1.ID,
		ProductID:   product.ID,
		Net:         decimal.RequireFromString("10.00"),
		Gross:       decimal.RequireFromString("12.30"),
		ValidFrom:   day("2026-08-20"),
		CreatedBy:   "K1",
	}); err != nil {
		t.Fatalf("set price: %v", err)
	}

	// a write starting before the newest window would leave two
	// open-ended rows active at once
	_, err := env.svc.SetWarehousePrice(ctx, SetPriceInput{
		WarehouseID: w1.ID,
		ProductID:   product.ID,
		Net:         decimal.RequireFromString("9.00"),
		Gross:       decimal.RequireFromString("11.07"),
		ValidFrom:   day("2026-08-10"),
		CreatedBy:   "K1",
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodePricingInvariant) {
		t.Fatalf("expected pricing invariant error, got %v", err)
	}

	active, err := env.prices.ActiveValidRows(product.ID, day("2026-08-25"))
	if err != nil {
		t.Fatalf("active rows: %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("expected a single active window, got %d", len(active))
	}
	if !active[0].SaleGross.Equal(decimal.RequireFromString("12.30")) {
		t.Fatalf("original window must survive, got gross %s", active[0].SaleGross)
	}

	history, err := env.svc.History(ctx, w1.ID, product.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("rejected write must not leave rows behind, got %d", len(history))
	}
}

func TestSetWarehousePriceRejectsNegative(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	location := env.seedLocation(t, "L1")
	w1 := env.seedWarehouse(t, location.ID, "W1")
	product := env.seedProduct(t, "P1")

	_, err := env.svc.SetWarehousePrice(ctx, SetPriceInput{
		WarehouseID: w1.ID,
		ProductID:   product.ID,
		Net:         decimal.RequireFromString("-1.00"),
		Gross:       decimal.RequireFromString("1.00"),
		CreatedBy:   "K1",
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCopyPricesSkipsAlreadyPriced(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	src := env.seedLocation(t, "L1")
	dst := env.seedLocation(t, "L2")
	w1 := env.seedWarehouse(t, src.ID, "W1")
	w2 := env.seedWarehouse(t, dst.ID, "W2")
	p1 := env.seedProduct(t, "P1")
	p2 := env.seedProduct(t, "P2")

	for _, p := range []*models.Product{p1, p2} {
		if _, err := env.svc.SetWarehousePrice(ctx, SetPriceInput{
			WarehouseID: w1.ID,
			ProductID:   p.ID,
			Net:         decimal.RequireFromString("10.00"),
			Gross:       decimal.RequireFromString("12.30"),
			CreatedBy:   "K1",
		}); err != nil {
			t.Fatalf("seed source price: %v", err)
		}
	}
	// P1 already priced at the target
	if _, err := env.svc.SetWarehousePrice(ctx, SetPriceInput{
		WarehouseID: w2.ID,
		ProductID:   p1.ID,
		Net:         decimal.RequireFromString("8.00"),
		Gross:       decimal.RequireFromString("9.84"),
		CreatedBy:   "K1",
	}); err != nil {
		t.Fatalf("seed target price: %v", err)
	}

	result, err := env.svc.CopyPrices(ctx, w1.ID, w2.ID, false, "K1")
	if err != nil {
		t.Fatalf("copy prices: %v", err)
	}
	if result.Copied != 1 || result.Skipped != 1 {
		t.Fatalf("expected 1 copied and 1 skipped, got %+v", result)
	}

	price, err := env.svc.GetEffectivePrice(ctx, p1.ID, dst.ID, time.Now())
	if err != nil {
		t.Fatalf("effective price: %v", err)
	}
	if !price.Gross.Equal(decimal.RequireFromString("9.84")) {
		t.Fatalf("target price must be preserved, got %s", price.Gross)
	}
}

func TestSetWarehousePriceSerializesOnSurfaceLock(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewFromCmdable(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	env := newTestEnv(t, client)
	ctx := context.Background()

	location := env.seedLocation(t, "L1")
	w1 := env.seedWarehouse(t, location.ID, "W1")
	product := env.seedProduct(t, "P1")

	key := client.LockKey("pricing", location.ID.String(), product.ID.String())
	ok, err := client.AcquireLock(ctx, key, time.Minute)
	if err != nil || !ok {
		t.Fatalf("pre-acquire lock: ok=%t err=%v", ok, err)
	}

	_, err = env.svc.SetWarehousePrice(ctx, SetPriceInput{
		WarehouseID: w1.ID,
		ProductID:   product.ID,
		Net:         decimal.RequireFromString("10.00"),
		Gross:       decimal.RequireFromString("12.30"),
		CreatedBy:   "K1",
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict while surface is locked, got %v", err)
	}

	if err := client.ReleaseLock(ctx, key); err != nil {
		t.Fatalf("release lock: %v", err)
	}
	if _, err := env.svc.SetWarehousePrice(ctx, SetPriceInput{
		WarehouseID: w1.ID,
		ProductID:   product.ID,
		Net:         decimal.RequireFromString("10.00"),
		Gross:       decimal.RequireFromString("12.30"),
		CreatedBy:   "K1",
	}); err != nil {
		t.Fatalf("set price after release: %v", err)
	}
}
