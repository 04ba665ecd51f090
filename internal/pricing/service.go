package pricing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/retailpos/retailpos-backend/pkg/db"
	"github.com/retailpos/retailpos-backend/pkg/db/models"
	"github.com/retailpos/retailpos-backend/pkg/enums"
	pkgerrors "github.com/retailpos/retailpos-backend/pkg/errors"
	"github.com/retailpos/retailpos-backend/pkg/logger"
	"github.com/retailpos/retailpos-backend/pkg/redis"
)

const (
	lockTTL      = 10 * time.Second
	lockAttempts = 20
	lockBackoff  = 50 * time.Millisecond
)

type warehouseRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Warehouse, error)
	ActiveByLocation(ctx context.Context, locationID uuid.UUID) ([]models.Warehouse, error)
	ActiveByLocationWithTx(tx *gorm.DB, locationID uuid.UUID) ([]models.Warehouse, error)
}

type productRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

// SetPriceInput carries one price update for a warehouse surface.
type SetPriceInput struct {
	WarehouseID uuid.UUID
	ProductID   uuid.UUID
	Net         decimal.Decimal
	Gross       decimal.Decimal
	ValidFrom   time.Time
	Label       string
	CreatedBy   string
}

// EffectivePrice is the resolved sale price for (product, location, date).
type EffectivePrice struct {
	Net       decimal.Decimal   `json:"net"`
	Gross     decimal.Decimal   `json:"gross"`
	Source    enums.PriceSource `json:"source"`
	ValidFrom *time.Time        `json:"valid_from,omitempty"`
}

// CopyResult summarizes a bulk price copy.
type CopyResult struct {
	Copied  int `json:"copied"`
	Skipped int `json:"skipped"`
}

// Service is the single source of truth for effective sale prices. A
// location's warehouses always share one price surface: a price set on
// any warehouse is applied to every active warehouse of its location in
// the same transaction.
type Service interface {
	SetWarehousePrice(ctx context.Context, input SetPriceInput) ([]models.WarehousePrice, error)
	GetEffectivePrice(ctx context.Context, productID, locationID uuid.UUID, date time.Time) (*EffectivePrice, error)
	CopyPrices(ctx context.Context, sourceWarehouseID, targetWarehouseID uuid.UUID, overwrite bool, actor string) (*CopyResult, error)
	History(ctx context.Context, warehouseID, productID uuid.UUID) ([]models.WarehousePrice, error)
	HistoryByProduct(ctx context.Context, productID uuid.UUID) ([]models.WarehousePrice, error)
}

type service struct {
	dbc        *db.Client
	prices     *Repository
	warehouses warehouseRepository
	products   productRepository
	locker     redis.Locker
	log        *logger.Logger
}

// NewService builds the pricing engine with the provided collaborators.
func NewService(dbc *db.Client, prices *Repository, warehouses warehouseRepository, products productRepository, locker redis.Locker, log *logger.Logger) (Service, error) {
	if dbc == nil {
		return nil, fmt.Errorf("db client required")
	}
	if prices == nil {
		return nil, fmt.Errorf("price repository required")
	}
	if warehouses == nil {
		return nil, fmt.Errorf("warehouse repository required")
	}
	if products == nil {
		return nil, fmt.Errorf("product repository required")
	}
	return &service{
		dbc:        dbc,
		prices:     prices,
		warehouses: warehouses,
		products:   products,
		locker:     locker,
		log:        log,
	}, nil
}

// dateOnly truncates to the local calendar date; price validity is a
// date concept, not an instant.
func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func (s *service) acquireSurfaceLock(ctx context.Context, locationID, productID uuid.UUID) (string, error) {
	if s.locker == nil {
		return "", nil
	}
	key := s.locker.LockKey("pricing", locationID.String(), productID.String())
	for attempt := 0; attempt < lockAttempts; attempt++ {
		ok, err := s.locker.AcquireLock(ctx, key, lockTTL)
		if err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire pricing lock")
		}
		if ok {
			return key, nil
		}
		select {
		case <-ctx.Done():
			return "", pkgerrors.Wrap(pkgerrors.CodeDependency, ctx.Err(), "acquire pricing lock")
		case <-time.After(lockBackoff):
		}
	}
	return "", pkgerrors.New(pkgerrors.CodeConflict, "price surface is being updated, retry")
}

func (s *service) releaseSurfaceLock(ctx context.Context, key string) {
	if s.locker == nil || key == "" {
		return
	}
	if err := s.locker.ReleaseLock(ctx, key); err != nil && s.log != nil {
		s.log.Warn(ctx, fmt.Sprintf("releasing pricing lock %s: %v", key, err))
	}
}

// SetWarehousePrice sets the sale price for a product across the whole
// location of the given warehouse, starting at validFrom. The previous
// active row of each warehouse is closed with valid_until one day
// before; a row with the same validFrom is updated in place and a
// validFrom behind the newest existing window is rejected.
func (s *service) SetWarehousePrice(ctx context.Context, input SetPriceInput) ([]models.WarehousePrice, error) {
	if input.Net.IsNegative() || input.Gross.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must not be negative")
	}
	if input.Gross.LessThan(input.Net) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gross price must not be below net")
	}
	if input.CreatedBy == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "createdBy is required")
	}
	validFrom := input.ValidFrom
	if validFrom.IsZero() {
		validFrom = time.Now()
	}
	validFrom = dateOnly(validFrom)

	warehouse, err := s.warehouses.FindByID(ctx, input.WarehouseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "warehouse not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeStoreUnavailable, err, "load warehouse")
	}
	if _, err := s.products.FindByID(ctx, input.ProductID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeStoreUnavailable, err, "load product")
	}

	lockKey, err := s.acquireSurfaceLock(ctx, warehouse.LocationID, input.ProductID)
	if err != nil {
		return nil, err
	}
	defer s.releaseSurfaceLock(ctx, lockKey)

	var updated []models.WarehousePrice
	err = s.dbc.WithTx(ctx, func(tx *gorm.DB) error {
		targets, err := s.warehouses.ActiveByLocationWithTx(tx, warehouse.LocationID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeStoreUnavailable, err, "enumerate location warehouses")
		}
		found := false
		for _, w := range targets {
			if w.ID == warehouse.ID {
				found = true
				break
			}
		}
		if !found {
			targets = append(targets, *warehouse)
		}

		for _, target := range targets {
			row, err := s.applyToWarehouse(tx, target.ID, input, validFrom)
			if err != nil {
				return err
			}
			updated = append(updated, *row)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.log != nil {
		s.log.Info(ctx, fmt.Sprintf("price set for product %s across %d warehouses at %s",
			input.ProductID, len(updated), validFrom.Format("2006-01-02")))
	}
	return updated, nil
}

func (s *service) applyToWarehouse(tx *gorm.DB, warehouseID uuid.UUID, input SetPriceInput, validFrom time.Time) (*models.WarehousePrice, error) {
	// same validFrom: update in place so retried calls stay idempotent
	existing, err := s.prices.FindByWindowWithTx(tx, warehouseID, input.ProductID, validFrom)
	if err == nil {
		existing.SaleNet = input.Net
		existing.SaleGross = input.Gross
		existing.Label = input.Label
		existing.CreatedBy = input.CreatedBy
		existing.Active = true
		existing.ValidUntil = nil
		if err := s.prices.SaveWithTx(tx, existing); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeStoreUnavailable, err, "update price row")
		}
		return existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStoreUnavailable, err, "look up price window")
	}

	// a validFrom behind the newest window would leave two open-ended
	// rows active at once, so the surface rejects backdated writes
	latest, err := s.prices.LatestWithTx(tx, warehouseID, input.ProductID)
	if err == nil && latest.ValidFrom.After(validFrom) {
		return nil, pkgerrors.New(pkgerrors.CodePricingInvariant,
			fmt.Sprintf("price for product %s already valid from %s, cannot start an earlier window",
				input.ProductID, latest.ValidFrom.Format("2006-01-02")))
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStoreUnavailable, err, "look up newest price window")
	}

	// close the predecessor, keep it as history
	current, err := s.prices.ActiveAtWithTx(tx, warehouseID, input.ProductID, validFrom)
	if err == nil {
		until := validFrom.AddDate(0, 0, -1)
		current.ValidUntil = &until
		current.Active = false
		if err := s.prices.SaveWithTx(tx, current); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeStoreUnavailable, err, "close predecessor row")
		}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStoreUnavailable, err, "look up active row")
	}

	row := &models.WarehousePrice{
		WarehouseID: warehouseID,
		ProductID:   input.ProductID,
		SaleNet:     input.Net,
		SaleGross:   input.Gross,
		ValidFrom:   validFrom,
		Active:      true,
		Label:       input.Label,
		CreatedBy:   input.CreatedBy,
	}
	if err := s.prices.InsertWithTx(tx, row); err != nil {
		if db.IsUniqueViolation(err) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "concurrent price update")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeStoreUnavailable, err, "insert price row")
	}
	return row, nil
}

// GetEffectivePrice resolves the sale price for (product, location,
// date): the location-special row when one is valid, otherwise the
// product's default sale price.
func (s *service) GetEffectivePrice(ctx context.Context, productID, locationID uuid.UUID, date time.Time) (*EffectivePrice, error) {
	if date.IsZero() {
		date = time.Now()
	}
	date = dateOnly(date)

	warehouses, err := s.warehouses.ActiveByLocation(ctx, locationID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStoreUnavailable, err, "enumerate location warehouses")
	}
	for _, w := range warehouses {
		row, err := s.prices.ActiveAt(w.ID, productID, date)
		if err == nil {
			validFrom := row.ValidFrom
			return &EffectivePrice{
				Net:       row.SaleNet,
				Gross:     row.SaleGross,
				Source:    enums.PriceSourceLocationSpecial,
				ValidFrom: &validFrom,
			}, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeStoreUnavailable, err, "look up warehouse price")
		}
	}

	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeStoreUnavailable, err, "load product")
	}
	return &EffectivePrice{
		Net:    product.SaleNet,
		Gross:  product.SaleGross,
		Source: enums.PriceSourceProductDefault,
	}, nil
}

// CopyPrices replays every active source-warehouse price onto the
// target warehouse's location surface. With overwrite false, products
// already priced at the target are skipped.
func (s *service) CopyPrices(ctx context.Context, sourceWarehouseID, targetWarehouseID uuid.UUID, overwrite bool, actor string) (*CopyResult, error) {
	if actor == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "actor is required")
	}
	if sourceWarehouseID == targetWarehouseID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "source and target must differ")
	}
	if _, err := s.warehouses.FindByID(ctx, targetWarehouseID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "target warehouse not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeStoreUnavailable, err, "load target warehouse")
	}

	today := dateOnly(time.Now())
	rows, err := s.prices.ActiveByWarehouseAt(sourceWarehouseID, today)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStoreUnavailable, err, "list source prices")
	}

	result := &CopyResult{}
	for _, row := range rows {
		if !overwrite {
			if _, err := s.prices.ActiveAt(targetWarehouseID, row.ProductID, today); err == nil {
				result.Skipped++
				continue
			} else if !errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.Wrap(pkgerrors.CodeStoreUnavailable, err, "check target price")
			}
		}
		if _, err := s.SetWarehousePrice(ctx, SetPriceInput{
			WarehouseID: targetWarehouseID,
			ProductID:   row.ProductID,
			Net:         row.SaleNet,
			Gross:       row.SaleGross,
			ValidFrom:   today,
			Label:       row.Label,
			CreatedBy:   actor,
		}); err != nil {
			return nil, err
		}
		result.Copied++
	}
	return result, nil
}

// History lists all rows for (warehouse, product), newest first.
func (s *service) History(ctx context.Context, warehouseID, productID uuid.UUID) ([]models.WarehousePrice, error) {
	rows, err := s.prices.History(warehouseID, productID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStoreUnavailable, err, "list price history")
	}
	return rows, nil
}

// HistoryByProduct lists all rows for a product across warehouses.
func (s *service) HistoryByProduct(ctx context.Context, productID uuid.UUID) ([]models.WarehousePrice, error) {
	rows, err := s.prices.HistoryByProduct(productID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStoreUnavailable, err, "list product price history")
	}
	return rows, nil
}
