package margins

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/retailpos/retailpos-backend/pkg/config"
	"github.com/retailpos/retailpos-backend/pkg/db"
	"github.com/retailpos/retailpos-backend/pkg/db/models"
	"github.com/retailpos/retailpos-backend/pkg/enums"
	pkgerrors "github.com/retailpos/retailpos-backend/pkg/errors"
	"github.com/retailpos/retailpos-backend/pkg/logger"
)

var promotionMarkers = []string{"promocja", "przecena"}

type productRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	FindByIDWithTx(tx *gorm.DB, id uuid.UUID) (*models.Product, error)
	UpdateWithTx(tx *gorm.DB, product *models.Product) error
	ListActive(ctx context.Context) ([]models.Product, error)
}

type priceRepository interface {
	ActiveValidRows(productID uuid.UUID, date time.Time) ([]models.WarehousePrice, error)
	ActiveValidRowsWithTx(tx *gorm.DB, productID uuid.UUID, date time.Time) ([]models.WarehousePrice, error)
}

type warehouseRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Warehouse, error)
	FindByIDWithTx(tx *gorm.DB, id uuid.UUID) (*models.Warehouse, error)
}

// LocationMargin is the margin picture of one warehouse price row.
type LocationMargin struct {
	WarehouseID    uuid.UUID       `json:"warehouse_id"`
	LocationID     uuid.UUID       `json:"location_id"`
	SaleGross      decimal.Decimal `json:"sale_gross"`
	MarginPct      decimal.Decimal `json:"margin_pct"`
	Label          string          `json:"label,omitempty"`
	IsPromotion    bool            `json:"is_promotion"`
	NeedsAttention bool            `json:"needs_attention"`
}

// Analysis is the full margin picture of one product.
type Analysis struct {
	ProductID        uuid.UUID        `json:"product_id"`
	ProductCode      string           `json:"product_code"`
	ProductName      string           `json:"product_name"`
	CostNet          decimal.Decimal  `json:"cost_net"`
	CostGross        decimal.Decimal  `json:"cost_gross"`
	DefaultSaleGross decimal.Decimal  `json:"default_sale_gross"`
	DefaultMarginPct decimal.Decimal  `json:"default_margin_pct"`
	NeedsCorrection  bool             `json:"needs_correction"`
	Locations        []LocationMargin `json:"locations"`
}

// Warning is one advisory surfaced to the caller.
type Warning struct {
	Kind        enums.MarginWarningKind `json:"kind"`
	WarehouseID *uuid.UUID              `json:"warehouse_id,omitempty"`
	MarginPct   decimal.Decimal         `json:"margin_pct"`
	Message     string                  `json:"message"`
}

// CostChangeResult is what OnCostChange returns to its caller.
type CostChangeResult struct {
	Analysis       *Analysis        `json:"analysis"`
	CorrectedGross *decimal.Decimal `json:"corrected_gross,omitempty"`
	CorrectedNet   *decimal.Decimal `json:"corrected_net,omitempty"`
	Warnings       []Warning        `json:"warnings"`
}

// CorrectInput drives a manual margin correction.
type CorrectInput struct {
	ProductID       uuid.UUID
	TargetMarginPct decimal.Decimal
	CorrectDefault  bool
	Actor           string
}

// PostInvoiceInput carries one purchase invoice to record and post.
type PostInvoiceInput struct {
	Number      string
	SupplierTIN string
	WarehouseID uuid.UUID
	IssuedAt    time.Time
	Lines       []PostInvoiceLine
	Actor       string
}

// PostInvoiceLine is one delivered product with its unit cost.
type PostInvoiceLine struct {
	ProductID     uuid.UUID
	Quantity      decimal.Decimal
	UnitNetCost   decimal.Decimal
	UnitGrossCost decimal.Decimal
	VATRate       decimal.Decimal
}

// PostInvoiceResult pairs the stored invoice with the per-line margin
// outcomes.
type PostInvoiceResult struct {
	Invoice *models.PurchaseInvoice `json:"invoice"`
	Results []CostChangeResult      `json:"results"`
}

// Service analyzes margins when purchase costs change and corrects the
// product default price when it drops to or below the floor. It never
// writes warehouse price rows; location prices are advisory-only here,
// which is what keeps promotions alive across cost updates.
type Service interface {
	OnCostChange(ctx context.Context, productID uuid.UUID, newCostNet, newCostGross decimal.Decimal, actor string) (*CostChangeResult, error)
	Analyze(ctx context.Context, productID uuid.UUID) (*Analysis, error)
	LowMargins(ctx context.Context, threshold decimal.Decimal) ([]Analysis, error)
	Correct(ctx context.Context, input CorrectInput) (*CostChangeResult, error)
	PostPurchaseInvoice(ctx context.Context, input PostInvoiceInput) (*PostInvoiceResult, error)
	Reports(ctx context.Context, productID uuid.UUID) ([]models.MarginReport, error)
}

type service struct {
	dbc        *db.Client
	cfg        config.MarginConfig
	products   productRepository
	prices     priceRepository
	warehouses warehouseRepository
	reports    *ReportRepository
	invoices   *InvoiceRepository
	log        *logger.Logger
}

// NewService builds the margin manager with the provided collaborators.
func NewService(dbc *db.Client, cfg config.MarginConfig, products productRepository, prices priceRepository, warehouses warehouseRepository, reports *ReportRepository, invoices *InvoiceRepository, log *logger.Logger) (Service, error) {
	if dbc == nil {
		return nil, fmt.Errorf("db client required")
	}
	if products == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if prices == nil {
		return nil, fmt.Errorf("price repository required")
	}
	if warehouses == nil {
		return nil, fmt.Errorf("warehouse repository required")
	}
	if reports == nil {
		return nil, fmt.Errorf("report repository required")
	}
	return &service{
		dbc:        dbc,
		cfg:        cfg,
		products:   products,
		prices:     prices,
		warehouses: warehouses,
		reports:    reports,
		invoices:   invoices,
		log:        log,
	}, nil
}

// marginPct computes ((sale − cost) / cost) × 100 on gross prices.
// Zero cost reports 0; zero sale reports −100.
func marginPct(sale, cost decimal.Decimal) decimal.Decimal {
	if cost.IsZero() {
		return decimal.Zero
	}
	if sale.IsZero() {
		return decimal.New(-100, 0)
	}
	return sale.Sub(cost).Div(cost).Mul(decimal.New(100, 0)).Round(2)
}

func isPromotionLabel(label string) bool {
	lowered := strings.ToLower(label)
	for _, marker := range promotionMarkers {
		if strings.Contains(lowered, marker) {
			return true
		}
	}
	return false
}

func pctFromFloat(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v)
}

func (s *service) analyzeWithTx(tx *gorm.DB, product *models.Product, date time.Time) (*Analysis, error) {
	analysis := &Analysis{
		ProductID:        product.ID,
		ProductCode:      product.Code,
		ProductName:      product.Name,
		CostNet:          product.PurchaseNet,
		CostGross:        product.PurchaseGross,
		DefaultSaleGross: product.SaleGross,
		DefaultMarginPct: marginPct(product.SaleGross, product.PurchaseGross),
	}
	analysis.NeedsCorrection = analysis.DefaultMarginPct.LessThanOrEqual(pctFromFloat(s.cfg.MinMarginPct))

	rows, err := s.prices.ActiveValidRowsWithTx(tx, product.ID, date)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStoreUnavailable, err, "list active price rows")
	}
	for _, row := range rows {
		warehouse, err := s.warehouses.FindByIDWithTx(tx, row.WarehouseID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeStoreUnavailable, err, "resolve warehouse")
		}
		entry := LocationMargin{
			WarehouseID: row.WarehouseID,
			LocationID:  warehouse.LocationID,
			SaleGross:   row.SaleGross,
			MarginPct:   marginPct(row.SaleGross, product.PurchaseGross),
			Label:       row.Label,
		}
		if entry.MarginPct.LessThan(pctFromFloat(s.cfg.PromotionMarginPct)) {
			if isPromotionLabel(row.Label) {
				entry.IsPromotion = true
			} else {
				entry.NeedsAttention = true
			}
		}
		analysis.Locations = append(analysis.Locations, entry)
	}
	return analysis, nil
}

// OnCostChange updates the product's purchase prices, re-analyzes its
// margins everywhere, corrects the default sale price when at or below
// the floor, and appends the advisory report. Warehouse price rows are
// read, never written.
func (s *service) OnCostChange(ctx context.Context, productID uuid.UUID, newCostNet, newCostGross decimal.Decimal, actor string) (*CostChangeResult, error) {
	if newCostNet.IsNegative() || newCostGross.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cost must not be negative")
	}
	if actor == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "actor is required")
	}

	var result *CostChangeResult
	err := s.dbc.WithTx(ctx, func(tx *gorm.DB) error {
		product, err := s.products.FindByIDWithTx(tx, productID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeStoreUnavailable, err, "load product")
		}

		product.PurchaseNet = newCostNet
		product.PurchaseGross = newCostGross

		analysis, err := s.analyzeWithTx(tx, product, time.Now())
		if err != nil {
			return err
		}

		result = &CostChangeResult{Analysis: analysis}

		if analysis.NeedsCorrection {
			oldGross := product.SaleGross
			target := pctFromFloat(s.cfg.TargetMarginPct)
			newGross := newCostGross.Mul(decimal.New(1, 0).Add(target.Div(decimal.New(100, 0)))).Round(2)
			newNet := newGross.Div(decimal.New(1, 0).Add(product.TaxRate.Div(decimal.New(100, 0)))).Round(2)
			product.SaleGross = newGross
			product.SaleNet = newNet
			product.DefaultMargin = target
			result.CorrectedGross = &newGross
			result.CorrectedNet = &newNet
			result.Warnings = append(result.Warnings, Warning{
				Kind:      enums.MarginWarningLowDefault,
				MarginPct: analysis.DefaultMarginPct,
				Message:   fmt.Sprintf("default price corrected from %s to %s", oldGross, newGross),
			})
			if err := s.reports.InsertWithTx(tx, &models.MarginReport{
				ProductID:   product.ID,
				Kind:        enums.MarginWarningLowDefault,
				OldPrice:    oldGross,
				NewPrice:    &newGross,
				PurchaseNet: newCostNet,
				MarginPct:   analysis.DefaultMarginPct,
				Corrected:   true,
				Detail:      fmt.Sprintf("corrected by %s to target %.0f%%", actor, s.cfg.TargetMarginPct),
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeStoreUnavailable, err, "append margin report")
			}
			analysis.DefaultSaleGross = newGross
			analysis.DefaultMarginPct = marginPct(newGross, newCostGross)
		}

		for _, entry := range analysis.Locations {
			var kind enums.MarginWarningKind
			var message string
			switch {
			case entry.IsPromotion:
				kind = enums.MarginWarningPromotionDetected
				message = fmt.Sprintf("promotion %q kept at %s", entry.Label, entry.SaleGross)
			case entry.NeedsAttention:
				kind = enums.MarginWarningLowLocation
				message = fmt.Sprintf("location price %s below promotion threshold, manual review", entry.SaleGross)
			default:
				continue
			}
			warehouseID := entry.WarehouseID
			result.Warnings = append(result.Warnings, Warning{
				Kind:        kind,
				WarehouseID: &warehouseID,
				MarginPct:   entry.MarginPct,
				Message:     message,
			})
			if err := s.reports.InsertWithTx(tx, &models.MarginReport{
				ProductID:   product.ID,
				WarehouseID: &warehouseID,
				Kind:        kind,
				OldPrice:    entry.SaleGross,
				PurchaseNet: newCostNet,
				MarginPct:   entry.MarginPct,
				Detail:      message,
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeStoreUnavailable, err, "append margin report")
			}
		}

		if err := s.products.UpdateWithTx(tx, product); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeStoreUnavailable, err, "update product")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.log != nil {
		s.log.Info(ctx, fmt.Sprintf("cost change for product %s: %d warnings", productID, len(result.Warnings)))
	}
	return result, nil
}

// Analyze builds the read-only margin picture of a product.
func (s *service) Analyze(ctx context.Context, productID uuid.UUID) (*Analysis, error) {
	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeStoreUnavailable, err, "load product")
	}

	var analysis *Analysis
	err = s.dbc.WithTx(ctx, func(tx *gorm.DB) error {
		analysis, err = s.analyzeWithTx(tx, product, time.Now())
		return err
	})
	if err != nil {
		return nil, err
	}
	return analysis, nil
}

// LowMargins lists products whose default margin is at or below the
// threshold.
func (s *service) LowMargins(ctx context.Context, threshold decimal.Decimal) ([]Analysis, error) {
	products, err := s.products.ListActive(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStoreUnavailable, err, "list products")
	}

	var low []Analysis
	for i := range products {
		product := &products[i]
		pct := marginPct(product.SaleGross, product.PurchaseGross)
		if pct.GreaterThan(threshold) {
			continue
		}
		low = append(low, Analysis{
			ProductID:        product.ID,
			ProductCode:      product.Code,
			ProductName:      product.Name,
			CostNet:          product.PurchaseNet,
			CostGross:        product.PurchaseGross,
			DefaultSaleGross: product.SaleGross,
			DefaultMarginPct: pct,
			NeedsCorrection:  pct.LessThanOrEqual(pctFromFloat(s.cfg.MinMarginPct)),
		})
	}
	return low, nil
}

// Correct applies a manual default-price correction to the target
// margin. Location prices stay untouched here as well; operators change
// those through the pricing engine, which keeps the surface coherent.
func (s *service) Correct(ctx context.Context, input CorrectInput) (*CostChangeResult, error) {
	if input.Actor == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "actor is required")
	}
	if input.TargetMarginPct.LessThanOrEqual(decimal.New(-100, 0)) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "target margin out of range")
	}
	if !input.CorrectDefault {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "nothing to correct")
	}

	var result *CostChangeResult
	err := s.dbc.WithTx(ctx, func(tx *gorm.DB) error {
		product, err := s.products.FindByIDWithTx(tx, input.ProductID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeStoreUnavailable, err, "load product")
		}

		oldGross := product.SaleGross
		oldMargin := marginPct(oldGross, product.PurchaseGross)
		newGross := product.PurchaseGross.Mul(decimal.New(1, 0).Add(input.TargetMarginPct.Div(decimal.New(100, 0)))).Round(2)
		newNet := newGross.Div(decimal.New(1, 0).Add(product.TaxRate.Div(decimal.New(100, 0)))).Round(2)
		product.SaleGross = newGross
		product.SaleNet = newNet
		product.DefaultMargin = input.TargetMarginPct
		if err := s.products.UpdateWithTx(tx, product); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeStoreUnavailable, err, "update product")
		}

		if err := s.reports.InsertWithTx(tx, &models.MarginReport{
			ProductID:   product.ID,
			Kind:        enums.MarginWarningLowDefault,
			OldPrice:    oldGross,
			NewPrice:    &newGross,
			PurchaseNet: product.PurchaseNet,
			MarginPct:   oldMargin,
			Corrected:   true,
			Detail:      fmt.Sprintf("manual correction by %s to %s%%", input.Actor, input.TargetMarginPct),
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeStoreUnavailable, err, "append margin report")
		}

		analysis, err := s.analyzeWithTx(tx, product, time.Now())
		if err != nil {
			return err
		}
		result = &CostChangeResult{
			Analysis:       analysis,
			CorrectedGross: &newGross,
			CorrectedNet:   &newNet,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// PostPurchaseInvoice records the invoice and triggers a cost change
// for every delivered product.
func (s *service) PostPurchaseInvoice(ctx context.Context, input PostInvoiceInput) (*PostInvoiceResult, error) {
	if s.invoices == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "invoice repository not configured")
	}
	if input.Number == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invoice number is required")
	}
	if len(input.Lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invoice has no lines")
	}
	if input.Actor == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "actor is required")
	}

	invoice := &models.PurchaseInvoice{
		Number:      input.Number,
		SupplierTIN: input.SupplierTIN,
		WarehouseID: input.WarehouseID,
		IssuedAt:    input.IssuedAt,
	}
	netTotal := decimal.Zero
	grossTotal := decimal.Zero
	for _, line := range input.Lines {
		if line.Quantity.LessThanOrEqual(decimal.Zero) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "line quantity must be positive")
		}
		lineNet := line.UnitNetCost.Mul(line.Quantity).Round(2)
		lineGross := lineNet.Mul(decimal.New(1, 0).Add(line.VATRate.Div(decimal.New(100, 0)))).Round(2)
		netTotal = netTotal.Add(lineNet)
		grossTotal = grossTotal.Add(lineGross)
		invoice.Lines = append(invoice.Lines, models.PurchaseInvoiceLine{
			ProductID:    line.ProductID,
			Quantity:     line.Quantity,
			UnitNetCost:  line.UnitNetCost,
			VATRate:      line.VATRate,
			LineNetTotal: lineNet,
		})
	}
	invoice.NetTotal = netTotal
	invoice.GrossTotal = grossTotal

	err := s.dbc.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.invoices.CreateWithTx(tx, invoice); err != nil {
			if db.IsUniqueViolation(err) {
				return pkgerrors.New(pkgerrors.CodeConflict, "invoice number already posted")
			}
			return pkgerrors.Wrap(pkgerrors.CodeStoreUnavailable, err, "create invoice")
		}
		return s.invoices.MarkPostedWithTx(tx, invoice.ID, time.Now())
	})
	if err != nil {
		return nil, err
	}

	result := &PostInvoiceResult{Invoice: invoice}
	for _, line := range input.Lines {
		grossCost := line.UnitGrossCost
		if grossCost.IsZero() {
			grossCost = line.UnitNetCost.Mul(decimal.New(1, 0).Add(line.VATRate.Div(decimal.New(100, 0)))).Round(2)
		}
		change, err := s.OnCostChange(ctx, line.ProductID, line.UnitNetCost, grossCost, input.Actor)
		if err != nil {
			return nil, err
		}
		result.Results = append(result.Results, *change)
	}
	return result, nil
}

// Reports lists stored margin reports for a product, newest first.
func (s *service) Reports(ctx context.Context, productID uuid.UUID) ([]models.MarginReport, error) {
	reports, err := s.reports.ListByProduct(ctx, productID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStoreUnavailable, err, "list margin reports")
	}
	return reports, nil
}
