package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/retailpos/retailpos-backend/internal/pricing"
	"github.com/retailpos/retailpos-backend/internal/sales"
	"github.com/retailpos/retailpos-backend/pkg/db"
	"github.com/retailpos/retailpos-backend/pkg/db/models"
	"github.com/retailpos/retailpos-backend/pkg/enums"
	pkgerrors "github.com/retailpos/retailpos-backend/pkg/errors"
	"github.com/retailpos/retailpos-backend/pkg/logger"
)

// OrderLineInput is one requested line of a new order.
type OrderLineInput struct {
	ProductID uuid.UUID       `json:"product_id" validate:"required"`
	Quantity  decimal.Decimal `json:"quantity" validate:"required"`
}

// CreateOrderInput describes a new customer order. Prices are captured
// from the location surface at creation time.
type CreateOrderInput struct {
	LocationID uuid.UUID        `json:"location_id" validate:"required"`
	CustomerID *uuid.UUID       `json:"customer_id,omitempty"`
	Notes      string           `json:"notes,omitempty"`
	Lines      []OrderLineInput `json:"lines" validate:"required,min=1,dive"`
}

// ConvertInput turns an order into a POS transaction. Tender defaults
// to cash for the full captured total.
type ConvertInput struct {
	OrderID        uuid.UUID        `json:"-"`
	CashierID      string           `json:"cashier_id" validate:"required"`
	Tender         enums.Tender     `json:"tender,omitempty"`
	AmountTendered *decimal.Decimal `json:"amount_tendered,omitempty"`
}

type productRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

type priceResolver interface {
	GetEffectivePrice(ctx context.Context, productID, locationID uuid.UUID, date time.Time) (*pricing.EffectivePrice, error)
}

type salesEngine interface {
	CompleteSale(ctx context.Context, input sales.SaleInput) (*models.POSTransaction, error)
}

// Service manages customer orders and their conversion into sales.
type Service interface {
	CreateOrder(ctx context.Context, input CreateOrderInput) (*models.CustomerOrder, error)
	Order(ctx context.Context, id uuid.UUID) (*models.CustomerOrder, error)
	List(ctx context.Context, filter ListFilter) ([]models.CustomerOrder, error)
	CancelOrder(ctx context.Context, id uuid.UUID) (*models.CustomerOrder, error)
	ConvertToTransaction(ctx context.Context, input ConvertInput) (*models.POSTransaction, error)
}

type service struct {
	dbc      *db.Client
	orders   *Repository
	products productRepository
	prices   priceResolver
	sales    salesEngine
	log      *logger.Logger
}

// NewService wires the order module.
func NewService(dbc *db.Client, orders *Repository, products productRepository, prices priceResolver, engine salesEngine, log *logger.Logger) (Service, error) {
	if dbc == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders service requires a database client")
	}
	if orders == nil || products == nil || prices == nil || engine == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders service requires its collaborators")
	}
	return &service{
		dbc:      dbc,
		orders:   orders,
		products: products,
		prices:   prices,
		sales:    engine,
		log:      log,
	}, nil
}

// CreateOrder captures the current effective prices into order lines so
// a later conversion sells at what the customer was quoted.
func (s *service) CreateOrder(ctx context.Context, input CreateOrderInput) (*models.CustomerOrder, error) {
	if input.LocationID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "location id is required")
	}
	if len(input.Lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order requires at least one line")
	}

	now := time.Now()
	lines := make([]models.CustomerOrderLine, 0, len(input.Lines))
	total := decimal.Zero
	for i, lineInput := range input.Lines {
		if lineInput.Quantity.LessThan(decimal.New(1, 0)) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "line quantity must be at least 1")
		}
		product, err := s.products.FindByID(ctx, lineInput.ProductID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to load product")
		}
		if !product.Active {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product is not active for sale")
		}
		effective, err := s.prices.GetEffectivePrice(ctx, product.ID, input.LocationID, now)
		if err != nil {
			return nil, err
		}
		gross := effective.Gross.Mul(lineInput.Quantity).Round(2)
		total = total.Add(gross)
		lines = append(lines, models.CustomerOrderLine{
			LineNumber:  i + 1,
			ProductID:   product.ID,
			ProductName: product.Name,
			UnitPrice:   effective.Gross,
			Quantity:    lineInput.Quantity,
			TaxRate:     product.TaxRate,
			GrossValue:  gross,
		})
	}

	order := &models.CustomerOrder{
		CustomerID: input.CustomerID,
		LocationID: input.LocationID,
		Status:     enums.OrderStatusPending,
		Notes:      input.Notes,
		TotalGross: total,
		Lines:      lines,
	}
	err := s.dbc.WithTx(ctx, func(tx *gorm.DB) error {
		number, err := s.orders.NextNumberWithTx(tx, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to allocate order number")
		}
		order.Number = number
		return s.orders.CreateWithTx(tx, order)
	})
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "could not allocate a unique order number")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to create order")
	}
	if s.log != nil {
		s.log.Info(s.log.WithField(ctx, "order_number", order.Number), "customer order created")
	}
	return order, nil
}

// Order loads one order with its lines.
func (s *service) Order(ctx context.Context, id uuid.UUID) (*models.CustomerOrder, error) {
	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to load order")
	}
	return order, nil
}

// List returns orders matching the filter.
func (s *service) List(ctx context.Context, filter ListFilter) ([]models.CustomerOrder, error) {
	orders, err := s.orders.List(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to list orders")
	}
	return orders, nil
}

// CancelOrder cancels an order that was not converted yet.
func (s *service) CancelOrder(ctx context.Context, id uuid.UUID) (*models.CustomerOrder, error) {
	var order *models.CustomerOrder
	err := s.dbc.WithTx(ctx, func(tx *gorm.DB) error {
		loaded, err := s.orders.FindByIDWithTx(tx, id)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to load order")
		}
		if loaded.Status == enums.OrderStatusCompleted {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "converted orders cannot be cancelled")
		}
		if loaded.Status == enums.OrderStatusCancelled {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order is already cancelled")
		}
		loaded.Status = enums.OrderStatusCancelled
		if err := s.orders.SaveWithTx(tx, loaded); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to cancel order")
		}
		order = loaded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// ConvertToTransaction turns a pending or confirmed order into a
// completed sale at the prices captured on the order. The unique
// source-order binding on transactions makes the conversion
// happen-at-most-once even when two tills race.
func (s *service) ConvertToTransaction(ctx context.Context, input ConvertInput) (*models.POSTransaction, error) {
	if input.CashierID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cashier id is required")
	}
	order, err := s.Order(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	if !order.Status.Convertible() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("order in status %s cannot be converted", order.Status))
	}
	if len(order.Lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order has no lines to convert")
	}

	tender := input.Tender
	if tender == "" {
		tender = enums.TenderCash
	}
	amount := order.TotalGross
	if input.AmountTendered != nil {
		amount = *input.AmountTendered
	}

	saleLines := make([]sales.SaleLine, 0, len(order.Lines))
	for _, line := range order.Lines {
		captured := line.UnitPrice
		saleLines = append(saleLines, sales.SaleLine{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitPrice: &captured,
		})
	}

	orderID := order.ID
	txn, err := s.sales.CompleteSale(ctx, sales.SaleInput{
		LocationID:     order.LocationID,
		CashierID:      input.CashierID,
		CustomerID:     order.CustomerID,
		Lines:          saleLines,
		Tender:         tender,
		AmountTendered: amount,
		SourceOrderID:  &orderID,
	})
	if err != nil {
		return nil, err
	}

	note := fmt.Sprintf("przekształcono na %s", txn.Number)
	err = s.dbc.WithTx(ctx, func(tx *gorm.DB) error {
		loaded, err := s.orders.FindByIDWithTx(tx, order.ID)
		if err != nil {
			return err
		}
		loaded.Status = enums.OrderStatusCompleted
		if loaded.Notes != "" {
			loaded.Notes += "\n"
		}
		loaded.Notes += note
		return s.orders.SaveWithTx(tx, loaded)
	})
	if err != nil {
		if s.log != nil {
			s.log.Error(s.log.WithFields(ctx, map[string]any{
				"order_number":       order.Number,
				"transaction_number": txn.Number,
			}), "sale committed but order status was not updated", err)
		}
		return txn, nil
	}
	if s.log != nil {
		s.log.Info(s.log.WithFields(ctx, map[string]any{
			"order_number":       order.Number,
			"transaction_number": txn.Number,
		}), "order converted to transaction")
	}
	return txn, nil
}
