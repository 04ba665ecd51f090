package sales

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/retailpos/retailpos-backend/internal/fiscal"
	"github.com/retailpos/retailpos-backend/internal/pricing"
	"github.com/retailpos/retailpos-backend/pkg/db"
	"github.com/retailpos/retailpos-backend/pkg/db/models"
	"github.com/retailpos/retailpos-backend/pkg/enums"
	pkgerrors "github.com/retailpos/retailpos-backend/pkg/errors"
	"github.com/retailpos/retailpos-backend/pkg/logger"
	"github.com/retailpos/retailpos-backend/pkg/metrics"
)

// numberAttempts bounds retries when two tills allocate the same
// transaction number at once.
const numberAttempts = 3

// SaleLine is one requested line of a sale. UnitPrice overrides the
// price book when set; order conversion uses it to preserve the prices
// captured at order time.
type SaleLine struct {
	ProductID   uuid.UUID         `json:"product_id" validate:"required"`
	Quantity    decimal.Decimal   `json:"quantity" validate:"required"`
	UnitPrice   *decimal.Decimal  `json:"unit_price,omitempty"`
	PriceSource enums.PriceSource `json:"price_source,omitempty"`
}

// SaleInput describes a sale to complete.
type SaleInput struct {
	LocationID     uuid.UUID       `json:"location_id" validate:"required"`
	CashierID      string          `json:"cashier_id" validate:"required"`
	CustomerID     *uuid.UUID      `json:"customer_id,omitempty"`
	Lines          []SaleLine      `json:"lines" validate:"required,min=1,dive"`
	Tender         enums.Tender    `json:"tender" validate:"required"`
	AmountTendered decimal.Decimal `json:"amount_tendered"`
	SourceOrderID  *uuid.UUID      `json:"source_order_id,omitempty"`
}

type productRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

type priceResolver interface {
	GetEffectivePrice(ctx context.Context, productID, locationID uuid.UUID, date time.Time) (*pricing.EffectivePrice, error)
}

type shiftLedger interface {
	Current(ctx context.Context, cashierID string) (*models.Shift, error)
	RecordTransaction(ctx context.Context, shiftID uuid.UUID, gross decimal.Decimal, tender enums.Tender) error
}

// Service completes sales: prices the cart, persists the transaction
// and fiscalizes it atomically, then updates the shift counters.
type Service interface {
	CompleteSale(ctx context.Context, input SaleInput) (*models.POSTransaction, error)
	Transaction(ctx context.Context, id uuid.UUID) (*models.POSTransaction, error)
	TransactionByNumber(ctx context.Context, number string) (*models.POSTransaction, error)
}

type service struct {
	dbc          *db.Client
	transactions *Repository
	products     productRepository
	prices       priceResolver
	shifts       shiftLedger
	device       fiscal.Device
	log          *logger.Logger
	metrics      *metrics.POSMetrics
}

// NewService wires the transaction engine. A nil device disables
// fiscalization: transactions complete without a fiscal number.
func NewService(dbc *db.Client, transactions *Repository, products productRepository, prices priceResolver, shifts shiftLedger, device fiscal.Device, log *logger.Logger, m *metrics.POSMetrics) (Service, error) {
	if dbc == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "sales service requires a database client")
	}
	if transactions == nil || products == nil || prices == nil || shifts == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "sales service requires its repositories")
	}
	return &service{
		dbc:          dbc,
		transactions: transactions,
		products:     products,
		prices:       prices,
		shifts:       shifts,
		device:       device,
		log:          log,
		metrics:      m,
	}, nil
}

func taxLetterFor(rate decimal.Decimal) string {
	switch rate.IntPart() {
	case 23:
		return "A"
	case 8:
		return "B"
	case 5:
		return "C"
	case 0:
		return "D"
	default:
		return "A"
	}
}

// priceLine resolves the unit price for one cart line and computes its
// value breakdown. Net is derived from gross via the product tax rate.
func (s *service) priceLine(ctx context.Context, input SaleLine, locationID uuid.UUID, at time.Time, lineNumber int) (*models.POSTransactionLine, error) {
	if input.Quantity.LessThan(decimal.New(1, 0)) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "line quantity must be at least 1")
	}
	product, err := s.products.FindByID(ctx, input.ProductID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to load product")
	}
	if !product.Active {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product is not active for sale")
	}

	unitGross := decimal.Zero
	source := enums.PriceSourceProductDefault
	if input.UnitPrice != nil {
		if input.UnitPrice.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "line unit price cannot be negative")
		}
		unitGross = *input.UnitPrice
		if input.PriceSource != "" {
			source = input.PriceSource
		}
	} else {
		effective, err := s.prices.GetEffectivePrice(ctx, product.ID, locationID, at)
		if err != nil {
			return nil, err
		}
		unitGross = effective.Gross
		source = effective.Source
	}

	grossValue := unitGross.Mul(input.Quantity).Round(2)
	divisor := decimal.NewFromInt(1).Add(product.TaxRate.Div(decimal.NewFromInt(100)))
	netValue := grossValue.Div(divisor).Round(2)

	return &models.POSTransactionLine{
		LineNumber:             lineNumber,
		ProductID:              product.ID,
		ProductName:            product.Name,
		UnitPrice:              unitGross,
		Quantity:               input.Quantity,
		UnitPriceAfterDiscount: unitGross,
		NetValue:               netValue,
		GrossValue:             grossValue,
		TaxRate:                product.TaxRate,
		VATAmount:              grossValue.Sub(netValue),
		PriceSource:            source,
	}, nil
}

// fiscalize prints the receipt on the device. Any failure after the
// receipt opened triggers a best-effort cancel so the printer does not
// stay stuck mid-receipt.
func (s *service) fiscalize(ctx context.Context, txn *models.POSTransaction) (string, error) {
	if err := s.device.OpenReceipt(ctx); err != nil {
		return "", err
	}
	print := func() error {
		for _, line := range txn.Lines {
			err := s.device.AddItem(ctx, fiscal.ReceiptItem{
				Name:      line.ProductName,
				Quantity:  line.Quantity,
				UnitPrice: line.UnitPrice,
				TaxLetter: taxLetterFor(line.TaxRate),
			})
			if err != nil {
				return err
			}
		}
		return s.device.AddPayment(ctx, fiscal.PaymentSpec{
			Kind:   txn.Tender,
			Amount: txn.AmountTendered,
		})
	}
	if err := print(); err != nil {
		return "", multierr.Append(err, s.device.CancelReceipt(ctx))
	}
	result, err := s.device.CloseReceipt(ctx, txn.TotalGross, txn.CashierID)
	if err != nil {
		return "", multierr.Append(err, s.device.CancelReceipt(ctx))
	}
	return result.FiscalNumber, nil
}

// CompleteSale runs the sale pipeline: price resolution, tender check,
// atomic persist plus fiscalization, then shift counter updates. A
// fiscal failure rolls the whole transaction back.
func (s *service) CompleteSale(ctx context.Context, input SaleInput) (*models.POSTransaction, error) {
	started := time.Now()
	if input.LocationID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "location id is required")
	}
	if input.CashierID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cashier id is required")
	}
	if len(input.Lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sale requires at least one line")
	}
	if !input.Tender.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown tender kind")
	}

	soldAt := time.Now()
	lines := make([]models.POSTransactionLine, 0, len(input.Lines))
	totalNet := decimal.Zero
	totalGross := decimal.Zero
	for i, lineInput := range input.Lines {
		line, err := s.priceLine(ctx, lineInput, input.LocationID, soldAt, i+1)
		if err != nil {
			return nil, err
		}
		totalNet = totalNet.Add(line.NetValue)
		totalGross = totalGross.Add(line.GrossValue)
		lines = append(lines, *line)
	}

	if input.AmountTendered.LessThan(totalGross) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount tendered is less than the total due")
	}
	changeDue := decimal.Zero
	if input.Tender.IsCash() {
		changeDue = input.AmountTendered.Sub(totalGross)
	} else if input.AmountTendered.GreaterThan(totalGross) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "change is only given on cash tenders")
	}

	var shiftID *uuid.UUID
	if shift, err := s.shifts.Current(ctx, input.CashierID); err == nil {
		shiftID = &shift.ID
	} else if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		return nil, err
	}

	txn := &models.POSTransaction{
		SoldAt:         soldAt,
		CashierID:      input.CashierID,
		LocationID:     input.LocationID,
		ShiftID:        shiftID,
		CustomerID:     input.CustomerID,
		Tender:         input.Tender,
		AmountTendered: input.AmountTendered,
		ChangeDue:      changeDue,
		TotalNet:       totalNet,
		TotalGross:     totalGross,
		TotalVAT:       totalGross.Sub(totalNet),
		Status:         enums.TransactionStatusPending,
		SourceOrderID:  input.SourceOrderID,
		Lines:          lines,
	}

	var persistErr error
	for attempt := 0; attempt < numberAttempts; attempt++ {
		persistErr = s.dbc.WithTx(ctx, func(tx *gorm.DB) error {
			number, err := s.transactions.NextNumberWithTx(tx, soldAt)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to allocate transaction number")
			}
			txn.ID = uuid.Nil
			txn.Number = number
			for i := range txn.Lines {
				txn.Lines[i].ID = uuid.Nil
			}
			if err := s.transactions.CreateWithTx(tx, txn); err != nil {
				if db.IsUniqueViolation(err) {
					return err
				}
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to persist transaction")
			}
			if s.device != nil {
				fiscalNumber, err := s.fiscalize(ctx, txn)
				if err != nil {
					return err
				}
				txn.FiscalNumber = &fiscalNumber
			}
			txn.Status = enums.TransactionStatusCompleted
			if err := s.transactions.SaveWithTx(tx, txn); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to complete transaction")
			}
			return nil
		})
		if persistErr == nil || !db.IsUniqueViolation(persistErr) {
			break
		}
		if db.IsUniqueViolation(persistErr, "source_order") {
			break
		}
	}
	if persistErr != nil {
		if s.metrics != nil {
			s.metrics.IncSale(input.LocationID.String(), "failed")
		}
		if db.IsUniqueViolation(persistErr, "source_order") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, persistErr, "order has already been converted")
		}
		if db.IsUniqueViolation(persistErr) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, persistErr, "could not allocate a unique transaction number")
		}
		return nil, persistErr
	}

	if shiftID != nil {
		if err := s.shifts.RecordTransaction(ctx, *shiftID, totalGross, input.Tender); err != nil {
			if s.log != nil {
				s.log.Warn(s.log.WithField(ctx, "transaction_number", txn.Number), "sale committed but shift counters were not updated")
			}
		}
	}

	if s.metrics != nil {
		s.metrics.IncSale(input.LocationID.String(), "completed")
		s.metrics.ObserveSaleDuration(input.LocationID.String(), time.Since(started))
	}
	if s.log != nil {
		s.log.Info(s.log.WithFields(ctx, map[string]any{
			"transaction_number": txn.Number,
			"total_gross":        txn.TotalGross.StringFixed(2),
			"tender":             txn.Tender.String(),
		}), "sale completed")
	}
	return txn, nil
}

// Transaction loads a transaction with its lines.
func (s *service) Transaction(ctx context.Context, id uuid.UUID) (*models.POSTransaction, error) {
	txn, err := s.transactions.FindByID(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to load transaction")
	}
	return txn, nil
}

// TransactionByNumber loads a transaction with its lines by number.
func (s *service) TransactionByNumber(ctx context.Context, number string) (*models.POSTransaction, error) {
	txn, err := s.transactions.FindByNumber(ctx, number)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to load transaction")
	}
	return txn, nil
}
