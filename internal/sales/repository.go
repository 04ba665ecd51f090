package sales

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/retailpos/retailpos-backend/pkg/db/models"
)

const numberPrefix = "POS"

// Repository handles POS transaction persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds a GORM DB to transaction operations.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// NextNumberWithTx allocates the next transaction number for the date,
// format POS-YYYYMMDD-NNNN. The unique index on number is the arbiter
// under concurrency; callers retry on unique violation.
func (r *Repository) NextNumberWithTx(tx *gorm.DB, at time.Time) (string, error) {
	if tx == nil {
		return "", gorm.ErrInvalidTransaction
	}
	prefix := fmt.Sprintf("%s-%s-", numberPrefix, at.Format("20060102"))

	// longer suffixes sort first so 10000 beats 9999 once the counter
	// outgrows the zero padding
	var last models.POSTransaction
	err := tx.
		Where("number LIKE ?", prefix+"%").
		Order("LENGTH(number) DESC, number DESC").
		First(&last).Error
	counter := 0
	if err == nil {
		suffix := strings.TrimPrefix(last.Number, prefix)
		counter, err = strconv.Atoi(suffix)
		if err != nil {
			return "", fmt.Errorf("malformed transaction number %q", last.Number)
		}
	} else if err != gorm.ErrRecordNotFound {
		return "", err
	}
	return fmt.Sprintf("%s%04d", prefix, counter+1), nil
}

// CreateWithTx persists a transaction and its lines.
func (r *Repository) CreateWithTx(tx *gorm.DB, txn *models.POSTransaction) error {
	if tx == nil {
		return gorm.ErrInvalidTransaction
	}
	if txn.ID == uuid.Nil {
		txn.ID = uuid.New()
	}
	for i := range txn.Lines {
		if txn.Lines[i].ID == uuid.Nil {
			txn.Lines[i].ID = uuid.New()
		}
		txn.Lines[i].TransactionID = txn.ID
	}
	return tx.Create(txn).Error
}

// SaveWithTx persists transaction changes.
func (r *Repository) SaveWithTx(tx *gorm.DB, txn *models.POSTransaction) error {
	if tx == nil {
		return gorm.ErrInvalidTransaction
	}
	return tx.Omit("Lines").Save(txn).Error
}

// FindByID loads a transaction with its lines.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.POSTransaction, error) {
	var txn models.POSTransaction
	if err := r.db.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("line_number") }).
		Where("id = ?", id).
		First(&txn).Error; err != nil {
		return nil, err
	}
	return &txn, nil
}

// FindByNumber loads a transaction with its lines by its number.
func (r *Repository) FindByNumber(ctx context.Context, number string) (*models.POSTransaction, error) {
	var txn models.POSTransaction
	if err := r.db.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("line_number") }).
		Where("number = ?", number).
		First(&txn).Error; err != nil {
		return nil, err
	}
	return &txn, nil
}

// FindBySourceOrder loads the transaction created from an order.
func (r *Repository) FindBySourceOrder(ctx context.Context, orderID uuid.UUID) (*models.POSTransaction, error) {
	var txn models.POSTransaction
	if err := r.db.WithContext(ctx).
		Where("source_order_id = ?", orderID).
		First(&txn).Error; err != nil {
		return nil, err
	}
	return &txn, nil
}
