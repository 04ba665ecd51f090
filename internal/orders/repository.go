package orders

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/retailpos/retailpos-backend/pkg/db/models"
	"github.com/retailpos/retailpos-backend/pkg/enums"
)

const numberPrefix = "ZAM"

// Repository handles customer order persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds a GORM DB to order operations.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// NextNumberWithTx allocates the next order number for the date,
// format ZAM-YYYYMMDD-NNNN.
func (r *Repository) NextNumberWithTx(tx *gorm.DB, at time.Time) (string, error) {
	if tx == nil {
		return "", gorm.ErrInvalidTransaction
	}
	prefix := fmt.Sprintf("%s-%s-", numberPrefix, at.Format("20060102"))

	// longer suffixes sort first so 10000 beats 9999 once the counter
	// outgrows the zero padding
	var last models.CustomerOrder
	err := tx.
		Where("number LIKE ?", prefix+"%").
		Order("LENGTH(number) DESC, number DESC").
		First(&last).Error
	counter := 0
	if err == nil {
		suffix := strings.TrimPrefix(last.Number, prefix)
		counter, err = strconv.Atoi(suffix)
		if err != nil {
			return "", fmt.Errorf("malformed order number %q", last.Number)
		}
	} else if err != gorm.ErrRecordNotFound {
		return "", err
	}
	return fmt.Sprintf("%s%04d", prefix, counter+1), nil
}

// CreateWithTx persists an order and its lines.
func (r *Repository) CreateWithTx(tx *gorm.DB, order *models.CustomerOrder) error {
	if tx == nil {
		return gorm.ErrInvalidTransaction
	}
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	for i := range order.Lines {
		if order.Lines[i].ID == uuid.Nil {
			order.Lines[i].ID = uuid.New()
		}
		order.Lines[i].OrderID = order.ID
	}
	return tx.Create(order).Error
}

// FindByID loads an order with its lines.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.CustomerOrder, error) {
	var order models.CustomerOrder
	if err := r.db.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("line_number") }).
		Where("id = ?", id).
		First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// FindByIDWithTx loads an order with its lines inside a transaction.
func (r *Repository) FindByIDWithTx(tx *gorm.DB, id uuid.UUID) (*models.CustomerOrder, error) {
	if tx == nil {
		return nil, gorm.ErrInvalidTransaction
	}
	var order models.CustomerOrder
	if err := tx.
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("line_number") }).
		Where("id = ?", id).
		First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// SaveWithTx persists order changes.
func (r *Repository) SaveWithTx(tx *gorm.DB, order *models.CustomerOrder) error {
	if tx == nil {
		return gorm.ErrInvalidTransaction
	}
	return tx.Omit("Lines").Save(order).Error
}

// ListFilter narrows the order listing.
type ListFilter struct {
	LocationID *uuid.UUID
	Status     enums.OrderStatus
}

// List returns orders matching the filter, newest first.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]models.CustomerOrder, error) {
	query := r.db.WithContext(ctx).Model(&models.CustomerOrder{})
	if filter.LocationID != nil {
		query = query.Where("location_id = ?", *filter.LocationID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	var orders []models.CustomerOrder
	if err := query.
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("line_number") }).
		Order("created_at DESC").
		Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}
