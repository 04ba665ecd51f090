package pricing

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/retailpos/retailpos-backend/pkg/db/models"
)

// Repository handles warehouse price persistence. All mutating methods
// run inside a caller-provided transaction so the location surface is
// updated atomically.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds a GORM DB to price operations.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// InsertWithTx persists a new price row.
func (r *Repository) InsertWithTx(tx *gorm.DB, row *models.WarehousePrice) error {
	if tx == nil {
		return gorm.ErrInvalidTransaction
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	return tx.Create(row).Error
}

// SaveWithTx persists changes to an existing price row.
func (r *Repository) SaveWithTx(tx *gorm.DB, row *models.WarehousePrice) error {
	if tx == nil {
		return gorm.ErrInvalidTransaction
	}
	return tx.Save(row).Error
}

// FindByWindowWithTx loads the row keyed by (warehouse, product,
// validFrom), active or not.
func (r *Repository) FindByWindowWithTx(tx *gorm.DB, warehouseID, productID uuid.UUID, validFrom time.Time) (*models.WarehousePrice, error) {
	if tx == nil {
		return nil, gorm.ErrInvalidTransaction
	}
	var row models.WarehousePrice
	if err := tx.
		Where("warehouse_id = ? AND product_id = ? AND valid_from = ?", warehouseID, productID, validFrom).
		First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// LatestWithTx loads the newest row for (warehouse, product) by
// valid_from, active or not.
func (r *Repository) LatestWithTx(tx *gorm.DB, warehouseID, productID uuid.UUID) (*models.WarehousePrice, error) {
	if tx == nil {
		return nil, gorm.ErrInvalidTransaction
	}
	var row models.WarehousePrice
	if err := tx.
		Where("warehouse_id = ? AND product_id = ?", warehouseID, productID).
		Order("valid_from DESC").
		First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// ActiveAtWithTx loads the active row covering the given date.
func (r *Repository) ActiveAtWithTx(tx *gorm.DB, warehouseID, productID uuid.UUID, date time.Time) (*models.WarehousePrice, error) {
	if tx == nil {
		return nil, gorm.ErrInvalidTransaction
	}
	var row models.WarehousePrice
	if err := tx.
		Where("warehouse_id = ? AND product_id = ? AND active = ?", warehouseID, productID, true).
		Where("valid_from <= ?", date).
		Where("valid_until IS NULL OR valid_until >= ?", date).
		Order("valid_from DESC").
		First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// ActiveAt loads the active row covering the given date outside a
// transaction.
func (r *Repository) ActiveAt(warehouseID, productID uuid.UUID, date time.Time) (*models.WarehousePrice, error) {
	return r.ActiveAtWithTx(r.db, warehouseID, productID, date)
}

// ActiveByWarehouseAt returns every product's active row at a warehouse
// for the given date.
func (r *Repository) ActiveByWarehouseAt(warehouseID uuid.UUID, date time.Time) ([]models.WarehousePrice, error) {
	var rows []models.WarehousePrice
	if err := r.db.
		Where("warehouse_id = ? AND active = ?", warehouseID, true).
		Where("valid_from <= ?", date).
		Where("valid_until IS NULL OR valid_until >= ?", date).
		Order("product_id").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ActiveValidRows returns every active, currently valid row for a
// product across all warehouses.
func (r *Repository) ActiveValidRows(productID uuid.UUID, date time.Time) ([]models.WarehousePrice, error) {
	return r.ActiveValidRowsWithTx(r.db, productID, date)
}

// ActiveValidRowsWithTx is ActiveValidRows inside a transaction.
func (r *Repository) ActiveValidRowsWithTx(tx *gorm.DB, productID uuid.UUID, date time.Time) ([]models.WarehousePrice, error) {
	if tx == nil {
		return nil, gorm.ErrInvalidTransaction
	}
	var rows []models.WarehousePrice
	if err := tx.
		Where("product_id = ? AND active = ?", productID, true).
		Where("valid_from <= ?", date).
		Where("valid_until IS NULL OR valid_until >= ?", date).
		Order("warehouse_id").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// History returns all rows for (warehouse, product), newest first.
func (r *Repository) History(warehouseID, productID uuid.UUID) ([]models.WarehousePrice, error) {
	var rows []models.WarehousePrice
	if err := r.db.
		Where("warehouse_id = ? AND product_id = ?", warehouseID, productID).
		Order("valid_from DESC, created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// HistoryByProduct returns all rows for a product across warehouses,
// newest first.
func (r *Repository) HistoryByProduct(productID uuid.UUID) ([]models.WarehousePrice, error) {
	var rows []models.WarehousePrice
	if err := r.db.
		Where("product_id = ?", productID).
		Order("valid_from DESC, created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
