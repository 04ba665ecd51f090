package catalog

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/retailpos/retailpos-backend/pkg/db/models"
)

// LocationRepository handles location persistence.
type LocationRepository struct {
	db *gorm.DB
}

// NewLocationRepository binds a GORM DB to location operations.
func NewLocationRepository(db *gorm.DB) *LocationRepository {
	return &LocationRepository{db: db}
}

// Create persists a new location row.
func (r *LocationRepository) Create(ctx context.Context, location *models.Location) error {
	if location == nil {
		return fmt.Errorf("location is required")
	}
	if location.ID == uuid.Nil {
		location.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(location).Error
}

// FindByID loads a location by its UUID.
func (r *LocationRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Location, error) {
	var location models.Location
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&location).Error; err != nil {
		return nil, err
	}
	return &location, nil
}

// FindByCode loads a location by its unique code.
func (r *LocationRepository) FindByCode(ctx context.Context, code string) (*models.Location, error) {
	var location models.Location
	if err := r.db.WithContext(ctx).Where("code = ?", code).First(&location).Error; err != nil {
		return nil, err
	}
	return &location, nil
}

// WarehouseRepository handles warehouse persistence.
type WarehouseRepository struct {
	db *gorm.DB
}

// NewWarehouseRepository binds a GORM DB to warehouse operations.
func NewWarehouseRepository(db *gorm.DB) *WarehouseRepository {
	return &WarehouseRepository{db: db}
}

// Create persists a new warehouse row.
func (r *WarehouseRepository) Create(ctx context.Context, warehouse *models.Warehouse) error {
	if warehouse == nil {
		return fmt.Errorf("warehouse is required")
	}
	if warehouse.ID == uuid.Nil {
		warehouse.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(warehouse).Error
}

// FindByID loads a warehouse by its UUID.
func (r *WarehouseRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Warehouse, error) {
	var warehouse models.Warehouse
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&warehouse).Error; err != nil {
		return nil, err
	}
	return &warehouse, nil
}

// FindByIDWithTx loads a warehouse using the provided transaction.
func (r *WarehouseRepository) FindByIDWithTx(tx *gorm.DB, id uuid.UUID) (*models.Warehouse, error) {
	if tx == nil {
		return nil, gorm.ErrInvalidTransaction
	}
	var warehouse models.Warehouse
	if err := tx.First(&warehouse, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &warehouse, nil
}

// ActiveByLocation returns all active warehouses of a location.
func (r *WarehouseRepository) ActiveByLocation(ctx context.Context, locationID uuid.UUID) ([]models.Warehouse, error) {
	var warehouses []models.Warehouse
	if err := r.db.WithContext(ctx).
		Where("location_id = ? AND active = ?", locationID, true).
		Order("code").
		Find(&warehouses).Error; err != nil {
		return nil, err
	}
	return warehouses, nil
}

// ActiveByLocationWithTx enumerates active warehouses inside a transaction.
func (r *WarehouseRepository) ActiveByLocationWithTx(tx *gorm.DB, locationID uuid.UUID) ([]models.Warehouse, error) {
	if tx == nil {
		return nil, gorm.ErrInvalidTransaction
	}
	var warehouses []models.Warehouse
	if err := tx.
		Where("location_id = ? AND active = ?", locationID, true).
		Order("code").
		Find(&warehouses).Error; err != nil {
		return nil, err
	}
	return warehouses, nil
}

// ProductRepository handles product persistence.
type ProductRepository struct {
	db *gorm.DB
}

// NewProductRepository binds a GORM DB to product operations.
func NewProductRepository(db *gorm.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// Create persists a new product row.
func (r *ProductRepository) Create(ctx context.Context, product *models.Product) error {
	if product == nil {
		return fmt.Errorf("product is required")
	}
	if product.ID == uuid.Nil {
		product.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(product).Error
}

// FindByID loads a product by its UUID.
func (r *ProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// FindByCode loads a product by its unique code.
func (r *ProductRepository) FindByCode(ctx context.Context, code string) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).Where("code = ?", code).First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// FindByEAN loads a product by barcode.
func (r *ProductRepository) FindByEAN(ctx context.Context, ean string) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).Where("ean = ?", ean).First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// ListActive returns all active products ordered by code.
func (r *ProductRepository) ListActive(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	if err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Order("code").
		Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

// FindByIDWithTx loads a product using the provided transaction.
func (r *ProductRepository) FindByIDWithTx(tx *gorm.DB, id uuid.UUID) (*models.Product, error) {
	if tx == nil {
		return nil, gorm.ErrInvalidTransaction
	}
	var product models.Product
	if err := tx.First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// UpdateWithTx persists the product using the provided transaction.
func (r *ProductRepository) UpdateWithTx(tx *gorm.DB, product *models.Product) error {
	if tx == nil {
		return gorm.ErrInvalidTransaction
	}
	if product == nil {
		return fmt.Errorf("product is required")
	}
	return tx.Save(product).Error
}
