package margins

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/retailpos/retailpos-backend/pkg/db/models"
)

// ReportRepository handles margin report persistence. Reports are
// append-only.
type ReportRepository struct {
	db *gorm.DB
}

// NewReportRepository binds a GORM DB to margin report operations.
func NewReportRepository(db *gorm.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// InsertWithTx appends one report row.
func (r *ReportRepository) InsertWithTx(tx *gorm.DB, report *models.MarginReport) error {
	if tx == nil {
		return gorm.ErrInvalidTransaction
	}
	if report.ID == uuid.Nil {
		report.ID = uuid.New()
	}
	return tx.Create(report).Error
}

// ListByProduct returns report rows for a product, newest first.
func (r *ReportRepository) ListByProduct(ctx context.Context, productID uuid.UUID) ([]models.MarginReport, error) {
	var reports []models.MarginReport
	if err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("created_at DESC").
		Find(&reports).Error; err != nil {
		return nil, err
	}
	return reports, nil
}

// InvoiceRepository handles purchase invoice persistence.
type InvoiceRepository struct {
	db *gorm.DB
}

// NewInvoiceRepository binds a GORM DB to purchase invoice operations.
func NewInvoiceRepository(db *gorm.DB) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

// CreateWithTx persists an invoice and its lines.
func (r *InvoiceRepository) CreateWithTx(tx *gorm.DB, invoice *models.PurchaseInvoice) error {
	if tx == nil {
		return gorm.ErrInvalidTransaction
	}
	if invoice.ID == uuid.Nil {
		invoice.ID = uuid.New()
	}
	for i := range invoice.Lines {
		if invoice.Lines[i].ID == uuid.Nil {
			invoice.Lines[i].ID = uuid.New()
		}
		invoice.Lines[i].InvoiceID = invoice.ID
	}
	return tx.Create(invoice).Error
}

// MarkPostedWithTx stamps the invoice as posted.
func (r *InvoiceRepository) MarkPostedWithTx(tx *gorm.DB, invoiceID uuid.UUID, at time.Time) error {
	if tx == nil {
		return gorm.ErrInvalidTransaction
	}
	return tx.Model(&models.PurchaseInvoice{}).
		Where("id = ?", invoiceID).
		Update("posted_at", at).Error
}

// FindByNumber loads an invoice with its lines.
func (r *InvoiceRepository) FindByNumber(ctx context.Context, number string) (*models.PurchaseInvoice, error) {
	var invoice models.PurchaseInvoice
	if err := r.db.WithContext(ctx).
		Preload("Lines").
		Where("number = ?", number).
		First(&invoice).Error; err != nil {
		return nil, err
	}
	return &invoice, nil
}
