package shifts

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/retailpos/retailpos-backend/pkg/db/models"
	"github.com/retailpos/retailpos-backend/pkg/enums"
)

// Repository handles shift persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds a GORM DB to shift operations.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// CreateWithTx persists a new shift row.
func (r *Repository) CreateWithTx(tx *gorm.DB, shift *models.Shift) error {
	if tx == nil {
		return gorm.ErrInvalidTransaction
	}
	if shift.ID == uuid.Nil {
		shift.ID = uuid.New()
	}
	return tx.Create(shift).Error
}

// FindOpenByCashier loads the cashier's open shift.
func (r *Repository) FindOpenByCashier(ctx context.Context, cashierID string) (*models.Shift, error) {
	var shift models.Shift
	if err := r.db.WithContext(ctx).
		Where("open_key = ?", cashierID).
		First(&shift).Error; err != nil {
		return nil, err
	}
	return &shift, nil
}

// FindOpenByCashierWithTx loads the cashier's open shift inside a
// transaction.
func (r *Repository) FindOpenByCashierWithTx(tx *gorm.DB, cashierID string) (*models.Shift, error) {
	if tx == nil {
		return nil, gorm.ErrInvalidTransaction
	}
	var shift models.Shift
	if err := tx.Where("open_key = ?", cashierID).First(&shift).Error; err != nil {
		return nil, err
	}
	return &shift, nil
}

// FindByID loads a shift by its UUID.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Shift, error) {
	var shift models.Shift
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&shift).Error; err != nil {
		return nil, err
	}
	return &shift, nil
}

// SaveWithTx persists shift changes inside a transaction.
func (r *Repository) SaveWithTx(tx *gorm.DB, shift *models.Shift) error {
	if tx == nil {
		return gorm.ErrInvalidTransaction
	}
	return tx.Save(shift).Error
}

// CloseStaleWithTx closes the cashier's open shifts from before the
// given date: end time is set to the end of their work day, no closure
// report is produced.
func (r *Repository) CloseStaleWithTx(tx *gorm.DB, cashierID string, today time.Time) error {
	if tx == nil {
		return gorm.ErrInvalidTransaction
	}
	var stale []models.Shift
	if err := tx.
		Where("open_key = ? AND work_date < ?", cashierID, today).
		Find(&stale).Error; err != nil {
		return err
	}
	for i := range stale {
		shift := &stale[i]
		endOfDay := time.Date(shift.WorkDate.Year(), shift.WorkDate.Month(), shift.WorkDate.Day(),
			23, 59, 59, 0, shift.WorkDate.Location())
		shift.EndTime = &endOfDay
		shift.Status = enums.ShiftStatusClosed
		shift.OpenKey = nil
		if err := tx.Save(shift).Error; err != nil {
			return err
		}
	}
	return nil
}

// IncrementCounters bumps the shift's live totals for one completed
// transaction. The update is a single SQL statement so concurrent sales
// for the same cashier cannot lose increments.
func (r *Repository) IncrementCounters(ctx context.Context, shiftID uuid.UUID, gross decimal.Decimal, tender enums.Tender) (int64, error) {
	column := "sales_other"
	switch tender {
	case enums.TenderCash:
		column = "sales_cash"
	case enums.TenderCard:
		column = "sales_card"
	}
	res := r.db.WithContext(ctx).Model(&models.Shift{}).
		Where("id = ? AND status = ?", shiftID, enums.ShiftStatusOpen).
		Updates(map[string]any{
			"transactions_count": gorm.Expr("transactions_count + 1"),
			column:               gorm.Expr(column+" + ?", gross),
		})
	return res.RowsAffected, res.Error
}

// TenderTotals aggregates completed transactions bound to a shift.
type TenderTotals struct {
	Count int
	Cash  decimal.Decimal
	Card  decimal.Decimal
	Other decimal.Decimal
}

// CompletedTotalsWithTx recomputes the tender totals from the
// transactions bound to the shift.
func (r *Repository) CompletedTotalsWithTx(tx *gorm.DB, shiftID uuid.UUID) (*TenderTotals, error) {
	if tx == nil {
		return nil, gorm.ErrInvalidTransaction
	}
	var transactions []models.POSTransaction
	if err := tx.
		Where("shift_id = ? AND status = ?", shiftID, enums.TransactionStatusCompleted).
		Find(&transactions).Error; err != nil {
		return nil, err
	}
	totals := &TenderTotals{
		Cash:  decimal.Zero,
		Card:  decimal.Zero,
		Other: decimal.Zero,
	}
	for _, txn := range transactions {
		totals.Count++
		switch txn.Tender {
		case enums.TenderCash:
			totals.Cash = totals.Cash.Add(txn.TotalGross)
		case enums.TenderCard:
			totals.Card = totals.Card.Add(txn.TotalGross)
		default:
			totals.Other = totals.Other.Add(txn.TotalGross)
		}
	}
	return totals, nil
}

// SafeBagRepository handles safe-bag deposit persistence.
type SafeBagRepository struct {
	db *gorm.DB
}

// NewSafeBagRepository binds a GORM DB to safe-bag operations.
func NewSafeBagRepository(db *gorm.DB) *SafeBagRepository {
	return &SafeBagRepository{db: db}
}

// Create persists one deposit.
func (r *SafeBagRepository) Create(ctx context.Context, deposit *models.SafeBagDeposit) error {
	if deposit.ID == uuid.Nil {
		deposit.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(deposit).Error
}

// SumForLocationOnWithTx sums deposits made at a location during the
// given calendar day.
func (r *SafeBagRepository) SumForLocationOnWithTx(tx *gorm.DB, locationID uuid.UUID, day time.Time) (decimal.Decimal, error) {
	if tx == nil {
		return decimal.Zero, gorm.ErrInvalidTransaction
	}
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)
	return r.sum(tx.Where("location_id = ? AND deposited_at >= ? AND deposited_at < ?", locationID, dayStart, dayEnd))
}

// SumForLocationWithTx sums all deposits ever made at a location.
func (r *SafeBagRepository) SumForLocationWithTx(tx *gorm.DB, locationID uuid.UUID) (decimal.Decimal, error) {
	if tx == nil {
		return decimal.Zero, gorm.ErrInvalidTransaction
	}
	return r.sum(tx.Where("location_id = ?", locationID))
}

func (r *SafeBagRepository) sum(query *gorm.DB) (decimal.Decimal, error) {
	var deposits []models.SafeBagDeposit
	if err := query.Find(&deposits).Error; err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, d := range deposits {
		total = total.Add(d.Amount)
	}
	return total, nil
}

// ReportRepository handles closure report persistence. Reports are
// insert-only.
type ReportRepository struct {
	db *gorm.DB
}

// NewReportRepository binds a GORM DB to closure report operations.
func NewReportRepository(db *gorm.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// InsertWithTx writes the closure snapshot.
func (r *ReportRepository) InsertWithTx(tx *gorm.DB, report *models.DailyClosureReport) error {
	if tx == nil {
		return gorm.ErrInvalidTransaction
	}
	if report.ID == uuid.Nil {
		report.ID = uuid.New()
	}
	return tx.Create(report).Error
}

// FindByShift loads the report bound to a shift.
func (r *ReportRepository) FindByShift(ctx context.Context, shiftID uuid.UUID) (*models.DailyClosureReport, error) {
	var report models.DailyClosureReport
	if err := r.db.WithContext(ctx).Where("shift_id = ?", shiftID).First(&report).Error; err != nil {
		return nil, err
	}
	return &report, nil
}

// ReportFilter narrows the closure report listing.
type ReportFilter struct {
	DateFrom  *time.Time
	DateTo    *time.Time
	CashierID string
}

// List returns closure reports matching the filter, newest first.
func (r *ReportRepository) List(ctx context.Context, filter ReportFilter) ([]models.DailyClosureReport, error) {
	query := r.db.WithContext(ctx).Model(&models.DailyClosureReport{})
	if filter.DateFrom != nil {
		query = query.Where("work_date >= ?", *filter.DateFrom)
	}
	if filter.DateTo != nil {
		query = query.Where("work_date <= ?", *filter.DateTo)
	}
	if filter.CashierID != "" {
		query = query.Where("cashier_id = ?", filter.CashierID)
	}
	var reports []models.DailyClosureReport
	if err := query.Order("work_date DESC, created_at DESC").Find(&reports).Error; err != nil {
		return nil, err
	}
	return reports, nil
}
