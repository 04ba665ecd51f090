package shifts

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
	"github.com/retailpos/retailpos-backend/pkg/metrics"
)

// OpenShiftInput starts a cashier's work day.
type OpenShiftInput struct {
	CashierID              string
	LocationID             uuid.UUID
	StartingCash           decimal.Decimal
	VerifiedAtStart        bool
	StartDiscrepancyAmount decimal.Decimal
	Notes                  string
}

// CloseShiftInput carries the end-of-day counts and narrative.
type CloseShiftInput struct {
	CashierID          string
	LocationID         uuid.UUID
	EndingCashSystem   decimal.Decimal
	EndingCashPhysical decimal.Decimal
	TerminalSystem     decimal.Decimal
	TerminalActual     decimal.Decimal
	FiscalDailyTotal   decimal.Decimal
	SocialMediaNotes   string
	AchievementNotes   string
}

// DepositInput records cash moved from the drawer to the safe.
type DepositInput struct {
	LocationID uuid.UUID
	Amount     decimal.Decimal
	ByCashier  string
	BagNumber  string
}

// CloseResult pairs the closed shift with its report.
type CloseResult struct {
	Shift  *models.Shift              `json:"shift"`
	Report *models.DailyClosureReport `json:"report"`
}

// Service is the shift and closure ledger. A shift accumulates sales by
// tender while open; closing recomputes the totals from the bound
// transactions, reconciles the drawer against safe-bag deposits, and
// writes an immutable daily closure report.
type Service interface {
	OpenShift(ctx context.Context, input OpenShiftInput) (*models.Shift, error)
	Current(ctx context.Context, cashierID string) (*models.Shift, error)
	RecordTransaction(ctx context.Context, shiftID uuid.UUID, gross decimal.Decimal, tender enums.Tender) error
	CloseShift(ctx context.Context, input CloseShiftInput) (*CloseResult, error)
	RecordDeposit(ctx context.Context, input DepositInput) (*models.SafeBagDeposit, error)
	ClosureReports(ctx context.Context, filter ReportFilter) ([]models.DailyClosureReport, error)
}

type service struct {
	dbc      *db.Client
	shifts   *Repository
	safebags *SafeBagRepository
	reports  *ReportRepository
	log      *logger.Logger
	metrics  *metrics.POSMetrics
}

// NewService builds the shift ledger with the provided collaborators.
func NewService(dbc *db.Client, shifts *Repository, safebags *SafeBagRepository, reports *ReportRepository, log *logger.Logger, m *metrics.POSMetrics) (Service, error) {
	if dbc == nil {
		return nil, fmt.Errorf("db client required")
	}
	if shifts == nil {
		return nil, fmt.Errorf("shift repository required")
	}
	if safebags == nil {
		return nil, fmt.Errorf("safebag repository required")
	}
	if reports == nil {
		return nil, fmt.Errorf("report repository required")
	}
	return &service{
		dbc:      dbc,
		shifts:   shifts,
		safebags: safebags,
		reports:  reports,
		log:      log,
		metrics:  m,
	}, nil
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// OpenShift starts a shift for the cashier. Open shifts left over from
// prior dates are auto-closed first without a closure report; a second
// open on the same day fails with Conflict.
func (s *service) OpenShift(ctx context.Context, input OpenShiftInput) (*models.Shift, error) {
	if input.CashierID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cashier is required")
	}
	if input.StartingCash.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "starting cash must not be negative")
	}

	now := time.Now()
	today := dateOnly(now)
	openKey := input.CashierID
	shift := &models.Shift{
		CashierID:              input.CashierID,
		LocationID:             input.LocationID,
		WorkDate:               today,
		StartTime:              now,
		StartingCash:           input.StartingCash,
		VerifiedAtStart:        input.VerifiedAtStart,
		StartDiscrepancyAmount: input.StartDiscrepancyAmount,
		Status:                 enums.ShiftStatusOpen,
		OpenKey:                &openKey,
		Notes:                  input.Notes,
	}

	err := s.dbc.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.shifts.CloseStaleWithTx(tx, input.CashierID, today); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeStoreUnavailable, err, "auto-close stale shifts")
		}
		if err := s.shifts.CreateWithTx(tx, shift); err != nil {
			if db.IsUniqueViolation(err) {
				return pkgerrors.New(pkgerrors.CodeConflict, "cashier already has an open shift")
			}
			return pkgerrors.Wrap(pkgerrors.CodeStoreUnavailable, err, "create shift")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.log != nil {
		s.log.Info(ctx, fmt.Sprintf("shift %s opened for cashier %s", shift.ID, input.CashierID))
	}
	return shift, nil
}

// Current returns the cashier's open shift.
func (s *service) Current(ctx context.Context, cashierID string) (*models.Shift, error) {
	shift, err := s.shifts.FindOpenByCashier(ctx, cashierID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no open shift")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeStoreUnavailable, err, "load shift")
	}
	return shift, nil
}

// RecordTransaction bumps the shift's live counters for one completed
// sale.
func (s *service) RecordTransaction(ctx context.Context, shiftID uuid.UUID, gross decimal.Decimal, tender enums.Tender) error {
	affected, err := s.shifts.IncrementCounters(ctx, shiftID, gross, tender)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStoreUnavailable, err, "update shift counters")
	}
	if affected == 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "shift is not open")
	}
	return nil
}

// CloseShift reconciles the drawer and writes the immutable closure
// report. Totals are recomputed from the bound completed transactions,
// never trusted from the live counters.
func (s *service) CloseShift(ctx context.Context, input CloseShiftInput) (*CloseResult, error) {
	if input.CashierID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cashier is required")
	}

	var result *CloseResult
	err := s.dbc.WithTx(ctx, func(tx *gorm.DB) error {
		shift, err := s.shifts.FindOpenByCashierWithTx(tx, input.CashierID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeConflict, "no open shift to close")
			}
			return pkgerrors.Wrap(pkgerrors.CodeStoreUnavailable, err, "load open shift")
		}

		totals, err := s.shifts.CompletedTotalsWithTx(tx, shift.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeStoreUnavailable, err, "recompute shift totals")
		}

		safeBagToday, err := s.safebags.SumForLocationOnWithTx(tx, shift.LocationID, shift.WorkDate)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeStoreUnavailable, err, "sum today's safe bags")
		}
		safeBagBalance, err := s.safebags.SumForLocationWithTx(tx, shift.LocationID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeStoreUnavailable, err, "sum safe bag balance")
		}

		expectedCashSystem := shift.StartingCash.Add(totals.Cash)
		expectedDrawer := input.EndingCashSystem.Sub(safeBagToday)
		cashDifference := input.EndingCashSystem.Sub(expectedCashSystem)
		cashPhysicalDifference := input.EndingCashPhysical.Sub(expectedDrawer)
		terminalDifference := input.TerminalActual.Sub(input.TerminalSystem)

		report := &models.DailyClosureReport{
			ShiftID:                 shift.ID,
			CashierID:               shift.CashierID,
			LocationID:              shift.LocationID,
			WorkDate:                shift.WorkDate,
			StartingCash:            shift.StartingCash,
			SalesCash:               totals.Cash,
			SalesCard:               totals.Card,
			SalesOther:              totals.Other,
			TransactionsCount:       totals.Count,
			ExpectedCashSystem:      expectedCashSystem,
			ExpectedDrawer:          expectedDrawer,
			EndingCashSystem:        input.EndingCashSystem,
			EndingCashPhysical:      input.EndingCashPhysical,
			EndingTerminalSystem:    input.TerminalSystem,
			EndingTerminalActual:    input.TerminalActual,
			FiscalPrinterDailyTotal: input.FiscalDailyTotal,
			CashDifference:          cashDifference,
			CashPhysicalDifference:  cashPhysicalDifference,
			TerminalDifference:      terminalDifference,
			SafeBagToday:            safeBagToday,
			SafeBagBalance:          safeBagBalance,
			SocialMediaNotes:        input.SocialMediaNotes,
			AchievementNotes:        input.AchievementNotes,
		}
		if err := s.reports.InsertWithTx(tx, report); err != nil {
			if db.IsUniqueViolation(err) {
				return pkgerrors.New(pkgerrors.CodeConflict, "shift already closed")
			}
			return pkgerrors.Wrap(pkgerrors.CodeStoreUnavailable, err, "write closure report")
		}

		now := time.Now()
		shift.EndTime = &now
		shift.TransactionsCount = totals.Count
		shift.SalesCash = totals.Cash
		shift.SalesCard = totals.Card
		shift.SalesOther = totals.Other
		shift.EndingCashSystem = input.EndingCashSystem
		shift.EndingCashPhysical = input.EndingCashPhysical
		shift.EndingTerminalSystem = input.TerminalSystem
		shift.EndingTerminalActual = input.TerminalActual
		shift.FiscalPrinterDailyTotal = input.FiscalDailyTotal
		shift.CashDifference = cashDifference
		shift.CashPhysicalDifference = cashPhysicalDifference
		shift.TerminalDifference = terminalDifference
		shift.Status = enums.ShiftStatusClosed
		shift.OpenKey = nil
		shift.ReportID = &report.ID
		if err := s.shifts.SaveWithTx(tx, shift); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeStoreUnavailable, err, "close shift")
		}

		result = &CloseResult{Shift: shift, Report: report}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncShiftClosure(result.Shift.LocationID.String(), result.Report.CashDifference.IsZero() && result.Report.CashPhysicalDifference.IsZero())
	if s.log != nil {
		s.log.Info(ctx, fmt.Sprintf("shift %s closed, cash difference %s", result.Shift.ID, result.Report.CashDifference))
	}
	return result, nil
}

// RecordDeposit stores one safe-bag deposit.
func (s *service) RecordDeposit(ctx context.Context, input DepositInput) (*models.SafeBagDeposit, error) {
	if input.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "deposit amount must be positive")
	}
	if input.ByCashier == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cashier is required")
	}
	deposit := &models.SafeBagDeposit{
		LocationID:  input.LocationID,
		Amount:      input.Amount,
		DepositedAt: time.Now(),
		ByCashier:   input.ByCashier,
		BagNumber:   input.BagNumber,
	}
	if err := s.safebags.Create(ctx, deposit); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStoreUnavailable, err, "record deposit")
	}
	return deposit, nil
}

// ClosureReports lists stored reports for the admin surface.
func (s *service) ClosureReports(ctx context.Context, filter ReportFilter) ([]models.DailyClosureReport, error) {
	reports, err := s.reports.List(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStoreUnavailable, err, "list closure reports")
	}
	return reports, nil
}
