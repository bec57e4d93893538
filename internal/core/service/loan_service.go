package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/opencirc/circulation/internal/core/domain"
	"github.com/opencirc/circulation/internal/port"
)

// RoleAdmin marks administrative accounts, which are not eligible to
// borrow.
const RoleAdmin = "admin"

// LoanService drives loans through their state machine:
// Active -> Overdue -> Returned|Lost, with the Overdue step skipped
// when a loan is resolved before a sweep has run. It is the only
// component that opens multi-entity transactions, via the composite
// LoanStore operations.
type LoanService struct {
	loans    port.LoanStore
	persons  port.PersonDirectory
	catalog  port.CatalogDirectory
	notifier port.Notifier
	logger   zerolog.Logger
}

func NewLoanService(loans port.LoanStore, persons port.PersonDirectory, catalog port.CatalogDirectory, notifier port.Notifier, logger zerolog.Logger) *LoanService {
	return &LoanService{
		loans:    loans,
		persons:  persons,
		catalog:  catalog,
		notifier: notifier,
		logger:   logger.With().Str("component", "loans").Logger(),
	}
}

// Open validates the borrower and item, reserves a copy and creates the
// Active loan. Reservation and loan creation commit together or not at
// all.
//
// The one-open-loan-per-borrower rule is advisory: it is checked by
// query, not enforced by a storage constraint, so two concurrent calls
// can both pass it.
func (s *LoanService) Open(ctx context.Context, borrowerID, itemID string, loanDate, dueDate time.Time) (*domain.Loan, error) {
	if dueDate.Before(loanDate) {
		return nil, ErrInvalidDateRange
	}

	person, err := s.persons.FindPerson(ctx, borrowerID)
	if err != nil {
		return nil, fmt.Errorf("find borrower: %w", err)
	}
	if person == nil {
		return nil, ErrBorrowerNotFound
	}
	if strings.EqualFold(person.Role, RoleAdmin) {
		return nil, ErrNotEligible
	}

	item, err := s.catalog.FindItem(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("find item: %w", err)
	}
	if item == nil {
		return nil, ErrItemNotFound
	}

	open, err := s.loans.CountOpenByBorrower(ctx, borrowerID)
	if err != nil {
		return nil, fmt.Errorf("count open loans: %w", err)
	}
	if open > 0 {
		return nil, ErrLoanAlreadyHeld
	}

	loan := domain.Loan{
		ID:         uuid.NewString(),
		BorrowerID: borrowerID,
		ItemID:     itemID,
		LoanDate:   loanDate,
		DueDate:    dueDate,
		State:      domain.LoanActive,
	}
	copyID, err := s.loans.CreateLoan(ctx, loan)
	if err != nil {
		return nil, fmt.Errorf("create loan: %w", err)
	}
	if copyID == "" {
		return nil, ErrNoCopyAvailable
	}
	loan.CopyID = copyID

	s.logger.Info().Str("loan_id", loan.ID).Str("borrower_id", borrowerID).
		Str("copy_id", copyID).Time("due", dueDate).Msg("loan opened")
	s.emit(ctx, port.Receipt{
		Event:      "loan.opened",
		LoanID:     loan.ID,
		BorrowerID: borrowerID,
		ItemID:     itemID,
		CopyID:     copyID,
		At:         loanDate,
	})
	return &loan, nil
}

// Return resolves an open loan as Returned and releases its copy. When
// the return is late a Late fine of daysLate x dailyRateCents is
// recorded in the same transaction and returned to the caller;
// otherwise the returned fine is nil.
func (s *LoanService) Return(ctx context.Context, loanID string, asOf time.Time, dailyRateCents int64) (*domain.Fine, error) {
	if dailyRateCents < 0 {
		return nil, ErrInvalidAmount
	}

	loan, err := s.loans.GetLoan(ctx, loanID)
	if err != nil {
		return nil, fmt.Errorf("get loan: %w", err)
	}
	if loan == nil {
		return nil, ErrLoanNotFound
	}
	if !loan.State.Open() {
		return nil, ErrLoanResolved
	}

	var fine *domain.Fine
	if days := domain.DaysLate(loan.DueDate, asOf); days > 0 {
		fine = &domain.Fine{
			ID:          uuid.NewString(),
			LoanID:      loan.ID,
			BorrowerID:  loan.BorrowerID,
			Kind:        domain.FineLate,
			AmountCents: days * dailyRateCents,
			Status:      domain.FinePending,
			Note:        fmt.Sprintf("returned %d day(s) late", days),
			CreatedAt:   asOf,
		}
	}

	closed, err := s.loans.CloseLoan(ctx, loanID, asOf, fine)
	if err != nil {
		return nil, fmt.Errorf("close loan: %w", err)
	}
	if !closed {
		return nil, ErrLoanResolved
	}

	ev := s.logger.Info().Str("loan_id", loanID).Time("returned", asOf)
	if fine != nil {
		ev = ev.Int64("fine_cents", fine.AmountCents)
	}
	ev.Msg("loan returned")

	receipt := port.Receipt{
		Event:      "loan.returned",
		LoanID:     loanID,
		BorrowerID: loan.BorrowerID,
		ItemID:     loan.ItemID,
		CopyID:     loan.CopyID,
		At:         asOf,
	}
	if fine != nil {
		receipt.FineID = fine.ID
		receipt.AmountCents = fine.AmountCents
	}
	s.emit(ctx, receipt)
	return fine, nil
}

// MarkLost resolves an open loan as Lost. The copy is marked Lost, not
// released, and exactly one Lost fine of flatFeeCents is recorded in
// the same transaction.
func (s *LoanService) MarkLost(ctx context.Context, loanID string, asOf time.Time, flatFeeCents int64) (*domain.Fine, error) {
	if flatFeeCents <= 0 {
		return nil, ErrInvalidAmount
	}

	loan, err := s.loans.GetLoan(ctx, loanID)
	if err != nil {
		return nil, fmt.Errorf("get loan: %w", err)
	}
	if loan == nil {
		return nil, ErrLoanNotFound
	}
	if !loan.State.Open() {
		return nil, ErrLoanResolved
	}

	fine := domain.Fine{
		ID:          uuid.NewString(),
		LoanID:      loan.ID,
		BorrowerID:  loan.BorrowerID,
		Kind:        domain.FineLost,
		AmountCents: flatFeeCents,
		Status:      domain.FinePending,
		Note:        "copy reported lost",
		CreatedAt:   asOf,
	}
	lost, err := s.loans.LoseLoan(ctx, loanID, asOf, fine)
	if err != nil {
		return nil, fmt.Errorf("lose loan: %w", err)
	}
	if !lost {
		return nil, ErrLoanResolved
	}

	s.logger.Info().Str("loan_id", loanID).Int64("fine_cents", fine.AmountCents).Msg("loan marked lost")
	s.emit(ctx, port.Receipt{
		Event:       "loan.lost",
		LoanID:      loanID,
		FineID:      fine.ID,
		BorrowerID:  loan.BorrowerID,
		ItemID:      loan.ItemID,
		CopyID:      loan.CopyID,
		AmountCents: fine.AmountCents,
		At:          asOf,
	})
	return &fine, nil
}

// SweepOverdue transitions every Active loan due strictly before asOf
// to Overdue and returns how many changed. Idempotent: a second sweep
// with the same date finds nothing left to transition. Creates no
// fines.
//
// Lateness is measured at day granularity, so asOf is truncated to its
// UTC date: a mid-day sweep on a loan's due day must not mark it
// Overdue while DaysLate still reports zero.
func (s *LoanService) SweepOverdue(ctx context.Context, asOf time.Time) (int64, error) {
	y, m, d := asOf.UTC().Date()
	cutoff := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)

	n, err := s.loans.MarkOverdue(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("mark overdue: %w", err)
	}
	if n > 0 {
		s.logger.Info().Int64("loans", n).Time("as_of", asOf).Msg("overdue sweep")
	}
	return n, nil
}

// Get returns a loan by identifier.
func (s *LoanService) Get(ctx context.Context, loanID string) (*domain.Loan, error) {
	loan, err := s.loans.GetLoan(ctx, loanID)
	if err != nil {
		return nil, fmt.Errorf("get loan: %w", err)
	}
	if loan == nil {
		return nil, ErrLoanNotFound
	}
	return loan, nil
}

// ListByBorrower returns the borrower's loans, newest first.
func (s *LoanService) ListByBorrower(ctx context.Context, borrowerID string) ([]domain.Loan, error) {
	return s.loans.ListLoansByBorrower(ctx, borrowerID)
}

// ListOpen returns every Active or Overdue loan.
func (s *LoanService) ListOpen(ctx context.Context) ([]domain.Loan, error) {
	return s.loans.ListOpenLoans(ctx)
}

// emit delivers a receipt best-effort. Dispatch failures are logged and
// never surfaced to the triggering operation.
func (s *LoanService) emit(ctx context.Context, r port.Receipt) {
	if err := s.notifier.Publish(ctx, r); err != nil {
		s.logger.Warn().Err(err).Str("event", r.Event).Msg("receipt dispatch failed")
	}
}
