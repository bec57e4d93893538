package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/opencirc/circulation/internal/core/domain"
	"github.com/opencirc/circulation/internal/port"
)

// FineService records monetary fines and their settlement. Settlement
// is terminal: Pending goes to Paid or Waived, never back.
type FineService struct {
	fines    port.FineStore
	loans    port.LoanStore
	notifier port.Notifier
	logger   zerolog.Logger
}

func NewFineService(fines port.FineStore, loans port.LoanStore, notifier port.Notifier, logger zerolog.Logger) *FineService {
	return &FineService{
		fines:    fines,
		loans:    loans,
		notifier: notifier,
		logger:   logger.With().Str("component", "fines").Logger(),
	}
}

// Create records a Pending fine against a loan. At most one Lost fine
// may exist per loan, and at most one Pending fine per loan and kind.
func (s *FineService) Create(ctx context.Context, loanID, borrowerID string, kind domain.FineKind, amountCents int64, note string) (*domain.Fine, error) {
	if amountCents <= 0 {
		return nil, ErrInvalidAmount
	}

	loan, err := s.loans.GetLoan(ctx, loanID)
	if err != nil {
		return nil, fmt.Errorf("get loan: %w", err)
	}
	if loan == nil {
		return nil, ErrLoanNotFound
	}

	existing, err := s.fines.ListFinesByLoan(ctx, loanID)
	if err != nil {
		return nil, fmt.Errorf("list fines: %w", err)
	}
	for _, f := range existing {
		if kind == domain.FineLost && f.Kind == domain.FineLost {
			return nil, ErrDuplicateFine
		}
		if f.Kind == kind && f.Status == domain.FinePending {
			return nil, ErrDuplicateFine
		}
	}

	fine := domain.Fine{
		ID:          uuid.NewString(),
		LoanID:      loanID,
		BorrowerID:  borrowerID,
		Kind:        kind,
		AmountCents: amountCents,
		Status:      domain.FinePending,
		Note:        note,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.fines.CreateFine(ctx, fine); err != nil {
		return nil, fmt.Errorf("create fine: %w", err)
	}

	s.logger.Info().Str("fine_id", fine.ID).Str("loan_id", loanID).
		Str("kind", string(kind)).Int64("amount_cents", amountCents).Msg("fine created")
	return &fine, nil
}

// SettlePaid transitions a Pending fine to Paid.
func (s *FineService) SettlePaid(ctx context.Context, fineID string, at time.Time) error {
	return s.settle(ctx, fineID, domain.FinePaid, at)
}

// SettleWaived transitions a Pending fine to Waived.
func (s *FineService) SettleWaived(ctx context.Context, fineID string, at time.Time) error {
	return s.settle(ctx, fineID, domain.FineWaived, at)
}

func (s *FineService) settle(ctx context.Context, fineID string, status domain.FineStatus, at time.Time) error {
	fine, err := s.fines.GetFine(ctx, fineID)
	if err != nil {
		return fmt.Errorf("get fine: %w", err)
	}
	if fine == nil {
		return ErrFineNotFound
	}

	ok, err := s.fines.SettleFine(ctx, fineID, status, at)
	if err != nil {
		return fmt.Errorf("settle fine: %w", err)
	}
	if !ok {
		return ErrFineSettled
	}

	s.logger.Info().Str("fine_id", fineID).Str("status", string(status)).Msg("fine settled")
	s.emit(ctx, port.Receipt{
		Event:       "fine." + string(status),
		FineID:      fineID,
		LoanID:      fine.LoanID,
		BorrowerID:  fine.BorrowerID,
		AmountCents: fine.AmountCents,
		At:          at,
	})
	return nil
}

// Get returns a fine by identifier.
func (s *FineService) Get(ctx context.Context, fineID string) (*domain.Fine, error) {
	fine, err := s.fines.GetFine(ctx, fineID)
	if err != nil {
		return nil, fmt.Errorf("get fine: %w", err)
	}
	if fine == nil {
		return nil, ErrFineNotFound
	}
	return fine, nil
}

func (s *FineService) ListByLoan(ctx context.Context, loanID string) ([]domain.Fine, error) {
	return s.fines.ListFinesByLoan(ctx, loanID)
}

func (s *FineService) ListByBorrower(ctx context.Context, borrowerID string) ([]domain.Fine, error) {
	return s.fines.ListFinesByBorrower(ctx, borrowerID)
}

func (s *FineService) ListPending(ctx context.Context) ([]domain.Fine, error) {
	return s.fines.ListPendingFines(ctx)
}

func (s *FineService) ListSettled(ctx context.Context) ([]domain.Fine, error) {
	return s.fines.ListSettledFines(ctx)
}

// TotalPending sums the borrower's outstanding fine amounts in cents.
func (s *FineService) TotalPending(ctx context.Context, borrowerID string) (int64, error) {
	return s.fines.SumPending(ctx, borrowerID)
}

// CountPending counts the borrower's outstanding fines.
func (s *FineService) CountPending(ctx context.Context, borrowerID string) (int, error) {
	return s.fines.CountPending(ctx, borrowerID)
}

func (s *FineService) emit(ctx context.Context, r port.Receipt) {
	if err := s.notifier.Publish(ctx, r); err != nil {
		s.logger.Warn().Err(err).Str("event", r.Event).Msg("receipt dispatch failed")
	}
}
