package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/opencirc/circulation/internal/core/domain"
)

const fineColumns = `id, loan_id, borrower_id, kind, amount_cents, status, note, created_at, settled_at`

func (s *MySQLStore) CreateFine(ctx context.Context, f domain.Fine) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO fines (`+fineColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, NULL)`,
		f.ID, f.LoanID, f.BorrowerID, f.Kind, f.AmountCents, f.Status, f.Note, f.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert fine: %w", err)
	}
	return nil
}

func (s *MySQLStore) GetFine(ctx context.Context, fineID string) (*domain.Fine, error) {
	var f domain.Fine
	err := s.db.GetContext(ctx, &f, `
		SELECT `+fineColumns+` FROM fines WHERE id = ?`, fineID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query fine: %w", err)
	}
	return &f, nil
}

func (s *MySQLStore) SettleFine(ctx context.Context, fineID string, status domain.FineStatus, at time.Time) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE fines SET status = ?, settled_at = ?
		WHERE id = ? AND status = ?`,
		status, at, fineID, domain.FinePending,
	)
	if err != nil {
		return false, fmt.Errorf("settle fine: %w", err)
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

func (s *MySQLStore) ListFinesByLoan(ctx context.Context, loanID string) ([]domain.Fine, error) {
	return s.listFines(ctx, `loan_id = ?`, loanID)
}

func (s *MySQLStore) ListFinesByBorrower(ctx context.Context, borrowerID string) ([]domain.Fine, error) {
	return s.listFines(ctx, `borrower_id = ?`, borrowerID)
}

func (s *MySQLStore) ListPendingFines(ctx context.Context) ([]domain.Fine, error) {
	return s.listFines(ctx, `status = ?`, string(domain.FinePending))
}

func (s *MySQLStore) ListSettledFines(ctx context.Context) ([]domain.Fine, error) {
	return s.listFines(ctx, `status <> ?`, string(domain.FinePending))
}

func (s *MySQLStore) listFines(ctx context.Context, where string, arg any) ([]domain.Fine, error) {
	var fines []domain.Fine
	err := s.db.SelectContext(ctx, &fines, `
		SELECT `+fineColumns+` FROM fines WHERE `+where+` ORDER BY created_at, id`, arg,
	)
	if err != nil {
		return nil, fmt.Errorf("query fines: %w", err)
	}
	return fines, nil
}

func (s *MySQLStore) SumPending(ctx context.Context, borrowerID string) (int64, error) {
	var total int64
	err := s.db.GetContext(ctx, &total, `
		SELECT COALESCE(SUM(amount_cents), 0) FROM fines
		WHERE borrower_id = ? AND status = ?`,
		borrowerID, domain.FinePending,
	)
	if err != nil {
		return 0, fmt.Errorf("sum fines: %w", err)
	}
	return total, nil
}

func (s *MySQLStore) CountPending(ctx context.Context, borrowerID string) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n, `
		SELECT COUNT(*) FROM fines WHERE borrower_id = ? AND status = ?`,
		borrowerID, domain.FinePending,
	)
	if err != nil {
		return 0, fmt.Errorf("count fines: %w", err)
	}
	return n, nil
}
