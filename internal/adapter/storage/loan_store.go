package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/opencirc/circulation/internal/core/domain"
)

func (s *MySQLStore) CreateLoan(ctx context.Context, loan domain.Loan) (string, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var copyID string
	err = tx.GetContext(ctx, &copyID, `
		SELECT id FROM copies
		WHERE item_id = ? AND state = ?
		ORDER BY id
		LIMIT 1
		FOR UPDATE`,
		loan.ItemID, domain.CopyAvailable,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("select available copy: %w", err)
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE copies SET state = ?, updated_at = NOW()
		WHERE id = ? AND state = ?`,
		domain.CopyLoaned, copyID, domain.CopyAvailable,
	)
	if err != nil {
		return "", fmt.Errorf("mark copy loaned: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return "", nil
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO loans (id, borrower_id, copy_id, item_id, loan_date, due_date, return_date, state)
		VALUES (?, ?, ?, ?, ?, ?, NULL, ?)`,
		loan.ID, loan.BorrowerID, copyID, loan.ItemID, loan.LoanDate, loan.DueDate, loan.State,
	)
	if err != nil {
		return "", fmt.Errorf("insert loan: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return copyID, nil
}

func (s *MySQLStore) GetLoan(ctx context.Context, loanID string) (*domain.Loan, error) {
	var l domain.Loan
	err := s.db.GetContext(ctx, &l, `
		SELECT id, borrower_id, copy_id, item_id, loan_date, due_date, return_date, state
		FROM loans WHERE id = ?`, loanID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query loan: %w", err)
	}
	return &l, nil
}

func (s *MySQLStore) ListLoansByBorrower(ctx context.Context, borrowerID string) ([]domain.Loan, error) {
	var loans []domain.Loan
	err := s.db.SelectContext(ctx, &loans, `
		SELECT id, borrower_id, copy_id, item_id, loan_date, due_date, return_date, state
		FROM loans WHERE borrower_id = ? ORDER BY loan_date DESC, id`, borrowerID,
	)
	if err != nil {
		return nil, fmt.Errorf("query loans: %w", err)
	}
	return loans, nil
}

func (s *MySQLStore) ListOpenLoans(ctx context.Context) ([]domain.Loan, error) {
	var loans []domain.Loan
	err := s.db.SelectContext(ctx, &loans, `
		SELECT id, borrower_id, copy_id, item_id, loan_date, due_date, return_date, state
		FROM loans WHERE state IN (?, ?) ORDER BY due_date, id`,
		domain.LoanActive, domain.LoanOverdue,
	)
	if err != nil {
		return nil, fmt.Errorf("query open loans: %w", err)
	}
	return loans, nil
}

func (s *MySQLStore) CountOpenByBorrower(ctx context.Context, borrowerID string) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n, `
		SELECT COUNT(*) FROM loans WHERE borrower_id = ? AND state IN (?, ?)`,
		borrowerID, domain.LoanActive, domain.LoanOverdue,
	)
	if err != nil {
		return 0, fmt.Errorf("count open loans: %w", err)
	}
	return n, nil
}

func (s *MySQLStore) MarkOverdue(ctx context.Context, before time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE loans SET state = ?
		WHERE state = ? AND due_date < ?`,
		domain.LoanOverdue, domain.LoanActive, before,
	)
	if err != nil {
		return 0, fmt.Errorf("mark overdue: %w", err)
	}
	return result.RowsAffected()
}

func (s *MySQLStore) CloseLoan(ctx context.Context, loanID string, returnDate time.Time, fine *domain.Fine) (bool, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var copyID string
	err = tx.GetContext(ctx, &copyID, `SELECT copy_id FROM loans WHERE id = ? FOR UPDATE`, loanID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("select loan: %w", err)
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE loans SET state = ?, return_date = ?
		WHERE id = ? AND state IN (?, ?)`,
		domain.LoanReturned, returnDate, loanID, domain.LoanActive, domain.LoanOverdue,
	)
	if err != nil {
		return false, fmt.Errorf("close loan: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return false, nil
	}

	result, err = tx.ExecContext(ctx, `
		UPDATE copies SET state = ?, updated_at = NOW()
		WHERE id = ? AND state = ?`,
		domain.CopyAvailable, copyID, domain.CopyLoaned,
	)
	if err != nil {
		return false, fmt.Errorf("release copy: %w", err)
	}
	rows, _ = result.RowsAffected()
	if rows == 0 {
		return false, fmt.Errorf("copy %s of loan %s is not loaned", copyID, loanID)
	}

	if fine != nil {
		if err := insertFine(ctx, tx, *fine); err != nil {
			return false, err
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return true, nil
}

func (s *MySQLStore) LoseLoan(ctx context.Context, loanID string, asOf time.Time, fine domain.Fine) (bool, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var copyID string
	err = tx.GetContext(ctx, &copyID, `SELECT copy_id FROM loans WHERE id = ? FOR UPDATE`, loanID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("select loan: %w", err)
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE loans SET state = ?, return_date = ?
		WHERE id = ? AND state IN (?, ?)`,
		domain.LoanLost, asOf, loanID, domain.LoanActive, domain.LoanOverdue,
	)
	if err != nil {
		return false, fmt.Errorf("lose loan: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return false, nil
	}

	result, err = tx.ExecContext(ctx, `
		UPDATE copies SET state = ?, updated_at = NOW()
		WHERE id = ? AND state = ?`,
		domain.CopyLost, copyID, domain.CopyLoaned,
	)
	if err != nil {
		return false, fmt.Errorf("mark copy lost: %w", err)
	}
	rows, _ = result.RowsAffected()
	if rows == 0 {
		return false, fmt.Errorf("copy %s of loan %s is not loaned", copyID, loanID)
	}

	if err := insertFine(ctx, tx, fine); err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return true, nil
}

func insertFine(ctx context.Context, tx *sqlx.Tx, f domain.Fine) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO fines (id, loan_id, borrower_id, kind, amount_cents, status, note, created_at, settled_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, NULL)`,
		f.ID, f.LoanID, f.BorrowerID, f.Kind, f.AmountCents, f.Status, f.Note, f.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert fine: %w", err)
	}
	return nil
}
