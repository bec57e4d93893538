package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/opencirc/circulation/internal/core/domain"
)

func (s *MySQLStore) AddCopies(ctx context.Context, copies []domain.Copy) error {
	if len(copies) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, c := range copies {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO copies (id, item_id, barcode, state, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			c.ID, c.ItemID, c.Barcode, c.State, c.CreatedAt, c.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert copy: %w", err)
		}
	}

	return tx.Commit()
}

func (s *MySQLStore) RemoveAvailable(ctx context.Context, itemID string, n int) (int, error) {
	if n <= 0 {
		return 0, nil
	}

	result, err := s.db.ExecContext(ctx, `
		DELETE FROM copies
		WHERE item_id = ? AND state = ?
		ORDER BY id
		LIMIT ?`,
		itemID, domain.CopyAvailable, n,
	)
	if err != nil {
		return 0, fmt.Errorf("delete copies: %w", err)
	}

	rows, _ := result.RowsAffected()
	return int(rows), nil
}

func (s *MySQLStore) GetCopy(ctx context.Context, copyID string) (*domain.Copy, error) {
	var c domain.Copy
	err := s.db.GetContext(ctx, &c, `
		SELECT id, item_id, barcode, state, created_at, updated_at
		FROM copies WHERE id = ?`, copyID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query copy: %w", err)
	}
	return &c, nil
}

func (s *MySQLStore) ListCopies(ctx context.Context, itemID string) ([]domain.Copy, error) {
	var copies []domain.Copy
	err := s.db.SelectContext(ctx, &copies, `
		SELECT id, item_id, barcode, state, created_at, updated_at
		FROM copies WHERE item_id = ? ORDER BY id`, itemID,
	)
	if err != nil {
		return nil, fmt.Errorf("query copies: %w", err)
	}
	return copies, nil
}

func (s *MySQLStore) CountStock(ctx context.Context, itemID string) (domain.Stock, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT state, COUNT(*) FROM copies WHERE item_id = ? GROUP BY state`, itemID,
	)
	if err != nil {
		return domain.Stock{}, fmt.Errorf("count copies: %w", err)
	}
	defer rows.Close()

	var stock domain.Stock
	for rows.Next() {
		var state domain.CopyState
		var n int
		if err := rows.Scan(&state, &n); err != nil {
			return domain.Stock{}, fmt.Errorf("scan count: %w", err)
		}
		switch state {
		case domain.CopyAvailable:
			stock.Available = n
		case domain.CopyLoaned:
			stock.Loaned = n
		case domain.CopyLost:
			stock.Lost = n
		}
	}
	return stock, rows.Err()
}

func (s *MySQLStore) ReserveAvailable(ctx context.Context, itemID string) (*domain.Copy, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var c domain.Copy
	err = tx.GetContext(ctx, &c, `
		SELECT id, item_id, barcode, state, created_at, updated_at
		FROM copies
		WHERE item_id = ? AND state = ?
		ORDER BY id
		LIMIT 1
		FOR UPDATE`,
		itemID, domain.CopyAvailable,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select available copy: %w", err)
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE copies SET state = ?, updated_at = NOW()
		WHERE id = ? AND state = ?`,
		domain.CopyLoaned, c.ID, domain.CopyAvailable,
	)
	if err != nil {
		return nil, fmt.Errorf("mark copy loaned: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return nil, nil
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	c.State = domain.CopyLoaned
	return &c, nil
}

func (s *MySQLStore) ReleaseCopy(ctx context.Context, copyID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE copies SET state = ?, updated_at = NOW()
		WHERE id = ? AND state = ?`,
		domain.CopyAvailable, copyID, domain.CopyLoaned,
	)
	if err != nil {
		return false, fmt.Errorf("release copy: %w", err)
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

func (s *MySQLStore) MarkCopyLost(ctx context.Context, copyID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE copies SET state = ?, updated_at = NOW()
		WHERE id = ? AND state <> ?`,
		domain.CopyLost, copyID, domain.CopyLost,
	)
	if err != nil {
		return false, fmt.Errorf("mark copy lost: %w", err)
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}
