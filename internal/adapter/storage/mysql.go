package storage

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// MySQLStore implements every persistence port over a single MySQL
// database. Multi-row mutations run inside one transaction; state
// transitions are conditional UPDATEs whose RowsAffected result tells
// the caller whether the precondition held.
type MySQLStore struct {
	db *sqlx.DB
}

func NewMySQLStore(db *sqlx.DB) *MySQLStore {
	return &MySQLStore{db: db}
}

// InitSchema creates the tables when they do not exist yet.
func (s *MySQLStore) InitSchema(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS copies (
			id VARCHAR(36) PRIMARY KEY,
			item_id VARCHAR(64) NOT NULL,
			barcode VARCHAR(64) NOT NULL DEFAULT '',
			state VARCHAR(16) NOT NULL,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			INDEX idx_copies_item_state (item_id, state)
		)`,
		`CREATE TABLE IF NOT EXISTS loans (
			id VARCHAR(36) PRIMARY KEY,
			borrower_id VARCHAR(64) NOT NULL,
			copy_id VARCHAR(36) NOT NULL,
			item_id VARCHAR(64) NOT NULL,
			loan_date DATETIME NOT NULL,
			due_date DATETIME NOT NULL,
			return_date DATETIME NULL,
			state VARCHAR(16) NOT NULL,
			INDEX idx_loans_borrower (borrower_id),
			INDEX idx_loans_state_due (state, due_date)
		)`,
		`CREATE TABLE IF NOT EXISTS fines (
			id VARCHAR(36) PRIMARY KEY,
			loan_id VARCHAR(36) NOT NULL,
			borrower_id VARCHAR(64) NOT NULL,
			kind VARCHAR(16) NOT NULL,
			amount_cents BIGINT NOT NULL,
			status VARCHAR(16) NOT NULL,
			note TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			settled_at DATETIME NULL,
			INDEX idx_fines_loan (loan_id),
			INDEX idx_fines_borrower_status (borrower_id, status)
		)`,
		`CREATE TABLE IF NOT EXISTS rates (
			rate_key VARCHAR(64) PRIMARY KEY,
			cents BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS persons (
			id VARCHAR(64) PRIMARY KEY,
			role VARCHAR(32) NOT NULL,
			email VARCHAR(255) NOT NULL DEFAULT '',
			name VARCHAR(255) NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS items (
			id VARCHAR(64) PRIMARY KEY,
			title VARCHAR(255) NOT NULL DEFAULT '',
			total_copies INT NOT NULL DEFAULT 0
		)`,
	}

	for _, q := range queries {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}
