package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

func (s *MySQLStore) GetRate(ctx context.Context, key string) (int64, bool, error) {
	var cents int64
	err := s.db.GetContext(ctx, &cents, `SELECT cents FROM rates WHERE rate_key = ?`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("query rate: %w", err)
	}
	return cents, true, nil
}

func (s *MySQLStore) SetRate(ctx context.Context, key string, cents int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO rates (rate_key, cents) VALUES (?, ?)
		ON DUPLICATE KEY UPDATE cents = VALUES(cents)`,
		key, cents,
	)
	if err != nil {
		return fmt.Errorf("upsert rate: %w", err)
	}
	return nil
}
