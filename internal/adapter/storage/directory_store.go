package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/opencirc/circulation/internal/port"
)

// The directory tables back the person and catalog lookups the engine
// consumes. They are owned by the surrounding system; the engine only
// reads them, except for the copy-count mirror updated after
// grow/shrink.

func (s *MySQLStore) FindPerson(ctx context.Context, id string) (*port.Person, error) {
	var p port.Person
	err := s.db.GetContext(ctx, &p, `SELECT id, role, email, name FROM persons WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query person: %w", err)
	}
	return &p, nil
}

func (s *MySQLStore) FindItem(ctx context.Context, id string) (*port.Item, error) {
	var it port.Item
	err := s.db.GetContext(ctx, &it, `SELECT id, title, total_copies FROM items WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query item: %w", err)
	}
	return &it, nil
}

func (s *MySQLStore) UpdateTotalCopies(ctx context.Context, itemID string, total int) error {
	_, err := s.db.ExecContext(ctx, `UPDATE items SET total_copies = ? WHERE id = ?`, total, itemID)
	if err != nil {
		return fmt.Errorf("update item copy count: %w", err)
	}
	return nil
}
