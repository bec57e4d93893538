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

// InventoryService owns the availability state of physical copies.
type InventoryService struct {
	copies  port.CopyStore
	catalog port.CatalogDirectory
	logger  zerolog.Logger
}

func NewInventoryService(copies port.CopyStore, catalog port.CatalogDirectory, logger zerolog.Logger) *InventoryService {
	return &InventoryService{
		copies:  copies,
		catalog: catalog,
		logger:  logger.With().Str("component", "inventory").Logger(),
	}
}

// Reserve marks the first Available copy of the item Loaned and returns
// it. Selection is deterministic: the lowest copy identifier wins.
func (s *InventoryService) Reserve(ctx context.Context, itemID string) (*domain.Copy, error) {
	item, err := s.catalog.FindItem(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("find item: %w", err)
	}
	if item == nil {
		return nil, ErrItemNotFound
	}

	c, err := s.copies.ReserveAvailable(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("reserve copy: %w", err)
	}
	if c == nil {
		return nil, ErrNoCopyAvailable
	}
	return c, nil
}

// Release marks a Loaned copy Available.
func (s *InventoryService) Release(ctx context.Context, copyID string) error {
	c, err := s.copies.GetCopy(ctx, copyID)
	if err != nil {
		return fmt.Errorf("get copy: %w", err)
	}
	if c == nil {
		return ErrCopyNotFound
	}

	ok, err := s.copies.ReleaseCopy(ctx, copyID)
	if err != nil {
		return fmt.Errorf("release copy: %w", err)
	}
	if !ok {
		return ErrCopyNotLoaned
	}
	return nil
}

// MarkLost marks a copy Lost. Idempotent when the copy is already Lost.
func (s *InventoryService) MarkLost(ctx context.Context, copyID string) error {
	c, err := s.copies.GetCopy(ctx, copyID)
	if err != nil {
		return fmt.Errorf("get copy: %w", err)
	}
	if c == nil {
		return ErrCopyNotFound
	}
	if c.State == domain.CopyLost {
		return nil
	}

	if _, err := s.copies.MarkCopyLost(ctx, copyID); err != nil {
		return fmt.Errorf("mark copy lost: %w", err)
	}
	return nil
}

// CountAvailable returns the number of Available copies of the item.
func (s *InventoryService) CountAvailable(ctx context.Context, itemID string) (int, error) {
	stock, err := s.copies.CountStock(ctx, itemID)
	if err != nil {
		return 0, fmt.Errorf("count stock: %w", err)
	}
	return stock.Available, nil
}

// Stock returns the item's full availability breakdown.
func (s *InventoryService) Stock(ctx context.Context, itemID string) (domain.Stock, error) {
	stock, err := s.copies.CountStock(ctx, itemID)
	if err != nil {
		return domain.Stock{}, fmt.Errorf("count stock: %w", err)
	}
	return stock, nil
}

// ListCopies returns every copy of the item ordered by identifier.
func (s *InventoryService) ListCopies(ctx context.Context, itemID string) ([]domain.Copy, error) {
	return s.copies.ListCopies(ctx, itemID)
}

// GrowTo adds new Available copies until the item holds target copies
// in total. Returns the number added; a no-op when the item already
// holds target or more.
func (s *InventoryService) GrowTo(ctx context.Context, itemID string, target int) (int, error) {
	if target < 0 {
		return 0, ErrInvalidQuantity
	}
	item, err := s.catalog.FindItem(ctx, itemID)
	if err != nil {
		return 0, fmt.Errorf("find item: %w", err)
	}
	if item == nil {
		return 0, ErrItemNotFound
	}

	stock, err := s.copies.CountStock(ctx, itemID)
	if err != nil {
		return 0, fmt.Errorf("count stock: %w", err)
	}
	missing := target - stock.Total()
	if missing <= 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	fresh := make([]domain.Copy, 0, missing)
	for i := 0; i < missing; i++ {
		fresh = append(fresh, domain.Copy{
			ID:        uuid.NewString(),
			ItemID:    itemID,
			State:     domain.CopyAvailable,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
	if err := s.copies.AddCopies(ctx, fresh); err != nil {
		return 0, fmt.Errorf("add copies: %w", err)
	}

	if err := s.catalog.UpdateTotalCopies(ctx, itemID, target); err != nil {
		s.logger.Warn().Err(err).Str("item_id", itemID).Msg("catalog copy-count update failed")
	}
	s.logger.Info().Str("item_id", itemID).Int("added", missing).Msg("stock grown")
	return missing, nil
}

// ShrinkTo removes Available copies until the item holds target copies
// in total. Loaned and Lost copies are never removed; when too few
// Available copies exist the call removes what it can and reports the
// shortfall instead of failing.
func (s *InventoryService) ShrinkTo(ctx context.Context, itemID string, target int) (removed, shortfall int, err error) {
	if target < 0 {
		return 0, 0, ErrInvalidQuantity
	}
	item, err := s.catalog.FindItem(ctx, itemID)
	if err != nil {
		return 0, 0, fmt.Errorf("find item: %w", err)
	}
	if item == nil {
		return 0, 0, ErrItemNotFound
	}

	stock, err := s.copies.CountStock(ctx, itemID)
	if err != nil {
		return 0, 0, fmt.Errorf("count stock: %w", err)
	}
	excess := stock.Total() - target
	if excess <= 0 {
		return 0, 0, nil
	}

	removed, err = s.copies.RemoveAvailable(ctx, itemID, excess)
	if err != nil {
		return 0, 0, fmt.Errorf("remove copies: %w", err)
	}
	shortfall = excess - removed

	if err := s.catalog.UpdateTotalCopies(ctx, itemID, stock.Total()-removed); err != nil {
		s.logger.Warn().Err(err).Str("item_id", itemID).Msg("catalog copy-count update failed")
	}
	if shortfall > 0 {
		s.logger.Info().Str("item_id", itemID).Int("removed", removed).Int("shortfall", shortfall).
			Msg("stock shrink fell short, non-available copies retained")
	}
	return removed, shortfall, nil
}
