package service

import (
	"context"
	"fmt"

	"github.com/opencirc/circulation/internal/core/domain"
	"github.com/opencirc/circulation/internal/port"
)

// RateService reads and writes the numeric rate settings. Reads go
// through to the store on every call; nothing is cached across
// requests, so a rate change takes effect on the next operation.
type RateService struct {
	rates port.RateStore
}

func NewRateService(rates port.RateStore) *RateService {
	return &RateService{rates: rates}
}

func knownRateKey(key string) bool {
	return key == domain.RateLateFeePerDay || key == domain.RateLostItemFee
}

// Rate returns the stored value for key in cents, or defaultCents when
// the key has never been set.
func (s *RateService) Rate(ctx context.Context, key string, defaultCents int64) (int64, error) {
	if !knownRateKey(key) {
		return 0, ErrInvalidRateKey
	}
	cents, ok, err := s.rates.GetRate(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("get rate: %w", err)
	}
	if !ok {
		return defaultCents, nil
	}
	return cents, nil
}

// SetRate upserts the value for key. Last write wins.
func (s *RateService) SetRate(ctx context.Context, key string, cents int64) error {
	if !knownRateKey(key) {
		return ErrInvalidRateKey
	}
	if cents < 0 {
		return ErrInvalidAmount
	}
	if err := s.rates.SetRate(ctx, key, cents); err != nil {
		return fmt.Errorf("set rate: %w", err)
	}
	return nil
}
