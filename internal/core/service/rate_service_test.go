package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencirc/circulation/internal/core/domain"
	"github.com/opencirc/circulation/internal/core/service"
)

func TestRate_DefaultWhenUnset(t *testing.T) {
	env := newTestEnv(t)

	cents, err := env.rates.Rate(context.Background(), domain.RateLateFeePerDay, 75)
	require.NoError(t, err)
	assert.Equal(t, int64(75), cents)
}

func TestRate_LastWriteWins(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.rates.SetRate(ctx, domain.RateLostItemFee, 1500))
	require.NoError(t, env.rates.SetRate(ctx, domain.RateLostItemFee, 2500))

	cents, err := env.rates.Rate(ctx, domain.RateLostItemFee, domain.DefaultLostItemFeeCents)
	require.NoError(t, err)
	assert.Equal(t, int64(2500), cents)
}

func TestRate_ChangeVisibleOnNextRead(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.rates.SetRate(ctx, domain.RateLateFeePerDay, 50))
	first, err := env.rates.Rate(ctx, domain.RateLateFeePerDay, 0)
	require.NoError(t, err)

	require.NoError(t, env.rates.SetRate(ctx, domain.RateLateFeePerDay, 80))
	second, err := env.rates.Rate(ctx, domain.RateLateFeePerDay, 0)
	require.NoError(t, err)

	assert.Equal(t, int64(50), first)
	assert.Equal(t, int64(80), second)
}

func TestRate_Validation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.rates.Rate(ctx, "no-such-rate", 0)
	assert.ErrorIs(t, err, service.ErrInvalidRateKey)

	err = env.rates.SetRate(ctx, domain.RateLateFeePerDay, -1)
	assert.ErrorIs(t, err, service.ErrInvalidAmount)
}
