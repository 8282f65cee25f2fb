package repositories_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/avatarctic/quote-cache/internal/core/domain/token"
	"github.com/avatarctic/quote-cache/internal/core/ports"
	"github.com/avatarctic/quote-cache/internal/infrastructure/repositories"
	"github.com/avatarctic/quote-cache/test/mocks"
)

func TestCachingTokenRepository_ServesSecondReadFromCache(t *testing.T) {
	var calls atomic.Int32
	inner := &mocks.TokenRepositoryMock{FindByHashFn: func(ctx context.Context, hash string) (*token.Token, error) {
		calls.Add(1)
		return &token.Token{Hash: hash, ExchangeRate: decimal.NewNullDecimal(decimal.RequireFromString("42.5"))}, nil
	}}
	repo := repositories.NewCachingTokenRepository(inner, mocks.NewCacheMock(), time.Minute)

	for i := 0; i < 3; i++ {
		tk, err := repo.FindByHash(context.Background(), "H")
		require.NoError(t, err)
		require.True(t, tk.ExchangeRate.Valid)
		require.Equal(t, "42.5", tk.ExchangeRate.Decimal.String())
	}
	require.EqualValues(t, 1, calls.Load())
}

func TestCachingTokenRepository_NotFoundIsNotCached(t *testing.T) {
	cache := mocks.NewCacheMock()
	repo := repositories.NewCachingTokenRepository(&mocks.TokenRepositoryMock{}, cache, time.Minute)

	_, err := repo.FindByHash(context.Background(), "missing")
	require.True(t, errors.Is(err, ports.ErrTokenNotFound))
	require.Zero(t, cache.Sets)
}

func TestCachingTokenRepository_UpdateOverwritesCache(t *testing.T) {
	backing := mocks.NewInMemoryTokenRepository(&token.Token{Hash: "H"})
	repo := repositories.NewCachingTokenRepository(backing, mocks.NewCacheMock(), time.Minute)
	ctx := context.Background()

	tk, err := repo.FindByHash(ctx, "H")
	require.NoError(t, err)
	require.False(t, tk.ExchangeRate.Valid)

	require.NoError(t, repo.UpdateExchangeRate(ctx, tk, decimal.RequireFromString("1.23")))

	again, err := repo.FindByHash(ctx, "H")
	require.NoError(t, err)
	require.True(t, again.ExchangeRate.Valid)
	require.Equal(t, "1.23", again.ExchangeRate.Decimal.String())
}

func TestCachingTokenRepository_NilCachePassesThrough(t *testing.T) {
	backing := mocks.NewInMemoryTokenRepository(&token.Token{Hash: "H"})
	repo := repositories.NewCachingTokenRepository(backing, nil, time.Minute)
	ctx := context.Background()

	tk, err := repo.FindByHash(ctx, "H")
	require.NoError(t, err)
	require.NoError(t, repo.UpdateExchangeRate(ctx, tk, decimal.NewFromInt(2)))
	require.Equal(t, 1, backing.UpdateCount())
}
