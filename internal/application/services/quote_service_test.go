package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	impl "github.com/avatarctic/quote-cache/internal/application/services"
	"github.com/avatarctic/quote-cache/internal/core/domain/token"
	"github.com/avatarctic/quote-cache/internal/core/ports"
	"github.com/avatarctic/quote-cache/test/mocks"
)

const period = time.Hour

func newService(t *testing.T, repo ports.TokenRepository, sched ports.RefreshScheduler, clock *fakeClock) (*impl.QuoteService, ports.KeyedStore) {
	s := newStore(t)
	svc := impl.NewQuoteService(s, repo, sched, &impl.QuoteServiceConfig{FreshnessPeriod: period, Now: clock.Now}, logrus.New())
	return svc, s
}

// seed simulates a completed refresh at the clock's current time.
func seed(t *testing.T, s ports.KeyedStore, raw, value string, at time.Time) {
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, impl.CacheKey(raw), value))
	require.NoError(t, s.Put(ctx, impl.LastUpdateKey(impl.CacheKey(raw)), at.Format(time.RFC3339Nano)))
}

func TestFetch_UnseenKeySpawnsExactlyOneRefresh(t *testing.T) {
	sched := &mocks.RecordingScheduler{}
	svc, _ := newService(t, &mocks.TokenRepositoryMock{}, sched, newFakeClock())

	v, err := svc.FetchByAddress(context.Background(), "H", "0xA")
	require.NoError(t, err)
	assert.False(t, v.Valid)
	require.Equal(t, 1, sched.Count())
	assert.Equal(t, ports.RefreshJob{EntityHash: "H", Lookup: token.Lookup{Kind: token.LookupByAddress, Key: "0xA"}}, sched.Jobs[0])
}

func TestFetch_FreshValueServedWithoutRefresh(t *testing.T) {
	clock := newFakeClock()
	sched := &mocks.RecordingScheduler{}
	svc, s := newService(t, &mocks.TokenRepositoryMock{}, sched, clock)
	seed(t, s, "0xA", "1.23", clock.Now())

	clock.Advance(period - time.Second)
	v, err := svc.FetchByAddress(context.Background(), "H", "0xA")
	require.NoError(t, err)
	require.True(t, v.Valid)
	assert.Equal(t, "1.23", v.Decimal.String())
	assert.Zero(t, sched.Count())
}

func TestFetch_StaleValueServedWhileRefreshing(t *testing.T) {
	clock := newFakeClock()
	sched := &mocks.RecordingScheduler{}
	svc, s := newService(t, &mocks.TokenRepositoryMock{}, sched, clock)
	seed(t, s, "0xA", "1.23", clock.Now())

	clock.Advance(period + time.Second)
	v, err := svc.FetchByAddress(context.Background(), "H", "0xA")
	require.NoError(t, err)
	assert.Equal(t, "1.23", v.Decimal.String())
	assert.Equal(t, 1, sched.Count())
}

func TestFetch_FallsBackToDurableRate(t *testing.T) {
	clock := newFakeClock()
	repo := mocks.NewInMemoryTokenRepository(&token.Token{Hash: "H", ExchangeRate: decimal.NewNullDecimal(decimal.RequireFromString("42.5"))})
	sched := &mocks.RecordingScheduler{}
	svc, s := newService(t, repo, sched, clock)

	v, err := svc.FetchByAddress(context.Background(), "H", "0xA")
	require.NoError(t, err)
	assert.Equal(t, "42.5", v.Decimal.String())

	// A fresh zero is still no value: fall back and refresh again.
	seed(t, s, "0xA", "0", clock.Now())
	v, err = svc.FetchByAddress(context.Background(), "H", "0xA")
	require.NoError(t, err)
	assert.Equal(t, "42.5", v.Decimal.String())
	assert.Equal(t, 2, sched.Count())
}

func TestFetch_MissingEntityOrRepoErrorYieldsAbsent(t *testing.T) {
	repo := &mocks.TokenRepositoryMock{FindByHashFn: func(ctx context.Context, hash string) (*token.Token, error) {
		return nil, errors.New("connection refused")
	}}
	svc, _ := newService(t, repo, &mocks.RecordingScheduler{}, newFakeClock())

	v, err := svc.FetchBySymbol(context.Background(), "H", "ETH")
	require.NoError(t, err)
	assert.False(t, v.Valid)

	svc, _ = newService(t, &mocks.TokenRepositoryMock{}, &mocks.RecordingScheduler{}, newFakeClock())
	v, err = svc.FetchByAddress(context.Background(), "H", "0xA")
	require.NoError(t, err)
	assert.False(t, v.Valid)
}

// A lookup key that looks like a timestamp sub-key must not overwrite the
// stamp of the key it resembles.
func TestFetch_LookupKeyCannotTouchAnotherKeysStamp(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	sched := &mocks.RecordingScheduler{}
	svc, s := newService(t, &mocks.TokenRepositoryMock{}, sched, clock)
	seed(t, s, "0xA", "1.23", clock.Now())

	clock.Advance(time.Minute)
	provider := &mocks.QuoteProviderMock{QuoteByAddressFn: func(ctx context.Context, address string) ([]token.Quote, error) {
		return quotes("5"), nil
	}}
	impl.NewRefreshWorker(s, &mocks.TokenRepositoryMock{}, provider, clock.Now, nil).Refresh(ctx, addressJob("H", "0xA:last_update"))

	stamp, ok, _ := s.Get(ctx, impl.LastUpdateKey(impl.CacheKey("0xA")))
	require.True(t, ok)
	assert.Equal(t, clock.Now().Add(-time.Minute).Format(time.RFC3339Nano), stamp)

	clock.Advance(period - time.Minute)
	assert.False(t, svc.Policy().IsExpired(ctx, impl.CacheKey("0xA")))
	v, err := svc.FetchByAddress(ctx, "H", "0xA")
	require.NoError(t, err)
	assert.Equal(t, "1.23", v.Decimal.String())
	assert.Zero(t, sched.Count())
}

func TestFetch_RejectedSubmitStillAnswers(t *testing.T) {
	repo := mocks.NewInMemoryTokenRepository(&token.Token{Hash: "H", ExchangeRate: decimal.NewNullDecimal(decimal.NewFromInt(7))})
	svc, _ := newService(t, repo, &mocks.RecordingScheduler{Reject: true}, newFakeClock())

	v, err := svc.FetchByAddress(context.Background(), "H", "0xA")
	require.NoError(t, err)
	assert.Equal(t, "7", v.Decimal.String())
}

func TestFetch_InvalidInput(t *testing.T) {
	sched := &mocks.RecordingScheduler{}
	svc, _ := newService(t, &mocks.TokenRepositoryMock{}, sched, newFakeClock())

	_, err := svc.FetchByAddress(context.Background(), "", "0xA")
	require.ErrorIs(t, err, impl.ErrInvalidLookup)
	_, err = svc.FetchBySymbol(context.Background(), "H", " ")
	require.ErrorIs(t, err, impl.ErrInvalidLookup)
	assert.Zero(t, sched.Count())
}

func TestFetch_SymbolLookupSharesKeySpace(t *testing.T) {
	clock := newFakeClock()
	sched := &mocks.RecordingScheduler{}
	svc, s := newService(t, &mocks.TokenRepositoryMock{}, sched, clock)
	seed(t, s, "ETH", "3000", clock.Now())

	v, err := svc.FetchBySymbol(context.Background(), "H", "ETH")
	require.NoError(t, err)
	assert.Equal(t, "3000", v.Decimal.String())
	assert.Zero(t, sched.Count())
}

func TestTableLifecycle(t *testing.T) {
	svc := impl.NewQuoteService(newStoreUncreated(), &mocks.TokenRepositoryMock{}, &mocks.RecordingScheduler{}, nil, nil)
	ctx := context.Background()
	assert.False(t, svc.TableExists(ctx))
	require.NoError(t, svc.CreateTable(ctx))
	assert.True(t, svc.TableExists(ctx))
	assert.False(t, svc.ConsolidationEnabled())
	assert.Equal(t, 24*time.Hour, svc.Policy().Period())
}

// The end-to-end scenario: a cold read returns the durable value, the
// background refresh then writes the quote through to both stores, and
// later reads inside the window are served from cache without new refreshes.
func TestFetch_ColdReadWritesThroughInBackground(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	s := newStore(t)
	repo := mocks.NewInMemoryTokenRepository(&token.Token{Hash: "H"})
	release := make(chan struct{})
	var upstreamCalls int
	provider := &mocks.QuoteProviderMock{QuoteByAddressFn: func(ctx context.Context, address string) ([]token.Quote, error) {
		<-release
		upstreamCalls++
		return quotes("1.23"), nil
	}}
	pool := impl.NewRefreshPool(impl.NewRefreshWorker(s, repo, provider, clock.Now, nil), &impl.RefreshPoolConfig{Workers: 1}, nil)
	pool.Start()
	svc := impl.NewQuoteService(s, repo, pool, &impl.QuoteServiceConfig{FreshnessPeriod: period, Now: clock.Now}, nil)

	v, err := svc.FetchByAddress(ctx, "H", "0xA")
	require.NoError(t, err)
	assert.False(t, v.Valid, "refresh has not completed yet")

	close(release)
	require.Eventually(t, func() bool { return pool.InFlight() == 0 }, time.Second, time.Millisecond)

	assert.Equal(t, "1.23", repo.Rate("H").Decimal.String())
	cached, ok, _ := s.Get(ctx, "quote:0xA")
	require.True(t, ok)
	assert.Equal(t, "1.23", cached)

	for i := 0; i < 3; i++ {
		clock.Advance(time.Minute)
		v, err = svc.FetchByAddress(ctx, "H", "0xA")
		require.NoError(t, err)
		assert.Equal(t, "1.23", v.Decimal.String())
	}
	require.NoError(t, pool.Stop(ctx))
	assert.Equal(t, 1, upstreamCalls)
	assert.Equal(t, 1, repo.UpdateCount())
}
