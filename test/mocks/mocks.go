package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/avatarctic/quote-cache/internal/core/domain/token"
	"github.com/avatarctic/quote-cache/internal/core/ports"
)

// TokenRepositoryMock is a lightweight mock for ports.TokenRepository.
type TokenRepositoryMock struct {
	FindByHashFn         func(ctx context.Context, hash string) (*token.Token, error)
	UpdateExchangeRateFn func(ctx context.Context, t *token.Token, rate decimal.Decimal) error
}

func (m *TokenRepositoryMock) FindByHash(ctx context.Context, hash string) (*token.Token, error) {
	if m.FindByHashFn != nil {
		return m.FindByHashFn(ctx, hash)
	}
	return nil, ports.ErrTokenNotFound
}

func (m *TokenRepositoryMock) UpdateExchangeRate(ctx context.Context, t *token.Token, rate decimal.Decimal) error {
	if m.UpdateExchangeRateFn != nil {
		return m.UpdateExchangeRateFn(ctx, t, rate)
	}
	return nil
}

// InMemoryTokenRepository is a map-backed ports.TokenRepository for tests
// that need update-then-read behavior.
type InMemoryTokenRepository struct {
	mu      sync.Mutex
	tokens  map[string]*token.Token
	Updates int
}

func NewInMemoryTokenRepository(tokens ...*token.Token) *InMemoryTokenRepository {
	r := &InMemoryTokenRepository{tokens: make(map[string]*token.Token)}
	for _, t := range tokens {
		r.tokens[t.Hash] = t
	}
	return r
}

func (r *InMemoryTokenRepository) FindByHash(ctx context.Context, hash string) (*token.Token, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[hash]
	if !ok {
		return nil, ports.ErrTokenNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *InMemoryTokenRepository) UpdateExchangeRate(ctx context.Context, t *token.Token, rate decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.tokens[t.Hash]
	if !ok {
		return ports.ErrTokenNotFound
	}
	stored.ExchangeRate = decimal.NewNullDecimal(rate)
	t.ExchangeRate = stored.ExchangeRate
	r.Updates++
	return nil
}

// Rate returns the stored exchange rate for hash.
func (r *InMemoryTokenRepository) Rate(hash string) decimal.NullDecimal {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.tokens[hash]; ok {
		return t.ExchangeRate
	}
	return decimal.NullDecimal{}
}

func (r *InMemoryTokenRepository) UpdateCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Updates
}

// QuoteProviderMock is a lightweight mock for ports.QuoteProvider.
type QuoteProviderMock struct {
	QuoteBySymbolFn  func(ctx context.Context, symbol string) ([]token.Quote, error)
	QuoteByAddressFn func(ctx context.Context, address string) ([]token.Quote, error)
}

func (m *QuoteProviderMock) QuoteBySymbol(ctx context.Context, symbol string) ([]token.Quote, error) {
	if m.QuoteBySymbolFn != nil {
		return m.QuoteBySymbolFn(ctx, symbol)
	}
	return nil, nil
}

func (m *QuoteProviderMock) QuoteByAddress(ctx context.Context, address string) ([]token.Quote, error) {
	if m.QuoteByAddressFn != nil {
		return m.QuoteByAddressFn(ctx, address)
	}
	return nil, nil
}

// RecordingScheduler records submitted jobs instead of running them.
type RecordingScheduler struct {
	mu     sync.Mutex
	Jobs   []ports.RefreshJob
	Reject bool
}

func (s *RecordingScheduler) Submit(job ports.RefreshJob) bool {
	if s.Reject {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Jobs = append(s.Jobs, job)
	return true
}

func (s *RecordingScheduler) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Jobs)
}

// CacheMock is a map-backed ports.Cache that ignores TTLs.
type CacheMock struct {
	mu   sync.Mutex
	data map[string][]byte
	Sets int
}

func NewCacheMock() *CacheMock {
	return &CacheMock{data: make(map[string][]byte)}
}

func (c *CacheMock) Get(ctx context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.data[key]
	return b, ok, nil
}

func (c *CacheMock) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	c.Sets++
	return nil
}

func (c *CacheMock) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

// HealthCheckerMock is a lightweight mock for ports.HealthChecker.
type HealthCheckerMock struct {
	NameValue string
	Err       error
}

func (h *HealthCheckerMock) Name() string                    { return h.NameValue }
func (h *HealthCheckerMock) Check(ctx context.Context) error { return h.Err }

// QuoteServiceMock is a lightweight mock for ports.QuoteService.
type QuoteServiceMock struct {
	FetchByAddressFn func(ctx context.Context, entityHash, address string) (decimal.NullDecimal, error)
	FetchBySymbolFn  func(ctx context.Context, entityHash, symbol string) (decimal.NullDecimal, error)
	Created          bool
}

func (m *QuoteServiceMock) FetchByAddress(ctx context.Context, entityHash, address string) (decimal.NullDecimal, error) {
	if m.FetchByAddressFn != nil {
		return m.FetchByAddressFn(ctx, entityHash, address)
	}
	return decimal.NullDecimal{}, nil
}

func (m *QuoteServiceMock) FetchBySymbol(ctx context.Context, entityHash, symbol string) (decimal.NullDecimal, error) {
	if m.FetchBySymbolFn != nil {
		return m.FetchBySymbolFn(ctx, entityHash, symbol)
	}
	return decimal.NullDecimal{}, nil
}

func (m *QuoteServiceMock) TableExists(ctx context.Context) bool { return m.Created }

func (m *QuoteServiceMock) CreateTable(ctx context.Context) error {
	m.Created = true
	return nil
}
