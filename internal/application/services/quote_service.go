package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/avatarctic/quote-cache/internal/core/domain/token"
	"github.com/avatarctic/quote-cache/internal/core/ports"
)

// ErrInvalidLookup is returned for an empty token hash or lookup key.
var ErrInvalidLookup = errors.New("token hash and lookup key are required")

// QuoteServiceConfig groups configuration parameters for the quote service.
type QuoteServiceConfig struct {
	FreshnessPeriod time.Duration
	// Consolidation is accepted so existing configuration keeps loading.
	// It currently selects no behavior.
	Consolidation bool
	// Now overrides the clock, mainly for tests.
	Now func() time.Time
}

// QuoteService serves exchange rates stale-while-revalidate: it answers from
// the cache or Postgres immediately and hands refreshes to a scheduler.
type QuoteService struct {
	store         ports.KeyedStore
	tokens        ports.TokenRepository
	scheduler     ports.RefreshScheduler
	policy        *FreshnessPolicy
	consolidation bool
	logger        *logrus.Logger
}

func NewQuoteService(store ports.KeyedStore, tokens ports.TokenRepository, scheduler ports.RefreshScheduler, cfg *QuoteServiceConfig, logger *logrus.Logger) *QuoteService {
	var (
		period time.Duration
		now    func() time.Time
		consol bool
	)
	if cfg != nil {
		period = cfg.FreshnessPeriod
		now = cfg.Now
		consol = cfg.Consolidation
	}
	return &QuoteService{
		store:         store,
		tokens:        tokens,
		scheduler:     scheduler,
		policy:        NewFreshnessPolicy(store, period, now),
		consolidation: consol,
		logger:        logger,
	}
}

// FetchByAddress looks a quote up by contract address, the preferred entry point.
func (s *QuoteService) FetchByAddress(ctx context.Context, entityHash, address string) (decimal.NullDecimal, error) {
	return s.fetch(ctx, entityHash, token.Lookup{Kind: token.LookupByAddress, Key: address})
}

// FetchBySymbol looks a quote up by ticker symbol. Prefer FetchByAddress:
// symbols are not unique and share the address key space.
func (s *QuoteService) FetchBySymbol(ctx context.Context, entityHash, symbol string) (decimal.NullDecimal, error) {
	return s.fetch(ctx, entityHash, token.Lookup{Kind: token.LookupBySymbol, Key: symbol})
}

// TableExists reports whether the backing store has been created.
func (s *QuoteService) TableExists(ctx context.Context) bool {
	return s.store.Exists(ctx)
}

// CreateTable creates the backing store; existing entries are kept.
func (s *QuoteService) CreateTable(ctx context.Context) error {
	return s.store.Create(ctx)
}

// Policy exposes the freshness policy used by the read path.
func (s *QuoteService) Policy() *FreshnessPolicy {
	return s.policy
}

func (s *QuoteService) fetch(ctx context.Context, entityHash string, lookup token.Lookup) (decimal.NullDecimal, error) {
	if strings.TrimSpace(entityHash) == "" || !lookup.Valid() {
		return decimal.NullDecimal{}, ErrInvalidLookup
	}
	key := CacheKey(lookup.Key)

	if s.policy.IsExpired(ctx, key) || s.policy.IsEmpty(ctx, key) {
		if !s.scheduler.Submit(ports.RefreshJob{EntityHash: entityHash, Lookup: lookup}) && s.logger != nil {
			s.logger.WithFields(logrus.Fields{"hash": entityHash, "lookup": lookup.Key}).Debug("quote refresh not queued")
		}
	}

	if v, ok := readValue(ctx, s.store, key); ok && !v.IsZero() {
		quoteFetchTotal.WithLabelValues("cache").Inc()
		return decimal.NewNullDecimal(v), nil
	}
	return s.durableRate(ctx, entityHash), nil
}

// durableRate falls back to the last rate persisted for the token.
func (s *QuoteService) durableRate(ctx context.Context, hash string) decimal.NullDecimal {
	t, err := s.tokens.FindByHash(ctx, hash)
	if err != nil {
		if !errors.Is(err, ports.ErrTokenNotFound) && s.logger != nil {
			s.logger.WithFields(logrus.Fields{"hash": hash}).WithError(err).Warn("failed to read token exchange rate")
		}
		quoteFetchTotal.WithLabelValues("none").Inc()
		return decimal.NullDecimal{}
	}
	if !t.ExchangeRate.Valid {
		quoteFetchTotal.WithLabelValues("none").Inc()
		return decimal.NullDecimal{}
	}
	quoteFetchTotal.WithLabelValues("db").Inc()
	return t.ExchangeRate
}

// ConsolidationEnabled reports the configured consolidation flag.
func (s *QuoteService) ConsolidationEnabled() bool {
	return s.consolidation
}
