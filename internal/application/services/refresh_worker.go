package services

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/avatarctic/quote-cache/internal/core/domain/token"
	"github.com/avatarctic/quote-cache/internal/core/ports"
)

// RefreshWorker performs one write-through refresh of a cached quote.
// Failures are logged and counted, never returned: the next expiry is the retry.
type RefreshWorker struct {
	store    ports.KeyedStore
	tokens   ports.TokenRepository
	provider ports.QuoteProvider
	now      func() time.Time
	logger   *logrus.Logger
}

func NewRefreshWorker(store ports.KeyedStore, tokens ports.TokenRepository, provider ports.QuoteProvider, now func() time.Time, logger *logrus.Logger) *RefreshWorker {
	if now == nil {
		now = time.Now
	}
	return &RefreshWorker{store: store, tokens: tokens, provider: provider, now: now, logger: logger}
}

// Refresh stamps the key, asks upstream for a quote and writes a usable result
// to Postgres and then to the cache.
func (w *RefreshWorker) Refresh(ctx context.Context, job ports.RefreshJob) {
	key := CacheKey(job.Lookup.Key)

	// Stamp first so readers arriving during the upstream call see the key as fresh.
	if err := w.store.Put(ctx, LastUpdateKey(key), encodeTime(w.now())); err != nil {
		w.warn(job, err, "failed to stamp quote refresh time")
	}

	value, ok := w.resolve(ctx, job.Lookup)
	if !ok {
		return
	}

	w.persist(ctx, job.EntityHash, value)

	if err := w.store.Put(ctx, key, value.String()); err != nil {
		w.warn(job, err, "failed to write refreshed quote to cache")
	}
	quoteRefreshTotal.WithLabelValues("updated").Inc()
	if w.logger != nil {
		w.logger.WithFields(logrus.Fields{"hash": job.EntityHash, "lookup": job.Lookup.Key, "rate": value.String()}).Debug("quote refreshed")
	}
}

// resolve returns the first upstream quote. Errors, empty lists and zero
// quotes all resolve to no value.
func (w *RefreshWorker) resolve(ctx context.Context, lookup token.Lookup) (decimal.Decimal, bool) {
	var (
		quotes []token.Quote
		err    error
	)
	switch lookup.Kind {
	case token.LookupBySymbol:
		quotes, err = w.provider.QuoteBySymbol(ctx, lookup.Key)
	default:
		quotes, err = w.provider.QuoteByAddress(ctx, lookup.Key)
	}
	if err != nil {
		quoteRefreshTotal.WithLabelValues("upstream_error").Inc()
		if w.logger != nil {
			w.logger.WithFields(logrus.Fields{"kind": lookup.Kind, "lookup": lookup.Key}).WithError(err).Warn("quote provider request failed")
		}
		return decimal.Decimal{}, false
	}
	value, ok := token.FirstUSDValue(quotes)
	if !ok || value.IsZero() {
		quoteRefreshTotal.WithLabelValues("no_value").Inc()
		return decimal.Decimal{}, false
	}
	return value, true
}

func (w *RefreshWorker) persist(ctx context.Context, hash string, value decimal.Decimal) {
	t, err := w.tokens.FindByHash(ctx, hash)
	if err != nil {
		if !errors.Is(err, ports.ErrTokenNotFound) && w.logger != nil {
			w.logger.WithFields(logrus.Fields{"hash": hash}).WithError(err).Warn("failed to load token for rate update")
		}
		return
	}
	if err := w.tokens.UpdateExchangeRate(ctx, t, value); err != nil {
		quoteRefreshTotal.WithLabelValues("persist_error").Inc()
		if w.logger != nil {
			w.logger.WithFields(logrus.Fields{"hash": hash}).WithError(err).Warn("failed to persist exchange rate")
		}
	}
}

func (w *RefreshWorker) warn(job ports.RefreshJob, err error, msg string) {
	if w.logger != nil {
		w.logger.WithFields(logrus.Fields{"hash": job.EntityHash, "lookup": job.Lookup.Key}).WithError(err).Warn(msg)
	}
}
