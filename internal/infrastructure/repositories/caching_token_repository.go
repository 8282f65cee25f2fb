package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/avatarctic/quote-cache/internal/core/domain/token"
	"github.com/avatarctic/quote-cache/internal/core/ports"
)

var sf singleflight.Group

func cacheSetSilently(c ports.Cache, ctx context.Context, key string, v any, ttl time.Duration) {
	if c == nil {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	_ = c.Set(ctx, key, b, ttl)
}

func cacheGet[T any](c ports.Cache, ctx context.Context, key string) (*T, bool) {
	if c == nil {
		return nil, false
	}
	b, ok, err := c.Get(ctx, key)
	if err != nil || !ok {
		return nil, false
	}
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, false
	}
	return &v, true
}

func tokenHashKey(hash string) string { return "token:hash:" + hash }

// CachingTokenRepository decorates a TokenRepository with cache-aside reads.
// Concurrent misses for the same hash share one database query.
type CachingTokenRepository struct {
	inner ports.TokenRepository
	cache ports.Cache
	ttl   time.Duration
}

func NewCachingTokenRepository(inner ports.TokenRepository, cache ports.Cache, ttl time.Duration) *CachingTokenRepository {
	return &CachingTokenRepository{inner: inner, cache: cache, ttl: ttl}
}

func (c *CachingTokenRepository) FindByHash(ctx context.Context, hash string) (*token.Token, error) {
	key := tokenHashKey(hash)
	if v, ok := cacheGet[token.Token](c.cache, ctx, key); ok {
		return v, nil
	}
	res, err, _ := sf.Do(key, func() (any, error) {
		t, err := c.inner.FindByHash(ctx, hash)
		if err != nil {
			return nil, err
		}
		cacheSetSilently(c.cache, ctx, key, t, c.ttl)
		return t, nil
	})
	if err != nil {
		return nil, err
	}
	t, ok := res.(*token.Token)
	if !ok {
		return nil, fmt.Errorf("unexpected type from singleflight result")
	}
	// callers may mutate the token; hand each its own copy
	cp := *t
	return &cp, nil
}

func (c *CachingTokenRepository) UpdateExchangeRate(ctx context.Context, t *token.Token, rate decimal.Decimal) error {
	if err := c.inner.UpdateExchangeRate(ctx, t, rate); err != nil {
		if c.cache != nil {
			_ = c.cache.Delete(ctx, tokenHashKey(t.Hash))
		}
		return err
	}
	t.ExchangeRate = decimal.NewNullDecimal(rate)
	cacheSetSilently(c.cache, ctx, tokenHashKey(t.Hash), t, c.ttl)
	return nil
}
