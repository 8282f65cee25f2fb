package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/avatarctic/quote-cache/internal/core/ports"
)

const (
	cacheKeyPrefix      = "quote:"
	lastUpdateKeyPrefix = "last_update:"
)

// CacheKey maps a raw symbol or address onto the shared cache namespace.
// Symbols and addresses are not distinguished, so a symbol that happens to
// equal an address lands on the same entry.
func CacheKey(raw string) string {
	return cacheKeyPrefix + raw
}

// LastUpdateKey is the sub-key holding the time key was last refreshed. Its
// prefix never starts with "quote:", so no lookup key can address it.
func LastUpdateKey(key string) string {
	return lastUpdateKeyPrefix + key
}

func encodeTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// readValue returns the cached decimal under key. Unreadable or unparsable
// entries are reported as absent.
func readValue(ctx context.Context, store ports.KeyedStore, key string) (decimal.Decimal, bool) {
	raw, ok, err := store.Get(ctx, key)
	if err != nil || !ok {
		return decimal.Decimal{}, false
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return v, true
}

func readLastUpdate(ctx context.Context, store ports.KeyedStore, key string) (time.Time, bool) {
	raw, ok, err := store.Get(ctx, LastUpdateKey(key))
	if err != nil || !ok {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
