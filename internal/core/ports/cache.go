package ports

import (
	"context"
	"time"
)

// Cache is a byte-oriented key-value cache with per-entry TTL. It backs the
// cache-aside layer in front of the token repository; implementations should
// fail soft so callers can fall back to Postgres.
type Cache interface {
	// Get returns the raw bytes for key. ok=false if not found.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores value for key with TTL (0 or negative means no expiration if supported).
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete removes the key; absence is not an error.
	Delete(ctx context.Context, key string) error
}

// KeyedStore is the quote cache table: a flat string map with an explicit
// lifecycle and no expiry of its own. Staleness is decided by the reader.
type KeyedStore interface {
	// Exists reports whether Create has been called.
	Exists(ctx context.Context) bool
	// Create initializes the table. Calling it again keeps existing entries.
	Create(ctx context.Context) error
	// Get returns the stored value for key. ok=false if not found.
	Get(ctx context.Context, key string) (string, bool, error)
	// Put overwrites key. It is a no-op when the table does not exist yet.
	Put(ctx context.Context, key, value string) error
}
