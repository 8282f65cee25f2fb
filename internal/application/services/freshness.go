package services

import (
	"context"
	"time"

	"github.com/avatarctic/quote-cache/internal/core/ports"
)

const defaultFreshnessPeriod = 24 * time.Hour

// FreshnessPolicy decides at read time whether a cached quote must be
// refreshed. It only reads from the store.
type FreshnessPolicy struct {
	store  ports.KeyedStore
	period time.Duration
	now    func() time.Time
}

// NewFreshnessPolicy builds a policy. A non-positive period falls back to 24h
// and a nil clock to time.Now.
func NewFreshnessPolicy(store ports.KeyedStore, period time.Duration, now func() time.Time) *FreshnessPolicy {
	if period <= 0 {
		period = defaultFreshnessPeriod
	}
	if now == nil {
		now = time.Now
	}
	return &FreshnessPolicy{store: store, period: period, now: now}
}

// Period is how long a stamp stays fresh.
func (p *FreshnessPolicy) Period() time.Duration { return p.period }

// IsExpired reports whether key has no last-update stamp or the stamp is older
// than the period.
func (p *FreshnessPolicy) IsExpired(ctx context.Context, key string) bool {
	last, ok := readLastUpdate(ctx, p.store, key)
	if !ok {
		return true
	}
	return p.now().Sub(last) > p.period
}

// IsEmpty reports whether key has no usable value. Zero counts as no value.
func (p *FreshnessPolicy) IsEmpty(ctx context.Context, key string) bool {
	v, ok := readValue(ctx, p.store, key)
	return !ok || v.IsZero()
}
