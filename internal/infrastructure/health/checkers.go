package health

import (
	"context"
	"errors"

	"github.com/go-redis/redis/v8"

	"github.com/avatarctic/quote-cache/internal/core/ports"
	infraDB "github.com/avatarctic/quote-cache/internal/infrastructure/db"
)

type dbHealthChecker struct{ db *infraDB.Database }

func (d *dbHealthChecker) Name() string                    { return "database" }
func (d *dbHealthChecker) Check(ctx context.Context) error { return d.db.DB.PingContext(ctx) }

type redisHealthChecker struct{ client redis.Cmdable }

func (r *redisHealthChecker) Name() string                    { return "redis" }
func (r *redisHealthChecker) Check(ctx context.Context) error { return r.client.Ping(ctx).Err() }

// quoteTableChecker fails until the quote cache table has been created.
type quoteTableChecker struct{ svc ports.QuoteService }

func (q *quoteTableChecker) Name() string { return "quote_cache" }
func (q *quoteTableChecker) Check(ctx context.Context) error {
	if !q.svc.TableExists(ctx) {
		return errQuoteTableMissing
	}
	return nil
}

var errQuoteTableMissing = errors.New("quote cache table not created")

func NewDBHealthChecker(db *infraDB.Database) ports.HealthChecker { return &dbHealthChecker{db: db} }

func NewRedisHealthChecker(client redis.Cmdable) ports.HealthChecker {
	return &redisHealthChecker{client: client}
}

func NewQuoteTableChecker(svc ports.QuoteService) ports.HealthChecker {
	return &quoteTableChecker{svc: svc}
}
