package ports

import (
	"context"
	"errors"

	"github.com/avatarctic/quote-cache/internal/core/domain/token"
	"github.com/shopspring/decimal"
)

var ErrTokenNotFound = errors.New("token not found")

// TokenRepository is the durable store for tokens and their last known rate.
type TokenRepository interface {
	// FindByHash returns ErrTokenNotFound when no token has the given hash.
	FindByHash(ctx context.Context, hash string) (*token.Token, error)
	UpdateExchangeRate(ctx context.Context, t *token.Token, rate decimal.Decimal) error
}

// QuoteProvider fetches live quotes from the upstream price API.
type QuoteProvider interface {
	QuoteBySymbol(ctx context.Context, symbol string) ([]token.Quote, error)
	QuoteByAddress(ctx context.Context, address string) ([]token.Quote, error)
}

// RefreshJob asks for the cached rate of one lookup key to be refreshed.
type RefreshJob struct {
	EntityHash string
	Lookup     token.Lookup
}

// RefreshScheduler accepts refresh jobs without blocking the caller.
// Submit reports whether the job was accepted.
type RefreshScheduler interface {
	Submit(job RefreshJob) bool
}

// QuoteService is the read path for token exchange rates.
type QuoteService interface {
	FetchByAddress(ctx context.Context, entityHash, address string) (decimal.NullDecimal, error)
	// FetchBySymbol is kept for legacy callers; symbols can collide across tokens.
	FetchBySymbol(ctx context.Context, entityHash, symbol string) (decimal.NullDecimal, error)
	TableExists(ctx context.Context) bool
	CreateTable(ctx context.Context) error
}
