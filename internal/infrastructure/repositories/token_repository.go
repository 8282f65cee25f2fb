package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/avatarctic/quote-cache/internal/core/domain/token"
	"github.com/avatarctic/quote-cache/internal/core/ports"
	"github.com/avatarctic/quote-cache/internal/infrastructure/db"
)

// TokenRepository implements ports.TokenRepository on Postgres.
type TokenRepository struct {
	db     *db.Database
	logger *logrus.Logger
}

func NewTokenRepository(database *db.Database, logger *logrus.Logger) *TokenRepository {
	return &TokenRepository{db: database, logger: logger}
}

// FindByHash retrieves a token by its hash.
func (r *TokenRepository) FindByHash(ctx context.Context, hash string) (*token.Token, error) {
	var t token.Token
	query := `
		SELECT id, hash, symbol, address, exchange_rate, created_at, updated_at
		FROM tokens
		WHERE hash = $1`

	err := r.db.DB.GetContext(ctx, &t, query, hash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ports.ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to get token by hash: %w", err)
	}

	return &t, nil
}

// UpdateExchangeRate overwrites the stored rate in a single statement and
// mirrors the change onto t.
func (r *TokenRepository) UpdateExchangeRate(ctx context.Context, t *token.Token, rate decimal.Decimal) error {
	now := time.Now().UTC()
	query := `UPDATE tokens SET exchange_rate = $2, updated_at = $3 WHERE id = $1`

	result, err := r.db.DB.ExecContext(ctx, query, t.ID, rate, now)
	if err != nil {
		if r.logger != nil {
			r.logger.WithFields(logrus.Fields{"hash": t.Hash}).WithError(err).Error("failed to update exchange rate")
		}
		return fmt.Errorf("failed to update exchange rate: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ports.ErrTokenNotFound
	}

	t.ExchangeRate = decimal.NewNullDecimal(rate)
	t.UpdatedAt = now
	return nil
}
