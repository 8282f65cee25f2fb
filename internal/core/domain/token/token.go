package token

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Token is the persisted record whose exchange rate the quote cache keeps warm.
// Hash is the stable identifier callers use; ExchangeRate is the last known USD
// value and is null until the first successful refresh.
type Token struct {
	ID           uuid.UUID           `json:"id" db:"id"`
	Hash         string              `json:"hash" db:"hash"`
	Symbol       string              `json:"symbol" db:"symbol"`
	Address      string              `json:"address" db:"address"`
	ExchangeRate decimal.NullDecimal `json:"exchange_rate" db:"exchange_rate"`
	CreatedAt    time.Time           `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at" db:"updated_at"`
}

// Quote is a single price point returned by the upstream provider.
type Quote struct {
	Symbol   string          `json:"symbol,omitempty"`
	Address  string          `json:"address,omitempty"`
	USDValue decimal.Decimal `json:"usdValue"`
}

// LookupKind says which identifier space a lookup key belongs to.
type LookupKind string

const (
	LookupByAddress LookupKind = "address"
	LookupBySymbol  LookupKind = "symbol"
)

// Lookup identifies the upstream query for a token. Address lookups are
// preferred; symbols are not unique across chains and may collide.
type Lookup struct {
	Kind LookupKind
	Key  string
}

func (l Lookup) Valid() bool {
	return (l.Kind == LookupByAddress || l.Kind == LookupBySymbol) && strings.TrimSpace(l.Key) != ""
}

// FirstUSDValue returns the value of the first quote, if any.
func FirstUSDValue(quotes []Quote) (decimal.Decimal, bool) {
	if len(quotes) == 0 {
		return decimal.Decimal{}, false
	}
	return quotes[0].USDValue, true
}
