package httpserver

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/avatarctic/quote-cache/internal/application/services"
	"github.com/avatarctic/quote-cache/internal/core/domain/token"
)

type QuoteResponse struct {
	Hash         string              `json:"hash"`
	Kind         token.LookupKind    `json:"kind"`
	Lookup       string              `json:"lookup"`
	ExchangeRate decimal.NullDecimal `json:"exchange_rate"`
}

// getQuote answers GET /api/v1/tokens/:hash/quote?address=... (preferred) or
// ?symbol=... with whatever rate is available right now.
func (s *Server) getQuote(c echo.Context) error {
	hash := c.Param("hash")
	lookup := token.Lookup{Kind: token.LookupByAddress, Key: c.QueryParam("address")}
	if lookup.Key == "" {
		lookup = token.Lookup{Kind: token.LookupBySymbol, Key: c.QueryParam("symbol")}
	}
	if lookup.Key == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "address or symbol query parameter is required")
	}

	ctx := c.Request().Context()
	var (
		rate decimal.NullDecimal
		err  error
	)
	if lookup.Kind == token.LookupByAddress {
		rate, err = s.quoteSvc.FetchByAddress(ctx, hash, lookup.Key)
	} else {
		rate, err = s.quoteSvc.FetchBySymbol(ctx, hash, lookup.Key)
	}
	if err != nil {
		if errors.Is(err, services.ErrInvalidLookup) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, QuoteResponse{Hash: hash, Kind: lookup.Kind, Lookup: lookup.Key, ExchangeRate: rate})
}
