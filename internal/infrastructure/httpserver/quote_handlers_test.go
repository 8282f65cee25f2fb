package httpserver_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/avatarctic/quote-cache/internal/application/services"
	"github.com/avatarctic/quote-cache/internal/core/ports"
	"github.com/avatarctic/quote-cache/internal/infrastructure/httpserver"
	tmocks "github.com/avatarctic/quote-cache/test/mocks"
)

func newServer(svc ports.QuoteService, checkers ...ports.HealthChecker) *httpserver.Server {
	return httpserver.NewServer(&httpserver.ServerConfig{Host: "127.0.0.1", Port: "0"}, logrus.New(), httpserver.ServerDeps{
		QuoteService:   svc,
		HealthCheckers: checkers,
	})
}

func do(t *testing.T, s *httpserver.Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestGetQuote_ByAddress(t *testing.T) {
	svc := &tmocks.QuoteServiceMock{FetchByAddressFn: func(ctx context.Context, hash, address string) (decimal.NullDecimal, error) {
		require.Equal(t, "H", hash)
		require.Equal(t, "0xA", address)
		return decimal.NewNullDecimal(decimal.RequireFromString("1.23")), nil
	}}
	rec := do(t, newServer(svc), "/api/v1/tokens/H/quote?address=0xA&symbol=ETH")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "address", body["kind"])
	require.Equal(t, "1.23", body["exchange_rate"])
}

func TestGetQuote_BySymbolWithNoValue(t *testing.T) {
	called := false
	svc := &tmocks.QuoteServiceMock{FetchBySymbolFn: func(ctx context.Context, hash, symbol string) (decimal.NullDecimal, error) {
		called = true
		return decimal.NullDecimal{}, nil
	}}
	rec := do(t, newServer(svc), "/api/v1/tokens/H/quote?symbol=ETH")
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, called)
	require.JSONEq(t, `{"hash":"H","kind":"symbol","lookup":"ETH","exchange_rate":null}`, rec.Body.String())
}

func TestGetQuote_MissingLookupIs400(t *testing.T) {
	rec := do(t, newServer(&tmocks.QuoteServiceMock{}), "/api/v1/tokens/H/quote")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetQuote_InvalidLookupIs400(t *testing.T) {
	svc := &tmocks.QuoteServiceMock{FetchByAddressFn: func(ctx context.Context, hash, address string) (decimal.NullDecimal, error) {
		return decimal.NullDecimal{}, services.ErrInvalidLookup
	}}
	rec := do(t, newServer(svc), "/api/v1/tokens/H/quote?address=%20")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealth_ReportsDegradedDependency(t *testing.T) {
	s := newServer(&tmocks.QuoteServiceMock{},
		&tmocks.HealthCheckerMock{NameValue: "database"},
		&tmocks.HealthCheckerMock{NameValue: "redis", Err: errors.New("down")},
	)
	rec := do(t, s, "/health")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "degraded", body["status"])
	deps := body["dependencies"].(map[string]any)
	require.Equal(t, "healthy", deps["database"])
	require.Equal(t, "unhealthy", deps["redis"])
}

func TestMetricsEndpoint(t *testing.T) {
	rec := do(t, newServer(&tmocks.QuoteServiceMock{}), "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "go_goroutines")
}
