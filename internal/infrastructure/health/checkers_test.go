package health

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/avatarctic/quote-cache/test/mocks"
)

func TestQuoteTableChecker(t *testing.T) {
	svc := &mocks.QuoteServiceMock{}
	hc := NewQuoteTableChecker(svc)
	require.Equal(t, "quote_cache", hc.Name())
	require.Error(t, hc.Check(context.Background()))

	require.NoError(t, svc.CreateTable(context.Background()))
	require.NoError(t, hc.Check(context.Background()))
}
