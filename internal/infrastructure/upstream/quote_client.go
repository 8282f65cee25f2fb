package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"

	"github.com/avatarctic/quote-cache/configs"
	"github.com/avatarctic/quote-cache/internal/core/domain/token"
)

// maxBodyBytes caps how much of a quote response is read.
const maxBodyBytes = 1 << 20

// leveledLogrus adapts logrus to retryablehttp.LeveledLogger. Intermediate
// request errors are logged as warnings because the client retries them.
type leveledLogrus struct {
	inner *logrus.Logger
}

func (l leveledLogrus) fields(keysAndValues []interface{}) logrus.Fields {
	f := logrus.Fields{"subsystem": "quote-api"}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		if k, ok := keysAndValues[i].(string); ok {
			f[k] = keysAndValues[i+1]
		}
	}
	return f
}

func (l leveledLogrus) Error(msg string, kv ...interface{}) { l.inner.WithFields(l.fields(kv)).Warn(msg) }
func (l leveledLogrus) Warn(msg string, kv ...interface{})  { l.inner.WithFields(l.fields(kv)).Warn(msg) }
func (l leveledLogrus) Info(msg string, kv ...interface{})  { l.inner.WithFields(l.fields(kv)).Debug(msg) }
func (l leveledLogrus) Debug(msg string, kv ...interface{}) { l.inner.WithFields(l.fields(kv)).Debug(msg) }

// Option customizes the underlying retryable client.
type Option func(*retryablehttp.Client)

// WithRetryWait sets the backoff bounds between retries.
func WithRetryWait(minWait, maxWait time.Duration) Option {
	return func(c *retryablehttp.Client) {
		c.RetryWaitMin = minWait
		c.RetryWaitMax = maxWait
	}
}

// WithTransport replaces the pooled transport, mostly for tests.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *retryablehttp.Client) {
		c.HTTPClient.Transport = rt
	}
}

// RetryPolicy retries connection errors and 5xx responses, but leaves 429 to
// the caller: the quote cache's freshness window is its own backoff.
func RetryPolicy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if err == nil && resp.StatusCode == http.StatusTooManyRequests {
		return false, nil
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

// QuoteClient implements ports.QuoteProvider against the quote HTTP API.
//
//	GET {base}/v1/quotes?address=0x...   -> [{"usdValue": "1.23"}]
//	GET {base}/v1/quotes?symbol=ETH      -> [{"usdValue": "1.23"}]
type QuoteClient struct {
	baseURL string
	apiKey  string
	client  *retryablehttp.Client
	logger  *logrus.Logger
}

func NewQuoteClient(cfg *configs.QuoteAPIConfig, logger *logrus.Logger, opts ...Option) *QuoteClient {
	rc := retryablehttp.NewClient()
	rc.HTTPClient = cleanhttp.DefaultPooledClient()
	rc.HTTPClient.Timeout = cfg.Timeout
	rc.RetryMax = cfg.MaxRetries
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.CheckRetry = RetryPolicy
	if logger != nil {
		rc.Logger = retryablehttp.LeveledLogger(leveledLogrus{inner: logger})
	} else {
		rc.Logger = nil
	}
	for _, opt := range opts {
		opt(rc)
	}
	return &QuoteClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		client:  rc,
		logger:  logger,
	}
}

func (c *QuoteClient) QuoteBySymbol(ctx context.Context, symbol string) ([]token.Quote, error) {
	return c.fetch(ctx, url.Values{"symbol": {symbol}})
}

func (c *QuoteClient) QuoteByAddress(ctx context.Context, address string) ([]token.Quote, error) {
	return c.fetch(ctx, url.Values{"address": {address}})
}

func (c *QuoteClient) fetch(ctx context.Context, params url.Values) ([]token.Quote, error) {
	endpoint := c.baseURL + "/v1/quotes?" + params.Encode()
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build quote request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("quote request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, fmt.Errorf("quote API returned status %d", resp.StatusCode)
	}

	var quotes []token.Quote
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&quotes); err != nil {
		return nil, fmt.Errorf("failed to decode quote response: %w", err)
	}
	if c.logger != nil {
		c.logger.WithFields(logrus.Fields{"query": params.Encode(), "count": len(quotes)}).Debug("quote API response")
	}
	return quotes, nil
}
