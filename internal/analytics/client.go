// Package analytics runs SQL against the Analytics Engine SQL API.
package analytics

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kyleking/ae-columns/internal/cache"
	"github.com/kyleking/ae-columns/internal/config"
	"github.com/kyleking/ae-columns/internal/errors"
	"github.com/kyleking/ae-columns/internal/logging"
)

const maxErrorBody = 2048

// Executor runs final query text for an account
type Executor interface {
	Execute(ctx context.Context, creds Credentials, sql string) (*Result, error)
}

// Client posts query text to the SQL endpoint. No retries are attempted.
type Client struct {
	baseURL    string
	httpClient *http.Client
	trace      bool

	cache    cache.Cache
	cacheTTL time.Duration
}

// NewClient creates a client for the configured endpoint
func NewClient(cfg config.AnalyticsConfig) *Client {
	timeout, err := time.ParseDuration(cfg.Timeout)
	if err != nil || timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// WithCache enables result caching keyed by account, token and query text
func (c *Client) WithCache(store cache.Cache, ttl time.Duration) *Client {
	c.cache = store
	c.cacheTTL = ttl

	return c
}

// WithTrace logs request and response sizes at debug level
func (c *Client) WithTrace(enabled bool) *Client {
	c.trace = enabled
	return c
}

// Execute sends sql as the literal request body and decodes the JSON result
func (c *Client) Execute(ctx context.Context, creds Credentials, sql string) (*Result, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}

	key := cache.QueryKey(creds.AccountID, creds.APIToken, sql)

	if c.cache != nil {
		if body, err := c.cache.Get(ctx, key); err == nil {
			if result, err := DecodeResult(body); err == nil {
				logging.Debugf("query result served from cache (%d bytes)", len(body))
				return result, nil
			}
		}
	}

	body, err := c.post(ctx, creds, sql)
	if err != nil {
		return nil, err
	}

	result, err := DecodeResult(body)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrTypeBackend, "unexpected response from analytics backend")
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, key, body, c.cacheTTL); err != nil {
			logging.WithError(err).Warn("failed to cache query result")
		}
	}

	return result, nil
}

// Forget drops any cached result for sql so the next Execute reaches the backend
func (c *Client) Forget(ctx context.Context, creds Credentials, sql string) error {
	if c.cache == nil {
		return nil
	}

	return c.cache.Delete(ctx, cache.QueryKey(creds.AccountID, creds.APIToken, sql))
}

func (c *Client) endpoint(accountID string) string {
	return fmt.Sprintf("%s/accounts/%s/analytics_engine/sql", c.baseURL, url.PathEscape(accountID))
}

func (c *Client) post(ctx context.Context, creds Credentials, sql string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(creds.AccountID), strings.NewReader(sql))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrTypeInternal, "failed to create request")
	}

	req.Header.Set("Content-Type", "text/plain")
	req.Header.Set(HeaderAuthorization, "Bearer "+creds.APIToken)

	start := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrTypeNetwork, "failed to reach analytics backend")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrTypeNetwork, "failed to read response")
	}

	if c.trace {
		logging.WithFields(map[string]any{
			"status":     resp.StatusCode,
			"request":    len(sql),
			"response":   len(body),
			"elapsed_ms": time.Since(start).Milliseconds(),
		}).Debug("analytics request")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp.StatusCode, body)
	}

	return body, nil
}

func statusError(status int, body []byte) error {
	text := strings.TrimSpace(string(body))
	if len(text) > maxErrorBody {
		text = text[:maxErrorBody] + "..."
	}

	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return errors.NewAuthError(fmt.Sprintf("analytics backend rejected credentials (status %d): %s", status, text))
	case http.StatusTooManyRequests:
		return errors.Newf(errors.ErrTypeRateLimit, "analytics backend rate limited the request: %s", text)
	default:
		return errors.Newf(errors.ErrTypeBackend, "API request failed with status %d: %s", status, text)
	}
}
