package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/damon-houk/currency-tracker/internal/domain/service"
	"github.com/damon-houk/currency-tracker/internal/infrastructure/logger"
	"github.com/damon-houk/currency-tracker/internal/infrastructure/metrics"
	"github.com/sethvargo/go-retry"
)

const (
	// DefaultBaseURL is the public exchangerate-api endpoint
	DefaultBaseURL = "https://api.exchangerate-api.com/v4/latest"

	defaultTimeout   = 10 * time.Second
	defaultRetryBase = 250 * time.Millisecond
	maxBodyBytes     = 4 << 20
)

// ExchangeRateAPIClient implements the RateProvider interface over HTTP
type ExchangeRateAPIClient struct {
	baseURL    string
	httpClient *http.Client
	maxRetries uint64
	retryBase  time.Duration
	logger     logger.Logger
	metrics    *metrics.Metrics
}

var _ service.RateProvider = (*ExchangeRateAPIClient)(nil)

// ClientOption configures an ExchangeRateAPIClient
type ClientOption func(*ExchangeRateAPIClient)

// WithRetries retries transport failures up to max times with exponential backoff from base
func WithRetries(max uint64, base time.Duration) ClientOption {
	return func(c *ExchangeRateAPIClient) {
		c.maxRetries = max
		if base > 0 {
			c.retryBase = base
		}
	}
}

func WithLogger(log logger.Logger) ClientOption {
	return func(c *ExchangeRateAPIClient) {
		if log != nil {
			c.logger = log
		}
	}
}

func WithMetrics(m *metrics.Metrics) ClientOption {
	return func(c *ExchangeRateAPIClient) {
		c.metrics = m
	}
}

// NewExchangeRateAPIClient creates a new exchange rate API client
func NewExchangeRateAPIClient(baseURL string, httpClient *http.Client, opts ...ClientOption) *ExchangeRateAPIClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: defaultTimeout,
		}
	}

	c := &ExchangeRateAPIClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		retryBase:  defaultRetryBase,
		logger:     logger.GetDefaultLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// FetchRates retrieves the latest rates for a base currency
func (c *ExchangeRateAPIClient) FetchRates(ctx context.Context, base string) (*service.RatesPayload, error) {
	start := time.Now()
	payload, err := c.fetchRates(ctx, base)
	c.metrics.ObserveUpstreamFetch(base, err, time.Since(start))

	if err != nil {
		c.logger.Warn("Exchange rate fetch failed", map[string]interface{}{
			"base":        base,
			"duration_ms": time.Since(start).Milliseconds(),
			"error":       err.Error(),
		})
		return nil, err
	}

	c.logger.Debug("Exchange rates fetched", map[string]interface{}{
		"base":        base,
		"date":        payload.Date,
		"rates":       len(payload.Rates),
		"duration_ms": time.Since(start).Milliseconds(),
	})

	return payload, nil
}

func (c *ExchangeRateAPIClient) fetchRates(ctx context.Context, base string) (*service.RatesPayload, error) {
	reqURL := c.baseURL + "/" + url.PathEscape(base)

	var resp *http.Response
	backoff := retry.WithMaxRetries(c.maxRetries, retry.NewExponential(c.retryBase))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}

		// Add Accept header to ensure JSON response
		req.Header.Set("Accept", "application/json")

		r, err := c.httpClient.Do(req)
		if err != nil {
			c.logger.Debug("Exchange rate request attempt failed", map[string]interface{}{
				"base":  base,
				"error": err.Error(),
			})
			return retry.RetryableError(err)
		}

		resp = r
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}

	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Debug("Error closing response body", map[string]interface{}{
				"error": closeErr.Error(),
			})
		}
	}()

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("API returned error status: %d", resp.StatusCode)
	}

	payload, err := decodeRatesPayload(bodyBytes)
	if err != nil {
		return nil, err
	}

	if payload.Base == "" {
		payload.Base = base
	}

	return payload, nil
}
