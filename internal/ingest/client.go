// Package ingest pulls GL record batches from the upstream producer API and
// lands them in the raw layer, advancing the ingestion watermark on success.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/dakota-labs/glpipe/pkg/core"
)

// batchPath is the producer endpoint serving GL record batches.
const batchPath = "/get-gl-batch"

// Client fetches GL batches from the producer API with exponential backoff
// on transient failures.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	maxRetries uint64
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithMaxRetries bounds the number of retries per fetch.
func WithMaxRetries(n uint64) ClientOption {
	return func(c *Client) { c.maxRetries = n }
}

// NewClient creates a producer API client for the given base URL.
func NewClient(baseURL string, logger *slog.Logger, opts ...ClientOption) *Client {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
		maxRetries: 4,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type batchEnvelope struct {
	Data []*core.GLRecord `json:"data"`
}

// FetchBatch requests up to limit records created after since. A zero since
// fetches from the beginning. Transient failures (network errors, 5xx) are
// retried with exponential backoff; client errors are not.
func (c *Client) FetchBatch(ctx context.Context, limit int, since time.Time) ([]*core.GLRecord, error) {
	u, err := url.Parse(c.baseURL + batchPath)
	if err != nil {
		return nil, fmt.Errorf("invalid producer URL: %w", err)
	}
	q := u.Query()
	q.Set("limit", strconv.Itoa(limit))
	if !since.IsZero() {
		q.Set("since", since.UTC().Format(time.RFC3339))
	}
	u.RawQuery = q.Encode()

	var records []*core.GLRecord
	op := func() error {
		batch, err := c.fetchOnce(ctx, u.String())
		if err != nil {
			return err
		}
		records = batch
		return nil
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.maxRetries), ctx)
	notify := func(err error, wait time.Duration) {
		c.logger.Warn("retrying batch fetch", slog.Any("error", err), slog.Duration("wait", wait))
	}
	if err := backoff.RetryNotify(op, bo, notify); err != nil {
		return nil, fmt.Errorf("failed to fetch GL batch: %w", err)
	}
	return records, nil
}

func (c *Client) fetchOnce(ctx context.Context, rawURL string) ([]*core.GLRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		err := fmt.Errorf("producer returned %d: %s", resp.StatusCode, body)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}

	var envelope batchEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to decode batch: %w", err))
	}
	return envelope.Data, nil
}
