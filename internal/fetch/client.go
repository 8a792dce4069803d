package fetch

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/quirkauto/inventory-crawler/internal/metrics"
)

// Client wraps a Fetcher with status-aware retries and backoff. It is the
// transport every other crawl component calls through.
type Client struct {
	fetcher Fetcher
	retry   *RetryPolicy
	logger  *zap.Logger
}

// NewClient builds a retrying Client around the given Fetcher.
func NewClient(fetcher Fetcher, retry *RetryPolicy, logger *zap.Logger) *Client {
	if retry == nil {
		retry = DefaultRetryPolicy()
	}
	return &Client{
		fetcher: fetcher,
		retry:   retry,
		logger:  logger,
	}
}

// Fetch retrieves the body text at rawURL, retrying transient failures.
// A 2xx/3xx response short-circuits; a 404 surfaces immediately. Exhausted
// retries return a *FetchError carrying the last status and error seen.
func (c *Client) Fetch(ctx context.Context, rawURL string) (string, error) {
	var (
		lastStatus int
		lastErr    error
	)
	for attempt := 0; attempt < c.retry.MaxAttempts(); attempt++ {
		if attempt > 0 {
			metrics.FetchRetries.Inc()
			if err := pause(ctx, c.retry.Backoff(attempt-1)); err != nil {
				lastErr = err
				break
			}
		}

		page, err := c.fetcher.Fetch(ctx, rawURL)
		if err == nil && page.StatusCode < 400 {
			metrics.PagesFetched.Inc()
			return string(page.Body), nil
		}

		lastStatus = page.StatusCode
		lastErr = err
		if lastErr == nil {
			lastErr = fmt.Errorf("HTTP %d for %s", page.StatusCode, rawURL)
		}
		if !c.retry.ShouldRetry(page.StatusCode, err, attempt) {
			break
		}
		c.logger.Debug("Retrying fetch",
			zap.String("url", rawURL),
			zap.Int("attempt", attempt+1),
			zap.Int("status", page.StatusCode),
			zap.Error(err),
		)
	}

	metrics.FetchFailures.Inc()
	return "", &FetchError{URL: rawURL, LastStatus: lastStatus, LastErr: lastErr}
}

// pause sleeps for delay or until the context is canceled.
func pause(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
