// Package fetch implements the retrying HTTP transport every crawl
// component goes through.
package fetch

import (
	"context"
	"fmt"
)

// Page is the raw result of a single fetch attempt.
type Page struct {
	URL        string
	FinalURL   string
	StatusCode int
	Body       []byte
}

// Fetcher performs a single HTTP GET attempt.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (Page, error)
}

// FetchError describes a URL whose retrieval failed after all retry attempts.
type FetchError struct {
	URL        string
	LastStatus int
	LastErr    error
}

func (e *FetchError) Error() string {
	if e.LastErr != nil {
		return fmt.Sprintf("fetch %s failed: %v", e.URL, e.LastErr)
	}
	return fmt.Sprintf("fetch %s failed: HTTP %d", e.URL, e.LastStatus)
}

func (e *FetchError) Unwrap() error {
	return e.LastErr
}
