package archive

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Fetcher matches the page-fetching clients used by the crawl stages.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (string, error)
}

// RecordingFetcher wraps a Fetcher and archives every successfully fetched
// body. Archival is best effort; a store failure never fails the fetch.
type RecordingFetcher struct {
	inner  Fetcher
	store  BlobStore
	logger *zap.Logger
	now    func() time.Time
}

// NewRecordingFetcher wraps inner so fetched pages land in store.
func NewRecordingFetcher(inner Fetcher, store BlobStore, logger *zap.Logger) *RecordingFetcher {
	return &RecordingFetcher{
		inner:  inner,
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// Fetch delegates to the wrapped client and archives the body on success.
func (r *RecordingFetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	body, err := r.inner.Fetch(ctx, rawURL)
	if err != nil {
		return body, err
	}
	key := ObjectPath(rawURL, r.now())
	if _, putErr := r.store.Put(ctx, key, "text/html", []byte(body)); putErr != nil {
		r.logger.Warn("Failed to archive page",
			zap.String("url", rawURL), zap.String("object", key), zap.Error(putErr))
	}
	return body, nil
}
