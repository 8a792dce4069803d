// Package archive persists raw fetched pages so a bad extraction run can be
// replayed without re-crawling the dealer site.
package archive

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// BlobStore writes a page body to a backing store and returns a URI for it.
type BlobStore interface {
	Put(ctx context.Context, objectPath string, contentType string, data []byte) (string, error)
}

// NoOpStore discards everything. Used when archiving is disabled.
type NoOpStore struct{}

// Put does nothing and returns an empty URI.
func (NoOpStore) Put(_ context.Context, _ string, _ string, _ []byte) (string, error) {
	return "", nil
}

// ObjectPath builds a stable archive key for a fetched page: a UTC date
// directory, a filesystem-safe slug of the URL path, and a short hash to
// disambiguate URLs that slug identically.
func ObjectPath(rawURL string, fetchedAt time.Time) string {
	slug := "page"
	if parsed, err := url.Parse(rawURL); err == nil {
		trimmed := strings.Trim(parsed.Path, "/")
		if trimmed != "" {
			slug = sanitize(trimmed)
		}
	}
	sum := sha256.Sum256([]byte(rawURL))
	return fmt.Sprintf("%s/%s-%s.html",
		fetchedAt.UTC().Format("2006-01-02"), slug, hex.EncodeToString(sum[:4]))
}

func sanitize(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	const maxSlug = 120
	out := b.String()
	if len(out) > maxSlug {
		out = out[:maxSlug]
	}
	return out
}
