package archive

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"
)

// GCSStore archives pages to a Google Cloud Storage bucket. Authentication
// comes from Application Default Credentials.
type GCSStore struct {
	client *storage.Client
	bucket string
	logger *zap.Logger
}

// NewGCSStore creates the client and verifies bucket access so a bad bucket
// name fails at startup instead of mid-crawl.
func NewGCSStore(ctx context.Context, bucket string, logger *zap.Logger) (*GCSStore, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create GCS client: %w", err)
	}

	if _, err := client.Bucket(bucket).Attrs(ctx); err != nil {
		if closeErr := client.Close(); closeErr != nil {
			logger.Warn("Failed to close GCS client after bucket check", zap.Error(closeErr))
		}
		return nil, fmt.Errorf("get bucket %q attributes: %w", bucket, err)
	}

	return &GCSStore{client: client, bucket: bucket, logger: logger}, nil
}

// Put uploads the page body and returns a gs:// URI.
func (s *GCSStore) Put(ctx context.Context, objectPath string, contentType string, data []byte) (string, error) {
	wc := s.client.Bucket(s.bucket).Object(objectPath).NewWriter(ctx)
	wc.ContentType = contentType

	if _, err := wc.Write(data); err != nil {
		if closeErr := wc.Close(); closeErr != nil {
			s.logger.Warn("Failed to close GCS writer after write failure", zap.Error(closeErr))
		}
		return "", fmt.Errorf("write object %s: %w", objectPath, err)
	}
	// Close finalizes the upload.
	if err := wc.Close(); err != nil {
		return "", fmt.Errorf("close writer for object %s: %w", objectPath, err)
	}

	return fmt.Sprintf("gs://%s/%s", s.bucket, objectPath), nil
}

// Close releases the underlying client.
func (s *GCSStore) Close() error {
	return s.client.Close()
}
