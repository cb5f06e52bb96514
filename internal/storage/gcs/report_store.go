// Package gcs archives raw audit reports in Google Cloud Storage.
package gcs

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"
)

// ReportStore implements audit.ReportStore on a GCS bucket.
type ReportStore struct {
	client *storage.Client
	bucket string
	logger *zap.Logger
}

// NewReportStore initializes a GCS client and verifies the bucket exists.
// Authentication is handled via Application Default Credentials.
func NewReportStore(ctx context.Context, bucket string, logger *zap.Logger) (*ReportStore, error) {
	if bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}
	// Fail fast on startup if the bucket is unreachable.
	if _, err := client.Bucket(bucket).Attrs(ctx); err != nil {
		if closeErr := client.Close(); closeErr != nil {
			logger.Warn("close gcs client after bucket check failure", zap.Error(closeErr))
		}
		return nil, fmt.Errorf("get bucket %q attributes: %w", bucket, err)
	}
	return &ReportStore{client: client, bucket: bucket, logger: logger}, nil
}

// Close releases the GCS client.
func (s *ReportStore) Close() error {
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("close gcs client: %w", err)
	}
	return nil
}

// Save uploads one report object and returns its gs:// URI.
func (s *ReportStore) Save(ctx context.Context, objectName string, contentType string, data []byte) (string, error) {
	wc := s.client.Bucket(s.bucket).Object(objectName).NewWriter(ctx)
	wc.ContentType = contentType
	if _, err := wc.Write(data); err != nil {
		if closeErr := wc.Close(); closeErr != nil {
			s.logger.Warn("close gcs writer after write failure", zap.Error(closeErr))
		}
		return "", fmt.Errorf("write gcs object %s: %w", objectName, err)
	}
	// Close finalizes the upload and flushes buffered data.
	if err := wc.Close(); err != nil {
		return "", fmt.Errorf("close gcs writer for %s: %w", objectName, err)
	}
	return fmt.Sprintf("gs://%s/%s", s.bucket, objectName), nil
}
