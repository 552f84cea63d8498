package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"cloud.google.com/go/storage"

	"github.com/spotloo/backend/internal/models"
)

// GCSReportWriter archives backfill reports as JSON objects in a bucket.
type GCSReportWriter struct {
	gcs    *storage.Client
	bucket string
	object string
}

// NewGCSReportWriter parses a gs://bucket/object URI.
func NewGCSReportWriter(ctx context.Context, uri string) (*GCSReportWriter, error) {
	bucket, object, ok := ParseGCSURI(uri)
	if !ok {
		return nil, fmt.Errorf("report: invalid gcs uri %q", uri)
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("report: storage client: %w", err)
	}
	return &GCSReportWriter{gcs: client, bucket: bucket, object: object}, nil
}

func (w *GCSReportWriter) Close() error {
	return w.gcs.Close()
}

func (w *GCSReportWriter) WriteReport(ctx context.Context, report *models.BackfillReport) error {
	obj := w.gcs.Bucket(w.bucket).Object(w.object)
	ow := obj.NewWriter(ctx)
	ow.ContentType = "application/json"
	ow.Metadata = map[string]string{"run_id": report.RunID}

	enc := json.NewEncoder(ow)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		_ = ow.Close()
		return fmt.Errorf("report: encode: %w", err)
	}
	if err := ow.Close(); err != nil {
		return fmt.Errorf("report: upload: %w", err)
	}
	return nil
}

// ParseGCSURI splits gs://bucket/path/to/object.
func ParseGCSURI(uri string) (bucket, object string, ok bool) {
	rest, found := strings.CutPrefix(uri, "gs://")
	if !found {
		return "", "", false
	}
	bucket, object, found = strings.Cut(rest, "/")
	if !found || bucket == "" || object == "" {
		return "", "", false
	}
	return bucket, object, true
}
