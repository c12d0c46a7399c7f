package s3blob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"

	"nba_altprops/ingestion/internal/export"
	"nba_altprops/ingestion/internal/metrics"
	"nba_altprops/ingestion/internal/models"
)

// Writer uploads objects to the client's bucket
type Writer struct {
	client *s3.Client
	bucket string
}

// NewWriter creates a new Writer for the given client's bucket
func NewWriter(c *Client) *Writer {
	return &Writer{
		client: c.s3,
		bucket: c.bucket,
	}
}

// Put uploads data as a single PutObject request
func (w *Writer) Put(ctx context.Context, path string, data io.Reader, contentType string) error {
	input := &s3.PutObjectInput{
		Bucket:      aws.String(w.bucket),
		Key:         aws.String(path),
		Body:        data,
		ContentType: aws.String(contentType),
	}

	if _, err := w.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("s3blob: put object %s: %w", path, err)
	}
	return nil
}

// SnapshotKey returns the object key of a run snapshot
func SnapshotKey(runID string, at time.Time) string {
	return fmt.Sprintf("snapshots/%s/%s.csv", at.UTC().Format("2006/01/02"), runID)
}

// ArchiveRun writes the lines persisted by a run as a CSV snapshot
func (w *Writer) ArchiveRun(ctx context.Context, runID string, at time.Time, lines []models.OddsLine) error {
	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, lines); err != nil {
		metrics.RecordSnapshotArchived("error")
		return fmt.Errorf("s3blob: render snapshot: %w", err)
	}

	key := SnapshotKey(runID, at)
	size := buf.Len()
	if err := w.Put(ctx, key, bytes.NewReader(buf.Bytes()), export.ContentType); err != nil {
		metrics.RecordSnapshotArchived("error")
		return err
	}

	metrics.RecordSnapshotArchived("success")
	log.Info().
		Str("run_id", runID).
		Str("key", key).
		Int("rows", len(lines)).
		Int("bytes", size).
		Msg("Run snapshot archived")

	return nil
}
