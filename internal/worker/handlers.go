package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"careercompass/internal/app"
)

type AccessTracker interface {
	TrackAccess(ctx context.Context, ids ...uint) (int64, error)
}

// NewAccessHandler applies access events published by the search endpoint.
func NewAccessHandler(tracker AccessTracker) Handler {
	return func(ctx context.Context, body []byte) error {
		var event app.AccessEvent
		if err := json.Unmarshal(body, &event); err != nil {
			return fmt.Errorf("decode access event failed: %w", err)
		}
		if _, err := tracker.TrackAccess(ctx, event.IDs...); err != nil {
			return fmt.Errorf("track access failed: %w", err)
		}
		return nil
	}
}

type Ingester interface {
	IngestText(ctx context.Context, input app.IngestInput) (*app.IngestResult, error)
}

// NewIngestHandler runs queued ingest jobs through the ingest pipeline.
func NewIngestHandler(ingester Ingester) Handler {
	return func(ctx context.Context, body []byte) error {
		var job app.IngestInput
		if err := json.Unmarshal(body, &job); err != nil {
			return fmt.Errorf("decode ingest job failed: %w", err)
		}
		res, err := ingester.IngestText(ctx, job)
		if err != nil {
			return fmt.Errorf("ingest %s failed: %w", job.ContentID, err)
		}
		if res.Batch != nil && res.Batch.Failed > 0 {
			log.Printf("ingest %s stored %d of %d chunks", res.ContentID, res.Batch.Succeeded, res.ChunkCount)
		}
		return nil
	}
}
