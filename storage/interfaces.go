package storage

import (
	"context"

	"github.com/I-Bumblebee/jobs-ge-scraper/models"
)

// Sink is the interface any output backend must satisfy. SaveDescription is
// called before the detail that references it is merged; SaveMerged may be
// called concurrently; Finalize is called once per run after the last
// SaveMerged.
type Sink interface {
	SaveDescription(ctx context.Context, platform models.Platform, id, text string) (string, error)
	SaveMerged(ctx context.Context, job *models.MergedJob) error
	Finalize(ctx context.Context) (*models.SinkSummary, error)
	Close() error
}

// JobWriter is the narrower interface of backends that only store records.
// They are turned into a Sink by pairing them with a BlobStore.
type JobWriter interface {
	Name() string
	SaveMerged(ctx context.Context, job *models.MergedJob) error
	Finalize(ctx context.Context) (*models.SinkSummary, error)
	Close() error
}

// BlobStore persists description text and returns a reference to it. Ids
// are only unique within a platform.
type BlobStore interface {
	Put(ctx context.Context, platform models.Platform, id, text string) (string, error)
}

// RunRecorder is implemented by sinks that keep a history of runs.
type RunRecorder interface {
	RecordRun(ctx context.Context, summary *models.RunSummary) error
}

// NewJobCounter is implemented by sinks that can tell new jobs from repeats.
type NewJobCounter interface {
	NewJobs() int
}
