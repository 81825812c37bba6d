package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/I-Bumblebee/jobs-ge-scraper/models"
)

// MultiSink pairs a BlobStore with one or more JobWriters. A merged job is
// offered to every writer; the first error is returned after all of them
// have been tried.
type MultiSink struct {
	blobs   BlobStore
	writers []JobWriter
}

// NewMultiSink builds a Sink over blobs and writers.
func NewMultiSink(blobs BlobStore, writers ...JobWriter) *MultiSink {
	return &MultiSink{blobs: blobs, writers: writers}
}

func (s *MultiSink) SaveDescription(ctx context.Context, platform models.Platform, id, text string) (string, error) {
	return s.blobs.Put(ctx, platform, id, text)
}

func (s *MultiSink) SaveMerged(ctx context.Context, job *models.MergedJob) error {
	var errs []error
	for _, w := range s.writers {
		if err := w.SaveMerged(ctx, job); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", w.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Finalize finalizes every writer. The combined summary names every
// writer that finished and sums what they wrote.
func (s *MultiSink) Finalize(ctx context.Context) (*models.SinkSummary, error) {
	var (
		errs      []error
		names     []string
		locations []string
		written   int
	)
	for _, w := range s.writers {
		sum, err := w.Finalize(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", w.Name(), err))
			continue
		}
		names = append(names, sum.Name)
		locations = append(locations, sum.Location)
		written += sum.Written
	}
	if len(names) == 0 {
		return nil, errors.Join(errs...)
	}
	out := &models.SinkSummary{
		Name:     strings.Join(names, "+"),
		Written:  written,
		Location: strings.Join(locations, ", "),
	}
	return out, errors.Join(errs...)
}

// RecordRun forwards to every writer that keeps run history.
func (s *MultiSink) RecordRun(ctx context.Context, summary *models.RunSummary) error {
	var errs []error
	for _, w := range s.writers {
		if r, ok := w.(RunRecorder); ok {
			if err := r.RecordRun(ctx, summary); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (s *MultiSink) Close() error {
	var errs []error
	for _, w := range s.writers {
		if err := w.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", w.Name(), err))
		}
	}
	return errors.Join(errs...)
}
