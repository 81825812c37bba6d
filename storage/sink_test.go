package storage

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/I-Bumblebee/jobs-ge-scraper/models"
	"github.com/I-Bumblebee/jobs-ge-scraper/utils"
)

type memoryWriter struct {
	name string
	fail error
	mu   sync.Mutex
	jobs []*models.MergedJob
	runs []*models.RunSummary
}

func (w *memoryWriter) Name() string { return w.name }

func (w *memoryWriter) SaveMerged(_ context.Context, job *models.MergedJob) error {
	if w.fail != nil {
		return w.fail
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.jobs = append(w.jobs, job)
	return nil
}

func (w *memoryWriter) Finalize(context.Context) (*models.SinkSummary, error) {
	return &models.SinkSummary{Name: w.name, Written: len(w.jobs), Location: "memory"}, nil
}

func (w *memoryWriter) RecordRun(_ context.Context, s *models.RunSummary) error {
	w.runs = append(w.runs, s)
	return nil
}

func (w *memoryWriter) Close() error { return nil }

type memoryBlobs struct{}

func (memoryBlobs) Put(_ context.Context, p models.Platform, id, _ string) (string, error) {
	return "mem/" + string(p) + "/" + id, nil
}

type fakeIndex struct {
	seen map[string]bool
	err  error
}

func (f *fakeIndex) MarkSeen(_ context.Context, p models.Platform, id string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	key := string(p) + id
	if f.seen[key] {
		return false, nil
	}
	f.seen[key] = true
	return true, nil
}

func (f *fakeIndex) Close() error { return nil }

func TestMultiSinkFansOut(t *testing.T) {
	a := &memoryWriter{name: "a"}
	b := &memoryWriter{name: "b", fail: errors.New("disk full")}
	sink := NewMultiSink(memoryBlobs{}, a, b)
	ctx := context.Background()

	ref, err := sink.SaveDescription(ctx, models.PlatformHrGe, "5", "text")
	require.NoError(t, err)
	assert.Equal(t, "mem/hr_ge/5", ref)

	err = sink.SaveMerged(ctx, sampleJob("5", "Five"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "b: disk full")
	assert.Len(t, a.jobs, 1)

	sum, err := sink.Finalize(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a+b", sum.Name)
	assert.Equal(t, 1, sum.Written)

	run := models.NewRunSummary(models.PlatformJobsGe)
	require.NoError(t, sink.RecordRun(ctx, run))
	assert.Len(t, a.runs, 1)
	assert.Len(t, b.runs, 1)
}

func TestMultiSinkFinalizeSumsWriters(t *testing.T) {
	a := &memoryWriter{name: "json"}
	b := &memoryWriter{name: "csv"}
	sink := NewMultiSink(memoryBlobs{}, a, b)
	ctx := context.Background()

	for _, id := range []string{"1", "2", "3"} {
		require.NoError(t, sink.SaveMerged(ctx, sampleJob(id, "Job")))
	}

	sum, err := sink.Finalize(ctx)
	require.NoError(t, err)
	assert.Equal(t, 6, sum.Written)
	assert.Equal(t, "json+csv", sum.Name)
	assert.Equal(t, "memory, memory", sum.Location)
	assert.Len(t, a.jobs, 3)
	assert.Len(t, b.jobs, 3)
}

func TestIndexedSinkCountsNewJobs(t *testing.T) {
	w := &memoryWriter{name: "mem"}
	idx := &fakeIndex{seen: map[string]bool{"jobs_ge1": true}}
	sink := NewIndexedSink(NewMultiSink(memoryBlobs{}, w), idx, utils.NewTestLogger())
	ctx := context.Background()

	for _, id := range []string{"1", "2", "3"} {
		require.NoError(t, sink.SaveMerged(ctx, sampleJob(id, "t")))
	}
	failed := sampleJob("4", "t")
	failed.DetailError = "timeout"
	require.NoError(t, sink.SaveMerged(ctx, failed))

	assert.Equal(t, 2, sink.NewJobs())
	assert.Equal(t, 0, sink.NewJobs(), "counter resets after read")
	assert.Len(t, w.jobs, 4)
}

func TestIndexedSinkIgnoresIndexErrors(t *testing.T) {
	w := &memoryWriter{name: "mem"}
	sink := NewIndexedSink(NewMultiSink(memoryBlobs{}, w), &fakeIndex{err: errors.New("redis down")}, utils.NewTestLogger())

	require.NoError(t, sink.SaveMerged(context.Background(), sampleJob("1", "t")))
	assert.Zero(t, sink.NewJobs())
}

func TestBuildJobUpsert(t *testing.T) {
	min := 800.0
	published := time.Date(2025, 6, 25, 0, 0, 0, 0, time.UTC)
	a := sampleJob("1", "A")
	a.Salary = &models.Salary{Min: &min, Currency: "GEL"}
	a.Dates.Published = &published
	b := sampleJob("2", "B")

	query, args, err := buildJobUpsert([]*models.MergedJob{a, b})
	require.NoError(t, err)

	assert.Len(t, args, 2*pgJobColumns)
	assert.Contains(t, query, "ON CONFLICT (platform, id) DO UPDATE")
	assert.Contains(t, query, "$42)")
	assert.Equal(t, 2, strings.Count(query, "($"))

	assert.Equal(t, "jobs_ge", args[0])
	assert.Equal(t, 800.0, args[10])
	assert.Nil(t, args[11])
	assert.Equal(t, published, args[14])
	assert.Nil(t, args[15])
	assert.Nil(t, args[pgJobColumns+10], "no salary means NULL bounds")
}
