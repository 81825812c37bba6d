package storage

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/I-Bumblebee/jobs-ge-scraper/models"
	"github.com/I-Bumblebee/jobs-ge-scraper/utils"
)

// SeenIndex remembers which jobs earlier runs already stored.
type SeenIndex interface {
	// MarkSeen records the job and reports whether it was new.
	MarkSeen(ctx context.Context, platform models.Platform, id string) (bool, error)
	Close() error
}

// RedisIndex is a SeenIndex backed by Redis keys with a TTL.
type RedisIndex struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisIndex parses redisURL and verifies connectivity.
func NewRedisIndex(ctx context.Context, redisURL string, ttl time.Duration) (*RedisIndex, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis.ParseURL(%q): %w", redisURL, err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &RedisIndex{client: client, ttl: ttl}, nil
}

func (r *RedisIndex) MarkSeen(ctx context.Context, platform models.Platform, id string) (bool, error) {
	key := fmt.Sprintf("jobs:seen:%s:%s", platform, id)
	created, err := r.client.SetNX(ctx, key, time.Now().Unix(), r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx %s: %w", key, err)
	}
	if !created {
		r.client.Expire(ctx, key, r.ttl)
	}
	return created, nil
}

func (r *RedisIndex) Close() error {
	return r.client.Close()
}

// IndexedSink wraps a Sink and counts how many stored jobs were not seen by
// an earlier run. Index failures are logged and never fail the write.
type IndexedSink struct {
	Sink
	index  SeenIndex
	logger *utils.Logger
	fresh  atomic.Int64
}

// NewIndexedSink decorates next with index.
func NewIndexedSink(next Sink, index SeenIndex, logger *utils.Logger) *IndexedSink {
	return &IndexedSink{Sink: next, index: index, logger: logger}
}

func (s *IndexedSink) SaveMerged(ctx context.Context, job *models.MergedJob) error {
	if err := s.Sink.SaveMerged(ctx, job); err != nil {
		return err
	}
	if job.DetailError != "" {
		return nil
	}
	isNew, err := s.index.MarkSeen(ctx, job.Platform, job.ID)
	if err != nil {
		s.logger.Warn("[index] %v", err)
		return nil
	}
	if isNew {
		s.fresh.Add(1)
	}
	return nil
}

// NewJobs returns the count of new jobs since the last call.
func (s *IndexedSink) NewJobs() int {
	return int(s.fresh.Swap(0))
}

// RecordRun forwards to the wrapped sink when it keeps run history.
func (s *IndexedSink) RecordRun(ctx context.Context, summary *models.RunSummary) error {
	if r, ok := s.Sink.(RunRecorder); ok {
		return r.RecordRun(ctx, summary)
	}
	return nil
}

func (s *IndexedSink) Close() error {
	err := s.Sink.Close()
	if ierr := s.index.Close(); err == nil {
		err = ierr
	}
	return err
}
