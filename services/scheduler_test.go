package services

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/I-Bumblebee/jobs-ge-scraper/utils"
)

func TestSchedulerRunsImmediately(t *testing.T) {
	var runs atomic.Int32
	done := make(chan struct{}, 1)

	s := NewScheduler("@every 1h", func(context.Context) {
		runs.Add(1)
		done <- struct{}{}
	}, utils.NewTestLogger())
	require.NoError(t, s.Start(context.Background()))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduled job did not run on start")
	}
	s.Stop()
	assert.Equal(t, int32(1), runs.Load())
}

func TestSchedulerSkipsOverlappingRun(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 2)
	var runs atomic.Int32

	s := NewScheduler("@every 1h", func(context.Context) {
		runs.Add(1)
		started <- struct{}{}
		<-release
	}, utils.NewTestLogger())
	require.NoError(t, s.Start(context.Background()))
	<-started

	s.run(context.Background())
	close(release)
	s.Stop()

	assert.Equal(t, int32(1), runs.Load())
}

func TestSchedulerRejectsBadExpression(t *testing.T) {
	s := NewScheduler("every now and then", func(context.Context) {}, utils.NewTestLogger())
	assert.Error(t, s.Start(context.Background()))
}
