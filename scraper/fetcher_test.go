package scraper

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/I-Bumblebee/jobs-ge-scraper/utils"
)

type sleepRecorder struct {
	mu     sync.Mutex
	sleeps []time.Duration
}

func (r *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.sleeps = append(r.sleeps, d)
	r.mu.Unlock()
	return ctx.Err()
}

func TestFetcherConcurrencyCeiling(t *testing.T) {
	tr := newFakeTransport(func(context.Context, string, int) (*Response, error) { return ok("x") })
	tr.delay = 20 * time.Millisecond

	f := NewFetcher(tr, FetcherOptions{MaxConcurrent: 2, MaxRetries: 1, Sleep: noSleep}, utils.NewTestLogger())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.Fetch(context.Background(), "u")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, tr.peak.Load(), int64(2))
	assert.LessOrEqual(t, f.Peak(), 2)
	assert.Equal(t, 0, f.InFlight())
}

func TestFetcherRetriesThenSucceeds(t *testing.T) {
	tr := newFakeTransport(func(_ context.Context, _ string, call int) (*Response, error) {
		if call <= 2 {
			return status(http.StatusServiceUnavailable)
		}
		return ok("body")
	})
	rec := &sleepRecorder{}
	base := 100 * time.Millisecond
	f := NewFetcher(tr, FetcherOptions{
		MaxConcurrent: 1,
		MaxRetries:    3,
		BaseDelay:     base,
		Sleep:         rec.sleep,
		Jitter:        func() float64 { return 0.5 },
	}, utils.NewTestLogger())

	body, err := f.Fetch(context.Background(), "u")
	require.NoError(t, err)
	assert.Equal(t, "body", body)
	assert.Equal(t, 3, tr.callsTo("u"))

	// jitter, backoff 1x, jitter, backoff 2x, jitter
	assert.Equal(t, []time.Duration{base, base, base, 2 * base, base}, rec.sleeps)
}

func TestFetcherExhausted(t *testing.T) {
	tr := newFakeTransport(func(context.Context, string, int) (*Response, error) {
		return nil, errors.New("connection reset")
	})
	f := NewFetcher(tr, FetcherOptions{MaxConcurrent: 1, MaxRetries: 4, Sleep: noSleep}, utils.NewTestLogger())

	_, err := f.Fetch(context.Background(), "u")

	var exhausted *FetchExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 4, exhausted.Attempts)
	assert.Equal(t, "u", exhausted.URL)
	assert.Equal(t, 4, tr.callsTo("u"))
}

func TestFetcherNon200IsRetried(t *testing.T) {
	tr := newFakeTransport(func(context.Context, string, int) (*Response, error) { return status(http.StatusNotFound) })
	f := NewFetcher(tr, FetcherOptions{MaxConcurrent: 1, MaxRetries: 2, Sleep: noSleep}, utils.NewTestLogger())

	_, err := f.Fetch(context.Background(), "u")

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.Code)
	assert.Equal(t, 2, tr.callsTo("u"))
}

func TestFetcherJitterBounds(t *testing.T) {
	base := time.Second
	for _, tc := range []struct {
		jitter float64
		want   time.Duration
	}{
		{0, 800 * time.Millisecond},
		{0.5, time.Second},
		{1, 1200 * time.Millisecond},
	} {
		f := NewFetcher(nil, FetcherOptions{BaseDelay: base, Jitter: func() float64 { return tc.jitter }}, utils.NewTestLogger())
		assert.Equal(t, tc.want, f.jitterDelay())
	}
}

func TestFetcherCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	tr := newFakeTransport(func(ctx context.Context, _ string, _ int) (*Response, error) {
		cancel()
		return nil, ctx.Err()
	})
	f := NewFetcher(tr, FetcherOptions{MaxConcurrent: 1, MaxRetries: 5, Sleep: noSleep}, utils.NewTestLogger())

	_, err := f.Fetch(ctx, "u")
	assert.ErrorIs(t, err, context.Canceled)

	var exhausted *FetchExhaustedError
	assert.False(t, errors.As(err, &exhausted), "cancellation is not exhaustion")
	assert.Equal(t, 1, tr.callsTo("u"))
}

func TestFetcherRateLimit(t *testing.T) {
	tr := newFakeTransport(func(context.Context, string, int) (*Response, error) { return ok("x") })
	f := NewFetcher(tr, FetcherOptions{MaxConcurrent: 4, MaxRetries: 1, RequestsPerSecond: 20, Sleep: noSleep}, utils.NewTestLogger())

	start := time.Now()
	for i := 0; i < 4; i++ {
		_, err := f.Fetch(context.Background(), "u")
		require.NoError(t, err)
	}
	// Burst of 1, then one token every 50ms.
	assert.GreaterOrEqual(t, time.Since(start), 140*time.Millisecond)
}

func TestHTTPTransport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		assert.Contains(t, r.Header.Get("Accept-Language"), "ka-GE")
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("<html>ok</html>"))
	}))
	defer srv.Close()

	tr := NewHTTPTransport(5 * time.Second)
	header := DefaultHeader("test-agent")

	resp, err := tr.Get(context.Background(), srv.URL+"/page", header)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "<html>ok</html>", resp.Body)

	resp, err = tr.Get(context.Background(), srv.URL+"/missing", header)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
