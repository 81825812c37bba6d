package scraper

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/I-Bumblebee/jobs-ge-scraper/utils"
)

// FetchExhaustedError is returned when every attempt for a URL failed.
type FetchExhaustedError struct {
	URL      string
	Attempts int
	Err      error
}

func (e *FetchExhaustedError) Error() string {
	return fmt.Sprintf("fetch %s: gave up after %d attempts: %v", e.URL, e.Attempts, e.Err)
}

func (e *FetchExhaustedError) Unwrap() error { return e.Err }

// StatusError reports a non-200 response.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.Code)
}

// FetcherOptions configures a Fetcher.
type FetcherOptions struct {
	MaxConcurrent int
	MaxRetries    int
	BaseDelay     time.Duration

	// RequestsPerSecond caps the request rate on top of the jittered delay.
	// Zero disables it.
	RequestsPerSecond float64
	Header            http.Header

	// Sleep and Jitter are test hooks. Jitter returns a value in [0,1).
	Sleep  func(ctx context.Context, d time.Duration) error
	Jitter func() float64
}

// Fetcher performs GETs with a concurrency ceiling, a jittered delay before
// every attempt, and exponential back-off between failed attempts.
type Fetcher struct {
	transport Transport
	sem       *semaphore.Weighted
	limiter   *rate.Limiter
	retry     *utils.RetryConfig
	header    http.Header
	baseDelay time.Duration
	sleep     func(ctx context.Context, d time.Duration) error
	jitter    func() float64
	logger    *utils.Logger

	inFlight atomic.Int64
	peak     atomic.Int64
}

// NewFetcher builds a Fetcher over transport.
func NewFetcher(transport Transport, opts FetcherOptions, logger *utils.Logger) *Fetcher {
	if opts.MaxConcurrent < 1 {
		opts.MaxConcurrent = 1
	}
	if opts.Sleep == nil {
		opts.Sleep = utils.SleepContext
	}
	if opts.Jitter == nil {
		opts.Jitter = rand.Float64
	}

	f := &Fetcher{
		transport: transport,
		sem:       semaphore.NewWeighted(int64(opts.MaxConcurrent)),
		header:    opts.Header,
		baseDelay: opts.BaseDelay,
		sleep:     opts.Sleep,
		jitter:    opts.Jitter,
		logger:    logger,
		retry: &utils.RetryConfig{
			MaxAttempts: opts.MaxRetries,
			BaseDelay:   opts.BaseDelay,
			Logger:      logger,
			Sleep:       opts.Sleep,
		},
	}
	if opts.RequestsPerSecond > 0 {
		f.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}
	return f
}

// Fetch returns the body of url once it answers 200. A *FetchExhaustedError
// is returned when all attempts failed; a cancelled ctx returns ctx.Err().
func (f *Fetcher) Fetch(ctx context.Context, url string) (string, error) {
	var body string
	err := f.retry.Do(ctx, url, func(int) error {
		b, err := f.attempt(ctx, url)
		if err != nil {
			return err
		}
		body = b
		return nil
	})

	var exhausted *utils.ExhaustedError
	if errors.As(err, &exhausted) {
		return "", &FetchExhaustedError{URL: url, Attempts: exhausted.Attempts, Err: exhausted.Err}
	}
	return body, err
}

// attempt holds one semaphore slot for the jittered delay and the request.
func (f *Fetcher) attempt(ctx context.Context, url string) (string, error) {
	if err := f.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer f.sem.Release(1)

	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}

	if err := f.sleep(ctx, f.jitterDelay()); err != nil {
		return "", err
	}
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}

	resp, err := f.transport.Get(ctx, url, f.header)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", &StatusError{URL: url, Code: resp.StatusCode}
	}
	return resp.Body, nil
}

// jitterDelay draws uniformly from [0.8*base, 1.2*base].
func (f *Fetcher) jitterDelay() time.Duration {
	factor := 0.8 + 0.4*f.jitter()
	return time.Duration(float64(f.baseDelay) * factor)
}

// InFlight is the number of attempts currently holding a slot.
func (f *Fetcher) InFlight() int { return int(f.inFlight.Load()) }

// Peak is the highest InFlight value observed.
func (f *Fetcher) Peak() int { return int(f.peak.Load()) }
