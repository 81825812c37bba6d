package scraper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/I-Bumblebee/jobs-ge-scraper/models"
	"github.com/I-Bumblebee/jobs-ge-scraper/storage"
	"github.com/I-Bumblebee/jobs-ge-scraper/utils"
)

// ErrListingUnavailable is returned when no listing page could be fetched.
var ErrListingUnavailable = errors.New("listing pages unavailable")

// Merger runs one scrape: it streams summaries from a Paginator, requests
// each job's detail page as soon as its id is known, joins the two halves by
// id and hands every merged record to the sink.
type Merger struct {
	extractor Extractor
	transport Transport
	sink      storage.Sink
	opts      FetcherOptions
	logger    *utils.Logger
}

// NewMerger creates a Merger. opts carries the knobs shared by the listing
// and detail fetchers; concurrency, retries and delay come from each
// request.
func NewMerger(extractor Extractor, transport Transport, sink storage.Sink, opts FetcherOptions, logger *utils.Logger) *Merger {
	return &Merger{
		extractor: extractor,
		transport: transport,
		sink:      sink,
		opts:      opts,
		logger:    logger.With("platform", string(extractor.Platform())),
	}
}

type pendingJob struct {
	summary   *models.JobSummary
	detail    *models.JobDetail
	cancelled bool
}

// mergeRun is the state of a single Run. An entry leaves pending as soon as
// it is merged; the paginator never yields an id twice, so nothing else about
// a merged job is kept.
type mergeRun struct {
	*Merger

	mu      sync.Mutex
	pending map[string]*pendingJob

	successful atomic.Int64
	failed     atomic.Int64

	errMu  sync.Mutex
	errors []string
}

// Run scrapes req.TargetCount jobs. It only returns an error for an invalid
// request or when no listing page could be fetched at all; everything else
// is reported in the summary.
func (m *Merger) Run(ctx context.Context, req models.ScrapeRequest) (*models.RunSummary, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	summary := models.NewRunSummary(req.Platform)
	m.logger.Info("[merger] Run %s started: target %d, list concurrency %d, detail concurrency %d",
		summary.RunID, req.TargetCount, req.MaxListConcurrency, req.MaxDetailConcurrency)

	run := &mergeRun{
		Merger:  m,
		pending: make(map[string]*pendingJob),
	}

	paginator := NewPaginator(m.newFetcher(req, req.MaxListConcurrency), m.extractor, m.logger)
	details := NewDetailFetcher(m.newFetcher(req, req.MaxDetailConcurrency), m.extractor, m.sink, m.logger)

	summaries := paginator.Summaries(ctx, req)
	targets := make(chan DetailTarget, req.MaxDetailConcurrency)
	detailStream := details.Details(ctx, targets)

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		defer close(targets)
		for s := range summaries {
			if !run.recordSummary(ctx, s) {
				continue
			}
			select {
			case targets <- DetailTarget{ID: s.ID, URL: s.URL}:
			case <-ctx.Done():
			}
		}
	}()

	go func() {
		defer wg.Done()
		for d := range detailStream {
			run.recordDetail(ctx, d)
		}
	}()

	wg.Wait()

	incomplete := run.reportIncomplete()
	stats := paginator.Stats()

	summary.Successful = int(run.successful.Load())
	summary.Failed = int(run.failed.Load())
	summary.TotalFound = summary.Successful + summary.Failed + incomplete
	summary.Incomplete = incomplete
	summary.PagesFetched = stats.Fetched
	summary.PagesFailed = stats.Failed
	for _, e := range run.errors {
		summary.AddError(e)
	}

	// The sink is finalized even when the run was cancelled.
	finalCtx := context.WithoutCancel(ctx)
	if sinkSummary, err := m.sink.Finalize(finalCtx); err != nil {
		m.logger.Error("[merger] Finalize output: %v", err)
		summary.AddError(fmt.Sprintf("finalize: %v", err))
	} else if sinkSummary != nil {
		m.logger.Info("[merger] Output %s: %d record(s) at %s", sinkSummary.Name, sinkSummary.Written, sinkSummary.Location)
	}
	if counter, ok := m.sink.(storage.NewJobCounter); ok {
		summary.NewJobs = counter.NewJobs()
	}

	summary.Finish()

	if recorder, ok := m.sink.(storage.RunRecorder); ok {
		if err := recorder.RecordRun(finalCtx, summary); err != nil {
			m.logger.Warn("[merger] Record run: %v", err)
		}
	}

	m.logger.Info("[merger] Run %s finished in %v: found %d, successful %d, failed %d, incomplete %d",
		summary.RunID, summary.Duration.Round(time.Millisecond), summary.TotalFound, summary.Successful, summary.Failed, summary.Incomplete)

	if summary.TotalFound == 0 && stats.Fetched == 0 && stats.Failed > 0 && ctx.Err() == nil {
		return summary, fmt.Errorf("%w: %d page(s) failed", ErrListingUnavailable, stats.Failed)
	}
	return summary, nil
}

func (m *Merger) newFetcher(req models.ScrapeRequest, concurrency int) *Fetcher {
	opts := m.opts
	opts.MaxConcurrent = concurrency
	opts.MaxRetries = req.MaxRetries
	opts.BaseDelay = req.BaseDelay
	return NewFetcher(m.transport, opts, m.logger)
}

// recordSummary stores s and reports whether its detail should be fetched.
func (r *mergeRun) recordSummary(ctx context.Context, s models.JobSummary) bool {
	r.mu.Lock()
	entry, ok := r.pending[s.ID]
	if !ok {
		entry = &pendingJob{}
		r.pending[s.ID] = entry
	}
	if entry.summary != nil {
		r.mu.Unlock()
		r.logger.Debug("[merger] Duplicate summary for job %s", s.ID)
		return false
	}
	entry.summary = &s
	merged := r.takeIfComplete(s.ID, entry)
	r.mu.Unlock()

	if merged != nil {
		r.emit(ctx, merged)
		return false
	}
	return true
}

func (r *mergeRun) recordDetail(ctx context.Context, d models.JobDetail) {
	r.mu.Lock()
	entry, ok := r.pending[d.ID]
	if !ok {
		entry = &pendingJob{}
		r.pending[d.ID] = entry
	}
	if d.Cancelled {
		entry.cancelled = true
		r.mu.Unlock()
		return
	}
	entry.detail = &d
	merged := r.takeIfComplete(d.ID, entry)
	r.mu.Unlock()

	if merged != nil {
		r.emit(ctx, merged)
	}
}

// takeIfComplete removes a complete entry from the table. Caller holds mu.
func (r *mergeRun) takeIfComplete(id string, entry *pendingJob) *pendingJob {
	if entry.summary == nil || entry.detail == nil {
		return nil
	}
	delete(r.pending, id)
	return entry
}

func (r *mergeRun) emit(ctx context.Context, entry *pendingJob) {
	job := models.Merge(*entry.summary, *entry.detail)

	err := r.sink.SaveMerged(context.WithoutCancel(ctx), job)
	switch {
	case entry.detail.Failed():
		r.failed.Add(1)
		r.addError(fmt.Sprintf("job %s: %s", job.ID, entry.detail.Error))
		if err != nil {
			r.logger.Warn("[merger] Job %s: save partial record: %v", job.ID, err)
		}
	case err != nil:
		r.failed.Add(1)
		r.addError(fmt.Sprintf("job %s: save: %v", job.ID, err))
		r.logger.Error("[merger] Job %s: save: %v", job.ID, err)
	default:
		r.successful.Add(1)
		r.logger.Debug("[merger] Job %s merged", job.ID)
	}
}

func (r *mergeRun) addError(msg string) {
	r.errMu.Lock()
	r.errors = append(r.errors, msg)
	r.errMu.Unlock()
}

// reportIncomplete logs and counts every id still in the pending table.
func (r *mergeRun) reportIncomplete() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, entry := range r.pending {
		reason := "detail never arrived"
		switch {
		case entry.cancelled:
			reason = "cancelled"
		case entry.summary == nil:
			reason = "summary never arrived"
		}
		r.logger.Warn("[merger] Job %s incomplete: %s", id, reason)
	}
	return len(r.pending)
}
