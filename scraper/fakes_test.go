package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/I-Bumblebee/jobs-ge-scraper/models"
)

// fakeTransport answers from a handler and records calls and concurrency.
type fakeTransport struct {
	handler func(ctx context.Context, url string, call int) (*Response, error)
	delay   time.Duration

	mu         sync.Mutex
	calls      map[string]int
	kindActive map[string]int
	kindPeak   map[string]int

	inFlight atomic.Int64
	peak     atomic.Int64
}

func newFakeTransport(handler func(ctx context.Context, url string, call int) (*Response, error)) *fakeTransport {
	return &fakeTransport{
		handler:    handler,
		calls:      make(map[string]int),
		kindActive: make(map[string]int),
		kindPeak:   make(map[string]int),
	}
}

// requestKind splits traffic into listing and detail requests.
func requestKind(url string) string {
	if strings.HasPrefix(url, "list") {
		return "list"
	}
	return "detail"
}

func (f *fakeTransport) Get(ctx context.Context, url string, _ http.Header) (*Response, error) {
	kind := requestKind(url)
	f.mu.Lock()
	f.calls[url]++
	call := f.calls[url]
	f.kindActive[kind]++
	f.kindPeak[kind] = max(f.kindPeak[kind], f.kindActive[kind])
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.kindActive[kind]--
		f.mu.Unlock()
	}()

	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.handler(ctx, url, call)
}

// peakOf is the most requests of one kind that were ever in flight together.
func (f *fakeTransport) peakOf(kind string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.kindPeak[kind]
}

func (f *fakeTransport) callsTo(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

func ok(body string) (*Response, error) {
	return &Response{StatusCode: http.StatusOK, Body: body}, nil
}

func status(code int) (*Response, error) {
	return &Response{StatusCode: code}, nil
}

// fakeExtractor reads listing pages as one id per line ("!x" is a broken
// row) and detail pages as "desc:<text>".
type fakeExtractor struct {
	pageSize int
}

func (e *fakeExtractor) Platform() models.Platform { return models.PlatformJobsGe }

func (e *fakeExtractor) PageSize() int { return e.pageSize }

func (e *fakeExtractor) ListingURL(_ models.ScrapeRequest, page int) string {
	return fmt.Sprintf("list?page=%d", page)
}

func (e *fakeExtractor) DetailURL(id string) string { return "detail/" + id }

func (e *fakeExtractor) ParseListingPage(html string) ([]models.JobSummary, []error) {
	var rows []models.JobSummary
	var errs []error
	for _, line := range strings.Fields(html) {
		if strings.HasPrefix(line, "!") {
			errs = append(errs, fmt.Errorf("broken row %q", line))
			continue
		}
		rows = append(rows, models.JobSummary{
			ID:       line,
			Platform: models.PlatformJobsGe,
			Title:    "job " + line,
			URL:      e.DetailURL(line),
		})
	}
	return rows, errs
}

func (e *fakeExtractor) ParseDetailPage(html, id string) (*ParsedDetail, error) {
	text, found := strings.CutPrefix(html, "desc:")
	if !found {
		return nil, errors.New("no description marker")
	}
	return &ParsedDetail{Title: "detail " + id, Description: text}, nil
}

// pagesHandler serves listing pages from a page->ids map and details for
// any id. Missing pages are empty.
func pagesHandler(pages map[int][]string) func(context.Context, string, int) (*Response, error) {
	return func(_ context.Context, url string, _ int) (*Response, error) {
		var page int
		if _, err := fmt.Sscanf(url, "list?page=%d", &page); err == nil {
			return ok(strings.Join(pages[page], "\n"))
		}
		if id, found := strings.CutPrefix(url, "detail/"); found {
			return ok("desc:<p>" + id + "</p>")
		}
		return status(http.StatusNotFound)
	}
}

func idRange(from, to int) []string {
	ids := make([]string, 0, to-from+1)
	for i := from; i <= to; i++ {
		ids = append(ids, fmt.Sprint(i))
	}
	return ids
}

func noSleep(context.Context, time.Duration) error { return nil }

// memorySink is an in-memory storage.Sink that checks descriptions are
// stored before the record referencing them.
type memorySink struct {
	mu           sync.Mutex
	descriptions map[string]string
	jobs         map[string]*models.MergedJob
	saves        map[string]int
	failOn       map[string]bool
	orderBroken  bool
	finalized    int
	runs         []*models.RunSummary
}

func newMemorySink() *memorySink {
	return &memorySink{
		descriptions: make(map[string]string),
		jobs:         make(map[string]*models.MergedJob),
		saves:        make(map[string]int),
		failOn:       make(map[string]bool),
	}
}

func (s *memorySink) SaveDescription(_ context.Context, _ models.Platform, id, text string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.descriptions[id] = text
	return "mem/" + id, nil
}

func (s *memorySink) SaveMerged(_ context.Context, job *models.MergedJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves[job.ID]++
	if s.failOn[job.ID] {
		return errors.New("write refused")
	}
	if job.DescriptionReference != "" {
		if _, stored := s.descriptions[job.ID]; !stored {
			s.orderBroken = true
		}
	}
	s.jobs[job.ID] = job
	return nil
}

func (s *memorySink) Finalize(context.Context) (*models.SinkSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finalized++
	return &models.SinkSummary{Name: "memory", Written: len(s.jobs)}, nil
}

func (s *memorySink) RecordRun(_ context.Context, summary *models.RunSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, summary)
	return nil
}

func (s *memorySink) Close() error { return nil }
