package scraper

import (
	"context"
	"sync/atomic"

	"github.com/I-Bumblebee/jobs-ge-scraper/models"
	"github.com/I-Bumblebee/jobs-ge-scraper/utils"
)

// PageStats counts listing pages for one Summaries call.
type PageStats struct {
	Fetched int
	Failed  int
	Empty   int
}

// Paginator turns a target count into listing-page fetches and streams the
// rows as JobSummary values. Row order is not deterministic.
type Paginator struct {
	fetcher   *Fetcher
	extractor Extractor
	logger    *utils.Logger

	fetched atomic.Int64
	failed  atomic.Int64
	empty   atomic.Int64
}

// NewPaginator creates a Paginator. Use one per run.
func NewPaginator(fetcher *Fetcher, extractor Extractor, logger *utils.Logger) *Paginator {
	return &Paginator{fetcher: fetcher, extractor: extractor, logger: logger}
}

// PageCount is ceil(target / pageSize).
func PageCount(target, pageSize int) int {
	if target <= 0 || pageSize <= 0 {
		return 0
	}
	return (target + pageSize - 1) / pageSize
}

// finalPageLimit is how many rows the last page may contribute.
func finalPageLimit(target, pageSize int) int {
	if rem := target % pageSize; rem != 0 {
		return rem
	}
	return pageSize
}

// Summaries fetches up to PageCount pages, at most req.MaxListConcurrency at
// a time, and emits at most req.TargetCount summaries. An empty page stops
// new pages from being started; pages already running still finish. The
// channel is closed once every page task has returned.
func (p *Paginator) Summaries(ctx context.Context, req models.ScrapeRequest) <-chan models.JobSummary {
	out := make(chan models.JobSummary)

	go func() {
		defer close(out)

		pageSize := p.extractor.PageSize()
		pages := PageCount(req.TargetCount, pageSize)
		p.logger.Info("[paginator] %s: target %d, page size %d, %d page(s)",
			p.extractor.Platform(), req.TargetCount, pageSize, pages)

		run := &pageRun{
			Paginator: p,
			req:       req,
			pages:     pages,
			pageSize:  pageSize,
			seen:      utils.NewIDSet(),
			out:       out,
		}

		pool := utils.NewWorkerPool(req.MaxListConcurrency, 0)
		for page := 1; page <= pages; page++ {
			if run.ended.Load() {
				p.logger.Info("[paginator] End of results reached, not requesting page %d+", page)
				break
			}
			if err := pool.Submit(ctx, func() { run.page(ctx, page) }); err != nil {
				break
			}
		}
		pool.Wait()
	}()

	return out
}

// Stats reports page counts. Read it after the Summaries channel closes.
func (p *Paginator) Stats() PageStats {
	return PageStats{
		Fetched: int(p.fetched.Load()),
		Failed:  int(p.failed.Load()),
		Empty:   int(p.empty.Load()),
	}
}

type pageRun struct {
	*Paginator
	req      models.ScrapeRequest
	pages    int
	pageSize int
	seen     *utils.IDSet
	out      chan<- models.JobSummary

	ended   atomic.Bool
	emitted atomic.Int64
}

func (r *pageRun) page(ctx context.Context, page int) {
	// A slot may free up only after an earlier page saw the end.
	if r.ended.Load() || ctx.Err() != nil {
		return
	}

	url := r.extractor.ListingURL(r.req, page)
	html, err := r.fetcher.Fetch(ctx, url)
	if err != nil {
		if ctx.Err() == nil {
			r.failed.Add(1)
			r.logger.Error("[paginator] Page %d failed: %v", page, err)
		}
		return
	}
	r.fetched.Add(1)

	rows, rowErrs := r.extractor.ParseListingPage(html)
	for _, rowErr := range rowErrs {
		r.logger.Warn("[paginator] Page %d: skipping row: %v", page, rowErr)
	}

	if len(rows) == 0 {
		r.empty.Add(1)
		r.ended.Store(true)
		r.logger.Info("[paginator] Page %d returned 0 listings, stopping", page)
		return
	}

	if page == r.pages {
		if limit := finalPageLimit(r.req.TargetCount, r.pageSize); len(rows) > limit {
			rows = rows[:limit]
		}
	}

	for _, row := range rows {
		if row.ID == "" {
			r.logger.Warn("[paginator] Page %d: row %q has no id, skipping", page, row.Title)
			continue
		}
		if !r.seen.Add(row.ID) {
			r.logger.Debug("[paginator] Duplicate listing %s skipped", row.ID)
			continue
		}
		if r.emitted.Add(1) > int64(r.req.TargetCount) {
			return
		}
		select {
		case r.out <- row:
		case <-ctx.Done():
			return
		}
	}

	r.logger.Debug("[paginator] Page %d done, %d row(s)", page, len(rows))
}
