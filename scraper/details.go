package scraper

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/I-Bumblebee/jobs-ge-scraper/models"
	"github.com/I-Bumblebee/jobs-ge-scraper/utils"
)

// DetailTarget is one detail page to fetch.
type DetailTarget struct {
	ID  string
	URL string
}

// DescriptionSaver stores description text and returns a reference to it.
type DescriptionSaver interface {
	SaveDescription(ctx context.Context, platform models.Platform, id, text string) (string, error)
}

// DetailFetcher fetches detail pages on its own Fetcher, so detail traffic
// has a ceiling independent of listing traffic.
type DetailFetcher struct {
	fetcher   *Fetcher
	extractor Extractor
	saver     DescriptionSaver
	logger    *utils.Logger
}

// NewDetailFetcher creates a DetailFetcher.
func NewDetailFetcher(fetcher *Fetcher, extractor Extractor, saver DescriptionSaver, logger *utils.Logger) *DetailFetcher {
	return &DetailFetcher{fetcher: fetcher, extractor: extractor, saver: saver, logger: logger}
}

// Details emits one JobDetail per target in completion order. Failures come
// back as details with Error set; the stream only ends once targets is
// closed and every started fetch has reported.
func (d *DetailFetcher) Details(ctx context.Context, targets <-chan DetailTarget) <-chan models.JobDetail {
	out := make(chan models.JobDetail)

	go func() {
		defer close(out)

		var wg sync.WaitGroup
		for t := range targets {
			wg.Add(1)
			go func(t DetailTarget) {
				defer wg.Done()
				out <- d.fetchOne(ctx, t)
			}(t)
		}
		wg.Wait()
	}()

	return out
}

func (d *DetailFetcher) fetchOne(ctx context.Context, t DetailTarget) models.JobDetail {
	url := t.URL
	if url == "" {
		url = d.extractor.DetailURL(t.ID)
	}

	html, err := d.fetcher.Fetch(ctx, url)
	if err != nil {
		return d.failed(ctx, t.ID, err)
	}

	parsed, err := d.extractor.ParseDetailPage(html, t.ID)
	if err != nil {
		return d.failed(ctx, t.ID, fmt.Errorf("parse detail: %w", err))
	}

	detail := models.JobDetail{
		ID:     t.ID,
		Title:  parsed.Title,
		Dates:  parsed.Dates,
		Salary: parsed.Salary,
	}

	if parsed.Description != "" {
		ref, err := d.saver.SaveDescription(ctx, d.extractor.Platform(), t.ID, parsed.Description)
		if err != nil {
			return d.failed(ctx, t.ID, fmt.Errorf("save description: %w", err))
		}
		detail.DescriptionRef = ref
	} else {
		d.logger.Debug("[details] Job %s has no description", t.ID)
	}

	return detail
}

func (d *DetailFetcher) failed(ctx context.Context, id string, err error) models.JobDetail {
	cancelled := ctx.Err() != nil &&
		(errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded))
	if !cancelled {
		d.logger.Warn("[details] Job %s: %v", id, err)
	}
	return models.JobDetail{ID: id, Error: err.Error(), Cancelled: cancelled}
}
