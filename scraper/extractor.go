package scraper

import "github.com/I-Bumblebee/jobs-ge-scraper/models"

// ParsedDetail is what an extractor reads from a detail page.
type ParsedDetail struct {
	Title       string
	Dates       models.JobDates
	Salary      *models.Salary
	Description string
}

// Extractor holds the per-board knowledge: where pages live and how to read
// them. Parsers are pure functions of the HTML.
type Extractor interface {
	Platform() models.Platform
	PageSize() int
	ListingURL(req models.ScrapeRequest, page int) string
	DetailURL(id string) string

	// ParseListingPage returns the rows it could read plus one error per
	// row it had to skip. No rows and no errors means the page is empty.
	ParseListingPage(html string) ([]models.JobSummary, []error)
	ParseDetailPage(html, id string) (*ParsedDetail, error)
}
