// Package hrge reads hr.ge. The board renders its listings client-side, so
// pages must be fetched through scraper.BrowserTransport.
package hrge

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/I-Bumblebee/jobs-ge-scraper/models"
	"github.com/I-Bumblebee/jobs-ge-scraper/scraper"
	"github.com/I-Bumblebee/jobs-ge-scraper/services"
)

const (
	baseURL  = "https://www.hr.ge"
	pageSize = 20
	vipMark  = "ვიპ"
)

var idRegexp = regexp.MustCompile(`/announcement/(\d+)`)

// Extractor implements scraper.Extractor for hr.ge.
type Extractor struct {
	dates *services.DateParser
	now   func() time.Time
}

var _ scraper.Extractor = (*Extractor)(nil)

func New() *Extractor {
	return &Extractor{dates: services.NewDateParser(), now: time.Now}
}

func (e *Extractor) Platform() models.Platform { return models.PlatformHrGe }

func (e *Extractor) PageSize() int { return pageSize }

func (e *Extractor) ListingURL(_ models.ScrapeRequest, page int) string {
	return fmt.Sprintf("%s/search-posting?page=%d", baseURL, page)
}

func (e *Extractor) DetailURL(id string) string {
	return fmt.Sprintf("%s/announcement/%s", baseURL, id)
}

func (e *Extractor) ParseListingPage(html string) ([]models.JobSummary, []error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, []error{fmt.Errorf("hr.ge: parse listing html: %w", err)}
	}

	var (
		rows    []models.JobSummary
		rowErrs []error
	)
	doc.Find("app-announcement-item").Each(func(i int, item *goquery.Selection) {
		job, err := e.parseItem(item)
		if err != nil {
			rowErrs = append(rowErrs, fmt.Errorf("hr.ge item %d: %w", i, err))
			return
		}
		rows = append(rows, job)
	})
	return rows, rowErrs
}

func (e *Extractor) parseItem(item *goquery.Selection) (models.JobSummary, error) {
	link := item.Find("a.title").First()
	href, ok := link.Attr("href")
	if !ok {
		return models.JobSummary{}, errors.New("no title link")
	}
	match := idRegexp.FindStringSubmatch(href)
	if match == nil {
		return models.JobSummary{}, fmt.Errorf("no id in %q", href)
	}
	title := link.Find("div.title--bold-desktop").First()
	if title.Length() == 0 {
		title = link
	}

	var places []string
	item.Find("hrra-announcement-location span.locaion-item").Each(func(_ int, s *goquery.Selection) {
		if p := services.NormaliseText(s.Text()); p != "" {
			places = append(places, p)
		}
	})
	city := strings.Join(places, ", ")

	dateSection := item.Find("div.date").First()
	var published, deadline *time.Time
	if spans := dateSection.Find("span"); spans.Length() >= 2 {
		published, deadline = e.dates.Span(strings.ReplaceAll(spans.Eq(0).Text(), "-", " "), spans.Eq(1).Text())
	}

	job := models.JobSummary{
		ID:       match[1],
		Platform: models.PlatformHrGe,
		Title:    services.NormaliseText(title.Text()),
		URL:      services.AbsoluteURL(baseURL, href),
		Location: models.Location{
			City:     city,
			Country:  "Georgia",
			IsRemote: services.IsRemote(city),
		},
		Dates: models.JobDates{Published: published, Deadline: deadline, Scraped: e.now()},
		Metadata: models.JobMetadata{
			IsVIP: strings.Contains(dateSection.Find("div.ann-type").Text(), vipMark),
		},
	}
	job.Metadata.IsRemote = job.Location.IsRemote

	if company := item.Find("a.company__title").First(); company.Length() > 0 {
		job.Company.Name = services.NormaliseText(company.Text())
		job.Company.JobsURL = services.AbsoluteURL(baseURL, company.AttrOr("href", ""))
	}
	if logo, ok := item.Find("img.company-logo__img").First().Attr("src"); ok {
		job.Company.LogoURL = services.AbsoluteURL(baseURL, logo)
	}

	return job, nil
}

// ParseDetailPage reads the announcement tile.
func (e *Extractor) ParseDetailPage(html, id string) (*scraper.ParsedDetail, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("hr.ge: parse detail html: %w", err)
	}

	tile := doc.Find("div.tile.tile--with-logo").First()
	if tile.Length() == 0 {
		return nil, fmt.Errorf("hr.ge: announcement %s: content tile not found", id)
	}

	detail := &scraper.ParsedDetail{
		Title: services.NormaliseText(tile.Find("div.ann-title-container__text").First().Text()),
		Dates: models.JobDates{Scraped: e.now()},
	}
	if spans := tile.Find("div.additional-info__date span"); spans.Length() >= 2 {
		detail.Dates.Published, detail.Dates.Deadline = e.dates.Span(spans.Eq(0).Text(), spans.Eq(1).Text())
	}

	body := tile.Find("div.description").First()
	if body.Length() > 0 {
		description, err := body.Html()
		if err != nil {
			return nil, fmt.Errorf("hr.ge: announcement %s: render description: %w", id, err)
		}
		detail.Description = strings.TrimSpace(description)
		detail.Salary = services.ParseSalary(body.Text())
	}

	return detail, nil
}
