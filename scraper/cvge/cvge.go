// Package cvge reads listings and announcements from cv.ge.
package cvge

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
	baseURL  = "https://www.cv.ge"
	pageSize = 30
	vipMark  = "ვიპ"
)

var idRegexp = regexp.MustCompile(`/announcement/(\d+)`)

// Extractor implements scraper.Extractor for cv.ge. The board has no
// query-string filters, so only the page number varies.
type Extractor struct {
	dates *services.DateParser
	now   func() time.Time
}

var _ scraper.Extractor = (*Extractor)(nil)

func New() *Extractor {
	return &Extractor{dates: services.NewDateParser(), now: time.Now}
}

func (e *Extractor) Platform() models.Platform { return models.PlatformCvGe }

func (e *Extractor) PageSize() int { return pageSize }

func (e *Extractor) ListingURL(_ models.ScrapeRequest, page int) string {
	if page <= 1 {
		return baseURL + "/announcements/all"
	}
	return fmt.Sprintf("%s/announcements/all?page=%d", baseURL, page)
}

func (e *Extractor) DetailURL(id string) string {
	return fmt.Sprintf("%s/announcement/%s", baseURL, id)
}

func (e *Extractor) ParseListingPage(html string) ([]models.JobSummary, []error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, []error{fmt.Errorf("cv.ge: parse listing html: %w", err)}
	}

	var (
		rows    []models.JobSummary
		rowErrs []error
	)
	doc.Find("div.item-listing div.list-item").Each(func(i int, item *goquery.Selection) {
		job, err := e.parseItem(item)
		if err != nil {
			rowErrs = append(rowErrs, fmt.Errorf("cv.ge item %d: %w", i, err))
			return
		}
		rows = append(rows, job)
	})
	return rows, rowErrs
}

func (e *Extractor) parseItem(item *goquery.Selection) (models.JobSummary, error) {
	link := item.Find("p.list-item-title a.announcement-list-item").First()
	href, ok := link.Attr("href")
	if !ok {
		return models.JobSummary{}, errors.New("no announcement link")
	}
	match := idRegexp.FindStringSubmatch(href)
	if match == nil {
		return models.JobSummary{}, fmt.Errorf("no id in %q", href)
	}

	city := services.NormaliseText(item.Find("span.list-item-tag.item-badge").First().Text())
	published, deadline := e.dates.ParseRange(item.Find("span.list-item-time").First().Text())

	job := models.JobSummary{
		ID:       match[1],
		Platform: models.PlatformCvGe,
		Title:    services.NormaliseText(link.Text()),
		URL:      services.AbsoluteURL(baseURL, href),
		Location: models.Location{
			City:     city,
			Country:  "Georgia",
			IsRemote: services.IsRemote(city),
		},
		Dates: models.JobDates{Published: published, Deadline: deadline, Scraped: e.now()},
		Metadata: models.JobMetadata{
			IsVIP: strings.Contains(item.Find("p.list-item-location").Text(), vipMark),
		},
	}
	job.Metadata.IsRemote = job.Location.IsRemote

	if company := item.Find("a.list-item-company").First(); company.Length() > 0 {
		job.Company.Name = services.NormaliseText(company.Text())
		job.Company.JobsURL = services.AbsoluteURL(baseURL, company.AttrOr("href", ""))
	}
	if logo, ok := item.Find("img").First().Attr("src"); ok {
		job.Company.LogoURL = services.AbsoluteURL(baseURL, logo)
	}

	return job, nil
}

// ParseDetailPage reads div.entry-content as the description and looks for
// a lari amount in it.
func (e *Extractor) ParseDetailPage(html, id string) (*scraper.ParsedDetail, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("cv.ge: parse detail html: %w", err)
	}

	content := doc.Find("div.entry-content").First()
	if content.Length() == 0 {
		return nil, fmt.Errorf("cv.ge: announcement %s: entry-content not found", id)
	}
	description, err := content.Html()
	if err != nil {
		return nil, fmt.Errorf("cv.ge: announcement %s: render description: %w", id, err)
	}

	return &scraper.ParsedDetail{
		Title:       services.NormaliseText(doc.Find("h1").First().Text()),
		Dates:       models.JobDates{Scraped: e.now()},
		Salary:      services.ParseSalary(content.Text()),
		Description: strings.TrimSpace(description),
	}, nil
}
