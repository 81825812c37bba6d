// Package jobsge reads listings and job pages from jobs.ge.
package jobsge

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/I-Bumblebee/jobs-ge-scraper/models"
	"github.com/I-Bumblebee/jobs-ge-scraper/scraper"
	"github.com/I-Bumblebee/jobs-ge-scraper/services"
)

const (
	baseURL  = "https://jobs.ge"
	pageSize = 300
)

var idRegexp = regexp.MustCompile(`id=(\d+)`)

// Extractor implements scraper.Extractor for jobs.ge.
type Extractor struct {
	locale string
	dates  *services.DateParser
	now    func() time.Time
}

var _ scraper.Extractor = (*Extractor)(nil)

// New returns an extractor producing URLs for locale ("ge" or "en").
func New(locale string) *Extractor {
	return &Extractor{locale: locale, dates: services.NewDateParser(), now: time.Now}
}

func (e *Extractor) Platform() models.Platform { return models.PlatformJobsGe }

func (e *Extractor) PageSize() int { return pageSize }

func (e *Extractor) ListingURL(req models.ScrapeRequest, page int) string {
	q := url.Values{}
	q.Set("page", fmt.Sprint(page))
	for key, value := range map[string]string{"cid": req.CategoryID, "lid": req.LocationID, "q": req.Query} {
		if value != "" {
			q.Set(key, value)
		}
	}
	if req.RequireSalary {
		q.Set("has_salary", "1")
	}
	return fmt.Sprintf("%s/%s/?%s", baseURL, req.Locale, q.Encode())
}

func (e *Extractor) DetailURL(id string) string {
	return fmt.Sprintf("%s/%s/?view=jobs&id=%s", baseURL, e.locale, id)
}

// ParseListingPage reads #job_list_table. Rows with fewer than six cells
// are layout rows and are skipped silently.
func (e *Extractor) ParseListingPage(html string) ([]models.JobSummary, []error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, []error{fmt.Errorf("jobs.ge: parse listing html: %w", err)}
	}

	var (
		rows    []models.JobSummary
		rowErrs []error
	)
	doc.Find("#job_list_table tr").Each(func(i int, tr *goquery.Selection) {
		cells := tr.Find("td")
		if cells.Length() < 6 {
			return
		}
		job, err := e.parseRow(cells)
		if err != nil {
			rowErrs = append(rowErrs, fmt.Errorf("jobs.ge row %d: %w", i, err))
			return
		}
		rows = append(rows, job)
	})
	return rows, rowErrs
}

func (e *Extractor) parseRow(cells *goquery.Selection) (models.JobSummary, error) {
	titleCell := cells.Eq(1)
	link := titleCell.Find("a").First()
	href, ok := link.Attr("href")
	if !ok {
		return models.JobSummary{}, errors.New("no job link")
	}
	match := idRegexp.FindStringSubmatch(href)
	if match == nil {
		return models.JobSummary{}, fmt.Errorf("no id in %q", href)
	}

	city := strings.Trim(services.NormaliseText(titleCell.Find("i").First().Text()), "- ")
	published, deadline := e.dates.Span(cells.Eq(4).Text(), cells.Eq(5).Text())
	job := models.JobSummary{
		ID:       match[1],
		Platform: models.PlatformJobsGe,
		Title:    services.NormaliseText(link.Text()),
		URL:      services.AbsoluteURL(baseURL, href),
		Location: models.Location{
			City:     city,
			Country:  "Georgia",
			IsRemote: services.IsRemote(city),
		},
		Dates: models.JobDates{
			Published: published,
			Deadline:  deadline,
			Scraped:   e.now(),
		},
	}

	titleCell.Find("img").Each(func(_ int, img *goquery.Selection) {
		src := img.AttrOr("src", "")
		switch {
		case strings.Contains(src, "exp"):
			job.Metadata.IsExpiring = true
		case strings.Contains(src, "upd"):
			job.Metadata.WasRecentlyUpdated = true
		case strings.Contains(src, "salary"):
			job.Metadata.HasSalaryInfo = true
		case strings.Contains(src, "new"):
			job.Metadata.IsNew = true
		case strings.Contains(src, "reg"):
			job.Metadata.IsInRegion = true
		}
	})
	job.Metadata.IsRemote = job.Location.IsRemote

	if logo, ok := cells.Eq(2).Find("img").First().Attr("src"); ok {
		job.Company.LogoURL = services.AbsoluteURL(baseURL, logo)
	}
	company := cells.Eq(3).Find("a").First()
	if company.Length() > 0 {
		job.Company.Name = services.NormaliseText(company.Text())
		job.Company.JobsURL = services.AbsoluteURL(baseURL, company.AttrOr("href", ""))
	} else {
		job.Company.Name = services.NormaliseText(cells.Eq(3).Text())
	}

	return job, nil
}

// ParseDetailPage reads the #job block: the title span, the date row and
// the description cell of the details table.
func (e *Extractor) ParseDetailPage(html, id string) (*scraper.ParsedDetail, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("jobs.ge: parse detail html: %w", err)
	}

	job := doc.Find("#job").First()
	if job.Length() == 0 {
		return nil, fmt.Errorf("jobs.ge: job %s: #job not found", id)
	}

	tables := job.Find("table")
	if tables.Length() < 2 {
		return nil, fmt.Errorf("jobs.ge: job %s: expected 2 tables, found %d", id, tables.Length())
	}
	table := tables.Filter(".dtable").First()
	if table.Length() == 0 {
		table = tables.Eq(1)
	}

	rows := table.Find("tr")
	if rows.Length() < 4 {
		return nil, fmt.Errorf("jobs.ge: job %s: expected 4 rows, found %d", id, rows.Length())
	}

	detail := &scraper.ParsedDetail{
		Title: services.NormaliseText(job.Find("span").First().Text()),
		Dates: models.JobDates{Scraped: e.now()},
	}
	if b := rows.Eq(2).Find("b"); b.Length() >= 2 {
		detail.Dates.Published, detail.Dates.Deadline = e.dates.Span(b.Eq(0).Text(), b.Eq(1).Text())
	}

	cell := rows.Eq(3).Find("td").First()
	description, err := cell.Html()
	if err != nil {
		return nil, fmt.Errorf("jobs.ge: job %s: render description: %w", id, err)
	}
	detail.Description = strings.TrimSpace(description)
	detail.Salary = services.ParseSalary(cell.Text())

	return detail, nil
}
