package storage

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/I-Bumblebee/jobs-ge-scraper/models"
)

// csvHeader flattens every MergedJob field so a CSV carries the same data
// as jobs.json.
var csvHeader = []string{
	"platform", "id", "title", "url",
	"company", "company_jobs_url", "company_logo_url",
	"city", "region", "country", "is_remote",
	"salary_min", "salary_max", "currency", "salary_period", "negotiable", "salary_raw",
	"published", "deadline", "scraped_at",
	"is_expiring", "was_recently_updated", "has_salary_info", "is_new", "is_in_region", "is_remote_listing", "is_vip",
	"description_reference", "detail_error",
}

// CSVWriter writes one row per merged job to a CSV file.
// It is safe for concurrent use.
type CSVWriter struct {
	mu      sync.Mutex
	path    string
	file    *os.File
	writer  *csv.Writer
	written int
}

// NewCSVWriter creates (or truncates) the CSV file at the given path and
// writes the header row. Intermediate directories are created automatically.
func NewCSVWriter(path string) (*CSVWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("csv: create file %q: %w", path, err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("csv: write header: %w", err)
	}
	w.Flush()

	return &CSVWriter{path: path, file: f, writer: w}, nil
}

func (c *CSVWriter) Name() string { return "csv" }

func (c *CSVWriter) SaveMerged(_ context.Context, job *models.MergedJob) error {
	var salary models.Salary
	if job.Salary != nil {
		salary = *job.Salary
	}
	meta := job.Metadata

	row := []string{
		string(job.Platform), job.ID, job.Title, job.URL,
		job.Company.Name, job.Company.JobsURL, job.Company.LogoURL,
		job.Location.City, job.Location.Region, job.Location.Country, strconv.FormatBool(job.Location.IsRemote),
		formatAmount(salary.Min), formatAmount(salary.Max), salary.Currency, salary.Period,
		strconv.FormatBool(salary.Negotiable), salary.Raw,
		formatDate(job.Dates.Published), formatDate(job.Dates.Deadline), job.Dates.Scraped.Format(time.RFC3339),
		strconv.FormatBool(meta.IsExpiring), strconv.FormatBool(meta.WasRecentlyUpdated),
		strconv.FormatBool(meta.HasSalaryInfo), strconv.FormatBool(meta.IsNew),
		strconv.FormatBool(meta.IsInRegion), strconv.FormatBool(meta.IsRemote), strconv.FormatBool(meta.IsVIP),
		job.DescriptionReference, job.DetailError,
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.writer.Write(row); err != nil {
		return fmt.Errorf("csv: write row: %w", err)
	}
	c.written++
	return nil
}

// Finalize flushes buffered rows.
func (c *CSVWriter) Finalize(_ context.Context) (*models.SinkSummary, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.writer.Flush()
	if err := c.writer.Error(); err != nil {
		return nil, fmt.Errorf("csv: flush: %w", err)
	}
	written := c.written
	c.written = 0
	return &models.SinkSummary{Name: c.Name(), Written: written, Location: c.path}, nil
}

// Close flushes and closes the underlying file.
func (c *CSVWriter) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writer.Flush()
	return c.file.Close()
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}

func formatAmount(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
