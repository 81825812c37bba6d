package models

import "time"

// Platform identifies a job board.
type Platform string

const (
	PlatformJobsGe Platform = "jobs_ge"
	PlatformCvGe   Platform = "cv_ge"
	PlatformHrGe   Platform = "hr_ge"
)

// Company is the employer as shown on a listing row.
type Company struct {
	Name    string `json:"name"`
	JobsURL string `json:"jobs_url,omitempty"`
	LogoURL string `json:"logo_url,omitempty"`
}

// Location is where the job is based.
type Location struct {
	City     string `json:"city,omitempty"`
	Region   string `json:"region,omitempty"`
	Country  string `json:"country"`
	IsRemote bool   `json:"is_remote"`
}

// Salary is a parsed pay range. Nil bounds mean the value was not stated.
type Salary struct {
	Min        *float64 `json:"min,omitempty"`
	Max        *float64 `json:"max,omitempty"`
	Currency   string   `json:"currency,omitempty"`
	Period     string   `json:"period,omitempty"`
	Negotiable bool     `json:"negotiable"`
	Raw        string   `json:"raw,omitempty"`
}

// JobDates holds the dates a board publishes. Unparseable dates are nil.
type JobDates struct {
	Published *time.Time `json:"published,omitempty"`
	Deadline  *time.Time `json:"deadline,omitempty"`
	Scraped   time.Time  `json:"scraped"`
}

// JobMetadata carries the boolean flags shown next to a listing.
type JobMetadata struct {
	IsExpiring         bool `json:"is_expiring"`
	WasRecentlyUpdated bool `json:"was_recently_updated"`
	HasSalaryInfo      bool `json:"has_salary_info"`
	IsNew              bool `json:"is_new"`
	IsInRegion         bool `json:"is_in_region"`
	IsRemote           bool `json:"is_remote"`
	IsVIP              bool `json:"is_vip"`
}

// JobSummary is what a search-results row yields.
type JobSummary struct {
	ID       string      `json:"id"`
	Platform Platform    `json:"platform"`
	Title    string      `json:"title"`
	URL      string      `json:"url"`
	Company  Company     `json:"company"`
	Location Location    `json:"location"`
	Salary   *Salary     `json:"salary,omitempty"`
	Dates    JobDates    `json:"dates"`
	Metadata JobMetadata `json:"metadata"`
}

// JobDetail is what a detail page yields. Description text is never held
// here, only the reference returned by the sink that stored it.
type JobDetail struct {
	ID             string
	Title          string
	Dates          JobDates
	Salary         *Salary
	DescriptionRef string

	// Error is non-empty when the detail could not be fetched or parsed.
	Error string
	// Cancelled marks a fetch abandoned because the run was cancelled.
	Cancelled bool
}

// Failed reports whether the detail carries an error.
func (d *JobDetail) Failed() bool { return d.Error != "" }

// MergedJob is the persisted record: summary fields completed by detail data.
type MergedJob struct {
	ID                   string      `json:"id"`
	Platform             Platform    `json:"platform"`
	Title                string      `json:"title"`
	URL                  string      `json:"url"`
	Company              Company     `json:"company"`
	Location             Location    `json:"location"`
	Salary               *Salary     `json:"salary,omitempty"`
	Dates                JobDates    `json:"dates"`
	Metadata             JobMetadata `json:"metadata"`
	DescriptionReference string      `json:"description_reference,omitempty"`
	DetailError          string      `json:"detail_error,omitempty"`
}

// Merge combines a summary with its detail. Detail values fill gaps the
// listing row left; listing values win where both are present, except the
// description reference which only the detail carries.
func Merge(s JobSummary, d JobDetail) *MergedJob {
	m := &MergedJob{
		ID:                   s.ID,
		Platform:             s.Platform,
		Title:                s.Title,
		URL:                  s.URL,
		Company:              s.Company,
		Location:             s.Location,
		Salary:               s.Salary,
		Dates:                s.Dates,
		Metadata:             s.Metadata,
		DescriptionReference: d.DescriptionRef,
		DetailError:          d.Error,
	}
	if m.Title == "" {
		m.Title = d.Title
	}
	if m.Salary == nil && d.Salary != nil {
		m.Salary = d.Salary
	}
	if m.Salary != nil {
		m.Metadata.HasSalaryInfo = true
	}
	if m.Dates.Published == nil {
		m.Dates.Published = d.Dates.Published
	}
	if m.Dates.Deadline == nil {
		m.Dates.Deadline = d.Dates.Deadline
	}
	return m
}
