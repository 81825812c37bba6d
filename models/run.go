package models

import (
	"time"

	"github.com/google/uuid"
)

const maxRecordedErrors = 20

// RunSummary reports how one scrape run went.
// Successful + Failed + Incomplete == TotalFound.
type RunSummary struct {
	RunID        uuid.UUID     `json:"run_id"`
	Platform     Platform      `json:"platform"`
	TotalFound   int           `json:"total_found"`
	Successful   int           `json:"successful"`
	Failed       int           `json:"failed"`
	Incomplete   int           `json:"incomplete"`
	PagesFetched int           `json:"pages_fetched"`
	PagesFailed  int           `json:"pages_failed"`
	NewJobs      int           `json:"new_jobs"`
	StartedAt    time.Time     `json:"started_at"`
	FinishedAt   time.Time     `json:"finished_at"`
	Duration     time.Duration `json:"duration"`
	Errors       []string      `json:"errors,omitempty"`
}

// NewRunSummary starts a summary clock for platform.
func NewRunSummary(p Platform) *RunSummary {
	return &RunSummary{
		RunID:     uuid.New(),
		Platform:  p,
		StartedAt: time.Now(),
	}
}

// AddError keeps the first few error messages for the report.
func (s *RunSummary) AddError(msg string) {
	if len(s.Errors) < maxRecordedErrors {
		s.Errors = append(s.Errors, msg)
	}
}

// Finish stamps the end time and duration.
func (s *RunSummary) Finish() {
	s.FinishedAt = time.Now()
	s.Duration = s.FinishedAt.Sub(s.StartedAt)
}

// FailureRatio is (Failed+Incomplete)/TotalFound, 0 for an empty run.
func (s *RunSummary) FailureRatio() float64 {
	if s.TotalFound == 0 {
		return 0
	}
	return float64(s.Failed+s.Incomplete) / float64(s.TotalFound)
}

// SinkSummary is what a sink reports on Finalize.
type SinkSummary struct {
	Name     string `json:"name"`
	Written  int    `json:"written"`
	Location string `json:"location,omitempty"`
}
