package services

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/I-Bumblebee/jobs-ge-scraper/models"
)

// ReportService prints a run summary for humans.
type ReportService struct {
	out io.Writer
}

func NewReportService(out io.Writer) *ReportService {
	return &ReportService{out: out}
}

func (s *ReportService) Print(r *models.RunSummary) {
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)
	w := s.out

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n", sep)
	fmt.Fprintf(w, "\033[1;35m  SCRAPE RUN %s\033[0m\n", strings.ToUpper(string(r.Platform)))
	fmt.Fprintf(w, "\033[1;35m%s\033[0m\n\n", sep)

	fmt.Fprintf(w, "\033[1;33m  Overview\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	fmt.Fprintf(w, "  Run ID        : %s\n", r.RunID)
	fmt.Fprintf(w, "  Duration      : %s\n", r.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "  Pages fetched : %d (failed %d)\n", r.PagesFetched, r.PagesFailed)
	fmt.Fprintln(w)

	fmt.Fprintf(w, "\033[1;33m  Jobs\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	fmt.Fprintf(w, "  Found      : \033[1m%d\033[0m\n", r.TotalFound)
	fmt.Fprintf(w, "  Successful : \033[1;32m%d\033[0m %s\n", r.Successful, bar(r.Successful, r.TotalFound))
	fmt.Fprintf(w, "  Failed     : \033[1;31m%d\033[0m %s\n", r.Failed, bar(r.Failed, r.TotalFound))
	fmt.Fprintf(w, "  Incomplete : \033[1;33m%d\033[0m %s\n", r.Incomplete, bar(r.Incomplete, r.TotalFound))
	if r.NewJobs > 0 {
		fmt.Fprintf(w, "  New        : %d\n", r.NewJobs)
	}
	fmt.Fprintln(w)

	if len(r.Errors) > 0 {
		fmt.Fprintf(w, "\033[1;33m  Errors\033[0m\n")
		fmt.Fprintf(w, "  %s\n", thin)
		for _, e := range r.Errors {
			fmt.Fprintf(w, "  - %s\n", truncate(e, 80))
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "\033[1;35m%s\033[0m\n\n", sep)
}

// bar draws a 30-cell proportion bar.
func bar(n, total int) string {
	if total == 0 || n == 0 {
		return ""
	}
	cells := n * 30 / total
	if cells == 0 {
		cells = 1
	}
	return strings.Repeat("█", cells)
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
