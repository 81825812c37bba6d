package services

import (
	"strconv"
	"strings"
	"time"
)

var monthNames = map[string]time.Month{
	"იანვარი": time.January, "თებერვალი": time.February, "მარტი": time.March,
	"აპრილი": time.April, "მაისი": time.May, "ივნისი": time.June,
	"ივლისი": time.July, "აგვისტო": time.August, "სექტემბერი": time.September,
	"ოქტომბერი": time.October, "ნოემბერი": time.November, "დეკემბერი": time.December,

	"იან": time.January, "თებ": time.February, "მარ": time.March,
	"აპრ": time.April, "მაი": time.May, "ივნ": time.June,
	"ივლ": time.July, "აგვ": time.August, "სექ": time.September,
	"ოქტ": time.October, "ნოე": time.November, "დეკ": time.December,
}

func init() {
	for m := time.January; m <= time.December; m++ {
		name := strings.ToLower(m.String())
		monthNames[name] = m
		monthNames[name[:3]] = m
	}
}

// DateParser reads the "day month" dates job boards print. The year is not
// printed, so the parser's current year is used.
type DateParser struct {
	Now func() time.Time
}

// NewDateParser returns a parser using the wall clock.
func NewDateParser() *DateParser {
	return &DateParser{Now: time.Now}
}

// Parse reads "25 ივნისი", "25 ივნ", "25 June" or "25 Jun". Anything else
// yields nil.
func (p *DateParser) Parse(s string) *time.Time {
	fields := strings.Fields(NormaliseText(s))
	if len(fields) < 2 {
		return nil
	}
	day, err := strconv.Atoi(strings.TrimSuffix(fields[0], "."))
	if err != nil || day < 1 || day > 31 {
		return nil
	}
	month, ok := monthNames[strings.ToLower(strings.Trim(fields[1], ".,"))]
	if !ok {
		return nil
	}

	year := p.Now().Year()
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day {
		// 31 of a 30-day month rolled over.
		return nil
	}
	return &t
}

// ParseRange reads "25 ივნ - 20 ივლ". A missing second half yields a nil
// deadline.
func (p *DateParser) ParseRange(s string) (published, deadline *time.Time) {
	start, end, found := strings.Cut(s, "-")
	if !found {
		return p.Parse(start), nil
	}
	return p.Span(start, end)
}

// Span parses a publish date and a deadline printed without years. A
// deadline earlier in the calendar than the publish date falls in the
// following year.
func (p *DateParser) Span(start, end string) (published, deadline *time.Time) {
	published, deadline = p.Parse(start), p.Parse(end)
	if published != nil && deadline != nil && deadline.Before(*published) {
		next := deadline.AddDate(1, 0, 0)
		deadline = &next
	}
	return published, deadline
}
