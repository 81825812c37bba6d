package services

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/I-Bumblebee/jobs-ge-scraper/models"
)

var (
	// labelledSalaryRegexp matches "ხელფასი: 1500-2000 ლარი".
	labelledSalaryRegexp = regexp.MustCompile(`ხელფასი[:\s]+(\d[\d\s,]*(?:\s*-\s*\d[\d\s,]*)?)\s*(?:ლარი|₾|GEL)`)
	// amountSalaryRegexp matches a bare "1500 ლარი" or "1500-2000 ₾".
	amountSalaryRegexp = regexp.MustCompile(`(\d[\d,]*(?:\s*-\s*\d[\d,]*)?)\s*(?:ლარი|₾|GEL)`)
	negotiableRegexp   = regexp.MustCompile(`(?i)შეთანხმებით|negotiable`)
	remoteRegexp       = regexp.MustCompile(`(?i)remote|დისტანციურ`)
)

// NormaliseText applies NFC, strips leading/trailing whitespace and
// collapses internal whitespace.
func NormaliseText(s string) string {
	s = norm.NFC.String(s)
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return unicode.IsSpace(r)
	})
	return strings.Join(fields, " ")
}

// ParseSalary extracts a lari amount or range from free text. It returns
// nil when the text names no amount and is not marked negotiable.
func ParseSalary(text string) *models.Salary {
	text = NormaliseText(text)
	if text == "" {
		return nil
	}

	match := labelledSalaryRegexp.FindStringSubmatch(text)
	if match == nil {
		match = amountSalaryRegexp.FindStringSubmatch(text)
	}

	if match == nil {
		if negotiableRegexp.MatchString(text) {
			return &models.Salary{Currency: "GEL", Period: "monthly", Negotiable: true, Raw: text}
		}
		return nil
	}

	s := &models.Salary{Currency: "GEL", Period: "monthly", Raw: strings.TrimSpace(match[0])}
	parts := strings.SplitN(match[1], "-", 2)
	s.Min = parseAmount(parts[0])
	if len(parts) == 2 {
		s.Max = parseAmount(parts[1])
	} else {
		s.Max = s.Min
	}
	s.Negotiable = negotiableRegexp.MatchString(text)
	return s
}

func parseAmount(raw string) *float64 {
	raw = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == ',' {
			return -1
		}
		return r
	}, raw)
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v <= 0 {
		return nil
	}
	return &v
}

// IsRemote reports whether a location or title mentions remote work.
func IsRemote(s string) bool {
	return remoteRegexp.MatchString(s)
}

// AbsoluteURL resolves href against base. Unparseable input is returned
// unchanged.
func AbsoluteURL(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	b, err := url.Parse(base)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return b.ResolveReference(ref).String()
}
