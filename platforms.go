package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/I-Bumblebee/jobs-ge-scraper/config"
	"github.com/I-Bumblebee/jobs-ge-scraper/models"
	"github.com/I-Bumblebee/jobs-ge-scraper/scraper"
	"github.com/I-Bumblebee/jobs-ge-scraper/scraper/cvge"
	"github.com/I-Bumblebee/jobs-ge-scraper/scraper/hrge"
	"github.com/I-Bumblebee/jobs-ge-scraper/scraper/jobsge"
	"github.com/I-Bumblebee/jobs-ge-scraper/utils"
)

// platform describes how to scrape one job board.
type platform struct {
	newExtractor func(cfg *config.Config) scraper.Extractor
	// rendered boards build their listings client-side and need a browser.
	rendered bool
}

// registry maps each supported board to its plugin. It is built once by main.
type registry map[models.Platform]platform

func newRegistry() registry {
	return registry{
		models.PlatformJobsGe: {
			newExtractor: func(cfg *config.Config) scraper.Extractor { return jobsge.New(cfg.Locale) },
		},
		models.PlatformCvGe: {
			newExtractor: func(*config.Config) scraper.Extractor { return cvge.New() },
		},
		models.PlatformHrGe: {
			newExtractor: func(*config.Config) scraper.Extractor { return hrge.New() },
			rendered:     true,
		},
	}
}

func (r registry) lookup(name string) (platform, error) {
	p, ok := r[models.Platform(name)]
	if !ok {
		return platform{}, fmt.Errorf("unknown platform %q (available: %s)", name, strings.Join(r.names(), ", "))
	}
	return p, nil
}

func (r registry) names() []string {
	names := make([]string, 0, len(r))
	for p := range r {
		names = append(names, string(p))
	}
	sort.Strings(names)
	return names
}

// transport returns the Transport for p and a function releasing it.
func (p platform) transport(cfg *config.Config, logger *utils.Logger) (scraper.Transport, func(), error) {
	if !p.rendered {
		return scraper.NewHTTPTransport(cfg.HTTPTimeout), func() {}, nil
	}
	browser, err := scraper.NewBrowserTransport(cfg.ChromeBin, cfg.UserAgent, cfg.BrowserSettle, logger)
	if err != nil {
		return nil, nil, err
	}
	return browser, func() {
		if err := browser.Close(); err != nil {
			logger.Warn("[browser] Close: %v", err)
		}
	}, nil
}
