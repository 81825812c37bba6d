package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/I-Bumblebee/jobs-ge-scraper/config"
	"github.com/I-Bumblebee/jobs-ge-scraper/models"
	"github.com/I-Bumblebee/jobs-ge-scraper/scraper"
	"github.com/I-Bumblebee/jobs-ge-scraper/services"
	"github.com/I-Bumblebee/jobs-ge-scraper/storage"
	"github.com/I-Bumblebee/jobs-ge-scraper/utils"
)

func main() {
	logger := utils.NewLogger()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load config: %v", err)
		os.Exit(1)
	}
	platforms := newRegistry()
	parseFlags(cfg, platforms)

	if err := logger.Configure(cfg.LogLevel, cfg.LogFormat); err != nil {
		logger.Warn("Logger config: %v", err)
	}

	if _, err := platforms.lookup(cfg.Platform); err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}
	if err := cfg.Request().Validate(); err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("=== Job Scraping System starting ===")
	logger.Info("Config: platform %s | target %d | list/detail concurrency %d/%d | delay %v | outputs %s",
		cfg.Platform, cfg.TargetCount, cfg.MaxListConcurrency, cfg.MaxDetailConcurrency,
		cfg.RequestDelay, strings.Join(cfg.Outputs, ","))

	if cfg.Schedule != "" {
		scheduler := services.NewScheduler(cfg.Schedule, func(ctx context.Context) {
			if summary, err := scrapeOnce(ctx, platforms, cfg, logger); err != nil {
				logger.Error("Scrape failed: %v", err)
			} else {
				services.NewReportService(os.Stdout).Print(summary)
			}
		}, logger)
		if err := scheduler.Start(ctx); err != nil {
			logger.Error("Failed to start scheduler: %v", err)
			os.Exit(1)
		}
		<-ctx.Done()
		logger.Info("Shutdown requested, waiting for the current run")
		scheduler.Stop()
		return
	}

	summary, err := scrapeOnce(ctx, platforms, cfg, logger)
	if summary != nil {
		services.NewReportService(os.Stdout).Print(summary)
	}
	os.Exit(exitCode(summary, err, cfg.MaxFailureRatio, logger))
}

func parseFlags(cfg *config.Config, platforms registry) {
	outputs := strings.Join(cfg.Outputs, ",")

	flag.StringVar(&cfg.Platform, "platform", cfg.Platform, "job board: "+strings.Join(platforms.names(), ", "))
	flag.IntVar(&cfg.TargetCount, "target", cfg.TargetCount, "number of jobs to scrape")
	flag.StringVar(&cfg.Locale, "locale", cfg.Locale, "listing language (ge or en)")
	flag.StringVar(&cfg.Query, "query", cfg.Query, "search query")
	flag.BoolVar(&cfg.RequireSalary, "salary", cfg.RequireSalary, "only jobs with a salary")
	flag.IntVar(&cfg.MaxListConcurrency, "list-concurrency", cfg.MaxListConcurrency, "concurrent listing page fetches")
	flag.IntVar(&cfg.MaxDetailConcurrency, "detail-concurrency", cfg.MaxDetailConcurrency, "concurrent detail page fetches")
	flag.StringVar(&outputs, "output", outputs, "comma separated outputs: json, csv, postgres")
	flag.StringVar(&cfg.OutputDir, "out", cfg.OutputDir, "output directory")
	flag.StringVar(&cfg.Schedule, "schedule", cfg.Schedule, `cron schedule for repeated runs, e.g. "@every 6h"`)
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	flag.Parse()

	cfg.Outputs = config.SplitList(outputs)
}

// scrapeOnce wires one run: transport, sink chain and merger.
func scrapeOnce(ctx context.Context, platforms registry, cfg *config.Config, logger *utils.Logger) (*models.RunSummary, error) {
	p, err := platforms.lookup(cfg.Platform)
	if err != nil {
		return nil, err
	}

	transport, release, err := p.transport(cfg, logger)
	if err != nil {
		return nil, err
	}
	defer release()

	sink, err := buildSink(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := sink.Close(); err != nil {
			logger.Warn("Close output: %v", err)
		}
	}()

	merger := scraper.NewMerger(p.newExtractor(cfg), transport, sink, scraper.FetcherOptions{
		RequestsPerSecond: cfg.RequestsPerSecond,
		Header:            scraper.DefaultHeader(cfg.UserAgent),
	}, logger)

	return merger.Run(ctx, cfg.Request())
}

// buildSink assembles descriptions on disk, one writer per configured
// output and, when Redis is configured, the seen-job index.
func buildSink(ctx context.Context, cfg *config.Config, logger *utils.Logger) (storage.Sink, error) {
	blobs, err := storage.NewFileBlobStore(cfg.OutputDir)
	if err != nil {
		return nil, err
	}

	var writers []storage.JobWriter
	closeAll := func() {
		for _, w := range writers {
			_ = w.Close()
		}
	}

	for _, name := range cfg.Outputs {
		var (
			w   storage.JobWriter
			err error
		)
		switch name {
		case "json":
			w, err = storage.NewJSONWriter(cfg.OutputDir)
		case "csv":
			w, err = storage.NewCSVWriter(filepath.Join(cfg.OutputDir, "jobs_"+cfg.Platform+".csv"))
		case "postgres":
			w, err = storage.NewPostgresWriter(ctx, cfg.DSN(), logger)
			if err != nil {
				logger.Error("Make sure Docker is running: docker compose up -d")
			}
		default:
			err = fmt.Errorf("unknown output %q", name)
		}
		if err != nil {
			closeAll()
			return nil, err
		}
		writers = append(writers, w)
	}
	if len(writers) == 0 {
		return nil, errors.New("no output configured")
	}

	var sink storage.Sink = storage.NewMultiSink(blobs, writers...)
	if cfg.RedisURL == "" {
		return sink, nil
	}

	index, err := storage.NewRedisIndex(ctx, cfg.RedisURL, cfg.SeenTTL)
	if err != nil {
		logger.Warn("Redis unavailable, new-job tracking disabled: %v", err)
		return sink, nil
	}
	return storage.NewIndexedSink(sink, index, logger), nil
}

// exitCode maps a finished run to the process exit status.
func exitCode(summary *models.RunSummary, err error, maxFailureRatio float64, logger *utils.Logger) int {
	switch {
	case errors.Is(err, scraper.ErrListingUnavailable):
		logger.Error("No listing page could be fetched: %v", err)
		return 1
	case err != nil:
		logger.Error("Scrape failed: %v", err)
		return 1
	case summary.Successful == 0:
		logger.Error("No jobs were scraped successfully")
		return 1
	case summary.FailureRatio() > maxFailureRatio:
		logger.Error("Failure ratio %.2f exceeds %.2f", summary.FailureRatio(), maxFailureRatio)
		return 1
	}
	logger.Info("Done. %d job(s) stored", summary.Successful)
	return 0
}
