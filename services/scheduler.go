package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/I-Bumblebee/jobs-ge-scraper/utils"
)

// Scheduler wraps robfig/cron and re-runs a scrape on a schedule.
type Scheduler struct {
	cron     *cron.Cron
	schedule string
	job      func(ctx context.Context)
	logger   *utils.Logger

	running sync.Mutex
}

// NewScheduler creates a Scheduler for a cron expression such as
// "@every 6h" or "0 */6 * * *".
func NewScheduler(schedule string, job func(ctx context.Context), logger *utils.Logger) *Scheduler {
	cronLogger := cron.VerbosePrintfLogger(newCronPrinter(logger))
	return &Scheduler{
		cron:     cron.New(cron.WithLogger(cronLogger), cron.WithChain(cron.SkipIfStillRunning(cronLogger))),
		schedule: schedule,
		job:      job,
		logger:   logger,
	}
}

// Start registers the job and starts the scheduler. One run also starts
// immediately so output exists without waiting for the first tick.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.schedule, func() {
		s.run(ctx)
	})
	if err != nil {
		return fmt.Errorf("cron.AddFunc(%q): %w", s.schedule, err)
	}

	s.cron.Start()
	s.logger.Info("[scheduler] Cron started, schedule: %s", s.schedule)

	go s.run(ctx)
	return nil
}

// Stop waits for a running job to finish and stops the scheduler.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.running.Lock()
	defer s.running.Unlock()
	s.logger.Info("[scheduler] Cron stopped")
}

func (s *Scheduler) run(ctx context.Context) {
	if !s.running.TryLock() {
		s.logger.Warn("[scheduler] Previous run still in progress, skipping")
		return
	}
	defer s.running.Unlock()

	if ctx.Err() != nil {
		return
	}
	s.logger.Info("[scheduler] Scrape cycle started")
	s.job(ctx)
	s.logger.Info("[scheduler] Scrape cycle complete")
}

type cronPrinter struct{ logger *utils.Logger }

func newCronPrinter(logger *utils.Logger) cronPrinter { return cronPrinter{logger: logger} }

func (p cronPrinter) Printf(format string, args ...interface{}) {
	p.logger.Debug("[cron] "+format, args...)
}
