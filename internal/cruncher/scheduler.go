// Package cruncher implements C7 NightlyCruncher: a day-partitioned,
// idempotent archival batch over CrawledRecords. The scheduling loop is
// grounded on veille's internal/scheduler.Scheduler.Run (poll-on-ticker, run
// once immediately on start), adapted to wait on a timer for the next
// 02:00 UTC instant, with no run at start.
package cruncher

import (
	"context"
	"log/slog"
	"time"

	"github.com/hazyhaar/reader/internal/config"
	"github.com/hazyhaar/reader/observability"
)

// Scheduler runs a Cruncher job once per day at 02:00 UTC.
type Scheduler struct {
	cruncher *Cruncher
	logger   *slog.Logger

	// Events, if set, records one business_event_logs row per run so the
	// nightly archive's success/failure history survives independently of
	// slog output.
	Events *observability.EventLogger
}

// NewScheduler builds a Scheduler around c.
func NewScheduler(c *Cruncher, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{cruncher: c, logger: logger}
}

// Run blocks until ctx is cancelled, invoking Crunch at each 02:00 UTC
// boundary. Unlike veille's scheduler it does not run immediately on
// start — the first run waits for the next scheduled instant, matching
// spec.md's "scheduled job: cron 2 0 * * * UTC".
func (s *Scheduler) Run(ctx context.Context) {
	for {
		next := config.NextCruncherRun(time.Now())
		timer := time.NewTimer(time.Until(next))

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, 30*time.Minute)
	defer cancel()

	progress := make(chan Event, 16)
	done := make(chan error, 1)
	go func() { done <- s.cruncher.Crunch(runCtx, progress) }()

	for {
		select {
		case ev, ok := <-progress:
			if !ok {
				progress = nil
				continue
			}
			s.logger.Info("cruncher: progress", "kind", ev.Kind, "file", ev.Filename)
		case err := <-done:
			if err != nil {
				s.logger.Error("cruncher: run failed", "error", err)
			}
			if s.Events != nil {
				s.Events.LogEvent(ctx, observability.BusinessEvent{
					EventType:   "cruncher.run",
					ServiceName: "reader",
					Action:      "crunch",
					Success:     err == nil,
					Details:     eventDetails(err),
				})
			}
			return
		}
	}
}

func eventDetails(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
