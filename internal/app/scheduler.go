/**
 * @description
 * Cron scheduler setup for scheduled jobs.
 */
package app

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Scheduler manages the cron jobs.
type Scheduler struct {
	cron      *cron.Cron
	jobs      *Jobs
	logger    *slog.Logger
	sweepSpec string
}

// NewScheduler creates a new scheduler instance.
func NewScheduler(jobs *Jobs, logger *slog.Logger, sweepSpec string) *Scheduler {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	c := cron.New(cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)))

	return &Scheduler{
		cron:      c,
		jobs:      jobs,
		logger:    logger,
		sweepSpec: sweepSpec,
	}
}

// Start registers the jobs and starts the cron scheduler. An empty schedule disables the sweep.
func (s *Scheduler) Start() error {
	if s.sweepSpec != "" {
		if _, err := s.cron.AddFunc(s.sweepSpec, s.jobs.CancelLapsedSubscriptions); err != nil {
			return err
		}
		s.logger.Info("scheduled lapsed subscription sweep", "schedule", s.sweepSpec)
	}

	s.cron.Start()
	return nil
}

// Stop stops the scheduler; the returned context is done once running jobs finish.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
