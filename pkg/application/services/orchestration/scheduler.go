package orchestration

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Scheduler runs planning jobs on cron schedules
type Scheduler struct {
	cron         *cron.Cron
	orchestrator *PlanningOrchestrator
	ctx          context.Context
	logger       *logrus.Logger
}

// NewScheduler creates a scheduler whose jobs run with ctx
func NewScheduler(ctx context.Context, orchestrator *PlanningOrchestrator) *Scheduler {
	return &Scheduler{
		cron:         cron.New(),
		orchestrator: orchestrator,
		ctx:          ctx,
		logger:       orchestrator.logger,
	}
}

// AddNightlyRebuild registers a rebuild of the current month and the
// following months-1 months on schedule
func (s *Scheduler) AddNightlyRebuild(schedule string, months int) (cron.EntryID, error) {
	if months < 1 {
		return 0, fmt.Errorf("nightly rebuild needs at least one month, got %d", months)
	}
	id, err := s.cron.AddFunc(schedule, s.nightlyJob(months))
	if err != nil {
		return 0, fmt.Errorf("failed to register nightly rebuild %q: %w", schedule, err)
	}
	return id, nil
}

func (s *Scheduler) nightlyJob(months int) func() {
	return func() {
		summary, err := s.orchestrator.Nightly(s.ctx, months)
		if err != nil {
			s.logger.WithFields(logrus.Fields{"module": moduleName, "job": "nightly"}).WithError(err).Error("scheduled rebuild failed")
			return
		}
		for _, f := range summary.Failures {
			s.logger.WithFields(logrus.Fields{
				"module": moduleName,
				"job":    "nightly",
				"scope":  f.Key,
				"kind":   f.Kind,
			}).Warn(f.Error)
		}
	}
}

// Entries lists the registered jobs
func (s *Scheduler) Entries() []cron.Entry {
	return s.cron.Entries()
}

// Start runs the scheduler in its own goroutine
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.WithFields(logrus.Fields{"module": moduleName, "jobs": len(s.cron.Entries())}).Info("scheduler started")
}

// Stop stops the scheduler; the returned context is done once running
// jobs have finished
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
