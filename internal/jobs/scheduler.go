// Package jobs runs background maintenance on a cron schedule.
package jobs

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
)

// Pruner drops sessions idle for longer than the given duration.
type Pruner interface {
	PruneSessions(idle time.Duration) int
}

// Scheduler owns the cron runner.
type Scheduler struct {
	cron     *cron.Cron
	pruner   Pruner
	schedule string
	idle     time.Duration
}

// NewScheduler validates schedule and returns a stopped scheduler.
func NewScheduler(pruner Pruner, schedule string, idle time.Duration) (*Scheduler, error) {
	if pruner == nil {
		return nil, fmt.Errorf("jobs: pruner is required")
	}
	if idle <= 0 {
		return nil, fmt.Errorf("jobs: idle ttl must be positive")
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("jobs: invalid schedule %q: %w", schedule, err)
	}

	c := cron.New(cron.WithLocation(time.UTC), cron.WithChain(cron.Recover(cron.DefaultLogger)))
	return &Scheduler{cron: c, pruner: pruner, schedule: schedule, idle: idle}, nil
}

// Start registers the jobs and starts the runner.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.prune); err != nil {
		return fmt.Errorf("jobs: add prune job: %w", err)
	}
	s.cron.Start()
	log.WithField("schedule", s.schedule).Info("[CRON] scheduler started")
	return nil
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info("[CRON] scheduler stopped")
}

func (s *Scheduler) prune() {
	n := s.pruner.PruneSessions(s.idle)
	if n > 0 {
		log.WithField("removed", n).Info("[CRON] pruned idle sessions")
		return
	}
	log.Debug("[CRON] no idle sessions")
}
