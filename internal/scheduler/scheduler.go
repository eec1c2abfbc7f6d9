// Package scheduler wires up the cron jobs that drive the recurring
// auto-apply sweep and the daily digest flush.
package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"applyflow/internal/logging"
)

// Scheduler wraps robfig/cron and manages the recurring jobs.
type Scheduler struct {
	cron   *cron.Cron
	logger logging.Logger
}

// New creates an empty Scheduler.
func New() *Scheduler {
	return &Scheduler{
		cron:   cron.New(),
		logger: logging.GetGlobalLogger(),
	}
}

// AddJob registers a named job under a cron spec such as "@every 1h" or
// "0 18 * * *". Panics inside jobs are contained by the cron runner.
func (s *Scheduler) AddJob(spec, name string, job func(ctx context.Context)) error {
	_, err := s.cron.AddFunc(spec, func() {
		s.logger.Info("Scheduled job starting", map[string]interface{}{
			"job":  name,
			"spec": spec,
		})
		job(context.Background())
	})
	if err != nil {
		return fmt.Errorf("cron.AddFunc %s: %w", name, err)
	}

	s.logger.Info("Scheduled job registered", map[string]interface{}{
		"job":  name,
		"spec": spec,
	})
	return nil
}

// Start begins firing registered jobs.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("Scheduler started")
}

// Stop shuts the scheduler down, waiting for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Scheduler stopped")
}
