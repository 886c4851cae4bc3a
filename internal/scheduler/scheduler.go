// Package scheduler runs recurring jobs on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job is a unit of scheduled work
type Job func(ctx context.Context) error

// Scheduler wraps a cron runner
type Scheduler struct {
	cron    *cron.Cron
	logger  *zap.Logger
	timeout time.Duration
}

// New creates a scheduler evaluating schedules in loc, every run gets timeout to finish
func New(loc *time.Location, timeout time.Duration, logger *zap.Logger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{
		cron:    cron.New(cron.WithLocation(loc)),
		logger:  logger,
		timeout: timeout,
	}
}

// Add registers job under every spec
func (s *Scheduler) Add(name string, specs []string, job Job) error {
	for _, spec := range specs {
		_, err := s.cron.AddFunc(spec, func() {
			s.run(name, job)
		})
		if err != nil {
			return fmt.Errorf("failed to schedule %s at %q: %w", name, spec, err)
		}
		s.logger.Info("Job scheduled", zap.String("job", name), zap.String("spec", spec))
	}
	return nil
}

func (s *Scheduler) run(name string, job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Recovered from panic in scheduled job", zap.String("job", name), zap.Any("panic", r))
		}
	}()

	start := time.Now()
	if err := job(ctx); err != nil {
		s.logger.Error("Scheduled job failed", zap.String("job", name), zap.Error(err))
		return
	}
	s.logger.Debug("Scheduled job finished", zap.String("job", name), zap.Duration("took", time.Since(start)))
}

// Entries returns the number of registered schedules
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

// Start runs the scheduler in the background
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops scheduling and waits for running jobs
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
