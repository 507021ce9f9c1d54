// Package scheduler runs periodic maintenance jobs using the gocron library.
package scheduler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/arabesque/support-relay/internal/database"
)

// Scheduler manages the periodic database maintenance job.
type Scheduler struct {
	scheduler gocron.Scheduler
	logger    *slog.Logger
	store     database.Store
	cronExpr  string

	mu      sync.Mutex
	running bool
}

// New creates a scheduler with the given cron expression for the maintenance
// job.
func New(store database.Store, logger *slog.Logger, cronExpr string) (*Scheduler, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	s, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}

	return &Scheduler{
		scheduler: s,
		logger:    logger.With("component", "scheduler"),
		store:     store,
		cronExpr:  cronExpr,
	}, nil
}

// Start schedules the maintenance job and starts the scheduler ticking.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler is already running")
	}

	_, err := s.scheduler.NewJob(
		gocron.CronJob(s.cronExpr, false),
		gocron.NewTask(func(ctx context.Context) {
			s.logger.Info("Running scheduled task", "task_name", "sql_maintenance")
			startTime := time.Now()
			if taskErr := s.store.RunMaintenance(ctx); taskErr != nil {
				s.logger.Error("Scheduled task failed", "task_name", "sql_maintenance", "error", taskErr)
			}
			s.logger.Info("Finished scheduled task", "task_name", "sql_maintenance", "duration", time.Since(startTime))
		}, context.Background()),
		gocron.WithName("sql_maintenance"),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule maintenance task: %w", err)
	}

	s.scheduler.Start()
	s.running = true
	s.logger.Info("Scheduler started", "maintenance_schedule", s.cronExpr)
	return nil
}

// Stop gracefully stops the scheduler, waiting for running jobs to complete.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	if err := s.scheduler.Shutdown(); err != nil {
		s.logger.Error("Error during scheduler shutdown", "error", err)
		s.running = false
		return err
	}

	s.running = false
	s.logger.Info("Scheduler stopped gracefully.")
	return nil
}
