// Package scheduler runs periodic maintenance tasks on gocron.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"
)

// Task is a named unit of periodic work.
type Task struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Scheduler runs tasks at fixed intervals. A run that is still going when the
// next one is due is rescheduled rather than overlapped.
type Scheduler struct {
	cron   gocron.Scheduler
	logger zerolog.Logger
}

// New creates a scheduler with the given tasks registered. Tasks do not run
// until Start is called.
func New(logger zerolog.Logger, tasks ...Task) (*Scheduler, error) {
	logger = logger.With().Str("component", "scheduler").Logger()

	cron, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	s := &Scheduler{cron: cron, logger: logger}
	for _, task := range tasks {
		if err := s.add(task); err != nil {
			_ = cron.Shutdown()
			return nil, err
		}
	}

	return s, nil
}

func (s *Scheduler) add(task Task) error {
	if task.Interval <= 0 {
		return fmt.Errorf("task %s: interval must be positive", task.Name)
	}

	log := s.logger.With().Str("task", task.Name).Logger()
	_, err := s.cron.NewJob(
		gocron.DurationJob(task.Interval),
		gocron.NewTask(func(ctx context.Context) {
			start := time.Now()
			if err := task.Run(ctx); err != nil {
				log.Error().Err(err).Msg("scheduled task failed")
				return
			}
			log.Debug().Dur("took", time.Since(start)).Msg("scheduled task finished")
		}),
		gocron.WithName(task.Name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule task %s: %w", task.Name, err)
	}

	log.Info().Dur("interval", task.Interval).Msg("task scheduled")
	return nil
}

// Start begins running the registered tasks.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info().Int("tasks", len(s.cron.Jobs())).Msg("scheduler started")
}

// Shutdown stops the scheduler and waits for running tasks to return.
func (s *Scheduler) Shutdown() error {
	if err := s.cron.Shutdown(); err != nil {
		return fmt.Errorf("failed to stop scheduler: %w", err)
	}
	s.logger.Info().Msg("scheduler stopped")
	return nil
}
