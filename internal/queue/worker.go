package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Handler processes a job and returns its result.
type Handler func(ctx context.Context, job *Job) (any, error)

// WorkerOptions configures a Worker.
type WorkerOptions struct {
	Concurrency  int
	PollInterval time.Duration
}

// Worker pulls jobs from a queue and runs them through a handler.
type Worker struct {
	queue   *Queue
	handler Handler
	opts    WorkerOptions
	logger  zerolog.Logger
}

// NewWorker creates a new worker.
func NewWorker(q *Queue, handler Handler, opts WorkerOptions, logger zerolog.Logger) *Worker {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}

	return &Worker{
		queue:   q,
		handler: handler,
		opts:    opts,
		logger:  logger.With().Str("component", "worker").Str("queue", q.Name()).Logger(),
	}
}

// Run processes jobs until ctx is cancelled. Jobs already in flight finish
// before Run returns.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info().Int("concurrency", w.opts.Concurrency).Msg("worker started")

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < w.opts.Concurrency; i++ {
		g.Go(func() error {
			w.loop(ctx)
			return nil
		})
	}

	err := g.Wait()
	w.logger.Info().Msg("worker stopped")
	return err
}

func (w *Worker) loop(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		processed, err := w.ProcessNext(ctx)
		if err != nil && ctx.Err() == nil {
			w.logger.Error().Err(err).Msg("failed to process job")
		}
		if processed && err == nil {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.opts.PollInterval):
		}
	}
}

// ProcessNext reserves one job and runs it. It reports whether a job was found.
func (w *Worker) ProcessNext(ctx context.Context) (bool, error) {
	job, err := w.queue.reserve(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to reserve job: %w", err)
	}
	if job == nil {
		return false, nil
	}

	// A reserved job runs to completion even during shutdown.
	jobCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	defer cancel()

	go w.keepLock(jobCtx, job.ID)

	log := w.logger.With().
		Str("job_id", job.ID).
		Str("job_name", job.Name).
		Int("attempt", job.AttemptsMade+1).
		Logger()

	start := time.Now()
	result, runErr := w.run(jobCtx, job)
	cancel()

	if runErr == nil {
		if err := w.queue.complete(context.WithoutCancel(ctx), job, result); err != nil {
			return true, fmt.Errorf("failed to complete job: %w", err)
		}
		log.Info().Dur("duration", time.Since(start)).Msg("job completed")
		return true, nil
	}

	retry, err := w.queue.fail(context.WithoutCancel(ctx), job, runErr)
	if err != nil {
		return true, fmt.Errorf("failed to record job failure: %w", err)
	}

	event := log.Warn()
	if !retry {
		event = log.Error()
	}
	event.Err(runErr).
		Bool("will_retry", retry).
		Dur("duration", time.Since(start)).
		Msg("job failed")

	return true, nil
}

func (w *Worker) run(ctx context.Context, job *Job) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("job panicked: %v", r)
		}
	}()
	return w.handler(ctx, job)
}

func (w *Worker) keepLock(ctx context.Context, id string) {
	ticker := time.NewTicker(w.queue.lockDuration / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.queue.extendLock(ctx, id); err != nil && ctx.Err() == nil {
				w.logger.Warn().Err(err).Str("job_id", id).Msg("failed to extend job lock")
			}
		}
	}
}
