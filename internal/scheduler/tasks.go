package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// StalledRecoverer returns expired active jobs to their wait list.
type StalledRecoverer interface {
	Name() string
	RecoverStalled(ctx context.Context) (int, error)
}

// PromoExpirer marks promo codes past their validity window as expired.
type PromoExpirer interface {
	ExpireOverdue(ctx context.Context) (int64, error)
}

// RecoverStalledJobs returns a task that sweeps every queue for jobs whose
// worker lock has lapsed.
func RecoverStalledJobs(interval time.Duration, logger zerolog.Logger, queues ...StalledRecoverer) Task {
	return Task{
		Name:     "recover-stalled-jobs",
		Interval: interval,
		Run: func(ctx context.Context) error {
			var errs []error
			for _, q := range queues {
				n, err := q.RecoverStalled(ctx)
				if err != nil {
					errs = append(errs, fmt.Errorf("queue %s: %w", q.Name(), err))
					continue
				}
				if n > 0 {
					logger.Warn().Str("queue", q.Name()).Int("recovered", n).Msg("recovered stalled jobs")
				}
			}
			return errors.Join(errs...)
		},
	}
}

// ExpirePromoCodes returns a task that runs the promo code expiry sweep.
func ExpirePromoCodes(interval time.Duration, promos PromoExpirer) Task {
	return Task{
		Name:     "expire-promo-codes",
		Interval: interval,
		Run: func(ctx context.Context) error {
			_, err := promos.ExpireOverdue(ctx)
			return err
		},
	}
}
