// Package analytics mirrors committed orders and promo usages into the
// analytics warehouse. Mirroring is best effort: a failed sync is retried once
// after a delay through the analytics-sync queue and then dropped.
package analytics

import (
	"context"
	"fmt"
	"time"

	"promo-orders/internal/model"
	"promo-orders/internal/queue"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// QueueName is the queue carrying delayed sync retries.
const QueueName = "analytics-sync"

// Retry job names.
const (
	JobSyncOrder = "sync-order"
	JobSyncUsage = "sync-usage"
)

// UserDirectory resolves user details for the per-user aggregates.
type UserDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
}

// RetryScheduler enqueues retry jobs.
type RetryScheduler interface {
	Add(ctx context.Context, name string, data any, opts queue.JobOptions) (*queue.Job, error)
}

// SyncFailure describes a mirror write that did not reach the warehouse.
type SyncFailure struct {
	Kind string
	ID   uuid.UUID
	Err  error
}

func (e *SyncFailure) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Kind, e.ID, e.Err)
}

func (e *SyncFailure) Unwrap() error {
	return e.Err
}

var errUserNotFound = errors.New("user not found")

// Mirror copies orders and usages into the analytics Store.
type Mirror struct {
	store      Store
	users      UserDirectory
	retries    RetryScheduler
	retryDelay time.Duration
	logger     zerolog.Logger
}

// NewMirror creates a new analytics mirror.
func NewMirror(store Store, users UserDirectory, retries RetryScheduler, retryDelay time.Duration, logger zerolog.Logger) *Mirror {
	return &Mirror{
		store:      store,
		users:      users,
		retries:    retries,
		retryDelay: retryDelay,
		logger:     logger.With().Str("component", "analytics_mirror").Logger(),
	}
}

// SyncOrder mirrors a committed order. Failures are logged and scheduled for
// one retry; they never reach the caller.
func (m *Mirror) SyncOrder(ctx context.Context, ev model.OrderEvent) {
	err := m.syncOrder(ctx, ev)
	if err == nil {
		return
	}

	m.logger.Warn().Err(err).Str("order_id", ev.OrderID.String()).Msg("order sync failed, scheduling retry")
	m.scheduleRetry(ctx, JobSyncOrder, ev.OrderID, ev)
}

// SyncUsage mirrors a newly recorded usage with the same retry policy as SyncOrder.
func (m *Mirror) SyncUsage(ctx context.Context, usage model.PromoUsage) {
	err := m.syncUsage(ctx, usage)
	if err == nil {
		return
	}

	m.logger.Warn().Err(err).Str("usage_id", usage.ID.String()).Msg("usage sync failed, scheduling retry")
	m.scheduleRetry(ctx, JobSyncUsage, usage.ID, usage)
}

// HandleRetry runs a scheduled retry. A second failure drops the sync.
func (m *Mirror) HandleRetry(ctx context.Context, job *queue.Job) (any, error) {
	var err error
	switch job.Name {
	case JobSyncOrder:
		var ev model.OrderEvent
		if err := job.Decode(&ev); err != nil {
			return nil, err
		}
		err = m.syncOrder(ctx, ev)
	case JobSyncUsage:
		var usage model.PromoUsage
		if err := job.Decode(&usage); err != nil {
			return nil, err
		}
		err = m.syncUsage(ctx, usage)
	default:
		return nil, errors.Errorf("unknown analytics job %q", job.Name)
	}

	if err != nil {
		m.logger.Error().Err(err).Str("job_id", job.ID).Msg("analytics sync retry failed, dropping")
		return nil, err
	}

	m.logger.Info().Str("job_id", job.ID).Msg("analytics sync retry succeeded")
	return nil, nil
}

func (m *Mirror) syncOrder(ctx context.Context, ev model.OrderEvent) error {
	user, err := m.users.GetByID(ctx, ev.UserID)
	if err != nil {
		return &SyncFailure{Kind: "order", ID: ev.OrderID, Err: errors.Wrap(err, "load user")}
	}
	if user == nil {
		return &SyncFailure{Kind: "order", ID: ev.OrderID, Err: errUserNotFound}
	}

	if err := m.store.WriteOrder(ctx, ev, user); err != nil {
		return &SyncFailure{Kind: "order", ID: ev.OrderID, Err: err}
	}
	return nil
}

func (m *Mirror) syncUsage(ctx context.Context, usage model.PromoUsage) error {
	if err := m.store.WriteUsage(ctx, usage); err != nil {
		return &SyncFailure{Kind: "usage", ID: usage.ID, Err: err}
	}
	return nil
}

func (m *Mirror) scheduleRetry(ctx context.Context, name string, id uuid.UUID, data any) {
	_, err := m.retries.Add(context.WithoutCancel(ctx), name, data, queue.JobOptions{
		JobID:            name + ":" + id.String(),
		Attempts:         1,
		Delay:            m.retryDelay,
		RemoveOnComplete: true,
		RemoveOnFail:     true,
	})
	if err != nil {
		m.logger.Error().Err(err).Str("job_name", name).Str("id", id.String()).Msg("failed to schedule analytics retry, dropping")
	}
}
