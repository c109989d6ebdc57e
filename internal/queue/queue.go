// Package queue implements a durable Redis-backed job queue with retries,
// exponential backoff, delayed jobs and stalled-job recovery.
//
// Keys for a queue named "orders" with prefix "app":
//
//	app:orders:job:<id>  hash holding the job
//	app:orders:wait      list of waiting job ids (LPUSH in, RPOPLPUSH out)
//	app:orders:active    list of job ids being processed
//	app:orders:delayed   sorted set of job ids scored by due time in unix ms
//	app:orders:failed    set of job ids that exhausted their attempts
package queue

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const promoteBatch = 100

// Queue is a named job queue stored in Redis.
type Queue struct {
	client             redis.UniversalClient
	name               string
	prefix             string
	lockDuration       time.Duration
	completedRetention time.Duration
	now                func() time.Time
	logger             zerolog.Logger
}

// Option configures a Queue.
type Option func(*Queue)

// WithPrefix sets the key prefix shared by all queues of an application.
func WithPrefix(prefix string) Option {
	return func(q *Queue) { q.prefix = prefix }
}

// WithLockDuration sets how long a reserved job may go without a lock refresh
// before it is considered stalled.
func WithLockDuration(d time.Duration) Option {
	return func(q *Queue) { q.lockDuration = d }
}

// WithCompletedRetention keeps jobs flagged RemoveOnComplete readable for d
// before they disappear.
func WithCompletedRetention(d time.Duration) Option {
	return func(q *Queue) { q.completedRetention = d }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(q *Queue) { q.now = now }
}

// New creates a queue handle. It does not touch Redis.
func New(client redis.UniversalClient, name string, logger zerolog.Logger, opts ...Option) *Queue {
	q := &Queue{
		client:       client,
		name:         name,
		prefix:       "queue",
		lockDuration: 30 * time.Second,
		now:          time.Now,
		logger:       logger.With().Str("component", "queue").Str("queue", name).Logger(),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Name returns the queue name.
func (q *Queue) Name() string {
	return q.name
}

func (q *Queue) key(suffix string) string {
	return q.prefix + ":" + q.name + ":" + suffix
}

func (q *Queue) jobKey(id string) string { return q.key("job:" + id) }
func (q *Queue) waitKey() string         { return q.key("wait") }
func (q *Queue) activeKey() string       { return q.key("active") }
func (q *Queue) delayedKey() string      { return q.key("delayed") }
func (q *Queue) failedKey() string       { return q.key("failed") }

// Add enqueues a job. If a job with the same id already exists, the existing
// job is returned and nothing is enqueued.
func (q *Queue) Add(ctx context.Context, name string, data any, opts JobOptions) (*Job, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, errors.Wrap(err, "encode job data")
	}

	if opts.JobID == "" {
		opts.JobID = uuid.NewString()
	}
	if opts.Attempts < 1 {
		opts.Attempts = 1
	}

	rawOpts, err := json.Marshal(opts)
	if err != nil {
		return nil, errors.Wrap(err, "encode job options")
	}

	key := q.jobKey(opts.JobID)
	created, err := q.client.HSetNX(ctx, key, fieldID, opts.JobID).Result()
	if err != nil {
		return nil, errors.Wrap(err, "reserve job id")
	}
	if !created {
		q.logger.Debug().Str("job_id", opts.JobID).Msg("job id already queued, returning existing job")
		return q.GetJob(ctx, opts.JobID)
	}

	now := q.now()
	state := StateWaiting
	if opts.Delay > 0 {
		state = StateDelayed
	}

	_, err = q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, map[string]any{
			fieldName:         name,
			fieldData:         string(payload),
			fieldOpts:         string(rawOpts),
			fieldState:        string(state),
			fieldAttemptsMade: 0,
			fieldProgress:     0,
			fieldCreatedAt:    now.UnixMilli(),
		})
		if state == StateDelayed {
			pipe.ZAdd(ctx, q.delayedKey(), redis.Z{
				Score:  float64(now.Add(opts.Delay).UnixMilli()),
				Member: opts.JobID,
			})
		} else {
			pipe.LPush(ctx, q.waitKey(), opts.JobID)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "enqueue job")
	}

	q.logger.Debug().
		Str("job_id", opts.JobID).
		Str("job_name", name).
		Str("state", string(state)).
		Msg("job added")

	return &Job{
		ID:        opts.JobID,
		Name:      name,
		Data:      payload,
		Opts:      opts,
		State:     state,
		CreatedAt: time.UnixMilli(now.UnixMilli()),
		queue:     q,
	}, nil
}

// GetJob loads a job by id. Returns ErrJobNotFound for unknown or removed jobs.
func (q *Queue) GetJob(ctx context.Context, id string) (*Job, error) {
	fields, err := q.client.HGetAll(ctx, q.jobKey(id)).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "load job %s", id)
	}
	if len(fields) == 0 {
		return nil, ErrJobNotFound
	}
	return parseJob(q, fields)
}

// Counts reports the number of jobs per state. Completed jobs are not tracked.
func (q *Queue) Counts(ctx context.Context) (map[State]int64, error) {
	pipe := q.client.Pipeline()
	wait := pipe.LLen(ctx, q.waitKey())
	active := pipe.LLen(ctx, q.activeKey())
	delayed := pipe.ZCard(ctx, q.delayedKey())
	failed := pipe.SCard(ctx, q.failedKey())
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, errors.Wrap(err, "count jobs")
	}

	return map[State]int64{
		StateWaiting: wait.Val(),
		StateActive:  active.Val(),
		StateDelayed: delayed.Val(),
		StateFailed:  failed.Val(),
	}, nil
}

// reserve moves due delayed jobs to the wait list, then claims the oldest
// waiting job. Returns nil when nothing is waiting.
func (q *Queue) reserve(ctx context.Context) (*Job, error) {
	if err := q.promoteDelayed(ctx); err != nil {
		return nil, err
	}

	id, err := q.client.RPopLPush(ctx, q.waitKey(), q.activeKey()).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "claim job")
	}

	job, err := q.GetJob(ctx, id)
	if errors.Is(err, ErrJobNotFound) {
		q.logger.Warn().Str("job_id", id).Msg("dropping id of missing job")
		_ = q.client.LRem(ctx, q.activeKey(), 1, id).Err()
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	now := q.now()
	err = q.client.HSet(ctx, q.jobKey(id),
		fieldState, string(StateActive),
		fieldProcessedAt, now.UnixMilli(),
		fieldLockUntil, now.Add(q.lockDuration).UnixMilli(),
	).Err()
	if err != nil {
		return nil, errors.Wrapf(err, "activate job %s", id)
	}

	job.State = StateActive
	job.ProcessedAt = time.UnixMilli(now.UnixMilli())
	return job, nil
}

func (q *Queue) promoteDelayed(ctx context.Context) error {
	due, err := q.client.ZRangeByScore(ctx, q.delayedKey(), &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(q.now().UnixMilli(), 10),
		Count: promoteBatch,
	}).Result()
	if err != nil {
		return errors.Wrap(err, "list due jobs")
	}

	for _, id := range due {
		// Only the caller that removes the id promotes it.
		removed, err := q.client.ZRem(ctx, q.delayedKey(), id).Result()
		if err != nil {
			return errors.Wrapf(err, "promote job %s", id)
		}
		if removed == 0 {
			continue
		}

		_, err = q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, q.jobKey(id), fieldState, string(StateWaiting))
			pipe.LPush(ctx, q.waitKey(), id)
			return nil
		})
		if err != nil {
			return errors.Wrapf(err, "promote job %s", id)
		}
	}

	return nil
}

// extendLock pushes the stall deadline of an active job forward.
func (q *Queue) extendLock(ctx context.Context, id string) error {
	until := q.now().Add(q.lockDuration).UnixMilli()
	if err := q.client.HSet(ctx, q.jobKey(id), fieldLockUntil, until).Err(); err != nil {
		return errors.Wrapf(err, "extend lock of job %s", id)
	}
	return nil
}

// complete records a successful attempt.
func (q *Queue) complete(ctx context.Context, job *Job, result any) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return errors.Wrapf(err, "encode result of job %s", job.ID)
	}

	now := q.now()
	key := q.jobKey(job.ID)
	job.AttemptsMade++

	_, err = q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LRem(ctx, q.activeKey(), 1, job.ID)
		if job.Opts.RemoveOnComplete && q.completedRetention <= 0 {
			pipe.Del(ctx, key)
			return nil
		}
		pipe.HSet(ctx, key,
			fieldState, string(StateCompleted),
			fieldResult, string(raw),
			fieldProgress, 100,
			fieldAttemptsMade, job.AttemptsMade,
			fieldFinishedAt, now.UnixMilli(),
		)
		pipe.HDel(ctx, key, fieldLockUntil)
		if job.Opts.RemoveOnComplete {
			pipe.PExpire(ctx, key, q.completedRetention)
		}
		return nil
	})
	if err != nil {
		return errors.Wrapf(err, "complete job %s", job.ID)
	}

	job.State = StateCompleted
	job.Result = raw
	job.Progress = 100
	job.FinishedAt = time.UnixMilli(now.UnixMilli())
	return nil
}

// fail records a failed attempt. It reports whether the job will be retried.
func (q *Queue) fail(ctx context.Context, job *Job, cause error) (bool, error) {
	now := q.now()
	key := q.jobKey(job.ID)
	job.AttemptsMade++
	job.FailedReason = cause.Error()
	retry := job.AttemptsMade < job.Opts.Attempts

	_, err := q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LRem(ctx, q.activeKey(), 1, job.ID)
		switch {
		case retry:
			pipe.HSet(ctx, key,
				fieldState, string(StateDelayed),
				fieldAttemptsMade, job.AttemptsMade,
				fieldFailedReason, job.FailedReason,
			)
			pipe.HDel(ctx, key, fieldLockUntil)
			pipe.ZAdd(ctx, q.delayedKey(), redis.Z{
				Score:  float64(now.Add(job.Opts.Backoff.Next(job.AttemptsMade)).UnixMilli()),
				Member: job.ID,
			})
		case job.Opts.RemoveOnFail:
			pipe.Del(ctx, key)
		default:
			pipe.HSet(ctx, key,
				fieldState, string(StateFailed),
				fieldAttemptsMade, job.AttemptsMade,
				fieldFailedReason, job.FailedReason,
				fieldFinishedAt, now.UnixMilli(),
			)
			pipe.HDel(ctx, key, fieldLockUntil)
			pipe.SAdd(ctx, q.failedKey(), job.ID)
		}
		return nil
	})
	if err != nil {
		return false, errors.Wrapf(err, "fail job %s", job.ID)
	}

	if retry {
		job.State = StateDelayed
	} else {
		job.State = StateFailed
		job.FinishedAt = time.UnixMilli(now.UnixMilli())
	}
	return retry, nil
}

// RecoverStalled returns active jobs whose lock has expired to the front of
// the wait list. It returns the number of jobs recovered.
func (q *Queue) RecoverStalled(ctx context.Context) (int, error) {
	ids, err := q.client.LRange(ctx, q.activeKey(), 0, -1).Result()
	if err != nil {
		return 0, errors.Wrap(err, "list active jobs")
	}

	now := q.now().UnixMilli()
	recovered := 0
	for _, id := range ids {
		fields, err := q.client.HMGet(ctx, q.jobKey(id), fieldID, fieldLockUntil).Result()
		if err != nil {
			return recovered, errors.Wrapf(err, "inspect job %s", id)
		}
		if fields[0] == nil {
			// Hash is gone; drop the dangling id.
			_ = q.client.LRem(ctx, q.activeKey(), 1, id).Err()
			continue
		}
		lock, ok := fields[1].(string)
		if !ok {
			// Claimed but not yet activated. Start the lock clock so a claim
			// that never activates is recovered one lock period from now.
			if err := q.client.HSetNX(ctx, q.jobKey(id), fieldLockUntil, now+q.lockDuration.Milliseconds()).Err(); err != nil {
				return recovered, errors.Wrapf(err, "stamp job %s", id)
			}
			continue
		}
		lockUntil, err := strconv.ParseInt(lock, 10, 64)
		if err == nil && lockUntil > now {
			continue
		}

		removed, err := q.client.LRem(ctx, q.activeKey(), 1, id).Result()
		if err != nil {
			return recovered, errors.Wrapf(err, "release job %s", id)
		}
		if removed == 0 {
			continue
		}

		_, err = q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, q.jobKey(id), fieldState, string(StateWaiting))
			pipe.HDel(ctx, q.jobKey(id), fieldLockUntil)
			pipe.RPush(ctx, q.waitKey(), id)
			return nil
		})
		if err != nil {
			return recovered, errors.Wrapf(err, "requeue job %s", id)
		}

		q.logger.Warn().Str("job_id", id).Msg("recovered stalled job")
		recovered++
	}

	return recovered, nil
}
