package queue

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/go-faster/errors"
)

// State is the lifecycle state of a job.
type State string

const (
	StateWaiting   State = "waiting"
	StateDelayed   State = "delayed"
	StateActive    State = "active"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// ErrJobNotFound is returned when a job id is unknown to the queue.
var ErrJobNotFound = errors.New("job not found")

// BackoffType selects how retry delays grow.
type BackoffType string

const (
	BackoffFixed       BackoffType = "fixed"
	BackoffExponential BackoffType = "exponential"
)

// Backoff describes the delay before a failed job is retried.
type Backoff struct {
	Type  BackoffType   `json:"type"`
	Delay time.Duration `json:"delay"`
}

// Next returns the delay before the retry that follows attemptsMade failed attempts.
func (b Backoff) Next(attemptsMade int) time.Duration {
	if b.Type == BackoffExponential && attemptsMade > 1 {
		return b.Delay << (attemptsMade - 1)
	}
	return b.Delay
}

// JobOptions controls retries, delays and cleanup for a job.
type JobOptions struct {
	JobID            string        `json:"jobId,omitempty"`
	Attempts         int           `json:"attempts"`
	Backoff          Backoff       `json:"backoff"`
	Delay            time.Duration `json:"delay,omitempty"`
	RemoveOnComplete bool          `json:"removeOnComplete"`
	RemoveOnFail     bool          `json:"removeOnFail"`
}

// Job is a unit of work stored in a queue.
type Job struct {
	ID           string
	Name         string
	Data         json.RawMessage
	Opts         JobOptions
	State        State
	AttemptsMade int
	Progress     int
	Result       json.RawMessage
	FailedReason string
	CreatedAt    time.Time
	ProcessedAt  time.Time
	FinishedAt   time.Time

	queue *Queue
}

// Decode unmarshals the job payload into v.
func (j *Job) Decode(v any) error {
	if err := json.Unmarshal(j.Data, v); err != nil {
		return errors.Wrapf(err, "decode job %s", j.ID)
	}
	return nil
}

// DecodeResult unmarshals the job result into v.
func (j *Job) DecodeResult(v any) error {
	if len(j.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(j.Result, v); err != nil {
		return errors.Wrapf(err, "decode result of job %s", j.ID)
	}
	return nil
}

// UpdateProgress stores the job's progress percentage.
func (j *Job) UpdateProgress(ctx context.Context, progress int) error {
	j.Progress = progress
	if j.queue == nil {
		return nil
	}
	if err := j.queue.client.HSet(ctx, j.queue.jobKey(j.ID), fieldProgress, progress).Err(); err != nil {
		return errors.Wrapf(err, "update progress of job %s", j.ID)
	}
	return nil
}

// Hash fields of a stored job.
const (
	fieldID           = "id"
	fieldName         = "name"
	fieldData         = "data"
	fieldOpts         = "opts"
	fieldState        = "state"
	fieldAttemptsMade = "attempts_made"
	fieldProgress     = "progress"
	fieldResult       = "result"
	fieldFailedReason = "failed_reason"
	fieldCreatedAt    = "created_at"
	fieldProcessedAt  = "processed_at"
	fieldFinishedAt   = "finished_at"
	fieldLockUntil    = "lock_until"
)

func parseJob(q *Queue, fields map[string]string) (*Job, error) {
	job := &Job{
		ID:           fields[fieldID],
		Name:         fields[fieldName],
		State:        State(fields[fieldState]),
		FailedReason: fields[fieldFailedReason],
		AttemptsMade: atoi(fields[fieldAttemptsMade]),
		Progress:     atoi(fields[fieldProgress]),
		CreatedAt:    unixMilli(fields[fieldCreatedAt]),
		ProcessedAt:  unixMilli(fields[fieldProcessedAt]),
		FinishedAt:   unixMilli(fields[fieldFinishedAt]),
		queue:        q,
	}
	if job.State == "" {
		// Written by Add but not yet filled in.
		job.State = StateWaiting
	}
	if data := fields[fieldData]; data != "" {
		job.Data = json.RawMessage(data)
	}
	if result := fields[fieldResult]; result != "" {
		job.Result = json.RawMessage(result)
	}
	if opts := fields[fieldOpts]; opts != "" {
		if err := json.Unmarshal([]byte(opts), &job.Opts); err != nil {
			return nil, errors.Wrapf(err, "decode options of job %s", job.ID)
		}
	}
	return job, nil
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func unixMilli(s string) time.Time {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil || ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
