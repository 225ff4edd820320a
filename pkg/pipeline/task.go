// Package pipeline implements the concurrent job pipeline: a priority
// ready queue, a time-ordered delayed set for scheduled/retrying jobs,
// and a worker pool that executes jobs through the agent runtime.
//
// The algorithm is ported from the original platform's JobPipeline
// (asyncio queue + worker tasks + scheduler coroutine), generalized to
// honor strict priority ordering with FIFO tie-breaking within a band,
// which the original's plain asyncio.Queue did not enforce.
package pipeline

import (
	"time"

	"github.com/google/uuid"

	"skeenode/pkg/models"
)

// Task is the transient, in-memory pipeline record for one attempt at
// running a job. It is reconstructed from (and written back to) the
// durable Job row via the Store, but its queue position and retry
// bookkeeping live only in the pipeline's own structures.
type Task struct {
	JobID      uuid.UUID
	OwnerID    string
	AgentName  string
	Payload    models.JSONMap
	Options    models.JobOptions
	Priority   models.JobPriority
	RetryCount int
	MaxRetries int
	CreatedAt  time.Time
	ScheduledAt time.Time

	// seq breaks ties between equal-priority tasks, preserving FIFO order.
	seq uint64
}

// Ready reports whether the task's scheduled time has arrived.
func (t *Task) Ready(now time.Time) bool {
	return !t.ScheduledAt.After(now)
}

// CanRetry reports whether another attempt is allowed.
func (t *Task) CanRetry() bool {
	return t.RetryCount < t.MaxRetries
}

// NewTask builds a pipeline Task from a durable Job row.
func NewTask(job *models.Job) *Task {
	maxRetries := job.Options.MaxRetries
	if maxRetries == 0 {
		maxRetries = models.DefaultJobOptions().MaxRetries
	}
	return &Task{
		JobID:       job.ID,
		OwnerID:     job.OwnerID,
		AgentName:   job.AgentName,
		Payload:     job.Payload,
		Options:     job.Options,
		Priority:    job.Priority,
		RetryCount:  job.RetryCount,
		MaxRetries:  maxRetries,
		CreatedAt:   job.CreatedAt,
		ScheduledAt: job.RunAt,
	}
}
