package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"skeenode/pkg/models"
)

// JobStore is the full data-access surface the submission API and
// operational tooling need over Job rows, beyond the narrower
// pipeline.Store contract the pipeline itself depends on.
type JobStore interface {
	CreateJob(ctx context.Context, job *models.Job) error

	// GetJob loads a job by id. An empty ownerID performs no ownership
	// filter (trusted internal callers); a non-empty ownerID makes the
	// lookup fail with ErrNotFound for a job it doesn't own, so cross-
	// user access can't be distinguished from a missing row.
	GetJob(ctx context.Context, id uuid.UUID, ownerID string) (*models.Job, error)
	ListJobs(ctx context.Context, ownerID string, limit, offset int) ([]models.Job, error)

	// DeleteJob deletes a job by id, scoped by ownerID the same way GetJob is.
	DeleteJob(ctx context.Context, id uuid.UUID, ownerID string) error

	// MarkOrphansAsFailed fails every job still "running" but claimed by
	// a node not present in activeNodeIDs — the node died mid-execution.
	MarkOrphansAsFailed(ctx context.Context, activeNodeIDs []string) (int64, error)

	// ListRecentFailures returns jobs that failed since a given time.
	ListRecentFailures(ctx context.Context, since time.Time, limit int) ([]models.Job, error)
}

// ScheduleStore is the full data-access surface for Schedule rows. Like
// JobStore, GetSchedule/UpdateSchedule/DeleteSchedule take an ownerID
// that, when non-empty, scopes the operation to that owner's rows.
type ScheduleStore interface {
	CreateSchedule(ctx context.Context, sch *models.Schedule) error
	GetSchedule(ctx context.Context, id uuid.UUID, ownerID string) (*models.Schedule, error)
	ListSchedules(ctx context.Context, ownerID string, limit, offset int) ([]models.Schedule, error)
	UpdateSchedule(ctx context.Context, sch *models.Schedule, ownerID string) error

	// DeleteSchedule deletes a schedule and cascades to every job that
	// references it.
	DeleteSchedule(ctx context.Context, id uuid.UUID, ownerID string) error
}
