package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"

	"skeenode/pkg/models"
)

// Store is the durable persistence the pipeline needs. Concrete
// implementations live under pkg/store (Postgres via GORM).
type Store interface {
	// GetJob loads a job row. An empty ownerID means no ownership
	// filter. The pipeline itself does not call it.
	GetJob(ctx context.Context, id uuid.UUID, ownerID string) (*models.Job, error)

	// MarkRunning records the start of an attempt and which node claimed
	// it, used later for orphan reaping if that node disappears.
	MarkRunning(ctx context.Context, id uuid.UUID, nodeID string, startedAt time.Time) error

	// MarkCompleted persists a successful result.
	MarkCompleted(ctx context.Context, id uuid.UUID, result models.JSONMap) error

	// MarkFailed persists a terminal failure.
	MarkFailed(ctx context.Context, id uuid.UUID, errMsg string, kind models.ErrorKind) error

	// MarkRetry persists the bumped retry count and next run time,
	// leaving status untouched (it stays "running").
	MarkRetry(ctx context.Context, id uuid.UUID, retryCount int, runAt time.Time) error

	// SetLogURI records where a job's full output was archived, once a
	// LogStore has been configured on the pipeline.
	SetLogURI(ctx context.Context, id uuid.UUID, uri string) error
}
