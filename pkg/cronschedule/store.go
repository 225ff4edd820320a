package cronschedule

import (
	"context"
	"time"

	"github.com/google/uuid"

	"skeenode/pkg/models"
)

// Store is the durable persistence cronschedule needs. The concrete
// Postgres implementation lives under pkg/store.
type Store interface {
	// ListDue returns enabled schedules whose next_run falls within the
	// tolerance window (next_run <= now+tolerance).
	ListDue(ctx context.Context, now time.Time, tolerance time.Duration) ([]*models.Schedule, error)

	// GetByID loads a single schedule by id, unfiltered by owner — used
	// by RunNow, where ownership is already enforced by the caller.
	GetByID(ctx context.Context, id uuid.UUID) (*models.Schedule, error)

	// ClaimAndAdvance atomically advances a schedule's next_run, but
	// only if the row's current next_run still equals expectedNextRun.
	// It reports whether this caller won the race.
	ClaimAndAdvance(ctx context.Context, id uuid.UUID, expectedNextRun, executedAt, nextNextRun time.Time) (bool, error)

	// Disable turns a schedule off after repeated or unrecoverable errors.
	Disable(ctx context.Context, id uuid.UUID, reason string) error
}
