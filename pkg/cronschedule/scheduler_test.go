package cronschedule_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	. "skeenode/pkg/cronschedule"
	"skeenode/pkg/models"
)

type fakeStore struct {
	mu        sync.Mutex
	due       []*models.Schedule
	claims    map[uuid.UUID]int
	claimOK   bool
	disabled  map[uuid.UUID]string
}

func newFakeStore(due ...*models.Schedule) *fakeStore {
	return &fakeStore{due: due, claims: map[uuid.UUID]int{}, claimOK: true, disabled: map[uuid.UUID]string{}}
}

func (s *fakeStore) ListDue(ctx context.Context, now time.Time, tolerance time.Duration) ([]*models.Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.due, nil
}

func (s *fakeStore) ClaimAndAdvance(ctx context.Context, id uuid.UUID, expectedNextRun, executedAt, nextNextRun time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.claims[id]++
	return s.claimOK, nil
}

func (s *fakeStore) Disable(ctx context.Context, id uuid.UUID, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disabled[id] = reason
	return nil
}

func (s *fakeStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sch := range s.due {
		if sch.ID == id {
			return sch, nil
		}
	}
	return nil, errors.New("schedule not found")
}

type fakePipeline struct {
	mu       sync.Mutex
	submitted []*models.Job
	err      error
}

func (p *fakePipeline) Submit(ctx context.Context, job *models.Job) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.submitted = append(p.submitted, job)
	return nil
}

func (p *fakePipeline) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.submitted)
}

func dueSchedule(id uuid.UUID, nextRun time.Time) *models.Schedule {
	return &models.Schedule{
		ID:             id,
		AgentName:      "simple_prompt",
		CronExpression: "*/5 * * * *",
		Status:         models.ScheduleEnabled,
		Options:        models.DefaultJobOptions(),
		NextRun:        &nextRun,
	}
}

func TestScheduler_DispatchesDueSchedule(t *testing.T) {
	id := uuid.New()
	store := newFakeStore(dueSchedule(id, time.Now().Add(-time.Minute)))
	pipeline := &fakePipeline{}

	sched := New(Config{CheckInterval: 10 * time.Millisecond, Tolerance: time.Minute}, store, pipeline)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	sched.Run(ctx, nil)

	if pipeline.count() == 0 {
		t.Fatalf("expected at least one job submitted for a due schedule")
	}
	if store.claims[id] == 0 {
		t.Fatalf("expected the schedule's row to be claimed before dispatch")
	}
}

func TestScheduler_SkipsWhenClaimLost(t *testing.T) {
	id := uuid.New()
	store := newFakeStore(dueSchedule(id, time.Now().Add(-time.Minute)))
	store.claimOK = false
	pipeline := &fakePipeline{}

	sched := New(Config{CheckInterval: 10 * time.Millisecond, Tolerance: time.Minute}, store, pipeline)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	sched.Run(ctx, nil)

	if pipeline.count() != 0 {
		t.Fatalf("expected no job submitted when the claim race is lost, got %d", pipeline.count())
	}
}

func TestScheduler_DeferredWithoutLeadership(t *testing.T) {
	id := uuid.New()
	store := newFakeStore(dueSchedule(id, time.Now().Add(-time.Minute)))
	pipeline := &fakePipeline{}

	sched := New(Config{CheckInterval: 10 * time.Millisecond, Tolerance: time.Minute}, store, pipeline)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	sched.Run(ctx, &neverLeader{})

	if pipeline.count() != 0 {
		t.Fatalf("expected no job submitted while this instance isn't leader, got %d", pipeline.count())
	}
}

func TestScheduler_DisablesOnBadCronExpression(t *testing.T) {
	id := uuid.New()
	sch := dueSchedule(id, time.Now().Add(-time.Minute))
	sch.CronExpression = "not a cron expression"
	store := newFakeStore(sch)
	pipeline := &fakePipeline{}

	sched := New(Config{CheckInterval: 10 * time.Millisecond, Tolerance: time.Minute}, store, pipeline)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	sched.Run(ctx, nil)

	store.mu.Lock()
	_, wasDisabled := store.disabled[id]
	store.mu.Unlock()

	if !wasDisabled {
		t.Fatalf("expected schedule with an unparseable cron expression to be disabled")
	}
	if pipeline.count() != 0 {
		t.Fatalf("expected no job submitted for a disabled schedule")
	}
}

// neverLeader implements coordination.Election but never holds leadership,
// letting tests exercise the Scheduler.Run leader gate without etcd.
type neverLeader struct{}

func (neverLeader) Campaign(ctx context.Context, value string) error { return nil }
func (neverLeader) Resign(ctx context.Context) error                 { return nil }
func (neverLeader) Leader(ctx context.Context) (string, error)       { return "", nil }
func (neverLeader) IsLeader() bool                                   { return false }
