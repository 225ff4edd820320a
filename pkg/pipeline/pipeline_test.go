package pipeline_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"skeenode/pkg/agent"
	. "skeenode/pkg/pipeline"

	"skeenode/pkg/models"
)

type recordingAgent struct {
	name    string
	mu      sync.Mutex
	ranAt   []time.Time
	failN   int
	kind    models.ErrorKind
	attempt int
}

func (a *recordingAgent) Name() string        { return a.name }
func (a *recordingAgent) Description() string { return "records invocation order for tests" }
func (a *recordingAgent) Validate(map[string]interface{}) error { return nil }

func (a *recordingAgent) Execute(ctx context.Context, payload map[string]interface{}, opts models.JobOptions) (agent.Result, error) {
	a.mu.Lock()
	a.ranAt = append(a.ranAt, time.Now())
	a.attempt++
	attempt := a.attempt
	a.mu.Unlock()

	if attempt <= a.failN {
		return agent.Result{}, providerFailure{kind: a.kind}
	}
	return agent.Result{Output: map[string]interface{}{"ok": true}}, nil
}

type providerFailure struct{ kind models.ErrorKind }

func (f providerFailure) Error() string { return "synthetic failure" }

type memStore struct {
	mu     sync.Mutex
	status map[uuid.UUID]models.JobStatus
	retry  map[uuid.UUID]int
}

func newMemStore() *memStore {
	return &memStore{status: map[uuid.UUID]models.JobStatus{}, retry: map[uuid.UUID]int{}}
}

func (s *memStore) GetJob(ctx context.Context, id uuid.UUID, ownerID string) (*models.Job, error) {
	return nil, errors.New("not implemented")
}

func (s *memStore) MarkRunning(ctx context.Context, id uuid.UUID, nodeID string, startedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status[id] = models.JobStatusRunning
	return nil
}

func (s *memStore) MarkCompleted(ctx context.Context, id uuid.UUID, result models.JSONMap) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status[id] = models.JobStatusCompleted
	return nil
}

func (s *memStore) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string, kind models.ErrorKind) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status[id] = models.JobStatusFailed
	return nil
}

func (s *memStore) MarkRetry(ctx context.Context, id uuid.UUID, retryCount int, runAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retry[id] = retryCount
	// status deliberately left untouched: jobs stay "running" through backoff.
	return nil
}

func (s *memStore) SetLogURI(ctx context.Context, id uuid.UUID, uri string) error {
	return nil
}

func (s *memStore) statusOf(id uuid.UUID) models.JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status[id]
}

func newJob(agentName string, priority models.JobPriority) *models.Job {
	return &models.Job{
		ID:        uuid.New(),
		AgentName: agentName,
		OwnerID:   "owner-1",
		Priority:  priority,
		Options:   models.DefaultJobOptions(),
		Status:    models.JobStatusPending,
		RunAt:     time.Now(),
		CreatedAt: time.Now(),
	}
}

func TestSubmit_UnknownAgentFailsImmediately(t *testing.T) {
	agents := agent.NewRegistry()
	store := newMemStore()
	p := New(DefaultConfig(), store, agents, nil)

	job := newJob("ghost", models.PriorityNormal)
	err := p.Submit(context.Background(), job)
	if err == nil {
		t.Fatal("expected error for unregistered agent")
	}
	if store.statusOf(job.ID) != models.JobStatusFailed {
		t.Errorf("expected job marked failed, got %v", store.statusOf(job.ID))
	}
}

func TestPipeline_RunsSubmittedJobToCompletion(t *testing.T) {
	agents := agent.NewRegistry()
	a := &recordingAgent{name: "echo"}
	agents.Register(a)

	store := newMemStore()
	p := New(Config{MaxConcurrentJobs: 2, DelayedPollInterval: 50 * time.Millisecond, RetryDelayBase: 2.0}, store, agents, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)
	defer p.Stop(time.Second)

	job := newJob("echo", models.PriorityNormal)
	if err := p.Submit(context.Background(), job); err != nil {
		t.Fatalf("unexpected submit error: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for store.statusOf(job.ID) != models.JobStatusCompleted {
		select {
		case <-deadline:
			t.Fatalf("job never completed, last status: %v", store.statusOf(job.ID))
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestPipeline_RetriableFailureStaysRunningThenRecovers(t *testing.T) {
	agents := agent.NewRegistry()
	a := &recordingAgent{name: "flaky", failN: 1, kind: models.ErrorKindTimeout}
	agents.Register(a)

	store := newMemStore()
	p := New(Config{MaxConcurrentJobs: 1, DelayedPollInterval: 20 * time.Millisecond, RetryDelayBase: 1.01}, store, agents, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)
	defer p.Stop(time.Second)

	job := newJob("flaky", models.PriorityNormal)
	if err := p.Submit(context.Background(), job); err != nil {
		t.Fatalf("unexpected submit error: %v", err)
	}

	deadline := time.After(3 * time.Second)
	for store.statusOf(job.ID) != models.JobStatusCompleted {
		select {
		case <-deadline:
			t.Fatalf("job never recovered via retry, last status: %v", store.statusOf(job.ID))
		case <-time.After(10 * time.Millisecond):
		}
	}

	if store.retry[job.ID] != 1 {
		t.Errorf("expected exactly one retry recorded, got %d", store.retry[job.ID])
	}
}

func TestQueue_OrdersHighPriorityFirstAndFIFOWithinBand(t *testing.T) {
	q := NewMemQueue(0)

	low := &Task{AgentName: "a", Priority: models.PriorityLow}
	high1 := &Task{AgentName: "b", Priority: models.PriorityHigh}
	high2 := &Task{AgentName: "c", Priority: models.PriorityHigh}
	crit := &Task{AgentName: "d", Priority: models.PriorityCritical}

	q.Push(low)
	q.Push(high1)
	q.Push(high2)
	q.Push(crit)

	order := []string{}
	for q.Len() > 0 {
		t, _ := q.Pop()
		order = append(order, t.AgentName)
	}

	want := []string{"d", "b", "c", "a"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, order)
		}
	}
}

type fakeLogStore struct {
	mu    sync.Mutex
	bodies map[string][]byte
}

func newFakeLogStore() *fakeLogStore {
	return &fakeLogStore{bodies: map[string][]byte{}}
}

func (f *fakeLogStore) Store(ctx context.Context, jobID string, body []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bodies[jobID] = body
	return "mem://" + jobID, nil
}

func (f *fakeLogStore) Retrieve(ctx context.Context, reference string) ([]byte, error) {
	return nil, nil
}

func TestPipeline_ArchivesOutputWhenLogStoreConfigured(t *testing.T) {
	agents := agent.NewRegistry()
	a := &recordingAgent{name: "echo"}
	agents.Register(a)

	store := newMemStore()
	logs := newFakeLogStore()
	p := New(Config{MaxConcurrentJobs: 2, DelayedPollInterval: 50 * time.Millisecond, RetryDelayBase: 2.0, Logs: logs}, store, agents, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)
	defer p.Stop(time.Second)

	job := newJob("echo", models.PriorityNormal)
	if err := p.Submit(context.Background(), job); err != nil {
		t.Fatalf("unexpected submit error: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for store.statusOf(job.ID) != models.JobStatusCompleted {
		select {
		case <-deadline:
			t.Fatalf("job never completed, last status: %v", store.statusOf(job.ID))
		case <-time.After(10 * time.Millisecond):
		}
	}

	logs.mu.Lock()
	_, archived := logs.bodies[job.ID.String()]
	logs.mu.Unlock()
	if !archived {
		t.Fatalf("expected job output to be archived")
	}
}
