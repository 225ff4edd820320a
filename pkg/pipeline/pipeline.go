package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"skeenode/pkg/agent"
	"skeenode/pkg/logger"
	"skeenode/pkg/logstore"
	"skeenode/pkg/metrics"
	"skeenode/pkg/models"
	"skeenode/pkg/observability"
)

// ErrQueueFull is returned by Submit when the ready queue has reached
// its configured capacity and the job isn't scheduled for later.
var ErrQueueFull = errors.New("pipeline: ready queue is full")

// maxJobMetrics bounds how many completed-job metrics the pipeline
// keeps in memory, evicting the oldest by completion time once full.
const maxJobMetrics = 1000

// Config tunes the pipeline's concurrency and housekeeping.
type Config struct {
	// MaxConcurrentJobs bounds how many tasks run at once, enforced by
	// a buffered-channel semaphore around the worker pool.
	MaxConcurrentJobs int

	// MaxQueueSize bounds the ready queue. Submit returns ErrQueueFull
	// once it's reached. 0 or less selects the default (1000).
	MaxQueueSize int

	// DelayedPollInterval is how often the delayed set is checked for
	// tasks that have become ready (scheduled jobs and retry backoffs).
	DelayedPollInterval time.Duration

	// RetryDelayBase is the exponential backoff base: delay = base^retryCount.
	RetryDelayBase float64

	// RetryDelayCap ceils the exponential backoff so retries on
	// long-lived jobs don't grow unbounded.
	RetryDelayCap time.Duration

	// NodeID identifies this pipeline instance to the Store, so orphaned
	// jobs can later be attributed to a node that's gone.
	NodeID string

	// Logs archives each job's full output once it finishes, if set.
	// LogURI on the job row is only populated when this is configured.
	Logs logstore.Store

	// Tracer, if set, wraps each agent execution in an OpenTelemetry span.
	Tracer *tracing.Provider
}

// DefaultConfig mirrors the original pipeline's defaults.
func DefaultConfig() Config {
	return Config{
		MaxConcurrentJobs:   5,
		MaxQueueSize:        1000,
		DelayedPollInterval: 5 * time.Second,
		RetryDelayBase:      2.0,
		RetryDelayCap:       10 * time.Minute,
	}
}

// Pipeline executes jobs against registered agents with bounded
// concurrency, honoring job priority and a retry policy with
// exponential backoff. It is the Go counterpart of the original
// platform's JobPipeline: a ready queue, a delayed set for scheduled
// and retrying jobs, a worker pool, and a promotion loop.
type Pipeline struct {
	cfg    Config
	store  Store
	agents *agent.Registry

	mu      sync.Mutex
	ready   Queue
	delayed *DelayedSet
	notify  chan struct{}

	wg       sync.WaitGroup
	cancel   context.CancelFunc
	stopOnce sync.Once

	status     Status
	jobMetrics map[uuid.UUID]*JobMetric
}

// JobMetric is a point-in-time record of one completed attempt, kept
// in memory for introspection (e.g. a metrics/status endpoint) beyond
// the aggregate counters in Status.
type JobMetric struct {
	JobID       uuid.UUID
	AgentName   string
	Status      models.JobStatus
	RetryCount  int
	StartedAt   time.Time
	CompletedAt time.Time
	Duration    time.Duration
}

// Status is a point-in-time snapshot of pipeline activity, analogous to
// the original's get_pipeline_status().
type Status struct {
	Active    int
	Completed int64
	Failed    int64
	Retried   int64
	Queued    int
	Delayed   int
}

// New builds a Pipeline. ready may be nil to use the default in-memory
// priority queue.
func New(cfg Config, store Store, agents *agent.Registry, ready Queue) *Pipeline {
	if cfg.MaxConcurrentJobs <= 0 {
		cfg.MaxConcurrentJobs = DefaultConfig().MaxConcurrentJobs
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = DefaultConfig().MaxQueueSize
	}
	if cfg.DelayedPollInterval <= 0 {
		cfg.DelayedPollInterval = DefaultConfig().DelayedPollInterval
	}
	if cfg.RetryDelayBase <= 0 {
		cfg.RetryDelayBase = DefaultConfig().RetryDelayBase
	}
	if cfg.RetryDelayCap <= 0 {
		cfg.RetryDelayCap = DefaultConfig().RetryDelayCap
	}
	if ready == nil {
		ready = NewMemQueue(cfg.MaxQueueSize)
	}
	return &Pipeline{
		cfg:        cfg,
		store:      store,
		agents:     agents,
		ready:      ready,
		delayed:    NewDelayedSet(),
		notify:     make(chan struct{}, 1),
		jobMetrics: make(map[uuid.UUID]*JobMetric),
	}
}

// Submit enqueues a job for execution. Jobs whose agent isn't
// registered fail immediately rather than entering the queue, matching
// the original pipeline's fail-fast behavior on unknown agents.
func (p *Pipeline) Submit(ctx context.Context, job *models.Job) error {
	if _, err := p.agents.Get(job.AgentName); err != nil {
		job.Status = models.JobStatusFailed
		job.ErrorKind = models.ErrorKindValidationFailure
		job.Error = err.Error()
		if p.store != nil {
			_ = p.store.MarkFailed(ctx, job.ID, err.Error(), models.ErrorKindValidationFailure)
		}
		return err
	}

	task := NewTask(job)
	if !p.enqueueOrDelay(task, time.Now()) {
		return ErrQueueFull
	}
	metrics.JobsTotal.WithLabelValues(string(models.JobStatusPending)).Inc()
	return nil
}

// Resume admits a Task that was already validated and persisted
// elsewhere (e.g. a scheduler or API process dispatching across a
// cross-node queue) straight into this pipeline's local ready/delayed
// structures, skipping the agent-registration check Submit performs.
// It reports false when the task is ready now and the ready queue is
// full, so the caller (e.g. a cross-node consumer) can leave the job
// unacknowledged for redelivery instead of dropping it.
func (p *Pipeline) Resume(t *Task) bool {
	return p.enqueueOrDelay(t, time.Now())
}

func (p *Pipeline) enqueueOrDelay(t *Task, now time.Time) bool {
	p.mu.Lock()
	var ok bool
	if t.Ready(now) {
		ok = p.ready.Push(t)
	} else {
		p.delayed.Add(t)
		ok = true
	}
	p.mu.Unlock()
	if ok {
		p.wake()
	}
	return ok
}

func (p *Pipeline) wake() {
	select {
	case p.notify <- struct{}{}:
	default:
	}
}

// Start spins up the worker pool and the delayed-promotion loop. It
// returns immediately; call Stop to shut down.
func (p *Pipeline) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	sem := make(chan struct{}, p.cfg.MaxConcurrentJobs)

	for i := 0; i < p.cfg.MaxConcurrentJobs; i++ {
		p.wg.Add(1)
		go p.worker(ctx, sem, fmt.Sprintf("worker-%d", i))
	}

	p.wg.Add(1)
	go p.promotionLoop(ctx)

	p.wg.Add(1)
	go p.metricsCleanupLoop(ctx)

	logger.Get().Info("pipeline started", zap.Int("workers", p.cfg.MaxConcurrentJobs))
}

// Stop cancels all worker and promotion goroutines and waits for them
// to exit, up to timeout.
func (p *Pipeline) Stop(timeout time.Duration) error {
	var err error
	p.stopOnce.Do(func() {
		if p.cancel != nil {
			p.cancel()
		}
		done := make(chan struct{})
		go func() {
			p.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(timeout):
			err = fmt.Errorf("pipeline: shutdown exceeded %s", timeout)
		}
	})
	return err
}

func (p *Pipeline) worker(ctx context.Context, sem chan struct{}, name string) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		task, ok := p.dequeue(ctx)
		if !ok {
			continue
		}

		sem <- struct{}{}
		p.executeTask(ctx, task, name)
		<-sem
	}
}

// dequeue blocks (subject to context cancellation) until a ready task
// is available, waking on every Submit/promotion signal.
func (p *Pipeline) dequeue(ctx context.Context) (*Task, bool) {
	p.mu.Lock()
	t, ok := p.ready.Pop()
	p.mu.Unlock()
	if ok {
		return t, true
	}

	select {
	case <-ctx.Done():
		return nil, false
	case <-p.notify:
		return nil, false
	case <-time.After(time.Second):
		return nil, false
	}
}

func (p *Pipeline) executeTask(ctx context.Context, t *Task, workerName string) {
	p.mu.Lock()
	p.status.Active++
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		p.status.Active--
		p.mu.Unlock()
	}()

	startedAt := time.Now()

	a, err := p.agents.Get(t.AgentName)
	if err != nil {
		p.fail(ctx, t, err.Error(), models.ErrorKindValidationFailure, startedAt)
		return
	}

	if p.store != nil {
		if err := p.store.MarkRunning(ctx, t.JobID, p.cfg.NodeID, startedAt); err != nil {
			logger.Get().Warn("mark running failed", zap.String("job_id", t.JobID.String()), zap.Error(err))
		}
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if t.Options.TimeoutSeconds > 0 {
		runCtx, cancel = context.WithTimeout(ctx, time.Duration(t.Options.TimeoutSeconds)*time.Second)
		defer cancel()
	}

	if p.cfg.Tracer != nil {
		var span trace.Span
		runCtx, span = p.cfg.Tracer.StartSpan(runCtx, "agent.execute",
			trace.WithAttributes(attribute.String("agent", t.AgentName), attribute.String("job_id", t.JobID.String())))
		defer span.End()
	}

	outcome := agent.Run(runCtx, a, t.Payload, t.Options)
	metrics.ExecutionDuration.WithLabelValues(t.AgentName, outcomeLabel(outcome.Err)).Observe(outcome.Result.Duration.Seconds())
	if outcome.Err != nil && p.cfg.Tracer != nil {
		tracing.SetError(runCtx, outcome.Err)
	}

	if outcome.Err == nil {
		p.complete(ctx, t, outcome.Result, workerName, startedAt)
		return
	}

	if outcome.ErrorKind.Retriable() && t.CanRetry() {
		p.retry(ctx, t, outcome.Err.Error())
		return
	}

	p.fail(ctx, t, outcome.Err.Error(), outcome.ErrorKind, startedAt)
}

func outcomeLabel(err error) string {
	if err == nil {
		return "success"
	}
	return "failure"
}

func (p *Pipeline) complete(ctx context.Context, t *Task, result agent.Result, workerName string, startedAt time.Time) {
	payload := models.JSONMap(result.Output)
	if p.store != nil {
		if err := p.store.MarkCompleted(ctx, t.JobID, payload); err != nil {
			logger.Get().Warn("mark completed failed", zap.String("job_id", t.JobID.String()), zap.Error(err))
		}
	}
	p.archiveLog(ctx, t, payload)
	completedAt := time.Now()
	p.mu.Lock()
	p.status.Completed++
	p.mu.Unlock()
	p.recordMetric(&JobMetric{
		JobID:       t.JobID,
		AgentName:   t.AgentName,
		Status:      models.JobStatusCompleted,
		RetryCount:  t.RetryCount,
		StartedAt:   startedAt,
		CompletedAt: completedAt,
		Duration:    completedAt.Sub(startedAt),
	})
	metrics.ExecutionsTotal.WithLabelValues("completed", t.AgentName).Inc()
	logger.Get().Info("job completed",
		zap.String("job_id", t.JobID.String()),
		zap.String("agent", t.AgentName),
		zap.String("worker", workerName),
	)
}

// archiveLog writes a job's output to the configured log store and
// records the resulting reference on the job row. A no-op when no
// LogStore is configured.
func (p *Pipeline) archiveLog(ctx context.Context, t *Task, output models.JSONMap) {
	if p.cfg.Logs == nil {
		return
	}
	body, err := json.Marshal(output)
	if err != nil {
		logger.Get().Warn("failed to marshal job output for archiving", zap.String("job_id", t.JobID.String()), zap.Error(err))
		return
	}
	uri, err := p.cfg.Logs.Store(ctx, t.JobID.String(), body)
	if err != nil {
		logger.Get().Warn("failed to archive job output", zap.String("job_id", t.JobID.String()), zap.Error(err))
		return
	}
	if p.store != nil {
		if err := p.store.SetLogURI(ctx, t.JobID, uri); err != nil {
			logger.Get().Warn("failed to record log uri", zap.String("job_id", t.JobID.String()), zap.Error(err))
		}
	}
}

func (p *Pipeline) fail(ctx context.Context, t *Task, errMsg string, kind models.ErrorKind, startedAt time.Time) {
	if p.store != nil {
		if err := p.store.MarkFailed(ctx, t.JobID, errMsg, kind); err != nil {
			logger.Get().Warn("mark failed failed", zap.String("job_id", t.JobID.String()), zap.Error(err))
		}
	}
	p.archiveLog(ctx, t, models.JSONMap{"error": errMsg, "error_kind": string(kind)})
	completedAt := time.Now()
	p.mu.Lock()
	p.status.Failed++
	p.mu.Unlock()
	p.recordMetric(&JobMetric{
		JobID:       t.JobID,
		AgentName:   t.AgentName,
		Status:      models.JobStatusFailed,
		RetryCount:  t.RetryCount,
		StartedAt:   startedAt,
		CompletedAt: completedAt,
		Duration:    completedAt.Sub(startedAt),
	})
	metrics.ExecutionsTotal.WithLabelValues("failed", t.AgentName).Inc()
	logger.Get().Warn("job failed",
		zap.String("job_id", t.JobID.String()),
		zap.String("agent", t.AgentName),
		zap.String("error_kind", string(kind)),
		zap.String("error", errMsg),
	)
}

// retry bumps the retry count, computes the exponential backoff delay
// (capped at RetryDelayCap), and re-enters the task into the delayed
// set. The job's status stays "running" — there is no intermediate
// "retrying" status, matching the original pipeline's _retry_job.
func (p *Pipeline) retry(ctx context.Context, t *Task, errMsg string) {
	t.RetryCount++
	delay := time.Duration(math.Pow(p.cfg.RetryDelayBase, float64(t.RetryCount)) * float64(time.Second))
	if p.cfg.RetryDelayCap > 0 && delay > p.cfg.RetryDelayCap {
		delay = p.cfg.RetryDelayCap
	}
	t.ScheduledAt = time.Now().Add(delay)

	if p.store != nil {
		if err := p.store.MarkRetry(ctx, t.JobID, t.RetryCount, t.ScheduledAt); err != nil {
			logger.Get().Warn("mark retry failed", zap.String("job_id", t.JobID.String()), zap.Error(err))
		}
	}

	p.mu.Lock()
	p.delayed.Add(t)
	p.status.Retried++
	p.mu.Unlock()
	metrics.RetriesTotal.WithLabelValues(t.AgentName).Inc()
	logger.Get().Info("job scheduled for retry",
		zap.String("job_id", t.JobID.String()),
		zap.Int("retry_count", t.RetryCount),
		zap.Duration("delay", delay),
		zap.String("last_error", errMsg),
	)
}

// promotionLoop periodically moves delayed tasks whose time has come
// into the ready queue, mirroring the original pipeline's _scheduler
// coroutine.
func (p *Pipeline) promotionLoop(ctx context.Context) {
	defer p.wg.Done()
	ticker := time.NewTicker(p.cfg.DelayedPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.promote()
		}
	}
}

func (p *Pipeline) promote() {
	now := time.Now()
	p.mu.Lock()
	ready := p.delayed.PromoteReady(now)
	var admitted, rejected int
	for _, t := range ready {
		if p.ready.Push(t) {
			admitted++
			continue
		}
		// Ready queue is at capacity: leave the task for the next
		// promotion pass instead of dropping it.
		t.ScheduledAt = now.Add(p.cfg.DelayedPollInterval)
		p.delayed.Add(t)
		rejected++
	}
	p.mu.Unlock()
	if rejected > 0 {
		logger.Get().Warn("pipeline: ready queue full, requeued delayed tasks", zap.Int("count", rejected))
	}
	if admitted > 0 {
		p.wake()
	}
}

// metricsCleanupLoop periodically trims job_metrics back down to
// maxJobMetrics, evicting the oldest completions first.
func (p *Pipeline) metricsCleanupLoop(ctx context.Context) {
	defer p.wg.Done()
	ticker := time.NewTicker(p.cfg.DelayedPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.trimMetrics()
		}
	}
}

func (p *Pipeline) recordMetric(m *JobMetric) {
	p.mu.Lock()
	p.jobMetrics[m.JobID] = m
	p.mu.Unlock()
	p.trimMetrics()
}

func (p *Pipeline) trimMetrics() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.jobMetrics) <= maxJobMetrics {
		return
	}
	entries := make([]*JobMetric, 0, len(p.jobMetrics))
	for _, m := range p.jobMetrics {
		entries = append(entries, m)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CompletedAt.Before(entries[j].CompletedAt)
	})
	for _, m := range entries[:len(entries)-maxJobMetrics] {
		delete(p.jobMetrics, m.JobID)
	}
}

// JobMetrics returns a snapshot of the in-memory per-job completion
// records, most recent data included.
func (p *Pipeline) JobMetrics() []JobMetric {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]JobMetric, 0, len(p.jobMetrics))
	for _, m := range p.jobMetrics {
		out = append(out, *m)
	}
	return out
}

// Snapshot returns the current pipeline status.
func (p *Pipeline) Snapshot() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.status
	s.Queued = p.ready.Len()
	s.Delayed = p.delayed.Len()
	return s
}
