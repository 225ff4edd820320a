// Package cronschedule implements the cron-driven scheduler: a sweep
// loop that finds due Schedule rows and submits a Job for each,
// advancing next_run with an atomic claim-before-submit update so that
// two scheduler instances racing on the same row only ever fire it
// once.
package cronschedule

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"skeenode/pkg/coordination"
	"skeenode/pkg/logger"
	"skeenode/pkg/metrics"
	"skeenode/pkg/models"
	"skeenode/pkg/pipeline"
)

// Config tunes the scheduler's sweep cadence and due-window tolerance.
type Config struct {
	// CheckInterval is how often the scheduler sweeps for due schedules.
	CheckInterval time.Duration

	// Tolerance bounds how far into the future a schedule may fall and
	// still be considered due this sweep, absorbing jitter between the
	// sweep cadence and a schedule's exact next_run.
	Tolerance time.Duration
}

// DefaultConfig mirrors the original scheduler service's defaults.
func DefaultConfig() Config {
	return Config{
		CheckInterval: 30 * time.Second,
		Tolerance:     30 * time.Second,
	}
}

// Scheduler sweeps due schedules and submits their jobs to a Pipeline,
// optionally gated by a leader Election so that only one instance in a
// cluster runs the sweep at a time. The atomic claim on the schedule
// row is a second, independent safeguard: even if a split-brain allows
// two instances to believe they are leader, only one of them can win
// the claim for a given firing.
type Scheduler struct {
	cfg      Config
	store    Store
	pipeline Pipeline
}

// Pipeline is the subset of pipeline.Pipeline the scheduler needs to
// hand off a due schedule's job.
type Pipeline interface {
	Submit(ctx context.Context, job *models.Job) error
}

var _ Pipeline = (*pipeline.Pipeline)(nil)

// New builds a Scheduler.
func New(cfg Config, store Store, p Pipeline) *Scheduler {
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = DefaultConfig().CheckInterval
	}
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = DefaultConfig().Tolerance
	}
	return &Scheduler{cfg: cfg, store: store, pipeline: p}
}

// Run sweeps for due schedules on a ticker until ctx is cancelled. When
// election is non-nil, each sweep only does work while this instance
// holds leadership.
func (s *Scheduler) Run(ctx context.Context, election coordination.Election) {
	ticker := time.NewTicker(s.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if election != nil && !election.IsLeader() {
				continue
			}
			s.sweep(ctx)
		}
	}
}

func (s *Scheduler) sweep(ctx context.Context) {
	metrics.SchedulerPolls.Inc()
	now := time.Now().UTC()

	due, err := s.store.ListDue(ctx, now, s.cfg.Tolerance)
	if err != nil {
		logger.Get().Error("scheduler: failed to list due schedules", zap.Error(err))
		return
	}

	for _, sch := range due {
		s.process(ctx, sch, now)
	}
}

func (s *Scheduler) process(ctx context.Context, sch *models.Schedule, now time.Time) {
	if sch.NextRun == nil {
		logger.Get().Warn("scheduler: schedule has no next_run, skipping", zap.String("schedule_id", sch.ID.String()))
		return
	}
	expectedNextRun := *sch.NextRun

	// Re-verify against the in-memory clock that the schedule is still
	// within its tolerance window. ListDue reflects the state of the
	// store at the start of the sweep; by the time this row is reached
	// a prior process() in the same sweep (or GC pause, or slow query)
	// may have pushed "now" past it again, or another instance may have
	// already advanced it underneath us, so this is a cheap second
	// filter before attempting the claim.
	if now.Before(expectedNextRun.Add(-s.cfg.Tolerance)) {
		logger.Get().Debug("scheduler: schedule no longer within tolerance, skipping",
			zap.String("schedule_id", sch.ID.String()))
		return
	}

	metrics.SchedulerLag.Observe(now.Sub(expectedNextRun).Seconds())

	nextNextRun, err := NextRunTime(sch.CronExpression, now, sch.Timezone)
	if err != nil {
		logger.Get().Error("scheduler: failed to compute next run",
			zap.String("schedule_id", sch.ID.String()), zap.Error(err))
		_ = s.store.Disable(ctx, sch.ID, err.Error())
		return
	}

	claimed, err := s.store.ClaimAndAdvance(ctx, sch.ID, expectedNextRun, now, nextNextRun)
	if err != nil {
		logger.Get().Error("scheduler: claim failed", zap.String("schedule_id", sch.ID.String()), zap.Error(err))
		return
	}
	if !claimed {
		// Another scheduler instance already advanced next_run for
		// this firing; this instance backs off without submitting.
		logger.Get().Debug("scheduler: lost claim race", zap.String("schedule_id", sch.ID.String()))
		return
	}

	job := &models.Job{
		AgentName:  sch.AgentName,
		OwnerID:    sch.OwnerID,
		ScheduleID: &sch.ID,
		Payload:    sch.Payload,
		Options:    sch.Options,
		Priority:   models.JobPriority(sch.Options.Priority),
		Status:     models.JobStatusPending,
		RunAt:      now,
	}

	if err := s.pipeline.Submit(ctx, job); err != nil {
		logger.Get().Error("scheduler: submit failed for claimed schedule",
			zap.String("schedule_id", sch.ID.String()), zap.Error(err))
		return
	}

	metrics.JobsDispatched.Inc()
	logger.Get().Info("scheduler: dispatched scheduled job",
		zap.String("schedule_id", sch.ID.String()),
		zap.String("job_id", job.ID.String()),
		zap.Time("next_run", nextNextRun),
	)
}

// RunNow submits a job for the given schedule immediately, bypassing
// the cron timetable entirely. It is a one-off shortcut: unlike the
// sweep's process(), it never touches next_run or last_run, and it
// does not go through ClaimAndAdvance — a manual run isn't a firing
// other scheduler instances could also be racing to claim.
func (s *Scheduler) RunNow(ctx context.Context, scheduleID uuid.UUID) (uuid.UUID, error) {
	sch, err := s.store.GetByID(ctx, scheduleID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("cronschedule: run now: %w", err)
	}

	job := &models.Job{
		AgentName:  sch.AgentName,
		OwnerID:    sch.OwnerID,
		ScheduleID: &sch.ID,
		Payload:    sch.Payload,
		Options:    sch.Options,
		Priority:   models.JobPriority(sch.Options.Priority),
		Status:     models.JobStatusPending,
		RunAt:      time.Now().UTC(),
	}

	if err := s.pipeline.Submit(ctx, job); err != nil {
		return uuid.Nil, fmt.Errorf("cronschedule: run now: submit: %w", err)
	}

	logger.Get().Info("scheduler: ran schedule on demand",
		zap.String("schedule_id", sch.ID.String()),
		zap.String("job_id", job.ID.String()),
	)
	return job.ID, nil
}
