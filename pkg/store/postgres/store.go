// Package postgres adapts the platform's Job/Schedule domain onto
// GORM + Postgres, generalized from the teacher's shell-job store of
// the same shape.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"skeenode/pkg/models"
	"skeenode/pkg/store"
)

type PostgresStore struct {
	db *gorm.DB
}

// New opens a GORM connection and auto-migrates the Job/Schedule schema.
func New(connString string) (*PostgresStore, error) {
	cfg := &gorm.Config{
		Logger:      gormlogger.Default.LogMode(gormlogger.Warn),
		PrepareStmt: true,
	}

	db, err := gorm.Open(postgres.Open(connString), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&models.Job{}, &models.Schedule{}); err != nil {
		return nil, fmt.Errorf("schema migration failed: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// --- store.JobStore ---

func (s *PostgresStore) CreateJob(ctx context.Context, job *models.Job) error {
	if result := s.db.WithContext(ctx).Create(job); result.Error != nil {
		return fmt.Errorf("failed to create job: %w", result.Error)
	}
	return nil
}

func (s *PostgresStore) GetJob(ctx context.Context, id uuid.UUID, ownerID string) (*models.Job, error) {
	var job models.Job
	q := s.db.WithContext(ctx).Where("id = ?", id)
	if ownerID != "" {
		q = q.Where("owner_id = ?", ownerID)
	}
	result := q.First(&job)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, store.ErrNotFound
		}
		return nil, result.Error
	}
	return &job, nil
}

func (s *PostgresStore) ListJobs(ctx context.Context, ownerID string, limit, offset int) ([]models.Job, error) {
	var jobs []models.Job
	q := s.db.WithContext(ctx).Order("created_at desc").Limit(limit).Offset(offset)
	if ownerID != "" {
		q = q.Where("owner_id = ?", ownerID)
	}
	if result := q.Find(&jobs); result.Error != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", result.Error)
	}
	return jobs, nil
}

func (s *PostgresStore) DeleteJob(ctx context.Context, id uuid.UUID, ownerID string) error {
	q := s.db.WithContext(ctx).Where("id = ?", id)
	if ownerID != "" {
		q = q.Where("owner_id = ?", ownerID)
	}
	result := q.Delete(&models.Job{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// SetLogURI records where a job's archived output can be retrieved.
func (s *PostgresStore) SetLogURI(ctx context.Context, id uuid.UUID, uri string) error {
	result := s.db.WithContext(ctx).
		Model(&models.Job{}).
		Where("id = ?", id).
		Update("log_uri", uri)
	if result.Error != nil {
		return fmt.Errorf("failed to set log uri: %w", result.Error)
	}
	return nil
}

// MarkOrphansAsFailed fails jobs still "running" but claimed by a node
// absent from activeNodeIDs.
func (s *PostgresStore) MarkOrphansAsFailed(ctx context.Context, activeNodeIDs []string) (int64, error) {
	query := s.db.WithContext(ctx).
		Model(&models.Job{}).
		Where("status = ?", models.JobStatusRunning)

	if len(activeNodeIDs) > 0 {
		query = query.Where("claimed_by NOT IN ?", activeNodeIDs)
	}

	now := time.Now()
	result := query.Updates(map[string]interface{}{
		"status":     models.JobStatusFailed,
		"error":      "orphaned: claiming node is no longer active",
		"error_kind": models.ErrorKindCrash,
		"failed_at":  now,
	})
	return result.RowsAffected, result.Error
}

func (s *PostgresStore) ListRecentFailures(ctx context.Context, since time.Time, limit int) ([]models.Job, error) {
	var jobs []models.Job
	result := s.db.WithContext(ctx).
		Where("status = ?", models.JobStatusFailed).
		Where("failed_at >= ?", since).
		Order("failed_at desc").
		Limit(limit).
		Find(&jobs)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list recent failures: %w", result.Error)
	}
	return jobs, nil
}

// --- pipeline.Store ---

func (s *PostgresStore) MarkRunning(ctx context.Context, id uuid.UUID, nodeID string, startedAt time.Time) error {
	result := s.db.WithContext(ctx).
		Model(&models.Job{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     models.JobStatusRunning,
			"claimed_by": nodeID,
			"started_at": startedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to mark job running: %w", result.Error)
	}
	return nil
}

func (s *PostgresStore) MarkCompleted(ctx context.Context, id uuid.UUID, result models.JSONMap) error {
	now := time.Now()
	r := s.db.WithContext(ctx).
		Model(&models.Job{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":       models.JobStatusCompleted,
			"result":       result,
			"completed_at": now,
		})
	if r.Error != nil {
		return fmt.Errorf("failed to mark job completed: %w", r.Error)
	}
	return nil
}

func (s *PostgresStore) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string, kind models.ErrorKind) error {
	now := time.Now()
	result := s.db.WithContext(ctx).
		Model(&models.Job{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     models.JobStatusFailed,
			"error":      errMsg,
			"error_kind": kind,
			"failed_at":  now,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to mark job failed: %w", result.Error)
	}
	return nil
}

// MarkRetry bumps retry bookkeeping without touching status: the job
// stays "running" through the backoff window.
func (s *PostgresStore) MarkRetry(ctx context.Context, id uuid.UUID, retryCount int, runAt time.Time) error {
	result := s.db.WithContext(ctx).
		Model(&models.Job{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"retry_count": retryCount,
			"run_at":      runAt,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to mark job retry: %w", result.Error)
	}
	return nil
}

// --- cronschedule.Store ---

func (s *PostgresStore) ListDue(ctx context.Context, now time.Time, tolerance time.Duration) ([]*models.Schedule, error) {
	var schedules []models.Schedule
	window := now.Add(tolerance)
	result := s.db.WithContext(ctx).
		Where("status = ?", models.ScheduleEnabled).
		Where("next_run IS NOT NULL").
		Where("next_run <= ?", window).
		Order("next_run asc").
		Find(&schedules)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list due schedules: %w", result.Error)
	}

	out := make([]*models.Schedule, len(schedules))
	for i := range schedules {
		out[i] = &schedules[i]
	}
	return out, nil
}

// ClaimAndAdvance is the atomic claim-before-submit update: it only
// takes effect if next_run still matches expectedNextRun, so exactly
// one competing scheduler instance wins a given firing.
func (s *PostgresStore) ClaimAndAdvance(ctx context.Context, id uuid.UUID, expectedNextRun, executedAt, nextNextRun time.Time) (bool, error) {
	result := s.db.WithContext(ctx).
		Model(&models.Schedule{}).
		Where("id = ? AND next_run = ?", id, expectedNextRun).
		Updates(map[string]interface{}{
			"last_run":         executedAt,
			"next_run":         nextNextRun,
			"total_executions": gorm.Expr("total_executions + 1"),
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to claim schedule: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (s *PostgresStore) Disable(ctx context.Context, id uuid.UUID, reason string) error {
	result := s.db.WithContext(ctx).
		Model(&models.Schedule{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":      models.ScheduleError,
			"next_run":    nil,
			"description": gorm.Expr("description || ?", " (disabled: "+reason+")"),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to disable schedule: %w", result.Error)
	}
	return nil
}

// --- store.ScheduleStore ---

func (s *PostgresStore) CreateSchedule(ctx context.Context, sch *models.Schedule) error {
	if result := s.db.WithContext(ctx).Create(sch); result.Error != nil {
		return fmt.Errorf("failed to create schedule: %w", result.Error)
	}
	return nil
}

func (s *PostgresStore) GetSchedule(ctx context.Context, id uuid.UUID, ownerID string) (*models.Schedule, error) {
	var sch models.Schedule
	q := s.db.WithContext(ctx).Where("id = ?", id)
	if ownerID != "" {
		q = q.Where("owner_id = ?", ownerID)
	}
	result := q.First(&sch)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, store.ErrNotFound
		}
		return nil, result.Error
	}
	return &sch, nil
}

// GetByID loads a schedule by id with no ownership filter, for
// cronschedule.Scheduler's RunNow — the caller is expected to have
// already checked ownership against the returned row if it needs to.
func (s *PostgresStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Schedule, error) {
	return s.GetSchedule(ctx, id, "")
}

func (s *PostgresStore) ListSchedules(ctx context.Context, ownerID string, limit, offset int) ([]models.Schedule, error) {
	var schedules []models.Schedule
	q := s.db.WithContext(ctx).Order("created_at desc").Limit(limit).Offset(offset)
	if ownerID != "" {
		q = q.Where("owner_id = ?", ownerID)
	}
	if result := q.Find(&schedules); result.Error != nil {
		return nil, fmt.Errorf("failed to list schedules: %w", result.Error)
	}
	return schedules, nil
}

// UpdateSchedule saves the mutable fields of sch, scoped by ownerID
// when non-empty. It updates by explicit column list via .Updates
// rather than .Save, because .Save ignores any .Where clause and would
// write by primary key regardless of ownership.
func (s *PostgresStore) UpdateSchedule(ctx context.Context, sch *models.Schedule, ownerID string) error {
	q := s.db.WithContext(ctx).Model(&models.Schedule{}).Where("id = ?", sch.ID)
	if ownerID != "" {
		q = q.Where("owner_id = ?", ownerID)
	}
	result := q.Updates(map[string]interface{}{
		"title":           sch.Title,
		"description":     sch.Description,
		"agent_name":      sch.AgentName,
		"cron_expression": sch.CronExpression,
		"timezone":        sch.Timezone,
		"status":          sch.Status,
		"payload":         sch.Payload,
		"options":         sch.Options,
		"next_run":        sch.NextRun,
	})
	if result.Error != nil {
		return fmt.Errorf("failed to update schedule: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// DeleteSchedule removes a schedule and cascades to every job that
// references it, in a single transaction.
func (s *PostgresStore) DeleteSchedule(ctx context.Context, id uuid.UUID, ownerID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Where("id = ?", id)
		if ownerID != "" {
			q = q.Where("owner_id = ?", ownerID)
		}
		result := q.Delete(&models.Schedule{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return store.ErrNotFound
		}
		if err := tx.Where("schedule_id = ?", id).Delete(&models.Job{}).Error; err != nil {
			return fmt.Errorf("failed to cascade delete jobs: %w", err)
		}
		return nil
	})
}
