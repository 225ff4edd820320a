package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// JobStatus represents the lifecycle state of a submitted job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// JobPriority controls ordering within the pipeline's ready queue.
// Higher values are served first; FIFO applies within a priority band.
type JobPriority int

const (
	PriorityLow      JobPriority = 0
	PriorityNormal   JobPriority = 5
	PriorityHigh     JobPriority = 8
	PriorityCritical JobPriority = 10
)

// JSONMap is a generic JSONB payload column.
type JSONMap map[string]interface{}

func (m *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*m = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(bytes, m)
}

func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// JobOptions carries per-job execution and model tuning, mirroring the
// original platform's AgentExecutionConfig/AgentModelConfig defaults.
type JobOptions struct {
	TimeoutSeconds  int     `json:"timeout_seconds"`
	MaxRetries      int     `json:"max_retries"`
	RetryDelayBase  float64 `json:"retry_delay_base"`
	Priority        int     `json:"priority"`
	Model           string  `json:"model,omitempty"`
	Temperature     float64 `json:"temperature,omitempty"`
	MaxTokens       int     `json:"max_tokens,omitempty"`
	SystemInstruction string `json:"system_instruction,omitempty"`
}

func (o *JobOptions) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(bytes, o)
}

func (o JobOptions) Value() (driver.Value, error) {
	return json.Marshal(o)
}

// DefaultJobOptions returns the platform-wide defaults for job execution.
func DefaultJobOptions() JobOptions {
	return JobOptions{
		TimeoutSeconds: 300,
		MaxRetries:     3,
		RetryDelayBase: 2.0,
		Priority:       int(PriorityNormal),
		Temperature:    0.7,
	}
}

// Job is a durable record of submitted work: an agent name plus a JSON
// payload to execute, tracked through pending/running/completed/failed.
type Job struct {
	ID          uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	AgentName   string     `json:"agent_name" gorm:"not null;index"`
	OwnerID     string     `json:"owner_id" gorm:"index"`
	ScheduleID  *uuid.UUID `json:"schedule_id,omitempty" gorm:"type:uuid;index"`
	Payload     JSONMap    `json:"payload" gorm:"type:jsonb"`
	Options     JobOptions `json:"options" gorm:"type:jsonb"`
	Status      JobStatus  `json:"status" gorm:"type:varchar(20);default:'pending';index"`
	Priority    JobPriority `json:"priority" gorm:"default:5"`
	RetryCount  int        `json:"retry_count" gorm:"default:0"`
	RunAt       time.Time  `json:"run_at" gorm:"index"` // submission-time or scheduled delay target
	Result      JSONMap    `json:"result,omitempty" gorm:"type:jsonb"`
	Error       string     `json:"error,omitempty"`
	ErrorKind   ErrorKind  `json:"error_kind,omitempty" gorm:"type:varchar(32)"`
	LogURI      string     `json:"log_uri,omitempty"`
	ClaimedBy   string     `json:"claimed_by,omitempty" gorm:"index"` // node ID of the pipeline instance running this attempt
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	FailedAt    *time.Time `json:"failed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (j *Job) BeforeCreate(tx *gorm.DB) (err error) {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	if j.RunAt.IsZero() {
		j.RunAt = time.Now()
	}
	return nil
}

// Terminal reports whether the job has reached a terminal status.
func (j *Job) Terminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// ScheduleStatus is the lifecycle state of a cron-driven schedule.
type ScheduleStatus string

const (
	ScheduleEnabled  ScheduleStatus = "enabled"
	ScheduleDisabled ScheduleStatus = "disabled"
	SchedulePaused   ScheduleStatus = "paused"
	ScheduleError    ScheduleStatus = "error"
)

// Schedule is a cron-driven recurring job definition. next_run is the
// anchor used for the atomic claim-before-submit update: a scheduler
// instance may only fire this schedule if its read of next_run still
// matches the row at update time.
type Schedule struct {
	ID              uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	Title           string         `json:"title"`
	Description     string         `json:"description,omitempty"`
	OwnerID         string         `json:"owner_id" gorm:"index"`
	AgentName       string         `json:"agent_name" gorm:"not null"`
	CronExpression  string         `json:"cron_expression" gorm:"not null"`
	Timezone        string         `json:"timezone,omitempty"`
	Status          ScheduleStatus `json:"status" gorm:"type:varchar(20);default:'enabled';index"`
	Payload         JSONMap        `json:"payload" gorm:"type:jsonb"`
	Options         JobOptions     `json:"options" gorm:"type:jsonb"`
	NextRun         *time.Time     `json:"next_run" gorm:"index"`
	LastRun         *time.Time     `json:"last_run,omitempty"`
	TotalExecutions int64          `json:"total_executions" gorm:"default:0"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

func (s *Schedule) BeforeCreate(tx *gorm.DB) (err error) {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// ErrorKind classifies job failures for retry-disposition purposes.
type ErrorKind string

const (
	ErrorKindNone              ErrorKind = ""
	ErrorKindAuthFailure       ErrorKind = "auth_failure"
	ErrorKindRateLimited       ErrorKind = "rate_limited"
	ErrorKindTimeout           ErrorKind = "timeout"
	ErrorKindUpstreamError     ErrorKind = "upstream_error"
	ErrorKindInvalidRequest    ErrorKind = "invalid_request"
	ErrorKindValidationFailure ErrorKind = "validation_failure"
	ErrorKindCrash             ErrorKind = "crash"
)

// Retriable reports whether a job that failed with this error kind is
// eligible for another attempt, per the platform's disposition table.
func (k ErrorKind) Retriable() bool {
	switch k {
	case ErrorKindRateLimited, ErrorKindTimeout, ErrorKindUpstreamError:
		return true
	default:
		return false
	}
}
