package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"skeenode/pkg/models"
	"skeenode/pkg/store"
)

// --- Request/Response DTOs ---

// SubmitJobRequest is the payload for submitting a job for execution.
type SubmitJobRequest struct {
	AgentName string                 `json:"agent_name" binding:"required"`
	OwnerID   string                 `json:"owner_id" binding:"required"`
	Payload   map[string]interface{} `json:"payload"`
	Options   *models.JobOptions     `json:"options"`
	RunAt     *time.Time             `json:"run_at"` // nil means run now
}

// JobResponse is the API representation of a job.
type JobResponse struct {
	ID          uuid.UUID         `json:"id"`
	AgentName   string            `json:"agent_name"`
	OwnerID     string            `json:"owner_id"`
	ScheduleID  *uuid.UUID        `json:"schedule_id,omitempty"`
	Status      models.JobStatus  `json:"status"`
	Priority    models.JobPriority `json:"priority"`
	RetryCount  int               `json:"retry_count"`
	RunAt       time.Time         `json:"run_at"`
	Result      models.JSONMap    `json:"result,omitempty"`
	Error       string            `json:"error,omitempty"`
	ErrorKind   models.ErrorKind  `json:"error_kind,omitempty"`
	StartedAt   *time.Time        `json:"started_at,omitempty"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
	FailedAt    *time.Time        `json:"failed_at,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// --- Job Handlers ---

// submitJob handles POST /api/v1/jobs
func (s *Server) submitJob(c *gin.Context) {
	var req SubmitJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	opts := models.DefaultJobOptions()
	if req.Options != nil {
		opts = *req.Options
	}

	job := &models.Job{
		ID:        uuid.New(),
		AgentName: req.AgentName,
		OwnerID:   req.OwnerID,
		Payload:   models.JSONMap(req.Payload),
		Options:   opts,
		Priority:  models.JobPriority(opts.Priority),
		Status:    models.JobStatusPending,
	}
	if req.RunAt != nil {
		job.RunAt = *req.RunAt
	} else {
		job.RunAt = time.Now()
	}

	if err := s.jobStore.CreateJob(c.Request.Context(), job); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create job: " + err.Error()})
		return
	}

	if err := s.pipeline.Submit(c.Request.Context(), job); err != nil {
		// Submit already marked the job failed in the store when the
		// agent is unknown; still return 201 with the failed job so the
		// caller sees exactly what happened.
		c.JSON(http.StatusCreated, jobToResponse(job))
		return
	}

	c.JSON(http.StatusCreated, jobToResponse(job))
}

// listJobs handles GET /api/v1/jobs
func (s *Server) listJobs(c *gin.Context) {
	ownerID := c.Query("owner_id")
	limit := 50
	offset := 0

	jobs, err := s.jobStore.ListJobs(c.Request.Context(), ownerID, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list jobs: " + err.Error()})
		return
	}

	response := make([]JobResponse, len(jobs))
	for i, job := range jobs {
		response[i] = jobToResponse(&job)
	}

	c.JSON(http.StatusOK, gin.H{
		"jobs":  response,
		"count": len(response),
	})
}

// getJob handles GET /api/v1/jobs/:id
func (s *Server) getJob(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job ID"})
		return
	}

	job, err := s.jobStore.GetJob(c.Request.Context(), id, ownerIDFromRequest(c))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, jobToResponse(job))
}

// deleteJob handles DELETE /api/v1/jobs/:id
func (s *Server) deleteJob(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job ID"})
		return
	}

	if err := s.jobStore.DeleteJob(c.Request.Context(), id, ownerIDFromRequest(c)); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "job deleted", "id": id})
}

func jobToResponse(job *models.Job) JobResponse {
	return JobResponse{
		ID:         job.ID,
		AgentName:  job.AgentName,
		OwnerID:    job.OwnerID,
		ScheduleID: job.ScheduleID,
		Status:     job.Status,
		Priority:   job.Priority,
		RetryCount: job.RetryCount,
		RunAt:      job.RunAt,
		Result:      job.Result,
		Error:       job.Error,
		ErrorKind:   job.ErrorKind,
		StartedAt:   job.StartedAt,
		CompletedAt: job.CompletedAt,
		FailedAt:    job.FailedAt,
		CreatedAt:   job.CreatedAt,
		UpdatedAt:   job.UpdatedAt,
	}
}
