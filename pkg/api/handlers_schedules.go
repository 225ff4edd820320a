package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"skeenode/pkg/cronschedule"
	"skeenode/pkg/models"
	"skeenode/pkg/store"
)

// CreateScheduleRequest is the payload for creating a cron schedule.
type CreateScheduleRequest struct {
	Title          string                 `json:"title" binding:"required"`
	Description    string                 `json:"description"`
	OwnerID        string                 `json:"owner_id" binding:"required"`
	AgentName      string                 `json:"agent_name" binding:"required"`
	CronExpression string                 `json:"cron_expression" binding:"required"`
	Timezone       string                 `json:"timezone"`
	Payload        map[string]interface{} `json:"payload"`
	Options        *models.JobOptions     `json:"options"`
}

// UpdateScheduleRequest is the payload for partially updating a schedule.
type UpdateScheduleRequest struct {
	Title          *string                `json:"title"`
	Description    *string                `json:"description"`
	CronExpression *string                `json:"cron_expression"`
	Status         *models.ScheduleStatus `json:"status"`
	Payload        map[string]interface{} `json:"payload"`
}

// ScheduleResponse is the API representation of a schedule.
type ScheduleResponse struct {
	ID              uuid.UUID             `json:"id"`
	Title           string                `json:"title"`
	Description     string                `json:"description,omitempty"`
	OwnerID         string                `json:"owner_id"`
	AgentName       string                `json:"agent_name"`
	CronExpression  string                `json:"cron_expression"`
	CronDescription string                `json:"cron_description"`
	Timezone        string                `json:"timezone,omitempty"`
	Status          models.ScheduleStatus `json:"status"`
	NextRun         *time.Time            `json:"next_run,omitempty"`
	LastRun         *time.Time            `json:"last_run,omitempty"`
	TotalExecutions int64                 `json:"total_executions"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
}

// createSchedule handles POST /api/v1/schedules
func (s *Server) createSchedule(c *gin.Context) {
	var req CreateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := cronschedule.ValidateExpression(req.CronExpression); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	nextRun, err := cronschedule.NextRunTime(req.CronExpression, time.Now(), req.Timezone)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	opts := models.DefaultJobOptions()
	if req.Options != nil {
		opts = *req.Options
	}

	sch := &models.Schedule{
		ID:             uuid.New(),
		Title:          req.Title,
		Description:    req.Description,
		OwnerID:        req.OwnerID,
		AgentName:      req.AgentName,
		CronExpression: req.CronExpression,
		Timezone:       req.Timezone,
		Status:         models.ScheduleEnabled,
		Payload:        models.JSONMap(req.Payload),
		Options:        opts,
		NextRun:        &nextRun,
	}

	if err := s.scheduleStore.CreateSchedule(c.Request.Context(), sch); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create schedule: " + err.Error()})
		return
	}

	c.JSON(http.StatusCreated, scheduleToResponse(sch))
}

// listSchedules handles GET /api/v1/schedules
func (s *Server) listSchedules(c *gin.Context) {
	ownerID := c.Query("owner_id")

	schedules, err := s.scheduleStore.ListSchedules(c.Request.Context(), ownerID, 50, 0)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list schedules: " + err.Error()})
		return
	}

	response := make([]ScheduleResponse, len(schedules))
	for i, sch := range schedules {
		response[i] = scheduleToResponse(&sch)
	}

	c.JSON(http.StatusOK, gin.H{"schedules": response, "count": len(response)})
}

// getSchedule handles GET /api/v1/schedules/:id
func (s *Server) getSchedule(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid schedule ID"})
		return
	}

	sch, err := s.scheduleStore.GetSchedule(c.Request.Context(), id, ownerIDFromRequest(c))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "schedule not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, scheduleToResponse(sch))
}

// updateSchedule handles PATCH /api/v1/schedules/:id
func (s *Server) updateSchedule(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid schedule ID"})
		return
	}

	var req UpdateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ownerID := ownerIDFromRequest(c)
	sch, err := s.scheduleStore.GetSchedule(c.Request.Context(), id, ownerID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "schedule not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if req.Title != nil {
		sch.Title = *req.Title
	}
	if req.Description != nil {
		sch.Description = *req.Description
	}
	if req.Payload != nil {
		sch.Payload = models.JSONMap(req.Payload)
	}
	if req.Status != nil {
		sch.Status = *req.Status
	}
	if req.CronExpression != nil {
		if err := cronschedule.ValidateExpression(*req.CronExpression); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		nextRun, err := cronschedule.NextRunTime(*req.CronExpression, time.Now(), sch.Timezone)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		sch.CronExpression = *req.CronExpression
		sch.NextRun = &nextRun
	}

	if err := s.scheduleStore.UpdateSchedule(c.Request.Context(), sch, ownerID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update schedule: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, scheduleToResponse(sch))
}

// deleteSchedule handles DELETE /api/v1/schedules/:id
func (s *Server) deleteSchedule(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid schedule ID"})
		return
	}

	if err := s.scheduleStore.DeleteSchedule(c.Request.Context(), id, ownerIDFromRequest(c)); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "schedule not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "schedule deleted", "id": id})
}

// runScheduleNow handles POST /api/v1/schedules/:id/run — fires the
// schedule's job immediately without waiting for (or disturbing) its
// next cron firing.
func (s *Server) runScheduleNow(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid schedule ID"})
		return
	}

	if s.scheduler == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "run-now is not available on this server"})
		return
	}

	// Ownership check: a non-owner gets the same 404 as a missing
	// schedule, so cross-user access can't be distinguished from a
	// nonexistent row.
	ownerID := ownerIDFromRequest(c)
	if ownerID != "" {
		if _, err := s.scheduleStore.GetSchedule(c.Request.Context(), id, ownerID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "schedule not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}

	jobID, err := s.scheduler.RunNow(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "schedule not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to run schedule: " + err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"job_id": jobID, "schedule_id": id})
}

func scheduleToResponse(sch *models.Schedule) ScheduleResponse {
	return ScheduleResponse{
		ID:              sch.ID,
		Title:           sch.Title,
		Description:     sch.Description,
		OwnerID:         sch.OwnerID,
		AgentName:       sch.AgentName,
		CronExpression:  sch.CronExpression,
		CronDescription: cronschedule.Describe(sch.CronExpression),
		Timezone:        sch.Timezone,
		Status:          sch.Status,
		NextRun:         sch.NextRun,
		LastRun:         sch.LastRun,
		TotalExecutions: sch.TotalExecutions,
		CreatedAt:       sch.CreatedAt,
		UpdatedAt:       sch.UpdatedAt,
	}
}
