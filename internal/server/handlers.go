package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"batchplane/internal/batch"
	"batchplane/pkg/api"
)

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req api.SubmitJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body")
		return
	}

	task, ok := s.registry.Get(req.Task)
	if !ok {
		writeError(w, http.StatusBadRequest, "UNKNOWN_TASK", "no task registered under "+req.Task)
		return
	}

	priority, err := batch.ParsePriority(req.Priority)
	if err != nil {
		writeError(w, http.StatusBadRequest, "BAD_PRIORITY", err.Error())
		return
	}

	jobID, err := s.manager.Submit(batch.SubmitRequest{
		JobID:             req.JobID,
		Type:              batch.JobType(req.Type),
		Priority:          priority,
		Task:              task,
		Args:              req.Args,
		Description:       req.Description,
		CustomerID:        req.CustomerID,
		RevenueImpact:     req.RevenueImpact,
		CustomerCount:     req.CustomerCount,
		ProcessingCost:    req.ProcessingCost,
		SLADeadline:       req.SLADeadline,
		CPURequirement:    req.CPURequirement,
		MemoryRequiredMB:  req.MemoryRequiredMB,
		EstimatedDuration: time.Duration(req.EstimatedDurationS) * time.Second,
		MaxRetries:        req.MaxRetries,
		RetryDelay:        time.Duration(req.RetryDelayS) * time.Second,
	})
	if err != nil {
		switch {
		case errors.Is(err, batch.ErrUnknownJobType):
			writeError(w, http.StatusBadRequest, "BAD_TYPE", err.Error())
		case errors.Is(err, batch.ErrDuplicateJobID):
			writeError(w, http.StatusConflict, "DUPLICATE_ID", err.Error())
		default:
			writeError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		}
		return
	}

	writeJSON(w, http.StatusCreated, api.SubmitJobResponse{JobID: jobID})
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	job, ok := s.manager.Job(jobID)
	if !ok {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "unknown job id")
		return
	}

	resp := api.JobStatusResponse{
		JobID:        job.ID,
		Type:         string(job.Type),
		Priority:     job.Priority.String(),
		Status:       string(job.Status()),
		Score:        job.Score(),
		RetryCount:   job.RetryCount(),
		MaxRetries:   job.MaxRetries,
		CreatedAt:    job.CreatedAt(),
		ErrorMessage: job.ErrorMessage(),
		ExecutionLog: job.ExecutionLog(),
	}
	if t := job.StartedAt(); !t.IsZero() {
		resp.StartedAt = &t
	}
	if t := job.CompletedAt(); !t.IsZero() {
		resp.CompletedAt = &t
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	if _, ok := s.manager.Job(jobID); !ok {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "unknown job id")
		return
	}

	cancelled := s.manager.Cancel(jobID)
	status := http.StatusOK
	if !cancelled {
		// Already running or finished; cancellation is advisory.
		status = http.StatusConflict
	}
	writeJSON(w, status, api.CancelJobResponse{JobID: jobID, Cancelled: cancelled})
}

func (s *Server) handleSchedulerStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.manager.SchedulerStats())
}

func (s *Server) handleResourceStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.manager.ResourceStats(r.Context()))
}

func (s *Server) handleROI(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.manager.ROIAnalysis())
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.manager.Dashboard(r.Context()))
}

func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"tasks": s.registry.Names()})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
