// Package api contains shared JSON request/response structs.
// This package is shared between the CLI and the batchd API server.
package api

import "time"

// SubmitJobRequest is the request body for submitting a batch job.
// Task names a function registered in the daemon's task registry.
type SubmitJobRequest struct {
	JobID       string `json:"job_id,omitempty"`
	Task        string `json:"task"`
	Args        []any  `json:"args,omitempty"`
	Type        string `json:"type"`
	Priority    string `json:"priority"`
	Description string `json:"description,omitempty"`
	CustomerID  string `json:"customer_id,omitempty"`

	RevenueImpact  float64    `json:"revenue_impact,omitempty"`
	CustomerCount  int        `json:"customer_count,omitempty"`
	ProcessingCost float64    `json:"processing_cost,omitempty"`
	SLADeadline    *time.Time `json:"sla_deadline,omitempty"`

	CPURequirement     float64 `json:"cpu_requirement,omitempty"`
	MemoryRequiredMB   int     `json:"memory_required_mb,omitempty"`
	EstimatedDurationS int     `json:"estimated_duration_seconds,omitempty"`
	MaxRetries         int     `json:"max_retries,omitempty"`
	RetryDelayS        int     `json:"retry_delay_seconds,omitempty"`
}

// SubmitJobResponse is the response body after submitting a job.
type SubmitJobResponse struct {
	JobID string `json:"job_id"`
}

// JobStatusResponse is the response body for job status queries.
type JobStatusResponse struct {
	JobID        string     `json:"job_id"`
	Type         string     `json:"type"`
	Priority     string     `json:"priority"`
	Status       string     `json:"status"`
	Score        float64    `json:"score"`
	RetryCount   int        `json:"retry_count"`
	MaxRetries   int        `json:"max_retries"`
	CreatedAt    time.Time  `json:"created_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	ExecutionLog []string   `json:"execution_log,omitempty"`
}

// CancelJobResponse is the response body after a cancel request.
type CancelJobResponse struct {
	JobID     string `json:"job_id"`
	Cancelled bool   `json:"cancelled"`
}

// ErrorResponse is the error body returned by the API.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}
