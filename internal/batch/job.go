// Package batch implements the business-value driven batch scheduling core:
// the job model, the value analyzer that orders the queue, the resource
// manager that gates admission, the priority scheduler with its worker pool,
// and the manager facade that ties them together.
package batch

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"
)

// JobType categorizes a job by business domain.
type JobType string

const (
	JobTypeCustomerData      JobType = "customer_data"
	JobTypeFinancialReport   JobType = "financial_report"
	JobTypeOCRProcessing     JobType = "ocr_processing"
	JobTypeDataMigration     JobType = "data_migration"
	JobTypeSystemMaintenance JobType = "system_maintenance"
)

// Valid reports whether t is a known job type.
func (t JobType) Valid() bool {
	switch t {
	case JobTypeCustomerData, JobTypeFinancialReport, JobTypeOCRProcessing,
		JobTypeDataMigration, JobTypeSystemMaintenance:
		return true
	}
	return false
}

// JobPriority is an advisory priority tier. It feeds the urgency multiplier
// of the value score; it is never used as a sort key on its own.
type JobPriority int

const (
	PriorityCritical JobPriority = 1
	PriorityHigh     JobPriority = 2
	PriorityNormal   JobPriority = 3
	PriorityLow      JobPriority = 4
)

// Valid reports whether p is a known priority tier.
func (p JobPriority) Valid() bool {
	switch p {
	case PriorityCritical, PriorityHigh, PriorityNormal, PriorityLow:
		return true
	}
	return false
}

func (p JobPriority) String() string {
	switch p {
	case PriorityCritical:
		return "critical"
	case PriorityHigh:
		return "high"
	case PriorityNormal:
		return "normal"
	case PriorityLow:
		return "low"
	default:
		return fmt.Sprintf("priority(%d)", int(p))
	}
}

// ParsePriority converts a priority name to its JobPriority value.
func ParsePriority(s string) (JobPriority, error) {
	switch s {
	case "critical":
		return PriorityCritical, nil
	case "high":
		return PriorityHigh, nil
	case "normal":
		return PriorityNormal, nil
	case "low":
		return PriorityLow, nil
	default:
		return 0, fmt.Errorf("unknown priority %q", s)
	}
}

// JobStatus is the lifecycle state of a job.
//
// Pending -> Running -> {Completed | Failed | Cancelled}, with a transient
// Retrying state that loops back to Pending once the backoff delay elapses.
type JobStatus string

const (
	StatusPending   JobStatus = "pending"
	StatusRunning   JobStatus = "running"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
	StatusCancelled JobStatus = "cancelled"
	StatusRetrying  JobStatus = "retrying"
)

// Terminal reports whether the status is an end state.
func (s JobStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	case StatusPending, StatusRunning, StatusRetrying:
		return false
	}
	return false
}

// TaskFunc is the unit of work a job carries. The scheduler never inspects
// the arguments; it only invokes the function and records the outcome.
type TaskFunc func(ctx context.Context, args ...any) (any, error)

// BusinessMetrics are the caller-declared value inputs for a job.
// BusinessValueScore is derived; the analyzer overwrites it on every
// (re-)entry into the queue.
type BusinessMetrics struct {
	RevenueImpact      float64    `json:"revenue_impact"`
	CustomerCount      int        `json:"customer_count"`
	ProcessingCost     float64    `json:"processing_cost"`
	SLADeadline        *time.Time `json:"sla_deadline,omitempty"`
	BusinessValueScore float64    `json:"business_value_score"`
}

// ROIPotential is revenue impact over processing cost. A free job has
// infinite potential.
func (m BusinessMetrics) ROIPotential() float64 {
	if m.ProcessingCost <= 0 {
		return math.Inf(1)
	}
	return m.RevenueImpact / m.ProcessingCost
}

// Submission validation errors.
var (
	ErrNilTask         = errors.New("job has no task function")
	ErrUnknownJobType  = errors.New("unknown job type")
	ErrUnknownPriority = errors.New("unknown job priority")
	ErrDuplicateJobID  = errors.New("job id already submitted")
)

// Job is the unit of schedulable work.
//
// The exported fields are set before submission and never change afterwards.
// Lifecycle state (status, retry count, timestamps, result, execution log)
// is mutated by the scheduler from worker goroutines and must be accessed
// through the accessor methods, which serialize on an internal mutex.
type Job struct {
	ID       string
	Type     JobType
	Priority JobPriority

	Task TaskFunc
	Args []any

	Metrics     BusinessMetrics
	Description string
	CustomerID  string

	// Resource requirements, immutable after submission.
	CPURequirement    float64
	MemoryRequiredMB  int
	EstimatedDuration time.Duration

	MaxRetries int
	RetryDelay time.Duration

	mu           sync.Mutex
	status       JobStatus
	retryCount   int
	createdAt    time.Time
	startedAt    time.Time
	completedAt  time.Time
	result       any
	errorMessage string
	executionLog []string
}

// NewJob builds a job in the Pending state with the defaults the platform
// assumes: one core, 512 MB, three retries a minute apart, five estimated
// minutes of work. The ID is derived from the job type and submission time
// when the caller does not supply one.
func NewJob(jobType JobType, priority JobPriority, task TaskFunc, args ...any) *Job {
	now := time.Now()
	return &Job{
		ID:                fmt.Sprintf("%s_%d", jobType, now.UnixNano()),
		Type:              jobType,
		Priority:          priority,
		Task:              task,
		Args:              args,
		CPURequirement:    1.0,
		MemoryRequiredMB:  512,
		EstimatedDuration: 5 * time.Minute,
		MaxRetries:        3,
		RetryDelay:        time.Minute,
		status:            StatusPending,
		createdAt:         now,
		executionLog:      []string{},
	}
}

// Status returns the current lifecycle state.
func (j *Job) Status() JobStatus {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

// transition atomically moves the job from one state to another. It returns
// false without side effects when the job is not in the expected state, which
// is how cancel and dispatch races are decided.
func (j *Job) transition(from, to JobStatus) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status != from {
		return false
	}
	j.status = to
	return true
}

// RetryCount returns how many retries the job has consumed so far.
func (j *Job) RetryCount() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.retryCount
}

// incrementRetry consumes one retry. It never pushes retryCount past
// MaxRetries; callers must check remaining retries first.
func (j *Job) incrementRetry() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.retryCount < j.MaxRetries {
		j.retryCount++
	}
	return j.retryCount
}

func (j *Job) retriesRemain() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.retryCount < j.MaxRetries
}

// CreatedAt returns the submission timestamp.
func (j *Job) CreatedAt() time.Time {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.createdAt
}

// StartedAt returns the first dispatch timestamp, zero if never dispatched.
func (j *Job) StartedAt() time.Time {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.startedAt
}

// CompletedAt returns the terminal timestamp, zero while the job is live.
func (j *Job) CompletedAt() time.Time {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.completedAt
}

// markStarted stamps the start time exactly once.
func (j *Job) markStarted(t time.Time) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.startedAt.IsZero() {
		j.startedAt = t
	}
}

// markCompleted stamps the completion time exactly once.
func (j *Job) markCompleted(t time.Time) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.completedAt.IsZero() {
		j.completedAt = t
	}
}

// Result returns the value produced by the last successful attempt.
func (j *Job) Result() any {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.result
}

func (j *Job) setResult(v any) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.result = v
}

// ErrorMessage returns the error recorded by the most recent failed attempt.
func (j *Job) ErrorMessage() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.errorMessage
}

func (j *Job) setErrorMessage(msg string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errorMessage = msg
}

// ExecutionLog returns a copy of the append-only per-attempt log.
func (j *Job) ExecutionLog() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]string, len(j.executionLog))
	copy(out, j.executionLog)
	return out
}

func (j *Job) appendLog(entry string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.executionLog = append(j.executionLog, entry)
}

// Score returns the business value score from the last scoring pass.
func (j *Job) Score() float64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.Metrics.BusinessValueScore
}

func (j *Job) setScore(score float64) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Metrics.BusinessValueScore = score
}

// urgent reports whether the job gets the urgency multiplier: Critical or
// High priority, or less than one hour left to its SLA deadline.
func (j *Job) urgent(now time.Time) bool {
	if j.Priority == PriorityCritical || j.Priority == PriorityHigh {
		return true
	}
	if j.Metrics.SLADeadline != nil {
		return j.Metrics.SLADeadline.Sub(now) < time.Hour
	}
	return false
}

// validate rejects malformed jobs synchronously at submission.
func (j *Job) validate() error {
	if j.Task == nil {
		return ErrNilTask
	}
	if !j.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownJobType, j.Type)
	}
	if !j.Priority.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownPriority, int(j.Priority))
	}
	return nil
}
