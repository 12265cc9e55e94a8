package batch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// System health bands reported by the dashboard.
const (
	HealthHealthy  = "healthy"
	HealthWarning  = "warning"
	HealthCritical = "critical"

	healthCriticalUsagePercent = 90.0
	healthWarningUsagePercent  = 80.0
	healthWarningQueueSize     = 50
)

// Alert is one triggered threshold check. Alerts are evaluated at call time
// and never persisted; repeated calls return repeated alerts.
type Alert struct {
	Type     string  `json:"type"`
	Severity string  `json:"severity"`
	Message  string  `json:"message"`
	Value    float64 `json:"value"`
}

// ActiveJobInfo is a dashboard row for a job currently executing.
type ActiveJobInfo struct {
	JobID           string  `json:"job_id"`
	Type            JobType `json:"type"`
	Priority        string  `json:"priority"`
	ProgressPercent float64 `json:"progress_percent"`
	CustomerID      string  `json:"customer_id,omitempty"`
	RevenueImpact   float64 `json:"revenue_impact"`
	RuntimeMinutes  float64 `json:"runtime_minutes"`
}

// Dashboard is the on-demand aggregate view over the scheduler, the resource
// manager and the finished-job history.
type Dashboard struct {
	Timestamp      time.Time       `json:"timestamp"`
	SchedulerStats SchedulerStats  `json:"scheduler_stats"`
	ResourceStats  ResourceStats   `json:"resource_stats"`
	ROIAnalysis    ROIReport       `json:"roi_analysis"`
	ActiveJobs     []ActiveJobInfo `json:"active_jobs"`
	SystemHealth   string          `json:"system_health"`
	Alerts         []Alert         `json:"alerts"`
}

// ManagerConfig tunes the facade. Zero values take the defaults.
type ManagerConfig struct {
	Workers          int
	MaxCPUPercent    float64
	MaxMemoryPercent float64
	AdmissionPolicy  AdmissionPolicy
	RetryPolicy      RetryPolicy

	MonitoringInterval time.Duration

	AlertQueueSize     int
	AlertFailureRate   float64
	AlertResourceUsage float64
}

func (c ManagerConfig) withDefaults() ManagerConfig {
	if c.MonitoringInterval <= 0 {
		c.MonitoringInterval = 30 * time.Second
	}
	if c.AlertQueueSize <= 0 {
		c.AlertQueueSize = 100
	}
	if c.AlertFailureRate <= 0 {
		c.AlertFailureRate = 0.1
	}
	if c.AlertResourceUsage <= 0 {
		c.AlertResourceUsage = 0.9
	}
	return c
}

// SubmitRequest is the simplified submission surface the facade exposes:
// business-metric fields directly, a task function, and optional overrides
// for resources and retry behavior.
type SubmitRequest struct {
	JobID       string
	Type        JobType
	Priority    JobPriority
	Task        TaskFunc
	Args        []any
	Description string
	CustomerID  string

	RevenueImpact  float64
	CustomerCount  int
	ProcessingCost float64
	SLADeadline    *time.Time

	CPURequirement    float64
	MemoryRequiredMB  int
	EstimatedDuration time.Duration
	MaxRetries        int
	RetryDelay        time.Duration
}

// defaultProcessingCost is assumed when the caller declares no cost.
const defaultProcessingCost = 10.0

// Manager is the facade over the scheduling core: it wires the analyzer, the
// resource manager and the scheduler together, runs the periodic monitoring
// loop, and serves the dashboard and alert views.
type Manager struct {
	cfg       ManagerConfig
	log       *slog.Logger
	resources *ResourceManager
	analyzer  *ValueAnalyzer
	scheduler *Scheduler

	monitorMu   sync.Mutex
	monitorStop chan struct{}
	monitorWG   sync.WaitGroup
}

// NewManager builds the component graph on top of the given resource probe.
func NewManager(cfg ManagerConfig, probe Probe, log *slog.Logger) *Manager {
	cfg = cfg.withDefaults()
	resources := NewResourceManager(cfg.MaxCPUPercent, cfg.MaxMemoryPercent, probe, log)
	analyzer := NewValueAnalyzer()
	scheduler := NewScheduler(SchedulerConfig{
		Workers:         cfg.Workers,
		AdmissionPolicy: cfg.AdmissionPolicy,
		RetryPolicy:     cfg.RetryPolicy,
	}, resources, analyzer, log)

	return &Manager{
		cfg:       cfg,
		log:       log,
		resources: resources,
		analyzer:  analyzer,
		scheduler: scheduler,
	}
}

// Scheduler exposes the underlying scheduler, mainly for metric callbacks.
func (m *Manager) Scheduler() *Scheduler { return m.scheduler }

// Start launches the worker pool and the monitoring loop.
func (m *Manager) Start() {
	m.scheduler.Start()

	m.monitorMu.Lock()
	defer m.monitorMu.Unlock()
	if m.monitorStop != nil {
		return
	}
	m.monitorStop = make(chan struct{})
	m.monitorWG.Add(1)
	go m.monitorLoop(m.monitorStop)

	m.log.Info("batch manager started", "monitoring_interval", m.cfg.MonitoringInterval)
}

// Stop halts monitoring, then drains the workers.
func (m *Manager) Stop() {
	m.monitorMu.Lock()
	if m.monitorStop != nil {
		close(m.monitorStop)
		m.monitorStop = nil
	}
	m.monitorMu.Unlock()
	m.monitorWG.Wait()

	m.scheduler.Stop()
	m.log.Info("batch manager stopped")
}

// Submit builds a job from the request and hands it to the scheduler.
func (m *Manager) Submit(req SubmitRequest) (string, error) {
	if req.ProcessingCost <= 0 {
		req.ProcessingCost = defaultProcessingCost
	}

	job := NewJob(req.Type, req.Priority, req.Task, req.Args...)
	if req.JobID != "" {
		job.ID = req.JobID
	}
	job.Description = req.Description
	job.CustomerID = req.CustomerID
	job.Metrics = BusinessMetrics{
		RevenueImpact:  req.RevenueImpact,
		CustomerCount:  req.CustomerCount,
		ProcessingCost: req.ProcessingCost,
		SLADeadline:    req.SLADeadline,
	}
	if req.CPURequirement > 0 {
		job.CPURequirement = req.CPURequirement
	}
	if req.MemoryRequiredMB > 0 {
		job.MemoryRequiredMB = req.MemoryRequiredMB
	}
	if req.EstimatedDuration > 0 {
		job.EstimatedDuration = req.EstimatedDuration
	}
	if req.MaxRetries > 0 {
		job.MaxRetries = req.MaxRetries
	}
	if req.RetryDelay > 0 {
		job.RetryDelay = req.RetryDelay
	}

	return m.scheduler.Submit(job)
}

// Cancel marks a Pending job Cancelled.
func (m *Manager) Cancel(jobID string) bool { return m.scheduler.Cancel(jobID) }

// Status returns the lifecycle state of a job.
func (m *Manager) Status(jobID string) (JobStatus, bool) { return m.scheduler.Status(jobID) }

// Job returns the full job record.
func (m *Manager) Job(jobID string) (*Job, bool) { return m.scheduler.Job(jobID) }

// SchedulerStats returns the scheduler snapshot.
func (m *Manager) SchedulerStats() SchedulerStats { return m.scheduler.Stats() }

// ResourceStats returns the resource snapshot.
func (m *Manager) ResourceStats(ctx context.Context) ResourceStats {
	return m.resources.Stats(ctx)
}

// ROIAnalysis aggregates over the finished-job history.
func (m *Manager) ROIAnalysis() ROIReport {
	return m.analyzer.ROIAnalysis(m.scheduler.FinishedJobs())
}

// Dashboard computes the full aggregate view on demand.
func (m *Manager) Dashboard(ctx context.Context) Dashboard {
	now := time.Now()
	schedStats := m.scheduler.Stats()
	resStats := m.resources.Stats(ctx)

	active := make([]ActiveJobInfo, 0)
	for _, job := range m.scheduler.ActiveJobs() {
		var runtime time.Duration
		if started := job.StartedAt(); !started.IsZero() {
			runtime = now.Sub(started)
		}
		progress := 0.0
		if job.EstimatedDuration > 0 {
			progress = min(runtime.Seconds()/job.EstimatedDuration.Seconds(), 1.0) * 100
		}
		active = append(active, ActiveJobInfo{
			JobID:           job.ID,
			Type:            job.Type,
			Priority:        job.Priority.String(),
			ProgressPercent: progress,
			CustomerID:      job.CustomerID,
			RevenueImpact:   job.Metrics.RevenueImpact,
			RuntimeMinutes:  runtime.Minutes(),
		})
	}

	return Dashboard{
		Timestamp:      now,
		SchedulerStats: schedStats,
		ResourceStats:  resStats,
		ROIAnalysis:    m.ROIAnalysis(),
		ActiveJobs:     active,
		SystemHealth:   systemHealth(schedStats, resStats),
		Alerts:         m.Alerts(ctx),
	}
}

// Alerts evaluates the four threshold checks at call time: queue overload,
// failure rate, CPU usage, memory usage. No state, no cooldown.
func (m *Manager) Alerts(ctx context.Context) []Alert {
	schedStats := m.scheduler.Stats()
	resStats := m.resources.Stats(ctx)

	alerts := make([]Alert, 0)

	if schedStats.QueueSize > m.cfg.AlertQueueSize {
		alerts = append(alerts, Alert{
			Type:     "queue_overload",
			Severity: "warning",
			Message:  fmt.Sprintf("job queue overloaded: %d jobs waiting", schedStats.QueueSize),
			Value:    float64(schedStats.QueueSize),
		})
	}

	if total := schedStats.TotalCompleted + schedStats.TotalFailed; total > 0 {
		failureRate := float64(schedStats.TotalFailed) / float64(total)
		if failureRate > m.cfg.AlertFailureRate {
			alerts = append(alerts, Alert{
				Type:     "high_failure_rate",
				Severity: "critical",
				Message:  fmt.Sprintf("high failure rate: %.1f%%", failureRate*100),
				Value:    failureRate,
			})
		}
	}

	if cpuFraction := resStats.SystemCPUPercent / 100; cpuFraction > m.cfg.AlertResourceUsage {
		alerts = append(alerts, Alert{
			Type:     "high_cpu_usage",
			Severity: "warning",
			Message:  fmt.Sprintf("high CPU usage: %.1f%%", cpuFraction*100),
			Value:    cpuFraction,
		})
	}

	if memFraction := resStats.SystemMemoryPercent / 100; memFraction > m.cfg.AlertResourceUsage {
		alerts = append(alerts, Alert{
			Type:     "high_memory_usage",
			Severity: "warning",
			Message:  fmt.Sprintf("high memory usage: %.1f%%", memFraction*100),
			Value:    memFraction,
		})
	}

	return alerts
}

func systemHealth(schedStats SchedulerStats, resStats ResourceStats) string {
	cpu := resStats.SystemCPUPercent
	memory := resStats.SystemMemoryPercent

	switch {
	case cpu > healthCriticalUsagePercent || memory > healthCriticalUsagePercent:
		return HealthCritical
	case schedStats.QueueSize > healthWarningQueueSize ||
		cpu > healthWarningUsagePercent || memory > healthWarningUsagePercent:
		return HealthWarning
	default:
		return HealthHealthy
	}
}

// monitorLoop periodically logs scheduler and resource stats. It observes
// only; alerting stays pull-based through Alerts.
func (m *Manager) monitorLoop(stop <-chan struct{}) {
	defer m.monitorWG.Done()

	ticker := time.NewTicker(m.cfg.MonitoringInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			schedStats := m.scheduler.Stats()
			resStats := m.resources.Stats(context.Background())
			m.log.Info("batch stats",
				"queue_size", schedStats.QueueSize,
				"active_jobs", schedStats.ActiveJobs,
				"completed", schedStats.TotalCompleted,
				"failed", schedStats.TotalFailed,
				"cpu_percent", resStats.SystemCPUPercent,
				"memory_percent", resStats.SystemMemoryPercent,
			)
		}
	}
}
