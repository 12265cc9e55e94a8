package batch

import (
	"container/heap"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// AdmissionPolicy controls what a worker does when the top-of-queue job does
// not fit into the current resource budget.
type AdmissionPolicy string

const (
	// AdmissionStrictPriority never looks past the highest-scored job: if it
	// does not fit, nothing dispatches this iteration. Lower-scored jobs that
	// would fit stay queued behind it.
	AdmissionStrictPriority AdmissionPolicy = "strict_priority"
	// AdmissionBestFitScan scans down the queue for the highest-scored job
	// that fits, re-queueing the ones it skipped.
	AdmissionBestFitScan AdmissionPolicy = "best_fit_scan"
)

// RetryPolicy controls where the retry backoff is served.
type RetryPolicy string

const (
	// RetryBlocking sleeps the backoff on the worker that ran the attempt,
	// keeping that worker idle for the whole delay.
	RetryBlocking RetryPolicy = "blocking"
	// RetryDeferred re-queues the job from a timer, freeing the worker
	// immediately.
	RetryDeferred RetryPolicy = "deferred"
)

// queueEntry orders the heap: max score first, FIFO between equal scores.
// A job that re-enters the queue gets a fresh sequence number and a fresh
// score, so it does not retain its original position.
type queueEntry struct {
	negScore float64
	seq      uint64
	job      *Job
}

type jobHeap []queueEntry

func (h jobHeap) Len() int { return len(h) }
func (h jobHeap) Less(i, k int) bool {
	if h[i].negScore != h[k].negScore {
		return h[i].negScore < h[k].negScore
	}
	return h[i].seq < h[k].seq
}
func (h jobHeap) Swap(i, k int) { h[i], h[k] = h[k], h[i] }

func (h *jobHeap) Push(x any) { *h = append(*h, x.(queueEntry)) }

func (h *jobHeap) Pop() any {
	old := *h
	n := len(old)
	entry := old[n-1]
	*h = old[:n-1]
	return entry
}

// SchedulerStats is the scheduler's observability snapshot.
type SchedulerStats struct {
	TotalSubmitted int64 `json:"total_submitted"`
	TotalCompleted int64 `json:"total_completed"`
	TotalFailed    int64 `json:"total_failed"`
	TotalCancelled int64 `json:"total_cancelled"`
	QueueSize      int   `json:"queue_size"`
	ActiveJobs     int   `json:"active_jobs"`
	CompletedJobs  int   `json:"completed_jobs"`
	WorkersRunning bool  `json:"workers_running"`
	Workers        int   `json:"workers"`
}

// SchedulerConfig tunes the worker pool. Zero values take the defaults.
type SchedulerConfig struct {
	Workers         int
	AdmissionPolicy AdmissionPolicy
	RetryPolicy     RetryPolicy
	IdleSleep       time.Duration
}

func (c SchedulerConfig) withDefaults() SchedulerConfig {
	if c.Workers <= 0 {
		c.Workers = 5
	}
	if c.AdmissionPolicy == "" {
		c.AdmissionPolicy = AdmissionStrictPriority
	}
	if c.RetryPolicy == "" {
		c.RetryPolicy = RetryBlocking
	}
	if c.IdleSleep <= 0 {
		c.IdleSleep = time.Second
	}
	return c
}

// Scheduler owns the priority queue and the worker pool. Jobs dequeue in
// descending business-value order, gated by the resource manager; failures
// retry with backoff until MaxRetries is exhausted.
type Scheduler struct {
	cfg       SchedulerConfig
	resources *ResourceManager
	analyzer  *ValueAnalyzer
	log       *slog.Logger
	tracer    trace.Tracer

	// mu guards the heap, the sequence counter, the full-history job table
	// and the counters.
	mu     sync.Mutex
	queue  jobHeap
	seq    uint64
	jobs   map[string]*Job
	counts struct {
		submitted int64
		completed int64
		failed    int64
		cancelled int64
	}

	activeMu sync.Mutex
	active   map[string]*Job

	finishedMu sync.Mutex
	finished   []*Job

	runMu   sync.Mutex
	running bool
	stop    chan struct{}
	wg      sync.WaitGroup
}

// NewScheduler wires a scheduler to its resource manager and value analyzer.
func NewScheduler(cfg SchedulerConfig, resources *ResourceManager, analyzer *ValueAnalyzer, log *slog.Logger) *Scheduler {
	return &Scheduler{
		cfg:       cfg.withDefaults(),
		resources: resources,
		analyzer:  analyzer,
		log:       log,
		tracer:    otel.Tracer("batchplane/scheduler"),
		jobs:      make(map[string]*Job),
		active:    make(map[string]*Job),
	}
}

// Start launches the worker pool. Starting a running scheduler is a no-op.
func (s *Scheduler) Start() {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.stop = make(chan struct{})

	for i := 0; i < s.cfg.Workers; i++ {
		s.wg.Add(1)
		go s.workerLoop(i, s.stop)
	}
	s.log.Info("batch workers started", "workers", s.cfg.Workers,
		"admission_policy", string(s.cfg.AdmissionPolicy), "retry_policy", string(s.cfg.RetryPolicy))
}

// Stop signals the workers and waits for in-flight executions to finish.
// Queued jobs stay Pending and survive until the next Start.
func (s *Scheduler) Stop() {
	s.runMu.Lock()
	if !s.running {
		s.runMu.Unlock()
		return
	}
	s.running = false
	close(s.stop)
	s.runMu.Unlock()

	s.wg.Wait()
	s.log.Info("batch workers stopped")
}

// Submit scores the job and pushes it onto the queue. It returns immediately;
// admission happens at dispatch time. Malformed jobs are rejected here.
func (s *Scheduler) Submit(job *Job) (string, error) {
	if err := job.validate(); err != nil {
		return "", err
	}

	score := s.analyzer.Score(job)

	s.mu.Lock()
	if _, exists := s.jobs[job.ID]; exists {
		s.mu.Unlock()
		return "", fmt.Errorf("%w: %s", ErrDuplicateJobID, job.ID)
	}
	s.seq++
	heap.Push(&s.queue, queueEntry{negScore: -score, seq: s.seq, job: job})
	s.jobs[job.ID] = job
	s.counts.submitted++
	s.mu.Unlock()

	s.log.Info("job submitted", "job_id", job.ID, "type", string(job.Type),
		"priority", job.Priority.String(), "score", score)
	return job.ID, nil
}

// Status returns the lifecycle state of a job, false if the id is unknown.
func (s *Scheduler) Status(jobID string) (JobStatus, bool) {
	s.mu.Lock()
	job, ok := s.jobs[jobID]
	s.mu.Unlock()
	if !ok {
		return "", false
	}
	return job.Status(), true
}

// Job returns the job record for jobID, false if the id is unknown.
func (s *Scheduler) Job(jobID string) (*Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	return job, ok
}

// Cancel marks a Pending job Cancelled. Jobs already dispatched complete or
// fail normally; cancelling them returns false.
func (s *Scheduler) Cancel(jobID string) bool {
	s.mu.Lock()
	job, ok := s.jobs[jobID]
	s.mu.Unlock()
	if !ok {
		return false
	}
	if !job.transition(StatusPending, StatusCancelled) {
		return false
	}

	job.markCompleted(time.Now())
	s.mu.Lock()
	s.counts.cancelled++
	s.mu.Unlock()

	s.log.Info("job cancelled", "job_id", jobID)
	return true
}

// Stats returns the scheduler snapshot.
func (s *Scheduler) Stats() SchedulerStats {
	s.mu.Lock()
	stats := SchedulerStats{
		TotalSubmitted: s.counts.submitted,
		TotalCompleted: s.counts.completed,
		TotalFailed:    s.counts.failed,
		TotalCancelled: s.counts.cancelled,
		QueueSize:      len(s.queue),
		Workers:        s.cfg.Workers,
	}
	s.mu.Unlock()

	s.activeMu.Lock()
	stats.ActiveJobs = len(s.active)
	s.activeMu.Unlock()

	s.finishedMu.Lock()
	stats.CompletedJobs = len(s.finished)
	s.finishedMu.Unlock()

	s.runMu.Lock()
	stats.WorkersRunning = s.running
	s.runMu.Unlock()

	return stats
}

// FinishedJobs returns a snapshot of the completed/failed history.
func (s *Scheduler) FinishedJobs() []*Job {
	s.finishedMu.Lock()
	defer s.finishedMu.Unlock()
	out := make([]*Job, len(s.finished))
	copy(out, s.finished)
	return out
}

// ActiveJobs returns a snapshot of the jobs currently executing.
func (s *Scheduler) ActiveJobs() []*Job {
	s.activeMu.Lock()
	defer s.activeMu.Unlock()
	out := make([]*Job, 0, len(s.active))
	for _, job := range s.active {
		out = append(out, job)
	}
	return out
}

func (s *Scheduler) workerLoop(id int, stop <-chan struct{}) {
	defer s.wg.Done()
	log := s.log.With("worker", id)

	for {
		select {
		case <-stop:
			return
		default:
		}

		job := s.nextJob(context.Background())
		if job == nil {
			select {
			case <-stop:
				return
			case <-time.After(s.cfg.IdleSleep):
			}
			continue
		}

		if retry := s.execute(context.Background(), log, job); retry {
			s.scheduleRetry(log, job, stop)
		}
	}
}

// nextJob pops the highest-scored admissible job. Cancelled entries are
// discarded. Under strict priority an inadmissible head blocks the whole
// queue for this iteration; under best-fit-scan the worker keeps looking.
func (s *Scheduler) nextJob(ctx context.Context) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	var skipped []queueEntry
	defer func() {
		for _, entry := range skipped {
			heap.Push(&s.queue, entry)
		}
	}()

	for s.queue.Len() > 0 {
		entry := heap.Pop(&s.queue).(queueEntry)

		if entry.job.Status() == StatusCancelled {
			continue
		}

		if s.resources.CanAllocate(ctx, entry.job.CPURequirement, entry.job.MemoryRequiredMB) {
			return entry.job
		}

		switch s.cfg.AdmissionPolicy {
		case AdmissionBestFitScan:
			skipped = append(skipped, entry)
		case AdmissionStrictPriority:
			heap.Push(&s.queue, entry)
			return nil
		}
	}
	return nil
}

// execute runs one dispatch of a job. The reservation release and the
// active-table removal are deferred so they run exactly once on every path.
// The returned flag tells the worker loop to schedule a retry; the backoff
// itself is served after the resources are back in the pool.
func (s *Scheduler) execute(ctx context.Context, log *slog.Logger, job *Job) (retry bool) {
	if !s.resources.Allocate(ctx, job.ID, job.CPURequirement, job.MemoryRequiredMB) {
		// Lost the admission race since the queue check; back into the queue.
		log.Warn("allocation refused at dispatch, re-queueing", "job_id", job.ID)
		s.requeue(job, StatusPending)
		return false
	}

	if !job.transition(StatusPending, StatusRunning) {
		// Cancelled between dequeue and dispatch.
		s.resources.Release(job.ID)
		return false
	}

	now := time.Now()
	job.markStarted(now)
	attempt := job.RetryCount() + 1

	s.activeMu.Lock()
	s.active[job.ID] = job
	s.activeMu.Unlock()

	defer func() {
		s.resources.Release(job.ID)
		s.activeMu.Lock()
		delete(s.active, job.ID)
		s.activeMu.Unlock()
		if !retry {
			s.finishedMu.Lock()
			s.finished = append(s.finished, job)
			s.finishedMu.Unlock()
		}
	}()

	spanCtx, span := s.tracer.Start(ctx, "execute_job",
		trace.WithAttributes(
			attribute.String("job.id", job.ID),
			attribute.String("job.type", string(job.Type)),
			attribute.String("job.priority", job.Priority.String()),
			attribute.Int("job.attempt", attempt),
			attribute.Float64("job.score", job.Score()),
		))
	defer span.End()

	log.Info("job started", "job_id", job.ID, "attempt", attempt)

	started := time.Now()
	result, err := s.invoke(spanCtx, job)
	elapsed := time.Since(started)

	if err == nil {
		job.setResult(result)
		job.appendLog(fmt.Sprintf("attempt %d completed in %.2fs", attempt, elapsed.Seconds()))
		job.transition(StatusRunning, StatusCompleted)
		job.markCompleted(time.Now())

		s.mu.Lock()
		s.counts.completed++
		s.mu.Unlock()

		log.Info("job completed", "job_id", job.ID, "duration", elapsed)
		return false
	}

	span.RecordError(err)
	job.setErrorMessage(err.Error())
	job.appendLog(fmt.Sprintf("attempt %d failed: %v", attempt, err))

	if job.retriesRemain() {
		count := job.incrementRetry()
		job.transition(StatusRunning, StatusRetrying)
		log.Info("job retry scheduled", "job_id", job.ID,
			"retry", count, "max_retries", job.MaxRetries, "delay", job.RetryDelay)
		return true
	}

	job.transition(StatusRunning, StatusFailed)
	job.markCompleted(time.Now())

	// Terminal failure only; retried attempts are not counted, so submitted
	// always equals completed + failed + cancelled + live jobs.
	s.mu.Lock()
	s.counts.failed++
	s.mu.Unlock()

	log.Error("job failed, retries exhausted", "job_id", job.ID, "error", err)
	return false
}

// invoke calls the task payload, converting a panic into an ordinary error
// so one misbehaving job never takes a worker down.
func (s *Scheduler) invoke(ctx context.Context, job *Job) (result any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("task panicked: %v", rec)
		}
	}()
	return job.Task(ctx, job.Args...)
}

// scheduleRetry serves the backoff per the configured policy and puts the
// job back in the queue with a fresh score and sequence number.
func (s *Scheduler) scheduleRetry(log *slog.Logger, job *Job, stop <-chan struct{}) {
	switch s.cfg.RetryPolicy {
	case RetryDeferred:
		time.AfterFunc(job.RetryDelay, func() {
			s.requeue(job, StatusRetrying)
		})
	default:
		// The worker sits out the whole backoff. Stopping the scheduler cuts
		// the sleep short but still re-queues, so the job is not lost.
		select {
		case <-time.After(job.RetryDelay):
		case <-stop:
		}
		s.requeue(job, StatusRetrying)
	}
}

// requeue re-scores the job and pushes it back onto the heap. Positions are
// not preserved across re-queues.
func (s *Scheduler) requeue(job *Job, from JobStatus) {
	if from != StatusPending && !job.transition(from, StatusPending) {
		return
	}
	score := s.analyzer.Score(job)

	s.mu.Lock()
	s.seq++
	heap.Push(&s.queue, queueEntry{negScore: -score, seq: s.seq, job: job})
	s.mu.Unlock()
}
