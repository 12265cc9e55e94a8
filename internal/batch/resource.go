package batch

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Probe reports host-level resource usage and capacity. Implementations must
// be bounded-latency; the resource manager treats probe failures as "allow".
type Probe interface {
	CPUPercent(ctx context.Context) (float64, error)
	MemoryPercent(ctx context.Context) (float64, error)
	TotalCores(ctx context.Context) (int, error)
	TotalMemoryBytes(ctx context.Context) (uint64, error)
	AvailableMemoryBytes(ctx context.Context) (uint64, error)
}

// reservation records the CPU/memory promised to a running job until the
// dispatch that created it exits.
type reservation struct {
	cpuCores    float64
	memoryMB    int
	allocatedAt time.Time
}

// ResourceStats is the resource manager's dashboard snapshot.
type ResourceStats struct {
	SystemCPUPercent    float64 `json:"system_cpu_percent"`
	SystemMemoryPercent float64 `json:"system_memory_percent"`
	AllocatedCPUCores   float64 `json:"allocated_cpu_cores"`
	AllocatedMemoryMB   int     `json:"allocated_memory_mb"`
	ActiveJobs          int     `json:"active_jobs"`
	AvailableCPUCores   float64 `json:"available_cpu_cores"`
	AvailableMemoryGB   float64 `json:"available_memory_gb"`
}

// ResourceManager gates job admission so that reserved resources plus
// current host usage stay under the configured ceilings. It fails open:
// when the probe cannot be read, admission is granted and a warning logged,
// because keeping jobs flowing beats strict enforcement here.
type ResourceManager struct {
	maxCPUPercent    float64
	maxMemoryPercent float64
	probe            Probe
	log              *slog.Logger

	mu           sync.Mutex
	reservations map[string]reservation
}

// NewResourceManager builds a manager enforcing the given percentage
// ceilings. Non-positive ceilings fall back to the 80% defaults.
func NewResourceManager(maxCPUPercent, maxMemoryPercent float64, probe Probe, log *slog.Logger) *ResourceManager {
	if maxCPUPercent <= 0 {
		maxCPUPercent = 80.0
	}
	if maxMemoryPercent <= 0 {
		maxMemoryPercent = 80.0
	}
	return &ResourceManager{
		maxCPUPercent:    maxCPUPercent,
		maxMemoryPercent: maxMemoryPercent,
		probe:            probe,
		log:              log,
		reservations:     make(map[string]reservation),
	}
}

// CanAllocate reports whether a job needing cpuCores and memoryMB could start
// now without the projected host usage crossing either ceiling. Reserved
// amounts and the new request are converted to percentage shares of host
// capacity before the comparison.
func (r *ResourceManager) CanAllocate(ctx context.Context, cpuCores float64, memoryMB int) bool {
	currentCPU, err := r.probe.CPUPercent(ctx)
	if err != nil {
		r.log.Warn("resource probe failed, admitting job", "probe", "cpu", "error", err)
		return true
	}
	currentMemory, err := r.probe.MemoryPercent(ctx)
	if err != nil {
		r.log.Warn("resource probe failed, admitting job", "probe", "memory", "error", err)
		return true
	}
	totalCores, err := r.probe.TotalCores(ctx)
	if err != nil || totalCores <= 0 {
		r.log.Warn("resource probe failed, admitting job", "probe", "cores", "error", err)
		return true
	}
	totalMemory, err := r.probe.TotalMemoryBytes(ctx)
	if err != nil || totalMemory == 0 {
		r.log.Warn("resource probe failed, admitting job", "probe", "total_memory", "error", err)
		return true
	}

	reservedCores, reservedMB := r.reservedTotals()

	projectedCPU := currentCPU + cpuShare(cpuCores, totalCores) + cpuShare(reservedCores, totalCores)
	projectedMemory := currentMemory + memoryShare(memoryMB, totalMemory) + memoryShare(reservedMB, totalMemory)

	return projectedCPU < r.maxCPUPercent && projectedMemory < r.maxMemoryPercent
}

// Allocate re-checks admission and records the reservation atomically.
// It returns false without side effects when the check fails.
func (r *ResourceManager) Allocate(ctx context.Context, jobID string, cpuCores float64, memoryMB int) bool {
	if !r.CanAllocate(ctx, cpuCores, memoryMB) {
		return false
	}

	r.mu.Lock()
	r.reservations[jobID] = reservation{
		cpuCores:    cpuCores,
		memoryMB:    memoryMB,
		allocatedAt: time.Now(),
	}
	r.mu.Unlock()

	r.log.Info("resources allocated", "job_id", jobID, "cpu_cores", cpuCores, "memory_mb", memoryMB)
	return true
}

// Release removes the reservation for jobID. It is idempotent: releasing an
// unknown or already-released id is a no-op.
func (r *ResourceManager) Release(jobID string) {
	r.mu.Lock()
	res, ok := r.reservations[jobID]
	if ok {
		delete(r.reservations, jobID)
	}
	r.mu.Unlock()

	if ok {
		r.log.Info("resources released", "job_id", jobID, "cpu_cores", res.cpuCores, "memory_mb", res.memoryMB)
	}
}

// Stats returns the current resource snapshot for dashboards. Probe failures
// leave the host fields zeroed and are logged; the reservation bookkeeping is
// reported regardless.
func (r *ResourceManager) Stats(ctx context.Context) ResourceStats {
	reservedCores, reservedMB := r.reservedTotals()

	r.mu.Lock()
	active := len(r.reservations)
	r.mu.Unlock()

	stats := ResourceStats{
		AllocatedCPUCores: reservedCores,
		AllocatedMemoryMB: reservedMB,
		ActiveJobs:        active,
	}

	if cpu, err := r.probe.CPUPercent(ctx); err == nil {
		stats.SystemCPUPercent = cpu
	} else {
		r.log.Warn("resource stats probe failed", "probe", "cpu", "error", err)
	}
	if memPct, err := r.probe.MemoryPercent(ctx); err == nil {
		stats.SystemMemoryPercent = memPct
	} else {
		r.log.Warn("resource stats probe failed", "probe", "memory", "error", err)
	}
	if cores, err := r.probe.TotalCores(ctx); err == nil {
		stats.AvailableCPUCores = float64(cores) - reservedCores
	}
	if avail, err := r.probe.AvailableMemoryBytes(ctx); err == nil {
		stats.AvailableMemoryGB = float64(avail) / (1 << 30)
	}

	return stats
}

func (r *ResourceManager) reservedTotals() (cores float64, memoryMB int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, res := range r.reservations {
		cores += res.cpuCores
		memoryMB += res.memoryMB
	}
	return cores, memoryMB
}

func cpuShare(cores float64, totalCores int) float64 {
	return cores / float64(totalCores) * 100
}

func memoryShare(memoryMB int, totalBytes uint64) float64 {
	return float64(memoryMB) * (1 << 20) / float64(totalBytes) * 100
}
