package batch

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
)

// SystemProbe reads host CPU and memory usage via gopsutil.
type SystemProbe struct{}

// NewSystemProbe returns a probe backed by the local host.
func NewSystemProbe() *SystemProbe {
	return &SystemProbe{}
}

// CPUPercent returns the host-wide CPU utilization since the previous call.
func (p *SystemProbe) CPUPercent(ctx context.Context) (float64, error) {
	percents, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return 0, fmt.Errorf("cpu percent: %w", err)
	}
	if len(percents) == 0 {
		return 0, fmt.Errorf("cpu percent: no samples")
	}
	return percents[0], nil
}

// MemoryPercent returns the host memory utilization.
func (p *SystemProbe) MemoryPercent(ctx context.Context) (float64, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("virtual memory: %w", err)
	}
	return vm.UsedPercent, nil
}

// TotalCores returns the number of logical cores.
func (p *SystemProbe) TotalCores(ctx context.Context) (int, error) {
	n, err := cpu.CountsWithContext(ctx, true)
	if err != nil {
		return 0, fmt.Errorf("cpu counts: %w", err)
	}
	return n, nil
}

// TotalMemoryBytes returns total physical memory.
func (p *SystemProbe) TotalMemoryBytes(ctx context.Context) (uint64, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("virtual memory: %w", err)
	}
	return vm.Total, nil
}

// AvailableMemoryBytes returns memory available for allocation without swap.
func (p *SystemProbe) AvailableMemoryBytes(ctx context.Context) (uint64, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("virtual memory: %w", err)
	}
	return vm.Available, nil
}
