// Package tasks maps task names to executable task functions. Jobs submitted
// over the API reference a task by name; the host process registers the
// implementations at startup.
package tasks

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"batchplane/internal/batch"
)

// Registry is a concurrency-safe name -> TaskFunc table.
type Registry struct {
	mu    sync.RWMutex
	tasks map[string]batch.TaskFunc
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{tasks: make(map[string]batch.TaskFunc)}
}

// Register adds a task under the given name. Registering a name twice is an
// error; tasks are wired once at startup.
func (r *Registry) Register(name string, fn batch.TaskFunc) error {
	if fn == nil {
		return fmt.Errorf("task %q: nil function", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tasks[name]; exists {
		return fmt.Errorf("task %q already registered", name)
	}
	r.tasks[name] = fn
	return nil
}

// Get looks up a task by name.
func (r *Registry) Get(name string) (batch.TaskFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.tasks[name]
	return fn, ok
}

// Names returns the registered task names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tasks))
	for name := range r.tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RegisterBuiltins adds the maintenance tasks the daemon ships with. Real
// deployments register their own document and reporting tasks next to these.
func RegisterBuiltins(r *Registry) error {
	builtins := map[string]batch.TaskFunc{
		// noop completes immediately; useful for smoke-testing the pipeline.
		"noop": func(ctx context.Context, args ...any) (any, error) {
			return "ok", nil
		},
		// sleep waits for the duration given as the first argument
		// (a string like "250ms"), honoring context cancellation.
		"sleep": func(ctx context.Context, args ...any) (any, error) {
			d := time.Second
			if len(args) > 0 {
				s, ok := args[0].(string)
				if !ok {
					return nil, fmt.Errorf("sleep: expected duration string, got %T", args[0])
				}
				parsed, err := time.ParseDuration(s)
				if err != nil {
					return nil, fmt.Errorf("sleep: %w", err)
				}
				d = parsed
			}
			select {
			case <-time.After(d):
				return fmt.Sprintf("slept %s", d), nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		},
	}

	for name, fn := range builtins {
		if err := r.Register(name, fn); err != nil {
			return err
		}
	}
	return nil
}
