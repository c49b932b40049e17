package workers

import (
	"sync"
	"time"

	"resonance/pkg/errors"
)

// Registry is the named index of background workers, backing the ops
// surface (/v1/workers, admin commands). Health is read from the workers
// themselves; the registry only resolves names and preserves registration
// order.
type Registry struct {
	mu      sync.RWMutex
	byName  map[string]WorkerWithHealth
	ordered []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]WorkerWithHealth)}
}

// Register adds a worker. Names must be unique.
func (r *Registry) Register(w WorkerWithHealth) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := w.Name()
	if _, dup := r.byName[name]; dup {
		return errors.Wrapf(errors.ErrAlreadyExists, "worker %s already registered", name)
	}

	r.byName[name] = w
	r.ordered = append(r.ordered, name)
	return nil
}

// Unregister removes a worker by name.
func (r *Registry) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byName[name]; !ok {
		return errors.Wrapf(errors.ErrNotFound, "worker %s not found", name)
	}

	delete(r.byName, name)
	for i, n := range r.ordered {
		if n == name {
			r.ordered = append(r.ordered[:i], r.ordered[i+1:]...)
			break
		}
	}
	return nil
}

// Get resolves a worker by name.
func (r *Registry) Get(name string) (WorkerWithHealth, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	w, ok := r.byName[name]
	return w, ok
}

// List returns all workers in registration order.
func (r *Registry) List() []WorkerWithHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]WorkerWithHealth, 0, len(r.ordered))
	for _, name := range r.ordered {
		out = append(out, r.byName[name])
	}
	return out
}

// ListNames returns worker names in registration order.
func (r *Registry) ListNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]string(nil), r.ordered...)
}

// EnableWorker flips a worker's enabled flag; the scheduler picks the
// change up on its next tick.
func (r *Registry) EnableWorker(name string, enabled bool) error {
	w, ok := r.Get(name)
	if !ok {
		return errors.Wrapf(errors.ErrNotFound, "worker %s not found", name)
	}
	w.SetEnabled(enabled)
	return nil
}

// GetHealth reads one worker's health.
func (r *Registry) GetHealth(name string) (WorkerHealth, bool) {
	w, ok := r.Get(name)
	if !ok {
		return WorkerHealth{}, false
	}
	return w.Health(), true
}

// GetAllHealth reads every worker's health, keyed by name.
func (r *Registry) GetAllHealth() map[string]WorkerHealth {
	all := r.List()

	health := make(map[string]WorkerHealth, len(all))
	for _, w := range all {
		health[w.Name()] = w.Health()
	}
	return health
}

// GetUnhealthyWorkers names enabled workers that have either gone silent
// for longer than maxAge or fail more than half their runs.
func (r *Registry) GetUnhealthyWorkers(maxAge time.Duration) []string {
	var unhealthy []string
	now := time.Now()

	for _, w := range r.List() {
		h := w.Health()
		if !h.Enabled {
			continue
		}
		if now.Sub(h.LastRun) > maxAge {
			unhealthy = append(unhealthy, w.Name())
			continue
		}
		if h.RunCount > 10 && float64(h.ErrorCount)/float64(h.RunCount) > 0.5 {
			unhealthy = append(unhealthy, w.Name())
		}
	}
	return unhealthy
}

// Count returns the number of registered workers.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byName)
}

// CountEnabled returns the number of currently enabled workers.
func (r *Registry) CountEnabled() int {
	count := 0
	for _, w := range r.List() {
		if w.Enabled() {
			count++
		}
	}
	return count
}
