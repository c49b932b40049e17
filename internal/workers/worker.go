package workers

import (
	"context"
	"sync"
	"time"

	"resonance/pkg/logger"
)

// Worker is one scheduled background job: collector polling, stats
// flushing, hook refreshing.
type Worker interface {
	Name() string

	// Run performs a single iteration and returns; the scheduler
	// re-invokes it every Interval.
	Run(ctx context.Context) error

	Interval() time.Duration
	Enabled() bool
}

// WorkerWithHealth adds runtime health introspection on top of Worker.
// The registry and the /v1/workers endpoint consume this.
type WorkerWithHealth interface {
	Worker
	Health() WorkerHealth
	SetEnabled(enabled bool)
}

// WorkerHealth is a snapshot of a worker's run history.
type WorkerHealth struct {
	LastRun     time.Time
	LastError   error
	RunCount    int64
	ErrorCount  int64
	AvgDuration time.Duration
	IsRunning   bool
	Enabled     bool
}

// BaseWorker carries the identity, schedule and health bookkeeping
// shared by the concrete workers. Workers embed it and report their
// iterations through RecordRun / RecordError.
type BaseWorker struct {
	name     string
	interval time.Duration
	log      *logger.Logger

	mu       sync.RWMutex
	enabled  bool
	lastRun  time.Time
	lastErr  error
	runs     int64
	failures int64
	busy     time.Duration
}

func NewBaseWorker(name string, interval time.Duration, enabled bool) *BaseWorker {
	return &BaseWorker{
		name:     name,
		interval: interval,
		enabled:  enabled,
		log:      logger.Get().With("worker", name),
	}
}

func (w *BaseWorker) Name() string            { return w.name }
func (w *BaseWorker) Interval() time.Duration { return w.interval }

// Log returns the worker-scoped logger.
func (w *BaseWorker) Log() *logger.Logger { return w.log }

func (w *BaseWorker) Enabled() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.enabled
}

func (w *BaseWorker) SetEnabled(enabled bool) {
	w.mu.Lock()
	w.enabled = enabled
	w.mu.Unlock()
	w.log.Infof("Worker enabled state changed to: %v", enabled)
}

// Health reports the accumulated run history. IsRunning is left false
// here; only the scheduler knows whether an iteration is in flight.
func (w *BaseWorker) Health() WorkerHealth {
	w.mu.RLock()
	defer w.mu.RUnlock()

	var avg time.Duration
	if w.runs > 0 {
		avg = w.busy / time.Duration(w.runs)
	}

	return WorkerHealth{
		LastRun:     w.lastRun,
		LastError:   w.lastErr,
		RunCount:    w.runs,
		ErrorCount:  w.failures,
		AvgDuration: avg,
		Enabled:     w.enabled,
	}
}

// RecordRun marks a successful iteration and clears any previous error.
func (w *BaseWorker) RecordRun(duration time.Duration) {
	w.record(nil, duration)
}

// RecordError marks a failed iteration.
func (w *BaseWorker) RecordError(err error, duration time.Duration) {
	w.record(err, duration)
}

func (w *BaseWorker) record(err error, duration time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.lastRun = time.Now()
	w.lastErr = err
	w.runs++
	w.busy += duration
	if err != nil {
		w.failures++
	}
}
