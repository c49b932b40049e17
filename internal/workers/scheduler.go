package workers

import (
	"context"
	"sync"
	"time"

	"resonance/internal/metrics"
	"resonance/pkg/errors"
	"resonance/pkg/logger"
)

// stopTimeout bounds graceful shutdown. Collector poll cycles over many
// niches and large ClickHouse snapshot flushes can legitimately run for
// a while, so the bound is generous.
const stopTimeout = 2 * time.Minute

// Scheduler runs each enabled worker on its own ticker goroutine.
type Scheduler struct {
	log *logger.Logger

	mu      sync.RWMutex
	workers []Worker
	started bool
	cancel  context.CancelFunc

	wg sync.WaitGroup
}

func NewScheduler() *Scheduler {
	return &Scheduler{log: logger.Get()}
}

// RegisterWorker adds a worker. Registration is only honored before
// Start; late registrations are logged and dropped.
func (s *Scheduler) RegisterWorker(w Worker) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		s.log.Warn("Cannot register worker after scheduler has started", "worker", w.Name())
		return
	}

	s.workers = append(s.workers, w)
	s.log.Info("Worker registered", "worker", w.Name(), "interval", w.Interval())
}

// Start launches every enabled worker.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return errors.Wrapf(errors.ErrInternal, "scheduler already started")
	}
	s.started = true

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	workers := s.workers
	s.mu.Unlock()

	s.log.Info("Starting worker scheduler", "workers", len(workers))

	for _, w := range workers {
		if !w.Enabled() {
			s.log.Info("Skipping disabled worker", "worker", w.Name())
			continue
		}
		s.wg.Add(1)
		go s.loop(runCtx, w)
	}

	s.log.Info("All workers started")
	return nil
}

// Stop cancels all worker loops and waits up to stopTimeout for
// in-flight iterations to finish.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return errors.Wrapf(errors.ErrInternal, "scheduler not started")
	}
	s.cancel()
	s.mu.Unlock()

	s.log.Info("Stopping worker scheduler...")

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
		s.log.Info("All workers stopped gracefully")
	case <-time.After(stopTimeout):
		s.log.Warn("Worker shutdown timed out", "timeout", stopTimeout)
		err = errors.Wrapf(errors.ErrInternal, "shutdown timeout after %s", stopTimeout)
	}

	s.mu.Lock()
	s.started = false
	s.mu.Unlock()

	return err
}

func (s *Scheduler) loop(ctx context.Context, w Worker) {
	defer s.wg.Done()

	s.log.Info("Worker started", "worker", w.Name())

	ticker := time.NewTicker(w.Interval())
	defer ticker.Stop()

	// First iteration runs immediately, not after one full interval
	s.runOnce(ctx, w)

	for {
		select {
		case <-ctx.Done():
			s.log.Info("Worker stopping due to context cancellation", "worker", w.Name())
			return
		case <-ticker.C:
			s.runOnce(ctx, w)
		}
	}
}

// runOnce executes a single iteration. A panic is contained to the
// iteration so one bad cycle does not take the worker loop down.
func (s *Scheduler) runOnce(ctx context.Context, w Worker) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			s.log.Error("Worker panicked", "worker", w.Name(), "panic", r)
		}
	}()

	err := w.Run(ctx)
	elapsed := time.Since(start)
	metrics.RecordWorkerExecution(w.Name(), elapsed, err)

	if err != nil {
		s.log.Error("Worker execution failed",
			"worker", w.Name(), "error", err, "duration", elapsed)
		return
	}
	s.log.Debug("Worker execution completed",
		"worker", w.Name(), "duration", elapsed)
}

// GetWorkers returns the registered workers in registration order.
func (s *Scheduler) GetWorkers() []Worker {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Worker, len(s.workers))
	copy(out, s.workers)
	return out
}

func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}
