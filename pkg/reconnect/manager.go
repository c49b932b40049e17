package reconnect

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"resonance/pkg/errors"
	"resonance/pkg/logger"
)

// Config tunes backoff, circuit breaking and heartbeat supervision.
// Zero values pick the defaults noted per field.
type Config struct {
	MinBackoff          time.Duration // first retry delay (1s)
	MaxBackoff          time.Duration // backoff ceiling (5m)
	BackoffMultiplier   float64       // growth factor per failure (2.0)
	JitterFraction      float64       // random extra per wait, 0..1 (0.2)
	MaxRetries          int           // consecutive failures before the circuit opens (10)
	HealthCheckInterval time.Duration // how often callers should poll IsHealthy (10s)
	HeartbeatTimeout    time.Duration // silence on the wire considered a dead link (60s)
	CircuitResetAfter   time.Duration // cool-down before an open circuit permits a probe (5m)
}

func (c *Config) applyDefaults() {
	if c.MinBackoff <= 0 {
		c.MinBackoff = time.Second
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 5 * time.Minute
	}
	if c.BackoffMultiplier <= 1 {
		c.BackoffMultiplier = 2.0
	}
	if c.JitterFraction < 0 || c.JitterFraction > 1 {
		c.JitterFraction = 0
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 10
	}
	if c.HealthCheckInterval <= 0 {
		c.HealthCheckInterval = 10 * time.Second
	}
	if c.HeartbeatTimeout <= 0 {
		c.HeartbeatTimeout = time.Minute
	}
	if c.CircuitResetAfter <= 0 {
		c.CircuitResetAfter = 5 * time.Minute
	}
}

// Manager supervises a single long-lived connection: exponential backoff
// between attempts, a circuit breaker after repeated failures, and a
// heartbeat watchdog fed by RecordMessageReceived. One manager per link;
// the stream feed owns one for its collector socket.
type Manager struct {
	cfg Config
	log *logger.Logger

	mu       sync.RWMutex
	wait     time.Duration // next delay, pre-jitter
	failures int           // consecutive, resets on success
	recovers int           // lifetime successful (re)connects
	openedAt time.Time     // zero while the circuit is closed

	lastMsgUnix atomic.Int64
}

// NewManager creates a manager; zero-valued config fields get defaults.
func NewManager(cfg Config, log *logger.Logger) *Manager {
	cfg.applyDefaults()
	return &Manager{
		cfg:  cfg,
		log:  log,
		wait: cfg.MinBackoff,
	}
}

// RecordMessageReceived feeds the heartbeat watchdog. Call on every frame.
func (m *Manager) RecordMessageReceived() {
	m.lastMsgUnix.Store(time.Now().Unix())
}

func (m *Manager) circuitOpen() bool {
	return !m.openedAt.IsZero()
}

// IsHealthy reports whether the link looks alive: circuit closed and a
// message seen within the heartbeat timeout. A link that has not received
// anything yet counts as healthy so fresh connections are not torn down.
func (m *Manager) IsHealthy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.circuitOpen() {
		return false
	}

	last := m.lastMsgUnix.Load()
	if last == 0 {
		return true
	}

	silence := time.Since(time.Unix(last, 0))
	if silence > m.cfg.HeartbeatTimeout {
		m.log.Warnw("Connection silent past heartbeat timeout",
			"silence", silence,
			"heartbeat_timeout", m.cfg.HeartbeatTimeout,
		)
		return false
	}
	return true
}

// ShouldRetry reports whether another attempt is permitted. An open
// circuit permits a probe once the cool-down has elapsed.
func (m *Manager) ShouldRetry() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.circuitOpen() {
		return time.Since(m.openedAt) >= m.cfg.CircuitResetAfter
	}
	return m.cfg.MaxRetries <= 0 || m.failures < m.cfg.MaxRetries
}

// GetBackoff returns the delay to sleep before the next attempt,
// including jitter.
func (m *Manager) GetBackoff() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.jittered(m.wait)
}

func (m *Manager) jittered(d time.Duration) time.Duration {
	if m.cfg.JitterFraction <= 0 {
		return d
	}
	return d + time.Duration(rand.Float64()*m.cfg.JitterFraction*float64(d))
}

// RecordFailure grows the backoff and opens the circuit once the failure
// budget is spent.
func (m *Manager) RecordFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.failures++

	next := time.Duration(float64(m.wait) * m.cfg.BackoffMultiplier)
	if next > m.cfg.MaxBackoff {
		next = m.cfg.MaxBackoff
	}
	m.wait = next

	m.log.Warnw("Reconnect attempt failed",
		"consecutive_failures", m.failures,
		"next_backoff", m.wait,
	)

	if m.cfg.MaxRetries > 0 && m.failures >= m.cfg.MaxRetries && !m.circuitOpen() {
		m.openedAt = time.Now()
		m.log.Errorw("🔴 Circuit opened, suspending reconnects",
			"consecutive_failures", m.failures,
			"cooldown", m.cfg.CircuitResetAfter,
		)
	}
}

// RecordSuccess resets backoff, closes the circuit and refreshes the
// heartbeat.
func (m *Manager) RecordSuccess() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failures > 0 {
		m.log.Infow("Reconnected, backoff reset", "after_failures", m.failures)
	}

	m.wait = m.cfg.MinBackoff
	m.failures = 0
	m.recovers++

	if m.circuitOpen() {
		m.log.Infow("🟢 Circuit closed", "total_reconnects", m.recovers)
		m.openedAt = time.Time{}
	}

	m.lastMsgUnix.Store(time.Now().Unix())
}

// ResetCircuit force-closes the circuit, e.g. from an operator command.
func (m *Manager) ResetCircuit() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.circuitOpen() {
		return
	}
	m.log.Info("Circuit reset manually")
	m.openedAt = time.Time{}
	m.failures = 0
	m.wait = m.cfg.MinBackoff
}

// Stats is a point-in-time snapshot for health/ops surfaces.
type Stats struct {
	ConsecutiveFailures  int
	TotalReconnects      int
	CurrentBackoff       time.Duration
	CircuitOpen          bool
	CircuitOpenedAt      time.Time
	LastMessageTime      time.Time
	TimeSinceLastMessage time.Duration
	IsHealthy            bool
}

// GetStats snapshots the manager state.
func (m *Manager) GetStats() Stats {
	healthy := m.IsHealthy()

	m.mu.RLock()
	defer m.mu.RUnlock()

	s := Stats{
		ConsecutiveFailures: m.failures,
		TotalReconnects:     m.recovers,
		CurrentBackoff:      m.wait,
		CircuitOpen:         m.circuitOpen(),
		CircuitOpenedAt:     m.openedAt,
		IsHealthy:           healthy,
	}
	if last := m.lastMsgUnix.Load(); last != 0 {
		s.LastMessageTime = time.Unix(last, 0)
		s.TimeSinceLastMessage = time.Since(s.LastMessageTime)
	}
	return s
}

// ReconnectWithBackoff sleeps the current backoff, then runs connect once,
// recording the outcome. Callers loop on it until nil or a permanent error.
func (m *Manager) ReconnectWithBackoff(ctx context.Context, connect func(context.Context) error) error {
	if !m.ShouldRetry() {
		m.mu.RLock()
		open, failures := m.circuitOpen(), m.failures
		m.mu.RUnlock()

		if open {
			return errors.New("circuit open: reconnects suspended")
		}
		return errors.Newf("retry budget exhausted after %d consecutive failures", failures)
	}

	if wait := m.GetBackoff(); wait > 0 {
		m.log.Infow("Waiting before reconnect", "backoff", wait)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if err := connect(ctx); err != nil {
		m.RecordFailure()
		return errors.Wrap(err, "reconnect")
	}

	m.RecordSuccess()
	return nil
}
