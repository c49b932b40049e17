package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"resonance/pkg/logger"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
)

const (
	statusHealthy   = "healthy"
	statusDegraded  = "degraded"
	statusUnhealthy = "unhealthy"
)

// Handler serves the Kubernetes probe endpoints. Readiness requires every
// store (scripts in Postgres, sample history in ClickHouse, rank cache in
// Redis); /health additionally distinguishes a degraded state when only
// some stores answer.
type Handler struct {
	log         *logger.Logger
	checks      []storeCheck
	startTime   time.Time
	serviceName string
	version     string
}

type storeCheck struct {
	name string
	ping func(ctx context.Context) error
}

// New creates the health handler over the three backing stores.
func New(
	log *logger.Logger,
	postgres *sqlx.DB,
	clickhouse driver.Conn,
	redisClient *redis.Client,
	serviceName string,
	version string,
) *Handler {
	return &Handler{
		log: log,
		checks: []storeCheck{
			{"postgres", postgres.PingContext},
			{"clickhouse", clickhouse.Ping},
			{"redis", func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }},
		},
		startTime:   time.Now(),
		serviceName: serviceName,
		version:     version,
	}
}

// HealthStatus is the JSON body for /health and /ready.
type HealthStatus struct {
	Status    string                     `json:"status"`
	Service   string                     `json:"service"`
	Version   string                     `json:"version"`
	Uptime    string                     `json:"uptime"`
	Timestamp string                     `json:"timestamp"`
	Checks    map[string]ComponentHealth `json:"checks"`
}

// ComponentHealth reports one store's probe outcome.
type ComponentHealth struct {
	Status       string `json:"status"`
	ResponseTime string `json:"response_time,omitempty"`
	Error        string `json:"error,omitempty"`
}

// HandleLiveness answers the liveness probe; the process being able to
// serve it is the whole check.
func (h *Handler) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "alive"})
}

// HandleReadiness answers the readiness probe: 200 only when every store
// responds, 503 otherwise so the pod is pulled from rotation.
func (h *Handler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks, healthy := h.runChecks(ctx)

	code := http.StatusOK
	overall := statusHealthy
	if healthy < len(checks) {
		code = http.StatusServiceUnavailable
		overall = statusUnhealthy
		h.log.Warn("Readiness check failed", "checks", checks)
	}

	h.writeStatus(w, code, overall, checks)
}

// HandleHealth reports detailed status: healthy when all stores answer,
// degraded (still 200) when some do, unhealthy (503) when none do.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	checks, healthy := h.runChecks(ctx)

	code := http.StatusOK
	overall := statusHealthy
	switch {
	case healthy == 0:
		overall = statusUnhealthy
		code = http.StatusServiceUnavailable
	case healthy < len(checks):
		overall = statusDegraded
	}

	h.writeStatus(w, code, overall, checks)
}

func (h *Handler) runChecks(ctx context.Context) (map[string]ComponentHealth, int) {
	results := make(map[string]ComponentHealth, len(h.checks))
	healthy := 0

	for _, check := range h.checks {
		start := time.Now()
		err := check.ping(ctx)
		elapsed := time.Since(start)

		if err != nil {
			h.log.Error("Store health check failed",
				"store", check.name, "error", err, "elapsed", elapsed)
			results[check.name] = ComponentHealth{
				Status:       statusUnhealthy,
				ResponseTime: elapsed.String(),
				Error:        err.Error(),
			}
			continue
		}

		results[check.name] = ComponentHealth{
			Status:       statusHealthy,
			ResponseTime: elapsed.String(),
		}
		healthy++
	}

	return results, healthy
}

func (h *Handler) writeStatus(w http.ResponseWriter, code int, overall string, checks map[string]ComponentHealth) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(HealthStatus{
		Status:    overall,
		Service:   h.serviceName,
		Version:   h.version,
		Uptime:    time.Since(h.startTime).String(),
		Timestamp: time.Now().Format(time.RFC3339),
		Checks:    checks,
	})
}
