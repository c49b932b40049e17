package health

import (
	"encoding/json"
	"net/http"
	"time"

	"resonance/internal/workers"
)

// WorkerSource exposes the registered background workers.
// Satisfied by *workers.Registry.
type WorkerSource interface {
	List() []workers.WorkerWithHealth
}

// WorkersHandler reports background worker health for ops tooling.
type WorkersHandler struct {
	source WorkerSource
}

// NewWorkersHandler creates the workers health handler.
func NewWorkersHandler(source WorkerSource) *WorkersHandler {
	return &WorkersHandler{source: source}
}

// workerStatus is the JSON shape for one worker.
type workerStatus struct {
	Name        string `json:"name"`
	Enabled     bool   `json:"enabled"`
	Interval    string `json:"interval"`
	LastRun     string `json:"last_run,omitempty"`
	LastError   string `json:"last_error,omitempty"`
	RunCount    int64  `json:"run_count"`
	ErrorCount  int64  `json:"error_count"`
	AvgDuration string `json:"avg_duration"`
	IsRunning   bool   `json:"is_running"`
}

// HandleWorkers serves GET /v1/workers
func (h *WorkersHandler) HandleWorkers(w http.ResponseWriter, r *http.Request) {
	registered := h.source.List()

	statuses := make([]workerStatus, 0, len(registered))
	for _, worker := range registered {
		health := worker.Health()
		status := workerStatus{
			Name:        worker.Name(),
			Enabled:     health.Enabled,
			Interval:    worker.Interval().String(),
			RunCount:    health.RunCount,
			ErrorCount:  health.ErrorCount,
			AvgDuration: health.AvgDuration.String(),
			IsRunning:   health.IsRunning,
		}
		if !health.LastRun.IsZero() {
			status.LastRun = health.LastRun.UTC().Format(time.RFC3339)
		}
		if health.LastError != nil {
			status.LastError = health.LastError.Error()
		}
		statuses = append(statuses, status)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"workers": statuses,
		"count":   len(statuses),
	})
}
