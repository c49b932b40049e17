package scripts

import (
	"context"
	"encoding/json"
	"net/http"

	"resonance/internal/pipeline"
	"resonance/pkg/errors"
	"resonance/pkg/logger"
)

// Generator is the pipeline surface the handler depends on.
type Generator interface {
	Generate(ctx context.Context, req pipeline.GenerateRequest) (*pipeline.GenerateResult, error)
}

// Handler serves the script generation endpoint.
type Handler struct {
	generator Generator
	log       *logger.Logger
}

// NewHandler creates the scripts handler.
func NewHandler(generator Generator, log *logger.Logger) *Handler {
	return &Handler{
		generator: generator,
		log:       log.With("component", "scripts_api"),
	}
}

// errorResponse is the structured error payload for every failure path.
type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// HandleGenerate serves POST /v1/scripts/generate.
func (h *Handler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", "invalid_input")
		return
	}

	var req pipeline.GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body: "+err.Error(), "invalid_input")
		return
	}

	result, err := h.generator.Generate(r.Context(), req)
	if err != nil {
		status, kind := classify(err)
		h.log.Warnw("Generation request rejected",
			"niche", req.Niche,
			"status", status,
			"kind", kind,
			"error", err)
		writeError(w, status, err.Error(), kind)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(result); err != nil {
		h.log.Errorw("Failed to encode generation response", "error", err)
	}
}

// classify maps pipeline sentinels onto HTTP statuses. Timeout and
// exhaustion stay distinct so callers can tell "too slow" from "no good
// content found".
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, errors.ErrInvalidInput) || errors.Is(err, errors.ErrInvalidSample):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, errors.ErrEmptyTopicSet):
		return http.StatusNotFound, "empty_topic_set"
	case errors.Is(err, errors.ErrPipelineTimeout):
		return http.StatusGatewayTimeout, "pipeline_timeout"
	case errors.Is(err, errors.ErrGenerationUnavailable):
		return http.StatusBadGateway, "generation_unavailable"
	case errors.Is(err, errors.ErrPredictionUnavailable):
		return http.StatusUnprocessableEntity, "prediction_unavailable"
	case errors.Is(err, errors.ErrSynthesisExhausted):
		return http.StatusServiceUnavailable, "synthesis_exhausted"
	case errors.Is(err, errors.ErrDailyLimitExceeded) || errors.Is(err, errors.ErrRequestLimitExceeded):
		return http.StatusTooManyRequests, "budget_exceeded"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func writeError(w http.ResponseWriter, status int, message, kind string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: message, Kind: kind})
}
