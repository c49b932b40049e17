package predictor

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"

	"resonance/internal/domain/script"
	"resonance/internal/domain/trend"
	"resonance/pkg/errors"
	"resonance/pkg/logger"
)

// HeuristicConfig holds heuristic estimator knobs.
type HeuristicConfig struct {
	// Seed parameterizes the deterministic jitter term. Identical seeds and
	// inputs produce identical predictions.
	Seed int64

	// SupportedNiches restricts the estimator; empty supports every niche.
	SupportedNiches []string

	// Baselines anchor the estimates.
	BaselineViews float64
	BaselineRate  float64
}

// DefaultHeuristicConfig returns default configuration.
func DefaultHeuristicConfig() HeuristicConfig {
	return HeuristicConfig{
		BaselineViews: 5000,
		BaselineRate:  0.05,
	}
}

// Heuristic estimates engagement from hand-built text and trend features.
// It never performs I/O: every signal derives from the candidate text, the
// trend snapshot and the configured seed.
type Heuristic struct {
	cfg HeuristicConfig
	log *logger.Logger
}

// NewHeuristic creates the heuristic estimator.
func NewHeuristic(cfg HeuristicConfig, log *logger.Logger) *Heuristic {
	if cfg.BaselineViews <= 0 {
		cfg.BaselineViews = 5000
	}
	if cfg.BaselineRate <= 0 {
		cfg.BaselineRate = 0.05
	}
	return &Heuristic{
		cfg: cfg,
		log: log.With("component", "heuristic_predictor"),
	}
}

var _ Predictor = (*Heuristic)(nil)

// Predict scores the candidate text against the trend.
func (h *Heuristic) Predict(ctx context.Context, candidateText string, tr trend.RankedTrend, niche string) (script.PredictionResult, error) {
	if err := ctx.Err(); err != nil {
		return script.PredictionResult{}, errors.Wrap(errors.ErrTimeout, "predict canceled")
	}
	if candidateText == "" {
		return script.PredictionResult{}, errors.Wrap(errors.ErrPredictionUnavailable, "empty candidate text")
	}
	if !nicheInList(niche, h.cfg.SupportedNiches) {
		return script.PredictionResult{}, errors.Wrapf(errors.ErrPredictionUnavailable, "unsupported niche %q", niche)
	}

	text := ExtractTextFeatures(candidateText)
	series, hasSeries := ComputeSeriesFeatures(tr.StatsSnapshot.RecentWeights)

	rate := h.cfg.BaselineRate
	rate += 0.004 * math.Min(float64(text.HookCues), 5)
	rate += 0.003 * math.Min(float64(text.CTACues), 3)
	if text.HasQuestion {
		rate += 0.006
	}
	if text.HasNumber {
		rate += 0.004
	}
	rate -= wordPenalty(text.Words)

	if hasSeries {
		if series.Accelerating() {
			rate += 0.008
		} else if series.Momentum < 0 {
			rate -= 0.004
		}
	}
	if v := tr.StatsSnapshot.Velocity; v > 0 {
		rate += 0.005 * math.Min(1, v/10)
	}

	rate += h.jitter(candidateText, tr.TopicID, niche)
	rate = clamp(rate, 0.001, 0.30)

	views := h.cfg.BaselineViews *
		(1 + math.Log1p(tr.StatsSnapshot.DecayedEngagement)/4) *
		(1 + rate)

	confidence := float64(tr.StatsSnapshot.SampleCount) / (float64(tr.StatsSnapshot.SampleCount) + 8)
	if !hasSeries {
		confidence *= 0.85
	}
	confidence = clamp(confidence, 0.05, 0.99)

	result := script.PredictionResult{
		ExpectedViews:          views,
		ExpectedEngagementRate: rate,
		Confidence:             confidence,
	}
	if err := result.Validate(); err != nil {
		return script.PredictionResult{}, errors.Wrap(errors.ErrPredictionUnavailable, err.Error())
	}
	return result, nil
}

// jitter derives a small deterministic perturbation from the seed and the
// declared inputs, so distinct candidates for the same trend do not tie
// while repeated calls stay reproducible.
func (h *Heuristic) jitter(text, topicID, niche string) float64 {
	hash := fnv.New64a()
	fmt.Fprintf(hash, "%d|%s|%s|%s", h.cfg.Seed, niche, topicID, text)
	bucket := hash.Sum64() % 2001
	return (float64(bucket)/1000 - 1) * 0.002
}

func wordPenalty(words int) float64 {
	const idealMin, idealMax = 8, 130
	switch {
	case words < idealMin:
		return 0.0004 * float64(idealMin-words)
	case words > idealMax:
		return math.Min(0.02, 0.0002*float64(words-idealMax))
	default:
		return 0
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
