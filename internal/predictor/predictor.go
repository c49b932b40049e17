package predictor

import (
	"context"

	"resonance/internal/domain/script"
	"resonance/internal/domain/trend"
)

// Predictor estimates how a candidate script text will perform against a
// ranked trend. Implementations must be pure over their declared inputs:
// identical (text, trend, niche) and seed produce identical results.
type Predictor interface {
	Predict(ctx context.Context, candidateText string, tr trend.RankedTrend, niche string) (script.PredictionResult, error)
}
