package predictor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resonance/internal/domain/engagement"
	"resonance/internal/domain/trend"
	"resonance/pkg/errors"
	"resonance/pkg/logger"
)

func testTrend(weights []float64) trend.RankedTrend {
	return trend.RankedTrend{
		TopicID: "pushups",
		Score:   317.4,
		Rank:    1,
		StatsSnapshot: engagement.TopicStats{
			TopicID:           "pushups",
			DecayedEngagement: 417.6,
			Velocity:          140.5,
			SampleCount:       3,
			LastSeen:          time.Date(2025, 6, 1, 12, 0, 2, 0, time.UTC),
			RecentWeights:     weights,
		},
	}
}

func TestHeuristic_DeterministicForSameSeed(t *testing.T) {
	cfg := DefaultHeuristicConfig()
	cfg.Seed = 42
	h := NewHeuristic(cfg, logger.Get())

	text := "Why your pushups aren't working. Try this for 30 days."
	first, err := h.Predict(context.Background(), text, testTrend(nil), "fitness")
	require.NoError(t, err)
	second, err := h.Predict(context.Background(), text, testTrend(nil), "fitness")
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestHeuristic_SeedChangesJitterOnly(t *testing.T) {
	cfgA := DefaultHeuristicConfig()
	cfgA.Seed = 1
	cfgB := DefaultHeuristicConfig()
	cfgB.Seed = 2

	text := "Why your pushups aren't working. Try this for 30 days."
	a, err := NewHeuristic(cfgA, logger.Get()).Predict(context.Background(), text, testTrend(nil), "fitness")
	require.NoError(t, err)
	b, err := NewHeuristic(cfgB, logger.Get()).Predict(context.Background(), text, testTrend(nil), "fitness")
	require.NoError(t, err)

	assert.InDelta(t, a.ExpectedEngagementRate, b.ExpectedEngagementRate, 0.005)
	assert.Equal(t, a.Confidence, b.Confidence)
}

func TestHeuristic_ConfidenceWithinBounds(t *testing.T) {
	h := NewHeuristic(DefaultHeuristicConfig(), logger.Get())

	tr := testTrend(nil)
	tr.StatsSnapshot.SampleCount = 1
	result, err := h.Predict(context.Background(), "Quick tip to fix your squat form today.", tr, "fitness")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, result.Confidence, 0.0)
	assert.LessOrEqual(t, result.Confidence, 1.0)

	tr.StatsSnapshot.SampleCount = 100000
	result, err = h.Predict(context.Background(), "Quick tip to fix your squat form today.", tr, "fitness")
	require.NoError(t, err)
	assert.LessOrEqual(t, result.Confidence, 1.0)
}

func TestHeuristic_UnsupportedNiche(t *testing.T) {
	cfg := DefaultHeuristicConfig()
	cfg.SupportedNiches = []string{"fitness", "cooking"}
	h := NewHeuristic(cfg, logger.Get())

	_, err := h.Predict(context.Background(), "some text", testTrend(nil), "quantum-finance")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrPredictionUnavailable))

	_, err = h.Predict(context.Background(), "some text", testTrend(nil), "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrPredictionUnavailable))
}

func TestHeuristic_EmptyTextUnavailable(t *testing.T) {
	h := NewHeuristic(DefaultHeuristicConfig(), logger.Get())

	_, err := h.Predict(context.Background(), "", testTrend(nil), "fitness")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrPredictionUnavailable))
}

func TestHeuristic_HookCuesLiftRate(t *testing.T) {
	h := NewHeuristic(DefaultHeuristicConfig(), logger.Get())

	flat, err := h.Predict(context.Background(),
		"a plain statement about nothing in particular here now", testTrend(nil), "fitness")
	require.NoError(t, err)

	hooked, err := h.Predict(context.Background(),
		"Why you never fix your form? Stop this mistake before your next set, try 3 reps and follow for more.",
		testTrend(nil), "fitness")
	require.NoError(t, err)

	assert.Greater(t, hooked.ExpectedEngagementRate, flat.ExpectedEngagementRate)
}

func TestHeuristic_MomentumBonusFromSeries(t *testing.T) {
	h := NewHeuristic(DefaultHeuristicConfig(), logger.Get())
	text := "How to build your first workout habit. Save this and try it."

	rising := make([]float64, 0, 16)
	for i := 0; i < 16; i++ {
		rising = append(rising, float64(10+i*12))
	}
	falling := make([]float64, 0, 16)
	for i := 0; i < 16; i++ {
		falling = append(falling, float64(200-i*12))
	}

	up, err := h.Predict(context.Background(), text, testTrend(rising), "fitness")
	require.NoError(t, err)
	down, err := h.Predict(context.Background(), text, testTrend(falling), "fitness")
	require.NoError(t, err)

	assert.Greater(t, up.ExpectedEngagementRate, down.ExpectedEngagementRate)
}

func TestHeuristic_CancelledContext(t *testing.T) {
	h := NewHeuristic(DefaultHeuristicConfig(), logger.Get())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.Predict(ctx, "some text", testTrend(nil), "fitness")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrTimeout))
}

func TestExtractTextFeatures(t *testing.T) {
	f := ExtractTextFeatures("Why do your pushups fail? Try 3 sets. Follow for more!")

	assert.True(t, f.HasQuestion)
	assert.True(t, f.HasNumber)
	assert.Equal(t, 3, f.Sentences)
	assert.GreaterOrEqual(t, f.HookCues, 2, "why + your")
	assert.GreaterOrEqual(t, f.CTACues, 2, "try + follow")
}

func TestComputeSeriesFeatures_RequiresWindow(t *testing.T) {
	_, ok := ComputeSeriesFeatures([]float64{1, 2, 3})
	assert.False(t, ok)

	weights := make([]float64, 16)
	for i := range weights {
		weights[i] = float64(i + 1)
	}
	features, ok := ComputeSeriesFeatures(weights)
	require.True(t, ok)
	assert.Greater(t, features.EMAFast, features.EMASlow, "monotonic rise keeps the fast EMA above the slow")
	assert.Greater(t, features.Momentum, 0.0)
	assert.True(t, features.Accelerating())
}
