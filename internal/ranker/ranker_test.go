package ranker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resonance/internal/aggregator"
	"resonance/internal/domain/engagement"
	"resonance/internal/domain/trend"
	"resonance/pkg/errors"
	"resonance/pkg/logger"
)

// Stub stats source for testing
type stubStatsSource struct {
	stats map[string]engagement.TopicStats
}

func (s *stubStatsSource) Snapshot(topicID string, asOf time.Time) (engagement.TopicStats, error) {
	stats, ok := s.stats[topicID]
	if !ok {
		return engagement.TopicStats{}, errors.ErrTopicNotTracked
	}
	return stats, nil
}

func statsFor(topic string, decayed, velocity float64, count uint64) engagement.TopicStats {
	return engagement.TopicStats{
		TopicID:           topic,
		DecayedEngagement: decayed,
		Velocity:          velocity,
		SampleCount:       count,
		LastSeen:          time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestRanker_EmptyTopicSet(t *testing.T) {
	r := New(Config{VelocityAlpha: 0.5}, &stubStatsSource{}, logger.Get())

	_, err := r.Rank(context.Background(), nil, time.Now(), 10)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrEmptyTopicSet))
}

func TestRanker_OrderIndependence(t *testing.T) {
	source := &stubStatsSource{stats: map[string]engagement.TopicStats{
		"pushups": statsFor("pushups", 400, 2, 3),
		"yoga":    statsFor("yoga", 50, 0, 1),
		"hiit":    statsFor("hiit", 220, 5, 7),
	}}
	r := New(Config{VelocityAlpha: 0.5}, source, logger.Get())
	asOf := time.Now()

	forward, err := r.Rank(context.Background(), []string{"pushups", "yoga", "hiit"}, asOf, 10)
	require.NoError(t, err)
	reversed, err := r.Rank(context.Background(), []string{"hiit", "yoga", "pushups"}, asOf, 10)
	require.NoError(t, err)

	assert.Equal(t, forward, reversed)
	for i, tr := range forward {
		assert.Equal(t, i+1, tr.Rank)
	}
}

func TestRanker_ScoreReproducibleFromSnapshot(t *testing.T) {
	source := &stubStatsSource{stats: map[string]engagement.TopicStats{
		"pushups": statsFor("pushups", 400, 2, 3),
	}}
	r := New(Config{VelocityAlpha: 0.5}, source, logger.Get())

	ranked, err := r.Rank(context.Background(), []string{"pushups"}, time.Now(), 1)
	require.NoError(t, err)
	require.Len(t, ranked, 1)

	assert.InDelta(t, Score(ranked[0].StatsSnapshot, 0.5), ranked[0].Score, 1e-12)
}

func TestRanker_LexicographicTieBreak(t *testing.T) {
	// alpha and delta carry identical stats, so their scores are computed
	// identically and tie exactly; bravo's larger count grows the log
	// denominator and ranks it last.
	source := &stubStatsSource{stats: map[string]engagement.TopicStats{
		"delta": statsFor("delta", 100, 0, 4),
		"alpha": statsFor("alpha", 100, 0, 4),
		"bravo": statsFor("bravo", 100, 0, 9),
	}}
	r := New(Config{VelocityAlpha: 0.5}, source, logger.Get())

	ranked, err := r.Rank(context.Background(), []string{"delta", "alpha", "bravo"}, time.Now(), 10)
	require.NoError(t, err)
	require.Len(t, ranked, 3)

	assert.Equal(t, "alpha", ranked[0].TopicID)
	assert.Equal(t, "delta", ranked[1].TopicID)
	assert.Equal(t, "bravo", ranked[2].TopicID)
}

func TestRanker_OrderingContract(t *testing.T) {
	mk := func(topic string, score float64, count uint64) trend.RankedTrend {
		return trend.RankedTrend{
			TopicID:       topic,
			Score:         score,
			StatsSnapshot: statsFor(topic, 0, 0, count),
		}
	}

	assert.True(t, rankedLess(mk("b", 10, 1), mk("a", 5, 9)), "higher score wins regardless of count")
	assert.True(t, rankedLess(mk("b", 10, 9), mk("a", 10, 1)), "equal score: higher sample count wins")
	assert.True(t, rankedLess(mk("a", 10, 4), mk("b", 10, 4)), "equal score and count: lexicographic topic id")
	assert.False(t, rankedLess(mk("b", 10, 4), mk("a", 10, 4)))
}

func TestRanker_LimitNeverPads(t *testing.T) {
	source := &stubStatsSource{stats: map[string]engagement.TopicStats{
		"pushups": statsFor("pushups", 400, 0, 3),
		"yoga":    statsFor("yoga", 50, 0, 1),
		"hiit":    statsFor("hiit", 220, 0, 7),
	}}
	r := New(Config{VelocityAlpha: 0.5}, source, logger.Get())

	ranked, err := r.Rank(context.Background(), []string{"pushups", "yoga", "hiit"}, time.Now(), 5)
	require.NoError(t, err)
	assert.Len(t, ranked, 3, "three qualifying topics under limit 5 return exactly 3")

	ranked, err = r.Rank(context.Background(), []string{"pushups", "yoga", "hiit"}, time.Now(), 2)
	require.NoError(t, err)
	require.Len(t, ranked, 2)
	assert.Equal(t, "pushups", ranked[0].TopicID)
}

func TestRanker_OnlyPositiveScoresQualify(t *testing.T) {
	source := &stubStatsSource{stats: map[string]engagement.TopicStats{
		"dead":     statsFor("dead", 0, 0, 10),
		"sinking":  statsFor("sinking", 100, -10, 4),
		"climbing": statsFor("climbing", 10, 1, 2),
	}}
	// alpha=0.5: sinking boost = 1 + 0.5*(-10) = -4, clamped to 0.
	r := New(Config{VelocityAlpha: 0.5}, source, logger.Get())

	ranked, err := r.Rank(context.Background(), []string{"dead", "sinking", "climbing", "unknown"}, time.Now(), 10)
	require.NoError(t, err)
	require.Len(t, ranked, 1)
	assert.Equal(t, "climbing", ranked[0].TopicID)
}

func TestRanker_PushupsBeatYogaEndToEnd(t *testing.T) {
	agg := aggregator.New(aggregator.Config{DecayLambda: 0.1}, logger.Get())
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, agg.Ingest(engagement.MetricSample{TopicID: "pushups", Timestamp: base, Likes: 100, Source: "c"}))
	require.NoError(t, agg.Ingest(engagement.MetricSample{TopicID: "pushups", Timestamp: base.Add(time.Second), Likes: 150, Source: "c"}))
	require.NoError(t, agg.Ingest(engagement.MetricSample{TopicID: "pushups", Timestamp: base.Add(2 * time.Second), Likes: 200, Source: "c"}))
	require.NoError(t, agg.Ingest(engagement.MetricSample{TopicID: "yoga", Timestamp: base.Add(2 * time.Second), Likes: 50, Source: "c"}))

	r := New(Config{VelocityAlpha: 0.5}, agg, logger.Get())
	ranked, err := r.Rank(context.Background(), []string{"pushups", "yoga"}, base.Add(2*time.Second), 2)
	require.NoError(t, err)

	require.Len(t, ranked, 2)
	assert.Equal(t, "pushups", ranked[0].TopicID)
	assert.Equal(t, 1, ranked[0].Rank)
	assert.Equal(t, "yoga", ranked[1].TopicID)
	assert.Greater(t, ranked[0].Score, ranked[1].Score)
}

func TestRankCache_BucketBoundaries(t *testing.T) {
	rc := NewRankCache(CacheConfig{Enabled: true, Bucket: 5 * time.Minute, TTL: 5 * time.Minute}, nil)

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, rc.bucketFor(base), rc.bucketFor(base.Add(4*time.Minute+59*time.Second)))
	assert.NotEqual(t, rc.bucketFor(base), rc.bucketFor(base.Add(5*time.Minute)))

	keyA := rc.buildCacheKey("fitness", rc.bucketFor(base))
	keyB := rc.buildCacheKey("cooking", rc.bucketFor(base))
	assert.NotEqual(t, keyA, keyB)
}
