package clickhouse

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resonance/internal/domain/engagement"
	"resonance/internal/testsupport"
)

func TestEngagementRepository_Samples(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	cfg := testsupport.LoadDatabaseConfigsFromEnv(t)
	helper := testsupport.NewClickHouseTestHelper(t, cfg.ClickHouse)

	repo := NewEngagementRepository(helper.Client().Conn())
	ctx := context.Background()

	// Cleanup everything fixtures write under the default test source
	helper.RegisterTableCleanup(t, "metric_samples", "source = 'test_feed'")

	t.Run("InsertSamples_Success", func(t *testing.T) {
		topicID := testsupport.UniqueTopicID("pushups")

		viral := testsupport.NewMetricSampleFixture().
			WithTopic(topicID).
			Viral().
			Build()

		quiet := testsupport.NewMetricSampleFixture().
			WithTopic(topicID).
			Quiet().
			Build()

		err := repo.InsertSamples(ctx, []engagement.MetricSample{viral, quiet})
		require.NoError(t, err)

		var count uint64
		err = helper.Client().Query(ctx, &count,
			"SELECT count() FROM metric_samples WHERE topic_id = $1", topicID)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, count, uint64(2))
	})

	t.Run("InsertSamples_EmptySlice", func(t *testing.T) {
		err := repo.InsertSamples(ctx, []engagement.MetricSample{})
		require.NoError(t, err)
	})

	t.Run("GetSamples_WithFilters", func(t *testing.T) {
		topicID := testsupport.UniqueTopicID("planks")
		source := testsupport.UniqueSource("tiktok")
		baseTime := time.Now().Truncate(time.Second)

		samples := testsupport.NewMetricSampleFixture().
			WithTopic(topicID).
			WithSource(source).
			WithTimestamp(baseTime.Add(-3*time.Hour)).
			WithCounts(10000, 800, 120, 45).
			BuildMany(3, time.Hour) // -3h, -2h, -1h

		// Same topic under another source must not leak into filtered reads
		other := testsupport.NewMetricSampleFixture().
			WithTopic(topicID).
			WithTimestamp(baseTime.Add(-90 * time.Minute)).
			Build()

		require.NoError(t, repo.InsertSamples(ctx, append(samples, other)))

		query := engagement.SampleQuery{
			TopicID:   topicID,
			Source:    source,
			StartTime: baseTime.Add(-2*time.Hour - time.Minute),
			EndTime:   baseTime.Add(-30 * time.Minute),
			Limit:     10,
		}

		result, err := repo.GetSamples(ctx, query)
		require.NoError(t, err)
		require.Len(t, result, 2) // window drops the oldest, source drops the stray

		// Newest first
		assert.True(t, result[0].Timestamp.After(result[1].Timestamp))
		for _, s := range result {
			assert.Equal(t, source, s.Source)
			assert.Equal(t, int64(10000), s.Views)
		}
	})

	t.Run("GetSamples_LimitApplies", func(t *testing.T) {
		topicID := testsupport.UniqueTopicID("squats")

		samples := testsupport.NewMetricSampleFixture().
			WithTopic(topicID).
			WithTimestamp(time.Now().Add(-time.Hour)).
			BuildMany(5, time.Minute)

		require.NoError(t, repo.InsertSamples(ctx, samples))

		result, err := repo.GetSamples(ctx, engagement.SampleQuery{TopicID: topicID, Limit: 2})
		require.NoError(t, err)
		require.Len(t, result, 2)
	})
}

func TestEngagementRepository_StatsSnapshots(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	cfg := testsupport.LoadDatabaseConfigsFromEnv(t)
	helper := testsupport.NewClickHouseTestHelper(t, cfg.ClickHouse)

	repo := NewEngagementRepository(helper.Client().Conn())
	ctx := context.Background()

	t.Run("InsertAndGetHistory", func(t *testing.T) {
		topicID := testsupport.UniqueTopicID("deadlifts")
		baseTime := time.Now().Truncate(time.Second)

		older := testsupport.NewTopicStatsFixture().
			WithTopic(topicID).
			WithEngagement(900.0, 0.05).
			WithCapturedAt(baseTime.Add(-10 * time.Minute)).
			Build()

		newer := testsupport.NewTopicStatsFixture().
			WithTopic(topicID).
			WithEngagement(1500.0, 0.25).
			WithCapturedAt(baseTime).
			Build()

		err := repo.InsertStatsSnapshots(ctx, []engagement.TopicStats{older, newer})
		require.NoError(t, err)

		history, err := repo.GetStatsHistory(ctx, topicID, 10)
		require.NoError(t, err)
		require.Len(t, history, 2)

		// Most recent capture first
		assert.InDelta(t, 1500.0, history[0].DecayedEngagement, 0.001)
		assert.InDelta(t, 0.25, history[0].Velocity, 0.001)
		assert.InDelta(t, 900.0, history[1].DecayedEngagement, 0.001)

		// Recent weights survive the round trip
		assert.NotEmpty(t, history[0].RecentWeights)
	})

	t.Run("InsertStatsSnapshots_EmptySlice", func(t *testing.T) {
		err := repo.InsertStatsSnapshots(ctx, []engagement.TopicStats{})
		require.NoError(t, err)
	})
}

func TestEngagementRepository_WeightSeries(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	cfg := testsupport.LoadDatabaseConfigsFromEnv(t)
	helper := testsupport.NewClickHouseTestHelper(t, cfg.ClickHouse)

	repo := NewEngagementRepository(helper.Client().Conn())
	ctx := context.Background()

	topicID := testsupport.UniqueTopicID("lunges")
	baseTime := time.Now().Truncate(time.Second)

	samples := []engagement.MetricSample{
		{
			TopicID:   topicID,
			Timestamp: baseTime.Add(-2 * time.Hour),
			Views:     1000,
			Likes:     100,
			Comments:  10,
			Shares:    5,
			Source:    "test_feed",
		},
		{
			TopicID:   topicID,
			Timestamp: baseTime.Add(-1 * time.Hour),
			Views:     5000,
			Likes:     400,
			Comments:  50,
			Shares:    20,
			Source:    "test_feed",
		},
	}

	require.NoError(t, repo.InsertSamples(ctx, samples))

	series, err := repo.WeightSeries(ctx, topicID, 10)
	require.NoError(t, err)
	require.Len(t, series, 2)

	// likes + 2*comments + 3*shares, oldest first
	assert.InDelta(t, 135.0, series[0], 0.001)
	assert.InDelta(t, 560.0, series[1], 0.001)
}
