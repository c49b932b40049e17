package testsupport

import (
	"context"
	"fmt"
	"testing"
	"time"

	"resonance/internal/adapters/clickhouse"
	"resonance/internal/adapters/config"
	"resonance/internal/domain/engagement"
)

// Insert statements for the shared engagement tables, matched to the
// column order AppendStruct expects.
const (
	InsertMetricSamples = `
		INSERT INTO metric_samples (
			topic_id, timestamp, views, likes, comments, shares, source
		)
	`

	InsertTopicStatsSnapshots = `
		INSERT INTO topic_stats_snapshots (
			topic_id, decayed_engagement, velocity, last_seen,
			sample_count, recent_weights, captured_at
		)
	`
)

// ClickHouseTestHelper owns a ClickHouse connection for integration
// tests and the cleanup hooks that keep shared tables tidy.
type ClickHouseTestHelper struct {
	client *clickhouse.Client
}

func NewClickHouseTestHelper(t *testing.T, cfg config.ClickHouseConfig) *ClickHouseTestHelper {
	t.Helper()

	client, err := clickhouse.NewClient(cfg)
	if err != nil {
		t.Fatalf("failed to connect to clickhouse: %v", err)
	}

	t.Cleanup(func() { _ = client.Close() })
	return &ClickHouseTestHelper{client: client}
}

// Client exposes the raw connection for direct queries.
func (h *ClickHouseTestHelper) Client() *clickhouse.Client { return h.client }

// CreateTempTable makes a uniquely named MergeTree table and schedules
// its drop for test cleanup.
func (h *ClickHouseTestHelper) CreateTempTable(t *testing.T, schema string) string {
	t.Helper()

	table := fmt.Sprintf("tmp_test_%d", time.Now().UnixNano())
	ddl := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s) ENGINE = MergeTree() ORDER BY tuple()", table, schema)

	if err := h.client.Exec(context.Background(), ddl); err != nil {
		t.Fatalf("failed to create clickhouse table: %v", err)
	}

	t.Cleanup(func() { _ = h.CleanupTable(context.Background(), table) })
	return table
}

// CleanupTable drops the table immediately.
func (h *ClickHouseTestHelper) CleanupTable(ctx context.Context, table string) error {
	return h.client.Exec(ctx, "DROP TABLE IF EXISTS "+table)
}

// RegisterTableCleanup deletes matching rows after the test, for shared
// tables that must not be dropped. Uses lightweight DELETE because
// ALTER TABLE DELETE mutations are asynchronous.
func (h *ClickHouseTestHelper) RegisterTableCleanup(t *testing.T, table, condition string) {
	t.Helper()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = h.client.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE %s", table, condition))
	})
}

// CreateBatch inserts fixtures through the batch API.
// Usage: testsupport.CreateBatch(t, helper, testsupport.InsertMetricSamples, samples)
func CreateBatch[T any](t *testing.T, helper *ClickHouseTestHelper, insertQuery string, items []T) {
	t.Helper()

	if len(items) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	batch, err := helper.client.Conn().PrepareBatch(ctx, insertQuery)
	if err != nil {
		t.Fatalf("failed to prepare batch: %v", err)
	}
	for _, item := range items {
		if err := batch.AppendStruct(&item); err != nil {
			t.Fatalf("failed to append item to batch: %v", err)
		}
	}
	if err := batch.Send(); err != nil {
		t.Fatalf("failed to send batch: %v", err)
	}
}

// MetricSampleFixture builds test samples; the default is a moderately
// engaged observation from the test feed.
type MetricSampleFixture struct {
	sample engagement.MetricSample
}

func NewMetricSampleFixture() *MetricSampleFixture {
	return &MetricSampleFixture{
		sample: engagement.MetricSample{
			TopicID:   "topic_test",
			Timestamp: time.Now().UTC().Truncate(time.Second),
			Views:     10000,
			Likes:     800,
			Comments:  120,
			Shares:    45,
			Source:    "test_feed",
		},
	}
}

func (f *MetricSampleFixture) WithTopic(topicID string) *MetricSampleFixture {
	f.sample.TopicID = topicID
	return f
}

func (f *MetricSampleFixture) WithTimestamp(t time.Time) *MetricSampleFixture {
	f.sample.Timestamp = t
	return f
}

func (f *MetricSampleFixture) WithCounts(views, likes, comments, shares int64) *MetricSampleFixture {
	f.sample.Views = views
	f.sample.Likes = likes
	f.sample.Comments = comments
	f.sample.Shares = shares
	return f
}

func (f *MetricSampleFixture) WithSource(source string) *MetricSampleFixture {
	f.sample.Source = source
	return f
}

// Viral scales the sample to breakout engagement levels.
func (f *MetricSampleFixture) Viral() *MetricSampleFixture {
	return f.WithCounts(2_000_000, 180_000, 25_000, 40_000)
}

// Quiet scales the sample down to barely-noticed levels.
func (f *MetricSampleFixture) Quiet() *MetricSampleFixture {
	return f.WithCounts(300, 12, 1, 0)
}

func (f *MetricSampleFixture) Build() engagement.MetricSample {
	return f.sample
}

// BuildMany creates samples spaced by interval, oldest first.
func (f *MetricSampleFixture) BuildMany(count int, interval time.Duration) []engagement.MetricSample {
	samples := make([]engagement.MetricSample, count)
	for i := range samples {
		sample := f.sample
		sample.Timestamp = f.sample.Timestamp.Add(time.Duration(i) * interval)
		samples[i] = sample
	}
	return samples
}

// GrowingSeries builds a sample series whose counts are multiplied by
// growth at every step; growth above 1.0 models an accelerating topic.
func (f *MetricSampleFixture) GrowingSeries(count int, interval time.Duration, growth float64) []engagement.MetricSample {
	samples := make([]engagement.MetricSample, count)
	scale := 1.0
	for i := range samples {
		sample := f.sample
		sample.Timestamp = f.sample.Timestamp.Add(time.Duration(i) * interval)
		sample.Views = int64(float64(f.sample.Views) * scale)
		sample.Likes = int64(float64(f.sample.Likes) * scale)
		sample.Comments = int64(float64(f.sample.Comments) * scale)
		sample.Shares = int64(float64(f.sample.Shares) * scale)
		samples[i] = sample
		scale *= growth
	}
	return samples
}

// TopicStatsFixture builds aggregation snapshots for repository tests.
type TopicStatsFixture struct {
	stats engagement.TopicStats
}

func NewTopicStatsFixture() *TopicStatsFixture {
	now := time.Now().UTC().Truncate(time.Second)
	return &TopicStatsFixture{
		stats: engagement.TopicStats{
			TopicID:           "topic_test",
			DecayedEngagement: 1500.0,
			Velocity:          0.1,
			LastSeen:          now,
			SampleCount:       24,
			RecentWeights:     []float64{900, 1100, 1250, 1500},
			CapturedAt:        now,
		},
	}
}

func (f *TopicStatsFixture) WithTopic(topicID string) *TopicStatsFixture {
	f.stats.TopicID = topicID
	return f
}

func (f *TopicStatsFixture) WithEngagement(decayed, velocity float64) *TopicStatsFixture {
	f.stats.DecayedEngagement = decayed
	f.stats.Velocity = velocity
	return f
}

func (f *TopicStatsFixture) WithLastSeen(t time.Time) *TopicStatsFixture {
	f.stats.LastSeen = t
	return f
}

func (f *TopicStatsFixture) WithSampleCount(count uint64) *TopicStatsFixture {
	f.stats.SampleCount = count
	return f
}

// WithRecentWeights sets the recent weight series, oldest first.
func (f *TopicStatsFixture) WithRecentWeights(weights ...float64) *TopicStatsFixture {
	f.stats.RecentWeights = weights
	return f
}

func (f *TopicStatsFixture) WithCapturedAt(t time.Time) *TopicStatsFixture {
	f.stats.CapturedAt = t
	return f
}

func (f *TopicStatsFixture) Build() engagement.TopicStats {
	return f.stats
}
