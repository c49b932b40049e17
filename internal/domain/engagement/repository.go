package engagement

import (
	"context"
)

// Repository defines the interface for engagement history access (ClickHouse)
type Repository interface {
	// Sample archive
	InsertSamples(ctx context.Context, samples []MetricSample) error
	GetSamples(ctx context.Context, query SampleQuery) ([]MetricSample, error)

	// Stats snapshots (periodic flushes of hot accumulator state)
	InsertStatsSnapshots(ctx context.Context, stats []TopicStats) error
	GetStatsHistory(ctx context.Context, topicID string, limit int) ([]TopicStats, error)

	// WeightSeries returns the per-sample weighted engagement for a topic in
	// ascending time order, for feature extraction.
	WeightSeries(ctx context.Context, topicID string, limit int) ([]float64, error)
}
