package clickhouse

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"resonance/internal/domain/engagement"
	"resonance/pkg/errors"
)

// Compile-time check
var _ engagement.Repository = (*EngagementRepository)(nil)

// EngagementRepository implements engagement.Repository using ClickHouse
type EngagementRepository struct {
	conn driver.Conn
}

// NewEngagementRepository creates a new engagement repository
func NewEngagementRepository(conn driver.Conn) *EngagementRepository {
	return &EngagementRepository{conn: conn}
}

// InsertSamples archives raw metric samples in batch
func (r *EngagementRepository) InsertSamples(ctx context.Context, samples []engagement.MetricSample) error {
	if len(samples) == 0 {
		return nil
	}

	batch, err := r.conn.PrepareBatch(ctx, `
		INSERT INTO metric_samples (
			topic_id, timestamp, views, likes, comments, shares, source
		)
	`)
	if err != nil {
		return errors.Wrap(err, "failed to prepare batch")
	}

	for _, sample := range samples {
		err := batch.Append(
			sample.TopicID, sample.Timestamp, sample.Views,
			sample.Likes, sample.Comments, sample.Shares, sample.Source,
		)
		if err != nil {
			return errors.Wrap(err, "failed to append sample")
		}
	}

	return batch.Send()
}

// GetSamples retrieves archived samples with query parameters
func (r *EngagementRepository) GetSamples(ctx context.Context, query engagement.SampleQuery) ([]engagement.MetricSample, error) {
	var samples []engagement.MetricSample

	sql := `
		SELECT topic_id, timestamp, views, likes, comments, shares, source
		FROM metric_samples
		WHERE topic_id = $1`

	args := []interface{}{query.TopicID}

	if query.Source != "" {
		sql += fmt.Sprintf(` AND source = $%d`, len(args)+1)
		args = append(args, query.Source)
	}

	if !query.StartTime.IsZero() {
		sql += fmt.Sprintf(` AND timestamp >= $%d`, len(args)+1)
		args = append(args, query.StartTime)
	}

	if !query.EndTime.IsZero() {
		sql += fmt.Sprintf(` AND timestamp <= $%d`, len(args)+1)
		args = append(args, query.EndTime)
	}

	sql += ` ORDER BY timestamp DESC`

	if query.Limit > 0 {
		sql += fmt.Sprintf(` LIMIT $%d`, len(args)+1)
		args = append(args, query.Limit)
	}

	err := r.conn.Select(ctx, &samples, sql, args...)
	return samples, err
}

// InsertStatsSnapshots flushes aggregated topic stats in batch
func (r *EngagementRepository) InsertStatsSnapshots(ctx context.Context, stats []engagement.TopicStats) error {
	if len(stats) == 0 {
		return nil
	}

	batch, err := r.conn.PrepareBatch(ctx, `
		INSERT INTO topic_stats_snapshots (
			topic_id, decayed_engagement, velocity, last_seen,
			sample_count, recent_weights, captured_at
		)
	`)
	if err != nil {
		return errors.Wrap(err, "failed to prepare batch")
	}

	for _, snapshot := range stats {
		err := batch.Append(
			snapshot.TopicID, snapshot.DecayedEngagement, snapshot.Velocity,
			snapshot.LastSeen, snapshot.SampleCount, snapshot.RecentWeights,
			snapshot.CapturedAt,
		)
		if err != nil {
			return errors.Wrap(err, "failed to append snapshot")
		}
	}

	return batch.Send()
}

// GetStatsHistory retrieves recent stats snapshots for a topic
func (r *EngagementRepository) GetStatsHistory(ctx context.Context, topicID string, limit int) ([]engagement.TopicStats, error) {
	var history []engagement.TopicStats

	sql := `
		SELECT topic_id, decayed_engagement, velocity, last_seen,
		       sample_count, recent_weights, captured_at
		FROM topic_stats_snapshots
		WHERE topic_id = $1
		ORDER BY captured_at DESC
		LIMIT $2`

	err := r.conn.Select(ctx, &history, sql, topicID, limit)
	return history, err
}

// WeightSeries returns the weighted engagement of each archived sample for a
// topic in ascending time order
func (r *EngagementRepository) WeightSeries(ctx context.Context, topicID string, limit int) ([]float64, error) {
	sql := `
		SELECT toFloat64(likes) * $2 + toFloat64(comments) * $3 + toFloat64(shares) * $4 AS weight
		FROM metric_samples
		WHERE topic_id = $1
		ORDER BY timestamp ASC
		LIMIT $5`

	rows, err := r.conn.Query(ctx, sql, topicID,
		engagement.LikeWeight, engagement.CommentWeight, engagement.ShareWeight, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var series []float64
	for rows.Next() {
		var weight float64
		if err := rows.Scan(&weight); err != nil {
			return nil, err
		}
		series = append(series, weight)
	}

	return series, rows.Err()
}
