package engagement

import (
	"time"

	"resonance/pkg/errors"
)

// Weight multipliers for engagement events. Shares signal the strongest
// intent, comments sit between shares and likes.
const (
	LikeWeight    = 1.0
	CommentWeight = 2.0
	ShareWeight   = 3.0
)

// MetricSample is one engagement observation for a topic, as delivered by a
// collector. Samples may arrive late or duplicated across sources.
type MetricSample struct {
	TopicID   string    `json:"topic_id" ch:"topic_id"`
	Timestamp time.Time `json:"timestamp" ch:"timestamp"`
	Views     int64     `json:"views" ch:"views"`
	Likes     int64     `json:"likes" ch:"likes"`
	Comments  int64     `json:"comments" ch:"comments"`
	Shares    int64     `json:"shares" ch:"shares"`
	Source    string    `json:"source" ch:"source"`
}

// Weight returns the weighted engagement contribution of the sample.
func (s MetricSample) Weight() float64 {
	return LikeWeight*float64(s.Likes) + CommentWeight*float64(s.Comments) + ShareWeight*float64(s.Shares)
}

// Key identifies a sample for deduplication. Two samples with the same key
// describe the same observation, regardless of delivery order.
func (s MetricSample) Key() SampleKey {
	return SampleKey{TopicID: s.TopicID, Timestamp: s.Timestamp.UnixNano(), Source: s.Source}
}

// Validate checks structural invariants. Violations are reported as
// field-level validation errors chained to ErrInvalidSample.
func (s MetricSample) Validate() error {
	if s.TopicID == "" {
		return errors.Wrap(errors.ErrInvalidSample, "topic_id is empty")
	}
	if s.Timestamp.IsZero() {
		return errors.Wrapf(errors.ErrInvalidSample, "topic %s: timestamp is zero", s.TopicID)
	}
	if s.Views < 0 || s.Likes < 0 || s.Comments < 0 || s.Shares < 0 {
		return errors.Wrapf(errors.ErrInvalidSample,
			"topic %s: negative counts (views=%d likes=%d comments=%d shares=%d)",
			s.TopicID, s.Views, s.Likes, s.Comments, s.Shares)
	}
	return nil
}

// SampleKey is the dedupe identity of a sample.
type SampleKey struct {
	TopicID   string
	Timestamp int64
	Source    string
}

// RecentWeightWindow bounds the per-topic weight series kept on snapshots.
const RecentWeightWindow = 32

// TopicStats is the aggregated view of one topic's engagement. Snapshots are
// immutable; the aggregator replaces the whole record on every update.
// RecentWeights holds the weighted contributions of the latest in-order
// updates, oldest first, for momentum feature extraction.
type TopicStats struct {
	TopicID           string    `json:"topic_id" ch:"topic_id"`
	DecayedEngagement float64   `json:"decayed_engagement" ch:"decayed_engagement"`
	Velocity          float64   `json:"velocity" ch:"velocity"`
	LastSeen          time.Time `json:"last_seen" ch:"last_seen"`
	SampleCount       uint64    `json:"sample_count" ch:"sample_count"`
	RecentWeights     []float64 `json:"recent_weights,omitempty" ch:"recent_weights"`
	CapturedAt        time.Time `json:"captured_at" ch:"captured_at"`
}

// DecayedAt projects the decayed engagement forward to asOf without mutating
// the stats. Timestamps at or before LastSeen return the stored value.
func (t TopicStats) DecayedAt(asOf time.Time, lambda float64) float64 {
	dt := asOf.Sub(t.LastSeen).Seconds()
	if dt <= 0 {
		return t.DecayedEngagement
	}
	return t.DecayedEngagement * decayFactor(lambda, dt)
}

// SampleQuery selects historical samples from the archive.
type SampleQuery struct {
	TopicID   string
	Source    string
	StartTime time.Time
	EndTime   time.Time
	Limit     int
}
