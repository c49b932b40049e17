package ranker

import (
	"context"
	"math"
	"sort"
	"time"

	"resonance/internal/domain/engagement"
	"resonance/internal/domain/trend"
	"resonance/pkg/errors"
	"resonance/pkg/logger"
)

// StatsSource supplies topic stats projected to a point in time.
type StatsSource interface {
	Snapshot(topicID string, asOf time.Time) (engagement.TopicStats, error)
}

// Config holds ranking knobs.
type Config struct {
	// VelocityAlpha scales the acceleration bonus in the score.
	VelocityAlpha float64
}

// Ranker scores and orders topics by decayed engagement.
type Ranker struct {
	cfg    Config
	source StatsSource
	log    *logger.Logger
}

// New creates a trend ranker over a stats source.
func New(cfg Config, source StatsSource, log *logger.Logger) *Ranker {
	return &Ranker{
		cfg:    cfg,
		source: source,
		log:    log.With("component", "ranker"),
	}
}

// Score computes the ranking score from a stats snapshot alone. The log
// denominator dampens topics with few samples; the velocity term rewards
// accelerating topics and is clamped so a collapsing topic scores zero
// rather than negative.
func Score(stats engagement.TopicStats, alpha float64) float64 {
	boost := 1 + alpha*stats.Velocity
	if boost < 0 {
		boost = 0
	}
	return stats.DecayedEngagement * boost / math.Log(float64(stats.SampleCount)+math.E)
}

// Rank scores the topic set as of the given time and returns the qualifying
// topics (score > 0) best first, at most limit entries. Ties break by higher
// sample count, then lexicographic topic id. Topics without accumulator
// state are skipped. The output never pads to limit.
func (r *Ranker) Rank(ctx context.Context, topics []string, asOf time.Time, limit int) ([]trend.RankedTrend, error) {
	if len(topics) == 0 {
		return nil, errors.ErrEmptyTopicSet
	}

	seen := make(map[string]struct{}, len(topics))
	ranked := make([]trend.RankedTrend, 0, len(topics))

	for _, topicID := range topics {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(errors.ErrTimeout, "rank canceled")
		}
		if _, dup := seen[topicID]; dup {
			continue
		}
		seen[topicID] = struct{}{}

		stats, err := r.source.Snapshot(topicID, asOf)
		if err != nil {
			if errors.Is(err, errors.ErrTopicNotTracked) {
				continue
			}
			return nil, errors.Wrapf(err, "snapshot topic %s", topicID)
		}

		score := Score(stats, r.cfg.VelocityAlpha)
		if score <= 0 {
			continue
		}

		ranked = append(ranked, trend.RankedTrend{
			TopicID:       topicID,
			Score:         score,
			StatsSnapshot: stats,
		})
	}

	sort.Slice(ranked, func(i, j int) bool {
		return rankedLess(ranked[i], ranked[j])
	})

	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	for i := range ranked {
		ranked[i].Rank = i + 1
	}

	r.log.Debugw("Ranked topics",
		"requested", len(topics),
		"qualified", len(ranked),
		"as_of", asOf)

	return ranked, nil
}

// rankedLess orders by score descending, then sample count descending, then
// topic id ascending.
func rankedLess(a, b trend.RankedTrend) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.StatsSnapshot.SampleCount != b.StatsSnapshot.SampleCount {
		return a.StatsSnapshot.SampleCount > b.StatsSnapshot.SampleCount
	}
	return a.TopicID < b.TopicID
}
