package trend

import (
	"time"

	"resonance/internal/domain/engagement"
)

// RankedTrend is one entry of a ranking result. StatsSnapshot carries the
// exact aggregates the score was computed from, so the score can be audited
// without re-reading the aggregator.
type RankedTrend struct {
	TopicID       string                `json:"topic_id"`
	Score         float64               `json:"score"`
	Rank          int                   `json:"rank"`
	StatsSnapshot engagement.TopicStats `json:"stats_snapshot"`
}

// Ranking is a scored, ordered view over a topic set at a point in time.
type Ranking struct {
	Niche     string        `json:"niche"`
	AsOf      time.Time     `json:"as_of"`
	Trends    []RankedTrend `json:"trends"`
	FromCache bool          `json:"from_cache,omitempty"`
}

// Top returns the highest ranked trend, or false when the ranking is empty.
func (r Ranking) Top() (RankedTrend, bool) {
	if len(r.Trends) == 0 {
		return RankedTrend{}, false
	}
	return r.Trends[0], true
}
