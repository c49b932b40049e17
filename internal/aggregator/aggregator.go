package aggregator

import (
	"sync"
	"sync/atomic"
	"time"

	"resonance/internal/domain/engagement"
	"resonance/pkg/errors"
	"resonance/pkg/logger"
)

// Config holds decay and dedupe knobs.
type Config struct {
	// DecayLambda is the exponential forgetting rate per second.
	DecayLambda float64

	// DedupeWindow caps remembered sample keys per topic. Oldest keys are
	// evicted first; a re-delivery older than the window may be re-counted.
	DedupeWindow int
}

// Aggregator folds metric samples into per-topic time-decayed statistics.
// Each topic is an independent unit of concurrency: ingestion for one topic
// never blocks ingestion or snapshots for another.
type Aggregator struct {
	cfg Config
	log *logger.Logger

	mu     sync.RWMutex
	topics map[string]*topicState
}

// topicState is the mutable accumulator for one topic. Writers serialize on
// mu; readers load the stats pointer without locking and always observe a
// fully written record.
type topicState struct {
	mu    sync.Mutex
	stats atomic.Pointer[engagement.TopicStats]

	seen      map[engagement.SampleKey]struct{}
	seenOrder []engagement.SampleKey
}

// New creates a trend aggregator.
func New(cfg Config, log *logger.Logger) *Aggregator {
	if cfg.DedupeWindow <= 0 {
		cfg.DedupeWindow = 4096
	}
	return &Aggregator{
		cfg:    cfg,
		log:    log.With("component", "aggregator"),
		topics: make(map[string]*topicState),
	}
}

// Ingest folds one sample into the topic's accumulator. Duplicate samples
// (same topic, timestamp and source) are dropped without effect. Samples
// older than the topic's last update are folded in without advancing
// last_seen, decayed from their own timestamp to the most recent update so
// their contribution is not decayed twice.
func (a *Aggregator) Ingest(sample engagement.MetricSample) error {
	if err := sample.Validate(); err != nil {
		return err
	}

	state := a.state(sample.TopicID)

	state.mu.Lock()
	defer state.mu.Unlock()

	key := sample.Key()
	if _, dup := state.seen[key]; dup {
		a.log.Debugw("Duplicate sample dropped",
			"topic_id", sample.TopicID,
			"source", sample.Source,
			"timestamp", sample.Timestamp)
		return nil
	}

	weight := sample.Weight()
	cur := state.stats.Load()

	var next engagement.TopicStats
	switch {
	case cur == nil:
		next = engagement.TopicStats{
			TopicID:           sample.TopicID,
			DecayedEngagement: weight,
			Velocity:          0,
			LastSeen:          sample.Timestamp,
			SampleCount:       1,
			RecentWeights:     []float64{weight},
		}

	case !sample.Timestamp.Before(cur.LastSeen):
		dt := sample.Timestamp.Sub(cur.LastSeen).Seconds()
		value := engagement.Decay(cur.DecayedEngagement, a.cfg.DecayLambda, dt) + weight

		velocity := cur.Velocity
		if dt > 0 {
			velocity = (value - cur.DecayedEngagement) / dt
		}

		next = engagement.TopicStats{
			TopicID:           cur.TopicID,
			DecayedEngagement: value,
			Velocity:          velocity,
			LastSeen:          sample.Timestamp,
			SampleCount:       cur.SampleCount + 1,
			RecentWeights:     appendWeight(cur.RecentWeights, weight),
		}

	default:
		// Late arrival: decay the contribution from the sample's own
		// timestamp to the latest update, leave last_seen, velocity and the
		// weight series as they are.
		dt := cur.LastSeen.Sub(sample.Timestamp).Seconds()
		next = engagement.TopicStats{
			TopicID:           cur.TopicID,
			DecayedEngagement: cur.DecayedEngagement + engagement.Decay(weight, a.cfg.DecayLambda, dt),
			Velocity:          cur.Velocity,
			LastSeen:          cur.LastSeen,
			SampleCount:       cur.SampleCount + 1,
			RecentWeights:     cur.RecentWeights,
		}
	}

	state.stats.Store(&next)
	state.remember(key, a.cfg.DedupeWindow)
	return nil
}

// IngestBatch folds a batch, dropping invalid samples without aborting the
// rest. The returned count is the number of accepted samples; the error, if
// any, aggregates the per-sample failures.
func (a *Aggregator) IngestBatch(samples []engagement.MetricSample) (int, error) {
	var merr errors.MultiError
	accepted := 0
	for _, sample := range samples {
		if err := a.Ingest(sample); err != nil {
			a.log.Warnw("Sample dropped",
				"topic_id", sample.TopicID,
				"source", sample.Source,
				"error", err)
			merr.Add(err)
			continue
		}
		accepted++
	}
	return accepted, merr.ToError()
}

// Snapshot returns the topic's stats projected to asOf. The projection
// decays the accumulated engagement forward without mutating the stored
// record; last_seen, velocity and sample_count are reported as stored.
func (a *Aggregator) Snapshot(topicID string, asOf time.Time) (engagement.TopicStats, error) {
	a.mu.RLock()
	state, ok := a.topics[topicID]
	a.mu.RUnlock()
	if !ok {
		return engagement.TopicStats{}, errors.Wrapf(errors.ErrTopicNotTracked, "topic %s", topicID)
	}

	stats := state.stats.Load()
	if stats == nil {
		return engagement.TopicStats{}, errors.Wrapf(errors.ErrTopicNotTracked, "topic %s", topicID)
	}

	snapshot := *stats
	snapshot.DecayedEngagement = stats.DecayedAt(asOf, a.cfg.DecayLambda)
	snapshot.CapturedAt = asOf
	return snapshot, nil
}

// SnapshotAll returns projections for every tracked topic, for periodic
// persistence flushes.
func (a *Aggregator) SnapshotAll(asOf time.Time) []engagement.TopicStats {
	a.mu.RLock()
	states := make([]*topicState, 0, len(a.topics))
	for _, state := range a.topics {
		states = append(states, state)
	}
	a.mu.RUnlock()

	out := make([]engagement.TopicStats, 0, len(states))
	for _, state := range states {
		stats := state.stats.Load()
		if stats == nil {
			continue
		}
		snapshot := *stats
		snapshot.DecayedEngagement = stats.DecayedAt(asOf, a.cfg.DecayLambda)
		snapshot.CapturedAt = asOf
		out = append(out, snapshot)
	}
	return out
}

// TrackedTopics returns the ids of all topics with at least one accepted
// sample.
func (a *Aggregator) TrackedTopics() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	ids := make([]string, 0, len(a.topics))
	for id := range a.topics {
		ids = append(ids, id)
	}
	return ids
}

// state returns the accumulator for a topic, creating it on first use.
func (a *Aggregator) state(topicID string) *topicState {
	a.mu.RLock()
	state, ok := a.topics[topicID]
	a.mu.RUnlock()
	if ok {
		return state
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if state, ok = a.topics[topicID]; ok {
		return state
	}
	state = &topicState{seen: make(map[engagement.SampleKey]struct{})}
	a.topics[topicID] = state
	return state
}

// appendWeight extends the weight series into a fresh backing array so
// published snapshots stay immutable, trimming to the window.
func appendWeight(weights []float64, w float64) []float64 {
	next := make([]float64, 0, len(weights)+1)
	next = append(next, weights...)
	next = append(next, w)
	if len(next) > engagement.RecentWeightWindow {
		next = next[len(next)-engagement.RecentWeightWindow:]
	}
	return next
}

// remember records a dedupe key, evicting the oldest once the window is full.
func (s *topicState) remember(key engagement.SampleKey, window int) {
	if len(s.seenOrder) >= window {
		oldest := s.seenOrder[0]
		s.seenOrder = s.seenOrder[1:]
		delete(s.seen, oldest)
	}
	s.seen[key] = struct{}{}
	s.seenOrder = append(s.seenOrder, key)
}
