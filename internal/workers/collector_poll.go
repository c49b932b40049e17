package workers

import (
	"context"
	"sort"
	"sync"
	"time"

	"resonance/internal/domain/catalog"
	"resonance/internal/domain/engagement"
	"resonance/internal/metrics"
	"resonance/pkg/errors"
)

// SampleSource pulls recent samples from the collector HTTP API.
type SampleSource interface {
	RecentSamples(ctx context.Context, topics []string, since time.Time) ([]engagement.MetricSample, error)
}

// SampleIngester folds samples into the trend aggregator.
type SampleIngester interface {
	Ingest(sample engagement.MetricSample) error
}

// SampleArchive persists raw samples for historical analysis.
type SampleArchive interface {
	InsertSamples(ctx context.Context, samples []engagement.MetricSample) error
}

// CollectorPollWorker periodically pulls recent samples for every tracked
// topic and feeds them through the same ingest path the streaming feeds use.
// It exists for deployments where the collector exposes no stream.
type CollectorPollWorker struct {
	*BaseWorker
	source  SampleSource
	catalog catalog.Repository
	ingest  SampleIngester
	archive SampleArchive

	mu       sync.Mutex
	lastPoll time.Time
}

// NewCollectorPollWorker creates the poll worker. archive may be nil.
func NewCollectorPollWorker(
	interval time.Duration,
	enabled bool,
	source SampleSource,
	catalogRepo catalog.Repository,
	ingest SampleIngester,
	archive SampleArchive,
) *CollectorPollWorker {
	return &CollectorPollWorker{
		BaseWorker: NewBaseWorker("collector_poll", interval, enabled),
		source:     source,
		catalog:    catalogRepo,
		ingest:     ingest,
		archive:    archive,
	}
}

// Run performs one poll cycle across all active niches.
func (w *CollectorPollWorker) Run(ctx context.Context) error {
	started := time.Now()

	topics, err := w.trackedTopics(ctx)
	if err != nil {
		w.RecordError(err, time.Since(started))
		return err
	}
	if len(topics) == 0 {
		w.Log().Debug("No tracked topics, skipping poll")
		w.RecordRun(time.Since(started))
		return nil
	}

	w.mu.Lock()
	since := w.lastPoll
	w.mu.Unlock()

	samples, err := w.source.RecentSamples(ctx, topics, since)
	if err != nil {
		w.RecordError(err, time.Since(started))
		return errors.Wrap(err, "poll collector")
	}

	accepted := 0
	for _, sample := range samples {
		if err := w.ingest.Ingest(sample); err != nil {
			// Bad samples never abort the cycle.
			w.Log().Warnw("Dropping invalid sample",
				"topic_id", sample.TopicID,
				"error", err)
			metrics.RecordSample("poll", err)
			continue
		}
		accepted++
		metrics.RecordSample("poll", nil)
	}

	if w.archive != nil && len(samples) > 0 {
		if err := w.archive.InsertSamples(ctx, samples); err != nil {
			w.Log().Errorw("Failed to archive polled samples",
				"count", len(samples),
				"error", err)
		}
	}

	w.mu.Lock()
	w.lastPoll = started
	w.mu.Unlock()

	w.Log().Infow("Poll cycle complete",
		"topics", len(topics),
		"samples", len(samples),
		"accepted", accepted,
		"duration", time.Since(started))

	w.RecordRun(time.Since(started))
	return nil
}

// trackedTopics resolves the union of topics across all active niches.
// Topics shared by multiple niches are polled once.
func (w *CollectorPollWorker) trackedTopics(ctx context.Context) ([]string, error) {
	niches, err := w.catalog.ActiveNiches(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list active niches")
	}

	seen := make(map[string]struct{})
	for _, niche := range niches {
		topics, err := w.catalog.TopicsForNiche(ctx, niche)
		if err != nil {
			return nil, errors.Wrapf(err, "topics for niche %s", niche)
		}
		for _, t := range topics {
			seen[t.TopicID] = struct{}{}
		}
	}

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	return ids, nil
}
