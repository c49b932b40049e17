package workers

import (
	"context"
	"time"

	"resonance/internal/domain/engagement"
	"resonance/pkg/errors"
)

// SnapshotSource exposes the aggregator's hot per-topic statistics.
type SnapshotSource interface {
	SnapshotAll(asOf time.Time) []engagement.TopicStats
}

// StatsSink persists snapshot batches.
type StatsSink interface {
	InsertStatsSnapshots(ctx context.Context, stats []engagement.TopicStats) error
}

// StatsFlushWorker periodically persists the aggregator's in-memory topic
// statistics to ClickHouse, so trend history survives restarts and feeds
// offline analysis. The accumulators themselves stay in memory; the flush
// is a read-only snapshot pass.
type StatsFlushWorker struct {
	*BaseWorker
	source SnapshotSource
	sink   StatsSink
}

// NewStatsFlushWorker creates the snapshot flusher.
func NewStatsFlushWorker(interval time.Duration, enabled bool, source SnapshotSource, sink StatsSink) *StatsFlushWorker {
	return &StatsFlushWorker{
		BaseWorker: NewBaseWorker("stats_flush", interval, enabled),
		source:     source,
		sink:       sink,
	}
}

// Run flushes one snapshot batch.
func (w *StatsFlushWorker) Run(ctx context.Context) error {
	started := time.Now()

	stats := w.source.SnapshotAll(started.UTC())
	if len(stats) == 0 {
		w.Log().Debug("No topic stats to flush")
		w.RecordRun(time.Since(started))
		return nil
	}

	if err := w.sink.InsertStatsSnapshots(ctx, stats); err != nil {
		w.RecordError(err, time.Since(started))
		return errors.Wrapf(err, "flush %d topic snapshots", len(stats))
	}

	w.Log().Infow("Topic stats flushed",
		"topics", len(stats),
		"duration", time.Since(started))

	w.RecordRun(time.Since(started))
	return nil
}
