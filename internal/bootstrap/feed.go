package bootstrap

import (
	"context"

	"resonance/internal/adapters/collector"
	"resonance/internal/domain/engagement"
	"resonance/pkg/clickhouse"
	"resonance/pkg/errors"
)

// SampleArchive buffers raw engagement samples and flushes them to ClickHouse
// in batches. Every ingestion path (Kafka feed, stream feed, poll worker)
// funnels its raw samples through here so history survives aggregator
// restarts.
type SampleArchive struct {
	writer *clickhouse.BatchWriter
}

// ArchiveFunc persists one flushed batch. Satisfied by the engagement
// repository's InsertSamples.
type ArchiveFunc func(ctx context.Context, samples []engagement.MetricSample) error

// NewSampleArchive creates the archive over a batch writer.
func NewSampleArchive(cfg clickhouse.BatchWriterConfig, persist ArchiveFunc) *SampleArchive {
	cfg.FlushFunc = func(ctx context.Context, batch []interface{}) error {
		samples := make([]engagement.MetricSample, 0, len(batch))
		for _, item := range batch {
			sample, ok := item.(engagement.MetricSample)
			if !ok {
				return errors.Wrapf(errors.ErrInvalidInput, "unexpected archive item %T", item)
			}
			samples = append(samples, sample)
		}
		return persist(ctx, samples)
	}

	return &SampleArchive{writer: clickhouse.NewBatchWriter(cfg)}
}

// Start launches the background flush loop.
func (a *SampleArchive) Start(ctx context.Context) {
	a.writer.Start(ctx)
}

// Stop flushes remaining samples and stops the writer.
func (a *SampleArchive) Stop(ctx context.Context) error {
	return a.writer.Stop(ctx)
}

// InsertSamples enqueues a batch. Satisfies the SampleArchive interfaces of
// the feed consumer and the poll worker.
func (a *SampleArchive) InsertSamples(ctx context.Context, samples []engagement.MetricSample) error {
	var merr errors.MultiError
	for _, sample := range samples {
		merr.Add(a.writer.Add(ctx, sample))
	}
	return merr.ToError()
}

// archivingIngester tees stream samples: raw copy to the archive, valid
// samples into the aggregator. Archive failures are not fatal to ingestion.
type archivingIngester struct {
	ingester collector.SampleIngester
	archive  *SampleArchive
}

func (i *archivingIngester) Ingest(sample engagement.MetricSample) error {
	_ = i.archive.InsertSamples(context.Background(), []engagement.MetricSample{sample})
	return i.ingester.Ingest(sample)
}

// MustInitFeed wires the sample archive and the collector stream feed
func (c *Container) MustInitFeed() {
	c.Adapters.SampleArchive = NewSampleArchive(clickhouse.BatchWriterConfig{
		Conn:      c.CH.Conn(),
		TableName: "engagement_samples",
	}, c.Repos.Engagement.InsertSamples)
	c.Log.Info("✓ Sample archive initialized")

	if c.Config.Collector.StreamURL == "" {
		c.Log.Warn("Collector stream URL not configured, stream feed disabled")
		return
	}

	feed, err := collector.NewStreamFeed(c.Config.Collector, &archivingIngester{
		ingester: c.Core.Aggregator,
		archive:  c.Adapters.SampleArchive,
	}, c.Log)
	if err != nil {
		c.Log.Fatalf("failed to create stream feed: %v", err)
	}
	c.Adapters.StreamFeed = feed
	c.Log.Infof("✓ Stream feed initialized: %s", c.Config.Collector.StreamURL)
}
