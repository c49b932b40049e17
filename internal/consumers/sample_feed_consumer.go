package consumers

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	kafkaadapter "resonance/internal/adapters/kafka"
	"resonance/internal/domain/engagement"
	"resonance/internal/metrics"
	"resonance/pkg/errors"
	"resonance/pkg/logger"
)

// SampleIngester is the hot aggregation path samples are folded into.
// Satisfied by *aggregator.Aggregator.
type SampleIngester interface {
	Ingest(sample engagement.MetricSample) error
}

// SampleArchive persists raw samples for offline analysis.
// Satisfied by the ClickHouse engagement repository.
type SampleArchive interface {
	InsertSamples(ctx context.Context, samples []engagement.MetricSample) error
}

// SampleFeedConfig holds batching configuration for the sample feed
type SampleFeedConfig struct {
	BatchSize     int
	FlushInterval time.Duration
	StatsInterval time.Duration
}

// SampleFeedConsumer reads engagement samples from Kafka, folds them into the
// in-memory aggregator immediately and archives the raw samples to ClickHouse
// in batches. Invalid samples are logged and dropped; one broken sample never
// stops the feed.
type SampleFeedConsumer struct {
	consumer *kafkaadapter.Consumer
	ingester SampleIngester
	archive  SampleArchive
	config   SampleFeedConfig
	log      *logger.Logger

	// Batching
	mu    sync.Mutex
	batch []engagement.MetricSample

	// Statistics
	statsMu       sync.Mutex
	totalReceived int64
	totalAccepted int64
	totalDropped  int64
	totalArchived int64
	lastFlushTime time.Time
}

// NewSampleFeedConsumer creates a new sample feed consumer
func NewSampleFeedConsumer(
	consumer *kafkaadapter.Consumer,
	ingester SampleIngester,
	archive SampleArchive,
	config SampleFeedConfig,
	log *logger.Logger,
) *SampleFeedConsumer {
	if config.BatchSize <= 0 {
		config.BatchSize = 500
	}
	if config.FlushInterval <= 0 {
		config.FlushInterval = 10 * time.Second
	}
	if config.StatsInterval <= 0 {
		config.StatsInterval = time.Minute
	}

	return &SampleFeedConsumer{
		consumer:      consumer,
		ingester:      ingester,
		archive:       archive,
		config:        config,
		log:           log.With("component", "sample_feed_consumer"),
		batch:         make([]engagement.MetricSample, 0, config.BatchSize),
		lastFlushTime: time.Now(),
	}
}

// Start begins consuming sample events
func (c *SampleFeedConsumer) Start(ctx context.Context) error {
	c.log.Infow("Starting sample feed consumer",
		"batch_size", c.config.BatchSize,
		"flush_interval", c.config.FlushInterval,
	)

	lifecycle := NewBatchConsumerLifecycle(
		BatchConsumerConfig{
			ConsumerName:  "sample_feed",
			FlushInterval: c.config.FlushInterval,
			StatsInterval: c.config.StatsInterval,
			Logger:        c.log,
		},
		c.consumer,
		c, // implements BatchConsumer interface
	)

	// Setup cleanup (final flush, stats, close consumer)
	defer lifecycle.Start(ctx)()

	// Start background workers (periodic flush and stats)
	lifecycle.StartBackgroundWorkers(ctx)

	return c.consumer.Consume(ctx, c.handleMessage)
}

// handleMessage processes a single Kafka message
func (c *SampleFeedConsumer) handleMessage(ctx context.Context, msg kafkago.Message) error {
	c.statsMu.Lock()
	c.totalReceived++
	c.statsMu.Unlock()

	err := c.handleSample(ctx, msg.Value)
	metrics.RecordKafkaMessage(kafkaadapter.TopicEngagementSamples, "consumed", err)
	return err
}

// handleSample decodes, validates and routes one sample
func (c *SampleFeedConsumer) handleSample(ctx context.Context, data []byte) error {
	var sample engagement.MetricSample
	if err := json.Unmarshal(data, &sample); err != nil {
		c.recordDrop("unknown", err)
		c.log.Warnw("Undecodable sample dropped", "error", err)
		return errors.Wrap(err, "unmarshal sample")
	}

	// The aggregator validates and deduplicates; a rejected sample is logged
	// and dropped without failing the feed
	if err := c.ingester.Ingest(sample); err != nil {
		c.recordDrop(sample.Source, err)
		c.log.Warnw("Sample dropped",
			"topic_id", sample.TopicID,
			"source", sample.Source,
			"error", err,
		)
		return nil
	}

	metrics.RecordSample(sample.Source, nil)
	c.statsMu.Lock()
	c.totalAccepted++
	c.statsMu.Unlock()

	c.addToBatch(sample)

	if c.batchLen() >= c.config.BatchSize {
		return c.FlushBatch(ctx)
	}

	return nil
}

// addToBatch adds a sample to the archive batch (thread-safe)
func (c *SampleFeedConsumer) addToBatch(sample engagement.MetricSample) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.batch = append(c.batch, sample)
}

func (c *SampleFeedConsumer) batchLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.batch)
}

// FlushBatch writes buffered samples to the archive (implements BatchConsumer)
func (c *SampleFeedConsumer) FlushBatch(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.batch) == 0 {
		return nil
	}

	size := len(c.batch)
	start := time.Now()

	if err := c.archive.InsertSamples(ctx, c.batch); err != nil {
		c.log.Errorw("Failed to archive sample batch",
			"batch_size", size,
			"error", err,
		)
		// Keep the batch; the next flush retries
		return errors.Wrap(err, "insert samples to archive")
	}

	c.log.Debugw("Archived sample batch",
		"batch_size", size,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	c.statsMu.Lock()
	c.totalArchived += int64(size)
	c.lastFlushTime = time.Now()
	c.statsMu.Unlock()

	c.batch = c.batch[:0]
	return nil
}

// LogStats logs consumer statistics (implements BatchConsumer)
func (c *SampleFeedConsumer) LogStats(final bool) {
	pending := c.batchLen()

	c.statsMu.Lock()
	defer c.statsMu.Unlock()

	prefix := "Sample feed stats"
	if final {
		prefix = "Sample feed final stats"
	}

	c.log.Infow(prefix,
		"received", c.totalReceived,
		"accepted", c.totalAccepted,
		"dropped", c.totalDropped,
		"archived", c.totalArchived,
		"pending", pending,
		"last_flush", c.lastFlushTime,
	)
}

func (c *SampleFeedConsumer) recordDrop(source string, err error) {
	metrics.RecordSample(source, err)
	c.statsMu.Lock()
	c.totalDropped++
	c.statsMu.Unlock()
}
