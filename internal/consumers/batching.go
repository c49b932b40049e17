package consumers

import (
	"context"
	"time"

	"resonance/internal/adapters/kafka"
	"resonance/pkg/logger"
)

// BatchConsumer is a consumer that buffers messages and persists them
// in batches. The sample feed consumer implements it for ClickHouse.
type BatchConsumer interface {
	// FlushBatch persists whatever is currently buffered.
	FlushBatch(ctx context.Context) error

	// LogStats reports throughput counters; final marks the shutdown
	// summary line.
	LogStats(final bool)
}

// BatchConsumerConfig configures the flush and stats cadence.
type BatchConsumerConfig struct {
	ConsumerName  string
	FlushInterval time.Duration
	StatsInterval time.Duration
	Logger        *logger.Logger
}

// BatchConsumerLifecycle ties a batch consumer to its Kafka reader:
// periodic flushing and stats while running, then final flush, final
// stats and reader close on shutdown.
type BatchConsumerLifecycle struct {
	config        BatchConsumerConfig
	kafkaConsumer *kafka.Consumer
	batchConsumer BatchConsumer
}

func NewBatchConsumerLifecycle(
	config BatchConsumerConfig,
	kafkaConsumer *kafka.Consumer,
	batchConsumer BatchConsumer,
) *BatchConsumerLifecycle {
	return &BatchConsumerLifecycle{
		config:        config,
		kafkaConsumer: kafkaConsumer,
		batchConsumer: batchConsumer,
	}
}

// Start logs the lifecycle startup and returns the shutdown function.
// The caller defers it around its consume loop:
//
//	cleanup := lifecycle.Start(ctx)
//	defer cleanup()
//	lifecycle.StartBackgroundWorkers(ctx)
//	return consumer.Consume(ctx, handle)
func (l *BatchConsumerLifecycle) Start(ctx context.Context) func() {
	l.config.Logger.Infow("Starting batch consumer lifecycle",
		"consumer", l.config.ConsumerName,
		"flush_interval", l.config.FlushInterval,
		"stats_interval", l.config.StatsInterval,
	)
	return l.shutdown
}

// StartBackgroundWorkers runs the periodic flush and stats loop until
// the context is cancelled.
func (l *BatchConsumerLifecycle) StartBackgroundWorkers(ctx context.Context) {
	go l.run(ctx)
}

func (l *BatchConsumerLifecycle) run(ctx context.Context) {
	flush := time.NewTicker(l.config.FlushInterval)
	defer flush.Stop()
	stats := time.NewTicker(l.config.StatsInterval)
	defer stats.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-flush.C:
			if err := l.batchConsumer.FlushBatch(ctx); err != nil {
				l.config.Logger.Error("Periodic flush failed",
					"consumer", l.config.ConsumerName,
					"error", err,
				)
			}
		case <-stats.C:
			l.batchConsumer.LogStats(false)
		}
	}
}

// shutdown drains the buffer and closes the reader. The consume context
// is already cancelled at this point, so the final flush runs on a
// fresh background context.
func (l *BatchConsumerLifecycle) shutdown() {
	l.config.Logger.Infow("Closing batch consumer", "consumer", l.config.ConsumerName)

	if err := l.batchConsumer.FlushBatch(context.Background()); err != nil {
		l.config.Logger.Error("Failed to flush final batch",
			"consumer", l.config.ConsumerName,
			"error", err,
		)
	}

	l.batchConsumer.LogStats(true)

	if err := l.kafkaConsumer.Close(); err != nil {
		l.config.Logger.Error("Failed to close Kafka consumer",
			"consumer", l.config.ConsumerName,
			"error", err,
		)
		return
	}
	l.config.Logger.Infow("✓ Batch consumer closed", "consumer", l.config.ConsumerName)
}
