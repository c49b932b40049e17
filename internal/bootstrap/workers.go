package bootstrap

import (
	"resonance/internal/consumers"
	"resonance/internal/workers"
)

// MustInitWorkers builds the worker scheduler and the health registry
func (c *Container) MustInitWorkers() {
	scheduler := workers.NewScheduler()
	registry := workers.NewRegistry()
	cfg := c.Config.Workers

	register := func(w workers.WorkerWithHealth) {
		scheduler.RegisterWorker(w)
		if err := registry.Register(w); err != nil {
			c.Log.Fatalf("failed to register worker %s: %v", w.Name(), err)
		}
	}

	// Collector polling only runs when the HTTP client is configured; the
	// Kafka feed and stream feed cover ingestion otherwise
	if c.Adapters.CollectorClient != nil {
		register(workers.NewCollectorPollWorker(
			cfg.CollectorPollInterval,
			cfg.CollectorPollEnabled,
			c.Adapters.CollectorClient,
			c.Repos.Catalog,
			c.Core.Aggregator,
			c.Adapters.SampleArchive,
		))
	}

	register(workers.NewStatsFlushWorker(
		cfg.StatsFlushInterval,
		cfg.StatsFlushEnabled,
		c.Core.Aggregator,
		c.Repos.Engagement,
	))

	register(workers.NewHookRefreshWorker(
		cfg.HookRefreshInterval,
		cfg.HookRefreshEnabled,
		cfg.HookRefreshBatch,
		c.Config.Synthesis.MinConfidence,
		c.Repos.Catalog,
		c.Repos.Scripts,
		c.Repos.Hooks,
		c.Adapters.EmbeddingProvider,
	))

	c.Background.WorkerScheduler = scheduler
	c.Background.WorkerRegistry = registry
	c.Log.Infow("✓ Workers registered", "count", registry.Count())
}

// MustInitBackground initializes event consumers
func (c *Container) MustInitBackground() {
	// Sample feed consumer: Kafka samples into the aggregator plus archive
	c.Background.SampleFeedSvc = consumers.NewSampleFeedConsumer(
		c.Adapters.SampleFeedConsumer,
		c.Core.Aggregator,
		c.Adapters.SampleArchive,
		consumers.SampleFeedConfig{},
		c.Log,
	)

	// Script notification consumer: finished scripts to the admin chat
	if c.Application.TelegramNotifications != nil && len(c.Config.Telegram.ChatIDs) > 0 {
		c.Background.ScriptNotificationSvc = consumers.NewScriptNotificationConsumer(
			c.Adapters.NotificationConsumer,
			c.Application.TelegramNotifications,
			c.Config.Telegram.ChatIDs[0],
			c.Log,
		)
	}

	c.Log.Info("✓ Background processing initialized")
}
