package bootstrap

import (
	"context"
	"sync"

	chclient "resonance/internal/adapters/clickhouse"
	"resonance/internal/adapters/collector"
	"resonance/internal/adapters/config"
	"resonance/internal/adapters/embeddings"
	"resonance/internal/adapters/generation"
	"resonance/internal/adapters/kafka"
	pgclient "resonance/internal/adapters/postgres"
	redisclient "resonance/internal/adapters/redis"
	telegramadapter "resonance/internal/adapters/telegram"
	"resonance/internal/aggregator"
	"resonance/internal/api"
	"resonance/internal/api/health"
	scriptsapi "resonance/internal/api/scripts"
	"resonance/internal/consumers"
	"resonance/internal/domain/catalog"
	"resonance/internal/domain/hook"
	"resonance/internal/domain/script"
	"resonance/internal/events"
	"resonance/internal/pipeline"
	"resonance/internal/predictor"
	"resonance/internal/ranker"
	chrepo "resonance/internal/repository/clickhouse"
	"resonance/internal/workers"
	"resonance/pkg/errors"
	"resonance/pkg/logger"
	tg "resonance/pkg/telegram"
)

// Container wires every service dependency. Fields are grouped by the
// init phase that fills them; MustInit runs the phases in order.
type Container struct {
	Config       *config.Config
	Log          *logger.Logger
	ErrorTracker errors.Tracker

	// Data stores
	PG    *pgclient.Client
	CH    *chclient.Client
	Redis *redisclient.Client

	Repos       *Repositories
	Core        *Core
	Adapters    *Adapters
	Application *Application
	Background  *Background

	Lifecycle *Lifecycle
	WG        *sync.WaitGroup
	Context   context.Context
	Cancel    context.CancelFunc
}

// Repositories groups the persistence interfaces. Catalog, scripts and
// hooks live in Postgres; the raw sample archive lives in ClickHouse.
type Repositories struct {
	Catalog    catalog.Repository
	Scripts    script.Repository
	Hooks      hook.Repository
	Engagement *chrepo.EngagementRepository
}

// Core groups the scoring and synthesis components
type Core struct {
	Aggregator *aggregator.Aggregator
	Ranker     *ranker.Ranker
	RankCache  *ranker.RankCache
	Predictor  predictor.Predictor
	Providers  *generation.Registry
	Guard      *pipeline.CostGuard
	Events     *events.Publisher
	Pipeline   *pipeline.Pipeline
}

// Adapters groups clients for external systems.
type Adapters struct {
	KafkaProducer        *kafka.Producer
	SampleFeedConsumer   *kafka.Consumer
	NotificationConsumer *kafka.Consumer

	CollectorClient *collector.Client
	StreamFeed      *collector.StreamFeed
	SampleArchive   *SampleArchive

	EmbeddingProvider embeddings.Provider
}

// Application groups the request-facing surfaces: HTTP API and the
// optional Telegram ops bot.
type Application struct {
	HTTPServer            *api.Server
	HealthHandler         *health.Handler
	ScriptsHandler        *scriptsapi.Handler
	TelegramBot           tg.Bot
	TelegramHandler       *telegramadapter.Handler
	TelegramNotifications *telegramadapter.NotificationService
}

// Background groups the periodic workers and Kafka consumer loops.
type Background struct {
	WorkerScheduler *workers.Scheduler
	WorkerRegistry  *workers.Registry

	SampleFeedSvc         *consumers.SampleFeedConsumer
	ScriptNotificationSvc *consumers.ScriptNotificationConsumer
}

func NewContainer() *Container {
	ctx, cancel := context.WithCancel(context.Background())

	return &Container{
		Repos:       &Repositories{},
		Core:        &Core{},
		Adapters:    &Adapters{},
		Application: &Application{},
		Background:  &Background{},
		Lifecycle:   NewLifecycle(),
		WG:          &sync.WaitGroup{},
		Context:     ctx,
		Cancel:      cancel,
	}
}

// MustInit runs every init phase in dependency order, failing fast on
// the first error.
func (c *Container) MustInit() {
	c.MustInitConfig()
	c.MustInitInfrastructure()
	c.MustInitRepositories()
	c.MustInitAdapters()
	c.MustInitCore()
	c.MustInitFeed()
	c.MustInitWorkers()
	c.MustInitApplication()
	c.MustInitBackground()
}

// Start brings up the background machinery: archive first so every
// ingestion path can flush, then the feed, consumers, workers, Telegram
// polling, and finally the HTTP server.
func (c *Container) Start() error {
	c.Log.Info("Starting all systems...")

	if c.Adapters.SampleArchive != nil {
		c.Adapters.SampleArchive.Start(c.Context)
		c.Log.Info("✓ Sample archive started")
	}

	if c.Adapters.StreamFeed != nil {
		c.spawn("stream feed", func(ctx context.Context) error {
			return c.Adapters.StreamFeed.Start(ctx)
		})
		c.Log.Info("✓ Collector stream feed started")
	}

	c.startConsumers()

	if err := c.Background.WorkerScheduler.Start(c.Context); err != nil {
		return errors.Wrap(err, "failed to start workers")
	}

	if c.Application.TelegramBot != nil {
		c.spawn("telegram bot", func(ctx context.Context) error {
			return c.Application.TelegramBot.Start(ctx)
		})
		c.Log.Info("✓ Telegram bot started")
	}

	// Listener failure is fatal; cancel so everything else shuts down too.
	c.WG.Add(1)
	go func() {
		defer c.WG.Done()
		if err := c.Application.HTTPServer.Start(); err != nil {
			c.Log.Errorf("HTTP server failed: %v", err)
			c.Cancel()
		}
	}()

	c.Log.Info("✓ All systems operational")
	return nil
}

// spawn runs a blocking component on the container waitgroup, logging
// only failures that happen before shutdown was requested.
func (c *Container) spawn(name string, run func(context.Context) error) {
	c.WG.Add(1)
	go func() {
		defer c.WG.Done()
		if err := run(c.Context); err != nil && c.Context.Err() == nil {
			c.Log.Errorw("Background component stopped", "component", name, "error", err)
		}
	}()
}

func (c *Container) startConsumers() {
	consumerSvcs := map[string]interface {
		Start(context.Context) error
	}{}
	if c.Background.SampleFeedSvc != nil {
		consumerSvcs["sample_feed"] = c.Background.SampleFeedSvc
	}
	if c.Background.ScriptNotificationSvc != nil {
		consumerSvcs["script_notifications"] = c.Background.ScriptNotificationSvc
	}

	started := make([]string, 0, len(consumerSvcs))
	for name, svc := range consumerSvcs {
		c.spawn(name+" consumer", svc.Start)
		started = append(started, name)
	}

	c.Log.Infow("✓ Event consumers started", "consumers", started)
}

// Shutdown stops the inbound edges first (feed, Telegram polling) so
// nothing new enters mid-shutdown, then hands the rest to the lifecycle
// sequence.
func (c *Container) Shutdown() {
	c.Log.Info("Initiating graceful shutdown...")

	if c.Adapters.StreamFeed != nil {
		c.Adapters.StreamFeed.Stop()
		c.Log.Info("✓ Stream feed stopped")
	}

	if c.Application.TelegramBot != nil {
		c.Application.TelegramBot.Stop()
		c.Log.Info("✓ Telegram bot stopped")
	}

	c.Cancel()

	c.Lifecycle.Shutdown(
		c.WG,
		c.Application.HTTPServer,
		c.Background.WorkerScheduler,
		c.Adapters.SampleArchive,
		c.Adapters.KafkaProducer,
		map[string]*kafka.Consumer{
			"sample_feed":          c.Adapters.SampleFeedConsumer,
			"script_notifications": c.Adapters.NotificationConsumer,
		},
		c.PG,
		c.CH,
		c.Redis,
		c.ErrorTracker,
		c.Log,
	)
}
