package bootstrap

import (
	"time"

	"github.com/shopspring/decimal"

	chclient "resonance/internal/adapters/clickhouse"
	"resonance/internal/adapters/collector"
	"resonance/internal/adapters/config"
	"resonance/internal/adapters/embeddings"
	errnoop "resonance/internal/adapters/errors/noop"
	"resonance/internal/adapters/errors/sentry"
	"resonance/internal/adapters/generation"
	"resonance/internal/adapters/kafka"
	pgclient "resonance/internal/adapters/postgres"
	redisclient "resonance/internal/adapters/redis"
	telegramadapter "resonance/internal/adapters/telegram"
	"resonance/internal/aggregator"
	"resonance/internal/api"
	"resonance/internal/api/health"
	scriptsapi "resonance/internal/api/scripts"
	"resonance/internal/events"
	"resonance/internal/metrics"
	"resonance/internal/pipeline"
	"resonance/internal/predictor"
	"resonance/internal/ranker"
	chrepo "resonance/internal/repository/clickhouse"
	pgrepo "resonance/internal/repository/postgres"
	"resonance/internal/synthesizer"
	"resonance/pkg/errors"
	"resonance/pkg/logger"
	"resonance/pkg/telegram/adapters/tgbotapi"
	"resonance/pkg/templates"
)

// ========================================
// Phase 1: Configuration & Logging
// ========================================

// MustInitConfig loads configuration and initializes logger
func (c *Container) MustInitConfig() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}
	c.Config = cfg

	// Initialize logger
	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		panic("failed to init logger: " + err.Error())
	}

	c.Log = logger.Get()
	c.Log.Infof("Starting %s in %s mode", cfg.App.Name, cfg.App.Env)

	// Initialize error tracker
	c.ErrorTracker = provideErrorTracker(cfg, c.Log)
	logger.SetErrorTracker(c.ErrorTracker)
}

// ========================================
// Phase 2: Infrastructure Layer
// ========================================

// MustInitInfrastructure connects the data stores. Postgres holds the
// catalog and scripts, ClickHouse the sample archive, Redis the rank
// cache and cost counters; all three are required.
func (c *Container) MustInitInfrastructure() {
	stores := []struct {
		name    string
		connect func() error
	}{
		{"PostgreSQL", func() (err error) { c.PG, err = pgclient.NewClient(c.Config.Postgres); return }},
		{"ClickHouse", func() (err error) { c.CH, err = chclient.NewClient(c.Config.ClickHouse); return }},
		{"Redis", func() (err error) { c.Redis, err = redisclient.NewClient(c.Config.Redis); return }},
	}

	for _, store := range stores {
		c.Log.Infof("Connecting to %s...", store.name)
		if err := store.connect(); err != nil {
			c.Log.Fatalf("failed to connect %s: %v", store.name, err)
		}
		c.Log.Infof("✓ %s connected", store.name)
	}
}

// ========================================
// Phase 3: Domain Layer - Repositories
// ========================================

// MustInitRepositories initializes all domain repositories
func (c *Container) MustInitRepositories() {
	c.Repos.Catalog = pgrepo.NewCatalogRepository(c.PG.DB())
	c.Repos.Scripts = pgrepo.NewScriptRepository(c.PG.DB())
	c.Repos.Hooks = pgrepo.NewHookRepository(c.PG.DB())
	c.Repos.Engagement = chrepo.NewEngagementRepository(c.CH.Conn())

	c.Log.Info("✓ Repositories initialized")
}

// ========================================
// Phase 4: External Adapters
// ========================================

// MustInitAdapters initializes external adapters (Kafka, Collector, Embeddings)
func (c *Container) MustInitAdapters() {
	var err error

	// Kafka
	c.Adapters.KafkaProducer = provideKafkaProducer(c.Config, c.Log)
	c.Adapters.SampleFeedConsumer = provideKafkaConsumer(c.Config, kafka.TopicEngagementSamples, c.Log)
	if c.Config.Telegram.Enabled {
		c.Adapters.NotificationConsumer = provideKafkaConsumer(c.Config, kafka.TopicNotifications, c.Log)
	}

	// Collector HTTP client (optional - the Kafka feed works without it)
	if c.Config.Collector.BaseURL != "" {
		c.Adapters.CollectorClient, err = collector.NewClient(c.Config.Collector)
		if err != nil {
			c.Log.Fatalf("failed to create collector client: %v", err)
		}
		c.Log.Infof("✓ Collector client initialized: %s", c.Config.Collector.BaseURL)
	} else {
		c.Log.Warn("Collector base URL not configured, poll worker disabled")
	}

	// Embeddings (optional - exemplar retrieval degrades without it)
	if c.Config.AI.OpenAIKey != "" {
		c.Adapters.EmbeddingProvider, err = embeddings.NewProvider(embeddings.Config{
			Provider: embeddings.ProviderOpenAI,
			APIKey:   c.Config.AI.OpenAIKey,
			Model:    c.Config.AI.EmbeddingModel,
			Timeout:  30 * time.Second,
		})
		if err != nil {
			c.Log.Fatalf("failed to create embedding provider: %v", err)
		}
		c.Log.Infof("✓ Embedding provider initialized: %s (%d dimensions)",
			c.Adapters.EmbeddingProvider.Name(),
			c.Adapters.EmbeddingProvider.Dimensions(),
		)
	} else {
		c.Log.Warn("No embedding API key, hook retrieval falls back to effectiveness ordering")
	}
}

// ========================================
// Phase 5: Scoring & Synthesis Core
// ========================================

// MustInitCore initializes the aggregation, ranking and generation pipeline
func (c *Container) MustInitCore() {
	// In-memory decayed aggregation
	c.Core.Aggregator = aggregator.New(aggregator.Config{
		DecayLambda:  c.Config.Scoring.DecayLambda,
		DedupeWindow: c.Config.Scoring.DedupeWindow,
	}, c.Log)

	// Trend ranking over the aggregator's snapshots
	c.Core.Ranker = ranker.New(ranker.Config{
		VelocityAlpha: c.Config.Scoring.VelocityAlpha,
	}, c.Core.Aggregator, c.Log)

	c.Core.RankCache = ranker.NewRankCache(ranker.CacheConfig{
		Enabled: true,
		Bucket:  c.Config.Scoring.CacheBucket,
		TTL:     c.Config.Scoring.CacheTTL,
	}, c.Redis)

	// Engagement predictor
	c.Core.Predictor = providePredictor(c.Config, c.Log)

	// Generation providers
	registry, err := generation.BuildRegistry(c.Context, c.Config.AI)
	if err != nil {
		c.Log.Fatalf("failed to build generation registry: %v", err)
	}
	c.Core.Providers = registry
	c.Log.Infow("✓ Generation providers initialized",
		"providers", registry.List(),
		"default", c.Config.AI.DefaultProvider,
	)

	// Cost guard
	c.Core.Guard = provideCostGuard(c.Config, c.Redis, c.Log)

	// Event publisher
	c.Core.Events = events.NewPublisher(c.Adapters.KafkaProducer, c.Log)

	// Segment generator factory; the pipeline meters the provider before
	// handing it over, so cost accounting needs no wiring here
	templateRegistry := templates.Get()
	hooks := c.Repos.Hooks
	embedder := c.Adapters.EmbeddingProvider
	model := c.Config.AI.GenerationModel
	exemplars := c.Config.Synthesis.HookExemplars
	generatorFactory := func(provider generation.Provider) synthesizer.Generator {
		return synthesizer.NewLLMGenerator(provider, templateRegistry, hooks, embedder, model, exemplars)
	}

	c.Core.Pipeline, err = pipeline.New(
		pipeline.Config{
			DefaultTrendLimit: c.Config.Pipeline.DefaultTrendLimit,
			MaxVariants:       c.Config.Pipeline.MaxVariants,
			RequestTimeout:    c.Config.Pipeline.RequestTimeout,
		},
		pipeline.Deps{
			Catalog:   c.Repos.Catalog,
			Ranker:    c.Core.Ranker,
			RankCache: c.Core.RankCache,
			Predictor: c.Core.Predictor,
			Providers: c.Core.Providers,
			Generator: generatorFactory,
			SynthCfg: synthesizer.Config{
				MaxAttempts:        c.Config.Synthesis.MaxAttempts,
				MediumBodySegments: c.Config.Synthesis.MediumBodySegments,
				LongBodySegments:   c.Config.Synthesis.LongBodySegments,
			},
			Guard:   c.Core.Guard,
			Scripts: c.Repos.Scripts,
			Events:  c.Core.Events,
		},
	)
	if err != nil {
		c.Log.Fatalf("failed to build pipeline: %v", err)
	}

	c.Log.Info("✓ Scoring and synthesis core initialized")
}

// ========================================
// Phase 6: Application Layer
// ========================================

// MustInitApplication initializes application layer (HTTP, Telegram)
func (c *Container) MustInitApplication() {
	// Health handler
	c.Application.HealthHandler = health.New(
		c.Log,
		c.PG.DB(),
		c.CH.Conn(),
		c.Redis.Client(),
		c.Config.App.Name,
		c.Config.App.Version,
	)

	// Scripts handler over the pipeline
	c.Application.ScriptsHandler = scriptsapi.NewHandler(c.Core.Pipeline, c.Log)

	// Telegram bot with admin commands (optional)
	if c.Config.Telegram.Enabled && c.Config.Telegram.BotToken != "" {
		c.mustInitTelegram()
	} else {
		c.Log.Info("Telegram disabled")
	}

	// HTTP server
	workersHandler := health.NewWorkersHandler(c.Background.WorkerRegistry)
	c.Application.HTTPServer = api.NewServer(api.ServerConfig{
		Port:        c.Config.App.HTTPPort,
		ServiceName: c.Config.App.Name,
		Version:     c.Config.App.Version,
	}, c.Application.HealthHandler, c.Application.ScriptsHandler, workersHandler, c.Log)

	// Initialize metrics
	metrics.Init()
	customCollector := metrics.NewCustomCollector(c.Log, c.PG.DB(), c.CH.Conn(), c.Redis.Client())
	metrics.RegisterCustomCollector(customCollector)
	c.Log.Info("✓ Metrics initialized")

	c.Log.Info("✓ Application layer initialized")
}

// mustInitTelegram wires the long-polling bot, admin commands and the
// notification service
func (c *Container) mustInitTelegram() {
	bot, err := tgbotapi.NewBot(tgbotapi.Config{
		Token: c.Config.Telegram.BotToken,
		Debug: c.Config.App.Debug,
	}, c.Log)
	if err != nil {
		c.Log.Fatalf("failed to create telegram bot: %v", err)
	}

	adminChatID := int64(0)
	if len(c.Config.Telegram.ChatIDs) > 0 {
		adminChatID = c.Config.Telegram.ChatIDs[0]
	}

	templateAdapter := telegramadapter.NewTemplateRendererAdapter(templates.Get())
	c.Application.TelegramNotifications = telegramadapter.NewNotificationService(bot, templateAdapter, c.Log)

	registry := telegramadapter.NewAdminCommandRegistry(bot, adminChatID, telegramadapter.CommandDeps{
		Generator: c.Core.Pipeline,
		Catalog:   c.Repos.Catalog,
		Ranker:    c.Core.Ranker,
		Tracker:   c.Core.Aggregator,
		Notifier:  c.Application.TelegramNotifications,
		Log:       c.Log,
	})

	c.Application.TelegramHandler = telegramadapter.NewHandler(bot, registry, c.Log)
	bot.SetHandler(c.Application.TelegramHandler.HandleUpdate)
	c.Application.TelegramBot = bot

	c.Log.Infow("✓ Telegram bot initialized", "admin_chat", adminChatID)
}

// ========================================
// Providers (helpers)
// ========================================

func provideErrorTracker(cfg *config.Config, log *logger.Logger) errors.Tracker {
	if !cfg.ErrorTracking.Enabled || cfg.ErrorTracking.SentryDSN == "" {
		log.Info("Error tracking disabled")
		return errnoop.New()
	}

	tracker, err := sentry.New(cfg.ErrorTracking.SentryDSN, cfg.ErrorTracking.Environment)
	if err != nil {
		log.Warnf("Failed to initialize Sentry: %v", err)
		return errnoop.New()
	}

	log.Info("✓ Error tracking initialized (Sentry)")
	return tracker
}

func provideKafkaProducer(cfg *config.Config, log *logger.Logger) *kafka.Producer {
	log.Info("Initializing Kafka producer...")
	if len(cfg.Kafka.Brokers) == 0 {
		log.Warn("Kafka brokers not configured, using default localhost:9092")
		cfg.Kafka.Brokers = []string{"localhost:9092"}
	}

	producer := kafka.NewProducer(kafka.ProducerConfig{
		Brokers: cfg.Kafka.Brokers,
		Async:   false,
	})
	log.Info("✓ Kafka producer initialized")
	return producer
}

func provideKafkaConsumer(cfg *config.Config, topic string, log *logger.Logger) *kafka.Consumer {
	log.Infow("Initializing Kafka consumer", "topic", topic)
	if len(cfg.Kafka.Brokers) == 0 {
		cfg.Kafka.Brokers = []string{"localhost:9092"}
	}

	consumer := kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers: cfg.Kafka.Brokers,
		GroupID: cfg.Kafka.GroupID,
		Topic:   topic,
	})
	log.Infow("✓ Kafka consumer initialized", "topic", topic)
	return consumer
}

func providePredictor(cfg *config.Config, log *logger.Logger) predictor.Predictor {
	if cfg.Predictor.Backend == "onnx" && cfg.Predictor.ModelPath != "" {
		estimator, err := predictor.NewONNXEstimator(predictor.ONNXConfig{
			ModelPath: cfg.Predictor.ModelPath,
		}, log)
		if err != nil {
			log.Warnf("Failed to load ONNX model, falling back to heuristic: %v", err)
		} else {
			log.Infof("✓ ONNX predictor initialized: %s", cfg.Predictor.ModelPath)
			return estimator
		}
	}

	log.Info("✓ Heuristic predictor initialized")
	return predictor.NewHeuristic(predictor.HeuristicConfig{
		Seed:          cfg.Predictor.Seed,
		BaselineViews: predictor.DefaultHeuristicConfig().BaselineViews,
		BaselineRate:  predictor.DefaultHeuristicConfig().BaselineRate,
	}, log)
}

func provideCostGuard(cfg *config.Config, redis *redisclient.Client, log *logger.Logger) *pipeline.CostGuard {
	requestBudget, err := decimal.NewFromString(cfg.AI.RequestBudget)
	if err != nil {
		log.Fatalf("invalid AI_REQUEST_BUDGET %q: %v", cfg.AI.RequestBudget, err)
	}
	dailyBudget, err := decimal.NewFromString(cfg.AI.DailyBudget)
	if err != nil {
		log.Fatalf("invalid AI_DAILY_BUDGET %q: %v", cfg.AI.DailyBudget, err)
	}

	guard := pipeline.NewCostGuard(requestBudget, dailyBudget, pipeline.NewRedisCostCache(redis))
	log.Infow("✓ Cost guard initialized",
		"request_budget", requestBudget,
		"daily_budget", dailyBudget,
	)
	return guard
}
