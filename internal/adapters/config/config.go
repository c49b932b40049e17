// Package config loads service configuration from the environment via
// envconfig struct tags. A .env file is honored for local development.
package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"resonance/pkg/errors"
)

type Config struct {
	App           AppConfig
	Postgres      PostgresConfig
	ClickHouse    ClickHouseConfig
	Redis         RedisConfig
	Kafka         KafkaConfig
	Telegram      TelegramConfig
	AI            AIConfig
	Collector     CollectorConfig
	Scoring       ScoringConfig
	Predictor     PredictorConfig
	Synthesis     SynthesisConfig
	Pipeline      PipelineConfig
	ErrorTracking ErrorTrackingConfig
	Workers       WorkerConfig
}

type AppConfig struct {
	Name     string `envconfig:"APP_NAME" default:"resonance"`
	Version  string `envconfig:"APP_VERSION" default:"dev"`
	Env      string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	Debug    bool   `envconfig:"DEBUG" default:"false"`
	HTTPPort int    `envconfig:"HTTP_PORT" default:"8080"`
}

type PostgresConfig struct {
	Host     string `envconfig:"POSTGRES_HOST" required:"true"`
	Port     int    `envconfig:"POSTGRES_PORT" default:"5432"`
	User     string `envconfig:"POSTGRES_USER" required:"true"`
	Password string `envconfig:"POSTGRES_PASSWORD" required:"true"`
	Database string `envconfig:"POSTGRES_DB" required:"true"`
	SSLMode  string `envconfig:"POSTGRES_SSL_MODE" default:"disable"`
	MaxConns int    `envconfig:"POSTGRES_MAX_CONNS" default:"25"`
}

func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

type ClickHouseConfig struct {
	Host     string `envconfig:"CLICKHOUSE_HOST" required:"true"`
	Port     int    `envconfig:"CLICKHOUSE_PORT" default:"9000"`
	User     string `envconfig:"CLICKHOUSE_USER" default:"default"`
	Password string `envconfig:"CLICKHOUSE_PASSWORD"`
	Database string `envconfig:"CLICKHOUSE_DB" default:"engagement"`
}

type RedisConfig struct {
	Host     string `envconfig:"REDIS_HOST" required:"true"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type KafkaConfig struct {
	Brokers []string `envconfig:"KAFKA_BROKERS" required:"true"`
	GroupID string   `envconfig:"KAFKA_GROUP_ID" default:"resonance"`
}

type TelegramConfig struct {
	Enabled  bool    `envconfig:"TELEGRAM_ENABLED" default:"false"`
	BotToken string  `envconfig:"TELEGRAM_BOT_TOKEN"`
	ChatIDs  []int64 `envconfig:"TELEGRAM_CHAT_IDS"`
}

type AIConfig struct {
	OpenAIKey       string `envconfig:"OPENAI_API_KEY"`
	GeminiKey       string `envconfig:"GEMINI_API_KEY"`
	DefaultProvider string `envconfig:"DEFAULT_AI_PROVIDER" default:"openai"`
	GenerationModel string `envconfig:"AI_GENERATION_MODEL" default:"gpt-4o-mini"`
	EmbeddingModel  string `envconfig:"AI_EMBEDDING_MODEL" default:"text-embedding-3-small"`

	// Requests per minute across all generation calls
	RateLimitRPM int `envconfig:"AI_RATE_LIMIT_RPM" default:"60"`

	// Budgets in USD; zero disables the check
	RequestBudget string `envconfig:"AI_REQUEST_BUDGET" default:"0.25"`
	DailyBudget   string `envconfig:"AI_DAILY_BUDGET" default:"20.00"`
}

type CollectorConfig struct {
	BaseURL   string        `envconfig:"COLLECTOR_BASE_URL"`
	StreamURL string        `envconfig:"COLLECTOR_STREAM_URL"`
	APIToken  string        `envconfig:"COLLECTOR_API_TOKEN"`
	Timeout   time.Duration `envconfig:"COLLECTOR_TIMEOUT" default:"30s"`
	MaxItems  int           `envconfig:"COLLECTOR_MAX_ITEMS" default:"100"`
}

// ScoringConfig holds decay and ranking knobs.
type ScoringConfig struct {
	// DecayLambda is the exponential decay rate per second.
	DecayLambda float64 `envconfig:"SCORING_DECAY_LAMBDA" default:"0.0001"`

	// VelocityAlpha scales the velocity boost in the ranking formula.
	VelocityAlpha float64 `envconfig:"SCORING_VELOCITY_ALPHA" default:"0.5"`

	// DedupeWindow caps how many sample keys are remembered per topic.
	DedupeWindow int `envconfig:"SCORING_DEDUPE_WINDOW" default:"4096"`

	// Rank cache
	CacheBucket time.Duration `envconfig:"SCORING_CACHE_BUCKET" default:"5m"`
	CacheTTL    time.Duration `envconfig:"SCORING_CACHE_TTL" default:"5m"`
}

// PredictorConfig selects the engagement estimator backend.
type PredictorConfig struct {
	// Backend is "heuristic" or "onnx".
	Backend   string `envconfig:"PREDICTOR_BACKEND" default:"heuristic"`
	ModelPath string `envconfig:"PREDICTOR_MODEL_PATH"`

	// Seed parameterizes the heuristic's deterministic jitter.
	Seed int64 `envconfig:"PREDICTOR_SEED" default:"0"`
}

// SynthesisConfig holds the drafting state machine knobs.
type SynthesisConfig struct {
	MaxAttempts        int     `envconfig:"SYNTHESIS_MAX_ATTEMPTS" default:"3"`
	MediumBodySegments int     `envconfig:"SYNTHESIS_MEDIUM_BODY_SEGMENTS" default:"2"`
	LongBodySegments   int     `envconfig:"SYNTHESIS_LONG_BODY_SEGMENTS" default:"4"`
	HookExemplars      int     `envconfig:"SYNTHESIS_HOOK_EXEMPLARS" default:"5"`
	MinConfidence      float64 `envconfig:"SYNTHESIS_MIN_CONFIDENCE" default:"0.0"`
}

// PipelineConfig holds request-level orchestration knobs.
type PipelineConfig struct {
	DefaultTrendLimit int           `envconfig:"PIPELINE_DEFAULT_TREND_LIMIT" default:"10"`
	MaxVariants       int           `envconfig:"PIPELINE_MAX_VARIANTS" default:"5"`
	RequestTimeout    time.Duration `envconfig:"PIPELINE_REQUEST_TIMEOUT" default:"2m"`
}

type ErrorTrackingConfig struct {
	Enabled     bool   `envconfig:"ERROR_TRACKING_ENABLED" default:"true"`
	Provider    string `envconfig:"ERROR_TRACKING_PROVIDER" default:"sentry"`
	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"SENTRY_ENVIRONMENT" default:"production"`
}

// WorkerConfig sets per-worker intervals and kill switches.
type WorkerConfig struct {
	// Collector polling (ingestion)
	CollectorPollInterval time.Duration `envconfig:"WORKER_COLLECTOR_POLL_INTERVAL" default:"1m"`
	CollectorPollEnabled  bool          `envconfig:"WORKER_COLLECTOR_POLL_ENABLED" default:"true"`

	// Aggregator snapshot persistence
	StatsFlushInterval time.Duration `envconfig:"WORKER_STATS_FLUSH_INTERVAL" default:"5m"`
	StatsFlushEnabled  bool          `envconfig:"WORKER_STATS_FLUSH_ENABLED" default:"true"`

	// Hook library embedding refresh
	HookRefreshInterval time.Duration `envconfig:"WORKER_HOOK_REFRESH_INTERVAL" default:"6h"`
	HookRefreshEnabled  bool          `envconfig:"WORKER_HOOK_REFRESH_ENABLED" default:"true"`
	HookRefreshBatch    int           `envconfig:"WORKER_HOOK_REFRESH_BATCH" default:"20"`
}

// Load builds the config from the process environment. A missing .env
// file is not an error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to process env config")
	}

	return &cfg, nil
}
