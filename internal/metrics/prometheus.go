package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Worker metrics
	WorkerExecutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resonance_worker_executions_total",
			Help: "Total number of worker executions",
		},
		[]string{"worker", "status"}, // status: success|error
	)

	WorkerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "resonance_worker_duration_seconds",
			Help:    "Worker execution duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"worker"},
	)

	WorkerLastRun = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "resonance_worker_last_run_timestamp",
			Help: "Unix timestamp of last worker execution",
		},
		[]string{"worker"},
	)

	// Ingestion metrics
	SamplesIngested = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resonance_samples_ingested_total",
			Help: "Total number of engagement samples processed",
		},
		[]string{"source", "status"}, // status: accepted|dropped
	)

	IngestBatchSize = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "resonance_ingest_batch_size",
			Help:    "Number of samples per ingested batch",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
		},
	)

	// Ranking metrics
	RankDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "resonance_rank_duration_seconds",
			Help:    "Trend ranking duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2},
		},
		[]string{"niche"},
	)

	RankCacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resonance_rank_cache_lookups_total",
			Help: "Total rank cache lookups",
		},
		[]string{"niche", "outcome"}, // outcome: hit|miss
	)

	// Synthesis metrics
	SynthesisAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resonance_synthesis_attempts_total",
			Help: "Total segment generation attempts",
		},
		[]string{"segment"}, // segment: hook|body|cta
	)

	SynthesisOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resonance_synthesis_outcomes_total",
			Help: "Total synthesis runs by terminal outcome",
		},
		[]string{"outcome"}, // outcome: accepted|exhausted|failed
	)

	// Generation metrics
	GenerationCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resonance_generation_calls_total",
			Help: "Total number of text generation calls",
		},
		[]string{"provider", "model", "status"}, // status: success|error
	)

	GenerationLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "resonance_generation_latency_seconds",
			Help:    "Text generation call latency in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"provider", "model"},
	)

	GenerationTokens = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resonance_generation_tokens_total",
			Help: "Total tokens consumed by generation calls",
		},
		[]string{"model", "type"}, // type: prompt|completion
	)

	GenerationCost = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resonance_generation_cost_usd",
			Help: "Total generation cost in USD",
		},
		[]string{"model"},
	)

	// Pipeline metrics
	PipelineRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resonance_pipeline_requests_total",
			Help: "Total generation pipeline requests",
		},
		[]string{"niche", "status"}, // status: success|error
	)

	PipelineDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "resonance_pipeline_duration_seconds",
			Help:    "End to end pipeline request duration in seconds",
			Buckets: []float64{1, 2, 5, 10, 20, 30, 60, 120},
		},
		[]string{"niche"},
	)

	// Database metrics
	DBQueries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resonance_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"database", "operation", "status"}, // database: postgres|clickhouse|redis
	)

	DBQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "resonance_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2},
		},
		[]string{"database", "operation"},
	)

	// System metrics
	KafkaMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resonance_kafka_messages_total",
			Help: "Total Kafka messages produced/consumed",
		},
		[]string{"topic", "direction", "status"}, // direction: produced|consumed
	)

	FeedConnections = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "resonance_feed_connections",
			Help: "Current number of active sample feed connections",
		},
		[]string{"feed"},
	)

	FeedReconnects = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resonance_feed_reconnects_total",
			Help: "Total number of sample feed reconnect attempts",
		},
		[]string{"feed", "status"}, // status: success|failed
	)
)

// Init registers every collector with the default registry. Call once
// at startup; a second call panics on duplicate registration.
func Init() {
	prometheus.MustRegister(
		WorkerExecutions, WorkerDuration, WorkerLastRun,
		SamplesIngested, IngestBatchSize,
		RankDuration, RankCacheLookups,
		SynthesisAttempts, SynthesisOutcomes,
		GenerationCalls, GenerationLatency, GenerationTokens, GenerationCost,
		PipelineRequests, PipelineDuration,
		DBQueries, DBQueryDuration,
		KafkaMessages, FeedConnections, FeedReconnects,
	)
}

// Handler serves the /metrics scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// status maps an error to the success|error label value.
func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordWorkerExecution records one scheduler-driven worker run.
func RecordWorkerExecution(worker string, duration time.Duration, err error) {
	WorkerExecutions.WithLabelValues(worker, status(err)).Inc()
	WorkerDuration.WithLabelValues(worker).Observe(duration.Seconds())
	WorkerLastRun.WithLabelValues(worker).SetToCurrentTime()
}

// RecordSample records one processed engagement sample; a non-nil err
// means the sample was dropped by validation or dedupe.
func RecordSample(source string, err error) {
	outcome := "accepted"
	if err != nil {
		outcome = "dropped"
	}
	SamplesIngested.WithLabelValues(source, outcome).Inc()
}

// RecordRank records a ranking computation and its cache outcome.
func RecordRank(niche string, duration time.Duration, fromCache bool) {
	RankDuration.WithLabelValues(niche).Observe(duration.Seconds())

	outcome := "miss"
	if fromCache {
		outcome = "hit"
	}
	RankCacheLookups.WithLabelValues(niche, outcome).Inc()
}

// RecordGenerationCall records one provider completion call with its
// token usage.
func RecordGenerationCall(provider, model string, latency time.Duration, promptTokens, completionTokens int, err error) {
	GenerationCalls.WithLabelValues(provider, model, status(err)).Inc()
	GenerationLatency.WithLabelValues(provider, model).Observe(latency.Seconds())

	if promptTokens > 0 {
		GenerationTokens.WithLabelValues(model, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		GenerationTokens.WithLabelValues(model, "completion").Add(float64(completionTokens))
	}
}

// RecordGenerationCost adds to the per-model spend counter.
func RecordGenerationCost(model string, costUSD float64) {
	if costUSD > 0 {
		GenerationCost.WithLabelValues(model).Add(costUSD)
	}
}

// RecordPipelineRequest records one end to end generation request.
func RecordPipelineRequest(niche string, duration time.Duration, err error) {
	PipelineRequests.WithLabelValues(niche, status(err)).Inc()
	PipelineDuration.WithLabelValues(niche).Observe(duration.Seconds())
}

func RecordDBQuery(database, operation string, duration time.Duration, err error) {
	DBQueries.WithLabelValues(database, operation, status(err)).Inc()
	DBQueryDuration.WithLabelValues(database, operation).Observe(duration.Seconds())
}

func RecordKafkaMessage(topic, direction string, err error) {
	KafkaMessages.WithLabelValues(topic, direction, status(err)).Inc()
}
