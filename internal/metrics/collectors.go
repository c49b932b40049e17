package metrics

import (
	"context"
	"time"

	"resonance/pkg/logger"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

// collectTimeout bounds one scrape's worth of store queries.
const collectTimeout = 5 * time.Second

// CustomCollector samples business-level gauges straight from the data
// stores on every scrape: script counts, catalog size, hook library
// size, archived sample volume and the daily spend counter.
type CustomCollector struct {
	log        *logger.Logger
	postgres   *sqlx.DB
	clickhouse driver.Conn
	redis      *redis.Client

	// Descriptors
	totalScripts    *prometheus.Desc
	trackedTopics   *prometheus.Desc
	hookExemplars   *prometheus.Desc
	samples24h      *prometheus.Desc
	dailySpending   *prometheus.Desc
	redisKeyspaceOK *prometheus.Desc
}

// NewCustomCollector builds the collector; any nil store simply skips
// its gauges, so partial deployments still scrape clean.
func NewCustomCollector(log *logger.Logger, postgres *sqlx.DB, clickhouse driver.Conn, redis *redis.Client) *CustomCollector {
	return &CustomCollector{
		log:        log,
		postgres:   postgres,
		clickhouse: clickhouse,
		redis:      redis,

		totalScripts: prometheus.NewDesc(
			"resonance_total_scripts",
			"Total number of stored script drafts by state",
			[]string{"state"}, nil,
		),
		trackedTopics: prometheus.NewDesc(
			"resonance_catalog_topics",
			"Active catalog topics per niche",
			[]string{"niche"}, nil,
		),
		hookExemplars: prometheus.NewDesc(
			"resonance_hook_exemplars",
			"Total number of hook library exemplars",
			nil, nil,
		),
		samples24h: prometheus.NewDesc(
			"resonance_samples_stored_24h",
			"Engagement samples persisted in the last 24h",
			nil, nil,
		),
		dailySpending: prometheus.NewDesc(
			"resonance_daily_generation_spend_usd",
			"Generation spend recorded for the current day",
			nil, nil,
		),
		redisKeyspaceOK: prometheus.NewDesc(
			"resonance_redis_up",
			"Redis reachability (0=down, 1=up)",
			nil, nil,
		),
	}
}

func (c *CustomCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, desc := range []*prometheus.Desc{
		c.totalScripts, c.trackedTopics, c.hookExemplars,
		c.samples24h, c.dailySpending, c.redisKeyspaceOK,
	} {
		ch <- desc
	}
}

func (c *CustomCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), collectTimeout)
	defer cancel()

	c.collectScriptStats(ctx, ch)
	c.collectCatalogStats(ctx, ch)
	c.collectHookStats(ctx, ch)
	c.collectSampleStats(ctx, ch)
	c.collectSpending(ctx, ch)
	c.collectRedisHealth(ctx, ch)
}

// gauge emits one const gauge sample.
func gauge(ch chan<- prometheus.Metric, desc *prometheus.Desc, value float64, labels ...string) {
	ch <- prometheus.MustNewConstMetric(desc, prometheus.GaugeValue, value, labels...)
}

func (c *CustomCollector) collectScriptStats(ctx context.Context, ch chan<- prometheus.Metric) {
	if c.postgres == nil {
		return
	}

	type scriptStat struct {
		State string `db:"state"`
		Count int    `db:"count"`
	}

	var stats []scriptStat
	err := c.postgres.SelectContext(ctx, &stats, `
		SELECT state, COUNT(*) as count
		FROM scripts
		GROUP BY state
	`)
	if err != nil {
		c.log.Error("Failed to collect script stats", "error", err)
		return
	}

	for _, stat := range stats {
		gauge(ch, c.totalScripts, float64(stat.Count), stat.State)
	}
}

func (c *CustomCollector) collectCatalogStats(ctx context.Context, ch chan<- prometheus.Metric) {
	if c.postgres == nil {
		return
	}

	type nicheStat struct {
		Niche string `db:"niche"`
		Count int    `db:"count"`
	}

	var stats []nicheStat
	err := c.postgres.SelectContext(ctx, &stats, `
		SELECT niche, COUNT(*) as count
		FROM catalog_topics
		WHERE active = true
		GROUP BY niche
	`)
	if err != nil {
		c.log.Error("Failed to collect catalog stats", "error", err)
		return
	}

	for _, stat := range stats {
		gauge(ch, c.trackedTopics, float64(stat.Count), stat.Niche)
	}
}

func (c *CustomCollector) collectHookStats(ctx context.Context, ch chan<- prometheus.Metric) {
	if c.postgres == nil {
		return
	}

	var count int
	err := c.postgres.GetContext(ctx, &count, "SELECT COUNT(*) FROM hook_exemplars")
	if err != nil {
		c.log.Error("Failed to collect hook library size", "error", err)
		return
	}

	gauge(ch, c.hookExemplars, float64(count))
}

func (c *CustomCollector) collectSampleStats(ctx context.Context, ch chan<- prometheus.Metric) {
	if c.clickhouse == nil {
		return
	}

	var count uint64
	row := c.clickhouse.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM metric_samples
		WHERE timestamp > now() - INTERVAL 24 HOUR
	`)
	if err := row.Scan(&count); err != nil {
		c.log.Error("Failed to collect sample stats", "error", err)
		return
	}

	gauge(ch, c.samples24h, float64(count))
}

func (c *CustomCollector) collectSpending(ctx context.Context, ch chan<- prometheus.Metric) {
	if c.redis == nil {
		return
	}

	key := "cost:daily:" + time.Now().UTC().Format("2006-01-02")
	val, err := c.redis.Get(ctx, key).Float64()
	if err != nil {
		// Missing key means nothing spent today
		val = 0
	}

	gauge(ch, c.dailySpending, val)
}

func (c *CustomCollector) collectRedisHealth(ctx context.Context, ch chan<- prometheus.Metric) {
	if c.redis == nil {
		return
	}

	up := 1.0
	if err := c.redis.Ping(ctx).Err(); err != nil {
		up = 0.0
	}

	gauge(ch, c.redisKeyspaceOK, up)
}

// RegisterCustomCollector adds the collector to the default registry.
func RegisterCustomCollector(collector *CustomCollector) {
	prometheus.MustRegister(collector)
}
