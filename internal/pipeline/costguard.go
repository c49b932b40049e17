package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"resonance/internal/adapters/generation"
	"resonance/internal/metrics"
	"resonance/pkg/errors"
	"resonance/pkg/logger"
)

const (
	dailySpendTTL   = 48 * time.Hour
	requestSpendTTL = 1 * time.Hour
)

// CostGuard enforces hard limits on generation spending to prevent cost
// explosions. The daily budget is checked before a request starts; the
// per-request budget is enforced by the meter the guard hands out.
type CostGuard struct {
	requestBudget decimal.Decimal
	dailyBudget   decimal.Decimal
	cache         CostCache
	log           *logger.Logger
}

// CostCache provides fast access to spending data (typically Redis)
type CostCache interface {
	GetDailySpending(ctx context.Context, day string) (decimal.Decimal, error)
	IncrementDailySpending(ctx context.Context, day string, amount decimal.Decimal, ttl time.Duration) error
	SetRequestSpending(ctx context.Context, requestID string, amount decimal.Decimal, ttl time.Duration) error
}

// NewCostGuard creates a cost guard with the given budgets. A zero budget
// disables the corresponding check.
func NewCostGuard(requestBudget, dailyBudget decimal.Decimal, cache CostCache) *CostGuard {
	return &CostGuard{
		requestBudget: requestBudget,
		dailyBudget:   dailyBudget,
		cache:         cache,
		log:           logger.Get().With("component", "cost_guard"),
	}
}

// DayKey formats the bucket daily spending accumulates under.
func DayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// CheckDailyLimit checks whether today's accumulated spend has reached the
// daily budget. Returns an error when the limit is already exceeded.
func (cg *CostGuard) CheckDailyLimit(ctx context.Context, day string) error {
	if !cg.dailyBudget.IsPositive() {
		return nil
	}

	spending, err := cg.cache.GetDailySpending(ctx, day)
	if err != nil {
		// If cache fails, be conservative and allow (but log error)
		cg.log.Errorf("Failed to get daily spending from cache: %v", err)
		return nil
	}

	if spending.GreaterThanOrEqual(cg.dailyBudget) {
		cg.log.Warnf("Daily generation budget exceeded: $%s / $%s",
			spending.StringFixed(2), cg.dailyBudget.StringFixed(2))
		return errors.Wrapf(errors.ErrDailyLimitExceeded,
			"daily generation budget exceeded: $%s / $%s",
			spending.StringFixed(2), cg.dailyBudget.StringFixed(2))
	}

	// Warn if approaching limit (80%)
	threshold := cg.dailyBudget.Mul(decimal.NewFromFloat(0.80))
	if spending.GreaterThanOrEqual(threshold) {
		cg.log.Warnf("Approaching daily generation budget: $%s / $%s (80%% threshold)",
			spending.StringFixed(2), cg.dailyBudget.StringFixed(2))
	}

	return nil
}

// NewRequestMeter creates a meter that accumulates spend for one request
// against the per-request budget.
func (cg *CostGuard) NewRequestMeter(requestID string) *RequestMeter {
	return &RequestMeter{
		requestID: requestID,
		budget:    cg.requestBudget,
		spent:     decimal.Zero,
		log:       cg.log,
	}
}

// RecordRequest persists a finished meter's spend into the daily counter and
// the per-request record. Cache failures are logged, not surfaced; the money
// is already spent and the request outcome must not depend on bookkeeping.
func (cg *CostGuard) RecordRequest(ctx context.Context, meter *RequestMeter) {
	spent := meter.Spent()
	if spent.IsZero() {
		return
	}

	day := DayKey(time.Now())
	if err := cg.cache.IncrementDailySpending(ctx, day, spent, dailySpendTTL); err != nil {
		cg.log.Errorf("Failed to increment daily spending: %v", err)
	}

	if err := cg.cache.SetRequestSpending(ctx, meter.requestID, spent, requestSpendTTL); err != nil {
		cg.log.Errorf("Failed to set request spending: %v", err)
	}

	cg.log.Debugf("Recorded request %s spend: $%s over %d calls",
		meter.requestID, spent.StringFixed(4), meter.Calls())
}

// GetDailySpending returns the accumulated spend for a day bucket.
func (cg *CostGuard) GetDailySpending(ctx context.Context, day string) (decimal.Decimal, error) {
	return cg.cache.GetDailySpending(ctx, day)
}

// RemainingDailyBudget returns how much of today's budget is left.
func (cg *CostGuard) RemainingDailyBudget(ctx context.Context, day string) (decimal.Decimal, error) {
	spending, err := cg.cache.GetDailySpending(ctx, day)
	if err != nil {
		return decimal.Zero, err
	}

	remaining := cg.dailyBudget.Sub(spending)
	if remaining.LessThan(decimal.Zero) {
		remaining = decimal.Zero
	}

	return remaining, nil
}

// Ensure RequestMeter satisfies the provider decorator's recorder surface
var _ generation.UsageRecorder = (*RequestMeter)(nil)

// RequestMeter accumulates generation spend for a single pipeline request.
// It is handed to the metered provider, so every completion the request
// makes lands here.
type RequestMeter struct {
	requestID string
	budget    decimal.Decimal
	log       *logger.Logger

	mu    sync.Mutex
	spent decimal.Decimal
	calls int
}

// RecordUsage prices the completion and adds it to the request's spend.
// Returns ErrRequestLimitExceeded once the accumulated spend passes the
// budget; the call that crossed the line still counts.
func (m *RequestMeter) RecordUsage(_ context.Context, model string, usage generation.Usage) error {
	cost := CostOf(model, usage)

	m.mu.Lock()
	m.spent = m.spent.Add(cost)
	m.calls++
	spent := m.spent
	m.mu.Unlock()

	metrics.RecordGenerationCost(model, cost.InexactFloat64())

	if m.budget.IsPositive() && spent.GreaterThan(m.budget) {
		m.log.Warnf("Request %s exceeded generation budget: $%s / $%s",
			m.requestID, spent.StringFixed(4), m.budget.StringFixed(4))
		return errors.Wrapf(errors.ErrRequestLimitExceeded,
			"request generation budget exceeded: $%s / $%s",
			spent.StringFixed(4), m.budget.StringFixed(4))
	}

	return nil
}

// Spent returns the accumulated spend.
func (m *RequestMeter) Spent() decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.spent
}

// Calls returns how many completions were metered.
func (m *RequestMeter) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// modelRate holds per-1K-token prices in USD.
type modelRate struct {
	prompt     decimal.Decimal
	completion decimal.Decimal
}

var modelRates = map[string]modelRate{
	"gpt-4o-mini":      {prompt: decimal.NewFromFloat(0.00015), completion: decimal.NewFromFloat(0.0006)},
	"gpt-4o":           {prompt: decimal.NewFromFloat(0.0025), completion: decimal.NewFromFloat(0.01)},
	"gemini-2.0-flash": {prompt: decimal.NewFromFloat(0.000075), completion: decimal.NewFromFloat(0.0003)},
	"gemini-1.5-pro":   {prompt: decimal.NewFromFloat(0.00125), completion: decimal.NewFromFloat(0.005)},
}

// defaultRate is deliberately above every known model so unknown models are
// priced pessimistically.
var defaultRate = modelRate{
	prompt:     decimal.NewFromFloat(0.001),
	completion: decimal.NewFromFloat(0.002),
}

var perThousand = decimal.NewFromInt(1000)

// CostOf prices a completion's token usage in USD.
func CostOf(model string, usage generation.Usage) decimal.Decimal {
	rate, ok := modelRates[model]
	if !ok {
		rate = defaultRate
	}

	prompt := rate.prompt.Mul(decimal.NewFromInt(int64(usage.PromptTokens))).Div(perThousand)
	completion := rate.completion.Mul(decimal.NewFromInt(int64(usage.CompletionTokens))).Div(perThousand)
	return prompt.Add(completion)
}

// RedisCostCache implements CostCache using Redis
type RedisCostCache struct {
	redis RedisClient
}

// RedisClient is the minimal Redis surface cost tracking needs
type RedisClient interface {
	GetString(ctx context.Context, key string) (string, error)
	SetString(ctx context.Context, key string, value string, ttl time.Duration) error
	IncrByFloat(ctx context.Context, key string, value float64) (float64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
}

// NewRedisCostCache creates a Redis-backed cost cache
func NewRedisCostCache(redis RedisClient) *RedisCostCache {
	return &RedisCostCache{redis: redis}
}

// GetDailySpending retrieves a day's spending from Redis
func (rc *RedisCostCache) GetDailySpending(ctx context.Context, day string) (decimal.Decimal, error) {
	key := fmt.Sprintf("cost:daily:%s", day)
	val, err := rc.redis.GetString(ctx, key)
	if err != nil || val == "" {
		// Missing key means nothing spent yet
		return decimal.Zero, nil
	}

	spending, err := decimal.NewFromString(val)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "invalid spending value")
	}

	return spending, nil
}

// IncrementDailySpending adds to a day's spending using atomic increment
func (rc *RedisCostCache) IncrementDailySpending(ctx context.Context, day string, amount decimal.Decimal, ttl time.Duration) error {
	key := fmt.Sprintf("cost:daily:%s", day)

	if _, err := rc.redis.IncrByFloat(ctx, key, amount.InexactFloat64()); err != nil {
		return errors.Wrapf(err, "failed to increment spending")
	}

	if err := rc.redis.Expire(ctx, key, ttl); err != nil {
		return errors.Wrapf(err, "failed to set TTL")
	}

	return nil
}

// SetRequestSpending records the final spend of one request
func (rc *RedisCostCache) SetRequestSpending(ctx context.Context, requestID string, amount decimal.Decimal, ttl time.Duration) error {
	key := fmt.Sprintf("cost:request:%s", requestID)
	return rc.redis.SetString(ctx, key, amount.String(), ttl)
}
