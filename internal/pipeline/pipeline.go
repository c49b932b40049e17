package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"resonance/internal/adapters/generation"
	"resonance/internal/domain/catalog"
	"resonance/internal/domain/script"
	"resonance/internal/domain/trend"
	"resonance/internal/metrics"
	"resonance/internal/predictor"
	"resonance/internal/ranker"
	"resonance/internal/synthesizer"
	"resonance/pkg/errors"
	"resonance/pkg/logger"
)

// Config bounds request-level orchestration.
type Config struct {
	// DefaultTrendLimit caps how many ranked trends a request may burn
	// through before giving up; also the size cached rankings are computed at.
	DefaultTrendLimit int

	// MaxVariants caps how many independent syntheses one request may ask for.
	MaxVariants int

	// RequestTimeout bounds the whole request end to end.
	RequestTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.DefaultTrendLimit <= 0 {
		c.DefaultTrendLimit = 10
	}
	if c.MaxVariants <= 0 {
		c.MaxVariants = 5
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 2 * time.Minute
	}
	return c
}

// GeneratorFactory builds the segment generator for one request. The pipeline
// wraps the provider with cost metering before handing it over, so every
// completion the request makes is accounted.
type GeneratorFactory func(provider generation.Provider) synthesizer.Generator

// EventPublisher announces pipeline outcomes downstream.
type EventPublisher interface {
	PublishScriptGenerated(ctx context.Context, draft *script.Draft) error
	PublishTrendRanked(ctx context.Context, niche string, trends []trend.RankedTrend) error
}

// Deps gathers the pipeline's collaborators. Catalog, Ranker, Predictor,
// Providers and Generator are required; the rest degrade gracefully when nil.
type Deps struct {
	Catalog   catalog.Repository
	Ranker    *ranker.Ranker
	RankCache *ranker.RankCache
	Predictor predictor.Predictor
	Providers *generation.Registry
	Generator GeneratorFactory
	SynthCfg  synthesizer.Config
	Guard     *CostGuard
	Scripts   script.Repository
	Events    EventPublisher
}

// Pipeline orchestrates one generation request end to end: catalog lookup,
// trend ranking, predictor-gated synthesis with trend fallback, final
// prediction, persistence and publishing.
type Pipeline struct {
	cfg  Config
	deps Deps
	log  *logger.Logger
}

// New builds a pipeline after checking the required collaborators are wired.
func New(cfg Config, deps Deps) (*Pipeline, error) {
	if deps.Catalog == nil {
		return nil, errors.Wrap(errors.ErrInvalidInput, "catalog repository is required")
	}
	if deps.Ranker == nil {
		return nil, errors.Wrap(errors.ErrInvalidInput, "ranker is required")
	}
	if deps.Predictor == nil {
		return nil, errors.Wrap(errors.ErrInvalidInput, "predictor is required")
	}
	if deps.Providers == nil {
		return nil, errors.Wrap(errors.ErrInvalidInput, "provider registry is required")
	}
	if deps.Generator == nil {
		return nil, errors.Wrap(errors.ErrInvalidInput, "generator factory is required")
	}

	return &Pipeline{
		cfg:  cfg.withDefaults(),
		deps: deps,
		log:  logger.Get().With("component", "pipeline"),
	}, nil
}

// GenerateRequest describes one script generation request.
type GenerateRequest struct {
	Niche      string        `json:"niche"`
	Tone       script.Tone   `json:"tone"`
	Length     script.Length `json:"length"`
	TrendLimit int           `json:"trend_limit,omitempty"`
	Variants   int           `json:"variants,omitempty"`

	// Provider optionally pins a generation backend; empty uses the default.
	Provider string `json:"provider,omitempty"`
}

// Validate checks the request against the supported vocabularies.
func (r GenerateRequest) Validate() error {
	if strings.TrimSpace(r.Niche) == "" {
		return errors.Wrap(errors.ErrInvalidInput, "niche is required")
	}
	if !r.Tone.Valid() {
		return errors.Wrapf(errors.ErrInvalidInput, "unsupported tone %q", r.Tone)
	}
	if !r.Length.Valid() {
		return errors.Wrapf(errors.ErrInvalidInput, "unsupported length %q", r.Length)
	}
	if r.TrendLimit < 0 {
		return errors.Wrap(errors.ErrInvalidInput, "trend_limit must be non-negative")
	}
	if r.Variants < 0 {
		return errors.Wrap(errors.ErrInvalidInput, "variants must be non-negative")
	}
	return nil
}

func (r GenerateRequest) withDefaults(cfg Config) GenerateRequest {
	r.Niche = strings.ToLower(strings.TrimSpace(r.Niche))
	if r.TrendLimit <= 0 {
		r.TrendLimit = cfg.DefaultTrendLimit
	}
	if r.Variants <= 0 {
		r.Variants = 1
	}
	if r.Variants > cfg.MaxVariants {
		r.Variants = cfg.MaxVariants
	}
	return r
}

// GenerateResult is the outcome of one generation request, one accepted draft
// per completed variant with its prediction attached.
type GenerateResult struct {
	RequestID   uuid.UUID       `json:"request_id"`
	Niche       string          `json:"niche"`
	Scripts     []*script.Draft `json:"scripts"`
	TrendsTried int             `json:"trends_tried"`
	CostUSD     decimal.Decimal `json:"cost_usd"`
	Elapsed     time.Duration   `json:"elapsed"`
	GeneratedAt time.Time       `json:"generated_at"`
}

// Generate runs the full pipeline for one request: resolve the niche's
// topics, rank them, then synthesize against the ranked trends, falling
// through to the next trend when one is exhausted.
func (p *Pipeline) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	started := time.Now()

	if err := req.Validate(); err != nil {
		return nil, err
	}
	req = req.withDefaults(p.cfg)

	ctx, cancel := context.WithTimeout(ctx, p.cfg.RequestTimeout)
	defer cancel()

	requestID := uuid.New()
	log := p.log.With("request_id", requestID.String(), "niche", req.Niche)

	result, err := p.generate(ctx, requestID, req, log)

	metrics.RecordPipelineRequest(req.Niche, time.Since(started), err)

	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = errors.Join(
				errors.Wrap(errors.ErrPipelineTimeout, "generation request deadline exceeded"),
				err,
			)
		}
		log.Warnw("Generation request failed",
			"error", err,
			"elapsed", time.Since(started))
		return nil, err
	}

	result.Elapsed = time.Since(started)
	log.Infow("Generation request complete",
		"scripts", len(result.Scripts),
		"trends_tried", result.TrendsTried,
		"cost_usd", result.CostUSD,
		"elapsed", result.Elapsed)

	return result, nil
}

func (p *Pipeline) generate(ctx context.Context, requestID uuid.UUID, req GenerateRequest, log *logger.Logger) (*GenerateResult, error) {
	if p.deps.Guard != nil {
		if err := p.deps.Guard.CheckDailyLimit(ctx, DayKey(time.Now())); err != nil {
			return nil, err
		}
	}

	topics, err := p.deps.Catalog.TopicsForNiche(ctx, req.Niche)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve topics for niche %s", req.Niche)
	}

	ids := make([]string, 0, len(topics))
	for _, t := range topics {
		ids = append(ids, t.TopicID)
	}
	if len(ids) == 0 {
		return nil, errors.Wrapf(errors.ErrEmptyTopicSet, "niche %s has no tracked topics", req.Niche)
	}

	asOf := time.Now().UTC()
	ranked, err := p.rankedTrends(ctx, req.Niche, ids, asOf, req.TrendLimit)
	if err != nil {
		return nil, err
	}
	if len(ranked) == 0 {
		return nil, errors.Wrapf(errors.ErrEmptyTopicSet, "no qualifying trends for niche %s", req.Niche)
	}

	provider, err := p.resolveProvider(req.Provider)
	if err != nil {
		return nil, err
	}

	var meter *RequestMeter
	if p.deps.Guard != nil {
		meter = p.deps.Guard.NewRequestMeter(requestID.String())
		provider = generation.NewMeteredProvider(provider, meter)
		defer func() {
			// Spend is recorded even when the request fails; the tokens are
			// gone either way. A fresh context survives request timeout.
			recordCtx, recordCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer recordCancel()
			p.deps.Guard.RecordRequest(recordCtx, meter)
		}()
	}

	synth := synthesizer.New(p.deps.Generator(provider), p.deps.Predictor, p.deps.SynthCfg)

	result := &GenerateResult{
		RequestID:   requestID,
		Niche:       req.Niche,
		GeneratedAt: asOf,
	}

	for v := 0; v < req.Variants; v++ {
		draft, tried, err := p.synthesizeVariant(ctx, synth, ranked, req)
		if tried > result.TrendsTried {
			result.TrendsTried = tried
		}
		if err != nil {
			// A failed first variant fails the request. Once at least one
			// script exists, exhaustion, outage and budget trips return the
			// partial result; that spend is not refundable.
			if len(result.Scripts) == 0 || !partialAcceptable(err) {
				return nil, err
			}
			log.Warnw("Variant abandoned, returning partial result",
				"variant", v+1,
				"accepted", len(result.Scripts),
				"error", err)
			break
		}

		p.finalize(ctx, draft, log)
		result.Scripts = append(result.Scripts, draft)
	}

	if meter != nil {
		result.CostUSD = meter.Spent()
	}

	return result, nil
}

// synthesizeVariant walks the ranked trends until one yields an accepted
// draft. Only attempt exhaustion falls through to the next trend; collaborator
// outages, budget trips and cancellation end the walk immediately.
func (p *Pipeline) synthesizeVariant(
	ctx context.Context,
	synth *synthesizer.Synthesizer,
	ranked []trend.RankedTrend,
	req GenerateRequest,
) (*script.Draft, int, error) {
	var lastErr error

	for i, tr := range ranked {
		draft, err := synth.Run(ctx, tr, req.Niche, req.Tone, req.Length)
		if err == nil {
			metrics.SynthesisOutcomes.WithLabelValues("accepted").Inc()

			prediction, perr := p.deps.Predictor.Predict(ctx, draft.FullText(), draft.Trend, req.Niche)
			if perr != nil {
				return nil, i + 1, errors.Wrap(perr, "final prediction for accepted draft")
			}
			draft.Prediction = prediction

			return draft, i + 1, nil
		}

		lastErr = err

		if ctx.Err() != nil {
			metrics.SynthesisOutcomes.WithLabelValues("failed").Inc()
			return nil, i + 1, err
		}
		if !onlyExhausted(err) {
			metrics.SynthesisOutcomes.WithLabelValues("failed").Inc()
			return nil, i + 1, err
		}

		metrics.SynthesisOutcomes.WithLabelValues("exhausted").Inc()
		p.log.Warnw("Trend exhausted, falling through",
			"topic_id", tr.TopicID,
			"rank", tr.Rank,
			"error", err)
	}

	return nil, len(ranked), lastErr
}

// onlyExhausted reports whether the error is pure attempt exhaustion, the one
// failure mode that falls through to the next ranked trend. Exhaustion caused
// by an outage or a tripped budget carries that sentinel too and must not
// burn further trends.
func onlyExhausted(err error) bool {
	if !errors.Is(err, errors.ErrSynthesisExhausted) {
		return false
	}
	return !errors.Is(err, errors.ErrGenerationUnavailable) &&
		!errors.Is(err, errors.ErrRequestLimitExceeded) &&
		!errors.Is(err, errors.ErrDailyLimitExceeded) &&
		!errors.Is(err, errors.ErrQuotaExceeded)
}

// partialAcceptable reports whether an error ending one variant still allows
// the scripts already accepted to be returned.
func partialAcceptable(err error) bool {
	return errors.Is(err, errors.ErrSynthesisExhausted) ||
		errors.Is(err, errors.ErrGenerationUnavailable) ||
		errors.Is(err, errors.ErrRequestLimitExceeded)
}

// finalize persists and announces an accepted draft. Both are best effort:
// the request already paid for the synthesis, so bookkeeping failures only
// log.
func (p *Pipeline) finalize(ctx context.Context, draft *script.Draft, log *logger.Logger) {
	if p.deps.Scripts != nil {
		if err := p.deps.Scripts.Create(ctx, draft); err != nil {
			log.Errorw("Failed to persist script draft",
				"draft_id", draft.ID,
				"error", err)
		}
	}
	if p.deps.Events != nil {
		if err := p.deps.Events.PublishScriptGenerated(ctx, draft); err != nil {
			log.Warnw("Failed to publish script event",
				"draft_id", draft.ID,
				"error", err)
		}
	}
}

// rankedTrends ranks through the cache. Cached rankings are computed at the
// default trend limit; a request asking for more bypasses the cache rather
// than being served a truncated list.
func (p *Pipeline) rankedTrends(ctx context.Context, niche string, topics []string, asOf time.Time, limit int) ([]trend.RankedTrend, error) {
	rankStarted := time.Now()

	if p.deps.RankCache == nil || limit > p.cfg.DefaultTrendLimit {
		ranked, err := p.deps.Ranker.Rank(ctx, topics, asOf, limit)
		metrics.RecordRank(niche, time.Since(rankStarted), false)
		if err != nil {
			return nil, err
		}
		p.announceRanking(ctx, niche, ranked)
		return ranked, nil
	}

	cached, err := p.deps.RankCache.Get(ctx, niche, asOf)
	if err != nil {
		p.log.Warnw("Rank cache lookup failed", "niche", niche, "error", err)
	}
	if cached != nil {
		metrics.RecordRank(niche, time.Since(rankStarted), true)
		if len(cached) > limit {
			cached = cached[:limit]
		}
		return cached, nil
	}

	ranked, err := p.deps.Ranker.Rank(ctx, topics, asOf, p.cfg.DefaultTrendLimit)
	metrics.RecordRank(niche, time.Since(rankStarted), false)
	if err != nil {
		return nil, err
	}

	if err := p.deps.RankCache.Set(ctx, niche, asOf, ranked); err != nil {
		p.log.Warnw("Rank cache store failed", "niche", niche, "error", err)
	}
	p.announceRanking(ctx, niche, ranked)

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}

// announceRanking publishes a freshly computed ranking, best effort.
func (p *Pipeline) announceRanking(ctx context.Context, niche string, ranked []trend.RankedTrend) {
	if p.deps.Events == nil || len(ranked) == 0 {
		return
	}
	if err := p.deps.Events.PublishTrendRanked(ctx, niche, ranked); err != nil {
		p.log.Warnw("Failed to publish ranking event", "niche", niche, "error", err)
	}
}

func (p *Pipeline) resolveProvider(name string) (generation.Provider, error) {
	if name == "" {
		return p.deps.Providers.Default()
	}
	return p.deps.Providers.Get(generation.NormalizeProviderName(name))
}
