package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resonance/internal/adapters/generation"
	"resonance/internal/domain/catalog"
	"resonance/internal/domain/engagement"
	"resonance/internal/domain/script"
	"resonance/internal/domain/trend"
	"resonance/internal/ranker"
	"resonance/internal/synthesizer"
	"resonance/pkg/errors"
	"resonance/pkg/logger"
)

type stubCatalog struct {
	mu     sync.Mutex
	topics map[string][]catalog.Topic
	calls  int
}

func (s *stubCatalog) TopicsForNiche(_ context.Context, niche string) ([]catalog.Topic, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.topics[niche], nil
}

func (s *stubCatalog) ActiveNiches(context.Context) ([]string, error) { return nil, nil }

func (s *stubCatalog) Upsert(context.Context, catalog.Topic) error { return nil }

func (s *stubCatalog) Deactivate(context.Context, string, string) error { return nil }

func (s *stubCatalog) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type stubStats struct {
	stats map[string]engagement.TopicStats
}

func (s *stubStats) Snapshot(topicID string, _ time.Time) (engagement.TopicStats, error) {
	st, ok := s.stats[topicID]
	if !ok {
		return engagement.TopicStats{}, errors.Wrapf(errors.ErrTopicNotTracked, "topic %s", topicID)
	}
	return st, nil
}

// scriptedPredictor replays engagement rates call by call, repeating the last
// one. failAt makes the n-th call return err.
type scriptedPredictor struct {
	mu     sync.Mutex
	rates  []float64
	calls  int
	failAt int
	err    error
}

func (p *scriptedPredictor) Predict(_ context.Context, _ string, _ trend.RankedTrend, _ string) (script.PredictionResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++

	if p.failAt > 0 && p.calls >= p.failAt {
		return script.PredictionResult{}, p.err
	}

	rate := 0.05
	if len(p.rates) > 0 {
		idx := p.calls - 1
		if idx >= len(p.rates) {
			idx = len(p.rates) - 1
		}
		rate = p.rates[idx]
	}

	return script.PredictionResult{
		ExpectedViews:          1200,
		ExpectedEngagementRate: rate,
		Confidence:             0.8,
	}, nil
}

func (p *scriptedPredictor) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// countingGenerator proposes fixed text per segment kind. err fails every
// call; block waits for cancellation instead of answering.
type countingGenerator struct {
	mu    sync.Mutex
	calls map[script.SegmentKind]int
	err   error
	block bool
}

func newCountingGenerator() *countingGenerator {
	return &countingGenerator{calls: make(map[script.SegmentKind]int)}
}

func (g *countingGenerator) Propose(ctx context.Context, kind script.SegmentKind, _ *script.Draft, _ script.Tone, _ string) (synthesizer.Proposal, error) {
	if g.block {
		<-ctx.Done()
		return synthesizer.Proposal{}, ctx.Err()
	}

	g.mu.Lock()
	g.calls[kind]++
	g.mu.Unlock()

	if g.err != nil {
		return synthesizer.Proposal{}, g.err
	}

	if kind == script.SegmentCTA {
		return synthesizer.Proposal{Text: "Follow for more", Title: "Test Script"}, nil
	}
	return synthesizer.Proposal{Text: string(kind) + " text"}, nil
}

func (g *countingGenerator) callsFor(kind script.SegmentKind) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[kind]
}

// providerGenerator routes proposals through the provider so the metering
// decorator is exercised.
type providerGenerator struct {
	provider generation.Provider
}

func (g *providerGenerator) Propose(ctx context.Context, kind script.SegmentKind, _ *script.Draft, _ script.Tone, _ string) (synthesizer.Proposal, error) {
	resp, err := g.provider.Complete(ctx, generation.Request{
		Model:  "gpt-4o-mini",
		Prompt: string(kind),
	})
	if err != nil {
		return synthesizer.Proposal{}, err
	}
	return synthesizer.Proposal{Text: resp.Text}, nil
}

type stubProvider struct {
	usage generation.Usage
}

func (s *stubProvider) Name() generation.ProviderName { return "stub" }

func (s *stubProvider) Complete(_ context.Context, req generation.Request) (*generation.Response, error) {
	return &generation.Response{
		Text:  "generated " + req.Prompt,
		Model: req.Model,
		Usage: s.usage,
	}, nil
}

func fitnessTopics(score ...string) map[string][]catalog.Topic {
	topics := make([]catalog.Topic, 0, len(score))
	for _, id := range score {
		topics = append(topics, catalog.Topic{
			Niche:   "fitness",
			TopicID: id,
			Label:   id,
			Active:  true,
			AddedAt: time.Now().UTC(),
		})
	}
	return map[string][]catalog.Topic{"fitness": topics}
}

// statsFor gives each topic a descending score so ranking order follows the
// argument order.
func statsFor(ids ...string) *stubStats {
	stats := make(map[string]engagement.TopicStats, len(ids))
	engagementValue := 100.0
	for _, id := range ids {
		stats[id] = engagement.TopicStats{
			TopicID:           id,
			DecayedEngagement: engagementValue,
			Velocity:          0,
			LastSeen:          time.Now().UTC(),
			SampleCount:       10,
		}
		engagementValue /= 2
	}
	return &stubStats{stats: stats}
}

type testDeps struct {
	catalog   *stubCatalog
	predictor *scriptedPredictor
	generator *countingGenerator
	registry  *generation.Registry
}

func newTestPipeline(t *testing.T, cfg Config, d testDeps) *Pipeline {
	t.Helper()

	if d.registry == nil {
		d.registry = generation.NewRegistry()
		require.NoError(t, d.registry.Register(&stubProvider{}))
	}

	ids := make([]string, 0)
	for _, topics := range d.catalog.topics {
		for _, topic := range topics {
			ids = append(ids, topic.TopicID)
		}
	}

	rk := ranker.New(ranker.Config{VelocityAlpha: 0.5}, statsFor(ids...), logger.Get())

	p, err := New(cfg, Deps{
		Catalog:   d.catalog,
		Ranker:    rk,
		Predictor: d.predictor,
		Providers: d.registry,
		Generator: func(generation.Provider) synthesizer.Generator { return d.generator },
	})
	require.NoError(t, err)
	return p
}

func shortRequest() GenerateRequest {
	return GenerateRequest{
		Niche:  "fitness",
		Tone:   script.ToneMotivational,
		Length: script.LengthShort,
	}
}

func TestGenerateShortProducesSingleHookBodyCTA(t *testing.T) {
	cat := &stubCatalog{topics: fitnessTopics("pushups")}
	pred := &scriptedPredictor{rates: []float64{0.05, 0.06, 0.07, 0.07}}
	gen := newCountingGenerator()

	p := newTestPipeline(t, Config{}, testDeps{catalog: cat, predictor: pred, generator: gen})

	result, err := p.Generate(context.Background(), shortRequest())
	require.NoError(t, err)
	require.Len(t, result.Scripts, 1)

	draft := result.Scripts[0]
	assert.Equal(t, script.StateAccepted, draft.State)
	require.Len(t, draft.Segments, 3)
	assert.Equal(t, script.SegmentHook, draft.Segments[0].Kind)
	assert.Equal(t, script.SegmentBody, draft.Segments[1].Kind)
	assert.Equal(t, script.SegmentCTA, draft.Segments[2].Kind)

	assert.Equal(t, "pushups", draft.TopicID)
	assert.Equal(t, 1, result.TrendsTried)
	assert.InDelta(t, 0.07, draft.Prediction.ExpectedEngagementRate, 1e-9)
	assert.NotEqual(t, uuid.Nil, result.RequestID)
}

func TestGenerateFallsThroughToNextTrendOnExhaustion(t *testing.T) {
	cat := &stubCatalog{topics: fitnessTopics("planks", "pushups")}
	// planks: hook accepted at 0.05, then every body candidate rated below it.
	// pushups: clean run.
	pred := &scriptedPredictor{rates: []float64{
		0.05, 0.04, 0.03, 0.02,
		0.05, 0.06, 0.07, 0.07,
	}}
	gen := newCountingGenerator()

	p := newTestPipeline(t, Config{}, testDeps{catalog: cat, predictor: pred, generator: gen})

	result, err := p.Generate(context.Background(), shortRequest())
	require.NoError(t, err)
	require.Len(t, result.Scripts, 1)

	assert.Equal(t, "pushups", result.Scripts[0].TopicID)
	assert.Equal(t, 2, result.TrendsTried)
	assert.Equal(t, 2, gen.callsFor(script.SegmentHook))
}

func TestGenerateRespectsTrendLimit(t *testing.T) {
	cat := &stubCatalog{topics: fitnessTopics("a", "b", "c")}
	// Every trend's body segments are rejected until exhaustion.
	pred := &scriptedPredictor{rates: []float64{
		0.05, 0.01, 0.01, 0.01,
		0.05, 0.01, 0.01, 0.01,
	}}
	gen := newCountingGenerator()

	p := newTestPipeline(t, Config{}, testDeps{catalog: cat, predictor: pred, generator: gen})

	req := shortRequest()
	req.TrendLimit = 2

	_, err := p.Generate(context.Background(), req)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrSynthesisExhausted)
	assert.NotErrorIs(t, err, errors.ErrGenerationUnavailable)

	assert.Equal(t, 2, gen.callsFor(script.SegmentHook), "only trend_limit trends are tried")
	assert.Equal(t, 6, gen.callsFor(script.SegmentBody))
	assert.Equal(t, 0, gen.callsFor(script.SegmentCTA))
}

func TestGenerateOutageDoesNotBurnTrends(t *testing.T) {
	cat := &stubCatalog{topics: fitnessTopics("a", "b")}
	pred := &scriptedPredictor{}
	gen := newCountingGenerator()
	gen.err = errors.Wrap(errors.ErrGenerationUnavailable, "api down")

	p := newTestPipeline(t, Config{}, testDeps{catalog: cat, predictor: pred, generator: gen})

	_, err := p.Generate(context.Background(), shortRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrGenerationUnavailable)
	assert.ErrorIs(t, err, errors.ErrSynthesisExhausted)

	assert.Equal(t, 1, gen.callsFor(script.SegmentHook), "outage must not fall through to other trends")
}

func TestGenerateAbortsOnPredictionFailure(t *testing.T) {
	cat := &stubCatalog{topics: fitnessTopics("a", "b")}
	pred := &scriptedPredictor{
		failAt: 1,
		err:    errors.Wrap(errors.ErrPredictionUnavailable, "model offline"),
	}
	gen := newCountingGenerator()

	p := newTestPipeline(t, Config{}, testDeps{catalog: cat, predictor: pred, generator: gen})

	_, err := p.Generate(context.Background(), shortRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrPredictionUnavailable)
	assert.NotErrorIs(t, err, errors.ErrSynthesisExhausted)

	assert.Equal(t, 1, gen.callsFor(script.SegmentHook))
	assert.Equal(t, 1, pred.callCount())
}

func TestGenerateEmptyNicheReturnsEmptyTopicSet(t *testing.T) {
	cat := &stubCatalog{topics: map[string][]catalog.Topic{}}
	p := newTestPipeline(t, Config{}, testDeps{
		catalog:   cat,
		predictor: &scriptedPredictor{},
		generator: newCountingGenerator(),
	})

	_, err := p.Generate(context.Background(), shortRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrEmptyTopicSet)
}

func TestGenerateRejectsInvalidRequest(t *testing.T) {
	cat := &stubCatalog{topics: fitnessTopics("a")}
	p := newTestPipeline(t, Config{}, testDeps{
		catalog:   cat,
		predictor: &scriptedPredictor{},
		generator: newCountingGenerator(),
	})

	cases := []GenerateRequest{
		{Niche: "", Tone: script.ToneMotivational, Length: script.LengthShort},
		{Niche: "fitness", Tone: "sarcastic", Length: script.LengthShort},
		{Niche: "fitness", Tone: script.ToneMotivational, Length: "epic"},
		{Niche: "fitness", Tone: script.ToneMotivational, Length: script.LengthShort, Variants: -1},
	}

	for _, req := range cases {
		_, err := p.Generate(context.Background(), req)
		assert.ErrorIs(t, err, errors.ErrInvalidInput, "request %+v", req)
	}

	assert.Equal(t, 0, cat.callCount(), "invalid requests never reach the catalog")
}

func TestGenerateVariantsReturnsOneScriptEach(t *testing.T) {
	cat := &stubCatalog{topics: fitnessTopics("pushups")}
	pred := &scriptedPredictor{} // constant rate accepts everything
	gen := newCountingGenerator()

	p := newTestPipeline(t, Config{}, testDeps{catalog: cat, predictor: pred, generator: gen})

	req := shortRequest()
	req.Variants = 2

	result, err := p.Generate(context.Background(), req)
	require.NoError(t, err)
	assert.Len(t, result.Scripts, 2)
	assert.Equal(t, 2, gen.callsFor(script.SegmentHook))

	// The two variants are independent drafts
	assert.NotEqual(t, result.Scripts[0].ID, result.Scripts[1].ID)
}

func TestGenerateVariantsClampedToConfig(t *testing.T) {
	cat := &stubCatalog{topics: fitnessTopics("pushups")}
	gen := newCountingGenerator()

	p := newTestPipeline(t, Config{MaxVariants: 2}, testDeps{
		catalog:   cat,
		predictor: &scriptedPredictor{},
		generator: gen,
	})

	req := shortRequest()
	req.Variants = 99

	result, err := p.Generate(context.Background(), req)
	require.NoError(t, err)
	assert.Len(t, result.Scripts, 2)
}

func TestGeneratePartialResultWhenLaterVariantExhausts(t *testing.T) {
	cat := &stubCatalog{topics: fitnessTopics("pushups")}
	// Variant one succeeds; variant two rejects every body candidate.
	pred := &scriptedPredictor{rates: []float64{
		0.05, 0.06, 0.07, 0.07,
		0.05, 0.01, 0.01, 0.01,
	}}
	gen := newCountingGenerator()

	p := newTestPipeline(t, Config{}, testDeps{catalog: cat, predictor: pred, generator: gen})

	req := shortRequest()
	req.Variants = 2

	result, err := p.Generate(context.Background(), req)
	require.NoError(t, err, "an accepted script is kept when a later variant dies")
	assert.Len(t, result.Scripts, 1)
}

func TestGenerateRequestBudgetAborts(t *testing.T) {
	cat := &stubCatalog{topics: fitnessTopics("pushups")}
	cache := newFakeCostCache()
	guard := NewCostGuard(decimal.RequireFromString("0.0001"), decimal.Zero, cache)

	registry := generation.NewRegistry()
	// 1M prompt tokens cost $0.15 on gpt-4o-mini, far past the budget
	require.NoError(t, registry.Register(&stubProvider{
		usage: generation.Usage{PromptTokens: 1_000_000},
	}))

	ids := []string{"pushups"}
	rk := ranker.New(ranker.Config{}, statsFor(ids...), logger.Get())

	p, err := New(Config{}, Deps{
		Catalog:   cat,
		Ranker:    rk,
		Predictor: &scriptedPredictor{},
		Providers: registry,
		Generator: func(provider generation.Provider) synthesizer.Generator {
			return &providerGenerator{provider: provider}
		},
		Guard: guard,
	})
	require.NoError(t, err)

	_, err = p.Generate(context.Background(), shortRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrRequestLimitExceeded)
	assert.ErrorIs(t, err, errors.ErrSynthesisExhausted)

	// The burned spend still lands in the daily counter
	assert.True(t, cache.dailySpend(DayKey(time.Now())).IsPositive())
}

func TestGenerateDailyBudgetBlocksUpfront(t *testing.T) {
	cat := &stubCatalog{topics: fitnessTopics("pushups")}
	cache := newFakeCostCache()
	cache.daily[DayKey(time.Now())] = decimal.RequireFromString("25.00")

	guard := NewCostGuard(decimal.Zero, decimal.RequireFromString("20.00"), cache)

	registry := generation.NewRegistry()
	require.NoError(t, registry.Register(&stubProvider{}))

	rk := ranker.New(ranker.Config{}, statsFor("pushups"), logger.Get())
	gen := newCountingGenerator()

	p, err := New(Config{}, Deps{
		Catalog:   cat,
		Ranker:    rk,
		Predictor: &scriptedPredictor{},
		Providers: registry,
		Generator: func(generation.Provider) synthesizer.Generator { return gen },
		Guard:     guard,
	})
	require.NoError(t, err)

	_, err = p.Generate(context.Background(), shortRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrDailyLimitExceeded)

	assert.Equal(t, 0, cat.callCount(), "blocked requests never reach the catalog")
	assert.Equal(t, 0, gen.callsFor(script.SegmentHook))
}

func TestGenerateDeadlineProducesPipelineTimeout(t *testing.T) {
	cat := &stubCatalog{topics: fitnessTopics("pushups")}
	gen := newCountingGenerator()
	gen.block = true

	p := newTestPipeline(t, Config{RequestTimeout: 30 * time.Millisecond}, testDeps{
		catalog:   cat,
		predictor: &scriptedPredictor{},
		generator: gen,
	})

	_, err := p.Generate(context.Background(), shortRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrPipelineTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, errors.ErrSynthesisExhausted)
}

func TestGeneratePinnedProviderMustExist(t *testing.T) {
	cat := &stubCatalog{topics: fitnessTopics("pushups")}
	p := newTestPipeline(t, Config{}, testDeps{
		catalog:   cat,
		predictor: &scriptedPredictor{},
		generator: newCountingGenerator(),
	})

	req := shortRequest()
	req.Provider = "gemini"

	_, err := p.Generate(context.Background(), req)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestNewRequiresCoreCollaborators(t *testing.T) {
	registry := generation.NewRegistry()
	rk := ranker.New(ranker.Config{}, statsFor("a"), logger.Get())

	deps := Deps{
		Catalog:   &stubCatalog{},
		Ranker:    rk,
		Predictor: &scriptedPredictor{},
		Providers: registry,
		Generator: func(generation.Provider) synthesizer.Generator { return newCountingGenerator() },
	}

	_, err := New(Config{}, deps)
	require.NoError(t, err)

	missing := []func(*Deps){
		func(d *Deps) { d.Catalog = nil },
		func(d *Deps) { d.Ranker = nil },
		func(d *Deps) { d.Predictor = nil },
		func(d *Deps) { d.Providers = nil },
		func(d *Deps) { d.Generator = nil },
	}

	for i, strip := range missing {
		broken := deps
		strip(&broken)
		_, err := New(Config{}, broken)
		assert.ErrorIs(t, err, errors.ErrInvalidInput, "case %d", i)
	}
}
