package synthesizer

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resonance/internal/domain/engagement"
	"resonance/internal/domain/script"
	"resonance/internal/domain/trend"
	"resonance/pkg/errors"
)

// stubGenerator serves proposals from per-kind queues. The last proposal in
// a queue repeats once the queue drains, and an empty queue produces a
// numbered placeholder.
type stubGenerator struct {
	mu        sync.Mutex
	queues    map[script.SegmentKind][]Proposal
	callCount map[script.SegmentKind]int
	err       error
}

func newStubGenerator() *stubGenerator {
	return &stubGenerator{
		queues:    make(map[script.SegmentKind][]Proposal),
		callCount: make(map[script.SegmentKind]int),
	}
}

func (g *stubGenerator) Propose(_ context.Context, kind script.SegmentKind, _ *script.Draft, _ script.Tone, _ string) (Proposal, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.callCount[kind]++
	if g.err != nil {
		return Proposal{}, g.err
	}

	queue := g.queues[kind]
	if len(queue) == 0 {
		return Proposal{Text: fmt.Sprintf("%s segment %d", kind, g.callCount[kind])}, nil
	}

	proposal := queue[0]
	if len(queue) > 1 {
		g.queues[kind] = queue[1:]
	}

	return proposal, nil
}

func (g *stubGenerator) calls(kind script.SegmentKind) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.callCount[kind]
}

// stubPredictor returns scripted engagement rates in call order, repeating
// the final rate once the script runs out.
type stubPredictor struct {
	rates []float64
	calls int
	err   error
}

func (p *stubPredictor) Predict(_ context.Context, _ string, _ trend.RankedTrend, _ string) (script.PredictionResult, error) {
	if p.err != nil {
		return script.PredictionResult{}, p.err
	}

	rate := 0.05
	if len(p.rates) > 0 {
		idx := p.calls
		if idx >= len(p.rates) {
			idx = len(p.rates) - 1
		}
		rate = p.rates[idx]
	}
	p.calls++

	return script.PredictionResult{
		ExpectedViews:          10_000,
		ExpectedEngagementRate: rate,
		Confidence:             0.8,
	}, nil
}

func testTrend() trend.RankedTrend {
	return trend.RankedTrend{
		TopicID: "pushups",
		Score:   42.5,
		Rank:    1,
		StatsSnapshot: engagement.TopicStats{
			TopicID:           "pushups",
			DecayedEngagement: 420,
			Velocity:          3.2,
			SampleCount:       12,
		},
	}
}

func TestRunShortProducesHookBodyCTA(t *testing.T) {
	gen := newStubGenerator()
	gen.queues[script.SegmentCTA] = []Proposal{{
		Text:        "Follow for more",
		Title:       "Pushup Power",
		VisualNotes: "close-up on form",
		AudioNotes:  "upbeat track",
	}}

	s := New(gen, &stubPredictor{}, Config{})

	draft, err := s.Run(context.Background(), testTrend(), "fitness", script.ToneMotivational, script.LengthShort)
	require.NoError(t, err)

	assert.Equal(t, script.StateAccepted, draft.State)
	require.Len(t, draft.Segments, 3)
	assert.Equal(t, script.SegmentHook, draft.Segments[0].Kind)
	assert.Equal(t, script.SegmentBody, draft.Segments[1].Kind)
	assert.Equal(t, script.SegmentCTA, draft.Segments[2].Kind)
	for i, seg := range draft.Segments {
		assert.Equal(t, i, seg.Position)
	}

	// One generation call per segment when everything is accepted
	assert.Equal(t, 3, draft.AttemptsUsed)

	// CTA extras carried onto the draft
	assert.Equal(t, "Pushup Power", draft.Title)
	assert.Equal(t, "close-up on form", draft.VisualNotes)
	assert.Equal(t, "upbeat track", draft.AudioNotes)
}

func TestRunBodyCountFollowsLengthBand(t *testing.T) {
	cases := []struct {
		length script.Length
		bodies int
	}{
		{script.LengthShort, 1},
		{script.LengthMedium, 2},
		{script.LengthLong, 4},
	}

	for _, tc := range cases {
		t.Run(string(tc.length), func(t *testing.T) {
			s := New(newStubGenerator(), &stubPredictor{}, Config{})

			draft, err := s.Run(context.Background(), testTrend(), "fitness", script.ToneEducational, tc.length)
			require.NoError(t, err)

			assert.Equal(t, script.StateAccepted, draft.State)
			assert.Len(t, draft.BodySegments(), tc.bodies)
			assert.Len(t, draft.Segments, tc.bodies+2)
		})
	}
}

func TestBodyCountClampedToBandBounds(t *testing.T) {
	// Configured counts outside the band bounds are pulled back in
	s := New(newStubGenerator(), &stubPredictor{}, Config{
		MediumBodySegments: 9,
		LongBodySegments:   1,
	})

	draft, err := s.Run(context.Background(), testTrend(), "fitness", script.ToneEducational, script.LengthMedium)
	require.NoError(t, err)
	assert.Len(t, draft.BodySegments(), 3)

	draft, err = s.Run(context.Background(), testTrend(), "fitness", script.ToneEducational, script.LengthLong)
	require.NoError(t, err)
	assert.Len(t, draft.BodySegments(), 4)
}

func TestSegmentRetriedOnNegativeDelta(t *testing.T) {
	gen := newStubGenerator()
	gen.queues[script.SegmentBody] = []Proposal{
		{Text: "weak body"},
		{Text: "strong body"},
	}

	// hook 0.05 accept; body 0.04 reject; body retry 0.06 accept; cta 0.07
	pred := &stubPredictor{rates: []float64{0.05, 0.04, 0.06, 0.07}}

	s := New(gen, pred, Config{})

	draft, err := s.Run(context.Background(), testTrend(), "fitness", script.ToneMotivational, script.LengthShort)
	require.NoError(t, err)

	body := draft.BodySegments()
	require.Len(t, body, 1)
	assert.Equal(t, "strong body", body[0].Text)
	assert.InDelta(t, 0.01, body[0].PredictedDelta, 1e-9)

	// hook 1 + body 2 + cta 1
	assert.Equal(t, 4, draft.AttemptsUsed)
	assert.Equal(t, 2, gen.calls(script.SegmentBody))
}

func TestSegmentAttemptsNeverExceedBudget(t *testing.T) {
	gen := newStubGenerator()

	// Every body candidate drops the rate, forcing rejection until exhaustion
	pred := &stubPredictor{rates: []float64{0.05, 0.01, 0.01, 0.01}}

	s := New(gen, pred, Config{MaxAttempts: 3})

	draft, err := s.Run(context.Background(), testTrend(), "fitness", script.ToneMotivational, script.LengthShort)
	require.Error(t, err)

	assert.ErrorIs(t, err, errors.ErrSynthesisExhausted)
	assert.Contains(t, err.Error(), "body")
	assert.Equal(t, script.StateFailed, draft.State)
	assert.Equal(t, 3, gen.calls(script.SegmentBody))
	assert.Equal(t, 1, gen.calls(script.SegmentHook))
	assert.Equal(t, 0, gen.calls(script.SegmentCTA))
}

func TestGenerationOutageExhaustsSegmentImmediately(t *testing.T) {
	gen := newStubGenerator()
	gen.err = errors.Wrap(errors.ErrGenerationUnavailable, "provider down")

	s := New(gen, &stubPredictor{}, Config{})

	draft, err := s.Run(context.Background(), testTrend(), "fitness", script.ToneMotivational, script.LengthShort)
	require.Error(t, err)

	assert.ErrorIs(t, err, errors.ErrSynthesisExhausted)
	assert.ErrorIs(t, err, errors.ErrGenerationUnavailable)
	assert.Equal(t, script.StateFailed, draft.State)
	assert.Equal(t, 1, gen.calls(script.SegmentHook))
}

func TestPredictionFailureSurfacesToCaller(t *testing.T) {
	pred := &stubPredictor{err: errors.Wrapf(errors.ErrPredictionUnavailable, "niche not supported")}

	s := New(newStubGenerator(), pred, Config{})

	draft, err := s.Run(context.Background(), testTrend(), "unknown", script.ToneMotivational, script.LengthShort)
	require.Error(t, err)

	assert.ErrorIs(t, err, errors.ErrPredictionUnavailable)
	assert.NotErrorIs(t, err, errors.ErrSynthesisExhausted)
	assert.Equal(t, script.StateFailed, draft.State)
}

func TestCancelledContextFailsRun(t *testing.T) {
	gen := newStubGenerator()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := New(gen, &stubPredictor{}, Config{})

	draft, err := s.Run(ctx, testTrend(), "fitness", script.ToneMotivational, script.LengthShort)
	require.Error(t, err)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, script.StateFailed, draft.State)
	assert.Equal(t, 0, gen.calls(script.SegmentHook))
}

func TestTitleFallsBackToHook(t *testing.T) {
	gen := newStubGenerator()
	gen.queues[script.SegmentHook] = []Proposal{{Text: "Why your pushups stopped working"}}
	gen.queues[script.SegmentCTA] = []Proposal{{Text: "Try it today"}}

	s := New(gen, &stubPredictor{}, Config{})

	draft, err := s.Run(context.Background(), testTrend(), "fitness", script.ToneMotivational, script.LengthShort)
	require.NoError(t, err)

	assert.Equal(t, "Why your pushups stopped working", draft.Title)
}

func TestHookDeltaMeasuredAgainstEmptyDraft(t *testing.T) {
	pred := &stubPredictor{rates: []float64{0.07}}

	s := New(newStubGenerator(), pred, Config{})

	draft, err := s.Run(context.Background(), testTrend(), "fitness", script.ToneMotivational, script.LengthShort)
	require.NoError(t, err)

	require.Equal(t, script.SegmentHook, draft.Segments[0].Kind)
	assert.InDelta(t, 0.07, draft.Segments[0].PredictedDelta, 1e-9)
}
