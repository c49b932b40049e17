package synthesizer

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"resonance/internal/domain/script"
	"resonance/internal/domain/trend"
	"resonance/internal/predictor"
	"resonance/pkg/errors"
	"resonance/pkg/logger"
)

// Config bounds the drafting state machine.
type Config struct {
	// MaxAttempts is the generation call budget per segment.
	MaxAttempts int

	// Body segment counts for the medium and long bands. Values outside the
	// band bounds are clamped.
	MediumBodySegments int
	LongBodySegments   int
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.MediumBodySegments <= 0 {
		c.MediumBodySegments = 2
	}
	if c.LongBodySegments <= 0 {
		c.LongBodySegments = 4
	}
	return c
}

// Synthesizer drives the drafting state machine for one trend:
// START → HOOK_SELECTED → BODY_DRAFTED → CTA_APPENDED → ACCEPTED. Each
// segment is proposed by the generator and accepted only when the predictor
// sees a non-negative marginal engagement change; rejections regenerate the
// segment until the per-segment attempt budget runs out.
type Synthesizer struct {
	generator Generator
	predictor predictor.Predictor
	cfg       Config
	log       *logger.Logger
}

// New creates a synthesizer.
func New(generator Generator, pred predictor.Predictor, cfg Config) *Synthesizer {
	return &Synthesizer{
		generator: generator,
		predictor: pred,
		cfg:       cfg.withDefaults(),
		log:       logger.Get().With("component", "synthesizer"),
	}
}

// Run assembles a script for the trend. On success the returned draft is in
// StateAccepted and immutable by convention. On failure the draft is
// returned in StateFailed alongside the error for observability.
func (s *Synthesizer) Run(ctx context.Context, tr trend.RankedTrend, niche string, tone script.Tone, length script.Length) (*script.Draft, error) {
	draft := &script.Draft{
		ID:        uuid.New(),
		Niche:     niche,
		Tone:      tone,
		Length:    length,
		TopicID:   tr.TopicID,
		State:     script.StateStart,
		Trend:     tr,
		CreatedAt: time.Now().UTC(),
	}

	lastRate := 0.0
	for _, step := range s.segmentPlan(length) {
		proposal, delta, rate, err := s.acceptSegment(ctx, draft, step.kind, niche, tone, lastRate)
		if err != nil {
			draft.State = script.StateFailed
			return draft, err
		}

		draft.Segments = append(draft.Segments, script.Segment{
			Kind:           step.kind,
			Position:       len(draft.Segments),
			Text:           proposal.Text,
			PredictedDelta: delta,
		})
		lastRate = rate

		if step.advance != "" {
			draft.State = step.advance
		}
		if step.kind == script.SegmentCTA {
			draft.Title = proposal.Title
			draft.VisualNotes = proposal.VisualNotes
			draft.AudioNotes = proposal.AudioNotes
		}
	}

	draft.State = script.StateAccepted
	if draft.Title == "" {
		draft.Title = deriveTitle(draft)
	}

	s.log.Info("Script accepted",
		"draft_id", draft.ID,
		"topic_id", draft.TopicID,
		"segments", len(draft.Segments),
		"attempts_used", draft.AttemptsUsed)

	return draft, nil
}

type planStep struct {
	kind    script.SegmentKind
	advance script.State
}

// segmentPlan expands the length band into the ordered segment sequence and
// the state each accepted segment advances the machine to.
func (s *Synthesizer) segmentPlan(length script.Length) []planStep {
	bodies := s.bodyCount(length)

	plan := make([]planStep, 0, bodies+2)
	plan = append(plan, planStep{kind: script.SegmentHook, advance: script.StateHookSelected})
	for i := 0; i < bodies; i++ {
		step := planStep{kind: script.SegmentBody}
		if i == bodies-1 {
			step.advance = script.StateBodyDrafted
		}
		plan = append(plan, step)
	}
	plan = append(plan, planStep{kind: script.SegmentCTA, advance: script.StateCTAAppended})

	return plan
}

func (s *Synthesizer) bodyCount(length script.Length) int {
	min, max := length.BodySegmentBounds()

	var n int
	switch length {
	case script.LengthMedium:
		n = s.cfg.MediumBodySegments
	case script.LengthLong:
		n = s.cfg.LongBodySegments
	default:
		n = min
	}

	if n < min {
		n = min
	}
	if n > max {
		n = max
	}

	return n
}

// acceptSegment loops propose → predict until the candidate improves the
// draft or the attempt budget is spent. Returns the accepted proposal, its
// marginal delta, and the new baseline engagement rate.
func (s *Synthesizer) acceptSegment(
	ctx context.Context,
	draft *script.Draft,
	kind script.SegmentKind,
	niche string,
	tone script.Tone,
	lastRate float64,
) (Proposal, float64, float64, error) {
	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return Proposal{}, 0, 0, errors.Wrapf(err, "synthesis of %s segment aborted", kind)
		}

		draft.AttemptsUsed++
		proposal, err := s.generator.Propose(ctx, kind, draft, tone, niche)
		if err != nil {
			// Cancellation is not a provider failure; let the caller map it.
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Proposal{}, 0, 0, errors.Wrapf(ctxErr, "synthesis of %s segment aborted", kind)
			}
			// Provider outage exhausts the segment immediately; keep the
			// cause in the chain so callers can tell outage from rejection.
			return Proposal{}, 0, 0, errors.Join(
				errors.Wrapf(errors.ErrSynthesisExhausted, "segment %s failed on attempt %d", kind, attempt),
				err,
			)
		}

		candidate := draftWith(draft, kind, proposal.Text)
		result, err := s.predictor.Predict(ctx, candidate.FullText(), draft.Trend, niche)
		if err != nil {
			return Proposal{}, 0, 0, errors.Wrapf(err, "predict %s candidate", kind)
		}

		delta := result.ExpectedEngagementRate - lastRate
		if delta >= 0 {
			s.log.Debug("Segment accepted",
				"kind", kind,
				"attempt", attempt,
				"delta", delta)
			return proposal, delta, result.ExpectedEngagementRate, nil
		}

		s.log.Debug("Segment rejected",
			"kind", kind,
			"attempt", attempt,
			"delta", delta)
	}

	return Proposal{}, 0, 0, errors.Wrapf(errors.ErrSynthesisExhausted,
		"segment %s rejected after %d attempts", kind, s.cfg.MaxAttempts)
}

// draftWith returns a copy of the draft with the candidate appended, leaving
// the original untouched for the retry loop.
func draftWith(d *script.Draft, kind script.SegmentKind, text string) script.Draft {
	candidate := *d
	candidate.Segments = make([]script.Segment, len(d.Segments), len(d.Segments)+1)
	copy(candidate.Segments, d.Segments)
	candidate.Segments = append(candidate.Segments, script.Segment{
		Kind:     kind,
		Position: len(d.Segments),
		Text:     text,
	})
	return candidate
}

// deriveTitle falls back to the hook text when the CTA stage produced no
// title, trimmed to a headline length on a word boundary.
func deriveTitle(d *script.Draft) string {
	title := d.Hook()
	if len(title) <= 60 {
		return title
	}

	cut := title[:60]
	if idx := strings.LastIndex(cut, " "); idx > 0 {
		cut = cut[:idx]
	}
	return cut
}
