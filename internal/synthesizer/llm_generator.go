package synthesizer

import (
	"context"
	"encoding/json"
	"strings"

	"resonance/internal/adapters/embeddings"
	"resonance/internal/adapters/generation"
	"resonance/internal/domain/hook"
	"resonance/internal/domain/script"
	"resonance/pkg/errors"
	"resonance/pkg/logger"
	"resonance/pkg/templates"
)

// Ensure LLMGenerator implements Generator
var _ Generator = (*LLMGenerator)(nil)

// LLMGenerator renders stage prompts from templates and proposes segments
// through a generation provider. The hook stage is seeded with exemplars
// from the hook library when one is wired in.
type LLMGenerator struct {
	provider  generation.Provider
	registry  *templates.Registry
	hooks     hook.Repository     // optional
	embedder  embeddings.Provider // optional
	model     string
	exemplars int
	log       *logger.Logger
}

// NewLLMGenerator creates a template-driven generator. hooks and embedder
// may be nil; exemplar retrieval degrades gracefully without them.
func NewLLMGenerator(
	provider generation.Provider,
	registry *templates.Registry,
	hooks hook.Repository,
	embedder embeddings.Provider,
	model string,
	exemplars int,
) *LLMGenerator {
	if exemplars <= 0 {
		exemplars = 5
	}

	return &LLMGenerator{
		provider:  provider,
		registry:  registry,
		hooks:     hooks,
		embedder:  embedder,
		model:     model,
		exemplars: exemplars,
		log:       logger.Get().With("component", "llm_generator"),
	}
}

// promptData is the shared template payload for all stage prompts.
type promptData struct {
	Niche        string
	Tone         string
	TopicID      string
	TrendScore   float64
	Velocity     float64
	DraftSoFar   string
	BodyPosition int
	BodyTarget   int
	Exemplars    []string
}

// Propose renders the stage prompt for kind and asks the provider for a
// candidate segment.
func (g *LLMGenerator) Propose(ctx context.Context, kind script.SegmentKind, draft *script.Draft, tone script.Tone, niche string) (Proposal, error) {
	data := promptData{
		Niche:      niche,
		Tone:       string(tone),
		TopicID:    draft.TopicID,
		TrendScore: draft.Trend.Score,
		Velocity:   draft.Trend.StatsSnapshot.Velocity,
		DraftSoFar: draft.FullText(),
	}

	switch kind {
	case script.SegmentHook:
		data.Exemplars = g.hookExemplars(ctx, niche, tone, draft.TopicID)
	case script.SegmentBody:
		data.BodyPosition = len(draft.BodySegments()) + 1
		_, data.BodyTarget = draft.Length.BodySegmentBounds()
	}

	system, err := g.registry.Render("prompts/system", data)
	if err != nil {
		return Proposal{}, errors.Wrap(err, "render system prompt")
	}

	prompt, err := g.registry.Render("prompts/"+string(kind), data)
	if err != nil {
		return Proposal{}, errors.Wrapf(err, "render %s prompt", kind)
	}

	resp, err := g.provider.Complete(ctx, generation.Request{
		Model:       g.model,
		System:      system,
		Prompt:      prompt,
		Temperature: stageTemperature(kind),
		MaxTokens:   stageMaxTokens(kind),
	})
	if err != nil {
		return Proposal{}, err
	}

	if kind == script.SegmentCTA {
		return parseCTAResponse(resp.Text), nil
	}

	text := cleanSegmentText(resp.Text)
	if text == "" {
		return Proposal{}, errors.Wrapf(errors.ErrGenerationUnavailable, "%s proposal was empty", kind)
	}

	return Proposal{Text: text}, nil
}

// hookExemplars pulls reference hooks from the library. Failures only cost
// prompt quality, so they are logged and swallowed.
func (g *LLMGenerator) hookExemplars(ctx context.Context, niche string, tone script.Tone, topicID string) []string {
	if g.hooks == nil {
		return nil
	}

	var (
		found []*hook.Exemplar
		err   error
	)

	if g.embedder != nil {
		var embedding []float32
		embedding, err = g.embedder.GenerateEmbedding(ctx, topicID+" "+string(tone))
		if err == nil {
			found, err = g.hooks.Similar(ctx, niche, embedding, g.exemplars)
		}
	} else {
		found, err = g.hooks.TopByEffectiveness(ctx, niche, string(tone), g.exemplars)
	}

	if err != nil {
		g.log.Warn("Hook exemplar lookup failed", "niche", niche, "error", err)
		return nil
	}

	texts := make([]string, 0, len(found))
	for _, ex := range found {
		texts = append(texts, ex.Text)
	}

	return texts
}

func stageTemperature(kind script.SegmentKind) float64 {
	switch kind {
	case script.SegmentHook:
		return 0.9
	case script.SegmentBody:
		return 0.8
	default:
		return 0.7
	}
}

func stageMaxTokens(kind script.SegmentKind) int {
	switch kind {
	case script.SegmentHook:
		return 120
	case script.SegmentBody:
		return 220
	default:
		return 280
	}
}

// cleanSegmentText strips the wrapping the model tends to add around a bare
// segment: surrounding whitespace, quotes, and a leading stage label.
func cleanSegmentText(text string) string {
	text = strings.TrimSpace(text)
	text = strings.Trim(text, `"`)

	for _, label := range []string{"Hook:", "Body:", "CTA:"} {
		if strings.HasPrefix(text, label) {
			text = strings.TrimSpace(strings.TrimPrefix(text, label))
		}
	}

	return text
}

// ctaPayload is the JSON shape requested by the cta prompt.
type ctaPayload struct {
	CTA         string `json:"cta"`
	Title       string `json:"title"`
	VisualNotes string `json:"visual_notes"`
	AudioNotes  string `json:"audio_notes"`
}

// parseCTAResponse decodes the structured CTA payload, falling back to the
// raw text when the model ignored the JSON instruction.
func parseCTAResponse(text string) Proposal {
	raw := extractJSON(text)

	var payload ctaPayload
	if err := json.Unmarshal([]byte(raw), &payload); err == nil && payload.CTA != "" {
		return Proposal{
			Text:        strings.TrimSpace(payload.CTA),
			Title:       strings.TrimSpace(payload.Title),
			VisualNotes: strings.TrimSpace(payload.VisualNotes),
			AudioNotes:  strings.TrimSpace(payload.AudioNotes),
		}
	}

	return Proposal{Text: cleanSegmentText(text)}
}

// extractJSON removes markdown code fences around a JSON object.
func extractJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	return strings.TrimSpace(text)
}
