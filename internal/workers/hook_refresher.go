package workers

import (
	"context"
	"time"

	"github.com/google/uuid"

	"resonance/internal/adapters/embeddings"
	"resonance/internal/domain/catalog"
	"resonance/internal/domain/hook"
	"resonance/internal/domain/script"
	"resonance/pkg/errors"
)

// HookRefreshWorker keeps the hook exemplar library current: it embeds the
// hooks of recently accepted high-scoring scripts and upserts them so the
// synthesizer's prompts retrieve them as exemplars on future runs.
type HookRefreshWorker struct {
	*BaseWorker
	catalog       catalog.Repository
	scripts       script.Repository
	hooks         hook.Repository
	embedder      embeddings.Provider
	batchSize     int
	minConfidence float64
}

// NewHookRefreshWorker creates the refresher. embedder may be nil; exemplars
// are then stored without embeddings and retrieval falls back to
// effectiveness ordering.
func NewHookRefreshWorker(
	interval time.Duration,
	enabled bool,
	batchSize int,
	minConfidence float64,
	catalogRepo catalog.Repository,
	scripts script.Repository,
	hooks hook.Repository,
	embedder embeddings.Provider,
) *HookRefreshWorker {
	if batchSize <= 0 {
		batchSize = 20
	}

	return &HookRefreshWorker{
		BaseWorker:    NewBaseWorker("hook_refresh", interval, enabled),
		catalog:       catalogRepo,
		scripts:       scripts,
		hooks:         hooks,
		embedder:      embedder,
		batchSize:     batchSize,
		minConfidence: minConfidence,
	}
}

// Run refreshes exemplars for every active niche. Per-niche failures are
// logged and the pass continues; only a catalog outage fails the run.
func (w *HookRefreshWorker) Run(ctx context.Context) error {
	started := time.Now()

	niches, err := w.catalog.ActiveNiches(ctx)
	if err != nil {
		w.RecordError(err, time.Since(started))
		return errors.Wrap(err, "list active niches")
	}

	refreshed := 0
	for _, niche := range niches {
		n, err := w.refreshNiche(ctx, niche)
		if err != nil {
			w.Log().Warnw("Hook refresh failed for niche",
				"niche", niche,
				"error", err)
			continue
		}
		refreshed += n
	}

	w.Log().Infow("Hook library refreshed",
		"niches", len(niches),
		"exemplars", refreshed,
		"duration", time.Since(started))

	w.RecordRun(time.Since(started))
	return nil
}

func (w *HookRefreshWorker) refreshNiche(ctx context.Context, niche string) (int, error) {
	drafts, err := w.scripts.TopPerforming(ctx, niche, w.minConfidence, w.batchSize)
	if err != nil {
		return 0, errors.Wrap(err, "load top performing scripts")
	}

	count := 0
	for _, draft := range drafts {
		text := draft.Hook()
		if text == "" {
			continue
		}

		pattern, triggers := hook.Classify(text)
		exemplar := &hook.Exemplar{
			ID:                 uuid.New(),
			Niche:              niche,
			Tone:               string(draft.Tone),
			Text:               text,
			Pattern:            pattern,
			PsychTriggers:      triggers,
			EffectivenessScore: effectiveness(draft.Prediction),
			CreatedAt:          time.Now().UTC(),
		}

		if w.embedder != nil {
			embedding, err := w.embedder.GenerateEmbedding(ctx, text)
			if err != nil {
				w.Log().Warnw("Embedding failed, storing exemplar without one",
					"niche", niche,
					"error", err)
			} else {
				exemplar.Embedding = embedding
			}
		}

		if err := w.hooks.Upsert(ctx, exemplar); err != nil {
			return count, errors.Wrap(err, "upsert hook exemplar")
		}
		count++
	}

	return count, nil
}

// effectiveness maps a prediction onto the 1..10 scale the hook library
// stores, weighting engagement rate by prediction confidence.
func effectiveness(p script.PredictionResult) float64 {
	score := 1 + p.ExpectedEngagementRate*100*p.Confidence
	if score > 10 {
		score = 10
	}
	if score < 1 {
		score = 1
	}
	return score
}
