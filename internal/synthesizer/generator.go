package synthesizer

import (
	"context"

	"resonance/internal/domain/script"
)

// Proposal is one candidate segment produced by a generator. Title and the
// production notes are only populated by the CTA stage, which closes out the
// script.
type Proposal struct {
	Text        string `json:"text"`
	Title       string `json:"title,omitempty"`
	VisualNotes string `json:"visual_notes,omitempty"`
	AudioNotes  string `json:"audio_notes,omitempty"`
}

// Generator proposes candidate segment text for the draft under assembly.
// Implementations fail with ErrGenerationUnavailable when the backing
// provider is down, which the state machine treats as immediate exhaustion
// of the current segment.
type Generator interface {
	Propose(ctx context.Context, kind script.SegmentKind, draft *script.Draft, tone script.Tone, niche string) (Proposal, error)
}
