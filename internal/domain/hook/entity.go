package hook

import (
	"time"

	"github.com/google/uuid"
)

// Pattern names recurring hook constructions observed in high performers.
type Pattern string

const (
	PatternQuestion       Pattern = "question"
	PatternBoldClaim      Pattern = "bold_claim"
	PatternCuriosityGap   Pattern = "curiosity_gap"
	PatternChallenge      Pattern = "challenge"
	PatternRelatable      Pattern = "relatable_moment"
	PatternTransformation Pattern = "transformation"
)

// Exemplar is a stored high-performing hook with its analysis. Embeddings
// enable nearest-neighbor retrieval when prompting for new hooks.
type Exemplar struct {
	ID                 uuid.UUID `json:"id" db:"id"`
	Niche              string    `json:"niche" db:"niche"`
	Tone               string    `json:"tone" db:"tone"`
	Text               string    `json:"text" db:"text"`
	Pattern            Pattern   `json:"pattern" db:"pattern"`
	PsychTriggers      []string  `json:"psych_triggers"`
	EffectivenessScore float64   `json:"effectiveness_score" db:"effectiveness_score"`
	Embedding          []float32 `json:"-"`
	CreatedAt          time.Time `json:"created_at" db:"created_at"`
}
