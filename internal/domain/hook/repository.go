package hook

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the interface for the hook library (PostgreSQL + pgvector)
type Repository interface {
	Upsert(ctx context.Context, exemplar *Exemplar) error
	GetByID(ctx context.Context, id uuid.UUID) (*Exemplar, error)

	// Similar returns the nearest exemplars to the query embedding for the
	// niche, best match first.
	Similar(ctx context.Context, niche string, embedding []float32, limit int) ([]*Exemplar, error)

	// TopByEffectiveness returns the strongest exemplars for a niche and tone
	// when no query embedding is available.
	TopByEffectiveness(ctx context.Context, niche, tone string, limit int) ([]*Exemplar, error)
}
