package script

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the interface for script persistence (PostgreSQL)
type Repository interface {
	Create(ctx context.Context, draft *Draft) error
	GetByID(ctx context.Context, id uuid.UUID) (*Draft, error)
	ListByNiche(ctx context.Context, niche string, limit int) ([]*Draft, error)

	// TopPerforming returns accepted drafts ordered by predicted engagement
	// rate, for hook library refreshes.
	TopPerforming(ctx context.Context, niche string, minConfidence float64, limit int) ([]*Draft, error)
}
