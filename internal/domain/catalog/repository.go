package catalog

import "context"

// Repository defines the interface for the niche topic catalog (PostgreSQL)
type Repository interface {
	// TopicsForNiche returns the active topics tracked for a niche.
	// Deactivated topics are excluded; callers never filter again.
	TopicsForNiche(ctx context.Context, niche string) ([]Topic, error)
	ActiveNiches(ctx context.Context) ([]string, error)
	Upsert(ctx context.Context, topic Topic) error
	Deactivate(ctx context.Context, niche, topicID string) error
}
