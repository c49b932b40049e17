package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"

	"resonance/internal/domain/catalog"
)

// Compile-time check
var _ catalog.Repository = (*CatalogRepository)(nil)

// CatalogRepository implements catalog.Repository using sqlx
type CatalogRepository struct {
	db *sqlx.DB
}

// NewCatalogRepository creates a new catalog repository
func NewCatalogRepository(db *sqlx.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// TopicsForNiche retrieves the active topics tracked for a niche
func (r *CatalogRepository) TopicsForNiche(ctx context.Context, niche string) ([]catalog.Topic, error) {
	var topics []catalog.Topic

	query := `
		SELECT niche, topic_id, label, active, added_at
		FROM catalog_topics
		WHERE niche = $1 AND active = true
		ORDER BY added_at`

	err := r.db.SelectContext(ctx, &topics, query, niche)
	if err != nil {
		return nil, err
	}

	return topics, nil
}

// ActiveNiches retrieves every niche with at least one active topic
func (r *CatalogRepository) ActiveNiches(ctx context.Context) ([]string, error) {
	var niches []string

	query := `SELECT DISTINCT niche FROM catalog_topics WHERE active = true ORDER BY niche`

	err := r.db.SelectContext(ctx, &niches, query)
	if err != nil {
		return nil, err
	}

	return niches, nil
}

// Upsert inserts a topic or refreshes its label and active flag
func (r *CatalogRepository) Upsert(ctx context.Context, topic catalog.Topic) error {
	query := `
		INSERT INTO catalog_topics (niche, topic_id, label, active, added_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (niche, topic_id) DO UPDATE SET
			label = EXCLUDED.label,
			active = EXCLUDED.active`

	_, err := r.db.ExecContext(ctx, query,
		topic.Niche, topic.TopicID, topic.Label, topic.Active, topic.AddedAt,
	)

	return err
}

// Deactivate marks a topic inactive, keeping its engagement history intact
func (r *CatalogRepository) Deactivate(ctx context.Context, niche, topicID string) error {
	query := `UPDATE catalog_topics SET active = false WHERE niche = $1 AND topic_id = $2`
	_, err := r.db.ExecContext(ctx, query, niche, topicID)
	return err
}
