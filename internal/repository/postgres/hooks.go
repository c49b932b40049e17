package postgres

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"resonance/internal/domain/hook"
	"resonance/pkg/errors"
)

// Compile-time check
var _ hook.Repository = (*HookRepository)(nil)

// HookRepository implements hook.Repository using sqlx and pgvector
type HookRepository struct {
	db *sqlx.DB
}

// NewHookRepository creates a new hook exemplar repository
func NewHookRepository(db *sqlx.DB) *HookRepository {
	return &HookRepository{db: db}
}

// scanExemplar scans a single exemplar from a database row
func scanExemplar(row interface {
	Scan(dest ...interface{}) error
}) (*hook.Exemplar, error) {
	ex := &hook.Exemplar{}
	var embedding pgvector.Vector

	err := row.Scan(
		&ex.ID, &ex.Niche, &ex.Tone, &ex.Text, &ex.Pattern,
		pq.Array(&ex.PsychTriggers), &ex.EffectivenessScore, &embedding, &ex.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	ex.Embedding = embedding.Slice()
	return ex, nil
}

const exemplarColumns = `
	id, niche, tone, text, pattern, psych_triggers,
	effectiveness_score, embedding, created_at`

// Upsert inserts an exemplar or refreshes its analysis. Exemplars are keyed
// by niche and text so library refreshes never duplicate a hook.
func (r *HookRepository) Upsert(ctx context.Context, exemplar *hook.Exemplar) error {
	query := `
		INSERT INTO hook_exemplars (` + exemplarColumns + `
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9
		)
		ON CONFLICT (niche, text) DO UPDATE SET
			tone = EXCLUDED.tone,
			pattern = EXCLUDED.pattern,
			psych_triggers = EXCLUDED.psych_triggers,
			effectiveness_score = EXCLUDED.effectiveness_score,
			embedding = EXCLUDED.embedding`

	_, err := r.db.ExecContext(ctx, query,
		exemplar.ID, exemplar.Niche, exemplar.Tone, exemplar.Text, exemplar.Pattern,
		pq.Array(exemplar.PsychTriggers), exemplar.EffectivenessScore,
		pgvector.NewVector(exemplar.Embedding), exemplar.CreatedAt,
	)

	return err
}

// GetByID retrieves an exemplar by ID
func (r *HookRepository) GetByID(ctx context.Context, id uuid.UUID) (*hook.Exemplar, error) {
	query := `SELECT ` + exemplarColumns + ` FROM hook_exemplars WHERE id = $1`

	row := r.db.QueryRowContext(ctx, query, id)
	exemplar, err := scanExemplar(row)
	if err == sql.ErrNoRows {
		return nil, errors.Wrap(errors.ErrNotFound, "hook exemplar not found")
	}
	if err != nil {
		return nil, err
	}

	return exemplar, nil
}

// Similar performs nearest-neighbor search using pgvector cosine distance
func (r *HookRepository) Similar(ctx context.Context, niche string, embedding []float32, limit int) ([]*hook.Exemplar, error) {
	query := `
		SELECT ` + exemplarColumns + `
		FROM hook_exemplars
		WHERE niche = $1
		ORDER BY embedding <=> $2
		LIMIT $3`

	return r.selectExemplars(ctx, query, niche, pgvector.NewVector(embedding), limit)
}

// TopByEffectiveness retrieves the strongest exemplars for a niche and tone
func (r *HookRepository) TopByEffectiveness(ctx context.Context, niche, tone string, limit int) ([]*hook.Exemplar, error) {
	query := `
		SELECT ` + exemplarColumns + `
		FROM hook_exemplars
		WHERE niche = $1 AND tone = $2
		ORDER BY effectiveness_score DESC
		LIMIT $3`

	return r.selectExemplars(ctx, query, niche, tone, limit)
}

func (r *HookRepository) selectExemplars(ctx context.Context, query string, args ...interface{}) ([]*hook.Exemplar, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var exemplars []*hook.Exemplar
	for rows.Next() {
		exemplar, err := scanExemplar(rows)
		if err != nil {
			return nil, err
		}
		exemplars = append(exemplars, exemplar)
	}

	return exemplars, rows.Err()
}
