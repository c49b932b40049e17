package postgres

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"resonance/internal/domain/script"
	"resonance/pkg/errors"
)

// Compile-time check
var _ script.Repository = (*ScriptRepository)(nil)

// ScriptRepository implements script.Repository using sqlx
type ScriptRepository struct {
	db *sqlx.DB
}

// NewScriptRepository creates a new script repository
func NewScriptRepository(db *sqlx.DB) *ScriptRepository {
	return &ScriptRepository{db: db}
}

// scanScript scans a single script from a database row
func scanScript(row interface {
	Scan(dest ...interface{}) error
}) (*script.Draft, error) {
	draft := &script.Draft{}
	var segmentsJSON, trendJSON []byte

	err := row.Scan(
		&draft.ID, &draft.Niche, &draft.Tone, &draft.Length, &draft.TopicID,
		&draft.Title, &segmentsJSON, &draft.VisualNotes, &draft.AudioNotes,
		&draft.State, &draft.AttemptsUsed, &trendJSON,
		&draft.Prediction.ExpectedViews, &draft.Prediction.ExpectedEngagementRate,
		&draft.Prediction.Confidence, &draft.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(segmentsJSON, &draft.Segments); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal segments")
	}
	if err := json.Unmarshal(trendJSON, &draft.Trend); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal trend")
	}

	return draft, nil
}

const scriptColumns = `
	id, niche, tone, length, topic_id, title, segments,
	visual_notes, audio_notes, state, attempts_used, trend,
	expected_views, expected_engagement_rate, confidence, created_at`

// Create inserts a finalized draft
func (r *ScriptRepository) Create(ctx context.Context, draft *script.Draft) error {
	segmentsJSON, err := json.Marshal(draft.Segments)
	if err != nil {
		return errors.Wrap(err, "failed to marshal segments")
	}

	trendJSON, err := json.Marshal(draft.Trend)
	if err != nil {
		return errors.Wrap(err, "failed to marshal trend")
	}

	query := `
		INSERT INTO scripts (` + scriptColumns + `
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16
		)`

	_, err = r.db.ExecContext(ctx, query,
		draft.ID, draft.Niche, draft.Tone, draft.Length, draft.TopicID,
		draft.Title, segmentsJSON, draft.VisualNotes, draft.AudioNotes,
		draft.State, draft.AttemptsUsed, trendJSON,
		draft.Prediction.ExpectedViews, draft.Prediction.ExpectedEngagementRate,
		draft.Prediction.Confidence, draft.CreatedAt,
	)

	return err
}

// GetByID retrieves a script by ID
func (r *ScriptRepository) GetByID(ctx context.Context, id uuid.UUID) (*script.Draft, error) {
	query := `SELECT ` + scriptColumns + ` FROM scripts WHERE id = $1`

	row := r.db.QueryRowContext(ctx, query, id)
	draft, err := scanScript(row)
	if err == sql.ErrNoRows {
		return nil, errors.Wrap(errors.ErrNotFound, "script not found")
	}
	if err != nil {
		return nil, err
	}

	return draft, nil
}

// ListByNiche retrieves the most recent scripts for a niche
func (r *ScriptRepository) ListByNiche(ctx context.Context, niche string, limit int) ([]*script.Draft, error) {
	query := `
		SELECT ` + scriptColumns + `
		FROM scripts
		WHERE niche = $1
		ORDER BY created_at DESC
		LIMIT $2`

	return r.selectScripts(ctx, query, niche, limit)
}

// TopPerforming retrieves accepted scripts ordered by predicted engagement
// rate, filtered by prediction confidence
func (r *ScriptRepository) TopPerforming(ctx context.Context, niche string, minConfidence float64, limit int) ([]*script.Draft, error) {
	query := `
		SELECT ` + scriptColumns + `
		FROM scripts
		WHERE niche = $1 AND state = $2 AND confidence >= $3
		ORDER BY expected_engagement_rate DESC
		LIMIT $4`

	return r.selectScripts(ctx, query, niche, script.StateAccepted, minConfidence, limit)
}

func (r *ScriptRepository) selectScripts(ctx context.Context, query string, args ...interface{}) ([]*script.Draft, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var drafts []*script.Draft
	for rows.Next() {
		draft, err := scanScript(rows)
		if err != nil {
			return nil, err
		}
		drafts = append(drafts, draft)
	}

	return drafts, rows.Err()
}
