package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resonance/internal/domain/hook"
	"resonance/internal/testsupport"
	"resonance/pkg/errors"
)

func TestHookRepository_UpsertAndGet(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := testsupport.NewTestPostgres(t)
	defer testDB.Close()

	repo := NewHookRepository(testDB.DB())
	ctx := context.Background()

	niche := testsupport.UniqueNiche()

	exemplar := &hook.Exemplar{
		ID:                 uuid.New(),
		Niche:              niche,
		Tone:               "educational",
		Text:               "I tested this for 30 days so you do not have to",
		Pattern:            hook.PatternCuriosityGap,
		PsychTriggers:      []string{"curiosity", "social_proof"},
		EffectivenessScore: 0.82,
		Embedding:          testEmbedding(3),
		CreatedAt:          time.Now(),
	}

	err := repo.Upsert(ctx, exemplar)
	require.NoError(t, err, "Upsert should not return error")

	retrieved, err := repo.GetByID(ctx, exemplar.ID)
	require.NoError(t, err)
	assert.Equal(t, exemplar.Text, retrieved.Text)
	assert.Equal(t, hook.PatternCuriosityGap, retrieved.Pattern)
	assert.Equal(t, []string{"curiosity", "social_proof"}, retrieved.PsychTriggers)
	assert.InDelta(t, 0.82, retrieved.EffectivenessScore, 0.0001)
	require.Len(t, retrieved.Embedding, 1536)
	assert.InDelta(t, 1.0, retrieved.Embedding[3], 0.0001)
}

func TestHookRepository_GetByID_NotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := testsupport.NewTestPostgres(t)
	defer testDB.Close()

	repo := NewHookRepository(testDB.DB())
	ctx := context.Background()

	_, err := repo.GetByID(ctx, uuid.New())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestHookRepository_Upsert_RefreshesByText(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := testsupport.NewTestPostgres(t)
	defer testDB.Close()

	repo := NewHookRepository(testDB.DB())
	ctx := context.Background()

	niche := testsupport.UniqueNiche()
	text := "Nobody talks about the second rep"

	original := &hook.Exemplar{
		ID:                 uuid.New(),
		Niche:              niche,
		Tone:               "educational",
		Text:               text,
		Pattern:            hook.PatternBoldClaim,
		PsychTriggers:      []string{"curiosity"},
		EffectivenessScore: 0.5,
		Embedding:          testEmbedding(1),
		CreatedAt:          time.Now(),
	}
	require.NoError(t, repo.Upsert(ctx, original))

	// A refresh re-extracts the same hook with a new ID and better analysis
	refreshed := &hook.Exemplar{
		ID:                 uuid.New(),
		Niche:              niche,
		Tone:               "motivational",
		Text:               text,
		Pattern:            hook.PatternChallenge,
		PsychTriggers:      []string{"curiosity", "fomo"},
		EffectivenessScore: 0.74,
		Embedding:          testEmbedding(2),
		CreatedAt:          time.Now(),
	}
	require.NoError(t, repo.Upsert(ctx, refreshed))

	// The original row was updated in place, no duplicate created
	retrieved, err := repo.GetByID(ctx, original.ID)
	require.NoError(t, err)
	assert.Equal(t, "motivational", retrieved.Tone)
	assert.Equal(t, hook.PatternChallenge, retrieved.Pattern)
	assert.InDelta(t, 0.74, retrieved.EffectivenessScore, 0.0001)

	_, err = repo.GetByID(ctx, refreshed.ID)
	assert.True(t, errors.Is(err, errors.ErrNotFound), "refresh must not insert a second row")
}

func TestHookRepository_Similar(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := testsupport.NewTestPostgres(t)
	defer testDB.Close()

	repo := NewHookRepository(testDB.DB())
	ctx := context.Background()

	fixtures := NewTestFixtures(t, testDB.DB())
	niche := testsupport.UniqueNiche()
	otherNiche := testsupport.UniqueNiche()

	fixtures.CreateHookExemplar(niche, WithHookText("exact direction match"), WithHookEmbedding(testEmbedding(0)))
	fixtures.CreateHookExemplar(niche, WithHookText("orthogonal hook"), WithHookEmbedding(testEmbedding(1)))
	fixtures.CreateHookExemplar(niche, WithHookText("another orthogonal hook"), WithHookEmbedding(testEmbedding(2)))

	// Same direction, wrong niche: must never surface
	fixtures.CreateHookExemplar(otherNiche, WithHookEmbedding(testEmbedding(0)))

	results, err := repo.Similar(ctx, niche, testEmbedding(0), 2)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "exact direction match", results[0].Text)
	for _, r := range results {
		assert.Equal(t, niche, r.Niche)
	}
}

func TestHookRepository_TopByEffectiveness(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := testsupport.NewTestPostgres(t)
	defer testDB.Close()

	repo := NewHookRepository(testDB.DB())
	ctx := context.Background()

	fixtures := NewTestFixtures(t, testDB.DB())
	niche := testsupport.UniqueNiche()

	fixtures.CreateHookExemplar(niche, WithHookText("middling hook"), WithEffectiveness(0.6))
	fixtures.CreateHookExemplar(niche, WithHookText("killer hook"), WithEffectiveness(0.93))
	fixtures.CreateHookExemplar(niche, WithHookText("weak hook"), WithEffectiveness(0.41))

	// Different tone sits outside the query
	fixtures.CreateHookExemplar(niche, WithHookTone("entertaining"), WithEffectiveness(0.99))

	results, err := repo.TopByEffectiveness(ctx, niche, "educational", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "killer hook", results[0].Text)
	assert.Equal(t, "middling hook", results[1].Text)
}
