package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resonance/internal/domain/engagement"
	"resonance/internal/domain/script"
	"resonance/internal/domain/trend"
	"resonance/internal/testsupport"
	"resonance/pkg/errors"
)

func TestScriptRepository_Create(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := testsupport.NewTestPostgres(t)
	defer testDB.Close()

	repo := NewScriptRepository(testDB.DB())
	ctx := context.Background()

	niche := testsupport.UniqueNiche()

	draft := &script.Draft{
		ID:      uuid.New(),
		Niche:   niche,
		Tone:    script.ToneEducational,
		Length:  script.LengthShort,
		TopicID: "pushups",
		Title:   "The 30 Second Pushup Fix",
		Segments: []script.Segment{
			{Kind: script.SegmentHook, Position: 0, Text: "Your pushups are wrong and here is proof", PredictedDelta: 0.021},
			{Kind: script.SegmentBody, Position: 1, Text: "Elbows at 45 degrees, not flared out", PredictedDelta: 0.008},
			{Kind: script.SegmentCTA, Position: 2, Text: "Follow for part two", PredictedDelta: 0.0},
		},
		VisualNotes:  "slow pushup demo, top-down angle",
		AudioNotes:   "trending audio, beat drop on the rep",
		State:        script.StateAccepted,
		AttemptsUsed: 2,
		Trend: trend.RankedTrend{
			TopicID: "pushups",
			Score:   1540.2,
			Rank:    1,
			StatsSnapshot: engagement.TopicStats{
				TopicID:           "pushups",
				DecayedEngagement: 1480.5,
				Velocity:          0.12,
				SampleCount:       48,
			},
		},
		Prediction: script.PredictionResult{
			ExpectedViews:          15000,
			ExpectedEngagementRate: 0.062,
			Confidence:             0.81,
		},
		CreatedAt: time.Now(),
	}

	// Test Create
	err := repo.Create(ctx, draft)
	require.NoError(t, err, "Create should not return error")

	// Verify draft can be retrieved with segments and trend intact
	retrieved, err := repo.GetByID(ctx, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, draft.Niche, retrieved.Niche)
	assert.Equal(t, draft.Tone, retrieved.Tone)
	assert.Equal(t, draft.Title, retrieved.Title)
	assert.Equal(t, script.StateAccepted, retrieved.State)
	assert.Equal(t, 2, retrieved.AttemptsUsed)

	require.Len(t, retrieved.Segments, 3)
	assert.Equal(t, script.SegmentHook, retrieved.Segments[0].Kind)
	assert.Equal(t, draft.Segments[0].Text, retrieved.Segments[0].Text)
	assert.InDelta(t, 0.021, retrieved.Segments[0].PredictedDelta, 0.0001)

	assert.Equal(t, "pushups", retrieved.Trend.TopicID)
	assert.InDelta(t, 1540.2, retrieved.Trend.Score, 0.001)
	assert.Equal(t, uint64(48), retrieved.Trend.StatsSnapshot.SampleCount)

	assert.InDelta(t, 0.062, retrieved.Prediction.ExpectedEngagementRate, 0.0001)
	assert.InDelta(t, 0.81, retrieved.Prediction.Confidence, 0.0001)
}

func TestScriptRepository_GetByID_NotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := testsupport.NewTestPostgres(t)
	defer testDB.Close()

	repo := NewScriptRepository(testDB.DB())
	ctx := context.Background()

	_, err := repo.GetByID(ctx, uuid.New())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestScriptRepository_ListByNiche(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := testsupport.NewTestPostgres(t)
	defer testDB.Close()

	repo := NewScriptRepository(testDB.DB())
	ctx := context.Background()

	fixtures := NewTestFixtures(t, testDB.DB())
	niche := testsupport.UniqueNiche()
	otherNiche := testsupport.UniqueNiche()

	base := time.Now().Add(-time.Hour)
	oldest := fixtures.CreateScript(niche, WithScriptCreatedAt(base))
	middle := fixtures.CreateScript(niche, WithScriptCreatedAt(base.Add(10*time.Minute)))
	newest := fixtures.CreateScript(niche, WithScriptCreatedAt(base.Add(20*time.Minute)))
	fixtures.CreateScript(otherNiche)

	// Newest first, other niches excluded
	drafts, err := repo.ListByNiche(ctx, niche, 10)
	require.NoError(t, err)
	require.Len(t, drafts, 3)
	assert.Equal(t, newest, drafts[0].ID)
	assert.Equal(t, middle, drafts[1].ID)
	assert.Equal(t, oldest, drafts[2].ID)

	// Limit applies after ordering
	drafts, err = repo.ListByNiche(ctx, niche, 2)
	require.NoError(t, err)
	require.Len(t, drafts, 2)
	assert.Equal(t, newest, drafts[0].ID)
}

func TestScriptRepository_TopPerforming(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := testsupport.NewTestPostgres(t)
	defer testDB.Close()

	repo := NewScriptRepository(testDB.DB())
	ctx := context.Background()

	fixtures := NewTestFixtures(t, testDB.DB())
	niche := testsupport.UniqueNiche()

	strong := fixtures.CreateScript(niche, WithScriptRate(0.09), WithScriptConfidence(0.85))
	decent := fixtures.CreateScript(niche, WithScriptRate(0.06), WithScriptConfidence(0.75))

	// One below the confidence floor, one that never reached accepted
	fixtures.CreateScript(niche, WithScriptRate(0.12), WithScriptConfidence(0.3))
	fixtures.CreateScript(niche, WithScriptRate(0.15), WithScriptConfidence(0.9), WithScriptState("failed"))

	drafts, err := repo.TopPerforming(ctx, niche, 0.5, 10)
	require.NoError(t, err)
	require.Len(t, drafts, 2)

	// Ordered by predicted engagement rate, best first
	assert.Equal(t, strong, drafts[0].ID)
	assert.Equal(t, decent, drafts[1].ID)
	for _, d := range drafts {
		assert.Equal(t, script.StateAccepted, d.State)
		assert.GreaterOrEqual(t, d.Prediction.Confidence, 0.5)
	}
}
