package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resonance/internal/domain/catalog"
	"resonance/internal/testsupport"
)

func TestCatalogRepository_UpsertAndList(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := testsupport.NewTestPostgres(t)
	defer testDB.Close()

	repo := NewCatalogRepository(testDB.DB())
	ctx := context.Background()

	niche := testsupport.UniqueNiche()
	base := time.Now().Add(-time.Hour)

	first := catalog.Topic{
		Niche:   niche,
		TopicID: "pushups",
		Label:   "Pushup Form",
		Active:  true,
		AddedAt: base,
	}
	second := catalog.Topic{
		Niche:   niche,
		TopicID: "planks",
		Label:   "Plank Challenges",
		Active:  true,
		AddedAt: base.Add(5 * time.Minute),
	}

	require.NoError(t, repo.Upsert(ctx, first))
	require.NoError(t, repo.Upsert(ctx, second))

	// Ordered by added_at, oldest first
	topics, err := repo.TopicsForNiche(ctx, niche)
	require.NoError(t, err)
	require.Len(t, topics, 2)
	assert.Equal(t, "pushups", topics[0].TopicID)
	assert.Equal(t, "planks", topics[1].TopicID)

	// Re-upserting the same topic refreshes the label instead of duplicating
	first.Label = "Perfect Pushup Form"
	require.NoError(t, repo.Upsert(ctx, first))

	topics, err = repo.TopicsForNiche(ctx, niche)
	require.NoError(t, err)
	require.Len(t, topics, 2)
	assert.Equal(t, "Perfect Pushup Form", topics[0].Label)
}

func TestCatalogRepository_ExcludesInactiveTopics(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := testsupport.NewTestPostgres(t)
	defer testDB.Close()

	repo := NewCatalogRepository(testDB.DB())
	ctx := context.Background()

	fixtures := NewTestFixtures(t, testDB.DB())
	niche := testsupport.UniqueNiche()

	active := fixtures.CreateTopic(niche)
	fixtures.CreateTopic(niche, WithTopicActive(false))

	topics, err := repo.TopicsForNiche(ctx, niche)
	require.NoError(t, err)
	require.Len(t, topics, 1)
	assert.Equal(t, active, topics[0].TopicID)

	// Upsert can also retire the remaining active topic
	retired := catalog.Topic{
		Niche:   niche,
		TopicID: active,
		Label:   "No Longer Trending",
		Active:  false,
		AddedAt: time.Now(),
	}
	require.NoError(t, repo.Upsert(ctx, retired))

	topics, err = repo.TopicsForNiche(ctx, niche)
	require.NoError(t, err)
	assert.Empty(t, topics)
}

func TestCatalogRepository_ActiveNiches(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := testsupport.NewTestPostgres(t)
	defer testDB.Close()

	repo := NewCatalogRepository(testDB.DB())
	ctx := context.Background()

	fixtures := NewTestFixtures(t, testDB.DB())
	tracked := testsupport.UniqueNiche()
	retired := testsupport.UniqueNiche()

	fixtures.CreateTopic(tracked)
	fixtures.CreateTopic(tracked)
	fixtures.CreateTopic(retired, WithTopicActive(false))

	niches, err := repo.ActiveNiches(ctx)
	require.NoError(t, err)

	assert.Contains(t, niches, tracked)
	assert.NotContains(t, niches, retired)

	// Distinct: two active topics still yield one niche entry
	count := 0
	for _, n := range niches {
		if n == tracked {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestCatalogRepository_Deactivate(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := testsupport.NewTestPostgres(t)
	defer testDB.Close()

	repo := NewCatalogRepository(testDB.DB())
	ctx := context.Background()

	fixtures := NewTestFixtures(t, testDB.DB())
	niche := testsupport.UniqueNiche()

	keep := fixtures.CreateTopic(niche)
	drop := fixtures.CreateTopic(niche)

	require.NoError(t, repo.Deactivate(ctx, niche, drop))

	topics, err := repo.TopicsForNiche(ctx, niche)
	require.NoError(t, err)
	require.Len(t, topics, 1)
	assert.Equal(t, keep, topics[0].TopicID)

	// Deactivating an unknown topic is a no-op, not an error
	require.NoError(t, repo.Deactivate(ctx, niche, "never_tracked"))
}
