package postgres

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/require"

	"resonance/internal/domain/script"
	"resonance/internal/domain/trend"
)

// testEmbedding generates a deterministic unit vector for pgvector columns.
// Distinct axes give distinct directions, so similarity ordering is stable.
func testEmbedding(axis int) []float32 {
	vec := make([]float32, 1536)
	vec[axis%1536] = 1.0
	return vec
}

// TestFixtures inserts catalog, hook and script rows for repository
// tests, with functional options for the fields a test cares about.
type TestFixtures struct {
	db *sqlx.DB
	t  *testing.T
}

func NewTestFixtures(t *testing.T, db *sqlx.DB) *TestFixtures {
	t.Helper()
	return &TestFixtures{db: db, t: t}
}

// CreateTopic inserts a catalog topic and returns its topic ID.
func (f *TestFixtures) CreateTopic(niche string, opts ...func(*TopicFixture)) string {
	f.t.Helper()

	fixture := &TopicFixture{
		TopicID: fmt.Sprintf("topic_%d", rand.Intn(999999)),
		Label:   "Test Topic",
		Active:  true,
		AddedAt: time.Now(),
	}

	for _, opt := range opts {
		opt(fixture)
	}

	query := `INSERT INTO catalog_topics (niche, topic_id, label, active, added_at)
			  VALUES ($1, $2, $3, $4, $5)`

	_, err := f.db.Exec(query, niche, fixture.TopicID, fixture.Label, fixture.Active, fixture.AddedAt)
	require.NoError(f.t, err, "Failed to create test topic")

	return fixture.TopicID
}

// CreateHookExemplar inserts a hook library row and returns its ID.
func (f *TestFixtures) CreateHookExemplar(niche string, opts ...func(*HookExemplarFixture)) uuid.UUID {
	f.t.Helper()

	fixture := &HookExemplarFixture{
		Tone:               "educational",
		Text:               fmt.Sprintf("Nobody tells you this about hooks %d", rand.Intn(999999)),
		Pattern:            "curiosity_gap",
		PsychTriggers:      []string{"curiosity"},
		EffectivenessScore: 0.7,
		Embedding:          testEmbedding(rand.Intn(1536)),
	}

	for _, opt := range opts {
		opt(fixture)
	}

	id := uuid.New()
	query := `INSERT INTO hook_exemplars (id, niche, tone, text, pattern, psych_triggers, effectiveness_score, embedding, created_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())`

	_, err := f.db.Exec(query, id, niche, fixture.Tone, fixture.Text, fixture.Pattern,
		pq.Array(fixture.PsychTriggers), fixture.EffectivenessScore, pgvector.NewVector(fixture.Embedding))
	require.NoError(f.t, err, "Failed to create test hook exemplar")

	return id
}

// CreateScript inserts a finalized script with a three-segment body and
// returns its ID.
func (f *TestFixtures) CreateScript(niche string, opts ...func(*ScriptFixture)) uuid.UUID {
	f.t.Helper()

	fixture := &ScriptFixture{
		Tone:           "educational",
		Length:         "short",
		TopicID:        fmt.Sprintf("topic_%d", rand.Intn(999999)),
		Title:          "Test Script",
		State:          "accepted",
		AttemptsUsed:   1,
		EngagementRate: 0.05,
		Confidence:     0.8,
		CreatedAt:      time.Now(),
	}

	for _, opt := range opts {
		opt(fixture)
	}

	segments := []script.Segment{
		{Kind: script.SegmentHook, Position: 0, Text: "Stop scrolling, this changes everything", PredictedDelta: 0.02},
		{Kind: script.SegmentBody, Position: 1, Text: "Here is the part everyone skips", PredictedDelta: 0.01},
		{Kind: script.SegmentCTA, Position: 2, Text: "Follow for more", PredictedDelta: 0.0},
	}
	segmentsJSON, err := json.Marshal(segments)
	require.NoError(f.t, err, "Failed to marshal test segments")

	trendJSON, err := json.Marshal(trend.RankedTrend{
		TopicID: fixture.TopicID,
		Score:   1200.0,
		Rank:    1,
	})
	require.NoError(f.t, err, "Failed to marshal test trend")

	id := uuid.New()
	query := `INSERT INTO scripts (id, niche, tone, length, topic_id, title, segments, visual_notes, audio_notes,
			  state, attempts_used, trend, expected_views, expected_engagement_rate, confidence, created_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	_, err = f.db.Exec(query, id, niche, fixture.Tone, fixture.Length, fixture.TopicID, fixture.Title,
		segmentsJSON, "close-up shot", "upbeat track", fixture.State, fixture.AttemptsUsed, trendJSON,
		12000.0, fixture.EngagementRate, fixture.Confidence, fixture.CreatedAt)
	require.NoError(f.t, err, "Failed to create test script")

	return id
}

// WithNicheStack seeds topics plus hook exemplars for one niche and
// returns the topic IDs, for tests that need a working retrieval path.
func (f *TestFixtures) WithNicheStack(niche string, opts ...func(*StackFixture)) (topicIDs []string) {
	f.t.Helper()

	fixture := &StackFixture{TopicCount: 2, ExemplarCount: 1}
	for _, opt := range opts {
		opt(fixture)
	}

	for i := 0; i < fixture.TopicCount; i++ {
		topicIDs = append(topicIDs, f.CreateTopic(niche, fixture.TopicOpts...))
	}
	for i := 0; i < fixture.ExemplarCount; i++ {
		f.CreateHookExemplar(niche, fixture.ExemplarOpts...)
	}

	return
}

// Fixture option types
type TopicFixture struct {
	TopicID string
	Label   string
	Active  bool
	AddedAt time.Time
}

type HookExemplarFixture struct {
	Tone               string
	Text               string
	Pattern            string
	PsychTriggers      []string
	EffectivenessScore float64
	Embedding          []float32
}

type ScriptFixture struct {
	Tone           string
	Length         string
	TopicID        string
	Title          string
	State          string
	AttemptsUsed   int
	EngagementRate float64
	Confidence     float64
	CreatedAt      time.Time
}

type StackFixture struct {
	TopicCount    int
	ExemplarCount int
	TopicOpts     []func(*TopicFixture)
	ExemplarOpts  []func(*HookExemplarFixture)
}

// Topic options.

func WithTopicID(topicID string) func(*TopicFixture) {
	return func(f *TopicFixture) { f.TopicID = topicID }
}

func WithTopicLabel(label string) func(*TopicFixture) {
	return func(f *TopicFixture) { f.Label = label }
}

func WithTopicActive(active bool) func(*TopicFixture) {
	return func(f *TopicFixture) { f.Active = active }
}

func WithTopicAddedAt(addedAt time.Time) func(*TopicFixture) {
	return func(f *TopicFixture) { f.AddedAt = addedAt }
}

// Hook exemplar options.

func WithHookTone(tone string) func(*HookExemplarFixture) {
	return func(f *HookExemplarFixture) { f.Tone = tone }
}

func WithHookText(text string) func(*HookExemplarFixture) {
	return func(f *HookExemplarFixture) { f.Text = text }
}

func WithEffectiveness(score float64) func(*HookExemplarFixture) {
	return func(f *HookExemplarFixture) { f.EffectivenessScore = score }
}

func WithHookEmbedding(embedding []float32) func(*HookExemplarFixture) {
	return func(f *HookExemplarFixture) { f.Embedding = embedding }
}

// Script options.

func WithScriptState(state string) func(*ScriptFixture) {
	return func(f *ScriptFixture) { f.State = state }
}

func WithScriptTopicID(topicID string) func(*ScriptFixture) {
	return func(f *ScriptFixture) { f.TopicID = topicID }
}

func WithScriptRate(rate float64) func(*ScriptFixture) {
	return func(f *ScriptFixture) { f.EngagementRate = rate }
}

func WithScriptConfidence(confidence float64) func(*ScriptFixture) {
	return func(f *ScriptFixture) { f.Confidence = confidence }
}

func WithScriptCreatedAt(createdAt time.Time) func(*ScriptFixture) {
	return func(f *ScriptFixture) { f.CreatedAt = createdAt }
}
