package telegram

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"resonance/internal/domain/script"
	"resonance/internal/domain/trend"
)

func TestNewScriptGeneratedData(t *testing.T) {
	draft := &script.Draft{
		ID:      uuid.New(),
		Niche:   "fitness",
		Tone:    script.ToneEntertaining,
		Length:  script.LengthMedium,
		TopicID: "fitness_pushups",
		Title:   "The 30 Second Pushup Fix",
		Segments: []script.Segment{
			{Kind: script.SegmentHook, Position: 0, Text: "Stop scrolling, this changes everything"},
			{Kind: script.SegmentBody, Position: 1, Text: "Most people arch their back on rep one."},
			{Kind: script.SegmentCTA, Position: 2, Text: "Follow for more"},
		},
		State: script.StateAccepted,
		Trend: trend.RankedTrend{TopicID: "fitness_pushups", Score: 1540.25, Rank: 2},
		Prediction: script.PredictionResult{
			ExpectedViews:          1250000,
			ExpectedEngagementRate: 0.062,
			Confidence:             0.81,
		},
	}

	data := NewScriptGeneratedData(draft)

	assert.Equal(t, "The 30 Second Pushup Fix", data.Title)
	assert.Equal(t, "fitness", data.Niche)
	assert.Equal(t, "entertaining", data.Tone)
	assert.Equal(t, "medium", data.Length)
	assert.Equal(t, "fitness_pushups", data.TopicID)
	assert.Equal(t, 2, data.Rank)
	assert.InDelta(t, 1540.25, data.Score, 0.001)
	assert.Equal(t, "1,250,000", data.ExpectedViews, "views are pre-rendered with thousands separators")
	assert.InDelta(t, 6.2, data.EngagementRatePct, 0.0001)
	assert.InDelta(t, 81.0, data.ConfidencePct, 0.0001)
	assert.Equal(t, "Stop scrolling, this changes everything", data.Preview)
}

func TestNewScriptGeneratedData_NoHookSegment(t *testing.T) {
	draft := &script.Draft{
		Title: "Untitled",
		Segments: []script.Segment{
			{Kind: script.SegmentBody, Position: 0, Text: "body only"},
		},
	}

	data := NewScriptGeneratedData(draft)
	assert.Empty(t, data.Preview)
	assert.Equal(t, "0", data.ExpectedViews)
}
