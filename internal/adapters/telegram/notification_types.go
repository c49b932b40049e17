package telegram

import (
	"github.com/dustin/go-humanize"

	"resonance/internal/domain/script"
)

// Notification data types for Telegram messages.
// Numeric fields that need locale formatting are pre-rendered to strings
// because the notification templates only use text/template builtins.

// ScriptGeneratedData carries one finished script into the
// notifications/script_generated template.
type ScriptGeneratedData struct {
	Title             string
	Niche             string
	Tone              string
	Length            string
	TopicID           string
	Rank              int
	Score             float64
	ExpectedViews     string
	EngagementRatePct float64
	ConfidencePct     float64
	Preview           string
}

// NewScriptGeneratedData maps an accepted draft to its notification payload.
func NewScriptGeneratedData(draft *script.Draft) ScriptGeneratedData {
	preview := ""
	for _, seg := range draft.Segments {
		if seg.Kind == script.SegmentHook {
			preview = seg.Text
			break
		}
	}

	return ScriptGeneratedData{
		Title:             draft.Title,
		Niche:             draft.Niche,
		Tone:              string(draft.Tone),
		Length:            string(draft.Length),
		TopicID:           draft.TopicID,
		Rank:              draft.Trend.Rank,
		Score:             draft.Trend.Score,
		ExpectedViews:     humanize.Comma(int64(draft.Prediction.ExpectedViews)),
		EngagementRatePct: draft.Prediction.ExpectedEngagementRate * 100,
		ConfidencePct:     draft.Prediction.Confidence * 100,
		Preview:           preview,
	}
}

// PipelineFailedData carries a failed generation run into the
// notifications/pipeline_failed template.
type PipelineFailedData struct {
	Niche  string
	Tone   string
	Length string
	Reason string
}
