package script

import (
	"time"

	"github.com/google/uuid"

	"resonance/internal/domain/trend"
	"resonance/pkg/errors"
)

// Tone is the voice a script is written in.
type Tone string

const (
	ToneEducational   Tone = "educational"
	ToneEntertaining  Tone = "entertaining"
	ToneTestimonial   Tone = "testimonial"
	ToneMotivational  Tone = "motivational"
	ToneDemonstration Tone = "demonstration"
)

// Valid reports whether the tone is part of the supported vocabulary.
func (t Tone) Valid() bool {
	switch t {
	case ToneEducational, ToneEntertaining, ToneTestimonial, ToneMotivational, ToneDemonstration:
		return true
	}
	return false
}

// Length is the target script duration band.
type Length string

const (
	LengthShort  Length = "short"  // ~15-30s
	LengthMedium Length = "medium" // ~30-60s
	LengthLong   Length = "long"   // 60s+
)

// Valid reports whether the length is a known band.
func (l Length) Valid() bool {
	switch l {
	case LengthShort, LengthMedium, LengthLong:
		return true
	}
	return false
}

// BodySegmentBounds returns the allowed body segment count for the band.
func (l Length) BodySegmentBounds() (min, max int) {
	switch l {
	case LengthShort:
		return 1, 1
	case LengthMedium:
		return 2, 3
	case LengthLong:
		return 4, 6
	default:
		return 1, 1
	}
}

// SegmentKind tags a script segment by its structural role.
type SegmentKind string

const (
	SegmentHook SegmentKind = "hook"
	SegmentBody SegmentKind = "body"
	SegmentCTA  SegmentKind = "cta"
)

// Segment is one accepted piece of a script. PredictedDelta is the marginal
// change in expected engagement rate the segment contributed when accepted.
type Segment struct {
	Kind           SegmentKind `json:"kind" db:"kind"`
	Position       int         `json:"position" db:"position"`
	Text           string      `json:"text" db:"text"`
	PredictedDelta float64     `json:"predicted_delta" db:"predicted_delta"`
}

// State is the synthesizer's position in the drafting lifecycle.
type State string

const (
	StateStart        State = "start"
	StateHookSelected State = "hook_selected"
	StateBodyDrafted  State = "body_drafted"
	StateCTAAppended  State = "cta_appended"
	StateAccepted     State = "accepted"
	StateFailed       State = "failed"
)

// Terminal reports whether the state admits no further transitions.
func (s State) Terminal() bool {
	return s == StateAccepted || s == StateFailed
}

// PredictionResult is an engagement estimate for a candidate script text.
type PredictionResult struct {
	ExpectedViews          float64 `json:"expected_views" db:"expected_views"`
	ExpectedEngagementRate float64 `json:"expected_engagement_rate" db:"expected_engagement_rate"`
	Confidence             float64 `json:"confidence" db:"confidence"`
}

// Validate checks that the estimate is well formed.
func (p PredictionResult) Validate() error {
	if p.Confidence < 0 || p.Confidence > 1 {
		return errors.NewValidationError("confidence", "must be within [0,1]", p.Confidence)
	}
	if p.ExpectedViews < 0 {
		return errors.NewValidationError("expected_views", "must be non-negative", p.ExpectedViews)
	}
	return nil
}

// Draft is a finalized script. Drafts are immutable once accepted; the
// synthesizer builds a new one per attempt chain.
type Draft struct {
	ID           uuid.UUID         `json:"id" db:"id"`
	Niche        string            `json:"niche" db:"niche"`
	Tone         Tone              `json:"tone" db:"tone"`
	Length       Length            `json:"length" db:"length"`
	TopicID      string            `json:"topic_id" db:"topic_id"`
	Title        string            `json:"title" db:"title"`
	Segments     []Segment         `json:"segments"`
	VisualNotes  string            `json:"visual_notes,omitempty" db:"visual_notes"`
	AudioNotes   string            `json:"audio_notes,omitempty" db:"audio_notes"`
	State        State             `json:"state" db:"state"`
	AttemptsUsed int               `json:"attempts_used" db:"attempts_used"`
	Trend        trend.RankedTrend `json:"trend"`
	Prediction   PredictionResult  `json:"prediction"`
	CreatedAt    time.Time         `json:"created_at" db:"created_at"`
}

// Hook returns the hook segment text, empty if the draft has none.
func (d Draft) Hook() string {
	for _, seg := range d.Segments {
		if seg.Kind == SegmentHook {
			return seg.Text
		}
	}
	return ""
}

// BodySegments returns the body segments in position order.
func (d Draft) BodySegments() []Segment {
	var body []Segment
	for _, seg := range d.Segments {
		if seg.Kind == SegmentBody {
			body = append(body, seg)
		}
	}
	return body
}

// FullText joins all segment texts in position order, for prediction input.
func (d Draft) FullText() string {
	var text string
	for i, seg := range d.Segments {
		if i > 0 {
			text += "\n"
		}
		text += seg.Text
	}
	return text
}
