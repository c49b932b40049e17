package events

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"resonance/internal/domain/script"
	"resonance/internal/domain/trend"
)

// Envelope carries the metadata every published event shares.
type Envelope struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	Source     string    `json:"source"`
	OccurredAt time.Time `json:"occurred_at"`
	Version    string    `json:"version"`
}

// NewEnvelope creates an envelope with defaults
func NewEnvelope(eventType, source string) Envelope {
	return Envelope{
		ID:         generateEventID(),
		Type:       eventType,
		Source:     source,
		OccurredAt: time.Now().UTC(),
		Version:    "1.0",
	}
}

// ScriptGeneratedEvent announces a finalized script draft
type ScriptGeneratedEvent struct {
	Envelope
	Script *script.Draft `json:"script"`
}

// TrendRankedEvent carries a freshly computed trend ranking
type TrendRankedEvent struct {
	Envelope
	Niche  string              `json:"niche"`
	Trends []trend.RankedTrend `json:"trends"`
}

// generateEventID generates a unique event ID
func generateEventID() string {
	// Format: timestamp_nanoseconds
	now := time.Now()
	return fmt.Sprintf("%d_%d", now.Unix(), now.Nanosecond())
}

// SanitizeUTF8 removes invalid UTF-8 sequences. Generated script text passes
// through model providers that occasionally emit broken byte sequences, and
// both JSON encoding and the Telegram API reject them.
func SanitizeUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	return strings.ToValidUTF8(s, "")
}
