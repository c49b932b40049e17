package hook

import "strings"

// trigger vocabularies for psychological-trigger tagging. Matching is
// substring-based over the lowercased hook; hooks are short enough that
// this stays precise in practice.
var triggerCues = map[string][]string{
	"curiosity":    {"secret", "nobody", "what happens", "you won't believe", "the truth"},
	"fomo":         {"before it's too late", "don't miss", "everyone is", "right now"},
	"authority":    {"expert", "science", "study", "proven", "coach"},
	"social_proof": {"everyone", "millions", "most people", "viral"},
	"urgency":      {"today", "now", "immediately", "stop scrolling"},
	"identity":     {"people like you", "if you're", "for anyone who"},
}

// Classify assigns a pattern and psychological triggers to a hook text.
// The pattern is the first construction that matches, checked from most to
// least specific; unclassifiable hooks land on the relatable-moment bucket.
func Classify(text string) (Pattern, []string) {
	lower := strings.ToLower(strings.TrimSpace(text))

	var triggers []string
	for name, cues := range triggerCues {
		for _, cue := range cues {
			if strings.Contains(lower, cue) {
				triggers = append(triggers, name)
				break
			}
		}
	}

	switch {
	case strings.HasSuffix(lower, "?") || strings.HasPrefix(lower, "what ") ||
		strings.HasPrefix(lower, "why ") || strings.HasPrefix(lower, "how "):
		return PatternQuestion, triggers
	case strings.Contains(lower, "stop ") || strings.Contains(lower, "never ") ||
		strings.Contains(lower, "you're doing") || strings.Contains(lower, "wrong"):
		return PatternChallenge, triggers
	case strings.Contains(lower, "secret") || strings.Contains(lower, "nobody") ||
		strings.Contains(lower, "won't believe") || strings.Contains(lower, "the truth"):
		return PatternCuriosityGap, triggers
	case strings.Contains(lower, "went from") || strings.Contains(lower, "in 30 days") ||
		strings.Contains(lower, "transformed") || strings.Contains(lower, "changed my"):
		return PatternTransformation, triggers
	case strings.Contains(lower, "every") || strings.Contains(lower, "always") ||
		strings.Contains(lower, "the only") || strings.Contains(lower, "best"):
		return PatternBoldClaim, triggers
	default:
		return PatternRelatable, triggers
	}
}
