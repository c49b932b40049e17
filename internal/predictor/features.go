package predictor

import (
	"strings"
	"unicode"

	"github.com/markcheno/go-talib"
)

// TextFeatures are deterministic signals extracted from candidate text.
type TextFeatures struct {
	Words       int
	Sentences   int
	HookCues    int
	CTACues     int
	HasQuestion bool
	HasNumber   bool
}

// Cue vocabularies mirror the patterns seen in high-performing short-video
// hooks and calls to action.
var (
	hookCueWords = []string{
		"you", "your", "how", "why", "what", "stop", "never", "secret",
		"nobody", "mistake", "truth", "before", "instantly", "actually",
	}
	ctaCueWords = []string{
		"follow", "comment", "share", "save", "try", "tag", "subscribe",
		"drop", "link",
	}
)

// ExtractTextFeatures computes text features for scoring.
func ExtractTextFeatures(text string) TextFeatures {
	lower := strings.ToLower(text)
	words := strings.Fields(lower)

	f := TextFeatures{
		Words:       len(words),
		HasQuestion: strings.Contains(text, "?"),
	}

	for _, r := range text {
		switch {
		case r == '.' || r == '!' || r == '?':
			f.Sentences++
		case unicode.IsDigit(r):
			f.HasNumber = true
		}
	}
	if f.Sentences == 0 && f.Words > 0 {
		f.Sentences = 1
	}

	for _, w := range words {
		trimmed := strings.TrimFunc(w, func(r rune) bool { return !unicode.IsLetter(r) })
		for _, cue := range hookCueWords {
			if trimmed == cue {
				f.HookCues++
				break
			}
		}
		for _, cue := range ctaCueWords {
			if trimmed == cue {
				f.CTACues++
				break
			}
		}
	}

	return f
}

// SeriesFeatures summarize the momentum of a topic's recent weight series.
type SeriesFeatures struct {
	EMAFast  float64
	EMASlow  float64
	Momentum float64
}

const (
	emaFastPeriod = 4
	emaSlowPeriod = 12
	rocPeriod     = 4
)

// ComputeSeriesFeatures derives momentum features from a weight series via
// ta-lib. Returns false when the series is too short to support the slow
// EMA window.
func ComputeSeriesFeatures(weights []float64) (SeriesFeatures, bool) {
	if len(weights) < emaSlowPeriod+1 {
		return SeriesFeatures{}, false
	}

	emaFast := talib.Ema(weights, emaFastPeriod)
	emaSlow := talib.Ema(weights, emaSlowPeriod)
	roc := talib.Roc(weights, rocPeriod)

	return SeriesFeatures{
		EMAFast:  emaFast[len(emaFast)-1],
		EMASlow:  emaSlow[len(emaSlow)-1],
		Momentum: roc[len(roc)-1],
	}, true
}

// Accelerating reports whether short-term engagement runs above the longer
// baseline.
func (s SeriesFeatures) Accelerating() bool {
	return s.EMAFast > s.EMASlow && s.Momentum > 0
}
