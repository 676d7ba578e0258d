package provider

import (
	"strings"
	"unicode/utf8"
)

// Scorer derives a confidence in [0, 1] for a translation.
type Scorer interface {
	Score(in Input, out Output) float64
}

// FixedScorer always returns the same confidence.
type FixedScorer float64

func (f FixedScorer) Score(Input, Output) float64 { return clamp(float64(f)) }

// CompletenessScorer estimates confidence from the finish reason, the
// output/input length ratio and whether the text came back untranslated.
type CompletenessScorer struct{}

// minRatioChars is the input length below which length ratios are ignored.
const minRatioChars = 20

func (CompletenessScorer) Score(in Input, out Output) float64 {
	var score float64
	switch out.FinishReason {
	case "stop", "end_turn", "stop_sequence":
		score = 0.95
	case "length", "max_tokens":
		score = 0.4
	default:
		score = 0.7
	}

	src := strings.TrimSpace(in.Text)
	dst := strings.TrimSpace(out.Text)
	if dst == "" {
		return 0
	}
	if strings.EqualFold(src, dst) {
		return 0.2
	}

	inLen := utf8.RuneCountInString(src)
	if inLen >= minRatioChars {
		ratio := float64(utf8.RuneCountInString(dst)) / float64(inLen)
		if ratio < 0.2 || ratio > 5 {
			score /= 2
		}
	}
	return clamp(score)
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
