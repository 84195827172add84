// Package sarcasm implements the rule-based sarcasm signal.
//
// Four cues are checked: unusual punctuation, stacked intensifiers, positive
// words under negation and a vocabulary break from the neighbouring
// segments. Probability and confidence grow with the number of cues that
// fire.
package sarcasm

import (
	"regexp"

	"github.com/MrWong99/narrata/internal/analysis"
	"github.com/MrWong99/narrata/pkg/emotion"
)

const (
	// Cues is the number of heuristics checked.
	Cues = 4

	maxProbability = 0.9
	probabilityPer = 0.8
	maxConfidence  = 0.95
	confidencePer  = 0.85

	// minIntensifiers is how many intensifiers must co-occur.
	minIntensifiers = 2

	// incongruityOverlap is the share of content words a segment must have
	// in common with its context to count as congruent.
	incongruityOverlap = 0.3

	// minIncongruityWords skips the context check for very short segments,
	// which share little vocabulary with anything.
	minIncongruityWords = 3
)

// Feature descriptions, in detection order.
const (
	DescPunctuation = "Unusual punctuation patterns detected"
	DescIntensifier = "Excessive use of intensifiers"
	DescContrast    = "Contrasting sentiment indicators"
	DescIncongruity = "Contextual incongruity detected"
)

var punctuationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`[!?]{2,}`),   // "!!", "??"
	regexp.MustCompile(`[!?][.!?]+`), // "?!", "!."
	regexp.MustCompile(`\.{3,}`),     // ellipsis
	regexp.MustCompile(`!\s+!|\?\s+\?`),
}

var intensifiers = map[string]struct{}{
	"very": {}, "really": {}, "absolutely": {}, "totally": {}, "completely": {},
	"utterly": {}, "literally": {}, "obviously": {}, "clearly": {}, "surely": {},
	"so": {}, "truly": {},
}

var positiveWords = map[string]struct{}{
	"great": {}, "wonderful": {}, "amazing": {}, "fantastic": {}, "brilliant": {},
	"perfect": {}, "excellent": {}, "outstanding": {}, "superb": {}, "terrific": {},
	"lovely": {}, "nice": {},
}

// Detector produces [emotion.SarcasmScore] values. It is stateless and safe
// for concurrent use.
type Detector struct{}

var _ analysis.SarcasmDetector = (*Detector)(nil)

// New returns a Detector.
func New() *Detector { return &Detector{} }

// Detect scores text. context holds the text of neighbouring segments; the
// incongruity cue is only checked when it is non-empty.
func (d *Detector) Detect(text string, context []string) emotion.SarcasmScore {
	tokens := analysis.Tokenize(text)

	var f emotion.SarcasmFeatures
	if f.PunctuationPatterns = hasPunctuationPattern(text); f.PunctuationPatterns {
		f.Descriptions = append(f.Descriptions, DescPunctuation)
	}
	if f.Intensifiers = countIn(tokens, intensifiers) >= minIntensifiers; f.Intensifiers {
		f.Descriptions = append(f.Descriptions, DescIntensifier)
	}
	if f.SentimentContrast = hasContrast(tokens); f.SentimentContrast {
		f.Descriptions = append(f.Descriptions, DescContrast)
	}
	if len(context) > 0 {
		if f.ContextIncongruity = incongruent(text, context); f.ContextIncongruity {
			f.Descriptions = append(f.Descriptions, DescIncongruity)
		}
	}

	n := float64(len(f.Descriptions))
	return emotion.NewSarcasmScore(
		min(maxProbability, n/Cues*probabilityPer),
		min(maxConfidence, n/Cues*confidencePer),
		f,
	)
}

func hasPunctuationPattern(text string) bool {
	for _, re := range punctuationPatterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

func countIn(tokens []string, set map[string]struct{}) int {
	n := 0
	for _, t := range tokens {
		if _, ok := set[t]; ok {
			n++
		}
	}
	return n
}

// hasContrast reports a positive word in a segment that also contains a
// negator.
func hasContrast(tokens []string) bool {
	var positive, negated bool
	for _, t := range tokens {
		if _, ok := positiveWords[t]; ok {
			positive = true
		}
		if analysis.IsNegator(t) {
			negated = true
		}
	}
	return positive && negated
}

// incongruent reports whether fewer than 30% of the segment's content words
// appear anywhere in its context.
func incongruent(text string, context []string) bool {
	words := analysis.ContentWords(text)
	if len(words) < minIncongruityWords {
		return false
	}
	seen := make(map[string]struct{})
	for _, c := range context {
		for w := range analysis.ContentWords(c) {
			seen[w] = struct{}{}
		}
	}
	common := 0
	for w := range words {
		if _, ok := seen[w]; ok {
			common++
		}
	}
	return float64(common) < float64(len(words))*incongruityOverlap
}
