// Package emotion defines the signal score records produced by the four text
// analyzers, the fused [Profile] they are combined into, and the [Combiner]
// that performs the fusion.
//
// All records are value types. Constructors clamp every bounded field to its
// declared range so that downstream consumers never observe out-of-range
// values, regardless of what an analyzer produced.
package emotion

import "math"

// Type names a complex emotion category (e.g. "joy"). The set is open:
// analyzers may emit categories the prosody tables do not know about.
type Type string

const (
	Joy      Type = "joy"
	Sadness  Type = "sadness"
	Anger    Type = "anger"
	Fear     Type = "fear"
	Surprise Type = "surprise"
)

// polarityAlpha is the normalisation constant for mapping the unbounded
// compound lexical score into (-1, 1).
const polarityAlpha = 15.0

// EmotionScore is one entry of a categorical emotion breakdown.
type EmotionScore struct {
	Type  Type    `json:"type"`
	Score float64 `json:"score"`
}

// LexicalScore is the dictionary-based polarity signal.
type LexicalScore struct {
	// AFINN is the summed word valence. Unbounded.
	AFINN float64 `json:"afinn_score"`

	// Positive, Negative and Objective are per-word-class averages in [0, 1].
	// They sum to roughly 1 when any lexicon words were found.
	Positive  float64 `json:"positive_score"`
	Negative  float64 `json:"negative_score"`
	Objective float64 `json:"objective_score"`

	// Compound is (AFINN + (Positive - Negative)) / 2. Unbounded.
	Compound float64 `json:"compound_score"`

	// Confidence in [0, 1].
	Confidence float64 `json:"confidence"`

	// Emotions is the categorical breakdown, each score in [0, 1], in the
	// order the analyzer reported them.
	Emotions []EmotionScore `json:"emotions,omitempty"`
}

// NewLexicalScore returns a LexicalScore with bounded fields clamped.
func NewLexicalScore(afinn, pos, neg, obj, compound, confidence float64, emotions []EmotionScore) LexicalScore {
	em := make([]EmotionScore, 0, len(emotions))
	for _, e := range emotions {
		em = append(em, EmotionScore{Type: e.Type, Score: clamp(e.Score, 0, 1)})
	}
	return LexicalScore{
		AFINN:      finite(afinn),
		Positive:   clamp(pos, 0, 1),
		Negative:   clamp(neg, 0, 1),
		Objective:  clamp(obj, 0, 1),
		Compound:   finite(compound),
		Confidence: clamp(confidence, 0, 1),
		Emotions:   em,
	}
}

// Polarity returns the lexical polarity proxy in (-1, 1), derived from the
// compound score as x / sqrt(x² + 15).
func (s LexicalScore) Polarity() float64 {
	x := finite(s.Compound)
	if x == 0 {
		return 0
	}
	return x / math.Hypot(x, math.Sqrt(polarityAlpha))
}

// ContextualScore is the model-derived sentiment signal.
type ContextualScore struct {
	// Sentiment in [-1, 1].
	Sentiment float64 `json:"sentiment_score"`

	// Confidence in [0, 1].
	Confidence float64 `json:"confidence"`

	// Attention maps input tokens to a saliency weight in [0, 1].
	Attention map[string]float64 `json:"attention_weights,omitempty"`
}

// NewContextualScore returns a ContextualScore with bounded fields clamped.
// The attention map is copied.
func NewContextualScore(sentiment, confidence float64, attention map[string]float64) ContextualScore {
	var att map[string]float64
	if len(attention) > 0 {
		att = make(map[string]float64, len(attention))
		for tok, w := range attention {
			att[tok] = clamp(w, 0, 1)
		}
	}
	return ContextualScore{
		Sentiment:  clamp(sentiment, -1, 1),
		Confidence: clamp(confidence, 0, 1),
		Attention:  att,
	}
}

// SarcasmFeatures lists which sarcasm heuristics fired.
type SarcasmFeatures struct {
	PunctuationPatterns bool `json:"punctuation_patterns"`
	SentimentContrast   bool `json:"sentiment_contrast"`
	Intensifiers        bool `json:"intensifiers"`
	ContextIncongruity  bool `json:"context_incongruity"`

	// Descriptions holds one human-readable line per fired heuristic, in
	// detection order.
	Descriptions []string `json:"feature_descriptions,omitempty"`
}

// SarcasmScore is the sarcasm signal.
type SarcasmScore struct {
	Probability float64         `json:"probability"`
	Confidence  float64         `json:"confidence"`
	Features    SarcasmFeatures `json:"features"`
}

// NewSarcasmScore returns a SarcasmScore with bounded fields clamped.
func NewSarcasmScore(probability, confidence float64, features SarcasmFeatures) SarcasmScore {
	features.Descriptions = append([]string(nil), features.Descriptions...)
	return SarcasmScore{
		Probability: clamp(probability, 0, 1),
		Confidence:  clamp(confidence, 0, 1),
		Features:    features,
	}
}

// DiscourseFeatures holds the raw pragmatic observations.
type DiscourseFeatures struct {
	// DiscourseMarkers counts markers by category (causal, contrast, ...).
	DiscourseMarkers   map[string]int `json:"discourse_markers,omitempty"`
	EmphasisPatterns   []string       `json:"emphasis_patterns,omitempty"`
	RhetoricalDevices  []string       `json:"rhetorical_devices,omitempty"`
	RepetitionPatterns []string       `json:"repetition_patterns,omitempty"`
}

// PragmaticScore is the discourse-level signal.
type PragmaticScore struct {
	EmotionalIntensity float64           `json:"emotional_intensity"`
	CertaintyLevel     float64           `json:"certainty_level"`
	FormalityLevel     float64           `json:"formality_level"`
	Features           DiscourseFeatures `json:"features"`
}

// NewPragmaticScore returns a PragmaticScore with bounded fields clamped.
func NewPragmaticScore(intensity, certainty, formality float64, features DiscourseFeatures) PragmaticScore {
	return PragmaticScore{
		EmotionalIntensity: clamp(intensity, 0, 1),
		CertaintyLevel:     clamp(certainty, 0, 1),
		FormalityLevel:     clamp(formality, 0, 1),
		Features:           features,
	}
}

// clamp bounds v to [lo, hi]. NaN maps to lo.
func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return max(lo, min(hi, v))
}

// finite maps NaN to 0 and ±Inf to ±MaxFloat64 so unbounded fields stay
// usable in arithmetic.
func finite(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case math.IsInf(v, 1):
		return math.MaxFloat64
	case math.IsInf(v, -1):
		return -math.MaxFloat64
	}
	return v
}
