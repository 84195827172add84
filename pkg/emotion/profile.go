package emotion

import (
	"time"

	"github.com/MrWong99/narrata/pkg/types"
)

// Sentiment is the fused basic sentiment of a segment.
type Sentiment struct {
	// Polarity in [-1, 1].
	Polarity float64 `json:"polarity"`

	// Objectivity in [0, 1].
	Objectivity float64 `json:"objectivity"`

	// Confidence in [0, 1].
	Confidence float64 `json:"confidence"`
}

// ComplexEmotion is one entry of the fused emotion list. Intensities are
// independent of each other; they do not form a distribution.
type ComplexEmotion struct {
	Type       Type    `json:"emotion_type"`
	Intensity  float64 `json:"intensity"`
	Confidence float64 `json:"confidence"`
}

// SarcasmIndicators summarises the sarcasm signal on the profile.
type SarcasmIndicators struct {
	Probability  float64 `json:"probability"`
	Confidence   float64 `json:"confidence"`
	FeatureCount int     `json:"feature_count"`
}

// Markers are the coarse, profile-level prosody hints. The prosody mapper
// refines them into final synthesis parameters.
type Markers struct {
	// SpeedFactor in [0.5, 2.0].
	SpeedFactor float64 `json:"speed_factor"`

	// PitchShift in [-0.5, 0.5].
	PitchShift float64 `json:"pitch_shift"`

	// VolumeAdjust in [0.5, 1.5].
	VolumeAdjust float64 `json:"volume_adjust"`

	// EmphasisLevel in [0, 1].
	EmphasisLevel float64 `json:"emphasis_level"`
}

// Metadata describes how and when a profile was produced.
type Metadata struct {
	Timestamp      time.Time     `json:"timestamp"`
	ModelVersion   string        `json:"model_version"`
	ProcessingTime time.Duration `json:"processing_time"`
}

// Profile is the fused emotional reading of one segment. A Profile is built
// once by the [Combiner] and never mutated afterwards; consumers that need to
// change anything must build a new value.
type Profile struct {
	SegmentID string            `json:"segment_id"`
	Segment   types.TextSegment `json:"text_reference"`
	Sentiment Sentiment         `json:"basic_sentiment"`
	Emotions  []ComplexEmotion  `json:"complex_emotions"`
	Sarcasm   SarcasmIndicators `json:"sarcasm_indicators"`
	Markers   Markers           `json:"prosody_markers"`

	// Attention is the token saliency map carried through from the
	// contextual signal. It is only consulted for emphasis word selection.
	Attention map[string]float64 `json:"attention_weights,omitempty"`

	Metadata Metadata `json:"metadata"`
}

// Dominant returns the complex emotion with the highest intensity. The second
// return value is false when the profile has no complex emotions.
func (p Profile) Dominant() (ComplexEmotion, bool) {
	if len(p.Emotions) == 0 {
		return ComplexEmotion{}, false
	}
	best := p.Emotions[0]
	for _, e := range p.Emotions[1:] {
		if e.Intensity > best.Intensity {
			best = e
		}
	}
	return best, true
}

// Sarcastic reports whether the sarcasm probability was high enough for the
// combiner to reverse the segment's polarity.
func (p Profile) Sarcastic() bool {
	return p.Sarcasm.Probability > sarcasmReversalThreshold
}
