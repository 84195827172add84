// Package prosody turns fused emotion profiles into the speed, pitch, energy
// and emphasis controls handed to a speech synthesizer.
package prosody

import (
	"math"
	"slices"
	"strings"
)

// Parameter bounds. Every [Parameters] value produced by a [Mapper] lies
// within them.
const (
	MinSpeed  = 0.5
	MaxSpeed  = 2.0
	MinPitch  = -20.0
	MaxPitch  = 20.0
	MinEnergy = 0.5
	MaxEnergy = 2.0
)

// Parameters are the final synthesis controls for one segment.
type Parameters struct {
	// Speed is a rate multiplier in [0.5, 2.0]; 1.0 is neutral.
	Speed float64 `json:"speed"`

	// Pitch is an offset in semitones in [-20, 20].
	Pitch float64 `json:"pitch"`

	// Energy is a loudness/intensity multiplier in [0.5, 2.0].
	Energy float64 `json:"energy"`

	// EmphasisWords is sorted and free of duplicates.
	EmphasisWords []string `json:"emphasis_words"`
}

// Neutral returns parameters that leave a voice unchanged.
func Neutral() Parameters {
	return Parameters{Speed: 1, Energy: 1, EmphasisWords: []string{}}
}

// NewParameters clamps speed, pitch and energy into range and normalises the
// emphasis word set.
func NewParameters(speed, pitch, energy float64, emphasis []string) Parameters {
	return Parameters{
		Speed:         clamp(speed, MinSpeed, MaxSpeed, 1),
		Pitch:         clamp(pitch, MinPitch, MaxPitch, 0),
		Energy:        clamp(energy, MinEnergy, MaxEnergy, 1),
		EmphasisWords: wordSet(emphasis),
	}
}

// IsNeutral reports whether p would not alter synthesis at all.
func (p Parameters) IsNeutral() bool {
	return p.Speed == 1 && p.Pitch == 0 && p.Energy == 1 && len(p.EmphasisWords) == 0
}

// Emphasizes reports whether word is in the emphasis set.
func (p Parameters) Emphasizes(word string) bool {
	_, found := slices.BinarySearch(p.EmphasisWords, word)
	return found
}

// Options flattens p into the named options passed to a synthesizer.
func (p Parameters) Options() map[string]any {
	return map[string]any{
		"speed":          p.Speed,
		"pitch":          p.Pitch,
		"energy":         p.Energy,
		"emphasis_words": slices.Clone(p.EmphasisWords),
	}
}

func wordSet(words []string) []string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		if w = strings.TrimSpace(w); w != "" {
			out = append(out, w)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// clamp bounds v to [lo, hi]; NaN becomes neutral.
func clamp(v, lo, hi, neutral float64) float64 {
	if math.IsNaN(v) {
		return neutral
	}
	return max(lo, min(hi, v))
}
