package emotion

import (
	"errors"
	"fmt"
	"math"
)

// Weights assigns a share of the fused sentiment to each signal source.
// Weights is passed by value; a Combiner keeps its own copy.
type Weights struct {
	Lexical    float64 `yaml:"lexical"    json:"lexical"`
	Contextual float64 `yaml:"contextual" json:"contextual"`
	Sarcasm    float64 `yaml:"sarcasm"    json:"sarcasm"`
	Pragmatic  float64 `yaml:"pragmatic"  json:"pragmatic"`
}

// DefaultWeights returns the stock weighting 0.25/0.35/0.20/0.20.
func DefaultWeights() Weights {
	return Weights{
		Lexical:    0.25,
		Contextual: 0.35,
		Sarcasm:    0.20,
		Pragmatic:  0.20,
	}
}

// Sum returns the total of all four weights.
func (w Weights) Sum() float64 {
	return w.Lexical + w.Contextual + w.Sarcasm + w.Pragmatic
}

// Validate reports negative or non-finite weights and a total outside
// [0.99, 1.01].
func (w Weights) Validate() error {
	var errs []error
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"lexical", w.Lexical},
		{"contextual", w.Contextual},
		{"sarcasm", w.Sarcasm},
		{"pragmatic", w.Pragmatic},
	} {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			errs = append(errs, fmt.Errorf("weight %s is not a finite number", f.name))
			continue
		}
		if f.v < 0 {
			errs = append(errs, fmt.Errorf("weight %s is negative (%g)", f.name, f.v))
		}
	}
	if len(errs) == 0 {
		if s := w.Sum(); s < 0.99 || s > 1.01 {
			errs = append(errs, fmt.Errorf("weights sum to %.3f, want 1.0 (±0.01)", s))
		}
	}
	return errors.Join(errs...)
}
