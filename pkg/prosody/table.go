package prosody

import (
	"errors"
	"fmt"
	"maps"

	"github.com/MrWong99/narrata/pkg/emotion"
)

// Modifier is the per-emotion tuning applied at full intensity.
type Modifier struct {
	// Speed is a rate multiplier; 1.0 leaves speed unchanged.
	Speed float64 `yaml:"speed" json:"speed"`

	// Pitch is an offset in semitones.
	Pitch float64 `yaml:"pitch" json:"pitch"`

	// Energy is an energy multiplier; 1.0 leaves energy unchanged.
	Energy float64 `yaml:"energy" json:"energy"`
}

// Table maps emotion categories to their prosody [Modifier]. A Table handed
// to [WithTable] is copied, so later changes by the caller have no effect on
// the mapper.
type Table map[emotion.Type]Modifier

// DefaultTable returns the stock modifiers for the five tuned categories.
func DefaultTable() Table {
	return Table{
		emotion.Joy:      {Speed: 1.2, Pitch: 2.0, Energy: 1.2},
		emotion.Sadness:  {Speed: 0.8, Pitch: -3.0, Energy: 0.8},
		emotion.Anger:    {Speed: 1.3, Pitch: 4.0, Energy: 1.4},
		emotion.Fear:     {Speed: 1.1, Pitch: 3.0, Energy: 1.1},
		emotion.Surprise: {Speed: 1.15, Pitch: 5.0, Energy: 1.2},
	}
}

// Merge returns a copy of t with the entries of override added or replaced.
func (t Table) Merge(override Table) Table {
	out := maps.Clone(t)
	if out == nil {
		out = make(Table, len(override))
	}
	maps.Copy(out, override)
	return out
}

// Validate rejects non-positive multipliers and unnamed categories.
func (t Table) Validate() error {
	var errs []error
	for typ, m := range t {
		if typ == "" {
			errs = append(errs, errors.New("prosody table: empty emotion type"))
			continue
		}
		if m.Speed <= 0 {
			errs = append(errs, fmt.Errorf("prosody table: %s: speed multiplier must be positive, got %g", typ, m.Speed))
		}
		if m.Energy <= 0 {
			errs = append(errs, fmt.Errorf("prosody table: %s: energy multiplier must be positive, got %g", typ, m.Energy))
		}
	}
	return errors.Join(errs...)
}
