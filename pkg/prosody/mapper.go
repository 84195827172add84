package prosody

import (
	"github.com/MrWong99/narrata/pkg/emotion"
)

// DefaultEmphasisThreshold is the attention weight a token must strictly
// exceed to be emphasized.
const DefaultEmphasisThreshold = 0.7

const (
	// sarcasmThreshold is stricter than the combiner's reversal threshold:
	// only clearly sarcastic segments get the extra prosodic flourish.
	sarcasmThreshold = 0.7
	sarcasmSpeedup   = 1.15
	sarcasmPitchLift = 2.0

	positiveSpeedup  = 1.1
	negativeSlowdown = 0.9
)

// MapperOption configures a [Mapper].
type MapperOption func(*Mapper)

// WithTable replaces the emotion modifier table. The table is copied.
func WithTable(t Table) MapperOption {
	return func(m *Mapper) {
		m.table = Table(nil).Merge(t)
	}
}

// WithEmphasisThreshold overrides [DefaultEmphasisThreshold].
func WithEmphasisThreshold(th float64) MapperOption {
	return func(m *Mapper) {
		m.emphasisThreshold = th
	}
}

// Mapper converts emotion profiles into synthesis [Parameters]. It holds
// only immutable configuration and is safe for concurrent use.
type Mapper struct {
	table             Table
	emphasisThreshold float64
}

// NewMapper returns a Mapper using [DefaultTable] unless overridden.
func NewMapper(opts ...MapperOption) *Mapper {
	m := &Mapper{
		table:             DefaultTable(),
		emphasisThreshold: DefaultEmphasisThreshold,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Table returns a copy of the mapper's modifier table.
func (m *Mapper) Table() Table { return Table(nil).Merge(m.table) }

// Map derives the final synthesis parameters for p. Emotion types missing
// from the table contribute nothing. The result is always within the
// parameter bounds.
func (m *Mapper) Map(p emotion.Profile) Parameters {
	speed, pitch, energy := 1.0, 0.0, 1.0

	switch {
	case p.Sentiment.Polarity > 0:
		speed *= positiveSpeedup
	case p.Sentiment.Polarity < 0:
		speed *= negativeSlowdown
	}

	if p.Sarcasm.Probability > sarcasmThreshold {
		speed *= sarcasmSpeedup
		pitch += sarcasmPitchLift
	}

	for _, e := range p.Emotions {
		mod, ok := m.table[e.Type]
		if !ok {
			continue
		}
		speed += (mod.Speed - 1) * e.Intensity
		pitch += mod.Pitch * e.Intensity
		energy *= 1 + (mod.Energy-1)*e.Intensity
	}

	var words []string
	for tok, w := range p.Attention {
		if w > m.emphasisThreshold {
			words = append(words, tok)
		}
	}

	return NewParameters(speed, pitch, energy, words)
}
