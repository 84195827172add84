// Package analysis runs the four signal producers over a text segment: the
// lexical dictionary scorer, the contextual model-backed scorer, the sarcasm
// detector and the pragmatic discourse analyzer.
//
// The producers live in sub-packages and implement the interfaces declared
// here. [Suite] bundles one of each and runs them for a segment, timing
// every producer.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrWong99/narrata/internal/observe"
	"github.com/MrWong99/narrata/pkg/emotion"
	"github.com/MrWong99/narrata/pkg/types"
)

// LexicalAnalyzer scores text against a sentiment dictionary.
type LexicalAnalyzer interface {
	Analyze(text string) emotion.LexicalScore
}

// ContextualAnalyzer scores text with a model that sees the whole segment.
// It is the only producer that may block or fail.
type ContextualAnalyzer interface {
	Analyze(ctx context.Context, text string) (emotion.ContextualScore, error)
}

// SarcasmDetector scores how likely text is meant ironically. context holds
// the text of neighbouring segments and may be empty.
type SarcasmDetector interface {
	Detect(text string, context []string) emotion.SarcasmScore
}

// PragmaticAnalyzer extracts discourse-level features. raw is the segment
// text before normalisation, which still carries emphasis markup; it may be
// empty, in which case text is used.
type PragmaticAnalyzer interface {
	Analyze(text, raw string) emotion.PragmaticScore
}

// Input is one segment handed to the [Suite].
type Input struct {
	// Segment is the preprocessed segment.
	Segment types.TextSegment

	// Raw is the segment text before preprocessing.
	Raw string

	// Context holds neighbouring segments of the same type.
	Context []types.TextSegment
}

// Signals holds the four scores of one segment.
type Signals struct {
	Lexical    emotion.LexicalScore
	Contextual emotion.ContextualScore
	Sarcasm    emotion.SarcasmScore
	Pragmatic  emotion.PragmaticScore

	// Elapsed is the wall time spent producing all four scores.
	Elapsed time.Duration
}

// Suite runs the four producers for a segment. All fields are required.
type Suite struct {
	Lexical    LexicalAnalyzer
	Contextual ContextualAnalyzer
	Sarcasm    SarcasmDetector
	Pragmatic  PragmaticAnalyzer

	// Metrics receives per-producer latency. Nil uses observe.DefaultMetrics.
	Metrics *observe.Metrics
}

// Validate reports missing producers.
func (s *Suite) Validate() error {
	var errs []error
	if s.Lexical == nil {
		errs = append(errs, errors.New("analysis: lexical analyzer is required"))
	}
	if s.Contextual == nil {
		errs = append(errs, errors.New("analysis: contextual analyzer is required"))
	}
	if s.Sarcasm == nil {
		errs = append(errs, errors.New("analysis: sarcasm detector is required"))
	}
	if s.Pragmatic == nil {
		errs = append(errs, errors.New("analysis: pragmatic analyzer is required"))
	}
	return errors.Join(errs...)
}

// Analyze produces all four signals for in.Segment. Only the contextual
// producer can fail; its error is returned wrapped.
func (s *Suite) Analyze(ctx context.Context, in Input) (Signals, error) {
	m := s.Metrics
	if m == nil {
		m = observe.DefaultMetrics()
	}
	text := in.Segment.Text
	start := time.Now()

	var sig Signals
	timed := func(name string, fn func()) {
		t := time.Now()
		fn()
		m.RecordAnalysis(ctx, name, time.Since(t))
	}

	timed("lexical", func() { sig.Lexical = s.Lexical.Analyze(text) })

	var err error
	timed("contextual", func() { sig.Contextual, err = s.Contextual.Analyze(ctx, text) })
	if err != nil {
		return Signals{}, fmt.Errorf("analysis: contextual %s: %w", in.Segment.ID, err)
	}

	neighbours := make([]string, 0, len(in.Context))
	for _, c := range in.Context {
		neighbours = append(neighbours, c.Text)
	}
	timed("sarcasm", func() { sig.Sarcasm = s.Sarcasm.Detect(text, neighbours) })
	timed("pragmatic", func() { sig.Pragmatic = s.Pragmatic.Analyze(text, in.Raw) })

	sig.Elapsed = time.Since(start)
	return sig, nil
}
