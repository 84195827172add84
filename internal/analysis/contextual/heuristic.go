package contextual

import (
	"context"
	"math"

	"github.com/MrWong99/narrata/internal/analysis"
	"github.com/MrWong99/narrata/internal/analysis/lexical"
	"github.com/MrWong99/narrata/internal/observe"
	"github.com/MrWong99/narrata/pkg/emotion"
)

const (
	// heuristicConfidence scales the lexical confidence; a dictionary
	// reading of the whole segment is less reliable than a model's.
	heuristicConfidence = 0.6

	// maxValence normalises valence magnitude into an attention weight.
	maxValence = 5.0
)

// Heuristic is an offline [analysis.ContextualAnalyzer]. Sentiment is the
// lexical polarity proxy; a token's attention is its valence magnitude over
// 5, so only strongly loaded words pass the emphasis threshold.
type Heuristic struct {
	lex *lexical.Analyzer
}

var _ analysis.ContextualAnalyzer = (*Heuristic)(nil)

// NewHeuristic returns a Heuristic using lex, or a default lexical analyzer
// when lex is nil.
func NewHeuristic(lex *lexical.Analyzer) *Heuristic {
	if lex == nil {
		lex = lexical.New()
	}
	return &Heuristic{lex: lex}
}

// Analyze never fails.
func (h *Heuristic) Analyze(_ context.Context, text string) (emotion.ContextualScore, error) {
	tokens := analysis.Tokenize(text)
	lex := h.lex.Analyze(text)

	attention := make(map[string]float64)
	for _, hit := range h.lex.Hits(tokens) {
		w := math.Abs(hit.Valence) / maxValence
		if w > attention[hit.Token] {
			attention[hit.Token] = w
		}
	}
	return emotion.NewContextualScore(lex.Polarity(), lex.Confidence*heuristicConfidence, attention), nil
}

// fallback tries primary and answers with secondary when primary fails for
// any reason other than the caller giving up.
type fallback struct {
	primary, secondary analysis.ContextualAnalyzer
}

// WithFallback returns an analyzer that uses primary and falls back to
// secondary on error. Context cancellation is returned as is.
func WithFallback(primary, secondary analysis.ContextualAnalyzer) analysis.ContextualAnalyzer {
	return &fallback{primary: primary, secondary: secondary}
}

func (f *fallback) Analyze(ctx context.Context, text string) (emotion.ContextualScore, error) {
	score, err := f.primary.Analyze(ctx, text)
	if err == nil {
		return score, nil
	}
	if ctx.Err() != nil {
		return emotion.ContextualScore{}, ctx.Err()
	}
	observe.Logger(ctx).Warn("contextual analysis failed, using fallback", "err", err)
	return f.secondary.Analyze(ctx, text)
}
