package narrate

import (
	"github.com/MrWong99/narrata/internal/analysis"
	"github.com/MrWong99/narrata/internal/analysis/contextual"
	"github.com/MrWong99/narrata/internal/analysis/lexical"
	"github.com/MrWong99/narrata/internal/analysis/pragmatic"
	"github.com/MrWong99/narrata/internal/analysis/sarcasm"
	"github.com/MrWong99/narrata/internal/observe"
)

// NewSuite assembles the standard producers. lex may be nil for the default
// lexicon. A nil ctxAnalyzer uses the offline heuristic; otherwise the
// heuristic backs it up when it fails.
func NewSuite(lex *lexical.Analyzer, ctxAnalyzer analysis.ContextualAnalyzer, m *observe.Metrics) analysis.Suite {
	if lex == nil {
		lex = lexical.New()
	}
	heuristic := contextual.NewHeuristic(lex)
	var c analysis.ContextualAnalyzer = heuristic
	if ctxAnalyzer != nil {
		c = contextual.WithFallback(ctxAnalyzer, heuristic)
	}
	return analysis.Suite{
		Lexical:    lex,
		Contextual: c,
		Sarcasm:    sarcasm.New(),
		Pragmatic:  pragmatic.New(),
		Metrics:    m,
	}
}
