// Package lexical implements the dictionary-based sentiment signal.
//
// Every token is looked up in a [Lexicon]: its AFINN valence is summed, the
// valence is split into positive, negative and objective word-class shares
// that are averaged over the matched words, and emotion categories are
// counted. A negator flips and weakens the valence of the tokens in its
// window. Tokens missing from the lexicon are retried after collapsing
// elongated letters ("sooo goood") and then by Jaro-Winkler similarity.
package lexical

import (
	"maps"
	"math"
	"slices"
	"strings"

	"github.com/antzucaro/matchr"

	"github.com/MrWong99/narrata/internal/analysis"
	"github.com/MrWong99/narrata/pkg/emotion"
)

const (
	// DefaultNegationWindow is how many tokens after a negator are affected.
	DefaultNegationWindow = 3

	// DefaultFuzzyThreshold is the minimum Jaro-Winkler similarity for a
	// fuzzy lexicon match.
	DefaultFuzzyThreshold = 0.92

	// negationFactor reverses and weakens negated valence ("not good" is
	// milder than "bad").
	negationFactor = -0.5

	// minConfidence is reported for non-empty text with no lexicon hits.
	minConfidence = 0.1

	// minFuzzyLen keeps short tokens out of fuzzy matching, where a single
	// edit changes the word entirely.
	minFuzzyLen = 5
)

// categoryOrder fixes the order of the reported emotion breakdown.
var categoryOrder = []emotion.Type{emotion.Joy, emotion.Sadness, emotion.Anger, emotion.Fear, emotion.Surprise}

// Option configures an [Analyzer].
type Option func(*Analyzer)

// WithLexicon replaces the built-in lexicon.
func WithLexicon(l *Lexicon) Option {
	return func(a *Analyzer) {
		if l != nil {
			a.lexicon = l
		}
	}
}

// WithNegationWindow overrides [DefaultNegationWindow].
func WithNegationWindow(n int) Option {
	return func(a *Analyzer) {
		if n >= 0 {
			a.negationWindow = n
		}
	}
}

// WithFuzzyThreshold overrides [DefaultFuzzyThreshold]. A threshold above 1
// disables fuzzy lookup.
func WithFuzzyThreshold(th float64) Option {
	return func(a *Analyzer) {
		a.fuzzyThreshold = th
	}
}

// Analyzer produces [emotion.LexicalScore] values. It is read-only after
// construction and safe for concurrent use.
type Analyzer struct {
	lexicon        *Lexicon
	negationWindow int
	fuzzyThreshold float64
}

var _ analysis.LexicalAnalyzer = (*Analyzer)(nil)

// New returns an Analyzer backed by [DefaultLexicon] unless overridden.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{
		lexicon:        DefaultLexicon(),
		negationWindow: DefaultNegationWindow,
		fuzzyThreshold: DefaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Lexicon returns the analyzer's lexicon.
func (a *Analyzer) Lexicon() *Lexicon { return a.lexicon }

// Hit is one token matched against the lexicon.
type Hit struct {
	// Token is the token as it appeared in the text (lowercased).
	Token string

	// Entry is the lexicon word it matched.
	Entry string

	// Valence after negation.
	Valence float64

	Negated bool
}

// Analyze scores text.
func (a *Analyzer) Analyze(text string) emotion.LexicalScore {
	tokens := analysis.Tokenize(text)
	hits := a.Hits(tokens)

	var afinn, pos, neg, obj float64
	counts := make(map[emotion.Type]int)
	for _, h := range hits {
		afinn += h.Valence
		p, n, o := classShares(h.Valence)
		pos += p
		neg += n
		obj += o
		if !h.Negated {
			for _, c := range a.lexicon.Emotions(h.Entry) {
				counts[c]++
			}
		}
	}

	if len(hits) > 0 {
		k := float64(len(hits))
		pos, neg, obj = pos/k, neg/k, obj/k
	} else {
		obj = 1
	}

	var confidence float64
	if len(tokens) > 0 {
		confidence = max(minConfidence, float64(len(hits))/float64(len(tokens)))
	}

	var emotions []emotion.EmotionScore
	for _, c := range categoryOrder {
		if n := counts[c]; n > 0 {
			emotions = append(emotions, emotion.EmotionScore{Type: c, Score: saturate(n)})
		}
	}
	// Custom lexicons may define categories beyond the built-in five.
	for _, c := range slices.Sorted(maps.Keys(counts)) {
		if !slices.Contains(categoryOrder, c) {
			emotions = append(emotions, emotion.EmotionScore{Type: c, Score: saturate(counts[c])})
		}
	}

	compound := (afinn + (pos - neg)) / 2
	return emotion.NewLexicalScore(afinn, pos, neg, obj, compound, confidence, emotions)
}

// Hits returns the lexicon matches of tokens in order, with negation
// applied. Negators themselves are never hits.
func (a *Analyzer) Hits(tokens []string) []Hit {
	var hits []Hit
	negatedUntil := -1
	for i, tok := range tokens {
		if analysis.IsNegator(tok) {
			negatedUntil = i + a.negationWindow
			continue
		}
		entry, ok := a.lookup(tok)
		if !ok {
			continue
		}
		v, _ := a.lexicon.Valence(entry)
		negated := i <= negatedUntil
		if negated {
			v *= negationFactor
		}
		hits = append(hits, Hit{Token: tok, Entry: entry, Valence: v, Negated: negated})
	}
	return hits
}

// Valence returns the lexicon valence of a single token, using the same
// elongation and fuzzy fallbacks as [Analyzer.Analyze].
func (a *Analyzer) Valence(token string) (float64, bool) {
	entry, ok := a.lookup(strings.ToLower(token))
	if !ok {
		return 0, false
	}
	v, hasValence := a.lexicon.Valence(entry)
	return v, hasValence
}

func (a *Analyzer) lookup(tok string) (string, bool) {
	if a.lexicon.Has(tok) {
		return tok, true
	}
	// "sooo" -> "so", then "soo" for words with a genuine double letter.
	if c := collapseRuns(tok, 1); c != tok && a.lexicon.Has(c) {
		return c, true
	}
	if c := collapseRuns(tok, 2); c != tok && a.lexicon.Has(c) {
		return c, true
	}
	return a.fuzzy(tok)
}

func (a *Analyzer) fuzzy(tok string) (string, bool) {
	if a.fuzzyThreshold > 1 || len(tok) < minFuzzyLen {
		return "", false
	}
	best, bestScore := "", 0.0
	for _, cand := range a.lexicon.byInitial[tok[0]] {
		if d := len(cand) - len(tok); d > 2 || d < -2 {
			continue
		}
		if s := matchr.JaroWinkler(tok, cand, false); s > bestScore {
			best, bestScore = cand, s
		}
	}
	if bestScore >= a.fuzzyThreshold {
		return best, true
	}
	return "", false
}

// collapseRuns shortens every run of a repeated rune to at most keep runes.
func collapseRuns(s string, keep int) string {
	var b strings.Builder
	var prev rune
	run := 0
	for _, r := range s {
		if r == prev {
			run++
		} else {
			prev, run = r, 1
		}
		if run <= keep {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// classShares splits a valence into positive, negative and objective shares
// summing to 1.
func classShares(v float64) (pos, neg, obj float64) {
	s := math.Min(math.Abs(v)/maxValence, 1)
	if v > 0 {
		pos = s
	} else {
		neg = s
	}
	return pos, neg, 1 - s
}

// saturate maps a hit count to (0, 1): one hit is 0.5, two 0.75, and so on.
func saturate(n int) float64 {
	return 1 - math.Pow(0.5, float64(n))
}
