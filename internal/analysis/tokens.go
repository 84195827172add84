package analysis

import (
	"strings"
	"unicode"
)

// Tokenize splits text into lowercase word tokens. Letters, digits and inner
// apostrophes form words ("don't" stays one token); everything else
// separates them. Attention maps and emphasis sets are keyed by these tokens.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\'' && r != '’'
	})
	out := fields[:0]
	for _, f := range fields {
		f = strings.ReplaceAll(f, "’", "'")
		if f = strings.Trim(f, "'"); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// stopwords are excluded from vocabulary comparisons and repetition checks.
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {},
	"but": {}, "by": {}, "for": {}, "from": {}, "had": {}, "has": {},
	"have": {}, "he": {}, "her": {}, "his": {}, "i": {}, "in": {}, "is": {},
	"it": {}, "its": {}, "me": {}, "my": {}, "of": {}, "on": {}, "or": {},
	"she": {}, "so": {}, "that": {}, "the": {}, "their": {}, "them": {},
	"they": {}, "this": {}, "to": {}, "was": {}, "we": {}, "were": {},
	"with": {}, "you": {}, "your": {},
}

// IsStopword reports whether tok is a function word carrying no content.
func IsStopword(tok string) bool {
	_, ok := stopwords[tok]
	return ok
}

// ContentWords returns the distinct non-stopword tokens of text.
func ContentWords(text string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, t := range Tokenize(text) {
		if !IsStopword(t) {
			out[t] = struct{}{}
		}
	}
	return out
}

// negators flip the valence of the words that follow them.
var negators = map[string]struct{}{
	"not": {}, "no": {}, "never": {}, "none": {}, "nobody": {}, "nothing": {},
	"neither": {}, "nor": {}, "nowhere": {}, "cannot": {}, "without": {},
}

// IsNegator reports whether tok negates what follows, including any
// contraction ending in "n't".
func IsNegator(tok string) bool {
	if _, ok := negators[tok]; ok {
		return true
	}
	return strings.HasSuffix(tok, "n't")
}
