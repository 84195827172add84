// Package segment splits narrative text into the paragraph, sentence and
// phrase hierarchy consumed by the analyzers, and normalises segment text
// before analysis.
//
// Segmentation is purely lexical: paragraphs are separated by blank lines,
// sentences end at a run of terminal punctuation followed by whitespace, and
// phrases are the clauses of a sentence separated by clause punctuation.
// Positions are byte offsets into the original text.
package segment

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/MrWong99/narrata/pkg/types"
)

// paragraphBreak matches a blank line, tolerating CRLF and trailing blanks.
var paragraphBreak = regexp.MustCompile(`\n[ \t\r]*\n`)

// defaultAbbreviations end in a period without ending the sentence.
var defaultAbbreviations = []string{
	"mr", "mrs", "ms", "dr", "prof", "sr", "jr", "st", "vs", "etc",
	"e.g", "i.e", "cf", "no", "mt", "capt", "lt", "col", "gen", "rev",
}

// Option configures a [Segmenter].
type Option func(*Segmenter)

// WithAbbreviations adds words (without their trailing period, any case)
// that must not end a sentence.
func WithAbbreviations(words ...string) Option {
	return func(s *Segmenter) {
		for _, w := range words {
			s.abbrev[strings.ToLower(strings.TrimSuffix(w, "."))] = struct{}{}
		}
	}
}

// WithPhrases toggles clause-level segmentation. Enabled by default.
func WithPhrases(enabled bool) Option {
	return func(s *Segmenter) {
		s.phrases = enabled
	}
}

// Segmenter splits text into [types.TextSegment] values. It is stateless
// after construction and safe for concurrent use.
type Segmenter struct {
	abbrev  map[string]struct{}
	phrases bool
}

// New returns a Segmenter with the default abbreviation list.
func New(opts ...Option) *Segmenter {
	s := &Segmenter{
		abbrev:  make(map[string]struct{}, len(defaultAbbreviations)),
		phrases: true,
	}
	for _, a := range defaultAbbreviations {
		s.abbrev[a] = struct{}{}
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// span is a half-open byte range into the source text.
type span struct{ start, end int }

// Segment returns every segment of text in document order: each paragraph
// is followed by its sentences, each sentence by its phrases. Phrases are
// only emitted for sentences with at least two clauses.
//
// IDs follow the pattern p0, p0_s0, p0_s0_ph0. Blank input yields nil.
func (s *Segmenter) Segment(text string) []types.TextSegment {
	var out []types.TextSegment
	for pi, para := range s.paragraphs(text) {
		pid := fmt.Sprintf("p%d", pi)
		out = append(out, newSegment(text, pid, types.SegmentParagraph, para, ""))

		for si, sent := range s.sentences(text, para) {
			sid := fmt.Sprintf("%s_s%d", pid, si)
			out = append(out, newSegment(text, sid, types.SegmentSentence, sent, pid))

			if !s.phrases {
				continue
			}
			clauses := clauses(text, sent)
			if len(clauses) < 2 {
				continue
			}
			for ci, cl := range clauses {
				out = append(out, newSegment(text, fmt.Sprintf("%s_ph%d", sid, ci), types.SegmentPhrase, cl, sid))
			}
		}
	}
	return out
}

// Sentences is a convenience filter returning only sentence segments.
func Sentences(segs []types.TextSegment) []types.TextSegment {
	var out []types.TextSegment
	for _, seg := range segs {
		if seg.Type == types.SegmentSentence {
			out = append(out, seg)
		}
	}
	return out
}

func newSegment(text, id string, typ types.SegmentType, sp span, parent string) types.TextSegment {
	return types.TextSegment{
		ID:       id,
		Text:     text[sp.start:sp.end],
		Type:     typ,
		StartPos: sp.start,
		EndPos:   sp.end,
		ParentID: parent,
	}
}

func (s *Segmenter) paragraphs(text string) []span {
	var out []span
	start := 0
	for _, br := range paragraphBreak.FindAllStringIndex(text, -1) {
		if sp, ok := trim(text, span{start, br[0]}); ok {
			out = append(out, sp)
		}
		start = br[1]
	}
	if sp, ok := trim(text, span{start, len(text)}); ok {
		out = append(out, sp)
	}
	return out
}

func (s *Segmenter) sentences(text string, para span) []span {
	var out []span
	start := para.start
	for i := para.start; i < para.end; i++ {
		if !isTerminal(text[i]) {
			continue
		}
		j := i
		for j < para.end && isTerminal(text[j]) {
			j++
		}
		for j < para.end && isCloser(text[j]) {
			j++
		}
		if j < para.end && !isSpace(text[j]) {
			i = j - 1
			continue
		}
		if j-i == 1 && text[i] == '.' && s.isAbbreviation(text[start:i]) {
			continue
		}
		if sp, ok := trim(text, span{start, j}); ok {
			out = append(out, sp)
		}
		start = j
		i = j - 1
	}
	if sp, ok := trim(text, span{start, para.end}); ok {
		out = append(out, sp)
	}
	return out
}

// isAbbreviation reports whether the word ending prefix is a known
// abbreviation or a single-letter initial.
func (s *Segmenter) isAbbreviation(prefix string) bool {
	word := prefix[strings.LastIndexFunc(prefix, unicode.IsSpace)+1:]
	word = strings.TrimLeft(word, `"'([`)
	if word == "" {
		return false
	}
	if r, size := utf8.DecodeRuneInString(word); size == len(word) && unicode.IsUpper(r) {
		return true
	}
	_, ok := s.abbrev[strings.ToLower(word)]
	return ok
}

// clauses splits a sentence on commas, semicolons and colons followed by
// whitespace, and on dashes. Clauses without any letter or digit are
// dropped.
func clauses(text string, sent span) []span {
	var out []span
	start := sent.start
	add := func(end int) {
		if sp, ok := trim(text, span{start, end}); ok && hasWordChar(text[sp.start:sp.end]) {
			out = append(out, sp)
		}
	}
	for i := sent.start; i < sent.end; {
		r, size := utf8.DecodeRuneInString(text[i:sent.end])
		switch {
		case r == ',' || r == ';' || r == ':':
			if i+size < sent.end && isSpace(text[i+size]) {
				add(i)
				start = i + size
			}
		case r == '—' || r == '–':
			add(i)
			start = i + size
		}
		i += size
	}
	add(sent.end)
	return out
}

// trim narrows sp to exclude surrounding whitespace. ok is false when
// nothing remains.
func trim(text string, sp span) (span, bool) {
	for sp.start < sp.end && isSpace(text[sp.start]) {
		sp.start++
	}
	for sp.end > sp.start && isSpace(text[sp.end-1]) {
		sp.end--
	}
	return sp, sp.start < sp.end
}

func hasWordChar(s string) bool {
	return strings.IndexFunc(s, func(r rune) bool {
		return unicode.IsLetter(r) || unicode.IsDigit(r)
	}) >= 0
}

func isTerminal(c byte) bool { return c == '.' || c == '!' || c == '?' }

func isCloser(c byte) bool { return c == '"' || c == '\'' || c == ')' || c == ']' }

func isSpace(c byte) bool {
	return c == ' ' || c == '\n' || c == '\r' || c == '\t' || c == '\f' || c == '\v'
}
