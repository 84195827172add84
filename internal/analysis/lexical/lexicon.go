package lexical

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/narrata/pkg/emotion"
)

//go:embed lexicon.yaml
var defaultLexiconYAML []byte

// maxValence bounds the AFINN scale.
const maxValence = 5

// Lexicon maps words to their valence and emotion categories. A Lexicon is
// read-only once built and safe for concurrent use.
type Lexicon struct {
	valence  map[string]float64
	emotions map[string][]emotion.Type

	// byInitial buckets vocabulary by first byte for fuzzy lookup.
	byInitial map[byte][]string
}

// lexiconFile is the YAML layout of a lexicon.
type lexiconFile struct {
	Valence  map[string]float64         `yaml:"valence"`
	Emotions map[emotion.Type][]string `yaml:"emotions"`
}

var (
	defaultLexicon     *Lexicon
	defaultLexiconErr  error
	defaultLexiconOnce sync.Once
)

// DefaultLexicon returns the built-in English lexicon.
func DefaultLexicon() *Lexicon {
	defaultLexiconOnce.Do(func() {
		defaultLexicon, defaultLexiconErr = ParseLexicon(strings.NewReader(string(defaultLexiconYAML)))
	})
	if defaultLexiconErr != nil {
		panic("lexical: embedded lexicon is invalid: " + defaultLexiconErr.Error())
	}
	return defaultLexicon
}

// ParseLexicon decodes a YAML lexicon. Unknown keys are rejected and every
// valence must lie in [-5, 5].
func ParseLexicon(r io.Reader) (*Lexicon, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f lexiconFile
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("lexical: parse lexicon: %w", err)
	}

	var errs []error
	for w, v := range f.Valence {
		if v < -maxValence || v > maxValence {
			errs = append(errs, fmt.Errorf("valence of %q is %g, want [-5, 5]", w, v))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("lexical: parse lexicon: %w", err)
	}
	return build(f), nil
}

func build(f lexiconFile) *Lexicon {
	l := &Lexicon{
		valence:   make(map[string]float64, len(f.Valence)),
		emotions:  make(map[string][]emotion.Type),
		byInitial: make(map[byte][]string),
	}
	for w, v := range f.Valence {
		l.valence[strings.ToLower(w)] = v
	}
	// Iterate categories in a fixed order so per-word category lists are
	// deterministic.
	for _, cat := range slices.Sorted(maps.Keys(f.Emotions)) {
		for _, w := range f.Emotions[cat] {
			w = strings.ToLower(w)
			if !slices.Contains(l.emotions[w], cat) {
				l.emotions[w] = append(l.emotions[w], cat)
			}
		}
	}
	for w := range l.vocabulary() {
		l.byInitial[w[0]] = append(l.byInitial[w[0]], w)
	}
	for k := range l.byInitial {
		slices.Sort(l.byInitial[k])
	}
	return l
}

func (l *Lexicon) vocabulary() map[string]struct{} {
	out := make(map[string]struct{}, len(l.valence)+len(l.emotions))
	for w := range l.valence {
		out[w] = struct{}{}
	}
	for w := range l.emotions {
		out[w] = struct{}{}
	}
	return out
}

// Merge returns a new Lexicon with the entries of other layered over l.
// Valences in other replace those in l; emotion categories are unioned.
func (l *Lexicon) Merge(other *Lexicon) *Lexicon {
	f := lexiconFile{
		Valence:  make(map[string]float64),
		Emotions: make(map[emotion.Type][]string),
	}
	for _, src := range []*Lexicon{l, other} {
		if src == nil {
			continue
		}
		maps.Copy(f.Valence, src.valence)
		for w, cats := range src.emotions {
			for _, c := range cats {
				f.Emotions[c] = append(f.Emotions[c], w)
			}
		}
	}
	return build(f)
}

// Valence returns the AFINN valence of word. The second result is false for
// words not in the lexicon.
func (l *Lexicon) Valence(word string) (float64, bool) {
	v, ok := l.valence[word]
	return v, ok
}

// Emotions returns the categories word belongs to.
func (l *Lexicon) Emotions(word string) []emotion.Type {
	return l.emotions[word]
}

// Has reports whether word has a valence or an emotion category.
func (l *Lexicon) Has(word string) bool {
	if _, ok := l.valence[word]; ok {
		return true
	}
	_, ok := l.emotions[word]
	return ok
}

// Len returns the vocabulary size.
func (l *Lexicon) Len() int { return len(l.vocabulary()) }
