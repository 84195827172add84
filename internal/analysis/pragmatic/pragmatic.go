// Package pragmatic implements the discourse-level signal: discourse
// markers, typographic emphasis, rhetorical devices, repetition, formality
// and certainty.
package pragmatic

import (
	"regexp"
	"slices"
	"strings"

	"github.com/MrWong99/narrata/internal/analysis"
	"github.com/MrWong99/narrata/pkg/emotion"
)

// Emphasis pattern names.
const (
	EmphasisCapitalization = "capitalization"
	EmphasisPunctuation    = "multiple_punctuation"
	EmphasisItalics        = "italics_markers"
)

// Rhetorical device names.
const (
	DeviceQuestion   = "rhetorical_question"
	DeviceParallel   = "parallel_structure"
	DeviceComparison = "comparison"
)

const (
	markerWeight     = 0.1
	emphasisWeight   = 0.2
	rhetoricalWeight = 0.15
	repetitionWeight = 0.1

	// neutralLevel is reported for formality and certainty when no
	// indicator is present.
	neutralLevel = 0.5
)

// markerCategories maps discourse marker categories to their words.
var markerCategories = map[string][]string{
	"causal":      {"because", "therefore", "thus", "hence", "so"},
	"contrast":    {"however", "but", "although", "nevertheless", "yet"},
	"emphasis":    {"indeed", "certainly", "clearly", "obviously", "notably"},
	"sequence":    {"first", "then", "finally", "next", "subsequently"},
	"elaboration": {"specifically", "particularly", "especially", "namely"},
}

var (
	formalIndicators = []string{
		"moreover", "furthermore", "consequently", "nevertheless", "regarding",
		"concerning", "whereas", "hereby", "therein", "thereafter",
	}
	informalIndicators = []string{
		"like", "well", "you know", "kind of", "sort of", "basically",
		"actually", "pretty much", "stuff", "things",
	}
	certaintyIndicators = []string{
		"certainly", "definitely", "surely", "clearly", "undoubtedly",
		"absolutely", "obviously",
	}
	uncertaintyIndicators = []string{
		"maybe", "perhaps", "possibly", "probably", "might", "could", "may", "seems",
	}
	comparisonWords = []string{"like", "as", "than"}

	// repetitionExempt words may repeat without counting as repetition.
	repetitionExempt = []string{"the", "a", "an", "and", "or", "but"}
)

var (
	capitalized   = regexp.MustCompile(`\b[A-Z]{2,}\b`)
	multiPunct    = regexp.MustCompile(`[!?]{2,}`)
	italics       = regexp.MustCompile(`[*_][^*_\n]+[*_]`)
	whQuestion    = regexp.MustCompile(`\b(?:why|how|what|when|where|who)\b.*\?`)
	clauseBreaker = regexp.MustCompile(`[,;:]`)
)

// Analyzer produces [emotion.PragmaticScore] values. It is stateless and
// safe for concurrent use.
type Analyzer struct{}

var _ analysis.PragmaticAnalyzer = (*Analyzer)(nil)

// New returns an Analyzer.
func New() *Analyzer { return &Analyzer{} }

// Analyze scores text. Emphasis patterns are read from raw when it is set,
// since normalisation strips markup such as *italics*.
func (a *Analyzer) Analyze(text, raw string) emotion.PragmaticScore {
	if raw == "" {
		raw = text
	}
	tokens := analysis.Tokenize(text)
	phrase := " " + strings.Join(tokens, " ") + " "

	markers := discourseMarkers(tokens)
	emphasis := emphasisPatterns(raw)
	rhetorical := rhetoricalDevices(text, tokens)
	repetition := repetitions(tokens)

	total := 0
	for _, n := range markers {
		total += n
	}
	intensity := min(1,
		float64(total)*markerWeight+
			float64(len(emphasis))*emphasisWeight+
			float64(len(rhetorical))*rhetoricalWeight+
			float64(len(repetition))*repetitionWeight)

	formality := ratio(count(phrase, formalIndicators), count(phrase, informalIndicators))
	certainty := ratio(count(phrase, certaintyIndicators)+markers["emphasis"], count(phrase, uncertaintyIndicators))

	var markerMap map[string]int
	if len(markers) > 0 {
		markerMap = markers
	}
	return emotion.NewPragmaticScore(intensity, certainty, formality, emotion.DiscourseFeatures{
		DiscourseMarkers:   markerMap,
		EmphasisPatterns:   emphasis,
		RhetoricalDevices:  rhetorical,
		RepetitionPatterns: repetition,
	})
}

func discourseMarkers(tokens []string) map[string]int {
	out := make(map[string]int)
	for cat, words := range markerCategories {
		n := 0
		for _, t := range tokens {
			if slices.Contains(words, t) {
				n++
			}
		}
		if n > 0 {
			out[cat] = n
		}
	}
	return out
}

func emphasisPatterns(raw string) []string {
	var out []string
	if capitalized.MatchString(raw) {
		out = append(out, EmphasisCapitalization)
	}
	if multiPunct.MatchString(raw) {
		out = append(out, EmphasisPunctuation)
	}
	if italics.MatchString(raw) {
		out = append(out, EmphasisItalics)
	}
	return out
}

func rhetoricalDevices(text string, tokens []string) []string {
	var out []string
	if whQuestion.MatchString(strings.ToLower(text)) {
		out = append(out, DeviceQuestion)
	}
	if parallel(text) {
		out = append(out, DeviceParallel)
	}
	for _, t := range tokens {
		if slices.Contains(comparisonWords, t) {
			out = append(out, DeviceComparison)
			break
		}
	}
	return out
}

// parallel reports two or more clauses opening with the same word, as in
// "we came, we saw, we conquered".
func parallel(text string) bool {
	seen := make(map[string]struct{})
	for _, clause := range clauseBreaker.Split(text, -1) {
		toks := analysis.Tokenize(clause)
		for len(toks) > 0 && (toks[0] == "and" || toks[0] == "but" || toks[0] == "or") {
			toks = toks[1:]
		}
		if len(toks) == 0 {
			continue
		}
		if _, dup := seen[toks[0]]; dup {
			return true
		}
		seen[toks[0]] = struct{}{}
	}
	return false
}

func repetitions(tokens []string) []string {
	counts := make(map[string]int)
	for _, t := range tokens {
		counts[t]++
	}
	var out []string
	for t, n := range counts {
		if n > 1 && !slices.Contains(repetitionExempt, t) {
			out = append(out, t)
		}
	}
	slices.Sort(out)
	return out
}

// count returns how often the indicators occur as whole words or phrases in
// phrase, a space-padded token sequence.
func count(phrase string, indicators []string) int {
	n := 0
	for _, ind := range indicators {
		n += strings.Count(phrase, " "+ind+" ")
	}
	return n
}

func ratio(a, b int) float64 {
	if a+b == 0 {
		return neutralLevel
	}
	return float64(a) / float64(a+b)
}
