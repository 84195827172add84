package segment

import (
	"regexp"
	"strings"

	"github.com/MrWong99/narrata/pkg/types"
)

var (
	// ellipsis runs are kept as a three-dot ellipsis; the sarcasm detector
	// looks for them.
	periodRun   = regexp.MustCompile(`\.{2,}`)
	disallowed  = regexp.MustCompile(`[^a-zA-Z0-9\s.,!?'"-]`)
	whitespaces = regexp.MustCompile(`\s+`)
)

// Normalize collapses period runs into "...", replaces every character
// outside letters, digits, whitespace and .,!?'"- with a space, collapses
// whitespace and trims the result.
func Normalize(text string) string {
	text = periodRun.ReplaceAllLiteralString(text, "...")
	text = disallowed.ReplaceAllLiteralString(text, " ")
	text = whitespaces.ReplaceAllLiteralString(text, " ")
	return strings.TrimSpace(text)
}

// Preprocess returns seg with its text normalised. ID, type, positions and
// parent are preserved, so positions keep pointing into the original text.
// The result may have empty text; [types.Admit] rejects such segments.
func Preprocess(seg types.TextSegment) types.TextSegment {
	seg.Text = Normalize(seg.Text)
	return seg
}

// PreprocessAll applies [Preprocess] to every segment, returning a new slice.
func PreprocessAll(segs []types.TextSegment) []types.TextSegment {
	out := make([]types.TextSegment, len(segs))
	for i, s := range segs {
		out[i] = Preprocess(s)
	}
	return out
}
