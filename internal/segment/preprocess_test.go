package segment

import (
	"testing"

	"github.com/MrWong99/narrata/pkg/types"
)

func TestNormalize(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in, want string
	}{
		{"Oh great.....", "Oh great..."},
		{"Wait..", "Wait..."},
		{"Hello,   world!", "Hello, world!"},
		{"tabs\tand\nnewlines", "tabs and newlines"},
		{"I ♥ *this* #hashtag", "I this hashtag"},
		{`"Don't" - she said?`, `"Don't" - she said?`},
		{"  padded  ", "padded"},
		{"@@@", ""},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPreprocess_PreservesMetadata(t *testing.T) {
	t.Parallel()
	seg := types.TextSegment{
		ID:       "p0_s1",
		Text:     "  So   *happy*.... ",
		Type:     types.SegmentSentence,
		StartPos: 12,
		EndPos:   31,
		ParentID: "p0",
	}

	got := Preprocess(seg)

	if got.Text != "So happy ..." {
		t.Errorf("text = %q, want %q", got.Text, "So happy ...")
	}
	want := seg
	want.Text = got.Text
	if got != want {
		t.Errorf("metadata changed: got %+v, want %+v", got, want)
	}
}

func TestPreprocessAll_EmptyResultIsRejected(t *testing.T) {
	t.Parallel()
	segs := PreprocessAll([]types.TextSegment{
		{ID: "p0", Text: "✨✨", Type: types.SegmentParagraph, EndPos: 6},
		{ID: "p1", Text: "fine", Type: types.SegmentParagraph, StartPos: 8, EndPos: 12},
	})
	if adm := types.Admit(segs[0]); adm.Accepted {
		t.Error("segment emptied by preprocessing should be rejected")
	}
	if adm := types.Admit(segs[1]); !adm.Accepted {
		t.Errorf("p1 rejected: %s", adm.Reason)
	}
}
