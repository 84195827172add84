// Package narrate runs a document through the whole narration pipeline:
// segmentation, preprocessing, admission, the four signal producers, fusion
// into emotion profiles, prosody mapping, per-sentence synthesis and final
// audio assembly.
//
// Every level of the segment hierarchy is analysed and (optionally) stored,
// but only sentences are voiced, so the text is read exactly once.
package narrate

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/MrWong99/narrata/pkg/audio"
	"github.com/MrWong99/narrata/pkg/emotion"
	"github.com/MrWong99/narrata/pkg/prosody"
	"github.com/MrWong99/narrata/pkg/types"
)

var (
	// ErrTextProcessing is returned when the input yields no usable
	// segments.
	ErrTextProcessing = errors.New("narrate: text processing failed")

	// ErrAnalysis wraps failures of the signal producers or of fusion.
	ErrAnalysis = errors.New("narrate: analysis failed")

	// ErrSynthesis wraps failures of speech synthesis or audio assembly.
	ErrSynthesis = errors.New("narrate: synthesis failed")

	// ErrNoSynthesizer is returned by Process on a pipeline built without a
	// TTS provider.
	ErrNoSynthesizer = errors.New("narrate: no synthesizer configured")
)

// SegmentResult is the reading of one admitted segment.
type SegmentResult struct {
	// Segment is the preprocessed segment.
	Segment types.TextSegment `json:"segment"`

	Profile emotion.Profile    `json:"profile"`
	Prosody prosody.Parameters `json:"prosody"`
}

// Rejection is a segment that failed admission.
type Rejection struct {
	Segment types.TextSegment `json:"segment"`
	Reason  string            `json:"reason"`
}

// Stats summarises one run.
type Stats struct {
	// SegmentsProcessed counts admitted segments across all levels.
	SegmentsProcessed int `json:"segments_processed"`

	// Rejected counts segments that failed admission.
	Rejected int `json:"rejected"`

	// SentencesVoiced counts synthesized sentences. Zero for analysis-only
	// runs.
	SentencesVoiced int `json:"sentences_voiced"`

	// Duration is the wall time of the run.
	Duration time.Duration `json:"duration"`

	// AudioDuration is the length of the narrated track.
	AudioDuration time.Duration `json:"audio_duration"`
}

// Analysis is the output of [Pipeline.Analyze].
type Analysis struct {
	// DocumentID identifies the text; equal texts get equal ids.
	DocumentID string          `json:"document_id"`
	Segments   []SegmentResult `json:"segments"`
	Rejected   []Rejection     `json:"rejected,omitempty"`
	Stats      Stats           `json:"stats"`
}

// Sentences returns the sentence-level results in reading order.
func (a *Analysis) Sentences() []SegmentResult {
	var out []SegmentResult
	for _, r := range a.Segments {
		if r.Segment.Type == types.SegmentSentence {
			out = append(out, r)
		}
	}
	return out
}

// Result is the output of [Pipeline.Process].
type Result struct {
	Analysis

	// Audio is the assembled narration.
	Audio audio.Clip `json:"-"`
}

// DocumentID derives a stable identifier for text.
func DocumentID(text string) string {
	sum := sha256.Sum256([]byte(text))
	return "doc-" + hex.EncodeToString(sum[:8])
}
