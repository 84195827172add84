// Package types defines the shared records used across all narrata packages.
//
// These types form the lingua franca between the segmenter, the signal
// analyzers, the fusion engine, and the synthesis layer. They are intentionally
// minimal. Each package defines its own domain types; cross-cutting data
// structures live here to avoid circular imports.
package types

import (
	"errors"
	"fmt"
	"strings"
)

// SegmentType is the granularity of a [TextSegment] in the document hierarchy.
type SegmentType string

const (
	// SegmentParagraph is a block of text separated from its neighbours by a
	// blank line.
	SegmentParagraph SegmentType = "paragraph"

	// SegmentSentence is a sentence inside a paragraph.
	SegmentSentence SegmentType = "sentence"

	// SegmentPhrase is a clause-level fragment inside a sentence.
	SegmentPhrase SegmentType = "phrase"
)

// IsValid reports whether t is a recognised segment type.
func (t SegmentType) IsValid() bool {
	switch t {
	case SegmentParagraph, SegmentSentence, SegmentPhrase:
		return true
	}
	return false
}

// Level returns the depth of t in the hierarchy: 0 for paragraphs, 1 for
// sentences, 2 for phrases and -1 for unknown types.
func (t SegmentType) Level() int {
	switch t {
	case SegmentParagraph:
		return 0
	case SegmentSentence:
		return 1
	case SegmentPhrase:
		return 2
	default:
		return -1
	}
}

// Parent returns the segment type one level up the hierarchy. Paragraphs have
// no parent type; the second return value is false for them.
func (t SegmentType) Parent() (SegmentType, bool) {
	switch t {
	case SegmentSentence:
		return SegmentParagraph, true
	case SegmentPhrase:
		return SegmentSentence, true
	default:
		return "", false
	}
}

// TextSegment is a unit of narrative text with its position in the source
// document and an optional link to the enclosing segment.
//
// Segments are produced by the segmenter and are read-only afterwards.
type TextSegment struct {
	// ID is unique within a document (e.g. "p0", "p0_s1", "p0_s1_ph2").
	ID string `json:"id"`

	// Text is the segment content.
	Text string `json:"text"`

	// Type is the segment granularity.
	Type SegmentType `json:"segment_type"`

	// StartPos and EndPos are byte offsets into the source document.
	// StartPos <= EndPos always holds for a valid segment.
	StartPos int `json:"start_pos"`
	EndPos   int `json:"end_pos"`

	// ParentID references the enclosing segment one level up. Empty for
	// paragraphs.
	ParentID string `json:"parent_id,omitempty"`
}

// ErrEmptyText is returned by [TextSegment.Validate] for segments whose text
// contains nothing but whitespace.
var ErrEmptyText = errors.New("segment text is empty")

// Validate checks the structural invariants of s. It returns a joined error
// listing every violation found.
func (s TextSegment) Validate() error {
	var errs []error
	if s.ID == "" {
		errs = append(errs, errors.New("segment id is required"))
	}
	if strings.TrimSpace(s.Text) == "" {
		errs = append(errs, ErrEmptyText)
	}
	if !s.Type.IsValid() {
		errs = append(errs, fmt.Errorf("segment type %q is invalid; valid values: paragraph, sentence, phrase", s.Type))
	}
	if s.StartPos < 0 {
		errs = append(errs, fmt.Errorf("start_pos %d is negative", s.StartPos))
	}
	if s.StartPos > s.EndPos {
		errs = append(errs, fmt.Errorf("start_pos %d exceeds end_pos %d", s.StartPos, s.EndPos))
	}
	if s.Type == SegmentParagraph && s.ParentID != "" {
		errs = append(errs, fmt.Errorf("paragraph %q must not have a parent", s.ID))
	}
	return errors.Join(errs...)
}

// Admission is the outcome of handing a segment to the fusion boundary.
// Exactly one of two states holds: Accepted with a usable Segment, or rejected
// with a human-readable Reason.
type Admission struct {
	Segment  TextSegment
	Accepted bool
	Reason   string
}

// Admit validates seg and returns the corresponding [Admission]. Rejected
// segments must not be passed to the emotion combiner.
func Admit(seg TextSegment) Admission {
	if err := seg.Validate(); err != nil {
		return Admission{Segment: seg, Reason: err.Error()}
	}
	return Admission{Segment: seg, Accepted: true}
}
