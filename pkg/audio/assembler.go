package audio

import (
	"errors"
	"fmt"
	"time"
)

// ErrNoClips is returned by [Assembler.Merge] when there is nothing to merge.
var ErrNoClips = errors.New("audio: no clips to merge")

// Defaults used by [NewAssembler].
const (
	DefaultCrossfade  = 100 * time.Millisecond
	DefaultSampleRate = 44100
)

// DefaultFormat is the output format of an [Assembler] without options.
var DefaultFormat = Format{SampleRate: DefaultSampleRate, Channels: 1}

// AssemblerOption configures an [Assembler].
type AssemblerOption func(*Assembler)

// WithCrossfade sets the overlap between consecutive clips. Zero disables
// crossfading; negative values are ignored.
func WithCrossfade(d time.Duration) AssemblerOption {
	return func(a *Assembler) {
		if d >= 0 {
			a.crossfade = d
		}
	}
}

// WithNormalize toggles peak normalization of the merged track.
func WithNormalize(on bool) AssemblerOption {
	return func(a *Assembler) { a.normalize = on }
}

// WithOutputFormat sets the format of the merged track. Invalid formats are
// ignored.
func WithOutputFormat(f Format) AssemblerOption {
	return func(a *Assembler) {
		if f.Validate() == nil {
			a.format = f
		}
	}
}

// Assembler joins per-sentence clips into one narration track.
// It holds no mutable state and is safe for concurrent use.
type Assembler struct {
	crossfade time.Duration
	normalize bool
	format    Format
}

// NewAssembler returns an Assembler with a 100 ms crossfade, normalization on
// and 44.1 kHz mono output, adjusted by opts.
func NewAssembler(opts ...AssemblerOption) *Assembler {
	a := &Assembler{
		crossfade: DefaultCrossfade,
		normalize: true,
		format:    DefaultFormat,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Format returns the output format.
func (a *Assembler) Format() Format { return a.format }

// Merge converts clips to the output format and concatenates them in order.
// Empty clips are skipped. The result carries no SegmentID.
func (a *Assembler) Merge(clips []Clip) (Clip, error) {
	if len(clips) == 0 {
		return Clip{}, ErrNoClips
	}

	overlap := a.format.Frames(a.crossfade)
	var merged []byte
	for i, c := range clips {
		if len(c.PCM) == 0 {
			continue
		}
		conv, err := Convert(c, a.format)
		if err != nil {
			return Clip{}, fmt.Errorf("audio: merge clip %d (%s): %w", i, c.SegmentID, err)
		}
		if merged == nil {
			merged = append([]byte(nil), conv.PCM...)
			continue
		}
		merged = Crossfade(merged, conv.PCM, a.format, overlap)
	}
	if merged == nil {
		return Clip{}, ErrNoClips
	}
	if a.normalize {
		merged = Normalize(merged, DefaultHeadroomDB)
	}
	return Clip{PCM: merged, Format: a.format}, nil
}
