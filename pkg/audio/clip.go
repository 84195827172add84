// Package audio holds the PCM plumbing used to turn per-sentence synthesis
// results into one narration track: format conversion, WAV container
// handling, crossfading, normalisation and the [Assembler].
//
// All PCM in this package is signed 16-bit little-endian, interleaved when
// there is more than one channel.
package audio

import (
	"errors"
	"fmt"
	"time"
)

// bytesPerSample is fixed: only 16-bit PCM is supported.
const bytesPerSample = 2

// Format describes the sample rate and channel count of PCM data.
type Format struct {
	SampleRate int `yaml:"sample_rate" json:"sample_rate"`
	Channels   int `yaml:"channels"    json:"channels"`
}

// Validate reports unusable formats.
func (f Format) Validate() error {
	var errs []error
	if f.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("audio: sample rate must be positive, got %d", f.SampleRate))
	}
	if f.Channels < 1 || f.Channels > 2 {
		errs = append(errs, fmt.Errorf("audio: channels must be 1 or 2, got %d", f.Channels))
	}
	return errors.Join(errs...)
}

// FrameSize is the number of bytes holding one sample for every channel.
func (f Format) FrameSize() int { return f.Channels * bytesPerSample }

// Frames converts a duration into a whole number of frames.
func (f Format) Frames(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(int64(d) * int64(f.SampleRate) / int64(time.Second))
}

// String returns e.g. "48000Hz stereo".
func (f Format) String() string {
	switch f.Channels {
	case 1:
		return fmt.Sprintf("%dHz mono", f.SampleRate)
	case 2:
		return fmt.Sprintf("%dHz stereo", f.SampleRate)
	default:
		return fmt.Sprintf("%dHz %dch", f.SampleRate, f.Channels)
	}
}

// Clip is a complete, in-memory piece of synthesized speech.
type Clip struct {
	// SegmentID links the clip to the text segment it voices. Empty for
	// merged tracks.
	SegmentID string

	PCM    []byte
	Format Format
}

// Frames returns the number of complete frames in the clip.
func (c Clip) Frames() int {
	fs := c.Format.FrameSize()
	if fs == 0 {
		return 0
	}
	return len(c.PCM) / fs
}

// Duration returns the playback length of the clip.
func (c Clip) Duration() time.Duration {
	if c.Format.SampleRate <= 0 {
		return 0
	}
	return time.Duration(int64(c.Frames()) * int64(time.Second) / int64(c.Format.SampleRate))
}

// samples decodes little-endian int16 PCM. A trailing odd byte is ignored.
func samples(pcm []byte) []int16 {
	out := make([]int16, len(pcm)/bytesPerSample)
	for i := range out {
		out[i] = int16(pcm[2*i]) | int16(pcm[2*i+1])<<8
	}
	return out
}

// encode is the inverse of samples.
func encode(s []int16) []byte {
	out := make([]byte, len(s)*bytesPerSample)
	for i, v := range s {
		out[2*i] = byte(v)
		out[2*i+1] = byte(v >> 8)
	}
	return out
}

// saturate rounds v and clamps it into the int16 range.
func saturate(v float64) int16 {
	switch {
	case v >= 32767:
		return 32767
	case v <= -32768:
		return -32768
	case v >= 0:
		return int16(v + 0.5)
	default:
		return int16(v - 0.5)
	}
}
