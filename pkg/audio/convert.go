package audio

import (
	"errors"
	"fmt"
)

// ErrMisaligned is returned when PCM data does not hold a whole number of
// frames.
var ErrMisaligned = errors.New("audio: PCM not frame aligned")

// Convert returns clip converted to target. A clip already in the target
// format is returned unchanged. Resampling happens before channel conversion
// so a stereo source headed for mono is only resampled once.
func Convert(clip Clip, target Format) (Clip, error) {
	if err := target.Validate(); err != nil {
		return Clip{}, err
	}
	if err := clip.Format.Validate(); err != nil {
		return Clip{}, fmt.Errorf("audio: convert %s: %w", clip.SegmentID, err)
	}
	if len(clip.PCM)%clip.Format.FrameSize() != 0 {
		return Clip{}, fmt.Errorf("%w: %d bytes of %s", ErrMisaligned, len(clip.PCM), clip.Format)
	}
	if clip.Format == target {
		return clip, nil
	}

	pcm := clip.PCM
	if clip.Format.SampleRate != target.SampleRate {
		pcm = Resample16(pcm, clip.Format.Channels, clip.Format.SampleRate, target.SampleRate)
	}
	switch {
	case clip.Format.Channels == 1 && target.Channels == 2:
		pcm = MonoToStereo(pcm)
	case clip.Format.Channels == 2 && target.Channels == 1:
		pcm = StereoToMono(pcm)
	}
	return Clip{SegmentID: clip.SegmentID, PCM: pcm, Format: target}, nil
}

// MonoToStereo duplicates each mono sample into an L+R pair.
func MonoToStereo(pcm []byte) []byte {
	out := make([]byte, (len(pcm)/2)*4)
	for i := 0; i+1 < len(pcm); i += 2 {
		j := i * 2
		out[j], out[j+1] = pcm[i], pcm[i+1]
		out[j+2], out[j+3] = pcm[i], pcm[i+1]
	}
	return out
}

// StereoToMono averages each L+R pair.
func StereoToMono(pcm []byte) []byte {
	in := samples(pcm)
	out := make([]int16, len(in)/2)
	for i := range out {
		out[i] = int16((int32(in[2*i]) + int32(in[2*i+1])) / 2)
	}
	return encode(out)
}

// Resample16 resamples interleaved 16-bit PCM with the given channel count
// from srcRate to dstRate using linear interpolation. Equal or invalid rates
// return the input unchanged.
func Resample16(pcm []byte, channels, srcRate, dstRate int) []byte {
	if srcRate <= 0 || dstRate <= 0 || channels <= 0 || srcRate == dstRate {
		return pcm
	}
	in := samples(pcm)
	srcFrames := len(in) / channels
	if srcFrames == 0 {
		return pcm
	}
	dstFrames := int(int64(srcFrames) * int64(dstRate) / int64(srcRate))
	if dstFrames == 0 {
		return nil
	}

	out := make([]int16, dstFrames*channels)
	ratio := float64(srcRate) / float64(dstRate)
	for i := range dstFrames {
		pos := float64(i) * ratio
		idx := int(pos)
		frac := pos - float64(idx)
		next := idx + 1
		if next >= srcFrames {
			next = idx
		}
		for ch := range channels {
			s0 := float64(in[idx*channels+ch])
			s1 := float64(in[next*channels+ch])
			out[i*channels+ch] = int16(s0*(1-frac) + s1*frac)
		}
	}
	return encode(out)
}
