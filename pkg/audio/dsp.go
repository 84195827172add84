package audio

import "math"

// DefaultHeadroomDB is the peak headroom [Normalize] leaves below full scale.
const DefaultHeadroomDB = 0.1

// Gain scales every sample by factor, saturating at the int16 limits.
func Gain(pcm []byte, factor float64) []byte {
	if factor == 1 || math.IsNaN(factor) {
		return pcm
	}
	in := samples(pcm)
	for i, s := range in {
		in[i] = saturate(float64(s) * factor)
	}
	return encode(in)
}

// Peak returns the largest absolute sample value.
func Peak(pcm []byte) int {
	peak := 0
	for _, s := range samples(pcm) {
		v := int(s)
		if v < 0 {
			v = -v
		}
		peak = max(peak, v)
	}
	return peak
}

// Normalize scales pcm so its peak sits headroomDB below full scale.
// Silence is returned unchanged.
func Normalize(pcm []byte, headroomDB float64) []byte {
	peak := Peak(pcm)
	if peak == 0 {
		return pcm
	}
	target := 32767 * math.Pow(10, -headroomDB/20)
	return Gain(pcm, target/float64(peak))
}

// Crossfade appends b to a, overlapping the last frames of a with the first
// frames of b and fading linearly between them. Both inputs must share f.
// The overlap is shortened to fit the shorter input.
func Crossfade(a, b []byte, f Format, frames int) []byte {
	fs := f.FrameSize()
	frames = min(frames, len(a)/fs, len(b)/fs)
	if frames <= 0 {
		out := make([]byte, 0, len(a)+len(b))
		return append(append(out, a...), b...)
	}

	n := frames * f.Channels
	tail := samples(a[len(a)-frames*fs:])
	head := samples(b[:frames*fs])
	mixed := make([]int16, n)
	for i := range mixed {
		t := float64(i/f.Channels) / float64(frames)
		mixed[i] = saturate(float64(tail[i])*(1-t) + float64(head[i])*t)
	}

	out := make([]byte, 0, len(a)+len(b)-frames*fs)
	out = append(out, a[:len(a)-frames*fs]...)
	out = append(out, encode(mixed)...)
	return append(out, b[frames*fs:]...)
}
