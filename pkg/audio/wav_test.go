package audio_test

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/MrWong99/narrata/pkg/audio"
)

func TestWAV_RoundTrip(t *testing.T) {
	t.Parallel()
	clip := audio.Clip{
		PCM:    samplesToBytes([]int16{1, -2, 3, -4}),
		Format: audio.Format{SampleRate: 22050, Channels: 2},
	}
	data, err := audio.EncodeWAV(clip)
	if err != nil {
		t.Fatalf("EncodeWAV: %v", err)
	}
	if len(data) != 44+8 {
		t.Fatalf("len = %d, want 52", len(data))
	}
	if got := binary.LittleEndian.Uint32(data[28:]); got != 22050*4 {
		t.Errorf("byte rate = %d, want %d", got, 22050*4)
	}

	back, err := audio.ParseWAV(data)
	if err != nil {
		t.Fatalf("ParseWAV: %v", err)
	}
	if back.Format != clip.Format || !bytes.Equal(back.PCM, clip.PCM) {
		t.Errorf("round trip = %+v, want %+v", back, clip)
	}
}

// buildWAV assembles a RIFF file from raw chunks.
func buildWAV(chunks ...[]byte) []byte {
	var body bytes.Buffer
	body.WriteString("WAVE")
	for _, c := range chunks {
		body.Write(c)
	}
	var out bytes.Buffer
	out.WriteString("RIFF")
	_ = binary.Write(&out, binary.LittleEndian, uint32(body.Len()))
	out.Write(body.Bytes())
	return out.Bytes()
}

func chunk(id string, payload []byte) []byte {
	var b bytes.Buffer
	b.WriteString(id)
	_ = binary.Write(&b, binary.LittleEndian, uint32(len(payload)))
	b.Write(payload)
	if len(payload)%2 == 1 {
		b.WriteByte(0)
	}
	return b.Bytes()
}

func fmtChunk(format, channels uint16, rate uint32, bits uint16) []byte {
	var b bytes.Buffer
	blockAlign := channels * bits / 8
	for _, v := range []any{format, channels, rate, rate * uint32(blockAlign), blockAlign, bits} {
		_ = binary.Write(&b, binary.LittleEndian, v)
	}
	return chunk("fmt ", b.Bytes())
}

func TestParseWAV_SkipsUnknownChunks(t *testing.T) {
	t.Parallel()
	pcm := samplesToBytes([]int16{10, 20, 30})
	data := buildWAV(
		chunk("LIST", []byte("odd")),
		fmtChunk(1, 1, 24000, 16),
		chunk("data", pcm),
	)
	clip, err := audio.ParseWAV(data)
	if err != nil {
		t.Fatalf("ParseWAV: %v", err)
	}
	if clip.Format != (audio.Format{SampleRate: 24000, Channels: 1}) {
		t.Errorf("format = %v", clip.Format)
	}
	assertSamples(t, clip.PCM, []int16{10, 20, 30})
}

func TestParseWAV_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data []byte
	}{
		{"not riff", []byte("OggS0000WAVE")},
		{"float encoding", buildWAV(fmtChunk(3, 1, 16000, 32), chunk("data", make([]byte, 8)))},
		{"8-bit", buildWAV(fmtChunk(1, 1, 16000, 8), chunk("data", make([]byte, 8)))},
		{"data before fmt", buildWAV(chunk("data", make([]byte, 4)), fmtChunk(1, 1, 16000, 16))},
		{"no data", buildWAV(fmtChunk(1, 1, 16000, 16))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := audio.ParseWAV(tt.data); err == nil {
				t.Error("expected error")
			}
		})
	}

	if _, err := audio.ParseWAV([]byte("short")); !errors.Is(err, audio.ErrNotWAV) {
		t.Errorf("err = %v, want ErrNotWAV", err)
	}
}
