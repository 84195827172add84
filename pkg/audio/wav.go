package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const wavHeaderSize = 44

// ErrNotWAV is returned by [ParseWAV] for data that is not a RIFF/WAVE file.
var ErrNotWAV = errors.New("audio: not a RIFF/WAVE file")

// ParseWAV extracts 16-bit PCM and its format from a WAV container. Chunks
// other than "fmt " and "data" are skipped.
func ParseWAV(data []byte) (Clip, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return Clip{}, ErrNotWAV
	}

	var (
		f      Format
		bits   uint16
		seenFm bool
	)
	pos := 12
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := pos + 8
		end := body + size
		if end > len(data) {
			end = len(data)
		}

		switch id {
		case "fmt ":
			if end-body < 16 {
				return Clip{}, fmt.Errorf("audio: wav fmt chunk too short (%d bytes)", end-body)
			}
			if tag := binary.LittleEndian.Uint16(data[body:]); tag != 1 {
				return Clip{}, fmt.Errorf("audio: unsupported wav encoding %d, want PCM", tag)
			}
			f.Channels = int(binary.LittleEndian.Uint16(data[body+2:]))
			f.SampleRate = int(binary.LittleEndian.Uint32(data[body+4:]))
			bits = binary.LittleEndian.Uint16(data[body+14:])
			seenFm = true
		case "data":
			if !seenFm {
				return Clip{}, errors.New("audio: wav data chunk before fmt chunk")
			}
			if bits != 16 {
				return Clip{}, fmt.Errorf("audio: unsupported bit depth %d, want 16", bits)
			}
			if err := f.Validate(); err != nil {
				return Clip{}, err
			}
			pcm := data[body:end]
			pcm = pcm[:len(pcm)-len(pcm)%f.FrameSize()]
			return Clip{PCM: bytes.Clone(pcm), Format: f}, nil
		}

		// Chunks are word aligned.
		pos = body + size + size%2
	}
	return Clip{}, errors.New("audio: wav has no data chunk")
}

// WriteWAV writes clip as a canonical 44-byte-header PCM WAV file.
func WriteWAV(w io.Writer, clip Clip) error {
	if err := clip.Format.Validate(); err != nil {
		return err
	}
	var hdr [wavHeaderSize]byte
	dataLen := uint32(len(clip.PCM))
	copy(hdr[0:], "RIFF")
	binary.LittleEndian.PutUint32(hdr[4:], 36+dataLen)
	copy(hdr[8:], "WAVE")
	copy(hdr[12:], "fmt ")
	binary.LittleEndian.PutUint32(hdr[16:], 16)
	binary.LittleEndian.PutUint16(hdr[20:], 1)
	binary.LittleEndian.PutUint16(hdr[22:], uint16(clip.Format.Channels))
	binary.LittleEndian.PutUint32(hdr[24:], uint32(clip.Format.SampleRate))
	binary.LittleEndian.PutUint32(hdr[28:], uint32(clip.Format.SampleRate*clip.Format.FrameSize()))
	binary.LittleEndian.PutUint16(hdr[32:], uint16(clip.Format.FrameSize()))
	binary.LittleEndian.PutUint16(hdr[34:], 16)
	copy(hdr[36:], "data")
	binary.LittleEndian.PutUint32(hdr[40:], dataLen)

	if _, err := w.Write(hdr[:]); err != nil {
		return fmt.Errorf("audio: write wav header: %w", err)
	}
	if _, err := w.Write(clip.PCM); err != nil {
		return fmt.Errorf("audio: write wav data: %w", err)
	}
	return nil
}

// EncodeWAV returns clip wrapped in a WAV container.
func EncodeWAV(clip Clip) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(wavHeaderSize + len(clip.PCM))
	if err := WriteWAV(&buf, clip); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
