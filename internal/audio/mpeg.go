// Package audio composes multiple encoded audio payloads into one playable
// stream. It is the seam for the codec capability the assembler relies on:
// decode a payload into frame material, concatenate, encode once at the end.
package audio

import (
	"bytes"
	"errors"
	"fmt"
)

// Samples holds decoded frame material ready for composition.
type Samples struct {
	frames []byte
}

// Len reports the composed size in bytes.
func (s Samples) Len() int { return len(s.frames) }

// Codec converts between encoded audio payloads and composable frame
// material.
type Codec interface {
	// Decode validates an encoded payload and extracts its frame material.
	Decode(data []byte) (Samples, error)

	// Concat appends b's frames after a's.
	Concat(a, b Samples) Samples

	// Encode produces the final output payload for the composed frames.
	Encode(s Samples) ([]byte, error)
}

var id3Magic = []byte("ID3")

// MPEGCodec composes MPEG audio streams. The read-aloud service emits bare
// MPEG frame sequences, which remain a valid stream under frame-level
// concatenation; Decode strips any leading ID3v2 tag so metadata blocks never
// end up in the middle of the composed stream.
type MPEGCodec struct{}

func (MPEGCodec) Decode(data []byte) (Samples, error) {
	body := data
	if bytes.HasPrefix(body, id3Magic) {
		if len(body) < 10 {
			return Samples{}, errors.New("audio: truncated ID3v2 tag")
		}
		size := synchsafe(body[6:10])
		if 10+size > len(body) {
			return Samples{}, errors.New("audio: ID3v2 tag larger than payload")
		}
		body = body[10+size:]
	}
	if len(body) < 2 {
		return Samples{}, errors.New("audio: no audio frames")
	}
	// MPEG frames start on an 11-bit sync word.
	if body[0] != 0xff || body[1]&0xe0 != 0xe0 {
		return Samples{}, fmt.Errorf("audio: payload is not an MPEG audio stream (starts 0x%02x%02x)", body[0], body[1])
	}
	frames := make([]byte, len(body))
	copy(frames, body)
	return Samples{frames: frames}, nil
}

func (MPEGCodec) Concat(a, b Samples) Samples {
	if a.Len() == 0 {
		return b
	}
	joined := make([]byte, 0, a.Len()+b.Len())
	joined = append(joined, a.frames...)
	joined = append(joined, b.frames...)
	return Samples{frames: joined}
}

func (MPEGCodec) Encode(s Samples) ([]byte, error) {
	if s.Len() == 0 {
		return nil, errors.New("audio: nothing to encode")
	}
	return s.frames, nil
}

// synchsafe decodes the 28-bit big-endian size used by ID3v2 headers.
func synchsafe(b []byte) int {
	return int(b[0]&0x7f)<<21 | int(b[1]&0x7f)<<14 | int(b[2]&0x7f)<<7 | int(b[3]&0x7f)
}
