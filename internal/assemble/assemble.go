// Package assemble drives per-segment synthesis and delivers the resulting
// audio in segment order, either as a progressive chunk stream or as one
// composed payload.
package assemble

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/milanvk/edgespeak/internal/audio"
	"github.com/milanvk/edgespeak/internal/tts"
)

// Event is one item of a streaming assembly: an audio chunk tagged with its
// segment index and per-segment sequence number, or a terminal error. After
// an Event with Err set no further events are delivered.
type Event struct {
	Segment int
	Seq     int
	Data    []byte
	Err     error
}

// Assembler orchestrates synthesis calls for the segments of one request.
// Segments are synthesized strictly sequentially; output never interleaves.
type Assembler struct {
	client tts.Client
	codec  audio.Codec
	logger *log.Logger
}

func New(client tts.Client, codec audio.Codec, logger *log.Logger) *Assembler {
	return &Assembler{client: client, codec: codec, logger: logger}
}

// Stream synthesizes segments in index order, relaying each segment's chunks
// before the next segment starts. If a segment fails, one terminal Event
// carrying the error is emitted and later segments are never synthesized.
// Cancelling ctx stops synthesis promptly.
func (a *Assembler) Stream(ctx context.Context, segments []string, opts tts.Options) <-chan Event {
	out := make(chan Event)

	go func() {
		defer close(out)

		for i, seg := range segments {
			stream, err := a.client.SynthesizeStream(ctx, seg, opts)
			if err != nil {
				a.fail(ctx, out, i, err)
				return
			}

			seq := 0
			for chunk := range stream.Chunks() {
				select {
				case out <- Event{Segment: i, Seq: seq, Data: chunk}:
					seq++
				case <-ctx.Done():
					return
				}
			}
			if err := stream.Err(); err != nil {
				a.fail(ctx, out, i, err)
				return
			}
		}
	}()

	return out
}

func (a *Assembler) fail(ctx context.Context, out chan<- Event, segment int, err error) {
	a.logger.Printf("assemble: segment %d synthesis failed: %v", segment, err)
	select {
	case out <- Event{Segment: segment, Err: err}:
	case <-ctx.Done():
	}
}

// Batch synthesizes every segment to a request-scoped temporary file, folds
// the decoded audio into one composition, and encodes it once. Any failure
// aborts the whole assembly; no partial output is returned and the temporary
// directory is removed on every path.
func (a *Assembler) Batch(ctx context.Context, segments []string, opts tts.Options) ([]byte, error) {
	dir, err := os.MkdirTemp("", "edgespeak-")
	if err != nil {
		return nil, fmt.Errorf("assemble: create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	var composed audio.Samples
	for i, seg := range segments {
		path := filepath.Join(dir, fmt.Sprintf("segment-%03d.mp3", i))
		if err := a.client.SynthesizeToFile(ctx, seg, opts, path); err != nil {
			return nil, fmt.Errorf("assemble: segment %d: %w", i, err)
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("assemble: read segment %d: %w", i, err)
		}
		part, err := a.codec.Decode(data)
		if err != nil {
			return nil, fmt.Errorf("assemble: decode segment %d: %w", i, err)
		}
		composed = a.codec.Concat(composed, part)

		// Fold-and-forget: each artifact goes as soon as it is composed.
		_ = os.Remove(path)
	}

	out, err := a.codec.Encode(composed)
	if err != nil {
		return nil, fmt.Errorf("assemble: encode: %w", err)
	}
	return out, nil
}
