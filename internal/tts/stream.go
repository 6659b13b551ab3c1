package tts

import "context"

// Stream delivers the audio chunks of a single synthesis call. Consume
// Chunks until it closes, then check Err: nil means the provider finished
// the turn cleanly, anything else means the stream ended early. Chunks
// already received are valid either way.
type Stream struct {
	ch  chan []byte
	err error
}

// NewStream creates a stream with the given channel buffer. The producing
// Client implementation feeds it with Emit and seals it with Finish.
func NewStream(buffer int) *Stream {
	return &Stream{ch: make(chan []byte, buffer)}
}

// Chunks returns the channel of audio chunks. It is closed when the turn
// ends or fails.
func (s *Stream) Chunks() <-chan []byte { return s.ch }

// Err reports how the stream ended. Valid only after Chunks has closed.
func (s *Stream) Err() error { return s.err }

// Emit hands a chunk to the consumer, giving up if ctx is canceled.
func (s *Stream) Emit(ctx context.Context, chunk []byte) bool {
	select {
	case <-ctx.Done():
		return false
	case s.ch <- chunk:
		return true
	}
}

// Finish records the terminal state and closes the chunk channel. The close
// publishes err to the consumer; Finish must be called exactly once.
func (s *Stream) Finish(err error) {
	s.err = err
	close(s.ch)
}
