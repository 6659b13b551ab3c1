package assemble

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/milanvk/edgespeak/internal/audio"
	"github.com/milanvk/edgespeak/internal/tts"
)

// fakeTurn scripts the synthesis outcome for one segment text.
type fakeTurn struct {
	chunks  [][]byte
	err     error // stream ends with this error after its chunks
	callErr error // the synthesis call itself fails up front
}

// fakeTTS replays scripted turns and records the order of synthesis calls.
type fakeTTS struct {
	script map[string]fakeTurn
	calls  []string
}

func (f *fakeTTS) SynthesizeStream(ctx context.Context, text string, _ tts.Options) (*tts.Stream, error) {
	f.calls = append(f.calls, text)
	turn := f.script[text]
	if turn.callErr != nil {
		return nil, turn.callErr
	}

	s := tts.NewStream(len(turn.chunks))
	go func() {
		for _, chunk := range turn.chunks {
			if !s.Emit(ctx, chunk) {
				s.Finish(ctx.Err())
				return
			}
		}
		s.Finish(turn.err)
	}()
	return s, nil
}

func (f *fakeTTS) SynthesizeToFile(_ context.Context, text string, _ tts.Options, path string) error {
	f.calls = append(f.calls, text)
	turn := f.script[text]
	if turn.callErr != nil {
		return turn.callErr
	}
	if turn.err != nil {
		return turn.err
	}
	var buf bytes.Buffer
	for _, chunk := range turn.chunks {
		buf.Write(chunk)
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

func (f *fakeTTS) ListVoices(context.Context) ([]tts.Voice, error) { return nil, nil }

func testLogger() *log.Logger { return log.New(io.Discard, "", 0) }

// mpegChunk fakes a provider chunk that passes MPEG validation.
func mpegChunk(body ...byte) []byte {
	return append([]byte{0xff, 0xfb}, body...)
}

func TestStreamOrdering(t *testing.T) {
	client := &fakeTTS{script: map[string]fakeTurn{
		"S0": {chunks: [][]byte{[]byte("a"), []byte("b")}},
		"S1": {chunks: [][]byte{[]byte("c")}},
		"S2": {chunks: [][]byte{[]byte("d"), []byte("e")}},
	}}
	a := New(client, audio.MPEGCodec{}, testLogger())

	var data []string
	var segments []int
	for ev := range a.Stream(context.Background(), []string{"S0", "S1", "S2"}, tts.Options{}) {
		if ev.Err != nil {
			t.Fatalf("unexpected error event: %v", ev.Err)
		}
		data = append(data, string(ev.Data))
		segments = append(segments, ev.Segment)
	}

	wantData := []string{"a", "b", "c", "d", "e"}
	wantSegments := []int{0, 0, 1, 2, 2}
	if len(data) != len(wantData) {
		t.Fatalf("got %d chunks %v, want %v", len(data), data, wantData)
	}
	for i := range wantData {
		if data[i] != wantData[i] || segments[i] != wantSegments[i] {
			t.Errorf("event[%d] = (%q, seg %d), want (%q, seg %d)",
				i, data[i], segments[i], wantData[i], wantSegments[i])
		}
	}
}

func TestStreamPartialFailureStopsEarly(t *testing.T) {
	boom := errors.New("provider exploded")
	client := &fakeTTS{script: map[string]fakeTurn{
		"S0": {chunks: [][]byte{[]byte("a"), []byte("b")}},
		"S1": {err: boom},
		"S2": {chunks: [][]byte{[]byte("never")}},
	}}
	a := New(client, audio.MPEGCodec{}, testLogger())

	var events []Event
	for ev := range a.Stream(context.Background(), []string{"S0", "S1", "S2"}, tts.Options{}) {
		events = append(events, ev)
	}

	// Exactly S0's chunks, then one terminal error event.
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3 (a, b, error)", len(events))
	}
	if string(events[0].Data) != "a" || string(events[1].Data) != "b" {
		t.Errorf("leading chunks = %q, %q; want a, b", events[0].Data, events[1].Data)
	}
	last := events[2]
	if !errors.Is(last.Err, boom) || last.Segment != 1 {
		t.Errorf("terminal event = %+v, want segment 1 with the provider error", last)
	}

	for _, call := range client.calls {
		if call == "S2" {
			t.Error("segment after the failure was synthesized")
		}
	}
}

func TestStreamCallFailure(t *testing.T) {
	dialErr := errors.New("dial failed")
	client := &fakeTTS{script: map[string]fakeTurn{
		"S0": {callErr: dialErr},
	}}
	a := New(client, audio.MPEGCodec{}, testLogger())

	var events []Event
	for ev := range a.Stream(context.Background(), []string{"S0"}, tts.Options{}) {
		events = append(events, ev)
	}
	if len(events) != 1 || !errors.Is(events[0].Err, dialErr) {
		t.Errorf("events = %+v, want a single error event", events)
	}
}

func TestStreamCancellation(t *testing.T) {
	client := &fakeTTS{script: map[string]fakeTurn{
		"S0": {chunks: [][]byte{[]byte("a"), []byte("b"), []byte("c")}},
	}}
	a := New(client, audio.MPEGCodec{}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	events := a.Stream(ctx, []string{"S0"}, tts.Options{})

	<-events
	cancel()

	// The channel must close promptly once the context is gone.
	for range events {
	}
}

func TestBatchComposesInOrder(t *testing.T) {
	client := &fakeTTS{script: map[string]fakeTurn{
		"S0": {chunks: [][]byte{mpegChunk('x')}},
		"S1": {chunks: [][]byte{mpegChunk('y')}},
	}}
	a := New(client, audio.MPEGCodec{}, testLogger())

	before := tempDirCount(t)
	out, err := a.Batch(context.Background(), []string{"S0", "S1"}, tts.Options{})
	if err != nil {
		t.Fatalf("Batch: %v", err)
	}

	want := append(mpegChunk('x'), mpegChunk('y')...)
	if !bytes.Equal(out, want) {
		t.Errorf("Batch output = %x, want %x", out, want)
	}
	if after := tempDirCount(t); after != before {
		t.Errorf("temp dirs leaked: %d before, %d after", before, after)
	}
}

func TestBatchFailureIsAtomic(t *testing.T) {
	boom := errors.New("segment two exploded")
	client := &fakeTTS{script: map[string]fakeTurn{
		"S0": {chunks: [][]byte{mpegChunk('x')}},
		"S1": {err: boom},
		"S2": {chunks: [][]byte{mpegChunk('z')}},
	}}
	a := New(client, audio.MPEGCodec{}, testLogger())

	before := tempDirCount(t)
	out, err := a.Batch(context.Background(), []string{"S0", "S1", "S2"}, tts.Options{})
	if !errors.Is(err, boom) {
		t.Fatalf("Batch err = %v, want the provider error", err)
	}
	if out != nil {
		t.Error("Batch returned partial output alongside an error")
	}
	if after := tempDirCount(t); after != before {
		t.Errorf("temp dirs leaked after failure: %d before, %d after", before, after)
	}

	for _, call := range client.calls {
		if call == "S2" {
			t.Error("segment after the failure was synthesized")
		}
	}
}

func TestBatchRejectsInvalidAudio(t *testing.T) {
	client := &fakeTTS{script: map[string]fakeTurn{
		"S0": {chunks: [][]byte{[]byte("definitely not mpeg")}},
	}}
	a := New(client, audio.MPEGCodec{}, testLogger())

	if _, err := a.Batch(context.Background(), []string{"S0"}, tts.Options{}); err == nil {
		t.Error("Batch accepted a payload the codec rejects")
	}
}

func tempDirCount(t *testing.T) int {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(os.TempDir(), "edgespeak-*"))
	if err != nil {
		t.Fatalf("glob temp dirs: %v", err)
	}
	return len(matches)
}
