package httpapi

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/milanvk/edgespeak/internal/segment"
	"github.com/milanvk/edgespeak/internal/textcache"
	"github.com/milanvk/edgespeak/internal/tts"
)

// streamErrorTrailer is declared on every streaming response and set when
// synthesis fails mid-stream, for clients that prefer not to parse the
// in-band marker.
const streamErrorTrailer = "X-Stream-Error"

// streamErrorMagic opens the in-band error frame written when synthesis fails
// after audio bytes have already been sent: the magic, a big-endian uint16
// message length, then the UTF-8 message. MPEG frame sync requires an 0xff
// byte, so a resynchronizing decoder never mistakes the marker for audio.
var streamErrorMagic = []byte{0x00, 0x00, 0x00, 0x00, 'S', 'P', 'K', 'E'}

// ttsParams are the synthesis parameters accepted by /tts and /tts/stream.
type ttsParams struct {
	Text     string `json:"text"`
	TextID   string `json:"text_id"`
	Voice    string `json:"voice"`
	Rate     string `json:"rate"`
	Pitch    string `json:"pitch"`
	FileName string `json:"file_name"`
}

// decodeParams reads params from the JSON body on POST and from the query
// string otherwise.
func decodeParams(req *http.Request) (ttsParams, error) {
	var p ttsParams
	if req.Method == http.MethodPost {
		if err := json.NewDecoder(req.Body).Decode(&p); err != nil && !errors.Is(err, io.EOF) {
			return p, errors.New("invalid request body")
		}
		return p, nil
	}
	q := req.URL.Query()
	p.Text = q.Get("text")
	p.TextID = q.Get("text_id")
	p.Voice = q.Get("voice")
	p.Rate = q.Get("rate")
	p.Pitch = q.Get("pitch")
	p.FileName = q.Get("file_name")
	return p, nil
}

// resolveText applies the text/text_id rule: exactly one must be provided,
// and text_id must resolve through the cache. A non-zero status means the
// request is rejected with the returned message.
func (r *Router) resolveText(req *http.Request, p ttsParams) (text string, status int, msg string) {
	switch {
	case p.Text != "" && p.TextID != "":
		return "", http.StatusBadRequest, "Provide either text or text_id, not both"
	case p.Text != "":
		return p.Text, 0, ""
	case p.TextID != "":
		stored, err := r.cache.Get(req.Context(), p.TextID)
		if err != nil {
			if errors.Is(err, textcache.ErrNotFound) {
				return "", http.StatusBadRequest, "Text ID not found or expired"
			}
			r.logger.Printf("tts: cache get failed: %v", err)
			captureError(req, err, "text cache get")
			return "", http.StatusInternalServerError, "Text cache unavailable"
		}
		return stored, 0, ""
	default:
		return "", http.StatusBadRequest, "Missing text or text_id"
	}
}

// synthesisOptions fills defaults and rejects malformed rate/pitch modifiers.
func (r *Router) synthesisOptions(p ttsParams) (tts.Options, string) {
	opts := tts.Options{Voice: p.Voice, Rate: p.Rate, Pitch: p.Pitch}
	if opts.Voice == "" {
		opts.Voice = r.cfg.DefaultVoice
	}
	if opts.Rate == "" {
		opts.Rate = tts.DefaultRate
	}
	if opts.Pitch == "" {
		opts.Pitch = tts.DefaultPitch
	}
	// The provider is the authority on ranges; only the sign shape is
	// checked here.
	if !signedModifier(opts.Rate) {
		return opts, "rate must be a signed percentage, e.g. +10%"
	}
	if !signedModifier(opts.Pitch) {
		return opts, "pitch must be a signed offset, e.g. -5Hz"
	}
	return opts, ""
}

func signedModifier(s string) bool {
	return len(s) >= 2 && (s[0] == '+' || s[0] == '-')
}

// handleStoreText stores a text payload and returns its cache id.
func (r *Router) handleStoreText(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeEnvelope(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if body.Text == "" {
		writeEnvelope(w, http.StatusBadRequest, "Missing text", nil)
		return
	}

	id, err := r.cache.Put(req.Context(), body.Text)
	if err != nil {
		r.logger.Printf("tts: store text failed: %v", err)
		captureError(req, err, "text cache put")
		writeEnvelope(w, http.StatusInternalServerError, "Failed to store text", nil)
		return
	}

	writeEnvelope(w, http.StatusOK, "OK", map[string]any{"text_id": id})
}

// handleStoredIDs lists the ids of all live cached texts.
func (r *Router) handleStoredIDs(w http.ResponseWriter, req *http.Request) {
	ids, err := r.cache.ListIDs(req.Context())
	if err != nil {
		r.logger.Printf("tts: list ids failed: %v", err)
		captureError(req, err, "text cache list")
		writeEnvelope(w, http.StatusInternalServerError, "Failed to list stored ids", nil)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeEnvelope(w, http.StatusOK, "OK", map[string]any{"text_ids": ids})
}

// handleTTS synthesizes the whole input and responds with one audio file.
func (r *Router) handleTTS(w http.ResponseWriter, req *http.Request) {
	p, err := decodeParams(req)
	if err != nil {
		writeEnvelope(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	text, status, msg := r.resolveText(req, p)
	if status != 0 {
		writeEnvelope(w, status, msg, nil)
		return
	}
	opts, badOpt := r.synthesisOptions(p)
	if badOpt != "" {
		writeEnvelope(w, http.StatusBadRequest, badOpt, nil)
		return
	}

	segments := segment.Split(text, r.cfg.SegmentMaxLen)
	if len(segments) == 0 {
		writeEnvelope(w, http.StatusBadRequest, "Text contains nothing to synthesize", nil)
		return
	}

	data, err := r.assembler.Batch(req.Context(), segments, opts)
	if err != nil {
		r.logger.Printf("tts: batch assembly failed: %v", err)
		captureError(req, err, "batch assembly")
		writeEnvelope(w, http.StatusInternalServerError, "Synthesis failed", nil)
		return
	}

	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	if p.FileName != "" {
		w.Header().Set("Content-Disposition",
			fmt.Sprintf("attachment; filename=%q", filepath.Base(p.FileName)))
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// handleTTSStream synthesizes the input and relays audio chunks as they
// arrive. Once streaming has begun, failures are reported in-band (see
// streamErrorMagic) and via the X-Stream-Error trailer.
func (r *Router) handleTTSStream(w http.ResponseWriter, req *http.Request) {
	p, err := decodeParams(req)
	if err != nil {
		writeEnvelope(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	text, status, msg := r.resolveText(req, p)
	if status != 0 {
		writeEnvelope(w, status, msg, nil)
		return
	}
	opts, badOpt := r.synthesisOptions(p)
	if badOpt != "" {
		writeEnvelope(w, http.StatusBadRequest, badOpt, nil)
		return
	}

	segments := segment.Split(text, r.cfg.SegmentMaxLen)
	if len(segments) == 0 {
		writeEnvelope(w, http.StatusBadRequest, "Text contains nothing to synthesize", nil)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Trailer", streamErrorTrailer)
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)

	for ev := range r.assembler.Stream(req.Context(), segments, opts) {
		if ev.Err != nil {
			r.logger.Printf("tts: stream failed at segment %d: %v", ev.Segment, ev.Err)
			captureError(req, ev.Err, "stream assembly")
			writeStreamError(w, "Synthesis failed")
			w.Header().Set(streamErrorTrailer, "synthesis failed")
			if flusher != nil {
				flusher.Flush()
			}
			return
		}
		if _, err := w.Write(ev.Data); err != nil {
			// Client went away; the request context cancellation stops
			// the assembler.
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}

// writeStreamError emits the in-band terminal error frame.
func writeStreamError(w io.Writer, msg string) {
	frame := make([]byte, 0, len(streamErrorMagic)+2+len(msg))
	frame = append(frame, streamErrorMagic...)
	var n [2]byte
	binary.BigEndian.PutUint16(n[:], uint16(len(msg)))
	frame = append(frame, n[:]...)
	frame = append(frame, msg...)
	_, _ = w.Write(frame)
}

// handleVoices proxies the provider's voice catalog.
func (r *Router) handleVoices(w http.ResponseWriter, req *http.Request) {
	voices, err := r.tts.ListVoices(req.Context())
	if err != nil {
		r.logger.Printf("tts: list voices failed: %v", err)
		captureError(req, err, "list voices")
		writeEnvelope(w, http.StatusInternalServerError, "Failed to list voices", nil)
		return
	}
	writeEnvelope(w, http.StatusOK, "OK", voices)
}
