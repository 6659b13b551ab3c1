package tts

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// The Edge read-aloud endpoints. The trusted client token is the fixed value
// the Edge browser itself presents; the service rejects connections without it.
const (
	trustedClientToken = "6A5AA1D4EAFF4E9FB37E23D68491D6F4"

	defaultSynthURL = "wss://speech.platform.bing.com/consumer/speech/synthesize/" +
		"readaloud/edge/v1?TrustedClientToken=" + trustedClientToken
	defaultVoicesURL = "https://speech.platform.bing.com/consumer/speech/synthesize/" +
		"readaloud/voices/list?trustedclienttoken=" + trustedClientToken

	wsOrigin  = "chrome-extension://jdiccldimpdaibmpdkjnbmckianbfold"
	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36 Edg/122.0.0.0"

	outputFormat = "audio-24khz-48kbitrate-mono-mp3"
)

// EdgeConfig holds configuration for the Edge read-aloud client. Zero values
// select the production endpoints and default dialer.
type EdgeConfig struct {
	SynthURL   string
	VoicesURL  string
	HTTPClient *http.Client      // used for the voice-list call
	Dialer     *websocket.Dialer // used for synthesis connections
}

// EdgeClient implements the Client interface against the Microsoft Edge
// read-aloud service. Each synthesis call opens one websocket connection and
// runs a single turn on it.
type EdgeClient struct {
	synthURL   string
	voicesURL  string
	httpClient *http.Client
	dialer     *websocket.Dialer
}

// NewEdgeClient creates a new Edge read-aloud client.
func NewEdgeClient(cfg EdgeConfig) *EdgeClient {
	c := &EdgeClient{
		synthURL:   cfg.SynthURL,
		voicesURL:  cfg.VoicesURL,
		httpClient: cfg.HTTPClient,
		dialer:     cfg.Dialer,
	}
	if c.synthURL == "" {
		c.synthURL = defaultSynthURL
	}
	if c.voicesURL == "" {
		c.voicesURL = defaultVoicesURL
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if c.dialer == nil {
		c.dialer = &websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	}
	return c
}

// SynthesizeStream opens a synthesis turn and streams its audio chunks. The
// stream ends cleanly on the provider's turn.end message; a connection drop
// before that surfaces through Stream.Err.
func (c *EdgeClient) SynthesizeStream(ctx context.Context, text string, opts Options) (*Stream, error) {
	opts = opts.withDefaults()

	header := http.Header{}
	header.Set("Origin", wsOrigin)
	header.Set("User-Agent", userAgent)
	header.Set("Pragma", "no-cache")
	header.Set("Cache-Control", "no-cache")

	conn, _, err := c.dialer.DialContext(ctx, c.synthURL, header)
	if err != nil {
		return nil, fmt.Errorf("edge: dial failed: %w", err)
	}

	requestID := strings.ReplaceAll(uuid.NewString(), "-", "")
	if err := conn.WriteMessage(websocket.TextMessage, speechConfigMessage()); err != nil {
		conn.Close()
		return nil, fmt.Errorf("edge: send speech.config failed: %w", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, ssmlMessage(requestID, text, opts)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("edge: send ssml failed: %w", err)
	}

	stream := NewStream(16)

	go func() {
		defer conn.Close()

		// Unblock ReadMessage when the caller goes away.
		stop := make(chan struct{})
		defer close(stop)
		go func() {
			select {
			case <-ctx.Done():
				conn.Close()
			case <-stop:
			}
		}()

		for {
			msgType, data, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() != nil {
					stream.Finish(ctx.Err())
					return
				}
				stream.Finish(fmt.Errorf("edge: connection closed before turn.end: %w", err))
				return
			}

			switch msgType {
			case websocket.TextMessage:
				if bytes.Contains(data, []byte("Path:turn.end")) {
					stream.Finish(nil)
					return
				}
			case websocket.BinaryMessage:
				chunk, ok := audioPayload(data)
				if !ok || len(chunk) == 0 {
					continue
				}
				if !stream.Emit(ctx, chunk) {
					stream.Finish(ctx.Err())
					return
				}
			}
		}
	}()

	return stream, nil
}

// SynthesizeToFile drains a synthesis stream into path. On any failure the
// partially written file is removed.
func (c *EdgeClient) SynthesizeToFile(ctx context.Context, text string, opts Options, path string) error {
	stream, err := c.SynthesizeStream(ctx, text, opts)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		// Drain so the reader goroutine can exit.
		for range stream.Chunks() {
		}
		return fmt.Errorf("edge: create %s: %w", path, err)
	}

	for chunk := range stream.Chunks() {
		if _, werr := f.Write(chunk); werr != nil {
			f.Close()
			os.Remove(path)
			for range stream.Chunks() {
			}
			return fmt.Errorf("edge: write %s: %w", path, werr)
		}
	}
	if err := stream.Err(); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return fmt.Errorf("edge: close %s: %w", path, err)
	}
	return nil
}

// ListVoices fetches the provider's voice catalog.
func (c *EdgeClient) ListVoices(ctx context.Context) ([]Voice, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.voicesURL, nil)
	if err != nil {
		return nil, fmt.Errorf("edge: create voices request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("edge: voices request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("edge: voices list error: %s - %s", resp.Status, string(body))
	}

	var voices []Voice
	if err := json.NewDecoder(resp.Body).Decode(&voices); err != nil {
		return nil, fmt.Errorf("edge: decode voices list: %w", err)
	}
	return voices, nil
}

// speechConfigMessage builds the turn configuration message sent before SSML.
func speechConfigMessage() []byte {
	var b strings.Builder
	b.WriteString("X-Timestamp:" + edgeTimestamp() + "\r\n")
	b.WriteString("Content-Type:application/json; charset=utf-8\r\n")
	b.WriteString("Path:speech.config\r\n\r\n")
	b.WriteString(`{"context":{"synthesis":{"audio":{"metadataoptions":` +
		`{"sentenceBoundaryEnabled":"false","wordBoundaryEnabled":"false"},` +
		`"outputFormat":"` + outputFormat + `"}}}}`)
	return []byte(b.String())
}

// ssmlMessage builds the SSML turn request.
func ssmlMessage(requestID, text string, opts Options) []byte {
	var b strings.Builder
	b.WriteString("X-RequestId:" + requestID + "\r\n")
	b.WriteString("Content-Type:application/ssml+xml\r\n")
	b.WriteString("X-Timestamp:" + edgeTimestamp() + "\r\n")
	b.WriteString("Path:ssml\r\n\r\n")
	fmt.Fprintf(&b,
		"<speak version='1.0' xmlns='http://www.w3.org/2001/10/synthesis' xml:lang='en-US'>"+
			"<voice name='%s'><prosody pitch='%s' rate='%s' volume='+0%%'>%s</prosody></voice></speak>",
		opts.Voice, opts.Pitch, opts.Rate, escapeXML(text))
	return []byte(b.String())
}

// audioPayload extracts the audio bytes from a binary protocol frame: a
// big-endian uint16 header length, the ascii header block, then the payload.
// Frames whose header is not Path:audio carry no audio.
func audioPayload(frame []byte) ([]byte, bool) {
	if len(frame) < 2 {
		return nil, false
	}
	headerLen := int(binary.BigEndian.Uint16(frame))
	if 2+headerLen > len(frame) {
		return nil, false
	}
	if !bytes.Contains(frame[2:2+headerLen], []byte("Path:audio")) {
		return nil, false
	}
	return frame[2+headerLen:], true
}

var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	"'", "&apos;",
	`"`, "&quot;",
)

func escapeXML(s string) string { return xmlEscaper.Replace(s) }

// edgeTimestamp formats the wall clock the way the read-aloud service expects.
func edgeTimestamp() string {
	return time.Now().UTC().Format("Mon Jan 02 2006 15:04:05") + " GMT+0000 (Coordinated Universal Time)"
}
