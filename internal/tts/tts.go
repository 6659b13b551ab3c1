// Package tts abstracts the external speech synthesis provider.
package tts

import "context"

// Defaults mirror the provider's read-aloud defaults.
const (
	DefaultVoice = "zh-CN-YunxiNeural"
	DefaultRate  = "+0%"
	DefaultPitch = "+0Hz"
)

// Options carry the voice parameters for one synthesis call.
type Options struct {
	Voice string
	Rate  string // signed percentage modifier, e.g. "+10%"
	Pitch string // signed offset in Hz, e.g. "-5Hz"
}

func (o Options) withDefaults() Options {
	if o.Voice == "" {
		o.Voice = DefaultVoice
	}
	if o.Rate == "" {
		o.Rate = DefaultRate
	}
	if o.Pitch == "" {
		o.Pitch = DefaultPitch
	}
	return o
}

// Voice describes one synthetic voice offered by the provider. Field names
// follow the provider's voice-list payload.
type Voice struct {
	Name           string `json:"Name"`
	ShortName      string `json:"ShortName"`
	Gender         string `json:"Gender"`
	Locale         string `json:"Locale"`
	FriendlyName   string `json:"FriendlyName"`
	SuggestedCodec string `json:"SuggestedCodec"`
}

// Client defines the interface for text-to-speech providers.
type Client interface {
	// SynthesizeStream converts text to speech, delivering encoded audio
	// chunks on the returned stream in provider emission order. The stream
	// is finite and cannot be restarted.
	SynthesizeStream(ctx context.Context, text string, opts Options) (*Stream, error)

	// SynthesizeToFile converts text to speech and writes the complete
	// audio to path. No file is left behind on failure.
	SynthesizeToFile(ctx context.Context, text string, opts Options, path string) error

	// ListVoices returns the voices the provider can synthesize with.
	ListVoices(ctx context.Context) ([]Voice, error)
}
