// Package tts turns alert and answer text into raw PCM audio.
//
// Every provider delivers 16-bit little-endian mono PCM so the speech
// layer can wrap it in a WAV container and play it without decoding.
// Providers can be composed with NewChain for fallback.
//
//	provider, _ := tts.NewOpenAI(tts.WithAPIKey(key), tts.WithVoice(tts.OpenAIVoiceNova))
//	defer provider.Close()
//
//	stream, _ := provider.Stream(ctx, "chair ahead, about 1 meters")
//	pcm, _ := tts.ReadAll(stream)
package tts

import (
	"bytes"
	"context"
	"time"
)

// Provider synthesizes speech.
type Provider interface {
	// Synthesize returns the complete audio for text.
	Synthesize(ctx context.Context, text string) (*AudioResult, error)

	// Stream returns audio chunks as the provider produces them.
	Stream(ctx context.Context, text string) (AudioStream, error)

	// Health checks connectivity and credentials.
	Health(ctx context.Context) error

	Close() error
}

// AudioStream is a streaming synthesis response.
// Read returns (nil, nil) once the stream is exhausted.
type AudioStream interface {
	Read() ([]byte, error)
	Close() error
	Format() AudioFormat
}

// AudioResult is a complete synthesis result.
type AudioResult struct {
	Audio     []byte
	Format    AudioFormat
	Duration  time.Duration
	CharCount int

	// LatencyMs is the time to first byte.
	LatencyMs int64
}

// AudioFormat describes PCM audio.
type AudioFormat struct {
	Encoding   Encoding
	SampleRate int
	Channels   int
	BitDepth   int
}

// BytesPerSecond returns the data rate of the format.
func (f AudioFormat) BytesPerSecond() int {
	return f.SampleRate * f.Channels * f.BitDepth / 8
}

// DurationOf returns the playback time of n bytes.
func (f AudioFormat) DurationOf(n int) time.Duration {
	bps := f.BytesPerSecond()
	if bps <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second / time.Duration(bps)
}

// Encoding names a PCM output format, using ElevenLabs' naming.
type Encoding string

const (
	EncodingPCM16 Encoding = "pcm_16000"
	EncodingPCM22 Encoding = "pcm_22050"
	EncodingPCM24 Encoding = "pcm_24000"
	EncodingPCM44 Encoding = "pcm_44100"
)

// SampleRateFromEncoding returns the sample rate of enc, defaulting to 24kHz.
func SampleRateFromEncoding(enc Encoding) int {
	switch enc {
	case EncodingPCM16:
		return 16000
	case EncodingPCM22:
		return 22050
	case EncodingPCM44:
		return 44100
	default:
		return 24000
	}
}

// PCMFormat returns the mono 16-bit format for enc.
func PCMFormat(enc Encoding) AudioFormat {
	return AudioFormat{
		Encoding:   enc,
		SampleRate: SampleRateFromEncoding(enc),
		Channels:   1,
		BitDepth:   16,
	}
}

// VoiceSettings tunes ElevenLabs voices.
type VoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style,omitempty"`
	SpeakerBoost    bool    `json:"use_speaker_boost"`
}

// DefaultVoiceSettings favours a steady, clear voice.
func DefaultVoiceSettings() VoiceSettings {
	return VoiceSettings{
		Stability:       0.6,
		SimilarityBoost: 0.75,
		SpeakerBoost:    true,
	}
}

// ReadAll drains stream and closes it.
func ReadAll(stream AudioStream) ([]byte, error) {
	defer stream.Close()

	var buf bytes.Buffer
	for {
		chunk, err := stream.Read()
		if err != nil {
			return buf.Bytes(), err
		}
		if chunk == nil {
			return buf.Bytes(), nil
		}
		buf.Write(chunk)
	}
}
