// Package stt turns microphone audio into text for voice queries.
package stt

import (
	"context"
	"errors"
	"fmt"

	"github.com/teslashibe/go-pathsense/pkg/audio"
)

var (
	// ErrNoSpeech is returned when nobody spoke before the timeout.
	ErrNoSpeech = errors.New("stt: no speech detected")

	// ErrNotUnderstood is returned when speech was heard but produced no text.
	ErrNotUnderstood = errors.New("stt: speech not understood")

	ErrEmptyAudio = errors.New("stt: empty audio")
	ErrNoAPIKey   = errors.New("stt: API key required")
)

// Recognizer transcribes one utterance of PCM16 audio.
type Recognizer interface {
	Transcribe(ctx context.Context, pcm []byte, f audio.Format) (string, error)
}

// APIError is a non-2xx response from a transcription API.
type APIError struct {
	StatusCode int
	Message    string
	Provider   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("stt [%s]: API error %d: %s", e.Provider, e.StatusCode, e.Message)
}

// IsRetryable reports rate limiting or a server-side failure.
func (e *APIError) IsRetryable() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}
