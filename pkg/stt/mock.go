package stt

import (
	"context"
	"sync"

	"github.com/teslashibe/go-pathsense/pkg/audio"
)

// MockRecognizer returns scripted transcriptions.
type MockRecognizer struct {
	TranscribeFunc func(ctx context.Context, pcm []byte, f audio.Format) (string, error)

	// Texts are returned in order when TranscribeFunc is nil; the last repeats.
	Texts []string

	mu    sync.Mutex
	calls int
	bytes []int
}

func (m *MockRecognizer) Transcribe(ctx context.Context, pcm []byte, f audio.Format) (string, error) {
	m.mu.Lock()
	i := m.calls
	m.calls++
	m.bytes = append(m.bytes, len(pcm))
	m.mu.Unlock()

	if m.TranscribeFunc != nil {
		return m.TranscribeFunc(ctx, pcm, f)
	}
	if len(m.Texts) == 0 {
		return "", nil
	}
	return m.Texts[min(i, len(m.Texts)-1)], nil
}

// Calls returns the number of Transcribe calls.
func (m *MockRecognizer) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Sizes returns the PCM byte length of every call.
func (m *MockRecognizer) Sizes() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.bytes...)
}

var _ Recognizer = (*MockRecognizer)(nil)
