package tts

import (
	"context"
	"sync"
	"time"
)

// Mock is a Provider for tests. By default it produces 20ms of PCM24
// silence per character, split into 20ms stream chunks.
type Mock struct {
	SynthesizeFunc func(ctx context.Context, text string) (*AudioResult, error)
	StreamFunc     func(ctx context.Context, text string) (AudioStream, error)
	HealthFunc     func(ctx context.Context) error

	// ChunkDelay is slept before each default stream chunk, so tests
	// can hold a synthesis open long enough to cancel it.
	ChunkDelay time.Duration

	mu    sync.Mutex
	calls []MockCall
}

// MockCall records one invocation.
type MockCall struct {
	Method string
	Text   string
	Time   time.Time
}

// bytesPerChar is 20ms of 24kHz 16-bit mono.
const bytesPerChar = 960

// NewMock returns a mock with the default silent output.
func NewMock() *Mock {
	return &Mock{}
}

// Silence returns a PCM24 result of n bytes.
func Silence(n int) *AudioResult {
	format := PCMFormat(EncodingPCM24)
	return &AudioResult{
		Audio:    make([]byte, n),
		Format:   format,
		Duration: format.DurationOf(n),
	}
}

func (m *Mock) Synthesize(ctx context.Context, text string) (*AudioResult, error) {
	m.record("Synthesize", text)
	if m.SynthesizeFunc != nil {
		return m.SynthesizeFunc(ctx, text)
	}
	if text == "" {
		return nil, WrapError("mock", ErrEmptyText)
	}
	r := Silence(len(text) * bytesPerChar)
	r.CharCount = len(text)
	return r, nil
}

func (m *Mock) Stream(ctx context.Context, text string) (AudioStream, error) {
	m.record("Stream", text)
	if m.StreamFunc != nil {
		return m.StreamFunc(ctx, text)
	}

	var result *AudioResult
	if m.SynthesizeFunc != nil {
		r, err := m.SynthesizeFunc(ctx, text)
		if err != nil {
			return nil, err
		}
		result = r
	} else {
		if text == "" {
			return nil, WrapError("mock", ErrEmptyText)
		}
		result = Silence(len(text) * bytesPerChar)
	}
	return &chunkStream{
		ctx:    ctx,
		data:   result.Audio,
		format: result.Format,
		delay:  m.ChunkDelay,
	}, nil
}

func (m *Mock) Health(ctx context.Context) error {
	m.record("Health", "")
	if m.HealthFunc != nil {
		return m.HealthFunc(ctx)
	}
	return nil
}

func (m *Mock) Close() error {
	m.record("Close", "")
	return nil
}

func (m *Mock) record(method, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, MockCall{Method: method, Text: text, Time: time.Now()})
}

// Calls returns a copy of the recorded calls.
func (m *Mock) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount counts calls to method.
func (m *Mock) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// Texts returns the text of every Synthesize and Stream call in order.
func (m *Mock) Texts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, c := range m.calls {
		if c.Method == "Synthesize" || c.Method == "Stream" {
			out = append(out, c.Text)
		}
	}
	return out
}

// WithError returns a mock whose every call fails with err.
func WithError(err error) *Mock {
	return &Mock{
		SynthesizeFunc: func(context.Context, string) (*AudioResult, error) { return nil, err },
		StreamFunc:     func(context.Context, string) (AudioStream, error) { return nil, err },
		HealthFunc:     func(context.Context) error { return err },
	}
}

// chunkStream yields 20ms chunks, honouring ctx between chunks.
type chunkStream struct {
	ctx    context.Context
	data   []byte
	off    int
	format AudioFormat
	delay  time.Duration

	mu     sync.Mutex
	closed bool
}

func (s *chunkStream) Read() ([]byte, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, ErrStreamClosed
	}
	if s.off >= len(s.data) {
		return nil, nil
	}

	if s.delay > 0 {
		t := time.NewTimer(s.delay)
		defer t.Stop()
		select {
		case <-t.C:
		case <-s.ctx.Done():
			return nil, s.ctx.Err()
		}
	} else if err := s.ctx.Err(); err != nil {
		return nil, err
	}

	end := min(s.off+bytesPerChar, len(s.data))
	chunk := s.data[s.off:end]
	s.off = end
	return chunk, nil
}

func (s *chunkStream) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *chunkStream) Format() AudioFormat {
	return s.format
}

var _ Provider = (*Mock)(nil)
