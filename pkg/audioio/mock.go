package audioio

import (
	"context"
	"io"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// MockSource is a Source fed by tests through Push, or by an optional
// generator that emits a chunk every BufferDuration.
type MockSource struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	closed  bool
	chunks  chan AudioChunk
	stopCh  chan struct{}

	generate  bool
	frequency float64
	amplitude float64
	phase     float64

	chunksRead atomic.Int64
	overruns   atomic.Int64
}

// MockSourceOption configures a MockSource.
type MockSourceOption func(*MockSource)

// WithSineWave generates a tone continuously once started.
func WithSineWave(frequency, amplitude float64) MockSourceOption {
	return func(m *MockSource) {
		m.generate = true
		m.frequency = frequency
		m.amplitude = amplitude
	}
}

// WithSilence generates silence continuously once started.
func WithSilence() MockSourceOption {
	return func(m *MockSource) {
		m.generate = true
		m.frequency = 0
	}
}

// NewMockSource creates an idle mock source.
func NewMockSource(cfg Config, logger *slog.Logger, opts ...MockSourceOption) *MockSource {
	if logger == nil {
		logger = slog.Default()
	}
	m := &MockSource{
		cfg:       cfg,
		logger:    logger.With("component", "audioio.mock_source"),
		chunks:    make(chan AudioChunk, 256),
		amplitude: 0.5,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *MockSource) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return io.ErrClosedPipe
	}
	if m.running {
		return nil
	}
	m.running = true
	m.stopCh = make(chan struct{})
	if m.generate {
		go m.generateLoop(ctx, m.stopCh)
	}
	return nil
}

func (m *MockSource) generateLoop(ctx context.Context, stop chan struct{}) {
	ticker := time.NewTicker(m.cfg.BufferDuration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			m.Push(m.tone(m.cfg.BufferSize()))
		}
	}
}

func (m *MockSource) tone(frames int) AudioChunk {
	samples := make([]int16, frames*m.cfg.Channels)
	if m.frequency > 0 {
		for i := 0; i < frames; i++ {
			v := int16(m.amplitude * 32767 * math.Sin(2*math.Pi*m.frequency*m.phase/float64(m.cfg.SampleRate)))
			for ch := 0; ch < m.cfg.Channels; ch++ {
				samples[i*m.cfg.Channels+ch] = v
			}
			m.phase++
		}
	}
	return AudioChunk{Samples: samples, SampleRate: m.cfg.SampleRate, Channels: m.cfg.Channels}
}

// Push queues a chunk for Read. A full queue drops the chunk.
func (m *MockSource) Push(chunk AudioChunk) {
	if chunk.SampleRate == 0 {
		chunk.SampleRate = m.cfg.SampleRate
	}
	if chunk.Channels == 0 {
		chunk.Channels = m.cfg.Channels
	}
	select {
	case m.chunks <- chunk:
	default:
		m.overruns.Add(1)
	}
}

// PushLevel queues n chunks of one buffer each at a constant amplitude.
func (m *MockSource) PushLevel(amplitude int16, n int) {
	for i := 0; i < n; i++ {
		samples := make([]int16, m.cfg.BufferSize()*m.cfg.Channels)
		for j := range samples {
			if j%2 == 0 {
				samples[j] = amplitude
			} else {
				samples[j] = -amplitude
			}
		}
		m.Push(AudioChunk{Samples: samples})
	}
}

func (m *MockSource) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return nil
	}
	m.running = false
	close(m.stopCh)
	return nil
}

// Read returns queued chunks. Once stopped and empty it returns io.EOF.
func (m *MockSource) Read(ctx context.Context) (AudioChunk, error) {
	for {
		select {
		case chunk := <-m.chunks:
			m.chunksRead.Add(1)
			return chunk, nil
		default:
		}

		m.mu.Lock()
		running, stop := m.running, m.stopCh
		m.mu.Unlock()
		if !running {
			return AudioChunk{}, io.EOF
		}

		select {
		case <-ctx.Done():
			return AudioChunk{}, ctx.Err()
		case <-stop:
		case chunk := <-m.chunks:
			m.chunksRead.Add(1)
			return chunk, nil
		}
	}
}

func (m *MockSource) Drain() int {
	return drain(m.chunks)
}

// Pending returns the number of queued chunks.
func (m *MockSource) Pending() int {
	return len(m.chunks)
}

func (m *MockSource) Config() Config { return m.cfg }
func (m *MockSource) Name() string   { return string(BackendMock) }

func (m *MockSource) Stats() SourceStats {
	m.mu.Lock()
	running := m.running
	m.mu.Unlock()
	return SourceStats{
		ChunksRead: m.chunksRead.Load(),
		Overruns:   m.overruns.Load(),
		Running:    running,
		Backend:    string(BackendMock),
	}
}

func (m *MockSource) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()
	return m.Stop()
}

// MockSink records everything written to it. With WithRealtime it
// blocks for each chunk's duration, like a device would.
type MockSink struct {
	cfg    Config
	logger *slog.Logger

	realtime bool

	mu      sync.Mutex
	running bool
	closed  bool
	written []int16
	writes  int

	gen    atomic.Uint64
	clears atomic.Int64
}

// MockSinkOption configures a MockSink.
type MockSinkOption func(*MockSink)

// WithRealtime paces Write at the chunk's playback duration.
func WithRealtime() MockSinkOption {
	return func(m *MockSink) { m.realtime = true }
}

// NewMockSink creates a stopped mock sink.
func NewMockSink(cfg Config, logger *slog.Logger, opts ...MockSinkOption) *MockSink {
	if logger == nil {
		logger = slog.Default()
	}
	m := &MockSink{
		cfg:    cfg,
		logger: logger.With("component", "audioio.mock_sink"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *MockSink) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return io.ErrClosedPipe
	}
	m.running = true
	return nil
}

func (m *MockSink) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.running = false
	return nil
}

func (m *MockSink) Write(ctx context.Context, chunk AudioChunk) error {
	m.mu.Lock()
	if m.closed || !m.running {
		m.mu.Unlock()
		return io.ErrClosedPipe
	}
	m.mu.Unlock()

	gen := m.gen.Load()
	if m.realtime {
		t := time.NewTimer(chunk.Duration())
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
	if m.gen.Load() != gen {
		return nil
	}

	m.mu.Lock()
	m.written = append(m.written, chunk.Samples...)
	m.writes++
	m.mu.Unlock()
	return nil
}

func (m *MockSink) Clear() error {
	m.gen.Add(1)
	m.clears.Add(1)
	return nil
}

// Written returns a copy of every sample played so far.
func (m *MockSink) Written() []int16 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int16(nil), m.written...)
}

// Writes returns the number of chunks played.
func (m *MockSink) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// Clears returns how often Clear was called.
func (m *MockSink) Clears() int64 {
	return m.clears.Load()
}

func (m *MockSink) Config() Config { return m.cfg }
func (m *MockSink) Name() string   { return string(BackendMock) }

func (m *MockSink) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.running = false
	return nil
}

var (
	_ Source = (*MockSource)(nil)
	_ Sink   = (*MockSink)(nil)
)
