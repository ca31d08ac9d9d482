package audioio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gordonklaus/portaudio"
)

var (
	paMu   sync.Mutex
	paRefs int
)

// acquirePortAudio initializes PortAudio on first use. Every call must be
// paired with releasePortAudio.
func acquirePortAudio() error {
	paMu.Lock()
	defer paMu.Unlock()

	if paRefs == 0 {
		if err := portaudio.Initialize(); err != nil {
			return fmt.Errorf("portaudio: initialize: %w", err)
		}
	}
	paRefs++
	return nil
}

func releasePortAudio() {
	paMu.Lock()
	defer paMu.Unlock()

	if paRefs == 0 {
		return
	}
	paRefs--
	if paRefs == 0 {
		portaudio.Terminate()
	}
}

// DeviceInfo describes an audio device.
type DeviceInfo struct {
	Index             int     `json:"index"`
	Name              string  `json:"name"`
	HostAPI           string  `json:"host_api"`
	MaxInputChannels  int     `json:"max_input_channels"`
	MaxOutputChannels int     `json:"max_output_channels"`
	DefaultSampleRate float64 `json:"default_sample_rate"`
}

// IsInput reports whether the device can capture.
func (d DeviceInfo) IsInput() bool { return d.MaxInputChannels > 0 }

// IsOutput reports whether the device can play.
func (d DeviceInfo) IsOutput() bool { return d.MaxOutputChannels > 0 }

// Devices lists every PortAudio device.
func Devices() ([]DeviceInfo, error) {
	if err := acquirePortAudio(); err != nil {
		return nil, err
	}
	defer releasePortAudio()

	devs, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("portaudio: list devices: %w", err)
	}

	out := make([]DeviceInfo, 0, len(devs))
	for _, d := range devs {
		info := DeviceInfo{
			Index:             d.Index,
			Name:              d.Name,
			MaxInputChannels:  d.MaxInputChannels,
			MaxOutputChannels: d.MaxOutputChannels,
			DefaultSampleRate: d.DefaultSampleRate,
		}
		if d.HostApi != nil {
			info.HostAPI = d.HostApi.Name
		}
		out = append(out, info)
	}
	return out, nil
}

func lookupDevice(index int, input bool) (*portaudio.DeviceInfo, error) {
	if index == DefaultDevice {
		if input {
			return portaudio.DefaultInputDevice()
		}
		return portaudio.DefaultOutputDevice()
	}

	devs, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(devs) {
		return nil, fmt.Errorf("device %d out of range (have %d)", index, len(devs))
	}
	d := devs[index]
	if input && d.MaxInputChannels == 0 {
		return nil, fmt.Errorf("device %d (%s) has no input channels", index, d.Name)
	}
	if !input && d.MaxOutputChannels == 0 {
		return nil, fmt.Errorf("device %d (%s) has no output channels", index, d.Name)
	}
	return d, nil
}

// portAudioSource captures from a PortAudio input device.
type portAudioSource struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	stream  *portaudio.Stream
	running bool
	closed  bool
	chunks  chan AudioChunk
	done    chan struct{}

	chunksRead atomic.Int64
	overruns   atomic.Int64
}

func newPortAudioSource(cfg Config, logger *slog.Logger) (*portAudioSource, error) {
	if err := acquirePortAudio(); err != nil {
		return nil, err
	}
	return &portAudioSource{
		cfg:    cfg,
		logger: logger.With("component", "audioio.source"),
	}, nil
}

func (s *portAudioSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return io.ErrClosedPipe
	}
	if s.running {
		return nil
	}

	dev, err := lookupDevice(s.cfg.Device, true)
	if err != nil {
		return fmt.Errorf("portaudio: input device: %w", err)
	}

	buf := make([]int16, s.cfg.BufferSize()*s.cfg.Channels)
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   dev,
			Channels: s.cfg.Channels,
			Latency:  dev.DefaultLowInputLatency,
		},
		SampleRate:      float64(s.cfg.SampleRate),
		FramesPerBuffer: s.cfg.BufferSize(),
	}
	stream, err := portaudio.OpenStream(params, buf)
	if err != nil {
		return fmt.Errorf("portaudio: open input: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("portaudio: start input: %w", err)
	}

	s.stream = stream
	s.running = true
	s.chunks = make(chan AudioChunk, 64)
	s.done = make(chan struct{})

	go s.captureLoop(ctx, stream, buf, s.chunks, s.done)

	s.logger.Info("capture started", "device", dev.Name, "sample_rate", s.cfg.SampleRate)
	return nil
}

func (s *portAudioSource) captureLoop(ctx context.Context, stream *portaudio.Stream, buf []int16, out chan AudioChunk, done chan struct{}) {
	defer close(done)
	defer close(out)

	for ctx.Err() == nil && s.isRunning() {
		if err := stream.Read(); err != nil {
			if errors.Is(err, portaudio.InputOverflowed) {
				s.overruns.Add(1)
				continue
			}
			s.logger.Warn("capture read failed", "error", err)
			return
		}

		chunk := AudioChunk{
			Samples:    append([]int16(nil), buf...),
			SampleRate: s.cfg.SampleRate,
			Channels:   s.cfg.Channels,
		}
		select {
		case out <- chunk:
			s.chunksRead.Add(1)
		default:
			// Full: drop the oldest so the newest audio survives.
			select {
			case <-out:
			default:
			}
			out <- chunk
			s.overruns.Add(1)
		}
	}
}

func (s *portAudioSource) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	stream, done := s.stream, s.done
	s.stream = nil
	s.mu.Unlock()

	// The loop notices within one buffer; the stream is only touched
	// from one goroutine at a time.
	<-done
	err := stream.Stop()
	if cerr := stream.Close(); err == nil {
		err = cerr
	}
	s.logger.Info("capture stopped", "chunks", s.chunksRead.Load(), "overruns", s.overruns.Load())
	return err
}

func (s *portAudioSource) isRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *portAudioSource) Read(ctx context.Context) (AudioChunk, error) {
	s.mu.Lock()
	ch := s.chunks
	s.mu.Unlock()
	if ch == nil {
		return AudioChunk{}, io.EOF
	}

	select {
	case <-ctx.Done():
		return AudioChunk{}, ctx.Err()
	case chunk, ok := <-ch:
		if !ok {
			return AudioChunk{}, io.EOF
		}
		return chunk, nil
	}
}

func (s *portAudioSource) Drain() int {
	s.mu.Lock()
	ch := s.chunks
	s.mu.Unlock()
	return drain(ch)
}

func (s *portAudioSource) Config() Config { return s.cfg }
func (s *portAudioSource) Name() string   { return string(BackendPortAudio) }

func (s *portAudioSource) Stats() SourceStats {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()
	return SourceStats{
		ChunksRead: s.chunksRead.Load(),
		Overruns:   s.overruns.Load(),
		Running:    running,
		Backend:    string(BackendPortAudio),
	}
}

func (s *portAudioSource) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	err := s.Stop()
	releasePortAudio()
	return err
}

// portAudioSink plays through a PortAudio output device. Write blocks at
// the device's pace, so there is no queue beyond the device buffer.
type portAudioSink struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	stream  *portaudio.Stream
	buf     []int16
	running bool
	closed  bool

	writeMu sync.Mutex
	gen     atomic.Uint64
}

func newPortAudioSink(cfg Config, logger *slog.Logger) (*portAudioSink, error) {
	if err := acquirePortAudio(); err != nil {
		return nil, err
	}
	return &portAudioSink{
		cfg:    cfg,
		logger: logger.With("component", "audioio.sink"),
	}, nil
}

func (s *portAudioSink) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return io.ErrClosedPipe
	}
	if s.running {
		return nil
	}

	dev, err := lookupDevice(s.cfg.Device, false)
	if err != nil {
		return fmt.Errorf("portaudio: output device: %w", err)
	}

	buf := make([]int16, s.cfg.BufferSize()*s.cfg.Channels)
	params := portaudio.StreamParameters{
		Output: portaudio.StreamDeviceParameters{
			Device:   dev,
			Channels: s.cfg.Channels,
			Latency:  dev.DefaultLowOutputLatency,
		},
		SampleRate:      float64(s.cfg.SampleRate),
		FramesPerBuffer: s.cfg.BufferSize(),
	}
	stream, err := portaudio.OpenStream(params, buf)
	if err != nil {
		return fmt.Errorf("portaudio: open output: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("portaudio: start output: %w", err)
	}

	s.stream = stream
	s.buf = buf
	s.running = true
	s.logger.Info("playback started", "device", dev.Name, "sample_rate", s.cfg.SampleRate)
	return nil
}

func (s *portAudioSink) Write(ctx context.Context, chunk AudioChunk) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	stream, buf, running := s.stream, s.buf, s.running
	s.mu.Unlock()
	if !running {
		return io.ErrClosedPipe
	}

	samples := chunk.Samples
	if chunk.SampleRate != 0 && chunk.SampleRate != s.cfg.SampleRate {
		samples = Resample(samples, chunk.SampleRate, s.cfg.SampleRate)
	}

	gen := s.gen.Load()
	for len(samples) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		if s.gen.Load() != gen {
			return nil
		}
		n := copy(buf, samples)
		clear(buf[n:])
		samples = samples[n:]
		if err := stream.Write(); err != nil && !errors.Is(err, portaudio.OutputUnderflowed) {
			return fmt.Errorf("portaudio: write: %w", err)
		}
	}
	return nil
}

// Clear abandons the Write in progress.
func (s *portAudioSink) Clear() error {
	s.gen.Add(1)
	return nil
}

func (s *portAudioSink) Stop() error {
	s.Clear()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false
	err := s.stream.Stop()
	if cerr := s.stream.Close(); err == nil {
		err = cerr
	}
	s.stream = nil
	return err
}

func (s *portAudioSink) Config() Config { return s.cfg }
func (s *portAudioSink) Name() string   { return string(BackendPortAudio) }

func (s *portAudioSink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	err := s.Stop()
	releasePortAudio()
	return err
}

func drain(ch chan AudioChunk) int {
	n := 0
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return n
			}
			n++
		default:
			return n
		}
	}
}

var (
	_ Source = (*portAudioSource)(nil)
	_ Sink   = (*portAudioSink)(nil)
)
