package stt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/teslashibe/go-pathsense/pkg/audio"
	"github.com/teslashibe/go-pathsense/pkg/audioio"
)

// DefaultCalibration is how much background audio Calibrate measures.
const DefaultCalibration = 500 * time.Millisecond

// ListenerConfig tunes utterance segmentation.
type ListenerConfig struct {
	// Threshold is the lowest RMS level (0..1) that counts as speech.
	// Calibration may raise the effective threshold above it.
	Threshold float64

	// NoiseRatio sets the effective threshold to NoiseRatio times the
	// measured noise floor when that is above Threshold.
	NoiseRatio float64

	// Silence ends an utterance once this much quiet follows speech.
	Silence time.Duration

	// MaxPhrase caps one utterance.
	MaxPhrase time.Duration

	// Busy, when set, is polled before listening; the listener waits
	// while it reports true so the microphone never hears our own speech.
	Busy         func() bool
	PollInterval time.Duration

	Logger *slog.Logger
}

// DefaultListenerConfig returns the usual segmentation settings.
func DefaultListenerConfig() ListenerConfig {
	return ListenerConfig{
		Threshold:    0.02,
		NoiseRatio:   1.5,
		Silence:      800 * time.Millisecond,
		MaxPhrase:    15 * time.Second,
		PollInterval: 100 * time.Millisecond,
	}
}

// Listener records one utterance at a time from a Source and transcribes it.
type Listener struct {
	src audioio.Source
	rec Recognizer
	cfg ListenerConfig
	log *slog.Logger

	mu        sync.Mutex
	floor     float64
	threshold float64
}

// NewListener wraps a started source. Zero config fields take defaults.
func NewListener(src audioio.Source, rec Recognizer, cfg ListenerConfig) *Listener {
	def := DefaultListenerConfig()
	if cfg.Threshold <= 0 {
		cfg.Threshold = def.Threshold
	}
	if cfg.NoiseRatio <= 0 {
		cfg.NoiseRatio = def.NoiseRatio
	}
	if cfg.Silence <= 0 {
		cfg.Silence = def.Silence
	}
	if cfg.MaxPhrase <= 0 {
		cfg.MaxPhrase = def.MaxPhrase
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Listener{
		src:       src,
		rec:       rec,
		cfg:       cfg,
		log:       cfg.Logger.With("component", "stt.listener"),
		threshold: cfg.Threshold,
	}
}

// Calibrate reads about d of background audio and raises the speech
// threshold above its noise floor. Call it before the first Listen, when
// nobody is expected to speak. The floor is the lower quartile of the
// chunk levels so a short sound during calibration does not inflate it.
// It returns the measured floor; without audio the threshold is unchanged.
func (l *Listener) Calibrate(ctx context.Context, d time.Duration) (float64, error) {
	readCtx, cancel := context.WithTimeout(ctx, 2*d)
	defer cancel()

	var levels []float64
	var heard time.Duration
	for heard < d {
		chunk, err := l.src.Read(readCtx)
		if err != nil {
			if ctx.Err() != nil {
				return 0, ctx.Err()
			}
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.EOF) {
				break
			}
			return 0, err
		}
		levels = append(levels, audioio.RMS(chunk.Samples))
		heard += chunk.Duration()
	}
	if len(levels) == 0 {
		l.log.Warn("no audio to calibrate against", "threshold", l.Threshold())
		return 0, nil
	}

	sort.Float64s(levels)
	floor := levels[len(levels)/4]
	l.setFloor(floor)
	l.log.Info("calibrated", "noise_floor", floor, "threshold", l.Threshold(), "chunks", len(levels))
	return floor, nil
}

// Threshold returns the effective speech threshold.
func (l *Listener) Threshold() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.threshold
}

func (l *Listener) setFloor(floor float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.floor = floor
	l.threshold = max(l.cfg.Threshold, l.cfg.NoiseRatio*floor)
}

// trackNoise folds a non-speech level into the floor so the threshold
// follows slow changes in the background.
func (l *Listener) trackNoise(level float64) {
	const damping = 0.15
	l.mu.Lock()
	floor := l.floor
	l.mu.Unlock()
	l.setFloor(floor + damping*(level-floor))
}

// Listen waits up to timeout for speech to begin, records until silence,
// and returns the transcription. It returns ErrNoSpeech when nobody
// spoke and ErrNotUnderstood when the recognizer produced no text.
func (l *Listener) Listen(ctx context.Context, timeout time.Duration) (string, error) {
	if err := l.waitIdle(ctx); err != nil {
		return "", err
	}
	if n := l.src.Drain(); n > 0 {
		l.log.Debug("discarded buffered audio", "chunks", n)
	}

	pcm, err := l.record(ctx, timeout)
	if err != nil {
		return "", err
	}

	cfg := l.src.Config()
	text, err := l.rec.Transcribe(ctx, pcm, audio.PCM16(cfg.SampleRate, cfg.Channels))
	if err != nil {
		return "", fmt.Errorf("stt: transcribe: %w", err)
	}
	if text == "" {
		return "", ErrNotUnderstood
	}
	l.log.Info("heard", "text", text)
	return text, nil
}

func (l *Listener) waitIdle(ctx context.Context) error {
	if l.cfg.Busy == nil {
		return nil
	}
	for l.cfg.Busy() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.cfg.PollInterval):
		}
	}
	return nil
}

// record returns PCM from the first loud chunk through the trailing silence.
func (l *Listener) record(ctx context.Context, timeout time.Duration) ([]byte, error) {
	onsetCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	threshold := l.Threshold()

	var first audioio.AudioChunk
	for {
		chunk, err := l.src.Read(onsetCtx)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				return nil, ErrNoSpeech
			}
			if errors.Is(err, io.EOF) {
				return nil, ErrNoSpeech
			}
			return nil, err
		}
		level := audioio.RMS(chunk.Samples)
		if level >= threshold {
			first = chunk
			break
		}
		l.trackNoise(level)
		threshold = l.Threshold()
	}

	samples := append([]int16(nil), first.Samples...)
	heard := first.Duration()
	var quiet time.Duration

	for heard < l.cfg.MaxPhrase && quiet < l.cfg.Silence {
		chunk, err := l.src.Read(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, err
		}
		samples = append(samples, chunk.Samples...)
		heard += chunk.Duration()
		if audioio.RMS(chunk.Samples) >= threshold {
			quiet = 0
		} else {
			quiet += chunk.Duration()
		}
	}

	l.log.Debug("utterance captured", "duration", heard, "capped", heard >= l.cfg.MaxPhrase)
	return audioio.SamplesToBytes(samples), nil
}
