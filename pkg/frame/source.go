package frame

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

// SourceConfig tunes the capture loop.
type SourceConfig struct {
	// Interval is the pause between reads. Zero reads back to back.
	Interval time.Duration

	// MaxConsecutiveFailures ends the loop after this many transient
	// failures in a row. Zero retries transient failures forever.
	// Non-transient errors always end the loop.
	MaxConsecutiveFailures int

	// OnFrame, if set, is called after each publish.
	OnFrame func(f Frame, dropped bool)

	Logger *slog.Logger
}

// DefaultSourceConfig returns the capture loop defaults.
func DefaultSourceConfig() SourceConfig {
	return SourceConfig{
		Interval:               10 * time.Millisecond,
		MaxConsecutiveFailures: 30,
		Logger:                 slog.Default(),
	}
}

// Source owns a camera and keeps a Slot filled with its freshest frame.
type Source struct {
	cam  Camera
	slot *Slot
	cfg  SourceConfig
	log  *slog.Logger

	seq      atomic.Uint64
	failures atomic.Uint64
	running  atomic.Bool
}

// NewSource creates a capture loop reading cam into slot.
func NewSource(cam Camera, slot *Slot, cfg SourceConfig) *Source {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Source{
		cam:  cam,
		slot: slot,
		cfg:  cfg,
		log:  cfg.Logger.With("component", "frame.source"),
	}
}

// Slot returns the buffer this source publishes into.
func (s *Source) Slot() *Slot {
	return s.slot
}

// TryTakeLatest consumes the freshest frame, if any.
func (s *Source) TryTakeLatest() (Frame, bool) {
	return s.slot.TryTakeLatest()
}

// Peek returns the freshest frame without consuming it.
func (s *Source) Peek() (Frame, bool) {
	return s.slot.Peek()
}

// Running reports whether Run is active.
func (s *Source) Running() bool {
	return s.running.Load()
}

// Failures returns the total number of failed reads.
func (s *Source) Failures() uint64 {
	return s.failures.Load()
}

// Run captures until ctx is cancelled or the camera fails hard.
// The camera is closed when Run returns. A cancelled context is not an error.
func (s *Source) Run(ctx context.Context) error {
	s.running.Store(true)
	defer s.running.Store(false)
	defer func() {
		if err := s.cam.Close(); err != nil {
			s.log.Warn("camera close failed", "error", err)
		}
		s.log.Info("camera released")
	}()

	consecutive := 0
	for {
		if ctx.Err() != nil {
			return nil
		}

		f, err := s.cam.Read()
		if err != nil {
			s.failures.Add(1)
			if !errors.Is(err, ErrNoFrame) {
				return fmt.Errorf("capture: %w", err)
			}
			consecutive++
			if s.cfg.MaxConsecutiveFailures > 0 && consecutive >= s.cfg.MaxConsecutiveFailures {
				return fmt.Errorf("capture: %d consecutive failed reads: %w", consecutive, err)
			}
			s.log.Debug("transient read failure", "consecutive", consecutive, "error", err)
		} else {
			consecutive = 0
			f.Seq = s.seq.Add(1)
			if f.CapturedAt.IsZero() {
				f.CapturedAt = time.Now()
			}
			dropped := s.slot.Publish(f)
			if s.cfg.OnFrame != nil {
				s.cfg.OnFrame(f, dropped)
			}
		}

		if s.cfg.Interval > 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(s.cfg.Interval):
			}
		}
	}
}
