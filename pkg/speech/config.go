// Package speech plays synthesized utterances one at a time.
//
// A Manager owns at most one Session. Starting a new utterance cancels the
// active one and waits for it to stop before the new one begins, so two
// utterances never overlap on the speaker.
package speech

import (
	"errors"
	"log/slog"
	"time"
)

var (
	// ErrClosed is reported by sessions requested after Close.
	ErrClosed = errors.New("speech: manager closed")

	// ErrNoAudio is reported when synthesis produced nothing to play.
	ErrNoAudio = errors.New("speech: no audio synthesized")
)

// Config tunes a Manager.
type Config struct {
	// TempRoot is where the manager creates its private temp directory.
	// Empty means os.TempDir().
	TempRoot string

	// CancelBound is how long a cancelled session may take to stop
	// before a warning is logged.
	CancelBound time.Duration

	// OnStart runs when a session begins synthesis. Hooks run on the
	// session goroutine and must not call back into the Manager.
	OnStart func(s *Session)

	// OnEnd runs after a session stopped and its temp file is gone.
	// err is nil for a completed utterance.
	OnEnd func(s *Session, err error)

	Logger *slog.Logger
}

// DefaultConfig returns the standard manager configuration.
func DefaultConfig() Config {
	return Config{
		CancelBound: 150 * time.Millisecond,
		Logger:      slog.Default(),
	}
}

func (c *Config) setDefaults() {
	def := DefaultConfig()
	if c.CancelBound <= 0 {
		c.CancelBound = def.CancelBound
	}
	if c.Logger == nil {
		c.Logger = def.Logger
	}
}
