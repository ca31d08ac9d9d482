// Package alert decides what the user hears.
//
// In ambient mode the Engine takes the freshest camera frame, finds the
// closest obstacle and announces it, at most once per cooldown. In
// interactive mode it listens for a question, describes the current scene
// to an answer model and speaks the reply.
package alert

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/teslashibe/go-pathsense/pkg/detection"
)

// ErrQuit is returned by Run after the user said a quit word.
var ErrQuit = errors.New("alert: quit requested")

// ShutdownPhrase is spoken before the engine stops on a quit word.
const ShutdownPhrase = "Shutting down."

// Config tunes an Engine.
type Config struct {
	Mode Mode

	// Cooldown is the minimum time between ambient alerts.
	Cooldown time.Duration

	// Confidence is the detection threshold.
	Confidence float64

	// PollRate paces the ambient loop.
	PollRate rate.Limit

	// ListenTimeout bounds the wait for a question to start.
	ListenTimeout time.Duration

	// QuitTimeout bounds how long the shutdown phrase may play.
	QuitTimeout time.Duration

	// AmbientInInteractive also runs ambient alerts in interactive mode.
	AmbientInInteractive bool

	// ScenePolicy estimates distances in scene descriptions.
	ScenePolicy detection.DistancePolicy

	// Observer receives every event. It runs on the engine goroutine.
	Observer func(Event)

	// Now is the clock. Defaults to time.Now.
	Now func() time.Time

	Logger *slog.Logger
}

// DefaultConfig returns ambient-mode defaults.
func DefaultConfig() Config {
	return Config{
		Mode:          ModeAmbient,
		Cooldown:      2 * time.Second,
		Confidence:    detection.DefaultConfidence,
		PollRate:      100,
		ListenTimeout: 5 * time.Second,
		QuitTimeout:   3 * time.Second,
		ScenePolicy:   detection.InverseWidthPolicy{K: detection.DefaultInverseWidthK},
		Now:           time.Now,
		Logger:        slog.Default(),
	}
}

// Validate fills zero fields with defaults and rejects bad values.
func (c *Config) Validate() error {
	def := DefaultConfig()
	if c.Cooldown < 0 {
		return fmt.Errorf("alert: negative cooldown %v", c.Cooldown)
	}
	if c.Confidence < 0 || c.Confidence > 1 {
		return fmt.Errorf("alert: confidence %.2f outside [0,1]", c.Confidence)
	}
	if c.PollRate <= 0 {
		c.PollRate = def.PollRate
	}
	if c.ListenTimeout <= 0 {
		c.ListenTimeout = def.ListenTimeout
	}
	if c.QuitTimeout <= 0 {
		c.QuitTimeout = def.QuitTimeout
	}
	if c.ScenePolicy == nil {
		c.ScenePolicy = def.ScenePolicy
	}
	if c.Now == nil {
		c.Now = def.Now
	}
	if c.Logger == nil {
		c.Logger = def.Logger
	}
	return nil
}
