// Package frame provides camera frames, the single-slot freshest-frame
// buffer, and the capture loop that keeps it filled.
package frame

import (
	"errors"
	"time"
)

// Sentinel errors.
var (
	// ErrNoFrame marks a transient read failure: the device is open but
	// produced no frame this time. Cameras wrap it; the capture loop retries.
	ErrNoFrame = errors.New("frame: camera returned no frame")

	// ErrClosed is returned by a closed slot or camera.
	ErrClosed = errors.New("frame: closed")
)

// Frame is one captured image. Data holds packed BGR24 pixels, row-major,
// Width*Height*3 bytes. A Frame is never mutated after it is published.
type Frame struct {
	Seq        uint64
	Width      int
	Height     int
	Data       []byte
	CapturedAt time.Time
}

// Channels is the number of bytes per pixel in Data.
const Channels = 3

// Empty reports whether f carries no pixels.
func (f Frame) Empty() bool {
	return f.Width <= 0 || f.Height <= 0 || len(f.Data) == 0
}

// Valid reports whether Data matches the declared geometry.
func (f Frame) Valid() bool {
	return !f.Empty() && len(f.Data) == f.Width*f.Height*Channels
}

// Age returns how long ago the frame was captured.
func (f Frame) Age() time.Duration {
	if f.CapturedAt.IsZero() {
		return 0
	}
	return time.Since(f.CapturedAt)
}

// Camera is the device collaborator of the capture loop.
type Camera interface {
	// Read blocks until the next frame is available.
	// Errors wrapping ErrNoFrame are transient.
	Read() (Frame, error)

	// Close releases the device.
	Close() error
}
