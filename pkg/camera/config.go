// Package camera opens local capture devices through OpenCV and adapts them
// to the frame.Camera interface.
package camera

import "fmt"

// Config holds the preferred capture settings. Zero values keep the
// device's native setting.
type Config struct {
	Width  int     `json:"width"`  // Preferred frame width in pixels
	Height int     `json:"height"` // Preferred frame height in pixels
	FPS    float64 `json:"fps"`    // Preferred frame rate

	// BufferSize asks the driver to keep at most this many frames queued.
	// 1 keeps reads close to real time.
	BufferSize int `json:"buffer_size"`

	// ProbeCount is how many device indices Probe tries, starting at 0.
	ProbeCount int `json:"probe_count"`
}

// Limits accepted by Validate.
const (
	MaxWidth  = 4096
	MaxHeight = 2160
	MaxFPS    = 120
)

// DefaultConfig keeps the device resolution and probes indices 0..4.
func DefaultConfig() Config {
	return Config{
		BufferSize: 1,
		ProbeCount: 5,
	}
}

// Validate checks that values are within range.
// Returns a list of validation errors, or nil if valid.
func (c *Config) Validate() []string {
	var errs []string

	if c.Width < 0 || c.Width > MaxWidth {
		errs = append(errs, fmt.Sprintf("width must be between 0 and %d", MaxWidth))
	}
	if c.Height < 0 || c.Height > MaxHeight {
		errs = append(errs, fmt.Sprintf("height must be between 0 and %d", MaxHeight))
	}
	if (c.Width == 0) != (c.Height == 0) {
		errs = append(errs, "width and height must be set together")
	}
	if c.FPS < 0 || c.FPS > MaxFPS {
		errs = append(errs, fmt.Sprintf("fps must be between 0 and %d", MaxFPS))
	}
	if c.BufferSize < 0 {
		errs = append(errs, "buffer_size must not be negative")
	}
	if c.ProbeCount < 1 {
		errs = append(errs, "probe_count must be at least 1")
	}

	return errs
}

// HasResolution reports whether a preferred resolution is set.
func (c *Config) HasResolution() bool {
	return c.Width > 0 && c.Height > 0
}
