// Package audioio captures microphone audio and plays PCM to speakers.
//
// Two backends exist:
//   - PortAudio, for real devices selected by index
//   - Mock, for tests and machines without audio hardware
package audioio

import (
	"fmt"
	"time"
)

// Backend names an audio implementation.
type Backend string

const (
	BackendAuto      Backend = "auto"
	BackendPortAudio Backend = "portaudio"
	BackendMock      Backend = "mock"
)

// DefaultDevice selects the host's default device.
const DefaultDevice = -1

// Config describes one audio stream.
type Config struct {
	Backend        Backend       `json:"backend"`
	SampleRate     int           `json:"sample_rate"`
	Channels       int           `json:"channels"`
	BufferDuration time.Duration `json:"buffer_duration"`

	// Device is a PortAudio device index, or DefaultDevice.
	Device int `json:"device"`
}

// DefaultConfig suits TTS playback: 24kHz mono in 20ms buffers.
func DefaultConfig() Config {
	return Config{
		Backend:        BackendAuto,
		SampleRate:     24000,
		Channels:       1,
		BufferDuration: 20 * time.Millisecond,
		Device:         DefaultDevice,
	}
}

// InputConfig suits speech recognition: 16kHz mono in 100ms buffers.
func InputConfig() Config {
	cfg := DefaultConfig()
	cfg.SampleRate = 16000
	cfg.BufferDuration = 100 * time.Millisecond
	return cfg
}

func (c *Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %d", c.SampleRate)
	}
	if c.Channels <= 0 {
		return fmt.Errorf("channels must be positive, got %d", c.Channels)
	}
	if c.BufferDuration <= 0 {
		return fmt.Errorf("buffer_duration must be positive, got %v", c.BufferDuration)
	}
	if c.Device < DefaultDevice {
		return fmt.Errorf("device index must be >= -1, got %d", c.Device)
	}
	return nil
}

// BufferSize is the number of frames per buffer.
func (c *Config) BufferSize() int {
	return int(float64(c.SampleRate) * c.BufferDuration.Seconds())
}

// BufferBytes is the PCM16 size of one buffer.
func (c *Config) BufferBytes() int {
	return c.BufferSize() * c.Channels * 2
}
