package audioio

import (
	"context"
	"io"
)

// Sink plays audio to an output device.
type Sink interface {
	Start(ctx context.Context) error

	// Stop halts playback. It may be called more than once.
	Stop() error

	// Write blocks until the chunk has been handed to the device.
	Write(ctx context.Context, chunk AudioChunk) error

	// Clear discards audio queued but not yet played.
	Clear() error

	Config() Config
	Name() string
	io.Closer
}
