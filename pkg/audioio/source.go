package audioio

import (
	"context"
	"io"
	"time"
)

// AudioChunk is a block of PCM16 samples.
type AudioChunk struct {
	Samples    []int16
	SampleRate int
	Channels   int
}

// Bytes returns the samples as little-endian PCM16.
func (c *AudioChunk) Bytes() []byte {
	return SamplesToBytes(c.Samples)
}

// ChunkFromBytes builds a chunk from little-endian PCM16.
func ChunkFromBytes(data []byte, sampleRate, channels int) AudioChunk {
	return AudioChunk{
		Samples:    BytesToSamples(data),
		SampleRate: sampleRate,
		Channels:   channels,
	}
}

// Duration returns the playback time of the chunk.
func (c *AudioChunk) Duration() time.Duration {
	if c.SampleRate == 0 || c.Channels == 0 {
		return 0
	}
	return time.Duration(len(c.Samples)) * time.Second / time.Duration(c.SampleRate*c.Channels)
}

// Source captures audio from an input device.
type Source interface {
	// Start begins capture. Chunks arrive through Read.
	Start(ctx context.Context) error

	// Stop halts capture. It may be called more than once.
	Stop() error

	// Read blocks for the next chunk. It returns io.EOF once stopped.
	Read(ctx context.Context) (AudioChunk, error)

	// Drain discards every buffered chunk and returns how many were dropped.
	Drain() int

	Config() Config
	Name() string
	io.Closer
}

// SourceStats counts capture activity.
type SourceStats struct {
	ChunksRead int64  `json:"chunks_read"`
	Overruns   int64  `json:"overruns"`
	Running    bool   `json:"running"`
	Backend    string `json:"backend"`
}
