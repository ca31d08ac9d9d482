package audio

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-pathsense/pkg/audioio"
)

// DefaultChunk is how much audio each sink write carries. Cancellation is
// noticed between chunks.
const DefaultChunk = 20 * time.Millisecond

// Player plays WAV files and PCM buffers to a sink.
type Player struct {
	sink   audioio.Sink
	chunk  time.Duration
	logger *slog.Logger

	// OnPlaybackStart and OnPlaybackEnd bracket every play call.
	OnPlaybackStart func()
	OnPlaybackEnd   func()

	playing atomic.Bool
}

// NewPlayer wraps a started sink.
func NewPlayer(sink audioio.Sink, logger *slog.Logger) *Player {
	if logger == nil {
		logger = slog.Default()
	}
	return &Player{
		sink:   sink,
		chunk:  DefaultChunk,
		logger: logger.With("component", "audio.player"),
	}
}

// SetChunk changes the write granularity.
func (p *Player) SetChunk(d time.Duration) {
	if d > 0 {
		p.chunk = d
	}
}

// PlayFile plays a WAV file. It returns ctx.Err() if cancelled.
func (p *Player) PlayFile(ctx context.Context, path string) error {
	fh, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("audio: open %s: %w", path, err)
	}
	defer fh.Close()

	f, pcm, err := ReadWAV(fh)
	if err != nil {
		return fmt.Errorf("audio: %s: %w", path, err)
	}
	return p.PlayPCM(ctx, pcm, f)
}

// PlayPCM plays 16-bit PCM. On cancellation the sink is cleared so no
// queued audio outlives the call.
func (p *Player) PlayPCM(ctx context.Context, pcm []byte, f Format) error {
	if f.BitsPerSample != 16 {
		return fmt.Errorf("audio: unsupported bit depth %d", f.BitsPerSample)
	}
	if len(pcm) == 0 {
		return nil
	}

	p.playing.Store(true)
	if p.OnPlaybackStart != nil {
		p.OnPlaybackStart()
	}
	defer func() {
		p.playing.Store(false)
		if p.OnPlaybackEnd != nil {
			p.OnPlaybackEnd()
		}
	}()

	step := int(p.chunk.Seconds()*float64(f.SampleRate)) * f.BlockAlign()
	if step <= 0 {
		step = f.BlockAlign()
	}

	start := time.Now()
	for off := 0; off < len(pcm); off += step {
		if err := ctx.Err(); err != nil {
			p.sink.Clear()
			return err
		}
		end := min(off+step, len(pcm))
		chunk := audioio.ChunkFromBytes(pcm[off:end], f.SampleRate, f.Channels)
		if err := p.sink.Write(ctx, chunk); err != nil {
			p.sink.Clear()
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("audio: sink write: %w", err)
		}
	}

	p.logger.Debug("playback finished", "bytes", len(pcm), "elapsed", time.Since(start))
	return nil
}

// IsPlaying reports whether a play call is in progress.
func (p *Player) IsPlaying() bool {
	return p.playing.Load()
}
