package speech

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-pathsense/pkg/audio"
	"github.com/teslashibe/go-pathsense/pkg/tts"
)

// Stats counts finished sessions by outcome.
type Stats struct {
	Spoken      int64 `json:"spoken"`
	Interrupted int64 `json:"interrupted"`
	Failed      int64 `json:"failed"`
}

// Manager synthesizes and plays utterances, at most one at a time.
type Manager struct {
	tts    tts.Provider
	player *audio.Player
	cfg    Config
	dir    string
	logger *slog.Logger

	ctx  context.Context
	stop context.CancelFunc

	mu     sync.Mutex
	active *Session
	closed bool

	spoken      atomic.Int64
	interrupted atomic.Int64
	failed      atomic.Int64
}

// NewManager creates a manager with its own temp directory for audio files.
func NewManager(provider tts.Provider, player *audio.Player, cfg Config) (*Manager, error) {
	cfg.setDefaults()

	dir, err := os.MkdirTemp(cfg.TempRoot, "pathsense-speech-")
	if err != nil {
		return nil, fmt.Errorf("speech: create temp dir: %w", err)
	}

	ctx, stop := context.WithCancel(context.Background())
	return &Manager{
		tts:    provider,
		player: player,
		cfg:    cfg,
		dir:    dir,
		logger: cfg.Logger.With("component", "speech.manager"),
		ctx:    ctx,
		stop:   stop,
	}, nil
}

// Speak stops any active utterance, waits for it to end, then starts text
// in the background. The returned channel closes when text has finished
// playing, was interrupted, or failed to synthesize.
func (m *Manager) Speak(text string) <-chan struct{} {
	return m.Start(text).Done()
}

// Start is Speak returning the Session itself.
func (m *Manager) Start(text string) *Session {
	text = strings.TrimSpace(text)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return closedSession(text)
	}
	m.cancelLocked()

	ctx, cancel := context.WithCancel(m.ctx)
	s := &Session{
		ID:      uuid.NewString(),
		Text:    text,
		Started: time.Now(),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	m.active = s
	go m.run(ctx, s)
	return s
}

// CancelActive interrupts the active utterance, if any, and returns once
// it has stopped. It reports whether a session was interrupted.
func (m *Manager) CancelActive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancelLocked()
}

func (m *Manager) cancelLocked() bool {
	s := m.active
	if s == nil || s.finished() {
		return false
	}

	start := time.Now()
	s.cancel()

	t := time.NewTimer(m.cfg.CancelBound)
	defer t.Stop()
	select {
	case <-s.done:
	case <-t.C:
		m.logger.Warn("session slow to stop", "session", s.ID, "bound", m.cfg.CancelBound)
		<-s.done
	}

	m.logger.Debug("session interrupted", "session", s.ID, "took", time.Since(start))
	return true
}

// Active reports whether an utterance is being synthesized or played.
func (m *Manager) Active() bool {
	m.mu.Lock()
	s := m.active
	m.mu.Unlock()
	return s != nil && !s.finished()
}

// WaitIdle blocks until no utterance is active or ctx is done.
func (m *Manager) WaitIdle(ctx context.Context) error {
	for {
		m.mu.Lock()
		s := m.active
		m.mu.Unlock()
		if s == nil || s.finished() {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.done:
		}
	}
}

// Stats returns outcome counters.
func (m *Manager) Stats() Stats {
	return Stats{
		Spoken:      m.spoken.Load(),
		Interrupted: m.interrupted.Load(),
		Failed:      m.failed.Load(),
	}
}

// Close interrupts the active utterance and removes the temp directory.
// Later Speak calls return an already-closed channel.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.cancelLocked()
	m.mu.Unlock()

	m.stop()
	if err := os.RemoveAll(m.dir); err != nil {
		return fmt.Errorf("speech: remove temp dir: %w", err)
	}
	return nil
}

func (m *Manager) run(ctx context.Context, s *Session) {
	log := m.logger.With("session", s.ID)
	if m.cfg.OnStart != nil {
		m.cfg.OnStart(s)
	}

	err := m.say(ctx, s)
	switch {
	case err == nil:
		m.spoken.Add(1)
		log.Debug("utterance finished", "elapsed", time.Since(s.Started))
	case errors.Is(err, context.Canceled):
		m.interrupted.Add(1)
	default:
		m.failed.Add(1)
		log.Warn("utterance failed", "error", err)
	}

	s.err = err
	if m.cfg.OnEnd != nil {
		m.cfg.OnEnd(s, err)
	}
	s.cancel()
	close(s.done)
}

// say synthesizes into a WAV file owned by the session, then plays it.
// The file is removed however say returns.
func (m *Manager) say(ctx context.Context, s *Session) error {
	if s.Text == "" {
		return ErrNoAudio
	}

	fh, err := os.CreateTemp(m.dir, "utt-*.wav")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	path := fh.Name()
	defer os.Remove(path)

	n, err := m.synthesize(ctx, s.Text, fh)
	if cerr := fh.Close(); err == nil && cerr != nil {
		err = cerr
	}
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("synthesize: %w", err)
	}
	if n == 0 {
		return ErrNoAudio
	}

	return m.player.PlayFile(ctx, path)
}

func (m *Manager) synthesize(ctx context.Context, text string, fh *os.File) (int, error) {
	stream, err := m.tts.Stream(ctx, text)
	if err != nil {
		return 0, err
	}
	defer stream.Close()

	f := stream.Format()
	if f.SampleRate == 0 || f.Channels == 0 {
		f = tts.PCMFormat(tts.EncodingPCM24)
	}
	w, err := audio.NewWAVWriter(fh, audio.PCM16(f.SampleRate, f.Channels))
	if err != nil {
		return 0, err
	}

	for {
		chunk, err := stream.Read()
		if err != nil {
			return w.Len(), err
		}
		if chunk == nil {
			break
		}
		if _, err := w.Write(chunk); err != nil {
			return w.Len(), err
		}
	}
	return w.Len(), w.Close()
}
