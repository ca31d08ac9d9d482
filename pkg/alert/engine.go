package alert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/teslashibe/go-pathsense/pkg/detection"
	"github.com/teslashibe/go-pathsense/pkg/frame"
	"github.com/teslashibe/go-pathsense/pkg/stt"
)

// Frames is the freshest-frame buffer.
type Frames interface {
	TryTakeLatest() (frame.Frame, bool)
	Peek() (frame.Frame, bool)
}

// Detector finds objects in a frame.
type Detector interface {
	Detect(f frame.Frame, threshold float64) ([]detection.Detection, error)
}

// Speaker plays one utterance at a time.
type Speaker interface {
	Speak(text string) <-chan struct{}
	CancelActive() bool
	Active() bool
	WaitIdle(ctx context.Context) error
}

// Listener returns the next spoken utterance.
type Listener interface {
	Listen(ctx context.Context, timeout time.Duration) (string, error)
}

// Answerer answers a question about a scene. It never fails; errors
// become a spoken fallback.
type Answerer interface {
	Ask(ctx context.Context, utterance string, scene Scene) string
}

// Deps are the engine's collaborators. Listener is required in
// interactive mode and optional in ambient mode, where it only listens
// for quit words. Answerer is required in interactive mode.
type Deps struct {
	Frames   Frames
	Detector Detector
	Speaker  Speaker
	Listener Listener
	Answerer Answerer
}

// Status is a snapshot for status reporting.
type Status struct {
	Mode          Mode          `json:"mode"`
	State         State         `json:"state"`
	Speaking      bool          `json:"speaking"`
	Cooldown      time.Duration `json:"cooldown_ns"`
	CooldownLeft  time.Duration `json:"cooldown_left_ns"`
	LastAlert     time.Time     `json:"last_alert"`
	LastAlertText string        `json:"last_alert_text,omitempty"`
	Evaluations   uint64        `json:"evaluations"`
	Alerts        uint64        `json:"alerts"`
	Suppressed    uint64        `json:"suppressed"`
	Queries       uint64        `json:"queries"`
	DetectErrors  uint64        `json:"detect_errors"`
}

// Engine is the alert state machine.
type Engine struct {
	cfg    Config
	deps   Deps
	gate   *Gate
	logger *slog.Logger

	state    atomic.Int32
	quitting atomic.Bool

	// detectMu serializes model inference between the ambient loop and
	// interactive queries.
	detectMu sync.Mutex

	mu            sync.Mutex
	lastDets      []detection.Detection
	lastAlertText string

	evaluations  atomic.Uint64
	alerts       atomic.Uint64
	suppressed   atomic.Uint64
	queries      atomic.Uint64
	detectErrors atomic.Uint64
}

// NewEngine validates cfg and checks that deps cover the mode.
func NewEngine(cfg Config, deps Deps) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Frames == nil || deps.Detector == nil || deps.Speaker == nil {
		return nil, errors.New("alert: frames, detector and speaker are required")
	}
	if cfg.Mode == ModeInteractive && (deps.Listener == nil || deps.Answerer == nil) {
		return nil, errors.New("alert: interactive mode needs a listener and an answerer")
	}

	return &Engine{
		cfg:    cfg,
		deps:   deps,
		gate:   NewGate(cfg.Cooldown),
		logger: cfg.Logger.With("component", "alert.engine", "mode", cfg.Mode.String()),
	}, nil
}

// Run drives the engine until ctx is cancelled (nil) or the user says a
// quit word (ErrQuit).
func (e *Engine) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	switch e.cfg.Mode {
	case ModeInteractive:
		g.Go(func() error { return e.runInteractive(gctx) })
		if e.cfg.AmbientInInteractive {
			g.Go(func() error { return e.runAmbient(gctx) })
		}
	default:
		g.Go(func() error { return e.runAmbient(gctx) })
		if e.deps.Listener != nil {
			g.Go(func() error { return e.runQuitListener(gctx) })
		}
	}

	e.logger.Info("engine started", "cooldown", e.cfg.Cooldown, "confidence", e.cfg.Confidence)
	err := g.Wait()
	e.setState(StateIdle)
	e.logger.Info("engine stopped", "reason", err)
	return err
}

func (e *Engine) runAmbient(ctx context.Context) error {
	lim := rate.NewLimiter(e.cfg.PollRate, 1)
	for {
		if err := lim.Wait(ctx); err != nil {
			return nil
		}
		f, ok := e.deps.Frames.TryTakeLatest()
		if !ok {
			continue
		}
		e.Evaluate(f)
	}
}

// Evaluate runs one ambient cycle on f: detect, pick the closest object
// and announce it unless the cooldown suppresses it. It reports whether
// an alert was dispatched.
func (e *Engine) Evaluate(f frame.Frame) bool {
	e.evaluations.Add(1)
	e.setState(StateEvaluating)
	defer e.setState(StateIdle)

	dets := e.detect(f)
	closest, ok := SelectClosest(dets)
	if !ok {
		e.setState(StateSilent)
		e.emit(newEvent(e.cfg.Now(), EventSilent, ""))
		return false
	}

	text := Compose(closest)
	now := e.cfg.Now()
	dispatched := e.gate.Dispatch(now, func() error {
		if e.quitting.Load() {
			return errQuitting
		}
		e.setState(StateAlerting)
		e.deps.Speaker.Speak(text)
		return nil
	})

	ev := newEvent(now, EventAlert, text)
	ev.Detections = dets
	if !dispatched {
		e.setState(StateSilent)
		e.suppressed.Add(1)
		ev.Kind = EventSuppressed
		e.emit(ev)
		return false
	}

	e.alerts.Add(1)
	e.mu.Lock()
	e.lastAlertText = text
	e.mu.Unlock()
	e.logger.Info("alert", "text", text, "direction", closest.Direction, "confidence", closest.Confidence)
	e.emit(ev)
	return true
}

var errQuitting = errors.New("alert: shutting down")

func (e *Engine) runInteractive(ctx context.Context) error {
	for {
		if err := e.deps.Speaker.WaitIdle(ctx); err != nil {
			return nil
		}

		utterance, err := e.deps.Listener.Listen(ctx, e.cfg.ListenTimeout)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			e.listenFailed(ctx, err)
			continue
		}

		if IsQuit(utterance) {
			return e.quit(ctx)
		}
		e.Answer(ctx, utterance)
	}
}

// runQuitListener only reacts to quit words.
func (e *Engine) runQuitListener(ctx context.Context) error {
	for {
		utterance, err := e.deps.Listener.Listen(ctx, e.cfg.ListenTimeout)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			e.listenFailed(ctx, err)
			continue
		}
		if IsQuit(utterance) {
			return e.quit(ctx)
		}
		e.logger.Debug("ignoring utterance", "text", utterance)
	}
}

func (e *Engine) listenFailed(ctx context.Context, err error) {
	if errors.Is(err, stt.ErrNoSpeech) || errors.Is(err, stt.ErrNotUnderstood) {
		e.logger.Debug("nothing heard", "reason", err)
		return
	}
	e.logger.Warn("listen failed", "error", err)
	e.emitError(err)

	// Back off so a broken microphone does not spin the loop.
	select {
	case <-ctx.Done():
	case <-time.After(250 * time.Millisecond):
	}
}

// Answer describes the latest frame to the answer model and speaks its
// reply. The frame is peeked, not consumed; with no frame yet the scene
// is empty.
func (e *Engine) Answer(ctx context.Context, utterance string) string {
	e.queries.Add(1)
	e.emit(newEvent(e.cfg.Now(), EventQuery, utterance))
	e.logger.Info("question", "text", utterance)

	e.setState(StateEvaluating)
	defer e.setState(StateIdle)

	var (
		dets  []detection.Detection
		width int
	)
	if f, ok := e.deps.Frames.Peek(); ok {
		dets = e.detect(f)
		width = f.Width
	}
	scene := NewScene(dets, width, e.cfg.ScenePolicy)

	e.setState(StateAlerting)
	reply := e.deps.Answerer.Ask(ctx, utterance, scene)

	ev := newEvent(e.cfg.Now(), EventAnswer, reply)
	ev.Detections = dets
	e.emit(ev)

	if ctx.Err() == nil && !e.quitting.Load() {
		e.deps.Speaker.Speak(reply)
	}
	return reply
}

// quit silences any utterance, says goodbye and waits for it to finish,
// bounded by QuitTimeout.
func (e *Engine) quit(ctx context.Context) error {
	e.quitting.Store(true)
	e.logger.Info("quit requested")

	e.deps.Speaker.CancelActive()
	done := e.deps.Speaker.Speak(ShutdownPhrase)

	t := time.NewTimer(e.cfg.QuitTimeout)
	defer t.Stop()
	select {
	case <-done:
	case <-t.C:
		e.logger.Warn("shutdown phrase timed out")
	case <-ctx.Done():
	}
	return ErrQuit
}

// detect runs the detector; failures count as an empty frame.
func (e *Engine) detect(f frame.Frame) []detection.Detection {
	e.detectMu.Lock()
	dets, err := e.deps.Detector.Detect(f, e.cfg.Confidence)
	e.detectMu.Unlock()

	if err != nil {
		e.detectErrors.Add(1)
		e.logger.Warn("detection failed", "seq", f.Seq, "error", err)
		e.emitError(fmt.Errorf("detect frame %d: %w", f.Seq, err))
		dets = nil
	}

	e.mu.Lock()
	e.lastDets = dets
	e.mu.Unlock()
	return dets
}

func (e *Engine) emitError(err error) {
	ev := newEvent(e.cfg.Now(), EventError, "")
	ev.Error = err.Error()
	e.emit(ev)
}

func (e *Engine) emit(ev Event) {
	if e.cfg.Observer != nil {
		e.cfg.Observer(ev)
	}
}

func (e *Engine) setState(s State) {
	e.state.Store(int32(s))
}

// State returns the current state.
func (e *Engine) State() State {
	return State(e.state.Load())
}

// Mode returns the configured mode.
func (e *Engine) Mode() Mode {
	return e.cfg.Mode
}

// LastDetections returns the detections of the most recent evaluation.
func (e *Engine) LastDetections() []detection.Detection {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]detection.Detection(nil), e.lastDets...)
}

// Status returns a snapshot of engine state and counters.
func (e *Engine) Status() Status {
	now := e.cfg.Now()
	e.mu.Lock()
	text := e.lastAlertText
	e.mu.Unlock()

	return Status{
		Mode:          e.cfg.Mode,
		State:         e.State(),
		Speaking:      e.deps.Speaker.Active(),
		Cooldown:      e.gate.Cooldown(),
		CooldownLeft:  e.gate.Remaining(now),
		LastAlert:     e.gate.Last(),
		LastAlertText: text,
		Evaluations:   e.evaluations.Load(),
		Alerts:        e.alerts.Load(),
		Suppressed:    e.suppressed.Load(),
		Queries:       e.queries.Load(),
		DetectErrors:  e.detectErrors.Load(),
	}
}
