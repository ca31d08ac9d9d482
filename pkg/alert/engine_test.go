package alert

import (
	"context"
	"errors"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-pathsense/pkg/detection"
	"github.com/teslashibe/go-pathsense/pkg/frame"
	"github.com/teslashibe/go-pathsense/pkg/inference"
	"github.com/teslashibe/go-pathsense/pkg/stt"
)

// fakeSpeaker records utterances; playback finishes immediately.
type fakeSpeaker struct {
	mu       sync.Mutex
	texts    []string
	cancels  int
	blocking bool
}

func (s *fakeSpeaker) Speak(text string) <-chan struct{} {
	s.mu.Lock()
	s.texts = append(s.texts, text)
	s.mu.Unlock()

	done := make(chan struct{})
	if !s.blocking {
		close(done)
	}
	return done
}

func (s *fakeSpeaker) CancelActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancels++
	return true
}

func (s *fakeSpeaker) Active() bool                       { return false }
func (s *fakeSpeaker) WaitIdle(ctx context.Context) error { return ctx.Err() }

func (s *fakeSpeaker) Texts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.texts...)
}

// scriptedListener returns utterances in order, then waits for ctx.
type scriptedListener struct {
	mu    sync.Mutex
	lines []string
	errs  []error
}

func (l *scriptedListener) Listen(ctx context.Context, timeout time.Duration) (string, error) {
	l.mu.Lock()
	if len(l.errs) > 0 {
		err := l.errs[0]
		l.errs = l.errs[1:]
		l.mu.Unlock()
		return "", err
	}
	if len(l.lines) > 0 {
		line := l.lines[0]
		l.lines = l.lines[1:]
		l.mu.Unlock()
		return line, nil
	}
	l.mu.Unlock()

	<-ctx.Done()
	return "", ctx.Err()
}

type answererFunc func(ctx context.Context, utterance string, scene Scene) string

func (f answererFunc) Ask(ctx context.Context, utterance string, scene Scene) string {
	return f(ctx, utterance, scene)
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func testFrame(seq uint64) frame.Frame {
	return frame.Frame{Seq: seq, Width: 640, Height: 480, Data: make([]byte, 640*480*frame.Channels)}
}

type engineHarness struct {
	e       *Engine
	slot    *frame.Slot
	backend *detection.MockBackend
	speaker *fakeSpeaker
	clock   *clock

	mu     sync.Mutex
	events []Event
}

func (h *engineHarness) Kinds() []EventKind {
	h.mu.Lock()
	defer h.mu.Unlock()
	var kinds []EventKind
	for _, ev := range h.events {
		kinds = append(kinds, ev.Kind)
	}
	return kinds
}

func newEngine(t *testing.T, cfg Config, deps Deps) *engineHarness {
	t.Helper()
	h := &engineHarness{
		slot:    frame.NewSlot(),
		backend: &detection.MockBackend{},
		speaker: &fakeSpeaker{},
		clock:   &clock{now: time.Unix(1000, 0)},
	}

	cfg.Now = h.clock.Now
	cfg.Observer = func(ev Event) {
		h.mu.Lock()
		h.events = append(h.events, ev)
		h.mu.Unlock()
	}
	if cfg.Cooldown == 0 {
		cfg.Cooldown = 2 * time.Second
	}
	if cfg.Confidence == 0 {
		cfg.Confidence = 0.5
	}

	if deps.Frames == nil {
		deps.Frames = h.slot
	}
	if deps.Detector == nil {
		deps.Detector = detection.NewDetector(h.backend)
	}
	if deps.Speaker == nil {
		deps.Speaker = h.speaker
	}

	e, err := NewEngine(cfg, deps)
	require.NoError(t, err)
	h.e = e
	return h
}

func TestEvaluate_AlertsClosestObject(t *testing.T) {
	h := newEngine(t, Config{}, Deps{})
	h.backend.Candidates = []detection.Candidate{
		{Label: "bench", Confidence: 0.8, Box: image.Rect(0, 0, 60, 50)},    // 3 m, left
		{Label: "chair", Confidence: 0.9, Box: image.Rect(200, 0, 440, 90)}, // 1 m, center
		{Label: "ghost", Confidence: 0.2, Box: image.Rect(0, 0, 640, 480)},  // below threshold
	}

	assert.True(t, h.e.Evaluate(testFrame(1)))
	assert.Equal(t, []string{"chair ahead, about 1 meters"}, h.speaker.Texts())
	assert.Equal(t, []EventKind{EventAlert}, h.Kinds())
	assert.Len(t, h.e.LastDetections(), 2)
	assert.Equal(t, StateIdle, h.e.State())

	st := h.e.Status()
	assert.Equal(t, uint64(1), st.Alerts)
	assert.Equal(t, "chair ahead, about 1 meters", st.LastAlertText)
	assert.Equal(t, h.clock.Now(), st.LastAlert)
}

func TestEvaluate_Cooldown(t *testing.T) {
	h := newEngine(t, Config{Cooldown: 2 * time.Second}, Deps{})
	h.backend.Candidates = []detection.Candidate{
		{Label: "person", Confidence: 0.9, Box: image.Rect(0, 0, 400, 480)},
	}

	assert.True(t, h.e.Evaluate(testFrame(1)))
	h.clock.Advance(time.Second)
	assert.False(t, h.e.Evaluate(testFrame(2)))
	h.clock.Advance(999 * time.Millisecond)
	assert.False(t, h.e.Evaluate(testFrame(3)))
	h.clock.Advance(time.Millisecond)
	assert.True(t, h.e.Evaluate(testFrame(4)))

	assert.Len(t, h.speaker.Texts(), 2)
	assert.Equal(t, []EventKind{EventAlert, EventSuppressed, EventSuppressed, EventAlert}, h.Kinds())
	assert.Equal(t, uint64(2), h.e.Status().Suppressed)
}

func TestEvaluate_EmptyFrameIsSilent(t *testing.T) {
	h := newEngine(t, Config{}, Deps{})

	assert.False(t, h.e.Evaluate(testFrame(1)))
	assert.Empty(t, h.speaker.Texts())
	assert.True(t, h.e.Status().LastAlert.IsZero(), "cooldown state untouched")
	assert.Equal(t, []EventKind{EventSilent}, h.Kinds())
}

func TestEvaluate_DetectorErrorIsAbsorbed(t *testing.T) {
	h := newEngine(t, Config{}, Deps{})
	h.backend.InferFunc = func(frame.Frame) ([]detection.Candidate, error) {
		return nil, errors.New("cuda out of memory")
	}

	assert.NotPanics(t, func() { h.e.Evaluate(testFrame(1)) })
	assert.Empty(t, h.speaker.Texts())
	assert.Equal(t, []EventKind{EventError, EventSilent}, h.Kinds())
	assert.Equal(t, uint64(1), h.e.Status().DetectErrors)

	// The next frame is evaluated normally.
	h.backend.InferFunc = nil
	h.backend.Candidates = []detection.Candidate{{Label: "door", Confidence: 0.7, Box: image.Rect(0, 0, 100, 10)}}
	assert.True(t, h.e.Evaluate(testFrame(2)))
}

func TestRun_AmbientConsumesFreshestFrame(t *testing.T) {
	h := newEngine(t, Config{}, Deps{})
	h.backend.Candidates = []detection.Candidate{{Label: "car", Confidence: 0.9, Box: image.Rect(0, 0, 330, 10)}}

	h.slot.Publish(testFrame(1))
	h.slot.Publish(testFrame(2))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.e.Run(ctx) }()

	require.Eventually(t, func() bool { return len(h.speaker.Texts()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "car ahead, about 0.5 meters", h.speaker.Texts()[0])
	assert.Equal(t, 1, h.backend.Calls(), "the older frame was never evaluated")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run ignored cancellation")
	}
}

func TestRun_AmbientQuitWord(t *testing.T) {
	listener := &scriptedListener{lines: []string{"hello", "Stop."}}
	h := newEngine(t, Config{}, Deps{Listener: listener})

	err := h.e.Run(context.Background())
	assert.ErrorIs(t, err, ErrQuit)
	assert.Equal(t, []string{ShutdownPhrase}, h.speaker.Texts())
}

func TestRun_InteractiveAnswersThenQuits(t *testing.T) {
	var scenes []Scene
	answerer := answererFunc(func(ctx context.Context, utterance string, scene Scene) string {
		scenes = append(scenes, scene)
		return "There is a chair to your left."
	})
	listener := &scriptedListener{
		errs:  []error{stt.ErrNoSpeech, stt.ErrNotUnderstood},
		lines: []string{"what is around me?", "exit"},
	}

	h := newEngine(t, Config{Mode: ModeInteractive}, Deps{Listener: listener, Answerer: answerer})
	h.backend.Candidates = []detection.Candidate{
		{Label: "Chair", Confidence: 0.9, Box: image.Rect(0, 0, 100, 100)},
	}
	h.slot.Publish(testFrame(7))

	err := h.e.Run(context.Background())
	assert.ErrorIs(t, err, ErrQuit)

	assert.Equal(t, []string{"There is a chair to your left.", ShutdownPhrase}, h.speaker.Texts())
	assert.Equal(t, 1, h.speaker.cancels)
	require.Len(t, scenes, 1)
	assert.Equal(t, Scene{{Name: "chair", Direction: "to your left", Distance: 10}}, scenes[0])

	// The question peeked the frame without consuming it.
	_, ok := h.slot.TryTakeLatest()
	assert.True(t, ok)
	assert.Equal(t, []EventKind{EventQuery, EventAnswer}, h.Kinds())
}

func TestAnswer_NoFrameMeansEmptyScene(t *testing.T) {
	mock := inference.NewMock("I don't see anything yet.")
	h := newEngine(t, Config{Mode: ModeInteractive}, Deps{
		Listener: &scriptedListener{},
		Answerer: NewQueryClient(mock, nil),
	})

	reply := h.e.Answer(context.Background(), "is the path clear?")
	assert.Equal(t, "I don't see anything yet.", reply)
	assert.Zero(t, h.backend.Calls())

	reqs := mock.Requests()
	require.Len(t, reqs, 1)
	assert.Contains(t, reqs[0].Messages[0].Content, "Detected objects JSON: []")
}

func TestAnswer_FailureSpeaksFallback(t *testing.T) {
	h := newEngine(t, Config{Mode: ModeInteractive}, Deps{
		Listener: &scriptedListener{},
		Answerer: NewQueryClient(inference.WithError(errors.New("dial tcp: no route to host")), nil),
	})
	h.slot.Publish(testFrame(1))

	h.e.Answer(context.Background(), "where am I?")
	assert.Equal(t, []string{FallbackAnswer}, h.speaker.Texts())
}

func TestQuit_BoundedWait(t *testing.T) {
	h := newEngine(t, Config{QuitTimeout: 50 * time.Millisecond}, Deps{
		Listener: &scriptedListener{lines: []string{"quit"}},
	})
	h.speaker.blocking = true

	start := time.Now()
	err := h.e.Run(context.Background())
	assert.ErrorIs(t, err, ErrQuit)
	assert.Less(t, time.Since(start), time.Second)
}

func TestRun_AmbientSilencedAfterQuit(t *testing.T) {
	h := newEngine(t, Config{}, Deps{})
	h.backend.Candidates = []detection.Candidate{{Label: "pole", Confidence: 0.9, Box: image.Rect(0, 0, 500, 10)}}

	h.e.quitting.Store(true)
	assert.False(t, h.e.Evaluate(testFrame(1)))
	assert.Empty(t, h.speaker.Texts())
	assert.True(t, h.e.Status().LastAlert.IsZero())
}

func TestNewEngine_Validation(t *testing.T) {
	_, err := NewEngine(Config{}, Deps{})
	assert.Error(t, err)

	_, err = NewEngine(Config{Mode: ModeInteractive}, Deps{
		Frames:   frame.NewSlot(),
		Detector: detection.NewDetector(&detection.MockBackend{}),
		Speaker:  &fakeSpeaker{},
	})
	assert.Error(t, err, "interactive mode without a listener")
}
