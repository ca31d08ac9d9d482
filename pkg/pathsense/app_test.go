package pathsense

import (
	"context"
	"errors"
	"image"
	"io"
	"log/slog"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-pathsense/internal/config"
	"github.com/teslashibe/go-pathsense/pkg/alert"
	"github.com/teslashibe/go-pathsense/pkg/audioio"
	"github.com/teslashibe/go-pathsense/pkg/detection"
	"github.com/teslashibe/go-pathsense/pkg/frame"
	"github.com/teslashibe/go-pathsense/pkg/inference"
	"github.com/teslashibe/go-pathsense/pkg/stt"
	"github.com/teslashibe/go-pathsense/pkg/tts"
)

type fakeCamera struct {
	reads  atomic.Int64
	closed atomic.Bool
	closes atomic.Int32
}

func (c *fakeCamera) Read() (frame.Frame, error) {
	if c.closed.Load() {
		return frame.Frame{}, frame.ErrClosed
	}
	c.reads.Add(1)
	const w, h = 64, 48
	return frame.Frame{Width: w, Height: h, Data: make([]byte, w*h*frame.Channels)}, nil
}

func (c *fakeCamera) Close() error {
	c.closes.Add(1)
	c.closed.Store(true)
	return nil
}

type harness struct {
	app    *App
	cam    *fakeCamera
	voice  *tts.Mock
	sink   *audioio.MockSink
	mic    *audioio.MockSource
	answer *inference.Mock
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newHarness builds an App around mocks, bypassing device discovery.
func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	cfg.TempRoot = t.TempDir()
	cfg.Secrets = config.Secrets{OpenAIKey: "test"}

	app, err := New(cfg, quietLogger())
	require.NoError(t, err)

	h := &harness{
		app:   app,
		cam:   &fakeCamera{},
		voice: tts.NewMock(),
		sink:  audioio.NewMockSink(audioio.DefaultConfig(), quietLogger()),
	}
	require.NoError(t, h.sink.Start(context.Background()))

	app.cam = h.cam
	app.backend = &detection.MockBackend{Candidates: []detection.Candidate{
		{Label: "chair", Confidence: 0.9, Box: image.Rect(0, 0, 20, 48)},
	}}
	app.sink = h.sink
	app.voice = h.voice

	if cfg.needsMic() {
		h.mic = audioio.NewMockSource(audioio.InputConfig(), quietLogger())
		app.mic = h.mic
		app.recognizer = &stt.MockRecognizer{Texts: []string{"what is in front of me", "stop"}}
	}
	if cfg.Mode == alert.ModeInteractive {
		h.answer = inference.NewMock("A chair is to your left.")
		app.answer = h.answer
	}

	require.NoError(t, app.wire())
	return h
}

func (h *harness) spoken() []string {
	var out []string
	for _, c := range h.voice.Calls() {
		if c.Method == "Stream" {
			out = append(out, c.Text)
		}
	}
	return out
}

func TestApp_AmbientAlertsOncePerCooldown(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Cooldown = time.Hour
	h := newHarness(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.app.Run(ctx) }()

	require.Eventually(t, func() bool { return len(h.spoken()) == 1 }, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return h.app.Engine().Status().Suppressed > 0 }, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	assert.Equal(t, []string{"chair ahead, about 1 meters"}, h.spoken())
	assert.Equal(t, uint64(1), h.app.Engine().Status().Alerts)
	assert.True(t, h.cam.closed.Load(), "camera released when capture stops")
	assert.NotEmpty(t, h.sink.Written())

	h.app.Shutdown()
	assert.Equal(t, int32(1), h.cam.closes.Load(), "camera closed once")
	entries, err := os.ReadDir(h.app.config.TempRoot)
	require.NoError(t, err)
	assert.Empty(t, entries, "speech temp directory removed")
}

func TestApp_CenterTolerance(t *testing.T) {
	// The test chair spans x 0..20 of a 64 px frame: 22 px left of center.
	tests := []struct {
		name      string
		tolerance float64
		want      detection.Direction
	}{
		{"fixed 50 px band", 0, detection.Center},
		{"tenth of the frame", 0.1, detection.Left},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.CenterTolerance = tt.tolerance
			h := newHarness(t, cfg)
			defer h.app.Shutdown()

			dets, err := h.app.detector.Detect(frame.Frame{Width: 64, Height: 48, Data: make([]byte, 64*48*frame.Channels)}, cfg.Confidence)
			require.NoError(t, err)
			require.Len(t, dets, 1)
			assert.Equal(t, tt.want, dets[0].Direction)
		})
	}
}

func TestApp_InteractiveAnswersThenQuits(t *testing.T) {
	cfg := InteractiveConfig()
	h := newHarness(t, cfg)
	defer h.app.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- h.app.Run(ctx) }()

	// Questions start once a frame is available so the scene is not empty.
	require.Eventually(t, func() bool { return h.cam.reads.Load() > 1 }, 2*time.Second, time.Millisecond)
	go func() {
		for ctx.Err() == nil {
			h.mic.PushLevel(8000, 3)
			h.mic.PushLevel(0, 10)
			time.Sleep(50 * time.Millisecond)
		}
	}()

	select {
	case err := <-done:
		assert.NoError(t, err, "a quit word ends Run cleanly")
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after the quit word")
	}

	reqs := h.answer.Requests()
	require.Len(t, reqs, 1)
	assert.Contains(t, reqs[0].Messages[0].Content, `"name":"chair"`)
	assert.Contains(t, reqs[0].Messages[0].Content, "User asked: 'what is in front of me'")
	assert.Equal(t, []string{"A chair is to your left.", alert.ShutdownPhrase}, h.spoken())
}

func TestApp_ShutdownWithoutRunClosesCamera(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.app.Shutdown()
	assert.Equal(t, int32(1), h.cam.closes.Load())
}

func TestApp_RunBeforeInit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Secrets = config.Secrets{OpenAIKey: "test"}
	app, err := New(cfg, quietLogger())
	require.NoError(t, err)
	assert.Error(t, app.Run(context.Background()))
	app.Shutdown()
}

func TestConfigValidate(t *testing.T) {
	valid := func() Config {
		cfg := DefaultConfig()
		cfg.Secrets = config.Secrets{ElevenLabsKey: "el"}
		return cfg
	}

	cfg := valid()
	require.NoError(t, cfg.Validate())

	tests := map[string]func(*Config){
		"no model":             func(c *Config) { c.ModelPath = "" },
		"negative cooldown":    func(c *Config) { c.Cooldown = -time.Second },
		"confidence too high":  func(c *Config) { c.Confidence = 1.2 },
		"no speech credential": func(c *Config) { c.Secrets = config.Secrets{} },
		"interactive needs stt": func(c *Config) {
			c.Mode = alert.ModeInteractive
		},
		"voice commands need stt": func(c *Config) { c.VoiceCommands = true },
		"center band too wide":    func(c *Config) { c.CenterTolerance = 0.5 },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := valid()
			mutate(&cfg)
			err := cfg.Validate()
			var cerr *ConfigError
			assert.True(t, errors.As(err, &cerr), "got %v", err)
		})
	}
}

func TestLoadEnvConfig(t *testing.T) {
	t.Setenv(config.EnvCooldown, "3s")
	t.Setenv(config.EnvConfidence, "0.7")
	t.Setenv(config.EnvModel, "/models/custom.onnx")
	t.Setenv(config.EnvGeminiKey, "gem")
	t.Setenv(config.EnvElevenLabsVoice, "aria")

	cfg := DefaultConfig()
	cfg.LoadEnvConfig()

	assert.Equal(t, 3*time.Second, cfg.Cooldown)
	assert.InDelta(t, 0.7, cfg.Confidence, 1e-9)
	assert.Equal(t, "/models/custom.onnx", cfg.ModelPath)
	assert.Equal(t, "gem", cfg.Secrets.GeminiKey)
	assert.Equal(t, "aria", cfg.Voice)
}

func TestInteractiveConfig(t *testing.T) {
	cfg := InteractiveConfig()
	assert.Equal(t, alert.ModeInteractive, cfg.Mode)
	assert.Equal(t, 640, cfg.Camera.Width)
	assert.Equal(t, 480, cfg.Camera.Height)
	assert.Equal(t, ProbeCamera, cfg.CameraIndex)
}
