package pathsense

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/teslashibe/go-pathsense/internal/httpc"
	"github.com/teslashibe/go-pathsense/pkg/alert"
	"github.com/teslashibe/go-pathsense/pkg/audio"
	"github.com/teslashibe/go-pathsense/pkg/audioio"
	"github.com/teslashibe/go-pathsense/pkg/camera"
	"github.com/teslashibe/go-pathsense/pkg/detection"
	"github.com/teslashibe/go-pathsense/pkg/frame"
	"github.com/teslashibe/go-pathsense/pkg/inference"
	"github.com/teslashibe/go-pathsense/pkg/metrics"
	"github.com/teslashibe/go-pathsense/pkg/speech"
	"github.com/teslashibe/go-pathsense/pkg/stt"
	"github.com/teslashibe/go-pathsense/pkg/tts"
	"github.com/teslashibe/go-pathsense/pkg/web"
)

// App is the application orchestrator. It owns every component and its
// lifecycle.
type App struct {
	config Config
	logger *slog.Logger

	// Devices and vendor collaborators, opened by Init.
	cam        frame.Camera
	backend    detection.Backend
	sink       audioio.Sink
	voice      tts.Provider
	mic        audioio.Source
	recognizer stt.Recognizer
	answer     inference.Provider

	// Pipeline, assembled by wire.
	slot     *frame.Slot
	source   *frame.Source
	detector *detection.Detector
	player   *audio.Player
	speech   *speech.Manager
	listener *stt.Listener
	engine   *alert.Engine
	metrics  *metrics.Metrics
	web      *web.Server
}

// New creates an application with the given configuration.
func New(cfg Config, logger *slog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &App{
		config: cfg,
		logger: logger.With("component", "pathsense"),
	}, nil
}

// Init opens devices and collaborators. A missing camera or model is
// fatal. Call Shutdown even when Init fails to release what was opened.
func (a *App) Init(ctx context.Context) error {
	a.logger.Info("initializing", "mode", a.config.Mode, "model", a.config.ModelPath)

	if err := a.initCamera(); err != nil {
		return err
	}
	if err := a.initDetector(); err != nil {
		return fmt.Errorf("detector: %w", err)
	}
	if err := a.initSpeaker(ctx); err != nil {
		return fmt.Errorf("speaker: %w", err)
	}
	if a.config.needsMic() {
		if err := a.initMicrophone(); err != nil {
			return fmt.Errorf("microphone: %w", err)
		}
	}
	if a.config.Mode == alert.ModeInteractive {
		if err := a.initAnswerer(ctx); err != nil {
			return fmt.Errorf("answer model: %w", err)
		}
	}
	return a.wire()
}

func (a *App) initCamera() error {
	var (
		dev *camera.Device
		err error
	)
	if a.config.CameraIndex == ProbeCamera {
		dev, err = camera.Probe(a.config.Camera, a.logger)
	} else {
		dev, err = camera.Open(a.config.CameraIndex, a.config.Camera, a.logger)
	}
	if err != nil {
		return err
	}
	a.logger.Info("camera ready", "index", dev.Index())
	a.cam = dev
	return nil
}

func (a *App) initDetector() error {
	cfg := detection.DefaultYOLOConfig()
	cfg.ModelPath = a.config.ModelPath
	yolo, err := detection.NewYOLO(cfg)
	if err != nil {
		return err
	}
	a.backend = yolo
	return nil
}

// initSpeaker opens the output device and the TTS providers, preferring
// ElevenLabs streaming, then ElevenLabs REST, then OpenAI.
func (a *App) initSpeaker(ctx context.Context) error {
	sinkCfg := audioio.DefaultConfig()
	sinkCfg.Backend = a.config.AudioBackend
	sinkCfg.Device = a.config.SpeakerDevice
	sink, err := audioio.NewSink(sinkCfg, a.logger)
	if err != nil {
		return err
	}
	a.sink = sink
	if err := sink.Start(ctx); err != nil {
		return err
	}

	var providers []tts.Provider
	s := a.config.Secrets
	client := tts.WithHTTPClient(httpc.NewStreamingClient())
	if s.ElevenLabsKey != "" {
		opts := []tts.Option{tts.WithAPIKey(s.ElevenLabsKey), tts.WithVoice(a.config.Voice), tts.WithLogger(a.logger)}
		if p, err := tts.NewElevenLabsWS(opts...); err == nil {
			providers = append(providers, p)
		} else {
			a.logger.Warn("elevenlabs websocket unavailable", "error", err)
		}
		if p, err := tts.NewElevenLabs(append(opts, client)...); err == nil {
			providers = append(providers, p)
		} else {
			a.logger.Warn("elevenlabs unavailable", "error", err)
		}
	}
	if s.OpenAIKey != "" {
		if p, err := tts.NewOpenAI(tts.WithAPIKey(s.OpenAIKey), tts.WithLogger(a.logger), client); err == nil {
			providers = append(providers, p)
		} else {
			a.logger.Warn("openai tts unavailable", "error", err)
		}
	}

	chain, err := tts.NewChainWithLogger(a.logger, providers...)
	if err != nil {
		return err
	}
	a.voice = chain
	return nil
}

func (a *App) initMicrophone() error {
	micCfg := audioio.InputConfig()
	micCfg.Backend = a.config.AudioBackend
	micCfg.Device = a.config.MicDevice
	mic, err := audioio.NewSource(micCfg, a.logger)
	if err != nil {
		return err
	}
	a.mic = mic

	rec, err := stt.NewWhisper(a.config.Secrets.OpenAIKey,
		stt.WithHTTPClient(httpc.NewClient(httpc.DefaultTimeout)),
		stt.WithLogger(a.logger),
	)
	if err != nil {
		return err
	}
	a.recognizer = rec
	return nil
}

// initAnswerer opens the primary answer model and, when configured, a
// fallback model behind it.
func (a *App) initAnswerer(ctx context.Context) error {
	models := []string{a.config.AnswerModel}
	if a.config.FallbackModel != "" && a.config.FallbackModel != a.config.AnswerModel {
		models = append(models, a.config.FallbackModel)
	}

	var providers []inference.Provider
	for _, model := range models {
		opts := []inference.Option{inference.WithModel(model), inference.WithLogger(a.logger)}
		if key := a.config.Secrets.GeminiKey; key != "" {
			opts = append(opts, inference.WithAPIKey(key))
		}
		g, err := inference.NewGemini(ctx, opts...)
		if err != nil {
			return err
		}
		providers = append(providers, g)
	}

	chain, err := inference.NewChainWithLogger(a.logger, providers...)
	if err != nil {
		return err
	}
	a.answer = chain
	return nil
}

// wire assembles the pipeline from the opened collaborators.
func (a *App) wire() error {
	a.metrics = metrics.New()

	a.slot = frame.NewSlot()
	srcCfg := frame.DefaultSourceConfig()
	srcCfg.Logger = a.logger
	a.source = frame.NewSource(a.cam, a.slot, srcCfg)
	a.metrics.WatchSlot(a.slot.Stats)

	var detOpts []detection.Option
	if f := a.config.CenterTolerance; f > 0 {
		detOpts = append(detOpts, detection.WithTolerance(detection.ProportionalTolerance(f)))
	}
	a.detector = detection.NewDetector(a.backend, detOpts...)

	a.player = audio.NewPlayer(a.sink, a.logger)
	mgr, err := speech.NewManager(a.voice, a.player, speech.Config{
		TempRoot: a.config.TempRoot,
		OnEnd:    a.metrics.ObserveSpeech,
		Logger:   a.logger,
	})
	if err != nil {
		return err
	}
	a.speech = mgr
	a.metrics.WatchSpeaking(mgr.Active)

	deps := alert.Deps{
		Frames:   a.source,
		Detector: a.detector,
		Speaker:  a.speech,
	}
	if a.mic != nil && a.recognizer != nil {
		a.listener = stt.NewListener(a.mic, a.recognizer, stt.ListenerConfig{
			Busy:   mgr.Active,
			Logger: a.logger,
		})
		deps.Listener = a.listener
	}
	if a.answer != nil {
		deps.Answerer = alert.NewQueryClient(a.answer, a.logger)
	}

	engCfg := alert.DefaultConfig()
	engCfg.Mode = a.config.Mode
	engCfg.Cooldown = a.config.Cooldown
	engCfg.Confidence = a.config.Confidence
	engCfg.AmbientInInteractive = a.config.AmbientInInteractive
	engCfg.Observer = a.observe
	engCfg.Logger = a.logger

	engine, err := alert.NewEngine(engCfg, deps)
	if err != nil {
		return err
	}
	a.engine = engine

	if a.config.StatusAddr != "" {
		a.web = web.NewServer(a.config.StatusAddr, web.Sources{
			Engine:     engine.Status,
			Detections: engine.LastDetections,
			Frames:     a.slot.Stats,
			Speech:     mgr.Stats,
			Metrics:    a.metrics.Handler(),
		}, a.logger)
	}
	return nil
}

func (a *App) observe(ev alert.Event) {
	a.metrics.Observe(ev)
	if a.web != nil {
		a.web.Publish(ev)
	}
}

// Run starts capture, the engine and the status server. It blocks until
// ctx is cancelled, the user says a quit word, or the camera fails.
func (a *App) Run(ctx context.Context) error {
	if a.engine == nil {
		return errors.New("pathsense: Run called before Init")
	}

	g, gctx := errgroup.WithContext(ctx)

	if a.mic != nil {
		if err := a.mic.Start(gctx); err != nil {
			return fmt.Errorf("microphone: %w", err)
		}
	}

	// Capture owns the camera from here and closes it when it stops.
	a.cam = nil
	g.Go(func() error { return a.source.Run(gctx) })
	if a.listener != nil {
		if _, err := a.listener.Calibrate(gctx, stt.DefaultCalibration); err != nil {
			a.logger.Warn("microphone calibration failed", "error", err)
		}
	}
	g.Go(func() error { return a.engine.Run(gctx) })
	if a.web != nil {
		g.Go(func() error { return a.web.Run(gctx) })
	}

	a.logger.Info("running", "mode", a.config.Mode, "status_addr", a.config.StatusAddr)
	err := g.Wait()
	if errors.Is(err, alert.ErrQuit) {
		a.logger.Info("quit by voice command")
		return nil
	}
	return err
}

// Engine returns the alert engine. It is nil before Init.
func (a *App) Engine() *alert.Engine {
	return a.engine
}

// Shutdown releases every component. It is safe after a failed Init.
func (a *App) Shutdown() {
	a.logger.Info("shutting down")

	if a.speech != nil {
		if err := a.speech.Close(); err != nil {
			a.logger.Warn("speech close", "error", err)
		}
	}
	if a.slot != nil {
		a.slot.Close()
	}
	for _, c := range []struct {
		name string
		c    closer
	}{
		{"microphone", a.mic},
		{"speaker", a.sink},
		{"camera", a.cam},
		{"detector", a.backend},
		{"tts", a.voice},
		{"answer", a.answer},
	} {
		if c.c == nil {
			continue
		}
		if err := c.c.Close(); err != nil {
			a.logger.Warn("close failed", "part", c.name, "error", err)
		}
	}
}

type closer interface{ Close() error }
