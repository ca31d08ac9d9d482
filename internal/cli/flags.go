// Package cli parses the flags shared by the pathsense commands.
package cli

import (
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/teslashibe/go-pathsense/internal/config"
	"github.com/teslashibe/go-pathsense/pkg/audioio"
	"github.com/teslashibe/go-pathsense/pkg/camera"
	"github.com/teslashibe/go-pathsense/pkg/pathsense"
)

// Options are parse results that are not part of pathsense.Config.
type Options struct {
	LogLevel string

	// CameraSet and MicSet report whether --camera and --mic were given.
	CameraSet bool
	MicSet    bool
}

// Parse reads flags from args on top of base. Precedence is flag, then
// environment (optionally loaded from --env-file), then base.
func Parse(name string, base pathsense.Config, args []string, usage io.Writer) (pathsense.Config, Options, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	if usage != nil {
		fs.SetOutput(usage)
	}

	debug := fs.Bool("debug", false, "Enable verbose debug logging")
	model := fs.String("model", base.ModelPath, "YOLOv8 ONNX model path (PATHSENSE_MODEL)")
	cooldown := fs.Duration("cooldown", base.Cooldown, "Minimum time between alerts (PATHSENSE_COOLDOWN)")
	confidence := fs.Float64("confidence", base.Confidence, "Detection confidence threshold (PATHSENSE_CONFIDENCE)")
	centerTol := fs.Float64("center-tolerance", base.CenterTolerance, "Straight-ahead band as a fraction of frame width, 0 for a fixed 50 px")
	statusAddr := fs.String("status-addr", "", "Serve status, metrics and events on this address (PATHSENSE_STATUS_ADDR)")
	envFile := fs.String("env-file", "", "Load environment variables from this dotenv file")
	cam := fs.Int("camera", base.CameraIndex, "Camera index, -1 probes indices 0..4")
	resolution := fs.String("resolution", "", "Capture resolution preset: "+strings.Join(camera.PresetNames(), ", "))
	mic := fs.Int("mic", base.MicDevice, "Microphone device index, -1 for the default input")
	voice := fs.String("voice", "", "ElevenLabs voice preset or ID (ELEVENLABS_VOICE_ID)")
	voiceCmds := fs.Bool("voice-commands", base.VoiceCommands, "Listen for exit/quit/stop in simple mode")
	ambient := fs.Bool("ambient", base.AmbientInInteractive, "Keep obstacle alerts running in interactive mode")
	answerModel := fs.String("answer-model", base.AnswerModel, "Gemini model for questions")
	backend := fs.String("audio", string(base.AudioBackend), "Audio backend: auto, portaudio, mock")

	if err := fs.Parse(args); err != nil {
		return base, Options{}, err
	}
	if *cam < pathsense.ProbeCamera {
		return base, Options{}, fmt.Errorf("invalid camera index %d", *cam)
	}

	var preset *camera.Config
	if *resolution != "" {
		if preset = camera.GetPreset(*resolution); preset == nil {
			return base, Options{}, fmt.Errorf("unknown resolution %q", *resolution)
		}
	}

	if *envFile != "" {
		if err := config.LoadEnvFile(*envFile); err != nil {
			return base, Options{}, err
		}
	}

	cfg := base
	cfg.LoadEnvConfig()

	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if set["model"] {
		cfg.ModelPath = *model
	}
	if set["cooldown"] {
		cfg.Cooldown = *cooldown
	}
	if set["confidence"] {
		cfg.Confidence = *confidence
	}
	if set["center-tolerance"] {
		cfg.CenterTolerance = *centerTol
	}
	if set["status-addr"] {
		cfg.StatusAddr = *statusAddr
	}
	if set["voice"] {
		cfg.Voice = *voice
	}
	if preset != nil {
		cfg.Camera = *preset
	}
	cfg.CameraIndex = *cam
	cfg.MicDevice = *mic
	cfg.VoiceCommands = *voiceCmds
	cfg.AmbientInInteractive = *ambient
	cfg.AnswerModel = *answerModel
	cfg.AudioBackend = audioio.Backend(*backend)
	cfg.Debug = *debug

	opts := Options{
		LogLevel:  config.String(config.EnvLogLevel, "info"),
		CameraSet: set["camera"],
		MicSet:    set["mic"],
	}
	if cfg.Debug {
		opts.LogLevel = "debug"
	}
	return cfg, opts, nil
}
