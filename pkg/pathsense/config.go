// Package pathsense wires the camera, detector, alert engine and speech
// output into a running assistant.
package pathsense

import (
	"time"

	"github.com/teslashibe/go-pathsense/internal/config"
	"github.com/teslashibe/go-pathsense/pkg/alert"
	"github.com/teslashibe/go-pathsense/pkg/audioio"
	"github.com/teslashibe/go-pathsense/pkg/camera"
	"github.com/teslashibe/go-pathsense/pkg/detection"
	"github.com/teslashibe/go-pathsense/pkg/inference"
	"github.com/teslashibe/go-pathsense/pkg/tts"
)

// ProbeCamera selects the first working camera.
const ProbeCamera = -1

// Config holds all configuration for the application.
// Flag parsing is done in cmd/*/main.go; this struct is data only.
type Config struct {
	Debug bool

	Mode alert.Mode

	// ModelPath is the YOLOv8 ONNX file.
	ModelPath string

	Cooldown   time.Duration
	Confidence float64

	// CenterTolerance, when above zero, is the straight-ahead band as a
	// fraction of the frame width. Zero uses a fixed 50 px band.
	CenterTolerance float64

	// CameraIndex selects a device, or ProbeCamera.
	CameraIndex int
	Camera      camera.Config

	// MicDevice and SpeakerDevice are PortAudio indices.
	MicDevice     int
	SpeakerDevice int
	AudioBackend  audioio.Backend

	// VoiceCommands enables the quit-word listener in ambient mode.
	VoiceCommands bool

	// AmbientInInteractive keeps obstacle alerts running between questions.
	AmbientInInteractive bool

	// AnswerModel answers questions; FallbackModel is tried when it fails.
	AnswerModel   string
	FallbackModel string

	Voice string

	// StatusAddr enables the status server when set, e.g. "127.0.0.1:8088".
	StatusAddr string

	// TempRoot holds the speech temp directory. Empty means os.TempDir().
	TempRoot string

	Secrets config.Secrets
}

// DefaultConfig returns simple-mode defaults.
func DefaultConfig() Config {
	return Config{
		Mode:          alert.ModeAmbient,
		ModelPath:     detection.DefaultYOLOConfig().ModelPath,
		Cooldown:      2 * time.Second,
		Confidence:    detection.DefaultConfidence,
		CameraIndex:   ProbeCamera,
		Camera:        camera.DefaultConfig(),
		MicDevice:     audioio.DefaultDevice,
		SpeakerDevice: audioio.DefaultDevice,
		AudioBackend:  audioio.BackendAuto,
		AnswerModel:   inference.ModelFlashLite,
		FallbackModel: inference.ModelFlash,
		Voice:         tts.DefaultElevenLabsVoice,
	}
}

// InteractiveConfig returns voice-query defaults: VGA capture and a
// microphone.
func InteractiveConfig() Config {
	cfg := DefaultConfig()
	cfg.Mode = alert.ModeInteractive
	cfg.Camera = camera.VGAConfig()
	return cfg
}

// LoadEnvConfig applies environment values. Flags parsed afterwards win.
func (c *Config) LoadEnvConfig() {
	c.Secrets = config.LoadSecrets()
	c.Cooldown = config.Duration(config.EnvCooldown, c.Cooldown)
	c.Confidence = config.Float(config.EnvConfidence, c.Confidence)
	c.ModelPath = config.String(config.EnvModel, c.ModelPath)
	c.StatusAddr = config.String(config.EnvStatusAddr, c.StatusAddr)

	if c.Voice == "" || c.Voice == tts.DefaultElevenLabsVoice {
		c.Voice = config.String(config.EnvElevenLabsVoice, c.Voice)
	}
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.ModelPath == "" {
		return &ConfigError{Field: "ModelPath", Message: "a YOLO model path is required (--model or PATHSENSE_MODEL)"}
	}
	if c.Cooldown < 0 {
		return &ConfigError{Field: "Cooldown", Message: "cooldown must not be negative"}
	}
	if c.Confidence < 0 || c.Confidence > 1 {
		return &ConfigError{Field: "Confidence", Message: "confidence must be between 0 and 1"}
	}
	if c.CenterTolerance < 0 || c.CenterTolerance >= 0.5 {
		return &ConfigError{Field: "CenterTolerance", Message: "center tolerance must be a fraction of the frame width below 0.5"}
	}
	if c.Secrets.OpenAIKey == "" && c.Secrets.ElevenLabsKey == "" {
		return &ConfigError{Field: "Secrets", Message: "OPENAI_API_KEY or ELEVENLABS_API_KEY is required for speech"}
	}
	if c.needsMic() && c.Secrets.OpenAIKey == "" {
		return &ConfigError{Field: "OpenAIKey", Message: "OPENAI_API_KEY is required for speech recognition"}
	}
	if c.Mode == alert.ModeInteractive && c.AnswerModel == "" {
		return &ConfigError{Field: "AnswerModel", Message: "an answer model is required in interactive mode"}
	}
	return nil
}

func (c *Config) needsMic() bool {
	return c.Mode == alert.ModeInteractive || c.VoiceCommands
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Message
}
