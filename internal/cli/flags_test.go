package cli

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/teslashibe/go-pathsense/internal/config"
	"github.com/teslashibe/go-pathsense/pkg/audioio"
	"github.com/teslashibe/go-pathsense/pkg/pathsense"
)

func TestParse_Defaults(t *testing.T) {
	t.Setenv(config.EnvCooldown, "")
	t.Setenv(config.EnvLogLevel, "")

	cfg, opts, err := Parse("pathsense", pathsense.DefaultConfig(), nil, io.Discard)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Cooldown != 2*time.Second {
		t.Errorf("Cooldown = %v, want 2s", cfg.Cooldown)
	}
	if cfg.CameraIndex != pathsense.ProbeCamera {
		t.Errorf("CameraIndex = %d, want probe", cfg.CameraIndex)
	}
	if opts.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", opts.LogLevel)
	}
	if opts.CameraSet || opts.MicSet {
		t.Error("no device flags were given")
	}
}

func TestParse_FlagsBeatEnvironment(t *testing.T) {
	t.Setenv(config.EnvCooldown, "5s")
	t.Setenv(config.EnvConfidence, "0.3")

	cfg, opts, err := Parse("pathsense", pathsense.DefaultConfig(), []string{
		"--cooldown", "750ms", "--camera", "2", "--mic", "1", "--audio", "mock", "--debug", "--resolution", "720p",
		"--center-tolerance", "0.1",
	}, io.Discard)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Cooldown != 750*time.Millisecond {
		t.Errorf("Cooldown = %v, want flag value", cfg.Cooldown)
	}
	if cfg.Confidence != 0.3 {
		t.Errorf("Confidence = %v, want env value", cfg.Confidence)
	}
	if cfg.CameraIndex != 2 || cfg.MicDevice != 1 {
		t.Errorf("devices = %d/%d, want 2/1", cfg.CameraIndex, cfg.MicDevice)
	}
	if cfg.Camera.Width != 1280 || cfg.Camera.Height != 720 {
		t.Errorf("Camera = %dx%d, want 720p preset", cfg.Camera.Width, cfg.Camera.Height)
	}
	if cfg.CenterTolerance != 0.1 {
		t.Errorf("CenterTolerance = %v, want 0.1", cfg.CenterTolerance)
	}
	if cfg.AudioBackend != audioio.BackendMock {
		t.Errorf("AudioBackend = %q", cfg.AudioBackend)
	}
	if !opts.CameraSet || !opts.MicSet {
		t.Error("device flags not reported")
	}
	if opts.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", opts.LogLevel)
	}
}

func TestParse_EnvFile(t *testing.T) {
	const key = "PATHSENSE_STATUS_ADDR"
	t.Setenv(key, "")
	os.Unsetenv(key)

	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte(key+"=127.0.0.1:9000\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, _, err := Parse("pathsense", pathsense.DefaultConfig(), []string{"--env-file", path}, io.Discard)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.StatusAddr != "127.0.0.1:9000" {
		t.Errorf("StatusAddr = %q, want value from env file", cfg.StatusAddr)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := map[string][]string{
		"bad camera":   {"--camera", "-3"},
		"unknown flag": {"--fps", "30"},
		"missing file": {"--env-file", "/nonexistent/.env"},
		"bad duration": {"--cooldown", "soon"},
		"bad preset":   {"--resolution", "imax"},
	}
	for name, args := range tests {
		t.Run(name, func(t *testing.T) {
			if _, _, err := Parse("pathsense", pathsense.DefaultConfig(), args, io.Discard); err == nil {
				t.Error("expected error")
			}
		})
	}
}
