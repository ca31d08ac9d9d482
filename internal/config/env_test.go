package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDuration(t *testing.T) {
	tests := []struct {
		name string
		val  string
		want time.Duration
	}{
		{"unset", "", 2 * time.Second},
		{"go duration", "1500ms", 1500 * time.Millisecond},
		{"bare seconds", "3", 3 * time.Second},
		{"fractional seconds", "0.5", 500 * time.Millisecond},
		{"garbage", "soon", 2 * time.Second},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(EnvCooldown, tc.val)
			if got := Duration(EnvCooldown, 2*time.Second); got != tc.want {
				t.Errorf("Duration = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestNumericHelpers(t *testing.T) {
	t.Setenv("PATHSENSE_TEST_INT", "7")
	t.Setenv("PATHSENSE_TEST_FLOAT", "0.35")
	t.Setenv("PATHSENSE_TEST_BOOL", "true")
	t.Setenv("PATHSENSE_TEST_BAD", "x")

	if got := Int("PATHSENSE_TEST_INT", 1); got != 7 {
		t.Errorf("Int = %d, want 7", got)
	}
	if got := Int("PATHSENSE_TEST_BAD", 1); got != 1 {
		t.Errorf("Int invalid = %d, want default 1", got)
	}
	if got := Float("PATHSENSE_TEST_FLOAT", 0.5); got != 0.35 {
		t.Errorf("Float = %v, want 0.35", got)
	}
	if got := Bool("PATHSENSE_TEST_BOOL", false); !got {
		t.Error("Bool = false, want true")
	}
	if got := String("PATHSENSE_TEST_UNSET", "def"); got != "def" {
		t.Errorf("String = %q, want def", got)
	}
}

func TestLoadSecrets_GeminiPrecedence(t *testing.T) {
	t.Setenv(EnvGoogleKey, "google-key")
	t.Setenv(EnvGeminiKey, "")
	if got := LoadSecrets().GeminiKey; got != "google-key" {
		t.Errorf("GeminiKey = %q, want fallback to GOOGLE_API_KEY", got)
	}

	t.Setenv(EnvGeminiKey, "gemini-key")
	if got := LoadSecrets().GeminiKey; got != "gemini-key" {
		t.Errorf("GeminiKey = %q, want gemini-key", got)
	}
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pathsense.env")
	if err := os.WriteFile(path, []byte("PATHSENSE_TEST_DOTENV=loaded\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("PATHSENSE_TEST_DOTENV") })

	if err := LoadEnvFile(path); err != nil {
		t.Fatalf("LoadEnvFile: %v", err)
	}
	if got := os.Getenv("PATHSENSE_TEST_DOTENV"); got != "loaded" {
		t.Errorf("env = %q, want loaded", got)
	}

	if err := LoadEnvFile(""); err != nil {
		t.Errorf("empty path should be a no-op, got %v", err)
	}
	if err := LoadEnvFile(filepath.Join(t.TempDir(), "missing.env")); err == nil {
		t.Error("expected error for missing file")
	}
}
