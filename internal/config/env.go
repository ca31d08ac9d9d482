// Package config provides environment helpers for pathsense commands.
// Nothing is read from disk unless LoadEnvFile is called explicitly.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Environment variable names.
const (
	EnvGeminiKey       = "GEMINI_API_KEY"
	EnvGoogleKey       = "GOOGLE_API_KEY"
	EnvOpenAIKey       = "OPENAI_API_KEY"
	EnvElevenLabsKey   = "ELEVENLABS_API_KEY"
	EnvElevenLabsVoice = "ELEVENLABS_VOICE_ID"

	EnvLogLevel   = "LOG_LEVEL"
	EnvCooldown   = "PATHSENSE_COOLDOWN"
	EnvConfidence = "PATHSENSE_CONFIDENCE"
	EnvModel      = "PATHSENSE_MODEL"
	EnvStatusAddr = "PATHSENSE_STATUS_ADDR"
)

// LoadEnvFile loads KEY=VALUE pairs from path into the process environment.
// Variables that are already set are not overridden.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// String returns the value of key, or def when unset or blank.
func String(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// Int returns key parsed as an int, or def when unset or invalid.
func Int(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// Float returns key parsed as a float64, or def when unset or invalid.
func Float(key string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

// Duration returns key parsed as a duration, or def when unset or invalid.
// A bare number is read as seconds ("2" == 2s).
func Duration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	return def
}

// Bool returns key parsed as a bool, or def when unset or invalid.
func Bool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// Secrets holds vendor credentials read from the environment.
type Secrets struct {
	GeminiKey       string
	OpenAIKey       string
	ElevenLabsKey   string
	ElevenLabsVoice string
}

// LoadSecrets reads credentials from the environment.
// GEMINI_API_KEY takes precedence over GOOGLE_API_KEY.
func LoadSecrets() Secrets {
	return Secrets{
		GeminiKey:       String(EnvGeminiKey, os.Getenv(EnvGoogleKey)),
		OpenAIKey:       os.Getenv(EnvOpenAIKey),
		ElevenLabsKey:   os.Getenv(EnvElevenLabsKey),
		ElevenLabsVoice: os.Getenv(EnvElevenLabsVoice),
	}
}
