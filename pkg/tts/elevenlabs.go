package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	elevenLabsBaseURL  = "https://api.elevenlabs.io/v1"
	providerElevenLabs = "elevenlabs"
)

// ElevenLabs models.
const (
	ModelTurboV2_5      = "eleven_turbo_v2_5"
	ModelFlashV2_5      = "eleven_flash_v2_5"
	ModelMultilingualV2 = "eleven_multilingual_v2"
)

// ElevenLabs synthesizes through the ElevenLabs REST API.
type ElevenLabs struct {
	config  *Config
	client  *http.Client
	logger  *slog.Logger
	baseURL string
}

// NewElevenLabs creates a REST provider. The voice may be a preset name.
func NewElevenLabs(opts ...Option) (*ElevenLabs, error) {
	cfg := elevenLabsConfig(opts)
	if err := cfg.ValidateWithVoice(); err != nil {
		return nil, err
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = elevenLabsBaseURL
	}

	return &ElevenLabs{
		config:  cfg,
		client:  httpClient(cfg),
		logger:  cfg.Logger.With("component", "tts.elevenlabs"),
		baseURL: baseURL,
	}, nil
}

func elevenLabsConfig(opts []Option) *Config {
	cfg := DefaultConfig()
	cfg.ModelID = ModelTurboV2_5
	cfg.VoiceID = DefaultElevenLabsVoice
	cfg.Apply(opts...)
	cfg.VoiceID = ResolveElevenLabsVoice(cfg.VoiceID)
	return cfg
}

// Synthesize returns the whole utterance.
func (e *ElevenLabs) Synthesize(ctx context.Context, text string) (*AudioResult, error) {
	start := time.Now()

	resp, err := e.post(ctx, "", text)
	if err != nil {
		return nil, err
	}
	latency := time.Since(start).Milliseconds()

	format := PCMFormat(e.config.OutputFormat)
	audio, err := ReadAll(newBodyStream(resp.Body, format))
	if err != nil {
		return nil, WrapError(providerElevenLabs, fmt.Errorf("read response: %w", err))
	}

	e.logger.Debug("synthesized", "chars", len(text), "bytes", len(audio), "latency_ms", latency)

	return &AudioResult{
		Audio:     audio,
		Format:    format,
		Duration:  format.DurationOf(len(audio)),
		CharCount: len(text),
		LatencyMs: latency,
	}, nil
}

// Stream uses the /stream endpoint so playback can start early.
func (e *ElevenLabs) Stream(ctx context.Context, text string) (AudioStream, error) {
	resp, err := e.post(ctx, "/stream", text)
	if err != nil {
		return nil, err
	}
	return newBodyStream(resp.Body, PCMFormat(e.config.OutputFormat)), nil
}

func (e *ElevenLabs) post(ctx context.Context, suffix, text string) (*http.Response, error) {
	if strings.TrimSpace(text) == "" {
		return nil, WrapError(providerElevenLabs, ErrEmptyText)
	}

	body, err := json.Marshal(map[string]any{
		"text":           text,
		"model_id":       e.config.ModelID,
		"voice_settings": e.config.VoiceSettings,
	})
	if err != nil {
		return nil, WrapError(providerElevenLabs, err)
	}

	endpoint := fmt.Sprintf("%s/text-to-speech/%s%s?output_format=%s",
		e.baseURL, url.PathEscape(e.config.VoiceID), suffix, e.config.OutputFormat)

	resp, err := doWithRetry(ctx, e.client, e.config, e.logger,
		func(ctx context.Context) (*http.Request, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
			if err != nil {
				return nil, err
			}
			req.Header.Set("xi-api-key", e.config.APIKey)
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Accept", "audio/pcm")
			return req, nil
		},
		e.parseError,
	)
	if err != nil {
		return nil, WrapError(providerElevenLabs, err)
	}
	return resp, nil
}

// Health fetches the account to verify the key.
func (e *ElevenLabs) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/user", nil)
	if err != nil {
		return WrapError(providerElevenLabs, err)
	}
	req.Header.Set("xi-api-key", e.config.APIKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return WrapError(providerElevenLabs, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return e.parseError(resp)
	}
	return nil
}

func (e *ElevenLabs) Close() error {
	e.client.CloseIdleConnections()
	return nil
}

// VoiceID returns the resolved voice ID.
func (e *ElevenLabs) VoiceID() string {
	return e.config.VoiceID
}

func (e *ElevenLabs) parseError(resp *http.Response) error {
	return readAPIError(resp, providerElevenLabs, extractElevenLabsError)
}

func extractElevenLabsError(body []byte) (string, string) {
	var r struct {
		Detail struct {
			Message string `json:"message"`
			Status  string `json:"status"`
		} `json:"detail"`
	}
	if json.Unmarshal(body, &r) != nil {
		return "", ""
	}
	return r.Detail.Message, r.Detail.Status
}

var _ Provider = (*ElevenLabs)(nil)
