package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	openAITTSURL   = "https://api.openai.com/v1/audio/speech"
	providerOpenAI = "openai"
)

// OpenAI voices.
const (
	OpenAIVoiceAlloy   = "alloy"
	OpenAIVoiceEcho    = "echo"
	OpenAIVoiceNova    = "nova"
	OpenAIVoiceShimmer = "shimmer"
)

// OpenAI models.
const (
	ModelTTS1   = "tts-1"
	ModelTTS1HD = "tts-1-hd"
)

// OpenAI synthesizes through the OpenAI speech endpoint. It always
// requests raw PCM, which OpenAI delivers at 24kHz.
type OpenAI struct {
	config *Config
	client *http.Client
	logger *slog.Logger
	url    string
}

// NewOpenAI creates an OpenAI provider. The voice defaults to nova.
func NewOpenAI(opts ...Option) (*OpenAI, error) {
	cfg := DefaultConfig()
	cfg.ModelID = ModelTTS1
	cfg.VoiceID = OpenAIVoiceNova
	cfg.Apply(opts...)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.OutputFormat = EncodingPCM24

	url := openAITTSURL
	if cfg.BaseURL != "" {
		url = strings.TrimRight(cfg.BaseURL, "/") + "/v1/audio/speech"
	}

	return &OpenAI{
		config: cfg,
		client: httpClient(cfg),
		logger: cfg.Logger.With("component", "tts.openai"),
		url:    url,
	}, nil
}

// Synthesize returns the whole utterance.
func (o *OpenAI) Synthesize(ctx context.Context, text string) (*AudioResult, error) {
	start := time.Now()

	stream, err := o.Stream(ctx, text)
	if err != nil {
		return nil, err
	}
	latency := time.Since(start).Milliseconds()

	audio, err := ReadAll(stream)
	if err != nil {
		return nil, WrapError(providerOpenAI, err)
	}

	format := PCMFormat(EncodingPCM24)
	o.logger.Debug("synthesized", "chars", len(text), "bytes", len(audio), "latency_ms", latency)

	return &AudioResult{
		Audio:     audio,
		Format:    format,
		Duration:  format.DurationOf(len(audio)),
		CharCount: len(text),
		LatencyMs: latency,
	}, nil
}

// Stream reads the chunked response body as it arrives.
func (o *OpenAI) Stream(ctx context.Context, text string) (AudioStream, error) {
	if strings.TrimSpace(text) == "" {
		return nil, WrapError(providerOpenAI, ErrEmptyText)
	}

	body, err := json.Marshal(map[string]string{
		"model":           o.config.ModelID,
		"voice":           o.config.VoiceID,
		"input":           text,
		"response_format": "pcm",
	})
	if err != nil {
		return nil, WrapError(providerOpenAI, err)
	}

	resp, err := doWithRetry(ctx, o.client, o.config, o.logger,
		func(ctx context.Context) (*http.Request, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.url, bytes.NewReader(body))
			if err != nil {
				return nil, err
			}
			req.Header.Set("Authorization", "Bearer "+o.config.APIKey)
			req.Header.Set("Content-Type", "application/json")
			return req, nil
		},
		o.parseError,
	)
	if err != nil {
		return nil, WrapError(providerOpenAI, err)
	}

	return newBodyStream(resp.Body, PCMFormat(EncodingPCM24)), nil
}

// Health lists models to verify the key.
func (o *OpenAI) Health(ctx context.Context) error {
	url := strings.TrimSuffix(o.url, "/audio/speech") + "/models"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return WrapError(providerOpenAI, err)
	}
	req.Header.Set("Authorization", "Bearer "+o.config.APIKey)

	resp, err := o.client.Do(req)
	if err != nil {
		return WrapError(providerOpenAI, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return o.parseError(resp)
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

func (o *OpenAI) Close() error {
	o.client.CloseIdleConnections()
	return nil
}

// VoiceID returns the configured voice.
func (o *OpenAI) VoiceID() string {
	return o.config.VoiceID
}

func (o *OpenAI) parseError(resp *http.Response) error {
	return readAPIError(resp, providerOpenAI, extractOpenAIError)
}

var _ Provider = (*OpenAI)(nil)
