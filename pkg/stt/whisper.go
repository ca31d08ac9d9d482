package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/teslashibe/go-pathsense/internal/httpc"
	"github.com/teslashibe/go-pathsense/pkg/audio"
)

const (
	whisperBaseURL  = "https://api.openai.com/v1"
	whisperEndpoint = "/audio/transcriptions"
	providerWhisper = "openai-whisper"

	// ModelWhisper1 is OpenAI's hosted Whisper model.
	ModelWhisper1 = "whisper-1"
)

// Whisper transcribes through the OpenAI transcription endpoint.
type Whisper struct {
	apiKey   string
	baseURL  string
	model    string
	language string
	client   *http.Client
	logger   *slog.Logger
}

// WhisperOption configures Whisper.
type WhisperOption func(*Whisper)

func WithBaseURL(url string) WhisperOption {
	return func(w *Whisper) { w.baseURL = strings.TrimRight(url, "/") }
}

func WithModel(model string) WhisperOption {
	return func(w *Whisper) { w.model = model }
}

// WithLanguage sets an ISO-639-1 hint, such as "en".
func WithLanguage(lang string) WhisperOption {
	return func(w *Whisper) { w.language = lang }
}

func WithHTTPClient(c *http.Client) WhisperOption {
	return func(w *Whisper) { w.client = c }
}

func WithLogger(l *slog.Logger) WhisperOption {
	return func(w *Whisper) { w.logger = l }
}

// NewWhisper creates a Whisper recognizer.
func NewWhisper(apiKey string, opts ...WhisperOption) (*Whisper, error) {
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	w := &Whisper{
		apiKey:   apiKey,
		baseURL:  whisperBaseURL,
		model:    ModelWhisper1,
		language: "en",
		client:   httpc.NewClient(60 * time.Second),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.With("component", "stt.whisper")
	return w, nil
}

// Transcribe uploads pcm as a WAV file and returns the trimmed text.
func (w *Whisper) Transcribe(ctx context.Context, pcm []byte, f audio.Format) (string, error) {
	if len(pcm) == 0 {
		return "", ErrEmptyAudio
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	part, err := mw.CreateFormFile("file", "utterance.wav")
	if err != nil {
		return "", fmt.Errorf("stt: create form file: %w", err)
	}
	if _, err := part.Write(audio.EncodeWAV(pcm, f)); err != nil {
		return "", fmt.Errorf("stt: write audio: %w", err)
	}
	fields := map[string]string{"model": w.model, "response_format": "json"}
	if w.language != "" {
		fields["language"] = w.language
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return "", fmt.Errorf("stt: write field %s: %w", k, err)
		}
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("stt: close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.baseURL+whisperEndpoint, &body)
	if err != nil {
		return "", fmt.Errorf("stt: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+w.apiKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	start := time.Now()
	resp, err := w.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("stt: request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("stt: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", parseWhisperError(resp.StatusCode, raw)
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return "", fmt.Errorf("stt: parse response: %w", err)
	}

	text := strings.TrimSpace(result.Text)
	w.logger.Debug("transcribed", "chars", len(text), "latency_ms", time.Since(start).Milliseconds())
	return text, nil
}

func parseWhisperError(status int, body []byte) error {
	var r struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	msg := string(body)
	if json.Unmarshal(body, &r) == nil && r.Error.Message != "" {
		msg = r.Error.Message
	}
	return &APIError{StatusCode: status, Message: msg, Provider: providerWhisper}
}

var _ Recognizer = (*Whisper)(nil)
