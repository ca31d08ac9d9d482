package tts

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	elevenLabsWSBaseURL  = "wss://api.elevenlabs.io/v1"
	providerElevenLabsWS = "elevenlabs_ws"
	wsHandshakeTimeout   = 10 * time.Second
)

// ElevenLabsWS streams speech over the ElevenLabs stream-input websocket.
// Each utterance gets its own connection, so cancelling one alert never
// disturbs the next.
type ElevenLabsWS struct {
	config  *Config
	logger  *slog.Logger
	dialer  *websocket.Dialer
	baseURL string
	rest    *ElevenLabs
}

// NewElevenLabsWS creates a websocket provider.
func NewElevenLabsWS(opts ...Option) (*ElevenLabsWS, error) {
	cfg := elevenLabsConfig(opts)
	if err := cfg.ValidateWithVoice(); err != nil {
		return nil, err
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = elevenLabsWSBaseURL
	}
	baseURL = toScheme(baseURL, "ws")

	// Health goes over REST against the same host.
	restOpts := append(append([]Option{}, opts...), WithBaseURL(toScheme(baseURL, "http")))
	rest, err := NewElevenLabs(restOpts...)
	if err != nil {
		return nil, err
	}

	return &ElevenLabsWS{
		config:  cfg,
		logger:  cfg.Logger.With("component", "tts.elevenlabs_ws"),
		dialer:  &websocket.Dialer{HandshakeTimeout: wsHandshakeTimeout, Proxy: http.ProxyFromEnvironment},
		baseURL: baseURL,
		rest:    rest,
	}, nil
}

// toScheme swaps between http(s) and ws(s), keeping TLS.
func toScheme(u, family string) string {
	secure := strings.HasPrefix(u, "https://") || strings.HasPrefix(u, "wss://")
	rest := u
	if i := strings.Index(u, "://"); i >= 0 {
		rest = u[i+3:]
	}
	scheme := family
	if secure {
		scheme += "s"
	}
	return scheme + "://" + rest
}

// Synthesize collects the streamed utterance.
func (e *ElevenLabsWS) Synthesize(ctx context.Context, text string) (*AudioResult, error) {
	start := time.Now()

	stream, err := e.Stream(ctx, text)
	if err != nil {
		return nil, err
	}
	audio, err := ReadAll(stream)
	if err != nil {
		return nil, WrapError(providerElevenLabsWS, err)
	}

	format := stream.Format()
	return &AudioResult{
		Audio:     audio,
		Format:    format,
		Duration:  format.DurationOf(len(audio)),
		CharCount: len(text),
		LatencyMs: time.Since(start).Milliseconds(),
	}, nil
}

// Stream dials, sends the whole text followed by end-of-stream, and
// returns a stream over the audio frames. Cancelling ctx closes the
// connection and unblocks Read.
func (e *ElevenLabsWS) Stream(ctx context.Context, text string) (AudioStream, error) {
	if strings.TrimSpace(text) == "" {
		return nil, WrapError(providerElevenLabsWS, ErrEmptyText)
	}

	q := url.Values{}
	q.Set("model_id", e.config.ModelID)
	q.Set("output_format", string(e.config.OutputFormat))
	endpoint := fmt.Sprintf("%s/text-to-speech/%s/stream-input?%s",
		e.baseURL, url.PathEscape(e.config.VoiceID), q.Encode())

	headers := http.Header{}
	headers.Set("xi-api-key", e.config.APIKey)

	conn, resp, err := e.dialer.DialContext(ctx, endpoint, headers)
	if err != nil {
		if resp != nil {
			return nil, &APIError{
				StatusCode: resp.StatusCode,
				Message:    err.Error(),
				Provider:   providerElevenLabsWS,
			}
		}
		return nil, WrapError(providerElevenLabsWS, fmt.Errorf("dial: %w", err))
	}

	msgs := []any{
		map[string]any{
			"text":           " ",
			"voice_settings": e.config.VoiceSettings,
		},
		map[string]any{
			"text":                   text + " ",
			"try_trigger_generation": true,
		},
		map[string]any{"text": ""},
	}
	for _, m := range msgs {
		if err := conn.WriteJSON(m); err != nil {
			conn.Close()
			return nil, WrapError(providerElevenLabsWS, fmt.Errorf("send: %w", err))
		}
	}

	s := &wsStream{
		conn:   conn,
		format: PCMFormat(e.config.OutputFormat),
	}
	stop := context.AfterFunc(ctx, func() { s.Close() })
	s.mu.Lock()
	s.stop = stop
	s.mu.Unlock()

	e.logger.Debug("stream opened", "chars", len(text), "voice", e.config.VoiceID)
	return s, nil
}

// Health checks the key over REST.
func (e *ElevenLabsWS) Health(ctx context.Context) error {
	return e.rest.Health(ctx)
}

func (e *ElevenLabsWS) Close() error {
	return e.rest.Close()
}

// VoiceID returns the resolved voice ID.
func (e *ElevenLabsWS) VoiceID() string {
	return e.config.VoiceID
}

type wsMessage struct {
	Audio   string `json:"audio"`
	IsFinal bool   `json:"isFinal"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

type wsStream struct {
	conn   *websocket.Conn
	format AudioFormat
	stop   func() bool

	mu     sync.Mutex
	done   bool
	closed bool
}

func (s *wsStream) Read() ([]byte, error) {
	for {
		s.mu.Lock()
		done, closed := s.done, s.closed
		s.mu.Unlock()
		if closed {
			return nil, ErrStreamClosed
		}
		if done {
			return nil, nil
		}

		_, data, err := s.conn.ReadMessage()
		if err != nil {
			s.mu.Lock()
			closed = s.closed
			s.mu.Unlock()
			if closed {
				return nil, ErrStreamClosed
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				s.finish()
				return nil, nil
			}
			return nil, WrapError(providerElevenLabsWS, err)
		}

		var msg wsMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, WrapError(providerElevenLabsWS, fmt.Errorf("decode message: %w", err))
		}
		if msg.Error != "" {
			return nil, WrapError(providerElevenLabsWS, errors.New(msg.Error+": "+msg.Message))
		}
		if msg.IsFinal {
			s.finish()
		}
		if msg.Audio == "" {
			continue
		}

		pcm, err := base64.StdEncoding.DecodeString(msg.Audio)
		if err != nil {
			return nil, WrapError(providerElevenLabsWS, fmt.Errorf("decode audio: %w", err))
		}
		return pcm, nil
	}
}

func (s *wsStream) finish() {
	s.mu.Lock()
	s.done = true
	s.mu.Unlock()
}

// Close is safe to call concurrently with Read.
func (s *wsStream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	stop := s.stop
	s.mu.Unlock()

	if stop != nil {
		stop()
	}
	s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return s.conn.Close()
}

func (s *wsStream) Format() AudioFormat {
	return s.format
}

var _ Provider = (*ElevenLabsWS)(nil)
