package tts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/teslashibe/go-pathsense/internal/httpc"
)

// streamChunkSize is how much PCM a streaming Read hands back at most.
const streamChunkSize = 4800

func httpClient(cfg *Config) *http.Client {
	if cfg.HTTPClient != nil {
		return cfg.HTTPClient
	}
	return httpc.NewClient(cfg.Timeout)
}

// doWithRetry sends the request built by newReq, retrying on transport
// errors and retryable API errors. A non-2xx final response is returned
// as an *APIError built by parseErr.
func doWithRetry(
	ctx context.Context,
	client *http.Client,
	cfg *Config,
	logger *slog.Logger,
	newReq func(context.Context) (*http.Request, error),
	parseErr func(*http.Response) error,
) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(cfg.RetryDelay * time.Duration(attempt)):
			}
		}

		req, err := newReq(ctx)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}

		resp, err := client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp, nil
		}

		apiErr := parseErr(resp)
		resp.Body.Close()
		lastErr = apiErr

		var ae *APIError
		if !errors.As(apiErr, &ae) || !ae.IsRetryable() {
			return nil, apiErr
		}
		logger.Warn("retrying request", "attempt", attempt+1, "status", resp.StatusCode)
	}

	return nil, lastErr
}

// readAPIError decodes a JSON error body using extract, falling back to
// the raw body text.
func readAPIError(resp *http.Response, provider string, extract func([]byte) (msg, code string)) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	message := string(body)
	code := ""
	if m, c := extract(body); m != "" {
		message, code = m, c
	}
	return &APIError{
		StatusCode: resp.StatusCode,
		Message:    message,
		Code:       code,
		Provider:   provider,
	}
}

func extractOpenAIError(body []byte) (string, string) {
	var r struct {
		Error struct {
			Message string `json:"message"`
			Code    string `json:"code"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &r) != nil {
		return "", ""
	}
	return r.Error.Message, r.Error.Code
}

// bodyStream exposes a chunked HTTP response body as an AudioStream.
// PCM samples are never split across Read calls.
type bodyStream struct {
	body   io.ReadCloser
	format AudioFormat
	buf    []byte
	carry  []byte

	mu     sync.Mutex
	closed bool
}

func newBodyStream(body io.ReadCloser, format AudioFormat) *bodyStream {
	return &bodyStream{
		body:   body,
		format: format,
		buf:    make([]byte, streamChunkSize),
	}
}

func (s *bodyStream) Read() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStreamClosed
	}

	for {
		n, err := s.body.Read(s.buf)
		if n > 0 {
			data := append(s.carry, s.buf[:n]...)
			whole := len(data) &^ 1
			s.carry = append([]byte(nil), data[whole:]...)
			if whole > 0 {
				return data[:whole], nil
			}
		}
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

func (s *bodyStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.body.Close()
}

func (s *bodyStream) Format() AudioFormat {
	return s.format
}

// bufferStream serves an in-memory result as a single chunk.
type bufferStream struct {
	data   []byte
	done   bool
	format AudioFormat
}

func (s *bufferStream) Read() ([]byte, error) {
	if s.done || len(s.data) == 0 {
		return nil, nil
	}
	s.done = true
	return s.data, nil
}

func (s *bufferStream) Close() error        { return nil }
func (s *bufferStream) Format() AudioFormat { return s.format }
