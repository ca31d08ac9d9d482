package inference

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestGemini(t *testing.T, h http.HandlerFunc) *Gemini {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	g, err := NewGemini(context.Background(),
		WithEndpoint(srv.URL+"/"),
		WithHTTPClient(srv.Client()),
	)
	if err != nil {
		t.Fatalf("NewGemini: %v", err)
	}
	return g
}

func TestGeminiChat(t *testing.T) {
	var got struct {
		Contents []struct {
			Role  string `json:"role"`
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"contents"`
		SystemInstruction struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"systemInstruction"`
		GenerationConfig struct {
			MaxOutputTokens json.Number `json:"maxOutputTokens"`
			ThinkingConfig  *struct {
				ThinkingBudget *json.Number `json:"thinkingBudget"`
			} `json:"thinkingConfig"`
		} `json:"generationConfig"`
	}
	var path string

	g := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"candidates": [{
				"content": {"role": "model", "parts": [{"text": "The chair is "}, {"text": "to your left. "}]},
				"finishReason": "STOP"
			}],
			"usageMetadata": {"promptTokenCount": 40, "candidatesTokenCount": 6, "totalTokenCount": 46}
		}`))
	})

	resp, err := g.Chat(context.Background(), &ChatRequest{
		System:   "be brief",
		Messages: []Message{NewUserMessage("where is the chair?")},
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}

	if path != "/v1beta/models/"+ModelFlashLite+":generateContent" {
		t.Errorf("path = %s", path)
	}
	if len(got.Contents) != 1 || got.Contents[0].Role != "user" || got.Contents[0].Parts[0].Text != "where is the chair?" {
		t.Errorf("unexpected contents: %+v", got.Contents)
	}
	if len(got.SystemInstruction.Parts) != 1 || got.SystemInstruction.Parts[0].Text != "be brief" {
		t.Errorf("unexpected system instruction: %+v", got.SystemInstruction)
	}
	if got.GenerationConfig.MaxOutputTokens.String() != "256" {
		t.Errorf("maxOutputTokens = %s", got.GenerationConfig.MaxOutputTokens)
	}

	if tc := got.GenerationConfig.ThinkingConfig; tc == nil || tc.ThinkingBudget == nil || tc.ThinkingBudget.String() != "0" {
		t.Errorf("thinking not disabled: %+v", tc)
	}

	if resp.Message.Content != "The chair is to your left." {
		t.Errorf("content = %q", resp.Message.Content)
	}
	if resp.FinishReason != "STOP" || resp.Usage.TotalTokens != 46 {
		t.Errorf("unexpected metadata: %+v", resp)
	}
}

func TestGeminiEmptyResponse(t *testing.T) {
	g := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"candidates": [{"finishReason": "SAFETY"}]}`))
	})

	_, err := g.Chat(context.Background(), &ChatRequest{Messages: []Message{NewUserMessage("hi")}})
	if !errors.Is(err, ErrEmptyResponse) {
		t.Fatalf("expected ErrEmptyResponse, got %v", err)
	}
}

func TestGeminiAPIError(t *testing.T) {
	g := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error": {"code": 429, "message": "quota exceeded", "status": "RESOURCE_EXHAUSTED"}}`))
	})

	_, err := g.Chat(context.Background(), &ChatRequest{Messages: []Message{NewUserMessage("hi")}})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T: %v", err, err)
	}
	if !apiErr.IsRateLimited() || !strings.Contains(apiErr.Message, "quota") {
		t.Errorf("unexpected error: %+v", apiErr)
	}
}

func TestGeminiHealth(t *testing.T) {
	g := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/v1beta/models/"+ModelFlashLite {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"name": "models/gemini-2.5-flash-lite"}`))
	})

	if err := g.Health(context.Background()); err != nil {
		t.Errorf("Health: %v", err)
	}
}

func TestModelName(t *testing.T) {
	if got := modelName("gemini-2.5-flash"); got != "models/gemini-2.5-flash" {
		t.Errorf("got %s", got)
	}
	if got := modelName("models/x"); got != "models/x" {
		t.Errorf("got %s", got)
	}
}
