package alert

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/teslashibe/go-pathsense/pkg/inference"
)

// FallbackAnswer is spoken when the answer model fails or says nothing.
const FallbackAnswer = "Sorry, I couldn't get a response."

// SystemPrompt tells the model it is the user's eyes and may only use
// the detections it is given.
const SystemPrompt = `You are an assistant for a blind or visually impaired user.
You cannot see. Everything you know about the surroundings comes from the JSON list of objects a camera detected.

Each object in the JSON has:
- "name": what the object is
- "direction": where it is relative to the user, such as "to your left" or "right in front of you"
- "distance": rough distance in centimeters

Answer using only that JSON.
- Keep it short, clear and useful when heard aloud.
- Give directions and distances, and warn when something is very close.
- Never mention anything that is not in the JSON.
- Use plain words and a polite, encouraging tone.

Example
Input JSON: [{"name": "chair", "direction": "to your right", "distance": 120}, {"name": "person", "direction": "right in front of you", "distance": 50}]
Answer: "A person is right in front of you, about 50 centimeters away. There is a chair to your right, about 1.2 meters away."`

// BuildPrompt formats the user turn sent with SystemPrompt.
func BuildPrompt(utterance string, scene Scene) string {
	return fmt.Sprintf("Detected objects JSON: %s\nUser asked: '%s'", scene.JSON(), utterance)
}

// QueryClient asks the answer model about the current scene.
type QueryClient struct {
	provider  inference.Provider
	maxTokens int
	logger    *slog.Logger
}

// NewQueryClient wraps provider.
func NewQueryClient(provider inference.Provider, logger *slog.Logger) *QueryClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &QueryClient{
		provider:  provider,
		maxTokens: 256,
		logger:    logger.With("component", "alert.query"),
	}
}

// Ask returns the model's answer, or FallbackAnswer on any failure.
func (q *QueryClient) Ask(ctx context.Context, utterance string, scene Scene) string {
	resp, err := q.provider.Chat(ctx, &inference.ChatRequest{
		System:    SystemPrompt,
		Messages:  []inference.Message{inference.NewUserMessage(BuildPrompt(utterance, scene))},
		MaxTokens: q.maxTokens,
	})
	if err != nil {
		q.logger.Warn("answer failed", "error", err)
		return FallbackAnswer
	}

	answer := strings.TrimSpace(resp.Message.Content)
	if answer == "" {
		q.logger.Warn("empty answer")
		return FallbackAnswer
	}
	q.logger.Debug("answered", "latency_ms", resp.LatencyMs, "objects", len(scene))
	return answer
}
