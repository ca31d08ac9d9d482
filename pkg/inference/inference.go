// Package inference answers free-form questions with a hosted language model.
//
// The pathsense assistant uses it to turn a user's spoken question plus a
// JSON description of the detected scene into a short spoken answer.
//
//	g, _ := inference.NewGemini(ctx,
//	    inference.WithAPIKey(os.Getenv("GEMINI_API_KEY")),
//	)
//	defer g.Close()
//
//	resp, _ := g.Chat(ctx, &inference.ChatRequest{
//	    System:   "Answer in one sentence.",
//	    Messages: []inference.Message{inference.NewUserMessage("Where is the chair?")},
//	})
package inference

import "context"

// Provider generates a reply to a conversation.
type Provider interface {
	// Chat generates a response from a sequence of messages.
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

	// Health checks connectivity and credentials.
	Health(ctx context.Context) error

	// Close releases any resources held by the provider.
	Close() error
}

// ChatRequest for chat completions.
type ChatRequest struct {
	// System is the instruction the model follows for every turn.
	System string

	// Messages is the conversation history.
	Messages []Message

	// Model overrides the default model.
	Model string

	// MaxTokens limits the response length.
	MaxTokens int
}

// ChatResponse from chat completion.
type ChatResponse struct {
	// Message is the assistant's response.
	Message Message

	// FinishReason indicates why generation stopped.
	FinishReason string

	Usage Usage

	// Model used for generation.
	Model string

	// LatencyMs is the response time in milliseconds.
	LatencyMs int64
}

// Usage tracks token consumption.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}
