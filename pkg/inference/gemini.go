package inference

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/generativelanguage/v1beta"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const (
	providerGemini = "gemini"

	// scopeGenerativeLanguage is the OAuth scope for the Gemini API.
	scopeGenerativeLanguage = "https://www.googleapis.com/auth/generative-language"
)

// Gemini implements Provider with the Generative Language API.
type Gemini struct {
	config *Config
	svc    *generativelanguage.Service
	logger *slog.Logger
}

// NewGemini creates a Gemini provider. Without an API key it falls back to
// Application Default Credentials.
func NewGemini(ctx context.Context, opts ...Option) (*Gemini, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)
	if err := cfg.Validate(); err != nil {
		return nil, WrapError(providerGemini, err)
	}

	clientOpts, err := cfg.clientOptions(ctx)
	if err != nil {
		return nil, WrapError(providerGemini, err)
	}

	svc, err := generativelanguage.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, WrapError(providerGemini, fmt.Errorf("create service: %w", err))
	}

	return &Gemini{
		config: cfg,
		svc:    svc,
		logger: cfg.Logger.With("component", "inference.gemini", "model", cfg.Model),
	}, nil
}

func (c *Config) clientOptions(ctx context.Context) ([]option.ClientOption, error) {
	var opts []option.ClientOption
	if c.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(c.Endpoint))
	}

	switch {
	case c.HTTPClient != nil:
		opts = append(opts, option.WithHTTPClient(c.HTTPClient))
	case c.APIKey != "":
		opts = append(opts, option.WithAPIKey(c.APIKey))
	default:
		ts, err := google.DefaultTokenSource(ctx, scopeGenerativeLanguage)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNoCredentials, err)
		}
		opts = append(opts, option.WithTokenSource(ts))
	}
	return opts, nil
}

// Chat generates a reply. The system instruction is sent separately from
// the conversation turns.
func (g *Gemini) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	start := time.Now()

	model := req.Model
	if model == "" {
		model = g.config.Model
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = g.config.MaxTokens
	}

	body := &generativelanguage.GenerateContentRequest{
		Contents: convertMessages(req.Messages),
		GenerationConfig: &generativelanguage.GenerationConfig{
			MaxOutputTokens: int64(maxTokens),
		},
	}
	if g.config.ThinkingBudget >= 0 {
		body.GenerationConfig.ThinkingConfig = &generativelanguage.ThinkingConfig{
			ThinkingBudget:  int64(g.config.ThinkingBudget),
			ForceSendFields: []string{"ThinkingBudget"},
		}
	}
	if req.System != "" {
		body.SystemInstruction = &generativelanguage.Content{
			Parts: []*generativelanguage.Part{{Text: req.System}},
		}
	}

	if g.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.config.Timeout)
		defer cancel()
	}

	resp, err := g.svc.Models.GenerateContent(modelName(model), body).Context(ctx).Do()
	if err != nil {
		return nil, convertError(err)
	}

	text, finish := firstCandidate(resp)
	if text == "" {
		return nil, WrapError(providerGemini, ErrEmptyResponse)
	}

	out := &ChatResponse{
		Message:      NewAssistantMessage(text),
		FinishReason: finish,
		Model:        model,
		LatencyMs:    time.Since(start).Milliseconds(),
	}
	if u := resp.UsageMetadata; u != nil {
		out.Usage = Usage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}

	g.logger.Debug("generated",
		"latency_ms", out.LatencyMs,
		"finish", finish,
		"tokens", out.Usage.TotalTokens,
	)
	return out, nil
}

// Health fetches the configured model's metadata.
func (g *Gemini) Health(ctx context.Context) error {
	if _, err := g.svc.Models.Get(modelName(g.config.Model)).Context(ctx).Do(); err != nil {
		return convertError(err)
	}
	return nil
}

func (g *Gemini) Close() error {
	return nil
}

func modelName(model string) string {
	if strings.HasPrefix(model, "models/") {
		return model
	}
	return "models/" + model
}

func convertMessages(msgs []Message) []*generativelanguage.Content {
	contents := make([]*generativelanguage.Content, 0, len(msgs))
	for _, msg := range msgs {
		role := "user"
		if msg.Role == RoleAssistant {
			role = "model"
		}
		contents = append(contents, &generativelanguage.Content{
			Role:  role,
			Parts: []*generativelanguage.Part{{Text: msg.Content}},
		})
	}
	return contents
}

// firstCandidate joins the text parts of the first candidate.
func firstCandidate(resp *generativelanguage.GenerateContentResponse) (string, string) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", ""
	}
	c := resp.Candidates[0]
	if c.Content == nil {
		return "", c.FinishReason
	}
	var sb strings.Builder
	for _, p := range c.Content.Parts {
		if p != nil {
			sb.WriteString(p.Text)
		}
	}
	return strings.TrimSpace(sb.String()), c.FinishReason
}

func convertError(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return &APIError{
			StatusCode: gerr.Code,
			Message:    gerr.Message,
			Provider:   providerGemini,
		}
	}
	return WrapError(providerGemini, err)
}

var _ Provider = (*Gemini)(nil)
