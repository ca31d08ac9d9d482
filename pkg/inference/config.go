package inference

import (
	"log/slog"
	"net/http"
	"time"
)

const (
	// ModelFlashLite is the default answer model.
	ModelFlashLite = "gemini-2.5-flash-lite"

	// ModelFlash is a larger fallback model.
	ModelFlash = "gemini-2.5-flash"
)

// Config holds provider configuration.
type Config struct {
	// Endpoint overrides the API root, e.g. for tests.
	Endpoint string

	// APIKey selects key auth. When empty, Application Default
	// Credentials are used.
	APIKey string

	Model     string
	MaxTokens int

	// ThinkingBudget caps reasoning tokens, which count against MaxTokens.
	// Zero turns thinking off; a negative value leaves it to the model.
	ThinkingBudget int

	Timeout time.Duration

	// HTTPClient replaces the authenticated transport entirely.
	HTTPClient *http.Client

	Logger *slog.Logger
}

// Option is a functional option for configuring providers.
type Option func(*Config)

// WithEndpoint sets the API root URL.
func WithEndpoint(url string) Option {
	return func(c *Config) { c.Endpoint = url }
}

// WithAPIKey sets the API key.
func WithAPIKey(key string) Option {
	return func(c *Config) { c.APIKey = key }
}

// WithModel sets the default model.
func WithModel(model string) Option {
	return func(c *Config) { c.Model = model }
}

// WithMaxTokens sets the default max output tokens.
func WithMaxTokens(n int) Option {
	return func(c *Config) { c.MaxTokens = n }
}

// WithThinkingBudget sets the reasoning token budget.
func WithThinkingBudget(n int) Option {
	return func(c *Config) { c.ThinkingBudget = n }
}

// WithTimeout bounds each request.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) { c.Timeout = d }
}

// WithHTTPClient sets a preconfigured client. It must handle auth itself.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Config) { c.HTTPClient = client }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// DefaultConfig returns defaults for short spoken answers.
func DefaultConfig() *Config {
	return &Config{
		Model:     ModelFlashLite,
		MaxTokens: 256,
		Timeout:   20 * time.Second,
		Logger:    slog.Default(),
	}
}

// Apply applies functional options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.Model == "" {
		return ErrNoModel
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return nil
}
