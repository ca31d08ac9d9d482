package tts

import (
	"context"
	"errors"
	"log/slog"
)

// Chain tries providers in order and returns the first success.
type Chain struct {
	providers []Provider
	logger    *slog.Logger
}

// NewChain requires at least one provider.
func NewChain(providers ...Provider) (*Chain, error) {
	return NewChainWithLogger(slog.Default(), providers...)
}

// NewChainWithLogger is NewChain with an explicit logger.
func NewChainWithLogger(logger *slog.Logger, providers ...Provider) (*Chain, error) {
	if len(providers) == 0 {
		return nil, ErrProviderUnavailable
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{
		providers: providers,
		logger:    logger.With("component", "tts.chain"),
	}, nil
}

func (c *Chain) Synthesize(ctx context.Context, text string) (*AudioResult, error) {
	return try(ctx, c, text, Provider.Synthesize)
}

func (c *Chain) Stream(ctx context.Context, text string) (AudioStream, error) {
	return try(ctx, c, text, Provider.Stream)
}

func try[T any](ctx context.Context, c *Chain, text string, call func(Provider, context.Context, string) (T, error)) (T, error) {
	var zero T
	var errs []error

	for i, p := range c.providers {
		out, err := call(p, ctx, text)
		if err == nil {
			if i > 0 {
				c.logger.Info("fallback provider succeeded", "provider_index", i)
			}
			return out, nil
		}
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		// Empty text fails the same way everywhere.
		if errors.Is(err, ErrEmptyText) {
			return zero, err
		}
		errs = append(errs, err)
		c.logger.Warn("provider failed, trying next", "provider_index", i, "error", err)
	}
	return zero, &ChainError{Errors: errs}
}

// Health succeeds when any provider is healthy.
func (c *Chain) Health(ctx context.Context) error {
	var errs []error
	for _, p := range c.providers {
		err := p.Health(ctx)
		if err == nil {
			return nil
		}
		errs = append(errs, err)
	}
	return &ChainError{Errors: errs}
}

// Close closes every provider and joins their errors.
func (c *Chain) Close() error {
	var errs []error
	for _, p := range c.providers {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Providers returns the chain members in order.
func (c *Chain) Providers() []Provider {
	return c.providers
}

var _ Provider = (*Chain)(nil)
