package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// FallbackProvider tries each provider in order until one answers.
type FallbackProvider struct {
	providers []Provider
	logger    *slog.Logger
}

// NewFallbackProvider returns a provider chaining the given providers.
// A nil entry is skipped so optional providers can be passed directly.
func NewFallbackProvider(logger *slog.Logger, providers ...Provider) (*FallbackProvider, error) {
	var chain []Provider
	for _, p := range providers {
		if p != nil {
			chain = append(chain, p)
		}
	}
	if len(chain) == 0 {
		return nil, errors.New("fallback provider needs at least one provider")
	}
	return &FallbackProvider{providers: chain, logger: logger}, nil
}

// SendMessage returns the first successful response. A cancelled context
// stops the chain immediately.
func (f *FallbackProvider) SendMessage(ctx context.Context, req *Request) (*Response, error) {
	var lastErr error
	for i, p := range f.providers {
		resp, err := p.SendMessage(ctx, req)
		if err == nil {
			if i > 0 {
				f.logger.InfoContext(ctx, "fallback provider answered",
					slog.String("provider", p.Name()),
					slog.Int("attempt", i+1),
				)
			}
			return resp, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
		f.logger.WarnContext(ctx, "provider failed",
			slog.String("provider", p.Name()),
			slog.String("error", err.Error()),
			slog.Int("remaining", len(f.providers)-i-1),
		)
	}
	return nil, fmt.Errorf("all %d providers failed: %w", len(f.providers), lastErr)
}

func (f *FallbackProvider) Name() string {
	if len(f.providers) == 1 {
		return f.providers[0].Name()
	}
	return f.providers[0].Name() + "+fallback"
}
