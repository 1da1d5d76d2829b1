package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jkaninda/huddle/internal/llm"
)

// InstrumentedProvider wraps an llm.Provider with request metrics and a span per call.
type InstrumentedProvider struct {
	inner   llm.Provider
	metrics *MetricsCollector
	tracer  trace.Tracer
}

// NewInstrumentedProvider wraps inner. metrics and tracer may be nil.
func NewInstrumentedProvider(inner llm.Provider, metrics *MetricsCollector, tracer trace.Tracer) *InstrumentedProvider {
	return &InstrumentedProvider{inner: inner, metrics: metrics, tracer: tracer}
}

func (p *InstrumentedProvider) Name() string { return p.inner.Name() }

func (p *InstrumentedProvider) SendMessage(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	provider := p.inner.Name()

	var span trace.Span
	if p.tracer != nil {
		ctx, span = p.tracer.Start(ctx, "llm.send_message", trace.WithAttributes(
			attribute.String("llm.provider", provider),
			attribute.Int("llm.messages", len(req.Messages)),
			attribute.Int("llm.tools", len(req.Tools)),
		))
		defer span.End()
	}

	start := time.Now()
	resp, err := p.inner.SendMessage(ctx, req)

	if span != nil {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetAttributes(
				attribute.String("llm.stop_reason", resp.StopReason),
				attribute.Int("llm.input_tokens", resp.Usage.InputTokens),
				attribute.Int("llm.output_tokens", resp.Usage.OutputTokens),
			)
		}
	}

	if p.metrics != nil {
		p.metrics.LLMRequestsTotal.WithLabelValues(provider, outcome(err == nil)).Inc()
		p.metrics.LLMRequestDuration.WithLabelValues(provider).Observe(time.Since(start).Seconds())
		if resp != nil {
			p.metrics.LLMTokensUsed.WithLabelValues(provider, "input").Add(float64(resp.Usage.InputTokens))
			p.metrics.LLMTokensUsed.WithLabelValues(provider, "output").Add(float64(resp.Usage.OutputTokens))
		}
	}
	return resp, err
}
