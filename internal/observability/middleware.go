package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/jkaninda/okapi"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// MetricsMiddleware counts requests, observes latency and wraps each request
// in a server span. Either metrics or tracer may be nil.
func MetricsMiddleware(metrics *MetricsCollector, tracer trace.Tracer) okapi.Middleware {
	return func(next okapi.HandlerFunc) okapi.HandlerFunc {
		if metrics == nil && tracer == nil {
			return next
		}
		return func(c *okapi.Context) error {
			r := c.Request()
			method, path := r.Method, r.URL.Path

			var span trace.Span
			if tracer != nil {
				_, span = tracer.Start(r.Context(), method+" "+path,
					trace.WithSpanKind(trace.SpanKindServer),
					trace.WithAttributes(
						attribute.String("http.method", method),
						attribute.String("http.path", path),
					))
				defer span.End()
			}
			if metrics != nil {
				metrics.ActiveRequests.Inc()
				defer metrics.ActiveRequests.Dec()
			}

			began := time.Now()
			err := next(c)
			status := c.Response().StatusCode()
			if status == 0 {
				status = http.StatusOK
			}

			if span != nil {
				span.SetAttributes(attribute.Int("http.status_code", status))
				if status >= http.StatusInternalServerError {
					span.SetStatus(codes.Error, http.StatusText(status))
				}
			}
			if metrics != nil {
				metrics.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
				metrics.HTTPRequestDuration.WithLabelValues(method, path).Observe(time.Since(began).Seconds())
			}
			return err
		}
	}
}
