// Package zoom is a small client for the Zoom REST v2 meetings API.
package zoom

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"
)

const (
	DefaultAPIBaseURL = "https://api.zoom.us/v2"
	defaultTimeout    = 30 * time.Second
)

// Observer receives one call per API request. statusCode is 0 on transport errors.
type Observer interface {
	ObserveZoomRequest(operation string, statusCode int)
}

// APIError is returned when Zoom answers with an unexpected status.
type APIError struct {
	Op         string
	StatusCode int
	Code       int    // Zoom error code, when the body carries one.
	Message    string // Zoom error message, when the body carries one.
	Body       string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("zoom %s: status %d: %s (code %d)", e.Op, e.StatusCode, e.Message, e.Code)
	}
	return fmt.Sprintf("zoom %s: status %d: %s", e.Op, e.StatusCode, e.Body)
}

// Client calls the Zoom API with tokens from an oauth2.TokenSource.
type Client struct {
	baseURL  string
	http     *http.Client
	logger   *slog.Logger
	observer Observer
	tracer   trace.Tracer
}

type Option func(*Client)

// WithBaseURL overrides https://api.zoom.us/v2.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithHTTPClient sets the client whose transport carries the OAuth transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

func WithObserver(o Observer) Option {
	return func(c *Client) { c.observer = o }
}

func WithTracer(t trace.Tracer) Option {
	return func(c *Client) { c.tracer = t }
}

// NewClient returns a client authorizing every request with ts.
func NewClient(ts oauth2.TokenSource, opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultAPIBaseURL,
		http:    &http.Client{Timeout: defaultTimeout},
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	base := c.http.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	c.http = &http.Client{
		Transport: &oauth2.Transport{Source: oauth2.ReuseTokenSource(nil, ts), Base: base},
		Timeout:   c.http.Timeout,
	}
	return c
}

// do sends one request and decodes the response into out when it is non-nil.
func (c *Client) do(ctx context.Context, op, method, path string, body any, want int, out any) error {
	if c.tracer != nil {
		var span trace.Span
		ctx, span = c.tracer.Start(ctx, "zoom."+op, trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(
				attribute.String("http.method", method),
				attribute.String("zoom.path", path),
			))
		defer span.End()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("zoom %s: encoding body: %w", op, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("zoom %s: creating request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.observe(ctx, op, 0, err)
		return fmt.Errorf("zoom %s: %w", op, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		c.observe(ctx, op, resp.StatusCode, err)
		return fmt.Errorf("zoom %s: reading response: %w", op, err)
	}
	c.logger.DebugContext(ctx, "zoom request",
		slog.String("op", op),
		slog.String("method", method),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode != want {
		apiErr := &APIError{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
		var payload struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		}
		if json.Unmarshal(respBody, &payload) == nil {
			apiErr.Code, apiErr.Message = payload.Code, payload.Message
		}
		c.observe(ctx, op, resp.StatusCode, apiErr)
		return apiErr
	}
	c.observe(ctx, op, resp.StatusCode, nil)

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("zoom %s: decoding response: %w", op, err)
	}
	return nil
}

func (c *Client) observe(ctx context.Context, op string, status int, err error) {
	if c.observer != nil {
		c.observer.ObserveZoomRequest(op, status)
	}
	if err != nil {
		span := trace.SpanFromContext(ctx)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

func meetingPath(id string) string {
	return "/meetings/" + url.PathEscape(id)
}

// FormatMeetingID renders a numeric meeting ID the way Zoom prints it in URLs.
func FormatMeetingID(id int64) string {
	return strconv.FormatInt(id, 10)
}
