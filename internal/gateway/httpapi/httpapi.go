// Package httpapi implements the HTTP API gateway for Huddle.
//
// Routes under /v1 require a static bearer API key. Health, readiness and
// metrics endpoints are unauthenticated. TLS is expected via a reverse proxy.
package httpapi

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/jkaninda/okapi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/trace"

	"github.com/jkaninda/huddle/internal/calendar"
	"github.com/jkaninda/huddle/internal/domain"
	"github.com/jkaninda/huddle/internal/gateway"
	"github.com/jkaninda/huddle/internal/joiner"
	"github.com/jkaninda/huddle/internal/meetingtime"
	"github.com/jkaninda/huddle/internal/observability"
	"github.com/jkaninda/huddle/internal/ratelimit"
	"github.com/jkaninda/huddle/internal/workflow"
)

const defaultMaxRequestSize = 1 << 20 // 1 MB

// ErrorBody is the standard error response used in OpenAPI documentation.
type ErrorBody struct {
	Error string `json:"error"`
}

// Config configures the HTTP API gateway.
type Config struct {
	ListenAddr string // e.g., ":8080"
	EnableDocs bool
	APIKeys    map[string]string  // API key → user ID mapping.
	Limiter    *ratelimit.Limiter // Per-user request throttle. nil = unlimited.

	// Observability
	MetricsRegistry *prometheus.Registry            // Custom Prometheus registry for /metrics.
	MetricsPath     string                          // Path for metrics endpoint. Default: "/metrics".
	HealthChecker   *observability.HealthChecker    // Health checker for /readyz.
	Metrics         *observability.MetricsCollector // Metrics collector for HTTP middleware.
	Tracer          trace.Tracer                    // OTel tracer for HTTP middleware.
}

// WorkflowRunner runs the email workflow. *workflow.Workflow satisfies it.
type WorkflowRunner interface {
	Run(ctx context.Context, request string) (*workflow.Result, error)
}

// Services are the domain components the routes call into. A nil field
// leaves its routes unmounted.
type Services struct {
	Assistant gateway.Assistant
	Workflow  WorkflowRunner
	Runs      workflow.RunStore
	Resolver  *meetingtime.Resolver
	Calendar  *calendar.Service
	Joiner    *joiner.Joiner
}

// Gateway is the HTTP API gateway.
type Gateway struct {
	config   Config
	services Services
	logger   *slog.Logger
	server   *http.Server

	// Extra handlers mounted on the HTTP mux (e.g., WebSocket chat endpoint).
	extraRoutes []extraRoute

	okapi *okapi.Okapi
	group *okapi.Group
}

// extraRoute stores an additional handler to be mounted on the HTTP mux.
type extraRoute struct {
	pattern string
	handler http.Handler
}

// NewGateway creates an HTTP API gateway.
func NewGateway(cfg Config, svc Services, logger *slog.Logger) *Gateway {
	return &Gateway{
		config:   cfg,
		services: svc,
		logger:   logger,
		okapi:    okapi.New(okapi.WithMaxMultipartMemory(defaultMaxRequestSize)),
	}
}

func (g *Gateway) WithOpenAPIDocs() *Gateway {
	g.okapi.WithOpenAPIDocs(
		okapi.OpenAPI{
			Title:   "Huddle",
			Version: "v1",
		},
	)
	return g
}

// WithHandler mounts an additional GET handler at the given pattern.
// Extra handlers do their own authentication.
func (g *Gateway) WithHandler(pattern string, handler http.Handler) *Gateway {
	g.extraRoutes = append(g.extraRoutes, extraRoute{pattern: pattern, handler: handler})
	return g
}

// Start launches the HTTP server and blocks until it exits or ctx is canceled.
func (g *Gateway) Start(ctx context.Context) error {
	if g.config.Metrics != nil || g.config.Tracer != nil {
		g.okapi.Use(observability.MetricsMiddleware(g.config.Metrics, g.config.Tracer))
	}

	g.group = g.okapi.Group("/v1", g.authenticate)
	g.routes()

	for _, er := range g.extraRoutes {
		g.okapi.HandleStd("GET", er.pattern, er.handler.ServeHTTP)
	}

	// Observability endpoints (unauthenticated).
	g.okapi.Get("/healthz", g.handleLiveness)
	g.okapi.Get("/readyz", g.handleReadiness)

	if g.config.MetricsRegistry != nil {
		path := g.config.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		g.okapi.HandleStd("GET", path, promhttp.HandlerFor(g.config.MetricsRegistry, promhttp.HandlerOpts{}).ServeHTTP)
	}
	if g.config.EnableDocs {
		g.WithOpenAPIDocs()
	}

	g.server = &http.Server{
		Addr:              g.config.ListenAddr,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      5 * time.Minute, // Workflow runs make several LLM round trips.
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	g.logger.Info("http api gateway starting", slog.String("addr", g.config.ListenAddr))

	err := g.okapi.StartServer(g.server)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop gracefully shuts down the HTTP server.
func (g *Gateway) Stop(_ context.Context) error {
	if g.server == nil {
		return nil
	}
	g.logger.Info("http api gateway stopping")
	return g.okapi.Shutdown(g.server)
}

func (g *Gateway) routes() {
	svc := g.services

	if svc.Assistant != nil {
		g.group.Post("/query", g.handleQuery,
			okapi.DocSummary("Ask the Zoom assistant"),
			okapi.DocTags("Assistant"),
			okapi.DocRequestBody(QueryRequest{}),
			okapi.DocResponse(QueryResponse{}),
			okapi.DocResponse(http.StatusBadRequest, ErrorBody{}),
			okapi.DocResponse(http.StatusUnauthorized, ErrorBody{}),
		)
		g.group.Post("/query/stream", g.handleQueryStream,
			okapi.DocSummary("Ask the Zoom assistant and stream tool calls via SSE"),
			okapi.DocTags("Assistant"),
			okapi.DocRequestBody(QueryRequest{}),
			okapi.DocResponse(http.StatusBadRequest, ErrorBody{}),
			okapi.DocResponse(http.StatusUnauthorized, ErrorBody{}),
		)
	}

	if svc.Workflow != nil {
		g.group.Post("/workflow/run", g.handleWorkflowRun,
			okapi.DocSummary("Run the email workflow"),
			okapi.DocTags("Workflow"),
			okapi.DocRequestBody(WorkflowRunRequest{}),
			okapi.DocResponse(RunResponse{}),
			okapi.DocResponse(http.StatusUnauthorized, ErrorBody{}),
		)
	}
	if svc.Runs != nil {
		g.group.Get("/workflow/runs", g.handleWorkflowRuns,
			okapi.DocSummary("List recent workflow runs"),
			okapi.DocTags("Workflow"),
			okapi.DocResponse([]RunResponse{}),
		)
		g.group.Get("/workflow/runs/{id}", g.handleWorkflowRunGet,
			okapi.DocSummary("Get a workflow run"),
			okapi.DocTags("Workflow"),
			okapi.DocPathParam("id", "string", "Run ID (UUID)"),
			okapi.DocResponse(RunResponse{}),
			okapi.DocResponse(http.StatusNotFound, ErrorBody{}),
		)
	}

	if svc.Resolver != nil {
		g.group.Post("/time/resolve", g.handleResolve,
			okapi.DocSummary("Resolve a natural-language meeting time"),
			okapi.DocTags("Time"),
			okapi.DocRequestBody(ResolveRequest{}),
			okapi.DocResponse(ResolveResponse{}),
			okapi.DocResponse(http.StatusUnprocessableEntity, ErrorBody{}),
		)
	}

	if svc.Calendar != nil {
		g.group.Get("/events", g.handleEventList,
			okapi.DocSummary("List calendar events, optionally for one date"),
			okapi.DocTags("Calendar"),
			okapi.DocResponse([]domain.Event{}),
		)
		g.group.Post("/events", g.handleEventCreate,
			okapi.DocSummary("Add a meeting to the calendar"),
			okapi.DocTags("Calendar"),
			okapi.DocRequestBody(calendar.AddRequest{}),
			okapi.DocResponse(http.StatusCreated, domain.Event{}),
			okapi.DocResponse(http.StatusBadRequest, ErrorBody{}),
		)
	}

	if svc.Joiner != nil {
		g.group.Post("/join/check", g.handleJoinCheck,
			okapi.DocSummary("Open meetings starting within the join window"),
			okapi.DocTags("Calendar"),
			okapi.DocResponse(JoinResponse{}),
		)
	}
}

// --- Authentication ---

// authenticate validates the bearer API key and stores the mapped user ID.
func (g *Gateway) authenticate(next okapi.HandlerFunc) okapi.HandlerFunc {
	return func(c *okapi.Context) error {
		userID, err := Authorize(g.config.APIKeys, c.Header("Authorization"))
		if err != nil {
			return c.AbortUnauthorized(err.Error())
		}
		if err := g.config.Limiter.Allow(userID); err != nil {
			g.logger.WarnContext(c.Context(), "rate limited", slog.String("user_id", userID))
			return c.JSON(http.StatusTooManyRequests, ErrorBody{Error: err.Error()})
		}
		c.Set("userID", userID)
		return next(c)
	}
}

var (
	errMissingAuth = errors.New("missing or invalid Authorization header")
	errInvalidKey  = errors.New("invalid API key")
)

// Authorize maps an Authorization header to a user ID. Every key is
// compared in constant time.
func Authorize(keys map[string]string, header string) (string, error) {
	apiKey, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || apiKey == "" {
		return "", errMissingAuth
	}
	userID := ""
	for key, user := range keys {
		if subtle.ConstantTimeCompare([]byte(apiKey), []byte(key)) == 1 {
			userID = user
		}
	}
	if userID == "" {
		return "", errInvalidKey
	}
	return userID, nil
}
