package httpapi

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/jkaninda/okapi"

	"github.com/jkaninda/huddle/internal/agent"
	"github.com/jkaninda/huddle/internal/calendar"
	"github.com/jkaninda/huddle/internal/domain"
	"github.com/jkaninda/huddle/internal/joiner"
	"github.com/jkaninda/huddle/internal/meetingtime"
	"github.com/jkaninda/huddle/internal/workflow"
)

const defaultRunListLimit = 20

// QueryRequest is the JSON body for POST /v1/query.
type QueryRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id,omitempty"` // Empty = new conversation.
}

// QueryResponse is the JSON response for POST /v1/query.
type QueryResponse struct {
	Message        string   `json:"message"`
	ConversationID string   `json:"conversation_id"`
	TokensUsed     int      `json:"tokens_used,omitempty"`
	ToolCalls      []string `json:"tool_calls,omitempty"`
}

func (g *Gateway) handleQuery(c *okapi.Context) error {
	userID := c.GetString("userID")

	var req QueryRequest
	if err := c.Bind(&req); err != nil {
		return c.AbortBadRequest("invalid request body")
	}
	if strings.TrimSpace(req.Message) == "" {
		return c.AbortBadRequest("message is required")
	}
	if req.ConversationID == "" {
		req.ConversationID = agent.NewConversationID()
	}

	g.logger.InfoContext(c.Context(), "http query",
		slog.String("user_id", userID),
		slog.String("conversation_id", req.ConversationID),
	)

	resp, err := g.services.Assistant.Process(c.Context(), &agent.Input{
		Message:        req.Message,
		ConversationID: req.ConversationID,
	})
	if err != nil {
		g.logger.ErrorContext(c.Context(), "agent processing failed",
			slog.String("conversation_id", req.ConversationID),
			slog.String("error", err.Error()),
		)
		return c.AbortInternalServerError("processing failed")
	}
	return c.OK(newQueryResponse(resp, req.ConversationID))
}

func newQueryResponse(resp *agent.Response, conversationID string) QueryResponse {
	out := QueryResponse{
		Message:        resp.Text,
		ConversationID: conversationID,
		TokensUsed:     resp.TokensUsed,
	}
	for _, tc := range resp.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, tc.Name)
	}
	return out
}

// --- Workflow ---

// WorkflowRunRequest is the JSON body for POST /v1/workflow/run.
type WorkflowRunRequest struct {
	Request string `json:"request,omitempty"` // Empty = default inbox check.
}

// RunResponse is a workflow run plus the derived final output.
type RunResponse struct {
	domain.WorkflowRun
	Output          string `json:"output,omitempty"`
	MeetingRequired *bool  `json:"meeting_required,omitempty"`
}

func newRunResponse(res *workflow.Result) RunResponse {
	out := RunResponse{WorkflowRun: *res.Run, Output: res.Output()}
	if res.Analysis != nil {
		required := res.Analysis.MeetingRequired
		out.MeetingRequired = &required
	}
	return out
}

func (g *Gateway) handleWorkflowRun(c *okapi.Context) error {
	var req WorkflowRunRequest
	if err := c.Bind(&req); err != nil {
		return c.AbortBadRequest("invalid request body")
	}

	g.logger.InfoContext(c.Context(), "http workflow run", slog.String("user_id", c.GetString("userID")))

	res, err := g.services.Workflow.Run(c.Context(), req.Request)
	if res == nil {
		g.logger.ErrorContext(c.Context(), "workflow run failed to start", slog.String("error", err.Error()))
		return c.AbortInternalServerError("workflow run failed")
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, newRunResponse(res))
	}
	return c.OK(newRunResponse(res))
}

func (g *Gateway) handleWorkflowRuns(c *okapi.Context) error {
	runs, err := g.services.Runs.ListRuns(c.Context(), defaultRunListLimit)
	if err != nil {
		return c.AbortInternalServerError("listing runs failed")
	}
	return c.OK(runs)
}

func (g *Gateway) handleWorkflowRunGet(c *okapi.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.AbortBadRequest("invalid run ID")
	}
	run, err := g.services.Runs.GetRun(c.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrRunNotFound) {
			return c.JSON(http.StatusNotFound, ErrorBody{Error: "run not found"})
		}
		return c.AbortInternalServerError("getting run failed")
	}
	return c.OK(run)
}

// --- Time ---

// ResolveRequest is the JSON body for POST /v1/time/resolve.
type ResolveRequest struct {
	Expression string `json:"expression"`
	Strict     bool   `json:"strict,omitempty"` // Reject instead of falling back.
}

// ResolveResponse is the JSON response for POST /v1/time/resolve.
type ResolveResponse struct {
	Expression string `json:"expression"`
	StartTime  string `json:"start_time"` // Display layout in the resolver location.
	ZoomTime   string `json:"zoom_time"`  // UTC, as sent to Zoom.
	Rule       string `json:"rule"`
	Fallback   bool   `json:"fallback"`
}

// ResolveExpression resolves req. Strict requests that would fall back
// return an error wrapping meetingtime.ErrUnparseable.
func ResolveExpression(r *meetingtime.Resolver, req ResolveRequest) (ResolveResponse, error) {
	var res meetingtime.Resolution
	if req.Strict {
		var err error
		if res, err = r.ResolveStrict(req.Expression); err != nil {
			return ResolveResponse{}, err
		}
	} else {
		res = r.ResolveDetailed(req.Expression)
	}
	return ResolveResponse{
		Expression: req.Expression,
		StartTime:  meetingtime.FormatDisplay(res.Time),
		ZoomTime:   meetingtime.FormatZoom(res.Time),
		Rule:       res.Rule,
		Fallback:   res.Fallback,
	}, nil
}

func (g *Gateway) handleResolve(c *okapi.Context) error {
	var req ResolveRequest
	if err := c.Bind(&req); err != nil {
		return c.AbortBadRequest("invalid request body")
	}
	resp, err := ResolveExpression(g.services.Resolver, req)
	if err != nil {
		return c.JSON(http.StatusUnprocessableEntity, ErrorBody{Error: err.Error()})
	}
	return c.OK(resp)
}

// --- Calendar ---

func (g *Gateway) handleEventList(c *okapi.Context) error {
	events, err := g.services.Calendar.List(c.Context(), c.Query("date"))
	if err != nil {
		return c.AbortInternalServerError("listing events failed")
	}
	return c.OK(events)
}

func (g *Gateway) handleEventCreate(c *okapi.Context) error {
	var req calendar.AddRequest
	if err := c.Bind(&req); err != nil {
		return c.AbortBadRequest("invalid request body")
	}
	if strings.TrimSpace(req.Title) == "" {
		return c.AbortBadRequest("title is required")
	}
	ev, err := g.services.Calendar.AddMeeting(c.Context(), req)
	if err != nil {
		g.logger.ErrorContext(c.Context(), "adding event failed", slog.String("error", err.Error()))
		return c.AbortInternalServerError("adding event failed")
	}
	return c.JSON(http.StatusCreated, ev)
}

// JoinResponse is the JSON response for POST /v1/join/check.
type JoinResponse struct {
	Joined []domain.Event `json:"joined"`
	Report string         `json:"report"`
	Error  string         `json:"error,omitempty"` // Meetings that could not be opened.
}

func newJoinResponse(events []domain.Event, err error) JoinResponse {
	if events == nil {
		events = []domain.Event{}
	}
	out := JoinResponse{Joined: events, Report: joiner.Report(events)}
	if err != nil {
		out.Error = err.Error()
	}
	return out
}

func (g *Gateway) handleJoinCheck(c *okapi.Context) error {
	events, err := g.services.Joiner.Join(c.Context())
	if err != nil && len(events) == 0 {
		g.logger.ErrorContext(c.Context(), "join check failed", slog.String("error", err.Error()))
		return c.AbortInternalServerError("join check failed")
	}
	return c.OK(newJoinResponse(events, err))
}

// --- Health ---

// HealthResponse is the JSON response for GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
}

// handleLiveness is the Kubernetes liveness probe
func (g *Gateway) handleLiveness(c *okapi.Context) error {
	return c.OK(&HealthResponse{Status: "ok"})
}

// handleReadiness checks all registered dependencies and returns 200 or 503.
func (g *Gateway) handleReadiness(c *okapi.Context) error {
	if g.config.HealthChecker == nil {
		return c.OK(&HealthResponse{Status: "ok"})
	}

	status := g.config.HealthChecker.CheckReady(c.Context())
	code := http.StatusOK
	if status.Status != "ok" {
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, status)
}
