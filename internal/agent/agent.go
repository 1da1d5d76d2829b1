// Package agent runs the LLM tool-use loop for one named agent.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/jkaninda/huddle/internal/llm"
	"github.com/jkaninda/huddle/internal/observability"
	"github.com/jkaninda/huddle/internal/tools"
)

// DefaultMaxIterations bounds the tool-use loop.
const DefaultMaxIterations = 10

// DefaultMaxMessageBytes caps the size of one user message (32 KB).
const DefaultMaxMessageBytes = 32768

// MaxIterationsMessage is returned as the response text when the loop is cut off.
const MaxIterationsMessage = "Maximum tool use iterations reached. Please refine your request."

// Input is one request to an agent.
type Input struct {
	Message string
	// State fills {key} placeholders in the agent instruction.
	State map[string]string
	// ConversationID selects the memory thread. Empty means no memory.
	ConversationID string
}

// Response is the agent's final answer.
type Response struct {
	Text           string
	TokensUsed     int
	ToolCalls      []ToolCall
	ConversationID string
}

// ToolCall summarizes one tool execution inside the loop.
type ToolCall struct {
	Name     string
	Input    map[string]any
	Output   string
	Success  bool
	Duration time.Duration
}

// Agent pairs an instruction with a provider and an optional tool registry.
type Agent struct {
	name          string
	instruction   string
	provider      llm.Provider
	logger        *slog.Logger
	registry      *tools.Registry // nil = no tools
	memory        *Memory         // nil = every call starts fresh
	maxIterations int
	maxTokens     int
	metrics       *observability.MetricsCollector
	tracer        trace.Tracer
}

// New creates an agent. instruction may hold {key} placeholders.
func New(name string, provider llm.Provider, instruction string, logger *slog.Logger) *Agent {
	return &Agent{
		name:        name,
		instruction: instruction,
		provider:    provider,
		logger:      logger.With(slog.String("agent", name)),
		tracer:      noop.NewTracerProvider().Tracer(""),
	}
}

// WithTools attaches the tools the agent may call.
func (a *Agent) WithTools(reg *tools.Registry) *Agent {
	a.registry = reg
	return a
}

// WithMaxIterations sets the tool-use loop limit. n <= 0 keeps the default.
func (a *Agent) WithMaxIterations(n int) *Agent {
	a.maxIterations = n
	return a
}

// WithMaxTokens sets the per-request output token limit.
func (a *Agent) WithMaxTokens(n int) *Agent {
	a.maxTokens = n
	return a
}

// WithMemory enables conversation history keyed by Input.ConversationID.
func (a *Agent) WithMemory(m *Memory) *Agent {
	a.memory = m
	return a
}

// WithObservability records tool metrics and agent spans.
func (a *Agent) WithObservability(obs *observability.Observability) *Agent {
	a.metrics = obs.MetricsOrNil()
	a.tracer = obs.TracerOrNoop()
	return a
}

// Name returns the agent name.
func (a *Agent) Name() string { return a.name }

// Tools returns the attached registry, possibly nil.
func (a *Agent) Tools() *tools.Registry { return a.registry }

// Process sends the message to the model and executes requested tools until
// the model answers with text or the iteration limit is reached.
func (a *Agent) Process(ctx context.Context, input *Input) (*Response, error) {
	ctx, span := a.tracer.Start(ctx, "agent.process", trace.WithAttributes(
		attribute.String("agent", a.name),
		attribute.String("conversation_id", input.ConversationID),
	))
	defer span.End()

	var history []llm.Message
	remember := a.memory != nil && input.ConversationID != ""
	if remember {
		history = a.memory.Load(input.ConversationID)
	}
	start := len(history)
	history = append(history, llm.UserText(truncateContent(input.Message)))

	req := &llm.Request{
		SystemPrompt: Render(a.instruction, input.State),
		MaxTokens:    a.maxTokens,
		Tools:        tools.ToLLMDefinitions(a.registry),
	}

	maxIter := a.maxIterations
	if maxIter <= 0 {
		maxIter = DefaultMaxIterations
	}

	resp := &Response{ConversationID: input.ConversationID}
	for iter := 0; iter < maxIter; iter++ {
		req.Messages = history
		llmResp, err := a.send(ctx, req, iter)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("%s: llm request failed: %w", a.name, err)
		}
		resp.TokensUsed += llmResp.Usage.Total()
		history = append(history, llm.Message{Role: llm.RoleAssistant, Blocks: llmResp.Blocks})

		calls := llmResp.ToolCalls()
		if len(calls) == 0 {
			resp.Text = llmResp.Text()
			a.remember(remember, input.ConversationID, history[start:])
			return resp, nil
		}

		a.logger.InfoContext(ctx, "executing tool calls",
			slog.Int("iteration", iter+1),
			slog.Int("tool_calls", len(calls)),
		)
		results, summaries := a.executeToolCalls(ctx, calls)
		resp.ToolCalls = append(resp.ToolCalls, summaries...)
		history = append(history, llm.Message{Role: llm.RoleUser, Blocks: results})
	}

	a.logger.WarnContext(ctx, "max tool-use iterations reached", slog.Int("max_iterations", maxIter))
	a.remember(remember, input.ConversationID, history[start:])
	resp.Text = MaxIterationsMessage
	return resp, nil
}

func (a *Agent) send(ctx context.Context, req *llm.Request, iter int) (*llm.Response, error) {
	ctx, span := a.tracer.Start(ctx, "agent.iteration", trace.WithAttributes(
		attribute.String("agent", a.name),
		attribute.Int("iteration", iter+1),
	))
	defer span.End()

	resp, err := a.provider.SendMessage(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.String("stop_reason", resp.StopReason))
	return resp, nil
}

func (a *Agent) remember(ok bool, id string, msgs []llm.Message) {
	if ok {
		a.memory.Append(id, msgs...)
	}
}

// executeToolCalls runs each tool_use block and builds the matching
// tool_result blocks. Failures go back to the model as error results.
func (a *Agent) executeToolCalls(ctx context.Context, calls []llm.ContentBlock) ([]llm.ContentBlock, []ToolCall) {
	blocks := make([]llm.ContentBlock, 0, len(calls))
	summaries := make([]ToolCall, 0, len(calls))

	for _, call := range calls {
		start := time.Now()
		res, err := a.ExecuteTool(ctx, call.Name, call.Input)
		summary := ToolCall{Name: call.Name, Input: call.Input, Duration: time.Since(start)}

		if err != nil {
			a.logger.WarnContext(ctx, "tool failed",
				slog.String("tool", call.Name),
				slog.String("error", err.Error()),
			)
			summary.Output = "Error: " + err.Error()
			blocks = append(blocks, llm.ToolResultBlock(call.ID, call.Name, summary.Output, true))
			summaries = append(summaries, summary)
			continue
		}

		summary.Output = tools.TruncateOutput(res.Output, tools.MaxOutputBytes)
		summary.Success = res.Success
		blocks = append(blocks, llm.ToolResultBlock(call.ID, call.Name, summary.Output, !res.Success))
		summaries = append(summaries, summary)
	}
	return blocks, summaries
}

// ExecuteTool looks up, validates and runs one tool.
func (a *Agent) ExecuteTool(ctx context.Context, name string, params map[string]any) (*tools.Result, error) {
	ctx, span := a.tracer.Start(ctx, "agent.execute_tool", trace.WithAttributes(
		attribute.String("agent", a.name),
		attribute.String("tool", name),
	))
	defer span.End()

	if a.registry == nil {
		return nil, fmt.Errorf("no tools available to %s", a.name)
	}
	tool := a.registry.Get(name)
	if tool == nil {
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
	if params == nil {
		params = map[string]any{}
	}
	if err := tool.Validate(params); err != nil {
		return nil, fmt.Errorf("tool %s validation: %w", name, err)
	}

	a.logger.DebugContext(ctx, "executing tool", slog.String("tool", name))
	start := time.Now()
	res, err := tool.Execute(ctx, params)
	a.metrics.ObserveToolCall(name, err == nil && res.Success, time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("tool %s execution failed: %w", name, err)
	}
	return res, nil
}

func truncateContent(s string) string {
	if len(s) <= DefaultMaxMessageBytes {
		return s
	}
	return s[:DefaultMaxMessageBytes] + "\n[message truncated]"
}
