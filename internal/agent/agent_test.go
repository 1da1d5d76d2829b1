package agent

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/jkaninda/huddle/internal/llm"
	"github.com/jkaninda/huddle/internal/tools"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// scriptedProvider replays responses in order and records every request.
type scriptedProvider struct {
	mu        sync.Mutex
	responses []*llm.Response
	requests  []llm.Request
	err       error
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) SendMessage(_ context.Context, req *llm.Request) (*llm.Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	cp := *req
	cp.Messages = append([]llm.Message(nil), req.Messages...)
	p.requests = append(p.requests, cp)
	if p.err != nil {
		return nil, p.err
	}
	if len(p.responses) == 0 {
		return &llm.Response{Blocks: []llm.ContentBlock{llm.TextBlock("done")}, StopReason: llm.StopEndTurn}, nil
	}
	resp := p.responses[0]
	p.responses = p.responses[1:]
	return resp, nil
}

func textResponse(s string) *llm.Response {
	return &llm.Response{
		Blocks:     []llm.ContentBlock{llm.TextBlock(s)},
		Usage:      llm.Usage{InputTokens: 10, OutputTokens: 5},
		StopReason: llm.StopEndTurn,
	}
}

func toolResponse(id, name string, input map[string]any) *llm.Response {
	return &llm.Response{
		Blocks:     []llm.ContentBlock{llm.ToolUseBlock(id, name, input)},
		Usage:      llm.Usage{InputTokens: 20, OutputTokens: 3},
		StopReason: llm.StopToolUse,
	}
}

type echoTool struct{ calls int }

func (e *echoTool) Name() string                { return "echo" }
func (e *echoTool) Description() string         { return "echoes text" }
func (e *echoTool) InputSchema() map[string]any { return tools.Object(map[string]any{"text": tools.Prop("string", "text")}, "text") }
func (e *echoTool) Validate(p map[string]any) error {
	return tools.RequireStrings(p, "text")
}
func (e *echoTool) Execute(_ context.Context, p map[string]any) (*tools.Result, error) {
	e.calls++
	return &tools.Result{Output: "echo: " + tools.String(p, "text"), Success: true}, nil
}

type failingTool struct{}

func (failingTool) Name() string                  { return "explode" }
func (failingTool) Description() string           { return "always fails" }
func (failingTool) InputSchema() map[string]any   { return tools.Object(nil) }
func (failingTool) Validate(map[string]any) error { return nil }
func (failingTool) Execute(context.Context, map[string]any) (*tools.Result, error) {
	return nil, errors.New("zoom is down")
}

func TestProcess_TextOnly(t *testing.T) {
	p := &scriptedProvider{responses: []*llm.Response{textResponse("hello")}}
	a := New("Greeter", p, "Summarize: {email_check_result}", testLogger())

	resp, err := a.Process(context.Background(), &Input{
		Message: "hi",
		State:   map[string]string{"email_check_result": "3 unread"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Text != "hello" || resp.TokensUsed != 15 {
		t.Errorf("resp = %+v", resp)
	}
	if got := p.requests[0].SystemPrompt; got != "Summarize: 3 unread" {
		t.Errorf("system prompt = %q", got)
	}
	if p.requests[0].Tools != nil {
		t.Error("agent without tools must not offer any")
	}
}

func TestProcess_ToolLoop(t *testing.T) {
	p := &scriptedProvider{responses: []*llm.Response{
		toolResponse("call-1", "echo", map[string]any{"text": "ping"}),
		textResponse("pong received"),
	}}
	echo := &echoTool{}
	reg := tools.NewRegistry()
	reg.Register(echo)
	a := New("Echoer", p, "Use tools.", testLogger()).WithTools(reg)

	resp, err := a.Process(context.Background(), &Input{Message: "say ping"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Text != "pong received" {
		t.Errorf("text = %q", resp.Text)
	}
	if resp.TokensUsed != 38 {
		t.Errorf("tokens = %d, want 38", resp.TokensUsed)
	}
	if len(resp.ToolCalls) != 1 || !resp.ToolCalls[0].Success || resp.ToolCalls[0].Output != "echo: ping" {
		t.Errorf("tool calls = %+v", resp.ToolCalls)
	}

	second := p.requests[1].Messages
	if len(second) != 3 {
		t.Fatalf("second request has %d messages, want 3", len(second))
	}
	result := second[2].Blocks[0]
	if result.Type != llm.BlockToolResult || result.ToolUseID != "call-1" || result.Name != "echo" || result.IsError {
		t.Errorf("tool result block = %+v", result)
	}
	if len(p.requests[0].Tools) != 1 || p.requests[0].Tools[0].Name != "echo" {
		t.Errorf("tools offered = %+v", p.requests[0].Tools)
	}
}

func TestProcess_ToolErrorsGoBackToModel(t *testing.T) {
	p := &scriptedProvider{responses: []*llm.Response{
		{Blocks: []llm.ContentBlock{
			llm.ToolUseBlock("a", "explode", nil),
			llm.ToolUseBlock("b", "missing", nil),
			llm.ToolUseBlock("c", "echo", map[string]any{}),
		}},
		textResponse("sorry"),
	}}
	reg := tools.NewRegistry()
	reg.Register(failingTool{}, &echoTool{})
	a := New("Flaky", p, "", testLogger()).WithTools(reg)

	resp, err := a.Process(context.Background(), &Input{Message: "go"})
	if err != nil {
		t.Fatalf("tool failures must not fail the loop: %v", err)
	}
	if resp.Text != "sorry" {
		t.Errorf("text = %q", resp.Text)
	}

	results := p.requests[1].Messages[2].Blocks
	if len(results) != 3 {
		t.Fatalf("results = %d", len(results))
	}
	wants := []string{"zoom is down", "unknown tool: missing", "missing required parameter: text"}
	for i, b := range results {
		if !b.IsError || !strings.HasPrefix(b.Text, "Error: ") || !strings.Contains(b.Text, wants[i]) {
			t.Errorf("result %d = %+v", i, b)
		}
	}
	for _, c := range resp.ToolCalls {
		if c.Success {
			t.Errorf("%s reported success", c.Name)
		}
	}
}

func TestProcess_MaxIterations(t *testing.T) {
	var responses []*llm.Response
	for i := 0; i < 5; i++ {
		responses = append(responses, toolResponse("x", "echo", map[string]any{"text": "again"}))
	}
	p := &scriptedProvider{responses: responses}
	echo := &echoTool{}
	reg := tools.NewRegistry()
	reg.Register(echo)

	resp, err := New("Looper", p, "", testLogger()).WithTools(reg).WithMaxIterations(3).
		Process(context.Background(), &Input{Message: "loop"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Text != MaxIterationsMessage {
		t.Errorf("text = %q", resp.Text)
	}
	if len(p.requests) != 3 || echo.calls != 3 {
		t.Errorf("requests = %d, tool calls = %d", len(p.requests), echo.calls)
	}
}

func TestProcess_ProviderError(t *testing.T) {
	p := &scriptedProvider{err: errors.New("quota exceeded")}
	_, err := New("Broken", p, "", testLogger()).Process(context.Background(), &Input{Message: "x"})
	if err == nil || !strings.Contains(err.Error(), "quota exceeded") {
		t.Errorf("err = %v", err)
	}
}

func TestProcess_Memory(t *testing.T) {
	p := &scriptedProvider{responses: []*llm.Response{textResponse("first"), textResponse("second")}}
	mem := NewMemory(0)
	a := New("Chat", p, "", testLogger()).WithMemory(mem)
	ctx := context.Background()
	id := NewConversationID()

	if _, err := a.Process(ctx, &Input{Message: "one", ConversationID: id}); err != nil {
		t.Fatal(err)
	}
	if _, err := a.Process(ctx, &Input{Message: "two", ConversationID: id}); err != nil {
		t.Fatal(err)
	}

	msgs := p.requests[1].Messages
	if len(msgs) != 3 || msgs[0].Text() != "one" || msgs[1].Text() != "first" || msgs[2].Text() != "two" {
		t.Errorf("history = %+v", msgs)
	}
	if mem.Len(id) != 4 {
		t.Errorf("stored = %d", mem.Len(id))
	}

	if _, err := a.Process(ctx, &Input{Message: "fresh"}); err != nil {
		t.Fatal(err)
	}
	if len(p.requests[2].Messages) != 1 {
		t.Error("empty conversation id must not use memory")
	}
}

func TestRender(t *testing.T) {
	state := map[string]string{"email_analysis": "MEETING_REQUIRED: yes", "meeting_result": "created"}
	got := Render(`Analysis: {email_analysis}
Result: {meeting_result}
Unknown: {calendar_result}
JSON: {"topic": "x"}`, state)
	want := `Analysis: MEETING_REQUIRED: yes
Result: created
Unknown: {calendar_result}
JSON: {"topic": "x"}`
	if got != want {
		t.Errorf("Render =\n%s\nwant\n%s", got, want)
	}
	if Render("{a}", nil) != "{a}" {
		t.Error("nil state must leave the instruction untouched")
	}
}
