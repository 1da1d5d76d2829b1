package llm

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
)

type stubProvider struct {
	name  string
	err   error
	calls int
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) SendMessage(context.Context, *Request) (*Response, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &Response{Blocks: []ContentBlock{TextBlock(s.name)}, StopReason: StopEndTurn}, nil
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestFallbackProvider(t *testing.T) {
	primary := &stubProvider{name: "gemini", err: errors.New("503")}
	secondary := &stubProvider{name: "openai"}

	f, err := NewFallbackProvider(discard(), primary, nil, secondary)
	if err != nil {
		t.Fatal(err)
	}
	if f.Name() != "gemini+fallback" {
		t.Errorf("name = %q", f.Name())
	}
	resp, err := f.SendMessage(context.Background(), &Request{})
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if resp.Text() != "openai" {
		t.Errorf("answered by %q", resp.Text())
	}
	if primary.calls != 1 || secondary.calls != 1 {
		t.Errorf("calls = %d/%d", primary.calls, secondary.calls)
	}
}

func TestFallbackProvider_AllFail(t *testing.T) {
	cause := errors.New("boom")
	f, _ := NewFallbackProvider(discard(), &stubProvider{name: "a", err: cause}, &stubProvider{name: "b", err: cause})
	if _, err := f.SendMessage(context.Background(), &Request{}); !errors.Is(err, cause) {
		t.Fatalf("err = %v", err)
	}
}

func TestFallbackProvider_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	second := &stubProvider{name: "b"}
	f, _ := NewFallbackProvider(discard(), &stubProvider{name: "a", err: errors.New("x")}, second)
	if _, err := f.SendMessage(ctx, &Request{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
	if second.calls != 0 {
		t.Error("second provider should not be called after cancellation")
	}
}

func TestNewFallbackProvider_Empty(t *testing.T) {
	if _, err := NewFallbackProvider(discard(), nil); err == nil {
		t.Fatal("expected error")
	}
}

func TestResponseHelpers(t *testing.T) {
	r := &Response{Blocks: []ContentBlock{
		TextBlock("a"),
		ToolUseBlock("1", "check_emails", nil),
		TextBlock("b"),
	}}
	if r.Text() != "ab" {
		t.Errorf("text = %q", r.Text())
	}
	if len(r.ToolCalls()) != 1 {
		t.Errorf("tool calls = %d", len(r.ToolCalls()))
	}
	if UserText("x").Text() != "x" || AssistantText("y").Role != RoleAssistant {
		t.Error("message helpers")
	}
}
