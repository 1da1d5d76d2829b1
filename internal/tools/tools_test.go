package tools

import (
	"context"
	"strings"
	"testing"
)

type stubTool struct{ name string }

func (s stubTool) Name() string                  { return s.name }
func (s stubTool) Description() string           { return "stub " + s.name }
func (s stubTool) InputSchema() map[string]any   { return Object(nil) }
func (s stubTool) Validate(map[string]any) error { return nil }
func (s stubTool) Execute(context.Context, map[string]any) (*Result, error) {
	return &Result{Output: s.name, Success: true}, nil
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	reg.Register(stubTool{"check_emails"}, stubTool{"mark_as_read"}, stubTool{"add_to_calendar"})

	if got := strings.Join(reg.List(), ","); got != "check_emails,mark_as_read,add_to_calendar" {
		t.Errorf("List = %s", got)
	}
	if reg.Get("nope") != nil {
		t.Error("Get of unknown tool should be nil")
	}

	sub, err := reg.Subset("add_to_calendar", "check_emails")
	if err != nil {
		t.Fatal(err)
	}
	defs := ToLLMDefinitions(sub)
	if len(defs) != 2 || defs[0].Name != "add_to_calendar" || defs[1].Description != "stub check_emails" {
		t.Errorf("defs = %+v", defs)
	}
	if _, err := reg.Subset("missing"); err == nil {
		t.Error("expected unknown tool error")
	}
	if ToLLMDefinitions(nil) != nil {
		t.Error("nil registry should have no definitions")
	}
}

func TestRegistry_DuplicatePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate registration")
		}
	}()
	reg := NewRegistry()
	reg.Register(stubTool{"x"}, stubTool{"x"})
}

func TestParams(t *testing.T) {
	params := map[string]any{
		"id_num":   float64(85746065432),
		"id_str":   "123",
		"duration": "30",
		"bad":      "thirty",
		"float":    1.5,
		"blank":    "  ",
	}
	if String(params, "id_num") != "85746065432" {
		t.Errorf("String(float) = %q", String(params, "id_num"))
	}
	if String(params, "float") != "1.5" {
		t.Errorf("String(1.5) = %q", String(params, "float"))
	}
	if n, err := Int(params, "duration", 60); err != nil || n != 30 {
		t.Errorf("Int(quoted) = %d, %v", n, err)
	}
	if n, err := Int(params, "missing", 60); err != nil || n != 60 {
		t.Errorf("Int(default) = %d, %v", n, err)
	}
	if _, err := Int(params, "bad", 0); err == nil {
		t.Error("expected error for non-numeric string")
	}
	if OptionalString(params, "blank") != nil {
		t.Error("blank string should be absent")
	}
	if err := RequireStrings(params, "id_str", "blank"); err == nil || !strings.Contains(err.Error(), "blank") {
		t.Errorf("RequireStrings = %v", err)
	}
}

func TestTruncateOutput(t *testing.T) {
	long := strings.Repeat("a", 100)
	got := TruncateOutput(long, 50)
	if len(got) != 50 || !strings.HasSuffix(got, "[output truncated]") {
		t.Errorf("TruncateOutput = %q", got)
	}
	if TruncateOutput("short", 50) != "short" {
		t.Error("short strings must pass through")
	}
}
