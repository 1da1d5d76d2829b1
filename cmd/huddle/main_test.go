package main

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/jkaninda/huddle/internal/config"
	"github.com/jkaninda/huddle/internal/domain"
	"github.com/jkaninda/huddle/internal/gateway/httpapi"
	"github.com/jkaninda/huddle/internal/llm"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestExitCodeFor(t *testing.T) {
	tests := map[int]int{
		http.StatusOK:                  ExitSuccess,
		http.StatusCreated:             ExitSuccess,
		http.StatusBadRequest:          ExitRequestError,
		http.StatusUnauthorized:        ExitRequestError,
		http.StatusTooManyRequests:     ExitRequestError,
		http.StatusInternalServerError: ExitServerError,
		http.StatusBadGateway:          ExitServerError,
	}
	for status, want := range tests {
		if got := exitCodeFor(status); got != want {
			t.Errorf("exitCodeFor(%d) = %d, want %d", status, got, want)
		}
	}
}

func TestFormatStage(t *testing.T) {
	got := formatStage(domain.StageResult{Name: "EmailChecker", Output: "2 unread\n", ToolCalls: 1, Duration: 1500 * time.Millisecond})
	want := "=== EmailChecker (1.5s, 1 tool calls)\n2 unread\n\n"
	if got != want {
		t.Errorf("formatStage = %q, want %q", got, want)
	}

	skipped := formatStage(domain.StageResult{Name: "ZoomMeetingCreator", Skipped: true, Output: "No meeting to add to calendar."})
	if skipped != "=== ZoomMeetingCreator (skipped)\n\n" {
		t.Errorf("skipped stage = %q", skipped)
	}

	failed := formatStage(domain.StageResult{Name: "CalendarAdder", Error: "boom"})
	if !strings.Contains(failed, "Error: boom") {
		t.Errorf("failed stage = %q", failed)
	}
}

func TestParseNow(t *testing.T) {
	loc := time.FixedZone("EAT", 3*3600)

	got, err := parseNow("2025-03-10T09:00:00Z", loc)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)) || got.Location() != loc {
		t.Errorf("RFC 3339: %v", got)
	}

	got, err = parseNow("2025-03-10 12:00:00", loc)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)) {
		t.Errorf("display layout: %v", got)
	}

	if _, err := parseNow("yesterday", loc); err == nil {
		t.Error("expected error")
	}
}

func TestPrintResolution(t *testing.T) {
	r := httpapi.ResolveResponse{Expression: "32 pm", StartTime: "2025-03-10 09:05:00", ZoomTime: "2025-03-10T09:05:00Z", Rule: "fallback", Fallback: true}

	var buf bytes.Buffer
	if err := printResolution(&buf, r, false); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"start_time: 2025-03-10 09:05:00", "rule:       fallback", "fallback:   true"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("output %q missing %q", buf.String(), want)
		}
	}

	buf.Reset()
	if err := printResolution(&buf, r, true); err != nil {
		t.Fatal(err)
	}
	var decoded httpapi.ResolveResponse
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil || decoded != r {
		t.Errorf("json output = %s (%v)", buf.String(), err)
	}
}

func newTestQueryClient(url string) (*queryClient, *bytes.Buffer, *bytes.Buffer) {
	var out, errOut bytes.Buffer
	return &queryClient{baseURL: url, apiKey: "secret", http: http.DefaultClient, out: &out, errOut: &errOut}, &out, &errOut
}

func TestQueryClient_Query(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/query" || r.Header.Get("Authorization") != "Bearer secret" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		var req httpapi.QueryRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		_ = json.NewEncoder(w).Encode(httpapi.QueryResponse{
			Message:        "echo: " + req.Message,
			ConversationID: "conv-1",
			ToolCalls:      []string{"create_zoom_meeting"},
		})
	}))
	defer srv.Close()

	qc, out, errOut := newTestQueryClient(srv.URL)
	if code := qc.query(t.Context(), "hello", ""); code != ExitSuccess {
		t.Fatalf("exit = %d, stderr %q", code, errOut)
	}
	if strings.TrimSpace(out.String()) != "echo: hello" {
		t.Errorf("stdout = %q", out)
	}
	if !strings.Contains(errOut.String(), "conversation_id=conv-1") {
		t.Errorf("stderr = %q", errOut)
	}

	qc.apiKey = "wrong"
	if code := qc.query(t.Context(), "hello", ""); code != ExitRequestError {
		t.Errorf("unauthorized exit = %d", code)
	}
}

func TestQueryClient_ConnectionFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	qc, _, _ := newTestQueryClient(url)
	if code := qc.query(t.Context(), "hello", ""); code != ExitConnectionFailure {
		t.Errorf("exit = %d, want %d", code, ExitConnectionFailure)
	}
}

func TestQueryClient_Stream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, ev := range []string{
			`{"type":"tool_result","tool":"check_emails","success":true}`,
			`{"type":"text","content":"All done"}`,
			`{"type":"done"}`,
		} {
			_, _ = io.WriteString(w, "event: x\ndata: "+ev+"\n\n")
		}
	}))
	defer srv.Close()

	qc, out, errOut := newTestQueryClient(srv.URL)
	if code := qc.stream(t.Context(), "hi", ""); code != ExitSuccess {
		t.Fatalf("exit = %d", code)
	}
	if out.String() != "All done\n" {
		t.Errorf("stdout = %q", out)
	}
	if !strings.Contains(errOut.String(), "[tool: check_emails]") {
		t.Errorf("stderr = %q", errOut)
	}
}

func TestQueryClient_WorkflowFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(httpapi.RunResponse{WorkflowRun: domain.WorkflowRun{
			ID:     uuid.New(),
			Status: domain.RunFailed,
			Error:  "stage EmailChecker: provider down",
			Stages: []domain.StageResult{{Name: "EmailChecker", Error: "provider down"}},
		}})
	}))
	defer srv.Close()

	qc, out, errOut := newTestQueryClient(srv.URL)
	if code := qc.workflow(t.Context(), ""); code != ExitServerError {
		t.Fatalf("exit = %d", code)
	}
	if !strings.Contains(out.String(), "=== EmailChecker (failed") {
		t.Errorf("stdout = %q", out)
	}
	if !strings.Contains(errOut.String(), "status=failed") {
		t.Errorf("stderr = %q", errOut)
	}
}

func TestNewLLMProvider(t *testing.T) {
	cfg := config.Default()
	cfg.Providers.Gemini.APIKey = "g"

	p, err := newLLMProvider(cfg, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	if p.Name() != "gemini" {
		t.Errorf("provider = %q", p.Name())
	}

	// A fallback without credentials is skipped, leaving the primary alone.
	cfg.Providers.Fallback = []string{"openai"}
	p, err = newLLMProvider(cfg, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := p.(*llm.FallbackProvider); ok {
		t.Error("fallback chain built without a usable fallback")
	}

	cfg.Providers.OpenAI = config.OpenAIConfig{APIKey: "o", Model: "gpt-4o-mini"}
	p, err = newLLMProvider(cfg, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := p.(*llm.FallbackProvider); !ok {
		t.Errorf("provider = %T, want *llm.FallbackProvider", p)
	}

	cfg.Providers.Default = "llama"
	if _, err := newLLMProvider(cfg, testLogger()); err == nil {
		t.Error("expected unknown provider error")
	}
}

func TestLazyZoom_RequiresCredentials(t *testing.T) {
	cfg := config.Default()
	z := newLazyZoom(cfg, nil, testLogger())
	if _, err := z.GetMeeting(t.Context(), "1"); err == nil || !strings.Contains(err.Error(), "zoom.client_id") {
		t.Errorf("err = %v", err)
	}
}
