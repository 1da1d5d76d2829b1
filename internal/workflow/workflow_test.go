package workflow

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/jkaninda/huddle/internal/domain"
	"github.com/jkaninda/huddle/internal/llm"
	"github.com/jkaninda/huddle/internal/observability"
	"github.com/jkaninda/huddle/internal/tools"
)

const analysisYes = `MEETING_REQUIRED: yes
URGENCY: urgent
MEETING_DETAILS: {
    "topic": "Project status",
    "description": "Discuss the project status",
    "duration": 30
}
IMPORTANT: [Deliverables due EOD]
SUSPICIOUS: [Prize email from unknown@suspicious.com]`

const analysisNo = `MEETING_REQUIRED: no
URGENCY: normal
MEETING_DETAILS: {}
IMPORTANT: []
SUSPICIOUS: []`

// stageProvider answers by stage, recognised from the system prompt.
type stageProvider struct {
	mu       sync.Mutex
	answers  map[string]string // instruction prefix -> reply
	failOn   string
	prompts  []string
	analysis string
}

func (p *stageProvider) Name() string { return "stage" }

func (p *stageProvider) SendMessage(_ context.Context, req *llm.Request) (*llm.Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prompts = append(p.prompts, req.SystemPrompt)

	if p.failOn != "" && strings.HasPrefix(req.SystemPrompt, p.failOn) {
		return nil, errors.New("model unavailable")
	}
	reply := "ok"
	switch {
	case strings.HasPrefix(req.SystemPrompt, "You are an email checking"):
		reply = "3 unread emails, 2 urgent."
	case strings.HasPrefix(req.SystemPrompt, "You are an email analysis"):
		reply = p.analysis
	case strings.HasPrefix(req.SystemPrompt, "You are a Zoom"):
		reply = `Your meeting "Project status" has been created`
	case strings.HasPrefix(req.SystemPrompt, "You are a calendar"):
		reply = "Meeting added to calendar successfully."
	case strings.HasPrefix(req.SystemPrompt, "You are a meeting attendance"):
		reply = "No immediate meetings to join."
	}
	return &llm.Response{
		Blocks:     []llm.ContentBlock{llm.TextBlock(reply)},
		Usage:      llm.Usage{InputTokens: 4, OutputTokens: 1},
		StopReason: llm.StopEndTurn,
	}, nil
}

type namedTool struct{ name string }

func (n namedTool) Name() string                  { return n.name }
func (n namedTool) Description() string           { return n.name }
func (n namedTool) InputSchema() map[string]any   { return tools.Object(nil) }
func (n namedTool) Validate(map[string]any) error { return nil }
func (n namedTool) Execute(context.Context, map[string]any) (*tools.Result, error) {
	return &tools.Result{Output: n.name, Success: true}, nil
}

func stageTools() *tools.Registry {
	reg := tools.NewRegistry()
	seen := map[string]bool{}
	for _, st := range DefaultStages() {
		for _, name := range st.Tools {
			if !seen[name] {
				seen[name] = true
				reg.Register(namedTool{name})
			}
		}
	}
	return reg
}

func newWorkflow(t *testing.T, p llm.Provider) (*Workflow, *MemoryRunStore) {
	t.Helper()
	wf, err := New(p, stageTools(), DefaultStages(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatal(err)
	}
	store := NewMemoryRunStore()
	return wf.WithStore(store), store
}

func TestRun_MeetingRequired(t *testing.T) {
	p := &stageProvider{analysis: analysisYes}
	wf, store := newWorkflow(t, p)
	metrics := observability.NewMetricsCollector()
	wf.WithObservability(&observability.Observability{Metrics: metrics})

	var seen []string
	wf.OnStage(func(sr domain.StageResult) { seen = append(seen, sr.Name) })

	res, err := wf.Run(context.Background(), "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Run.Status != domain.RunSucceeded || len(res.Run.Stages) != 5 || len(seen) != 5 {
		t.Fatalf("run = %+v", res.Run)
	}
	if len(p.prompts) != 5 {
		t.Errorf("model calls = %d, want 5", len(p.prompts))
	}

	// Each stage sees the previous stage's output.
	if !strings.Contains(p.prompts[1], "3 unread emails, 2 urgent.") {
		t.Error("analyzer did not receive the email check result")
	}
	if !strings.Contains(p.prompts[2], "MEETING_REQUIRED: yes") {
		t.Error("zoom stage did not receive the analysis")
	}
	if !strings.Contains(p.prompts[3], `Your meeting "Project status" has been created`) {
		t.Error("calendar stage did not receive the meeting result")
	}
	if !strings.Contains(p.prompts[4], "Meeting added to calendar successfully.") {
		t.Error("joiner stage did not receive the calendar result")
	}

	if res.Analysis == nil || !res.Analysis.MeetingRequired || res.Analysis.Details.Duration != 30 {
		t.Errorf("analysis = %+v", res.Analysis)
	}
	if res.State[KeyMeetingJoin] != "No immediate meetings to join." || res.Output() != "No immediate meetings to join." {
		t.Errorf("state = %v", res.State)
	}
	if res.Run.TokensUsed != 25 {
		t.Errorf("tokens = %d", res.Run.TokensUsed)
	}

	stored, err := store.GetRun(context.Background(), res.Run.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Status != domain.RunSucceeded || len(stored.Stages) != 5 || stored.FinishedAt == nil {
		t.Errorf("stored = %+v", stored)
	}
	if v := testutil.ToFloat64(metrics.WorkflowRunsTotal.WithLabelValues("succeeded")); v != 1 {
		t.Errorf("runs_total = %v", v)
	}
}

func TestRun_NoMeetingSkipsZoomAndCalendar(t *testing.T) {
	p := &stageProvider{analysis: analysisNo}
	wf, _ := newWorkflow(t, p)

	res, err := wf.Run(context.Background(), "check mail")
	if err != nil {
		t.Fatal(err)
	}
	if len(p.prompts) != 3 {
		t.Errorf("model calls = %d, want 3", len(p.prompts))
	}
	stages := res.Run.Stages
	if len(stages) != 5 || !stages[2].Skipped || !stages[3].Skipped || stages[4].Skipped {
		t.Fatalf("stages = %+v", stages)
	}
	for _, key := range []string{KeyMeeting, KeyCalendar} {
		if res.State[key] != NoMeetingOutput {
			t.Errorf("%s output = %q, want %q", key, res.State[key], NoMeetingOutput)
		}
	}
	if !strings.Contains(p.prompts[2], NoMeetingOutput) {
		t.Error("joiner must see the skipped calendar output")
	}
}

func TestRun_StageFailure(t *testing.T) {
	p := &stageProvider{analysis: analysisYes, failOn: "You are an email analysis"}
	wf, store := newWorkflow(t, p)

	res, err := wf.Run(context.Background(), "")
	if err == nil || !strings.Contains(err.Error(), "EmailAnalyzerAgent") {
		t.Fatalf("err = %v", err)
	}
	if res.Run.Status != domain.RunFailed || len(res.Run.Stages) != 2 || res.Run.Stages[1].Error == "" {
		t.Errorf("run = %+v", res.Run)
	}

	runs, _ := store.ListRuns(context.Background(), 10)
	if len(runs) != 1 || runs[0].Status != domain.RunFailed {
		t.Errorf("stored runs = %+v", runs)
	}
}

func TestNew_Errors(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	p := &stageProvider{}

	if _, err := New(p, tools.NewRegistry(), DefaultStages(), logger); err == nil {
		t.Error("expected error for missing tools")
	}
	if _, err := New(p, nil, nil, logger); err == nil {
		t.Error("expected error for no stages")
	}
	dup := []Stage{{Name: "a", OutputKey: "x"}, {Name: "b", OutputKey: "x"}}
	if _, err := New(p, nil, dup, logger); err == nil {
		t.Error("expected duplicate output key error")
	}
}
