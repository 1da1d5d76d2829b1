// Package workflow runs the sequential email workflow: each stage is an
// agent whose output feeds the instructions of the stages after it.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/jkaninda/huddle/internal/agent"
	"github.com/jkaninda/huddle/internal/domain"
	"github.com/jkaninda/huddle/internal/llm"
	"github.com/jkaninda/huddle/internal/observability"
	"github.com/jkaninda/huddle/internal/tools"
)

// DefaultRequest starts a run when the caller gives no request.
const DefaultRequest = "Check my emails and schedule any meetings they require."

// Result is a finished run plus the state every stage wrote.
type Result struct {
	Run      *domain.WorkflowRun
	State    map[string]string
	Analysis *EmailAnalysis // nil when no analysis stage ran or it did not parse
}

// Output returns the output of the last stage that ran.
func (r *Result) Output() string {
	for i := len(r.Run.Stages) - 1; i >= 0; i-- {
		if s := r.Run.Stages[i]; !s.Skipped && s.Error == "" {
			return s.Output
		}
	}
	return ""
}

type step struct {
	stage Stage
	agent *agent.Agent
}

// Workflow is an ordered list of agent stages.
type Workflow struct {
	steps   []step
	store   RunStore // nil = runs are not persisted
	logger  *slog.Logger
	metrics *observability.MetricsCollector
	tracer  trace.Tracer
	onStage func(domain.StageResult)
}

// New builds one agent per stage. Every tool a stage names must exist in reg.
func New(provider llm.Provider, reg *tools.Registry, stages []Stage, logger *slog.Logger) (*Workflow, error) {
	if len(stages) == 0 {
		return nil, errors.New("workflow needs at least one stage")
	}
	w := &Workflow{
		logger: logger,
		tracer: noop.NewTracerProvider().Tracer(""),
	}
	seen := make(map[string]bool, len(stages))
	for _, st := range stages {
		if st.OutputKey == "" {
			return nil, fmt.Errorf("stage %s has no output key", st.Name)
		}
		if seen[st.OutputKey] {
			return nil, fmt.Errorf("duplicate output key %s", st.OutputKey)
		}
		seen[st.OutputKey] = true

		a := agent.New(st.Name, provider, st.Instruction, logger)
		if len(st.Tools) > 0 {
			sub, err := reg.Subset(st.Tools...)
			if err != nil {
				return nil, fmt.Errorf("stage %s: %w", st.Name, err)
			}
			a.WithTools(sub)
		}
		w.steps = append(w.steps, step{stage: st, agent: a})
	}
	return w, nil
}

// WithStore persists every run and stage transition.
func (w *Workflow) WithStore(s RunStore) *Workflow {
	w.store = s
	return w
}

// WithObservability records stage durations, run outcomes and spans.
func (w *Workflow) WithObservability(obs *observability.Observability) *Workflow {
	w.metrics = obs.MetricsOrNil()
	w.tracer = obs.TracerOrNoop()
	for _, s := range w.steps {
		s.agent.WithObservability(obs)
	}
	return w
}

// WithMaxIterations caps the tool-use loop of every stage agent.
func (w *Workflow) WithMaxIterations(n int) *Workflow {
	for _, s := range w.steps {
		s.agent.WithMaxIterations(n)
	}
	return w
}

// OnStage registers a callback invoked after each stage finishes or is skipped.
func (w *Workflow) OnStage(fn func(domain.StageResult)) *Workflow {
	w.onStage = fn
	return w
}

// Stages returns the configured stages in order.
func (w *Workflow) Stages() []Stage {
	out := make([]Stage, len(w.steps))
	for i, s := range w.steps {
		out[i] = s.stage
	}
	return out
}

// Run executes every stage in order. Stage failures end the run with status
// failed; the returned Result is non-nil whenever the run started.
func (w *Workflow) Run(ctx context.Context, request string) (*Result, error) {
	if request == "" {
		request = DefaultRequest
	}
	run := &domain.WorkflowRun{
		ID:        uuid.New(),
		Request:   request,
		Status:    domain.RunRunning,
		StartedAt: time.Now().UTC(),
	}

	ctx, span := w.tracer.Start(ctx, "workflow.run", trace.WithAttributes(
		attribute.String("run_id", run.ID.String()),
	))
	defer span.End()

	logger := w.logger.With(slog.String("run_id", run.ID.String()))
	logger.InfoContext(ctx, "workflow run started", slog.Int("stages", len(w.steps)))
	w.persist(ctx, logger, run, true)

	res := &Result{Run: run, State: make(map[string]string, len(w.steps))}
	skipMeetings := false

	var runErr error
	for _, s := range w.steps {
		if s.stage.MeetingOnly && skipMeetings {
			sr := domain.StageResult{
				Name:      s.stage.Name,
				OutputKey: s.stage.OutputKey,
				Output:    s.stage.SkipOutput,
				Skipped:   true,
			}
			res.State[s.stage.OutputKey] = sr.Output
			w.record(ctx, logger, run, sr)
			continue
		}

		sr, err := w.runStage(ctx, s, request, res.State)
		run.TokensUsed += sr.tokens
		w.record(ctx, logger, run, sr.StageResult)
		if err != nil {
			runErr = fmt.Errorf("stage %s: %w", s.stage.Name, err)
			break
		}
		res.State[s.stage.OutputKey] = sr.Output

		if s.stage.OutputKey == KeyAnalysis {
			analysis, err := ParseAnalysis(sr.Output)
			if err != nil {
				logger.WarnContext(ctx, "could not parse email analysis, running meeting stages",
					slog.String("error", err.Error()),
				)
				continue
			}
			res.Analysis = &analysis
			skipMeetings = !analysis.MeetingRequired
		}
	}

	finished := time.Now().UTC()
	run.FinishedAt = &finished
	run.Status = domain.RunSucceeded
	if runErr != nil {
		run.Status = domain.RunFailed
		run.Error = runErr.Error()
		span.RecordError(runErr)
		span.SetStatus(codes.Error, runErr.Error())
	}
	w.metrics.ObserveRun(string(run.Status))
	// The final state is written even when ctx was cancelled mid-run.
	w.persist(context.WithoutCancel(ctx), logger, run, false)

	logger.InfoContext(ctx, "workflow run finished",
		slog.String("status", string(run.Status)),
		slog.Int("tokens_used", run.TokensUsed),
		slog.Duration("duration", finished.Sub(run.StartedAt)),
	)
	return res, runErr
}

type stageOutcome struct {
	domain.StageResult
	tokens int
}

func (w *Workflow) runStage(ctx context.Context, s step, request string, state map[string]string) (stageOutcome, error) {
	ctx, span := w.tracer.Start(ctx, "workflow.stage", trace.WithAttributes(
		attribute.String("stage", s.stage.Name),
	))
	defer span.End()

	out := stageOutcome{StageResult: domain.StageResult{Name: s.stage.Name, OutputKey: s.stage.OutputKey}}
	start := time.Now()
	resp, err := s.agent.Process(ctx, &agent.Input{Message: request, State: state})
	out.Duration = time.Since(start)
	w.metrics.ObserveStage(s.stage.Name, out.Duration)

	if err != nil {
		out.Error = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return out, err
	}
	out.Output = resp.Text
	out.ToolCalls = len(resp.ToolCalls)
	out.tokens = resp.TokensUsed
	return out, nil
}

func (w *Workflow) record(ctx context.Context, logger *slog.Logger, run *domain.WorkflowRun, sr domain.StageResult) {
	run.Stages = append(run.Stages, sr)
	logger.InfoContext(ctx, "workflow stage finished",
		slog.String("stage", sr.Name),
		slog.Bool("skipped", sr.Skipped),
		slog.Int("tool_calls", sr.ToolCalls),
		slog.Duration("duration", sr.Duration),
	)
	if w.onStage != nil {
		w.onStage(sr)
	}
	w.persist(ctx, logger, run, false)
}

// persist saves the run. Failures are logged; a run is never aborted
// because its history could not be written.
func (w *Workflow) persist(ctx context.Context, logger *slog.Logger, run *domain.WorkflowRun, create bool) {
	if w.store == nil {
		return
	}
	var err error
	if create {
		err = w.store.CreateRun(ctx, run)
	} else {
		err = w.store.UpdateRun(ctx, run)
	}
	if err != nil {
		logger.ErrorContext(ctx, "failed to persist workflow run", slog.String("error", err.Error()))
	}
}
