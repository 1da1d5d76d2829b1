// Package scheduler runs Huddle's periodic background jobs: the meeting
// auto-joiner and, optionally, the email workflow.
//
// Each job runs on its own cron schedule. A job that is still running
// when its next tick arrives skips that tick.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Job names used by the serve command.
const (
	JobJoiner   = "joiner"
	JobWorkflow = "workflow"
)

// JobFunc is the body of a scheduled job.
type JobFunc func(ctx context.Context) error

// Entry describes a registered job.
type Entry struct {
	Name string
	Spec string
	Next time.Time
	Prev time.Time
}

// Scheduler owns a cron runner and the jobs registered on it.
type Scheduler struct {
	cron    *cron.Cron
	metrics *Metrics
	logger  *slog.Logger

	chain cron.Chain

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	jobs    map[string]cron.Job
	entries map[string]cron.EntryID
	specs   map[string]string
}

// New creates a Scheduler. Specs accept five-field cron expressions and
// descriptors such as "@every 1m" or "@hourly", evaluated in loc.
func New(loc *time.Location, metrics *Metrics, logger *slog.Logger) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	clog := cronLogger{logger}
	return &Scheduler{
		cron: cron.New(
			cron.WithParser(parser),
			cron.WithLocation(loc),
			cron.WithLogger(clog),
		),
		chain:   cron.NewChain(cron.Recover(clog), cron.SkipIfStillRunning(clog)),
		metrics: metrics,
		logger:  logger,
		ctx:     context.Background(),
		jobs:    make(map[string]cron.Job),
		entries: make(map[string]cron.EntryID),
		specs:   make(map[string]string),
	}
}

// Add registers fn under name. An empty spec leaves the job disabled and
// is not an error.
func (s *Scheduler) Add(name, spec string, fn JobFunc) error {
	if spec == "" {
		s.logger.Info("scheduled job disabled", slog.String("job", name))
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.entries[name]; dup {
		return fmt.Errorf("job %q already scheduled", name)
	}
	job := s.chain.Then(cron.FuncJob(func() { s.run(name, fn) }))
	id, err := s.cron.AddJob(spec, job)
	if err != nil {
		return fmt.Errorf("invalid schedule %q for job %s: %w", spec, name, err)
	}
	s.jobs[name] = job
	s.entries[name] = id
	s.specs[name] = spec
	return nil
}

// Start begins running jobs in the background. Jobs receive a context
// derived from ctx that is cancelled by Stop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx, s.cancel = context.WithCancel(ctx)
	n := len(s.entries)
	s.mu.Unlock()

	s.cron.Start()
	s.logger.InfoContext(ctx, "scheduler started", slog.Int("jobs", n))
}

// Stop halts the cron runner and cancels running jobs. The returned
// context is done once every running job has returned.
func (s *Scheduler) Stop() context.Context {
	done := s.cron.Stop()
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()
	s.logger.Info("scheduler stopped")
	return done
}

// Entries lists the registered jobs with their next and previous run times.
func (s *Scheduler) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, 0, len(s.entries))
	for name, id := range s.entries {
		e := s.cron.Entry(id)
		out = append(out, Entry{Name: name, Spec: s.specs[name], Next: e.Next, Prev: e.Prev})
	}
	return out
}

// run executes one tick of a job. Overlap is prevented by the chain.
func (s *Scheduler) run(name string, fn JobFunc) {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.JobsFired.WithLabelValues(name).Inc()
	}
	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)

	if s.metrics != nil {
		s.metrics.JobDuration.WithLabelValues(name).Observe(elapsed.Seconds())
	}
	if err != nil {
		if s.metrics != nil {
			s.metrics.JobsFailed.WithLabelValues(name).Inc()
		}
		s.logger.ErrorContext(ctx, "scheduled job failed",
			slog.String("job", name),
			slog.Duration("duration", elapsed),
			slog.String("error", err.Error()),
		)
		return
	}
	s.logger.DebugContext(ctx, "scheduled job finished",
		slog.String("job", name),
		slog.Duration("duration", elapsed),
	)
}

// cronLogger adapts *slog.Logger to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err.Error())...)
}
