// Package meetingtime resolves free-form meeting time expressions such as
// "tomorrow 3.30 pm", "in 5 days at 2pm" or "may 12th at 9am" into absolute
// timestamps suitable for scheduling.
//
// Resolution is total: an expression that cannot be understood resolves to
// now plus DefaultOffset, so a meeting is always schedulable. Callers that
// want to reject bad input use ResolveStrict instead.
package meetingtime

import (
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// DefaultOffset is added to the current time for empty or unparseable input.
const DefaultOffset = 5 * time.Minute

// ErrUnparseable is returned by ResolveStrict when no rule understands the input.
var ErrUnparseable = errors.New("unparseable time expression")

// Observer is notified of every resolution with the name of the rule that
// produced it (RuleFallback when parsing failed).
type Observer interface {
	ObserveResolution(rule string)
}

// Resolution is the detailed outcome of resolving one expression.
type Resolution struct {
	Input    string
	Time     time.Time
	Rule     string
	Fallback bool
	Err      error // Parse failure that caused the fallback, if any.
}

// Resolver converts time expressions to timestamps relative to an injectable clock.
// A Resolver is safe for concurrent use.
type Resolver struct {
	now      func() time.Time
	loc      *time.Location
	logger   *slog.Logger
	observer Observer
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithClock overrides the reference clock. Used by tests to pin "now".
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) {
		if now != nil {
			r.now = now
		}
	}
}

// WithLocation sets the location in which "today" and wall-clock times are interpreted.
func WithLocation(loc *time.Location) Option {
	return func(r *Resolver) {
		if loc != nil {
			r.loc = loc
		}
	}
}

// WithLogger sets the logger used to report fallbacks.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithObserver attaches a resolution observer (typically a metrics collector).
func WithObserver(o Observer) Option {
	return func(r *Resolver) {
		r.observer = o
	}
}

// New creates a Resolver. Defaults: time.Now, time.Local, no logging.
func New(opts ...Option) *Resolver {
	r := &Resolver{
		now:    time.Now,
		loc:    time.Local,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Location returns the location used for wall-clock interpretation.
func (r *Resolver) Location() *time.Location {
	return r.loc
}

// Now returns the resolver's current time in its location.
func (r *Resolver) Now() time.Time {
	return r.now().In(r.loc)
}

// Resolve returns the timestamp for expr. It never fails.
func (r *Resolver) Resolve(expr string) time.Time {
	return r.ResolveDetailed(expr).Time
}

// ResolveDetailed resolves expr and reports which rule matched.
func (r *Resolver) ResolveDetailed(expr string) Resolution {
	res := resolve(expr, r.Now(), r.loc)

	if res.Fallback {
		r.logger.Warn("meeting time not understood, using fallback",
			slog.String("expression", expr),
			slog.String("error", res.Err.Error()),
			slog.String("fallback", FormatDisplay(res.Time)),
		)
	}
	if r.observer != nil {
		r.observer.ObserveResolution(res.Rule)
	}
	return res
}

// ResolveStrict resolves expr but returns ErrUnparseable instead of falling back.
// The empty expression still resolves to now plus DefaultOffset. Rejections
// are not logged; reporting them is up to the caller.
func (r *Resolver) ResolveStrict(expr string) (Resolution, error) {
	res := resolve(expr, r.Now(), r.loc)
	if r.observer != nil {
		r.observer.ObserveResolution(res.Rule)
	}
	if res.Fallback {
		return Resolution{Input: expr}, fmt.Errorf("%w %q: %v", ErrUnparseable, expr, res.Err)
	}
	return res, nil
}

func resolve(expr string, now time.Time, loc *time.Location) Resolution {
	normalized := normalize(expr)
	for _, s := range rules {
		if !s.match(normalized) {
			continue
		}
		t, err := s.extract(normalized, now, loc)
		if err != nil {
			return Resolution{
				Input:    expr,
				Time:     now.Add(DefaultOffset),
				Rule:     RuleFallback,
				Fallback: true,
				Err:      fmt.Errorf("%s: %w", s.name, err),
			}
		}
		return Resolution{Input: expr, Time: t, Rule: s.name}
	}
	// The exact rule matches everything, so this is only reached if the
	// table is edited without a catch-all.
	return Resolution{
		Input:    expr,
		Time:     now.Add(DefaultOffset),
		Rule:     RuleFallback,
		Fallback: true,
		Err:      errors.New("no rule matched"),
	}
}
