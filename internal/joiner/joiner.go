// Package joiner opens calendar meetings that are about to start.
package joiner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jkaninda/huddle/internal/calendar"
	"github.com/jkaninda/huddle/internal/domain"
)

// DefaultWindow is how far ahead a meeting counts as starting soon.
const DefaultWindow = 5 * time.Minute

// Observer is notified of how many meetings were joined.
type Observer interface {
	ObserveJoin(n int)
}

// Joiner claims upcoming events and opens their meeting URLs.
type Joiner struct {
	calendar *calendar.Service
	opener   Opener
	window   time.Duration
	now      func() time.Time
	logger   *slog.Logger
	observer Observer
}

type Option func(*Joiner)

func WithWindow(d time.Duration) Option {
	return func(j *Joiner) {
		if d > 0 {
			j.window = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(j *Joiner) { j.now = now }
}

func WithObserver(o Observer) Option {
	return func(j *Joiner) { j.observer = o }
}

func New(cal *calendar.Service, opener Opener, logger *slog.Logger, opts ...Option) *Joiner {
	j := &Joiner{
		calendar: cal,
		opener:   opener,
		window:   DefaultWindow,
		now:      time.Now,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Window returns the look-ahead window.
func (j *Joiner) Window() time.Duration { return j.window }

// Check returns the events starting within the window and marks each one
// joined. An event claimed by a concurrent caller is left out.
func (j *Joiner) Check(ctx context.Context) ([]domain.Event, error) {
	upcoming, err := j.calendar.Upcoming(ctx, j.now(), j.window)
	if err != nil {
		return nil, err
	}

	claimed := make([]domain.Event, 0, len(upcoming))
	for _, ev := range upcoming {
		ok, err := j.calendar.Store().MarkJoined(ctx, ev.ID)
		if err != nil {
			return claimed, fmt.Errorf("marking event %s joined: %w", ev.ID, err)
		}
		if !ok {
			continue
		}
		ev.Joined = true
		claimed = append(claimed, ev)
	}
	return claimed, nil
}

// Join runs Check and opens every claimed meeting. Open failures are
// collected; the remaining meetings are still opened.
func (j *Joiner) Join(ctx context.Context) ([]domain.Event, error) {
	events, err := j.Check(ctx)
	if err != nil {
		return events, err
	}

	var errs []error
	for _, ev := range events {
		if ev.MeetingURL == "" {
			errs = append(errs, fmt.Errorf("event %s has no meeting URL", ev.ID))
			continue
		}
		if err := j.opener.Open(ctx, ev.MeetingURL); err != nil {
			errs = append(errs, err)
			continue
		}
		j.logger.InfoContext(ctx, "joined meeting",
			slog.String("event_id", ev.ID),
			slog.String("title", ev.Title),
			slog.String("start_time", ev.StartTime),
		)
	}
	if j.observer != nil {
		j.observer.ObserveJoin(len(events) - len(errs))
	}
	return events, errors.Join(errs...)
}

// Report renders the outcome of Check.
func Report(events []domain.Event) string {
	if len(events) == 0 {
		return "No upcoming meetings to join."
	}
	entries := make([]string, 0, len(events))
	for _, ev := range events {
		entries = append(entries, fmt.Sprintf("Meeting: %s\nStart: %s\nURL: %s", ev.Title, ev.StartTime, ev.MeetingURL))
	}
	return fmt.Sprintf("Found %d meeting(s) to join:\n\n%s", len(events), strings.Join(entries, "\n\n"))
}
