package calendar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jkaninda/huddle/internal/domain"
	"github.com/jkaninda/huddle/internal/meetingtime"
)

const defaultDuration = 60

// AddRequest carries the fields a caller supplies for a new meeting.
type AddRequest struct {
	Title       string `json:"title"`
	StartTime   string `json:"start_time"`
	Duration    int    `json:"duration"`
	MeetingURL  string `json:"meeting_url"`
	MeetingID   string `json:"meeting_id"`
	Description string `json:"description"`
}

// Service applies calendar defaults on top of a Store.
type Service struct {
	store    Store
	resolver *meetingtime.Resolver
	logger   *slog.Logger
}

func NewService(store Store, resolver *meetingtime.Resolver, logger *slog.Logger) *Service {
	return &Service{store: store, resolver: resolver, logger: logger}
}

// Store returns the underlying store.
func (s *Service) Store() Store { return s.store }

// AddMeeting stores a zoom meeting. An empty start time means now; any
// value that is not already in display layout goes through the resolver.
func (s *Service) AddMeeting(ctx context.Context, req AddRequest) (*domain.Event, error) {
	if strings.TrimSpace(req.Title) == "" {
		return nil, errors.New("title is required")
	}

	start := strings.TrimSpace(req.StartTime)
	switch {
	case start == "":
		start = meetingtime.FormatDisplay(s.resolver.Now())
	default:
		if _, err := meetingtime.ParseDisplay(start, s.resolver.Location()); err != nil {
			start = meetingtime.FormatDisplay(s.resolver.Resolve(start))
		}
	}

	duration := req.Duration
	if duration <= 0 {
		duration = defaultDuration
	}

	ev, err := s.store.Add(ctx, &domain.Event{
		Title:       req.Title,
		StartTime:   start,
		Duration:    duration,
		MeetingURL:  req.MeetingURL,
		MeetingID:   req.MeetingID,
		Description: req.Description,
		Type:        domain.EventTypeZoomMeeting,
	})
	if err != nil {
		return nil, fmt.Errorf("adding event: %w", err)
	}
	s.logger.InfoContext(ctx, "event added to calendar",
		slog.String("event_id", ev.ID),
		slog.String("title", ev.Title),
		slog.String("start_time", ev.StartTime),
	)
	return ev, nil
}

// List returns events, optionally filtered by a YYYY-MM-DD prefix.
func (s *Service) List(ctx context.Context, date string) ([]domain.Event, error) {
	events, err := s.store.List(ctx, strings.TrimSpace(date))
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}
	return events, nil
}

// Upcoming returns unjoined events with now <= start <= now+window.
// Events whose start_time does not parse are skipped.
func (s *Service) Upcoming(ctx context.Context, now time.Time, window time.Duration) ([]domain.Event, error) {
	events, err := s.store.List(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}

	limit := now.Add(window)
	var out []domain.Event
	for _, e := range events {
		if e.Joined {
			continue
		}
		start, err := meetingtime.ParseDisplay(e.StartTime, s.resolver.Location())
		if err != nil {
			s.logger.DebugContext(ctx, "skipping event with unparseable start",
				slog.String("event_id", e.ID),
				slog.String("start_time", e.StartTime),
			)
			continue
		}
		if !start.Before(now) && !start.After(limit) {
			out = append(out, e)
		}
	}
	return out, nil
}

// AddedReport renders the confirmation for a new event.
func AddedReport(e *domain.Event) string {
	var b strings.Builder
	b.WriteString("Event added to calendar:\n\n")
	fmt.Fprintf(&b, "Title: %s\n", e.Title)
	fmt.Fprintf(&b, "Start: %s\n", e.StartTime)
	fmt.Fprintf(&b, "Duration: %d minutes\n", e.Duration)
	fmt.Fprintf(&b, "Meeting URL: %s\n", e.MeetingURL)
	fmt.Fprintf(&b, "Meeting ID: %s\n", e.MeetingID)
	fmt.Fprintf(&b, "Description: %s", e.Description)
	return b.String()
}

// ListReport renders a list of events.
func ListReport(events []domain.Event) string {
	if len(events) == 0 {
		return "No events found in calendar."
	}
	entries := make([]string, 0, len(events))
	for _, e := range events {
		entries = append(entries, fmt.Sprintf("Event: %s\nStart: %s\nDuration: %d minutes\nMeeting URL: %s",
			e.Title, e.StartTime, e.Duration, e.MeetingURL))
	}
	return fmt.Sprintf("Found %d events:\n\n%s", len(events), strings.Join(entries, "\n\n"))
}
