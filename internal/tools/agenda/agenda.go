// Package agenda exposes the calendar and the meeting joiner to agents.
package agenda

import (
	"context"
	"fmt"

	"github.com/jkaninda/huddle/internal/calendar"
	"github.com/jkaninda/huddle/internal/joiner"
	"github.com/jkaninda/huddle/internal/tools"
)

// AddTool records a meeting on the calendar.
type AddTool struct {
	cal *calendar.Service
}

func NewAddTool(cal *calendar.Service) *AddTool { return &AddTool{cal: cal} }

func (t *AddTool) Name() string { return "add_to_calendar" }
func (t *AddTool) Description() string {
	return "Add a scheduled meeting to the calendar. Use the details returned by create_zoom_meeting."
}
func (t *AddTool) InputSchema() map[string]any {
	return tools.Object(map[string]any{
		"title":       tools.Prop("string", "Meeting title"),
		"start_time":  tools.Prop("string", "Start time as YYYY-MM-DD HH:MM:SS. Empty means now"),
		"duration":    tools.Prop("integer", "Duration in minutes"),
		"meeting_url": tools.Prop("string", "Zoom join URL"),
		"meeting_id":  tools.Prop("string", "Zoom meeting ID"),
		"description": tools.Prop("string", "What the meeting is about"),
	}, "title")
}

func (t *AddTool) Validate(params map[string]any) error {
	if err := tools.RequireStrings(params, "title"); err != nil {
		return err
	}
	_, err := tools.Int(params, "duration", 0)
	return err
}

func (t *AddTool) Execute(ctx context.Context, params map[string]any) (*tools.Result, error) {
	duration, _ := tools.Int(params, "duration", 0)
	ev, err := t.cal.AddMeeting(ctx, calendar.AddRequest{
		Title:       tools.String(params, "title"),
		StartTime:   tools.String(params, "start_time"),
		Duration:    duration,
		MeetingURL:  tools.String(params, "meeting_url"),
		MeetingID:   tools.String(params, "meeting_id"),
		Description: tools.String(params, "description"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add event to calendar: %w", err)
	}
	return &tools.Result{
		Output:   calendar.AddedReport(ev),
		Success:  true,
		Metadata: map[string]any{"event": ev},
	}, nil
}

// ListTool lists calendar events.
type ListTool struct {
	cal *calendar.Service
}

func NewListTool(cal *calendar.Service) *ListTool { return &ListTool{cal: cal} }

func (t *ListTool) Name() string { return "list_calendar_events" }
func (t *ListTool) Description() string {
	return "List calendar events, optionally only those on one date."
}
func (t *ListTool) InputSchema() map[string]any {
	return tools.Object(map[string]any{
		"date": tools.Prop("string", "Optional date filter, YYYY-MM-DD"),
	})
}
func (t *ListTool) Validate(map[string]any) error { return nil }

func (t *ListTool) Execute(ctx context.Context, params map[string]any) (*tools.Result, error) {
	events, err := t.cal.List(ctx, tools.String(params, "date"))
	if err != nil {
		return nil, fmt.Errorf("failed to list calendar events: %w", err)
	}
	return &tools.Result{
		Output:   calendar.ListReport(events),
		Success:  true,
		Metadata: map[string]any{"events": events},
	}, nil
}

// UpcomingTool claims meetings starting within the joiner window. It
// does not open them; the agent follows up with open_zoom_url.
type UpcomingTool struct {
	joiner *joiner.Joiner
}

func NewUpcomingTool(j *joiner.Joiner) *UpcomingTool { return &UpcomingTool{joiner: j} }

func (t *UpcomingTool) Name() string { return "check_upcoming_meetings" }
func (t *UpcomingTool) Description() string {
	return fmt.Sprintf("Check for calendar meetings starting in the next %s that have not been joined yet. Returned meetings are marked as joined.",
		t.joiner.Window())
}
func (t *UpcomingTool) InputSchema() map[string]any   { return tools.Object(nil) }
func (t *UpcomingTool) Validate(map[string]any) error { return nil }

func (t *UpcomingTool) Execute(ctx context.Context, _ map[string]any) (*tools.Result, error) {
	events, err := t.joiner.Check(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to check upcoming meetings: %w", err)
	}
	return &tools.Result{
		Output:   joiner.Report(events),
		Success:  true,
		Metadata: map[string]any{"meetings": events},
	}, nil
}
