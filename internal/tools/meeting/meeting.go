// Package meeting exposes Zoom meeting management to agents.
package meeting

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/jkaninda/huddle/internal/joiner"
	"github.com/jkaninda/huddle/internal/meetingtime"
	"github.com/jkaninda/huddle/internal/tools"
	"github.com/jkaninda/huddle/internal/zoom"
)

// API is the part of the Zoom client the tools use.
type API interface {
	CreateMeeting(ctx context.Context, req zoom.CreateMeetingRequest) (*zoom.Meeting, error)
	UpdateMeeting(ctx context.Context, id string, req zoom.UpdateMeetingRequest) (*zoom.Meeting, error)
	GetMeeting(ctx context.Context, id string) (*zoom.Meeting, error)
	ListMeetings(ctx context.Context, opts zoom.ListOptions) (*zoom.MeetingList, error)
	DeleteMeeting(ctx context.Context, id string) error
}

// Deps bundles what the meeting tools share.
type Deps struct {
	API      API
	Resolver *meetingtime.Resolver
	Opener   joiner.Opener
}

// All returns every meeting tool bound to deps.
func All(d Deps) []tools.Tool {
	return []tools.Tool{
		&CreateTool{d},
		&UpdateTool{d},
		&DeleteTool{d},
		&GetTool{d},
		&ListTool{d},
		&StartTool{d},
		&JoinTool{d},
		&OpenURLTool{d},
	}
}

var meetingIDSchema = map[string]any{
	"meeting_id": tools.Prop("string", "Zoom meeting ID"),
}

const startTimeHelp = "When the meeting starts: 'YYYY-MM-DD HH:MM:SS' or natural language such as 'tomorrow 3 pm', '1 pm', 'in 2 days at 10am' or 'may 12th at 9am'. Empty means five minutes from now."

func (d Deps) displayTime(m *zoom.Meeting) string {
	start, err := m.Start()
	if err != nil {
		return strings.TrimSuffix(strings.Replace(m.StartTime, "T", " ", 1), "Z")
	}
	return meetingtime.FormatDisplay(start.In(d.Resolver.Location()))
}

func (d Deps) result(headline string, m *zoom.Meeting) *tools.Result {
	display := d.displayTime(m)
	id := zoom.FormatMeetingID(m.ID)

	var b strings.Builder
	b.WriteString(headline)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Topic: %s\n", m.Topic)
	fmt.Fprintf(&b, "Join URL: [Click to join](%s)\n", m.JoinURL)
	fmt.Fprintf(&b, "Meeting ID: %s\n", id)
	fmt.Fprintf(&b, "Duration: %d minutes\n", m.Duration)
	fmt.Fprintf(&b, "Start time: %s", display)
	if m.StartURL != "" {
		fmt.Fprintf(&b, "\nStart the meeting: [Click to start](%s)", m.StartURL)
	}

	return &tools.Result{
		Output:  b.String(),
		Success: true,
		Metadata: map[string]any{
			"meeting_id": id,
			"join_url":   m.JoinURL,
			"start_url":  m.StartURL,
			"topic":      m.Topic,
			"duration":   m.Duration,
			"start_time": display,
		},
	}
}

// CreateTool schedules a new meeting.
type CreateTool struct{ d Deps }

func (t *CreateTool) Name() string { return "create_zoom_meeting" }
func (t *CreateTool) Description() string {
	return "Create a scheduled Zoom meeting and return its join URL, meeting ID and start time."
}
func (t *CreateTool) InputSchema() map[string]any {
	return tools.Object(map[string]any{
		"topic":      tools.Prop("string", "Meeting topic. Default: Scheduled Meeting"),
		"duration":   tools.Prop("integer", "Duration in minutes. Default: 60"),
		"start_time": tools.Prop("string", startTimeHelp),
		"agenda":     tools.Prop("string", "Optional meeting description"),
	})
}

func (t *CreateTool) Validate(params map[string]any) error {
	_, err := tools.Int(params, "duration", zoom.DefaultDuration)
	return err
}

func (t *CreateTool) Execute(ctx context.Context, params map[string]any) (*tools.Result, error) {
	duration, err := tools.Int(params, "duration", zoom.DefaultDuration)
	if err != nil {
		return nil, err
	}
	m, err := t.d.API.CreateMeeting(ctx, zoom.CreateMeetingRequest{
		Topic:     tools.String(params, "topic"),
		StartTime: t.d.Resolver.Resolve(tools.String(params, "start_time")),
		Duration:  duration,
		Agenda:    tools.String(params, "agenda"),
	})
	if err != nil {
		return nil, fmt.Errorf("creating meeting: %w", err)
	}
	return t.d.result("Meeting created successfully!", m), nil
}

// UpdateTool changes topic, duration or start time.
type UpdateTool struct{ d Deps }

func (t *UpdateTool) Name() string { return "update_zoom_meeting" }
func (t *UpdateTool) Description() string {
	return "Update an existing Zoom meeting's topic, duration or start time and return the updated details."
}
func (t *UpdateTool) InputSchema() map[string]any {
	return tools.Object(map[string]any{
		"meeting_id": meetingIDSchema["meeting_id"],
		"topic":      tools.Prop("string", "New topic"),
		"duration":   tools.Prop("integer", "New duration in minutes"),
		"start_time": tools.Prop("string", "New start time, same formats as create_zoom_meeting"),
	}, "meeting_id")
}

func (t *UpdateTool) Validate(params map[string]any) error {
	if err := tools.RequireStrings(params, "meeting_id"); err != nil {
		return err
	}
	_, err := tools.Int(params, "duration", 0)
	return err
}

func (t *UpdateTool) Execute(ctx context.Context, params map[string]any) (*tools.Result, error) {
	req := zoom.UpdateMeetingRequest{Topic: tools.OptionalString(params, "topic")}
	if d, _ := tools.Int(params, "duration", 0); d > 0 {
		req.Duration = &d
	}
	if expr := tools.OptionalString(params, "start_time"); expr != nil {
		start := t.d.Resolver.Resolve(*expr)
		req.StartTime = &start
	}

	m, err := t.d.API.UpdateMeeting(ctx, tools.String(params, "meeting_id"), req)
	if err != nil {
		return nil, fmt.Errorf("updating meeting: %w", err)
	}
	return t.d.result("Meeting updated successfully!", m), nil
}

// DeleteTool cancels a meeting.
type DeleteTool struct{ d Deps }

func (t *DeleteTool) Name() string        { return "delete_zoom_meeting" }
func (t *DeleteTool) Description() string { return "Delete a Zoom meeting by ID." }
func (t *DeleteTool) InputSchema() map[string]any {
	return tools.Object(meetingIDSchema, "meeting_id")
}
func (t *DeleteTool) Validate(params map[string]any) error {
	return tools.RequireStrings(params, "meeting_id")
}

func (t *DeleteTool) Execute(ctx context.Context, params map[string]any) (*tools.Result, error) {
	id := tools.String(params, "meeting_id")
	if err := t.d.API.DeleteMeeting(ctx, id); err != nil {
		return nil, fmt.Errorf("deleting meeting: %w", err)
	}
	return &tools.Result{
		Output:   "Meeting deleted successfully!",
		Success:  true,
		Metadata: map[string]any{"meeting_id": id},
	}, nil
}

// GetTool shows one meeting.
type GetTool struct{ d Deps }

func (t *GetTool) Name() string        { return "get_zoom_meeting" }
func (t *GetTool) Description() string { return "Get the details of a Zoom meeting by ID." }
func (t *GetTool) InputSchema() map[string]any {
	return tools.Object(meetingIDSchema, "meeting_id")
}
func (t *GetTool) Validate(params map[string]any) error {
	return tools.RequireStrings(params, "meeting_id")
}

func (t *GetTool) Execute(ctx context.Context, params map[string]any) (*tools.Result, error) {
	m, err := t.d.API.GetMeeting(ctx, tools.String(params, "meeting_id"))
	if err != nil {
		return nil, fmt.Errorf("getting meeting: %w", err)
	}
	return t.d.result("Meeting details:", m), nil
}

// ListTool lists the user's meetings.
type ListTool struct{ d Deps }

func (t *ListTool) Name() string { return "list_zoom_meetings" }
func (t *ListTool) Description() string {
	return "List the user's Zoom meetings. type is one of scheduled (default), live, upcoming."
}
func (t *ListTool) InputSchema() map[string]any {
	return tools.Object(map[string]any{
		"type": map[string]any{
			"type":        "string",
			"description": "Which meetings to list",
			"enum":        []string{"scheduled", "live", "upcoming"},
		},
	})
}
func (t *ListTool) Validate(map[string]any) error { return nil }

func (t *ListTool) Execute(ctx context.Context, params map[string]any) (*tools.Result, error) {
	list, err := t.d.API.ListMeetings(ctx, zoom.ListOptions{Type: tools.String(params, "type")})
	if err != nil {
		return nil, fmt.Errorf("listing meetings: %w", err)
	}
	if len(list.Meetings) == 0 {
		return &tools.Result{Output: "No Zoom meetings found.", Success: true, Metadata: map[string]any{"meetings": []any{}}}, nil
	}

	entries := make([]string, 0, len(list.Meetings))
	summaries := make([]map[string]any, 0, len(list.Meetings))
	for i := range list.Meetings {
		m := &list.Meetings[i]
		display := t.d.displayTime(m)
		id := zoom.FormatMeetingID(m.ID)
		entries = append(entries, fmt.Sprintf("Topic: %s\nMeeting ID: %s\nStart time: %s\nJoin URL: %s", m.Topic, id, display, m.JoinURL))
		summaries = append(summaries, map[string]any{
			"meeting_id": id,
			"topic":      m.Topic,
			"start_time": display,
			"join_url":   m.JoinURL,
		})
	}
	return &tools.Result{
		Output:   fmt.Sprintf("Found %d meeting(s):\n\n%s", len(entries), strings.Join(entries, "\n\n")),
		Success:  true,
		Metadata: map[string]any{"meetings": summaries},
	}, nil
}

// StartTool opens a meeting's host start URL.
type StartTool struct{ d Deps }

func (t *StartTool) Name() string        { return "start_zoom_meeting" }
func (t *StartTool) Description() string { return "Start a Zoom meeting as host by opening its start URL." }
func (t *StartTool) InputSchema() map[string]any {
	return tools.Object(meetingIDSchema, "meeting_id")
}
func (t *StartTool) Validate(params map[string]any) error {
	return tools.RequireStrings(params, "meeting_id")
}

func (t *StartTool) Execute(ctx context.Context, params map[string]any) (*tools.Result, error) {
	m, err := t.d.API.GetMeeting(ctx, tools.String(params, "meeting_id"))
	if err != nil {
		return nil, fmt.Errorf("getting meeting: %w", err)
	}
	if m.StartURL == "" {
		return nil, errors.New("meeting has no start URL")
	}
	return openURL(ctx, t.d.Opener, m.StartURL, "Starting Zoom meeting")
}

// JoinTool opens a meeting's join URL.
type JoinTool struct{ d Deps }

func (t *JoinTool) Name() string        { return "join_zoom_meeting" }
func (t *JoinTool) Description() string { return "Join a Zoom meeting by opening its join URL." }
func (t *JoinTool) InputSchema() map[string]any {
	return tools.Object(meetingIDSchema, "meeting_id")
}
func (t *JoinTool) Validate(params map[string]any) error {
	return tools.RequireStrings(params, "meeting_id")
}

func (t *JoinTool) Execute(ctx context.Context, params map[string]any) (*tools.Result, error) {
	m, err := t.d.API.GetMeeting(ctx, tools.String(params, "meeting_id"))
	if err != nil {
		return nil, fmt.Errorf("getting meeting: %w", err)
	}
	return openURL(ctx, t.d.Opener, m.JoinURL, "Joining Zoom meeting")
}

// OpenURLTool opens any Zoom URL.
type OpenURLTool struct{ d Deps }

func (t *OpenURLTool) Name() string { return "open_zoom_url" }
func (t *OpenURLTool) Description() string {
	return "Open a Zoom meeting URL with the system's default handler, which launches the Zoom app."
}
func (t *OpenURLTool) InputSchema() map[string]any {
	return tools.Object(map[string]any{"url": tools.Prop("string", "The Zoom meeting URL to open")}, "url")
}

func (t *OpenURLTool) Validate(params map[string]any) error {
	if err := tools.RequireStrings(params, "url"); err != nil {
		return err
	}
	return checkURL(tools.String(params, "url"))
}

func (t *OpenURLTool) Execute(ctx context.Context, params map[string]any) (*tools.Result, error) {
	return openURL(ctx, t.d.Opener, tools.String(params, "url"), "Joining Zoom meeting")
}

// checkURL accepts absolute http(s) URLs only; the opener hands the
// string to the OS shell handler.
func checkURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return fmt.Errorf("url must be an absolute http(s) URL, got %q", raw)
	}
	return nil
}

func openURL(ctx context.Context, opener joiner.Opener, raw, verb string) (*tools.Result, error) {
	if err := checkURL(raw); err != nil {
		return nil, err
	}
	if err := opener.Open(ctx, raw); err != nil {
		return nil, fmt.Errorf("failed to open Zoom meeting: %w", err)
	}
	return &tools.Result{
		Output:   fmt.Sprintf("%s: %s", verb, raw),
		Success:  true,
		Metadata: map[string]any{"url": raw},
	}, nil
}
