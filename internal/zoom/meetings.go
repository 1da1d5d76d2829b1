package zoom

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jkaninda/huddle/internal/meetingtime"
)

const (
	DefaultTopic    = "Scheduled Meeting"
	DefaultDuration = 60

	meetingTypeScheduled = 2
)

// Meeting is the subset of the Zoom meeting object Huddle uses.
type Meeting struct {
	ID        int64  `json:"id"`
	UUID      string `json:"uuid,omitempty"`
	HostID    string `json:"host_id,omitempty"`
	Topic     string `json:"topic"`
	Type      int    `json:"type"`
	Status    string `json:"status,omitempty"`
	StartTime string `json:"start_time,omitempty"` // RFC 3339, UTC.
	Duration  int    `json:"duration"`
	Timezone  string `json:"timezone,omitempty"`
	Agenda    string `json:"agenda,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
	JoinURL   string `json:"join_url"`
	StartURL  string `json:"start_url,omitempty"`
	Password  string `json:"password,omitempty"`
}

// Start parses StartTime.
func (m *Meeting) Start() (time.Time, error) {
	return time.Parse(time.RFC3339, m.StartTime)
}

type settings struct {
	HostVideo        bool   `json:"host_video"`
	ParticipantVideo bool   `json:"participant_video"`
	JoinBeforeHost   bool   `json:"join_before_host"`
	MuteUponEntry    bool   `json:"mute_upon_entry"`
	AutoRecording    string `json:"auto_recording"`
}

type createBody struct {
	Topic     string   `json:"topic"`
	Type      int      `json:"type"`
	StartTime string   `json:"start_time"`
	Duration  int      `json:"duration"`
	Timezone  string   `json:"timezone"`
	Agenda    string   `json:"agenda,omitempty"`
	Settings  settings `json:"settings"`
}

// CreateMeetingRequest describes a new scheduled meeting.
type CreateMeetingRequest struct {
	Topic     string
	StartTime time.Time
	Duration  int // Minutes.
	Agenda    string
}

// CreateMeeting schedules a meeting for the authorized user.
func (c *Client) CreateMeeting(ctx context.Context, req CreateMeetingRequest) (*Meeting, error) {
	if req.StartTime.IsZero() {
		return nil, errors.New("zoom create_meeting: start time is required")
	}
	topic := strings.TrimSpace(req.Topic)
	if topic == "" {
		topic = DefaultTopic
	}
	duration := req.Duration
	if duration <= 0 {
		duration = DefaultDuration
	}

	body := createBody{
		Topic:     topic,
		Type:      meetingTypeScheduled,
		StartTime: meetingtime.FormatZoom(req.StartTime),
		Duration:  duration,
		Timezone:  "UTC",
		Agenda:    req.Agenda,
		Settings: settings{
			HostVideo:        true,
			ParticipantVideo: true,
			JoinBeforeHost:   true,
			MuteUponEntry:    true,
			AutoRecording:    "none",
		},
	}

	var m Meeting
	if err := c.do(ctx, "create_meeting", http.MethodPost, "/users/me/meetings", body, http.StatusCreated, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// UpdateMeetingRequest holds the fields to change; nil fields are left alone.
type UpdateMeetingRequest struct {
	Topic     *string
	Duration  *int
	StartTime *time.Time
	Agenda    *string
}

func (r UpdateMeetingRequest) body() map[string]any {
	body := make(map[string]any)
	if r.Topic != nil && *r.Topic != "" {
		body["topic"] = *r.Topic
	}
	if r.Duration != nil && *r.Duration > 0 {
		body["duration"] = *r.Duration
	}
	if r.StartTime != nil && !r.StartTime.IsZero() {
		body["start_time"] = meetingtime.FormatZoom(*r.StartTime)
		body["timezone"] = "UTC"
	}
	if r.Agenda != nil {
		body["agenda"] = *r.Agenda
	}
	return body
}

// UpdateMeeting patches the meeting and returns its refreshed state.
func (c *Client) UpdateMeeting(ctx context.Context, id string, req UpdateMeetingRequest) (*Meeting, error) {
	body := req.body()
	if len(body) == 0 {
		return nil, errors.New("zoom update_meeting: nothing to update")
	}
	if err := c.do(ctx, "update_meeting", http.MethodPatch, meetingPath(id), body, http.StatusNoContent, nil); err != nil {
		return nil, err
	}
	m, err := c.GetMeeting(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("meeting updated but refreshing it failed: %w", err)
	}
	return m, nil
}

// GetMeeting fetches one meeting.
func (c *Client) GetMeeting(ctx context.Context, id string) (*Meeting, error) {
	var m Meeting
	if err := c.do(ctx, "get_meeting", http.MethodGet, meetingPath(id), nil, http.StatusOK, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// DeleteMeeting cancels a meeting.
func (c *Client) DeleteMeeting(ctx context.Context, id string) error {
	return c.do(ctx, "delete_meeting", http.MethodDelete, meetingPath(id), nil, http.StatusNoContent, nil)
}

// ListOptions filters ListMeetings.
type ListOptions struct {
	Type          string // scheduled (default), live, upcoming, upcoming_meetings, previous_meetings.
	PageSize      int
	NextPageToken string
}

// MeetingList is one page of meetings.
type MeetingList struct {
	PageSize      int       `json:"page_size"`
	TotalRecords  int       `json:"total_records"`
	NextPageToken string    `json:"next_page_token,omitempty"`
	Meetings      []Meeting `json:"meetings"`
}

// ListMeetings returns one page of the user's meetings.
func (c *Client) ListMeetings(ctx context.Context, opts ListOptions) (*MeetingList, error) {
	q := url.Values{}
	q.Set("type", "scheduled")
	if opts.Type != "" {
		q.Set("type", opts.Type)
	}
	if opts.PageSize > 0 {
		q.Set("page_size", strconv.Itoa(opts.PageSize))
	}
	if opts.NextPageToken != "" {
		q.Set("next_page_token", opts.NextPageToken)
	}

	var list MeetingList
	if err := c.do(ctx, "list_meetings", http.MethodGet, "/users/me/meetings?"+q.Encode(), nil, http.StatusOK, &list); err != nil {
		return nil, err
	}
	return &list, nil
}
