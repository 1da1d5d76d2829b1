package meeting

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jkaninda/huddle/internal/joiner"
	"github.com/jkaninda/huddle/internal/meetingtime"
	"github.com/jkaninda/huddle/internal/zoom"
)

var now = time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)

type fakeAPI struct {
	created zoom.CreateMeetingRequest
	updated zoom.UpdateMeetingRequest
	deleted string
	meeting zoom.Meeting
	err     error
}

func (f *fakeAPI) CreateMeeting(_ context.Context, req zoom.CreateMeetingRequest) (*zoom.Meeting, error) {
	f.created = req
	if f.err != nil {
		return nil, f.err
	}
	m := f.meeting
	m.StartTime = meetingtime.FormatZoom(req.StartTime)
	return &m, nil
}

func (f *fakeAPI) UpdateMeeting(_ context.Context, _ string, req zoom.UpdateMeetingRequest) (*zoom.Meeting, error) {
	f.updated = req
	return &f.meeting, f.err
}

func (f *fakeAPI) GetMeeting(context.Context, string) (*zoom.Meeting, error) {
	return &f.meeting, f.err
}

func (f *fakeAPI) ListMeetings(context.Context, zoom.ListOptions) (*zoom.MeetingList, error) {
	return &zoom.MeetingList{Meetings: []zoom.Meeting{f.meeting}}, f.err
}

func (f *fakeAPI) DeleteMeeting(_ context.Context, id string) error {
	f.deleted = id
	return f.err
}

func newDeps() (Deps, *fakeAPI, *joiner.RecordingOpener) {
	api := &fakeAPI{meeting: zoom.Meeting{
		ID:        85746065432,
		Topic:     "Project status",
		Duration:  30,
		StartTime: "2025-03-11T15:00:00Z",
		JoinURL:   "https://zoom.us/j/85746065432",
		StartURL:  "https://zoom.us/s/85746065432",
	}}
	opener := &joiner.RecordingOpener{}
	r := meetingtime.New(meetingtime.WithClock(func() time.Time { return now }), meetingtime.WithLocation(time.UTC))
	return Deps{API: api, Resolver: r, Opener: opener}, api, opener
}

func TestCreateTool(t *testing.T) {
	d, api, _ := newDeps()
	tool := &CreateTool{d}

	res, err := tool.Execute(context.Background(), map[string]any{
		"topic":      "Project status",
		"duration":   float64(30),
		"start_time": "tomorrow 3 pm",
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if want := time.Date(2025, time.March, 11, 15, 0, 0, 0, time.UTC); !api.created.StartTime.Equal(want) {
		t.Errorf("start = %v, want %v", api.created.StartTime, want)
	}
	if api.created.Duration != 30 {
		t.Errorf("duration = %d", api.created.Duration)
	}
	if res.Metadata["meeting_id"] != "85746065432" || res.Metadata["start_time"] != "2025-03-11 15:00:00" {
		t.Errorf("metadata = %v", res.Metadata)
	}
	if !strings.Contains(res.Output, "[Click to join](https://zoom.us/j/85746065432)") {
		t.Errorf("output = %q", res.Output)
	}
}

func TestCreateTool_FallbackStart(t *testing.T) {
	d, api, _ := newDeps()
	if _, err := (&CreateTool{d}).Execute(context.Background(), map[string]any{"start_time": "whenever"}); err != nil {
		t.Fatal(err)
	}
	if want := now.Add(meetingtime.DefaultOffset); !api.created.StartTime.Equal(want) {
		t.Errorf("start = %v, want fallback %v", api.created.StartTime, want)
	}
	if api.created.Duration != zoom.DefaultDuration {
		t.Errorf("duration = %d", api.created.Duration)
	}
}

func TestCreateTool_APIError(t *testing.T) {
	d, api, _ := newDeps()
	api.err = &zoom.APIError{Op: "create_meeting", StatusCode: 401}
	_, err := (&CreateTool{d}).Execute(context.Background(), map[string]any{})
	var apiErr *zoom.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v", err)
	}
}

func TestUpdateTool(t *testing.T) {
	d, api, _ := newDeps()
	tool := &UpdateTool{d}
	if err := tool.Validate(map[string]any{}); err == nil {
		t.Error("meeting_id should be required")
	}
	_, err := tool.Execute(context.Background(), map[string]any{
		"meeting_id": float64(85746065432),
		"start_time": "1 pm",
	})
	if err != nil {
		t.Fatal(err)
	}
	if api.updated.StartTime == nil || api.updated.StartTime.Hour() != 13 {
		t.Errorf("start = %v", api.updated.StartTime)
	}
	if api.updated.Topic != nil || api.updated.Duration != nil {
		t.Errorf("unset fields sent: %+v", api.updated)
	}
}

func TestJoinAndStartOpenURLs(t *testing.T) {
	d, _, opener := newDeps()
	ctx := context.Background()
	params := map[string]any{"meeting_id": "85746065432"}

	if _, err := (&JoinTool{d}).Execute(ctx, params); err != nil {
		t.Fatal(err)
	}
	if _, err := (&StartTool{d}).Execute(ctx, params); err != nil {
		t.Fatal(err)
	}
	urls := opener.URLs()
	if len(urls) != 2 || urls[0] != "https://zoom.us/j/85746065432" || urls[1] != "https://zoom.us/s/85746065432" {
		t.Errorf("opened = %v", urls)
	}
}

func TestOpenURLTool_Validate(t *testing.T) {
	d, _, _ := newDeps()
	tool := &OpenURLTool{d}
	for _, bad := range []string{"", "file:///etc/passwd", "zoom.us/j/1", "javascript:alert(1)"} {
		if err := tool.Validate(map[string]any{"url": bad}); err == nil {
			t.Errorf("Validate(%q) should fail", bad)
		}
	}
	res, err := tool.Execute(context.Background(), map[string]any{"url": "https://zoom.us/j/1"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Output != "Joining Zoom meeting: https://zoom.us/j/1" {
		t.Errorf("output = %q", res.Output)
	}
}

func TestDeleteAndList(t *testing.T) {
	d, api, _ := newDeps()
	ctx := context.Background()
	if _, err := (&DeleteTool{d}).Execute(ctx, map[string]any{"meeting_id": "42"}); err != nil {
		t.Fatal(err)
	}
	if api.deleted != "42" {
		t.Errorf("deleted = %q", api.deleted)
	}
	res, err := (&ListTool{d}).Execute(ctx, map[string]any{})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(res.Output, "Found 1 meeting(s):") {
		t.Errorf("output = %q", res.Output)
	}
}

func TestAll(t *testing.T) {
	d, _, _ := newDeps()
	seen := map[string]bool{}
	for _, tool := range All(d) {
		if seen[tool.Name()] {
			t.Errorf("duplicate %s", tool.Name())
		}
		seen[tool.Name()] = true
		if tool.InputSchema()["type"] != "object" {
			t.Errorf("%s schema type = %v", tool.Name(), tool.InputSchema()["type"])
		}
	}
	if len(seen) != 8 {
		t.Errorf("tools = %d", len(seen))
	}
}
