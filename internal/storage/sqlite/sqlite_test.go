package sqlite

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/jkaninda/huddle/internal/domain"
	"github.com/jkaninda/huddle/internal/storage"
)

func openTestStore(t *testing.T) storage.Store {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := Open(Config{Path: filepath.Join(t.TempDir(), "data", "huddle.db")}, logger)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return s
}

func TestEvents(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	if s.Driver() != storage.DriverSQLite {
		t.Errorf("driver = %q", s.Driver())
	}
	if err := s.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}

	events := s.Events()
	inputs := []domain.Event{
		{Title: "Standup", StartTime: "2025-03-11 09:00:00", Duration: 15, MeetingURL: "https://zoom.us/j/1", MeetingID: "1", Type: domain.EventTypeZoomMeeting},
		{Title: "Review", StartTime: "2025-03-11 15:00:00", Duration: 60, MeetingURL: "https://zoom.us/j/2", MeetingID: "2", Type: domain.EventTypeZoomMeeting},
		{Title: "Planning", StartTime: "2025-03-12 10:00:00", Duration: 30, MeetingURL: "https://zoom.us/j/3", MeetingID: "3", Type: domain.EventTypeZoomMeeting},
	}
	for i := range inputs {
		got, err := events.Add(ctx, &inputs[i])
		if err != nil {
			t.Fatalf("Add: %v", err)
		}
		if want := []string{"1", "2", "3"}[i]; got.ID != want {
			t.Errorf("event %d id = %q, want %q", i, got.ID, want)
		}
		if got.CreatedAt == "" {
			t.Errorf("event %d has no created_at", i)
		}
	}

	day, err := events.List(ctx, "2025-03-11")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(day) != 2 || day[0].Title != "Standup" || day[1].Title != "Review" {
		t.Errorf("List(2025-03-11) = %+v", day)
	}

	all, err := events.List(ctx, "")
	if err != nil || len(all) != 3 {
		t.Fatalf("List(all) = %d, %v", len(all), err)
	}

	none, err := events.List(ctx, "2025-03-1_")
	if err != nil || len(none) != 0 {
		t.Errorf("wildcard prefix matched %d events, %v", len(none), err)
	}

	won, err := events.MarkJoined(ctx, "2")
	if err != nil || !won {
		t.Fatalf("first MarkJoined = %v, %v", won, err)
	}
	won, err = events.MarkJoined(ctx, "2")
	if err != nil || won {
		t.Fatalf("second MarkJoined = %v, %v", won, err)
	}
	got, err := events.Get(ctx, "2")
	if err != nil || !got.Joined {
		t.Errorf("Get(2) = %+v, %v", got, err)
	}

	if _, err := events.Get(ctx, "42"); !errors.Is(err, domain.ErrEventNotFound) {
		t.Errorf("Get(42) err = %v", err)
	}
	if _, err := events.MarkJoined(ctx, "42"); !errors.Is(err, domain.ErrEventNotFound) {
		t.Errorf("MarkJoined(42) err = %v", err)
	}
}

func TestRuns(t *testing.T) {
	ctx := context.Background()
	runs := openTestStore(t).Runs()

	base := time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)
	first := &domain.WorkflowRun{ID: uuid.New(), Request: "check email", Status: domain.RunRunning, StartedAt: base}
	second := &domain.WorkflowRun{ID: uuid.New(), Request: "again", Status: domain.RunRunning, StartedAt: base.Add(time.Minute)}
	for _, r := range []*domain.WorkflowRun{first, second} {
		if err := runs.CreateRun(ctx, r); err != nil {
			t.Fatalf("CreateRun: %v", err)
		}
	}

	finished := base.Add(30 * time.Second)
	first.Status = domain.RunSucceeded
	first.TokensUsed = 120
	first.FinishedAt = &finished
	first.Stages = []domain.StageResult{{Name: "email_checker", OutputKey: "email_check", Output: "You have 3 unread emails", ToolCalls: 1}}
	if err := runs.UpdateRun(ctx, first); err != nil {
		t.Fatalf("UpdateRun: %v", err)
	}

	got, err := runs.GetRun(ctx, first.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Status != domain.RunSucceeded || got.TokensUsed != 120 || got.FinishedAt == nil {
		t.Errorf("GetRun = %+v", got)
	}
	if len(got.Stages) != 1 || got.Stages[0].Output != "You have 3 unread emails" {
		t.Errorf("stages = %+v", got.Stages)
	}

	list, err := runs.ListRuns(ctx, 10)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(list) != 2 || list[0].ID != second.ID {
		t.Errorf("ListRuns order = %+v", list)
	}

	if _, err := runs.GetRun(ctx, uuid.New()); !errors.Is(err, domain.ErrRunNotFound) {
		t.Errorf("GetRun(unknown) err = %v", err)
	}
	if err := runs.UpdateRun(ctx, &domain.WorkflowRun{ID: uuid.New()}); !errors.Is(err, domain.ErrRunNotFound) {
		t.Errorf("UpdateRun(unknown) err = %v", err)
	}
}
