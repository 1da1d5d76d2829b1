package mail

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestMockInbox_Check(t *testing.T) {
	now := time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)
	in := NewMockInbox(now)

	res, err := in.Check(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Report != "You have 3 unread emails, 2 are urgent." {
		t.Errorf("report = %q", res.Report)
	}
	if len(res.Emails) != 3 {
		t.Fatalf("emails = %d", len(res.Emails))
	}
	if res.Emails[2].SpamProbability != 0.95 || res.Emails[2].Priority != PriorityLow {
		t.Errorf("spam email = %+v", res.Emails[2])
	}
	if !res.Emails[0].Timestamp.Equal(now) {
		t.Errorf("timestamp = %v", res.Emails[0].Timestamp)
	}
}

func TestInbox_MarkAsRead(t *testing.T) {
	in := NewMockInbox(time.Now())
	ctx := context.Background()

	msg, err := in.MarkAsRead(ctx, "1")
	if err != nil {
		t.Fatal(err)
	}
	if msg != "Email 1 marked as read" {
		t.Errorf("msg = %q", msg)
	}

	res, _ := in.Check(ctx)
	if res.Unread != 2 || res.Urgent != 2 {
		t.Errorf("unread/urgent = %d/%d", res.Unread, res.Urgent)
	}

	if _, err := in.MarkAsRead(ctx, "42"); !errors.Is(err, ErrEmailNotFound) {
		t.Errorf("err = %v", err)
	}
}

func TestInbox_CheckReturnsCopy(t *testing.T) {
	in := NewMockInbox(time.Now())
	res, _ := in.Check(context.Background())
	res.Emails[0].IsRead = true

	e, err := in.Get("1")
	if err != nil {
		t.Fatal(err)
	}
	if e.IsRead {
		t.Error("mutating the check result changed the inbox")
	}
}

func TestInbox_Concurrent(t *testing.T) {
	in := NewMockInbox(time.Now())
	ctx := context.Background()

	var wg sync.WaitGroup
	for _, id := range []string{"1", "2", "3", "1", "2", "3"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = in.MarkAsRead(ctx, id)
			_, _ = in.Check(ctx)
		}()
	}
	wg.Wait()

	res, _ := in.Check(ctx)
	if res.Unread != 0 {
		t.Errorf("unread = %d", res.Unread)
	}
}

func TestInbox_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewMockInbox(time.Now()).Check(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v", err)
	}
}
