package ratelimit

import (
	"errors"
	"testing"
	"time"
)

func TestAllow(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	l := New(Config{RequestsPerMinute: 60, BurstSize: 2}).WithClock(func() time.Time { return now })

	for i := 0; i < 2; i++ {
		if err := l.Allow("alice"); err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
	}
	if err := l.Allow("alice"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("third request: got %v, want ErrRateLimited", err)
	}
	if err := l.Allow("bob"); err != nil {
		t.Errorf("bob shares alice's bucket: %v", err)
	}

	now = now.Add(time.Second)
	if err := l.Allow("alice"); err != nil {
		t.Errorf("after refill: %v", err)
	}
	if err := l.Allow("alice"); !errors.Is(err, ErrRateLimited) {
		t.Errorf("refill exceeded one token: %v", err)
	}
}

func TestAllow_BurstCap(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	l := New(Config{RequestsPerMinute: 60}).WithClock(func() time.Time { return now })

	if err := l.Allow("k"); err != nil {
		t.Fatal(err)
	}
	now = now.Add(time.Hour)
	allowed := 0
	for l.Allow("k") == nil {
		allowed++
		if allowed > 100 {
			break
		}
	}
	if allowed != 60 {
		t.Errorf("allowed %d after idle hour, want burst of 60", allowed)
	}
}

func TestUnlimited(t *testing.T) {
	l := New(Config{})
	if l != nil {
		t.Fatal("zero config should return nil limiter")
	}
	for i := 0; i < 1000; i++ {
		if err := l.Allow("k"); err != nil {
			t.Fatal(err)
		}
	}
}
