package meetingtime

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

var fixedNow = time.Date(2025, time.March, 10, 9, 17, 42, 0, time.UTC)

func newTestResolver(opts ...Option) *Resolver {
	base := []Option{
		WithClock(func() time.Time { return fixedNow }),
		WithLocation(time.UTC),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}
	return New(append(base, opts...)...)
}

func at(days, hour, minute int) time.Time {
	d := fixedNow.AddDate(0, 0, days)
	return time.Date(d.Year(), d.Month(), d.Day(), hour, minute, 0, 0, time.UTC)
}

func TestResolve(t *testing.T) {
	r := newTestResolver()

	tests := []struct {
		expr string
		want time.Time
		rule string
	}{
		{"", fixedNow.Add(5 * time.Minute), RuleEmpty},
		{"   ", fixedNow.Add(5 * time.Minute), RuleEmpty},
		{"tomorrow 3 pm", at(1, 15, 0), RuleTomorrow},
		{"tomorrow 3.30 pm", at(1, 15, 30), RuleTomorrow},
		{"Tomorrow 10:15 AM", at(1, 10, 15), RuleTomorrow},
		{"tomorrow at 9am", at(1, 9, 0), RuleTomorrow},
		{"tomorrow", at(1, 0, 0), RuleTomorrow},
		{"tomorrow 3", at(1, 0, 0), RuleTomorrow},
		{"tomorrow 99", at(1, 0, 0), RuleTomorrow},
		{"tomorrow morning", at(1, 0, 0), RuleTomorrow},
		{"tomorrow 12 am", at(1, 0, 0), RuleTomorrow},
		{"tomorrow 12 pm", at(1, 12, 0), RuleTomorrow},
		{"in 5 days at 2pm", at(5, 14, 0), RuleRelativeDays},
		{"in 2 days", at(2, 0, 0), RuleRelativeDays},
		{"in 3 days at 4.45 pm", at(3, 16, 45), RuleRelativeDays},
		{"may 12th at 9am", time.Date(2025, time.May, 12, 9, 0, 0, 0, time.UTC), RuleMonthDay},
		{"December 1", time.Date(2025, time.December, 1, 0, 0, 0, 0, time.UTC), RuleMonthDay},
		{"june 3 at 1.05 pm", time.Date(2025, time.June, 3, 13, 5, 0, 0, time.UTC), RuleMonthDay},
		{"1 pm", at(0, 13, 0), RuleToday},
		{"11:30 am", at(0, 11, 30), RuleToday},
		{"2024-06-01 10:00:00", time.Date(2024, time.June, 1, 10, 0, 0, 0, time.UTC), RuleExact},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			res := r.ResolveDetailed(tt.expr)
			if res.Fallback {
				t.Fatalf("unexpected fallback: %v", res.Err)
			}
			if !res.Time.Equal(tt.want) {
				t.Errorf("Resolve(%q) = %v, want %v", tt.expr, res.Time, tt.want)
			}
			if res.Rule != tt.rule {
				t.Errorf("rule = %q, want %q", res.Rule, tt.rule)
			}
		})
	}
}

func TestResolve_MalformedFallsBack(t *testing.T) {
	r := newTestResolver()

	inputs := []string{
		"xyz",
		"32 pm",
		"february",
		"february 30 at 10am",
		"in many days",
		"tomorrow 3:30:15 pm",
		"tomorrow 9:75 am",
		"2024-13-01 10:00:00",
		"team sync",
		"in 5 days at noon",
		"in 2 days at",
		"may 12th at noon",
	}

	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			res := r.ResolveDetailed(in)
			if !res.Fallback || res.Rule != RuleFallback {
				t.Fatalf("expected fallback, got rule %q at %v", res.Rule, res.Time)
			}
			if res.Err == nil {
				t.Error("fallback should carry a cause")
			}
			if res.Time.Before(fixedNow) || !res.Time.Before(fixedNow.Add(6*time.Minute)) {
				t.Errorf("fallback %v not in [now, now+6m)", res.Time)
			}
		})
	}
}

func TestResolve_EmptyIsNowPlusFive(t *testing.T) {
	r := New(WithLocation(time.UTC))
	before := time.Now()
	got := r.Resolve("")
	after := time.Now()

	if got.Before(before.Add(DefaultOffset)) || got.After(after.Add(DefaultOffset)) {
		t.Errorf("Resolve(\"\") = %v, want about %v", got, before.Add(DefaultOffset))
	}
}

func TestResolveStrict(t *testing.T) {
	r := newTestResolver()

	got, err := r.ResolveStrict("tomorrow 3 pm")
	if err != nil {
		t.Fatalf("ResolveStrict: %v", err)
	}
	if !got.Time.Equal(at(1, 15, 0)) || got.Rule != RuleTomorrow {
		t.Errorf("got %v (%s), want %v", got.Time, got.Rule, at(1, 15, 0))
	}

	if _, err := r.ResolveStrict("32 pm"); !errors.Is(err, ErrUnparseable) {
		t.Errorf("ResolveStrict(32 pm) error = %v, want ErrUnparseable", err)
	}

	got, err = r.ResolveStrict("")
	if err != nil {
		t.Fatalf("ResolveStrict(empty): %v", err)
	}
	if !got.Time.Equal(fixedNow.Add(DefaultOffset)) {
		t.Errorf("empty strict = %v", got.Time)
	}
}

type countingObserver struct {
	mu    sync.Mutex
	rules map[string]int
}

func (o *countingObserver) ObserveResolution(rule string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.rules[rule]++
}

func TestResolve_Observer(t *testing.T) {
	obs := &countingObserver{rules: map[string]int{}}
	r := newTestResolver(WithObserver(obs))

	r.Resolve("1 pm")
	r.Resolve("xyz")
	r.Resolve("nonsense")

	if obs.rules[RuleToday] != 1 {
		t.Errorf("today count = %d, want 1", obs.rules[RuleToday])
	}
	if obs.rules[RuleFallback] != 2 {
		t.Errorf("fallback count = %d, want 2", obs.rules[RuleFallback])
	}
}

func TestResolve_Location(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	r := New(
		WithClock(func() time.Time { return time.Date(2025, time.March, 10, 23, 30, 0, 0, time.UTC) }),
		WithLocation(loc),
	)

	// 23:30 UTC is already March 11 in UTC+2, so "tomorrow" is March 12.
	got := r.Resolve("tomorrow 9 am")
	want := time.Date(2025, time.March, 12, 9, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
	if FormatZoom(got) != "2025-03-12T07:00:00Z" {
		t.Errorf("FormatZoom = %s", FormatZoom(got))
	}
}

func TestResolve_Concurrent(t *testing.T) {
	r := newTestResolver()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if got := r.Resolve("tomorrow 3 pm"); !got.Equal(at(1, 15, 0)) {
				t.Errorf("got %v", got)
			}
		}()
	}
	wg.Wait()
}

func TestRulePrecedence(t *testing.T) {
	// Every input below also contains "am"/"pm"; the earlier rule must win.
	r := newTestResolver()
	cases := map[string]string{
		"in 5 days at 2pm":   RuleRelativeDays,
		"may 12th at 9am":    RuleMonthDay,
		"tomorrow 3 pm":      RuleTomorrow,
		"in 2 days tomorrow": RuleRelativeDays,
	}
	for expr, want := range cases {
		if got := r.ResolveDetailed(expr).Rule; got != want {
			t.Errorf("%q matched %q, want %q", expr, got, want)
		}
	}
}
