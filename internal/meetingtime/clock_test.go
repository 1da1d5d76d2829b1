package meetingtime

import (
	"testing"
	"time"
)

func TestParseClock(t *testing.T) {
	tests := []struct {
		in           string
		hour, minute int
		wantErr      bool
	}{
		{"3 pm", 15, 0, false},
		{"3pm", 15, 0, false},
		{"3.30 pm", 15, 30, false},
		{"3:30 pm", 15, 30, false},
		{"12 pm", 12, 0, false},
		{"12 am", 0, 0, false},
		{"12:45 am", 0, 45, false},
		{"9am", 9, 0, false},
		{"at 9am", 9, 0, false},
		{"14:00", 14, 0, false},
		{"", 0, 0, true},
		{"noon", 0, 0, true},
		{"pm", 0, 0, true},
		{"32 pm", 0, 0, true},
		{"13 pm", 0, 0, true},
		{"3:61 am", 0, 0, true},
		{"x pm", 0, 0, true},
		{"3:30:00 pm", 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			h, m, err := ParseClock(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseClock(%q) = %d:%d, want error", tt.in, h, m)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseClock(%q): %v", tt.in, err)
			}
			if h != tt.hour || m != tt.minute {
				t.Errorf("ParseClock(%q) = %02d:%02d, want %02d:%02d", tt.in, h, m, tt.hour, tt.minute)
			}
		})
	}
}

func TestFormatClock_RoundTrip(t *testing.T) {
	r := newTestResolver()
	for _, expr := range []string{"tomorrow 3 pm", "tomorrow 3.30 pm", "in 5 days at 2pm", "may 12th at 9am", "1 pm", "12 am", "2024-06-01 10:00:00"} {
		resolved := r.Resolve(expr)
		clock := FormatClock(resolved)

		h, m, err := ParseClock(clock)
		if err != nil {
			t.Fatalf("%q: ParseClock(%q): %v", expr, clock, err)
		}
		if h != resolved.Hour() || m != resolved.Minute() {
			t.Errorf("%q: round trip via %q gave %02d:%02d, want %02d:%02d", expr, clock, h, m, resolved.Hour(), resolved.Minute())
		}
	}
}

func TestFormatZoom(t *testing.T) {
	ts := time.Date(2025, time.May, 12, 9, 0, 0, 0, time.UTC)
	if got := FormatZoom(ts); got != "2025-05-12T09:00:00Z" {
		t.Errorf("FormatZoom = %q", got)
	}
	if got := FormatDisplay(ts); got != "2025-05-12 09:00:00" {
		t.Errorf("FormatDisplay = %q", got)
	}

	parsed, err := ParseDisplay("2025-05-12 09:00:00", time.UTC)
	if err != nil {
		t.Fatalf("ParseDisplay: %v", err)
	}
	if !parsed.Equal(ts) {
		t.Errorf("ParseDisplay = %v, want %v", parsed, ts)
	}
}
