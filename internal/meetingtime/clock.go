package meetingtime

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Wire and display layouts.
const (
	// DisplayLayout is used for calendar entries and exact input.
	DisplayLayout = "2006-01-02 15:04:05"
	// ZoomLayout is the start_time format expected by the Zoom meetings API.
	ZoomLayout = "2006-01-02T15:04:05Z"
)

var (
	errClockRange = errors.New("clock time out of range")
	errNoClock    = errors.New("no clock time")
)

// ParseClock reads a clock time such as "3 pm", "3.30 pm", "12:05am" or "14:00".
//
// The numeric part before "pm"/"am" may use "." or ":" as minute separator.
// With "pm" 12 is added unless the hour is already 12; with "am" hour 12 becomes 0.
// Without a meridiem, digits are read as a 24-hour clock. A string with no
// digits is an error. A leading "at" is ignored.
func ParseClock(s string) (hour, minute int, err error) {
	s = strings.TrimSpace(s)
	if rest, ok := strings.CutPrefix(s, "at "); ok {
		s = strings.TrimSpace(rest)
	}

	meridiem := ""
	digits := s
	switch {
	case strings.Contains(s, "pm"):
		meridiem = "pm"
		digits, _, _ = strings.Cut(s, "pm")
	case strings.Contains(s, "am"):
		meridiem = "am"
		digits, _, _ = strings.Cut(s, "am")
	}
	digits = strings.ReplaceAll(strings.TrimSpace(digits), ".", ":")

	if !strings.ContainsAny(digits, "0123456789") {
		return 0, 0, fmt.Errorf("%w in %q", errNoClock, s)
	}

	if h, m, ok := strings.Cut(digits, ":"); ok {
		if hour, err = strconv.Atoi(h); err != nil {
			return 0, 0, fmt.Errorf("clock hour %q: %w", h, err)
		}
		if minute, err = strconv.Atoi(m); err != nil {
			return 0, 0, fmt.Errorf("clock minute %q: %w", m, err)
		}
	} else if hour, err = strconv.Atoi(digits); err != nil {
		return 0, 0, fmt.Errorf("clock hour %q: %w", digits, err)
	}

	switch meridiem {
	case "pm":
		if hour != 12 {
			hour += 12
		}
	case "am":
		if hour == 12 {
			hour = 0
		}
	}

	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("%w: %02d:%02d", errClockRange, hour, minute)
	}
	return hour, minute, nil
}

// hasMeridiem reports whether s carries an "am" or "pm" marker.
func hasMeridiem(s string) bool {
	return strings.Contains(s, "am") || strings.Contains(s, "pm")
}

// FormatClock renders t as a 12-hour clock ("3:30 pm") that ParseClock reads back.
func FormatClock(t time.Time) string {
	h := t.Hour() % 12
	if h == 0 {
		h = 12
	}
	meridiem := "am"
	if t.Hour() >= 12 {
		meridiem = "pm"
	}
	return fmt.Sprintf("%d:%02d %s", h, t.Minute(), meridiem)
}

// FormatZoom converts t to UTC and formats it for the Zoom API.
func FormatZoom(t time.Time) string {
	return t.UTC().Format(ZoomLayout)
}

// FormatDisplay formats t as a calendar start time.
func FormatDisplay(t time.Time) string {
	return t.Format(DisplayLayout)
}

// ParseDisplay parses a calendar start time in loc.
func ParseDisplay(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	return time.ParseInLocation(DisplayLayout, strings.TrimSpace(s), loc)
}
