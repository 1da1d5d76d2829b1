package meetingtime

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Rule names, in precedence order.
const (
	RuleEmpty        = "empty"
	RuleRelativeDays = "relative_days"
	RuleMonthDay     = "month_day"
	RuleTomorrow     = "tomorrow"
	RuleToday        = "today"
	RuleExact        = "exact"
	RuleFallback     = "fallback"
)

var (
	errNoDayCount    = errors.New("no day count before \"days\"")
	errNoDayOfMonth  = errors.New("no day of month after month name")
	errDayOutOfRange = errors.New("day of month out of range")
)

var (
	dayCountPattern = regexp.MustCompile(`(\d+)\s*days`)
	atClausePattern = regexp.MustCompile(`\bat\b(.*)$`)
	digitsPattern   = regexp.MustCompile(`\d+`)
	monthPattern    = regexp.MustCompile(`\b(january|february|march|april|may|june|july|august|september|october|november|december)\b(.*)$`)
)

var monthNumbers = map[string]time.Month{
	"january":   time.January,
	"february":  time.February,
	"march":     time.March,
	"april":     time.April,
	"may":       time.May,
	"june":      time.June,
	"july":      time.July,
	"august":    time.August,
	"september": time.September,
	"october":   time.October,
	"november":  time.November,
	"december":  time.December,
}

// rule pairs a predicate with the extraction it guards. The first rule whose
// predicate matches decides the result; its extraction error means fallback.
type rule struct {
	name    string
	match   func(expr string) bool
	extract func(expr string, now time.Time, loc *time.Location) (time.Time, error)
}

var rules = []rule{
	{
		name:    RuleEmpty,
		match:   func(expr string) bool { return expr == "" },
		extract: func(_ string, now time.Time, _ *time.Location) (time.Time, error) { return now.Add(DefaultOffset), nil },
	},
	{
		name: RuleRelativeDays,
		match: func(expr string) bool {
			return strings.Contains(expr, "in") && strings.Contains(expr, "days")
		},
		extract: extractRelativeDays,
	},
	{
		name:    RuleMonthDay,
		match:   monthPattern.MatchString,
		extract: extractMonthDay,
	},
	{
		name:    RuleTomorrow,
		match:   func(expr string) bool { return strings.Contains(expr, "tomorrow") },
		extract: extractTomorrow,
	},
	{
		name:    RuleToday,
		match:   hasMeridiem,
		extract: extractToday,
	},
	{
		name:    RuleExact,
		match:   func(string) bool { return true },
		extract: extractExact,
	},
}

func normalize(expr string) string {
	return strings.ToLower(strings.TrimSpace(expr))
}

// "in 5 days", "in 3 days at 10.15 am"
func extractRelativeDays(expr string, now time.Time, loc *time.Location) (time.Time, error) {
	m := dayCountPattern.FindStringSubmatch(expr)
	if m == nil {
		return time.Time{}, errNoDayCount
	}
	days, err := strconv.Atoi(m[1])
	if err != nil {
		return time.Time{}, fmt.Errorf("day count %q: %w", m[1], err)
	}

	hour, minute := 0, 0
	if at := atClausePattern.FindStringSubmatch(expr); at != nil {
		if hour, minute, err = ParseClock(at[1]); err != nil {
			return time.Time{}, err
		}
	}
	day := now.AddDate(0, 0, days)
	return onDate(day, hour, minute, loc), nil
}

// "may 12th", "may 12th at 9am", "december 1 at 4.45 pm"
func extractMonthDay(expr string, now time.Time, loc *time.Location) (time.Time, error) {
	m := monthPattern.FindStringSubmatch(expr)
	month := monthNumbers[m[1]]
	rest := m[2]

	clock, hasClock := "", false
	if at := atClausePattern.FindStringSubmatchIndex(rest); at != nil {
		clock, hasClock = rest[at[2]:at[3]], true
		rest = rest[:at[0]]
	}

	digits := digitsPattern.FindString(rest)
	if digits == "" {
		return time.Time{}, errNoDayOfMonth
	}
	day, err := strconv.Atoi(digits)
	if err != nil {
		return time.Time{}, fmt.Errorf("day of month %q: %w", digits, err)
	}

	hour, minute := 0, 0
	if hasClock {
		if hour, minute, err = ParseClock(clock); err != nil {
			return time.Time{}, err
		}
	}

	t := time.Date(now.Year(), month, day, hour, minute, 0, 0, loc)
	if t.Month() != month || t.Day() != day {
		return time.Time{}, fmt.Errorf("%w: %s %d", errDayOutOfRange, month, day)
	}
	return t, nil
}

// "tomorrow", "tomorrow 3 pm", "tomorrow at 3.30 pm"
// Without am/pm the meeting is at midnight, whatever else follows.
func extractTomorrow(expr string, now time.Time, loc *time.Location) (time.Time, error) {
	day := now.AddDate(0, 0, 1)
	rest := strings.Replace(expr, "tomorrow", "", 1)
	if !hasMeridiem(rest) {
		return onDate(day, 0, 0, loc), nil
	}
	hour, minute, err := ParseClock(rest)
	if err != nil {
		return time.Time{}, err
	}
	return onDate(day, hour, minute, loc), nil
}

// "1 pm", "10:45 am"
func extractToday(expr string, now time.Time, loc *time.Location) (time.Time, error) {
	hour, minute, err := ParseClock(expr)
	if err != nil {
		return time.Time{}, err
	}
	return onDate(now, hour, minute, loc), nil
}

// "2024-06-01 10:00:00"
func extractExact(expr string, _ time.Time, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(DisplayLayout, expr, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("exact timestamp: %w", err)
	}
	return t, nil
}

func onDate(day time.Time, hour, minute int, loc *time.Location) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, loc)
}
