package workflow

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/jkaninda/huddle/internal/tools"
)

// ErrNoAnalysis means the text carried no MEETING_REQUIRED line.
var ErrNoAnalysis = errors.New("no MEETING_REQUIRED line in analysis")

const (
	UrgencyUrgent = "urgent"
	UrgencyNormal = "normal"
)

// MeetingDetails is the JSON object the analyzer emits after MEETING_DETAILS.
type MeetingDetails struct {
	Topic       string `json:"topic"`
	Description string `json:"description"`
	Duration    int    `json:"duration"`
}

// EmailAnalysis is the structured form of the analyzer stage output.
type EmailAnalysis struct {
	MeetingRequired bool           `json:"meeting_required"`
	Urgency         string         `json:"urgency"`
	Details         MeetingDetails `json:"details"`
	Important       []string       `json:"important"`
	Suspicious      []string       `json:"suspicious"`
}

const (
	keyMeetingRequired = "MEETING_REQUIRED"
	keyUrgency         = "URGENCY"
	keyMeetingDetails  = "MEETING_DETAILS"
	keyImportant       = "IMPORTANT"
	keySuspicious      = "SUSPICIOUS"
)

// Models decorate the labels with markdown, so leading bullets, headings and
// bold markers are tolerated on either side of the key.
var sectionPattern = regexp.MustCompile(`(?i)^[\s*#>-]*(MEETING_REQUIRED|URGENCY|MEETING_DETAILS|IMPORTANT|SUSPICIOUS)[\s*]*:[\s*]*(.*)$`)

var bulletPattern = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s*`)

// ParseAnalysis reads the analyzer format:
//
//	MEETING_REQUIRED: [yes/no]
//	URGENCY: [urgent/normal]
//	MEETING_DETAILS: {"topic": ..., "description": ..., "duration": 30}
//	IMPORTANT: [items]
//	SUSPICIOUS: [items]
func ParseAnalysis(text string) (EmailAnalysis, error) {
	sections := splitSections(text)

	required, ok := sections[keyMeetingRequired]
	if !ok {
		return EmailAnalysis{}, ErrNoAnalysis
	}

	var a EmailAnalysis
	switch v := strings.ToLower(cleanValue(required)); {
	case strings.HasPrefix(v, "yes"):
		a.MeetingRequired = true
	case strings.HasPrefix(v, "no"):
	default:
		return EmailAnalysis{}, fmt.Errorf("MEETING_REQUIRED must be yes or no, got %q", required)
	}

	a.Urgency = UrgencyNormal
	if strings.Contains(strings.ToLower(sections[keyUrgency]), UrgencyUrgent) {
		a.Urgency = UrgencyUrgent
	}

	if raw, ok := sections[keyMeetingDetails]; ok {
		details, err := parseDetails(raw)
		if err != nil && a.MeetingRequired {
			return a, fmt.Errorf("parsing MEETING_DETAILS: %w", err)
		}
		a.Details = details
	}

	a.Important = parseList(sections[keyImportant])
	a.Suspicious = parseList(sections[keySuspicious])
	return a, nil
}

// splitSections maps each key to its text: the rest of the key line plus
// every following line up to the next key.
func splitSections(text string) map[string]string {
	sections := make(map[string]string)
	var current string
	for _, line := range strings.Split(text, "\n") {
		if m := sectionPattern.FindStringSubmatch(line); m != nil {
			current = strings.ToUpper(m[1])
			if _, seen := sections[current]; seen {
				// Echoed format examples come after the real answer.
				current = ""
				continue
			}
			sections[current] = strings.TrimSpace(m[2])
			continue
		}
		if current == "" {
			continue
		}
		if sections[current] == "" {
			sections[current] = strings.TrimSpace(line)
		} else {
			sections[current] += "\n" + line
		}
	}
	return sections
}

func parseDetails(raw string) (MeetingDetails, error) {
	start := strings.Index(raw, "{")
	if start < 0 {
		return MeetingDetails{}, errors.New("no JSON object")
	}
	var obj map[string]any
	if err := json.NewDecoder(strings.NewReader(raw[start:])).Decode(&obj); err != nil {
		return MeetingDetails{}, err
	}
	duration, err := tools.Int(obj, "duration", 0)
	if err != nil {
		return MeetingDetails{}, err
	}
	return MeetingDetails{
		Topic:       tools.String(obj, "topic"),
		Description: tools.String(obj, "description"),
		Duration:    duration,
	}, nil
}

func parseList(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	var parts []string
	lines := strings.Split(raw, "\n")
	if len(lines) == 1 {
		parts = strings.Split(strings.Trim(raw, "[]"), ",")
	} else {
		parts = lines
	}

	var items []string
	for _, p := range parts {
		item := strings.Trim(bulletPattern.ReplaceAllString(p, ""), "[]\"' ")
		switch strings.ToLower(item) {
		case "", "none", "n/a", "nothing":
			continue
		}
		items = append(items, item)
	}
	return items
}

func cleanValue(s string) string {
	return strings.Trim(strings.TrimSpace(s), "[]*\"'` ")
}
