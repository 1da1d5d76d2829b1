package workflow

import (
	"errors"
	"reflect"
	"testing"
)

func TestParseAnalysis(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want EmailAnalysis
	}{
		{
			name: "plain format",
			in:   analysisYes,
			want: EmailAnalysis{
				MeetingRequired: true,
				Urgency:         UrgencyUrgent,
				Details:         MeetingDetails{Topic: "Project status", Description: "Discuss the project status", Duration: 30},
				Important:       []string{"Deliverables due EOD"},
				Suspicious:      []string{"Prize email from unknown@suspicious.com"},
			},
		},
		{
			name: "markdown decorated",
			in: "Here is my analysis:\n\n**MEETING_REQUIRED:** Yes\n**URGENCY:** normal\n**MEETING_DETAILS:**\n```json\n{\"topic\": \"Sync\", \"duration\": \"45\"}\n```\n" +
				"**IMPORTANT:**\n- Review deliverables\n- Submit by EOD\n\n**SUSPICIOUS:** None",
			want: EmailAnalysis{
				MeetingRequired: true,
				Urgency:         UrgencyNormal,
				Details:         MeetingDetails{Topic: "Sync", Duration: 45},
				Important:       []string{"Review deliverables", "Submit by EOD"},
			},
		},
		{
			name: "no meeting",
			in:   analysisNo,
			want: EmailAnalysis{Urgency: UrgencyNormal},
		},
		{
			name: "bracketed answer",
			in:   "MEETING_REQUIRED: [no]\nURGENCY: [urgent]",
			want: EmailAnalysis{Urgency: UrgencyUrgent},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAnalysis(tt.in)
			if err != nil {
				t.Fatalf("ParseAnalysis: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got  %+v\nwant %+v", got, tt.want)
			}
		})
	}
}

func TestParseAnalysis_Errors(t *testing.T) {
	if _, err := ParseAnalysis("I could not find any emails."); !errors.Is(err, ErrNoAnalysis) {
		t.Errorf("err = %v, want ErrNoAnalysis", err)
	}
	if _, err := ParseAnalysis("MEETING_REQUIRED: maybe"); err == nil {
		t.Error("expected error for non yes/no answer")
	}
	if _, err := ParseAnalysis("MEETING_REQUIRED: yes\nMEETING_DETAILS: {\"topic\": "); err == nil {
		t.Error("expected error for broken details when a meeting is required")
	}
}
