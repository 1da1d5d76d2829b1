// Package domain defines entity types shared by the calendar, workflow and storage layers.
package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrEventNotFound = errors.New("event not found")
	ErrRunNotFound   = errors.New("workflow run not found")
)

// EventTypeZoomMeeting is the only event type the assistant creates.
const EventTypeZoomMeeting = "zoom_meeting"

// Event is a calendar entry. The JSON shape matches the mock_calendar.json
// file format so the file store and the HTTP API share it.
type Event struct {
	ID          string `json:"id"`
	CreatedAt   string `json:"created_at"`
	Title       string `json:"title"`
	StartTime   string `json:"start_time"` // "2006-01-02 15:04:05" in the resolver location.
	Duration    int    `json:"duration"`   // Minutes.
	MeetingURL  string `json:"meeting_url"`
	MeetingID   string `json:"meeting_id"`
	Description string `json:"description"`
	Type        string `json:"type"`
	Joined      bool   `json:"joined,omitempty"`
}

// RunStatus is the lifecycle state of a workflow run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// WorkflowRun records one execution of the email workflow.
type WorkflowRun struct {
	ID         uuid.UUID     `json:"id"`
	Request    string        `json:"request"`
	Status     RunStatus     `json:"status"`
	Stages     []StageResult `json:"stages"`
	Error      string        `json:"error,omitempty"`
	TokensUsed int           `json:"tokens_used"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt *time.Time    `json:"finished_at,omitempty"`
}

// StageResult is the outcome of one workflow stage.
type StageResult struct {
	Name      string        `json:"name"`
	OutputKey string        `json:"output_key"`
	Output    string        `json:"output"`
	Skipped   bool          `json:"skipped,omitempty"`
	Error     string        `json:"error,omitempty"`
	ToolCalls int           `json:"tool_calls"`
	Duration  time.Duration `json:"duration"`
}
