package postgres

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/jkaninda/huddle/internal/domain"
)

func toEventModel(e *domain.Event) EventModel {
	m := EventModel{
		Title:       e.Title,
		StartTime:   e.StartTime,
		Duration:    e.Duration,
		MeetingURL:  e.MeetingURL,
		MeetingID:   e.MeetingID,
		Description: e.Description,
		Type:        e.Type,
		Joined:      e.Joined,
	}
	if e.CreatedAt != "" {
		if t, err := time.Parse(time.RFC3339, e.CreatedAt); err == nil {
			m.CreatedAt = t
		}
	}
	return m
}

func toEventDomain(m *EventModel) domain.Event {
	return domain.Event{
		ID:          strconv.FormatUint(uint64(m.ID), 10),
		CreatedAt:   m.CreatedAt.Format(time.RFC3339),
		Title:       m.Title,
		StartTime:   m.StartTime,
		Duration:    m.Duration,
		MeetingURL:  m.MeetingURL,
		MeetingID:   m.MeetingID,
		Description: m.Description,
		Type:        m.Type,
		Joined:      m.Joined,
	}
}

func toRunModel(r *domain.WorkflowRun) RunModel {
	stages, _ := json.Marshal(r.Stages)
	if r.Stages == nil {
		stages = []byte("[]")
	}
	return RunModel{
		ID:         r.ID,
		Request:    r.Request,
		Status:     string(r.Status),
		Stages:     JSONB(stages),
		Error:      r.Error,
		TokensUsed: r.TokensUsed,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
	}
}

func toRunDomain(m *RunModel) *domain.WorkflowRun {
	var stages []domain.StageResult
	if len(m.Stages) > 0 {
		_ = json.Unmarshal(m.Stages, &stages)
	}
	return &domain.WorkflowRun{
		ID:         m.ID,
		Request:    m.Request,
		Status:     domain.RunStatus(m.Status),
		Stages:     stages,
		Error:      m.Error,
		TokensUsed: m.TokensUsed,
		StartedAt:  m.StartedAt,
		FinishedAt: m.FinishedAt,
	}
}
