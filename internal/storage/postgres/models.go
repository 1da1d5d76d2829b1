package postgres

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// EventModel maps to the "calendar_events" table.
type EventModel struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	Title       string `gorm:"not null"`
	StartTime   string `gorm:"not null;index"` // Display layout, so prefix matching selects a day.
	Duration    int    `gorm:"not null;default:60"`
	MeetingURL  string
	MeetingID   string `gorm:"index"`
	Description string `gorm:"type:text"`
	Type        string `gorm:"not null;default:'zoom_meeting'"`
	Joined      bool   `gorm:"not null;default:false"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (EventModel) TableName() string { return "calendar_events" }

// RunModel maps to the "workflow_runs" table.
type RunModel struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	Request    string    `gorm:"type:text;not null"`
	Status     string    `gorm:"not null;index"`
	Stages     JSONB     `gorm:"type:jsonb;not null;default:'[]'"`
	Error      string    `gorm:"type:text"`
	TokensUsed int       `gorm:"not null;default:0"`
	StartedAt  time.Time `gorm:"not null;index"`
	FinishedAt *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (RunModel) TableName() string { return "workflow_runs" }

// JSONB is a json.RawMessage that implements the driver.Valuer and sql.Scanner interfaces
// for GORM JSONB columns. SQLite stores it as TEXT.
type JSONB json.RawMessage

func (j JSONB) Value() (driver.Value, error) {
	if len(j) == 0 {
		return "null", nil
	}
	return string(j), nil
}

func (j *JSONB) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*j = nil
	case []byte:
		*j = append((*j)[:0], v...)
	case string:
		*j = JSONB(v)
	default:
		return errors.New("jsonb: unsupported scan type")
	}
	return nil
}

// Models lists every table in migration order.
func Models() []any {
	return []any{&EventModel{}, &RunModel{}}
}
