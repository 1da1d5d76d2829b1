// Package calendar records scheduled meetings and answers "what starts soon".
package calendar

import (
	"context"

	"github.com/jkaninda/huddle/internal/domain"
)

// Store persists calendar events. IDs are assigned by the store as
// sequential decimal strings.
type Store interface {
	Add(ctx context.Context, e *domain.Event) (*domain.Event, error)
	// List returns events whose start_time begins with datePrefix; an empty
	// prefix returns everything. Events come back in insertion order.
	List(ctx context.Context, datePrefix string) ([]domain.Event, error)
	Get(ctx context.Context, id string) (*domain.Event, error)
	// MarkJoined flags the event as joined. It reports false when the event
	// was already joined, so exactly one caller wins.
	MarkJoined(ctx context.Context, id string) (bool, error)
}
