package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gorm.io/gorm"

	"github.com/jkaninda/huddle/internal/calendar"
	"github.com/jkaninda/huddle/internal/domain"
)

// EventRepository implements calendar.Store with GORM.
type EventRepository struct {
	db *gorm.DB
}

// NewEventRepository creates an EventRepository.
func NewEventRepository(db *gorm.DB) *EventRepository {
	return &EventRepository{db: db}
}

func (r *EventRepository) Add(ctx context.Context, e *domain.Event) (*domain.Event, error) {
	model := toEventModel(e)
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return nil, fmt.Errorf("creating event: %w", err)
	}
	ev := toEventDomain(&model)
	return &ev, nil
}

func (r *EventRepository) List(ctx context.Context, datePrefix string) ([]domain.Event, error) {
	q := r.db.WithContext(ctx).Order("id ASC")
	if datePrefix != "" {
		q = q.Where(`start_time LIKE ? ESCAPE '\'`, escapeLike(datePrefix)+"%")
	}
	var models []EventModel
	if err := q.Find(&models).Error; err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}
	events := make([]domain.Event, 0, len(models))
	for i := range models {
		events = append(events, toEventDomain(&models[i]))
	}
	return events, nil
}

func (r *EventRepository) Get(ctx context.Context, id string) (*domain.Event, error) {
	pk, err := parseID(id)
	if err != nil {
		return nil, err
	}
	var model EventModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", pk).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("event %q: %w", id, domain.ErrEventNotFound)
		}
		return nil, fmt.Errorf("getting event %s: %w", id, err)
	}
	ev := toEventDomain(&model)
	return &ev, nil
}

// MarkJoined is a conditional UPDATE, so two callers racing on the same
// event see exactly one success.
func (r *EventRepository) MarkJoined(ctx context.Context, id string) (bool, error) {
	pk, err := parseID(id)
	if err != nil {
		return false, err
	}
	res := r.db.WithContext(ctx).Model(&EventModel{}).
		Where("id = ? AND joined = ?", pk, false).
		Update("joined", true)
	if res.Error != nil {
		return false, fmt.Errorf("marking event %s joined: %w", id, res.Error)
	}
	if res.RowsAffected == 1 {
		return true, nil
	}

	var count int64
	if err := r.db.WithContext(ctx).Model(&EventModel{}).Where("id = ?", pk).Count(&count).Error; err != nil {
		return false, fmt.Errorf("checking event %s: %w", id, err)
	}
	if count == 0 {
		return false, fmt.Errorf("event %q: %w", id, domain.ErrEventNotFound)
	}
	return false, nil
}

func parseID(id string) (uint64, error) {
	pk, err := strconv.ParseUint(id, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("event %q: %w", id, domain.ErrEventNotFound)
	}
	return pk, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike keeps user-supplied prefixes from acting as patterns.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

var _ calendar.Store = (*EventRepository)(nil)
