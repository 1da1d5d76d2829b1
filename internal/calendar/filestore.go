package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jkaninda/huddle/internal/domain"
)

// FileStore keeps events in a JSON array on disk, compatible with the
// mock_calendar.json layout.
type FileStore struct {
	mu     sync.Mutex
	path   string
	events []domain.Event
	now    func() time.Time
}

// NewFileStore loads path, creating an empty calendar when it is missing.
func NewFileStore(path string) (*FileStore, error) {
	fs := &FileStore{path: path, now: time.Now}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating calendar directory: %w", err)
		}
		if err := fs.save(); err != nil {
			return nil, err
		}
		return fs, nil
	case err != nil:
		return nil, fmt.Errorf("reading calendar %s: %w", path, err)
	}

	if len(strings.TrimSpace(string(data))) > 0 {
		if err := json.Unmarshal(data, &fs.events); err != nil {
			return nil, fmt.Errorf("parsing calendar %s: %w", path, err)
		}
	}
	return fs, nil
}

// Path returns the backing file.
func (fs *FileStore) Path() string { return fs.path }

func (fs *FileStore) Add(ctx context.Context, e *domain.Event) (*domain.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()

	ev := *e
	ev.ID = strconv.Itoa(len(fs.events) + 1)
	if ev.CreatedAt == "" {
		ev.CreatedAt = fs.now().Format(time.RFC3339)
	}
	fs.events = append(fs.events, ev)
	if err := fs.save(); err != nil {
		fs.events = fs.events[:len(fs.events)-1]
		return nil, err
	}
	return &ev, nil
}

func (fs *FileStore) List(ctx context.Context, datePrefix string) ([]domain.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()

	out := make([]domain.Event, 0, len(fs.events))
	for _, e := range fs.events {
		if strings.HasPrefix(e.StartTime, datePrefix) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (fs *FileStore) Get(ctx context.Context, id string) (*domain.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()

	for _, e := range fs.events {
		if e.ID == id {
			return &e, nil
		}
	}
	return nil, fmt.Errorf("event %q: %w", id, domain.ErrEventNotFound)
}

func (fs *FileStore) MarkJoined(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()

	for i := range fs.events {
		if fs.events[i].ID != id {
			continue
		}
		if fs.events[i].Joined {
			return false, nil
		}
		fs.events[i].Joined = true
		if err := fs.save(); err != nil {
			fs.events[i].Joined = false
			return false, err
		}
		return true, nil
	}
	return false, fmt.Errorf("event %q: %w", id, domain.ErrEventNotFound)
}

// save writes the calendar through a temp file so a crash never leaves a
// truncated array behind. Callers hold mu.
func (fs *FileStore) save() error {
	events := fs.events
	if events == nil {
		events = []domain.Event{}
	}
	data, err := json.MarshalIndent(events, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding calendar: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(fs.path), ".calendar-*.json")
	if err != nil {
		return fmt.Errorf("writing calendar: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing calendar: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing calendar: %w", err)
	}
	if err := os.Rename(tmp.Name(), fs.path); err != nil {
		return fmt.Errorf("replacing calendar %s: %w", fs.path, err)
	}
	return nil
}
