package postgres

import (
	"context"
	"fmt"
	"sync"

	"gorm.io/gorm"

	"github.com/jkaninda/huddle/internal/calendar"
	"github.com/jkaninda/huddle/internal/workflow"
)

// DriverName is reported by Store.Driver for PostgreSQL connections.
const DriverName = "postgres"

// Store implements storage.Store over a GORM connection. The SQLite backend
// shares it with its own dialector.
type Store struct {
	db     *gorm.DB
	driver string

	// Sub-store instances (created lazily on first access).
	mu     sync.Mutex
	events *EventRepository
	runs   *RunRepository
}

// NewStore wraps an open GORM connection.
func NewStore(db *gorm.DB, driver string) *Store {
	return &Store{db: db, driver: driver}
}

func (s *Store) Events() calendar.Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.events == nil {
		s.events = NewEventRepository(s.db)
	}
	return s.events
}

func (s *Store) Runs() workflow.RunStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.runs == nil {
		s.runs = NewRunRepository(s.db)
	}
	return s.runs
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("getting underlying sql.DB: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

func (s *Store) Migrate(ctx context.Context) error {
	return Migrate(ctx, s.db)
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) Driver() string { return s.driver }

// GormDB returns the underlying connection.
func (s *Store) GormDB() *gorm.DB { return s.db }
