package workflow

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/jkaninda/huddle/internal/domain"
)

// RunStore persists workflow runs.
type RunStore interface {
	CreateRun(ctx context.Context, run *domain.WorkflowRun) error
	UpdateRun(ctx context.Context, run *domain.WorkflowRun) error
	GetRun(ctx context.Context, id uuid.UUID) (*domain.WorkflowRun, error)
	// ListRuns returns the newest runs first. limit <= 0 means all.
	ListRuns(ctx context.Context, limit int) ([]domain.WorkflowRun, error)
}

// MemoryRunStore keeps runs in process. Used when no database is configured.
type MemoryRunStore struct {
	mu   sync.RWMutex
	runs map[uuid.UUID]*domain.WorkflowRun
}

func NewMemoryRunStore() *MemoryRunStore {
	return &MemoryRunStore{runs: make(map[uuid.UUID]*domain.WorkflowRun)}
}

func (s *MemoryRunStore) CreateRun(_ context.Context, run *domain.WorkflowRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.runs[run.ID]; exists {
		return fmt.Errorf("workflow run %s already exists", run.ID)
	}
	s.runs[run.ID] = cloneRun(run)
	return nil
}

func (s *MemoryRunStore) UpdateRun(_ context.Context, run *domain.WorkflowRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.runs[run.ID]; !exists {
		return fmt.Errorf("updating run %s: %w", run.ID, domain.ErrRunNotFound)
	}
	s.runs[run.ID] = cloneRun(run)
	return nil
}

func (s *MemoryRunStore) GetRun(_ context.Context, id uuid.UUID) (*domain.WorkflowRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	if !ok {
		return nil, fmt.Errorf("run %s: %w", id, domain.ErrRunNotFound)
	}
	return cloneRun(run), nil
}

func (s *MemoryRunStore) ListRuns(_ context.Context, limit int) ([]domain.WorkflowRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]domain.WorkflowRun, 0, len(s.runs))
	for _, r := range s.runs {
		runs = append(runs, *cloneRun(r))
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].StartedAt.After(runs[j].StartedAt) })
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

func cloneRun(r *domain.WorkflowRun) *domain.WorkflowRun {
	cp := *r
	cp.Stages = slices.Clone(r.Stages)
	if r.FinishedAt != nil {
		t := *r.FinishedAt
		cp.FinishedAt = &t
	}
	return &cp
}

var _ RunStore = (*MemoryRunStore)(nil)
