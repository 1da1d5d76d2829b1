package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jkaninda/huddle/internal/domain"
	"github.com/jkaninda/huddle/internal/workflow"
)

// RunRepository implements workflow.RunStore with GORM.
type RunRepository struct {
	db *gorm.DB
}

// NewRunRepository creates a RunRepository.
func NewRunRepository(db *gorm.DB) *RunRepository {
	return &RunRepository{db: db}
}

func (r *RunRepository) CreateRun(ctx context.Context, run *domain.WorkflowRun) error {
	model := toRunModel(run)
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return fmt.Errorf("creating workflow run: %w", err)
	}
	return nil
}

func (r *RunRepository) UpdateRun(ctx context.Context, run *domain.WorkflowRun) error {
	model := toRunModel(run)
	res := r.db.WithContext(ctx).Model(&RunModel{}).Where("id = ?", run.ID).Updates(map[string]any{
		"status":      model.Status,
		"stages":      model.Stages,
		"error":       model.Error,
		"tokens_used": model.TokensUsed,
		"finished_at": model.FinishedAt,
	})
	if res.Error != nil {
		return fmt.Errorf("updating workflow run %s: %w", run.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("updating workflow run %s: %w", run.ID, domain.ErrRunNotFound)
	}
	return nil
}

func (r *RunRepository) GetRun(ctx context.Context, id uuid.UUID) (*domain.WorkflowRun, error) {
	var model RunModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("run %s: %w", id, domain.ErrRunNotFound)
		}
		return nil, fmt.Errorf("getting workflow run %s: %w", id, err)
	}
	return toRunDomain(&model), nil
}

func (r *RunRepository) ListRuns(ctx context.Context, limit int) ([]domain.WorkflowRun, error) {
	q := r.db.WithContext(ctx).Order("started_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var models []RunModel
	if err := q.Find(&models).Error; err != nil {
		return nil, fmt.Errorf("listing workflow runs: %w", err)
	}
	runs := make([]domain.WorkflowRun, 0, len(models))
	for i := range models {
		runs = append(runs, *toRunDomain(&models[i]))
	}
	return runs, nil
}

var _ workflow.RunStore = (*RunRepository)(nil)
