package store

import (
	"context"
	"errors"

	"github.com/joescharf/sentinel/internal/models"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("not found")

// Store defines the persistence interface for training runs.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, run *models.TrainingRun) error
	FinishRun(ctx context.Context, run *models.TrainingRun) error
	GetRun(ctx context.Context, id string) (*models.TrainingRun, error)
	ListRuns(ctx context.Context, limit int) ([]*models.TrainingRun, error)

	// Evaluations
	CreateEvaluation(ctx context.Context, e *models.ModelEvaluation) error
	ListEvaluations(ctx context.Context, runID string) ([]*models.ModelEvaluation, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
