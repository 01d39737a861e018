package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/sentinel/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")

	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)

	err = s.Migrate(context.Background())
	require.NoError(t, err)

	t.Cleanup(func() { s.Close() })
	return s
}

func TestNewSQLiteStore_CreatesDirectory(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "subdir", "test.db")

	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(filepath.Join(dir, "subdir"))
	assert.NoError(t, err, "should create parent directory")
}

func TestMigrate_Idempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Running migrate again should be a no-op
	err := s.Migrate(ctx)
	assert.NoError(t, err)
}

// --- Runs ---

func TestRunLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run := &models.TrainingRun{
		DatasetPath: "data/sentinel_pr_dataset.csv",
		ArtifactDir: "artifacts",
	}
	require.NoError(t, s.CreateRun(ctx, run))
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, models.RunStatusRunning, run.Status)
	assert.False(t, run.StartedAt.IsZero())

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.DatasetPath, got.DatasetPath)
	assert.Equal(t, models.RunStatusRunning, got.Status)
	assert.Nil(t, got.FinishedAt)

	run.Rows = 1000
	run.Status = models.RunStatusSucceeded
	require.NoError(t, s.FinishRun(ctx, run))

	got, err = s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, 1000, got.Rows)
	assert.Equal(t, models.RunStatusSucceeded, got.Status)
	require.NotNil(t, got.FinishedAt)
}

func TestRunFailure(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run := &models.TrainingRun{DatasetPath: "missing.csv", ArtifactDir: "artifacts"}
	require.NoError(t, s.CreateRun(ctx, run))

	run.Status = models.RunStatusFailed
	run.Error = "open missing.csv: no such file or directory"
	require.NoError(t, s.FinishRun(ctx, run))

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusFailed, got.Status)
	assert.Contains(t, got.Error, "no such file")
}

func TestGetRun_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetRun(context.Background(), "nonexistent")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestFinishRun_NotFound(t *testing.T) {
	s := newTestStore(t)

	err := s.FinishRun(context.Background(), &models.TrainingRun{ID: "nonexistent", Status: models.RunStatusFailed})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListRuns_NewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		run := &models.TrainingRun{
			DatasetPath: "data.csv",
			ArtifactDir: "artifacts",
			StartedAt:   base.Add(time.Duration(i) * time.Hour),
			Rows:        i,
		}
		require.NoError(t, s.CreateRun(ctx, run))
	}

	runs, err := s.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, 2, runs[0].Rows)
	assert.Equal(t, 0, runs[2].Rows)

	runs, err = s.ListRuns(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

// --- Evaluations ---

func TestEvaluations(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run := &models.TrainingRun{DatasetPath: "data.csv", ArtifactDir: "artifacts"}
	require.NoError(t, s.CreateRun(ctx, run))

	eval := &models.ModelEvaluation{
		RunID:      run.ID,
		Target:     "priority",
		ModelKind:  "random_forest",
		BestParams: map[string]float64{"n_estimators": 200},
		CVScore:    0.91,
		Accuracy:   0.93,
		WeightedF1: 0.92,
		Report:     `{"accuracy":0.93}`,
	}
	require.NoError(t, s.CreateEvaluation(ctx, eval))
	assert.NotEmpty(t, eval.ID)

	evals, err := s.ListEvaluations(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, evals, 1)
	assert.Equal(t, "priority", evals[0].Target)
	assert.Equal(t, 200.0, evals[0].BestParams["n_estimators"])
	assert.InDelta(t, 0.93, evals[0].Accuracy, 1e-9)
	assert.JSONEq(t, `{"accuracy":0.93}`, evals[0].Report)

	// Same target twice in one run is rejected.
	dup := &models.ModelEvaluation{RunID: run.ID, Target: "priority", ModelKind: "random_forest"}
	assert.Error(t, s.CreateEvaluation(ctx, dup))
}

func TestEvaluation_RequiresRun(t *testing.T) {
	s := newTestStore(t)

	eval := &models.ModelEvaluation{RunID: "nonexistent", Target: "accept", ModelKind: "logistic_regression"}
	assert.Error(t, s.CreateEvaluation(context.Background(), eval))
}

func TestListEvaluations_CorruptParams(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run := &models.TrainingRun{DatasetPath: "data.csv", ArtifactDir: "artifacts"}
	require.NoError(t, s.CreateRun(ctx, run))
	eval := &models.ModelEvaluation{RunID: run.ID, Target: "accept", ModelKind: "logistic_regression"}
	require.NoError(t, s.CreateEvaluation(ctx, eval))

	_, err := s.db.ExecContext(ctx, `UPDATE model_evaluations SET best_params = '{not json' WHERE id = ?`, eval.ID)
	require.NoError(t, err)

	_, err = s.ListEvaluations(ctx, run.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode best_params for "+eval.ID)
}
