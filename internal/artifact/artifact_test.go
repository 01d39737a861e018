package artifact

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/sentinel/internal/ml"
)

func fittedPipeline(t *testing.T, clf ml.Classifier, y []int) *ml.Pipeline {
	t.Helper()
	X := make([][]float64, len(y))
	for i := range X {
		X[i] = []float64{float64(y[i]) + 0.1*float64(i%3), float64(i % 5)}
	}
	p := ml.NewPipeline(clf)
	require.NoError(t, p.Fit(X, y))
	return p
}

func testBundle(t *testing.T) *Bundle {
	t.Helper()
	y3 := []int{0, 1, 2, 0, 1, 2, 0, 1, 2, 0, 1, 2}
	y2 := []int{0, 1, 0, 1, 0, 1, 0, 1, 0, 1, 0, 1}
	return &Bundle{
		Feedback:        fittedPipeline(t, &ml.GradientBoosting{NEstimators: 3, MaxDepth: 2, LearningRate: 0.1}, y3),
		Priority:        fittedPipeline(t, &ml.RandomForest{NEstimators: 3, Seed: 1}, y3),
		Accept:          fittedPipeline(t, ml.NewLogisticRegression(), y2),
		FeedbackEncoder: &ml.LabelEncoder{Classes: []string{"major", "minor", "reject"}},
		PriorityEncoder: &ml.LabelEncoder{Classes: []string{"critical", "high", "low"}},
		Features:        ml.FeatureList{"a", "b"},
	}
}

func TestSaveLoad(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "artifacts")
	b := testBundle(t)
	require.NoError(t, b.Save(dir))

	for _, name := range Files {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}

	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, b.Features, loaded.Features)
	assert.Equal(t, b.FeedbackEncoder.Classes, loaded.FeedbackEncoder.Classes)
	assert.Equal(t, b.PriorityEncoder.Classes, loaded.PriorityEncoder.Classes)
	assert.Equal(t, "gradient_boosting", loaded.Feedback.Classifier.Kind())
	assert.Equal(t, "random_forest", loaded.Priority.Classifier.Kind())
	assert.Equal(t, "logistic_regression", loaded.Accept.Classifier.Kind())

	x := [][]float64{{1.1, 2}}
	want, err := b.Accept.PredictProba(x)
	require.NoError(t, err)
	got, err := loaded.Accept.PredictProba(x)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLoad_MissingFile(t *testing.T) {
	for _, name := range Files {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			require.NoError(t, testBundle(t).Save(dir))
			require.NoError(t, os.Remove(filepath.Join(dir, name)))

			_, err := Load(dir)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMissing)
			assert.Contains(t, err.Error(), name)
		})
	}
}

func TestLoad_Corrupt(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, testBundle(t).Save(dir))
	require.NoError(t, os.WriteFile(filepath.Join(dir, PriorityModelFile), []byte("{not json"), 0644))

	_, err := Load(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), PriorityModelFile)
}

func TestLoad_VersionMismatch(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, testBundle(t).Save(dir))
	require.NoError(t, os.WriteFile(filepath.Join(dir, FeaturesFile), []byte(`{"format_version":2,"features":["a"]}`), 0644))

	_, err := Load(dir)
	assert.ErrorIs(t, err, ml.ErrFormatVersion)
}
