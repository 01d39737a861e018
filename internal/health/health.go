package health

import (
	"os"
	"path/filepath"
	"time"

	"github.com/joescharf/sentinel/internal/artifact"
	"github.com/joescharf/sentinel/internal/models"
)

// Metadata holds the on-disk and recorded state used for health scoring.
type Metadata struct {
	DatasetModTime    time.Time // zero when the dataset is missing
	ArtifactsPresent  int
	ArtifactsTotal    int
	OldestArtifact    time.Time // zero when no artifact exists
	LastRun           *models.TrainingRun
	LatestEvaluations []*models.ModelEvaluation
}

// Score is the computed health of a deployment.
type Score struct {
	Total     int
	Dataset   int // 0-10
	Artifacts int // 0-30
	Freshness int // 0-20
	LastRun   int // 0-15
	Accuracy  int // 0-25
}

// Scorer computes health scores from gathered metadata.
type Scorer struct{}

// NewScorer returns a new health Scorer.
func NewScorer() *Scorer {
	return &Scorer{}
}

// Gather stats the dataset and every artifact file. Missing files are
// recorded as absent, never as errors.
func Gather(datasetPath, artifactDir string) *Metadata {
	meta := &Metadata{ArtifactsTotal: len(artifact.Files)}

	if fi, err := os.Stat(datasetPath); err == nil {
		meta.DatasetModTime = fi.ModTime()
	}
	for _, name := range artifact.Files {
		fi, err := os.Stat(filepath.Join(artifactDir, name))
		if err != nil {
			continue
		}
		meta.ArtifactsPresent++
		if meta.OldestArtifact.IsZero() || fi.ModTime().Before(meta.OldestArtifact) {
			meta.OldestArtifact = fi.ModTime()
		}
	}
	return meta
}

// Score computes a health score (0-100).
func (s *Scorer) Score(meta *Metadata) *Score {
	h := &Score{}

	if !meta.DatasetModTime.IsZero() {
		h.Dataset = 10
	}

	// Partial bundles cannot be loaded, so only a complete set earns points.
	if meta.ArtifactsTotal > 0 && meta.ArtifactsPresent == meta.ArtifactsTotal {
		h.Artifacts = 30
	}

	h.Freshness = scoreFreshness(meta)

	if meta.LastRun != nil {
		switch meta.LastRun.Status {
		case models.RunStatusSucceeded:
			h.LastRun = 15
		case models.RunStatusRunning:
			h.LastRun = 8
		}
	}

	h.Accuracy = scoreAccuracy(meta.LatestEvaluations, 25)

	h.Total = h.Dataset + h.Artifacts + h.Freshness + h.LastRun + h.Accuracy
	return h
}

// scoreFreshness rewards artifacts trained after the current dataset was
// written, then decays with artifact age.
func scoreFreshness(meta *Metadata) int {
	const maxPoints = 20
	if meta.OldestArtifact.IsZero() {
		return 0
	}
	if !meta.DatasetModTime.IsZero() && meta.OldestArtifact.Before(meta.DatasetModTime) {
		return 5
	}
	days := int(time.Since(meta.OldestArtifact).Hours() / 24)
	switch {
	case days <= 7:
		return maxPoints
	case days <= 30:
		return int(float64(maxPoints) * 0.75)
	case days <= 90:
		return int(float64(maxPoints) * 0.5)
	default:
		return int(float64(maxPoints) * 0.25)
	}
}

// scoreAccuracy scales the mean held-out accuracy of the classifiers.
func scoreAccuracy(evals []*models.ModelEvaluation, maxPoints int) int {
	if len(evals) == 0 {
		return 0
	}
	sum := 0.0
	for _, e := range evals {
		sum += e.Accuracy
	}
	mean := sum / float64(len(evals))
	if mean < 0 {
		mean = 0
	}
	if mean > 1 {
		mean = 1
	}
	return int(float64(maxPoints) * mean)
}
