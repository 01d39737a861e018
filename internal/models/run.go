package models

import "time"

// RunStatus is the lifecycle state of a training run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
)

// TrainingRun records one invocation of the trainer.
type TrainingRun struct {
	ID          string
	DatasetPath string
	ArtifactDir string
	Rows        int
	Status      RunStatus
	Error       string
	StartedAt   time.Time
	FinishedAt  *time.Time
}

// ModelEvaluation holds the held-out evaluation of one trained target.
type ModelEvaluation struct {
	ID         string
	RunID      string
	Target     string
	ModelKind  string
	BestParams map[string]float64
	CVScore    float64 // mean cross-validated accuracy, 0 when search was skipped
	Accuracy   float64
	WeightedF1 float64
	Report     string // JSON-encoded classification report
	CreatedAt  time.Time
}
