// Package trainer fits the feedback, priority and acceptance pipelines from a
// dataset file, evaluates them on a held-out split and writes the artifact
// bundle the predictor loads.
package trainer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/joescharf/sentinel/internal/artifact"
	"github.com/joescharf/sentinel/internal/dataset"
	"github.com/joescharf/sentinel/internal/ml"
	"github.com/joescharf/sentinel/internal/models"
	"github.com/joescharf/sentinel/internal/output"
	"github.com/joescharf/sentinel/internal/store"
)

// Log attribute keys.
const (
	keyModel    = "model.name"
	keyOp       = "ml.operation"
	keySamples  = "data.samples"
	keyFeatures = "data.features"
	keyDuration = "perf.duration_ms"
)

// Config controls a training run.
type Config struct {
	ArtifactDir string
	TestSize    float64
	Seed        uint64
	CVFolds     int
	// Search enables cross-validated grid search. When false each target is
	// fit once with the first grid point.
	Search  bool
	Workers int
	DryRun  bool
	// Grids overrides the default parameter grid per target name.
	Grids map[string]ml.ParamGrid
}

// DefaultConfig returns the standard training settings.
func DefaultConfig() Config {
	return Config{
		ArtifactDir: "artifacts",
		TestSize:    0.2,
		Seed:        42,
		CVFolds:     3,
		Search:      true,
		Workers:     runtime.NumCPU(),
	}
}

// TargetResult is the outcome of training one target.
type TargetResult struct {
	Target     string
	ModelKind  string
	BestParams ml.Params
	CVScore    float64
	Report     *ml.Report
	Pipeline   *ml.Pipeline
}

// Result is the outcome of a full training run.
type Result struct {
	RunID   string
	Rows    int
	Bundle  *artifact.Bundle
	Targets []TargetResult
}

// Trainer runs training with optional run recording.
type Trainer struct {
	cfg    Config
	ui     *output.UI
	store  store.Store
	logger *slog.Logger
}

// New creates a Trainer. st may be nil to skip run recording.
func New(cfg Config, ui *output.UI, st store.Store) *Trainer {
	if cfg.Workers < 1 {
		cfg.Workers = runtime.NumCPU()
	}
	return &Trainer{cfg: cfg, ui: ui, store: st, logger: slog.Default()}
}

// Train fits all targets from the dataset at path. Any failure aborts the
// run; a recorded run is marked failed with the error message.
func (t *Trainer) Train(ctx context.Context, path string) (*Result, error) {
	var run *models.TrainingRun
	if t.store != nil && !t.cfg.DryRun {
		run = &models.TrainingRun{DatasetPath: path, ArtifactDir: t.cfg.ArtifactDir}
		if err := t.store.CreateRun(ctx, run); err != nil {
			return nil, err
		}
	}

	res, err := t.train(ctx, path)
	if run == nil {
		return res, err
	}

	if err == nil {
		res.RunID = run.ID
		run.Rows = res.Rows
		err = t.recordEvaluations(ctx, run.ID, res.Targets)
	}
	run.Status = models.RunStatusSucceeded
	if err != nil {
		run.Status = models.RunStatusFailed
		run.Error = err.Error()
	}
	if ferr := t.store.FinishRun(ctx, run); ferr != nil && err == nil {
		err = ferr
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (t *Trainer) train(ctx context.Context, path string) (*Result, error) {
	records, err := dataset.ReadCSV(path)
	if err != nil {
		return nil, fmt.Errorf("load dataset: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("load dataset: %w", ml.ErrEmpty)
	}
	t.ui.Info("Loaded %d records from %s", len(records), path)

	bundle := &artifact.Bundle{
		FeedbackEncoder: &ml.LabelEncoder{},
		PriorityEncoder: &ml.LabelEncoder{},
		Features:        ml.FeatureList(dataset.FeatureNames),
	}

	X := make([][]float64, len(records))
	feedbackLabels := make([]string, len(records))
	priorityLabels := make([]string, len(records))
	accepted := make([]int, len(records))
	for i := range records {
		r := &records[i]
		if X[i], err = bundle.Features.Vector(r.Features()); err != nil {
			return nil, err
		}
		feedbackLabels[i] = string(r.FeedbackLabel())
		priorityLabels[i] = string(r.Priority)
		accepted[i] = int(models.BoolToFloat(r.Accepted))
	}

	// Encoders see the full dataset before any split.
	yFeedback := bundle.FeedbackEncoder.FitTransform(feedbackLabels)
	yPriority := bundle.PriorityEncoder.FitTransform(priorityLabels)

	ys := map[string][]int{
		TargetFeedback: yFeedback,
		TargetPriority: yPriority,
		TargetAccept:   accepted,
	}
	names := map[string][]string{
		TargetFeedback: bundle.FeedbackEncoder.Classes,
		TargetPriority: bundle.PriorityEncoder.Classes,
		TargetAccept:   {"0", "1"},
	}

	res := &Result{Rows: len(records), Bundle: bundle}
	for _, tg := range targets(t.cfg.Seed) {
		if g, ok := t.cfg.Grids[tg.name]; ok {
			tg.grid = g
		}
		tr, err := t.fitTarget(ctx, tg, X, ys[tg.name], names[tg.name])
		if err != nil {
			return nil, fmt.Errorf("train %s: %w", tg.name, err)
		}
		res.Targets = append(res.Targets, *tr)
		t.ui.Report(fmt.Sprintf("%s (%s)", tg.name, tr.ModelKind), tr.Report)
	}
	bundle.Feedback = res.Targets[0].Pipeline
	bundle.Priority = res.Targets[1].Pipeline
	bundle.Accept = res.Targets[2].Pipeline

	if t.cfg.DryRun {
		t.ui.DryRunMsg("Would write %d artifacts to %s", len(artifact.Files), t.cfg.ArtifactDir)
		return res, nil
	}
	if err := bundle.Save(t.cfg.ArtifactDir); err != nil {
		return nil, fmt.Errorf("save artifacts: %w", err)
	}
	t.ui.Success("Wrote %d artifacts to %s", len(artifact.Files), t.cfg.ArtifactDir)
	return res, nil
}

func (t *Trainer) fitTarget(ctx context.Context, tg target, X [][]float64, y []int, labels []string) (*TargetResult, error) {
	trainIdx, testIdx, err := ml.StratifiedSplit(y, t.cfg.TestSize, t.cfg.Seed)
	if err != nil {
		return nil, err
	}
	Xtr, ytr := ml.Rows(X, trainIdx), ml.Labels(y, trainIdx)
	Xte, yte := ml.Rows(X, testIdx), ml.Labels(y, testIdx)

	start := time.Now()
	t.logger.Info("fitting model",
		keyModel, tg.name, keyOp, "fit",
		keySamples, len(Xtr), keyFeatures, len(X[0]))

	out := &TargetResult{Target: tg.name}
	if t.cfg.Search {
		gs := &ml.GridSearch{New: tg.newClassifier, Grid: tg.grid, Folds: t.cfg.CVFolds, Workers: t.cfg.Workers}
		sr, err := gs.Fit(ctx, Xtr, ytr)
		if err != nil {
			return nil, err
		}
		out.Pipeline, out.BestParams, out.CVScore = sr.Best, sr.BestParams, sr.BestScore
		t.ui.VerboseLog("%s: best params %v (cv accuracy %.3f)", tg.name, sr.BestParams, sr.BestScore)
	} else {
		params := tg.grid.Combinations()[0]
		clf := tg.newClassifier()
		if err := clf.SetParams(params); err != nil {
			return nil, err
		}
		p := ml.NewPipeline(clf)
		if err := p.Fit(Xtr, ytr); err != nil {
			return nil, err
		}
		out.Pipeline, out.BestParams = p, params
	}
	out.ModelKind = out.Pipeline.Classifier.Kind()

	pred, err := out.Pipeline.Predict(Xte)
	if err != nil {
		return nil, err
	}
	out.Report, err = ml.Evaluate(yte, pred, labels)
	if err != nil {
		return nil, err
	}

	t.logger.Info("model trained",
		keyModel, tg.name, keyOp, "score",
		keySamples, len(Xte), "accuracy", out.Report.Accuracy,
		keyDuration, time.Since(start).Milliseconds())
	return out, nil
}

func (t *Trainer) recordEvaluations(ctx context.Context, runID string, results []TargetResult) error {
	for _, tr := range results {
		report, err := json.Marshal(tr.Report)
		if err != nil {
			return fmt.Errorf("encode %s report: %w", tr.Target, err)
		}
		e := &models.ModelEvaluation{
			RunID:      runID,
			Target:     tr.Target,
			ModelKind:  tr.ModelKind,
			BestParams: tr.BestParams,
			CVScore:    tr.CVScore,
			Accuracy:   tr.Report.Accuracy,
			WeightedF1: tr.Report.WeightedAvg.F1,
			Report:     string(report),
		}
		if err := t.store.CreateEvaluation(ctx, e); err != nil {
			return err
		}
	}
	return nil
}
