package ml

import (
	"encoding/json"
	"errors"
	"fmt"
)

// FormatVersion is written into every serialized artifact. Artifacts are
// only readable by the same format version.
const FormatVersion = 1

// ErrFormatVersion is returned when decoding an artifact of another version.
var ErrFormatVersion = errors.New("unsupported artifact format version")

// Pipeline standardizes features and then applies a classifier.
type Pipeline struct {
	Scaler     *StandardScaler
	Classifier Classifier
}

// NewPipeline wraps clf behind a fresh scaler.
func NewPipeline(clf Classifier) *Pipeline {
	return &Pipeline{Scaler: &StandardScaler{}, Classifier: clf}
}

func (p *Pipeline) Fit(X [][]float64, y []int) error {
	if err := p.Scaler.Fit(X); err != nil {
		return fmt.Errorf("fit scaler: %w", err)
	}
	Z, err := p.Scaler.Transform(X)
	if err != nil {
		return err
	}
	if err := p.Classifier.Fit(Z, y); err != nil {
		return fmt.Errorf("fit %s: %w", p.Classifier.Kind(), err)
	}
	return nil
}

func (p *Pipeline) PredictProba(X [][]float64) ([][]float64, error) {
	Z, err := p.Scaler.Transform(X)
	if err != nil {
		return nil, err
	}
	return p.Classifier.PredictProba(Z)
}

func (p *Pipeline) Predict(X [][]float64) ([]int, error) {
	Z, err := p.Scaler.Transform(X)
	if err != nil {
		return nil, err
	}
	return Predict(p.Classifier, Z)
}

func (p *Pipeline) Classes() []int { return p.Classifier.Classes() }

type pipelineJSON struct {
	FormatVersion int             `json:"format_version"`
	Kind          string          `json:"kind"`
	Scaler        *StandardScaler `json:"scaler"`
	Classifier    json.RawMessage `json:"classifier"`
}

func (p *Pipeline) MarshalJSON() ([]byte, error) {
	clf, err := json.Marshal(p.Classifier)
	if err != nil {
		return nil, err
	}
	return json.Marshal(pipelineJSON{
		FormatVersion: FormatVersion,
		Kind:          p.Classifier.Kind(),
		Scaler:        p.Scaler,
		Classifier:    clf,
	})
}

func (p *Pipeline) UnmarshalJSON(data []byte) error {
	var raw pipelineJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.FormatVersion != FormatVersion {
		return fmt.Errorf("%w: %d", ErrFormatVersion, raw.FormatVersion)
	}
	if raw.Scaler == nil {
		return fmt.Errorf("pipeline has no scaler")
	}
	clf, err := newClassifier(raw.Kind)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw.Classifier, clf); err != nil {
		return fmt.Errorf("decode %s: %w", raw.Kind, err)
	}
	p.Scaler = raw.Scaler
	p.Classifier = clf
	return nil
}

func newClassifier(kind string) (Classifier, error) {
	switch kind {
	case "random_forest":
		return &RandomForest{}, nil
	case "gradient_boosting":
		return &GradientBoosting{}, nil
	case "logistic_regression":
		return &LogisticRegression{}, nil
	default:
		return nil, fmt.Errorf("unknown classifier kind %q", kind)
	}
}
