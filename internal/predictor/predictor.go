// Package predictor serves the three trained pipelines behind a single
// Predict call. A Service is immutable after Load and safe for concurrent use.
package predictor

import (
	"fmt"
	"math"

	"github.com/joescharf/sentinel/internal/artifact"
	"github.com/joescharf/sentinel/internal/ml"
)

// Prediction is the combined output of the three models.
type Prediction struct {
	Feedback   string  `json:"feedback"`
	Priority   string  `json:"priority"`
	AcceptProb float64 `json:"accept_prob"`
}

// Service holds the loaded artifacts.
type Service struct {
	bundle *artifact.Bundle
}

// Load reads all artifacts from dir. Failures wrap ErrSetup.
func Load(dir string) (*Service, error) {
	b, err := artifact.Load(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSetup, err)
	}
	return New(b), nil
}

// New wraps an already loaded bundle.
func New(b *artifact.Bundle) *Service {
	return &Service{bundle: b}
}

// Features returns the feature order the service reads inputs in.
func (s *Service) Features() ml.FeatureList {
	return s.bundle.Features
}

// Predict validates in and runs all three models. Either every prediction
// succeeds or an error is returned.
func (s *Service) Predict(in Input) (Prediction, error) {
	if err := in.Validate(); err != nil {
		return Prediction{}, err
	}

	rec := in.Record()
	vec, err := s.bundle.Features.Vector(rec.Features())
	if err != nil {
		return Prediction{}, fmt.Errorf("%w: %w", ErrInference, err)
	}
	X := [][]float64{vec}

	feedback, err := decode(s.bundle.Feedback, s.bundle.FeedbackEncoder, X)
	if err != nil {
		return Prediction{}, fmt.Errorf("%w: feedback model: %w", ErrInference, err)
	}
	priority, err := decode(s.bundle.Priority, s.bundle.PriorityEncoder, X)
	if err != nil {
		return Prediction{}, fmt.Errorf("%w: priority model: %w", ErrInference, err)
	}
	prob, err := positiveProba(s.bundle.Accept, X)
	if err != nil {
		return Prediction{}, fmt.Errorf("%w: acceptance model: %w", ErrInference, err)
	}

	return Prediction{
		Feedback:   feedback,
		Priority:   priority,
		AcceptProb: math.Round(prob*1000) / 1000,
	}, nil
}

func decode(p *ml.Pipeline, enc *ml.LabelEncoder, X [][]float64) (string, error) {
	idx, err := p.Predict(X)
	if err != nil {
		return "", err
	}
	labels, err := enc.InverseTransform(idx)
	if err != nil {
		return "", err
	}
	return labels[0], nil
}

// positiveProba returns P(class 1) for the single row in X.
func positiveProba(p *ml.Pipeline, X [][]float64) (float64, error) {
	proba, err := p.PredictProba(X)
	if err != nil {
		return 0, err
	}
	for j, c := range p.Classes() {
		if c == 1 {
			return proba[0][j], nil
		}
	}
	return 0, fmt.Errorf("model has no positive class (classes %v)", p.Classes())
}
