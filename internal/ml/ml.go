// Package ml implements the small set of estimators the sentinel trainer
// needs: a standard scaler, label encoding, CART trees, a random forest,
// multinomial gradient boosting, L2 logistic regression, stratified splits,
// grid search and classification metrics.
//
// Feature matrices are row-major [][]float64. Targets are class values
// (usually encoder indices 0..K-1). Fitted estimators are read-only and safe
// for concurrent prediction.
package ml

import (
	"errors"
	"fmt"
	"slices"

	"gonum.org/v1/gonum/floats"
)

var (
	// ErrDimension is returned when an input row does not match the fitted width.
	ErrDimension = errors.New("feature dimension mismatch")
	// ErrNotFitted is returned when predicting with an unfitted estimator.
	ErrNotFitted = errors.New("estimator is not fitted")
	// ErrUnknownParam is returned by SetParams for unsupported keys.
	ErrUnknownParam = errors.New("unknown hyperparameter")
	// ErrEmpty is returned when fitting on no samples.
	ErrEmpty = errors.New("no samples")
)

// Params is one hyperparameter assignment, keyed by name.
type Params map[string]float64

// Classifier is a fit-once probabilistic classifier.
type Classifier interface {
	// Kind names the estimator type for serialization.
	Kind() string
	// SetParams applies hyperparameters before Fit.
	SetParams(p Params) error
	Fit(X [][]float64, y []int) error
	// PredictProba returns one probability row per sample, columns ordered as Classes.
	PredictProba(X [][]float64) ([][]float64, error)
	Classes() []int
}

// Predict returns the most probable class per sample.
func Predict(c Classifier, X [][]float64) ([]int, error) {
	proba, err := c.PredictProba(X)
	if err != nil {
		return nil, err
	}
	classes := c.Classes()
	out := make([]int, len(proba))
	for i, row := range proba {
		out[i] = classes[floats.MaxIdx(row)]
	}
	return out, nil
}

// uniqueSorted returns the distinct values of y in ascending order.
func uniqueSorted(y []int) []int {
	out := slices.Clone(y)
	slices.Sort(out)
	return slices.Compact(out)
}

// indexTargets maps y onto positions in classes.
func indexTargets(y, classes []int) []int {
	pos := make(map[int]int, len(classes))
	for i, c := range classes {
		pos[c] = i
	}
	out := make([]int, len(y))
	for i, v := range y {
		out[i] = pos[v]
	}
	return out
}

// balancedWeights returns n / (k * count_c) for each class index c.
func balancedWeights(yIdx []int, k int) []float64 {
	counts := make([]float64, k)
	for _, c := range yIdx {
		counts[c]++
	}
	w := make([]float64, k)
	n := float64(len(yIdx))
	for c, cnt := range counts {
		if cnt > 0 {
			w[c] = n / (float64(k) * cnt)
		}
	}
	return w
}

func checkFitInput(X [][]float64, y []int) (int, error) {
	if len(X) == 0 {
		return 0, ErrEmpty
	}
	if len(X) != len(y) {
		return 0, fmt.Errorf("%d rows but %d targets", len(X), len(y))
	}
	d := len(X[0])
	for i, row := range X {
		if len(row) != d {
			return 0, fmt.Errorf("%w: row %d has %d features, want %d", ErrDimension, i, len(row), d)
		}
	}
	return d, nil
}

func checkWidth(X [][]float64, d int) error {
	if d == 0 {
		return ErrNotFitted
	}
	for i, row := range X {
		if len(row) != d {
			return fmt.Errorf("%w: row %d has %d features, want %d", ErrDimension, i, len(row), d)
		}
	}
	return nil
}

// Rows selects rows of X by index.
func Rows(X [][]float64, idx []int) [][]float64 {
	out := make([][]float64, len(idx))
	for i, j := range idx {
		out[i] = X[j]
	}
	return out
}

// Labels selects targets by index.
func Labels(y []int, idx []int) []int {
	out := make([]int, len(idx))
	for i, j := range idx {
		out[i] = y[j]
	}
	return out
}

func intParam(p Params, key string, dst *int) {
	if v, ok := p[key]; ok {
		*dst = int(v)
	}
}

func checkParams(p Params, allowed ...string) error {
	for k := range p {
		if !slices.Contains(allowed, k) {
			return fmt.Errorf("%w: %s", ErrUnknownParam, k)
		}
	}
	return nil
}
