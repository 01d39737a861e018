package ml

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"
)

// LogisticRegression is an L2-regularized binary logistic model solved with
// L-BFGS. The objective is 0.5*||w||^2 + C * sum_i s_i * logloss_i; the
// intercept is not penalized.
type LogisticRegression struct {
	C        float64 `json:"c"`
	MaxIter  int     `json:"max_iter"`
	Balanced bool    `json:"balanced"`

	ClassList []int     `json:"classes"`
	NFeatures int       `json:"n_features"`
	Coef      []float64 `json:"coef"`
	Intercept float64   `json:"intercept"`
}

// NewLogisticRegression returns a model with C=1 and 100 iterations.
func NewLogisticRegression() *LogisticRegression {
	return &LogisticRegression{C: 1, MaxIter: 100}
}

func (l *LogisticRegression) Kind() string { return "logistic_regression" }

func (l *LogisticRegression) Classes() []int { return l.ClassList }

// SetParams accepts C and max_iter.
func (l *LogisticRegression) SetParams(p Params) error {
	if err := checkParams(p, "C", "max_iter"); err != nil {
		return err
	}
	if v, ok := p["C"]; ok {
		l.C = v
	}
	intParam(p, "max_iter", &l.MaxIter)
	return nil
}

func (l *LogisticRegression) Fit(X [][]float64, y []int) error {
	d, err := checkFitInput(X, y)
	if err != nil {
		return err
	}
	if l.C <= 0 {
		return fmt.Errorf("C must be positive, got %g", l.C)
	}
	l.ClassList = uniqueSorted(y)
	if len(l.ClassList) != 2 {
		return fmt.Errorf("logistic regression needs exactly 2 classes, got %d", len(l.ClassList))
	}
	l.NFeatures = d
	yIdx := indexTargets(y, l.ClassList)

	sw := make([]float64, len(y))
	classWeight := []float64{1, 1}
	if l.Balanced {
		classWeight = balancedWeights(yIdx, 2)
	}
	for i, c := range yIdx {
		sw[i] = classWeight[c]
	}

	// theta = [w_0..w_{d-1}, b]
	problem := optimize.Problem{
		Func: func(theta []float64) float64 {
			w, b := theta[:d], theta[d]
			loss := 0.5 * floats.Dot(w, w)
			for i, x := range X {
				z := floats.Dot(w, x) + b
				loss += l.C * sw[i] * (log1pExp(z) - float64(yIdx[i])*z)
			}
			return loss
		},
		Grad: func(grad, theta []float64) {
			w, b := theta[:d], theta[d]
			copy(grad[:d], w)
			grad[d] = 0
			for i, x := range X {
				r := l.C * sw[i] * (sigmoid(floats.Dot(w, x)+b) - float64(yIdx[i]))
				floats.AddScaled(grad[:d], r, x)
				grad[d] += r
			}
		},
	}

	settings := &optimize.Settings{
		MajorIterations:   l.MaxIter,
		GradientThreshold: 1e-4,
	}
	result, err := optimize.Minimize(problem, make([]float64, d+1), settings, &optimize.LBFGS{})
	if result == nil {
		return fmt.Errorf("logistic regression: %w", err)
	}
	if floats.HasNaN(result.X) {
		return fmt.Errorf("logistic regression diverged")
	}
	// A line search that stalls at machine precision still leaves a usable optimum.
	l.Coef = append([]float64(nil), result.X[:d]...)
	l.Intercept = result.X[d]
	return nil
}

func (l *LogisticRegression) PredictProba(X [][]float64) ([][]float64, error) {
	if err := checkWidth(X, l.NFeatures); err != nil {
		return nil, err
	}
	out := make([][]float64, len(X))
	for i, x := range X {
		p := sigmoid(floats.Dot(l.Coef, x) + l.Intercept)
		out[i] = []float64{1 - p, p}
	}
	return out, nil
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

// log1pExp computes log(1 + e^z) without overflow.
func log1pExp(z float64) float64 {
	if z > 0 {
		return z + math.Log1p(math.Exp(-z))
	}
	return math.Log1p(math.Exp(z))
}
