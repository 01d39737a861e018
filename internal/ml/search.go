package ml

import (
	"context"
	"fmt"
	"maps"
	"runtime"
	"slices"

	"github.com/sourcegraph/conc/pool"
	"gonum.org/v1/gonum/stat"
)

// ParamGrid lists candidate values per hyperparameter.
type ParamGrid map[string][]float64

// Combinations expands the grid into every assignment. Keys are iterated in
// sorted order with the last key varying fastest. An empty grid yields one
// empty assignment.
func (g ParamGrid) Combinations() []Params {
	keys := slices.Sorted(maps.Keys(g))
	combos := []Params{{}}
	for _, k := range keys {
		var next []Params
		for _, base := range combos {
			for _, v := range g[k] {
				p := maps.Clone(base)
				p[k] = v
				next = append(next, p)
			}
		}
		combos = next
	}
	return combos
}

// GridSearch evaluates every grid combination with stratified k-fold
// cross-validation and refits the best one on all data.
type GridSearch struct {
	// New returns a fresh, unfitted classifier with default settings.
	New     func() Classifier
	Grid    ParamGrid
	Folds   int
	Workers int
}

// CVResult is the cross-validated accuracy of one combination.
type CVResult struct {
	Params     Params    `json:"params"`
	FoldScores []float64 `json:"fold_scores"`
	MeanScore  float64   `json:"mean_score"`
}

// SearchResult holds the refit best pipeline and all candidate scores.
type SearchResult struct {
	Best       *Pipeline
	BestParams Params
	BestScore  float64
	Results    []CVResult
}

// Fit runs the search. Ties keep the earliest combination.
func (g *GridSearch) Fit(ctx context.Context, X [][]float64, y []int) (*SearchResult, error) {
	combos := g.Grid.Combinations()
	folds, err := StratifiedKFold(y, g.Folds)
	if err != nil {
		return nil, err
	}

	workers := g.Workers
	if workers < 1 {
		workers = runtime.NumCPU()
	}

	scores := make([][]float64, len(combos))
	for i := range scores {
		scores[i] = make([]float64, len(folds))
	}

	p := pool.New().WithContext(ctx).WithCancelOnError().WithFirstError().WithMaxGoroutines(workers)
	for ci, params := range combos {
		for fi, fold := range folds {
			p.Go(func(ctx context.Context) error {
				if err := ctx.Err(); err != nil {
					return err
				}
				train := Complement(len(y), fold)
				candidate, err := g.candidate(params)
				if err != nil {
					return err
				}
				if err := candidate.Fit(Rows(X, train), Labels(y, train)); err != nil {
					return fmt.Errorf("fold %d %v: %w", fi, params, err)
				}
				pred, err := candidate.Predict(Rows(X, fold))
				if err != nil {
					return err
				}
				scores[ci][fi] = Accuracy(Labels(y, fold), pred)
				return nil
			})
		}
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}

	res := &SearchResult{Results: make([]CVResult, len(combos))}
	best := -1
	for i, params := range combos {
		mean := stat.Mean(scores[i], nil)
		res.Results[i] = CVResult{Params: params, FoldScores: scores[i], MeanScore: mean}
		if best < 0 || mean > res.Results[best].MeanScore {
			best = i
		}
	}
	res.BestParams = combos[best]
	res.BestScore = res.Results[best].MeanScore

	res.Best, err = g.candidate(res.BestParams)
	if err != nil {
		return nil, err
	}
	if err := res.Best.Fit(X, y); err != nil {
		return nil, fmt.Errorf("refit best %v: %w", res.BestParams, err)
	}
	return res, nil
}

func (g *GridSearch) candidate(params Params) (*Pipeline, error) {
	clf := g.New()
	if err := clf.SetParams(params); err != nil {
		return nil, err
	}
	return NewPipeline(clf), nil
}
