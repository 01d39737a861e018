package ml

import (
	"fmt"
	"math"
	"math/rand/v2"
	"runtime"

	"github.com/sourcegraph/conc/pool"
)

// RandomForest is a bagged ensemble of Gini trees with sqrt(d) features
// considered per split.
type RandomForest struct {
	NEstimators    int    `json:"n_estimators"`
	MaxDepth       int    `json:"max_depth,omitempty"`
	MinSamplesLeaf int    `json:"min_samples_leaf,omitempty"`
	Balanced       bool   `json:"balanced"`
	Seed           uint64 `json:"seed"`
	Workers        int    `json:"-"`

	ClassList []int   `json:"classes"`
	NFeatures int     `json:"n_features"`
	Trees     []*Tree `json:"trees"`
}

// NewRandomForest returns a forest with 100 trees and no depth limit.
func NewRandomForest(seed uint64) *RandomForest {
	return &RandomForest{NEstimators: 100, MinSamplesLeaf: 1, Seed: seed}
}

func (f *RandomForest) Kind() string { return "random_forest" }

func (f *RandomForest) Classes() []int { return f.ClassList }

// SetParams accepts n_estimators, max_depth and min_samples_leaf.
func (f *RandomForest) SetParams(p Params) error {
	if err := checkParams(p, "n_estimators", "max_depth", "min_samples_leaf"); err != nil {
		return err
	}
	intParam(p, "n_estimators", &f.NEstimators)
	intParam(p, "max_depth", &f.MaxDepth)
	intParam(p, "min_samples_leaf", &f.MinSamplesLeaf)
	return nil
}

// Fit grows NEstimators trees on bootstrap samples. Each tree draws from its
// own RNG stream so the result does not depend on scheduling.
func (f *RandomForest) Fit(X [][]float64, y []int) error {
	d, err := checkFitInput(X, y)
	if err != nil {
		return err
	}
	if f.NEstimators < 1 {
		return fmt.Errorf("n_estimators must be positive, got %d", f.NEstimators)
	}

	f.ClassList = uniqueSorted(y)
	f.NFeatures = d
	k := len(f.ClassList)
	yIdx := indexTargets(y, f.ClassList)

	classWeight := make([]float64, k)
	for c := range classWeight {
		classWeight[c] = 1
	}
	if f.Balanced {
		classWeight = balancedWeights(yIdx, k)
	}

	cfg := treeConfig{
		maxDepth:       f.MaxDepth,
		minSamplesLeaf: f.MinSamplesLeaf,
		maxFeatures:    max(1, int(math.Sqrt(float64(d)))),
	}

	workers := f.Workers
	if workers < 1 {
		workers = runtime.NumCPU()
	}

	n := len(X)
	f.Trees = make([]*Tree, f.NEstimators)
	p := pool.New().WithMaxGoroutines(workers)
	for t := range f.Trees {
		p.Go(func() {
			rng := rand.New(rand.NewPCG(f.Seed, uint64(t)))
			w := make([]float64, n)
			for range n {
				w[rng.IntN(n)]++
			}
			idx := make([]int, 0, n)
			for i, cnt := range w {
				if cnt > 0 {
					w[i] = cnt * classWeight[yIdx[i]]
					idx = append(idx, i)
				}
			}
			f.Trees[t] = buildTree(X, idx, cfg, newGiniCriterion(yIdx, w, k), rng)
		})
	}
	p.Wait()
	return nil
}

// PredictProba averages the leaf class distributions of all trees.
func (f *RandomForest) PredictProba(X [][]float64) ([][]float64, error) {
	if err := checkWidth(X, f.NFeatures); err != nil {
		return nil, err
	}
	k := len(f.ClassList)
	out := make([][]float64, len(X))
	for i, x := range X {
		row := make([]float64, k)
		for _, t := range f.Trees {
			for c, v := range t.Leaf(x) {
				row[c] += v
			}
		}
		for c := range row {
			row[c] /= float64(len(f.Trees))
		}
		out[i] = row
	}
	return out, nil
}
