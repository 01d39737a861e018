package ml

import (
	"fmt"
	"math"
)

// GradientBoosting is a multinomial-deviance gradient boosted tree
// classifier. Each stage fits one regression tree per class on the
// negative gradient and sets leaf values with a single Newton step.
type GradientBoosting struct {
	NEstimators    int     `json:"n_estimators"`
	MaxDepth       int     `json:"max_depth"`
	LearningRate   float64 `json:"learning_rate"`
	MinSamplesLeaf int     `json:"min_samples_leaf,omitempty"`

	ClassList []int     `json:"classes"`
	NFeatures int       `json:"n_features"`
	Prior     []float64 `json:"prior"`
	Stages    [][]*Tree `json:"stages"`
}

// NewGradientBoosting returns a booster with 100 depth-3 stages at rate 0.1.
func NewGradientBoosting() *GradientBoosting {
	return &GradientBoosting{NEstimators: 100, MaxDepth: 3, LearningRate: 0.1, MinSamplesLeaf: 1}
}

func (g *GradientBoosting) Kind() string { return "gradient_boosting" }

func (g *GradientBoosting) Classes() []int { return g.ClassList }

// SetParams accepts n_estimators, max_depth, learning_rate and min_samples_leaf.
func (g *GradientBoosting) SetParams(p Params) error {
	if err := checkParams(p, "n_estimators", "max_depth", "learning_rate", "min_samples_leaf"); err != nil {
		return err
	}
	intParam(p, "n_estimators", &g.NEstimators)
	intParam(p, "max_depth", &g.MaxDepth)
	intParam(p, "min_samples_leaf", &g.MinSamplesLeaf)
	if v, ok := p["learning_rate"]; ok {
		g.LearningRate = v
	}
	return nil
}

func (g *GradientBoosting) Fit(X [][]float64, y []int) error {
	d, err := checkFitInput(X, y)
	if err != nil {
		return err
	}
	if g.NEstimators < 1 || g.LearningRate <= 0 {
		return fmt.Errorf("invalid boosting config: n_estimators=%d learning_rate=%g", g.NEstimators, g.LearningRate)
	}

	g.ClassList = uniqueSorted(y)
	g.NFeatures = d
	k := len(g.ClassList)
	if k < 2 {
		return fmt.Errorf("gradient boosting needs at least 2 classes, got %d", k)
	}
	yIdx := indexTargets(y, g.ClassList)
	n := len(X)

	counts := make([]float64, k)
	for _, c := range yIdx {
		counts[c]++
	}
	g.Prior = make([]float64, k)
	for c, cnt := range counts {
		g.Prior[c] = math.Log(math.Max(cnt/float64(n), 1e-12))
	}

	raw := make([][]float64, n)
	for i := range raw {
		raw[i] = append([]float64(nil), g.Prior...)
	}

	all := make([]int, n)
	for i := range all {
		all[i] = i
	}

	cfg := treeConfig{maxDepth: g.MaxDepth, minSamplesLeaf: g.MinSamplesLeaf}
	residual := make([]float64, n)
	prob := make([]float64, k)
	factor := float64(k-1) / float64(k)

	g.Stages = make([][]*Tree, g.NEstimators)
	probs := make([][]float64, n)
	for m := range g.Stages {
		for i := range raw {
			softmax(raw[i], prob)
			probs[i] = append(probs[i][:0], prob...)
		}

		stage := make([]*Tree, k)
		for c := 0; c < k; c++ {
			for i := range residual {
				target := 0.0
				if yIdx[i] == c {
					target = 1
				}
				residual[i] = target - probs[i][c]
			}
			newton := func(idx []int) float64 {
				num, den := 0.0, 0.0
				for _, i := range idx {
					r := residual[i]
					num += r
					den += math.Abs(r) * (1 - math.Abs(r))
				}
				if den < 1e-150 {
					return 0
				}
				return factor * num / den
			}
			tree := buildTree(X, all, cfg, newMSECriterion(residual, newton), nil)
			for i, x := range X {
				raw[i][c] += g.LearningRate * tree.Leaf(x)[0]
			}
			stage[c] = tree
		}
		g.Stages[m] = stage
	}
	return nil
}

func (g *GradientBoosting) PredictProba(X [][]float64) ([][]float64, error) {
	if err := checkWidth(X, g.NFeatures); err != nil {
		return nil, err
	}
	k := len(g.ClassList)
	out := make([][]float64, len(X))
	raw := make([]float64, k)
	for i, x := range X {
		copy(raw, g.Prior)
		for _, stage := range g.Stages {
			for c, t := range stage {
				raw[c] += g.LearningRate * t.Leaf(x)[0]
			}
		}
		row := make([]float64, k)
		softmax(raw, row)
		out[i] = row
	}
	return out, nil
}

// softmax writes the normalized exponentials of raw into dst.
func softmax(raw, dst []float64) {
	hi := math.Inf(-1)
	for _, v := range raw {
		hi = math.Max(hi, v)
	}
	sum := 0.0
	for c, v := range raw {
		dst[c] = math.Exp(v - hi)
		sum += dst[c]
	}
	for c := range dst {
		dst[c] /= sum
	}
}
