package ml

import (
	"math"
	"math/rand/v2"
	"slices"
)

// Node is one node of a fitted tree. Leaves have Feature == -1.
type Node struct {
	Feature   int       `json:"f"`
	Threshold float64   `json:"t,omitempty"`
	Left      int       `json:"l,omitempty"`
	Right     int       `json:"r,omitempty"`
	Value     []float64 `json:"v,omitempty"`
}

// Tree is a fitted binary decision tree stored as a flat node array.
// Samples with x[Feature] <= Threshold go left.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// Leaf returns the value of the leaf that x falls into.
func (t *Tree) Leaf(x []float64) []float64 {
	n := &t.Nodes[0]
	for n.Feature >= 0 {
		if x[n.Feature] <= n.Threshold {
			n = &t.Nodes[n.Left]
		} else {
			n = &t.Nodes[n.Right]
		}
	}
	return n.Value
}

// Depth returns the number of edges on the longest root-to-leaf path.
func (t *Tree) Depth() int {
	var walk func(i int) int
	walk = func(i int) int {
		n := t.Nodes[i]
		if n.Feature < 0 {
			return 0
		}
		return 1 + max(walk(n.Left), walk(n.Right))
	}
	return walk(0)
}

type treeConfig struct {
	maxDepth       int // 0 = unlimited
	minSamplesLeaf int
	maxFeatures    int // 0 = all features
}

// criterion tracks node statistics while the split search sweeps samples
// from the right child into the left child.
type criterion interface {
	init(idx []int)
	reset()
	move(i int)
	// proxy is maximized by the best split.
	proxy() float64
	pure() bool
	leafValue(idx []int) []float64
}

type treeBuilder struct {
	cfg   treeConfig
	X     [][]float64
	crit  criterion
	rng   *rand.Rand
	nodes []Node
}

func buildTree(X [][]float64, idx []int, cfg treeConfig, crit criterion, rng *rand.Rand) *Tree {
	if cfg.minSamplesLeaf < 1 {
		cfg.minSamplesLeaf = 1
	}
	b := &treeBuilder{cfg: cfg, X: X, crit: crit, rng: rng}
	b.build(slices.Clone(idx), 0)
	return &Tree{Nodes: b.nodes}
}

func (b *treeBuilder) build(idx []int, depth int) int {
	id := len(b.nodes)
	b.nodes = append(b.nodes, Node{Feature: -1})

	b.crit.init(idx)
	if len(idx) < 2*b.cfg.minSamplesLeaf ||
		(b.cfg.maxDepth > 0 && depth >= b.cfg.maxDepth) ||
		b.crit.pure() {
		b.nodes[id].Value = b.crit.leafValue(idx)
		return id
	}

	feature, threshold, ok := b.bestSplit(idx)
	if !ok {
		b.nodes[id].Value = b.crit.leafValue(idx)
		return id
	}

	m := partition(idx, func(i int) bool { return b.X[i][feature] <= threshold })
	left := b.build(idx[:m], depth+1)
	right := b.build(idx[m:], depth+1)

	n := &b.nodes[id]
	n.Feature = feature
	n.Threshold = threshold
	n.Left = left
	n.Right = right
	return id
}

// featureOrder returns candidate features, shuffled when subsampling.
func (b *treeBuilder) featureOrder() []int {
	d := len(b.X[0])
	if b.cfg.maxFeatures > 0 && b.cfg.maxFeatures < d && b.rng != nil {
		return b.rng.Perm(d)
	}
	order := make([]int, d)
	for i := range order {
		order[i] = i
	}
	return order
}

// bestSplit searches candidate features for the partition maximizing the
// criterion proxy. With feature subsampling it keeps drawing features past
// maxFeatures until at least one non-constant feature was evaluated.
func (b *treeBuilder) bestSplit(idx []int) (int, float64, bool) {
	limit := len(b.X[0])
	if b.cfg.maxFeatures > 0 {
		limit = b.cfg.maxFeatures
	}

	sorted := make([]int, len(idx))
	bestProxy := math.Inf(-1)
	bestFeature, bestThreshold := -1, 0.0
	visited := 0

	for _, f := range b.featureOrder() {
		if visited >= limit {
			break
		}
		copy(sorted, idx)
		slices.SortFunc(sorted, func(a, c int) int {
			switch va, vc := b.X[a][f], b.X[c][f]; {
			case va < vc:
				return -1
			case va > vc:
				return 1
			default:
				return 0
			}
		})
		if b.X[sorted[0]][f] == b.X[sorted[len(sorted)-1]][f] {
			continue // constant in this node
		}
		visited++

		b.crit.reset()
		n := len(sorted)
		for p := 0; p < n-1; p++ {
			b.crit.move(sorted[p])
			lo, hi := b.X[sorted[p]][f], b.X[sorted[p+1]][f]
			if lo == hi {
				continue
			}
			if p+1 < b.cfg.minSamplesLeaf || n-p-1 < b.cfg.minSamplesLeaf {
				continue
			}
			if proxy := b.crit.proxy(); proxy > bestProxy {
				bestProxy = proxy
				bestFeature = f
				bestThreshold = lo + (hi-lo)/2
				if bestThreshold >= hi {
					bestThreshold = lo
				}
			}
		}
	}
	return bestFeature, bestThreshold, bestFeature >= 0
}

// partition reorders idx so that samples satisfying left come first and
// returns their count.
func partition(idx []int, left func(int) bool) int {
	m := 0
	for i, v := range idx {
		if left(v) {
			idx[i], idx[m] = idx[m], idx[i]
			m++
		}
	}
	return m
}

// giniCriterion scores classification splits by weighted Gini impurity.
// Maximizing sum_c(l_c^2)/W_l + sum_c(r_c^2)/W_r minimizes the weighted
// child impurity.
type giniCriterion struct {
	y      []int     // class index per sample
	w      []float64 // weight per sample
	k      int
	total  []float64
	left   []float64
	right  []float64
	wl, wr float64
	sql    float64
	sqr    float64
}

func newGiniCriterion(yIdx []int, w []float64, k int) *giniCriterion {
	return &giniCriterion{
		y:     yIdx,
		w:     w,
		k:     k,
		total: make([]float64, k),
		left:  make([]float64, k),
		right: make([]float64, k),
	}
}

func (g *giniCriterion) init(idx []int) {
	clear(g.total)
	for _, i := range idx {
		g.total[g.y[i]] += g.w[i]
	}
}

func (g *giniCriterion) reset() {
	clear(g.left)
	copy(g.right, g.total)
	g.wl, g.wr, g.sql, g.sqr = 0, 0, 0, 0
	for _, v := range g.right {
		g.wr += v
		g.sqr += v * v
	}
}

func (g *giniCriterion) move(i int) {
	c, w := g.y[i], g.w[i]
	l, r := g.left[c], g.right[c]
	g.sql += (l+w)*(l+w) - l*l
	g.sqr += (r-w)*(r-w) - r*r
	g.left[c] = l + w
	g.right[c] = r - w
	g.wl += w
	g.wr -= w
}

func (g *giniCriterion) proxy() float64 {
	if g.wl <= 0 || g.wr <= 0 {
		return math.Inf(-1)
	}
	return g.sql/g.wl + g.sqr/g.wr
}

func (g *giniCriterion) pure() bool {
	nonzero := 0
	for _, v := range g.total {
		if v > 0 {
			nonzero++
		}
	}
	return nonzero <= 1
}

// leafValue returns the weighted class distribution of the node.
func (g *giniCriterion) leafValue(_ []int) []float64 {
	out := make([]float64, g.k)
	sum := 0.0
	for c, v := range g.total {
		out[c] = v
		sum += v
	}
	if sum > 0 {
		for c := range out {
			out[c] /= sum
		}
	}
	return out
}

// mseCriterion scores regression splits by squared error. The proxy
// s_l^2/n_l + s_r^2/n_r has the same argmax as Friedman's improvement.
type mseCriterion struct {
	target []float64
	leaf   func(idx []int) float64

	n, s, sq float64
	nl, sl   float64
}

func newMSECriterion(target []float64, leaf func(idx []int) float64) *mseCriterion {
	return &mseCriterion{target: target, leaf: leaf}
}

func (m *mseCriterion) init(idx []int) {
	m.n, m.s, m.sq = float64(len(idx)), 0, 0
	for _, i := range idx {
		v := m.target[i]
		m.s += v
		m.sq += v * v
	}
}

func (m *mseCriterion) reset() {
	m.nl, m.sl = 0, 0
}

func (m *mseCriterion) move(i int) {
	m.nl++
	m.sl += m.target[i]
}

func (m *mseCriterion) proxy() float64 {
	nr := m.n - m.nl
	if m.nl <= 0 || nr <= 0 {
		return math.Inf(-1)
	}
	sr := m.s - m.sl
	return m.sl*m.sl/m.nl + sr*sr/nr
}

func (m *mseCriterion) pure() bool {
	if m.n == 0 {
		return true
	}
	return m.sq-m.s*m.s/m.n <= 1e-12
}

func (m *mseCriterion) leafValue(idx []int) []float64 {
	if m.leaf != nil {
		return []float64{m.leaf(idx)}
	}
	if len(idx) == 0 {
		return []float64{0}
	}
	sum := 0.0
	for _, i := range idx {
		sum += m.target[i]
	}
	return []float64{sum / float64(len(idx))}
}
