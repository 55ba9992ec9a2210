package model

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/mat"

	"complaint-survival-audit/internal/survival"
)

// ForestFitter grows an oblique random survival forest: each tree is built on
// a bootstrap sample, node splits are chosen among random axis-aligned and
// random two-feature linear-combination directions scored by the log-rank
// statistic, and leaves hold Kaplan-Meier curves of their members. All
// randomness derives from Seed, so a fit is reproducible.
type ForestFitter struct {
	Trees   int
	MinLeaf int
	// Mtry is the number of candidate split directions tried per node;
	// 0 defaults to sqrt(p) rounded up.
	Mtry int
	Seed int64
}

func (f ForestFitter) Name() string { return "oblique_forest" }

const (
	forestMaxDepth       = 20
	forestThresholdTries = 5
)

type forestSplit struct {
	features  [2]int
	weights   [2]float64
	threshold float64
}

type forestNode struct {
	split       forestSplit
	left, right *forestNode
	leaf        *survival.KaplanMeier
}

type forestModel struct {
	trees []*forestNode
	// grid holds the distinct training event times, the support of the
	// ensemble curve.
	grid []float64
}

func (f ForestFitter) Fit(X *mat.Dense, obs []survival.Observation) (Model, error) {
	n, p := X.Dims()
	if n == 0 || n != len(obs) {
		return nil, fmt.Errorf("design matrix rows (%d) do not match observations (%d)", n, len(obs))
	}
	if survival.EventCount(obs) == 0 {
		return nil, errors.New("no resolved complaints to fit on")
	}
	if f.Trees <= 0 {
		return nil, fmt.Errorf("tree count must be positive, got %d", f.Trees)
	}
	minLeaf := f.MinLeaf
	if minLeaf <= 0 {
		minLeaf = 10
	}
	mtry := f.Mtry
	if mtry <= 0 {
		mtry = int(math.Ceil(math.Sqrt(float64(p))))
	}

	m := &forestModel{grid: eventTimeGrid(obs)}
	builder := &treeBuilder{X: X, obs: obs, p: p, minLeaf: minLeaf, mtry: mtry}

	for t := 0; t < f.Trees; t++ {
		rng := rand.New(rand.NewSource(f.Seed + int64(t)*7919))
		sample := make([]int, n)
		for i := range sample {
			sample[i] = rng.Intn(n)
		}
		m.trees = append(m.trees, builder.build(sample, rng, 0))
	}
	return m, nil
}

func eventTimeGrid(obs []survival.Observation) []float64 {
	seen := map[float64]bool{}
	var grid []float64
	for _, o := range obs {
		if o.Event && !seen[o.Duration] {
			seen[o.Duration] = true
			grid = append(grid, o.Duration)
		}
	}
	sort.Float64s(grid)
	return grid
}

type treeBuilder struct {
	X       *mat.Dense
	obs     []survival.Observation
	p       int
	minLeaf int
	mtry    int
}

func (b *treeBuilder) build(indices []int, rng *rand.Rand, depth int) *forestNode {
	if len(indices) < 2*b.minLeaf || depth >= forestMaxDepth || b.events(indices) == 0 {
		return b.makeLeaf(indices)
	}

	bestScore := 0.0
	var bestSplit forestSplit
	var bestLeft, bestRight []int

	for c := 0; c < b.mtry; c++ {
		split := b.randomDirection(rng)
		proj := make([]float64, len(indices))
		for i, idx := range indices {
			proj[i] = b.project(split, idx)
		}

		for try := 0; try < forestThresholdTries; try++ {
			split.threshold = proj[rng.Intn(len(proj))]
			var left, right []int
			for i, idx := range indices {
				if proj[i] <= split.threshold {
					left = append(left, idx)
				} else {
					right = append(right, idx)
				}
			}
			if len(left) < b.minLeaf || len(right) < b.minLeaf {
				continue
			}
			score := b.logRank(left, right)
			if score > bestScore {
				bestScore = score
				bestSplit = split
				bestLeft, bestRight = left, right
			}
		}
	}

	if bestLeft == nil {
		return b.makeLeaf(indices)
	}
	return &forestNode{
		split: bestSplit,
		left:  b.build(bestLeft, rng, depth+1),
		right: b.build(bestRight, rng, depth+1),
	}
}

func (b *treeBuilder) randomDirection(rng *rand.Rand) forestSplit {
	split := forestSplit{}
	split.features[0] = rng.Intn(b.p)
	split.weights[0] = 1
	// Half the candidates are oblique: a random linear combination of two
	// distinct features.
	if b.p >= 2 && rng.Intn(2) == 0 {
		second := rng.Intn(b.p - 1)
		if second >= split.features[0] {
			second++
		}
		split.features[1] = second
		split.weights[0] = rng.Float64()*2 - 1
		split.weights[1] = rng.Float64()*2 - 1
	} else {
		split.features[1] = split.features[0]
		split.weights[1] = 0
	}
	return split
}

func (b *treeBuilder) project(s forestSplit, idx int) float64 {
	return s.weights[0]*b.X.At(idx, s.features[0]) + s.weights[1]*b.X.At(idx, s.features[1])
}

func (b *treeBuilder) events(indices []int) int {
	count := 0
	for _, idx := range indices {
		if b.obs[idx].Event {
			count++
		}
	}
	return count
}

func (b *treeBuilder) makeLeaf(indices []int) *forestNode {
	leafObs := make([]survival.Observation, len(indices))
	for i, idx := range indices {
		leafObs[i] = b.obs[idx]
	}
	km, err := survival.FitKaplanMeier(leafObs)
	if err != nil {
		// Empty leaves cannot happen: split arms respect minLeaf.
		km = &survival.KaplanMeier{}
	}
	return &forestNode{leaf: km}
}

// logRank computes the two-sample log-rank statistic between the groups.
func (b *treeBuilder) logRank(left, right []int) float64 {
	type point struct {
		time  float64
		left  bool
		event bool
	}
	points := make([]point, 0, len(left)+len(right))
	for _, idx := range left {
		points = append(points, point{b.obs[idx].Duration, true, b.obs[idx].Event})
	}
	for _, idx := range right {
		points = append(points, point{b.obs[idx].Duration, false, b.obs[idx].Event})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].time < points[j].time })

	n1 := float64(len(left))
	n2 := float64(len(right))
	observedMinusExpected := 0.0
	variance := 0.0

	i := 0
	for i < len(points) {
		t := points[i].time
		d1, d2, c1, c2 := 0.0, 0.0, 0.0, 0.0
		for i < len(points) && points[i].time == t {
			if points[i].left {
				c1++
				if points[i].event {
					d1++
				}
			} else {
				c2++
				if points[i].event {
					d2++
				}
			}
			i++
		}
		d := d1 + d2
		n := n1 + n2
		if d > 0 && n > 1 {
			expected1 := d * n1 / n
			observedMinusExpected += d1 - expected1
			variance += d * (n1 / n) * (1 - n1/n) * (n - d) / (n - 1)
		}
		n1 -= c1
		n2 -= c2
	}

	if variance <= 0 {
		return 0
	}
	return observedMinusExpected * observedMinusExpected / variance
}

func (m *forestModel) PredictSurvival(x []float64, times []float64) []float64 {
	out := make([]float64, len(times))
	for _, tree := range m.trees {
		leaf := descend(tree, x)
		for i, t := range times {
			out[i] += leaf.SurvivalAt(t)
		}
	}
	for i := range out {
		out[i] /= float64(len(m.trees))
	}
	return out
}

func (m *forestModel) PredictDuration(x []float64) float64 {
	if len(m.grid) == 0 {
		return 0
	}
	surv := m.PredictSurvival(x, m.grid)
	return medianFromCurve(m.grid, surv)
}

func descend(node *forestNode, x []float64) *survival.KaplanMeier {
	for node.leaf == nil {
		s := node.split
		proj := s.weights[0]*x[s.features[0]] + s.weights[1]*x[s.features[1]]
		if proj <= s.threshold {
			node = node.left
		} else {
			node = node.right
		}
	}
	return node.leaf
}
