package gbtree

import (
	"math"
	"sort"
)

// treeNode is a node of a regression tree fit to gradient/hessian
// statistics. Fields are exported for gob serialization.
type treeNode struct {
	Leaf    bool
	Weight  float64
	Feature int
	Value   float64
	Left    *treeNode
	Right   *treeNode
}

// splitResult describes the best split found for a node.
type splitResult struct {
	feature int
	value   float64
	gain    float64
	left    []int
	right   []int
}

// buildTree grows a regression tree over the given row indices using
// second-order statistics, the way gradient boosting frameworks fit
// each round. features is the column subset this tree may split on.
func (g *GradientBoosting) buildTree(x [][]float64, grad, hess []float64, rows, features []int, depth int) *treeNode {
	var sumG, sumH float64
	for _, i := range rows {
		sumG += grad[i]
		sumH += hess[i]
	}

	if depth >= g.maxDepth || len(rows) <= 1 {
		return &treeNode{Leaf: true, Weight: leafWeight(sumG, sumH, g.lambda)}
	}

	best := g.bestSplit(x, grad, hess, rows, features, sumG, sumH)
	if best == nil {
		return &treeNode{Leaf: true, Weight: leafWeight(sumG, sumH, g.lambda)}
	}

	g.importance[best.feature] += best.gain

	return &treeNode{
		Feature: best.feature,
		Value:   best.value,
		Left:    g.buildTree(x, grad, hess, best.left, features, depth+1),
		Right:   g.buildTree(x, grad, hess, best.right, features, depth+1),
	}
}

// bestSplit scans every candidate feature with an exact greedy search
// and returns the highest positive-gain split, or nil when no split
// improves the objective or satisfies the child weight constraint.
func (g *GradientBoosting) bestSplit(x [][]float64, grad, hess []float64, rows, features []int, sumG, sumH float64) *splitResult {
	var best *splitResult

	order := make([]int, len(rows))
	for _, f := range features {
		copy(order, rows)
		sort.Slice(order, func(a, b int) bool {
			return x[order[a]][f] < x[order[b]][f]
		})

		var leftG, leftH float64
		for i := 0; i < len(order)-1; i++ {
			leftG += grad[order[i]]
			leftH += hess[order[i]]

			// Split only between distinct values.
			if x[order[i]][f] == x[order[i+1]][f] {
				continue
			}

			rightG := sumG - leftG
			rightH := sumH - leftH
			if leftH < g.minChildWeight || rightH < g.minChildWeight {
				continue
			}

			gain := splitGain(leftG, leftH, rightG, rightH, sumG, sumH, g.lambda)
			if gain <= 0 || (best != nil && gain <= best.gain) {
				continue
			}

			value := (x[order[i]][f] + x[order[i+1]][f]) / 2
			best = &splitResult{
				feature: f,
				value:   value,
				gain:    gain,
				left:    append([]int(nil), order[:i+1]...),
				right:   append([]int(nil), order[i+1:]...),
			}
		}
	}

	return best
}

// leafWeight is the Newton-step optimal leaf value -G/(H+lambda).
func leafWeight(sumG, sumH, lambda float64) float64 {
	return -sumG / (sumH + lambda)
}

// splitGain is the second-order gain of splitting a node.
func splitGain(gl, hl, gr, hr, g, h, lambda float64) float64 {
	score := func(gs, hs float64) float64 { return gs * gs / (hs + lambda) }
	return 0.5 * (score(gl, hl) + score(gr, hr) - score(g, h))
}

// score walks a sample down the tree to its leaf weight.
func (n *treeNode) score(sample []float64) float64 {
	for !n.Leaf && n.Left != nil {
		if sample[n.Feature] < n.Value {
			n = n.Left
		} else {
			n = n.Right
		}
	}
	return n.Weight
}

func sigmoid(v float64) float64 {
	return 1 / (1 + math.Exp(-v))
}

// softmax writes the normalized distribution of raw scores into out.
func softmax(raw, out []float64) {
	max := raw[0]
	for _, v := range raw[1:] {
		if v > max {
			max = v
		}
	}
	var sum float64
	for i, v := range raw {
		out[i] = math.Exp(v - max)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
}
