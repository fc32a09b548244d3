// Package gbtree implements gradient-boosted decision trees for binary
// and multi-class classification. Trees are fit to first and second
// order gradients of the logistic (binary) or softmax (multi-class)
// loss, with row subsampling and per-tree feature subsampling.
package gbtree

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"

	"gonum.org/v1/gonum/floats"

	"github.com/hed1ad/goboostml/pkg/classifiers"
)

// GradientBoosting implements classifiers.Classifier with an ensemble
// of boosted regression trees.
type GradientBoosting struct {
	mu sync.RWMutex

	// Configuration
	nEstimators    int
	learningRate   float64
	maxDepth       int
	minChildWeight float64
	subsample      float64
	colsample      float64
	lambda         float64
	rng            *rand.Rand

	// Trained model. rounds[r][k] is the tree for class output k in
	// boosting round r; binary classification uses a single output.
	rounds     [][]*treeNode
	nClasses   int
	nFeatures  int
	importance []float64
	trained    bool
}

// Option configures a GradientBoosting classifier.
type Option func(*GradientBoosting)

// WithEstimators sets the number of boosting rounds.
func WithEstimators(n int) Option {
	return func(g *GradientBoosting) {
		g.nEstimators = n
	}
}

// WithLearningRate sets the shrinkage applied to each tree.
func WithLearningRate(eta float64) Option {
	return func(g *GradientBoosting) {
		g.learningRate = eta
	}
}

// WithMaxDepth sets the maximum tree depth.
func WithMaxDepth(d int) Option {
	return func(g *GradientBoosting) {
		g.maxDepth = d
	}
}

// WithMinChildWeight sets the minimum hessian sum allowed in a child.
func WithMinChildWeight(w float64) Option {
	return func(g *GradientBoosting) {
		g.minChildWeight = w
	}
}

// WithSubsample sets the fraction of rows sampled per tree.
func WithSubsample(f float64) Option {
	return func(g *GradientBoosting) {
		g.subsample = f
	}
}

// WithColsample sets the fraction of features sampled per tree.
func WithColsample(f float64) Option {
	return func(g *GradientBoosting) {
		g.colsample = f
	}
}

// WithLambda sets the L2 regularization on leaf weights.
func WithLambda(l float64) Option {
	return func(g *GradientBoosting) {
		g.lambda = l
	}
}

// WithSeed sets the random seed for row and feature sampling.
func WithSeed(seed int64) Option {
	return func(g *GradientBoosting) {
		g.rng = rand.New(rand.NewSource(seed))
	}
}

// New creates a GradientBoosting classifier with the given options.
func New(opts ...Option) *GradientBoosting {
	g := &GradientBoosting{
		nEstimators:    200,
		learningRate:   0.1,
		maxDepth:       6,
		minChildWeight: 1,
		subsample:      0.8,
		colsample:      0.8,
		lambda:         1,
		rng:            rand.New(rand.NewSource(42)),
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// Fit trains the ensemble. y holds dense class codes in [0, k); k is
// taken as max(y)+1. Refitting discards all prior state.
func (g *GradientBoosting) Fit(x [][]float64, y []int) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(x) == 0 {
		return errors.New("empty training data")
	}
	if len(x) != len(y) {
		return fmt.Errorf("feature rows (%d) and labels (%d) differ", len(x), len(y))
	}

	nClasses := 0
	for _, label := range y {
		if label < 0 {
			return fmt.Errorf("negative class code %d", label)
		}
		if label+1 > nClasses {
			nClasses = label + 1
		}
	}
	if nClasses < 2 {
		return fmt.Errorf("need at least 2 classes, got %d", nClasses)
	}

	g.nClasses = nClasses
	g.nFeatures = len(x[0])
	g.importance = make([]float64, g.nFeatures)
	g.rounds = g.rounds[:0]
	g.trained = false

	if nClasses == 2 {
		g.fitBinary(x, y)
	} else {
		g.fitSoftmax(x, y)
	}

	g.trained = true
	return nil
}

// fitBinary boosts a single logistic output.
func (g *GradientBoosting) fitBinary(x [][]float64, y []int) {
	n := len(x)
	raw := make([]float64, n)
	grad := make([]float64, n)
	hess := make([]float64, n)

	for r := 0; r < g.nEstimators; r++ {
		for i := range x {
			p := sigmoid(raw[i])
			grad[i] = p - float64(y[i])
			hess[i] = math.Max(p*(1-p), 1e-16)
		}

		tree := g.buildTree(x, grad, hess, g.sampleRows(n), g.sampleFeatures(), 0)
		g.rounds = append(g.rounds, []*treeNode{tree})

		for i := range x {
			raw[i] += g.learningRate * tree.score(x[i])
		}
	}
}

// fitSoftmax boosts one output per class against the softmax loss.
func (g *GradientBoosting) fitSoftmax(x [][]float64, y []int) {
	n := len(x)
	k := g.nClasses

	raw := make([][]float64, n)
	prob := make([]float64, k)
	for i := range raw {
		raw[i] = make([]float64, k)
	}
	grad := make([][]float64, k)
	hess := make([][]float64, k)
	for c := 0; c < k; c++ {
		grad[c] = make([]float64, n)
		hess[c] = make([]float64, n)
	}

	for r := 0; r < g.nEstimators; r++ {
		for i := range x {
			softmax(raw[i], prob)
			for c := 0; c < k; c++ {
				target := 0.0
				if y[i] == c {
					target = 1
				}
				grad[c][i] = prob[c] - target
				hess[c][i] = math.Max(prob[c]*(1-prob[c]), 1e-16)
			}
		}

		round := make([]*treeNode, k)
		rows := g.sampleRows(n)
		for c := 0; c < k; c++ {
			round[c] = g.buildTree(x, grad[c], hess[c], rows, g.sampleFeatures(), 0)
			for i := range x {
				raw[i][c] += g.learningRate * round[c].score(x[i])
			}
		}
		g.rounds = append(g.rounds, round)
	}
}

// sampleRows draws the row subset for one boosting round, without
// replacement.
func (g *GradientBoosting) sampleRows(n int) []int {
	k := int(math.Ceil(g.subsample * float64(n)))
	if k >= n {
		rows := make([]int, n)
		for i := range rows {
			rows[i] = i
		}
		return rows
	}
	return g.rng.Perm(n)[:k]
}

// sampleFeatures draws the feature subset for one tree.
func (g *GradientBoosting) sampleFeatures() []int {
	k := int(math.Ceil(g.colsample * float64(g.nFeatures)))
	if k >= g.nFeatures {
		features := make([]int, g.nFeatures)
		for i := range features {
			features[i] = i
		}
		return features
	}
	return g.rng.Perm(g.nFeatures)[:k]
}

// rawScores accumulates the ensemble output for one sample.
func (g *GradientBoosting) rawScores(sample []float64) []float64 {
	width := 1
	if g.nClasses > 2 {
		width = g.nClasses
	}
	raw := make([]float64, width)
	for _, round := range g.rounds {
		for c, tree := range round {
			raw[c] += g.learningRate * tree.score(sample)
		}
	}
	return raw
}

// Predict returns the predicted class code for each sample.
func (g *GradientBoosting) Predict(x [][]float64) ([]int, error) {
	proba, err := g.PredictProba(x)
	if err != nil {
		return nil, err
	}

	out := make([]int, len(proba))
	for i, p := range proba {
		out[i] = floats.MaxIdx(p)
	}
	return out, nil
}

// PredictProba returns a per-class probability row for each sample.
func (g *GradientBoosting) PredictProba(x [][]float64) ([][]float64, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if !g.trained {
		return nil, classifiers.ErrNotTrained
	}

	out := make([][]float64, len(x))
	for i, sample := range x {
		if len(sample) != g.nFeatures {
			return nil, fmt.Errorf("sample has %d features, want %d", len(sample), g.nFeatures)
		}

		raw := g.rawScores(sample)
		proba := make([]float64, g.nClasses)
		if g.nClasses == 2 {
			p := sigmoid(raw[0])
			proba[0] = 1 - p
			proba[1] = p
		} else {
			softmax(raw, proba)
		}
		out[i] = proba
	}
	return out, nil
}

// FeatureImportances returns the total split gain attributed to each
// feature, normalized to sum to 1 when any split was made.
func (g *GradientBoosting) FeatureImportances() ([]float64, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if !g.trained {
		return nil, classifiers.ErrNotTrained
	}

	out := append([]float64(nil), g.importance...)
	if total := floats.Sum(out); total > 0 {
		floats.Scale(1/total, out)
	}
	return out, nil
}

// NumClasses returns the number of classes seen during fitting.
func (g *GradientBoosting) NumClasses() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.nClasses
}

// model is the gob wire form of a trained ensemble.
type model struct {
	Rounds     [][]*treeNode
	NClasses   int
	NFeatures  int
	Importance []float64
}

// Save serializes the trained ensemble.
func (g *GradientBoosting) Save() ([]byte, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if !g.trained {
		return nil, classifiers.ErrNotTrained
	}

	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(model{
		Rounds:     g.rounds,
		NClasses:   g.nClasses,
		NFeatures:  g.nFeatures,
		Importance: g.importance,
	})
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Load deserializes a trained ensemble.
func (g *GradientBoosting) Load(data []byte) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	var m model
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&m); err != nil {
		return err
	}

	g.rounds = m.Rounds
	g.nClasses = m.NClasses
	g.nFeatures = m.NFeatures
	g.importance = m.Importance
	g.trained = true
	return nil
}
