package gbtree

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hed1ad/goboostml/pkg/classifiers"
)

// separable generates two gaussian clusters shifted far enough apart to
// be almost perfectly separable.
func separable(n int, seed int64) ([][]float64, []int) {
	rng := rand.New(rand.NewSource(seed))
	x := make([][]float64, n)
	y := make([]int, n)
	for i := 0; i < n; i++ {
		label := i % 2
		shift := float64(label) * 4
		x[i] = []float64{rng.NormFloat64() + shift, rng.NormFloat64() + shift}
		y[i] = label
	}
	return x, y
}

func TestNew(t *testing.T) {
	tests := []struct {
		name           string
		opts           []Option
		wantEstimators int
		wantDepth      int
	}{
		{
			name:           "default configuration",
			opts:           nil,
			wantEstimators: 200,
			wantDepth:      6,
		},
		{
			name:           "custom rounds",
			opts:           []Option{WithEstimators(50)},
			wantEstimators: 50,
			wantDepth:      6,
		},
		{
			name:           "multiple options",
			opts:           []Option{WithEstimators(20), WithMaxDepth(3), WithSeed(123)},
			wantEstimators: 20,
			wantDepth:      3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := New(tt.opts...)
			assert.Equal(t, tt.wantEstimators, g.nEstimators)
			assert.Equal(t, tt.wantDepth, g.maxDepth)
		})
	}
}

func TestFitErrors(t *testing.T) {
	tests := []struct {
		name string
		x    [][]float64
		y    []int
	}{
		{
			name: "empty data",
			x:    nil,
			y:    nil,
		},
		{
			name: "length mismatch",
			x:    [][]float64{{1}, {2}},
			y:    []int{0},
		},
		{
			name: "single class",
			x:    [][]float64{{1}, {2}},
			y:    []int{0, 0},
		},
		{
			name: "negative code",
			x:    [][]float64{{1}, {2}},
			y:    []int{0, -1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := New(WithEstimators(5))
			assert.Error(t, g.Fit(tt.x, tt.y))
		})
	}
}

func TestNotTrained(t *testing.T) {
	g := New()

	_, err := g.Predict([][]float64{{1, 2}})
	assert.ErrorIs(t, err, classifiers.ErrNotTrained)

	_, err = g.PredictProba([][]float64{{1, 2}})
	assert.ErrorIs(t, err, classifiers.ErrNotTrained)

	_, err = g.FeatureImportances()
	assert.ErrorIs(t, err, classifiers.ErrNotTrained)

	_, err = g.Save()
	assert.ErrorIs(t, err, classifiers.ErrNotTrained)
}

func TestBinaryClassification(t *testing.T) {
	x, y := separable(400, 42)

	g := New(WithEstimators(30), WithMaxDepth(3), WithSeed(42))
	require.NoError(t, g.Fit(x, y))
	assert.Equal(t, 2, g.NumClasses())

	pred, err := g.Predict(x)
	require.NoError(t, err)

	correct := 0
	for i := range pred {
		if pred[i] == y[i] {
			correct++
		}
	}
	assert.Greater(t, float64(correct)/float64(len(y)), 0.95)
}

func TestPredictProba(t *testing.T) {
	x, y := separable(200, 7)

	g := New(WithEstimators(20), WithMaxDepth(3), WithSeed(7))
	require.NoError(t, g.Fit(x, y))

	proba, err := g.PredictProba(x)
	require.NoError(t, err)
	require.Len(t, proba, len(x))

	for _, row := range proba {
		require.Len(t, row, 2)
		var sum float64
		for _, p := range row {
			assert.GreaterOrEqual(t, p, 0.0)
			assert.LessOrEqual(t, p, 1.0)
			sum += p
		}
		assert.InDelta(t, 1.0, sum, 1e-9)
	}
}

func TestMulticlassClassification(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	n := 300
	x := make([][]float64, n)
	y := make([]int, n)
	for i := 0; i < n; i++ {
		label := i % 3
		center := float64(label) * 5
		x[i] = []float64{center + rng.NormFloat64(), center + rng.NormFloat64()}
		y[i] = label
	}

	g := New(WithEstimators(15), WithMaxDepth(3), WithSeed(3))
	require.NoError(t, g.Fit(x, y))
	assert.Equal(t, 3, g.NumClasses())

	pred, err := g.Predict(x)
	require.NoError(t, err)

	correct := 0
	for i := range pred {
		if pred[i] == y[i] {
			correct++
		}
	}
	assert.Greater(t, float64(correct)/float64(n), 0.9)

	proba, err := g.PredictProba(x[:5])
	require.NoError(t, err)
	for _, row := range proba {
		require.Len(t, row, 3)
		var sum float64
		for _, p := range row {
			sum += p
		}
		assert.InDelta(t, 1.0, sum, 1e-9)
	}
}

func TestFeatureImportances(t *testing.T) {
	// Only the first feature is informative; the second is noise.
	rng := rand.New(rand.NewSource(11))
	n := 400
	x := make([][]float64, n)
	y := make([]int, n)
	for i := 0; i < n; i++ {
		label := i % 2
		x[i] = []float64{float64(label)*4 + rng.NormFloat64(), rng.NormFloat64()}
		y[i] = label
	}

	g := New(WithEstimators(20), WithMaxDepth(3), WithSeed(11))
	require.NoError(t, g.Fit(x, y))

	imp, err := g.FeatureImportances()
	require.NoError(t, err)
	require.Len(t, imp, 2)

	var sum float64
	for _, v := range imp {
		assert.GreaterOrEqual(t, v, 0.0)
		sum += v
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
	assert.Greater(t, imp[0], imp[1])
}

func TestSaveLoad(t *testing.T) {
	x, y := separable(200, 21)

	g := New(WithEstimators(10), WithMaxDepth(3), WithSeed(21))
	require.NoError(t, g.Fit(x, y))

	data, err := g.Save()
	require.NoError(t, err)
	require.NotEmpty(t, data)

	restored := New()
	require.NoError(t, restored.Load(data))
	assert.Equal(t, g.NumClasses(), restored.NumClasses())

	want, err := g.PredictProba(x)
	require.NoError(t, err)
	got, err := restored.PredictProba(x)
	require.NoError(t, err)

	for i := range want {
		for c := range want[i] {
			assert.InDelta(t, want[i][c], got[i][c], 1e-12)
		}
	}
}

func TestRefitDiscardsState(t *testing.T) {
	x, y := separable(100, 5)

	g := New(WithEstimators(5), WithMaxDepth(2), WithSeed(5))
	require.NoError(t, g.Fit(x, y))
	first := len(g.rounds)

	require.NoError(t, g.Fit(x, y))
	assert.Equal(t, first, len(g.rounds))
}

func TestSigmoid(t *testing.T) {
	assert.InDelta(t, 0.5, sigmoid(0), 1e-12)
	assert.Greater(t, sigmoid(10), 0.99)
	assert.Less(t, sigmoid(-10), 0.01)
}

func TestSoftmax(t *testing.T) {
	out := make([]float64, 3)
	softmax([]float64{1, 2, 3}, out)

	var sum float64
	for _, v := range out {
		sum += v
	}
	assert.InDelta(t, 1.0, sum, 1e-12)
	assert.True(t, out[2] > out[1] && out[1] > out[0])

	// Large scores must not overflow.
	softmax([]float64{1000, 1000, 1000}, out)
	for _, v := range out {
		assert.False(t, math.IsNaN(v))
		assert.InDelta(t, 1.0/3, v, 1e-12)
	}
}
