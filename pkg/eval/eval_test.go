package eval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfusion(t *testing.T) {
	yTrue := []int{0, 0, 0, 1, 1, 1, 1, 0}
	yPred := []int{0, 1, 0, 1, 0, 1, 1, 0}

	c := NewConfusion(yTrue, yPred)
	assert.Equal(t, Confusion{TN: 3, FP: 1, FN: 1, TP: 3}, c)

	assert.InDelta(t, 0.75, c.Precision(), 1e-12)
	assert.InDelta(t, 0.75, c.Recall(), 1e-12)
	assert.InDelta(t, 0.75, c.F1(), 1e-12)
}

func TestZeroGuards(t *testing.T) {
	tests := []struct {
		name  string
		yTrue []int
		yPred []int
	}{
		{
			name:  "no positive predictions",
			yTrue: []int{1, 1, 0},
			yPred: []int{0, 0, 0},
		},
		{
			name:  "no positive truth",
			yTrue: []int{0, 0, 0},
			yPred: []int{0, 0, 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewConfusion(tt.yTrue, tt.yPred)
			// Each metric is exactly 0 when its denominator is 0.
			assert.Equal(t, 0.0, c.Precision())
			if tt.name == "no positive truth" {
				assert.Equal(t, 0.0, c.Recall())
			}
			assert.Equal(t, 0.0, c.F1())
		})
	}
}

func TestMetricBounds(t *testing.T) {
	yTrue := []int{0, 1, 0, 1, 1, 0, 1, 0, 1, 1}
	yPred := []int{0, 1, 1, 1, 0, 0, 1, 1, 1, 0}

	c := NewConfusion(yTrue, yPred)
	for _, v := range []float64{c.Precision(), c.Recall(), c.F1(), Accuracy(yTrue, yPred)} {
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 1.0)
	}
}

func TestAccuracy(t *testing.T) {
	assert.Equal(t, 0.0, Accuracy(nil, nil))
	assert.Equal(t, 1.0, Accuracy([]int{1, 0}, []int{1, 0}))
	assert.Equal(t, 0.5, Accuracy([]int{1, 0}, []int{1, 1}))
}

func TestPerClass(t *testing.T) {
	yTrue := []int{0, 0, 1, 1, 1}
	yPred := []int{0, 1, 1, 1, 0}

	metrics := PerClass(yTrue, yPred, []string{"normal", "anomalous"})
	require.Len(t, metrics, 2)

	assert.Equal(t, "normal", metrics[0].Label)
	assert.Equal(t, 2, metrics[0].Support)
	assert.InDelta(t, 0.5, metrics[0].Precision, 1e-12)
	assert.InDelta(t, 0.5, metrics[0].Recall, 1e-12)

	assert.Equal(t, "anomalous", metrics[1].Label)
	assert.Equal(t, 3, metrics[1].Support)
	assert.InDelta(t, 2.0/3, metrics[1].Precision, 1e-12)
	assert.InDelta(t, 2.0/3, metrics[1].Recall, 1e-12)
}

func TestMacroF1(t *testing.T) {
	perfect := MacroF1([]int{0, 1, 2}, []int{0, 1, 2}, 3)
	assert.InDelta(t, 1.0, perfect, 1e-12)

	worst := MacroF1([]int{0, 0, 0}, []int{1, 1, 1}, 2)
	assert.Equal(t, 0.0, worst)
}

func TestAUC(t *testing.T) {
	// Perfect ranking separates classes with AUC 1.
	yTrue := []int{0, 0, 1, 1}
	proba := []float64{0.1, 0.2, 0.8, 0.9}
	assert.InDelta(t, 1.0, AUC(yTrue, proba), 1e-12)

	// Inverted ranking scores 0.
	assert.InDelta(t, 0.0, AUC(yTrue, []float64{0.9, 0.8, 0.2, 0.1}), 1e-12)

	// Degenerate single-class input.
	assert.Equal(t, 0.0, AUC([]int{1, 1}, []float64{0.5, 0.6}))
}

func TestEvaluate(t *testing.T) {
	yTrue := []int{0, 0, 0, 1, 1}
	yPred := []int{0, 0, 1, 1, 1}
	proba := []float64{0.1, 0.2, 0.6, 0.7, 0.9}

	report, err := Evaluate(yTrue, yPred, proba, []string{"normal", "anomalous"})
	require.NoError(t, err)

	assert.InDelta(t, 0.8, report.Accuracy, 1e-12)
	assert.Equal(t, Confusion{TN: 2, FP: 1, FN: 0, TP: 2}, report.Confusion)
	assert.Greater(t, report.AUC, 0.9)

	text := report.String()
	assert.Contains(t, text, "Accuracy:")
	assert.Contains(t, text, "normal")
	assert.Contains(t, text, "anomalous")
	assert.Contains(t, text, "True Negatives: 2, False Positives: 1")
	assert.Contains(t, text, "F1-Score:")
}

func TestEvaluateErrors(t *testing.T) {
	_, err := Evaluate([]int{0}, []int{0, 1}, nil, nil)
	assert.Error(t, err)

	_, err = Evaluate([]int{0, 1}, []int{0, 1}, []float64{0.5}, nil)
	assert.Error(t, err)
}
