// Package eval computes classification metrics and renders the textual
// evaluation report.
package eval

import (
	"fmt"
	"sort"
	"strings"

	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"
)

// Confusion holds binary confusion-matrix counts. Class 1 is the
// positive (anomalous) class.
type Confusion struct {
	TN, FP, FN, TP int
}

// NewConfusion tallies binary predictions against ground truth.
func NewConfusion(yTrue, yPred []int) Confusion {
	var c Confusion
	for i := range yTrue {
		switch {
		case yTrue[i] == 1 && yPred[i] == 1:
			c.TP++
		case yTrue[i] == 1 && yPred[i] == 0:
			c.FN++
		case yTrue[i] == 0 && yPred[i] == 1:
			c.FP++
		default:
			c.TN++
		}
	}
	return c
}

// Precision is TP/(TP+FP), exactly 0 when the denominator is 0.
func (c Confusion) Precision() float64 {
	if c.TP+c.FP == 0 {
		return 0
	}
	return float64(c.TP) / float64(c.TP+c.FP)
}

// Recall is TP/(TP+FN), exactly 0 when the denominator is 0.
func (c Confusion) Recall() float64 {
	if c.TP+c.FN == 0 {
		return 0
	}
	return float64(c.TP) / float64(c.TP+c.FN)
}

// F1 is the harmonic mean of precision and recall, exactly 0 when
// precision+recall is 0.
func (c Confusion) F1() float64 {
	p, r := c.Precision(), c.Recall()
	if p+r == 0 {
		return 0
	}
	return 2 * p * r / (p + r)
}

// Accuracy is the fraction of matching predictions.
func Accuracy(yTrue, yPred []int) float64 {
	if len(yTrue) == 0 {
		return 0
	}
	correct := 0
	for i := range yTrue {
		if yTrue[i] == yPred[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(yTrue))
}

// ClassMetrics holds one class's row of the classification report.
type ClassMetrics struct {
	Label     string
	Precision float64
	Recall    float64
	F1        float64
	Support   int
}

// PerClass computes one-vs-rest precision/recall/F1 per class code.
// classes maps codes to display labels; codes without a label render
// as their number.
func PerClass(yTrue, yPred []int, classes []string) []ClassMetrics {
	k := len(classes)
	for i := range yTrue {
		if yTrue[i]+1 > k {
			k = yTrue[i] + 1
		}
		if yPred[i]+1 > k {
			k = yPred[i] + 1
		}
	}

	out := make([]ClassMetrics, k)
	for c := 0; c < k; c++ {
		var tp, fp, fn, support int
		for i := range yTrue {
			if yTrue[i] == c {
				support++
				if yPred[i] == c {
					tp++
				} else {
					fn++
				}
			} else if yPred[i] == c {
				fp++
			}
		}

		m := ClassMetrics{Support: support}
		if c < len(classes) {
			m.Label = classes[c]
		} else {
			m.Label = fmt.Sprintf("%d", c)
		}
		if tp+fp > 0 {
			m.Precision = float64(tp) / float64(tp+fp)
		}
		if tp+fn > 0 {
			m.Recall = float64(tp) / float64(tp+fn)
		}
		if m.Precision+m.Recall > 0 {
			m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
		}
		out[c] = m
	}
	return out
}

// MacroF1 averages per-class F1 scores, treating classes equally.
func MacroF1(yTrue, yPred []int, numClasses int) float64 {
	labels := make([]string, numClasses)
	metrics := PerClass(yTrue, yPred, labels)
	var sum float64
	for _, m := range metrics {
		sum += m.F1
	}
	if len(metrics) == 0 {
		return 0
	}
	return sum / float64(len(metrics))
}

// AUC computes the area under the ROC curve from positive-class
// probabilities. Returns 0 when only one class is present.
func AUC(yTrue []int, positiveProba []float64) float64 {
	type pair struct {
		score float64
		pos   bool
	}
	pairs := make([]pair, len(yTrue))
	hasPos, hasNeg := false, false
	for i := range yTrue {
		pairs[i] = pair{score: positiveProba[i], pos: yTrue[i] == 1}
		if pairs[i].pos {
			hasPos = true
		} else {
			hasNeg = true
		}
	}
	if !hasPos || !hasNeg {
		return 0
	}

	sort.Slice(pairs, func(i, j int) bool { return pairs[i].score < pairs[j].score })

	scores := make([]float64, len(pairs))
	classes := make([]bool, len(pairs))
	for i, p := range pairs {
		scores[i] = p.score
		classes[i] = p.pos
	}

	tpr, fpr, _ := stat.ROC(nil, scores, classes, nil)
	return integrate.Trapezoidal(fpr, tpr)
}

// Report is the evaluation summary for a binary detection run.
type Report struct {
	Accuracy  float64
	Confusion Confusion
	Precision float64
	Recall    float64
	F1        float64
	AUC       float64
	Classes   []string
	PerClass  []ClassMetrics
}

// Evaluate builds the full binary report. positiveProba holds the
// predicted probability of class 1 per sample; pass nil to skip AUC.
func Evaluate(yTrue, yPred []int, positiveProba []float64, classes []string) (*Report, error) {
	if len(yTrue) != len(yPred) {
		return nil, fmt.Errorf("true labels (%d) and predictions (%d) differ", len(yTrue), len(yPred))
	}
	if positiveProba != nil && len(positiveProba) != len(yTrue) {
		return nil, fmt.Errorf("probabilities (%d) and labels (%d) differ", len(positiveProba), len(yTrue))
	}

	c := NewConfusion(yTrue, yPred)
	r := &Report{
		Accuracy:  Accuracy(yTrue, yPred),
		Confusion: c,
		Precision: c.Precision(),
		Recall:    c.Recall(),
		F1:        c.F1(),
		Classes:   classes,
		PerClass:  PerClass(yTrue, yPred, classes),
	}
	if positiveProba != nil {
		r.AUC = AUC(yTrue, positiveProba)
	}
	return r, nil
}

// String renders the report in the classification-report style.
func (r *Report) String() string {
	var b strings.Builder

	fmt.Fprintf(&b, "Accuracy: %.4f\n\n", r.Accuracy)

	fmt.Fprintf(&b, "%-14s %9s %9s %9s %9s\n", "", "precision", "recall", "f1-score", "support")
	for _, m := range r.PerClass {
		fmt.Fprintf(&b, "%-14s %9.4f %9.4f %9.4f %9d\n", m.Label, m.Precision, m.Recall, m.F1, m.Support)
	}

	fmt.Fprintf(&b, "\nConfusion Matrix:\n")
	fmt.Fprintf(&b, "True Negatives: %d, False Positives: %d\n", r.Confusion.TN, r.Confusion.FP)
	fmt.Fprintf(&b, "False Negatives: %d, True Positives: %d\n", r.Confusion.FN, r.Confusion.TP)

	fmt.Fprintf(&b, "\nPrecision: %.4f\n", r.Precision)
	fmt.Fprintf(&b, "Recall: %.4f\n", r.Recall)
	fmt.Fprintf(&b, "F1-Score: %.4f\n", r.F1)
	if r.AUC > 0 {
		fmt.Fprintf(&b, "ROC AUC: %.4f\n", r.AUC)
	}

	return b.String()
}
