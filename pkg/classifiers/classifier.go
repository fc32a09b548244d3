// Package classifiers defines the capability contract consumed by the
// detection pipeline. Any classifier satisfying it is substitutable for
// the default gradient-boosted-tree implementation.
package classifiers

import "errors"

// ErrNotTrained is returned when prediction or analysis is requested
// before a successful training pass.
var ErrNotTrained = errors.New("model not trained")

// Classifier is the common interface for supervised classifiers.
type Classifier interface {
	// Fit trains the classifier. x is a 2D slice where each row is a
	// sample; y holds dense integer class codes in [0, k).
	Fit(x [][]float64, y []int) error

	// Predict returns the predicted class code for each sample.
	Predict(x [][]float64) ([]int, error)

	// PredictProba returns a per-class probability row for each sample.
	PredictProba(x [][]float64) ([][]float64, error)

	// FeatureImportances returns a per-feature contribution score,
	// normalized to sum to 1 when any split was made.
	FeatureImportances() ([]float64, error)

	// NumClasses returns the number of classes seen during fitting.
	NumClasses() int

	// Save serializes the trained model to bytes.
	Save() ([]byte, error)

	// Load deserializes a trained model from bytes.
	Load(data []byte) error
}
