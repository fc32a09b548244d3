package preprocess

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// StandardScaler standardizes feature columns to zero mean and unit
// variance. Statistics are fit on the training subset only and reused
// for test rows and single-point inputs.
type StandardScaler struct {
	mean   []float64
	std    []float64
	strict bool
}

// ScalerOption configures a StandardScaler.
type ScalerOption func(*StandardScaler)

// WithStrictVariance makes Fit fail on zero-variance columns instead of
// substituting a unit deviation.
func WithStrictVariance() ScalerOption {
	return func(s *StandardScaler) {
		s.strict = true
	}
}

// NewStandardScaler creates an unfitted scaler.
func NewStandardScaler(opts ...ScalerOption) *StandardScaler {
	s := &StandardScaler{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Fit computes per-column mean and population standard deviation.
// A zero-variance column is treated as std=1 so transforming it yields
// zeros, unless the scaler is strict.
func (s *StandardScaler) Fit(x [][]float64) error {
	if len(x) == 0 {
		return fmt.Errorf("standard scaler: empty training data")
	}

	cols := len(x[0])
	s.mean = make([]float64, cols)
	s.std = make([]float64, cols)

	col := make([]float64, len(x))
	for j := 0; j < cols; j++ {
		for i := range x {
			col[i] = x[i][j]
		}
		s.mean[j] = stat.Mean(col, nil)

		var v float64
		for _, val := range col {
			d := val - s.mean[j]
			v += d * d
		}
		s.std[j] = math.Sqrt(v / float64(len(col)))

		if s.std[j] == 0 {
			if s.strict {
				s.mean, s.std = nil, nil
				return fmt.Errorf("%w: column %d has zero variance", ErrDegenerateFeature, j)
			}
			s.std[j] = 1
		}
	}

	return nil
}

// Transform applies (x - mean) / std per column.
func (s *StandardScaler) Transform(x [][]float64) ([][]float64, error) {
	if s.mean == nil {
		return nil, ErrNotFitted
	}

	out := make([][]float64, len(x))
	for i, row := range x {
		if len(row) != len(s.mean) {
			return nil, fmt.Errorf("standard scaler: row has %d features, want %d", len(row), len(s.mean))
		}
		scaled := make([]float64, len(row))
		for j, v := range row {
			scaled[j] = (v - s.mean[j]) / s.std[j]
		}
		out[i] = scaled
	}
	return out, nil
}

// FitTransform fits on x and returns the scaled copy.
func (s *StandardScaler) FitTransform(x [][]float64) ([][]float64, error) {
	if err := s.Fit(x); err != nil {
		return nil, err
	}
	return s.Transform(x)
}

// scalerState is the gob wire form of a fitted scaler.
type scalerState struct {
	Mean, Std []float64
	Strict    bool
}

// MarshalBinary serializes the fitted statistics.
func (s *StandardScaler) MarshalBinary() ([]byte, error) {
	if s.mean == nil {
		return nil, ErrNotFitted
	}

	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(scalerState{Mean: s.mean, Std: s.std, Strict: s.strict})
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary restores statistics saved with MarshalBinary.
func (s *StandardScaler) UnmarshalBinary(data []byte) error {
	var state scalerState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&state); err != nil {
		return err
	}

	s.mean = state.Mean
	s.std = state.Std
	s.strict = state.Strict
	return nil
}

// TransformOne scales a single row with the fitted statistics.
func (s *StandardScaler) TransformOne(row []float64) ([]float64, error) {
	out, err := s.Transform([][]float64{row})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}
