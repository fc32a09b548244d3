package detector

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/hed1ad/goboostml/pkg/classifiers"
	"github.com/hed1ad/goboostml/pkg/classifiers/gbtree"
	"github.com/hed1ad/goboostml/pkg/dataset"
	"github.com/hed1ad/goboostml/pkg/preprocess"
)

// ErrModelNotTrained is returned when prediction or analysis is
// requested from a pipeline that has not completed a training pass.
var ErrModelNotTrained = classifiers.ErrNotTrained

// Pipeline is the fitted state produced by a training run: the column
// schema, the fitted encoders and scaler, and the trained model. It is
// threaded explicitly into prediction calls and is safe for concurrent
// readers once returned by Train.
type Pipeline struct {
	featureColumns []string
	kinds          []dataset.ColumnKind
	encoders       []*preprocess.CategoryEncoder
	labels         *preprocess.LabelEncoder
	scaler         *preprocess.StandardScaler
	model          classifiers.Classifier
	fitted         bool
}

// Prediction is the outcome of scoring one row.
type Prediction struct {
	// Class is the predicted label string.
	Class string
	// Code is the predicted dense class code.
	Code int
	// Proba holds the per-class probabilities, indexed by code.
	Proba []float64
}

// Importance is one entry of the ranked feature-importance listing.
type Importance struct {
	Feature string
	Score   float64
}

// encodeFeatures converts a feature dataset to a numeric matrix,
// fitting one category encoder per non-numeric column. The column
// schema is recorded for prediction-time validation.
func (p *Pipeline) encodeFeatures(features *dataset.Dataset) ([][]float64, error) {
	n := features.Len()
	matrix := make([][]float64, n)
	for i := range matrix {
		matrix[i] = make([]float64, len(features.Columns))
	}

	for j, name := range features.Columns {
		p.kinds[j] = features.Kind(j)

		col, err := features.Column(name)
		if err != nil {
			return nil, err
		}

		if p.kinds[j] == dataset.Numeric {
			for i, cell := range col {
				v, err := strconv.ParseFloat(cell, 64)
				if err != nil {
					return nil, fmt.Errorf("column %q row %d: %w", name, i, err)
				}
				matrix[i][j] = v
			}
			continue
		}

		enc := preprocess.NewCategoryEncoder()
		codes, err := enc.FitTransform(col)
		if err != nil {
			return nil, fmt.Errorf("encoding column %q: %w", name, err)
		}
		p.encoders[j] = enc
		for i, code := range codes {
			matrix[i][j] = code
		}
	}

	return matrix, nil
}

// encodeRow converts one raw row to the numeric feature vector using
// the fitted encoders. Numeric cells accept float64, float32 or int
// values; categorical cells must be strings fitted during training.
func (p *Pipeline) encodeRow(row []any) ([]float64, error) {
	if len(row) != len(p.featureColumns) {
		return nil, fmt.Errorf("row has %d values, want %d (%v)", len(row), len(p.featureColumns), p.featureColumns)
	}

	out := make([]float64, len(row))
	for j, cell := range row {
		name := p.featureColumns[j]

		if p.kinds[j] == dataset.Numeric {
			switch v := cell.(type) {
			case float64:
				out[j] = v
			case float32:
				out[j] = float64(v)
			case int:
				out[j] = float64(v)
			case int64:
				out[j] = float64(v)
			default:
				return nil, fmt.Errorf("column %q: want numeric value, got %T", name, cell)
			}
			continue
		}

		s, ok := cell.(string)
		if !ok {
			return nil, fmt.Errorf("column %q: want categorical string, got %T", name, cell)
		}
		code, err := p.encoders[j].Code(s)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", name, err)
		}
		out[j] = code
	}

	return out, nil
}

// Predict scores one raw row ordered as the training feature columns.
func (p *Pipeline) Predict(row []any) (*Prediction, error) {
	if !p.fitted {
		return nil, ErrModelNotTrained
	}

	encoded, err := p.encodeRow(row)
	if err != nil {
		return nil, err
	}
	scaled, err := p.scaler.TransformOne(encoded)
	if err != nil {
		return nil, err
	}

	proba, err := p.model.PredictProba([][]float64{scaled})
	if err != nil {
		return nil, err
	}

	code := 0
	for c, v := range proba[0] {
		if v > proba[0][code] {
			code = c
		}
	}

	return &Prediction{
		Class: p.labels.Class(code),
		Code:  code,
		Proba: proba[0],
	}, nil
}

// ParseRow converts raw string cells to the typed row Predict expects,
// using the recorded column schema: numeric columns are parsed as
// floats and categorical cells stay strings, even when a category
// happens to look like a number.
func (p *Pipeline) ParseRow(cells []string) ([]any, error) {
	if !p.fitted {
		return nil, ErrModelNotTrained
	}
	if len(cells) != len(p.featureColumns) {
		return nil, fmt.Errorf("row has %d values, want %d (%v)", len(cells), len(p.featureColumns), p.featureColumns)
	}

	row := make([]any, len(cells))
	for j, cell := range cells {
		cell = strings.TrimSpace(cell)
		if p.kinds[j] == dataset.Numeric {
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, fmt.Errorf("column %q: %w", p.featureColumns[j], err)
			}
			row[j] = v
			continue
		}
		row[j] = cell
	}
	return row, nil
}

// Classes returns the label for each class code, indexed by code.
func (p *Pipeline) Classes() []string {
	if p.labels == nil {
		return nil
	}
	return p.labels.Classes()
}

// FeatureColumns returns the training-time feature column order.
func (p *Pipeline) FeatureColumns() []string {
	return p.featureColumns
}

// FeatureImportance returns the top-n features ranked by importance,
// descending. n <= 0 returns all features.
func (p *Pipeline) FeatureImportance(n int) ([]Importance, error) {
	if !p.fitted {
		return nil, ErrModelNotTrained
	}

	scores, err := p.model.FeatureImportances()
	if err != nil {
		return nil, err
	}

	out := make([]Importance, len(scores))
	for i, s := range scores {
		out[i] = Importance{Feature: p.featureColumns[i], Score: s}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })

	if n > 0 && n < len(out) {
		out = out[:n]
	}
	return out, nil
}

// pipelineState is the gob wire form of a fitted pipeline. Encoders
// holds the fitted category encoders keyed by column index; numeric
// columns have no entry.
type pipelineState struct {
	FeatureColumns []string
	Kinds          []dataset.ColumnKind
	Encoders       map[int][]byte
	Labels         []byte
	Scaler         []byte
	Model          []byte
}

// Save serializes the fitted pipeline, including the column schema,
// the fitted encoders and scaler, and the trained model, so a saved
// pipeline can score raw rows after a restart.
func (p *Pipeline) Save() ([]byte, error) {
	if !p.fitted {
		return nil, ErrModelNotTrained
	}

	state := pipelineState{
		FeatureColumns: p.featureColumns,
		Kinds:          p.kinds,
		Encoders:       make(map[int][]byte),
	}

	var err error
	for j, enc := range p.encoders {
		if enc == nil {
			continue
		}
		if state.Encoders[j], err = enc.MarshalBinary(); err != nil {
			return nil, fmt.Errorf("saving encoder for column %q: %w", p.featureColumns[j], err)
		}
	}
	if state.Labels, err = p.labels.MarshalBinary(); err != nil {
		return nil, fmt.Errorf("saving label encoder: %w", err)
	}
	if state.Scaler, err = p.scaler.MarshalBinary(); err != nil {
		return nil, fmt.Errorf("saving scaler: %w", err)
	}
	if state.Model, err = p.model.Save(); err != nil {
		return nil, fmt.Errorf("saving model: %w", err)
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(state); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// LoadOption configures pipeline restoration.
type LoadOption func(*Pipeline)

// WithModel substitutes the classifier the saved model bytes are
// loaded into. Defaults to a fresh gbtree classifier.
func WithModel(m classifiers.Classifier) LoadOption {
	return func(p *Pipeline) {
		p.model = m
	}
}

// LoadPipeline restores a pipeline saved with Save.
func LoadPipeline(data []byte, opts ...LoadOption) (*Pipeline, error) {
	var state pipelineState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&state); err != nil {
		return nil, err
	}

	p := &Pipeline{
		featureColumns: state.FeatureColumns,
		kinds:          state.Kinds,
		encoders:       make([]*preprocess.CategoryEncoder, len(state.FeatureColumns)),
		labels:         preprocess.NewLabelEncoder(),
		scaler:         preprocess.NewStandardScaler(),
		model:          gbtree.New(),
	}
	for _, opt := range opts {
		opt(p)
	}

	for j, raw := range state.Encoders {
		if j < 0 || j >= len(p.encoders) {
			return nil, fmt.Errorf("encoder for column index %d out of range", j)
		}
		enc := preprocess.NewCategoryEncoder()
		if err := enc.UnmarshalBinary(raw); err != nil {
			return nil, fmt.Errorf("restoring encoder for column %q: %w", p.featureColumns[j], err)
		}
		p.encoders[j] = enc
	}
	if err := p.labels.UnmarshalBinary(state.Labels); err != nil {
		return nil, fmt.Errorf("restoring label encoder: %w", err)
	}
	if err := p.scaler.UnmarshalBinary(state.Scaler); err != nil {
		return nil, fmt.Errorf("restoring scaler: %w", err)
	}
	if err := p.model.Load(state.Model); err != nil {
		return nil, fmt.Errorf("restoring model: %w", err)
	}

	p.fitted = true
	return p, nil
}
