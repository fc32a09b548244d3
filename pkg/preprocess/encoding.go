// Package preprocess provides fit-once transformers for tabular features:
// label encoding, categorical encoding, standardization and stratified
// train/test splitting.
package preprocess

import (
	"bytes"
	"encoding/gob"
	"fmt"
)

// LabelEncoder maps class labels to a dense integer range [0, k).
// Codes are assigned in order of first occurrence in the fitting data,
// so with normal rows loaded before anomalous rows the binary case
// yields "normal" -> 0, "anomalous" -> 1.
type LabelEncoder struct {
	codes   map[string]int
	classes []string
}

// NewLabelEncoder returns an unfitted label encoder. Each training run
// must construct a fresh encoder; encoders are never refitted in place.
func NewLabelEncoder() *LabelEncoder {
	return &LabelEncoder{}
}

// Fit assigns codes to the distinct labels. Calling Fit again resets
// the mapping.
func (e *LabelEncoder) Fit(labels []string) error {
	e.codes = make(map[string]int)
	e.classes = e.classes[:0]
	for _, l := range labels {
		if _, ok := e.codes[l]; !ok {
			e.codes[l] = len(e.classes)
			e.classes = append(e.classes, l)
		}
	}
	return nil
}

// Transform maps labels to their codes.
func (e *LabelEncoder) Transform(labels []string) ([]int, error) {
	if e.codes == nil {
		return nil, ErrNotFitted
	}

	out := make([]int, len(labels))
	for i, l := range labels {
		code, ok := e.codes[l]
		if !ok {
			return nil, fmt.Errorf("%w: label %q", ErrUnknownCategory, l)
		}
		out[i] = code
	}
	return out, nil
}

// FitTransform fits the encoder and transforms in one pass.
func (e *LabelEncoder) FitTransform(labels []string) ([]int, error) {
	if err := e.Fit(labels); err != nil {
		return nil, err
	}
	return e.Transform(labels)
}

// Classes returns the label for each code, indexed by code.
func (e *LabelEncoder) Classes() []string {
	return e.classes
}

// Class returns the label for a single code.
func (e *LabelEncoder) Class(code int) string {
	if code < 0 || code >= len(e.classes) {
		return ""
	}
	return e.classes[code]
}

// MarshalBinary serializes the fitted mapping.
func (e *LabelEncoder) MarshalBinary() ([]byte, error) {
	if e.codes == nil {
		return nil, ErrNotFitted
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(e.classes); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary restores a mapping saved with MarshalBinary.
func (e *LabelEncoder) UnmarshalBinary(data []byte) error {
	var classes []string
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&classes); err != nil {
		return err
	}

	e.classes = classes
	e.codes = make(map[string]int, len(classes))
	for i, c := range classes {
		e.codes[c] = i
	}
	return nil
}

// CategoryEncoder assigns integer codes to the values of one categorical
// column, in first-seen order over the string representation. The fitted
// mapping is reused unchanged at prediction time; values outside it are
// rejected with ErrUnknownCategory.
type CategoryEncoder struct {
	codes map[string]int
}

// NewCategoryEncoder returns an unfitted category encoder.
func NewCategoryEncoder() *CategoryEncoder {
	return &CategoryEncoder{}
}

// Fit enumerates the distinct values of the column.
func (e *CategoryEncoder) Fit(values []string) error {
	e.codes = make(map[string]int)
	for _, v := range values {
		if _, ok := e.codes[v]; !ok {
			e.codes[v] = len(e.codes)
		}
	}
	return nil
}

// Transform maps column values to their float codes.
func (e *CategoryEncoder) Transform(values []string) ([]float64, error) {
	if e.codes == nil {
		return nil, ErrNotFitted
	}

	out := make([]float64, len(values))
	for i, v := range values {
		code, err := e.Code(v)
		if err != nil {
			return nil, err
		}
		out[i] = code
	}
	return out, nil
}

// FitTransform fits the encoder and transforms in one pass.
func (e *CategoryEncoder) FitTransform(values []string) ([]float64, error) {
	if err := e.Fit(values); err != nil {
		return nil, err
	}
	return e.Transform(values)
}

// Code returns the code of a single value.
func (e *CategoryEncoder) Code(value string) (float64, error) {
	if e.codes == nil {
		return 0, ErrNotFitted
	}
	code, ok := e.codes[value]
	if !ok {
		return 0, fmt.Errorf("%w: value %q", ErrUnknownCategory, value)
	}
	return float64(code), nil
}

// Cardinality returns the number of distinct fitted values.
func (e *CategoryEncoder) Cardinality() int {
	return len(e.codes)
}

// MarshalBinary serializes the fitted mapping.
func (e *CategoryEncoder) MarshalBinary() ([]byte, error) {
	if e.codes == nil {
		return nil, ErrNotFitted
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(e.codes); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary restores a mapping saved with MarshalBinary.
func (e *CategoryEncoder) UnmarshalBinary(data []byte) error {
	var codes map[string]int
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&codes); err != nil {
		return err
	}
	if codes == nil {
		codes = make(map[string]int)
	}
	e.codes = codes
	return nil
}
