package preprocess

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLabelEncoderFirstOccurrenceOrder(t *testing.T) {
	e := NewLabelEncoder()
	codes, err := e.FitTransform([]string{"normal", "normal", "anomalous", "normal", "anomalous"})
	require.NoError(t, err)

	// Normal rows are loaded first, so normal -> 0, anomalous -> 1.
	assert.Equal(t, []int{0, 0, 1, 0, 1}, codes)
	assert.Equal(t, []string{"normal", "anomalous"}, e.Classes())
	assert.Equal(t, "anomalous", e.Class(1))
	assert.Equal(t, "", e.Class(5))
}

func TestLabelEncoderErrors(t *testing.T) {
	e := NewLabelEncoder()

	_, err := e.Transform([]string{"normal"})
	assert.ErrorIs(t, err, ErrNotFitted)

	require.NoError(t, e.Fit([]string{"normal", "anomalous"}))
	_, err = e.Transform([]string{"suspicious"})
	assert.ErrorIs(t, err, ErrUnknownCategory)
}

func TestLabelEncoderRefitResets(t *testing.T) {
	e := NewLabelEncoder()
	require.NoError(t, e.Fit([]string{"a", "b", "c"}))
	require.NoError(t, e.Fit([]string{"x", "y"}))

	// A refit never accumulates mappings from earlier runs.
	assert.Equal(t, []string{"x", "y"}, e.Classes())
	_, err := e.Transform([]string{"a"})
	assert.ErrorIs(t, err, ErrUnknownCategory)
}

func TestCategoryEncoder(t *testing.T) {
	e := NewCategoryEncoder()
	codes, err := e.FitTransform([]string{"B", "A", "B", "C", "A"})
	require.NoError(t, err)

	// First-seen order: B=0, A=1, C=2.
	assert.Equal(t, []float64{0, 1, 0, 2, 1}, codes)
	assert.Equal(t, 3, e.Cardinality())
}

func TestCategoryEncoderDeterminism(t *testing.T) {
	values := []string{"tcp", "udp", "tcp", "icmp", "udp", "tcp"}

	a := NewCategoryEncoder()
	codesA, err := a.FitTransform(values)
	require.NoError(t, err)

	b := NewCategoryEncoder()
	codesB, err := b.FitTransform(values)
	require.NoError(t, err)

	// Same input order yields identical mappings across runs.
	assert.Equal(t, codesA, codesB)
}

func TestCategoryEncoderUnknown(t *testing.T) {
	e := NewCategoryEncoder()
	require.NoError(t, e.Fit([]string{"A", "B", "C"}))

	_, err := e.Code("D")
	assert.ErrorIs(t, err, ErrUnknownCategory)
	assert.Contains(t, err.Error(), `"D"`)

	_, err = e.Transform([]string{"A", "D"})
	assert.ErrorIs(t, err, ErrUnknownCategory)
}

func TestLabelEncoderBinaryRoundTrip(t *testing.T) {
	e := NewLabelEncoder()
	require.NoError(t, e.Fit([]string{"normal", "anomalous"}))

	data, err := e.MarshalBinary()
	require.NoError(t, err)

	restored := NewLabelEncoder()
	require.NoError(t, restored.UnmarshalBinary(data))

	assert.Equal(t, e.Classes(), restored.Classes())
	codes, err := restored.Transform([]string{"anomalous", "normal"})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 0}, codes)
}

func TestCategoryEncoderBinaryRoundTrip(t *testing.T) {
	e := NewCategoryEncoder()
	require.NoError(t, e.Fit([]string{"B", "A", "C"}))

	data, err := e.MarshalBinary()
	require.NoError(t, err)

	restored := NewCategoryEncoder()
	require.NoError(t, restored.UnmarshalBinary(data))

	codes, err := restored.Transform([]string{"A", "B", "C"})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0, 2}, codes)

	_, err = restored.Code("D")
	assert.ErrorIs(t, err, ErrUnknownCategory)
}

func TestEncoderMarshalUnfitted(t *testing.T) {
	_, err := NewLabelEncoder().MarshalBinary()
	assert.ErrorIs(t, err, ErrNotFitted)

	_, err = NewCategoryEncoder().MarshalBinary()
	assert.ErrorIs(t, err, ErrNotFitted)
}

func TestCategoryEncoderNotFitted(t *testing.T) {
	e := NewCategoryEncoder()
	_, err := e.Transform([]string{"A"})
	assert.ErrorIs(t, err, ErrNotFitted)
	_, err = e.Code("A")
	assert.ErrorIs(t, err, ErrNotFitted)
}
