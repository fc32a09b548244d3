package preprocess

import "errors"

var (
	// ErrNotFitted is returned when Transform is called before Fit.
	ErrNotFitted = errors.New("transformer not fitted")

	// ErrUnknownCategory is returned when a value unseen during fitting
	// appears at transform time. Unseen categories are rejected rather
	// than silently mapped to a default code.
	ErrUnknownCategory = errors.New("unknown category")

	// ErrDegenerateFeature is returned by a strict scaler for a
	// zero-variance feature column.
	ErrDegenerateFeature = errors.New("degenerate feature")
)
