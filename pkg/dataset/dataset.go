// Package dataset provides labeled tabular datasets and their sources.
package dataset

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ColumnKind classifies a column once at load time.
type ColumnKind int

const (
	// Numeric columns parse as float64 in every row.
	Numeric ColumnKind = iota
	// Categorical columns carry arbitrary string values.
	Categorical
)

func (k ColumnKind) String() string {
	if k == Numeric {
		return "numeric"
	}
	return "categorical"
}

// ErrSchema reports a structural problem with an input source, such as a
// missing label column.
var ErrSchema = errors.New("schema error")

// Source loads a labeled dataset from some backing store.
type Source interface {
	// Load returns the complete dataset.
	Load() (*Dataset, error)

	// Close releases resources.
	Close() error
}

// Dataset is an ordered collection of rows over named columns.
// Cells are kept in their raw string form; the per-column schema is
// inferred once at load time and used consistently afterwards.
type Dataset struct {
	Columns []string
	Rows    [][]string

	schema []ColumnKind
}

// New builds a dataset from column names and raw rows, inferring the
// column schema. Every row must have exactly len(columns) cells.
func New(columns []string, rows [][]string) (*Dataset, error) {
	for i, row := range rows {
		if len(row) != len(columns) {
			return nil, fmt.Errorf("%w: row %d has %d cells, want %d", ErrSchema, i, len(row), len(columns))
		}
	}

	d := &Dataset{Columns: columns, Rows: rows}
	d.schema = inferSchema(columns, rows)
	return d, nil
}

// inferSchema marks a column Numeric iff every cell parses as a float.
func inferSchema(columns []string, rows [][]string) []ColumnKind {
	schema := make([]ColumnKind, len(columns))
	for j := range columns {
		schema[j] = Numeric
		for _, row := range rows {
			if _, err := strconv.ParseFloat(row[j], 64); err != nil {
				schema[j] = Categorical
				break
			}
		}
	}
	return schema
}

// Len returns the number of rows.
func (d *Dataset) Len() int {
	return len(d.Rows)
}

// Kind returns the inferred kind of the i-th column.
func (d *Dataset) Kind(i int) ColumnKind {
	return d.schema[i]
}

// ColumnIndex returns the position of the named column, or -1.
func (d *Dataset) ColumnIndex(name string) int {
	for i, c := range d.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Column returns the raw values of the named column.
func (d *Dataset) Column(name string) ([]string, error) {
	idx := d.ColumnIndex(name)
	if idx < 0 {
		return nil, fmt.Errorf("%w: column %q not found (available: %s)",
			ErrSchema, name, strings.Join(d.Columns, ", "))
	}

	col := make([]string, len(d.Rows))
	for i, row := range d.Rows {
		col[i] = row[idx]
	}
	return col, nil
}

// RequireColumn verifies the named column exists, reporting the actual
// column list on failure so the input can be fixed.
func (d *Dataset) RequireColumn(name string) error {
	if d.ColumnIndex(name) < 0 {
		return fmt.Errorf("%w: label column %q not found (available: %s)",
			ErrSchema, name, strings.Join(d.Columns, ", "))
	}
	return nil
}

// Drop returns a copy of the dataset without the named column.
func (d *Dataset) Drop(name string) (*Dataset, error) {
	idx := d.ColumnIndex(name)
	if idx < 0 {
		return nil, fmt.Errorf("%w: column %q not found (available: %s)",
			ErrSchema, name, strings.Join(d.Columns, ", "))
	}

	columns := make([]string, 0, len(d.Columns)-1)
	columns = append(columns, d.Columns[:idx]...)
	columns = append(columns, d.Columns[idx+1:]...)

	rows := make([][]string, len(d.Rows))
	for i, row := range d.Rows {
		out := make([]string, 0, len(row)-1)
		out = append(out, row[:idx]...)
		out = append(out, row[idx+1:]...)
		rows[i] = out
	}

	return New(columns, rows)
}

// Concat appends the rows of b after the rows of a, preserving source
// order. Column names are taken from a; b must have the same arity.
// No deduplication or conflict resolution is performed.
func Concat(a, b *Dataset) (*Dataset, error) {
	if len(a.Columns) != len(b.Columns) {
		return nil, fmt.Errorf("%w: column count mismatch: %d vs %d",
			ErrSchema, len(a.Columns), len(b.Columns))
	}

	rows := make([][]string, 0, len(a.Rows)+len(b.Rows))
	rows = append(rows, a.Rows...)
	rows = append(rows, b.Rows...)

	return New(a.Columns, rows)
}
