// Package csv provides CSV-backed dataset sources.
package csv

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/hed1ad/goboostml/pkg/dataset"
)

// Source reads a labeled dataset from a CSV file.
type Source struct {
	file      *os.File
	reader    *csv.Reader
	hasHeader bool
}

// Option configures a CSV source.
type Option func(*Source)

// WithHeader indicates whether the CSV has a header row.
func WithHeader(has bool) Option {
	return func(s *Source) {
		s.hasHeader = has
	}
}

// New opens a CSV dataset source. The file-not-found case surfaces the
// underlying *fs.PathError so callers can errors.Is(err, fs.ErrNotExist).
func New(filename string, opts ...Option) (*Source, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}

	s := &Source{
		file:      file,
		reader:    csv.NewReader(file),
		hasHeader: true,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Load reads the entire file into a dataset. Without a header row the
// columns are named col0..colN-1.
func (s *Source) Load() (*dataset.Dataset, error) {
	var columns []string
	if s.hasHeader {
		header, err := s.reader.Read()
		if err != nil {
			return nil, fmt.Errorf("reading header of %s: %w", s.file.Name(), err)
		}
		columns = header
	}

	var rows [][]string
	for {
		record, err := s.reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", s.file.Name(), err)
		}

		if columns == nil {
			columns = make([]string, len(record))
			for i := range record {
				columns[i] = fmt.Sprintf("col%d", i)
			}
		}
		rows = append(rows, record)
	}

	return dataset.New(columns, rows)
}

// Close releases the underlying file.
func (s *Source) Close() error {
	if s.file != nil {
		return s.file.Close()
	}
	return nil
}
